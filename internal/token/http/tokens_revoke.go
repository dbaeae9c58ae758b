package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/lockbridge/tokenvault/internal/token/service"
	"github.com/lockbridge/tokenvault/pkg/httpx"
	"github.com/lockbridge/tokenvault/pkg/slogx"
)

// RevokeHandler serves POST /v1/tokens/revoke. Idempotent: revoking an
// already-revoked or unknown token id still returns 200, so the endpoint
// cannot be used to probe which ids exist.
type RevokeHandler struct {
	RevocationService *service.RevocationService
}

type revokeRequest struct {
	TokenID   string    `json:"token_id"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

func (h *RevokeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req revokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TokenID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	if err := h.RevocationService.Revoke(ctx, req.TokenID, req.ExpiresAt); err != nil {
		slogx.FromContext(ctx).Error("revocation failed", "token_id", req.TokenID, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, struct{}{})
}

// RevokeSubjectHandler serves POST /v1/tokens/revoke-subject, revoking
// every live token the subject index knows for a subject.
type RevokeSubjectHandler struct {
	RevocationService *service.RevocationService
}

type revokeSubjectRequest struct {
	Subject string `json:"subject"`
}

type revokeSubjectResponse struct {
	Revoked int `json:"revoked"`
}

func (h *RevokeSubjectHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req revokeSubjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Subject == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	count, err := h.RevocationService.RevokeAllForSubject(ctx, req.Subject)
	if err != nil {
		slogx.FromContext(ctx).Error("subject revocation failed", "subject", req.Subject, "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, revokeSubjectResponse{Revoked: count})
}
