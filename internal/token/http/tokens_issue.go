package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/lockbridge/tokenvault/internal/token/service"
	"github.com/lockbridge/tokenvault/pkg/fingerprint"
	"github.com/lockbridge/tokenvault/pkg/httpx"
	"github.com/lockbridge/tokenvault/pkg/slogx"
)

// IssueHandler serves POST /v1/tokens. The device context for binding is
// taken from the request headers, never from the body, so a caller cannot
// bind a token to a device it is not presenting as.
type IssueHandler struct {
	IssuerService *service.IssuerService
}

type issueRequest struct {
	Subject          string         `json:"subject"`
	TTLSeconds       int64          `json:"ttl_seconds,omitempty"`
	Custom           map[string]any `json:"custom,omitempty"`
	Sensitive        map[string]any `json:"sensitive,omitempty"`
	EncryptSensitive bool           `json:"encrypt_sensitive,omitempty"`
	BindDevice       bool           `json:"bind_device,omitempty"`
	PersonalData     bool           `json:"personal_data,omitempty"`
	Classification   string         `json:"classification,omitempty"`
}

func (h *IssueHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := slogx.FromContext(r.Context())

	var req issueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.Subject == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	var device *fingerprint.DeviceContext
	if req.BindDevice {
		dc := fingerprint.FromRequest(r)
		device = &dc
	}

	resp, err := h.IssuerService.Issue(service.IssueRequest{
		Subject:          req.Subject,
		TTL:              time.Duration(req.TTLSeconds) * time.Second,
		Custom:           req.Custom,
		Sensitive:        req.Sensitive,
		EncryptSensitive: req.EncryptSensitive,
		Device:           device,
		PersonalData:     req.PersonalData,
		Classification:   req.Classification,
	})
	if err != nil {
		log.Warn("token issuance failed", "subject", req.Subject, "err", err)
		writeIssueError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, resp)
}
