package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/lockbridge/tokenvault/internal/token/service"
	"github.com/lockbridge/tokenvault/pkg/fingerprint"
	"github.com/lockbridge/tokenvault/pkg/httpx"
	"github.com/lockbridge/tokenvault/pkg/jwtx"
	"github.com/lockbridge/tokenvault/pkg/slogx"
)

// ValidateHandler serves POST /v1/tokens/validate. The presenting device's
// context is always read from the request headers; for a bound token it
// must match the context captured at issuance.
type ValidateHandler struct {
	ValidatorService *service.ValidatorService
}

type validateRequest struct {
	Token string `json:"token"`

	// RequireBinding rejects tokens issued without a device binding.
	RequireBinding bool `json:"require_binding,omitempty"`
}

type validateResponse struct {
	Active        bool            `json:"active"`
	Subject       string          `json:"subject"`
	TokenID       string          `json:"token_id"`
	IssuedAt      time.Time       `json:"issued_at"`
	ExpiresAt     time.Time       `json:"expires_at"`
	KeyGeneration uint64          `json:"key_generation"`
	Custom        map[string]any  `json:"custom,omitempty"`
	Sensitive     map[string]any  `json:"sensitive,omitempty"`
	Compliance    jwtx.Compliance `json:"compliance"`
}

func (h *ValidateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	device := fingerprint.FromRequest(r)
	validated, err := h.ValidatorService.Validate(ctx, service.ValidateRequest{
		Token:          req.Token,
		Device:         &device,
		RequireBinding: req.RequireBinding,
	})
	if err != nil {
		log.Info("token rejected", "err", err)
		writeValidationError(w, err)
		return
	}

	claims := validated.Claims
	httpx.WriteJSON(w, http.StatusOK, validateResponse{
		Active:        true,
		Subject:       claims.Subject,
		TokenID:       claims.ID,
		IssuedAt:      claims.IssuedAt.Time,
		ExpiresAt:     claims.ExpiresAt.Time,
		KeyGeneration: validated.KeyGeneration,
		Custom:        claims.Custom,
		Sensitive:     validated.Sensitive,
		Compliance:    claims.Compliance,
	})
}
