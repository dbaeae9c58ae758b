package http

import (
	"errors"
	"net/http"

	"github.com/lockbridge/tokenvault/internal/token/service"
	"github.com/lockbridge/tokenvault/pkg/httpx"
	"github.com/lockbridge/tokenvault/pkg/jwtx"
)

// writeValidationError maps a validation rejection onto the wire. Lifecycle
// rejections (expiry, revocation, device mismatch) are surfaced with
// specific codes since the token holder already knows those facts. Security
// violations all collapse into a generic authentication_failed so the
// response never teaches an attacker which check tripped; the specific
// cause goes to the audit log only.
func writeValidationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, jwtx.ErrExpired), errors.Is(err, jwtx.ErrNotYetValid):
		httpx.WriteError(w, http.StatusUnauthorized, "token_expired")
	case errors.Is(err, service.ErrTokenRevoked):
		httpx.WriteError(w, http.StatusUnauthorized, "token_revoked")
	case errors.Is(err, service.ErrDeviceMismatch):
		httpx.WriteError(w, http.StatusUnauthorized, "device_mismatch")
	case errors.Is(err, service.ErrRevocationUnavailable):
		httpx.WriteError(w, http.StatusServiceUnavailable, "service_unavailable")
	case errors.Is(err, jwtx.ErrMalformed),
		errors.Is(err, jwtx.ErrInvalidSignature),
		errors.Is(err, jwtx.ErrUnknownKeyGeneration),
		errors.Is(err, jwtx.ErrUnsupportedAlgorithm),
		errors.Is(err, jwtx.ErrAlgorithmDowngrade),
		errors.Is(err, jwtx.ErrInvalidClaims),
		errors.Is(err, service.ErrTokenTampered):
		httpx.WriteError(w, http.StatusUnauthorized, "authentication_failed")
	default:
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error")
	}
}

// writeIssueError maps an issuance failure onto the wire.
func writeIssueError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrClaimTooLarge):
		httpx.WriteError(w, http.StatusUnprocessableEntity, "claim_too_large")
	case errors.Is(err, jwtx.ErrKeyUnavailable):
		httpx.WriteError(w, http.StatusInternalServerError, "key_unavailable")
	case errors.Is(err, jwtx.ErrInvalidClaims):
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request")
	default:
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error")
	}
}
