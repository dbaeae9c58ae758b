package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lockbridge/tokenvault/internal/token/service"
	"github.com/lockbridge/tokenvault/internal/token/store/drivers/memory"
	"github.com/lockbridge/tokenvault/pkg/jwtx"
)

func newTestRouter(t *testing.T) *Router {
	t.Helper()

	st := memory.NewStore()
	subjects := memory.NewSubjectIndex()
	keyring := jwtx.NewKeyring()
	policy := jwtx.Policy{Environment: "dev"}
	ipSalt := []byte("test-ip-salt")
	master := []byte("0123456789abcdef0123456789abcdef")

	rotation := &service.RotationService{
		Keyring:      keyring,
		Store:        st,
		Policy:       policy,
		MasterSecret: master,
		Algorithm:    jwtx.AlgorithmHS256,
		GracePeriod:  time.Hour,
	}
	_, err := rotation.Rotate(context.Background())
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := NewRouter(keyring, "test", st, logger)
	router.IssuerService = &service.IssuerService{
		Keyring:    keyring,
		Issuer:     "tokenvault-test",
		DefaultTTL: 15 * time.Minute,
		MaxTTL:     time.Hour,
		IPSalt:     ipSalt,
		Tracker:    subjects,
	}
	router.ValidatorService = &service.ValidatorService{
		Keyring:     keyring,
		Policy:      policy,
		Revocations: st.Revocations(),
		IPSalt:      ipSalt,
	}
	router.RevocationService = &service.RevocationService{
		Revocations:      st.Revocations(),
		Subjects:         subjects,
		DefaultRetention: time.Hour,
	}
	router.RotationService = rotation
	router.ApplyRoutes()

	return router
}

func doJSON(t *testing.T, router *Router, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestIssueValidateRevokeFlow(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/v1/tokens", map[string]any{
		"subject":           "user-1",
		"custom":            map[string]any{"role": "admin"},
		"sensitive":         map[string]any{"ssn": "123-45-6789"},
		"encrypt_sensitive": true,
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var issued struct {
		Token   string `json:"token"`
		TokenID string `json:"token_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &issued))
	require.NotEmpty(t, issued.Token)

	rec = doJSON(t, router, http.MethodPost, "/v1/tokens/validate", map[string]any{
		"token": issued.Token,
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var validated struct {
		Active    bool           `json:"active"`
		Subject   string         `json:"subject"`
		Custom    map[string]any `json:"custom"`
		Sensitive map[string]any `json:"sensitive"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &validated))
	require.True(t, validated.Active)
	require.Equal(t, "user-1", validated.Subject)
	require.Equal(t, "admin", validated.Custom["role"])
	require.Equal(t, "123-45-6789", validated.Sensitive["ssn"])

	rec = doJSON(t, router, http.MethodPost, "/v1/tokens/revoke", map[string]any{
		"token_id": issued.TokenID,
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/v1/tokens/validate", map[string]any{
		"token": issued.Token,
	}, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), "token_revoked")
}

func TestIssueDeviceBoundToken(t *testing.T) {
	router := newTestRouter(t)

	issueHeaders := map[string]string{
		"User-Agent": "test-agent/1.0",
		"X-Real-IP":  "203.0.113.7",
		"Accept":     "application/json",
	}
	rec := doJSON(t, router, http.MethodPost, "/v1/tokens", map[string]any{
		"subject":     "user-1",
		"bind_device": true,
	}, issueHeaders)
	require.Equal(t, http.StatusCreated, rec.Code)

	var issued struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &issued))

	// Same device context validates.
	rec = doJSON(t, router, http.MethodPost, "/v1/tokens/validate", map[string]any{
		"token": issued.Token,
	}, issueHeaders)
	require.Equal(t, http.StatusOK, rec.Code)

	// A different client IP does not.
	otherHeaders := map[string]string{
		"User-Agent": "test-agent/1.0",
		"X-Real-IP":  "198.51.100.9",
		"Accept":     "application/json",
	}
	rec = doJSON(t, router, http.MethodPost, "/v1/tokens/validate", map[string]any{
		"token": issued.Token,
	}, otherHeaders)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), "device_mismatch")
}

func TestValidateRequireBindingEndpoint(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/v1/tokens", map[string]any{
		"subject": "user-1",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var issued struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &issued))

	// The unbound token passes a plain validation.
	rec = doJSON(t, router, http.MethodPost, "/v1/tokens/validate", map[string]any{
		"token": issued.Token,
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// With require_binding the same token is rejected.
	rec = doJSON(t, router, http.MethodPost, "/v1/tokens/validate", map[string]any{
		"token":           issued.Token,
		"require_binding": true,
	}, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), "device_mismatch")
}

func TestValidateGenericSecurityError(t *testing.T) {
	router := newTestRouter(t)

	// Malformed and forged tokens both collapse into the generic code.
	for _, token := range []string{"garbage", "a.b.c"} {
		rec := doJSON(t, router, http.MethodPost, "/v1/tokens/validate", map[string]any{
			"token": token,
		}, nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Contains(t, rec.Body.String(), "authentication_failed")
	}
}

func TestIssueClaimTooLargeResponse(t *testing.T) {
	router := newTestRouter(t)

	big := make([]byte, 5000)
	for i := range big {
		big[i] = 'a'
	}
	rec := doJSON(t, router, http.MethodPost, "/v1/tokens", map[string]any{
		"subject": "user-1",
		"custom":  map[string]any{"note": string(big)},
	}, nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Contains(t, rec.Body.String(), "claim_too_large")
}

func TestRevokeSubjectEndpoint(t *testing.T) {
	router := newTestRouter(t)

	for range 3 {
		rec := doJSON(t, router, http.MethodPost, "/v1/tokens", map[string]any{"subject": "user-1"}, nil)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := doJSON(t, router, http.MethodPost, "/v1/tokens/revoke-subject", map[string]any{
		"subject": "user-1",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Revoked int `json:"revoked"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 3, resp.Revoked)
}

func TestKeyEndpoints(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/v1/keys/rotate", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var rotated struct {
		Generation uint64 `json:"generation"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rotated))
	require.Equal(t, uint64(2), rotated.Generation)

	rec = doJSON(t, router, http.MethodGet, "/v1/keys", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var keys []struct {
		Generation uint64 `json:"generation"`
		Algorithm  string `json:"algorithm"`
		Current    bool   `json:"current"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &keys))
	require.Len(t, keys, 2)
	require.False(t, keys[0].Current)
	require.True(t, keys[1].Current)

	// Listing never leaks key material.
	require.NotContains(t, rec.Body.String(), "salt")
	require.NotContains(t, rec.Body.String(), "key")
}

func TestHealthEndpoints(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/livez", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/readyz", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}
