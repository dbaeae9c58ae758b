package http

import (
	"net/http"
	"time"

	"github.com/lockbridge/tokenvault/internal/token/store"
	"github.com/lockbridge/tokenvault/pkg/httpx"
	"github.com/lockbridge/tokenvault/pkg/jwtx"
)

// ReadyzHandler reports readiness: the store must answer a ping and the
// keyring must hold a current generation, or issuance cannot work.
func ReadyzHandler(startTime time.Time, version string, st store.Store, keyring *jwtx.Keyring) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := &healthChecks{
			Store:   "ok",
			Keyring: "ok",
		}
		status := "ok"
		code := http.StatusOK

		if err := st.Ping(r.Context()); err != nil {
			checks.Store = "error: " + err.Error()
			status = "degraded"
			code = http.StatusServiceUnavailable
		}

		if !keyring.IsReady() {
			checks.Keyring = "error: no key generation installed"
			status = "degraded"
			code = http.StatusServiceUnavailable
		}

		httpx.WriteJSON(w, code, healthResponse{
			Status:  status,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		})
	}
}
