package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/lockbridge/tokenvault/internal/token/service"
	"github.com/lockbridge/tokenvault/internal/token/store"
	"github.com/lockbridge/tokenvault/pkg/httpx"
	"github.com/lockbridge/tokenvault/pkg/jwtx"
	"github.com/lockbridge/tokenvault/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	keyring      *jwtx.Keyring
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	store        store.Store

	IssuerService     *service.IssuerService
	ValidatorService  *service.ValidatorService
	RevocationService *service.RevocationService
	RotationService   *service.RotationService
}

func NewRouter(keyring *jwtx.Keyring, buildVersion string, st store.Store, logger *slog.Logger) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		keyring:      keyring,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerTokens()
	r.registerKeys()
	r.registerSystem()
}

// ServeHTTP implements http.Handler and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerTokens() {
	// POST /v1/tokens - issuance sits on the authentication path, strict
	// rate limit by IP.
	issueHandler := &IssueHandler{IssuerService: r.IssuerService}
	r.Mux.Handle("POST /v1/tokens",
		httpx.Chain(issueHandler,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// POST /v1/tokens/validate - hot path, lenient rate limit.
	validateHandler := &ValidateHandler{ValidatorService: r.ValidatorService}
	r.Mux.Handle("POST /v1/tokens/validate",
		httpx.Chain(validateHandler,
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)

	// POST /v1/tokens/revoke - moderate rate limit.
	revokeHandler := &RevokeHandler{RevocationService: r.RevocationService}
	r.Mux.Handle("POST /v1/tokens/revoke",
		httpx.Chain(revokeHandler,
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	// POST /v1/tokens/revoke-subject - bulk operation, strict rate limit.
	revokeSubjectHandler := &RevokeSubjectHandler{RevocationService: r.RevocationService}
	r.Mux.Handle("POST /v1/tokens/revoke-subject",
		httpx.Chain(revokeSubjectHandler,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerKeys() {
	h := &KeyRotationHandler{
		RotationService: r.RotationService,
		Keyring:         r.keyring,
	}

	// POST /v1/keys/rotate - administrative operation, strict rate limit.
	r.Mux.Handle("POST /v1/keys/rotate",
		httpx.Chain(http.HandlerFunc(h.HandleRotate),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// GET /v1/keys - metadata only, moderate rate limit.
	r.Mux.Handle("GET /v1/keys",
		httpx.Chain(http.HandlerFunc(h.HandleListKeys),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerSystem() {
	// Monitoring systems may poll frequently, lenient limits.
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.keyring),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}
