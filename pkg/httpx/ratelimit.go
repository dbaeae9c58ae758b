package httpx

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig defines token-bucket parameters for one endpoint class.
type RateLimitConfig struct {
	RequestsPerWindow int
	Window            time.Duration
	Burst             int
}

// Rate limit profiles. Issuance and revocation sit on the authentication
// path and get the strict profile; validation is hot-path and lenient.
var (
	StrictLimit = RateLimitConfig{
		RequestsPerWindow: 10,
		Window:            time.Minute,
		Burst:             10,
	}

	ModerateLimit = RateLimitConfig{
		RequestsPerWindow: 60,
		Window:            time.Minute,
		Burst:             60,
	}

	LenientLimit = RateLimitConfig{
		RequestsPerWindow: 600,
		Window:            time.Minute,
		Burst:             600,
	}
)

// keyedLimiter manages one rate.Limiter per client key.
type keyedLimiter struct {
	limiters sync.Map // map[string]*limiterEntry
	rate     rate.Limit
	burst    int

	mu          sync.Mutex
	lastCleanup time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

const cleanupInterval = 10 * time.Minute

func (kl *keyedLimiter) get(key string) *rate.Limiter {
	now := time.Now()

	if v, ok := kl.limiters.Load(key); ok {
		entry := v.(*limiterEntry)
		entry.lastSeen = now
		return entry.limiter
	}

	entry := &limiterEntry{limiter: rate.NewLimiter(kl.rate, kl.burst), lastSeen: now}
	actual, _ := kl.limiters.LoadOrStore(key, entry)

	kl.maybeCleanup(now)
	return actual.(*limiterEntry).limiter
}

// maybeCleanup drops limiters for keys not seen recently so ephemeral
// clients don't accumulate forever.
func (kl *keyedLimiter) maybeCleanup(now time.Time) {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	if now.Sub(kl.lastCleanup) < cleanupInterval {
		return
	}
	kl.lastCleanup = now

	kl.limiters.Range(func(key, v any) bool {
		if now.Sub(v.(*limiterEntry).lastSeen) > cleanupInterval {
			kl.limiters.Delete(key)
		}
		return true
	})
}

// RateLimitByIP limits requests per client IP using the given profile.
func RateLimitByIP(config RateLimitConfig) Middleware {
	kl := &keyedLimiter{
		rate:  rate.Every(config.Window / time.Duration(config.RequestsPerWindow)),
		burst: config.Burst,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !kl.get(ClientIP(r)).Allow() {
				w.Header().Set("Retry-After", "60")
				WriteError(w, http.StatusTooManyRequests, "rate_limited")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP resolves the originating address, honouring X-Forwarded-For and
// X-Real-IP for proxied deployments.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
