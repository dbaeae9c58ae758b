// Package fingerprint derives a stable, privacy-preserving identifier for
// the context a token was issued in, so a token presented from a different
// client can be rejected. The raw client IP never appears in the output:
// only a keyed hash of it does.
package fingerprint

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net"
	"net/http"
	"strings"
)

// DeviceContext is the request metadata a fingerprint is computed from.
// Supplied by the routing layer; nothing here is persisted.
type DeviceContext struct {
	UserAgent      string
	Accept         string
	AcceptLanguage string
	AcceptEncoding string
	Connection     string
	ClientIP       string
}

// FromRequest extracts a DeviceContext from an incoming HTTP request.
func FromRequest(r *http.Request) DeviceContext {
	return DeviceContext{
		UserAgent:      r.UserAgent(),
		Accept:         r.Header.Get("Accept"),
		AcceptLanguage: r.Header.Get("Accept-Language"),
		AcceptEncoding: r.Header.Get("Accept-Encoding"),
		Connection:     r.Header.Get("Connection"),
		ClientIP:       clientIP(r),
	}
}

// Compute hashes the device context into a fixed-length base64url string.
// Deterministic for identical inputs, no I/O. The IP component is
// HMAC-keyed with ipSalt before entering the digest, so the fingerprint is
// not reversible to the address.
func Compute(dc DeviceContext, ipSalt []byte) string {
	mac := hmac.New(sha256.New, ipSalt)
	mac.Write([]byte(dc.ClientIP))
	saltedIP := mac.Sum(nil)

	h := sha256.New()
	// Separator guards against ambiguity between adjacent fields.
	for _, part := range []string{
		dc.UserAgent,
		dc.Accept,
		dc.AcceptLanguage,
		dc.AcceptEncoding,
		dc.Connection,
	} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	h.Write(saltedIP)

	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

// clientIP resolves the originating address, honouring proxy headers the
// same way the rate limiter does.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if first, _, found := strings.Cut(xff, ","); found || first != "" {
			return strings.TrimSpace(first)
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
