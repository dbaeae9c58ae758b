package fingerprint_test

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lockbridge/tokenvault/pkg/fingerprint"
	"github.com/stretchr/testify/require"
)

var ipSalt = []byte("fingerprint-test-salt")

func baseContext() fingerprint.DeviceContext {
	return fingerprint.DeviceContext{
		UserAgent:      "Mozilla/5.0 (X11; Linux x86_64)",
		Accept:         "application/json",
		AcceptLanguage: "en-AU,en;q=0.9",
		AcceptEncoding: "gzip, deflate, br",
		Connection:     "keep-alive",
		ClientIP:       "203.0.113.7",
	}
}

func TestCompute_StableForSameContext(t *testing.T) {
	a := fingerprint.Compute(baseContext(), ipSalt)
	b := fingerprint.Compute(baseContext(), ipSalt)
	require.Equal(t, a, b)
	require.NotEmpty(t, a)
}

func TestCompute_ChangesWithAnyField(t *testing.T) {
	base := fingerprint.Compute(baseContext(), ipSalt)

	mutations := map[string]fingerprint.DeviceContext{}

	dc := baseContext()
	dc.UserAgent = "curl/8.5.0"
	mutations["user agent"] = dc

	dc = baseContext()
	dc.AcceptLanguage = "de-DE"
	mutations["accept language"] = dc

	dc = baseContext()
	dc.ClientIP = "198.51.100.9"
	mutations["client ip"] = dc

	for name, mutated := range mutations {
		require.NotEqual(t, base, fingerprint.Compute(mutated, ipSalt), "field: %s", name)
	}
}

func TestCompute_DoesNotLeakIP(t *testing.T) {
	dc := baseContext()
	fp := fingerprint.Compute(dc, ipSalt)
	require.NotContains(t, fp, dc.ClientIP)
	require.NotContains(t, fp, strings.ReplaceAll(dc.ClientIP, ".", ""))
}

func TestCompute_SaltChangesOutput(t *testing.T) {
	a := fingerprint.Compute(baseContext(), []byte("salt-a"))
	b := fingerprint.Compute(baseContext(), []byte("salt-b"))
	require.NotEqual(t, a, b)
}

func TestFromRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("User-Agent", "test-agent")
	r.Header.Set("Accept", "application/json")
	r.Header.Set("Accept-Language", "en")
	r.Header.Set("Accept-Encoding", "gzip")
	r.Header.Set("Connection", "keep-alive")
	r.RemoteAddr = "203.0.113.7:51234"

	dc := fingerprint.FromRequest(r)
	require.Equal(t, "test-agent", dc.UserAgent)
	require.Equal(t, "203.0.113.7", dc.ClientIP)

	// Proxy headers take precedence over RemoteAddr.
	r.Header.Set("X-Forwarded-For", "198.51.100.9, 10.0.0.1")
	dc = fingerprint.FromRequest(r)
	require.Equal(t, "198.51.100.9", dc.ClientIP)
}
