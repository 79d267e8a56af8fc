package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sambeau/xscriptd/config"
)

func TestClientIPDirectNoProxy(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "203.0.113.5:1234"
	got := ClientIP(r, config.ProxyConfig{})
	if got != "203.0.113.5" {
		t.Errorf("got %q, want 203.0.113.5", got)
	}
}

func TestClientIPTrustedProxyUsesForwardedFor(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	r.Header.Set("X-Forwarded-For", "198.51.100.9, 10.0.0.1")
	cfg := config.ProxyConfig{Trusted: true}
	if got := ClientIP(r, cfg); got != "198.51.100.9" {
		t.Errorf("got %q, want 198.51.100.9", got)
	}
}

func TestClientIPUntrustedRemoteIgnoresForwardedFor(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "203.0.113.9:1234"
	r.Header.Set("X-Forwarded-For", "198.51.100.9")
	cfg := config.ProxyConfig{Trusted: true, TrustedIPs: []string{"10.0.0.1"}}
	if got := ClientIP(r, cfg); got != "203.0.113.9" {
		t.Errorf("got %q, want the untrusted direct remote addr", got)
	}
}

func TestClientIPXRealIPFallback(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	r.Header.Set("X-Real-IP", "198.51.100.2")
	cfg := config.ProxyConfig{Trusted: true}
	if got := ClientIP(r, cfg); got != "198.51.100.2" {
		t.Errorf("got %q, want 198.51.100.2", got)
	}
}

func TestExtractIPStripsPort(t *testing.T) {
	if got := extractIP("203.0.113.5:1234"); got != "203.0.113.5" {
		t.Errorf("got %q, want 203.0.113.5", got)
	}
	if got := extractIP("not-host-port"); got != "not-host-port" {
		t.Errorf("expected passthrough for malformed addr, got %q", got)
	}
}

func TestNewProxyAwarePassthroughWhenNotTrusted(t *testing.T) {
	called := false
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })
	h := newProxyAware(inner, config.ProxyConfig{Trusted: false})

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if !called {
		t.Error("expected inner handler to be called")
	}
}

func TestSecurityHeadersAppliesConfiguredHeaders(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	cfg := config.SecurityConfig{
		ContentTypeOptions: "nosniff",
		FrameOptions:       "DENY",
	}
	h := newSecurityHeaders(inner, cfg, false)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
	if got := w.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q, want DENY", got)
	}
}

func TestSecurityHeadersDevModeDisablesCaching(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	h := newSecurityHeaders(inner, config.SecurityConfig{}, true)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if got := w.Header().Get("Cache-Control"); got != "no-cache, no-store, must-revalidate" {
		t.Errorf("Cache-Control = %q", got)
	}
}
