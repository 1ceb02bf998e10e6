package api

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"drinksmenu/internal/auth/authtest"
)

func TestRequestID(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Routes()

	rr := do(t, h, http.MethodGet, "/drinks", "", "")
	if rr.Header().Get("X-Request-Id") == "" {
		t.Fatal("request id not generated")
	}

	req := httptest.NewRequest(http.MethodGet, "/drinks", nil)
	req.Header.Set("X-Request-Id", "abc-123")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if got := rr.Header().Get("X-Request-Id"); got != "abc-123" {
		t.Fatalf("request id: %q", got)
	}
}

func TestRecoverPanic(t *testing.T) {
	s, _ := newTestServer(t)
	logger, hook := logtest.NewNullLogger()
	s.Logger = logrus.NewEntry(logger)

	h := s.middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "rid-panic")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	wantMessage(t, rr, http.StatusInternalServerError, "Internal Server Error")

	var found bool
	for _, e := range hook.AllEntries() {
		if e.Message == "request failed" && e.Data["op"] == "panic" {
			found = true
			if e.Data["request_id"] != "rid-panic" {
				t.Fatalf("panic logged with request_id %v", e.Data["request_id"])
			}
		}
	}
	if !found {
		t.Fatal("panic was not logged")
	}
}

func TestCORSPreflight(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/drinks", nil)
	req.Header.Set("Origin", "http://localhost:8100")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	s.Routes().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("preflight: %d", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("allow origin: %q", got)
	}
	if rr.Header().Get("Access-Control-Allow-Headers") != "Authorization, Content-Type" {
		t.Fatalf("allow headers: %q", rr.Header().Get("Access-Control-Allow-Headers"))
	}
}

func TestCORSTrustedOrigins(t *testing.T) {
	iss := authtest.NewIssuer(t)
	cfg := testConfig(iss)
	cfg.CORS.TrustedOrigins = []string{"http://good.example"}
	h := newTestServerWith(t, cfg).Routes()

	for origin, want := range map[string]string{
		"http://good.example": "http://good.example",
		"http://evil.example": "",
	} {
		req := httptest.NewRequest(http.MethodGet, "/drinks", nil)
		req.Header.Set("Origin", origin)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if got := rr.Header().Get("Access-Control-Allow-Origin"); got != want {
			t.Fatalf("origin %s: allow origin %q want %q", origin, got, want)
		}
	}
}

func rateLimitedServer(t *testing.T, proxies ...string) *Server {
	t.Helper()
	iss := authtest.NewIssuer(t)
	cfg := testConfig(iss)
	cfg.Limiter.Enabled = true
	cfg.Limiter.RPS = 0.001
	cfg.Limiter.Burst = 2
	cfg.TrustedProxies = proxies
	return newTestServerWith(t, cfg)
}

func getFrom(h http.Handler, remote, xff string) int {
	req := httptest.NewRequest(http.MethodGet, "/drinks", nil)
	req.RemoteAddr = remote
	if xff != "" {
		req.Header.Set("X-Forwarded-For", xff)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr.Code
}

func TestRateLimit(t *testing.T) {
	h := rateLimitedServer(t).Routes()

	for i := 0; i < 2; i++ {
		if rr := do(t, h, http.MethodGet, "/drinks", "", ""); rr.Code != http.StatusOK {
			t.Fatalf("request %d: %d", i, rr.Code)
		}
	}
	wantMessage(t, do(t, h, http.MethodGet, "/drinks", "", ""), http.StatusTooManyRequests, "Too Many Requests")

	// a different connection has its own bucket
	if code := getFrom(h, "203.0.113.9:4000", ""); code != http.StatusOK {
		t.Fatalf("other client limited: %d", code)
	}
}

func TestRateLimitIgnoresSpoofedForwardedFor(t *testing.T) {
	h := rateLimitedServer(t).Routes()

	limited := 0
	for i := 0; i < 20; i++ {
		if getFrom(h, "10.0.0.1:5555", fmt.Sprintf("198.51.100.%d", i)) == http.StatusTooManyRequests {
			limited++
		}
	}
	if limited != 18 {
		t.Fatalf("one socket with rotating X-Forwarded-For: %d of 20 limited, want 18", limited)
	}
}

func TestRateLimitBehindTrustedProxy(t *testing.T) {
	h := rateLimitedServer(t, "10.0.0.0/8").Routes()

	// two clients behind the same proxy get separate buckets
	for i := 0; i < 2; i++ {
		if code := getFrom(h, "10.0.0.1:5555", "198.51.100.1"); code != http.StatusOK {
			t.Fatalf("client a request %d: %d", i, code)
		}
	}
	if code := getFrom(h, "10.0.0.1:5555", "198.51.100.1"); code != http.StatusTooManyRequests {
		t.Fatalf("client a third request: %d", code)
	}
	if code := getFrom(h, "10.0.0.1:5555", "198.51.100.2"); code != http.StatusOK {
		t.Fatalf("client b: %d", code)
	}
}

func TestClientIP(t *testing.T) {
	s, _ := newTestServer(t)
	s.trustedProxies = []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")}

	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"remote addr", nil, "192.0.2.1:1234", "192.0.2.1"},
		{"no port", nil, "192.0.2.5", "192.0.2.5"},
		{"untrusted peer ignores forwarded for", map[string]string{"X-Forwarded-For": "198.51.100.7"}, "192.0.2.1:80", "192.0.2.1"},
		{"untrusted peer ignores real ip", map[string]string{"X-Real-IP": "198.51.100.8"}, "192.0.2.1:80", "192.0.2.1"},
		{"trusted proxy forwarded for", map[string]string{"X-Forwarded-For": "198.51.100.7"}, "10.0.0.1:80", "198.51.100.7"},
		{"trusted chain skips inner proxies", map[string]string{"X-Forwarded-For": "6.6.6.6, 198.51.100.7, 10.1.2.3"}, "10.0.0.1:80", "198.51.100.7"},
		{"trusted proxy real ip", map[string]string{"X-Real-IP": "198.51.100.8"}, "10.0.0.1:80", "198.51.100.8"},
		{"trusted proxy without headers", nil, "10.0.0.1:80", "10.0.0.1"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tc.remote
			for k, v := range tc.headers {
				r.Header.Set(k, v)
			}
			if got := s.clientIP(r); got != tc.want {
				t.Fatalf("got %q want %q", got, tc.want)
			}
		})
	}
}
