package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}

func doReq(h http.Handler, method, path, origin, remote string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	if remote != "" {
		req.RemoteAddr = remote
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestCORSHeaders(t *testing.T) {
	h := Middleware(SecConfig{AllowedOrigins: []string{"https://jobs.example.com"}})(okHandler())

	rr := doReq(h, http.MethodGet, "/v1/stats", "https://jobs.example.com", "1.2.3.4:555")
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://jobs.example.com" {
		t.Fatalf("allow-origin = %q", got)
	}

	// unlisted origins get no CORS headers; the request itself still runs
	rr = doReq(h, http.MethodGet, "/v1/stats", "https://evil.example.com", "1.2.3.4:555")
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("allow-origin for unlisted origin = %q", got)
	}
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestPreflightShortCircuits(t *testing.T) {
	h := Middleware(SecConfig{AllowedOrigins: []string{"*"}})(okHandler())

	rr := doReq(h, http.MethodOptions, "/v1/stats", "https://any.example.com", "1.2.3.4:555")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d, want 204", rr.Code)
	}
	if rr.Body.Len() != 0 {
		t.Fatalf("preflight body = %q", rr.Body.String())
	}
}

func TestIPWhitelist(t *testing.T) {
	h := Middleware(SecConfig{IPWhitelist: []string{"10.0.0.1"}})(okHandler())

	if rr := doReq(h, http.MethodGet, "/v1/stats", "", "10.0.0.1:4242"); rr.Code != http.StatusOK {
		t.Fatalf("whitelisted ip blocked: %d", rr.Code)
	}
	if rr := doReq(h, http.MethodGet, "/v1/stats", "", "10.0.0.2:4242"); rr.Code != http.StatusForbidden {
		t.Fatalf("unlisted ip status = %d, want 403", rr.Code)
	}
}

func TestRateLimitPerIP(t *testing.T) {
	h := Middleware(SecConfig{RPS: 1, Burst: 2})(okHandler())

	for i := 0; i < 2; i++ {
		if rr := doReq(h, http.MethodGet, "/v1/stats", "", "9.9.9.9:100"); rr.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i, rr.Code)
		}
	}
	if rr := doReq(h, http.MethodGet, "/v1/stats", "", "9.9.9.9:100"); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("burst exceeded status = %d, want 429", rr.Code)
	}
	// a different ip has its own bucket
	if rr := doReq(h, http.MethodGet, "/v1/stats", "", "8.8.8.8:100"); rr.Code != http.StatusOK {
		t.Fatalf("second ip status = %d", rr.Code)
	}
}

func TestHealthzBypassesLimiter(t *testing.T) {
	h := Middleware(SecConfig{RPS: 1, Burst: 1})(okHandler())

	for i := 0; i < 5; i++ {
		if rr := doReq(h, http.MethodGet, "/healthz", "", "7.7.7.7:100"); rr.Code != http.StatusOK {
			t.Fatalf("healthz request %d status = %d", i, rr.Code)
		}
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.7:39000"
	if got := clientIP(req); got != "192.0.2.7" {
		t.Fatalf("clientIP = %q", got)
	}
	req.RemoteAddr = "unixsocket"
	if got := clientIP(req); got != "unixsocket" {
		t.Fatalf("clientIP fallback = %q", got)
	}
}
