package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func serveSecure(hsts bool, method, target string, next http.Handler) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	NewSecureHeaders(hsts).Handler(next).ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestSecureHeaders_APIResponses(t *testing.T) {
	for _, target := range []string{
		"/api/search",
		"/api/usage",
		"/api/history/9b2c/results?page=2",
		"/api/ratelimit/search/stream?access_token=abc",
	} {
		t.Run(target, func(t *testing.T) {
			rec := serveSecure(true, http.MethodGet, target, statusHandler(http.StatusOK))

			want := map[string]string{
				"Content-Security-Policy":   apiCSP,
				"X-Content-Type-Options":    "nosniff",
				"X-Frame-Options":           "DENY",
				"Referrer-Policy":           "no-referrer",
				"Cache-Control":             "no-store",
				"Strict-Transport-Security": "max-age=31536000; includeSubDomains",
			}
			for header, value := range want {
				if got := rec.Header().Get(header); got != value {
					t.Errorf("%s = %q, want %q", header, got, value)
				}
			}
		})
	}
}

func TestSecureHeaders_CSPDeniesEverything(t *testing.T) {
	rec := serveSecure(false, http.MethodGet, "/api/usage", statusHandler(http.StatusOK))
	csp := rec.Header().Get("Content-Security-Policy")

	for _, directive := range []string{
		"default-src 'none'",
		"frame-ancestors 'none'",
		"base-uri 'none'",
		"form-action 'none'",
	} {
		if !strings.Contains(csp, directive) {
			t.Errorf("CSP missing %q: %s", directive, csp)
		}
	}
	for _, loosened := range []string{"'self'", "'unsafe-inline'", "'unsafe-eval'", "*"} {
		if strings.Contains(csp, loosened) {
			t.Errorf("CSP allows %s: %s", loosened, csp)
		}
	}
}

func TestSecureHeaders_NoHSTSWithoutTLS(t *testing.T) {
	rec := serveSecure(false, http.MethodGet, "/api/search", statusHandler(http.StatusOK))

	if got := rec.Header().Get("Strict-Transport-Security"); got != "" {
		t.Errorf("Strict-Transport-Security = %q, want empty", got)
	}
}

func TestSecureHeaders_CachingOutsideAPI(t *testing.T) {
	for _, target := range []string{"/files/exports/u1/history.csv", "/health", "/webhooks/stripe"} {
		rec := serveSecure(true, http.MethodGet, target, statusHandler(http.StatusOK))
		if got := rec.Header().Get("Cache-Control"); got != "" {
			t.Errorf("%s: Cache-Control = %q, want empty", target, got)
		}
		if rec.Header().Get("Content-Security-Policy") != apiCSP {
			t.Errorf("%s: CSP missing", target)
		}
	}
}

func TestSecureHeaders_HandlerCanOverride(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Cache-Control", "private, max-age=60")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("id,views\n"))
	})

	rec := serveSecure(true, http.MethodPost, "/api/history/9b2c/export", h)

	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", rec.Code)
	}
	if got := rec.Header().Get("Cache-Control"); got != "private, max-age=60" {
		t.Errorf("Cache-Control = %q", got)
	}
	if rec.Body.String() != "id,views\n" {
		t.Errorf("body = %q", rec.Body.String())
	}
}
