package middleware

import (
	"net/http"
	"strings"
)

// The API answers with JSON, CSV exports and event streams only. Nothing may
// render, frame or script it as a document.
const apiCSP = "default-src 'none'; frame-ancestors 'none'; base-uri 'none'; form-action 'none'"

// SecureHeaders sets response headers for the API.
type SecureHeaders struct {
	hsts bool
}

// NewSecureHeaders enables HSTS when hsts is true. Only set it behind TLS.
func NewSecureHeaders(hsts bool) *SecureHeaders {
	return &SecureHeaders{hsts: hsts}
}

func (s *SecureHeaders) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Content-Security-Policy", apiCSP)
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=()")
		if s.hsts {
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		// API bodies are per-account.
		if strings.HasPrefix(r.URL.Path, "/api/") {
			h.Set("Cache-Control", "no-store")
		}

		next.ServeHTTP(w, r)
	})
}
