package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Health checks and scrapes stay out of the access log.
var quietPaths = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

// Query keys whose values never reach the log. The lockout stream passes its
// bearer token as access_token.
var redactedParams = map[string]bool{
	"access_token":  true,
	"refresh_token": true,
	"token":         true,
	"session":       true,
	"code":          true,
	"key":           true,
	"api_key":       true,
	"apikey":        true,
	"secret":        true,
	"password":      true,
}

// RequestLogger writes one access log line per API request.
type RequestLogger struct {
	logger *slog.Logger
}

func NewRequestLogger(logger *slog.Logger) *RequestLogger {
	return &RequestLogger{logger: logger}
}

func (l *RequestLogger) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if quietPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		attrs := []any{
			"method", r.Method,
			"path", redactQuery(r.URL.Path, r.URL.RawQuery),
			"status", rw.statusCode,
			"bytes", rw.written,
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", getClientIP(r),
			"user_agent", r.UserAgent(),
		}
		if strings.HasPrefix(rw.Header().Get("Content-Type"), "text/event-stream") {
			attrs = append(attrs, "stream", true)
		}

		switch {
		case rw.statusCode >= 500:
			l.logger.Error("request", attrs...)
		case rw.statusCode == http.StatusTooManyRequests:
			l.logger.Warn("request", attrs...)
		default:
			l.logger.Info("request", attrs...)
		}
	})
}

// responseWriter records the status and body size sent to the client.
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	written     int64
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// Unwrap lets http.ResponseController reach Flush on the lockout stream.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// redactQuery keeps the query for debugging but masks credential values.
// Pairs without a value are dropped.
func redactQuery(path, rawQuery string) string {
	if rawQuery == "" {
		return path
	}

	var kept []string
	for _, pair := range strings.Split(rawQuery, "&") {
		key, _, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		if redactedParams[strings.ToLower(key)] {
			pair = key + "=[REDACTED]"
		}
		kept = append(kept, pair)
	}
	if len(kept) == 0 {
		return path
	}
	return path + "?" + strings.Join(kept, "&")
}
