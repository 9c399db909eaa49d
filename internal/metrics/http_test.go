package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/api/history", "/api/history"},
		{"/api/history/0b6e7f3a-4c1d-4e2f-9a8b-1c2d3e4f5a6b/results", "/api/history/{id}/results"},
		{"/api/history/0b6e7f3a-4c1d-4e2f-9a8b-1c2d3e4f5a6b", "/api/history/{id}"},
		{"/api/preferences/recent", "/api/preferences/{name}"},
		{"/api/preferences/columns", "/api/preferences/{name}"},
		{"/api/ratelimit/search/stream", "/api/ratelimit/search/stream"},
		{"/files/exports/u1/history-2026.csv", "/files/*"},
		{"/webhooks/stripe", "/webhooks/stripe"},
		{"/wp-login.php", "other"},
		{"/", "other"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizePath(tt.in))
		})
	}
}

func TestMiddleware_RecordsStatus(t *testing.T) {
	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
	}))

	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues(http.MethodPost, "/api/search", "402"))

	req := httptest.NewRequest(http.MethodPost, "/api/search", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	after := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues(http.MethodPost, "/api/search", "402"))
	assert.Equal(t, before+1, after)
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
}

func TestResponseWriter_Flush(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := &statusRecorder{ResponseWriter: rec, status: http.StatusOK}

	var w http.ResponseWriter = rw
	f, ok := w.(http.Flusher)
	assert.True(t, ok)
	f.Flush()
	assert.True(t, rec.Flushed)
}

func TestMiddleware_UnknownPathsShareLabel(t *testing.T) {
	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))

	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues(http.MethodGet, "other", "404"))
	for _, path := range []string{"/.env", "/admin", "/xmlrpc.php"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	after := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues(http.MethodGet, "other", "404"))
	assert.Equal(t, before+3, after)
}

func TestTierResolved(t *testing.T) {
	before := testutil.ToFloat64(TierResolutionsTotal.WithLabelValues("free", "true"))
	TierResolved("free", true)
	assert.Equal(t, before+1, testutil.ToFloat64(TierResolutionsTotal.WithLabelValues("free", "true")))
}
