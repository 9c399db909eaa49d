package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
)

func scrapeHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("reelscout_searches_total 3\n"))
	})
}

func TestMetricsGuard(t *testing.T) {
	creds := MetricsAccess{Username: "scraper", Password: "s3cret"}
	clusterOnly := MetricsAccess{AllowedNets: []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")}}
	both := MetricsAccess{
		Username:    "scraper",
		Password:    "s3cret",
		AllowedNets: []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8"), netip.MustParsePrefix("::1/128")},
	}

	tests := []struct {
		name       string
		access     MetricsAccess
		remoteAddr string
		user, pass string
		basic      bool
		header     string
		wantStatus int
	}{
		{name: "open when unconfigured", access: MetricsAccess{}, remoteAddr: "198.51.100.7:5000", wantStatus: http.StatusOK},
		{name: "valid credentials", access: creds, remoteAddr: "198.51.100.7:5000", user: "scraper", pass: "s3cret", basic: true, wantStatus: http.StatusOK},
		{name: "missing credentials", access: creds, remoteAddr: "198.51.100.7:5000", wantStatus: http.StatusUnauthorized},
		{name: "wrong password", access: creds, remoteAddr: "198.51.100.7:5000", user: "scraper", pass: "guess", basic: true, wantStatus: http.StatusUnauthorized},
		{name: "wrong username", access: creds, remoteAddr: "198.51.100.7:5000", user: "admin", pass: "s3cret", basic: true, wantStatus: http.StatusUnauthorized},
		{name: "malformed authorization", access: creds, remoteAddr: "198.51.100.7:5000", header: "Basic !!!", wantStatus: http.StatusUnauthorized},
		{name: "bearer is not basic", access: creds, remoteAddr: "198.51.100.7:5000", header: "Bearer s3cret", wantStatus: http.StatusUnauthorized},
		{name: "cluster peer without credentials", access: clusterOnly, remoteAddr: "10.4.2.9:41000", wantStatus: http.StatusOK},
		{name: "outside peer forbidden", access: clusterOnly, remoteAddr: "198.51.100.7:5000", wantStatus: http.StatusForbidden},
		{name: "ipv4 mapped peer", access: clusterOnly, remoteAddr: "[::ffff:10.1.1.1]:41000", wantStatus: http.StatusOK},
		{name: "ipv6 loopback peer", access: both, remoteAddr: "[::1]:41000", wantStatus: http.StatusOK},
		{name: "outside peer with credentials", access: both, remoteAddr: "198.51.100.7:5000", user: "scraper", pass: "s3cret", basic: true, wantStatus: http.StatusOK},
		{name: "outside peer without credentials", access: both, remoteAddr: "198.51.100.7:5000", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			guard := NewMetricsGuard(tt.access, slog.New(slog.NewTextHandler(io.Discard, nil)))

			req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.basic {
				req.SetBasicAuth(tt.user, tt.pass)
			}
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			guard.Handler(scrapeHandler()).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			challenge := rec.Header().Get("WWW-Authenticate")
			if tt.wantStatus == http.StatusUnauthorized && challenge != metricsRealm {
				t.Errorf("WWW-Authenticate = %q, want %q", challenge, metricsRealm)
			}
			if tt.wantStatus != http.StatusUnauthorized && challenge != "" {
				t.Errorf("unexpected challenge %q", challenge)
			}
			if tt.wantStatus == http.StatusOK && rec.Body.String() != "reelscout_searches_total 3\n" {
				t.Errorf("body = %q", rec.Body.String())
			}
		})
	}
}

func TestMetricsGuard_ForwardedForDoesNotGrantAccess(t *testing.T) {
	access := MetricsAccess{AllowedNets: []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")}}
	guard := NewMetricsGuard(access, slog.New(slog.NewTextHandler(io.Discard, nil)))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.RemoteAddr = "198.51.100.7:5000"
	req.Header.Set("X-Forwarded-For", "10.0.0.5")
	req.Header.Set("X-Real-IP", "10.0.0.5")
	rec := httptest.NewRecorder()

	guard.Handler(scrapeHandler()).ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestMetricsGuard_Open(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if !NewMetricsGuard(MetricsAccess{}, logger).Open() {
		t.Error("guard without access rules should be open")
	}
	if NewMetricsGuard(MetricsAccess{Password: "only"}, logger).Open() {
		t.Error("guard with a password should not be open")
	}
	nets := MetricsAccess{AllowedNets: []netip.Prefix{netip.MustParsePrefix("127.0.0.0/8")}}
	if NewMetricsGuard(nets, logger).Open() {
		t.Error("guard with allowed nets should not be open")
	}
}
