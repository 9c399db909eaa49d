package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net"
	"net/http"
	"net/netip"

	"github.com/DukeRupert/reelscout/internal/domain"
	"github.com/DukeRupert/reelscout/internal/handler"
)

const metricsRealm = `Basic realm="reelscout metrics", charset="UTF-8"`

// MetricsAccess controls who may scrape /metrics. A scraper is let in when
// its direct peer address is inside AllowedNets or it presents the basic
// auth credentials. With nothing configured the endpoint is open.
type MetricsAccess struct {
	Username    string
	Password    string
	AllowedNets []netip.Prefix
}

func (a MetricsAccess) hasCredentials() bool {
	return a.Username != "" || a.Password != ""
}

// MetricsGuard protects the Prometheus scrape endpoint.
type MetricsGuard struct {
	access MetricsAccess
	logger *slog.Logger
}

func NewMetricsGuard(access MetricsAccess, logger *slog.Logger) *MetricsGuard {
	return &MetricsGuard{access: access, logger: logger}
}

// Open reports whether every caller may scrape.
func (g *MetricsGuard) Open() bool {
	return !g.access.hasCredentials() && len(g.access.AllowedNets) == 0
}

func (g *MetricsGuard) Handler(next http.Handler) http.Handler {
	if g.Open() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.peerAllowed(r) || g.credentialsMatch(r) {
			next.ServeHTTP(w, r)
			return
		}

		// Proxy headers are client controlled and never widen access.
		if !g.access.hasCredentials() {
			handler.ErrorResponse(w, r, g.logger, &domain.Error{
				Code:    domain.EFORBIDDEN,
				Op:      "middleware.metrics",
				Message: "Metrics are not available from this address.",
			})
			return
		}
		w.Header().Set("WWW-Authenticate", metricsRealm)
		handler.ErrorResponse(w, r, g.logger, &domain.Error{
			Code:    domain.EUNAUTHORIZED,
			Op:      "middleware.metrics",
			Message: "Metrics require credentials.",
		})
	})
}

func (g *MetricsGuard) peerAllowed(r *http.Request) bool {
	if len(g.access.AllowedNets) == 0 {
		return false
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range g.access.AllowedNets {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

func (g *MetricsGuard) credentialsMatch(r *http.Request) bool {
	if !g.access.hasCredentials() {
		return false
	}
	user, pass, ok := r.BasicAuth()
	if !ok {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(g.access.Username))
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(g.access.Password))
	return userOK&passOK == 1
}
