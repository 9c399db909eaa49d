package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"

	"github.com/DukeRupert/reelscout/internal/domain"
	"github.com/DukeRupert/reelscout/internal/handler"
)

// maxTrackedClients bounds the number of per-client buckets kept in memory.
const maxTrackedClients = 10000

// =============================================================================
// Rate Limiter
// =============================================================================

// RateLimiter is a per-key token bucket. Each key may spend maxAttempts
// requests at once; tokens refill evenly over window.
type RateLimiter struct {
	maxAttempts int
	window      time.Duration
	logger      *slog.Logger

	buckets *expirable.LRU[string, *rate.Limiter]
}

// NewRateLimiter creates a new rate limiter. Buckets idle for a full window
// are full again and are dropped.
func NewRateLimiter(maxAttempts int, window time.Duration, logger *slog.Logger) *RateLimiter {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		maxAttempts: maxAttempts,
		window:      window,
		logger:      logger,
		buckets:     expirable.NewLRU[string, *rate.Limiter](maxTrackedClients, nil, window),
	}
}

func (rl *RateLimiter) bucket(key string) *rate.Limiter {
	b, ok := rl.buckets.Get(key)
	if !ok {
		b = rate.NewLimiter(rate.Every(rl.window/time.Duration(rl.maxAttempts)), rl.maxAttempts)
	}
	// Re-adding refreshes the idle TTL.
	rl.buckets.Add(key, b)
	return b
}

// Allow checks if a request from the given key should be allowed.
func (rl *RateLimiter) Allow(key string) bool {
	return rl.bucket(key).Allow()
}

// Reset forgets the key.
func (rl *RateLimiter) Reset(key string) {
	rl.buckets.Remove(key)
}

// TimeUntilReset returns how long until the key may make another request.
func (rl *RateLimiter) TimeUntilReset(key string) time.Duration {
	b, ok := rl.buckets.Get(key)
	if !ok {
		return 0
	}
	r := b.Reserve()
	defer r.Cancel()
	return r.Delay()
}

// =============================================================================
// Rate Limit Middleware
// =============================================================================

// RateLimitMiddleware wraps a rate limiter for use as HTTP middleware.
type RateLimitMiddleware struct {
	limiter *RateLimiter
	logger  *slog.Logger
}

// NewRateLimitMiddleware creates a new rate limit middleware.
func NewRateLimitMiddleware(limiter *RateLimiter, logger *slog.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		limiter: limiter,
		logger:  logger,
	}
}

// Limit returns middleware that rate limits requests per client IP.
func (m *RateLimitMiddleware) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := getClientIP(r)

		if !m.limiter.Allow(clientIP) {
			m.logger.Warn("rate limit exceeded",
				"ip", clientIP,
				"path", r.URL.Path,
				"method", r.Method,
			)

			retryAfter := int(math.Ceil(m.limiter.TimeUntilReset(clientIP).Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			handler.ErrorResponse(w, r, m.logger, &domain.Error{
				Code:       domain.ERATELIMIT,
				Op:         "middleware.ratelimit",
				Message:    "Too many requests. Please try again later.",
				RetryAfter: retryAfter,
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// Helpers
// =============================================================================

// getClientIP extracts the client IP from the request, considering proxy headers.
func getClientIP(r *http.Request) string {
	// X-Forwarded-For can contain multiple IPs: client, proxy1, proxy2
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if clientIP := strings.TrimSpace(first); clientIP != "" {
			return clientIP
		}
	}

	// Check X-Real-IP (nginx)
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RemoteAddr might not have a port
		return r.RemoteAddr
	}
	return ip
}
