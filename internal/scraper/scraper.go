// Package scraper defines the post provider used by searches and the errors
// a provider can report.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/DukeRupert/reelscout/internal/domain"
)

// Provider fetches recent posts for an account.
type Provider interface {
	// FetchPosts returns at most req.Count posts for req.Query. Any failure is
	// reported as a *FetchError.
	FetchPosts(ctx context.Context, req FetchRequest) ([]domain.Post, error)
}

// FetchRequest describes one provider call.
type FetchRequest struct {
	Query     string          // account name, "@name" or profile URL
	Platform  domain.Platform // instagram or tiktok
	Count     int             // maximum number of posts, already clamped to the tier
	NewerThan time.Time       // zero means no date restriction
}

// ProviderConfig contains common configuration for post providers.
type ProviderConfig struct {
	MaxRetries          int           // Maximum retry attempts for transient errors
	RetryBaseDelay      time.Duration // Base delay for exponential backoff
	RetryMaxDelay       time.Duration // Upper bound for backoff
	RequestTimeout      time.Duration // Timeout for individual requests
	RequestsPerSecond   float64       // Outbound pacing
	Burst               int           // Outbound burst size
	CircuitBreakerDelay time.Duration // How long the breaker stays open
}

// Sentinel causes for fetch failures.
var (
	// ErrRateLimited indicates the provider rejected the call for rate limiting.
	ErrRateLimited = errors.New("provider rate limit exceeded")

	// ErrUnauthorized indicates invalid provider credentials.
	ErrUnauthorized = errors.New("provider authentication failed")

	// ErrUnavailable indicates the provider is temporarily unavailable.
	ErrUnavailable = errors.New("provider temporarily unavailable")

	// ErrNotFound indicates the account does not exist or is private.
	ErrNotFound = errors.New("account not found")

	// ErrBadResponse indicates the provider answered with an undecodable body.
	ErrBadResponse = errors.New("provider returned an invalid response")
)

// FetchError is the single error type surfaced for a failed fetch.
type FetchError struct {
	Platform   domain.Platform
	Query      string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s posts for %q: status %d: %v", e.Platform, e.Query, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s posts for %q: %v", e.Platform, e.Query, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsFetchError reports whether err is or wraps a *FetchError.
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}

// ClassifyStatus maps a provider HTTP status to a sentinel cause.
func ClassifyStatus(code int) error {
	switch {
	case code == 401 || code == 403:
		return ErrUnauthorized
	case code == 404:
		return ErrNotFound
	case code == 429:
		return ErrRateLimited
	case code >= 500:
		return ErrUnavailable
	default:
		return ErrBadResponse
	}
}

// NormalizeQuery reduces "@name", "name" and profile URLs to the bare account name.
func NormalizeQuery(q string) string {
	q = strings.TrimSpace(q)
	if u, err := url.Parse(q); err == nil && u.Host != "" {
		q = strings.Trim(u.Path, "/")
		if i := strings.Index(q, "/"); i >= 0 {
			q = q[:i]
		}
	}
	q = strings.TrimPrefix(q, "@")
	return strings.ToLower(strings.TrimSpace(q))
}

// Engagement computes (likes + comments + shares) / views as a percentage.
// Zero views yields zero.
func Engagement(views, likes, comments, shares int64) domain.Percent {
	if views <= 0 {
		return 0
	}
	return domain.Percent(float64(likes+comments+shares) / float64(views) * 100)
}
