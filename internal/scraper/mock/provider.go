// Package mock provides a deterministic post provider for development and tests.
package mock

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/DukeRupert/reelscout/internal/domain"
	"github.com/DukeRupert/reelscout/internal/scraper"
)

// Provider is a mock post provider. Without overrides it generates posts
// derived from the query so repeated searches return the same data.
type Provider struct {
	logger *slog.Logger
	now    func() time.Time

	mu sync.Mutex

	// Configurable responses for testing
	Posts []domain.Post
	Err   error
	Delay time.Duration

	// Call tracking for testing
	Calls    int
	Requests []scraper.FetchRequest
}

// New creates a new mock provider.
func New(logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{logger: logger, now: time.Now}
}

// FetchPosts implements scraper.Provider.
func (p *Provider) FetchPosts(ctx context.Context, req scraper.FetchRequest) ([]domain.Post, error) {
	p.mu.Lock()
	p.Calls++
	p.Requests = append(p.Requests, req)
	posts, fetchErr, delay := p.Posts, p.Err, p.Delay
	p.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, &scraper.FetchError{Platform: req.Platform, Query: req.Query, Err: ctx.Err()}
		}
	}

	if fetchErr != nil {
		if scraper.IsFetchError(fetchErr) {
			return nil, fetchErr
		}
		return nil, &scraper.FetchError{Platform: req.Platform, Query: req.Query, Err: fetchErr}
	}
	if posts == nil {
		posts = p.generate(req)
	}
	if req.Count > 0 && len(posts) > req.Count {
		posts = posts[:req.Count]
	}

	p.logger.Debug("mock provider returned posts", "query", req.Query, "count", len(posts))
	return posts, nil
}

// CallCount returns the number of FetchPosts calls so far.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Calls
}

func (p *Provider) generate(req scraper.FetchRequest) []domain.Post {
	query := scraper.NormalizeQuery(req.Query)
	h := fnv.New64a()
	_, _ = h.Write([]byte(query))
	seed := h.Sum64()

	n := req.Count
	if n <= 0 {
		n = 5
	}

	base := p.now().Truncate(24 * time.Hour)
	posts := make([]domain.Post, 0, n)
	for i := 0; i < n; i++ {
		v := seed>>uint(i%48) ^ uint64(i*7919)
		views := int64(v%90_000) + 100
		likes := views / int64(10+v%40)
		comments := likes / int64(5+v%10)
		posted := base.Add(-time.Duration(i) * 36 * time.Hour)
		if !req.NewerThan.IsZero() && posted.Before(req.NewerThan) {
			break
		}
		posts = append(posts, domain.Post{
			ID:            fmt.Sprintf("%s-%d", query, i+1),
			OwnerUsername: query,
			Caption:       fmt.Sprintf("Post %d from %s", i+1, query),
			URL:           fmt.Sprintf("https://www.%s.com/%s/%d", req.Platform, query, i+1),
			Timestamp:     posted,
			Views:         views,
			Plays:         views + int64(v%5_000),
			Likes:         likes,
			Comments:      comments,
			Engagement:    scraper.Engagement(views, likes, comments, 0),
			Duration:      float64(5 + v%85),
		})
	}
	return posts
}
