// Package apify implements scraper.Provider against Apify actors that run
// synchronously and return their dataset items.
package apify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"golang.org/x/time/rate"

	"github.com/DukeRupert/reelscout/internal/domain"
	"github.com/DukeRupert/reelscout/internal/metrics"
	"github.com/DukeRupert/reelscout/internal/scraper"
)

const (
	// DefaultBaseURL is the Apify API root.
	DefaultBaseURL = "https://api.apify.com"

	// DefaultInstagramActor scrapes Instagram profiles and posts.
	DefaultInstagramActor = "apify~instagram-scraper"

	// DefaultTikTokActor scrapes TikTok profiles.
	DefaultTikTokActor = "clockworks~tiktok-scraper"

	// maxResponseSize bounds the dataset body (10MB).
	maxResponseSize = 10 * 1024 * 1024
)

// Config contains configuration for the Apify provider.
type Config struct {
	BaseURL        string
	Token          string
	InstagramActor string
	TikTokActor    string
	ProviderConfig scraper.ProviderConfig
}

// Provider implements scraper.Provider using Apify actors.
type Provider struct {
	config   Config
	client   *http.Client
	executor failsafe.Executor[*http.Response]
	breaker  circuitbreaker.CircuitBreaker[*http.Response]
	limiter  *rate.Limiter
	logger   *slog.Logger
}

// New creates a new Apify provider.
func New(config Config, logger *slog.Logger) (*Provider, error) {
	if config.Token == "" {
		return nil, fmt.Errorf("apify API token is required")
	}

	// Set defaults
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.InstagramActor == "" {
		config.InstagramActor = DefaultInstagramActor
	}
	if config.TikTokActor == "" {
		config.TikTokActor = DefaultTikTokActor
	}
	pc := &config.ProviderConfig
	if pc.MaxRetries == 0 {
		pc.MaxRetries = 2
	}
	if pc.RetryBaseDelay == 0 {
		pc.RetryBaseDelay = 1 * time.Second
	}
	if pc.RetryMaxDelay == 0 {
		pc.RetryMaxDelay = 10 * time.Second
	}
	if pc.RetryMaxDelay < pc.RetryBaseDelay {
		pc.RetryMaxDelay = pc.RetryBaseDelay
	}
	if pc.RequestTimeout == 0 {
		pc.RequestTimeout = 120 * time.Second
	}
	if pc.RequestsPerSecond <= 0 {
		pc.RequestsPerSecond = 1
	}
	if pc.Burst <= 0 {
		pc.Burst = 2
	}
	if pc.CircuitBreakerDelay == 0 {
		pc.CircuitBreakerDelay = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	retry := retrypolicy.NewBuilder[*http.Response]().
		WithBackoff(pc.RetryBaseDelay, pc.RetryMaxDelay).
		WithMaxRetries(pc.MaxRetries).
		WithJitterFactor(0.1).
		HandleIf(shouldRetry).
		Build()

	breaker := circuitbreaker.NewBuilder[*http.Response]().
		WithFailureThresholdRatio(5, 10).
		WithDelay(pc.CircuitBreakerDelay).
		WithSuccessThreshold(1).
		HandleIf(func(resp *http.Response, err error) bool {
			return err != nil || (resp != nil && resp.StatusCode >= 500)
		}).
		OnStateChanged(func(event circuitbreaker.StateChangedEvent) {
			logger.Warn("apify circuit breaker state change",
				"from_state", stateName(event.OldState),
				"to_state", stateName(event.NewState),
			)
		}).
		Build()

	return &Provider{
		config:   config,
		client:   &http.Client{Timeout: pc.RequestTimeout},
		executor: failsafe.With(retry, breaker),
		breaker:  breaker,
		limiter:  rate.NewLimiter(rate.Limit(pc.RequestsPerSecond), pc.Burst),
		logger:   logger,
	}, nil
}

// CircuitOpen reports whether the breaker is currently rejecting calls.
func (p *Provider) CircuitOpen() bool {
	return p.breaker.IsOpen()
}

func stateName(s circuitbreaker.State) string {
	switch s {
	case circuitbreaker.ClosedState:
		return "closed"
	case circuitbreaker.HalfOpenState:
		return "half-open"
	case circuitbreaker.OpenState:
		return "open"
	default:
		return "unknown"
	}
}

// shouldRetry retries on network errors, server errors and rate limits.
func shouldRetry(resp *http.Response, err error) bool {
	if err != nil {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	if resp == nil {
		return true
	}
	switch resp.StatusCode {
	case http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout,
		http.StatusTooManyRequests:
		return true
	default:
		return false
	}
}

// FetchPosts implements scraper.Provider.
func (p *Provider) FetchPosts(ctx context.Context, req scraper.FetchRequest) ([]domain.Post, error) {
	query := scraper.NormalizeQuery(req.Query)
	fail := func(status int, err error) error {
		return &scraper.FetchError{Platform: req.Platform, Query: query, StatusCode: status, Err: err}
	}

	if query == "" {
		return nil, fail(0, errors.New("empty account name"))
	}

	actor, body, err := p.buildInput(query, req)
	if err != nil {
		return nil, fail(0, err)
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fail(0, err)
	}

	endpoint := fmt.Sprintf("%s/v2/acts/%s/run-sync-get-dataset-items?format=json&clean=true",
		p.config.BaseURL, url.PathEscape(actor))

	resp, err := p.executor.WithContext(ctx).Get(func() (*http.Response, error) {
		return p.attempt(ctx, endpoint, body, req.Platform)
	})
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		} else if ee := retrypolicy.AsExceededError(err); ee != nil {
			if last, ok := ee.LastResult.(*http.Response); ok && last != nil {
				status = last.StatusCode
			}
		}
		switch {
		case errors.Is(err, circuitbreaker.ErrOpen):
			err = fmt.Errorf("%w: circuit open", scraper.ErrUnavailable)
		case status != 0:
			err = fmt.Errorf("%w: %v", scraper.ClassifyStatus(status), err)
		}
		return nil, fail(status, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_ = resp.Body.Close()
		return nil, fail(resp.StatusCode, scraper.ClassifyStatus(resp.StatusCode))
	}
	defer resp.Body.Close()

	posts, err := decodeItems(io.LimitReader(resp.Body, maxResponseSize), req.Platform)
	if err != nil {
		if !errors.Is(err, scraper.ErrNotFound) {
			err = fmt.Errorf("%w: %v", scraper.ErrBadResponse, err)
		}
		return nil, fail(resp.StatusCode, err)
	}
	if req.Count > 0 && len(posts) > req.Count {
		posts = posts[:req.Count]
	}

	metrics.ScraperPostsFetched.WithLabelValues(string(req.Platform)).Add(float64(len(posts)))
	p.logger.Debug("fetched posts",
		"platform", req.Platform,
		"query", query,
		"count", len(posts),
	)
	return posts, nil
}

// attempt performs one HTTP call. Responses that will be retried or rejected
// have their bodies drained and closed here so no connection is leaked.
func (p *Provider) attempt(ctx context.Context, endpoint string, body []byte, platform domain.Platform) (*http.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.config.Token)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		metrics.ScraperRequest(string(platform), "error", 0)
		return nil, err
	}

	metrics.ScraperRequest(string(platform), fmt.Sprintf("%dxx", resp.StatusCode/100), 0)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		_ = resp.Body.Close()
		p.logger.Warn("apify request failed",
			"platform", platform,
			"status", resp.StatusCode,
		)
	}
	return resp, nil
}

// instagramInput is the actor input for profile post scraping.
type instagramInput struct {
	DirectURLs         []string `json:"directUrls"`
	ResultsType        string   `json:"resultsType"`
	ResultsLimit       int      `json:"resultsLimit"`
	SearchType         string   `json:"searchType"`
	SearchLimit        int      `json:"searchLimit"`
	AddParentData      bool     `json:"addParentData"`
	OnlyPostsNewerThan string   `json:"onlyPostsNewerThan,omitempty"`
}

// tiktokInput is the actor input for profile video scraping.
type tiktokInput struct {
	Profiles              []string `json:"profiles"`
	ResultsPerPage        int      `json:"resultsPerPage"`
	OldestPostDateUnified string   `json:"oldestPostDateUnified,omitempty"`
	ShouldDownloadVideos  bool     `json:"shouldDownloadVideos"`
}

func (p *Provider) buildInput(query string, req scraper.FetchRequest) (string, []byte, error) {
	var since string
	if !req.NewerThan.IsZero() {
		since = req.NewerThan.Format("2006-01-02")
	}

	switch req.Platform {
	case domain.PlatformInstagram:
		body, err := json.Marshal(instagramInput{
			DirectURLs:         []string{"https://www.instagram.com/" + query + "/"},
			ResultsType:        "posts",
			ResultsLimit:       req.Count,
			SearchType:         "user",
			SearchLimit:        1,
			OnlyPostsNewerThan: since,
		})
		return p.config.InstagramActor, body, err
	case domain.PlatformTikTok:
		body, err := json.Marshal(tiktokInput{
			Profiles:              []string{query},
			ResultsPerPage:        req.Count,
			OldestPostDateUnified: since,
		})
		return p.config.TikTokActor, body, err
	default:
		return "", nil, fmt.Errorf("unsupported platform %q", req.Platform)
	}
}
