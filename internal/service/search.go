package service

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/DukeRupert/reelscout/internal/domain"
	"github.com/DukeRupert/reelscout/internal/metrics"
	"github.com/DukeRupert/reelscout/internal/ratelimit"
	"github.com/DukeRupert/reelscout/internal/scraper"
)

// SearchRequest is a user's request to fetch an account's recent posts.
type SearchRequest struct {
	Query    string          `json:"query"`
	Platform domain.Platform `json:"platform"`

	// Count and NewerThan are search settings. Count is clamped to the
	// tier's maximum; NewerThan is ignored for tiers without search settings.
	Count     int    `json:"count"`
	NewerThan string `json:"newerThan"`

	ResultsQuery
}

// SearchResult is the first view of a completed search.
type SearchResult struct {
	History  *domain.SearchHistory   `json:"history,omitempty"`
	View     ResultsView             `json:"view"`
	Usage    domain.Usage            `json:"usage"`
	Tier     domain.SubscriptionTier `json:"-"`
	Degraded bool                    `json:"degraded"`
}

// SearchService runs gated searches.
type SearchService interface {
	// Search fetches posts for req.Query. It is refused while another search
	// of the same user is running (ECONFLICT), while the user is locked out
	// (ERATELIMIT) and when today's search quota is used up (EPAYMENT).
	// Fetch failures return EUNAVAILABLE and consume no quota.
	Search(ctx context.Context, user *domain.User, req SearchRequest) (*SearchResult, error)

	// LockStatus reports the user's search lockout.
	LockStatus(ctx context.Context, userID uuid.UUID) (ratelimit.Status, error)

	// LockKey is the rate-limit key guarding the user's searches.
	LockKey(userID uuid.UUID) string
}

// SearchConfig configures SearchService.
type SearchConfig struct {
	// Location interprets user-typed dates. Defaults to time.Local.
	Location *time.Location
}

type searchService struct {
	provider      scraper.Provider
	limiter       *ratelimit.Limiter
	subscriptions SubscriptionService
	usage         UsageService
	history       HistoryService
	location      *time.Location
	logger        *slog.Logger

	mu       sync.Mutex
	inflight map[uuid.UUID]struct{}
}

// NewSearchService creates a new SearchService.
func NewSearchService(
	provider scraper.Provider,
	limiter *ratelimit.Limiter,
	subscriptions SubscriptionService,
	usage UsageService,
	history HistoryService,
	cfg SearchConfig,
	logger *slog.Logger,
) SearchService {
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	return &searchService{
		provider:      provider,
		limiter:       limiter,
		subscriptions: subscriptions,
		usage:         usage,
		history:       history,
		location:      loc,
		logger:        logger,
		inflight:      make(map[uuid.UUID]struct{}),
	}
}

func (s *searchService) LockKey(userID uuid.UUID) string {
	return "search:" + userID.String()
}

func (s *searchService) LockStatus(ctx context.Context, userID uuid.UUID) (ratelimit.Status, error) {
	return s.limiter.CheckStatus(ctx, s.LockKey(userID))
}

// acquire marks a search in flight for the user. The returned func releases it.
func (s *searchService) acquire(userID uuid.UUID) (func(), bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[userID]; busy {
		return nil, false
	}
	s.inflight[userID] = struct{}{}
	return func() {
		s.mu.Lock()
		delete(s.inflight, userID)
		s.mu.Unlock()
	}, true
}

func (s *searchService) Search(ctx context.Context, user *domain.User, req SearchRequest) (*SearchResult, error) {
	const op = "search.search"

	query := scraper.NormalizeQuery(req.Query)
	if query == "" {
		return nil, domain.Invalid(op, "Enter an account name to search.")
	}
	if req.Platform == "" {
		req.Platform = domain.PlatformInstagram
	}
	if !req.Platform.Valid() {
		return nil, domain.Invalid(op, "Unsupported platform.")
	}

	release, ok := s.acquire(user.ID)
	if !ok {
		return nil, domain.Conflict(op, "A search is already running.")
	}
	defer release()

	key := s.LockKey(user.ID)
	status, err := s.limiter.CheckStatus(ctx, key)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to check lockout")
	}
	if status.Locked {
		metrics.SearchCompleted(string(req.Platform), "locked", 0)
		return nil, domain.LockedOut(op, status.RemainingSeconds())
	}

	res := s.subscriptions.Resolve(ctx, user)
	tier := res.Tier

	if _, err := s.usage.Check(ctx, user.ID, tier, domain.QuotaSearches); err != nil {
		metrics.SearchCompleted(string(req.Platform), "denied", 0)
		return nil, err
	}

	if _, err := s.limiter.RecordAttempt(ctx, key); err != nil {
		s.logger.Warn("failed to record search attempt", "user_id", user.ID, "error", err)
	}

	fetch := scraper.FetchRequest{
		Query:    query,
		Platform: req.Platform,
		Count:    tier.ClampFetchSize(req.Count),
	}
	if tier.Can(domain.FeatureSearchSettings) && strings.TrimSpace(req.NewerThan) != "" {
		if since, ok := domain.ParseDate(req.NewerThan, s.location); ok {
			fetch.NewerThan = since
		}
	}

	start := time.Now()
	posts, err := s.provider.FetchPosts(ctx, fetch)
	if err != nil {
		metrics.SearchCompleted(string(req.Platform), "failed", time.Since(start))
		s.logger.Warn("search fetch failed",
			"user_id", user.ID,
			"query", query,
			"platform", req.Platform,
			"error", err,
		)
		return nil, domain.Unavailable(err, op, "Could not fetch posts for this account. Please try again.")
	}
	metrics.SearchCompleted(string(req.Platform), "ok", time.Since(start))

	if err := s.usage.Record(ctx, user.ID, domain.QuotaSearches); err != nil {
		return nil, err
	}
	usage, err := s.usage.Meter(ctx, user.ID, tier, domain.QuotaSearches)
	if err != nil {
		s.logger.Warn("failed to re-meter usage after search", "user_id", user.ID, "error", err)
	}

	result := &SearchResult{
		View:     BuildView(posts, req.ResultsQuery, s.location),
		Usage:    usage,
		Tier:     tier,
		Degraded: res.Degraded,
	}

	if tier.Can(domain.FeatureHistory) {
		h, err := s.history.Save(ctx, user.ID, query, req.Platform, posts)
		if err != nil {
			s.logger.Error("failed to save search history", "user_id", user.ID, "error", err)
		} else {
			result.History = h
		}
	}

	s.logger.Info("search completed",
		"user_id", user.ID,
		"query", query,
		"platform", req.Platform,
		"tier", tier.ID,
		"fetched", len(posts),
	)
	return result, nil
}
