package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/DukeRupert/reelscout/internal/domain"
	"github.com/DukeRupert/reelscout/internal/metrics"
	"github.com/DukeRupert/reelscout/internal/repository"
)

// UsageRepository counts and records metered actions.
type UsageRepository interface {
	CountUsageEventsInPeriod(ctx context.Context, arg repository.CountUsageEventsInPeriodParams) (int64, error)
	CreateUsageEvent(ctx context.Context, arg repository.CreateUsageEventParams) (repository.UsageEvent, error)
}

// UsageSummary is a user's tier and today's usage of every quota dimension.
type UsageSummary struct {
	Tier     domain.SubscriptionTier
	Status   domain.SubscriptionStatus
	Searches domain.Usage
	Clicks   domain.Usage
	Degraded bool
}

// UsageService meters daily usage against the tier quota.
type UsageService interface {
	// Meter returns today's usage of dimension d for the given tier.
	// Returns domain.EINTERNAL when usage cannot be counted.
	Meter(ctx context.Context, userID uuid.UUID, tier domain.SubscriptionTier, d domain.QuotaDimension) (domain.Usage, error)

	// Check returns domain.EPAYMENT when the quota for d is exhausted.
	Check(ctx context.Context, userID uuid.UUID, tier domain.SubscriptionTier, d domain.QuotaDimension) (domain.Usage, error)

	// Record logs one consumed action of dimension d.
	Record(ctx context.Context, userID uuid.UUID, d domain.QuotaDimension) error

	// Summary resolves the tier and counts both dimensions concurrently.
	Summary(ctx context.Context, user *domain.User) (*UsageSummary, error)

	// ConsumeClick checks and records one click, returning the updated usage.
	ConsumeClick(ctx context.Context, user *domain.User) (domain.Usage, error)
}

type usageService struct {
	repo          UsageRepository
	subscriptions SubscriptionService
	logger        *slog.Logger
	now           func() time.Time
}

// NewUsageService creates a new UsageService.
func NewUsageService(repo UsageRepository, subscriptions SubscriptionService, logger *slog.Logger) UsageService {
	return &usageService{
		repo:          repo,
		subscriptions: subscriptions,
		logger:        logger,
		now:           time.Now,
	}
}

func (s *usageService) Meter(ctx context.Context, userID uuid.UUID, tier domain.SubscriptionTier, d domain.QuotaDimension) (domain.Usage, error) {
	const op = "usage.meter"

	start, end := domain.DayWindow(s.now())
	if tier.Quota(d) == domain.Unlimited {
		return domain.NewUsage(d, 0, tier, start, end), nil
	}

	used, err := s.repo.CountUsageEventsInPeriod(ctx, repository.CountUsageEventsInPeriodParams{
		UserID:     userID,
		ActionType: string(domain.ActionForDimension(d)),
		Start:      start,
		End:        end,
	})
	if err != nil {
		return domain.Usage{}, domain.Internal(err, op, "failed to count usage")
	}
	return domain.NewUsage(d, used, tier, start, end), nil
}

func (s *usageService) Check(ctx context.Context, userID uuid.UUID, tier domain.SubscriptionTier, d domain.QuotaDimension) (domain.Usage, error) {
	const op = "usage.check"

	usage, err := s.Meter(ctx, userID, tier, d)
	if err != nil {
		return domain.Usage{}, err
	}
	if usage.HasReachedLimit {
		s.logger.Info("quota exceeded",
			"user_id", userID,
			"tier", tier.ID,
			"dimension", d,
			"used", usage.Used,
			"limit", usage.Quota,
		)
		metrics.QuotaDenied(string(tier.ID), string(d))
		return usage, domain.QuotaExceeded(op, d, usage.Used, usage.Quota)
	}
	return usage, nil
}

func (s *usageService) Record(ctx context.Context, userID uuid.UUID, d domain.QuotaDimension) error {
	const op = "usage.record"

	_, err := s.repo.CreateUsageEvent(ctx, repository.CreateUsageEventParams{
		ID:         uuid.New(),
		UserID:     userID,
		ActionType: string(domain.ActionForDimension(d)),
		CreatedAt:  s.now(),
	})
	if err != nil {
		return domain.Internal(err, op, "failed to record usage")
	}
	return nil
}

func (s *usageService) Summary(ctx context.Context, user *domain.User) (*UsageSummary, error) {
	res := s.subscriptions.Resolve(ctx, user)

	var searches, clicks domain.Usage
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		searches, err = s.Meter(gctx, user.ID, res.Tier, domain.QuotaSearches)
		return err
	})
	g.Go(func() error {
		var err error
		clicks, err = s.Meter(gctx, user.ID, res.Tier, domain.QuotaClicks)
		return err
	})

	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Warn("usage count failed, reporting exhausted free quota", "user_id", user.ID, "error", err)
		start, end := domain.DayWindow(s.now())
		return &UsageSummary{
			Tier:     domain.FreeTier,
			Status:   res.Status,
			Searches: exhaustedUsage(domain.QuotaSearches, start, end),
			Clicks:   exhaustedUsage(domain.QuotaClicks, start, end),
			Degraded: true,
		}, nil
	}

	return &UsageSummary{
		Tier:     res.Tier,
		Status:   res.Status,
		Searches: searches,
		Clicks:   clicks,
		Degraded: res.Degraded,
	}, nil
}

// exhaustedUsage is the Free quota of d shown as used up. Check refuses
// actions while usage cannot be counted, so the summary must not offer any.
func exhaustedUsage(d domain.QuotaDimension, start, end time.Time) domain.Usage {
	return domain.NewUsage(d, int64(domain.FreeTier.Quota(d)), domain.FreeTier, start, end)
}

func (s *usageService) ConsumeClick(ctx context.Context, user *domain.User) (domain.Usage, error) {
	res := s.subscriptions.Resolve(ctx, user)

	usage, err := s.Check(ctx, user.ID, res.Tier, domain.QuotaClicks)
	if err != nil {
		return usage, err
	}
	if err := s.Record(ctx, user.ID, domain.QuotaClicks); err != nil {
		return usage, err
	}

	start, end := usage.PeriodStart, usage.PeriodEnd
	return domain.NewUsage(domain.QuotaClicks, usage.Used+1, res.Tier, start, end), nil
}
