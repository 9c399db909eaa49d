package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/DukeRupert/reelscout/internal/domain"
	"github.com/DukeRupert/reelscout/internal/kv"
	"github.com/DukeRupert/reelscout/internal/metrics"
	"github.com/DukeRupert/reelscout/internal/repository"
)

// DefaultStatusCacheTTL bounds how stale a cached subscription status may be
// when no webhook arrives to invalidate it.
const DefaultStatusCacheTTL = 5 * time.Minute

// StatusLookup reports a customer's subscription state. billing.Service satisfies it.
type StatusLookup interface {
	SubscriptionStatus(ctx context.Context, email string) (domain.SubscriptionStatus, error)
}

// CustomerRepository finds users by their billing customer ID.
type CustomerRepository interface {
	GetUserByStripeCustomerID(ctx context.Context, stripeCustomerID sql.NullString) (repository.User, error)
}

// TierResolution is the outcome of resolving a user's tier. Degraded is set
// when the status lookup failed and the Free tier was assumed.
type TierResolution struct {
	Tier     domain.SubscriptionTier
	Status   domain.SubscriptionStatus
	Degraded bool
}

// SubscriptionService resolves the tier a user is entitled to.
type SubscriptionService interface {
	// Resolve never fails: a lookup error yields the Free tier with Degraded set.
	Resolve(ctx context.Context, user *domain.User) TierResolution

	// Status returns the billing provider's view of the user's subscription.
	Status(ctx context.Context, user *domain.User) (domain.SubscriptionStatus, error)

	// Invalidate drops any cached status for the user.
	Invalidate(ctx context.Context, userID uuid.UUID)

	// InvalidateCustomer drops the cached status of the user owning customerID.
	InvalidateCustomer(ctx context.Context, customerID string) error

	// Tiers returns the configured tier table.
	Tiers() *domain.TierTable
}

type subscriptionService struct {
	lookup    StatusLookup
	customers CustomerRepository
	cache     kv.Store
	cacheTTL  time.Duration
	tiers     *domain.TierTable
	logger    *slog.Logger
}

// NewSubscriptionService creates a new SubscriptionService. cache may be nil
// to disable caching.
func NewSubscriptionService(lookup StatusLookup, customers CustomerRepository, cache kv.Store, tiers *domain.TierTable, logger *slog.Logger) SubscriptionService {
	return &subscriptionService{
		lookup:    lookup,
		customers: customers,
		cache:     cache,
		cacheTTL:  DefaultStatusCacheTTL,
		tiers:     tiers,
		logger:    logger,
	}
}

func statusCacheKey(userID uuid.UUID) string {
	return "subscription:" + userID.String()
}

func (s *subscriptionService) Tiers() *domain.TierTable {
	return s.tiers
}

func (s *subscriptionService) Resolve(ctx context.Context, user *domain.User) TierResolution {
	status, err := s.Status(ctx, user)
	if err != nil {
		s.logger.Warn("subscription lookup failed, assuming free tier",
			"user_id", user.ID,
			"error", err,
		)
		metrics.TierResolved(string(domain.TierFree), true)
		return TierResolution{Tier: domain.FreeTier, Degraded: true}
	}

	tier := s.tiers.Resolve(status)
	if status.Subscribed && tier.IsFree() {
		s.logger.Warn("active subscription on unknown price", "user_id", user.ID, "price_id", status.PriceID)
	}
	metrics.TierResolved(string(tier.ID), false)
	return TierResolution{Tier: tier, Status: status}
}

func (s *subscriptionService) Status(ctx context.Context, user *domain.User) (domain.SubscriptionStatus, error) {
	const op = "subscription.status"

	if user == nil || user.Email == "" {
		return domain.SubscriptionStatus{}, domain.Unauthorized(op, "Authentication required.")
	}
	if s.lookup == nil {
		return domain.SubscriptionStatus{}, nil
	}

	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, statusCacheKey(user.ID)); err == nil {
			var cached domain.SubscriptionStatus
			if json.Unmarshal(raw, &cached) == nil {
				return cached, nil
			}
		} else if !errors.Is(err, kv.ErrNotFound) {
			s.logger.Warn("subscription cache read failed", "user_id", user.ID, "error", err)
		}
	}

	status, err := s.lookup.SubscriptionStatus(ctx, user.Email)
	if err != nil {
		return domain.SubscriptionStatus{}, domain.Internal(err, op, "failed to fetch subscription status")
	}

	if s.cache != nil {
		if raw, err := json.Marshal(status); err == nil {
			if err := s.cache.Set(ctx, statusCacheKey(user.ID), raw, s.cacheTTL); err != nil {
				s.logger.Warn("subscription cache write failed", "user_id", user.ID, "error", err)
			}
		}
	}
	return status, nil
}

func (s *subscriptionService) Invalidate(ctx context.Context, userID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, statusCacheKey(userID)); err != nil {
		s.logger.Warn("subscription cache delete failed", "user_id", userID, "error", err)
	}
}

func (s *subscriptionService) InvalidateCustomer(ctx context.Context, customerID string) error {
	const op = "subscription.invalidate_customer"

	if customerID == "" {
		return domain.Invalid(op, "customer ID is required")
	}
	user, err := s.customers.GetUserByStripeCustomerID(ctx, domain.ToNullString(customerID))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NotFound(op, "customer", customerID)
	}
	if err != nil {
		return domain.Internal(err, op, "failed to look up customer")
	}

	s.Invalidate(ctx, user.ID)
	return nil
}
