package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/DukeRupert/reelscout/internal/domain"
	"github.com/DukeRupert/reelscout/internal/repository"
)

// UserRepository is the subset of repository.Queries used by UserService.
type UserRepository interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (repository.User, error)
	UpdateUserStripeCustomer(ctx context.Context, arg repository.UpdateUserStripeCustomerParams) error
}

// UserService reads users and links them to billing customers.
type UserService interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)

	// UpdateStripeCustomer stores the billing customer created for the user.
	UpdateStripeCustomer(ctx context.Context, userID uuid.UUID, stripeCustomerID string) error
}

type userService struct {
	repo   UserRepository
	logger *slog.Logger
}

// NewUserService creates a new UserService.
func NewUserService(repo UserRepository, logger *slog.Logger) UserService {
	return &userService{repo: repo, logger: logger}
}

func (s *userService) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	const op = "user.get"

	u, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "user", id.String())
		}
		return nil, domain.Internal(err, op, "Failed to retrieve user")
	}
	return repoUserToDomain(u), nil
}

func (s *userService) UpdateStripeCustomer(ctx context.Context, userID uuid.UUID, stripeCustomerID string) error {
	const op = "user.update_stripe_customer"

	err := s.repo.UpdateUserStripeCustomer(ctx, repository.UpdateUserStripeCustomerParams{
		ID:               userID,
		StripeCustomerID: domain.ToNullString(stripeCustomerID),
	})
	if err != nil {
		return domain.Internal(err, op, "Failed to update Stripe customer ID")
	}

	s.logger.Info("stripe customer ID updated", "user_id", userID, "stripe_customer_id", stripeCustomerID)
	return nil
}

func repoUserToDomain(u repository.User) *domain.User {
	return &domain.User{
		ID:               u.ID,
		Email:            u.Email,
		Name:             domain.NullStringValue(u.Name),
		StripeCustomerID: domain.NullStringValue(u.StripeCustomerID),
		CreatedAt:        u.CreatedAt,
	}
}
