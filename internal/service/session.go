// Package service contains the business logic layer.
//
// Services orchestrate interactions between repositories, external APIs,
// and domain logic. They are responsible for:
// - Input validation
// - Business rule enforcement
// - Gating decisions (tier, quota, lockout)
// - Error translation (database errors -> domain errors)
package service

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/DukeRupert/reelscout/internal/domain"
	"github.com/DukeRupert/reelscout/internal/repository"
)

// SessionRepository is the subset of repository.Queries used for sessions.
type SessionRepository interface {
	GetSessionWithUser(ctx context.Context, arg repository.GetSessionWithUserParams) (repository.GetSessionWithUserRow, error)
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// SessionService resolves bearer tokens to users. Tokens are issued by the
// identity provider; this service only looks them up.
type SessionService interface {
	// Authenticate returns the user owning token.
	// Returns domain.EUNAUTHORIZED for unknown or expired tokens.
	Authenticate(ctx context.Context, token string) (*domain.User, error)

	// PurgeExpired deletes sessions that have expired.
	PurgeExpired(ctx context.Context) (int64, error)
}

type sessionService struct {
	repo   SessionRepository
	logger *slog.Logger
	now    func() time.Time
}

// NewSessionService creates a new SessionService.
func NewSessionService(repo SessionRepository, logger *slog.Logger) SessionService {
	return &sessionService{repo: repo, logger: logger, now: time.Now}
}

func (s *sessionService) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	const op = "session.authenticate"

	token = strings.TrimSpace(token)
	if token == "" {
		return nil, domain.Unauthorized(op, "Authentication required.")
	}

	row, err := s.repo.GetSessionWithUser(ctx, repository.GetSessionWithUserParams{
		TokenHash: hashSessionToken(token),
		Now:       s.now(),
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.Unauthorized(op, "Your session has expired. Please sign in again.")
	}
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load session")
	}

	return &domain.User{
		ID:               row.UserID,
		Email:            row.Email,
		Name:             domain.NullStringValue(row.Name),
		StripeCustomerID: domain.NullStringValue(row.StripeCustomerID),
		CreatedAt:        row.UserCreatedAt,
	}, nil
}

func (s *sessionService) PurgeExpired(ctx context.Context) (int64, error) {
	const op = "session.purge_expired"

	n, err := s.repo.DeleteExpiredSessions(ctx, s.now())
	if err != nil {
		return 0, domain.Internal(err, op, "failed to delete expired sessions")
	}
	if n > 0 {
		s.logger.Info("purged expired sessions", "count", n)
	}
	return n, nil
}

// hashSessionToken returns the hex SHA-256 of a bearer token. Only hashes are
// stored, so a leaked sessions table cannot be replayed.
func hashSessionToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
