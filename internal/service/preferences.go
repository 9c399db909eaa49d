package service

import (
	"context"
	"errors"
	"log/slog"
	"regexp"

	"github.com/google/uuid"

	"github.com/DukeRupert/reelscout/internal/domain"
	"github.com/DukeRupert/reelscout/internal/kv"
)

const maxPreferenceSize = 4 * 1024

var preferenceName = regexp.MustCompile(`^[a-z][a-z0-9_-]{0,63}$`)

// PreferencesService stores small per-user UI values such as whether the
// recent-searches panel is collapsed. Values are opaque JSON documents.
type PreferencesService interface {
	Get(ctx context.Context, userID uuid.UUID, name string) ([]byte, error)
	Put(ctx context.Context, userID uuid.UUID, name string, value []byte) error
}

type preferencesService struct {
	store  kv.Store
	logger *slog.Logger
}

// NewPreferencesService creates a new PreferencesService.
func NewPreferencesService(store kv.Store, logger *slog.Logger) PreferencesService {
	return &preferencesService{store: store, logger: logger}
}

func preferenceKey(userID uuid.UUID, name string) string {
	return "pref:" + userID.String() + ":" + name
}

func (s *preferencesService) Get(ctx context.Context, userID uuid.UUID, name string) ([]byte, error) {
	const op = "preferences.get"

	if !preferenceName.MatchString(name) {
		return nil, domain.Invalid(op, "Invalid preference name.")
	}
	v, err := s.store.Get(ctx, preferenceKey(userID, name))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, domain.NotFound(op, "preference", name)
	}
	if err != nil {
		return nil, domain.Internal(err, op, "failed to read preference")
	}
	return v, nil
}

func (s *preferencesService) Put(ctx context.Context, userID uuid.UUID, name string, value []byte) error {
	const op = "preferences.put"

	if !preferenceName.MatchString(name) {
		return domain.Invalid(op, "Invalid preference name.")
	}
	if len(value) > maxPreferenceSize {
		return domain.Errorf(domain.ETOOLARGE, op, "Preference values are limited to %d bytes.", maxPreferenceSize)
	}
	// Zero TTL keeps the store's default retention.
	if err := s.store.Set(ctx, preferenceKey(userID, name), value, 0); err != nil {
		return domain.Internal(err, op, "failed to save preference")
	}
	return nil
}
