package worker

import (
	"context"
	"log/slog"

	"github.com/DukeRupert/reelscout/internal/service"
)

// SessionPurgeTask deletes expired sessions.
type SessionPurgeTask struct {
	sessions service.SessionService
	logger   *slog.Logger
}

// NewSessionPurgeTask creates a SessionPurgeTask.
func NewSessionPurgeTask(sessions service.SessionService, logger *slog.Logger) *SessionPurgeTask {
	return &SessionPurgeTask{sessions: sessions, logger: logger}
}

// Name implements Task.
func (t *SessionPurgeTask) Name() string { return "purge_expired_sessions" }

// Run implements Task.
func (t *SessionPurgeTask) Run(ctx context.Context) error {
	n, err := t.sessions.PurgeExpired(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		t.logger.Info("purged expired sessions", "count", n)
	}
	return nil
}
