// Package ratelimit implements the per-key lockout state machine that guards
// repeated actions such as searches.
//
// A key moves through three states:
//
//	Clear    no record is stored
//	Tracking attempts < MaxAttempts within the window
//	Locked   attempts >= MaxAttempts and the window has not elapsed
//
// The window starts at the first recorded attempt and is never extended by
// later attempts. Once LockoutDuration has elapsed the record is discarded and
// the key is Clear again. Every operation checks the elapsed time itself, so
// correctness never depends on a background tick having run.
package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/DukeRupert/reelscout/internal/kv"
	"github.com/DukeRupert/reelscout/internal/metrics"
)

// Defaults used when Config leaves a field empty.
const (
	DefaultMaxAttempts     = 5
	DefaultLockoutDuration = 60 * time.Second
)

// Clock supplies the current time. Tests substitute a controllable clock.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now() }

// Config configures a Limiter.
type Config struct {
	// Scope names the guarded action ("search"). It prefixes stored keys and
	// labels metrics.
	Scope           string
	MaxAttempts     int
	LockoutDuration time.Duration
}

// record is the persisted form of a key's state.
type record struct {
	Attempts       int   `json:"attempts"`
	FirstAttemptAt int64 `json:"timestamp"` // unix milliseconds
}

// Status is the observable state of a key at a point in time.
type Status struct {
	Key            string        `json:"key"`
	Attempts       int           `json:"attempts"`
	FirstAttemptAt time.Time     `json:"firstAttemptAt,omitzero"`
	Locked         bool          `json:"locked"`
	RemainingLock  time.Duration `json:"-"`
}

// RemainingSeconds returns the lock time left rounded up to whole seconds,
// or 0 when the key is not locked.
func (s Status) RemainingSeconds() int {
	if !s.Locked || s.RemainingLock <= 0 {
		return 0
	}
	return int(math.Ceil(s.RemainingLock.Seconds()))
}

// MarshalJSON adds the remaining lock time in milliseconds and seconds.
func (s Status) MarshalJSON() ([]byte, error) {
	type alias Status
	return json.Marshal(struct {
		alias
		RemainingLockMs  int64 `json:"remainingLockMs"`
		RemainingSeconds int   `json:"remainingSeconds"`
	}{
		alias:            alias(s),
		RemainingLockMs:  s.RemainingLock.Milliseconds(),
		RemainingSeconds: s.RemainingSeconds(),
	})
}

// Limiter is a lockout state machine over a kv.Store. It is safe for
// concurrent use. Attempts from several processes are counted exactly when
// the store implements kv.Updater, as kv.Redis does.
type Limiter struct {
	cfg    Config
	store  kv.Store
	clock  Clock
	logger *slog.Logger

	mu sync.Mutex
}

// New creates a Limiter. A nil clock uses SystemClock.
func New(cfg Config, store kv.Store, clock Clock, logger *slog.Logger) *Limiter {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.LockoutDuration <= 0 {
		cfg.LockoutDuration = DefaultLockoutDuration
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Limiter{cfg: cfg, store: store, clock: clock, logger: logger}
}

// Config returns the effective configuration.
func (l *Limiter) Config() Config {
	return l.cfg
}

func (l *Limiter) storeKey(key string) string {
	return "ratelimit:" + l.cfg.Scope + ":" + key
}

// load returns the stored record. Missing, unreadable and malformed records
// all load as absent.
func (l *Limiter) load(ctx context.Context, key string) (record, bool) {
	data, err := l.store.Get(ctx, l.storeKey(key))
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			l.logger.Warn("rate limit record unreadable, treating as clear",
				"scope", l.cfg.Scope,
				"key", key,
				"error", err,
			)
		}
		return record{}, false
	}

	return l.decode(key, data)
}

// decode parses a stored record. Malformed records decode as absent.
func (l *Limiter) decode(key string, data []byte) (record, bool) {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil || rec.Attempts <= 0 || rec.FirstAttemptAt <= 0 {
		l.logger.Warn("rate limit record malformed, treating as clear",
			"scope", l.cfg.Scope,
			"key", key,
		)
		return record{}, false
	}
	return rec, true
}

// elapsed reports how long ago the window started, never negative.
func (l *Limiter) elapsed(rec record, now time.Time) time.Duration {
	d := now.Sub(time.UnixMilli(rec.FirstAttemptAt))
	if d < 0 {
		return 0
	}
	return d
}

func (l *Limiter) status(key string, rec record, now time.Time) Status {
	elapsed := l.elapsed(rec, now)
	s := Status{
		Key:            key,
		Attempts:       rec.Attempts,
		FirstAttemptAt: time.UnixMilli(rec.FirstAttemptAt),
	}
	if rec.Attempts >= l.cfg.MaxAttempts && elapsed < l.cfg.LockoutDuration {
		s.Locked = true
		s.RemainingLock = l.cfg.LockoutDuration - elapsed
	}
	return s
}

// RecordAttempt counts one attempt for key and returns the resulting status.
// An absent or elapsed record starts a fresh window with one attempt. While a
// key is locked further attempts are not counted. Stores implementing
// kv.Updater apply the count atomically across every process sharing them;
// other stores are consistent within this process only.
func (l *Limiter) RecordAttempt(ctx context.Context, key string) (Status, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	var (
		rec           record
		alreadyLocked bool
	)
	next := func(old []byte, found bool) ([]byte, time.Duration, error) {
		prev, ok := record{}, false
		if found {
			prev, ok = l.decode(key, old)
		}
		rec, alreadyLocked = l.nextRecord(prev, ok, now)
		data, err := json.Marshal(rec)
		if err != nil {
			return nil, 0, fmt.Errorf("encode rate limit record: %w", err)
		}
		return data, l.cfg.LockoutDuration - l.elapsed(rec, now), nil
	}

	if updater, ok := l.store.(kv.Updater); ok {
		if err := updater.Update(ctx, l.storeKey(key), next); err != nil {
			return Status{}, fmt.Errorf("store rate limit record: %w", err)
		}
	} else {
		prev, found := l.load(ctx, key)
		rec, alreadyLocked = l.nextRecord(prev, found, now)
		data, err := json.Marshal(rec)
		if err != nil {
			return Status{}, fmt.Errorf("encode rate limit record: %w", err)
		}
		ttl := l.cfg.LockoutDuration - l.elapsed(rec, now)
		if err := l.store.Set(ctx, l.storeKey(key), data, ttl); err != nil {
			return Status{}, fmt.Errorf("store rate limit record: %w", err)
		}
	}

	s := l.status(key, rec, now)
	if s.Locked && !alreadyLocked {
		metrics.LockoutStarted(l.cfg.Scope)
		l.logger.Info("rate limit lockout started",
			"scope", l.cfg.Scope,
			"key", key,
			"remaining_seconds", s.RemainingSeconds(),
		)
	}
	return s, nil
}

// nextRecord applies one attempt to prev. ok is false when no usable record
// was stored.
func (l *Limiter) nextRecord(prev record, ok bool, now time.Time) (next record, alreadyLocked bool) {
	switch {
	case !ok || l.elapsed(prev, now) >= l.cfg.LockoutDuration:
		return record{Attempts: 1, FirstAttemptAt: now.UnixMilli()}, false
	case prev.Attempts >= l.cfg.MaxAttempts:
		return prev, true
	default:
		prev.Attempts++
		return prev, false
	}
}

// CheckStatus recomputes the state of key. A record whose window has elapsed
// is deleted and the key reported clear with no remaining lock time.
func (l *Limiter) CheckStatus(ctx context.Context, key string) (Status, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	rec, ok := l.load(ctx, key)
	if !ok {
		return Status{Key: key}, nil
	}
	if l.elapsed(rec, now) >= l.cfg.LockoutDuration {
		if err := l.store.Delete(ctx, l.storeKey(key)); err != nil {
			l.logger.Warn("failed to clear elapsed rate limit record",
				"scope", l.cfg.Scope,
				"key", key,
				"error", err,
			)
		}
		return Status{Key: key}, nil
	}
	return l.status(key, rec, now), nil
}

// IsLocked reports whether key is currently locked.
func (l *Limiter) IsLocked(ctx context.Context, key string) bool {
	s, err := l.CheckStatus(ctx, key)
	if err != nil {
		return false
	}
	return s.Locked
}

// Reset clears the record for key.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.store.Delete(ctx, l.storeKey(key)); err != nil {
		return fmt.Errorf("reset rate limit record: %w", err)
	}
	return nil
}
