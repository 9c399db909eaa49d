package ratelimit

import (
	"context"
	"sync"
	"time"
)

// DefaultTick is the countdown refresh interval.
const DefaultTick = time.Second

// Countdown publishes a key's status on a fixed tick until the key is no
// longer locked. It is owned by one caller; Start is idempotent and Stop (or
// cancelling the context given to Start) ends the ticker.
type Countdown struct {
	limiter  *Limiter
	key      string
	interval time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	updates chan Status
}

// NewCountdown creates a countdown for key. A non-positive interval uses DefaultTick.
func NewCountdown(limiter *Limiter, key string, interval time.Duration) *Countdown {
	if interval <= 0 {
		interval = DefaultTick
	}
	return &Countdown{limiter: limiter, key: key, interval: interval}
}

// Start begins ticking and returns the update channel. The first status is
// sent immediately. The channel is closed after a status with Locked == false
// has been sent, or when the countdown is stopped. Calling Start while running
// returns the existing channel without starting a second ticker.
func (c *Countdown) Start(ctx context.Context) <-chan Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return c.updates
	}

	ctx, cancel := context.WithCancel(ctx)
	c.running = true
	c.cancel = cancel
	c.done = make(chan struct{})
	c.updates = make(chan Status, 1)

	go c.run(ctx, c.updates, c.done)
	return c.updates
}

// Stop ends the countdown and waits for its goroutine to exit. It is safe to
// call more than once.
func (c *Countdown) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	cancel, done := c.cancel, c.done
	c.mu.Unlock()

	cancel()
	<-done
}

// Running reports whether the ticker goroutine is active.
func (c *Countdown) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *Countdown) run(ctx context.Context, updates chan<- Status, done chan<- struct{}) {
	ticker := time.NewTicker(c.interval)
	defer func() {
		ticker.Stop()
		close(updates)
		c.mu.Lock()
		c.running = false
		c.cancel()
		c.mu.Unlock()
		close(done)
	}()

	for {
		s, _ := c.limiter.CheckStatus(ctx, c.key)
		select {
		case updates <- s:
		case <-ctx.Done():
			return
		}
		if !s.Locked {
			return
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}
