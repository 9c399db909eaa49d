package kv

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/DukeRupert/reelscout/internal/metrics"
)

// Default sizing for the in-memory store.
const (
	DefaultMemorySize = 10_000
	DefaultMemoryTTL  = 24 * time.Hour
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// Memory is a bounded in-process Store. Entries expire after the store-wide
// TTL, or earlier when Set is given a shorter ttl. Least recently used entries
// are evicted once the size bound is reached.
type Memory struct {
	cache *expirable.LRU[string, memoryEntry]
	ttl   time.Duration
	now   func() time.Time

	// mu orders writes against Update.
	mu sync.Mutex
}

// NewMemory creates a Memory store holding at most size entries for at most ttl.
func NewMemory(size int, ttl time.Duration) *Memory {
	if size <= 0 {
		size = DefaultMemorySize
	}
	if ttl <= 0 {
		ttl = DefaultMemoryTTL
	}
	return &Memory{
		cache: expirable.NewLRU[string, memoryEntry](size, nil, ttl),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Get implements Store.
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	e, ok := m.cache.Get(key)
	if !ok {
		metrics.KVCacheMissesTotal.Inc()
		return nil, ErrNotFound
	}
	if !e.expiresAt.IsZero() && !m.now().Before(e.expiresAt) {
		m.cache.Remove(key)
		metrics.KVCacheMissesTotal.Inc()
		return nil, ErrNotFound
	}
	metrics.KVCacheHitsTotal.Inc()
	return slices.Clone(e.value), nil
}

// Set implements Store. A ttl longer than the store-wide TTL is capped by it.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.set(key, value, ttl)
	return nil
}

func (m *Memory) set(key string, value []byte, ttl time.Duration) {
	e := memoryEntry{value: slices.Clone(value)}
	if ttl > 0 && ttl < m.ttl {
		e.expiresAt = m.now().Add(ttl)
	}
	m.cache.Add(key, e)
}

// Delete implements Store.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache.Remove(key)
	return nil
}

// Update implements Updater. It is atomic within this process only.
func (m *Memory) Update(ctx context.Context, key string, fn UpdateFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	old, err := m.Get(ctx, key)
	found := err == nil
	value, ttl, err := fn(old, found)
	if err != nil {
		return err
	}
	m.set(key, value, ttl)
	return nil
}

// Len returns the number of live entries.
func (m *Memory) Len() int {
	return m.cache.Len()
}
