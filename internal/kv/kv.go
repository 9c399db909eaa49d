// Package kv provides the small key/value store used for rate-limit records
// and per-user preferences.
package kv

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the key does not exist or has expired.
var ErrNotFound = errors.New("kv: key not found")

// Store is a string-keyed byte store with optional expiry.
// Implementations are safe for concurrent use.
type Store interface {
	// Get returns the value for key or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value under key. A ttl of zero keeps the store's default expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// ErrConflict is returned by Update when other writers kept changing the key.
var ErrConflict = errors.New("kv: update conflict")

// UpdateFunc computes the next value of a key from its current one. found is
// false when the key is absent. A ttl of zero keeps the store's default expiry.
type UpdateFunc func(old []byte, found bool) (value []byte, ttl time.Duration, err error)

// Updater is implemented by stores that can read-modify-write one key
// atomically, including across processes sharing the store. fn may be called
// more than once and must not have side effects.
type Updater interface {
	Update(ctx context.Context, key string, fn UpdateFunc) error
}
