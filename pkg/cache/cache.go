package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrNotFound  = errors.New("cache: not found")
	ErrClosed    = errors.New("cache: closed")
	ErrFull      = errors.New("cache: full")
	ErrMarshal   = errors.New("cache: marshal value")
	ErrUnmarshal = errors.New("cache: unmarshal value")
)

// Cache is a generic key-value store with TTL support.
//
// TTL semantics for Set:
//   - Positive duration: item expires after this duration
//   - Zero: use the cache's configured default TTL
//   - Negative: item never expires
type Cache[V any] interface {
	// Get retrieves a value by key.
	// Returns ErrNotFound if the key does not exist or has expired.
	Get(ctx context.Context, key string) (V, error)

	// Set stores a value with the given TTL.
	Set(ctx context.Context, key string, value V, ttl time.Duration) error

	// Pop returns the value under key and removes it atomically: of two
	// concurrent Pop calls for the same key at most one gets the value.
	// Returns ErrNotFound if the key does not exist or has expired.
	Pop(ctx context.Context, key string) (V, error)

	// Delete removes a key.
	Delete(ctx context.Context, key string) error

	// Close releases resources.
	Close() error
}

// Marshaler serializes cache values for byte-oriented backends (Redis).
type Marshaler[V any] interface {
	Marshal(v V) ([]byte, error)
	Unmarshal(data []byte) (V, error)
}

type jsonMarshaler[V any] struct{}

func (jsonMarshaler[V]) Marshal(v V) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Join(ErrMarshal, err)
	}
	return data, nil
}

func (jsonMarshaler[V]) Unmarshal(data []byte) (V, error) {
	var v V
	if err := json.Unmarshal(data, &v); err != nil {
		return v, errors.Join(ErrUnmarshal, err)
	}
	return v, nil
}

// resolveTTL applies the default for zero and maps negative to "never".
// The zero return value means no expiry.
func resolveTTL(ttl, def time.Duration) time.Duration {
	if ttl == 0 {
		ttl = def
	}
	return max(ttl, 0)
}
