package session

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrymomot/polarauth/pkg/cache"
	"github.com/dmitrymomot/polarauth/pkg/oauth"
)

// ErrEmptyID is returned when a store is scoped to an empty session id.
var ErrEmptyID = errors.New("session: empty session id")

// Store keeps short-lived per-session values, such as OAuth state tokens,
// in a shared cache.
type Store struct {
	cache cache.Cache[string]
	ttl   time.Duration
}

// NewStore creates a Store whose entries expire after ttl.
func NewStore(c cache.Cache[string], ttl time.Duration) *Store {
	return &Store{cache: c, ttl: ttl}
}

// Scope returns the view of the store for one session.
func (s *Store) Scope(sessionID string) *Scoped {
	return &Scoped{store: s, sessionID: sessionID}
}

// Scoped is a Store bound to one session id. Keys are stored as
// "<session id>:<key>", so sessions never observe each other's values.
type Scoped struct {
	store     *Store
	sessionID string
}

var _ oauth.StateStore = (*Scoped)(nil)

func (s *Scoped) Put(ctx context.Context, key, value string) error {
	k, err := s.key(key)
	if err != nil {
		return err
	}
	return s.store.cache.Set(ctx, k, value, s.store.ttl)
}

// GetAndDelete consumes the value under key with the cache's atomic Pop.
func (s *Scoped) GetAndDelete(ctx context.Context, key string) (string, bool, error) {
	k, err := s.key(key)
	if err != nil {
		return "", false, err
	}
	v, err := s.store.cache.Pop(ctx, k)
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return v, true, nil
}

func (s *Scoped) key(key string) (string, error) {
	if s.sessionID == "" {
		return "", ErrEmptyID
	}
	return s.sessionID + ":" + key, nil
}
