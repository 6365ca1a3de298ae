package consent

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// Loader fetches the initial consent flags, keyed by user ID. It is called
// exactly once, synchronously, before any audio routing begins.
type Loader func(ctx context.Context) (map[string]bool, error)

// Store is the process-wide consent cache. Reads happen on the frame-routing
// hot path (once per ~20ms frame per speaker), so lookups take only a read
// lock. A user absent from the store has not consented.
type Store struct {
	mu     sync.RWMutex
	users  map[string]bool
	loaded bool
}

// NewStore creates an empty, unloaded consent store.
func NewStore() *Store {
	return &Store{users: make(map[string]bool)}
}

// Load populates the store from the configured loader. Calling Load twice is
// an initialization bug and returns an error rather than silently reloading.
func (s *Store) Load(ctx context.Context, loader Loader) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loaded {
		return fmt.Errorf("consent store already loaded")
	}

	users, err := loader(ctx)
	if err != nil {
		return fmt.Errorf("loading consent flags: %w", err)
	}

	s.users = make(map[string]bool, len(users))
	for userID, allowed := range users {
		s.users[userID] = allowed
	}
	s.loaded = true

	logrus.WithField("users", len(s.users)).Info("Consent store loaded")
	return nil
}

// Allowed reports whether audio from the user may be buffered. Unknown users
// are treated as non-consenting.
func (s *Store) Allowed(userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.users[userID]
}

// Set records a consent decision for a user.
func (s *Store) Set(userID string, allowed bool) {
	s.mu.Lock()
	s.users[userID] = allowed
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"user_id": userID,
		"allowed": allowed,
	}).Info("Consent flag updated")
}

// Revoke withdraws a user's consent. Frames arriving after Revoke returns
// are dropped; a buffer already accumulating is still flushed.
func (s *Store) Revoke(userID string) {
	s.Set(userID, false)
}
