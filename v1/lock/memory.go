package lock

import (
	"context"
	"sync"
	"time"
)

type memEntry struct {
	token     string
	expiresAt time.Time
}

// InMemoryStore implements Store in process memory. It only arbitrates between
// goroutines of the same process and is mostly useful in tests and for
// single-node deployments.
type InMemoryStore struct {
	mu      sync.Mutex
	entries map[string]memEntry
	now     func() time.Time
}

// NewInMemoryStore returns an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entries: make(map[string]memEntry), now: time.Now}
}

// SetNX implements Store.SetNX.
func (s *InMemoryStore) SetNX(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if e, ok := s.entries[key]; ok && now.Before(e.expiresAt) {
		return false, nil
	}
	s.entries[key] = memEntry{token: token, expiresAt: now.Add(ttl)}
	return true, nil
}

// CompareAndDelete implements Store.CompareAndDelete.
func (s *InMemoryStore) CompareAndDelete(ctx context.Context, key, token string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return false, nil
	}
	if !s.now().Before(e.expiresAt) {
		delete(s.entries, key)
		return false, nil
	}
	if e.token != token {
		return false, nil
	}
	delete(s.entries, key)
	return true, nil
}

// Token returns the token currently holding key, if any.
func (s *InMemoryStore) Token(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok || !s.now().Before(e.expiresAt) {
		return "", false
	}
	return e.token, true
}
