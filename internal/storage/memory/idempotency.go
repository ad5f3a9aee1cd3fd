package memory

import (
	"context"
	"sync"
	"time"

	"github.com/learnhub/learnhub-payments/internal/domain"
)

type entry struct {
	value   string
	expires time.Time
}

// IdempotencyStore is the in-process counterpart of the redis store, used by
// the memory storage driver and by tests.
type IdempotencyStore struct {
	mu    sync.Mutex
	ttl   time.Duration
	locks map[string]time.Time
	vals  map[string]entry
}

// NewIdempotencyStore creates a store whose locks and values expire after ttl.
func NewIdempotencyStore(ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{
		ttl:   ttl,
		locks: make(map[string]time.Time),
		vals:  make(map[string]entry),
	}
}

// TryLock acquires the scope:key lock if it is free or expired.
func (s *IdempotencyStore) TryLock(ctx context.Context, scope, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := scope + ":" + key
	if exp, held := s.locks[k]; held && time.Now().Before(exp) {
		return false, nil
	}
	s.locks[k] = time.Now().Add(s.ttl)
	return true, nil
}

// Remember records a value for scope:key.
func (s *IdempotencyStore) Remember(ctx context.Context, scope, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.vals[scope+":"+key] = entry{value: value, expires: time.Now().Add(s.ttl)}
	return nil
}

// Recall returns the remembered value for scope:key, if unexpired.
func (s *IdempotencyStore) Recall(ctx context.Context, scope, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.vals[scope+":"+key]
	if !ok || time.Now().After(e.expires) {
		return "", false, nil
	}
	return e.value, true, nil
}

var _ domain.IdempotencyStore = (*IdempotencyStore)(nil)
