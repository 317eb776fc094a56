package store

import (
	"context"
	"sync"
	"time"

	"github.com/serroba/link-converter/internal/ratelimit"
)

type fixedWindow struct {
	count   int64
	resetAt time.Time
}

// RateLimitMemoryStore is an in-memory implementation of ratelimit.Store.
type RateLimitMemoryStore struct {
	mu      sync.Mutex
	windows map[string]*fixedWindow
	now     func() time.Time
}

// NewRateLimitMemoryStore creates a new in-memory rate limit store.
func NewRateLimitMemoryStore() *RateLimitMemoryStore {
	return &RateLimitMemoryStore{
		windows: make(map[string]*fixedWindow),
		now:     time.Now,
	}
}

func (s *RateLimitMemoryStore) Record(_ context.Context, key string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	w, ok := s.windows[key]
	if !ok || !now.Before(w.resetAt) {
		// First hit of a window starts its timer
		w = &fixedWindow{resetAt: now.Add(window)}
		s.windows[key] = w
	}

	w.count++

	return w.count, nil
}

// Compile-time check.
var _ ratelimit.Store = (*RateLimitMemoryStore)(nil)
