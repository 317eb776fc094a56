package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Scope identifies what an admission counter is keyed by.
type Scope string

const (
	// ScopeGlobal throttles the whole service through one shared counter.
	ScopeGlobal Scope = "global"
	// ScopeClient bounds the in-flight operations of a single client.
	ScopeClient Scope = "client"
)

// ErrLimitExceeded is matched by every *LimitExceeded.
var ErrLimitExceeded = errors.New("rate limit exceeded")

// LimitExceeded contains information about which limit was exceeded.
type LimitExceeded struct {
	Scope  Scope
	Limit  int64
	Window time.Duration // zero for in-flight limits
	Count  int64
}

func (e *LimitExceeded) Error() string {
	if e.Window > 0 {
		return fmt.Sprintf("rate limit exceeded: %s scope, %d/%d requests in %s", e.Scope, e.Count, e.Limit, e.Window)
	}

	return fmt.Sprintf("rate limit exceeded: %s scope, %d/%d requests in flight", e.Scope, e.Count, e.Limit)
}

// Is reports whether target is ErrLimitExceeded.
func (e *LimitExceeded) Is(target error) bool {
	return target == ErrLimitExceeded
}

// Release hands an admission back to its limiter once the guarded operation completes.
// Calling it more than once has no further effect.
type Release func()

// Limiter defines the interface for admission control.
type Limiter interface {
	// Admit decides whether an operation on behalf of principal may proceed.
	// On success the caller must invoke the returned Release when the operation finishes,
	// whether it succeeded or not. A denied admission returns an error matching
	// ErrLimitExceeded and leaves no state behind.
	Admit(ctx context.Context, principal string) (Release, error)
}

// GlobalKey is the counter key shared by every caller of a FixedWindowLimiter.
const GlobalKey = "global_rate_limit"

const (
	DefaultLimit  = 100
	DefaultWindow = time.Minute
)

// FixedWindowLimiter implements the global strategy: one shared counter that starts a window on
// its first admission and resets when the window elapses.
type FixedWindowLimiter struct {
	store  Store
	key    string
	limit  int64
	window time.Duration
}

// NewFixedWindowLimiter creates a new global fixed-window rate limiter.
func NewFixedWindowLimiter(store Store, limit int64, window time.Duration) *FixedWindowLimiter {
	return &FixedWindowLimiter{
		store:  store,
		key:    GlobalKey,
		limit:  limit,
		window: window,
	}
}

// Admit ignores principal; every caller draws from the same window.
func (l *FixedWindowLimiter) Admit(ctx context.Context, _ string) (Release, error) {
	count, err := l.store.Record(ctx, l.key, l.window)
	if err != nil {
		return nil, fmt.Errorf("record admission: %w", err)
	}

	if count > l.limit {
		return nil, &LimitExceeded{
			Scope:  ScopeGlobal,
			Limit:  l.limit,
			Window: l.window,
			Count:  count,
		}
	}

	return func() {}, nil
}
