package ratelimit

import (
	"context"
	"time"
)

// Store defines the interface for shared rate limit counters.
type Store interface {
	// Record atomically increments the counter for key and returns the post-increment value.
	// The first increment of a key starts a window of the given length; once it elapses the
	// counter starts again from zero.
	Record(ctx context.Context, key string, window time.Duration) (count int64, err error)
}
