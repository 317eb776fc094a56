package ratelimit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultSweepInterval is how often idle client counters are dropped.
const DefaultSweepInterval = 5 * time.Minute

// SlotLimiter implements the per-client strategy: each principal may hold at most limit
// admissions at once. Counters that fall back to zero are removed by a periodic sweep.
type SlotLimiter struct {
	mu         sync.Mutex
	slots      map[string]int64
	limit      int64
	sweepEvery time.Duration
	logger     *zap.Logger
	cancel     context.CancelFunc
	done       chan struct{}
}

// SlotOption configures a SlotLimiter.
type SlotOption func(*SlotLimiter)

// WithSweepInterval sets how often Start sweeps idle counters.
func WithSweepInterval(d time.Duration) SlotOption {
	return func(l *SlotLimiter) { l.sweepEvery = d }
}

// WithSlotLogger sets the logger used by the sweep loop.
func WithSlotLogger(logger *zap.Logger) SlotOption {
	return func(l *SlotLimiter) { l.logger = logger }
}

// NewSlotLimiter creates a new per-client in-flight limiter.
func NewSlotLimiter(limit int64, opts ...SlotOption) *SlotLimiter {
	l := &SlotLimiter{
		slots:      make(map[string]int64),
		limit:      limit,
		sweepEvery: DefaultSweepInterval,
		logger:     zap.NewNop(),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

func (l *SlotLimiter) Admit(_ context.Context, principal string) (Release, error) {
	l.mu.Lock()

	current := l.slots[principal]
	if current+1 > l.limit {
		l.mu.Unlock()

		return nil, &LimitExceeded{
			Scope: ScopeClient,
			Limit: l.limit,
			Count: current,
		}
	}

	l.slots[principal] = current + 1
	l.mu.Unlock()

	var once sync.Once

	return func() {
		once.Do(func() { l.release(principal) })
	}, nil
}

func (l *SlotLimiter) release(principal string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.slots[principal] > 0 {
		l.slots[principal]--
	}
}

// InFlight returns the number of admissions principal currently holds.
func (l *SlotLimiter) InFlight(principal string) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.slots[principal]
}

// Tracked returns the number of principals with a counter, idle or not.
func (l *SlotLimiter) Tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.slots)
}

// Sweep removes counters that have decayed to zero and returns how many were removed.
func (l *SlotLimiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0

	for principal, n := range l.slots {
		if n == 0 {
			delete(l.slots, principal)
			removed++
		}
	}

	return removed
}

// Start launches the periodic sweep. It stops when ctx is cancelled or Shutdown is called.
func (l *SlotLimiter) Start(ctx context.Context) error {
	if l.sweepEvery <= 0 || l.done != nil {
		return nil
	}

	ctx, l.cancel = context.WithCancel(ctx)
	l.done = make(chan struct{})

	go l.sweepLoop(ctx)

	return nil
}

func (l *SlotLimiter) sweepLoop(ctx context.Context) {
	defer close(l.done)

	ticker := time.NewTicker(l.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := l.Sweep(); removed > 0 {
				l.logger.Debug("swept idle rate limit counters", zap.Int("removed", removed))
			}
		}
	}
}

// Shutdown stops the sweep loop and waits for it to exit.
func (l *SlotLimiter) Shutdown() error {
	if l.cancel != nil {
		l.cancel()
	}

	if l.done != nil {
		<-l.done
	}

	return nil
}
