package shortener_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/serroba/link-converter/internal/ratelimit"
	"github.com/serroba/link-converter/internal/shortener"
	"github.com/serroba/link-converter/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errMock = errors.New("mock error")

const testURL = "https://www.example.com"

// stubRepository wraps a MemoryStore and can be configured to fail.
type stubRepository struct {
	*store.MemoryStore

	findByURLErr  error
	findByCodeErr error
	saveErr       error
}

func (r *stubRepository) FindByOriginalURL(ctx context.Context, originalURL string) (*shortener.ShortLink, error) {
	if r.findByURLErr != nil {
		return nil, r.findByURLErr
	}

	return r.MemoryStore.FindByOriginalURL(ctx, originalURL)
}

func (r *stubRepository) FindByCode(ctx context.Context, code shortener.Code) (*shortener.ShortLink, error) {
	if r.findByCodeErr != nil {
		return nil, r.findByCodeErr
	}

	return r.MemoryStore.FindByCode(ctx, code)
}

func (r *stubRepository) Save(ctx context.Context, link *shortener.ShortLink) error {
	if r.saveErr != nil {
		return r.saveErr
	}

	return r.MemoryStore.Save(ctx, link)
}

// racingRepository lets another writer save the same URL right before every Save.
type racingRepository struct {
	*store.MemoryStore

	winnerCode shortener.Code
}

func (r *racingRepository) Save(ctx context.Context, link *shortener.ShortLink) error {
	_ = r.MemoryStore.Save(ctx, &shortener.ShortLink{
		OriginalURL: link.OriginalURL,
		Code:        r.winnerCode,
		CreatedAt:   link.CreatedAt,
	})

	return shortener.ErrDuplicate
}

// gatedRepository holds FindByOriginalURL until open is closed or the call's ctx is done.
type gatedRepository struct {
	*store.MemoryStore

	open    chan struct{}
	entered chan struct{}
	once    sync.Once
	calls   atomic.Int32
}

func newGatedRepository() *gatedRepository {
	return &gatedRepository{
		MemoryStore: store.NewMemoryStore(),
		open:        make(chan struct{}),
		entered:     make(chan struct{}),
	}
}

func (r *gatedRepository) FindByOriginalURL(ctx context.Context, originalURL string) (*shortener.ShortLink, error) {
	r.calls.Add(1)
	r.once.Do(func() { close(r.entered) })

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-r.open:
	}

	return r.MemoryStore.FindByOriginalURL(ctx, originalURL)
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

func newGlobalLimiter(limit int64) ratelimit.Limiter {
	return ratelimit.NewFixedWindowLimiter(store.NewRateLimitMemoryStore(), limit, time.Minute)
}

func TestService_CreateOrGetCode(t *testing.T) {
	t.Run("creates a new link", func(t *testing.T) {
		repo := store.NewMemoryStore()
		svc := shortener.NewService(repo, newGlobalLimiter(100))

		code, err := svc.CreateOrGetCode(context.Background(), "10.0.0.1", testURL)

		require.NoError(t, err)
		assert.Equal(t, shortener.GenerateCode(testURL), code)

		link, err := repo.FindByCode(context.Background(), code)
		require.NoError(t, err)
		assert.Equal(t, testURL, link.OriginalURL)
		assert.NotZero(t, link.ID)
	})

	t.Run("is idempotent for the same url", func(t *testing.T) {
		repo := store.NewMemoryStore()
		svc := shortener.NewService(repo, newGlobalLimiter(100))

		first, err := svc.CreateOrGetCode(context.Background(), "10.0.0.1", testURL)
		require.NoError(t, err)

		second, err := svc.CreateOrGetCode(context.Background(), "10.0.0.2", testURL)
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.Equal(t, 1, repo.Len())
	})

	t.Run("different urls get different codes", func(t *testing.T) {
		repo := store.NewMemoryStore()
		svc := shortener.NewService(repo, newGlobalLimiter(100))

		a, err := svc.CreateOrGetCode(context.Background(), "10.0.0.1", "https://www.example.com/a")
		require.NoError(t, err)

		b, err := svc.CreateOrGetCode(context.Background(), "10.0.0.1", "https://www.example.com/b")
		require.NoError(t, err)

		assert.NotEqual(t, a, b)
		assert.Equal(t, 2, repo.Len())
	})

	t.Run("returns collision when the code belongs to another url", func(t *testing.T) {
		repo := store.NewMemoryStore()
		svc := shortener.NewService(repo, newGlobalLimiter(100),
			shortener.WithCodeGenerator(func(string) shortener.Code { return "fixed" }),
		)

		_, err := svc.CreateOrGetCode(context.Background(), "10.0.0.1", "https://www.first.com")
		require.NoError(t, err)

		_, err = svc.CreateOrGetCode(context.Background(), "10.0.0.1", "https://www.second.com")

		require.ErrorIs(t, err, shortener.ErrCodeCollision)
		assert.Equal(t, 1, repo.Len())
	})

	t.Run("reuses a code already saved for the same url", func(t *testing.T) {
		repo := &stubRepository{MemoryStore: store.NewMemoryStore(), findByURLErr: shortener.ErrNotFound}
		require.NoError(t, repo.MemoryStore.Save(context.Background(), &shortener.ShortLink{
			OriginalURL: testURL,
			Code:        shortener.GenerateCode(testURL),
			CreatedAt:   time.Now(),
		}))

		svc := shortener.NewService(repo, newGlobalLimiter(100))

		code, err := svc.CreateOrGetCode(context.Background(), "10.0.0.1", testURL)

		require.NoError(t, err)
		assert.Equal(t, shortener.GenerateCode(testURL), code)
		assert.Equal(t, 1, repo.Len())
	})

	t.Run("returns the winner when a concurrent save claimed the url", func(t *testing.T) {
		repo := &racingRepository{MemoryStore: store.NewMemoryStore(), winnerCode: "winner"}
		svc := shortener.NewService(repo, newGlobalLimiter(100))

		code, err := svc.CreateOrGetCode(context.Background(), "10.0.0.1", testURL)

		require.NoError(t, err)
		assert.Equal(t, shortener.Code("winner"), code)
	})

	t.Run("duplicate save without a winner is a collision", func(t *testing.T) {
		repo := &stubRepository{MemoryStore: store.NewMemoryStore(), saveErr: shortener.ErrDuplicate}
		svc := shortener.NewService(repo, newGlobalLimiter(100))

		_, err := svc.CreateOrGetCode(context.Background(), "10.0.0.1", testURL)

		assert.ErrorIs(t, err, shortener.ErrCodeCollision)
	})

	t.Run("wraps repository errors", func(t *testing.T) {
		tests := []struct {
			name string
			repo *stubRepository
			msg  string
		}{
			{
				name: "find by original url",
				repo: &stubRepository{MemoryStore: store.NewMemoryStore(), findByURLErr: errMock},
				msg:  "find by original url",
			},
			{
				name: "find by code",
				repo: &stubRepository{MemoryStore: store.NewMemoryStore(), findByCodeErr: errMock},
				msg:  "find by code",
			},
			{
				name: "save",
				repo: &stubRepository{MemoryStore: store.NewMemoryStore(), saveErr: errMock},
				msg:  "save short link",
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				svc := shortener.NewService(tt.repo, newGlobalLimiter(100))

				_, err := svc.CreateOrGetCode(context.Background(), "10.0.0.1", testURL)

				require.ErrorIs(t, err, errMock)
				assert.Contains(t, err.Error(), tt.msg)
			})
		}
	})

	t.Run("stamps the creation time from the clock", func(t *testing.T) {
		now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		repo := store.NewMemoryStore()
		svc := shortener.NewService(repo, newGlobalLimiter(100),
			shortener.WithClock(func() time.Time { return now }),
		)

		code, err := svc.CreateOrGetCode(context.Background(), "10.0.0.1", testURL)
		require.NoError(t, err)

		link, err := repo.FindByCode(context.Background(), code)
		require.NoError(t, err)
		assert.Equal(t, now, link.CreatedAt)
	})

	t.Run("concurrent creations of one url persist one link", func(t *testing.T) {
		repo := store.NewMemoryStore()
		svc := shortener.NewService(repo, newGlobalLimiter(1000))

		var wg sync.WaitGroup

		codes := make([]shortener.Code, 50)
		errs := make([]error, 50)

		for i := range 50 {
			wg.Add(1)

			go func() {
				defer wg.Done()

				codes[i], errs[i] = svc.CreateOrGetCode(context.Background(), "10.0.0.1", testURL)
			}()
		}

		wg.Wait()

		for i := range 50 {
			require.NoError(t, errs[i])
			assert.Equal(t, shortener.GenerateCode(testURL), codes[i])
		}

		assert.Equal(t, 1, repo.Len())
	})
}

func TestService_CreateOrGet(t *testing.T) {
	t.Run("reports creation only for the call that persisted the link", func(t *testing.T) {
		svc := shortener.NewService(store.NewMemoryStore(), newGlobalLimiter(1000))

		first, err := svc.CreateOrGet(context.Background(), "10.0.0.1", testURL)
		require.NoError(t, err)

		second, err := svc.CreateOrGet(context.Background(), "10.0.0.1", testURL)
		require.NoError(t, err)

		assert.True(t, first.Created)
		assert.False(t, second.Created)
		assert.Equal(t, first.Link.Code, second.Link.Code)
		assert.Equal(t, first.Link.CreatedAt, second.Link.CreatedAt)
	})

	t.Run("concurrent calls report exactly one creation", func(t *testing.T) {
		svc := shortener.NewService(store.NewMemoryStore(), newGlobalLimiter(1000))

		var (
			wg      sync.WaitGroup
			created atomic.Int32
		)

		for range 50 {
			wg.Add(1)

			go func() {
				defer wg.Done()

				creation, err := svc.CreateOrGet(context.Background(), "10.0.0.1", testURL)
				if err == nil && creation.Created {
					created.Add(1)
				}
			}()
		}

		wg.Wait()

		assert.Equal(t, int32(1), created.Load())
	})

	t.Run("a cancelled caller does not fail callers sharing its lookup", func(t *testing.T) {
		repo := newGatedRepository()
		svc := shortener.NewService(repo, newGlobalLimiter(1000))

		ctxA, cancelA := context.WithCancel(context.Background())
		errA := make(chan error, 1)

		go func() {
			_, err := svc.CreateOrGetCode(ctxA, "10.0.0.1", testURL)
			errA <- err
		}()

		<-repo.entered

		type result struct {
			code shortener.Code
			err  error
		}

		resB := make(chan result, 1)

		go func() {
			code, err := svc.CreateOrGetCode(context.Background(), "10.0.0.2", testURL)
			resB <- result{code: code, err: err}
		}()

		// Give B time to join the lookup A started.
		time.Sleep(50 * time.Millisecond)
		cancelA()

		select {
		case err := <-errA:
			require.ErrorIs(t, err, context.Canceled)
		case <-time.After(time.Second):
			t.Fatal("cancelled caller did not return")
		}

		close(repo.open)

		select {
		case res := <-resB:
			require.NoError(t, res.err)
			assert.Equal(t, shortener.GenerateCode(testURL), res.code)
		case <-time.After(time.Second):
			t.Fatal("live caller did not return")
		}

		assert.Equal(t, int32(1), repo.calls.Load())
		assert.Equal(t, 1, repo.Len())
	})
}

func TestService_CreateOrGetCode_RateLimit(t *testing.T) {
	t.Run("global limit denies the 101st request in a window", func(t *testing.T) {
		svc := shortener.NewService(store.NewMemoryStore(), newGlobalLimiter(ratelimit.DefaultLimit))

		for range ratelimit.DefaultLimit {
			_, err := svc.CreateOrGetCode(context.Background(), "10.0.0.1", testURL)
			require.NoError(t, err)
		}

		_, err := svc.CreateOrGetCode(context.Background(), "10.0.0.2", testURL)

		require.ErrorIs(t, err, ratelimit.ErrLimitExceeded)

		var exceeded *ratelimit.LimitExceeded

		require.ErrorAs(t, err, &exceeded)
		assert.Equal(t, ratelimit.ScopeGlobal, exceeded.Scope)
	})

	t.Run("denied requests do not touch the repository", func(t *testing.T) {
		repo := store.NewMemoryStore()
		svc := shortener.NewService(repo, newGlobalLimiter(0))

		_, err := svc.CreateOrGetCode(context.Background(), "10.0.0.1", testURL)

		require.ErrorIs(t, err, ratelimit.ErrLimitExceeded)
		assert.Equal(t, 0, repo.Len())
	})

	t.Run("client slots are released after success", func(t *testing.T) {
		limiter := ratelimit.NewSlotLimiter(1)
		svc := shortener.NewService(store.NewMemoryStore(), limiter)

		for range 3 {
			_, err := svc.CreateOrGetCode(context.Background(), "10.0.0.1", testURL)
			require.NoError(t, err)
		}

		assert.Zero(t, limiter.InFlight("10.0.0.1"))
	})

	t.Run("client slots are released after failure", func(t *testing.T) {
		limiter := ratelimit.NewSlotLimiter(1)
		repo := &stubRepository{MemoryStore: store.NewMemoryStore(), saveErr: errMock}
		svc := shortener.NewService(repo, limiter)

		_, err := svc.CreateOrGetCode(context.Background(), "10.0.0.1", testURL)
		require.Error(t, err)

		assert.Zero(t, limiter.InFlight("10.0.0.1"))
	})
}

func TestService_ResolveCode(t *testing.T) {
	newService := func() (*shortener.Service, *clock) {
		c := &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
		svc := shortener.NewService(store.NewMemoryStore(), newGlobalLimiter(100), shortener.WithClock(c.Now))

		return svc, c
	}

	t.Run("round trips a created link", func(t *testing.T) {
		svc, _ := newService()

		code, err := svc.CreateOrGetCode(context.Background(), "10.0.0.1", testURL)
		require.NoError(t, err)

		url, err := svc.ResolveCode(context.Background(), code)

		require.NoError(t, err)
		assert.Equal(t, testURL, url)
	})

	t.Run("unknown code returns ErrNotFound", func(t *testing.T) {
		svc, _ := newService()

		_, err := svc.ResolveCode(context.Background(), "nonexistent")

		assert.ErrorIs(t, err, shortener.ErrNotFound)
	})

	t.Run("expiry boundary", func(t *testing.T) {
		tests := []struct {
			name    string
			elapsed time.Duration
			wantErr error
		}{
			{name: "just before ttl", elapsed: 9*time.Minute + 59*time.Second},
			{name: "exactly at ttl", elapsed: 10 * time.Minute, wantErr: shortener.ErrExpired},
			{name: "after ttl", elapsed: 10*time.Minute + time.Second, wantErr: shortener.ErrExpired},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				svc, c := newService()

				code, err := svc.CreateOrGetCode(context.Background(), "10.0.0.1", testURL)
				require.NoError(t, err)

				c.Advance(tt.elapsed)

				url, err := svc.ResolveCode(context.Background(), code)
				if tt.wantErr != nil {
					assert.ErrorIs(t, err, tt.wantErr)
					assert.Empty(t, url)

					return
				}

				require.NoError(t, err)
				assert.Equal(t, testURL, url)
			})
		}
	})

	t.Run("expired links are still returned by create", func(t *testing.T) {
		svc, c := newService()

		first, err := svc.CreateOrGetCode(context.Background(), "10.0.0.1", testURL)
		require.NoError(t, err)

		c.Advance(time.Hour)

		second, err := svc.CreateOrGetCode(context.Background(), "10.0.0.1", testURL)

		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("custom ttl", func(t *testing.T) {
		c := &clock{now: time.Now()}
		svc := shortener.NewService(store.NewMemoryStore(), newGlobalLimiter(100),
			shortener.WithClock(c.Now),
			shortener.WithTTL(time.Hour),
		)

		assert.Equal(t, time.Hour, svc.TTL())

		code, err := svc.CreateOrGetCode(context.Background(), "10.0.0.1", testURL)
		require.NoError(t, err)

		c.Advance(30 * time.Minute)

		_, err = svc.ResolveCode(context.Background(), code)
		assert.NoError(t, err)
	})

	t.Run("wraps repository errors", func(t *testing.T) {
		repo := &stubRepository{MemoryStore: store.NewMemoryStore(), findByCodeErr: errMock}
		svc := shortener.NewService(repo, newGlobalLimiter(100))

		_, err := svc.ResolveCode(context.Background(), "abc")

		require.ErrorIs(t, err, errMock)
		assert.NotErrorIs(t, err, shortener.ErrNotFound)
	})
}
