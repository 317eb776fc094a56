package container

import (
	"context"

	"github.com/samber/do"
	"github.com/serroba/link-converter/internal/ratelimit"
	"github.com/serroba/link-converter/internal/shortener"
	"github.com/serroba/link-converter/internal/store"
	"go.uber.org/zap"
)

// RepositoryPackage provides the link repository selected by --storage, optionally wrapped in
// the Redis cache.
func RepositoryPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (shortener.Repository, error) {
		opts := do.MustInvoke[*Options](i)

		var repo shortener.Repository

		switch opts.Storage {
		case BackendMemory:
			repo = store.NewMemoryStore()
		case BackendPostgres:
			pg, err := do.Invoke[*Postgres](i)
			if err != nil {
				return nil, err
			}

			repo = store.NewPostgresStore(pg.Pool)
		case BackendRedis:
			repo = store.NewRedisStore(do.MustInvoke[*Redis](i).Client)
		default:
			return nil, opts.Validate()
		}

		cacheTTL, err := duration("cache-ttl", opts.CacheTTL)
		if err != nil {
			return nil, err
		}

		if cacheTTL > 0 {
			repo = store.NewRedisCacheRepository(repo, do.MustInvoke[*Redis](i).Client, cacheTTL)
		}

		return repo, nil
	})
}

// RateLimitPackage provides the admission limiter selected by --rate-limit-mode.
func RateLimitPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (ratelimit.Limiter, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)

		switch opts.RateLimitMode {
		case ModeGlobal:
			window, err := duration("rate-limit-window", opts.RateLimitWindow)
			if err != nil {
				return nil, err
			}

			var counters ratelimit.Store = store.NewRateLimitMemoryStore()
			if opts.RateLimitStore == BackendRedis {
				counters = store.NewRateLimitRedisStore(do.MustInvoke[*Redis](i).Client)
			}

			logger.Info("global rate limiting enabled",
				zap.Int("limit", opts.RateLimit),
				zap.Duration("window", window),
				zap.String("store", opts.RateLimitStore),
			)

			return ratelimit.NewFixedWindowLimiter(counters, int64(opts.RateLimit), window), nil
		case ModeClient:
			slots, err := do.Invoke[*ratelimit.SlotLimiter](i)
			if err != nil {
				return nil, err
			}

			return slots, nil
		default:
			return nil, opts.Validate()
		}
	})

	do.Provide(injector, func(i *do.Injector) (*ratelimit.SlotLimiter, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)

		sweep, err := duration("sweep-interval", opts.SweepInterval)
		if err != nil {
			return nil, err
		}

		limiter := ratelimit.NewSlotLimiter(int64(opts.RateLimit),
			ratelimit.WithSweepInterval(sweep),
			ratelimit.WithSlotLogger(logger),
		)

		if err := limiter.Start(context.Background()); err != nil {
			return nil, err
		}

		logger.Info("per-client rate limiting enabled",
			zap.Int("limit", opts.RateLimit),
			zap.Duration("sweep_interval", sweep),
		)

		return limiter, nil
	})
}

// ShortenerPackage provides the link service.
func ShortenerPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*shortener.Service, error) {
		opts := do.MustInvoke[*Options](i)

		ttl, err := duration("link-ttl", opts.LinkTTL)
		if err != nil {
			return nil, err
		}

		repo, err := do.Invoke[shortener.Repository](i)
		if err != nil {
			return nil, err
		}

		limiter, err := do.Invoke[ratelimit.Limiter](i)
		if err != nil {
			return nil, err
		}

		return shortener.NewService(repo, limiter,
			shortener.WithTTL(ttl),
			shortener.WithLogger(do.MustInvoke[*zap.Logger](i).Named("shortener")),
		), nil
	})
}
