package shortener

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/serroba/link-converter/internal/ratelimit"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Service creates short links and resolves codes back to their original URLs.
type Service struct {
	repo     Repository
	limiter  ratelimit.Limiter
	generate CodeGenerator
	ttl      time.Duration
	now      func() time.Time
	logger   *zap.Logger
	inflight singleflight.Group
}

// Option configures a Service.
type Option func(*Service)

// WithTTL sets how long links resolve after creation.
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) { s.ttl = ttl }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithCodeGenerator replaces GenerateCode.
func WithCodeGenerator(generate CodeGenerator) Option {
	return func(s *Service) { s.generate = generate }
}

// WithLogger sets the service logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// NewService creates a new Service guarding creations with limiter.
func NewService(repo Repository, limiter ratelimit.Limiter, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		limiter:  limiter,
		generate: GenerateCode,
		ttl:      DefaultTTL,
		now:      time.Now,
		logger:   zap.NewNop(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// TTL returns the validity window applied to links.
func (s *Service) TTL() time.Duration {
	return s.ttl
}

// Creation is the outcome of CreateOrGet.
type Creation struct {
	Link *ShortLink
	// Created is set for the one caller whose request persisted Link.
	Created bool
}

// CreateOrGetCode returns the code for originalURL, creating the link if it does not exist yet.
// Every call consumes one admission from the limiter on behalf of principal, including calls
// that return an existing code.
func (s *Service) CreateOrGetCode(ctx context.Context, principal, originalURL string) (Code, error) {
	creation, err := s.CreateOrGet(ctx, principal, originalURL)
	if err != nil {
		return "", err
	}

	return creation.Link.Code, nil
}

// CreateOrGet is CreateOrGetCode reporting the stored link and whether this call created it.
//
// Concurrent calls for one URL share a single lookup-and-save that runs detached from any
// caller's cancellation; each caller stops waiting when its own ctx is done.
func (s *Service) CreateOrGet(ctx context.Context, principal, originalURL string) (Creation, error) {
	release, err := s.limiter.Admit(ctx, principal)
	if err != nil {
		if errors.Is(err, ratelimit.ErrLimitExceeded) {
			s.logger.Warn("rate limit exceeded", zap.String("principal", principal), zap.Error(err))
		}

		return Creation{}, err
	}
	defer release()

	leader := false
	flight := s.inflight.DoChan(originalURL, func() (any, error) {
		leader = true

		return s.createOrGet(context.WithoutCancel(ctx), originalURL)
	})

	select {
	case <-ctx.Done():
		return Creation{}, ctx.Err()
	case res := <-flight:
		if res.Err != nil {
			return Creation{}, res.Err
		}

		creation := res.Val.(Creation)
		creation.Created = creation.Created && leader

		return creation, nil
	}
}

func (s *Service) createOrGet(ctx context.Context, originalURL string) (Creation, error) {
	s.logger.Debug("shortening url", zap.String("url", originalURL))

	existing, err := s.repo.FindByOriginalURL(ctx, originalURL)
	if err == nil {
		s.logger.Info("returning existing short code", zap.String("url", originalURL), zap.String("code", string(existing.Code)))

		return Creation{Link: existing}, nil
	}

	if !errors.Is(err, ErrNotFound) {
		return Creation{}, fmt.Errorf("find by original url: %w", err)
	}

	code := s.generate(originalURL)

	taken, err := s.repo.FindByCode(ctx, code)
	switch {
	case err == nil && taken.OriginalURL == originalURL:
		return Creation{Link: taken}, nil
	case err == nil:
		s.logger.Error("hash collision detected",
			zap.String("url", originalURL),
			zap.String("code", string(code)),
			zap.String("existing_url", taken.OriginalURL),
		)

		return Creation{}, ErrCodeCollision
	case !errors.Is(err, ErrNotFound):
		return Creation{}, fmt.Errorf("find by code: %w", err)
	}

	link := &ShortLink{
		OriginalURL: originalURL,
		Code:        code,
		CreatedAt:   s.now(),
	}

	if err := s.repo.Save(ctx, link); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return s.resolveDuplicate(ctx, link)
		}

		return Creation{}, fmt.Errorf("save short link: %w", err)
	}

	s.logger.Info("created new short link", zap.String("code", string(code)), zap.String("url", originalURL))

	return Creation{Link: link, Created: true}, nil
}

// resolveDuplicate settles a save that lost a race against another writer: if the URL was
// shortened meanwhile its code wins, otherwise the code is held by a different URL.
func (s *Service) resolveDuplicate(ctx context.Context, link *ShortLink) (Creation, error) {
	winner, err := s.repo.FindByOriginalURL(ctx, link.OriginalURL)
	if err == nil {
		return Creation{Link: winner}, nil
	}

	if !errors.Is(err, ErrNotFound) {
		return Creation{}, fmt.Errorf("find by original url: %w", err)
	}

	s.logger.Error("hash collision detected on save",
		zap.String("url", link.OriginalURL),
		zap.String("code", string(link.Code)),
	)

	return Creation{}, ErrCodeCollision
}

// ResolveCode returns the original URL behind code. It fails with ErrNotFound for unknown codes
// and ErrExpired once the link is older than the service TTL.
func (s *Service) ResolveCode(ctx context.Context, code Code) (string, error) {
	s.logger.Debug("resolving short code", zap.String("code", string(code)))

	link, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.logger.Warn("short link not found", zap.String("code", string(code)))

			return "", ErrNotFound
		}

		return "", fmt.Errorf("find by code: %w", err)
	}

	if link.Expired(s.now(), s.ttl) {
		s.logger.Warn("attempt to access expired link",
			zap.String("code", string(code)),
			zap.Time("expired_at", link.ExpiresAt(s.ttl)),
		)

		return "", ErrExpired
	}

	return link.OriginalURL, nil
}
