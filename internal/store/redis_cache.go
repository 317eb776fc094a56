package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/serroba/link-converter/internal/shortener"
)

// RedisCacheRepository wraps a Repository with Redis caching for reads.
// Links are immutable, so cached entries never need invalidation; the TTL only bounds memory.
type RedisCacheRepository struct {
	store     shortener.Repository
	client    *redis.Client
	prefix    string
	urlPrefix string
	ttl       time.Duration
}

// NewRedisCacheRepository creates a new Redis-cached repository decorator.
func NewRedisCacheRepository(
	store shortener.Repository, client *redis.Client, ttl time.Duration,
) *RedisCacheRepository {
	return &RedisCacheRepository{
		store:     store,
		client:    client,
		prefix:    "cache:link:",
		urlPrefix: "cache:link_url:",
		ttl:       ttl,
	}
}

// Save stores a link in the underlying store and updates the cache.
func (r *RedisCacheRepository) Save(ctx context.Context, link *shortener.ShortLink) error {
	if err := r.store.Save(ctx, link); err != nil {
		return err
	}

	// Write-through: update cache after successful save
	r.cacheLink(ctx, link)

	return nil
}

// FindByCode retrieves a link by its code, checking cache first.
func (r *RedisCacheRepository) FindByCode(ctx context.Context, code shortener.Code) (*shortener.ShortLink, error) {
	if link, err := r.getFromCache(ctx, code); err == nil {
		return link, nil
	}

	link, err := r.store.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	r.cacheLink(ctx, link)

	return link, nil
}

// FindByOriginalURL retrieves a link by its original URL, checking the URL index cache first.
func (r *RedisCacheRepository) FindByOriginalURL(ctx context.Context, originalURL string) (*shortener.ShortLink, error) {
	code, err := r.client.Get(ctx, r.urlPrefix+HashURL(originalURL)).Result()
	if err == nil {
		if link, err := r.getFromCache(ctx, shortener.Code(code)); err == nil {
			return link, nil
		}
	}

	link, err := r.store.FindByOriginalURL(ctx, originalURL)
	if err != nil {
		return nil, err
	}

	r.cacheLink(ctx, link)

	return link, nil
}

func (r *RedisCacheRepository) getFromCache(ctx context.Context, code shortener.Code) (*shortener.ShortLink, error) {
	result, err := r.client.HGetAll(ctx, r.prefix+string(code)).Result()
	if err != nil {
		return nil, err
	}

	if len(result) == 0 {
		return nil, shortener.ErrNotFound
	}

	return linkFromHash(result), nil
}

func (r *RedisCacheRepository) cacheLink(ctx context.Context, link *shortener.ShortLink) {
	pipe := r.client.Pipeline()
	key := r.prefix + string(link.Code)
	urlKey := r.urlPrefix + HashURL(link.OriginalURL)

	pipe.HSet(ctx, key, map[string]interface{}{
		"id":           link.ID,
		"code":         string(link.Code),
		"original_url": link.OriginalURL,
		"created_at":   link.CreatedAt.UnixNano(),
	})
	pipe.Set(ctx, urlKey, string(link.Code), r.ttl)

	if r.ttl > 0 {
		pipe.Expire(ctx, key, r.ttl)
	}

	_, _ = pipe.Exec(ctx)
}

// Compile-time check.
var _ shortener.Repository = (*RedisCacheRepository)(nil)
