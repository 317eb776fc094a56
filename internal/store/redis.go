package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/serroba/link-converter/internal/shortener"
)

// saveScript inserts a link hash and its URL index only when neither key exists yet.
// KEYS: link hash, url index, id sequence. ARGV: code, original url, created_at (unix nanos).
// Returns the new id, or 0 when either key is taken.
var saveScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 or redis.call('EXISTS', KEYS[2]) == 1 then
	return 0
end
local id = redis.call('INCR', KEYS[3])
redis.call('HSET', KEYS[1], 'id', id, 'code', ARGV[1], 'original_url', ARGV[2], 'created_at', ARGV[3])
redis.call('SET', KEYS[2], ARGV[1])
return id
`)

// RedisStore is a Redis implementation of shortener.Repository.
type RedisStore struct {
	client    *redis.Client
	prefix    string // "link:" for code -> link (hash keys)
	urlPrefix string // "link_url:" for url hash -> code (string keys)
	seqKey    string
}

// NewRedisStore creates a new Redis-backed link store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client:    client,
		prefix:    "link:",
		urlPrefix: "link_url:",
		seqKey:    "link_seq",
	}
}

func (r *RedisStore) Save(ctx context.Context, link *shortener.ShortLink) error {
	keys := []string{
		r.prefix + string(link.Code),
		r.urlPrefix + HashURL(link.OriginalURL),
		r.seqKey,
	}

	id, err := saveScript.Run(ctx, r.client, keys,
		string(link.Code),
		link.OriginalURL,
		link.CreatedAt.UnixNano(),
	).Int64()
	if err != nil {
		return err
	}

	if id == 0 {
		return fmt.Errorf("%w: %s", shortener.ErrDuplicate, link.Code)
	}

	link.ID = id

	return nil
}

func (r *RedisStore) FindByCode(ctx context.Context, code shortener.Code) (*shortener.ShortLink, error) {
	result, err := r.client.HGetAll(ctx, r.prefix+string(code)).Result()
	if err != nil {
		return nil, err
	}

	if len(result) == 0 {
		return nil, shortener.ErrNotFound
	}

	return linkFromHash(result), nil
}

func (r *RedisStore) FindByOriginalURL(ctx context.Context, originalURL string) (*shortener.ShortLink, error) {
	code, err := r.client.Get(ctx, r.urlPrefix+HashURL(originalURL)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, shortener.ErrNotFound
		}

		return nil, err
	}

	return r.FindByCode(ctx, shortener.Code(code))
}

// HashURL returns the hex SHA-256 of a URL, used to keep index keys short.
func HashURL(originalURL string) string {
	h := sha256.Sum256([]byte(originalURL))

	return hex.EncodeToString(h[:])
}

func linkFromHash(fields map[string]string) *shortener.ShortLink {
	link := &shortener.ShortLink{
		Code:        shortener.Code(fields["code"]),
		OriginalURL: fields["original_url"],
	}

	if id, err := strconv.ParseInt(fields["id"], 10, 64); err == nil {
		link.ID = id
	}

	if nanos, err := strconv.ParseInt(fields["created_at"], 10, 64); err == nil {
		link.CreatedAt = time.Unix(0, nanos)
	}

	return link
}

// Compile-time check.
var _ shortener.Repository = (*RedisStore)(nil)
