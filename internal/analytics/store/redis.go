package store

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/serroba/link-converter/internal/analytics"
)

const (
	fieldCreated        = "created"
	fieldResolvedPrefix = "resolved:"
)

// Redis keeps per-code and service-wide event counters in Redis hashes.
type Redis struct {
	client    *redis.Client
	prefix    string
	totalsKey string
}

var _ analytics.Store = (*Redis)(nil)

// NewRedis creates a counter-backed analytics store.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{
		client:    client,
		prefix:    "analytics:link:",
		totalsKey: "analytics:totals",
	}
}

func (r *Redis) SaveLinkCreated(ctx context.Context, event *analytics.LinkCreatedEvent) error {
	return r.incr(ctx, event.Code, fieldCreated)
}

func (r *Redis) SaveLinkResolved(ctx context.Context, event *analytics.LinkResolvedEvent) error {
	return r.incr(ctx, event.Code, fieldResolvedPrefix+string(event.Outcome))
}

func (r *Redis) incr(ctx context.Context, code, field string) error {
	pipe := r.client.TxPipeline()
	pipe.HIncrBy(ctx, r.prefix+code, field, 1)
	pipe.HIncrBy(ctx, r.totalsKey, field, 1)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("increment %s counter for %s: %w", field, code, err)
	}

	return nil
}

// Counts returns the counters recorded for code, keyed by field.
func (r *Redis) Counts(ctx context.Context, code string) (map[string]int64, error) {
	return r.read(ctx, r.prefix+code)
}

// Totals returns the service-wide counters, keyed by field.
func (r *Redis) Totals(ctx context.Context) (map[string]int64, error) {
	return r.read(ctx, r.totalsKey)
}

func (r *Redis) read(ctx context.Context, key string) (map[string]int64, error) {
	raw, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("read counters %s: %w", key, err)
	}

	counts := make(map[string]int64, len(raw))

	for field, v := range raw {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse counter %s/%s: %w", key, field, err)
		}

		counts[field] = n
	}

	return counts, nil
}
