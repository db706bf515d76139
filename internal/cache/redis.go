package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Skyjoe/noticias-resumidas/internal/model"
)

// RedisTier stores entries as JSON with a Redis-side expiry, so entries are
// shared by every API instance pointing at the same Redis.
type RedisTier struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

func NewRedisTier(client *redis.Client, prefix string, ttl time.Duration) *RedisTier {
	return &RedisTier{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		now:    time.Now,
	}
}

func (r *RedisTier) Get(ctx context.Context, key string) (*model.CacheEntry, bool, error) {
	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}

	var e model.CacheEntry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, false, fmt.Errorf("redis decode %s: %w", key, err)
	}

	if e.Age(r.now()) > r.ttl {
		return nil, false, nil
	}

	return &e, true, nil
}

func (r *RedisTier) Set(ctx context.Context, entry *model.CacheEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("redis encode %s: %w", entry.Query, err)
	}

	if err := r.client.Set(ctx, r.prefix+entry.Query, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", entry.Query, err)
	}
	return nil
}
