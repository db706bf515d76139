package db

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

var Redis *redis.Client

// SearchCacheKeyPrefix namespaces cached result sets in the shared tier.
const SearchCacheKeyPrefix = "newsproxy:search:"

func ConnectRedis(ctx context.Context, redisURL string) error {
	if redisURL == "" {
		return ErrNoURL
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		opt = &redis.Options{Addr: redisURL}
	}

	Redis = redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return Redis.Ping(pingCtx).Err()
}

func CloseRedis() {
	if Redis != nil {
		Redis.Close()
	}
}
