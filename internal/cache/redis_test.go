package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-playground/assert/v2"
	"github.com/redis/go-redis/v9"

	"github.com/Skyjoe/noticias-resumidas/internal/model"
)

func newTestRedisTier(t *testing.T, ttl time.Duration) (*RedisTier, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisTier(client, "test:search:", ttl), mr
}

func TestRedisTier_RoundTrip(t *testing.T) {
	tier, mr := newTestRedisTier(t, 10*time.Minute)
	ctx := context.Background()

	entry := &model.CacheEntry{
		Query: "eleições",
		Items: []model.NewsItem{
			{Title: "Debate", Summary: "Resumo", URL: "https://example.com/a", Date: "há 2 horas", Source: "G1"},
		},
		FetchedAt: time.Now(),
	}

	err := tier.Set(ctx, entry)
	assert.Equal(t, nil, err)
	assert.Equal(t, true, mr.Exists("test:search:eleições"))
	assert.Equal(t, 10*time.Minute, mr.TTL("test:search:eleições"))

	got, ok, err := tier.Get(ctx, "eleições")
	assert.Equal(t, nil, err)
	assert.Equal(t, true, ok)
	assert.Equal(t, entry.Items, got.Items)
}

func TestRedisTier_Miss(t *testing.T) {
	tier, _ := newTestRedisTier(t, time.Minute)

	got, ok, err := tier.Get(context.Background(), "missing")

	assert.Equal(t, nil, err)
	assert.Equal(t, false, ok)
	assert.Equal(t, nil, got)
}

func TestRedisTier_Expires(t *testing.T) {
	tier, mr := newTestRedisTier(t, time.Minute)
	ctx := context.Background()

	tier.Set(ctx, &model.CacheEntry{Query: "q", FetchedAt: time.Now()})
	mr.FastForward(61 * time.Second)

	_, ok, err := tier.Get(ctx, "q")
	assert.Equal(t, nil, err)
	assert.Equal(t, false, ok)
}

func TestRedisTier_RejectsStaleEntry(t *testing.T) {
	tier, _ := newTestRedisTier(t, time.Minute)
	ctx := context.Background()

	tier.Set(ctx, &model.CacheEntry{Query: "q", FetchedAt: time.Now().Add(-2 * time.Minute)})

	_, ok, err := tier.Get(ctx, "q")
	assert.Equal(t, nil, err)
	assert.Equal(t, false, ok)
}

func TestRedisTier_CorruptValue(t *testing.T) {
	tier, mr := newTestRedisTier(t, time.Minute)
	mr.Set("test:search:q", "not json")

	_, ok, err := tier.Get(context.Background(), "q")
	assert.NotEqual(t, nil, err)
	assert.Equal(t, false, ok)
}
