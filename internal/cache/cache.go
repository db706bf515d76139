// Package cache holds search results in two tiers: a small local LRU in
// front of a larger shared tier. Results are keyed by normalized query only;
// pagination is applied by slicing the cached result set.
package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/Skyjoe/noticias-resumidas/internal/metrics"
	"github.com/Skyjoe/noticias-resumidas/internal/model"
)

type TwoTier struct {
	local  *Local
	shared Shared
	now    func() time.Time
}

func NewTwoTier(local *Local, shared Shared) *TwoTier {
	return &TwoTier{
		local:  local,
		shared: shared,
		now:    time.Now,
	}
}

// Lookup returns the cached result set for key, checking the local tier and
// then the shared tier. A shared hit is copied into the local tier.
func (c *TwoTier) Lookup(ctx context.Context, key string) ([]model.NewsItem, bool) {
	e, ok := c.Entry(ctx, key)
	if !ok {
		return nil, false
	}
	return e.Items, true
}

// Entry is Lookup returning the whole cache entry.
func (c *TwoTier) Entry(ctx context.Context, key string) (*model.CacheEntry, bool) {
	if e, ok := c.local.Get(key); ok {
		metrics.CacheHits.WithLabelValues(metrics.TierLocal).Inc()
		return e, true
	}

	e, ok, err := c.shared.Get(ctx, key)
	if err != nil {
		slog.Warn("shared cache lookup failed, treating as miss", "query", key, "error", err)
		metrics.SharedErrors.WithLabelValues("get").Inc()
	}
	if !ok {
		metrics.CacheMisses.Inc()
		return nil, false
	}

	metrics.CacheHits.WithLabelValues(metrics.TierShared).Inc()
	c.local.Add(e)
	return e, true
}

// Store writes items to both tiers. A shared tier failure is logged; the
// local tier still holds the result.
func (c *TwoTier) Store(ctx context.Context, key string, items []model.NewsItem) {
	if items == nil {
		items = []model.NewsItem{}
	}

	e := &model.CacheEntry{
		Query:     key,
		Items:     items,
		FetchedAt: c.now(),
	}

	if err := c.shared.Set(ctx, e); err != nil {
		slog.Error("shared cache store failed", "query", key, "error", err)
		metrics.SharedErrors.WithLabelValues("set").Inc()
	}
	c.local.Add(e)
}

// Slice returns up to count items starting at start. The result shares
// memory with items but cannot be appended into it.
func Slice(items []model.NewsItem, start, count int) []model.NewsItem {
	if start < 0 || count <= 0 || start >= len(items) {
		return []model.NewsItem{}
	}
	end := start + count
	if end > len(items) {
		end = len(items)
	}
	return items[start:end:end]
}
