package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/Skyjoe/noticias-resumidas/internal/model"
)

// Shared is the larger, longer-lived tier. Implementations must never
// return an entry older than their TTL.
type Shared interface {
	Get(ctx context.Context, key string) (*model.CacheEntry, bool, error)
	Set(ctx context.Context, entry *model.CacheEntry) error
}

// MemoryTier is a Shared tier held in process memory, used when no Redis is
// configured. It is unbounded in size; entries leave only by expiring.
type MemoryTier struct {
	lru *expirable.LRU[string, *model.CacheEntry]
	ttl time.Duration
	now func() time.Time
}

func NewMemoryTier(ttl time.Duration) *MemoryTier {
	return &MemoryTier{
		lru: expirable.NewLRU[string, *model.CacheEntry](0, nil, ttl),
		ttl: ttl,
		now: time.Now,
	}
}

// Get also rejects entries whose fetch time is past the TTL, so an entry
// stored late still cannot outlive it.
func (m *MemoryTier) Get(_ context.Context, key string) (*model.CacheEntry, bool, error) {
	e, ok := m.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	if e.Age(m.now()) > m.ttl {
		m.lru.Remove(key)
		return nil, false, nil
	}
	return e, true, nil
}

func (m *MemoryTier) Set(_ context.Context, entry *model.CacheEntry) error {
	m.lru.Add(entry.Query, entry)
	return nil
}

func (m *MemoryTier) Len() int {
	return m.lru.Len()
}
