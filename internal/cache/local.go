package cache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/Skyjoe/noticias-resumidas/internal/metrics"
	"github.com/Skyjoe/noticias-resumidas/internal/model"
)

// Local is the bounded in-process tier. Lookups promote the entry to most
// recently used; adding past capacity evicts the least recently used one.
type Local struct {
	lru *expirable.LRU[string, *model.CacheEntry]
	ttl time.Duration
	now func() time.Time
}

func NewLocal(size int, ttl time.Duration) *Local {
	return &Local{
		lru: expirable.NewLRU[string, *model.CacheEntry](size, nil, ttl),
		ttl: ttl,
		now: time.Now,
	}
}

// Get returns the entry for key unless it is missing or older than the
// tier's TTL, measured from the time the results were fetched.
func (l *Local) Get(key string) (*model.CacheEntry, bool) {
	e, ok := l.lru.Get(key)
	if !ok {
		return nil, false
	}
	if e.Age(l.now()) > l.ttl {
		l.lru.Remove(key)
		return nil, false
	}
	return e, true
}

// Add stores e and reports whether another entry was evicted to make room.
func (l *Local) Add(e *model.CacheEntry) bool {
	if e.Age(l.now()) > l.ttl {
		return false
	}
	evicted := l.lru.Add(e.Query, e)
	if evicted {
		metrics.CacheEvictions.Inc()
	}
	return evicted
}

func (l *Local) Remove(key string) {
	l.lru.Remove(key)
}

// Keys returns the cached keys from least to most recently used.
func (l *Local) Keys() []string {
	return l.lru.Keys()
}

func (l *Local) Len() int {
	return l.lru.Len()
}
