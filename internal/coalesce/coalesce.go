// Package coalesce serializes external searches per query.
//
// Concurrent misses for the same query join one in-flight search. Each
// query also has a gate holding the earliest time its next search may
// start, so successive searches for one query are spaced by at least
// MinInterval. Forced refreshes skip that spacing but still run under the
// gate, so at most one search per query is outstanding at any time.
package coalesce

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Skyjoe/noticias-resumidas/internal/metrics"
	"github.com/Skyjoe/noticias-resumidas/internal/model"
	"github.com/Skyjoe/noticias-resumidas/pkg/news"
)

var ErrFetch = errors.New("fetch failed")

type Store interface {
	Lookup(ctx context.Context, key string) ([]model.NewsItem, bool)
	Store(ctx context.Context, key string, items []model.NewsItem)
}

// Archiver receives every successfully fetched result set.
type Archiver interface {
	SaveResults(ctx context.Context, query string, items []model.NewsItem) error
}

type Options struct {
	MinInterval  time.Duration
	FetchTimeout time.Duration
	MaxResults   int
}

type Coalescer struct {
	searcher news.Searcher
	store    Store
	archiver Archiver
	opts     Options

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	group singleflight.Group

	mu    sync.Mutex
	gates map[string]*gate
}

// gate is the per-query fetch lock.
type gate struct {
	mu      sync.Mutex
	next    time.Time
	used    time.Time
	removed bool
}

func New(searcher news.Searcher, store Store, opts Options) *Coalescer {
	if opts.MaxResults <= 0 {
		opts.MaxResults = model.MaxResults
	}
	return &Coalescer{
		searcher: searcher,
		store:    store,
		opts:     opts,
		now:      time.Now,
		sleep:    sleepContext,
		gates:    make(map[string]*gate),
	}
}

func (c *Coalescer) SetArchiver(a Archiver) {
	c.archiver = a
}

// FetchOrWait returns the result set for query, searching the external
// source at most once for all concurrent callers. Cancelling ctx abandons
// the wait; the search itself keeps running and still populates the cache.
func (c *Coalescer) FetchOrWait(ctx context.Context, query string) ([]model.NewsItem, error) {
	items, _, err := c.Fetch(ctx, query)
	return items, err
}

// Fetch is FetchOrWait that also reports whether the result came from an
// entry another flight cached while this one waited for the gate.
func (c *Coalescer) Fetch(ctx context.Context, query string) ([]model.NewsItem, bool, error) {
	return c.do(ctx, "fetch:"+query, query, false)
}

// Refresh searches query immediately, ignoring both the cache and the
// minimum interval, and stores the result. Unlike FetchOrWait, cancelling
// ctx cancels the search.
func (c *Coalescer) Refresh(ctx context.Context, query string) ([]model.NewsItem, error) {
	items, _, err := c.do(ctx, "refresh:"+query, query, true)
	return items, err
}

type result struct {
	items  []model.NewsItem
	cached bool
}

func (c *Coalescer) do(ctx context.Context, flight, query string, force bool) ([]model.NewsItem, bool, error) {
	// client flights outlive any one waiter; forced ones have no waiters to
	// protect and stop with their caller
	fetchCtx := ctx
	if !force {
		fetchCtx = context.WithoutCancel(ctx)
	}
	ch := c.group.DoChan(flight, func() (interface{}, error) {
		return c.fetch(fetchCtx, query, force)
	})

	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		r := res.Val.(result)
		return r.items, r.cached, nil
	}
}

func (c *Coalescer) fetch(ctx context.Context, query string, force bool) (result, error) {
	g := c.lockGate(query)
	defer func() {
		g.used = c.now()
		g.mu.Unlock()
	}()

	mode := "normal"
	if force {
		mode = "forced"
	} else {
		// a previous flight may have filled the cache while we queued
		if items, ok := c.store.Lookup(ctx, query); ok {
			return result{items: items, cached: true}, nil
		}

		if wait := g.next.Sub(c.now()); wait > 0 {
			slog.Debug("throttling fetch", "query", query, "wait", wait)
			if err := c.sleep(ctx, wait); err != nil {
				return result{}, fmt.Errorf("%w: %w", ErrFetch, err)
			}
		}
	}

	start := c.now()
	g.next = start.Add(c.opts.MinInterval)

	searchCtx := ctx
	if c.opts.FetchTimeout > 0 {
		var cancel context.CancelFunc
		searchCtx, cancel = context.WithTimeout(ctx, c.opts.FetchTimeout)
		defer cancel()
	}

	raw, err := c.searcher.Search(searchCtx, query)
	metrics.FetchDuration.Observe(c.now().Sub(start).Seconds())
	if err != nil {
		metrics.Fetches.WithLabelValues(mode, "error").Inc()
		slog.Error("search failed", "source", c.searcher.Name(), "query", query, "mode", mode, "error", err)
		return result{}, fmt.Errorf("%w: %w", ErrFetch, err)
	}

	items := news.ToNewsItems(raw, c.opts.MaxResults)
	c.store.Store(ctx, query, items)
	metrics.Fetches.WithLabelValues(mode, "ok").Inc()
	slog.Info("search complete", "source", c.searcher.Name(), "query", query, "mode", mode, "raw", len(raw), "items", len(items))

	if c.archiver != nil && len(items) > 0 {
		if err := c.archiver.SaveResults(ctx, query, items); err != nil {
			slog.Error("error archiving results", "query", query, "error", err)
		}
	}

	return result{items: items}, nil
}

// lockGate returns the gate for query, locked.
func (c *Coalescer) lockGate(query string) *gate {
	for {
		c.mu.Lock()
		g, ok := c.gates[query]
		if !ok {
			g = &gate{}
			c.gates[query] = g
		}
		c.mu.Unlock()

		g.mu.Lock()
		if !g.removed {
			return g
		}
		// swept while we were waiting for it
		g.mu.Unlock()
	}
}

// Sweep drops gates that are not held and have been unused for longer than
// idle, provided their throttle window has passed. It returns how many were
// dropped.
func (c *Coalescer) Sweep(idle time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	dropped := 0
	for q, g := range c.gates {
		if !g.mu.TryLock() {
			continue
		}
		if now.Sub(g.used) > idle && !now.Before(g.next) {
			g.removed = true
			delete(c.gates, q)
			dropped++
		}
		g.mu.Unlock()
	}
	return dropped
}

// Gates returns the number of tracked queries.
func (c *Coalescer) Gates() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.gates)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
