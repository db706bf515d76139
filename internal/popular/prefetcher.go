package popular

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/Skyjoe/noticias-resumidas/internal/metrics"
	"github.com/Skyjoe/noticias-resumidas/internal/model"
)

const refreshConcurrency = 4

type Refresher interface {
	Refresh(ctx context.Context, query string) ([]model.NewsItem, error)
}

// Store persists popular queries across restarts.
type Store interface {
	SavePopular(ctx context.Context, query string) error
	LoadPopular(ctx context.Context) ([]string, error)
}

// Prefetcher keeps popular queries warm: each promotion triggers one
// immediate refresh, and every popular query is refreshed on a fixed period.
type Prefetcher struct {
	tracker   *Tracker
	refresher Refresher
	store     Store
	interval  time.Duration

	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc

	// mu orders wg.Add in Promote against Stop's wg.Wait.
	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
}

func NewPrefetcher(tracker *Tracker, refresher Refresher, interval time.Duration) *Prefetcher {
	ctx, cancel := context.WithCancel(context.Background())
	logger := slogCronLogger{}

	return &Prefetcher{
		tracker:   tracker,
		refresher: refresher,
		interval:  interval,
		cron:      cron.New(cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)), cron.WithLogger(logger)),
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (p *Prefetcher) SetStore(s Store) {
	p.store = s
}

// Restore marks the persisted popular queries as popular again.
func (p *Prefetcher) Restore(ctx context.Context) (int, error) {
	if p.store == nil {
		return 0, nil
	}

	queries, err := p.store.LoadPopular(ctx)
	if err != nil {
		return 0, fmt.Errorf("loading popular queries: %w", err)
	}

	restored := 0
	for _, q := range queries {
		if p.tracker.MarkPopular(q) {
			restored++
		}
	}
	return restored, nil
}

// Schedule runs job every period alongside the refresh loop. Jobs must be
// registered before Start.
func (p *Prefetcher) Schedule(name string, every time.Duration, job func()) error {
	_, err := p.cron.AddFunc("@every "+every.String(), job)
	if err != nil {
		return fmt.Errorf("scheduling %s: %w", name, err)
	}
	return nil
}

func (p *Prefetcher) Start() error {
	if err := p.Schedule("refresh", p.interval, func() { p.RefreshPopular(p.ctx) }); err != nil {
		return err
	}
	p.cron.Start()
	slog.Info("prefetcher started", "interval", p.interval, "popular", len(p.tracker.Popular()))
	return nil
}

// Stop cancels running refreshes and waits for scheduled jobs and
// promotion refreshes to return, or for ctx to expire.
func (p *Prefetcher) Stop(ctx context.Context) error {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()

	p.cancel()
	cronDone := p.cron.Stop()

	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Promote schedules one out-of-band refresh of a newly popular query and
// returns without waiting for it.
func (p *Prefetcher) Promote(query string) {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()

		if p.store != nil {
			if err := p.store.SavePopular(p.ctx, query); err != nil {
				slog.Error("error saving popular query", "query", query, "error", err)
			}
		}

		if err := p.refresh(p.ctx, query); err != nil {
			slog.Warn("promotion refresh failed", "query", query, "error", err)
		}
	}()
}

// RefreshPopular refreshes every popular query once. A failing query is
// logged and counted; it never stops the others. It returns the number of
// failures.
func (p *Prefetcher) RefreshPopular(ctx context.Context) int {
	queries := p.tracker.Popular()
	if len(queries) == 0 {
		return 0
	}

	var (
		mu       sync.Mutex
		failures int
		g        errgroup.Group
	)
	g.SetLimit(refreshConcurrency)

	for _, q := range queries {
		q := q
		g.Go(func() error {
			if err := p.refresh(ctx, q); err != nil {
				slog.Error("error refreshing popular query", "query", q, "error", err)
				mu.Lock()
				failures++
				mu.Unlock()
			}
			return nil
		})
	}
	g.Wait()

	slog.Info("popular refresh complete", "queries", len(queries), "failures", failures)
	return failures
}

func (p *Prefetcher) refresh(ctx context.Context, query string) error {
	if _, err := p.refresher.Refresh(ctx, query); err != nil {
		metrics.RefreshFailures.Inc()
		return err
	}
	return nil
}

// slogCronLogger routes cron's own logging to slog.
type slogCronLogger struct{}

func (slogCronLogger) Info(msg string, keysAndValues ...interface{}) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (slogCronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	slog.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
