package popular

import (
	"sort"
	"sync"
	"time"

	"github.com/Skyjoe/noticias-resumidas/internal/metrics"
	"github.com/Skyjoe/noticias-resumidas/internal/model"
)

// Tracker counts accesses per query. A query whose count reaches the
// threshold becomes popular and stays popular for the life of the process.
type Tracker struct {
	threshold int
	now       func() time.Time

	mu    sync.Mutex
	stats map[string]*model.QueryStats
}

func NewTracker(threshold int) *Tracker {
	return &Tracker{
		threshold: threshold,
		now:       time.Now,
		stats:     make(map[string]*model.QueryStats),
	}
}

// RecordAccess counts one access to query. promoted is true only for the
// access that made the query popular.
func (t *Tracker) RecordAccess(query string) (count int, promoted bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.stats[query]
	if !ok {
		s = &model.QueryStats{Query: query}
		t.stats[query] = s
	}

	s.Count++
	s.LastAccess = t.now()

	if !s.Popular && s.Count >= t.threshold {
		s.Popular = true
		promoted = true
		metrics.PopularQueries.Inc()
	}

	return s.Count, promoted
}

// MarkPopular makes query popular without counting an access. It reports
// whether the query was newly marked.
func (t *Tracker) MarkPopular(query string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.stats[query]
	if !ok {
		s = &model.QueryStats{Query: query, LastAccess: t.now()}
		t.stats[query] = s
	}
	if s.Popular {
		return false
	}
	s.Popular = true
	metrics.PopularQueries.Inc()
	return true
}

func (t *Tracker) IsPopular(query string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.stats[query]
	return ok && s.Popular
}

// Popular returns the popular queries in alphabetical order.
func (t *Tracker) Popular() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []string
	for q, s := range t.stats {
		if s.Popular {
			out = append(out, q)
		}
	}
	sort.Strings(out)
	return out
}

// Snapshot returns a copy of the stats of every popular query, most
// accessed first.
func (t *Tracker) Snapshot() []model.QueryStats {
	t.mu.Lock()
	out := make([]model.QueryStats, 0, len(t.stats))
	for _, s := range t.stats {
		if s.Popular {
			out = append(out, *s)
		}
	}
	t.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Query < out[j].Query
	})
	return out
}

func (t *Tracker) Stats(query string) (model.QueryStats, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.stats[query]
	if !ok {
		return model.QueryStats{}, false
	}
	return *s, true
}

// Sweep forgets non-popular queries not accessed for longer than idle.
func (t *Tracker) Sweep(idle time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := t.now().Add(-idle)
	dropped := 0
	for q, s := range t.stats {
		if !s.Popular && s.LastAccess.Before(cutoff) {
			delete(t.stats, q)
			dropped++
		}
	}
	return dropped
}
