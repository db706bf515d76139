// Package ratelimit implements per-client sliding-window admission control.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter admits at most limit requests per client within any trailing
// window. Each client has its own lock, so unrelated clients never wait on
// each other.
type Limiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	clients map[string]*clientWindow
}

type clientWindow struct {
	mu      sync.Mutex
	stamps  []time.Time
	removed bool
}

func New(limit int, window time.Duration) *Limiter {
	return &Limiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		clients: make(map[string]*clientWindow),
	}
}

// Allow records a request for clientID and reports whether it is admitted.
func (l *Limiter) Allow(clientID string) bool {
	for {
		w := l.get(clientID)

		w.mu.Lock()
		if w.removed {
			// swept between lookup and lock, retry with a fresh window
			w.mu.Unlock()
			continue
		}

		now := l.now()
		w.prune(now.Add(-l.window))

		if len(w.stamps) >= l.limit {
			w.mu.Unlock()
			return false
		}

		w.stamps = append(w.stamps, now)
		w.mu.Unlock()
		return true
	}
}

// Remaining reports how many more requests clientID may make right now.
func (l *Limiter) Remaining(clientID string) int {
	l.mu.Lock()
	w, ok := l.clients[clientID]
	l.mu.Unlock()
	if !ok {
		return l.limit
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	cutoff := l.now().Add(-l.window)
	n := 0
	for _, ts := range w.stamps {
		if ts.After(cutoff) {
			n++
		}
	}
	if n >= l.limit {
		return 0
	}
	return l.limit - n
}

// Sweep forgets clients with no request inside the window and returns how
// many were dropped.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.window)
	dropped := 0
	for id, w := range l.clients {
		w.mu.Lock()
		if len(w.stamps) == 0 || !w.stamps[len(w.stamps)-1].After(cutoff) {
			w.removed = true
			delete(l.clients, id)
			dropped++
		}
		w.mu.Unlock()
	}
	return dropped
}

// Len returns the number of tracked clients.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

func (l *Limiter) get(clientID string) *clientWindow {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.clients[clientID]
	if !ok {
		w = &clientWindow{}
		l.clients[clientID] = w
	}
	return w
}

// prune drops timestamps at or before cutoff. Stamps are appended in order,
// so the kept ones are a suffix.
func (w *clientWindow) prune(cutoff time.Time) {
	i := 0
	for i < len(w.stamps) && !w.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.stamps = append(w.stamps[:0], w.stamps[i:]...)
	}
}
