// Package ratelimit provides a per-key sliding-window limiter used for admin
// login attempts and the public tracking endpoints.
package ratelimit

import (
	"sync"
	"time"
)

// Window counts hits per key over a sliding time window.
type Window struct {
	mu     sync.Mutex
	hits   map[string][]time.Time
	max    int
	window time.Duration
	now    func() time.Time
	stop   chan struct{}
	once   sync.Once
}

// New returns a Window allowing max hits per key within window. A background
// sweeper drops idle keys every window until Stop is called.
func New(max int, window time.Duration) *Window {
	w := &Window{
		hits:   make(map[string][]time.Time),
		max:    max,
		window: window,
		now:    time.Now,
		stop:   make(chan struct{}),
	}
	go w.sweep()
	return w
}

// Allow reports whether key is under the limit and, if so, records a hit.
func (w *Window) Allow(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	now := w.now()
	kept := w.prune(key, now)
	if len(kept) >= w.max {
		return false
	}
	w.hits[key] = append(kept, now)
	return true
}

// Check reports whether key is under the limit without recording a hit.
// Login flows call Check first and Record only on a failed attempt.
func (w *Window) Check(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.prune(key, w.now())) < w.max
}

// Record registers a hit for key.
func (w *Window) Record(key string) {
	w.mu.Lock()
	w.hits[key] = append(w.hits[key], w.now())
	w.mu.Unlock()
}

// Stop ends the background sweeper.
func (w *Window) Stop() {
	w.once.Do(func() { close(w.stop) })
}

// prune drops expired hits for key; callers hold mu.
func (w *Window) prune(key string, now time.Time) []time.Time {
	cutoff := now.Add(-w.window)
	hits := w.hits[key]
	kept := hits[:0]
	for _, t := range hits {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		delete(w.hits, key)
		return nil
	}
	w.hits[key] = kept
	return kept
}

func (w *Window) sweep() {
	ticker := time.NewTicker(w.window)
	defer ticker.Stop()
	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			w.mu.Lock()
			now := w.now()
			for key := range w.hits {
				w.prune(key, now)
			}
			w.mu.Unlock()
		}
	}
}
