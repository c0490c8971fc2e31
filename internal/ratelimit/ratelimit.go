// Package ratelimit provides per-client request throttling for the ask
// endpoint.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter decides whether a client identified by key may make another
// request right now.
type Limiter interface {
	Allow(key string) bool
}

type window struct {
	start time.Time
	count int
}

// FixedWindow limits each key to maxRequests per fixed window. Counters
// reset when a window expires rather than sliding.
type FixedWindow struct {
	mu          sync.Mutex
	windows     map[string]*window
	maxRequests int
	interval    time.Duration
	now         func() time.Time
}

// NewFixedWindow creates a FixedWindow limiter allowing maxRequests per
// interval for each key.
func NewFixedWindow(maxRequests int, interval time.Duration) *FixedWindow {
	if maxRequests <= 0 {
		maxRequests = 20
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &FixedWindow{
		windows:     make(map[string]*window),
		maxRequests: maxRequests,
		interval:    interval,
		now:         time.Now,
	}
}

// Allow reports whether key may proceed, counting the request if so.
func (f *FixedWindow) Allow(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	w, ok := f.windows[key]
	if !ok || now.Sub(w.start) >= f.interval {
		f.windows[key] = &window{start: now, count: 1}
		f.sweepLocked(now)
		return true
	}
	if w.count >= f.maxRequests {
		return false
	}
	w.count++
	return true
}

// sweepLocked drops expired windows so the map does not grow with every
// distinct client ever seen. Called with the lock held.
func (f *FixedWindow) sweepLocked(now time.Time) {
	for key, w := range f.windows {
		if now.Sub(w.start) >= f.interval {
			delete(f.windows, key)
		}
	}
}
