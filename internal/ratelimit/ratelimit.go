// Package ratelimit caps request volume per client key.
package ratelimit

import (
	"sync"
	"time"
)

// Default window and cap.
const (
	DefaultWindow      = 60 * time.Second
	DefaultMaxRequests = 10
)

// Limiter decides whether a request from key may proceed. Implementations
// must be safe for concurrent use.
type Limiter interface {
	Allow(key string) bool
}

type record struct {
	count   int
	resetAt time.Time
}

// Window is an in-memory fixed-window counter. State lives for the life of
// the process; expired entries are replaced lazily on the next call for the
// same key and swept every few windows.
type Window struct {
	window time.Duration
	max    int
	now    func() time.Time

	mu        sync.Mutex
	records   map[string]*record
	lastSweep time.Time
}

// Option configures a Window.
type Option func(*Window)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(w *Window) { w.now = now }
}

// NewWindow returns a Window allowing max requests per key per window.
// Non-positive arguments fall back to the defaults.
func NewWindow(window time.Duration, max int, opts ...Option) *Window {
	if window <= 0 {
		window = DefaultWindow
	}
	if max <= 0 {
		max = DefaultMaxRequests
	}
	w := &Window{
		window:  window,
		max:     max,
		now:     time.Now,
		records: make(map[string]*record),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.lastSweep = w.now()
	return w
}

// Allow records a request for key and reports whether it is within the cap.
func (w *Window) Allow(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	w.sweep(now)

	rec, ok := w.records[key]
	if !ok || !now.Before(rec.resetAt) {
		w.records[key] = &record{count: 1, resetAt: now.Add(w.window)}
		return true
	}
	if rec.count >= w.max {
		return false
	}
	rec.count++
	return true
}

// Count returns the number of requests recorded for key in its current
// window.
func (w *Window) Count(key string) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	rec, ok := w.records[key]
	if !ok || !w.now().Before(rec.resetAt) {
		return 0
	}
	return rec.count
}

// sweep drops expired records so idle clients do not accumulate. Caller
// holds mu.
func (w *Window) sweep(now time.Time) {
	if now.Sub(w.lastSweep) < 10*w.window {
		return
	}
	for k, rec := range w.records {
		if !now.Before(rec.resetAt) {
			delete(w.records, k)
		}
	}
	w.lastSweep = now
}

// Nop allows every request.
type Nop struct{}

// Allow always returns true.
func (Nop) Allow(string) bool { return true }
