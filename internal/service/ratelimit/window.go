package ratelimit

import (
	"sync"
	"time"
)

// Window enforces, per key, a minimum gap between events (cooldown) and a
// maximum number of events inside a trailing window.
type Window struct {
	mu       sync.Mutex
	cooldown time.Duration
	span     time.Duration
	limit    int
	events   map[string][]time.Time
}

func NewWindow(cooldown, span time.Duration, limit int) *Window {
	return &Window{
		cooldown: cooldown,
		span:     span,
		limit:    limit,
		events:   make(map[string][]time.Time),
	}
}

// Allow reports whether an event for key at now would be accepted. It does not
// record anything.
func (w *Window) Allow(key string, now time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.allowLocked(key, now)
}

// Acquire records an event for key at now if it is allowed.
func (w *Window) Acquire(key string, now time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.allowLocked(key, now) {
		return false
	}
	w.events[key] = append(w.events[key], now)
	return true
}

// Count returns the events for key still inside the window.
func (w *Window) Count(key string, now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pruneLocked(key, now))
}

// Forget drops all state for key.
func (w *Window) Forget(key string) {
	w.mu.Lock()
	delete(w.events, key)
	w.mu.Unlock()
}

func (w *Window) allowLocked(key string, now time.Time) bool {
	ev := w.pruneLocked(key, now)
	if n := len(ev); n > 0 && now.Sub(ev[n-1]) < w.cooldown {
		return false
	}
	return w.limit <= 0 || len(ev) < w.limit
}

func (w *Window) pruneLocked(key string, now time.Time) []time.Time {
	ev := w.events[key]
	cutoff := now.Add(-w.span)
	i := 0
	for i < len(ev) && !ev[i].After(cutoff) {
		i++
	}
	if i > 0 {
		ev = append(ev[:0], ev[i:]...)
		if len(ev) == 0 {
			delete(w.events, key)
		} else {
			w.events[key] = ev
		}
	}
	return ev
}
