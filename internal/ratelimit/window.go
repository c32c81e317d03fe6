// Package ratelimit implements fixed-window request counting per source key.
// Windows live in memory only and are lost when the owner restarts.
package ratelimit

import "time"

type window struct {
	count   int
	resetAt time.Time
}

// Limiter is not safe for concurrent use; it is owned by a single actor.
type Limiter struct {
	limit   int
	period  time.Duration
	windows map[string]*window
}

func New(limit int, period time.Duration) *Limiter {
	return &Limiter{
		limit:   limit,
		period:  period,
		windows: make(map[string]*window),
	}
}

// Allow - counts a request for key and reports whether it fits the current window.
// When it does not, the remaining time until the window resets is returned.
func (that *Limiter) Allow(key string, now time.Time) (bool, time.Duration) {
	w, ok := that.windows[key]
	if !ok || !now.Before(w.resetAt) {
		that.windows[key] = &window{count: 1, resetAt: now.Add(that.period)}
		return true, 0
	}

	if w.count >= that.limit {
		return false, w.resetAt.Sub(now)
	}

	w.count++

	return true, 0
}

// Prune - drops windows that have already reset.
func (that *Limiter) Prune(now time.Time) int {
	pruned := 0
	for key, w := range that.windows {
		if !now.Before(w.resetAt) {
			delete(that.windows, key)
			pruned++
		}
	}

	return pruned
}

func (that *Limiter) Reset() {
	that.windows = make(map[string]*window)
}

func (that *Limiter) Len() int {
	return len(that.windows)
}
