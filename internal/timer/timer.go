// Package timer provides a coarse gap timer for periodic maintenance
// triggers inside the world cycle loop.
package timer

import "time"

// Timer fires at most once per gap. The first Next call after New
// fires immediately.
type Timer struct {
	gap  time.Duration
	last time.Time
}

// New creates a Timer with the given gap.
func New(gap time.Duration) *Timer {
	return &Timer{
		gap:  gap,
		last: time.Now().Add(-gap),
	}
}

// Next reports whether the gap has elapsed since the last firing and,
// if so, arms the timer for the next interval.
func (t *Timer) Next() bool {
	now := time.Now()
	if now.Sub(t.last) >= t.gap {
		t.last = now
		return true
	}
	return false
}
