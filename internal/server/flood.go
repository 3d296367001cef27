// Package server implements per-connection flood detection over a fixed ring
// of recent frame timestamps.
package server

import "time"

// floodGuard keeps the last window timestamps a connection produced. When the
// ring is full and the span between its oldest and newest entry is below
// interval, the connection is flooding. State is owned by a single session
// goroutine and needs no locking.
type floodGuard struct {
	window   int
	interval time.Duration
	times    []time.Time
	head     int
	filled   bool
}

func newFloodGuard(window int, interval time.Duration) *floodGuard {
	if window <= 0 {
		window = 10
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &floodGuard{
		window:   window,
		interval: interval,
		times:    make([]time.Time, window),
	}
}

// Record appends t to the ring, evicting the oldest entry once full, and
// reports whether the connection is now flooding. The caller is expected to
// disconnect on true; there is no cooldown.
func (g *floodGuard) Record(t time.Time) bool {
	g.times[g.head] = t
	g.head = (g.head + 1) % g.window
	if g.head == 0 {
		g.filled = true
	}
	if !g.filled {
		return false
	}
	oldest := g.times[g.head]
	return t.Sub(oldest) < g.interval
}
