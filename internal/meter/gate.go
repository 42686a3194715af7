// SPDX-License-Identifier: MIT
package meter

import "time"

// RateGate admits at most one event per period. On admission the
// remembered timestamp becomes the admission time, not the ideal tick,
// so scheduling jitter accumulates as drift instead of being corrected.
type RateGate struct {
	period time.Duration
	last   time.Time
}

// NewRateGate returns a gate for rateHz events per second, anchored at start.
func NewRateGate(rateHz int, start time.Time) *RateGate {
	return &RateGate{
		period: time.Duration(1_000_000/rateHz) * time.Microsecond,
		last:   start,
	}
}

// ShouldSample reports whether a full period has elapsed since the last admission.
func (g *RateGate) ShouldSample(now time.Time) bool {
	return now.Sub(g.last) >= g.period
}

// Mark records now as the last admission.
func (g *RateGate) Mark(now time.Time) {
	g.last = now
}

// Admit checks and marks in one step.
func (g *RateGate) Admit(now time.Time) bool {
	if !g.ShouldSample(now) {
		return false
	}
	g.last = now
	return true
}

// Next returns the earliest time the gate will open again.
func (g *RateGate) Next() time.Time {
	return g.last.Add(g.period)
}

func (g *RateGate) Period() time.Duration {
	return g.period
}
