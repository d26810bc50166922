// Package promo models the time-boxed promotional price shown at checkout.
package promo

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultDuration is how long the promotional price is honoured after checkout opens.
const DefaultDuration = 10 * time.Minute

// Window is a countdown that starts at Start and lasts Duration.
type Window struct {
	Start    time.Time
	Duration time.Duration
	Clock    func() time.Time
}

// NewWindow opens a window starting now.
func NewWindow(duration time.Duration, clock func() time.Time) Window {
	if clock == nil {
		clock = time.Now
	}
	if duration <= 0 {
		duration = DefaultDuration
	}
	return Window{Start: clock(), Duration: duration, Clock: clock}
}

// StartedAt returns a copy of w anchored at start.
func (w Window) StartedAt(start time.Time) Window {
	w.Start = start
	return w
}

func (w Window) now() time.Time {
	if w.Clock == nil {
		return time.Now()
	}
	return w.Clock()
}

// Deadline is the instant the promotional price expires.
func (w Window) Deadline() time.Time {
	return w.Start.Add(w.Duration)
}

// Open reports whether the promotional price still applies at the given instant.
// A zero instant means "now" according to the window clock.
func (w Window) Open(at time.Time) bool {
	if at.IsZero() {
		at = w.now()
	}
	return at.Before(w.Deadline())
}

// Remaining is the time left before expiry, never negative.
func (w Window) Remaining(at time.Time) time.Duration {
	if at.IsZero() {
		at = w.now()
	}
	left := w.Deadline().Sub(at)
	if left < 0 {
		return 0
	}
	return left
}

// EffectivePrice picks the value charged at the given instant: current while the window is open,
// original once it has closed.
func (w Window) EffectivePrice(original, current decimal.Decimal, at time.Time) decimal.Decimal {
	if w.Open(at) {
		return current
	}
	return original
}
