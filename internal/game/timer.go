// internal/game/timer.go
package game

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// timerKind says what a round timer expiry means for the session.
type timerKind int

const (
	timerNone timerKind = iota
	timerSettle
	timerBidding
	timerReveal
)

func (k timerKind) String() string {
	switch k {
	case timerSettle:
		return "settle"
	case timerBidding:
		return "bidding"
	case timerReveal:
		return "reveal"
	}
	return "none"
}

// RoundTimer is the single live deadline of a session. Arming replaces the previous
// deadline and bumps the generation, so an expiry that lost the race with a reset or
// cancel sees a stale generation and does nothing.
// Callers hold the session lock.
type RoundTimer struct {
	clock    clockwork.Clock
	timer    clockwork.Timer
	kind     timerKind
	gen      uint64
	deadline time.Time
}

func newRoundTimer(clock clockwork.Clock) *RoundTimer {
	return &RoundTimer{clock: clock}
}

// Arm cancels any live deadline and schedules fire(gen) after d.
func (t *RoundTimer) Arm(kind timerKind, d time.Duration, fire func(gen uint64)) uint64 {
	t.Cancel()
	t.gen++
	gen := t.gen
	t.kind = kind
	t.deadline = t.clock.Now().Add(d)
	t.timer = t.clock.AfterFunc(d, func() { fire(gen) })
	return gen
}

// Cancel stops the live deadline, if any. Safe to call repeatedly.
func (t *RoundTimer) Cancel() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.kind = timerNone
	t.deadline = time.Time{}
}

// Claim reports whether gen is the live deadline and, if so, consumes it.
func (t *RoundTimer) Claim(gen uint64) (timerKind, bool) {
	if t.timer == nil || gen != t.gen {
		return timerNone, false
	}
	kind := t.kind
	t.timer = nil
	t.kind = timerNone
	t.deadline = time.Time{}
	return kind, true
}

func (t *RoundTimer) Live() bool {
	return t.timer != nil
}

// Remaining is the time left before the live deadline, or 0.
func (t *RoundTimer) Remaining() time.Duration {
	if t.timer == nil {
		return 0
	}
	if d := t.deadline.Sub(t.clock.Now()); d > 0 {
		return d
	}
	return 0
}

func (t *RoundTimer) Deadline() time.Time {
	return t.deadline
}
