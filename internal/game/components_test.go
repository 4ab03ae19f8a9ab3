package game

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTimerReplacesDeadline(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rt := newRoundTimer(clock)

	var fired atomic.Int64
	fire := func(gen uint64) { fired.Store(int64(gen)) }

	first := rt.Arm(timerBidding, 30*time.Second, fire)
	second := rt.Arm(timerBidding, 15*time.Second, fire)
	require.NotEqual(t, first, second)
	assert.Equal(t, 15*time.Second, rt.Remaining())

	clock.Advance(30 * time.Second)
	require.Eventually(t, func() bool { return fired.Load() != 0 }, time.Second, time.Millisecond)
	assert.Equal(t, int64(second), fired.Load(), "only the latest deadline fires")

	_, ok := rt.Claim(first)
	assert.False(t, ok, "stale generation")
	kind, ok := rt.Claim(second)
	assert.True(t, ok)
	assert.Equal(t, timerBidding, kind)
	_, ok = rt.Claim(second)
	assert.False(t, ok, "a deadline is consumed once")
}

func TestRoundTimerCancel(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rt := newRoundTimer(clock)

	var fired atomic.Bool
	gen := rt.Arm(timerReveal, time.Second, func(uint64) { fired.Store(true) })
	rt.Cancel()
	rt.Cancel()
	assert.False(t, rt.Live())
	assert.Equal(t, time.Duration(0), rt.Remaining())

	clock.Advance(2 * time.Second)
	time.Sleep(10 * time.Millisecond)
	assert.False(t, fired.Load())
	_, ok := rt.Claim(gen)
	assert.False(t, ok)
}

func TestLedgerLeader(t *testing.T) {
	l := newLedger()
	assert.True(t, l.Add("ana", 2000))
	assert.True(t, l.Add("bo", 2000))
	assert.True(t, l.Add("cy", 2000))
	assert.False(t, l.Add("bo", 10), "duplicate nickname")
	assert.False(t, l.Add("", 10))

	leader, ok := l.Leader()
	require.True(t, ok)
	assert.Equal(t, "ana", leader, "all tied: first joined wins")

	p, _ := l.Get("bo")
	p.Score = 40
	p, _ = l.Get("cy")
	p.Score = 40
	name, _ := l.Leader()
	assert.Equal(t, "bo", name, "tie on score goes to the earlier player")

	assert.True(t, l.Remove("bo"))
	assert.False(t, l.Remove("bo"))
	assert.Equal(t, []string{"ana", "cy"}, l.Nicknames())
	name, _ = l.Leader()
	assert.Equal(t, "cy", name)

	empty := newLedger()
	_, ok = empty.Leader()
	assert.False(t, ok)
}

func TestBalanceBookOpening(t *testing.T) {
	b := NewBalanceBook()
	assert.Equal(t, 2000, b.Opening("ana", 2000))
	b.Set("ana", 0)
	assert.Equal(t, 2000, b.Opening("ana", 2000), "non-positive balances fall back")
	b.Set("ana", 750)
	assert.Equal(t, 750, b.Opening("ana", 2000))
}

func TestFillQueueSkipsFailures(t *testing.T) {
	supply := &stubSupply{values: []int{100, 200, 300, 400}, fail: map[int]bool{1: true}}
	q := FillQueue(context.Background(), supply, 4, 1, quietLogger())
	require.Equal(t, 3, q.Len())

	var values []int
	for {
		c, ok := q.Pop()
		if !ok {
			break
		}
		values = append(values, c.Value)
	}
	assert.Equal(t, []int{100, 300, 400}, values)
	_, ok := q.Peek()
	assert.False(t, ok)
}

func TestReasonOfWrappedErrors(t *testing.T) {
	assert.Equal(t, ReasonNone, ReasonOf(nil))
	assert.Equal(t, ReasonLobbyNotFound, ReasonOf(ErrLobbyNotFound))
	assert.Equal(t, ReasonInsufficientFunds, ReasonOf(ErrInsufficientFunds))
	assert.Equal(t, ReasonInternal, ReasonOf(context.Canceled))
}
