// internal/game/notify.go
package game

import (
	"context"
	"time"

	"github.com/jason-s-yu/hiddencargo/internal/models"
)

func (c *Coordinator) emit(s *lobbySession, ev EventType, payload any) {
	if c.bus == nil {
		return
	}
	c.bus.Emit(s.lobby, string(ev), payload)
}

// emitRedundant sends ev now, then repeats it according to policy for as long as
// still reports true. Repeats run under the session lock.
func (c *Coordinator) emitRedundant(s *lobbySession, ev EventType, payload any, policy Redundancy, still func() bool) {
	c.emit(s, ev, payload)
	resend := func() {
		if still() {
			c.emit(s, ev, payload)
		}
	}
	for i := 1; i < policy.Sends; i++ {
		c.afterLocked(s, time.Duration(i)*policy.Interval, resend)
	}
	if policy.Backup > 0 {
		c.afterLocked(s, policy.Backup, resend)
	}
}

// emitAuctionTimer announces the live bidding deadline.
func (c *Coordinator) emitAuctionTimer(s *lobbySession) {
	c.emit(s, EventAuctionTimer, AuctionTimerPayload{
		Round:       s.round,
		TimeLeftSec: int(s.timer.Remaining().Round(time.Second) / time.Second),
		DeadlineMs:  s.timer.Deadline().UnixMilli(),
	})
}

// afterLocked schedules fn under the session lock after d. Callers hold the lock.
// Nothing runs once the session is torn down.
func (c *Coordinator) afterLocked(s *lobbySession, d time.Duration, fn func()) {
	t := c.clock.AfterFunc(d, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.torn {
			return
		}
		fn()
	})
	s.pending = append(s.pending, t)
}

// armTimer replaces the session's round timer. Callers hold the lock.
func (c *Coordinator) armTimer(s *lobbySession, kind timerKind, d time.Duration) {
	s.timer.Arm(kind, d, func(gen uint64) { c.onTimer(s, gen) })
}

func (c *Coordinator) onTimer(s *lobbySession, gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.torn {
		return
	}
	kind, ok := s.timer.Claim(gen)
	if !ok {
		s.log.Debugf("ignoring stale timer generation %d", gen)
		return
	}
	switch kind {
	case timerSettle:
		c.beginRoundLocked(s)
	case timerBidding:
		c.closeRoundLocked(s)
	case timerReveal:
		if s.status == StatusRevealing {
			s.log.Infof("reveal window elapsed with %d/%d ready, advancing", s.readyCount(), s.ledger.Len())
			c.advanceLocked(s)
		}
	}
}

// isCurrent reports whether the store still maps the lobby to s.
func (c *Coordinator) isCurrent(s *lobbySession) bool {
	cur, ok := c.store.Get(s.lobby)
	return ok && cur == s
}

// audit hands a record to the bid service without waiting for it.
func (c *Coordinator) audit(s *lobbySession, rec models.AuditRecord) {
	if c.auditor == nil {
		return
	}
	rec.Lobby = s.lobby
	rec.Timestamp = c.clock.Now().UnixMilli()
	log := s.log

	c.bg.Add(1)
	go func() {
		defer c.bg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), c.settings.ExternalTimeout)
		defer cancel()
		if err := c.auditor.Record(ctx, rec); err != nil {
			log.WithError(err).Warnf("bid service rejected %s record", rec.Kind)
		}
	}()
}

// reconcile reports a settled profit to the balance service. The returned balance
// re-enters the session as a merge under its lock.
func (c *Coordinator) reconcile(s *lobbySession, nickname string, profit int) {
	if c.balances == nil {
		return
	}
	log := s.log.WithField("nickname", nickname)

	c.bg.Add(1)
	go func() {
		defer c.bg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), c.settings.ExternalTimeout)
		defer cancel()
		balance, err := c.balances.ReportProfit(ctx, nickname, profit)
		if err != nil {
			log.WithError(err).Warn("balance service update failed, keeping local balance")
			return
		}
		c.book.Set(nickname, balance)
		c.applyAuthoritativeBalance(s, nickname, balance)
	}()
}

// applyAuthoritativeBalance overwrites a cached balance with the balance of record.
// A bid the player holds right now is not known to the balance service, so it stays debited.
func (c *Coordinator) applyAuthoritativeBalance(s *lobbySession, nickname string, balance int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.torn {
		s.log.WithField("nickname", nickname).Warnf("balance %d arrived after teardown, dropped", balance)
		return
	}
	p, ok := s.ledger.Get(nickname)
	if !ok {
		return
	}
	held := 0
	if s.lastBidder == nickname {
		held = s.currentBid
	}
	next := balance - held
	if next < 0 {
		s.log.WithField("nickname", nickname).Warnf("balance of record %d is below held bid %d", balance, held)
		next = 0
	}
	p.Balance = next
	c.emit(s, EventPlayerUpdate, *p)
}
