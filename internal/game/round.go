// internal/game/round.go
package game

import (
	"github.com/jason-s-yu/hiddencargo/internal/models"
)

// BeginRound opens the next round of a lobby's game, or ends the game when no
// round is left. Normally driven by the settle timer and the ready barrier.
func (c *Coordinator) BeginRound(lobby string) error {
	s, ok := c.store.Get(lobby)
	if !ok {
		return ErrGameNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusBidding {
		return ErrInvalidPhase
	}
	c.beginRoundLocked(s)
	return nil
}

func (c *Coordinator) beginRoundLocked(s *lobbySession) {
	if s.status == StatusFinished {
		return
	}
	if s.round > s.totalRounds {
		c.endLocked(s, "all rounds played")
		return
	}
	next, ok := s.queue.Pop()
	if !ok {
		s.log.Warnf("no container left for round %d of %d", s.round, s.totalRounds)
		c.endLocked(s, "container supply exhausted")
		return
	}

	s.container = &next
	s.currentBid = c.settings.InitialBid
	s.lastBidder = ""
	clear(s.ready)
	s.status = StatusBidding
	c.armTimer(s, timerBidding, c.settings.BiddingWindow)

	round := s.round
	c.emitRedundant(s, EventNewRound, NewRoundPayload{
		Round:            round,
		TotalRounds:      s.totalRounds,
		CurrentContainer: next.View(),
		CurrentBid:       s.currentBid,
	}, c.settings.RoundStart, func() bool {
		return s.status == StatusBidding && s.round == round
	})
	c.emitAuctionTimer(s)
	c.audit(s, models.AuditRecord{
		Kind:         models.AuditRoundStarted,
		Round:        round,
		ContainerID:  next.ID,
		InitialValue: s.currentBid,
		RealValue:    next.Value,
	})
	s.log.Debugf("round %d/%d opened for container %s (%s)", round, s.totalRounds, next.ID, next.Tier)
}

// CloseRound ends bidding on the current round right away.
func (c *Coordinator) CloseRound(lobby string) error {
	s, ok := c.store.Get(lobby)
	if !ok {
		return ErrGameNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusBidding {
		return ErrInvalidPhase
	}
	c.closeRoundLocked(s)
	return nil
}

func (c *Coordinator) closeRoundLocked(s *lobbySession) {
	if s.status != StatusBidding {
		return
	}
	s.timer.Cancel()
	s.status = StatusRevealing

	cont := s.container
	if cont == nil {
		s.log.Errorf("round %d closed without a container", s.round)
		c.endLocked(s, "round without container")
		return
	}

	if s.lastBidder == "" {
		c.audit(s, models.AuditRecord{Kind: models.AuditRoundClosed, Round: s.round, ContainerID: cont.ID})
		s.log.Infof("round %d closed without bids", s.round)
		s.round++
		c.beginRoundLocked(s)
		return
	}

	winner := s.lastBidder
	s.lastBidder = ""
	p, ok := s.ledger.Get(winner)
	if !ok {
		s.log.Errorf("round %d winner %s is not in the roster", s.round, winner)
		s.round++
		c.beginRoundLocked(s)
		return
	}

	bid := s.currentBid
	profit := cont.Value - bid
	p.Balance += cont.Value
	p.Score += profit

	played := s.round
	s.round++
	c.audit(s, models.AuditRecord{
		Kind:        models.AuditRoundClosed,
		Round:       played,
		ContainerID: cont.ID,
		Nickname:    winner,
		Amount:      bid,
		RealValue:   cont.Value,
	})

	c.emit(s, EventBidResult, BidResultPayload{
		Winner:      winner,
		Amount:      bid,
		Container:   *cont,
		Profit:      profit,
		Round:       played,
		IsLastRound: s.round > s.totalRounds,
		NextRound:   s.round,
		TotalRounds: s.totalRounds,
	})
	c.emit(s, EventContainerRevealed, ContainerRevealedPayload{
		Container: *cont,
		Winner:    winner,
		Amount:    bid,
		Profit:    profit,
	})
	for _, st := range s.ledger.States() {
		c.emit(s, EventPlayerUpdate, st)
	}
	c.reconcile(s, winner, profit)

	if c.settings.RevealTimeout > 0 {
		c.armTimer(s, timerReveal, c.settings.RevealTimeout)
	}
	s.log.Infof("round %d won by %s for %d (value %d, profit %d)", played, winner, bid, cont.Value, profit)
}

// PlayerReadyForNextRound marks a player as done looking at the reveal. When the
// whole roster is ready the game moves on. Unknown lobbies and players are ignored.
func (c *Coordinator) PlayerReadyForNextRound(lobby, nickname string) {
	s, ok := c.store.Get(lobby)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusRevealing || !s.ledger.Has(nickname) {
		return
	}
	s.ready[nickname] = struct{}{}
	c.emit(s, EventPlayerReadyForNextRound, PlayerReadyPayload{
		Nickname:   nickname,
		ReadyCount: s.readyCount(),
		Total:      s.ledger.Len(),
	})
	if s.allReady() {
		c.releaseBarrierLocked(s)
	}
}

func (c *Coordinator) releaseBarrierLocked(s *lobbySession) {
	c.emit(s, EventAllPlayersReadyForNextRound, AllReadyPayload{NextRound: s.round})
	c.advanceLocked(s)
}

// advanceLocked leaves the reveal phase.
func (c *Coordinator) advanceLocked(s *lobbySession) {
	if s.status != StatusRevealing {
		return
	}
	s.timer.Cancel()
	clear(s.ready)
	if s.round > s.totalRounds {
		c.endLocked(s, "all rounds played")
		return
	}
	c.beginRoundLocked(s)
}

// PlayerLeft removes a player from a running game. A held high bid is refunded and
// the floor stays where it is. Fewer than two remaining players ends the game.
func (c *Coordinator) PlayerLeft(lobby, nickname string) {
	s, ok := c.store.Get(lobby)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusFinished || !s.ledger.Has(nickname) {
		return
	}

	if s.lastBidder == nickname {
		s.refundHeldBid()
	}
	s.ledger.Remove(nickname)
	delete(s.ready, nickname)
	c.emit(s, EventPlayerLeftGame, PlayerLeftGamePayload{Nickname: nickname, Remaining: s.ledger.Len()})
	s.log.Infof("%s left the game, %d remaining", nickname, s.ledger.Len())

	if s.ledger.Len() < 2 {
		c.endLocked(s, "not enough players")
		return
	}
	if s.status == StatusRevealing && s.allReady() {
		c.releaseBarrierLocked(s)
	}
}

// EndGame finishes a lobby's game. Calling it again is a no-op.
func (c *Coordinator) EndGame(lobby string) error {
	s, ok := c.store.Get(lobby)
	if !ok {
		return ErrGameNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c.endLocked(s, "ended on request")
	return nil
}

func (c *Coordinator) endLocked(s *lobbySession, reason string) {
	if s.status == StatusFinished {
		return
	}
	s.timer.Cancel()

	// A round cut short has no winner.
	if s.status == StatusBidding {
		if nick, ok := s.refundHeldBid(); ok {
			if p, ok := s.ledger.Get(nick); ok {
				c.emit(s, EventPlayerUpdate, *p)
			}
		}
		if s.container != nil {
			c.audit(s, models.AuditRecord{Kind: models.AuditRoundClosed, Round: s.round, ContainerID: s.container.ID})
		}
	}

	s.status = StatusFinished
	s.finished.Store(true)
	clear(s.ready)

	winner, _ := s.ledger.Leader()
	s.winner = winner
	players := s.ledger.States()
	for _, p := range players {
		c.book.Set(p.Nickname, p.Balance)
	}

	played := s.round - 1
	if played > s.totalRounds {
		played = s.totalRounds
	}
	c.emitRedundant(s, EventGameEnd, GameEndPayload{
		Winner:      winner,
		Players:     players,
		RoundsDone:  played,
		TotalRounds: s.totalRounds,
	}, c.settings.GameEnd, func() bool {
		return c.isCurrent(s)
	})

	s.pending = append(s.pending, c.clock.AfterFunc(c.settings.TeardownDelay, func() {
		c.teardown(s)
	}))
	s.log.Infof("game finished (%s), winner %q", reason, winner)
}

// teardown releases a finished session once its grace period is over.
func (c *Coordinator) teardown(s *lobbySession) {
	s.mu.Lock()
	if s.torn {
		s.mu.Unlock()
		return
	}
	s.torn = true
	s.timer.Cancel()
	for _, t := range s.pending {
		t.Stop()
	}
	s.pending = nil
	s.mu.Unlock()

	if c.store.RemoveIf(s) {
		s.log.Debug("session torn down")
	}
}
