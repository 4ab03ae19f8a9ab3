// internal/game/bidding.go
package game

import (
	"fmt"
	"time"

	"github.com/jason-s-yu/hiddencargo/internal/models"
)

// BidReceipt confirms an accepted bid.
type BidReceipt struct {
	Round    int       `json:"round"`
	Amount   int       `json:"amount"`
	Balance  int       `json:"balance"`
	Deadline time.Time `json:"deadline"`
}

// PlaceBid offers amount for the current container. The bid must beat the current
// bid and fit the player's balance; a high bid the player already holds counts as
// available funds. On success the previous high bidder is refunded, the bidder is
// debited and the bidding deadline is pushed out.
func (c *Coordinator) PlaceBid(lobby, nickname string, amount int) (BidReceipt, error) {
	s, ok := c.store.Get(lobby)
	if !ok {
		return BidReceipt{}, ErrGameNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusBidding {
		return BidReceipt{}, fmt.Errorf("game is %s: %w", s.status, ErrInvalidPhase)
	}
	p, ok := s.ledger.Get(nickname)
	if !ok {
		return BidReceipt{}, ErrPlayerNotFound
	}
	available := p.Balance
	if s.lastBidder == nickname {
		available += s.currentBid
	}
	if amount > available {
		return BidReceipt{}, fmt.Errorf("bid %d with %d available: %w", amount, available, ErrInsufficientFunds)
	}
	if amount <= s.currentBid {
		return BidReceipt{}, fmt.Errorf("bid %d against %d: %w", amount, s.currentBid, ErrBidTooLow)
	}

	if prev := s.lastBidder; prev != "" {
		s.refundHeldBid()
		if prev != nickname {
			if pp, ok := s.ledger.Get(prev); ok {
				c.emit(s, EventPlayerUpdate, *pp)
			}
		}
	}
	p.Balance -= amount
	s.currentBid = amount
	s.lastBidder = nickname

	c.emit(s, EventPlayerUpdate, *p)
	c.emit(s, EventNewBid, NewBidPayload{Nickname: nickname, Amount: amount, Round: s.round})
	c.armTimer(s, timerBidding, c.settings.BidExtension)
	c.emitAuctionTimer(s)

	containerID := ""
	if s.container != nil {
		containerID = s.container.ID
	}
	c.audit(s, models.AuditRecord{
		Kind:        models.AuditBidPlaced,
		Round:       s.round,
		ContainerID: containerID,
		Nickname:    nickname,
		Amount:      amount,
	})

	return BidReceipt{
		Round:    s.round,
		Amount:   amount,
		Balance:  p.Balance,
		Deadline: s.timer.Deadline(),
	}, nil
}
