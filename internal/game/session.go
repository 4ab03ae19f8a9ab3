// internal/game/session.go
package game

import (
	"sync"
	"sync/atomic"

	"github.com/jason-s-yu/hiddencargo/internal/models"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

// Status is the phase of a lobby's game.
type Status string

const (
	StatusStarting  Status = "starting"
	StatusBidding   Status = "bidding"
	StatusRevealing Status = "revealing"
	StatusFinished  Status = "finished"
)

// lobbySession is the state of one running game. Every field is guarded by mu,
// except finished which the store reads without it.
type lobbySession struct {
	mu sync.Mutex

	lobby       string
	status      Status
	round       int
	totalRounds int

	container  *models.Container
	currentBid int
	lastBidder string

	ledger *Ledger
	queue  *ContainerQueue
	timer  *RoundTimer
	ready  map[string]struct{}
	winner string

	// pending holds redundant sends and the teardown callback so Shutdown can stop them.
	pending []clockwork.Timer

	finished atomic.Bool
	torn     bool

	log logrus.FieldLogger
}

func newLobbySession(lobby string, totalRounds int, clock clockwork.Clock, log logrus.FieldLogger) *lobbySession {
	return &lobbySession{
		lobby:       lobby,
		status:      StatusStarting,
		round:       1,
		totalRounds: totalRounds,
		ledger:      newLedger(),
		timer:       newRoundTimer(clock),
		ready:       make(map[string]struct{}),
		log:         log.WithField("lobby", lobby),
	}
}

// readyCount counts ready flags that belong to players still in the roster.
func (s *lobbySession) readyCount() int {
	n := 0
	for nick := range s.ready {
		if s.ledger.Has(nick) {
			n++
		}
	}
	return n
}

func (s *lobbySession) allReady() bool {
	return s.ledger.Len() > 0 && s.readyCount() >= s.ledger.Len()
}

// refundHeldBid returns the high bid to its holder and clears the holder.
func (s *lobbySession) refundHeldBid() (string, bool) {
	if s.lastBidder == "" {
		return "", false
	}
	nick := s.lastBidder
	s.lastBidder = ""
	if p, ok := s.ledger.Get(nick); ok {
		p.Balance += s.currentBid
		return nick, true
	}
	return "", false
}

// Snapshot is a point-in-time copy of a game used to resync clients.
type Snapshot struct {
	Lobby            string                `json:"lobby"`
	Status           Status                `json:"status"`
	Round            int                   `json:"round"`
	TotalRounds      int                   `json:"totalRounds"`
	CurrentContainer *models.ContainerView `json:"currentContainer,omitempty"`
	CurrentBid       int                   `json:"currentBid"`
	LastBidder       string                `json:"lastBidder,omitempty"`
	Players          []models.PlayerState  `json:"players"`
	ReadyPlayers     []string              `json:"readyPlayers"`
	TimeLeftMs       int64                 `json:"timeLeftMs"`
	Winner           string                `json:"winner,omitempty"`
}

func (s *lobbySession) snapshot() Snapshot {
	snap := Snapshot{
		Lobby:        s.lobby,
		Status:       s.status,
		Round:        s.round,
		TotalRounds:  s.totalRounds,
		CurrentBid:   s.currentBid,
		LastBidder:   s.lastBidder,
		Players:      s.ledger.States(),
		ReadyPlayers: make([]string, 0, len(s.ready)),
		TimeLeftMs:   s.timer.Remaining().Milliseconds(),
		Winner:       s.winner,
	}
	if s.container != nil {
		v := s.container.View()
		snap.CurrentContainer = &v
	}
	for _, nick := range s.ledger.Nicknames() {
		if _, ok := s.ready[nick]; ok {
			snap.ReadyPlayers = append(snap.ReadyPlayers, nick)
		}
	}
	return snap
}
