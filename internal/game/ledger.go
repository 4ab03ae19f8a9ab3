// internal/game/ledger.go
package game

import "github.com/jason-s-yu/hiddencargo/internal/models"

// Ledger is the roster of one game: balances and scores in join order.
// It is not safe for concurrent use; the owning session's lock guards it.
type Ledger struct {
	order   []string
	players map[string]*models.PlayerState
}

func newLedger() *Ledger {
	return &Ledger{players: make(map[string]*models.PlayerState)}
}

// Add appends a player. Duplicate or empty nicknames are rejected.
func (l *Ledger) Add(nickname string, balance int) bool {
	if nickname == "" {
		return false
	}
	if _, ok := l.players[nickname]; ok {
		return false
	}
	l.order = append(l.order, nickname)
	l.players[nickname] = &models.PlayerState{Nickname: nickname, Balance: balance}
	return true
}

func (l *Ledger) Get(nickname string) (*models.PlayerState, bool) {
	p, ok := l.players[nickname]
	return p, ok
}

func (l *Ledger) Has(nickname string) bool {
	_, ok := l.players[nickname]
	return ok
}

// Remove drops a player while keeping the relative order of the rest.
func (l *Ledger) Remove(nickname string) bool {
	if _, ok := l.players[nickname]; !ok {
		return false
	}
	delete(l.players, nickname)
	for i, n := range l.order {
		if n == nickname {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
	return true
}

func (l *Ledger) Len() int {
	return len(l.order)
}

// Nicknames returns the roster in join order.
func (l *Ledger) Nicknames() []string {
	out := make([]string, len(l.order))
	copy(out, l.order)
	return out
}

// States returns copies of every player state in join order.
func (l *Ledger) States() []models.PlayerState {
	out := make([]models.PlayerState, 0, len(l.order))
	for _, n := range l.order {
		out = append(out, *l.players[n])
	}
	return out
}

// Leader returns the player with the strictly highest score. Ties go to whoever joined first.
func (l *Ledger) Leader() (string, bool) {
	var (
		best  string
		score int
		found bool
	)
	for _, n := range l.order {
		p := l.players[n]
		if !found || p.Score > score {
			best, score, found = n, p.Score, true
		}
	}
	return best, found
}
