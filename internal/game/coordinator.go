// internal/game/coordinator.go
package game

import (
	"context"
	"fmt"
	"sync"

	"github.com/jason-s-yu/hiddencargo/internal/models"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

// Broadcaster delivers a notification to every connection joined to a lobby.
// Delivery is best effort and must not block.
type Broadcaster interface {
	Emit(lobby, event string, payload any)
}

// ContainerSupply produces auction lots.
type ContainerSupply interface {
	FetchContainer(ctx context.Context) (models.Container, error)
}

// BidAuditor records round starts, accepted bids and round closes with the bid service.
type BidAuditor interface {
	Record(ctx context.Context, rec models.AuditRecord) error
}

// BalanceService is the balance of record. ReportProfit applies a signed delta and
// returns the player's new authoritative balance.
type BalanceService interface {
	ReportProfit(ctx context.Context, nickname string, profit int) (int, error)
}

// BalanceLookup is implemented by balance services that can read a stored balance.
// When Balances implements it, players the book has not seen open at their stored balance.
type BalanceLookup interface {
	Balance(ctx context.Context, nickname string) (int, bool, error)
}

// Directory answers who is in a lobby and who is ready.
type Directory interface {
	GetLobby(ctx context.Context, name string) (models.LobbyInfo, error)
}

// Deps are the collaborators of a Coordinator. Auditor, Balances and Directory may be nil.
type Deps struct {
	Broadcaster Broadcaster
	Supply      ContainerSupply
	Auditor     BidAuditor
	Balances    BalanceService
	Directory   Directory
	Book        *BalanceBook
	Clock       clockwork.Clock
	Logger      logrus.FieldLogger
}

// Coordinator runs the auction games of every lobby. Each lobby's game is driven by
// its own lock; operations on different lobbies never wait on each other.
type Coordinator struct {
	settings Settings

	bus       Broadcaster
	supply    ContainerSupply
	auditor   BidAuditor
	balances  BalanceService
	directory Directory
	book      *BalanceBook
	clock     clockwork.Clock
	log       logrus.FieldLogger

	store *SessionStore

	// bg tracks calls to external services made outside any session lock.
	bg sync.WaitGroup
}

func NewCoordinator(settings Settings, deps Deps) *Coordinator {
	c := &Coordinator{
		settings:  settings.normalized(),
		bus:       deps.Broadcaster,
		supply:    deps.Supply,
		auditor:   deps.Auditor,
		balances:  deps.Balances,
		directory: deps.Directory,
		book:      deps.Book,
		clock:     deps.Clock,
		log:       deps.Logger,
		store:     NewSessionStore(),
	}
	if c.book == nil {
		c.book = NewBalanceBook()
	}
	if c.clock == nil {
		c.clock = clockwork.NewRealClock()
	}
	if c.log == nil {
		c.log = logrus.StandardLogger()
	}
	return c
}

// Settings returns the effective settings after defaults were applied.
func (c *Coordinator) Settings() Settings {
	return c.settings
}

// StartRequest describes a game to start in a lobby. Players are in join order,
// which also breaks ties for the winner.
type StartRequest struct {
	Lobby       string
	Players     []string
	TotalRounds int
}

// Launch asks the directory whether the lobby may start and starts it with the
// directory's roster and round count.
func (c *Coordinator) Launch(ctx context.Context, lobby string) (Snapshot, error) {
	if c.directory == nil {
		return Snapshot{}, fmt.Errorf("lobby directory not configured: %w", ErrExternalServiceUnavailable)
	}
	info, err := c.directory.GetLobby(ctx, lobby)
	if err != nil {
		return Snapshot{}, err
	}
	if info.ReadyCount < 2 || !info.AllReady() {
		return Snapshot{}, fmt.Errorf("lobby %s has %d/%d ready: %w", lobby, info.ReadyCount, info.ConnectedCount, ErrInsufficientPlayers)
	}
	return c.StartGame(ctx, StartRequest{
		Lobby:       lobby,
		Players:     info.Players,
		TotalRounds: info.RoundCount,
	})
}

// StartGame prefetches the containers, seeds balances and emits gameStarted. The
// first round begins after the settle delay.
func (c *Coordinator) StartGame(ctx context.Context, req StartRequest) (Snapshot, error) {
	players := uniqueNicknames(req.Players)
	if len(players) < 2 {
		return Snapshot{}, ErrInsufficientPlayers
	}
	if cur, ok := c.store.Get(req.Lobby); ok && !cur.finished.Load() {
		return Snapshot{}, ErrGameInProgress
	}

	rounds := req.TotalRounds
	if rounds <= 0 {
		rounds = c.settings.DefaultRounds
	}
	if rounds > c.settings.MaxRounds {
		return Snapshot{}, fmt.Errorf("%d rounds exceeds the limit of %d: %w", rounds, c.settings.MaxRounds, ErrInvalidAmount)
	}
	log := c.log.WithField("lobby", req.Lobby)

	// Fetched before any lock is taken; the supply and balance service may be slow.
	c.seedBalances(ctx, players, log)
	queue := FillQueue(ctx, c.supply, rounds, c.settings.PrefetchParallelism, log)
	if queue.Len() == 0 {
		return Snapshot{}, fmt.Errorf("lobby %s: %w", req.Lobby, ErrContainerSupplyExhausted)
	}
	if queue.Len() < rounds {
		log.Warnf("only %d of %d containers available, shortening game", queue.Len(), rounds)
		rounds = queue.Len()
	}

	sess := newLobbySession(req.Lobby, rounds, c.clock, c.log)
	sess.queue = queue
	sess.currentBid = c.settings.InitialBid
	for _, nick := range players {
		sess.ledger.Add(nick, c.book.Opening(nick, c.settings.DefaultBalance))
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if err := c.store.Install(sess); err != nil {
		return Snapshot{}, err
	}

	first, _ := queue.Peek()
	view := first.View()
	c.emit(sess, EventGameStarted, GameStartedPayload{
		Players:          sess.ledger.States(),
		CurrentContainer: &view,
		CurrentBid:       sess.currentBid,
		Round:            sess.round,
		TotalRounds:      sess.totalRounds,
	})
	c.armTimer(sess, timerSettle, c.settings.SettleDelay)

	sess.log.Infof("game started with %d players for %d rounds", sess.ledger.Len(), rounds)
	return sess.snapshot(), nil
}

func (c *Coordinator) seedBalances(ctx context.Context, players []string, log logrus.FieldLogger) {
	src, ok := c.balances.(BalanceLookup)
	if !ok {
		return
	}
	for _, nick := range players {
		if _, known := c.book.Get(nick); known {
			continue
		}
		cctx, cancel := context.WithTimeout(ctx, c.settings.ExternalTimeout)
		bal, found, err := src.Balance(cctx, nick)
		cancel()
		if err != nil {
			log.Warnf("could not read stored balance of %s: %v", nick, err)
			continue
		}
		if found {
			c.book.Set(nick, bal)
		}
	}
}

// Snapshot returns the current state of a lobby's game.
func (c *Coordinator) Snapshot(lobby string) (Snapshot, error) {
	s, ok := c.store.Get(lobby)
	if !ok {
		return Snapshot{}, ErrGameNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot(), nil
}

// ActiveGames counts sessions that have not been torn down yet.
func (c *Coordinator) ActiveGames() int {
	return c.store.Len()
}

// UpdateBalance records a balance reported for a player outside of play. A game that
// has not opened its first round picks it up immediately; later games open with it.
func (c *Coordinator) UpdateBalance(lobby, nickname string, balance int) error {
	if balance < 0 {
		return ErrInvalidAmount
	}
	c.book.Set(nickname, balance)

	s, ok := c.store.Get(lobby)
	if !ok {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusStarting {
		return nil
	}
	if p, ok := s.ledger.Get(nickname); ok && balance > 0 {
		p.Balance = balance
		c.emit(s, EventPlayerUpdate, *p)
	}
	return nil
}

// Shutdown stops every timer and waits for in-flight external calls or ctx.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	for _, s := range c.store.All() {
		s.mu.Lock()
		s.timer.Cancel()
		for _, t := range s.pending {
			t.Stop()
		}
		s.pending = nil
		s.torn = true
		s.mu.Unlock()
	}

	done := make(chan struct{})
	go func() {
		c.bg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func uniqueNicknames(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, n := range in {
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
