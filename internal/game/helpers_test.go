package game

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/jason-s-yu/hiddencargo/internal/models"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

type emitted struct {
	Lobby   string
	Event   EventType
	Payload any
}

// mockBroadcaster collects events instead of sending them over WS.
type mockBroadcaster struct {
	mu     sync.Mutex
	events []emitted
}

func (mb *mockBroadcaster) Emit(lobby, event string, payload any) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.events = append(mb.events, emitted{Lobby: lobby, Event: EventType(event), Payload: payload})
}

func (mb *mockBroadcaster) count(lobby string, ev EventType) int {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	n := 0
	for _, e := range mb.events {
		if e.Lobby == lobby && e.Event == ev {
			n++
		}
	}
	return n
}

func (mb *mockBroadcaster) last(lobby string, ev EventType) (any, bool) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	for i := len(mb.events) - 1; i >= 0; i-- {
		if mb.events[i].Lobby == lobby && mb.events[i].Event == ev {
			return mb.events[i].Payload, true
		}
	}
	return nil, false
}

// stubSupply hands out containers with the given values in order, cycling.
// Calls listed in fail return an error instead.
type stubSupply struct {
	mu     sync.Mutex
	values []int
	fail   map[int]bool
	calls  int
}

func (s *stubSupply) FetchContainer(ctx context.Context) (models.Container, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	if s.fail[i] {
		return models.Container{}, fmt.Errorf("crate %d: %w", i, models.ErrExternalServiceUnavailable)
	}
	if len(s.values) == 0 {
		return models.Container{}, errors.New("empty supply")
	}
	return models.Container{
		ID:    fmt.Sprintf("crate-%d", i),
		Tier:  models.TierNormal,
		Value: s.values[i%len(s.values)],
	}, nil
}

type recordingAuditor struct {
	mu      sync.Mutex
	records []models.AuditRecord
}

func (a *recordingAuditor) Record(ctx context.Context, rec models.AuditRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, rec)
	return nil
}

func (a *recordingAuditor) kinds() []models.AuditKind {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]models.AuditKind, 0, len(a.records))
	for _, r := range a.records {
		out = append(out, r.Kind)
	}
	return out
}

// fixedBalances answers every profit report with a preset balance.
type fixedBalances struct {
	mu      sync.Mutex
	balance int
	reports map[string]int
}

func (b *fixedBalances) ReportProfit(ctx context.Context, nickname string, profit int) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.reports == nil {
		b.reports = make(map[string]int)
	}
	b.reports[nickname] += profit
	return b.balance, nil
}

// storedBalances also answers stored balance reads, as the database service does.
type storedBalances struct {
	fixedBalances
	stored map[string]int
	broken map[string]bool
	reads  []string
}

func (b *storedBalances) Balance(ctx context.Context, nickname string) (int, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reads = append(b.reads, nickname)
	if b.broken[nickname] {
		return 0, false, models.ErrExternalServiceUnavailable
	}
	bal, ok := b.stored[nickname]
	return bal, ok, nil
}

type stubDirectory struct {
	lobbies map[string]models.LobbyInfo
}

func (d *stubDirectory) GetLobby(ctx context.Context, name string) (models.LobbyInfo, error) {
	info, ok := d.lobbies[name]
	if !ok {
		return models.LobbyInfo{}, fmt.Errorf("lobby %s: %w", name, models.ErrLobbyNotFound)
	}
	return info, nil
}

// testSettings keeps production timings but sends every notification once.
func testSettings() Settings {
	s := DefaultSettings()
	s.RoundStart = Redundancy{Sends: 1}
	s.GameEnd = Redundancy{Sends: 1}
	s.PrefetchParallelism = 1
	return s
}

type harness struct {
	c      *Coordinator
	clock  *clockwork.FakeClock
	bus    *mockBroadcaster
	supply *stubSupply
	audit  *recordingAuditor
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newHarness(t *testing.T, settings Settings, deps Deps, values ...int) *harness {
	t.Helper()
	if len(values) == 0 {
		values = []int{300}
	}
	h := &harness{
		clock:  clockwork.NewFakeClock(),
		bus:    &mockBroadcaster{},
		supply: &stubSupply{values: values},
		audit:  &recordingAuditor{},
	}
	deps.Broadcaster = h.bus
	deps.Supply = h.supply
	deps.Auditor = h.audit
	deps.Clock = h.clock
	deps.Logger = quietLogger()
	h.c = NewCoordinator(settings, deps)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = h.c.Shutdown(ctx)
	})
	return h
}

func (h *harness) start(t *testing.T, lobby string, rounds int, players ...string) {
	t.Helper()
	_, err := h.c.StartGame(context.Background(), StartRequest{Lobby: lobby, Players: players, TotalRounds: rounds})
	require.NoError(t, err)
}

// openRound lets the settle delay pass and waits for bidding to open.
func (h *harness) openRound(t *testing.T, lobby string) Snapshot {
	t.Helper()
	h.clock.Advance(h.c.Settings().SettleDelay)
	return h.waitFor(t, lobby, func(s Snapshot) bool { return s.Status == StatusBidding })
}

func (h *harness) waitFor(t *testing.T, lobby string, cond func(Snapshot) bool) Snapshot {
	t.Helper()
	var snap Snapshot
	require.Eventually(t, func() bool {
		s, err := h.c.Snapshot(lobby)
		if err != nil {
			return false
		}
		snap = s
		return cond(s)
	}, 2*time.Second, 2*time.Millisecond)
	return snap
}

func player(snap Snapshot, nickname string) models.PlayerState {
	for _, p := range snap.Players {
		if p.Nickname == nickname {
			return p
		}
	}
	return models.PlayerState{}
}
