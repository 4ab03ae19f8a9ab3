package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/jason-s-yu/hiddencargo/internal/auth"
	"github.com/jason-s-yu/hiddencargo/internal/containers"
	"github.com/jason-s-yu/hiddencargo/internal/game"
	"github.com/jason-s-yu/hiddencargo/internal/hub"
	"github.com/jason-s-yu/hiddencargo/internal/lobby"
	"github.com/jason-s-yu/hiddencargo/internal/models"
	"github.com/jason-s-yu/hiddencargo/internal/session"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memDirectory is an in-process lobby directory.
type memDirectory struct {
	mu      sync.Mutex
	members map[string][]string
	ready   map[string]map[string]bool
}

func newMemDirectory() *memDirectory {
	return &memDirectory{members: map[string][]string{}, ready: map[string]map[string]bool{}}
}

func (d *memDirectory) GetLobby(ctx context.Context, name string) (models.LobbyInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	players := d.members[name]
	if len(players) == 0 {
		return models.LobbyInfo{}, fmt.Errorf("lobby %s: %w", name, models.ErrLobbyNotFound)
	}
	return models.LobbyInfo{
		Name:           name,
		ConnectedCount: len(players),
		ReadyCount:     len(d.ready[name]),
		Players:        append([]string(nil), players...),
	}, nil
}

func (d *memDirectory) AddPlayer(ctx context.Context, name, nickname string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, p := range d.members[name] {
		if p == nickname {
			return nil
		}
	}
	d.members[name] = append(d.members[name], nickname)
	return nil
}

func (d *memDirectory) RemovePlayer(ctx context.Context, name, nickname string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	kept := d.members[name][:0]
	for _, p := range d.members[name] {
		if p != nickname {
			kept = append(kept, p)
		}
	}
	d.members[name] = kept
	delete(d.ready[name], nickname)
	return nil
}

func (d *memDirectory) MarkReady(ctx context.Context, name, nickname string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ready[name] == nil {
		d.ready[name] = map[string]bool{}
	}
	d.ready[name][nickname] = true
	return nil
}

func (d *memDirectory) MarkNotReady(ctx context.Context, name, nickname string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.ready[name], nickname)
	return nil
}

func (d *memDirectory) has(name, nickname string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, p := range d.members[name] {
		if p == nickname {
			return true
		}
	}
	return false
}

var _ lobby.Directory = (*memDirectory)(nil)

type testEnv struct {
	srv   *Server
	ts    *httptest.Server
	clock *clockwork.FakeClock
	dir   *memDirectory
}

func newTestEnv(t *testing.T, authRequired bool) *testEnv {
	t.Helper()
	require.NoError(t, auth.Init(0))

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	settings := game.DefaultSettings()
	settings.RoundStart = game.Redundancy{Sends: 1}
	settings.GameEnd = game.Redundancy{Sends: 1}

	env := &testEnv{clock: clockwork.NewFakeClock(), dir: newMemDirectory()}
	h := hub.New(64, logger)
	coord := game.NewCoordinator(settings, game.Deps{
		Broadcaster: h,
		Supply:      containers.NewSeededSupply(7),
		Directory:   env.dir,
		Clock:       env.clock,
		Logger:      logger,
	})
	env.srv = &Server{
		Coordinator:  coord,
		Directory:    env.dir,
		Hub:          h,
		Registry:     session.NewRegistry(),
		Logger:       logger,
		AuthRequired: authRequired,
		CallTimeout:  time.Second,
	}
	env.ts = httptest.NewServer(env.srv.Routes())
	t.Cleanup(func() {
		env.ts.Close()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = coord.Shutdown(ctx)
	})
	return env
}

type received struct {
	Event string          `json:"event"`
	ID    int64           `json:"id"`
	Data  json.RawMessage `json:"data"`
}

type ack struct {
	OK      bool            `json:"ok"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type wsClient struct {
	t       *testing.T
	c       *websocket.Conn
	nextID  int64
	pending []received
}

func (env *testEnv) dial(t *testing.T, query string, subprotocols ...string) *wsClient {
	t.Helper()
	if subprotocols == nil {
		subprotocols = []string{Subprotocol}
	}
	url := "ws" + strings.TrimPrefix(env.ts.URL, "http") + "/ws" + query
	c, _, err := websocket.Dial(context.Background(), url, &websocket.DialOptions{Subprotocols: subprotocols})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close(websocket.StatusNormalClosure, "") })
	return &wsClient{t: t, c: c}
}

func (w *wsClient) read() (received, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, msg, err := w.c.Read(ctx)
	if err != nil {
		return received{}, err
	}
	var r received
	require.NoError(w.t, json.Unmarshal(msg, &r))
	return r, nil
}

func (w *wsClient) call(event string, data any) ack {
	w.t.Helper()
	w.nextID++
	id := w.nextID
	frame := map[string]any{"event": event, "id": id}
	if data != nil {
		frame["data"] = data
	}
	msg, err := json.Marshal(frame)
	require.NoError(w.t, err)
	require.NoError(w.t, w.c.Write(context.Background(), websocket.MessageText, msg))

	for {
		r, err := w.read()
		require.NoError(w.t, err, "waiting for ack of %s", event)
		if r.Event == "ack" && r.ID == id {
			var a ack
			require.NoError(w.t, json.Unmarshal(r.Data, &a))
			return a
		}
		w.pending = append(w.pending, r)
	}
}

// expect returns the next notification named event, skipping others.
func (w *wsClient) expect(event string) json.RawMessage {
	w.t.Helper()
	for i, r := range w.pending {
		if r.Event == event {
			w.pending = append(w.pending[:i], w.pending[i+1:]...)
			return r.Data
		}
	}
	w.pending = nil
	for {
		r, err := w.read()
		require.NoError(w.t, err, "waiting for %s", event)
		if r.Event == event {
			return r.Data
		}
	}
}

func TestTwoPlayersBidOverTheSocket(t *testing.T) {
	env := newTestEnv(t, false)
	ana := env.dial(t, "")
	bo := env.dial(t, "")

	a := ana.call("joinLobby", map[string]any{"lobby": "sala1", "nickname": "ana"})
	require.True(t, a.OK, a.Message)
	a = bo.call("joinLobby", map[string]any{"lobby": "sala1", "nickname": "bo"})
	require.True(t, a.OK, a.Message)

	var joined MemberPayload
	require.NoError(t, json.Unmarshal(ana.expect(EventPlayerJoined), &joined))
	if joined.Nickname == "ana" {
		require.NoError(t, json.Unmarshal(ana.expect(EventPlayerJoined), &joined))
	}
	assert.Equal(t, "bo", joined.Nickname)
	assert.Equal(t, 2, joined.ConnectedCount)

	a = ana.call("startGame", nil)
	assert.False(t, a.OK)
	assert.Equal(t, string(game.ReasonInsufficientPlayers), a.Error)

	require.True(t, ana.call("playerReady", nil).OK)
	require.True(t, bo.call("playerReady", nil).OK)
	ana.expect(EventAllPlayersReady)

	a = ana.call("startGame", nil)
	require.True(t, a.OK, a.Message)
	bo.expect(string(game.EventGameStarted))

	a = bo.call("placeBid", map[string]any{"amount": 150})
	assert.Equal(t, string(game.ReasonInvalidPhase), a.Error)

	env.clock.Advance(env.srv.Coordinator.Settings().SettleDelay)
	ana.expect(string(game.EventNewRound))
	bo.expect(string(game.EventNewRound))

	a = bo.call("placeBid", map[string]any{"amount": 150})
	require.True(t, a.OK, a.Message)
	var bid game.NewBidPayload
	require.NoError(t, json.Unmarshal(ana.expect(string(game.EventNewBid)), &bid))
	assert.Equal(t, "bo", bid.Nickname)
	assert.Equal(t, 150, bid.Amount)

	a = ana.call("placeBid", map[string]any{"amount": 120})
	assert.Equal(t, string(game.ReasonBidTooLow), a.Error)

	a = ana.call("syncState", nil)
	require.True(t, a.OK)
	var snap game.Snapshot
	require.NoError(t, json.Unmarshal(a.Data, &snap))
	assert.Equal(t, game.StatusBidding, snap.Status)
	assert.Equal(t, "bo", snap.LastBidder)

	bo.c.Close(websocket.StatusNormalClosure, "bye")
	var end game.GameEndPayload
	require.NoError(t, json.Unmarshal(ana.expect(string(game.EventGameEnd)), &end))
	assert.Equal(t, "ana", end.Winner)
	var left MemberPayload
	require.NoError(t, json.Unmarshal(ana.expect(EventPlayerLeft), &left))
	assert.Equal(t, "bo", left.Nickname)
	assert.False(t, env.dir.has("sala1", "bo"))

	resp, err := http.Get(env.ts.URL + "/games/sala1")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	assert.Equal(t, game.StatusFinished, snap.Status)
}

func TestJoinRejectsRoundCountOutOfRange(t *testing.T) {
	env := newTestEnv(t, false)
	c := env.dial(t, "")

	res := c.call("joinLobby", map[string]any{"lobby": "sala1", "nickname": "ana", "rounds": 1 << 40})
	assert.False(t, res.OK)
	assert.Equal(t, string(game.ReasonInvalidAmount), res.Error)
	res = c.call("joinLobby", map[string]any{"lobby": "sala1", "nickname": "ana", "rounds": -2})
	assert.Equal(t, string(game.ReasonInvalidAmount), res.Error)
	assert.False(t, env.dir.has("sala1", "ana"), "a rejected join leaves the lobby untouched")

	require.True(t, c.call("joinLobby", map[string]any{"lobby": "sala1", "nickname": "ana", "rounds": 20}).OK)
	assert.True(t, env.dir.has("sala1", "ana"))
}

func TestEventsNeedALobby(t *testing.T) {
	env := newTestEnv(t, false)
	c := env.dial(t, "")

	assert.Equal(t, string(ReasonNotInLobby), c.call("placeBid", map[string]any{"amount": 200}).Error)
	assert.Equal(t, string(ReasonNotInLobby), c.call("leaveLobby", nil).Error)
	assert.Equal(t, string(ReasonUnknownEvent), c.call("dance", nil).Error)
	assert.Equal(t, string(ReasonBadRequest), c.call("joinLobby", map[string]any{"lobby": "sala1"}).Error)

	require.True(t, c.call("joinLobby", map[string]any{"lobby": "sala1", "nickname": "ana"}).OK)
	assert.Equal(t, string(ReasonBadRequest), c.call("chatMessage", map[string]any{"message": "  "}).Error)
	assert.Equal(t, string(game.ReasonGameNotFound), c.call("syncState", nil).Error)

	require.True(t, c.call("chatMessage", map[string]any{"message": "hola"}).OK)
	var chat ChatPayload
	require.NoError(t, json.Unmarshal(c.expect(EventChatMessage), &chat))
	assert.Equal(t, "ana", chat.Nickname)
	assert.Equal(t, "hola", chat.Message)

	require.True(t, c.call("ping", nil).OK)
	c.expect("pong")
}

func TestSwitchingLobbiesLeavesTheOldOne(t *testing.T) {
	env := newTestEnv(t, false)
	c := env.dial(t, "")

	require.True(t, c.call("joinLobby", map[string]any{"lobby": "sala1", "nickname": "ana"}).OK)
	require.True(t, c.call("joinLobby", map[string]any{"lobby": "sala2", "nickname": "ana"}).OK)
	assert.False(t, env.dir.has("sala1", "ana"))
	assert.True(t, env.dir.has("sala2", "ana"))
	assert.Equal(t, 0, env.srv.Hub.RoomSize("sala1"))
	assert.Equal(t, 1, env.srv.Hub.RoomSize("sala2"))

	require.True(t, c.call("leaveLobby", nil).OK)
	assert.False(t, env.dir.has("sala2", "ana"))
}

func TestReconnectReplacesTheOldSocket(t *testing.T) {
	env := newTestEnv(t, false)
	first := env.dial(t, "")
	second := env.dial(t, "")

	require.True(t, first.call("joinLobby", map[string]any{"lobby": "sala1", "nickname": "ana"}).OK)
	require.True(t, second.call("joinLobby", map[string]any{"lobby": "sala1", "nickname": "ana"}).OK)

	var err error
	for err == nil {
		_, err = first.read()
	}
	assert.Equal(t, websocket.StatusCode(SessionReplacedError), websocket.CloseStatus(err))
	assert.True(t, env.dir.has("sala1", "ana"), "the new socket keeps the seat")
	require.Eventually(t, func() bool { return env.srv.Hub.RoomSize("sala1") == 1 }, time.Second, 5*time.Millisecond)
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t, true)

	anon := env.dial(t, "")
	_, err := anon.read()
	assert.Equal(t, websocket.StatusCode(InvalidAuthTokenError), websocket.CloseStatus(err))

	resp, err := http.Post(env.ts.URL+"/session", "application/json", strings.NewReader(`{"nickname":"ana"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sess sessionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sess))

	c := env.dial(t, "?token="+sess.Token)
	assert.Equal(t, string(ReasonForbidden), c.call("joinLobby", map[string]any{"lobby": "sala1", "nickname": "bo"}).Error)
	require.True(t, c.call("joinLobby", map[string]any{"lobby": "sala1"}).OK)
	assert.True(t, env.dir.has("sala1", "ana"))
}

func TestWrongSubprotocolIsClosed(t *testing.T) {
	env := newTestEnv(t, false)
	c := env.dial(t, "", "lobby")
	_, err := c.read()
	assert.Equal(t, websocket.StatusCode(BadSubprotocolError), websocket.CloseStatus(err))
}

func TestHTTPEndpoints(t *testing.T) {
	env := newTestEnv(t, false)

	resp, err := http.Get(env.ts.URL + "/healthz")
	require.NoError(t, err)
	var health healthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	resp.Body.Close()
	assert.Equal(t, "ok", health.Status)
	assert.Zero(t, health.Players)

	resp, err = http.Get(env.ts.URL + "/games/nowhere")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Post(env.ts.URL+"/session", "application/json", strings.NewReader(`{"nickname":" "}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Post(env.ts.URL+"/session", "application/json", strings.NewReader(`{"nickname":"ana"}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == authCookie {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	sub, err := auth.AuthenticateJWT(cookie.Value)
	require.NoError(t, err)
	assert.Equal(t, "ana", sub)
}

func TestExtractCookieToken(t *testing.T) {
	assert.Equal(t, "abc", extractCookieToken("theme=dark; auth_token=abc; lang=es", "auth_token"))
	assert.Equal(t, "abc", extractCookieToken("auth_token=abc", "auth_token"))
	assert.Equal(t, "", extractCookieToken("theme=dark", "auth_token"))
}
