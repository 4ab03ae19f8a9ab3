// internal/handlers/ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/jason-s-yu/hiddencargo/internal/auth"
	"github.com/jason-s-yu/hiddencargo/internal/game"
	"github.com/jason-s-yu/hiddencargo/internal/hub"
	"github.com/jason-s-yu/hiddencargo/internal/middleware"
	"github.com/jason-s-yu/hiddencargo/internal/models"
	"github.com/jason-s-yu/hiddencargo/internal/session"
	"github.com/sirupsen/logrus"
)

// client is one accepted game socket.
type client struct {
	conn    *hub.Conn
	ws      *websocket.Conn
	subject string
	log     *logrus.Entry
}

type ackPayload struct {
	OK      bool        `json:"ok"`
	Error   game.Reason `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
	Data    any         `json:"data,omitempty"`
}

// WSHandler accepts game sockets on the cargo subprotocol.
func (s *Server) WSHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subject := ""
		if token := tokenFromRequest(r); token != "" {
			sub, err := auth.AuthenticateJWT(token)
			if err != nil {
				s.Logger.Debugf("ignoring bad token from %s: %v", r.RemoteAddr, err)
			} else {
				subject = sub
			}
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{Subprotocol},
			OriginPatterns: []string{"*"},
		})
		if err != nil {
			s.Logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if c.Subprotocol() != Subprotocol {
			c.Close(BadSubprotocolError, "client must speak the cargo subprotocol")
			return
		}
		if s.AuthRequired && subject == "" {
			c.Close(InvalidAuthTokenError, "a valid auth token is required")
			return
		}

		conn := s.Hub.Register()
		cl := &client{
			conn:    conn,
			ws:      c,
			subject: subject,
			log:     s.Logger.WithField("conn", conn.ID),
		}
		s.clients.Store(conn.ID, cl)
		middleware.LogWebSocketConnect(s.Logger, r, conn.ID)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		go s.writePump(ctx, cl)
		err = s.readPump(ctx, cl)

		s.clients.Delete(conn.ID)
		s.disconnect(cl)
		s.Hub.Unregister(conn.ID)
		middleware.LogWebSocketDisconnect(s.Logger, r, conn.ID, err)
	}
}

// readPump handles frames until the socket closes. Frames of one connection are
// handled in order.
func (s *Server) readPump(ctx context.Context, cl *client) error {
	for {
		typ, msg, err := cl.ws.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if typ != websocket.MessageText {
			cl.log.Warnf("received non-text message type %d, ignoring", typ)
			continue
		}

		var f hub.Frame
		if err := json.Unmarshal(msg, &f); err != nil {
			s.reply(cl, 0, nil, fmt.Errorf("invalid json: %w", ErrBadRequest))
			continue
		}
		result, err := s.dispatch(ctx, cl, f)
		if err != nil {
			cl.log.WithField("event", f.Event).Debugf("event rejected: %v", err)
		}
		s.reply(cl, f.ID, result, err)
	}
}

// reply acks a frame that carried an id. Failures of frames without one are
// reported as an error event.
func (s *Server) reply(cl *client, id int64, result any, err error) {
	var ack ackPayload
	if err != nil {
		ack = ackPayload{Error: reasonOf(err), Message: err.Error()}
	} else {
		ack = ackPayload{OK: true, Data: result}
	}
	event := "ack"
	if id == 0 {
		if err == nil {
			return
		}
		event = "error"
	}
	msg, mErr := hub.Encode(event, id, ack)
	if mErr != nil {
		cl.log.Errorf("failed to marshal %s: %v", event, mErr)
		return
	}
	_ = s.Hub.SendRaw(cl.conn.ID, msg)
}

func (s *Server) writePump(ctx context.Context, cl *client) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	defer cl.ws.Close(websocket.StatusGoingAway, "write pump stopping")

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-cl.conn.Out:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := cl.ws.Write(writeCtx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				cl.log.Warnf("failed to write to websocket: %v", err)
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			err := cl.ws.Ping(pingCtx)
			cancel()
			if err != nil {
				cl.log.Warnf("failed to send ping: %v. Assuming disconnect.", err)
				return
			}
		}
	}
}

func (s *Server) dispatch(ctx context.Context, cl *client, f hub.Frame) (any, error) {
	switch f.Event {
	case "joinLobby":
		return s.onJoinLobby(ctx, cl, f.Data)
	case "leaveLobby":
		return s.onLeaveLobby(ctx, cl)
	case "playerReady":
		return s.onReady(ctx, cl, true)
	case "playerNotReady":
		return s.onReady(ctx, cl, false)
	case "chatMessage":
		return s.onChat(cl, f.Data)
	case "startGame":
		return s.onStartGame(ctx, cl)
	case "placeBid":
		return s.onPlaceBid(cl, f.Data)
	case "readyForNextRound":
		b, err := s.bound(cl)
		if err != nil {
			return nil, err
		}
		s.Coordinator.PlayerReadyForNextRound(b.Lobby, b.Nickname)
		return nil, nil
	case "leaveGame":
		b, err := s.bound(cl)
		if err != nil {
			return nil, err
		}
		s.Coordinator.PlayerLeft(b.Lobby, b.Nickname)
		return nil, nil
	case "updatePlayerBalance":
		return s.onUpdateBalance(cl, f.Data)
	case "syncState":
		b, err := s.bound(cl)
		if err != nil {
			return nil, err
		}
		snap, err := s.Coordinator.Snapshot(b.Lobby)
		if err != nil {
			return nil, err
		}
		return snap, nil
	case "ping":
		return nil, s.Hub.Send(cl.conn.ID, "pong", map[string]int64{"time": time.Now().UnixMilli()})
	}
	return nil, fmt.Errorf("%q: %w", f.Event, ErrUnknownEvent)
}

type joinRequest struct {
	Lobby    string `json:"lobby"`
	Nickname string `json:"nickname"`
	Rounds   int    `json:"rounds,omitempty"`
}

type joinResponse struct {
	Lobby models.LobbyInfo `json:"lobby"`
	Game  *game.Snapshot   `json:"game,omitempty"`
}

func (s *Server) onJoinLobby(ctx context.Context, cl *client, data json.RawMessage) (any, error) {
	var req joinRequest
	if err := decode(data, &req); err != nil {
		return nil, err
	}
	req.Lobby = strings.TrimSpace(req.Lobby)
	req.Nickname = strings.TrimSpace(req.Nickname)
	if req.Nickname == "" {
		req.Nickname = cl.subject
	}
	if req.Lobby == "" || req.Nickname == "" {
		return nil, fmt.Errorf("lobby and nickname are required: %w", ErrBadRequest)
	}
	if cl.subject != "" && req.Nickname != cl.subject {
		return nil, ErrNicknameMismatch
	}
	if limit := s.Coordinator.Settings().MaxRounds; req.Rounds < 0 || req.Rounds > limit {
		return nil, fmt.Errorf("rounds must be between 1 and %d: %w", limit, game.ErrInvalidAmount)
	}

	if b, ok := s.Registry.Lookup(cl.conn.ID); ok {
		if b.Lobby == req.Lobby && b.Nickname == req.Nickname {
			return s.lobbyState(ctx, req.Lobby)
		}
		s.Registry.Unbind(cl.conn.ID)
		s.leave(ctx, cl.conn.ID, b)
	}

	cctx, cancel := s.callCtx(ctx)
	defer cancel()
	if err := s.Directory.AddPlayer(cctx, req.Lobby, req.Nickname); err != nil {
		return nil, err
	}
	if rs, ok := s.Directory.(roundsSetter); ok && req.Rounds > 0 {
		if err := rs.SetRounds(cctx, req.Lobby, req.Rounds); err != nil {
			cl.log.Warnf("failed to set rounds for lobby %s: %v", req.Lobby, err)
		}
	}
	if prev, replaced := s.Registry.Bind(cl.conn.ID, req.Nickname, req.Lobby); replaced {
		s.replace(prev)
	}
	if err := s.Hub.Join(cl.conn.ID, req.Lobby); err != nil {
		return nil, err
	}
	cl.log.Infof("%s joined lobby %s (%d connected)", req.Nickname, req.Lobby, s.Hub.RoomSize(req.Lobby))

	resp, err := s.lobbyState(cctx, req.Lobby)
	if err != nil {
		return nil, err
	}
	s.Hub.Emit(req.Lobby, EventPlayerJoined, memberPayload(req.Nickname, resp.Lobby))
	return resp, nil
}

func (s *Server) lobbyState(ctx context.Context, name string) (joinResponse, error) {
	info, err := s.Directory.GetLobby(ctx, name)
	if err != nil {
		return joinResponse{}, err
	}
	resp := joinResponse{Lobby: info}
	if snap, err := s.Coordinator.Snapshot(name); err == nil {
		resp.Game = &snap
	}
	return resp, nil
}

// replace closes a connection that a newer socket took over from.
func (s *Server) replace(connID uuid.UUID) {
	s.Hub.Leave(connID)
	v, ok := s.clients.Load(connID)
	if !ok {
		return
	}
	old := v.(*client)
	old.log.Info("player reconnected elsewhere, closing old socket")
	go old.ws.Close(SessionReplacedError, "player connected from another socket")
}

func (s *Server) onLeaveLobby(ctx context.Context, cl *client) (any, error) {
	b, ok := s.Registry.Unbind(cl.conn.ID)
	if !ok {
		return nil, ErrNotInLobby
	}
	s.leave(ctx, cl.conn.ID, b)
	return nil, nil
}

// disconnect runs after the socket is gone, so it does not use the request context.
func (s *Server) disconnect(cl *client) {
	b, ok := s.Registry.Unbind(cl.conn.ID)
	if !ok {
		return
	}
	s.leave(context.Background(), cl.conn.ID, b)
}

// leave takes an unbound player out of the lobby and out of any running game.
func (s *Server) leave(ctx context.Context, connID uuid.UUID, b session.Binding) {
	s.Hub.Leave(connID)
	s.Coordinator.PlayerLeft(b.Lobby, b.Nickname)

	cctx, cancel := s.callCtx(ctx)
	defer cancel()
	if err := s.Directory.RemovePlayer(cctx, b.Lobby, b.Nickname); err != nil {
		s.Logger.WithField("lobby", b.Lobby).Warnf("failed to remove %s from the directory: %v", b.Nickname, err)
	}
	info, err := s.Directory.GetLobby(cctx, b.Lobby)
	if err != nil && !errors.Is(err, models.ErrLobbyNotFound) {
		s.Logger.WithField("lobby", b.Lobby).Warnf("failed to read lobby after leave: %v", err)
	}
	info.Name = b.Lobby
	s.Hub.Emit(b.Lobby, EventPlayerLeft, memberPayload(b.Nickname, info))
}

func (s *Server) onReady(ctx context.Context, cl *client, ready bool) (any, error) {
	b, err := s.bound(cl)
	if err != nil {
		return nil, err
	}
	cctx, cancel := s.callCtx(ctx)
	defer cancel()

	event := EventPlayerReady
	if ready {
		err = s.Directory.MarkReady(cctx, b.Lobby, b.Nickname)
	} else {
		event = EventPlayerNotReady
		err = s.Directory.MarkNotReady(cctx, b.Lobby, b.Nickname)
	}
	if err != nil {
		return nil, err
	}
	info, err := s.Directory.GetLobby(cctx, b.Lobby)
	if err != nil {
		return nil, err
	}

	s.Hub.Emit(b.Lobby, event, memberPayload(b.Nickname, info))
	if ready && info.ReadyCount >= 2 && info.AllReady() {
		s.Hub.Emit(b.Lobby, EventAllPlayersReady, info)
	}
	return info, nil
}

type chatRequest struct {
	Message string `json:"message"`
}

func (s *Server) onChat(cl *client, data json.RawMessage) (any, error) {
	b, err := s.bound(cl)
	if err != nil {
		return nil, err
	}
	var req chatRequest
	if err := decode(data, &req); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Message) == "" {
		return nil, fmt.Errorf("empty message: %w", ErrBadRequest)
	}
	s.Hub.Emit(b.Lobby, EventChatMessage, ChatPayload{
		Nickname:  b.Nickname,
		Message:   req.Message,
		Timestamp: time.Now().UnixMilli(),
	})
	return nil, nil
}

func (s *Server) onStartGame(ctx context.Context, cl *client) (any, error) {
	b, err := s.bound(cl)
	if err != nil {
		return nil, err
	}
	cctx, cancel := s.callCtx(ctx)
	defer cancel()
	snap, err := s.Coordinator.Launch(cctx, b.Lobby)
	if err != nil {
		return nil, err
	}
	return snap, nil
}

type bidRequest struct {
	Amount int `json:"amount"`
}

func (s *Server) onPlaceBid(cl *client, data json.RawMessage) (any, error) {
	b, err := s.bound(cl)
	if err != nil {
		return nil, err
	}
	var req bidRequest
	if err := decode(data, &req); err != nil {
		return nil, err
	}
	receipt, err := s.Coordinator.PlaceBid(b.Lobby, b.Nickname, req.Amount)
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

type balanceRequest struct {
	Balance int `json:"balance"`
}

func (s *Server) onUpdateBalance(cl *client, data json.RawMessage) (any, error) {
	b, err := s.bound(cl)
	if err != nil {
		return nil, err
	}
	var req balanceRequest
	if err := decode(data, &req); err != nil {
		return nil, err
	}
	return nil, s.Coordinator.UpdateBalance(b.Lobby, b.Nickname, req.Balance)
}

func (s *Server) bound(cl *client) (session.Binding, error) {
	b, ok := s.Registry.Lookup(cl.conn.ID)
	if !ok {
		return session.Binding{}, ErrNotInLobby
	}
	return b, nil
}

func (s *Server) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.CallTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.CallTimeout)
}

func decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return fmt.Errorf("missing data: %w", ErrBadRequest)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%v: %w", err, ErrBadRequest)
	}
	return nil
}
