// internal/handlers/server.go
package handlers

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jason-s-yu/hiddencargo/internal/game"
	"github.com/jason-s-yu/hiddencargo/internal/hub"
	"github.com/jason-s-yu/hiddencargo/internal/lobby"
	"github.com/jason-s-yu/hiddencargo/internal/session"
	"github.com/sirupsen/logrus"
)

// Subprotocol is the websocket subprotocol clients must request.
const Subprotocol = "cargo"

var (
	ErrBadRequest       = errors.New("malformed request")
	ErrUnknownEvent     = errors.New("unknown event")
	ErrNotInLobby       = errors.New("connection has not joined a lobby")
	ErrNicknameMismatch = errors.New("nickname does not match the authenticated player")
)

// Reasons added by the transport on top of game.Reason.
const (
	ReasonBadRequest   game.Reason = "BAD_REQUEST"
	ReasonUnknownEvent game.Reason = "UNKNOWN_EVENT"
	ReasonNotInLobby   game.Reason = "NOT_IN_LOBBY"
	ReasonForbidden    game.Reason = "FORBIDDEN"
)

func reasonOf(err error) game.Reason {
	switch {
	case errors.Is(err, ErrBadRequest):
		return ReasonBadRequest
	case errors.Is(err, ErrUnknownEvent):
		return ReasonUnknownEvent
	case errors.Is(err, ErrNotInLobby), errors.Is(err, lobby.ErrNotMember):
		return ReasonNotInLobby
	case errors.Is(err, ErrNicknameMismatch):
		return ReasonForbidden
	}
	return game.ReasonOf(err)
}

// roundsSetter is implemented by directories that let the first player pick the
// number of rounds.
type roundsSetter interface {
	SetRounds(ctx context.Context, name string, rounds int) error
}

// Server wires the websocket protocol and HTTP endpoints to the game coordinator.
type Server struct {
	Coordinator *game.Coordinator
	Directory   lobby.Directory
	Hub         *hub.Hub
	Registry    *session.Registry
	Logger      *logrus.Logger

	// AuthRequired rejects sockets without a valid token and pins every event to
	// the token's nickname.
	AuthRequired bool
	// CallTimeout bounds each call to the lobby directory.
	CallTimeout time.Duration

	clients sync.Map // uuid.UUID -> *client
}
