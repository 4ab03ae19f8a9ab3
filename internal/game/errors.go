// internal/game/errors.go
package game

import (
	"errors"

	"github.com/jason-s-yu/hiddencargo/internal/models"
)

// Failures returned by Coordinator operations. Validation failures never change game state.
var (
	ErrInsufficientPlayers      = errors.New("at least two ready players are required")
	ErrContainerSupplyExhausted = errors.New("no containers available for this game")
	ErrGameNotFound             = errors.New("no active game for this lobby")
	ErrGameInProgress           = errors.New("a game is already running in this lobby")
	ErrInvalidPhase             = errors.New("action not allowed in the current phase")
	ErrPlayerNotFound           = errors.New("player is not part of this game")
	ErrInsufficientFunds        = errors.New("bid exceeds available balance")
	ErrBidTooLow                = errors.New("bid must exceed the current bid")
	ErrInvalidAmount            = errors.New("amount out of range")

	ErrLobbyNotFound              = models.ErrLobbyNotFound
	ErrExternalServiceUnavailable = models.ErrExternalServiceUnavailable
)

// Reason is the machine-readable failure code sent to clients.
type Reason string

const (
	ReasonNone                Reason = ""
	ReasonInsufficientPlayers Reason = "INSUFFICIENT_PLAYERS"
	ReasonSupplyExhausted     Reason = "CONTAINER_SUPPLY_EXHAUSTED"
	ReasonGameNotFound        Reason = "GAME_NOT_FOUND"
	ReasonGameInProgress      Reason = "GAME_IN_PROGRESS"
	ReasonInvalidPhase        Reason = "INVALID_PHASE"
	ReasonPlayerNotFound      Reason = "PLAYER_NOT_FOUND"
	ReasonInsufficientFunds   Reason = "INSUFFICIENT_FUNDS"
	ReasonBidTooLow           Reason = "BID_TOO_LOW"
	ReasonInvalidAmount       Reason = "INVALID_AMOUNT"
	ReasonLobbyNotFound       Reason = "LOBBY_NOT_FOUND"
	ReasonServiceUnavailable  Reason = "EXTERNAL_SERVICE_UNAVAILABLE"
	ReasonInternal            Reason = "INTERNAL"
)

var reasons = []struct {
	err    error
	reason Reason
}{
	{ErrInsufficientPlayers, ReasonInsufficientPlayers},
	{ErrContainerSupplyExhausted, ReasonSupplyExhausted},
	{ErrGameNotFound, ReasonGameNotFound},
	{ErrGameInProgress, ReasonGameInProgress},
	{ErrInvalidPhase, ReasonInvalidPhase},
	{ErrPlayerNotFound, ReasonPlayerNotFound},
	{ErrInsufficientFunds, ReasonInsufficientFunds},
	{ErrBidTooLow, ReasonBidTooLow},
	{ErrInvalidAmount, ReasonInvalidAmount},
	{ErrLobbyNotFound, ReasonLobbyNotFound},
	{ErrExternalServiceUnavailable, ReasonServiceUnavailable},
}

// ReasonOf maps an error returned by this package to its wire code.
func ReasonOf(err error) Reason {
	if err == nil {
		return ReasonNone
	}
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.reason
		}
	}
	return ReasonInternal
}
