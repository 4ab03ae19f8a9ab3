// internal/game/events.go
package game

import "github.com/jason-s-yu/hiddencargo/internal/models"

// EventType names a notification emitted to every connection in a lobby.
type EventType string

const (
	EventGameStarted                 EventType = "gameStarted"
	EventNewRound                    EventType = "newRound"
	EventAuctionTimer                EventType = "auctionTimer"
	EventNewBid                      EventType = "newBid"
	EventPlayerUpdate                EventType = "playerUpdate"
	EventBidResult                   EventType = "bidResult"
	EventContainerRevealed           EventType = "containerRevealed"
	EventPlayerReadyForNextRound     EventType = "playerReadyForNextRound"
	EventAllPlayersReadyForNextRound EventType = "allPlayersReadyForNextRound"
	EventPlayerLeftGame              EventType = "playerLeftGame"
	EventGameEnd                     EventType = "gameEnd"
)

type GameStartedPayload struct {
	Players          []models.PlayerState  `json:"players"`
	CurrentContainer *models.ContainerView `json:"currentContainer,omitempty"`
	CurrentBid       int                   `json:"currentBid"`
	Round            int                   `json:"round"`
	TotalRounds      int                   `json:"totalRounds"`
}

type NewRoundPayload struct {
	Round            int                  `json:"round"`
	TotalRounds      int                  `json:"totalRounds"`
	CurrentContainer models.ContainerView `json:"currentContainer"`
	CurrentBid       int                  `json:"currentBid"`
}

type AuctionTimerPayload struct {
	Round       int   `json:"round"`
	TimeLeftSec int   `json:"timeLeft"`
	DeadlineMs  int64 `json:"deadline"`
}

type NewBidPayload struct {
	Nickname string `json:"nickname"`
	Amount   int    `json:"amount"`
	Round    int    `json:"round"`
}

type BidResultPayload struct {
	Winner      string           `json:"winner"`
	Amount      int              `json:"amount"`
	Container   models.Container `json:"container"`
	Profit      int              `json:"profit"`
	Round       int              `json:"round"`
	IsLastRound bool             `json:"isLastRound"`
	NextRound   int              `json:"nextRound"`
	TotalRounds int              `json:"totalRounds"`
}

type ContainerRevealedPayload struct {
	Container models.Container `json:"container"`
	Winner    string           `json:"winner"`
	Amount    int              `json:"amount"`
	Profit    int              `json:"profit"`
}

type PlayerReadyPayload struct {
	Nickname   string `json:"nickname"`
	ReadyCount int    `json:"readyCount"`
	Total      int    `json:"total"`
}

type AllReadyPayload struct {
	NextRound int `json:"nextRound"`
}

type PlayerLeftGamePayload struct {
	Nickname  string `json:"nickname"`
	Remaining int    `json:"remaining"`
}

type GameEndPayload struct {
	Winner      string               `json:"winner"`
	Players     []models.PlayerState `json:"players"`
	RoundsDone  int                  `json:"roundsPlayed"`
	TotalRounds int                  `json:"totalRounds"`
}
