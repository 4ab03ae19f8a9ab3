// internal/handlers/events.go
package handlers

import "github.com/jason-s-yu/hiddencargo/internal/models"

// Lobby notifications. Game notifications are emitted by the coordinator.
const (
	EventPlayerJoined    = "playerJoined"
	EventPlayerLeft      = "playerLeft"
	EventPlayerReady     = "playerReady"
	EventPlayerNotReady  = "playerNotReady"
	EventAllPlayersReady = "allPlayersReady"
	EventChatMessage     = "chatMessage"
)

// MemberPayload reports a membership or readiness change with the lobby counts after it.
type MemberPayload struct {
	Nickname       string   `json:"nickname"`
	Lobby          string   `json:"lobby"`
	ConnectedCount int      `json:"connectedCount"`
	ReadyCount     int      `json:"readyCount"`
	Players        []string `json:"players"`
}

func memberPayload(nickname string, info models.LobbyInfo) MemberPayload {
	players := info.Players
	if players == nil {
		players = []string{}
	}
	return MemberPayload{
		Nickname:       nickname,
		Lobby:          info.Name,
		ConnectedCount: info.ConnectedCount,
		ReadyCount:     info.ReadyCount,
		Players:        players,
	}
}

type ChatPayload struct {
	Nickname  string `json:"nickname"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}
