// internal/models/lobby.go
package models

// LobbyInfo is what the lobby directory knows about a room.
type LobbyInfo struct {
	Name           string   `json:"name"`
	ConnectedCount int      `json:"connectedCount"`
	ReadyCount     int      `json:"readyCount"`
	RoundCount     int      `json:"roundCount"`
	Players        []string `json:"players"`
}

// AllReady reports whether every connected member has marked ready.
func (l LobbyInfo) AllReady() bool {
	return l.ConnectedCount > 0 && l.ReadyCount == l.ConnectedCount
}
