// internal/models/player.go
package models

// PlayerState is a player's standing inside a running game.
type PlayerState struct {
	Nickname string `json:"nickname"`
	Balance  int    `json:"balance"`
	Score    int    `json:"score"`
}
