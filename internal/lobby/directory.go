// internal/lobby/directory.go
package lobby

import (
	"context"

	"github.com/jason-s-yu/hiddencargo/internal/models"
)

// Directory tracks lobby membership and readiness. Implementations map unknown
// lobbies to models.ErrLobbyNotFound and outages to models.ErrExternalServiceUnavailable.
type Directory interface {
	GetLobby(ctx context.Context, name string) (models.LobbyInfo, error)
	AddPlayer(ctx context.Context, name, nickname string) error
	RemovePlayer(ctx context.Context, name, nickname string) error
	MarkReady(ctx context.Context, name, nickname string) error
	MarkNotReady(ctx context.Context, name, nickname string) error
}
