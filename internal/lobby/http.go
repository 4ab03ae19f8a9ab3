// internal/lobby/http.go
package lobby

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/jason-s-yu/hiddencargo/internal/clients"
	"github.com/jason-s-yu/hiddencargo/internal/models"
)

// HTTPDirectory talks to the remote lobby service. The remote side only counts
// ready players, so readiness calls do not carry a nickname.
type HTTPDirectory struct {
	client *clients.BaseClient
}

type remoteLobby struct {
	Connected int      `json:"jugadoresConectados"`
	Ready     int      `json:"jugadoresListos"`
	Rounds    int      `json:"numeroDeRondas"`
	Players   []string `json:"jugadores"`
}

func NewHTTPDirectory(baseURL, apiKey string) *HTTPDirectory {
	return &HTTPDirectory{client: clients.NewBaseClient(baseURL, apiKey)}
}

func (d *HTTPDirectory) GetLobby(ctx context.Context, name string) (models.LobbyInfo, error) {
	var rl remoteLobby
	if err := d.client.Get(ctx, "/"+url.PathEscape(name), &rl); err != nil {
		return models.LobbyInfo{}, mapNotFound(name, err)
	}
	return models.LobbyInfo{
		Name:           name,
		ConnectedCount: rl.Connected,
		ReadyCount:     rl.Ready,
		RoundCount:     rl.Rounds,
		Players:        rl.Players,
	}, nil
}

func (d *HTTPDirectory) AddPlayer(ctx context.Context, name, nickname string) error {
	endpoint := fmt.Sprintf("/%s/agregarJugador?nickname=%s", url.PathEscape(name), url.QueryEscape(nickname))
	return mapNotFound(name, d.client.Put(ctx, endpoint, nil, nil))
}

func (d *HTTPDirectory) RemovePlayer(ctx context.Context, name, nickname string) error {
	endpoint := fmt.Sprintf("/%s/quitarJugador?nickname=%s", url.PathEscape(name), url.QueryEscape(nickname))
	return mapNotFound(name, d.client.Put(ctx, endpoint, nil, nil))
}

func (d *HTTPDirectory) MarkReady(ctx context.Context, name, _ string) error {
	return mapNotFound(name, d.client.Get(ctx, "/"+url.PathEscape(name)+"/agregarListo", nil))
}

func (d *HTTPDirectory) MarkNotReady(ctx context.Context, name, _ string) error {
	return mapNotFound(name, d.client.Get(ctx, "/"+url.PathEscape(name)+"/quitarListo", nil))
}

func mapNotFound(name string, err error) error {
	var serr *clients.StatusError
	if errors.As(err, &serr) && serr.Status == http.StatusNotFound {
		return fmt.Errorf("lobby %s: %w", name, models.ErrLobbyNotFound)
	}
	return err
}
