// internal/containers/http.go
package containers

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/hiddencargo/internal/clients"
	"github.com/jason-s-yu/hiddencargo/internal/models"
)

// HTTPSupply pulls containers from the remote container service.
type HTTPSupply struct {
	client *clients.BaseClient

	mu  sync.Mutex
	rnd *rand.Rand
}

type remoteItem struct {
	Name  string  `json:"nombre"`
	Price float64 `json:"precio"`
}

// remoteContainer is the wire format of the container service.
type remoteContainer struct {
	Color string       `json:"color"`
	Items []remoteItem `json:"objetos"`
}

// NewHTTPSupply fetches one container per GET from the endpoint at url.
func NewHTTPSupply(url, apiKey string) *HTTPSupply {
	c := clients.NewBaseClient(url, apiKey)
	c.SetTimeout(10 * time.Second)
	return &HTTPSupply{
		client: c,
		rnd:    rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x5eed)),
	}
}

func (s *HTTPSupply) FetchContainer(ctx context.Context) (models.Container, error) {
	var rc remoteContainer
	if err := s.client.Get(ctx, "", &rc); err != nil {
		return models.Container{}, fmt.Errorf("fetch container: %w", err)
	}
	return s.convert(rc), nil
}

func (s *HTTPSupply) convert(rc remoteContainer) models.Container {
	c := models.Container{
		ID:   "container-" + uuid.NewString()[:8],
		Tier: TierForColor(rc.Color),
	}
	if len(rc.Items) == 0 {
		s.mu.Lock()
		c.Value = RandomValue(s.rnd, c.Tier)
		s.mu.Unlock()
		return c
	}
	total := 0.0
	for _, it := range rc.Items {
		total += it.Price
		c.Items = append(c.Items, models.Item{Name: it.Name, Price: it.Price})
	}
	c.Value = int(math.Round(total))
	return c
}
