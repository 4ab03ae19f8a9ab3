// internal/containers/local.go
package containers

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/hiddencargo/internal/models"
)

// tierWeights is the draw distribution of LocalSupply, rarest last.
var tierWeights = []struct {
	tier   models.Tier
	weight int
}{
	{models.TierNormal, 60},
	{models.TierRare, 25},
	{models.TierEpic, 11},
	{models.TierLegendary, 4},
}

// LocalSupply generates containers in-process for deployments without a container service.
type LocalSupply struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewLocalSupply() *LocalSupply {
	return NewSeededSupply(uint64(time.Now().UnixNano()))
}

// NewSeededSupply returns a LocalSupply with a deterministic sequence.
func NewSeededSupply(seed uint64) *LocalSupply {
	return &LocalSupply{rnd: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (s *LocalSupply) FetchContainer(ctx context.Context) (models.Container, error) {
	if err := ctx.Err(); err != nil {
		return models.Container{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for _, tw := range tierWeights {
		total += tw.weight
	}
	pick := s.rnd.IntN(total)
	tier := models.TierNormal
	for _, tw := range tierWeights {
		if pick < tw.weight {
			tier = tw.tier
			break
		}
		pick -= tw.weight
	}
	return models.Container{
		ID:    "container-" + uuid.NewString()[:8],
		Tier:  tier,
		Value: RandomValue(s.rnd, tier),
	}, nil
}
