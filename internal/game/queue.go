// internal/game/queue.go
package game

import (
	"context"

	"github.com/jason-s-yu/hiddencargo/internal/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ContainerQueue is the FIFO of lots prefetched for a game, one per round.
type ContainerQueue struct {
	items []models.Container
}

func (q *ContainerQueue) Len() int {
	return len(q.items)
}

func (q *ContainerQueue) Peek() (models.Container, bool) {
	if len(q.items) == 0 {
		return models.Container{}, false
	}
	return q.items[0], true
}

func (q *ContainerQueue) Pop() (models.Container, bool) {
	c, ok := q.Peek()
	if ok {
		q.items = q.items[1:]
	}
	return c, ok
}

// FillQueue fetches n containers with at most parallel requests in flight.
// Failed fetches are logged and skipped; the queue keeps request order.
func FillQueue(ctx context.Context, supply ContainerSupply, n, parallel int, log logrus.FieldLogger) *ContainerQueue {
	if n <= 0 {
		return &ContainerQueue{}
	}
	results := make([]*models.Container, n)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			c, err := supply.FetchContainer(gctx)
			if err != nil {
				log.WithError(err).WithField("slot", i).Warn("container fetch failed")
				return nil
			}
			results[i] = &c
			return nil
		})
	}
	_ = g.Wait()

	q := &ContainerQueue{items: make([]models.Container, 0, n)}
	for _, c := range results {
		if c != nil {
			q.items = append(q.items, *c)
		}
	}
	return q
}
