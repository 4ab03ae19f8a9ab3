// internal/containers/tier.go
package containers

import (
	"math/rand/v2"
	"strings"

	"github.com/jason-s-yu/hiddencargo/internal/models"
)

// valueRange is the [min, min+spread) interval a tier's value is drawn from when
// the contents are unknown.
type valueRange struct {
	min, spread int
}

var tierRanges = map[models.Tier]valueRange{
	models.TierNormal:    {200, 300},
	models.TierRare:      {500, 500},
	models.TierEpic:      {1000, 1000},
	models.TierLegendary: {2000, 3000},
}

// TierForColor maps the paint color reported by the container service to a tier.
// Unknown colors are Normal.
func TierForColor(color string) models.Tier {
	switch strings.ToLower(strings.TrimSpace(color)) {
	case "gris":
		return models.TierRare
	case "blanco":
		return models.TierNormal
	case "azul":
		return models.TierEpic
	case "dorado":
		return models.TierLegendary
	}
	return models.TierNormal
}

// RandomValue draws a plausible value for a tier.
func RandomValue(r *rand.Rand, tier models.Tier) int {
	vr, ok := tierRanges[tier]
	if !ok {
		vr = tierRanges[models.TierNormal]
	}
	return vr.min + r.IntN(vr.spread)
}
