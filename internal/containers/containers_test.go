package containers

import (
	"context"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jason-s-yu/hiddencargo/internal/clients"
	"github.com/jason-s-yu/hiddencargo/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTierForColor(t *testing.T) {
	assert.Equal(t, models.TierRare, TierForColor("gris"))
	assert.Equal(t, models.TierNormal, TierForColor("Blanco"))
	assert.Equal(t, models.TierEpic, TierForColor("AZUL"))
	assert.Equal(t, models.TierLegendary, TierForColor(" dorado "))
	assert.Equal(t, models.TierNormal, TierForColor("verde"))
}

func TestRandomValueStaysInTierRange(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	bounds := map[models.Tier][2]int{
		models.TierNormal:    {200, 499},
		models.TierRare:      {500, 999},
		models.TierEpic:      {1000, 1999},
		models.TierLegendary: {2000, 4999},
	}
	for tier, b := range bounds {
		for i := 0; i < 200; i++ {
			v := RandomValue(r, tier)
			require.GreaterOrEqual(t, v, b[0], tier)
			require.LessOrEqual(t, v, b[1], tier)
		}
	}
}

func TestHTTPSupplySumsItemPrices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "k", r.Header.Get(clients.APIKeyHeader))
		_, _ = w.Write([]byte(`{"color":"azul","objetos":[{"nombre":"lamp","precio":120.4},{"nombre":"vase","precio":300.3}]}`))
	}))
	defer srv.Close()

	c, err := NewHTTPSupply(srv.URL, "k").FetchContainer(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.TierEpic, c.Tier)
	assert.Equal(t, 421, c.Value)
	assert.Len(t, c.Items, 2)
	assert.Contains(t, c.ID, "container-")
}

func TestHTTPSupplyWithoutItemsUsesTierRange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"color":"dorado"}`))
	}))
	defer srv.Close()

	c, err := NewHTTPSupply(srv.URL, "").FetchContainer(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.TierLegendary, c.Tier)
	assert.GreaterOrEqual(t, c.Value, 2000)
	assert.Less(t, c.Value, 5000)
}

func TestHTTPSupplyOutage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewHTTPSupply(srv.URL, "").FetchContainer(context.Background())
	assert.ErrorIs(t, err, models.ErrExternalServiceUnavailable)
}

func TestLocalSupplyIsDeterministicPerSeed(t *testing.T) {
	a, b := NewSeededSupply(42), NewSeededSupply(42)
	for i := 0; i < 20; i++ {
		ca, err := a.FetchContainer(context.Background())
		require.NoError(t, err)
		cb, err := b.FetchContainer(context.Background())
		require.NoError(t, err)
		assert.Equal(t, ca.Tier, cb.Tier)
		assert.Equal(t, ca.Value, cb.Value)
		assert.Greater(t, ca.Value, 0)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := a.FetchContainer(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
