package artifacts

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/aristath/foresight/internal/domain"
)

func sampleBundle() *domain.ScenarioBundle {
	return &domain.ScenarioBundle{
		Symbol:  "AAA",
		Family:  domain.FamilyARIMA,
		Mode:    domain.SimIndependent,
		Seed:    42,
		Horizon: 3,
		Dates: []time.Time{
			time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 7, 2, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 7, 3, 0, 0, 0, 0, time.UTC),
		},
		Paths: []domain.SimulatedPath{
			{Draw: 0, Prices: []float64{101, 102, 103}},
			{Draw: 1, Prices: []float64{99, 98, 100}},
		},
		Bands: domain.PercentileBands{
			P5:  []float64{99, 98, 100},
			P50: []float64{100, 100, 101.5},
			P95: []float64{101, 102, 103},
		},
		ExpectedTerminal: 101.5,
	}
}

func TestStoreRoundTrip(t *testing.T) {
	store, err := NewStore(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)

	in := sampleBundle()
	require.NoError(t, store.Save("run-1", in))

	out, err := store.Load("run-1", "AAA")
	require.NoError(t, err)
	require.NotNil(t, out)
	require.Equal(t, in.Symbol, out.Symbol)
	require.Equal(t, in.Seed, out.Seed)
	require.Equal(t, in.Paths, out.Paths)
	require.Equal(t, in.Bands, out.Bands)
	require.Equal(t, in.ExpectedTerminal, out.ExpectedTerminal)
}

func TestStoreLoadMissing(t *testing.T) {
	store, err := NewStore(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)

	out, err := store.Load("run-x", "NOPE")
	require.NoError(t, err)
	require.Nil(t, out)
}
