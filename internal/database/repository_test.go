package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/aristath/foresight/internal/domain"
	"github.com/aristath/foresight/internal/modules/pipeline"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate())
	return db
}

func sampleSeries(symbol string, n int) domain.AssetSeries {
	s := domain.AssetSeries{Symbol: symbol}
	d := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for s.Len() < n {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			s.Points = append(s.Points, domain.PricePoint{Date: d, Price: 100 + float64(s.Len())})
		}
		d = d.AddDate(0, 0, 1)
	}
	return s
}

func TestPriceRepositoryRoundTrip(t *testing.T) {
	db := testDB(t)
	repo := NewPriceRepository(db)

	in := sampleSeries("AAA", 10)
	require.NoError(t, repo.Upsert(in))

	out, err := repo.GetSeries("AAA")
	require.NoError(t, err)
	require.Equal(t, in.Len(), out.Len())
	for i := range in.Points {
		require.True(t, in.Points[i].Date.Equal(out.Points[i].Date))
		require.Equal(t, in.Points[i].Price, out.Points[i].Price)
	}
}

func TestPriceRepositoryUpsertOverwrites(t *testing.T) {
	db := testDB(t)
	repo := NewPriceRepository(db)

	in := sampleSeries("AAA", 5)
	require.NoError(t, repo.Upsert(in))

	in.Points[2].Price = 999
	require.NoError(t, repo.Upsert(in))

	out, err := repo.GetSeries("AAA")
	require.NoError(t, err)
	require.Equal(t, 5, out.Len())
	require.Equal(t, 999.0, out.Points[2].Price)
}

func TestPriceRepositoryMissingSymbol(t *testing.T) {
	db := testDB(t)
	repo := NewPriceRepository(db)

	_, err := repo.GetSeries("NOPE")
	var invalid *domain.InvalidSeriesError
	require.ErrorAs(t, err, &invalid)
}

func TestPriceRepositorySymbols(t *testing.T) {
	db := testDB(t)
	repo := NewPriceRepository(db)

	require.NoError(t, repo.Upsert(sampleSeries("BBB", 3)))
	require.NoError(t, repo.Upsert(sampleSeries("AAA", 3)))

	symbols, err := repo.Symbols()
	require.NoError(t, err)
	require.Equal(t, []string{"AAA", "BBB"}, symbols)
}

func TestResultRepositoryRoundTrip(t *testing.T) {
	db := testDB(t)
	repo := NewResultRepository(db)

	latest, err := repo.Latest()
	require.NoError(t, err)
	require.Nil(t, latest)

	older := &pipeline.RunResult{
		RunID:      uuid.New(),
		StartedAt:  time.Now().Add(-2 * time.Hour).UTC(),
		FinishedAt: time.Now().Add(-2 * time.Hour).UTC(),
		Assets:     []*pipeline.AssetResult{{Symbol: "AAA"}},
	}
	newer := &pipeline.RunResult{
		RunID:      uuid.New(),
		StartedAt:  time.Now().UTC(),
		FinishedAt: time.Now().UTC(),
		Assets:     []*pipeline.AssetResult{{Symbol: "BBB"}},
	}
	require.NoError(t, repo.Save(older))
	require.NoError(t, repo.Save(newer))

	latest, err = repo.Latest()
	require.NoError(t, err)
	require.NotNil(t, latest)
	require.Equal(t, newer.RunID, latest.RunID)
	require.Equal(t, "BBB", latest.Assets[0].Symbol)

	got, err := repo.Get(older.RunID.String())
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "AAA", got.Assets[0].Symbol)

	missing, err := repo.Get(uuid.NewString())
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestHealthCheck(t *testing.T) {
	db := testDB(t)
	require.NoError(t, db.HealthCheck(context.Background()))
}
