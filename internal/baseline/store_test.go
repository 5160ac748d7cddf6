package baseline

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/urban-sprawl/internal/model"
	"github.com/sells-group/urban-sprawl/internal/raster"
)

func testGrid() raster.Grid {
	return raster.Grid{
		Cols:      3,
		Rows:      2,
		Transform: raster.GeoTransform{OriginX: 1000, OriginY: 2000, PixelWidth: 10, PixelHeight: 10},
		SRID:      9377,
	}
}

// maskOf sets cells by row-major index.
func maskOf(cells ...int) *raster.Mask {
	g := testGrid()
	m := raster.NewMask(g)
	for _, i := range cells {
		m.Set(i%g.Cols, i/g.Cols, true)
	}
	return m
}

func p(year, month int) model.Period { return model.Period{Year: year, Month: month} }

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLite(filepath.Join(t.TempDir(), "baseline.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func stores(t *testing.T) map[string]Store {
	return map[string]Store{
		"memory": NewMemory(),
		"sqlite": newTestSQLiteStore(t),
	}
}

func TestStore_LoadEmpty(t *testing.T) {
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			snap, err := st.Load(context.Background(), "bogota", p(2025, 3))
			require.NoError(t, err)
			assert.Nil(t, snap)
		})
	}
}

func TestStore_LoadLatestStrictlyBefore(t *testing.T) {
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, st.Save(ctx, "bogota", p(2025, 2), maskOf(0)))
			require.NoError(t, st.Save(ctx, "bogota", p(2025, 4), maskOf(0, 1, 5)))
			require.NoError(t, st.Save(ctx, "medellin", p(2025, 3), maskOf(2)))

			tests := []struct {
				at   model.Period
				want *model.Period
			}{
				{p(2025, 2), nil},
				{p(2025, 3), &model.Period{Year: 2025, Month: 2}},
				{p(2025, 4), &model.Period{Year: 2025, Month: 2}},
				{p(2026, 1), &model.Period{Year: 2025, Month: 4}},
			}
			for _, tt := range tests {
				snap, err := st.Load(ctx, "bogota", tt.at)
				require.NoError(t, err)
				if tt.want == nil {
					assert.Nil(t, snap, tt.at.String())
					continue
				}
				require.NotNil(t, snap, tt.at.String())
				assert.Equal(t, *tt.want, snap.Period)
				assert.Equal(t, "bogota", snap.Region)
			}

			snap, err := st.Load(ctx, "bogota", p(2025, 5))
			require.NoError(t, err)
			assert.True(t, snap.Mask.Equal(maskOf(0, 1, 5)))
			assert.Equal(t, testGrid(), snap.Mask.Grid)
		})
	}
}

func TestStore_SaveIsUpsert(t *testing.T) {
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, st.Save(ctx, "bogota", p(2025, 3), maskOf(0)))
			require.NoError(t, st.Save(ctx, "bogota", p(2025, 3), maskOf(0, 1)))

			hist, err := st.History(ctx, "bogota")
			require.NoError(t, err)
			require.Len(t, hist, 1)
			assert.Equal(t, 2, hist[0].Cells)

			snap, err := st.Load(ctx, "bogota", p(2025, 4))
			require.NoError(t, err)
			assert.Equal(t, 2, snap.Mask.Count())
		})
	}
}

func TestStore_Lock(t *testing.T) {
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			unlock, err := st.Lock(ctx, "bogota")
			require.NoError(t, err)

			_, err = st.Lock(ctx, "bogota")
			assert.ErrorIs(t, err, ErrLocked)

			other, err := st.Lock(ctx, "medellin")
			require.NoError(t, err)
			require.NoError(t, other(ctx))

			require.NoError(t, unlock(ctx))
			again, err := st.Lock(ctx, "bogota")
			require.NoError(t, err)
			require.NoError(t, again(ctx))
		})
	}
}

func TestStore_HistoryAndReset(t *testing.T) {
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for m := 1; m <= 4; m++ {
				require.NoError(t, st.Save(ctx, "bogota", p(2025, m), maskOf(0)))
			}
			hist, err := st.History(ctx, "bogota")
			require.NoError(t, err)
			require.Len(t, hist, 4)
			for i, e := range hist {
				assert.Equal(t, p(2025, i+1), e.Period)
			}

			n, err := st.Reset(ctx, "bogota", p(2025, 3))
			require.NoError(t, err)
			assert.Equal(t, 2, n)

			hist, err = st.History(ctx, "bogota")
			require.NoError(t, err)
			assert.Len(t, hist, 2)
		})
	}
}

func TestStore_EmptyRegionRejected(t *testing.T) {
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, st.Save(context.Background(), "", p(2025, 1), maskOf(0)))
		})
	}
}

func TestMemoryStore_CopiesMasks(t *testing.T) {
	st := NewMemory()
	ctx := context.Background()
	m := maskOf(0)
	require.NoError(t, st.Save(ctx, "bogota", p(2025, 1), m))
	m.Set(2, 1, true)

	snap, err := st.Load(ctx, "bogota", p(2025, 2))
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Mask.Count())
}

func TestOpen(t *testing.T) {
	st, err := Open(context.Background(), "memory", "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, st)

	st, err = Open(context.Background(), "sqlite", filepath.Join(t.TempDir(), "b.db"))
	require.NoError(t, err)
	assert.NoError(t, st.Close())

	_, err = Open(context.Background(), "redis", "")
	assert.Error(t, err)
}
