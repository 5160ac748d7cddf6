package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/urban-sprawl/internal/model"
)

var period = model.Period{Year: 2025, Month: 5}

func TestAggregate(t *testing.T) {
	t.Parallel()
	polygons := []model.ExpansionPolygon{
		{ID: "a", AreaM2: 12000},
		{ID: "b", AreaM2: 3000},
		{ID: "c", AreaM2: 500},
	}
	records := []model.IntersectionRecord{
		{PolygonID: "a", Category: model.CategoryEEP, OverlapAreaM2: 4000},
		{PolygonID: "a", Category: model.CategoryEEP, OverlapAreaM2: 1000},
		{PolygonID: "a", Category: model.CategorySAC, OverlapAreaM2: 12000},
		{PolygonID: "b", Category: model.CategoryEEP, OverlapAreaM2: 3000},
	}

	rows := Aggregate(polygons, records, period)
	require.Len(t, rows, 3)

	assert.Equal(t, model.AreaStatistic{Period: period, Category: "total", AreaM2: 15500, AreaHa: 1.55, PolygonCount: 3}, rows[0])
	assert.Equal(t, "SAC", rows[1].Category)
	assert.Equal(t, 12000.0, rows[1].AreaM2)
	assert.Equal(t, 1, rows[1].PolygonCount)
	assert.Equal(t, "EEP", rows[2].Category)
	assert.Equal(t, 8000.0, rows[2].AreaM2)
	assert.Equal(t, 0.8, rows[2].AreaHa)
	assert.Equal(t, 2, rows[2].PolygonCount, "a polygon counts once per category")

	// Categories are additive and may exceed the total.
	assert.Greater(t, rows[1].AreaM2+rows[2].AreaM2, rows[0].AreaM2)
}

func TestAggregate_Empty(t *testing.T) {
	t.Parallel()
	rows := Aggregate(nil, nil, period)
	require.Len(t, rows, 1)
	assert.Equal(t, model.TotalLabel, rows[0].Category)
	assert.Zero(t, rows[0].AreaM2)
	assert.Zero(t, rows[0].PolygonCount)
}

func TestAggregate_TotalMatchesPolygonSum(t *testing.T) {
	t.Parallel()
	var polygons []model.ExpansionPolygon
	var want float64
	for i := 0; i < 1000; i++ {
		a := 0.1 * float64(i%7+1)
		polygons = append(polygons, model.ExpansionPolygon{ID: string(rune('a' + i%26)), AreaM2: a})
		want += a
	}
	rows := Aggregate(polygons, nil, period)
	assert.InDelta(t, want, rows[0].AreaM2, 1e-9)
	assert.Equal(t, 1000, rows[0].PolygonCount)
}

func TestHectares(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 1.0, Hectares(10000))
	assert.InDelta(t, 0.00012345, Hectares(1.2345), 1e-18)
}

func TestAggregateUnits(t *testing.T) {
	t.Parallel()
	eep := model.CategoryEEP
	sac := model.CategorySAC
	shares := []model.UnitShare{
		{PolygonID: "a", Unit: "Usaquén", AreaM2: 600, ProtectedM2: 100},
		{PolygonID: "a", Unit: "Usaquén", Category: &eep, AreaM2: 100},
		{PolygonID: "a", Unit: "Chapinero", AreaM2: 400},
		{PolygonID: "b", Unit: "Chapinero", AreaM2: 50, ProtectedM2: 50},
		{PolygonID: "b", Unit: "Chapinero", Category: &sac, AreaM2: 50},
	}
	rows := AggregateUnits([]string{"Usaquén", "Chapinero"}, shares, period)
	require.Len(t, rows, 8)

	assert.Equal(t, "Chapinero", rows[0].Unit)
	assert.Equal(t, model.TotalLabel, rows[0].Category)
	assert.Equal(t, 450.0, rows[0].AreaM2)
	assert.Equal(t, 2, rows[0].PolygonCount)
	assert.Equal(t, "SAC", rows[1].Category)
	assert.Equal(t, 1, rows[1].PolygonCount)
	assert.Equal(t, model.UnitStatistic{Period: period, Unit: "Chapinero", Category: model.ProtectedLabel, AreaM2: 50, AreaHa: 0.005, PolygonCount: 1}, rows[2])
	assert.Equal(t, model.UnitStatistic{Period: period, Unit: "Chapinero", Category: model.UnprotectedLabel, AreaM2: 400, AreaHa: 0.04, PolygonCount: 1}, rows[3])

	assert.Equal(t, "Usaquén", rows[4].Unit)
	assert.Equal(t, 600.0, rows[4].AreaM2)
	assert.Equal(t, "EEP", rows[5].Category)
	assert.Equal(t, 0.01, rows[5].AreaHa)
	assert.Equal(t, 100.0, rows[6].AreaM2)
	assert.Equal(t, 500.0, rows[7].AreaM2)

	for i := 0; i < len(rows); i += 4 {
		assert.InDelta(t, rows[i].AreaM2, rows[i+2].AreaM2+rows[i+3].AreaM2, 1e-9, rows[i].Unit)
	}
}

func TestAggregateUnits_UnitWithoutExpansion(t *testing.T) {
	t.Parallel()
	rows := AggregateUnits([]string{"Suba", "Bosa"}, nil, period)
	require.Len(t, rows, 6)
	assert.Equal(t, model.UnitStatistic{Period: period, Unit: "Bosa", Category: model.TotalLabel}, rows[0])
	assert.Equal(t, model.ProtectedLabel, rows[1].Category)
	assert.Equal(t, model.UnprotectedLabel, rows[2].Category)
	assert.Equal(t, "Suba", rows[3].Unit)
	for _, r := range rows {
		assert.Zero(t, r.AreaM2)
		assert.Zero(t, r.PolygonCount)
	}
}

func TestAggregateUnits_NoUnits(t *testing.T) {
	t.Parallel()
	rows := AggregateUnits(nil, nil, period)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestCoverage(t *testing.T) {
	t.Parallel()
	cov := []model.Coverage{
		{PolygonID: "a", ProtectedM2: 12000},
		{PolygonID: "b", ProtectedM2: 1000, UnprotectedM2: 2000},
		{PolygonID: "c", UnprotectedM2: 500},
	}
	rows := Coverage(cov, period)
	require.Len(t, rows, 2)
	assert.Equal(t, model.AreaStatistic{Period: period, Category: model.ProtectedLabel, AreaM2: 13000, AreaHa: 1.3, PolygonCount: 2}, rows[0])
	assert.Equal(t, model.AreaStatistic{Period: period, Category: model.UnprotectedLabel, AreaM2: 2500, AreaHa: 0.25, PolygonCount: 2}, rows[1])

	empty := Coverage(nil, period)
	require.Len(t, empty, 2)
	assert.Zero(t, empty[0].AreaM2)
	assert.Zero(t, empty[1].PolygonCount)
}
