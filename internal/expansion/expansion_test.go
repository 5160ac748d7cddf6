package expansion

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/urban-sprawl/internal/crs"
	"github.com/sells-group/urban-sprawl/internal/model"
	"github.com/sells-group/urban-sprawl/internal/planar"
	"github.com/sells-group/urban-sprawl/internal/raster"
)

var march = model.Period{Year: 2025, Month: 3}

func grid(cols, rows int) raster.Grid {
	return raster.Grid{
		Cols: cols,
		Rows: rows,
		Transform: raster.GeoTransform{
			OriginX: 4880000, OriginY: 2070000, PixelWidth: 10, PixelHeight: 10,
		},
		SRID: crs.MagnaOrigenNac,
	}
}

// mask builds a mask from rows of '#' (set) and '.' (unset).
func mask(t *testing.T, g raster.Grid, art string) *raster.Mask {
	t.Helper()
	lines := strings.Fields(art)
	require.Len(t, lines, g.Rows)
	m := raster.NewMask(g)
	for row, line := range lines {
		require.Len(t, line, g.Cols)
		for col, ch := range line {
			m.Set(col, row, ch == '#')
		}
	}
	return m
}

func detector(t *testing.T, minArea float64) *Detector {
	t.Helper()
	d, err := NewDetector(minArea, crs.MagnaOrigenNac)
	require.NoError(t, err)
	return d
}

func TestNewDetector_RejectsGeographic(t *testing.T) {
	_, err := NewDetector(0, crs.WGS84)
	assert.ErrorIs(t, err, crs.ErrGeographicArea)
	_, err = NewDetector(-1, crs.MagnaOrigenNac)
	assert.Error(t, err)
}

func TestDetect_NoBaseline(t *testing.T) {
	g := grid(3, 2)
	cur := mask(t, g, "##. .#.")
	res, err := detector(t, 0).Detect(cur, nil, march)
	require.NoError(t, err)
	assert.Empty(t, res.Polygons)
	assert.False(t, res.HasBaseline)
	assert.True(t, res.Baseline.Equal(cur))

	cur.Set(2, 1, true)
	assert.False(t, res.Baseline.Equal(cur), "baseline must be a copy")
}

func TestDetect_NewCellBecomesPolygon(t *testing.T) {
	g := grid(4, 4)
	base := mask(t, g, "#... .... .... ....")
	cur := mask(t, g, "#... .... .... ...#")

	res, err := detector(t, 50).Detect(cur, base, march)
	require.NoError(t, err)
	require.Len(t, res.Polygons, 1)
	p := res.Polygons[0]
	assert.Equal(t, "2025_03-00001", p.ID)
	assert.Equal(t, march, p.Period)
	assert.Equal(t, 1, p.Cells)
	assert.InDelta(t, 100, p.AreaM2, 1e-6)
	assert.Equal(t, crs.MagnaOrigenNac, p.Geometry.SRID())

	minX, minY, maxX, maxY := 4880030.0, 2069960.0, 4880040.0, 2069970.0
	b := planar.PolygonsBounds(planar.FromMultiPolygon(p.Geometry))
	assert.Equal(t, planar.Bounds{MinX: minX, MinY: minY, MaxX: maxX, MaxY: maxY}, b)

	assert.True(t, res.Baseline.Equal(mask(t, g, "#... .... .... ...#")))
	assert.Equal(t, 1, res.NewCells)
}

func TestDetect_BaselineIsMonotonic(t *testing.T) {
	g := grid(3, 1)
	base := mask(t, g, "##.")
	cur := mask(t, g, "..#")
	res, err := detector(t, 0).Detect(cur, base, march)
	require.NoError(t, err)
	assert.True(t, res.Baseline.Equal(mask(t, g, "###")))
	require.Len(t, res.Polygons, 1)
}

func TestDetect_DiagonalCellsAreOnePolygon(t *testing.T) {
	g := grid(3, 3)
	base := raster.NewMask(g)
	cur := mask(t, g, "#.. .#. ..#")
	res, err := detector(t, 0).Detect(cur, base, march)
	require.NoError(t, err)
	require.Len(t, res.Polygons, 1)
	mp := res.Polygons[0].Geometry
	assert.Equal(t, 3, mp.NumPolygons())
	assert.Equal(t, 3, res.Polygons[0].Cells)
	assert.InDelta(t, 300, res.Polygons[0].AreaM2, 1e-6)

	_, rep, err := planar.MakeValid(mp)
	require.NoError(t, err)
	assert.False(t, rep.Changed)
}

func TestDetect_SeparateGroups(t *testing.T) {
	g := grid(5, 2)
	base := raster.NewMask(g)
	cur := mask(t, g, "##..# ##..#")
	res, err := detector(t, 0).Detect(cur, base, march)
	require.NoError(t, err)
	require.Len(t, res.Polygons, 2)
	assert.Equal(t, "2025_03-00001", res.Polygons[0].ID)
	assert.Equal(t, "2025_03-00002", res.Polygons[1].ID)
	assert.InDelta(t, 400, res.Polygons[0].AreaM2, 1e-6)
	assert.InDelta(t, 200, res.Polygons[1].AreaM2, 1e-6)
}

func TestDetect_Hole(t *testing.T) {
	g := grid(3, 3)
	cur := mask(t, g, "### #.# ###")
	res, err := detector(t, 0).Detect(cur, raster.NewMask(g), march)
	require.NoError(t, err)
	require.Len(t, res.Polygons, 1)
	polys := planar.FromMultiPolygon(res.Polygons[0].Geometry)
	require.Len(t, polys, 1)
	assert.Len(t, polys[0].Shell, 4, "collinear vertices are dropped")
	require.Len(t, polys[0].Holes, 1)
	assert.InDelta(t, 800, res.Polygons[0].AreaM2, 1e-6)
}

func TestDetect_HoleTouchingOutsideAtCorner(t *testing.T) {
	g := grid(3, 3)
	cur := mask(t, g, ".## #.# ###")
	res, err := detector(t, 0).Detect(cur, raster.NewMask(g), march)
	require.NoError(t, err)
	require.Len(t, res.Polygons, 1)
	assert.InDelta(t, 700, res.Polygons[0].AreaM2, 1e-6)

	fixed, _, err := planar.MakeValid(res.Polygons[0].Geometry)
	require.NoError(t, err)
	assert.InDelta(t, 700, planar.MultiPolygonArea(fixed), 1e-6)
}

func TestDetect_NoiseFiltered(t *testing.T) {
	g := grid(5, 2)
	cur := mask(t, g, "#...# ....#")
	res, err := detector(t, 150).Detect(cur, raster.NewMask(g), march)
	require.NoError(t, err)
	require.Len(t, res.Polygons, 1)
	assert.Equal(t, "2025_03-00002", res.Polygons[0].ID)
	assert.Equal(t, 1, res.NoiseFiltered)
	assert.InDelta(t, 100, res.NoiseFilteredM2, 1e-6)
	assert.Equal(t, 3, res.NewCells)
}

func TestDetect_GridMismatch(t *testing.T) {
	cur := raster.NewMask(grid(3, 3))
	base := raster.NewMask(grid(3, 4))
	_, err := detector(t, 0).Detect(cur, base, march)
	require.Error(t, err)
	assert.ErrorIs(t, err, raster.ErrGridMismatch)
}

func TestDetect_GeographicGridReprojected(t *testing.T) {
	g := raster.Grid{
		Cols: 2, Rows: 1,
		Transform: raster.GeoTransform{OriginX: -74.1, OriginY: 4.6, PixelWidth: 0.0001, PixelHeight: 0.0001},
		SRID:      crs.WGS84,
	}
	cur := raster.NewMask(g)
	cur.Set(1, 0, true)
	res, err := detector(t, 0).Detect(cur, raster.NewMask(g), march)
	require.NoError(t, err)
	require.Len(t, res.Polygons, 1)
	assert.Equal(t, crs.MagnaOrigenNac, res.Polygons[0].Geometry.SRID())
	assert.InDelta(t, 122.5, res.Polygons[0].AreaM2, 2)
}

func TestDetect_Deterministic(t *testing.T) {
	g := grid(6, 4)
	cur := mask(t, g, "##..#. #.#.## ..##.. #....#")
	base := raster.NewMask(g)
	a, err := detector(t, 0).Detect(cur, base, march)
	require.NoError(t, err)
	b, err := detector(t, 0).Detect(cur, base, march)
	require.NoError(t, err)
	require.Equal(t, len(a.Polygons), len(b.Polygons))
	for i := range a.Polygons {
		assert.Equal(t, a.Polygons[i].ID, b.Polygons[i].ID)
		assert.Equal(t, a.Polygons[i].Geometry.FlatCoords(), b.Polygons[i].Geometry.FlatCoords())
	}

	var total float64
	for _, p := range a.Polygons {
		total += p.AreaM2
	}
	assert.InDelta(t, float64(cur.Count())*100, total, 1e-6)
}

func TestLabelComponents(t *testing.T) {
	g := grid(4, 3)
	m := mask(t, g, "#..# .#.# ...#")
	_, n8 := labelComponents(m, Eight)
	_, n4 := labelComponents(m, Four)
	assert.Equal(t, 2, n8)
	assert.Equal(t, 3, n4)

	// A U shape merges two provisional labels in the second row.
	u := mask(t, grid(3, 2), "#.# ###")
	labels, n := labelComponents(u, Four)
	assert.Equal(t, 1, n)
	for i, l := range labels {
		if i != 1 {
			assert.Equal(t, int32(1), l)
		}
	}
}

func TestTraceCells_SingleCell(t *testing.T) {
	in := func(col, row int) bool { return col == 0 && row == 0 }
	polys := traceCells([][2]int{{0, 0}}, in)
	require.Len(t, polys, 1)
	assert.Equal(t, 1.0, polys[0].Shell.SignedArea())
	assert.Empty(t, polys[0].Holes)
}
