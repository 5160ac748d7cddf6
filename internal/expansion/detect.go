// Package expansion finds cells that became built-up since the baseline and
// turns each connected group into a polygon.
package expansion

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/urban-sprawl/internal/crs"
	"github.com/sells-group/urban-sprawl/internal/model"
	"github.com/sells-group/urban-sprawl/internal/planar"
	"github.com/sells-group/urban-sprawl/internal/raster"
)

// Detector compares a period's built-up mask with the baseline.
type Detector struct {
	// MinAreaM2 discards polygons smaller than this, measured in the
	// working CRS.
	MinAreaM2 float64
	// WorkingSRID is the projected CRS polygons are emitted in.
	WorkingSRID int
}

// Result is the output of one detection.
type Result struct {
	Polygons []model.ExpansionPolygon
	// Baseline is the mask to persist for the period: current OR previous.
	Baseline        *raster.Mask
	HasBaseline     bool
	NewCells        int
	NoiseFiltered   int
	NoiseFilteredM2 float64
}

// NewDetector validates the working CRS.
func NewDetector(minAreaM2 float64, workingSRID int) (*Detector, error) {
	if minAreaM2 < 0 {
		return nil, eris.Errorf("expansion: negative minimum area %g", minAreaM2)
	}
	if err := crs.RequireProjected(workingSRID); err != nil {
		return nil, eris.Wrap(err, "expansion: working CRS")
	}
	return &Detector{MinAreaM2: minAreaM2, WorkingSRID: workingSRID}, nil
}

// Detect returns the polygons of cells set in current and unset in
// baseline. With no baseline the expansion set is empty and current becomes
// the baseline. Mismatched grids fail with raster.ErrGridMismatch.
func (d *Detector) Detect(current, baseline *raster.Mask, period model.Period) (*Result, error) {
	if current == nil {
		return nil, eris.New("expansion: nil current mask")
	}
	if baseline == nil {
		return &Result{Baseline: current.Clone()}, nil
	}
	if err := current.Grid.Compatible(baseline.Grid); err != nil {
		return nil, eris.Wrap(err, "expansion: baseline")
	}

	fresh, err := current.AndNot(baseline)
	if err != nil {
		return nil, err
	}
	next, err := current.Or(baseline)
	if err != nil {
		return nil, err
	}
	res := &Result{Baseline: next, HasBaseline: true, NewCells: fresh.Count()}
	if res.NewCells == 0 {
		return res, nil
	}

	var tr *crs.Transformer
	if fresh.Grid.SRID != d.WorkingSRID {
		if tr, err = crs.NewTransformer(fresh.Grid.SRID, d.WorkingSRID); err != nil {
			return nil, eris.Wrap(err, "expansion: raster CRS")
		}
	}

	for _, comp := range components(fresh) {
		mp, err := d.polygon(fresh, comp, tr)
		if err != nil {
			return nil, err
		}
		area := planar.MultiPolygonArea(mp)
		if area < d.MinAreaM2 {
			res.NoiseFiltered++
			res.NoiseFilteredM2 += area
			continue
		}
		res.Polygons = append(res.Polygons, model.ExpansionPolygon{
			ID:       fmt.Sprintf("%s-%05d", period.Key(), comp.ordinal),
			Period:   period,
			Geometry: mp,
			AreaM2:   area,
			Cells:    comp.cells,
		})
	}
	return res, nil
}

// component is one 8-connected group split into its 4-connected pieces.
type component struct {
	ordinal int
	cells   int
	pieces  [][][2]int
}

func components(m *raster.Mask) []component {
	g := m.Grid
	eight, n8 := labelComponents(m, Eight)
	four, n4 := labelComponents(m, Four)

	comps := make([]component, n8)
	pieceOf := make([]int, n4+1)
	for i := range pieceOf {
		pieceOf[i] = -1
	}
	for row := 0; row < g.Rows; row++ {
		for col := 0; col < g.Cols; col++ {
			i := g.Index(col, row)
			l8 := eight[i]
			if l8 == 0 {
				continue
			}
			c := &comps[l8-1]
			c.ordinal = int(l8)
			c.cells++
			l4 := four[i]
			if pieceOf[l4] < 0 {
				pieceOf[l4] = len(c.pieces)
				c.pieces = append(c.pieces, nil)
			}
			c.pieces[pieceOf[l4]] = append(c.pieces[pieceOf[l4]], [2]int{col, row})
		}
	}
	return comps
}

// polygon traces a component and maps it to the working CRS. A cell's
// 4-neighbours in m always belong to its own piece, so m answers membership
// for every piece.
func (d *Detector) polygon(m *raster.Mask, comp component, tr *crs.Transformer) (*geom.MultiPolygon, error) {
	g := m.Grid
	var polys []planar.Polygon
	for _, piece := range comp.pieces {
		for _, p := range traceCells(piece, m.Get) {
			polys = append(polys, toMap(g, p))
		}
	}
	mp := planar.ToMultiPolygon(polys, g.SRID)
	if tr == nil {
		return mp, nil
	}
	out, err := tr.MultiPolygon(mp)
	if err != nil {
		return nil, eris.Wrap(err, "expansion: reproject polygon")
	}
	return out, nil
}

func toMap(g raster.Grid, p planar.Polygon) planar.Polygon {
	conv := func(r planar.Ring) planar.Ring {
		out := make(planar.Ring, len(r))
		for i, pt := range r {
			x, y := g.Corner(int(pt.X), int(pt.Y))
			out[i] = planar.Point{X: x, Y: y}
		}
		return out
	}
	q := planar.Polygon{Shell: conv(p.Shell)}
	for _, h := range p.Holes {
		q.Holes = append(q.Holes, conv(h))
	}
	return q
}
