// Package raster holds the classification raster, the built-up mask derived
// from it and their on-disk encodings.
package raster

import (
	"math"

	"github.com/rotisserie/eris"
)

// ErrGridMismatch is returned when two rasters do not share dimensions,
// geotransform and SRID.
var ErrGridMismatch = eris.New("raster: grid mismatch")

// GeoTransform is a north-up affine transform: cell (col, row) has its
// upper-left corner at (OriginX + col*PixelWidth, OriginY - row*PixelHeight).
type GeoTransform struct {
	OriginX     float64 `json:"origin_x"`
	OriginY     float64 `json:"origin_y"`
	PixelWidth  float64 `json:"pixel_width"`
	PixelHeight float64 `json:"pixel_height"`
}

// Grid is the shape and georeference shared by a raster and its masks.
type Grid struct {
	Cols      int          `json:"cols"`
	Rows      int          `json:"rows"`
	Transform GeoTransform `json:"transform"`
	SRID      int          `json:"srid"`
}

// Validate checks that the grid is usable.
func (g Grid) Validate() error {
	if g.Cols <= 0 || g.Rows <= 0 {
		return eris.Errorf("raster: invalid grid size %dx%d", g.Cols, g.Rows)
	}
	if !(g.Transform.PixelWidth > 0) || !(g.Transform.PixelHeight > 0) {
		return eris.Errorf("raster: pixel size must be positive, got %gx%g",
			g.Transform.PixelWidth, g.Transform.PixelHeight)
	}
	if g.SRID <= 0 {
		return eris.New("raster: grid has no SRID")
	}
	return nil
}

// Len is the number of cells.
func (g Grid) Len() int { return g.Cols * g.Rows }

// Index returns the row-major offset of a cell.
func (g Grid) Index(col, row int) int { return row*g.Cols + col }

// Corner returns the map coordinate of the upper-left corner of (col, row).
// col == Cols and row == Rows address the far edges.
func (g Grid) Corner(col, row int) (x, y float64) {
	return g.Transform.OriginX + float64(col)*g.Transform.PixelWidth,
		g.Transform.OriginY - float64(row)*g.Transform.PixelHeight
}

// Extent returns the bounding box of the grid in map units.
func (g Grid) Extent() (minX, minY, maxX, maxY float64) {
	minX, maxY = g.Corner(0, 0)
	maxX, minY = g.Corner(g.Cols, g.Rows)
	return minX, minY, maxX, maxY
}

// Compatible returns ErrGridMismatch, wrapped with the first difference,
// unless g and o describe the same cells.
func (g Grid) Compatible(o Grid) error {
	switch {
	case g.Cols != o.Cols || g.Rows != o.Rows:
		return eris.Wrapf(ErrGridMismatch, "size %dx%d vs %dx%d", g.Cols, g.Rows, o.Cols, o.Rows)
	case g.SRID != o.SRID:
		return eris.Wrapf(ErrGridMismatch, "EPSG:%d vs EPSG:%d", g.SRID, o.SRID)
	case !near(g.Transform.PixelWidth, o.Transform.PixelWidth) || !near(g.Transform.PixelHeight, o.Transform.PixelHeight):
		return eris.Wrapf(ErrGridMismatch, "pixel size %gx%g vs %gx%g",
			g.Transform.PixelWidth, g.Transform.PixelHeight, o.Transform.PixelWidth, o.Transform.PixelHeight)
	case !nearOrigin(g.Transform.OriginX, o.Transform.OriginX, g.Transform.PixelWidth) ||
		!nearOrigin(g.Transform.OriginY, o.Transform.OriginY, g.Transform.PixelHeight):
		return eris.Wrapf(ErrGridMismatch, "origin (%g, %g) vs (%g, %g)",
			g.Transform.OriginX, g.Transform.OriginY, o.Transform.OriginX, o.Transform.OriginY)
	}
	return nil
}

func near(a, b float64) bool {
	return math.Abs(a-b) <= 1e-9*math.Max(math.Abs(a), math.Abs(b))
}

// nearOrigin allows a millionth of a pixel of drift from text round trips.
func nearOrigin(a, b, pixel float64) bool {
	return math.Abs(a-b) <= 1e-6*pixel
}

// Label is a land-cover class value.
type Label uint8

// ClassificationRaster is a grid of land-cover labels. It is read-only once
// built.
type ClassificationRaster struct {
	Grid   Grid
	Labels []Label
	// NoData marks cells without a valid observation.
	NoData *Label
}

// NewClassificationRaster validates grid and labels.
func NewClassificationRaster(grid Grid, labels []Label, noData *Label) (*ClassificationRaster, error) {
	if err := grid.Validate(); err != nil {
		return nil, err
	}
	if len(labels) != grid.Len() {
		return nil, eris.Errorf("raster: %d labels for a %dx%d grid", len(labels), grid.Cols, grid.Rows)
	}
	return &ClassificationRaster{Grid: grid, Labels: labels, NoData: noData}, nil
}

// At returns the label of a cell.
func (r *ClassificationRaster) At(col, row int) Label {
	return r.Labels[r.Grid.Index(col, row)]
}

// IsNoData reports whether l is the raster's NoData label.
func (r *ClassificationRaster) IsNoData(l Label) bool {
	return r.NoData != nil && *r.NoData == l
}

// Mask is a boolean grid, true where a cell is built-up.
type Mask struct {
	Grid  Grid
	cells []bool
}

// NewMask returns an all-false mask for grid.
func NewMask(grid Grid) *Mask {
	return &Mask{Grid: grid, cells: make([]bool, grid.Len())}
}

// Get reports whether a cell is set. Cells outside the grid are unset.
func (m *Mask) Get(col, row int) bool {
	if col < 0 || row < 0 || col >= m.Grid.Cols || row >= m.Grid.Rows {
		return false
	}
	return m.cells[m.Grid.Index(col, row)]
}

// Set assigns a cell.
func (m *Mask) Set(col, row int, v bool) {
	m.cells[m.Grid.Index(col, row)] = v
}

// Count returns the number of set cells.
func (m *Mask) Count() int {
	n := 0
	for _, c := range m.cells {
		if c {
			n++
		}
	}
	return n
}

// Clone returns an independent copy.
func (m *Mask) Clone() *Mask {
	return &Mask{Grid: m.Grid, cells: append([]bool(nil), m.cells...)}
}

// Equal reports whether both masks share a grid and every cell.
func (m *Mask) Equal(o *Mask) bool {
	if m == nil || o == nil {
		return m == o
	}
	if m.Grid.Compatible(o.Grid) != nil {
		return false
	}
	for i, c := range m.cells {
		if o.cells[i] != c {
			return false
		}
	}
	return true
}

// Or returns the cell-wise union of m and o.
func (m *Mask) Or(o *Mask) (*Mask, error) {
	if err := m.Grid.Compatible(o.Grid); err != nil {
		return nil, err
	}
	out := m.Clone()
	for i, c := range o.cells {
		if c {
			out.cells[i] = true
		}
	}
	return out, nil
}

// AndNot returns cells set in m and unset in o.
func (m *Mask) AndNot(o *Mask) (*Mask, error) {
	if err := m.Grid.Compatible(o.Grid); err != nil {
		return nil, err
	}
	out := NewMask(m.Grid)
	for i, c := range m.cells {
		out.cells[i] = c && !o.cells[i]
	}
	return out, nil
}
