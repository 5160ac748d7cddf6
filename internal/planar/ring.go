// Package planar implements the polygon kernel used for area accounting:
// trapezoid decomposition, convex clipping, exact overlap areas and
// geometry repair. Coordinates are planar; callers reproject first.
package planar

import (
	"math"

	"github.com/twpayne/go-geom"
)

// Point is a planar coordinate.
type Point struct {
	X, Y float64
}

// Ring is an open ring: the closing vertex is not repeated.
type Ring []Point

// Polygon is a shell with optional holes.
type Polygon struct {
	Shell Ring
	Holes []Ring
}

// Bounds is an axis-aligned bounding box.
type Bounds struct {
	MinX, MinY, MaxX, MaxY float64
}

// EmptyBounds returns bounds that any point extends.
func EmptyBounds() Bounds {
	return Bounds{MinX: math.Inf(1), MinY: math.Inf(1), MaxX: math.Inf(-1), MaxY: math.Inf(-1)}
}

// Extend grows b to include p.
func (b Bounds) Extend(p Point) Bounds {
	return Bounds{
		MinX: math.Min(b.MinX, p.X),
		MinY: math.Min(b.MinY, p.Y),
		MaxX: math.Max(b.MaxX, p.X),
		MaxY: math.Max(b.MaxY, p.Y),
	}
}

// Union returns the bounds covering b and o.
func (b Bounds) Union(o Bounds) Bounds {
	return Bounds{
		MinX: math.Min(b.MinX, o.MinX),
		MinY: math.Min(b.MinY, o.MinY),
		MaxX: math.Max(b.MaxX, o.MaxX),
		MaxY: math.Max(b.MaxY, o.MaxY),
	}
}

// Overlaps reports whether the interiors of b and o can intersect.
func (b Bounds) Overlaps(o Bounds) bool {
	return b.MinX < o.MaxX && o.MinX < b.MaxX && b.MinY < o.MaxY && o.MinY < b.MaxY
}

// Contains reports whether o lies within b.
func (b Bounds) Contains(o Bounds) bool {
	return o.MinX >= b.MinX && o.MaxX <= b.MaxX && o.MinY >= b.MinY && o.MaxY <= b.MaxY
}

// Bounds returns the bounding box of the ring.
func (r Ring) Bounds() Bounds {
	b := EmptyBounds()
	for _, p := range r {
		b = b.Extend(p)
	}
	return b
}

// SignedArea is positive for counter-clockwise rings.
func (r Ring) SignedArea() float64 {
	n := len(r)
	if n < 3 {
		return 0
	}
	var twice float64
	for i := range r {
		a, b := r[i], r[(i+1)%n]
		twice += a.X*b.Y - b.X*a.Y
	}
	return twice / 2
}

// Reversed returns a copy of r in the opposite orientation.
func (r Ring) Reversed() Ring {
	out := make(Ring, len(r))
	for i, p := range r {
		out[len(r)-1-i] = p
	}
	return out
}

// Oriented returns r counter-clockwise when ccw is true, clockwise otherwise.
func (r Ring) Oriented(ccw bool) Ring {
	if (r.SignedArea() > 0) != ccw {
		return r.Reversed()
	}
	return r
}

// ContainsPoint is an even-odd point-in-ring test. Points on the boundary may
// report either way.
func (r Ring) ContainsPoint(p Point) bool {
	inside := false
	n := len(r)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a, b := r[i], r[j]
		if (a.Y > p.Y) != (b.Y > p.Y) {
			x := a.X + (p.Y-a.Y)*(b.X-a.X)/(b.Y-a.Y)
			if p.X < x {
				inside = !inside
			}
		}
	}
	return inside
}

// Area returns the shell area minus the hole areas.
func (p Polygon) Area() float64 {
	a := math.Abs(p.Shell.SignedArea())
	for _, h := range p.Holes {
		a -= math.Abs(h.SignedArea())
	}
	return a
}

// Rings returns the shell followed by the holes.
func (p Polygon) Rings() []Ring {
	return append([]Ring{p.Shell}, p.Holes...)
}

// ContainsPoint reports whether pt is inside the shell and outside every hole.
func (p Polygon) ContainsPoint(pt Point) bool {
	if !p.Shell.ContainsPoint(pt) {
		return false
	}
	for _, h := range p.Holes {
		if h.ContainsPoint(pt) {
			return false
		}
	}
	return true
}

// Area returns the total area of a set of non-overlapping polygons.
func Area(polys []Polygon) float64 {
	var s Sum
	for _, p := range polys {
		s.Add(p.Area())
	}
	return s.Value()
}

// FromMultiPolygon converts a go-geom geometry into open rings. Closing
// vertices are stripped; no other cleanup is applied.
func FromMultiPolygon(mp *geom.MultiPolygon) []Polygon {
	if mp == nil {
		return nil
	}
	flat := mp.FlatCoords()
	stride := mp.Stride()
	var out []Polygon
	offset := 0
	for _, ends := range mp.Endss() {
		var poly Polygon
		for i, end := range ends {
			ring := make(Ring, 0, (end-offset)/stride)
			for k := offset; k+1 < end; k += stride {
				ring = append(ring, Point{X: flat[k], Y: flat[k+1]})
			}
			offset = end
			if n := len(ring); n > 1 && ring[0] == ring[n-1] {
				ring = ring[:n-1]
			}
			if i == 0 {
				poly.Shell = ring
			} else {
				poly.Holes = append(poly.Holes, ring)
			}
		}
		if len(ends) > 0 {
			out = append(out, poly)
		}
	}
	return out
}

// ToMultiPolygon builds a closed-ring go-geom geometry with counter-clockwise
// shells and clockwise holes.
func ToMultiPolygon(polys []Polygon, srid int) *geom.MultiPolygon {
	var flat []float64
	endss := make([][]int, 0, len(polys))
	for _, p := range polys {
		var ends []int
		for i, r := range p.Rings() {
			r = r.Oriented(i == 0)
			for _, pt := range r {
				flat = append(flat, pt.X, pt.Y)
			}
			if len(r) > 0 {
				flat = append(flat, r[0].X, r[0].Y)
			}
			ends = append(ends, len(flat))
		}
		endss = append(endss, ends)
	}
	return geom.NewMultiPolygonFlat(geom.XY, flat, endss).SetSRID(srid)
}

// MultiPolygonArea is the area of a go-geom geometry with holes subtracted.
func MultiPolygonArea(mp *geom.MultiPolygon) float64 {
	return Area(FromMultiPolygon(mp))
}

// PolygonsBounds returns the bounding box of every shell.
func PolygonsBounds(polys []Polygon) Bounds {
	b := EmptyBounds()
	for _, p := range polys {
		b = b.Union(p.Shell.Bounds())
	}
	return b
}

// Sum is a Neumaier compensated accumulator.
type Sum struct {
	sum, c float64
}

// Add accumulates v.
func (s *Sum) Add(v float64) {
	t := s.sum + v
	if math.Abs(s.sum) >= math.Abs(v) {
		s.c += (s.sum - t) + v
	} else {
		s.c += (v - t) + s.sum
	}
	s.sum = t
}

// Value returns the compensated total.
func (s *Sum) Value() float64 { return s.sum + s.c }
