package planar

import (
	"math"
	"sort"
)

// Trapezoid is a convex piece bounded by two horizontal lines and two
// non-crossing edges. Triangles have XL == XR on one side.
type Trapezoid struct {
	Y0, Y1   float64
	XL0, XR0 float64 // left/right x at Y0
	XL1, XR1 float64 // left/right x at Y1
}

// Area of the trapezoid.
func (t Trapezoid) Area() float64 {
	return ((t.XR0 - t.XL0) + (t.XR1 - t.XL1)) / 2 * (t.Y1 - t.Y0)
}

// Bounds of the trapezoid.
func (t Trapezoid) Bounds() Bounds {
	return Bounds{
		MinX: math.Min(t.XL0, t.XL1),
		MinY: t.Y0,
		MaxX: math.Max(t.XR0, t.XR1),
		MaxY: t.Y1,
	}
}

// Rect reports whether the trapezoid is an axis-aligned rectangle.
func (t Trapezoid) Rect() bool {
	return t.XL0 == t.XL1 && t.XR0 == t.XR1
}

// Convex returns the counter-clockwise vertex list.
func (t Trapezoid) Convex() []Point {
	pts := make([]Point, 0, 4)
	pts = append(pts, Point{t.XL0, t.Y0})
	if t.XR0 != t.XL0 {
		pts = append(pts, Point{t.XR0, t.Y0})
	}
	pts = append(pts, Point{t.XR1, t.Y1})
	if t.XL1 != t.XR1 {
		pts = append(pts, Point{t.XL1, t.Y1})
	}
	return pts
}

// Centroid returns a point strictly inside a non-degenerate trapezoid.
func (t Trapezoid) Centroid() Point {
	return Point{
		X: (t.XL0 + t.XR0 + t.XL1 + t.XR1) / 4,
		Y: (t.Y0 + t.Y1) / 2,
	}
}

// Decomposition is a polygon set split into interior-disjoint trapezoids,
// ordered by slab.
type Decomposition struct {
	Traps  []Trapezoid
	Bounds Bounds
	area   float64
}

// Area is the total area of the decomposition.
func (d *Decomposition) Area() float64 { return d.area }

// Empty reports whether the decomposition covers no area.
func (d *Decomposition) Empty() bool { return d == nil || len(d.Traps) == 0 }

type sweepEdge struct {
	ylo, yhi float64
	xlo, xhi float64
	// dir is +1 for an edge walked upwards and -1 downwards.
	dir int
}

func (e sweepEdge) xAt(y float64) float64 {
	switch y {
	case e.ylo:
		return e.xlo
	case e.yhi:
		return e.xhi
	}
	return e.xlo + (y-e.ylo)*(e.xhi-e.xlo)/(e.yhi-e.ylo)
}

// Decompose splits a set of valid polygons into trapezoids using a y-slab
// sweep and the even-odd rule. Polygons must not self-intersect; shells and
// holes may touch at vertices.
func Decompose(polys []Polygon) *Decomposition {
	return sweep(polys, false)
}

// DecomposeUnion splits the union of polygons that may overlap or cross one
// another into interior-disjoint trapezoids. Each polygon must be valid on
// its own. Coverage uses the nonzero winding rule, so a point covered by
// several polygons counts once.
func DecomposeUnion(polys []Polygon) *Decomposition {
	return sweep(polys, true)
}

func sweep(polys []Polygon, union bool) *Decomposition {
	var (
		edges []sweepEdge
		ys    []float64
		segs  []segment
	)
	for pi, p := range polys {
		for ri, r := range p.Rings() {
			n := len(r)
			if n < 3 {
				continue
			}
			if union {
				r = r.Oriented(ri == 0)
				segs = append(segs, ringSegments(r, pi)...)
			}
			for i := range r {
				a, b := r[i], r[(i+1)%n]
				ys = append(ys, a.Y)
				if a.Y == b.Y {
					continue
				}
				dir := 1
				if a.Y > b.Y {
					a, b = b, a
					dir = -1
				}
				edges = append(edges, sweepEdge{ylo: a.Y, yhi: b.Y, xlo: a.X, xhi: b.X, dir: dir})
			}
		}
	}

	d := &Decomposition{Bounds: EmptyBounds()}
	if len(edges) == 0 {
		return d
	}
	if union {
		// Edges of different polygons may cross inside a slab; split there.
		for _, h := range crossings(segs, false) {
			ys = append(ys, h.at.Y)
		}
	}

	sort.Float64s(ys)
	ys = dedupe(ys)
	sort.Slice(edges, func(i, j int) bool { return edges[i].ylo < edges[j].ylo })

	type crossing struct {
		x0, x1, xm float64
		dir        int
	}
	var (
		active []sweepEdge
		xs     []crossing
		next   int
		total  Sum
	)
	emit := func(y0, y1 float64, l, r crossing) {
		t := Trapezoid{Y0: y0, Y1: y1, XL0: l.x0, XR0: r.x0, XL1: l.x1, XR1: r.x1}
		a := t.Area()
		if a <= 0 {
			return
		}
		d.Traps = append(d.Traps, t)
		d.Bounds = d.Bounds.Union(t.Bounds())
		total.Add(a)
	}
	for k := 0; k+1 < len(ys); k++ {
		y0, y1 := ys[k], ys[k+1]

		kept := active[:0]
		for _, e := range active {
			if e.yhi > y0 {
				kept = append(kept, e)
			}
		}
		active = kept
		for next < len(edges) && edges[next].ylo <= y0 {
			if edges[next].yhi > y0 {
				active = append(active, edges[next])
			}
			next++
		}
		if len(active) < 2 {
			continue
		}

		xs = xs[:0]
		for _, e := range active {
			x0, x1 := e.xAt(y0), e.xAt(y1)
			xs = append(xs, crossing{x0: x0, x1: x1, xm: (x0 + x1) / 2, dir: e.dir})
		}
		sort.Slice(xs, func(i, j int) bool {
			if xs[i].xm != xs[j].xm {
				return xs[i].xm < xs[j].xm
			}
			return xs[i].x0 < xs[j].x0
		})
		if !union {
			for i := 0; i+1 < len(xs); i += 2 {
				emit(y0, y1, xs[i], xs[i+1])
			}
			continue
		}
		winding, start := 0, 0
		for i, c := range xs {
			if winding == 0 {
				start = i
			}
			winding += c.dir
			if winding == 0 {
				emit(y0, y1, xs[start], c)
			}
		}
	}
	d.area = total.Value()
	return d
}

func dedupe(sorted []float64) []float64 {
	if len(sorted) == 0 {
		return sorted
	}
	out := sorted[:1]
	for _, v := range sorted[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}

// overlapping returns the index range of traps whose slab intersects
// (y0, y1). Traps are ordered by slab so both Y0 and Y1 are non-decreasing.
func (d *Decomposition) overlapping(y0, y1 float64) (int, int) {
	lo := sort.Search(len(d.Traps), func(i int) bool { return d.Traps[i].Y1 > y0 })
	hi := lo
	for hi < len(d.Traps) && d.Traps[hi].Y0 < y1 {
		hi++
	}
	return lo, hi
}
