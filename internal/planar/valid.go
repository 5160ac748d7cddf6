package planar

import (
	"fmt"
	"math"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// ErrInvalidGeometry marks a geometry that cannot be repaired unambiguously.
var ErrInvalidGeometry = eris.New("planar: invalid geometry")

// Repair describes what MakeValid changed.
type Repair struct {
	Changed bool
	Notes   []string
}

func (r *Repair) note(format string, args ...any) {
	r.Changed = true
	r.Notes = append(r.Notes, fmt.Sprintf(format, args...))
}

func invalid(format string, args ...any) error {
	return eris.Wrapf(ErrInvalidGeometry, format, args...)
}

// MakeValid returns a geometry whose parts are simple, non-overlapping
// polygons with holes inside their shells. Repeated vertices, spikes and
// degenerate rings are dropped, self-crossing rings are split into their
// loops and holes entirely outside their shell are removed. Geometry that
// needs a guess to fix (overlapping parts, holes crossing shells, nested
// loops of one ring) is rejected with ErrInvalidGeometry.
func MakeValid(mp *geom.MultiPolygon) (*geom.MultiPolygon, Repair, error) {
	var rep Repair
	if mp == nil {
		return nil, rep, invalid("nil geometry")
	}
	for _, v := range mp.FlatCoords() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, rep, invalid("non-finite coordinate")
		}
	}
	polys, err := RepairPolygons(FromMultiPolygon(mp), &rep)
	if err != nil {
		return nil, rep, err
	}
	return ToMultiPolygon(polys, mp.SRID()), rep, nil
}

// RepairPolygons is MakeValid on open rings.
func RepairPolygons(polys []Polygon, rep *Repair) ([]Polygon, error) {
	var out []Polygon
	for pi, p := range polys {
		shell, trimmed := dedupeRing(p.Shell)
		if trimmed {
			rep.note("part %d: removed repeated vertices", pi)
		}
		pieces, changed, err := splitRing(shell)
		if err != nil {
			return nil, eris.Wrapf(err, "part %d shell", pi)
		}
		if len(pieces) == 0 {
			rep.note("part %d: dropped degenerate shell", pi)
			continue
		}
		if changed {
			rep.note("part %d: split self-intersecting shell into %d parts", pi, len(pieces))
		}

		var holes []Ring
		for hi, h := range p.Holes {
			h, trimmed := dedupeRing(h)
			if trimmed {
				rep.note("part %d hole %d: removed repeated vertices", pi, hi)
			}
			loops, changed, err := splitRing(h)
			if err != nil {
				return nil, eris.Wrapf(err, "part %d hole %d", pi, hi)
			}
			if len(loops) == 0 {
				rep.note("part %d hole %d: dropped degenerate hole", pi, hi)
				continue
			}
			for _, l := range loops {
				if len(l.Holes) > 0 {
					return nil, invalid("part %d hole %d: nested loops", pi, hi)
				}
				holes = append(holes, l.Shell)
			}
			if changed {
				rep.note("part %d hole %d: split self-intersecting hole into %d", pi, hi, len(loops))
			}
		}
		if len(holes) == 0 {
			out = append(out, pieces...)
			continue
		}

		var segs []segment
		for i, piece := range pieces {
			segs = append(segs, ringSegments(piece.Shell, i)...)
		}
		for i, h := range holes {
			segs = append(segs, ringSegments(h, len(pieces)+i)...)
		}
		if hits := crossings(segs, true); len(hits) > 0 {
			return nil, invalid("part %d: hole crosses shell", pi)
		}

		for hi, h := range holes {
			pt, ok := RepresentativePoint(Polygon{Shell: h})
			if !ok {
				continue
			}
			owner := -1
			for i, piece := range pieces {
				if piece.Shell.ContainsPoint(pt) {
					owner = i
					break
				}
			}
			if owner < 0 {
				rep.note("part %d: dropped hole %d outside its shell", pi, hi)
				continue
			}
			pieces[owner].Holes = append(pieces[owner].Holes, h)
		}
		out = append(out, pieces...)
	}

	if len(out) == 0 {
		return nil, invalid("empty geometry")
	}
	if err := checkOverlap(out); err != nil {
		return nil, err
	}
	return out, nil
}

// RepresentativePoint returns a point strictly inside p: the centroid of the
// largest trapezoid of its decomposition.
func RepresentativePoint(p Polygon) (Point, bool) {
	d := Decompose([]Polygon{p})
	if d.Empty() {
		return Point{}, false
	}
	best := 0
	for i, t := range d.Traps {
		if t.Area() > d.Traps[best].Area() {
			best = i
		}
	}
	return d.Traps[best].Centroid(), true
}

func checkOverlap(polys []Polygon) error {
	if len(polys) < 2 {
		return nil
	}
	var segs []segment
	for i, p := range polys {
		for _, r := range p.Rings() {
			segs = append(segs, ringSegments(r, i)...)
		}
	}
	for _, h := range crossings(segs, false) {
		a, b := segs[h.s].ring, segs[h.t].ring
		if a != b {
			return invalid("parts %d and %d overlap", a, b)
		}
		return invalid("part %d: holes cross", a)
	}

	bounds := make([]Bounds, len(polys))
	reps := make([]Point, len(polys))
	ok := make([]bool, len(polys))
	for i, p := range polys {
		bounds[i] = p.Shell.Bounds()
		reps[i], ok[i] = RepresentativePoint(p)
	}
	for i := range polys {
		if !ok[i] {
			continue
		}
		for j := range polys {
			if i == j || !bounds[j].Overlaps(bounds[i]) {
				continue
			}
			if polys[j].ContainsPoint(reps[i]) {
				return invalid("parts %d and %d overlap", i, j)
			}
		}
	}

	// Parts overlapping along collinear edges have no proper crossing and
	// may keep their representative points outside each other. Under the
	// even-odd rule the shared area cancels, so the whole comes out smaller
	// than the sum of its parts.
	var parts Sum
	for _, p := range polys {
		parts.Add(Decompose([]Polygon{p}).Area())
	}
	sum := parts.Value()
	if sum-Decompose(polys).Area() > partsTolerance*sum {
		return invalid("parts overlap along collinear edges")
	}
	return nil
}

// partsTolerance is the relative area difference checkOverlap allows between
// a multipolygon and the sum of its parts.
const partsTolerance = 1e-7

// dedupeRing drops consecutive repeated vertices, including across the seam.
func dedupeRing(r Ring) (Ring, bool) {
	out := make(Ring, 0, len(r))
	for _, p := range r {
		if len(out) > 0 && out[len(out)-1] == p {
			continue
		}
		out = append(out, p)
	}
	for len(out) > 1 && out[0] == out[len(out)-1] {
		out = out[:len(out)-1]
	}
	return out, len(out) != len(r)
}

// splitRing cuts r at its self-crossings and repeated vertices. Loops that lie
// inside an opposite-facing loop become holes of it; all other nesting is
// rejected.
func splitRing(r Ring) ([]Polygon, bool, error) {
	segs := ringSegments(r, 0)
	hits := crossings(segs, false)
	pts := insertCrossings(r, hits)
	loops := SplitLoops(pts)
	if len(loops) == 1 && len(hits) == 0 && len(loops[0]) == len(r) {
		return []Polygon{{Shell: loops[0]}}, false, nil
	}

	type loop struct {
		ring   Ring
		area   float64
		rep    Point
		parent int
	}
	ls := make([]loop, 0, len(loops))
	for _, l := range loops {
		pt, ok := RepresentativePoint(Polygon{Shell: l})
		if !ok {
			continue
		}
		ls = append(ls, loop{ring: l, area: l.SignedArea(), rep: pt, parent: -1})
	}
	sort.SliceStable(ls, func(i, j int) bool { return math.Abs(ls[i].area) > math.Abs(ls[j].area) })

	var out []Polygon
	index := make(map[int]int)
	for i := range ls {
		for j := i - 1; j >= 0; j-- {
			if ls[j].ring.ContainsPoint(ls[i].rep) {
				ls[i].parent = j
				break
			}
		}
		switch p := ls[i].parent; {
		case p < 0:
			index[i] = len(out)
			out = append(out, Polygon{Shell: ls[i].ring})
		case ls[p].parent < 0 && (ls[p].area > 0) != (ls[i].area > 0):
			k := index[p]
			out[k].Holes = append(out[k].Holes, ls[i].ring)
		default:
			return nil, true, invalid("nested loops")
		}
	}
	return out, true, nil
}

// SplitLoops walks a closed vertex sequence and emits a loop each time a
// vertex repeats. Loops with no area are discarded.
func SplitLoops(pts []Point) []Ring {
	var loops []Ring
	stack := make([]Point, 0, len(pts))
	seen := make(map[Point]int, len(pts))
	emit := func(l []Point) {
		if len(l) >= 3 && Ring(l).SignedArea() != 0 {
			loops = append(loops, append(Ring(nil), l...))
		}
	}
	for _, p := range pts {
		if i, ok := seen[p]; ok {
			emit(stack[i:])
			for _, q := range stack[i+1:] {
				delete(seen, q)
			}
			stack = stack[:i+1]
			continue
		}
		seen[p] = len(stack)
		stack = append(stack, p)
	}
	emit(stack)
	return loops
}

type segment struct {
	a, b Point
	ring int
	idx  int
}

type hit struct {
	s, t   int
	at     Point
	ps, pt float64
}

func ringSegments(r Ring, ring int) []segment {
	n := len(r)
	segs := make([]segment, 0, n)
	for i := range r {
		segs = append(segs, segment{a: r[i], b: r[(i+1)%n], ring: ring, idx: i})
	}
	return segs
}

// properCrossing reports whether s and t cross at a point interior to both.
func properCrossing(s, t segment) (Point, float64, float64, bool) {
	d1 := cross(t.a, t.b, s.a)
	d2 := cross(t.a, t.b, s.b)
	if !(d1 < 0 && d2 > 0 || d1 > 0 && d2 < 0) {
		return Point{}, 0, 0, false
	}
	d3 := cross(s.a, s.b, t.a)
	d4 := cross(s.a, s.b, t.b)
	if !(d3 < 0 && d4 > 0 || d3 > 0 && d4 < 0) {
		return Point{}, 0, 0, false
	}
	ps := d1 / (d1 - d2)
	pt := d3 / (d3 - d4)
	at := Point{X: s.a.X + ps*(s.b.X-s.a.X), Y: s.a.Y + ps*(s.b.Y-s.a.Y)}
	return at, ps, pt, true
}

// crossings finds every proper crossing between segments with a sweep over
// x. With first set it stops at the first hit.
func crossings(segs []segment, first bool) []hit {
	order := make([]int, len(segs))
	for i := range order {
		order[i] = i
	}
	minX := func(s segment) float64 { return math.Min(s.a.X, s.b.X) }
	sort.Slice(order, func(i, j int) bool { return minX(segs[order[i]]) < minX(segs[order[j]]) })

	var hits []hit
	for oi, i := range order {
		si := segs[i]
		maxX := math.Max(si.a.X, si.b.X)
		loY, hiY := math.Min(si.a.Y, si.b.Y), math.Max(si.a.Y, si.b.Y)
		for _, j := range order[oi+1:] {
			sj := segs[j]
			if minX(sj) > maxX {
				break
			}
			if math.Max(sj.a.Y, sj.b.Y) < loY || math.Min(sj.a.Y, sj.b.Y) > hiY {
				continue
			}
			at, ps, pt, ok := properCrossing(si, sj)
			if !ok {
				continue
			}
			hits = append(hits, hit{s: i, t: j, at: at, ps: ps, pt: pt})
			if first {
				return hits
			}
		}
	}
	return hits
}

// insertCrossings rebuilds r with every crossing point added to both of the
// segments it lies on. Both insertions share the same value so the loop walk
// matches them exactly.
func insertCrossings(r Ring, hits []hit) []Point {
	if len(hits) == 0 {
		return append([]Point(nil), r...)
	}
	type cut struct {
		param float64
		at    Point
	}
	cuts := make(map[int][]cut)
	for _, h := range hits {
		cuts[h.s] = append(cuts[h.s], cut{param: h.ps, at: h.at})
		cuts[h.t] = append(cuts[h.t], cut{param: h.pt, at: h.at})
	}
	out := make([]Point, 0, len(r)+2*len(hits))
	for i, p := range r {
		out = append(out, p)
		cs := cuts[i]
		sort.Slice(cs, func(a, b int) bool { return cs[a].param < cs[b].param })
		for _, c := range cs {
			if c.at != out[len(out)-1] {
				out = append(out, c.at)
			}
		}
	}
	return out
}

// DropCollinear removes vertices that lie on the straight line through their
// neighbours.
func DropCollinear(r Ring) Ring {
	if len(r) < 4 {
		return r
	}
	out := make(Ring, 0, len(r))
	n := len(r)
	for i, p := range r {
		prev, next := r[(i+n-1)%n], r[(i+1)%n]
		if cross(prev, p, next) == 0 {
			continue
		}
		out = append(out, p)
	}
	return out
}
