package planar

import "math"

func cross(o, a, b Point) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}

// ClipConvex clips subject against a counter-clockwise convex window using
// Sutherland–Hodgman. The subject may be concave; the returned ring then has
// the right area but may contain degenerate bridges.
func ClipConvex(subject, window []Point) []Point {
	out := subject
	n := len(window)
	for i := 0; i < n && len(out) > 0; i++ {
		a, b := window[i], window[(i+1)%n]
		in := out
		out = make([]Point, 0, len(in)+2)
		for j := range in {
			cur, prev := in[j], in[(j+len(in)-1)%len(in)]
			curIn := cross(a, b, cur) >= 0
			prevIn := cross(a, b, prev) >= 0
			if curIn {
				if !prevIn {
					out = append(out, lineIntersection(prev, cur, a, b))
				}
				out = append(out, cur)
			} else if prevIn {
				out = append(out, lineIntersection(prev, cur, a, b))
			}
		}
	}
	return out
}

// lineIntersection intersects segment p→q with the infinite line a→b. The
// caller guarantees p and q are on opposite sides.
func lineIntersection(p, q, a, b Point) Point {
	cp := cross(a, b, p)
	cq := cross(a, b, q)
	t := cp / (cp - cq)
	return Point{X: p.X + t*(q.X-p.X), Y: p.Y + t*(q.Y-p.Y)}
}

// convexArea is the unsigned shoelace area.
func convexArea(pts []Point) float64 {
	return math.Abs(Ring(pts).SignedArea())
}

// trapOverlap is the exact area shared by two trapezoids.
func trapOverlap(a, b Trapezoid) float64 {
	y0 := math.Max(a.Y0, b.Y0)
	y1 := math.Min(a.Y1, b.Y1)
	if y1 <= y0 {
		return 0
	}
	ab, bb := a.Bounds(), b.Bounds()
	if !ab.Overlaps(bb) {
		return 0
	}
	if a.Rect() && b.Rect() {
		x0 := math.Max(a.XL0, b.XL0)
		x1 := math.Min(a.XR0, b.XR0)
		if x1 <= x0 {
			return 0
		}
		return (x1 - x0) * (y1 - y0)
	}
	return convexArea(ClipConvex(a.Convex(), b.Convex()))
}

// IntersectionArea returns the area of the overlap of two decompositions.
func IntersectionArea(a, b *Decomposition) float64 {
	if a.Empty() || b.Empty() || !a.Bounds.Overlaps(b.Bounds) {
		return 0
	}
	// Iterate the smaller set and search the larger.
	if len(a.Traps) > len(b.Traps) {
		a, b = b, a
	}
	var s Sum
	for _, ta := range a.Traps {
		tb0 := ta.Bounds()
		lo, hi := b.overlapping(ta.Y0, ta.Y1)
		for _, tb := range b.Traps[lo:hi] {
			if !tb0.Overlaps(tb.Bounds()) {
				continue
			}
			s.Add(trapOverlap(ta, tb))
		}
	}
	return s.Value()
}

// TripleIntersectionArea returns the area common to a, b and c.
func TripleIntersectionArea(a, b, c *Decomposition) float64 {
	if a.Empty() || b.Empty() || c.Empty() {
		return 0
	}
	if !a.Bounds.Overlaps(b.Bounds) || !a.Bounds.Overlaps(c.Bounds) || !b.Bounds.Overlaps(c.Bounds) {
		return 0
	}
	var s Sum
	for _, ta := range a.Traps {
		ba := ta.Bounds()
		lo, hi := b.overlapping(ta.Y0, ta.Y1)
		for _, tb := range b.Traps[lo:hi] {
			if !ba.Overlaps(tb.Bounds()) {
				continue
			}
			piece := ClipConvex(ta.Convex(), tb.Convex())
			if len(piece) < 3 || convexArea(piece) == 0 {
				continue
			}
			pb := Ring(piece).Bounds()
			clo, chi := c.overlapping(pb.MinY, pb.MaxY)
			for _, tc := range c.Traps[clo:chi] {
				if !pb.Overlaps(tc.Bounds()) {
					continue
				}
				s.Add(convexArea(ClipConvex(piece, tc.Convex())))
			}
		}
	}
	return s.Value()
}
