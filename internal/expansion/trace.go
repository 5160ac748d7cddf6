package expansion

import (
	"github.com/sells-group/urban-sprawl/internal/planar"
)

type vertex struct{ x, y int }

type edge struct {
	from   vertex
	dx, dy int
	used   bool
}

func (e *edge) to() vertex { return vertex{e.from.x + e.dx, e.from.y + e.dy} }

// traceCells returns the boundary of a 4-connected set of cells as polygons
// in grid coordinates (x = column, y = row, y down). in reports membership;
// neighbours it rejects are outside the set.
//
// Edges run with the interior on their right, so shells have positive
// shoelace area in grid coordinates and holes negative. At a vertex where the
// set touches itself diagonally the walk turns right first; the resulting
// rings are split at repeated vertices into simple loops.
func traceCells(cells [][2]int, in func(col, row int) bool) []planar.Polygon {
	edges := make([]edge, 0, 4*len(cells))
	for _, c := range cells {
		col, row := c[0], c[1]
		if !in(col, row-1) {
			edges = append(edges, edge{from: vertex{col, row}, dx: 1})
		}
		if !in(col+1, row) {
			edges = append(edges, edge{from: vertex{col + 1, row}, dy: 1})
		}
		if !in(col, row+1) {
			edges = append(edges, edge{from: vertex{col + 1, row + 1}, dx: -1})
		}
		if !in(col-1, row) {
			edges = append(edges, edge{from: vertex{col, row + 1}, dy: -1})
		}
	}
	out := make(map[vertex][]int, len(edges))
	for i := range edges {
		out[edges[i].from] = append(out[edges[i].from], i)
	}

	next := func(at vertex, dx, dy int) int {
		best, rank := -1, 4
		for _, i := range out[at] {
			e := &edges[i]
			if e.used {
				continue
			}
			var r int
			switch {
			case e.dx == -dy && e.dy == dx:
				r = 0 // right turn with y down
			case e.dx == dx && e.dy == dy:
				r = 1
			default:
				r = 2
			}
			if r < rank {
				best, rank = i, r
			}
		}
		return best
	}

	var rings []planar.Ring
	for start := range edges {
		if edges[start].used {
			continue
		}
		var pts []planar.Point
		cur := start
		for cur >= 0 {
			e := &edges[cur]
			e.used = true
			pts = append(pts, planar.Point{X: float64(e.from.x), Y: float64(e.from.y)})
			cur = next(e.to(), e.dx, e.dy)
		}
		for _, loop := range planar.SplitLoops(pts) {
			rings = append(rings, planar.DropCollinear(loop))
		}
	}
	return assemble(rings)
}

// assemble pairs negative rings with the smallest positive ring that holds
// them.
func assemble(rings []planar.Ring) []planar.Polygon {
	var polys []planar.Polygon
	var holes []planar.Ring
	for _, r := range rings {
		if r.SignedArea() > 0 {
			polys = append(polys, planar.Polygon{Shell: r})
		} else {
			holes = append(holes, r)
		}
	}
	if len(polys) == 1 {
		polys[0].Holes = holes
		return polys
	}
	for _, h := range holes {
		pt, ok := planar.RepresentativePoint(planar.Polygon{Shell: h})
		if !ok {
			continue
		}
		owner := -1
		for i, p := range polys {
			if !p.Shell.ContainsPoint(pt) {
				continue
			}
			if owner < 0 || p.Shell.SignedArea() < polys[owner].Shell.SignedArea() {
				owner = i
			}
		}
		if owner >= 0 {
			polys[owner].Holes = append(polys[owner].Holes, h)
		}
	}
	return polys
}
