package expansion

import "github.com/sells-group/urban-sprawl/internal/raster"

// Connectivity selects the neighbourhood used to group cells.
type Connectivity int

const (
	// Four joins cells sharing an edge.
	Four Connectivity = 4
	// Eight also joins cells sharing only a corner.
	Eight Connectivity = 8
)

// unionFind is a disjoint-set forest over provisional labels.
type unionFind struct {
	parent []int32
}

func (u *unionFind) newSet() int32 {
	id := int32(len(u.parent))
	u.parent = append(u.parent, id)
	return id
}

func (u *unionFind) find(x int32) int32 {
	root := x
	for u.parent[root] != root {
		root = u.parent[root]
	}
	for u.parent[x] != root {
		next := u.parent[x]
		u.parent[x] = root
		x = next
	}
	return root
}

func (u *unionFind) union(a, b int32) int32 {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return ra
	}
	if rb < ra {
		ra, rb = rb, ra
	}
	u.parent[rb] = ra
	return ra
}

// labelComponents runs two-pass connected-component labelling. Set cells get
// ids 1..n numbered by the scan order of each component's first cell; unset
// cells get 0.
func labelComponents(m *raster.Mask, conn Connectivity) ([]int32, int) {
	g := m.Grid
	labels := make([]int32, g.Len())
	uf := &unionFind{parent: []int32{0}}

	for row := 0; row < g.Rows; row++ {
		for col := 0; col < g.Cols; col++ {
			if !m.Get(col, row) {
				continue
			}
			var cur int32
			join := func(c, r int) {
				if !m.Get(c, r) {
					return
				}
				l := labels[g.Index(c, r)]
				if cur == 0 {
					cur = l
					return
				}
				cur = uf.union(cur, l)
			}
			join(col-1, row)
			join(col, row-1)
			if conn == Eight {
				join(col-1, row-1)
				join(col+1, row-1)
			}
			if cur == 0 {
				cur = uf.newSet()
			}
			labels[g.Index(col, row)] = cur
		}
	}

	compact := make(map[int32]int32)
	n := 0
	for i, l := range labels {
		if l == 0 {
			continue
		}
		root := uf.find(l)
		id, ok := compact[root]
		if !ok {
			n++
			id = int32(n)
			compact[root] = id
		}
		labels[i] = id
	}
	return labels, n
}
