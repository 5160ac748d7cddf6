// Package intersect measures how much of each expansion polygon falls inside
// each protected area and planning unit.
package intersect

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/urban-sprawl/internal/crs"
	"github.com/sells-group/urban-sprawl/internal/model"
	"github.com/sells-group/urban-sprawl/internal/planar"
)

// DefaultEpsilon is the relative overlap below which an intersection counts
// as zero.
const DefaultEpsilon = 1e-9

// Engine intersects expansion polygons with protected areas.
type Engine struct {
	// Epsilon is relative to the expansion polygon area.
	Epsilon float64
	// WorkingSRID is the projected CRS areas are measured in.
	WorkingSRID int
}

// Result is the output of Intersect.
type Result struct {
	Records []model.IntersectionRecord
	// Coverage has one entry per measured polygon, in input order.
	Coverage []model.Coverage
	Excluded []model.Exclusion
	// Repaired counts geometries MakeValid had to change.
	Repaired int
}

// NewEngine returns an engine measuring in workingSRID.
func NewEngine(epsilon float64, workingSRID int) (*Engine, error) {
	if epsilon < 0 {
		return nil, eris.Errorf("intersect: negative epsilon %g", epsilon)
	}
	if err := crs.RequireProjected(workingSRID); err != nil {
		return nil, eris.Wrap(err, "intersect: working CRS")
	}
	return &Engine{Epsilon: epsilon, WorkingSRID: workingSRID}, nil
}

// prepared is a repaired geometry decomposed for area queries.
type prepared struct {
	index int
	polys []planar.Polygon
	d     *planar.Decomposition
}

// prepare reprojects and repairs one geometry.
func (e *Engine) prepare(g *geom.MultiPolygon) ([]planar.Polygon, bool, error) {
	if g == nil {
		return nil, false, eris.Wrap(planar.ErrInvalidGeometry, "missing geometry")
	}
	mp, err := crs.Reproject(g, e.WorkingSRID)
	if err != nil {
		return nil, false, eris.Wrap(err, "reproject")
	}
	fixed, rep, err := planar.MakeValid(mp)
	if err != nil {
		return nil, false, err
	}
	return planar.FromMultiPolygon(fixed), rep.Changed, nil
}

type prepSet struct {
	items    []prepared
	excluded []model.Exclusion
	repaired int
}

func (e *Engine) prepareAll(kind model.ExclusionKind, n int, get func(int) (string, string, *geom.MultiPolygon)) prepSet {
	var set prepSet
	for i := 0; i < n; i++ {
		id, name, g := get(i)
		polys, changed, err := e.prepare(g)
		if err != nil {
			zap.L().With(zap.String("component", "intersect")).Warn("excluding geometry",
				zap.String("kind", string(kind)), zap.String("id", id), zap.Error(err))
			set.excluded = append(set.excluded, model.Exclusion{Kind: kind, ID: id, Name: name, Reason: err.Error()})
			continue
		}
		d := planar.Decompose(polys)
		if d.Empty() {
			set.excluded = append(set.excluded, model.Exclusion{Kind: kind, ID: id, Name: name, Reason: "empty geometry"})
			continue
		}
		if changed {
			set.repaired++
		}
		set.items = append(set.items, prepared{index: i, polys: polys, d: d})
	}
	return set
}

// union decomposes the area covered by any item of the set.
func (s prepSet) union() *planar.Decomposition {
	var polys []planar.Polygon
	for _, it := range s.items {
		polys = append(polys, it.polys...)
	}
	return planar.DecomposeUnion(polys)
}

func (e *Engine) preparePolygons(polygons []model.ExpansionPolygon) prepSet {
	return e.prepareAll(model.ExclusionExpansionPolygon, len(polygons), func(i int) (string, string, *geom.MultiPolygon) {
		return polygons[i].ID, "", polygons[i].Geometry
	})
}

func (e *Engine) prepareAreas(areas []model.ProtectedArea) prepSet {
	return e.prepareAll(model.ExclusionProtectedArea, len(areas), func(i int) (string, string, *geom.MultiPolygon) {
		return areas[i].ID, areas[i].Name, areas[i].Geometry
	})
}

// overlap returns the clamped overlap and whether it clears epsilon.
func (e *Engine) overlap(area, whole float64) (float64, bool) {
	if area <= e.Epsilon*whole || area <= 0 {
		return 0, false
	}
	if area > whole {
		area = whole
	}
	return area, true
}

// split divides a share of area into its parts inside and outside the
// protected union. A part within epsilon of zero folds into the other.
func (e *Engine) split(inAny, share float64) (float64, float64) {
	prot, ok := e.overlap(inAny, share)
	if !ok {
		return 0, share
	}
	if share-prot <= e.Epsilon*share {
		return share, 0
	}
	return prot, share - prot
}

// Intersect tests every polygon against every protected area. Records are
// ordered by polygon then area input order. Coverage measures each polygon
// against the union of the areas, so overlapping areas count once. Geometry
// that cannot be repaired is excluded and reported rather than treated as a
// zero overlap.
func (e *Engine) Intersect(polygons []model.ExpansionPolygon, areas []model.ProtectedArea) *Result {
	ps := e.preparePolygons(polygons)
	as := e.prepareAreas(areas)
	res := &Result{
		Excluded: append(ps.excluded, as.excluded...),
		Repaired: ps.repaired + as.repaired,
	}
	union := as.union()
	for _, p := range ps.items {
		poly := polygons[p.index]
		whole := p.d.Area()
		var inAny float64
		if p.d.Bounds.Overlaps(union.Bounds) {
			inAny = planar.IntersectionArea(p.d, union)
		}
		prot, unprot := e.split(inAny, whole)
		res.Coverage = append(res.Coverage, model.Coverage{PolygonID: poly.ID, ProtectedM2: prot, UnprotectedM2: unprot})
		for _, a := range as.items {
			if !p.d.Bounds.Overlaps(a.d.Bounds) {
				continue
			}
			ov, ok := e.overlap(planar.IntersectionArea(p.d, a.d), whole)
			if !ok {
				continue
			}
			area := areas[a.index]
			res.Records = append(res.Records, model.IntersectionRecord{
				PolygonID:         poly.ID,
				ProtectedAreaID:   area.ID,
				ProtectedAreaName: area.Name,
				Category:          area.Category,
				OverlapAreaM2:     ov,
				OverlapFraction:   ov / whole,
			})
		}
	}
	zap.L().With(zap.String("component", "intersect")).Debug("intersection complete",
		zap.Int("polygons", len(ps.items)), zap.Int("areas", len(as.items)),
		zap.Int("records", len(res.Records)), zap.Int("excluded", len(res.Excluded)))
	return res
}

// Apportionment is the output of Apportion.
type Apportionment struct {
	// Units names the measured planning units in input order.
	Units    []string
	Shares   []model.UnitShare
	Excluded []model.Exclusion
}

// Apportion splits each polygon across planning units: one share for
// polygon∩unit, carrying the part inside any protected area, and one per
// protected area for polygon∩area∩unit. Only planning-unit exclusions are
// reported; polygon and area exclusions are those of Intersect.
func (e *Engine) Apportion(polygons []model.ExpansionPolygon, areas []model.ProtectedArea, units []model.PlanningUnit) *Apportionment {
	ps := e.preparePolygons(polygons)
	as := e.prepareAreas(areas)
	us := e.prepareAll(model.ExclusionPlanningUnit, len(units), func(i int) (string, string, *geom.MultiPolygon) {
		return units[i].Name, units[i].Name, units[i].Geometry
	})
	out := &Apportionment{Excluded: us.excluded}
	for _, u := range us.items {
		out.Units = append(out.Units, units[u.index].Name)
	}
	union := as.union()

	for _, p := range ps.items {
		poly := polygons[p.index]
		whole := p.d.Area()
		for _, u := range us.items {
			if !p.d.Bounds.Overlaps(u.d.Bounds) {
				continue
			}
			inUnit, ok := e.overlap(planar.IntersectionArea(p.d, u.d), whole)
			if !ok {
				continue
			}
			unit := units[u.index].Name
			var inAny float64
			if union.Bounds.Overlaps(p.d.Bounds) && union.Bounds.Overlaps(u.d.Bounds) {
				inAny = planar.TripleIntersectionArea(p.d, union, u.d)
			}
			prot, _ := e.split(inAny, inUnit)
			out.Shares = append(out.Shares, model.UnitShare{PolygonID: poly.ID, Unit: unit, AreaM2: inUnit, ProtectedM2: prot})
			for _, a := range as.items {
				if !a.d.Bounds.Overlaps(p.d.Bounds) || !a.d.Bounds.Overlaps(u.d.Bounds) {
					continue
				}
				ov, ok := e.overlap(planar.TripleIntersectionArea(p.d, a.d, u.d), whole)
				if !ok {
					continue
				}
				if ov > inUnit {
					ov = inUnit
				}
				cat := areas[a.index].Category
				out.Shares = append(out.Shares, model.UnitShare{PolygonID: poly.ID, Unit: unit, Category: &cat, AreaM2: ov})
			}
		}
	}
	return out
}
