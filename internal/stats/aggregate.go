// Package stats turns polygon and overlap areas into the statistics table.
package stats

import (
	"sort"

	"github.com/sells-group/urban-sprawl/internal/model"
	"github.com/sells-group/urban-sprawl/internal/planar"
)

// SquareMetersPerHectare converts m² to ha.
const SquareMetersPerHectare = 10000

// Hectares converts square metres without rounding.
func Hectares(m2 float64) float64 { return m2 / SquareMetersPerHectare }

type bucket struct {
	sum      planar.Sum
	polygons map[string]struct{}
}

func (b *bucket) add(polygonID string, m2 float64) {
	if b.polygons == nil {
		b.polygons = make(map[string]struct{})
	}
	b.sum.Add(m2)
	b.polygons[polygonID] = struct{}{}
}

// Aggregate returns the total row followed by one row per category present
// in records, in category order. Category rows sum overlap areas
// independently, so a polygon inside two categories contributes to both and
// the category rows may add up to more than the total.
func Aggregate(polygons []model.ExpansionPolygon, records []model.IntersectionRecord, period model.Period) []model.AreaStatistic {
	var total planar.Sum
	for _, p := range polygons {
		total.Add(p.AreaM2)
	}
	rows := []model.AreaStatistic{row(period, model.TotalLabel, total.Value(), len(polygons))}

	byCat := make(map[model.Category]*bucket)
	for _, r := range records {
		b, ok := byCat[r.Category]
		if !ok {
			b = &bucket{}
			byCat[r.Category] = b
		}
		b.add(r.PolygonID, r.OverlapAreaM2)
	}
	for _, c := range model.Categories() {
		if b, ok := byCat[c]; ok {
			rows = append(rows, row(period, c.String(), b.sum.Value(), len(b.polygons)))
		}
	}
	return rows
}

func row(period model.Period, category string, m2 float64, count int) model.AreaStatistic {
	return model.AreaStatistic{
		Period:       period,
		Category:     category,
		AreaM2:       m2,
		AreaHa:       Hectares(m2),
		PolygonCount: count,
	}
}

// Coverage returns the protected_any and unprotected rows. Their areas add
// up to the measured part of the total row; polygons excluded from
// intersection appear in neither.
func Coverage(coverage []model.Coverage, period model.Period) []model.AreaStatistic {
	var in, out bucket
	for _, c := range coverage {
		if c.ProtectedM2 > 0 {
			in.add(c.PolygonID, c.ProtectedM2)
		}
		if c.UnprotectedM2 > 0 {
			out.add(c.PolygonID, c.UnprotectedM2)
		}
	}
	return []model.AreaStatistic{
		row(period, model.ProtectedLabel, in.sum.Value(), len(in.polygons)),
		row(period, model.UnprotectedLabel, out.sum.Value(), len(out.polygons)),
	}
}

// AggregateUnits applies the Aggregate rules inside each planning unit.
// Every unit named in units gets rows even without expansion. Units are
// sorted by name; each starts with its total row, then its categories, then
// its protected_any and unprotected rows.
func AggregateUnits(units []string, shares []model.UnitShare, period model.Period) []model.UnitStatistic {
	type unit struct {
		total, in, out bucket
		cats           map[model.Category]*bucket
	}
	byName := make(map[string]*unit)
	get := func(name string) *unit {
		u, ok := byName[name]
		if !ok {
			u = &unit{cats: make(map[model.Category]*bucket)}
			byName[name] = u
		}
		return u
	}
	for _, name := range units {
		get(name)
	}
	for _, s := range shares {
		u := get(s.Unit)
		if s.Category == nil {
			u.total.add(s.PolygonID, s.AreaM2)
			if s.ProtectedM2 > 0 {
				u.in.add(s.PolygonID, s.ProtectedM2)
			}
			if rest := s.AreaM2 - s.ProtectedM2; rest > 0 {
				u.out.add(s.PolygonID, rest)
			}
			continue
		}
		b, ok := u.cats[*s.Category]
		if !ok {
			b = &bucket{}
			u.cats[*s.Category] = b
		}
		b.add(s.PolygonID, s.AreaM2)
	}

	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([]model.UnitStatistic, 0, 3*len(names))
	for _, name := range names {
		u := byName[name]
		rows = append(rows, unitRow(period, name, model.TotalLabel, &u.total))
		for _, c := range model.Categories() {
			if b, ok := u.cats[c]; ok {
				rows = append(rows, unitRow(period, name, c.String(), b))
			}
		}
		rows = append(rows,
			unitRow(period, name, model.ProtectedLabel, &u.in),
			unitRow(period, name, model.UnprotectedLabel, &u.out),
		)
	}
	return rows
}

func unitRow(period model.Period, unit, category string, b *bucket) model.UnitStatistic {
	m2 := b.sum.Value()
	return model.UnitStatistic{
		Period:       period,
		Unit:         unit,
		Category:     category,
		AreaM2:       m2,
		AreaHa:       Hectares(m2),
		PolygonCount: len(b.polygons),
	}
}
