package model

import (
	"github.com/twpayne/go-geom"
)

// ExpansionPolygon is one contiguous region that became built-up relative to
// the baseline. Geometry is in the run's working CRS.
type ExpansionPolygon struct {
	ID       string            `json:"id"`
	Period   Period            `json:"period"`
	Geometry *geom.MultiPolygon `json:"-"`
	AreaM2   float64           `json:"area_m2"`
	Cells    int               `json:"cells"`
}

// ProtectedArea is one feature of a protected-area layer.
type ProtectedArea struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Category Category          `json:"category"`
	Geometry *geom.MultiPolygon `json:"-"`
}

// SRID returns the spatial reference of the area geometry.
func (a ProtectedArea) SRID() int {
	if a.Geometry == nil {
		return 0
	}
	return a.Geometry.SRID()
}

// PlanningUnit is a local planning unit (UPL) used for the per-unit summary.
type PlanningUnit struct {
	Name     string
	Geometry *geom.MultiPolygon
}

// IntersectionRecord is the non-zero overlap of one expansion polygon with one
// protected area.
type IntersectionRecord struct {
	PolygonID         string   `json:"polygon_id"`
	ProtectedAreaID   string   `json:"protected_area_id"`
	ProtectedAreaName string   `json:"protected_area"`
	Category          Category `json:"category"`
	OverlapAreaM2     float64  `json:"overlap_area_m2"`
	OverlapFraction   float64  `json:"overlap_fraction"`
}

// Coverage splits one expansion polygon into the area inside any protected
// area and the area outside all of them. Overlapping areas count once.
type Coverage struct {
	PolygonID     string  `json:"polygon_id"`
	ProtectedM2   float64 `json:"protected_m2"`
	UnprotectedM2 float64 `json:"unprotected_m2"`
}

// UnitShare is the part of an expansion polygon that falls inside a planning
// unit. A nil Category marks the unrestricted polygon∩unit share, and its
// ProtectedM2 is the part of it inside any protected area. Otherwise the
// share is polygon∩area∩unit for one protected area of that category.
type UnitShare struct {
	PolygonID   string
	Unit        string
	Category    *Category
	AreaM2      float64
	ProtectedM2 float64
}

// AreaStatistic is one row of the statistics table.
type AreaStatistic struct {
	Period       Period  `json:"period" csv:"period"`
	Category     string  `json:"category" csv:"category"`
	AreaM2       float64 `json:"area_m2" csv:"area_m2"`
	AreaHa       float64 `json:"area_ha" csv:"area_ha"`
	PolygonCount int     `json:"polygon_count" csv:"polygon_count"`
}

// UnitStatistic is one row of the planning-unit summary.
type UnitStatistic struct {
	Period       Period  `json:"period" csv:"period"`
	Unit         string  `json:"unit" csv:"unit"`
	Category     string  `json:"category" csv:"category"`
	AreaM2       float64 `json:"area_m2" csv:"area_m2"`
	AreaHa       float64 `json:"area_ha" csv:"area_ha"`
	PolygonCount int     `json:"polygon_count" csv:"polygon_count"`
}
