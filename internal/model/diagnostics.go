package model

import "time"

// RunStatus is the outcome of a pipeline run.
type RunStatus string

const (
	// RunStatusComplete means every geometry was used.
	RunStatusComplete RunStatus = "complete"
	// RunStatusPartial means some geometries were excluded; statistics cover
	// only the geometries that were kept.
	RunStatusPartial RunStatus = "partial"
)

// ExclusionKind names what was excluded from a run.
type ExclusionKind string

const (
	ExclusionProtectedArea    ExclusionKind = "protected_area"
	ExclusionExpansionPolygon ExclusionKind = "expansion_polygon"
	ExclusionPlanningUnit     ExclusionKind = "planning_unit"
)

// Exclusion records one geometry that could not be repaired.
type Exclusion struct {
	Kind   ExclusionKind `json:"kind"`
	ID     string        `json:"id"`
	Name   string        `json:"name,omitempty"`
	Reason string        `json:"reason"`
}

// Diagnostics is the audit trail of one run.
type Diagnostics struct {
	RunID           string      `json:"run_id"`
	Region          string      `json:"region"`
	Period          Period      `json:"period"`
	Status          RunStatus   `json:"status"`
	WorkingSRID     int         `json:"working_srid"`
	HasBaseline     bool        `json:"has_baseline"`
	BaselinePeriod  *Period     `json:"baseline_period,omitempty"`
	NewCells        int         `json:"new_cells"`
	Polygons        int         `json:"polygons"`
	NoiseFiltered   int         `json:"noise_filtered"`
	NoiseFilteredM2 float64     `json:"noise_filtered_m2"`
	Repaired        int         `json:"repaired"`
	Excluded        []Exclusion `json:"excluded"`
	AreaScaleError  float64     `json:"area_scale_error"`
	StartedAt       time.Time   `json:"started_at"`
	FinishedAt      time.Time   `json:"finished_at"`
}

// Exclude appends an exclusion and downgrades the status to partial.
func (d *Diagnostics) Exclude(e ...Exclusion) {
	if len(e) == 0 {
		return
	}
	d.Excluded = append(d.Excluded, e...)
	d.Status = RunStatusPartial
}
