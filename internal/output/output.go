// Package output writes the per-period dataset: GeoJSON layers, statistics
// tables and the run diagnostics.
package output

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/urban-sprawl/internal/model"
)

// Artifact file names inside <root>/<region>/<YYYY_MM>/.
const (
	ExpansionFile     = "expansion.geojson"
	IntersectionsFile = "intersections.geojson"
	StatisticsFile    = "statistics.csv"
	UnitsFile         = "planning_units.csv"
	WorkbookFile      = "statistics.xlsx"
	DiagnosticsFile   = "diagnostics.json"
)

// Artifacts lists every file a run may produce.
var Artifacts = []string{
	ExpansionFile, IntersectionsFile, StatisticsFile, UnitsFile, WorkbookFile, DiagnosticsFile,
}

// Dataset is everything one run publishes.
type Dataset struct {
	Region         string
	Period         model.Period
	Polygons       []model.ExpansionPolygon
	Records        []model.IntersectionRecord
	Coverage       []model.Coverage
	Statistics     []model.AreaStatistic
	// UnitStatistics is nil when no planning units are configured.
	UnitStatistics []model.UnitStatistic
	Diagnostics    *model.Diagnostics
}

// Sink publishes a dataset. Writing the same region and period twice
// replaces the earlier output.
type Sink interface {
	Write(ctx context.Context, ds *Dataset) error
}

// Multi writes to every sink in order and stops at the first failure.
type Multi []Sink

// Write implements Sink.
func (m Multi) Write(ctx context.Context, ds *Dataset) error {
	for _, s := range m {
		if err := s.Write(ctx, ds); err != nil {
			return err
		}
	}
	return nil
}

func validate(ds *Dataset) error {
	if ds == nil {
		return eris.New("output: nil dataset")
	}
	if ds.Region == "" {
		return eris.New("output: dataset has no region")
	}
	return nil
}
