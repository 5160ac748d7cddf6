package output

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"go.uber.org/zap"

	"github.com/sells-group/urban-sprawl/internal/db"
)

// Table names used by PostGISSink.
const (
	ExpansionTable     = "sprawl_expansion"
	IntersectionsTable = "sprawl_intersections"
	StatisticsTable    = "sprawl_statistics"
)

var (
	expansionColumns     = []string{"region", "period", "polygon_id", "area_m2", "cells", "geom"}
	intersectionsColumns = []string{"region", "period", "polygon_id", "protected_area_id", "protected_area", "category", "overlap_area_m2", "overlap_fraction"}
	statisticsUpsert     = db.UpsertConfig{
		Table:        StatisticsTable,
		Columns:      []string{"region", "period", "category", "area_m2", "area_ha", "polygon_count"},
		ConflictKeys: []string{"region", "period", "category"},
	}
)

const postgisMigration = `
CREATE EXTENSION IF NOT EXISTS postgis;

CREATE TABLE IF NOT EXISTS sprawl_expansion (
	region     TEXT NOT NULL,
	period     TEXT NOT NULL,
	polygon_id TEXT NOT NULL,
	area_m2    DOUBLE PRECISION NOT NULL,
	cells      INTEGER NOT NULL,
	geom       geometry(MultiPolygon) NOT NULL,
	PRIMARY KEY (region, period, polygon_id)
);

CREATE TABLE IF NOT EXISTS sprawl_intersections (
	region            TEXT NOT NULL,
	period            TEXT NOT NULL,
	polygon_id        TEXT NOT NULL,
	protected_area_id TEXT NOT NULL,
	protected_area    TEXT NOT NULL,
	category          TEXT NOT NULL,
	overlap_area_m2   DOUBLE PRECISION NOT NULL,
	overlap_fraction  DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (region, period, polygon_id, protected_area_id)
);

CREATE TABLE IF NOT EXISTS sprawl_statistics (
	region        TEXT NOT NULL,
	period        TEXT NOT NULL,
	category      TEXT NOT NULL,
	area_m2       DOUBLE PRECISION NOT NULL,
	area_ha       DOUBLE PRECISION NOT NULL,
	polygon_count INTEGER NOT NULL,
	PRIMARY KEY (region, period, category)
);

CREATE INDEX IF NOT EXISTS idx_sprawl_expansion_geom ON sprawl_expansion USING GIST (geom);
`

// PostGISSink mirrors the dataset into PostGIS. Geometry stays in the
// working CRS.
type PostGISSink struct {
	Pool db.Pool
}

// Migrate creates the sink tables.
func (s *PostGISSink) Migrate(ctx context.Context) error {
	_, err := s.Pool.Exec(ctx, postgisMigration)
	return eris.Wrap(err, "output: postgis migrate")
}

// Write implements Sink. Rows of the region and period are cleared and
// replaced in one transaction, so a failed write leaves the previous rows.
func (s *PostGISSink) Write(ctx context.Context, ds *Dataset) error {
	if err := validate(ds); err != nil {
		return err
	}
	period := ds.Period.String()

	expansion := make([][]any, 0, len(ds.Polygons))
	for _, p := range ds.Polygons {
		if p.Geometry == nil {
			return eris.Errorf("output: polygon %s has no geometry", p.ID)
		}
		raw, err := ewkb.Marshal(p.Geometry, ewkb.NDR)
		if err != nil {
			return eris.Wrapf(err, "output: encode polygon %s", p.ID)
		}
		expansion = append(expansion, []any{ds.Region, period, p.ID, p.AreaM2, p.Cells, raw})
	}
	intersections := make([][]any, 0, len(ds.Records))
	for _, r := range ds.Records {
		intersections = append(intersections, []any{
			ds.Region, period, r.PolygonID, r.ProtectedAreaID, r.ProtectedAreaName,
			r.Category.String(), r.OverlapAreaM2, r.OverlapFraction,
		})
	}

	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "output: postgis begin")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, table := range []string{IntersectionsTable, ExpansionTable, StatisticsTable} {
		if _, err := tx.Exec(ctx,
			"DELETE FROM "+db.Identifier(table).Sanitize()+" WHERE region = $1 AND period = $2",
			ds.Region, period,
		); err != nil {
			return eris.Wrapf(err, "output: postgis clear %s", table)
		}
	}
	if _, err := db.CopyFrom(ctx, tx, ExpansionTable, expansionColumns, expansion); err != nil {
		return err
	}
	if _, err := db.CopyFrom(ctx, tx, IntersectionsTable, intersectionsColumns, intersections); err != nil {
		return err
	}
	statRows := make([][]any, 0, len(ds.Statistics))
	for _, st := range ds.Statistics {
		statRows = append(statRows, []any{ds.Region, period, st.Category, st.AreaM2, st.AreaHa, st.PolygonCount})
	}
	if _, err := db.UpsertTx(ctx, tx, statisticsUpsert, statRows); err != nil {
		return eris.Wrap(err, "output: postgis statistics")
	}
	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "output: postgis commit")
	}

	zap.L().Info("postgis output written",
		zap.String("component", "output"),
		zap.String("region", ds.Region),
		zap.String("period", period),
		zap.Int("polygons", len(expansion)),
		zap.Int("intersections", len(intersections)),
	)
	return nil
}
