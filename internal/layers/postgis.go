package layers

import (
	"context"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/sells-group/urban-sprawl/internal/db"
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// PostGISSource reads polygon layers from PostGIS tables. Spec.Path names the
// table; only tables listed in Allowed are queried.
type PostGISSource struct {
	Pool db.Pool
	// Allowed lists the tables the source may read.
	Allowed map[string]bool
	// GeomColumn defaults to "geom".
	GeomColumn string
}

// NewPostGISSource allows exactly the given tables.
func NewPostGISSource(pool db.Pool, tables ...string) *PostGISSource {
	allowed := make(map[string]bool, len(tables))
	for _, t := range tables {
		allowed[t] = true
	}
	return &PostGISSource{Pool: pool, Allowed: allowed, GeomColumn: "geom"}
}

// Query returns the statement used for spec.
func (s *PostGISSource) Query(spec Spec) (string, error) {
	if !tableName.MatchString(spec.Path) || !s.Allowed[spec.Path] {
		return "", eris.Errorf("layers: table %q is not allowed", spec.Path)
	}
	geomCol := s.GeomColumn
	if geomCol == "" {
		geomCol = "geom"
	}
	return fmt.Sprintf(
		"SELECT COALESCE(%s::text, ''), ST_AsEWKB(ST_Multi(%s)) FROM %s WHERE %s IS NOT NULL ORDER BY 1",
		pgx.Identifier{spec.nameField()}.Sanitize(),
		pgx.Identifier{geomCol}.Sanitize(),
		db.Identifier(spec.Path).Sanitize(),
		pgx.Identifier{geomCol}.Sanitize(),
	), nil
}

// Read implements Reader.
func (s *PostGISSource) Read(ctx context.Context, spec Spec) ([]Feature, error) {
	q, err := s.Query(spec)
	if err != nil {
		return nil, err
	}
	rows, err := s.Pool.Query(ctx, q)
	if err != nil {
		return nil, eris.Wrapf(err, "layers: query %s", spec.Path)
	}
	defer rows.Close()

	var out []Feature
	for rows.Next() {
		var (
			name string
			raw  []byte
		)
		if err := rows.Scan(&name, &raw); err != nil {
			return nil, eris.Wrapf(err, "layers: scan %s", spec.Path)
		}
		g, err := ewkb.Unmarshal(raw)
		if err != nil {
			return nil, eris.Wrapf(err, "layers: decode ewkb from %s", spec.Path)
		}
		mp := asMultiPolygon(g)
		if mp == nil {
			continue
		}
		srid := g.SRID()
		if srid == 0 {
			srid = spec.SRID
		}
		out = append(out, Feature{Name: name, Geometry: mp.SetSRID(srid)})
	}
	return out, eris.Wrapf(rows.Err(), "layers: rows %s", spec.Path)
}
