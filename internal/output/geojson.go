package output

import (
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/urban-sprawl/internal/crs"
	"github.com/sells-group/urban-sprawl/internal/model"
	"github.com/sells-group/urban-sprawl/internal/stats"
)

// expansionCollection renders the expansion polygons. protected marks
// polygons with at least one intersection record; measured polygons also
// carry their area inside and outside the protected union.
func expansionCollection(ds *Dataset, srid int) ([]byte, error) {
	protected := make(map[string]bool, len(ds.Records))
	for _, r := range ds.Records {
		protected[r.PolygonID] = true
	}
	coverage := make(map[string]model.Coverage, len(ds.Coverage))
	for _, c := range ds.Coverage {
		coverage[c.PolygonID] = c
	}
	fc := geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(ds.Polygons))}
	for _, p := range ds.Polygons {
		g, err := project(p.Geometry, srid)
		if err != nil {
			return nil, eris.Wrapf(err, "output: polygon %s", p.ID)
		}
		props := map[string]interface{}{
			"id":        p.ID,
			"period":    p.Period.String(),
			"area_m2":   p.AreaM2,
			"area_ha":   stats.Hectares(p.AreaM2),
			"cells":     p.Cells,
			"protected": protected[p.ID],
		}
		if c, ok := coverage[p.ID]; ok {
			props["protected_m2"] = c.ProtectedM2
			props["unprotected_m2"] = c.UnprotectedM2
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         p.ID,
			Geometry:   g,
			Properties: props,
		})
	}
	return marshal(fc)
}

// intersectionsCollection renders one feature per record, carrying the
// expansion polygon geometry and the overlap attributes.
func intersectionsCollection(ds *Dataset, srid int) ([]byte, error) {
	geoms := make(map[string]*geom.MultiPolygon, len(ds.Polygons))
	for _, p := range ds.Polygons {
		geoms[p.ID] = p.Geometry
	}
	fc := geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(ds.Records))}
	for _, r := range ds.Records {
		src, ok := geoms[r.PolygonID]
		if !ok {
			return nil, eris.Errorf("output: record references unknown polygon %s", r.PolygonID)
		}
		g, err := project(src, srid)
		if err != nil {
			return nil, eris.Wrapf(err, "output: polygon %s", r.PolygonID)
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:       r.PolygonID + "|" + r.ProtectedAreaID,
			Geometry: g,
			Properties: map[string]interface{}{
				"polygon_id":        r.PolygonID,
				"protected_area_id": r.ProtectedAreaID,
				"protected_area":    r.ProtectedAreaName,
				"category":          r.Category.String(),
				"overlap_area_m2":   r.OverlapAreaM2,
				"overlap_area_ha":   stats.Hectares(r.OverlapAreaM2),
				"overlap_fraction":  r.OverlapFraction,
			},
		})
	}
	return marshal(fc)
}

func project(mp *geom.MultiPolygon, srid int) (*geom.MultiPolygon, error) {
	if mp == nil {
		return nil, eris.New("output: nil geometry")
	}
	if srid == 0 || mp.SRID() == srid {
		return mp, nil
	}
	return crs.Reproject(mp, srid)
}

func marshal(fc geojson.FeatureCollection) ([]byte, error) {
	b, err := json.Marshal(&fc)
	if err != nil {
		return nil, eris.Wrap(err, "output: marshal geojson")
	}
	return b, nil
}
