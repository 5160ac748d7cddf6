package layers

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/sells-group/urban-sprawl/internal/crs"
	"github.com/sells-group/urban-sprawl/internal/planar"
)

// FileSource reads GeoJSON feature collections and polygon shapefiles.
type FileSource struct{}

// Read implements Reader.
func (FileSource) Read(ctx context.Context, spec Spec) ([]Feature, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch spec.ResolvedFormat() {
	case FormatGeoJSON:
		return readGeoJSON(spec)
	case FormatShapefile:
		return readShapefile(spec)
	}
	return nil, eris.Errorf("layers: file source cannot read format %q", spec.ResolvedFormat())
}

// readGeoJSON reads a FeatureCollection. Coordinates are EPSG:4326 unless the
// layer configures another SRID.
func readGeoJSON(spec Spec) ([]Feature, error) {
	data, err := os.ReadFile(spec.Path)
	if err != nil {
		return nil, eris.Wrapf(err, "layers: read %s", spec.Path)
	}
	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrapf(err, "layers: parse geojson %s", spec.Path)
	}
	srid := spec.SRID
	if srid == 0 {
		srid = crs.WGS84
	}

	var out []Feature
	skipped := 0
	for _, f := range fc.Features {
		mp := asMultiPolygon(f.Geometry)
		if mp == nil {
			skipped++
			continue
		}
		out = append(out, Feature{
			Name:     property(f.Properties, spec.nameField()),
			Geometry: mp.SetSRID(srid),
		})
	}
	if skipped > 0 {
		zap.L().Debug("layers: skipped non-polygon features",
			zap.String("path", spec.Path), zap.Int("skipped", skipped))
	}
	return out, nil
}

func asMultiPolygon(g geom.T) *geom.MultiPolygon {
	switch g := g.(type) {
	case *geom.MultiPolygon:
		return geom.NewMultiPolygonFlat(geom.XY, xyFlat(g.FlatCoords(), g.Stride()), xyEndss(g.Endss(), g.Stride()))
	case *geom.Polygon:
		return geom.NewMultiPolygonFlat(geom.XY, xyFlat(g.FlatCoords(), g.Stride()), [][]int{xyEnds(g.Ends(), g.Stride())})
	}
	return nil
}

// xyFlat drops Z and M ordinates.
func xyFlat(flat []float64, stride int) []float64 {
	out := make([]float64, 0, len(flat)/stride*2)
	for i := 0; i+1 < len(flat); i += stride {
		out = append(out, flat[i], flat[i+1])
	}
	return out
}

func xyEnds(ends []int, stride int) []int {
	out := make([]int, len(ends))
	for i, e := range ends {
		out[i] = e / stride * 2
	}
	return out
}

func xyEndss(endss [][]int, stride int) [][]int {
	out := make([][]int, len(endss))
	for i, ends := range endss {
		out[i] = xyEnds(ends, stride)
	}
	return out
}

// property looks a key up case-insensitively.
func property(props map[string]interface{}, key string) string {
	if v, ok := props[key]; ok && v != nil {
		return strings.TrimSpace(fmt.Sprint(v))
	}
	for k, v := range props {
		if strings.EqualFold(k, key) && v != nil {
			return strings.TrimSpace(fmt.Sprint(v))
		}
	}
	return ""
}

// readShapefile reads polygon records. Shapefiles carry no usable CRS here,
// so the layer must configure one.
func readShapefile(spec Spec) ([]Feature, error) {
	if spec.SRID == 0 {
		return nil, eris.Errorf("layers: shapefile %s needs an srid", spec.Path)
	}
	reader, err := shp.Open(spec.Path)
	if err != nil {
		return nil, eris.Wrapf(err, "layers: open shapefile %s", spec.Path)
	}
	defer func() { _ = reader.Close() }()

	nameIdx := -1
	for i, f := range reader.Fields() {
		name := strings.TrimRight(f.String(), "\x00")
		if strings.EqualFold(name, spec.nameField()) {
			nameIdx = i
		}
	}

	var out []Feature
	skipped := 0
	for reader.Next() {
		_, shape := reader.Shape()
		mp := shapeToMultiPolygon(shape, spec.SRID)
		if mp == nil {
			skipped++
			continue
		}
		var name string
		if nameIdx >= 0 {
			name = strings.TrimSpace(strings.TrimRight(reader.Attribute(nameIdx), "\x00"))
		}
		out = append(out, Feature{Name: name, Geometry: mp})
	}
	if skipped > 0 {
		zap.L().Debug("layers: skipped shapefile records",
			zap.String("path", spec.Path), zap.Int("skipped", skipped))
	}
	return out, nil
}

// shapeToMultiPolygon converts a shapefile polygon. Returns nil for other
// shape types and empty records.
func shapeToMultiPolygon(shape shp.Shape, srid int) *geom.MultiPolygon {
	var (
		parts  []int32
		points []shp.Point
	)
	switch s := shape.(type) {
	case *shp.Polygon:
		parts, points = s.Parts, s.Points
	case *shp.PolygonZ:
		parts, points = s.Parts, s.Points
	case *shp.PolygonM:
		parts, points = s.Parts, s.Points
	default:
		return nil
	}
	if len(parts) == 0 || len(points) == 0 {
		return nil
	}

	rings := make([]planar.Ring, 0, len(parts))
	for i, start := range parts {
		end := int32(len(points))
		if i+1 < len(parts) {
			end = parts[i+1]
		}
		if start < 0 || end > int32(len(points)) || start >= end {
			continue
		}
		ring := make(planar.Ring, 0, end-start)
		for _, p := range points[start:end] {
			ring = append(ring, planar.Point{X: p.X, Y: p.Y})
		}
		if n := len(ring); n > 1 && ring[0] == ring[n-1] {
			ring = ring[:n-1]
		}
		rings = append(rings, ring)
	}
	polys := assignRings(rings)
	if len(polys) == 0 {
		return nil
	}
	return planar.ToMultiPolygon(polys, srid)
}

// assignRings groups shapefile rings into polygons. Outer rings are
// clockwise; each counter-clockwise ring is a hole of the smallest outer ring
// containing it. Files with no clockwise ring are read as all shells.
func assignRings(rings []planar.Ring) []planar.Polygon {
	var shells, holes []planar.Ring
	for _, r := range rings {
		switch a := r.SignedArea(); {
		case a < 0:
			shells = append(shells, r)
		case a > 0:
			holes = append(holes, r)
		}
	}
	if len(shells) == 0 {
		shells, holes = holes, nil
	}

	polys := make([]planar.Polygon, len(shells))
	for i, s := range shells {
		polys[i].Shell = s
	}
	for _, h := range holes {
		pt, ok := planar.RepresentativePoint(planar.Polygon{Shell: h})
		best, bestArea := -1, math.Inf(1)
		if ok {
			for i, s := range shells {
				if a := math.Abs(s.SignedArea()); a < bestArea && s.ContainsPoint(pt) {
					best, bestArea = i, a
				}
			}
		}
		if best < 0 {
			polys = append(polys, planar.Polygon{Shell: h})
			continue
		}
		polys[best].Holes = append(polys[best].Holes, h)
	}
	return polys
}
