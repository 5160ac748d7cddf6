// Package layers loads protected-area and planning-unit geometry from
// GeoJSON, shapefiles or PostGIS and reprojects it to the working CRS.
package layers

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/urban-sprawl/internal/crs"
	"github.com/sells-group/urban-sprawl/internal/model"
)

// Layer formats.
const (
	FormatGeoJSON   = "geojson"
	FormatShapefile = "shapefile"
	FormatPostGIS   = "postgis"
)

// DefaultNameField is the attribute holding a feature's name when a layer
// does not configure one.
const DefaultNameField = "NOMBRE"

// Spec describes one configured layer.
type Spec struct {
	Name     string `mapstructure:"name" yaml:"name"`
	Category string `mapstructure:"category" yaml:"category"`
	// Path is a file path, or schema.table for PostGIS.
	Path      string `mapstructure:"path" yaml:"path"`
	Format    string `mapstructure:"format" yaml:"format"`
	SRID      int    `mapstructure:"srid" yaml:"srid"`
	NameField string `mapstructure:"name_field" yaml:"name_field"`
}

// ResolvedFormat returns Format, or one inferred from the path extension.
func (s Spec) ResolvedFormat() string {
	if s.Format != "" {
		return strings.ToLower(s.Format)
	}
	switch strings.ToLower(filepath.Ext(s.Path)) {
	case ".geojson", ".json":
		return FormatGeoJSON
	case ".shp":
		return FormatShapefile
	}
	return ""
}

func (s Spec) nameField() string {
	if s.NameField != "" {
		return s.NameField
	}
	return DefaultNameField
}

// Feature is one polygonal feature as read, in its source CRS.
type Feature struct {
	Name     string
	Geometry *geom.MultiPolygon
}

// Reader reads the features of a layer.
type Reader interface {
	Read(ctx context.Context, spec Spec) ([]Feature, error)
}

// Set is everything a run intersects against.
type Set struct {
	Areas []model.ProtectedArea
	Units []model.PlanningUnit
}

// Loader reads configured layers concurrently and reprojects them.
type Loader struct {
	WorkingSRID int
	Readers     map[string]Reader
}

// NewLoader registers the file readers. PostGIS is added with
// WithPostGIS when a pool is available.
func NewLoader(workingSRID int) *Loader {
	fs := FileSource{}
	return &Loader{
		WorkingSRID: workingSRID,
		Readers: map[string]Reader{
			FormatGeoJSON:   fs,
			FormatShapefile: fs,
		},
	}
}

// WithPostGIS registers a PostGIS reader.
func (l *Loader) WithPostGIS(src *PostGISSource) *Loader {
	l.Readers[FormatPostGIS] = src
	return l
}

// Load reads every area layer and the optional unit layer. Categories with
// no layer simply contribute no areas.
func (l *Loader) Load(ctx context.Context, areas []Spec, units *Spec) (*Set, error) {
	log := zap.L().With(zap.String("component", "layers"))

	specs := append([]Spec(nil), areas...)
	if units != nil {
		specs = append(specs, *units)
	}
	cats := make([]model.Category, len(areas))
	for i, s := range areas {
		c, err := model.ParseCategory(s.Category)
		if err != nil {
			return nil, eris.Wrapf(err, "layers: layer %q", s.Name)
		}
		cats[i] = c
	}

	results := make([][]Feature, len(specs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, s := range specs {
		r, ok := l.Readers[s.ResolvedFormat()]
		if !ok {
			return nil, eris.Errorf("layers: layer %q: unsupported format %q", s.Name, s.ResolvedFormat())
		}
		g.Go(func() error {
			feats, err := r.Read(gctx, s)
			if err != nil {
				return eris.Wrapf(err, "layers: read %q", s.Name)
			}
			results[i] = feats
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	set := &Set{}
	ids := make(map[string]int)
	for i, s := range areas {
		for j, f := range results[i] {
			mp, err := l.project(f.Geometry)
			if err != nil {
				return nil, eris.Wrapf(err, "layers: reproject %q feature %d", s.Name, j)
			}
			name := f.Name
			if name == "" {
				name = s.Name + " " + strconv.Itoa(j+1)
			}
			set.Areas = append(set.Areas, model.ProtectedArea{
				ID:       uniqueID(ids, strings.ToLower(cats[i].String())+"/"+Slug(name)),
				Name:     name,
				Category: cats[i],
				Geometry: mp,
			})
		}
		log.Info("layer loaded", zap.String("layer", s.Name),
			zap.String("category", cats[i].String()), zap.Int("features", len(results[i])))
	}
	if units != nil {
		for j, f := range results[len(areas)] {
			if f.Name == "" {
				return nil, eris.Errorf("layers: unit %d of %q has no %s", j, units.Name, units.nameField())
			}
			mp, err := l.project(f.Geometry)
			if err != nil {
				return nil, eris.Wrapf(err, "layers: reproject unit %q", f.Name)
			}
			set.Units = append(set.Units, model.PlanningUnit{Name: f.Name, Geometry: mp})
		}
		log.Info("units loaded", zap.String("layer", units.Name), zap.Int("units", len(set.Units)))
	}
	return set, nil
}

func (l *Loader) project(mp *geom.MultiPolygon) (*geom.MultiPolygon, error) {
	if l.WorkingSRID == 0 || mp.SRID() == l.WorkingSRID {
		return mp, nil
	}
	return crs.Reproject(mp, l.WorkingSRID)
}

func uniqueID(seen map[string]int, id string) string {
	seen[id]++
	if n := seen[id]; n > 1 {
		return id + "-" + strconv.Itoa(n)
	}
	return id
}

// Slug lowercases s, strips accents and joins words with hyphens:
// "Páramo de Sumapaz" becomes "paramo-de-sumapaz".
func Slug(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	plain, _, err := transform.String(t, s)
	if err != nil {
		plain = s
	}
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(plain) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	out := strings.TrimSuffix(b.String(), "-")
	if out == "" {
		return "unnamed"
	}
	return out
}
