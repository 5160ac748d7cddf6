// Package crs reprojects coordinates between the handful of reference systems
// the region's inputs arrive in. Only datums that coincide with WGS84 at the
// sub-metre level are supported, so no datum shift is applied.
package crs

import (
	"math"

	"github.com/rotisserie/eris"
)

// Supported EPSG codes.
const (
	WGS84              = 4326
	MagnaSirgas        = 4686
	WebMercator        = 3857
	MagnaBogota        = 3116
	MagnaOrigenNac     = 9377
	UTM18N             = 32618
	DefaultWorkingSRID = MagnaOrigenNac
)

// ErrUnsupported is returned for an EPSG code not in the registry.
var ErrUnsupported = eris.New("crs: unsupported reference system")

// ErrGeographicArea is returned when an area is requested in degrees.
var ErrGeographicArea = eris.New("crs: area requested in a geographic reference system")

type ellipsoid struct {
	a  float64 // semi-major axis (m)
	f  float64 // flattening
	e2 float64
}

func newEllipsoid(a, invF float64) ellipsoid {
	f := 1 / invF
	return ellipsoid{a: a, f: f, e2: f * (2 - f)}
}

var (
	grs80     = newEllipsoid(6378137, 298.257222101)
	wgs84Ellp = newEllipsoid(6378137, 298.257223563)
)

// projection maps geographic degrees to projected metres and back.
type projection interface {
	forward(lon, lat float64) (x, y float64)
	inverse(x, y float64) (lon, lat float64)
}

// Definition describes one registered reference system.
type Definition struct {
	SRID       int
	Name       string
	Geographic bool
	proj       projection
}

var registry = map[int]Definition{
	WGS84:       {SRID: WGS84, Name: "WGS 84", Geographic: true},
	MagnaSirgas: {SRID: MagnaSirgas, Name: "MAGNA-SIRGAS", Geographic: true},
	WebMercator: {SRID: WebMercator, Name: "WGS 84 / Pseudo-Mercator", proj: webMercator{r: 6378137}},
	MagnaBogota: {
		SRID: MagnaBogota,
		Name: "MAGNA-SIRGAS / Colombia Bogota zone",
		proj: newTransverseMercator(grs80, 4.596200416666666, -74.07750791666666, 1, 1000000, 1000000),
	},
	MagnaOrigenNac: {
		SRID: MagnaOrigenNac,
		Name: "MAGNA-SIRGAS / Origen-Nacional",
		proj: newTransverseMercator(grs80, 4, -73, 0.9992, 5000000, 2000000),
	},
	UTM18N: {
		SRID: UTM18N,
		Name: "WGS 84 / UTM zone 18N",
		proj: newTransverseMercator(wgs84Ellp, 0, -75, 0.9996, 500000, 0),
	},
}

// Lookup returns the definition for an EPSG code.
func Lookup(srid int) (Definition, error) {
	def, ok := registry[srid]
	if !ok {
		return Definition{}, eris.Wrapf(ErrUnsupported, "crs: EPSG:%d", srid)
	}
	return def, nil
}

// IsGeographic reports whether srid is a registered degree-based system.
func IsGeographic(srid int) bool {
	def, ok := registry[srid]
	return ok && def.Geographic
}

// RequireProjected fails with ErrGeographicArea unless srid is a registered
// projected system.
func RequireProjected(srid int) error {
	def, err := Lookup(srid)
	if err != nil {
		return err
	}
	if def.Geographic {
		return eris.Wrapf(ErrGeographicArea, "crs: EPSG:%d", srid)
	}
	return nil
}

func toRad(d float64) float64 { return d * math.Pi / 180 }
func toDeg(r float64) float64 { return r * 180 / math.Pi }
