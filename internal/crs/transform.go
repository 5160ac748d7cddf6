package crs

import (
	"math"

	"github.com/golang/geo/s2"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// earthMeanRadius is the IUGG mean radius, used for geodesic areas.
const earthMeanRadius = 6371008.8

// Transformer converts coordinates from one registered system to another.
type Transformer struct {
	from, to Definition
}

// NewTransformer builds a transformer between two EPSG codes.
func NewTransformer(from, to int) (*Transformer, error) {
	src, err := Lookup(from)
	if err != nil {
		return nil, err
	}
	dst, err := Lookup(to)
	if err != nil {
		return nil, err
	}
	return &Transformer{from: src, to: dst}, nil
}

// Identity reports whether the transform is a no-op.
func (t *Transformer) Identity() bool {
	if t.from.SRID == t.to.SRID {
		return true
	}
	return t.from.Geographic && t.to.Geographic
}

// From returns the source EPSG code.
func (t *Transformer) From() int { return t.from.SRID }

// To returns the target EPSG code.
func (t *Transformer) To() int { return t.to.SRID }

// Point transforms a single x/y (lon/lat for geographic systems).
func (t *Transformer) Point(x, y float64) (float64, float64) {
	if t.Identity() {
		return x, y
	}
	lon, lat := x, y
	if !t.from.Geographic {
		lon, lat = t.from.proj.inverse(x, y)
	}
	if t.to.Geographic {
		return lon, lat
	}
	return t.to.proj.forward(lon, lat)
}

// Flat transforms an XY-strided flat coordinate slice into a new slice.
func (t *Transformer) Flat(flat []float64, stride int) []float64 {
	out := make([]float64, len(flat))
	copy(out, flat)
	if t.Identity() {
		return out
	}
	for i := 0; i+1 < len(out); i += stride {
		out[i], out[i+1] = t.Point(out[i], out[i+1])
	}
	return out
}

// MultiPolygon returns a reprojected copy of mp carrying the target SRID.
func (t *Transformer) MultiPolygon(mp *geom.MultiPolygon) (*geom.MultiPolygon, error) {
	if mp == nil {
		return nil, eris.New("crs: nil geometry")
	}
	if mp.SRID() != 0 && mp.SRID() != t.from.SRID {
		return nil, eris.Errorf("crs: geometry is EPSG:%d, transformer expects EPSG:%d", mp.SRID(), t.from.SRID)
	}
	flat := t.Flat(mp.FlatCoords(), mp.Stride())
	out := geom.NewMultiPolygonFlat(mp.Layout(), flat, cloneEndss(mp.Endss()))
	return out.SetSRID(t.to.SRID), nil
}

func cloneEndss(endss [][]int) [][]int {
	out := make([][]int, len(endss))
	for i, ends := range endss {
		out[i] = append([]int(nil), ends...)
	}
	return out
}

// Reproject converts mp into the target SRID. Geometries without an SRID are
// assumed to already be in the target system.
func Reproject(mp *geom.MultiPolygon, to int) (*geom.MultiPolygon, error) {
	if mp == nil {
		return nil, eris.New("crs: nil geometry")
	}
	from := mp.SRID()
	if from == 0 || from == to {
		return geom.NewMultiPolygonFlat(mp.Layout(), append([]float64(nil), mp.FlatCoords()...), cloneEndss(mp.Endss())).SetSRID(to), nil
	}
	t, err := NewTransformer(from, to)
	if err != nil {
		return nil, err
	}
	return t.MultiPolygon(mp)
}

// GeodesicRingArea returns the area in m² enclosed by a lon/lat ring on the
// sphere. The ring may be open or closed and in either orientation.
func GeodesicRingArea(lonlat [][2]float64) float64 {
	if n := len(lonlat); n > 1 && lonlat[0] == lonlat[n-1] {
		lonlat = lonlat[:n-1]
	}
	if len(lonlat) < 3 {
		return 0
	}
	pts := make([]s2.Point, len(lonlat))
	for i, c := range lonlat {
		pts[i] = s2.PointFromLatLng(s2.LatLngFromDegrees(c[1], c[0]))
	}
	loop := s2.LoopFromPoints(pts)
	loop.Normalize()
	return loop.Area() * earthMeanRadius * earthMeanRadius
}

// ScaleError compares the planar area of a closed ring expressed in srid
// against its geodesic area, returning |planar/geodesic - 1|. It is a sanity
// figure for the choice of working system over the region's extent.
func ScaleError(ring [][2]float64, srid int) (float64, error) {
	if err := RequireProjected(srid); err != nil {
		return 0, err
	}
	t, err := NewTransformer(srid, WGS84)
	if err != nil {
		return 0, err
	}
	lonlat := make([][2]float64, len(ring))
	var twice float64
	for i, c := range ring {
		lon, lat := t.Point(c[0], c[1])
		lonlat[i] = [2]float64{lon, lat}
		next := ring[(i+1)%len(ring)]
		twice += c[0]*next[1] - next[0]*c[1]
	}
	geodesic := GeodesicRingArea(lonlat)
	if geodesic == 0 {
		return 0, nil
	}
	return math.Abs(math.Abs(twice/2)/geodesic - 1), nil
}
