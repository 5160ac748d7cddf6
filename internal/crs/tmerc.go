package crs

import "math"

// transverseMercator implements the ellipsoidal series of Snyder, USGS
// Professional Paper 1395 (1987), pp. 60-64. Accuracy is millimetric within a
// few degrees of the central meridian, which covers every zone registered here.
type transverseMercator struct {
	ell            ellipsoid
	lat0, lon0     float64 // radians
	k0             float64
	falseE, falseN float64
	ep2            float64
	m0             float64
}

func newTransverseMercator(ell ellipsoid, lat0, lon0, k0, falseE, falseN float64) *transverseMercator {
	tm := &transverseMercator{
		ell:    ell,
		lat0:   toRad(lat0),
		lon0:   toRad(lon0),
		k0:     k0,
		falseE: falseE,
		falseN: falseN,
		ep2:    ell.e2 / (1 - ell.e2),
	}
	tm.m0 = tm.meridianArc(tm.lat0)
	return tm
}

// meridianArc is the distance along the meridian from the equator to phi.
func (tm *transverseMercator) meridianArc(phi float64) float64 {
	e2 := tm.ell.e2
	e4 := e2 * e2
	e6 := e4 * e2
	return tm.ell.a * ((1-e2/4-3*e4/64-5*e6/256)*phi -
		(3*e2/8+3*e4/32+45*e6/1024)*math.Sin(2*phi) +
		(15*e4/256+45*e6/1024)*math.Sin(4*phi) -
		(35*e6/3072)*math.Sin(6*phi))
}

func (tm *transverseMercator) forward(lon, lat float64) (float64, float64) {
	phi := toRad(lat)
	lam := toRad(lon)
	e2 := tm.ell.e2

	sinPhi, cosPhi := math.Sincos(phi)
	tanPhi := math.Tan(phi)
	n := tm.ell.a / math.Sqrt(1-e2*sinPhi*sinPhi)
	t := tanPhi * tanPhi
	c := tm.ep2 * cosPhi * cosPhi
	a := (lam - tm.lon0) * cosPhi
	m := tm.meridianArc(phi)

	a2 := a * a
	a3 := a2 * a
	a4 := a3 * a
	a5 := a4 * a
	a6 := a5 * a

	x := tm.k0*n*(a+(1-t+c)*a3/6+(5-18*t+t*t+72*c-58*tm.ep2)*a5/120) + tm.falseE
	y := tm.k0*(m-tm.m0+n*tanPhi*(a2/2+(5-t+9*c+4*c*c)*a4/24+(61-58*t+t*t+600*c-330*tm.ep2)*a6/720)) + tm.falseN
	return x, y
}

func (tm *transverseMercator) inverse(x, y float64) (float64, float64) {
	e2 := tm.ell.e2
	e4 := e2 * e2
	e6 := e4 * e2

	m := tm.m0 + (y-tm.falseN)/tm.k0
	mu := m / (tm.ell.a * (1 - e2/4 - 3*e4/64 - 5*e6/256))
	sq := math.Sqrt(1 - e2)
	e1 := (1 - sq) / (1 + sq)
	e12 := e1 * e1
	e13 := e12 * e1
	e14 := e13 * e1

	phi1 := mu + (3*e1/2-27*e13/32)*math.Sin(2*mu) +
		(21*e12/16-55*e14/32)*math.Sin(4*mu) +
		(151*e13/96)*math.Sin(6*mu) +
		(1097*e14/512)*math.Sin(8*mu)

	sinPhi1, cosPhi1 := math.Sincos(phi1)
	tanPhi1 := math.Tan(phi1)
	c1 := tm.ep2 * cosPhi1 * cosPhi1
	t1 := tanPhi1 * tanPhi1
	w := 1 - e2*sinPhi1*sinPhi1
	n1 := tm.ell.a / math.Sqrt(w)
	r1 := tm.ell.a * (1 - e2) / (w * math.Sqrt(w))
	d := (x - tm.falseE) / (n1 * tm.k0)

	d2 := d * d
	d3 := d2 * d
	d4 := d3 * d
	d5 := d4 * d
	d6 := d5 * d

	phi := phi1 - (n1*tanPhi1/r1)*(d2/2-
		(5+3*t1+10*c1-4*c1*c1-9*tm.ep2)*d4/24+
		(61+90*t1+298*c1+45*t1*t1-252*tm.ep2-3*c1*c1)*d6/720)
	lam := tm.lon0 + (d-(1+2*t1+c1)*d3/6+
		(5-2*c1+28*t1-3*c1*c1+8*tm.ep2+24*t1*t1)*d5/120)/cosPhi1

	return toDeg(lam), toDeg(phi)
}

// webMercator is the spherical Pseudo-Mercator used by tile renderers.
type webMercator struct {
	r float64
}

func (w webMercator) forward(lon, lat float64) (float64, float64) {
	return w.r * toRad(lon), w.r * math.Log(math.Tan(math.Pi/4+toRad(lat)/2))
}

func (w webMercator) inverse(x, y float64) (float64, float64) {
	return toDeg(x / w.r), toDeg(2*math.Atan(math.Exp(y/w.r)) - math.Pi/2)
}
