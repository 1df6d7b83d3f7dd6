// pkg/geo/position.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package geo

import (
	"fmt"
	gomath "math"
)

// NMPerLatitude is the number of nautical miles per degree of latitude;
// it is (very nearly) constant over the globe, unlike the corresponding
// value for longitude, which depends on latitude.
const NMPerLatitude = 60

// FeetPerNM converts feet to nautical miles and back.
const FeetPerNM = 6076.12
const NMPerFoot = 1 / FeetPerNM

// Point3 is a 3D point in an arbitrary locally-flat Cartesian frame,
// expressed in nautical miles along each axis.
type Point3 [3]float32

func Add3(a, b Point3) Point3 { return Point3{a[0] + b[0], a[1] + b[1], a[2] + b[2]} }
func Sub3(a, b Point3) Point3 { return Point3{a[0] - b[0], a[1] - b[1], a[2] - b[2]} }
func Scale3(a Point3, s float32) Point3 {
	return Point3{a[0] * s, a[1] * s, a[2] * s}
}
func Dot3(a, b Point3) float32 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}
func Length3(a Point3) float32 { return Sqrt(Dot3(a, a)) }
func Distance3(a, b Point3) float32 {
	return Length3(Sub3(a, b))
}
func Normalize3(a Point3) Point3 {
	l := Length3(a)
	if l == 0 {
		return a
	}
	return Scale3(a, 1/l)
}
func Lerp3(t float32, a, b Point3) Point3 {
	return Point3{Lerp(t, a[0], b[0]), Lerp(t, a[1], b[1]), Lerp(t, a[2], b[2])}
}

// Position is a point on the reference globe: latitude, longitude in
// degrees, and elevation in feet above the ellipsoid.
type Position struct {
	Latitude, Longitude float32
	Elevation           float32
}

func (p Position) String() string {
	return fmt.Sprintf("(%f, %f, %.0fft)", p.Latitude, p.Longitude, p.Elevation)
}

func (p Position) IsZero() bool {
	return p.Latitude == 0 && p.Longitude == 0 && p.Elevation == 0
}

// Globe is a reference ellipsoid used to convert between geodetic
// Positions and the locally-flat Cartesian frame planners reason in. We
// use a simple local-tangent-plane approximation centered at an
// reference latitude, which is accurate enough for the distances
// (tens to low hundreds of nautical miles) the planning engine operates
// over; it does not attempt true ECEF/geodesic conversions.
type Globe struct {
	RefLatitude    float32
	NMPerLongitude float32
}

// NewGlobe returns a Globe whose locally-flat approximation is centered
// at the given reference latitude.
func NewGlobe(refLatitude float32) *Globe {
	return &Globe{
		RefLatitude:    refLatitude,
		NMPerLongitude: NMPerLatitude * Cos(Radians(refLatitude)),
	}
}

// ToPoint3 converts a Position to a Cartesian point in nautical miles,
// with elevation converted from feet to nautical miles so all three axes
// share the same units.
func (g *Globe) ToPoint3(p Position) Point3 {
	return Point3{
		p.Longitude * g.NMPerLongitude,
		p.Latitude * NMPerLatitude,
		p.Elevation * NMPerFoot,
	}
}

// ToPosition converts a Cartesian point back to a Position.
func (g *Globe) ToPosition(p Point3) Position {
	return Position{
		Longitude: p[0] / g.NMPerLongitude,
		Latitude:  p[1] / NMPerLatitude,
		Elevation: p[2] * FeetPerNM,
	}
}

// GreatCircleDistance returns the distance in nautical miles between two
// positions along the surface of the globe, ignoring elevation; terrain
// is not followed.
func GreatCircleDistance(a, b Position) float32 {
	const R = 3440.065 // earth radius, nautical miles
	rad := func(d float32) float64 { return float64(d) / 180 * gomath.Pi }
	lat1, lon1 := rad(a.Latitude), rad(a.Longitude)
	lat2, lon2 := rad(b.Latitude), rad(b.Longitude)
	dlat, dlon := lat2-lat1, lon2-lon1

	x := gomath.Sin(dlat/2)*gomath.Sin(dlat/2) +
		gomath.Cos(lat1)*gomath.Cos(lat2)*gomath.Sin(dlon/2)*gomath.Sin(dlon/2)
	c := 2 * gomath.Atan2(gomath.Sqrt(x), gomath.Sqrt(1-x))
	return float32(R * c)
}

// Distance3D returns the straight-line distance in nautical miles between
// two positions, combining great-circle surface distance with the
// elevation difference (converted to nautical miles).
func Distance3D(a, b Position) float32 {
	surface := GreatCircleDistance(a, b)
	dz := (a.Elevation - b.Elevation) * NMPerFoot
	return Sqrt(Sqr(surface) + Sqr(dz))
}

// Offset returns the position at the given distance (nautical miles) and
// elevation change (feet) from p along the given heading in degrees,
// assuming a locally flat earth.
func Offset(g *Globe, p Position, heading float32, dist float32, climb float32) Position {
	h := Radians(heading)
	v := Point3{Sin(h) * dist, Cos(h) * dist, climb * NMPerFoot}
	pp := Add3(g.ToPoint3(p), v)
	return g.ToPosition(pp)
}
