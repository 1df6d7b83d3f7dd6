// pkg/obstacle/obstacle.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package obstacle defines the terrain/hazard volumes an Environment
// embeds and the desirability zones the FAPRM family blends into edge
// cost. Obstacles themselves arrive pre-parsed from an external
// ObstacleSource (weather bulletin loaders, terrain databases); this
// package only describes their shape and validity window, not how they
// were produced.
package obstacle

import (
	"time"

	"github.com/mmp/flightplan/pkg/geo"
)

// Shape is the geometric footprint of an Obstacle, one of a sphere,
// vertical cylinder, or axis-aligned box, matching the intersection
// predicates in pkg/geo.
type Shape struct {
	Kind ShapeKind

	Center geo.Point3
	Radius float32 // sphere/cylinder
	Height float32 // cylinder half-height
	Box    geo.Extent3D
}

type ShapeKind int

const (
	Sphere ShapeKind = iota
	Cylinder
	Box
)

// Intersects reports whether the shape intersects the given box.
func (s Shape) Intersects(box geo.Extent3D) bool {
	switch s.Kind {
	case Sphere:
		return geo.SphereIntersectsBox(s.Center, s.Radius, box)
	case Cylinder:
		return geo.CylinderIntersectsBox(s.Center, s.Radius, s.Height, box)
	case Box:
		return s.Box.Overlaps(box)
	default:
		return false
	}
}

// IntersectsSegment reports whether the shape intersects the segment
// (a,b), used by the environment conflict checks and edge embedding.
func (s Shape) IntersectsSegment(a, b geo.Point3) bool {
	switch s.Kind {
	case Sphere:
		return segmentIntersectsSphere(a, b, s.Center, s.Radius)
	case Cylinder:
		return segmentIntersectsCylinder(a, b, s.Center, s.Radius, s.Height)
	case Box:
		return geo.SegmentIntersectsBox(a, b, s.Box)
	default:
		return false
	}
}

func segmentIntersectsSphere(a, b, center Point3, radius float32) bool {
	closest := closestPointOnSegment(a, b, center)
	return geo.Distance3(closest, center) <= radius
}

func segmentIntersectsCylinder(a, b, center Point3, radius, halfHeight float32) bool {
	// Clip the segment against the cylinder's vertical extent, then test
	// the 2D (x,y) distance of the clipped segment to the axis.
	lo, hi := center[2]-halfHeight, center[2]+halfHeight
	if (a[2] < lo && b[2] < lo) || (a[2] > hi && b[2] > hi) {
		return false
	}
	if dz := b[2] - a[2]; dz != 0 {
		t0 := geo.Clamp((lo-a[2])/dz, 0, 1)
		t1 := geo.Clamp((hi-a[2])/dz, 0, 1)
		a, b = geo.Lerp3(geo.Min(t0, t1), a, b), geo.Lerp3(geo.Max(t0, t1), a, b)
	}
	closest := closestPointOnSegment(Point3{a[0], a[1], 0}, Point3{b[0], b[1], 0}, Point3{center[0], center[1], 0})
	dx, dy := closest[0]-center[0], closest[1]-center[1]
	return geo.Sqrt(dx*dx+dy*dy) <= radius
}

// Point3 is a local alias to avoid repeating the geo qualifier in this
// file's helper signatures.
type Point3 = geo.Point3

func closestPointOnSegment(a, b, p Point3) Point3 {
	ab := geo.Sub3(b, a)
	l2 := geo.Dot3(ab, ab)
	if l2 == 0 {
		return a
	}
	t := geo.Dot3(geo.Sub3(p, a), ab) / l2
	t = geo.Clamp(t, 0, 1)
	return geo.Add3(a, geo.Scale3(ab, t))
}

// Obstacle is a terrain feature or time-varying hazard volume (e.g., a
// weather cell) with a stable Id so repeated observations of the same
// phenomenon dedupe when the environment aggregates cost.
type Obstacle struct {
	Id    string
	Shape Shape
	Start time.Time
	End   time.Time
	Cost  float32 // cost magnitude contributed while active

	// Hard marks a terrain feature: impassable regardless of cost/risk
	// policy, as opposed to a soft weather hazard whose cost is
	// aggregated and admitted or rejected by the RiskPolicy in effect.
	Hard bool
}

// Active reports whether the obstacle contributes cost at any point in
// [start, end].
func (o Obstacle) Active(start, end time.Time) bool {
	return !o.Start.After(end) && !o.End.Before(start)
}

// DesirabilityZone is a volume with a desirability value in [0,1] used
// by the FAPRM family to blend edge cost with route preference (e.g.,
// published corridors, noise-sensitive overflight avoidance).
type DesirabilityZone struct {
	Id           string
	Shape        Shape
	Desirability float32
}
