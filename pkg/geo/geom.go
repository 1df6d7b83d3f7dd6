// pkg/geo/geom.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package geo

import gomath "math"

///////////////////////////////////////////////////////////////////////////
// Extent3D

// Extent3D is an axis-aligned 3D bounding box.
type Extent3D struct {
	P0, P1 Point3
}

// EmptyExtent3D returns a degenerate (inside-out) bounding box suitable
// as the starting point for a union reduction.
func EmptyExtent3D() Extent3D {
	return Extent3D{P0: Point3{1e30, 1e30, 1e30}, P1: Point3{-1e30, -1e30, -1e30}}
}

func Extent3DFromPoints(pts []Point3) Extent3D {
	e := EmptyExtent3D()
	for _, p := range pts {
		for d := 0; d < 3; d++ {
			e.P0[d] = Min(e.P0[d], p[d])
			e.P1[d] = Max(e.P1[d], p[d])
		}
	}
	return e
}

func (e Extent3D) Width() Point3 {
	return Sub3(e.P1, e.P0)
}

func (e Extent3D) Center() Point3 {
	return Scale3(Add3(e.P0, e.P1), 0.5)
}

// Corners returns the 8 corner vertices of the box.
func (e Extent3D) Corners() [8]Point3 {
	var c [8]Point3
	for i := 0; i < 8; i++ {
		c[i] = Point3{
			Select(i&1 != 0, e.P1[0], e.P0[0]),
			Select(i&2 != 0, e.P1[1], e.P0[1]),
			Select(i&4 != 0, e.P1[2], e.P0[2]),
		}
	}
	return c
}

func Select[T any](sel bool, a, b T) T {
	if sel {
		return a
	}
	return b
}

func (e Extent3D) Inside(p Point3) bool {
	return p[0] >= e.P0[0] && p[0] <= e.P1[0] &&
		p[1] >= e.P0[1] && p[1] <= e.P1[1] &&
		p[2] >= e.P0[2] && p[2] <= e.P1[2]
}

func (e Extent3D) Overlaps(o Extent3D) bool {
	for d := 0; d < 3; d++ {
		if e.P1[d] < o.P0[d] || e.P0[d] > o.P1[d] {
			return false
		}
	}
	return true
}

// LongestEdge returns the length of the box's longest edge, used as the
// normalizer for normalized-distance queries.
func (e Extent3D) LongestEdge() float32 {
	w := e.Width()
	return Max(w[0], Max(w[1], w[2]))
}

func (e Extent3D) ClosestPoint(p Point3) Point3 {
	return Point3{
		Clamp(p[0], e.P0[0], e.P1[0]),
		Clamp(p[1], e.P0[1], e.P1[1]),
		Clamp(p[2], e.P0[2], e.P1[2]),
	}
}

// IntersectRay intersects the ray (org, dir) against the box using the
// standard slab method; ok is false if there's no intersection, and in
// that case t0 and t1 are undefined.
func (e Extent3D) IntersectRay(org, dir Point3) (ok bool, t0, t1 float32) {
	t0, t1 = 0, 1e30
	for d := 0; d < 3; d++ {
		if dir[d] == 0 {
			if org[d] < e.P0[d] || org[d] > e.P1[d] {
				return false, 0, 0
			}
			continue
		}
		ta := (e.P0[d] - org[d]) / dir[d]
		tb := (e.P1[d] - org[d]) / dir[d]
		ta, tb = Min(ta, tb), Max(ta, tb)
		t0 = Max(t0, ta)
		t1 = Min(t1, tb)
	}
	return t0 <= t1, t0, t1
}

// SegmentIntersectsBox reports whether the segment (a,b) intersects the
// box at all.
func SegmentIntersectsBox(a, b Point3, e Extent3D) bool {
	dir := Sub3(b, a)
	ok, t0, t1 := e.IntersectRay(a, dir)
	if !ok {
		return false
	}
	return t1 >= 0 && t0 <= 1
}

// SphereIntersectsBox reports whether a sphere with the given center and
// radius intersects the box.
func SphereIntersectsBox(center Point3, radius float32, e Extent3D) bool {
	closest := e.ClosestPoint(center)
	return Distance3(closest, center) <= radius
}

// CylinderIntersectsBox reports whether a vertical cylinder (axis along
// dimension 2, the elevation axis) with the given center, radius, and
// half-height intersects the box. This is the shape used for weather
// cells and terrain obstacles with a circular horizontal footprint.
func CylinderIntersectsBox(center Point3, radius, halfHeight float32, e Extent3D) bool {
	if center[2]+halfHeight < e.P0[2] || center[2]-halfHeight > e.P1[2] {
		return false
	}
	closest := Point3{
		Clamp(center[0], e.P0[0], e.P1[0]),
		Clamp(center[1], e.P0[1], e.P1[1]),
		center[2],
	}
	dx, dy := closest[0]-center[0], closest[1]-center[1]
	return Sqrt(dx*dx+dy*dy) <= radius
}

///////////////////////////////////////////////////////////////////////////
// OrientedBox

// OrientedBox is a 3D box that may be rotated about the vertical
// (elevation) axis by Heading degrees; it is the shape backing a
// sampling environment's bounds and a planning grid's root cell.
type OrientedBox struct {
	Center      Point3
	HalfExtents Point3 // half-width along each local axis
	Heading     float32
}

// toLocal transforms a world-space point into the box's local,
// axis-aligned frame.
func (b OrientedBox) toLocal(p Point3) Point3 {
	rel := Sub3(p, b.Center)
	h := Radians(-b.Heading)
	c, s := Cos(h), Sin(h)
	return Point3{
		rel[0]*c - rel[1]*s,
		rel[0]*s + rel[1]*c,
		rel[2],
	}
}

func (b OrientedBox) toWorld(p Point3) Point3 {
	h := Radians(b.Heading)
	c, s := Cos(h), Sin(h)
	rot := Point3{p[0]*c - p[1]*s, p[0]*s + p[1]*c, p[2]}
	return Add3(rot, b.Center)
}

func (b OrientedBox) Inside(p Point3) bool {
	l := b.toLocal(p)
	for d := 0; d < 3; d++ {
		if Abs(l[d]) > b.HalfExtents[d] {
			return false
		}
	}
	return true
}

// Corners returns the 8 world-space corners of the oriented box.
func (b OrientedBox) Corners() [8]Point3 {
	var c [8]Point3
	he := b.HalfExtents
	for i := 0; i < 8; i++ {
		local := Point3{
			Select(i&1 != 0, he[0], -he[0]),
			Select(i&2 != 0, he[1], -he[1]),
			Select(i&4 != 0, he[2], -he[2]),
		}
		c[i] = b.toWorld(local)
	}
	return c
}

// BoundingExtent3D returns the smallest axis-aligned box that contains
// the (possibly rotated) oriented box.
func (b OrientedBox) BoundingExtent3D() Extent3D {
	c := b.Corners()
	return Extent3DFromPoints(c[:])
}

///////////////////////////////////////////////////////////////////////////
// CubicGrid subdivision

// CubicGrid subdivides an oriented box into an (r,s,t) grid of
// equal-sized axis-aligned cells; it is the cell structure behind the
// grid environment variant.
type CubicGrid struct {
	Bounds      OrientedBox
	R, S, T     int
	cellExtents []Extent3D // len R*S*T, axis-aligned (box is assumed unrotated for grid purposes)
}

// NewCubicGrid subdivides the given box into r*s*t equal-sized
// axis-aligned cells. Grid-based environments use an unrotated box
// (Heading==0) so that cell boundaries line up with world axes.
func NewCubicGrid(bounds OrientedBox, r, s, t int) *CubicGrid {
	g := &CubicGrid{Bounds: bounds, R: r, S: s, T: t}
	lo := Sub3(bounds.Center, bounds.HalfExtents)
	step := Point3{
		2 * bounds.HalfExtents[0] / float32(r),
		2 * bounds.HalfExtents[1] / float32(s),
		2 * bounds.HalfExtents[2] / float32(t),
	}
	g.cellExtents = make([]Extent3D, 0, r*s*t)
	for k := 0; k < t; k++ {
		for j := 0; j < s; j++ {
			for i := 0; i < r; i++ {
				p0 := Point3{lo[0] + float32(i)*step[0], lo[1] + float32(j)*step[1], lo[2] + float32(k)*step[2]}
				p1 := Add3(p0, step)
				g.cellExtents = append(g.cellExtents, Extent3D{P0: p0, P1: p1})
			}
		}
	}
	return g
}

func (g *CubicGrid) index(i, j, k int) int { return k*g.S*g.R + j*g.R + i }

func (g *CubicGrid) inRange(i, j, k int) bool {
	return i >= 0 && i < g.R && j >= 0 && j < g.S && k >= 0 && k < g.T
}

// CellExtent returns the bounding box of cell (i,j,k).
func (g *CubicGrid) CellExtent(i, j, k int) (Extent3D, bool) {
	if !g.inRange(i, j, k) {
		return Extent3D{}, false
	}
	return g.cellExtents[g.index(i, j, k)], true
}

// LookupCell returns the (i,j,k) indices of the cell containing the
// given world-space point, or ok=false if the point is outside the grid.
func (g *CubicGrid) LookupCell(p Point3) (i, j, k int, ok bool) {
	lo := Sub3(g.Bounds.Center, g.Bounds.HalfExtents)
	rel := Sub3(p, lo)
	full := Scale3(g.Bounds.HalfExtents, 2)
	if rel[0] < 0 || rel[1] < 0 || rel[2] < 0 || rel[0] > full[0] || rel[1] > full[1] || rel[2] > full[2] {
		return 0, 0, 0, false
	}
	i = Min(int(rel[0]/full[0]*float32(g.R)), g.R-1)
	j = Min(int(rel[1]/full[1]*float32(g.S)), g.S-1)
	k = Min(int(rel[2]/full[2]*float32(g.T)), g.T-1)
	return i, j, k, true
}

// CellIndex is the (i,j,k) index of a CubicGrid cell.
type CellIndex struct {
	I, J, K int
}

// Neighbors returns the up-to-6 axis-adjacent cells of the given cell.
func (g *CubicGrid) Neighbors(c CellIndex) []CellIndex {
	deltas := [6][3]int{{1, 0, 0}, {-1, 0, 0}, {0, 1, 0}, {0, -1, 0}, {0, 0, 1}, {0, 0, -1}}
	var out []CellIndex
	for _, d := range deltas {
		ni, nj, nk := c.I+d[0], c.J+d[1], c.K+d[2]
		if g.inRange(ni, nj, nk) {
			out = append(out, CellIndex{ni, nj, nk})
		}
	}
	return out
}

// AreNeighbors reports whether two cells are axis-adjacent; a cell is
// not its own neighbor.
func AreNeighbors(a, b CellIndex) bool {
	di, dj, dk := Abs(a.I-b.I), Abs(a.J-b.J), Abs(a.K-b.K)
	return di+dj+dk == 1
}

///////////////////////////////////////////////////////////////////////////

// positionEpsilon is the tolerance under which two positions compare
// equal; this is the basis for waypoint identity by spatial position
// rather than pointer identity.
const positionEpsilon = 1e-5

func PrecisionEqual(a, b float32) bool {
	return gomath.Abs(float64(a-b)) < positionEpsilon
}
