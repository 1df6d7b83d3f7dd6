// pkg/environment/grid_test.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package environment

import (
	"testing"
	"time"

	"github.com/mmp/flightplan/pkg/geo"
	"github.com/mmp/flightplan/pkg/obstacle"
)

func newTestGrid(n int) *PlanningGrid {
	bounds := geo.OrientedBox{Center: geo.Point3{0, 0, 0}, HalfExtents: geo.Point3{float32(n) / 2, float32(n) / 2, float32(n) / 2}}
	g := NewPlanningGrid(bounds, n, n, n, nil)
	g.SetGlobe(geo.NewGlobe(0))
	return g
}

// gridCorner returns the Position at the center of grid cell (i,j,k) in
// an n^3 grid built by newTestGrid, so tests can address cells by index
// without hand-computing lat/lon.
func gridCorner(g *PlanningGrid, i, j, k int) geo.Position {
	ext, _ := g.grid.CellExtent(i, j, k)
	return g.globe.ToPosition(ext.Center())
}

func TestGridNeighborsAndAdjacency(t *testing.T) {
	g := newTestGrid(3)
	center := gridCorner(g, 1, 1, 1)
	ns := g.Neighbors(center)
	if len(ns) != 6 {
		t.Fatalf("interior cell has %d neighbors, want 6", len(ns))
	}

	corner := gridCorner(g, 0, 0, 0)
	ns = g.Neighbors(corner)
	if len(ns) != 3 {
		t.Fatalf("corner cell has %d neighbors, want 3", len(ns))
	}

	if !g.AreNeighbors(corner, gridCorner(g, 1, 0, 0)) {
		t.Errorf("axis-adjacent cells should be neighbors")
	}
	if g.AreNeighbors(corner, gridCorner(g, 2, 2, 2)) {
		t.Errorf("far-apart cells should not be neighbors")
	}
}

// TestGridStepCostUniformNoObstacles: step cost between any two
// adjacent, unobstructed cells is 1 regardless of cost policy.
func TestGridStepCostUniformNoObstacles(t *testing.T) {
	g := newTestGrid(3)
	a, b := gridCorner(g, 0, 0, 0), gridCorner(g, 1, 0, 0)
	now := time.Now()
	for _, cp := range []CostPolicy{Minimum, Maximum, Average} {
		got := g.GetStepCost(a, b, now, now, cp, RiskPolicy{Kind: Ignorance})
		if got != 1 {
			t.Errorf("GetStepCost under %v = %v, want 1", cp, got)
		}
	}
}

func TestGridStepCostNonNeighborsIsInf(t *testing.T) {
	g := newTestGrid(3)
	a, b := gridCorner(g, 0, 0, 0), gridCorner(g, 2, 2, 2)
	got := g.GetStepCost(a, b, time.Now(), time.Now(), Minimum, RiskPolicy{Kind: Ignorance})
	if !IsInf(got) {
		t.Errorf("GetStepCost between non-neighbors = %v, want Inf", got)
	}
}

// TestGridAvoidanceRiskPolicy: embedding a large cost
// interval across a cell makes the step cost finite-but-larger under
// Ignorance/Average, and infinite under a strict enough Avoidance
// threshold.
func TestGridAvoidanceRiskPolicy(t *testing.T) {
	g := newTestGrid(3)
	a, b := gridCorner(g, 0, 0, 1), gridCorner(g, 1, 0, 1)
	now := time.Now()

	ob := obstacle.Obstacle{
		Id:    "wx1",
		Shape: obstacle.Shape{Kind: obstacle.Box, Box: geo.Extent3D{P0: geo.Point3{-10, -10, -10}, P1: geo.Point3{10, 10, 10}}},
		Start: now.Add(-time.Hour), End: now.Add(time.Hour),
		Cost: 100,
	}
	if !g.Embed(ob) {
		t.Fatalf("Embed() reported no cells touched")
	}

	ignorance := g.GetStepCost(a, b, now, now, Average, RiskPolicy{Kind: Ignorance})
	if IsInf(ignorance) {
		t.Errorf("Ignorance policy should still admit the costly step, got Inf")
	}
	if ignorance <= 1 {
		t.Errorf("cost should have increased from the obstacle-free baseline, got %v", ignorance)
	}

	avoidance := g.GetStepCost(a, b, now, now, Average, RiskPolicy{Kind: Avoidance, Threshold: 50})
	if !IsInf(avoidance) {
		t.Errorf("Avoidance policy with threshold 50 should reject a magnitude-101 cost, got %v", avoidance)
	}

	if !g.Unembed(ob) {
		t.Fatalf("Unembed() reported the obstacle wasn't found")
	}
	after := g.GetStepCost(a, b, now, now, Average, RiskPolicy{Kind: Ignorance})
	if after != 1 {
		t.Errorf("GetStepCost after Unembed() = %v, want 1 (back to baseline)", after)
	}
}

func TestGridHardObstacleBlocksRegardlessOfPolicy(t *testing.T) {
	g := newTestGrid(3)
	a, b := gridCorner(g, 0, 0, 0), gridCorner(g, 1, 0, 0)
	now := time.Now()

	ob := obstacle.Obstacle{
		Id:    "terrain1",
		Shape: obstacle.Shape{Kind: obstacle.Box, Box: geo.Extent3D{P0: geo.Point3{-10, -10, -10}, P1: geo.Point3{10, 10, 10}}},
		Start: now.Add(-time.Hour), End: now.Add(time.Hour),
		Hard: true,
	}
	g.Embed(ob)

	got := g.GetStepCost(a, b, now, now, Minimum, RiskPolicy{Kind: Ignorance})
	if !IsInf(got) {
		t.Errorf("a hard obstacle should block the step under every risk policy, got %v", got)
	}
}

func TestGridUnembedAll(t *testing.T) {
	g := newTestGrid(3)
	now := time.Now()
	ob := obstacle.Obstacle{
		Id:    "wx2",
		Shape: obstacle.Shape{Kind: obstacle.Sphere, Center: geo.Point3{0, 0, 0}, Radius: 5},
		Start: now.Add(-time.Hour), End: now.Add(time.Hour),
		Cost: 50,
	}
	g.Embed(ob)
	g.UnembedAll()

	a, b := gridCorner(g, 0, 0, 0), gridCorner(g, 1, 0, 0)
	got := g.GetStepCost(a, b, now, now, Minimum, RiskPolicy{Kind: Ignorance})
	if got != 1 {
		t.Errorf("GetStepCost after UnembedAll() = %v, want 1", got)
	}
}
