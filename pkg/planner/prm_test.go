// pkg/planner/prm_test.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package planner

import (
	"testing"
	"time"

	"github.com/mmp/flightplan/pkg/geo"
	"github.com/mmp/flightplan/pkg/obstacle"
)

// TestBasicPRMNearStraight: an obstacle-free continuous box, 500
// samples, maxDistance 200, maxNeighbors 10. The roadmap query's
// geometric length must be within 1.3x the straight-line distance.
func TestBasicPRMNearStraight(t *testing.T) {
	rm := newRoadmapEnv(500, 500, 5, 7)
	p := NewBasicPRM(newTestAbstract(rm))
	p.MaxIterations = 500
	p.MaxDistance = 200
	p.MaxNeighbors = 10
	p.Construct()

	start := rm.Globe().ToPosition(geo.Point3{-480, -480, -4})
	goal := rm.Globe().ToPosition(geo.Point3{480, 480, 4})
	tr := p.Plan(start, goal, testETD)
	if tr.Empty() {
		t.Fatalf("BasicPRM found no plan in an empty box")
	}
	checkPlanInvariants(t, tr)

	straight := geo.Distance3D(start, goal)
	if tr.Length() > 1.3*straight {
		t.Errorf("plan length %v nm exceeds 1.3x straight-line %v nm", tr.Length(), straight)
	}
}

// TestLazyPRMNeverReturnsBlockedPath: after an obstacle blocks part of
// the roadmap, the query either routes around it or returns empty,
// never a path through it.
func TestLazyPRMNeverReturnsBlockedPath(t *testing.T) {
	rm := newRoadmapEnv(100, 100, 10, 11)
	p := NewLazyPRM(newTestAbstract(rm))
	p.MaxIterations = 300
	p.MaxDistance = 60
	p.MaxNeighbors = 8
	p.Construct()

	start := rm.Globe().ToPosition(geo.Point3{-90, 0, 0})
	goal := rm.Globe().ToPosition(geo.Point3{90, 0, 0})
	before := p.Plan(start, goal, testETD)
	if before.Empty() {
		t.Fatalf("LazyPRM found no plan before the obstacle appeared")
	}

	// A wall across x=0 with a gap in the +y quarter.
	wall := obstacle.Obstacle{
		Id: "terrain-ridge",
		Shape: obstacle.Shape{Kind: obstacle.Box, Box: geo.Extent3D{
			P0: geo.Point3{-5, -100, -10}, P1: geo.Point3{5, 55, 10},
		}},
		Start: testETD.Add(-time.Hour), End: testETD.Add(24 * time.Hour),
		Hard: true,
	}
	if !rm.Embed(wall) {
		t.Fatalf("wall not embedded")
	}

	after := p.Plan(start, goal, testETD)
	if after.Empty() {
		// Permitted outcome: NoPlan rather than the blocked path.
		return
	}
	for i := 0; i+1 < len(after.Waypoints); i++ {
		a, b := after.Waypoints[i].Position, after.Waypoints[i+1].Position
		if rm.CheckConflictSegment(a, b, testAircraft()) {
			t.Errorf("leg %d of the replanned path crosses the wall", i)
		}
	}
}

func TestPRMSupportsRoadmapOnly(t *testing.T) {
	rm := newRoadmapEnv(10, 10, 10, 1)
	g := newGridEnv(3)
	p := NewRigidPRM(newTestAbstract(rm))
	if !p.Supports(rm) {
		t.Errorf("PRM should support a roadmap environment")
	}
	if p.Supports(g) {
		t.Errorf("PRM should reject a grid environment")
	}
}
