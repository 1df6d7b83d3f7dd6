// pkg/planner/astar_test.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package planner

import (
	"testing"
	"time"

	"github.com/mmp/flightplan/pkg/environment"
	"github.com/mmp/flightplan/pkg/geo"
	"github.com/mmp/flightplan/pkg/obstacle"
	"github.com/mmp/flightplan/pkg/trajectory"
)

// TestForwardAStarUniformGrid: a 10^3 unit grid with no obstacles and
// uniform cost 1 from corner cell to corner cell. The optimal plan makes
// 27 axis moves, so 28 waypoints and cost 27.
func TestForwardAStarUniformGrid(t *testing.T) {
	const n = 10
	g := newGridEnv(n)
	p := NewForwardAStar(newTestAbstract(g))

	start := gridCell(g, n, 0, 0, 0)
	goal := gridCell(g, n, 9, 9, 9)
	tr := p.Plan(start, goal, testETD)

	if tr.Empty() {
		t.Fatalf("no plan found on an empty grid")
	}
	if len(tr.Waypoints) != 28 {
		t.Errorf("plan has %d waypoints, want 28", len(tr.Waypoints))
	}
	if tr.Cost() != 27 {
		t.Errorf("plan cost = %v, want 27", tr.Cost())
	}
	checkPlanInvariants(t, tr)

	first, last := tr.Waypoints[0].Position, tr.Waypoints[len(tr.Waypoints)-1].Position
	if first != start {
		t.Errorf("plan starts at %v, want %v", first, start)
	}
	if last != goal {
		t.Errorf("plan ends at %v, want %v", last, goal)
	}
}

// TestForwardAStarRoundTrip checks the round-trip property: planning the
// reverse query traverses the same number of cells at the same cost.
func TestForwardAStarRoundTrip(t *testing.T) {
	const n = 6
	g := newGridEnv(n)
	p := NewForwardAStar(newTestAbstract(g))

	a := gridCell(g, n, 0, 0, 0)
	b := gridCell(g, n, 5, 3, 2)

	fwd := p.Plan(a, b, testETD)
	rev := p.Plan(b, a, testETD)

	if fwd.Empty() || rev.Empty() {
		t.Fatalf("round-trip plans should both exist")
	}
	if len(fwd.Waypoints) != len(rev.Waypoints) {
		t.Errorf("forward plan has %d waypoints, reverse %d", len(fwd.Waypoints), len(rev.Waypoints))
	}
	if fwd.Cost() != rev.Cost() {
		t.Errorf("forward cost %v != reverse cost %v", fwd.Cost(), rev.Cost())
	}
}

// TestForwardAStarCostPlane: a magnitude-100 cost interval covering the
// z=5 slab. Under Ignorance the plan still crosses the slab at increased
// cost; under Avoidance with threshold 50 every crossing is inadmissible
// and the plan is empty.
func TestForwardAStarCostPlane(t *testing.T) {
	const n = 10
	mkGrid := func() *environment.PlanningGrid {
		g := newGridEnv(n)
		ob := obstacle.Obstacle{
			Id: "wx-slab",
			Shape: obstacle.Shape{Kind: obstacle.Box, Box: geo.Extent3D{
				P0: geo.Point3{-5, -5, 0.01},
				P1: geo.Point3{5, 5, 0.99}, // the k=5 layer of cells only
			}},
			Start: testETD.Add(-time.Hour), End: testETD.Add(time.Hour),
			Cost: 100,
		}
		if !g.Embed(ob) {
			t.Fatalf("slab obstacle embedded into no cells")
		}
		return g
	}

	g := mkGrid()
	a, b := gridCell(g, n, 0, 0, 0), gridCell(g, n, 9, 9, 9)
	ap := newTestAbstract(g)
	ap.CostPolicy = environment.Average
	tolerant := NewForwardAStar(ap)
	tr := tolerant.Plan(a, b, testETD)
	if tr.Empty() {
		t.Fatalf("Ignorance policy should still find a plan through the slab")
	}
	if tr.Cost() <= 27 {
		t.Errorf("crossing the slab should cost more than the obstacle-free 27, got %v", tr.Cost())
	}

	g = mkGrid()
	a, b = gridCell(g, n, 0, 0, 0), gridCell(g, n, 9, 9, 9)
	ap = newTestAbstract(g)
	ap.CostPolicy = environment.Average
	ap.RiskPolicy = environment.RiskPolicy{Kind: environment.Avoidance, Threshold: 50}
	strict := NewForwardAStar(ap)
	tr = strict.Plan(a, b, testETD)
	if !tr.Empty() {
		// Every start-to-goal path must cross z=5, so Avoidance can only
		// report NoPlan.
		t.Errorf("Avoidance policy found a %d-waypoint plan through an impassable slab", len(tr.Waypoints))
	}
}

// TestForwardAStarNoPlanPublishesEmpty checks the NoPlan contract: the
// empty trajectory is also delivered through the revision listener.
func TestForwardAStarNoPlanPublishesEmpty(t *testing.T) {
	const n = 4
	g := newGridEnv(n)
	ob := obstacle.Obstacle{
		Id: "terrain-wall",
		Shape: obstacle.Shape{Kind: obstacle.Box, Box: geo.Extent3D{
			P0: geo.Point3{-0.5, -2, -2}, P1: geo.Point3{0.5, 2, 2},
		}},
		Start: testETD.Add(-time.Hour), End: testETD.Add(time.Hour),
		Hard: true,
	}
	g.Embed(ob)

	p := NewForwardAStar(newTestAbstract(g))
	var got []trajectory.Trajectory
	p.Subscribe(func(tr trajectory.Trajectory) { got = append(got, tr) })

	tr := p.Plan(gridCell(g, n, 0, 1, 1), gridCell(g, n, 3, 1, 1), testETD)
	if !tr.Empty() {
		t.Fatalf("plan should be empty with a full wall across the grid")
	}
	if len(got) != 1 || !got[0].Empty() {
		t.Errorf("empty plan was not published to the revision listener")
	}
}

// TestForwardAStarRoadmap plans end-to-end over a roadmap environment:
// successors come from the roadmap's edge list, and the cheaper of two
// hand-built routes wins.
func TestForwardAStarRoadmap(t *testing.T) {
	rm := newRoadmapEnv(100, 100, 10, 1)
	pos := func(x, y float32) geo.Position {
		return rm.Globe().ToPosition(geo.Point3{x, y, 0})
	}

	a, b, c := pos(-50, 0), pos(0, 0), pos(50, 0)
	ia := rm.AddWaypoint(a)
	ib := rm.AddWaypoint(b)
	ic := rm.AddWaypoint(c)
	rm.AddEdge(ia, ib, 0.5)
	rm.AddEdge(ib, ic, 0.5)

	// A three-hop detour that must lose to the two-hop direct route.
	d1 := rm.AddWaypoint(pos(-20, 30))
	d2 := rm.AddWaypoint(pos(20, 30))
	rm.AddEdge(ia, d1, 0.5)
	rm.AddEdge(d1, d2, 0.5)
	rm.AddEdge(d2, ic, 0.5)

	p := NewForwardAStar(newTestAbstract(rm))
	tr := p.Plan(a, c, testETD)
	if tr.Empty() {
		t.Fatalf("ForwardAStar found no plan over the roadmap")
	}
	checkPlanInvariants(t, tr)

	if len(tr.Waypoints) != 3 {
		t.Fatalf("plan has %d waypoints, want 3 (a, b, c)", len(tr.Waypoints))
	}
	if tr.Waypoints[1].Position != b {
		t.Errorf("plan routed through %v, want the direct route via %v", tr.Waypoints[1].Position, b)
	}
	if tr.Cost() != 2 {
		t.Errorf("plan cost = %v, want 2 (one per edge)", tr.Cost())
	}
}

func TestForwardAStarSupports(t *testing.T) {
	g := newGridEnv(3)
	rm := newRoadmapEnv(10, 10, 10, 1)
	p := NewForwardAStar(newTestAbstract(g))
	if !p.Supports(g) || !p.Supports(rm) {
		t.Errorf("ForwardAStar should support both environment variants")
	}
}
