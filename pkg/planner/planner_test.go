// pkg/planner/planner_test.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package planner

import (
	"testing"
	"time"

	"github.com/mmp/flightplan/pkg/aircraft"
	"github.com/mmp/flightplan/pkg/environment"
	"github.com/mmp/flightplan/pkg/geo"
	"github.com/mmp/flightplan/pkg/trajectory"
)

var testETD = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func testAircraft() aircraft.Capabilities {
	return aircraft.Uniform{GroundSpeed: 480}
}

// newGridEnv returns an n*n*n PlanningGrid of unit (1nm) cells centered
// at the origin of a globe(0) local frame.
func newGridEnv(n int) *environment.PlanningGrid {
	half := float32(n) / 2
	bounds := geo.OrientedBox{HalfExtents: geo.Point3{half, half, half}}
	g := environment.NewPlanningGrid(bounds, n, n, n, nil)
	g.SetGlobe(geo.NewGlobe(0))
	return g
}

// gridCell returns the Position at the center of cell (i,j,k) of a grid
// built by newGridEnv(n), matching the centers Neighbors() reports.
func gridCell(g *environment.PlanningGrid, n, i, j, k int) geo.Position {
	lo := -float32(n) / 2
	return g.Globe().ToPosition(geo.Point3{
		lo + float32(i) + 0.5,
		lo + float32(j) + 0.5,
		lo + float32(k) + 0.5,
	})
}

// newRoadmapEnv returns an empty sampling environment over a box with the
// given half-extents (nm), seeded for deterministic sampling.
func newRoadmapEnv(hx, hy, hz float32, seed int64) *environment.Roadmap {
	box := geo.OrientedBox{HalfExtents: geo.Point3{hx, hy, hz}}
	rm := environment.NewRoadmap(box, nil)
	rm.SetGlobe(geo.NewGlobe(0))
	rm.Seed(seed)
	return rm
}

func newTestAbstract(env environment.Environment) AbstractPlanner {
	return NewAbstractPlanner(env, testAircraft(), environment.Minimum,
		environment.RiskPolicy{Kind: environment.Ignorance}, nil)
}

// checkPlanInvariants verifies the invariants every emitted plan must
// satisfy: non-negative g and h, and ETOs that never run backwards.
func checkPlanInvariants(t *testing.T, tr trajectory.Trajectory) {
	t.Helper()
	for i, w := range tr.Waypoints {
		if w.G < 0 {
			t.Errorf("waypoint %d: g = %v < 0", i, w.G)
		}
		if w.H < 0 {
			t.Errorf("waypoint %d: h = %v < 0", i, w.H)
		}
		if i > 0 && tr.Waypoints[i].ETO.Before(tr.Waypoints[i-1].ETO) {
			t.Errorf("waypoint %d: eto %v before predecessor's %v", i,
				tr.Waypoints[i].ETO, tr.Waypoints[i-1].ETO)
		}
	}
}
