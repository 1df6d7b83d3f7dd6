// pkg/session/session_test.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package session

import (
	"testing"
	"time"

	"github.com/mmp/flightplan/pkg/aircraft"
	"github.com/mmp/flightplan/pkg/config"
	"github.com/mmp/flightplan/pkg/datalink"
	"github.com/mmp/flightplan/pkg/environment"
	"github.com/mmp/flightplan/pkg/geo"
	"github.com/mmp/flightplan/pkg/obstacle"
	"github.com/mmp/flightplan/pkg/planner"
)

func testScenario() Scenario {
	box := geo.OrientedBox{HalfExtents: geo.Point3{100, 100, 10}}
	rm := environment.NewRoadmap(box, nil)
	rm.SetGlobe(geo.NewGlobe(0))
	return Scenario{
		Environment: rm,
		Aircraft:    aircraft.Uniform{GroundSpeed: 300},
	}
}

func TestBuildEveryNamedPlanner(t *testing.T) {
	scenario := testScenario()
	for _, name := range Names() {
		p, err := Build(name, scenario, config.Default(name), nil)
		if err != nil {
			t.Errorf("Build(%q): %v", name, err)
			continue
		}
		if !p.Supports(scenario.Environment) {
			t.Errorf("Build(%q): planner rejects the roadmap environment it was built with", name)
		}
	}
}

func TestBuildUnknownPlanner(t *testing.T) {
	if _, err := Build("dijkstra", testScenario(), config.Default("dijkstra"), nil); err == nil {
		t.Errorf("Build of an unknown planner name should fail")
	}
}

func TestBuildRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default("rrt")
	cfg.Bias = 7
	if _, err := Build("rrt", testScenario(), cfg, nil); err == nil {
		t.Errorf("Build should reject an out-of-range bias")
	}
}

func TestBuildAppliesConfig(t *testing.T) {
	cfg := config.Default("faprm")
	cfg.MaxIterations = 123
	cfg.MaxDistance = 77
	cfg.StepBeta = 0.2
	cfg.StartShiftLookahead = 5

	p, err := Build("faprm", testScenario(), cfg, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	fp, ok := p.(*planner.FAPRM)
	if !ok {
		t.Fatalf("faprm built a %T", p)
	}
	if fp.MaxIterations != 123 || fp.MaxDistance != 77 || fp.StepBeta != 0.2 || fp.StartShiftLookahead != 5 {
		t.Errorf("config not applied: %+v", fp)
	}
}

func TestBuildSeedsDesirabilityZones(t *testing.T) {
	scenario := testScenario()
	scenario.DesirabilityZones = []obstacle.DesirabilityZone{{
		Id:           "corridor",
		Shape:        obstacle.Shape{Kind: obstacle.Sphere, Center: geo.Point3{0, 0, 0}, Radius: 20},
		Desirability: 0.9,
	}}

	if _, err := Build("faprm", scenario, config.Default("faprm"), nil); err != nil {
		t.Fatalf("Build: %v", err)
	}
	rm := scenario.Environment.(*environment.Roadmap)
	if len(rm.DesirabilityZones()) != 1 {
		t.Errorf("desirability zone not seeded into the environment")
	}
}

func TestBuildWiresOnlineDatalink(t *testing.T) {
	scenario := testScenario()
	link := datalink.NewSimulated()
	link.Connect("")
	scenario.Datalink = link

	p, err := Build("ofadprm", scenario, config.Default("ofadprm"), nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	fp := p.(*planner.FAPRM)
	if !fp.OnlineStatus() {
		t.Errorf("an online planner with a datalink should come up in online mode")
	}

	// A non-online variant must stay offline even with a datalink present.
	p2, err := Build("fadprm", scenario, config.Default("fadprm"), nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if p2.(*planner.FAPRM).OnlineStatus() {
		t.Errorf("fadprm has no online cycle to enable")
	}
}

func TestScenarioObstacleIngestion(t *testing.T) {
	scenario := testScenario()
	ob := obstacle.Obstacle{
		Id:    "wx",
		Shape: obstacle.Shape{Kind: obstacle.Sphere, Center: geo.Point3{0, 0, 0}, Radius: 10},
		Start: time.Now().Add(-time.Hour), End: time.Now().Add(time.Hour),
		Cost:  40,
	}
	if !scenario.EmbedObstacle(ob, nil) {
		t.Fatalf("EmbedObstacle failed")
	}
	if !scenario.UnembedObstacle(ob, nil) {
		t.Fatalf("UnembedObstacle failed")
	}
	if scenario.UnembedObstacle(ob, nil) {
		t.Errorf("double unembed should report false")
	}
}
