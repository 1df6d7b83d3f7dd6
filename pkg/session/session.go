// pkg/session/session.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package session is the glue between a named planner specification and a
// populated scenario: it resolves "faprm" or "rrtStar" to a constructor,
// applies a config.PlannerConfig's tunables onto the concrete planner, seeds
// the environment's desirability zones, and wires an online planner's
// aircraft-position feed to a datalink, so callers (cmd/planviz, tests) never
// construct a planner by hand.
package session

import (
	"fmt"
	"time"

	"github.com/mmp/flightplan/pkg/aircraft"
	"github.com/mmp/flightplan/pkg/archive"
	"github.com/mmp/flightplan/pkg/config"
	"github.com/mmp/flightplan/pkg/datalink"
	"github.com/mmp/flightplan/pkg/environment"
	"github.com/mmp/flightplan/pkg/geo"
	"github.com/mmp/flightplan/pkg/log"
	"github.com/mmp/flightplan/pkg/obstacle"
	"github.com/mmp/flightplan/pkg/planner"
	"github.com/mmp/flightplan/pkg/trajectory"
	"github.com/mmp/flightplan/pkg/util"
)

// Scenario is a populated planning problem: the environment the planner
// searches, the aircraft it plans for, the desirability zones the FAPRM
// family blends into edge cost, and (optionally) a datalink connection an
// online planner polls for the aircraft's live position.
type Scenario struct {
	Environment       environment.Environment
	Aircraft          aircraft.Capabilities
	DesirabilityZones []obstacle.DesirabilityZone
	Datalink          datalink.AircraftLink
}

// constructors maps every planner name to its constructor, all of which
// share the single func(AbstractPlanner) *Concrete shape established in
// astar.go/prm.go/rrt.go/faprm.go; the map itself is the named-planner
// lookup.
var constructors = map[string]func(planner.AbstractPlanner) planner.Planner{
	"forwardAStar": func(ap planner.AbstractPlanner) planner.Planner { return planner.NewForwardAStar(ap) },
	"thetaStar":    func(ap planner.AbstractPlanner) planner.Planner { return planner.NewThetaStar(ap) },
	"araStar":      func(ap planner.AbstractPlanner) planner.Planner { return planner.NewARAStar(ap) },
	"basicPRM":     func(ap planner.AbstractPlanner) planner.Planner { return planner.NewBasicPRM(ap) },
	"lazyPRM":      func(ap planner.AbstractPlanner) planner.Planner { return planner.NewLazyPRM(ap) },
	"rigidPRM":     func(ap planner.AbstractPlanner) planner.Planner { return planner.NewRigidPRM(ap) },
	"rrt":          func(ap planner.AbstractPlanner) planner.Planner { return planner.NewRRT(ap) },
	"hrrt":         func(ap planner.AbstractPlanner) planner.Planner { return planner.NewHRRT(ap) },
	"arrt":         func(ap planner.AbstractPlanner) planner.Planner { return planner.NewARRT(ap) },
	"rrtStar":      func(ap planner.AbstractPlanner) planner.Planner { return planner.NewRRTStar(ap) },
	"drrt":         func(ap planner.AbstractPlanner) planner.Planner { return planner.NewDRRT(ap) },
	"adrrt":        func(ap planner.AbstractPlanner) planner.Planner { return planner.NewADRRT(ap) },
	"faprm":        func(ap planner.AbstractPlanner) planner.Planner { return planner.NewFAPRM(ap) },
	"fadprm":       func(ap planner.AbstractPlanner) planner.Planner { return planner.NewFADPRM(ap) },
	"ofadprm":      func(ap planner.AbstractPlanner) planner.Planner { return planner.NewOFADPRM(ap) },
	"radprm":       func(ap planner.AbstractPlanner) planner.Planner { return planner.NewRADPRM(ap) },
}

// Names lists every planner name Build accepts.
func Names() []string {
	return []string{
		"forwardAStar", "thetaStar", "araStar",
		"basicPRM", "lazyPRM", "rigidPRM",
		"rrt", "hrrt", "arrt", "rrtStar", "drrt", "adrrt",
		"faprm", "fadprm", "ofadprm", "radprm",
	}
}

func costPolicy(name string) environment.CostPolicy {
	switch name {
	case "maximum":
		return environment.Maximum
	case "average":
		return environment.Average
	default:
		return environment.Minimum
	}
}

func riskPolicy(name string, threshold float32) environment.RiskPolicy {
	switch name {
	case "ignorance":
		return environment.RiskPolicy{Kind: environment.Ignorance}
	case "avoidance":
		return environment.RiskPolicy{Kind: environment.Avoidance, Threshold: threshold}
	default:
		return environment.RiskPolicy{Kind: environment.Safety}
	}
}

// Build resolves cfg.Planner to a constructor, applies the rest of cfg's
// tunables onto the constructed planner, seeds the scenario's desirability
// zones into the environment, and (for an online-capable planner with a
// connected datalink) wires the aircraft's live position into the planner's
// start-shift cycle.
func Build(name string, scenario Scenario, cfg config.PlannerConfig, lg *log.Logger) (planner.Planner, error) {
	ctor, ok := constructors[name]
	if !ok {
		return nil, fmt.Errorf("session: unknown planner %q", name)
	}

	var e util.ErrorLogger
	cfg.Validate(&e)
	if e.HaveErrors() {
		e.PrintErrors(lg)
		return nil, fmt.Errorf("session: invalid config:\n%s", e.String())
	}

	if rm, ok := scenario.Environment.(*environment.Roadmap); ok {
		for _, z := range scenario.DesirabilityZones {
			rm.AddDesirabilityZone(z)
		}
	}

	ap := planner.NewAbstractPlanner(scenario.Environment, scenario.Aircraft,
		costPolicy(cfg.CostPolicy), riskPolicy(cfg.RiskPolicy, cfg.RiskThreshold), lg)

	p := ctor(ap)
	applyConfig(p, cfg)
	wireDatalink(p, scenario.Datalink)

	return p, nil
}

// applyConfig pushes cfg's tunables onto whichever concrete type p is;
// fields a given planner doesn't have are simply not touched, matching
// config.Default's planner-agnostic field set.
func applyConfig(p planner.Planner, cfg config.PlannerConfig) {
	switch v := p.(type) {
	case *planner.ForwardAStar:
		// ForwardAStar has no tunables beyond the shared AbstractPlanner.
	case *planner.ThetaStar:
	case *planner.ARAStar:
		v.SetMinQuality(cfg.MinQuality)
		v.SetMaxQuality(cfg.MaxQuality)
		v.SetQualityImprovement(cfg.QualityImprovement)
	case *planner.PRM:
		v.MaxIterations = cfg.MaxIterations
		v.MaxDistance = cfg.MaxDistance
		v.MaxNeighbors = cfg.MaxNeighbors
		v.Lambda = cfg.Lambda
	case *planner.RRT:
		v.MaxIterations = cfg.MaxIterations
		v.Bias = cfg.Bias
		v.Epsilon = cfg.Epsilon
		v.GoalThreshold = cfg.GoalThreshold
		v.RewireRadius = cfg.RewireRadius
		v.KNearest = cfg.KNearest
		v.ProbFloor = cfg.ProbFloor
		if v.Anytime {
			v.MinQualityBound = cfg.MinQuality
			v.MaxQualityBound = cfg.MaxQuality
			v.QualityImprovementBy = cfg.QualityImprovement
		}
	case *planner.FAPRM:
		v.MaxIterations = cfg.MaxIterations
		v.Bias = cfg.Bias
		v.MaxDistance = cfg.MaxDistance
		v.MaxNeighbors = cfg.MaxNeighbors
		v.Lambda = cfg.Lambda
		v.InitialBeta = cfg.InitialBeta
		v.FinalBeta = cfg.FinalBeta
		v.StepBeta = cfg.StepBeta
		v.StartShiftLookahead = cfg.StartShiftLookahead
		v.SetPositionThreshold(cfg.PositionThreshold)
		v.GoalThresholdOnline = cfg.GoalThreshold
	}
}

// wireDatalink binds an OFADPRM/RADPRM planner's aircraft position feed to
// the scenario's datalink, so the online start-shift cycle polls the real
// (or simulated) aircraft instead of defaulting to the start waypoint's own
// position. Only FAPRM exposes SetAircraftPositionSource; other planner
// families have no online cycle to wire.
func wireDatalink(p planner.Planner, link datalink.AircraftLink) {
	if link == nil {
		return
	}
	fp, ok := p.(*planner.FAPRM)
	if !ok || !fp.Online {
		return
	}
	fp.SetAircraftPositionSource(func() (geo.Position, time.Time) {
		pos, at, err := link.GetAircraftTimedPosition()
		if err != nil {
			return geo.Position{}, time.Time{}
		}
		return pos, at
	})
	fp.SetOnlineStatus(true)
}

// EmbedObstacle pushes ob into the scenario's environment under the
// environment lock, serializing the mutation against any in-flight
// planner step. This is the obstacle ingestion entry point: datalink
// callbacks and weather-bulletin sources go through here rather than
// calling Environment.Embed directly. A dynamic planner should be told
// via ObstacleChanged afterwards.
func (s Scenario) EmbedObstacle(ob obstacle.Obstacle, lg *log.Logger) bool {
	s.Environment.Lock(lg)
	defer s.Environment.Unlock(lg)
	return s.Environment.Embed(ob)
}

// UnembedObstacle reverses a prior EmbedObstacle under the same lock.
func (s Scenario) UnembedObstacle(ob obstacle.Obstacle, lg *log.Logger) bool {
	s.Environment.Lock(lg)
	defer s.Environment.Unlock(lg)
	return s.Environment.Unembed(ob)
}

// ArchiveRevisions subscribes a TrajectoryArchiver to a planner's revision
// stream, so every anytime/online pass is persisted as it's published
// rather than only the final one.
func ArchiveRevisions(p planner.Planner, plannerName string, a *archive.TrajectoryArchiver) {
	p.Subscribe(func(t trajectory.Trajectory) {
		a.Write(archive.Record{Planner: plannerName, Quality: t.Cost(), Trajectory: t})
	})
}
