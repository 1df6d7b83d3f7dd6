// pkg/planner/planner.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package planner implements the heuristic search and sampling-based
// motion planners sharing a common environment abstraction and cost
// model: ForwardAStar, ThetaStar, ARAStar, the PRM family (BasicPRM,
// LazyPRM, RigidPRM), the RRT family (RRT, HRRT, ARRT, RRTStar, DRRT,
// ADRRT) and the FAPRM family (FAPRM, FADPRM, OFADPRM, RADPRM).
//
// Planner families are expressed as capability interfaces (Planner,
// AnytimePlanner, OnlinePlanner, DynamicPlanner) that tagged-struct
// planners implement a la carte, with shared machinery (open/closed
// bookkeeping, the revision broadcaster) composed in rather than
// inherited.
package planner

import (
	"time"

	"github.com/mmp/flightplan/pkg/aircraft"
	"github.com/mmp/flightplan/pkg/environment"
	"github.com/mmp/flightplan/pkg/geo"
	"github.com/mmp/flightplan/pkg/log"
	"github.com/mmp/flightplan/pkg/trajectory"
)

// Planner is the capability every concrete planner implements.
type Planner interface {
	Plan(origin, destination geo.Position, etd time.Time) trajectory.Trajectory
	PlanVia(origin, destination geo.Position, via []geo.Position, etd time.Time) trajectory.Trajectory
	Supports(env environment.Environment) bool
	SupportsWaypoints(wps []geo.Position) bool
	RevisePlan(t trajectory.Trajectory)
	Subscribe(l trajectory.Listener)
}

// AnytimePlanner is implemented by planners that progressively refine a
// feasible solution while time remains.
type AnytimePlanner interface {
	Planner
	MinQuality() float32
	MaxQuality() float32
	QualityImprovement() float32
	SetMinQuality(float32) error
	SetMaxQuality(float32) error
	SetQualityImprovement(float32) error
	Deadline() time.Time
	SetDeadline(time.Time)
}

// OnlinePlanner is implemented by planners that revise the remaining
// plan as the aircraft advances.
type OnlinePlanner interface {
	Planner
	OnlineStatus() bool
	SetOnlineStatus(bool)
	PositionThreshold() float32
	SetPositionThreshold(float32) error
	AircraftTimedPosition() (geo.Position, time.Time)
	UpdateStart(pos geo.Position)
}

// DynamicPlanner is implemented by planners that repair a plan in place
// after a world change rather than replanning from scratch (DRRT,
// ADRRT, FADPRM's propagateCorrections).
type DynamicPlanner interface {
	Planner
	ObstacleChanged()
}

// ErrInvalidParameter is returned by AnytimePlanner/OnlinePlanner setters
// when a caller-supplied value violates an invariant.
type ErrInvalidParameter struct{ Reason string }

func (e ErrInvalidParameter) Error() string { return "invalid parameter: " + e.Reason }

// AbstractPlanner holds the fields every concrete planner shares: cost
// and risk policy, an aircraft capabilities reference, an environment
// reference, and the plan-revision broadcaster. Concrete planners embed
// this and add family-specific state.
type AbstractPlanner struct {
	Env        environment.Environment
	Aircraft   aircraft.Capabilities
	CostPolicy environment.CostPolicy
	RiskPolicy environment.RiskPolicy
	Logger     *log.Logger

	revisions trajectory.Broadcaster
}

func NewAbstractPlanner(env environment.Environment, ac aircraft.Capabilities,
	cp environment.CostPolicy, rp environment.RiskPolicy, lg *log.Logger) AbstractPlanner {
	return AbstractPlanner{Env: env, Aircraft: ac, CostPolicy: cp, RiskPolicy: rp, Logger: lg}
}

func (p *AbstractPlanner) RevisePlan(t trajectory.Trajectory) {
	if p.Logger != nil {
		if t.Empty() {
			p.Logger.Warn("plan revision: no plan", "reason", "NoPlan")
		} else {
			p.Logger.Info("plan revision", "waypoints", len(t.Waypoints), "cost", t.Cost())
		}
	}
	p.revisions.Notify(t)
}

func (p *AbstractPlanner) Subscribe(l trajectory.Listener) {
	p.revisions.Subscribe(l)
}

// SupportsWaypoints reports whether none of wps conflicts with terrain,
// consulting the environment's own conflict checks where available.
func (p *AbstractPlanner) SupportsWaypoints(wps []geo.Position) bool {
	for _, w := range wps {
		if !p.Env.Contains(w) {
			return false
		}
		if rm, ok := p.Env.(*environment.Roadmap); ok && rm.CheckConflict(w) {
			return false
		}
	}
	return true
}
