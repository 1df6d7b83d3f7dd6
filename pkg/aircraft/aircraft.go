// pkg/aircraft/aircraft.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package aircraft declares the planning engine's view of the vehicle:
// a Capabilities interface yielding travel duration and feasibility for
// a leg. The full aircraft performance model lives outside this module;
// planners only ever see this reduced interface.
package aircraft

import (
	"time"

	"github.com/mmp/flightplan/pkg/geo"
)

// Leg is a single straight-line segment the aircraft is asked to fly.
type Leg struct {
	From, To geo.Position
}

// Capabilities is the reduced aircraft performance model the planning
// engine depends on. A real implementation (airspeed/climb model, wind
// correction, etc.) lives outside this module; planners only ever see
// this interface.
type Capabilities interface {
	// GetEstimatedTime returns the instant the aircraft would arrive at
	// Leg.To given it departs Leg.From at start. ok is false if the leg
	// is infeasible (e.g., climb rate exceeded, distance unreachable in
	// one hop) -- callers must treat that as InfeasibleLeg and discard
	// the candidate, never abort the planner.
	GetEstimatedTime(leg Leg, start time.Time) (eto time.Time, ok bool)

	// IsFeasible is a cheaper feasibility-only check used by planners
	// (Theta* shortcut acceptance, RRT FEASIBLE extension) that don't
	// need the resulting ETO.
	IsFeasible(from, to geo.Position) bool

	// SeparationRadius is the minimum horizontal clearance (nautical
	// miles) the aircraft must keep from obstacle volumes, used by the
	// environment's segment conflict checks.
	SeparationRadius() float32
}

// Uniform is a constant-speed, unconstrained-climb Capabilities
// implementation useful for tests and for planners run against the
// sampling environment without a full performance model wired in.
type Uniform struct {
	GroundSpeed float32 // knots
	ClimbRate   float32 // feet/minute, 0 means unconstrained
	MaxLegNM    float32 // 0 means unconstrained
	Separation  float32 // nautical miles
}

func (u Uniform) GetEstimatedTime(leg Leg, start time.Time) (time.Time, bool) {
	if !u.IsFeasible(leg.From, leg.To) {
		return time.Time{}, false
	}
	dist := geo.Distance3D(leg.From, leg.To)
	if u.GroundSpeed <= 0 {
		return time.Time{}, false
	}
	hours := float64(dist) / float64(u.GroundSpeed)
	return start.Add(time.Duration(hours * float64(time.Hour))), true
}

func (u Uniform) IsFeasible(from, to geo.Position) bool {
	if u.MaxLegNM > 0 && geo.Distance3D(from, to) > u.MaxLegNM {
		return false
	}
	if u.ClimbRate > 0 {
		dClimb := to.Elevation - from.Elevation
		if dClimb < 0 {
			dClimb = -dClimb
		}
		dist := geo.GreatCircleDistance(from, to)
		if u.GroundSpeed <= 0 {
			return false
		}
		minutes := float64(dist) / float64(u.GroundSpeed) * 60
		if minutes > 0 && float64(dClimb)/minutes > float64(u.ClimbRate) {
			return false
		}
	}
	return true
}

func (u Uniform) SeparationRadius() float32 {
	if u.Separation > 0 {
		return u.Separation
	}
	return 1 // nm, conservative default
}
