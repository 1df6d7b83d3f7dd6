// pkg/environment/environment.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package environment implements the spatio-temporal environment model
// planners read from: a common interface over two concrete variants
// (Grid, a single-resolution cubic subdivision with embedded obstacles; and
// Roadmap, a continuous box with sampled waypoints and explicit edges),
// each owning an interval tree of cost intervals and the embedded
// obstacle set.
//
// Rather than downcasting on the concrete environment type throughout
// the query path, the variant is a tagged sum: planners declare which
// Kind they support and Supports() becomes a simple comparison.
package environment

import (
	"time"

	"github.com/mmp/flightplan/pkg/costinterval"
	"github.com/mmp/flightplan/pkg/geo"
	"github.com/mmp/flightplan/pkg/log"
	"github.com/mmp/flightplan/pkg/obstacle"
)

// Kind tags which concrete variant an Environment is, replacing
// runtime type assertions with a compile-time-checkable comparison.
type Kind int

const (
	GridKind Kind = iota
	RoadmapKind
)

// CostPolicy aggregates the per-cell/per-edge cost list traversed by a
// move into a single scalar.
type CostPolicy int

const (
	Minimum CostPolicy = iota
	Maximum
	Average
)

func (p CostPolicy) Combine(costs []float32) float32 {
	if len(costs) == 0 {
		return 0
	}
	switch p {
	case Minimum:
		m := costs[0]
		for _, c := range costs[1:] {
			m = geo.Min(m, c)
		}
		return m
	case Maximum:
		m := costs[0]
		for _, c := range costs[1:] {
			m = geo.Max(m, c)
		}
		return m
	default: // Average
		var sum float32
		for _, c := range costs {
			sum += c
		}
		return sum / float32(len(costs))
	}
}

// RiskPolicy maps a cost magnitude to either admissible or infinite,
// progressively stricter: Ignorance never rejects, Safety rejects above
// a moderate threshold, Avoidance rejects above a caller-supplied
// (lower) threshold.
type RiskPolicy struct {
	Kind      RiskKind
	Threshold float32 // only meaningful for Avoidance
}

type RiskKind int

const (
	Ignorance RiskKind = iota
	Safety
	Avoidance
)

const safetyThreshold = 1000

// Admit returns the admissible cost for the given magnitude, or +Inf if
// the risk policy rejects it outright.
func (p RiskPolicy) Admit(cost float32) float32 {
	switch p.Kind {
	case Ignorance:
		return cost
	case Safety:
		if cost > safetyThreshold {
			return inf
		}
		return cost
	case Avoidance:
		if cost > p.Threshold {
			return inf
		}
		return cost
	default:
		return cost
	}
}

var inf = float32(1e30)

func Inf() float32 { return inf }

func IsInf(v float32) bool { return v >= inf }

// Environment is the common interface both concrete variants satisfy.
// Planners that need variant-specific operations (SampleRandomPosition,
// CheckConflict, roadmap growth) type-assert to *Roadmap after checking
// Kind().
type Environment interface {
	Kind() Kind

	// Lock/Unlock is the single logical lock serializing environment
	// mutation (Embed, Unembed, SetTime, AddCostInterval) against planner
	// iterations. The planner itself never takes it; the obstacle
	// ingestion path holds it for the duration of each mutation, and a
	// caller interleaving mutation with plan() steps holds it across the
	// step.
	Lock(lg *log.Logger)
	Unlock(lg *log.Logger)

	Globe() *geo.Globe
	SetGlobe(*geo.Globe)
	Now() time.Time
	SetTime(time.Time)

	AddCostInterval(costinterval.CostInterval)
	RemoveCostInterval(id string, start time.Time) bool

	Embed(obstacle.Obstacle) bool
	Unembed(obstacle.Obstacle) bool
	UnembedAll()

	Distance(a, b geo.Position) float32
	NormalizedDistance(a, b geo.Position) float32
	Contains(p geo.Position) bool

	// GetStepCost is the cost of a single edge between adjacent
	// environment vertices (grid cells, or two roadmap waypoints joined
	// by an edge). Returns +Inf (Inf()) if the positions aren't
	// neighbors or the risk policy rejects the traversal.
	GetStepCost(p, q geo.Position, start, end time.Time, cp CostPolicy, rp RiskPolicy) float32

	// GetLegCost is the cost of a possibly-long leg between two
	// arbitrary positions (used by Theta*'s shortcut and roadmap direct
	// connections), computed by walking the cells/obstacles the segment
	// passes through rather than requiring adjacency.
	GetLegCost(p, q geo.Position, start, end time.Time, cp CostPolicy, rp RiskPolicy) float32

	Neighbors(p geo.Position) []geo.Position
	AreNeighbors(a, b geo.Position) bool
}

// LineOfSight reports whether the straight segment a-b is unobstructed:
// GetLegCost along it is finite under Ignorance risk with zero duration
// (pure geometric conflict, no time-varying hazard factored in). Used by
// Theta*'s any-angle shortcut test.
func LineOfSight(env Environment, a, b geo.Position, at time.Time) bool {
	c := env.GetLegCost(a, b, at, at, Average, RiskPolicy{Kind: Ignorance})
	return !IsInf(c)
}
