// pkg/waypoint/waypoint.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package waypoint implements the Waypoint/Edge graph nodes shared by
// every planner and the arena that owns them. Waypoints don't hold
// pointers to each other: parent links (and edge endpoints) are integer
// handles (Id) into a Pool, which sidesteps reference cycles and makes
// snapshotting a Pool for anytime backup a plain slice copy.
package waypoint

import (
	"log/slog"
	"math"
	"time"

	"github.com/mmp/flightplan/pkg/geo"
)

// Id is a handle into a Pool. NoId (-1) means "no waypoint"; the zero
// value is the first waypoint a Pool hands out.
type Id int32

const NoId Id = -1

// Waypoint is a time-stamped 3D position node in a plan or roadmap. Not
// every planner uses every field: Parent/G/H are A*-family;
// Density/Beta/Search are FAPRM-family. Roadmap adjacency is not stored
// here; it lives on the environment's edge list.
type Waypoint struct {
	Position geo.Position

	ETO    time.Time
	Parent Id

	G              float32 // accumulated cost from start; +Inf means unreached
	H              float32 // heuristic estimate to goal
	Cost           float32 // planner-specific objective, may differ from G
	DistanceToGoal float32
	TimeToGo       time.Duration
	DistanceToGo   float32

	Density int     // roadmap neighbor count within maxDistance
	Beta    float32 // FAPRM inflation weight at time of expansion
	Search  int64   // last search id this waypoint was touched by
}

// New returns a fresh, unreached Waypoint at the given position.
func New(pos geo.Position) Waypoint {
	return Waypoint{
		Position: pos,
		Parent:   NoId,
		G:        float32(math.Inf(1)),
		H:        0,
	}
}

func (w Waypoint) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Any("position", w.Position),
		slog.Time("eto", w.ETO),
		slog.Float64("g", float64(w.G)),
		slog.Float64("h", float64(w.H)))
}

// Reached reports whether the waypoint has been assigned a finite cost.
// Both the +Inf that New sets and the planners' environment.Inf()
// sentinel (1e30) count as unreached.
func (w Waypoint) Reached() bool {
	return w.G < 1e30
}

// Edge is a connection between two waypoints in a roadmap: its endpoint
// handles, the segment length, and the desirability/lambda blending
// fields used by the FAPRM family. Time-varying cost along the segment
// is queried from the environment, which intersects it against the
// embedded obstacle set on demand.
type Edge struct {
	U, V          Id
	Desirability  float32 // in [0,1]; 0.5 if no desirability zone intersects
	Lambda        float32 // in [0,1]; blend weight between step cost and desirability
	Length        float32 // nautical miles
}
