// pkg/trajectory/trajectory.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package trajectory is the output type planners emit: an ordered
// sequence of waypoints from start to goal, plus the pubsub broadcaster
// used to deliver anytime/online plan revisions.
package trajectory

import (
	"log/slog"

	"github.com/mmp/flightplan/pkg/geo"
	"github.com/mmp/flightplan/pkg/waypoint"
)

// Trajectory is an ordered plan from start to goal. An empty Trajectory
// (len(Waypoints)==0) is how planners surface "no plan found": not an
// error, a zero-value result.
type Trajectory struct {
	Waypoints []waypoint.Waypoint
}

func (t Trajectory) Empty() bool { return len(t.Waypoints) == 0 }

// Cost returns the accumulated cost at the final waypoint, or +Inf if
// the trajectory is empty.
func (t Trajectory) Cost() float32 {
	if t.Empty() {
		return float32(1e30)
	}
	return t.Waypoints[len(t.Waypoints)-1].G
}

// Length returns the geometric length of the trajectory in nautical
// miles, summing the straight-line distance of each leg.
func (t Trajectory) Length() float32 {
	var total float32
	for i := 0; i+1 < len(t.Waypoints); i++ {
		total += geo.Distance3D(t.Waypoints[i].Position, t.Waypoints[i+1].Position)
	}
	return total
}

// Reverse returns a new Trajectory visiting the same waypoints in the
// opposite order.
func (t Trajectory) Reverse() Trajectory {
	n := len(t.Waypoints)
	out := make([]waypoint.Waypoint, n)
	for i, w := range t.Waypoints {
		out[n-1-i] = w
	}
	return Trajectory{Waypoints: out}
}

func (t Trajectory) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("waypoints", len(t.Waypoints)),
		slog.Float64("cost", float64(t.Cost())))
}

// Listener receives a Trajectory every time a planner completes a pass
// (an initial solution, an anytime improvement, or an online
// revision). The empty Trajectory is a valid delivery (NoPlan).
type Listener func(Trajectory)

// Broadcaster fans a revision out to every subscribed Listener; plan
// revisions are broadcast-style, not a single callback.
type Broadcaster struct {
	listeners []Listener
}

func (b *Broadcaster) Subscribe(l Listener) {
	b.listeners = append(b.listeners, l)
}

func (b *Broadcaster) Notify(t Trajectory) {
	for _, l := range b.listeners {
		l(t)
	}
}
