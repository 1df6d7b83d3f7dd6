// pkg/planner/astar.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package planner

import (
	"time"

	"github.com/mmp/flightplan/pkg/aircraft"
	"github.com/mmp/flightplan/pkg/environment"
	"github.com/mmp/flightplan/pkg/geo"
	"github.com/mmp/flightplan/pkg/trajectory"
	"github.com/mmp/flightplan/pkg/util"
	"github.com/mmp/flightplan/pkg/waypoint"
)

// ForwardAStar is heuristic graph search over a Grid or Roadmap
// environment: a min-heap of open waypoints ordered by f=g+h, closed-set
// bookkeeping, and parent-chain plan reconstruction.
type ForwardAStar struct {
	AbstractPlanner

	pool   *waypoint.Pool
	open   *OpenQueue
	closed map[waypoint.Id]bool
	seq    int64 // insertion-order tiebreak counter
}

func NewForwardAStar(ap AbstractPlanner) *ForwardAStar {
	return &ForwardAStar{
		AbstractPlanner: ap,
		pool:            waypoint.NewPool(),
		open:            NewOpenQueue(),
		closed:          make(map[waypoint.Id]bool),
	}
}

func (p *ForwardAStar) Supports(env environment.Environment) bool {
	return env.Kind() == environment.GridKind || env.Kind() == environment.RoadmapKind
}

func (p *ForwardAStar) Plan(origin, destination geo.Position, etd time.Time) trajectory.Trajectory {
	return p.PlanVia(origin, destination, nil, etd)
}

func (p *ForwardAStar) PlanVia(origin, destination geo.Position, via []geo.Position, etd time.Time) trajectory.Trajectory {
	legs := append(append([]geo.Position{origin}, via...), destination)
	var full []waypoint.Waypoint
	depart := etd
	for i := 0; i+1 < len(legs); i++ {
		t := p.planLeg(legs[i], legs[i+1], depart)
		if t.Empty() {
			empty := trajectory.Trajectory{}
			p.RevisePlan(empty)
			return empty
		}
		if i > 0 {
			t.Waypoints = t.Waypoints[1:] // drop duplicate junction waypoint
		}
		full = append(full, t.Waypoints...)
		depart = full[len(full)-1].ETO
	}
	result := trajectory.Trajectory{Waypoints: full}
	p.RevisePlan(result)
	return result
}

func (p *ForwardAStar) planLeg(origin, destination geo.Position, etd time.Time) trajectory.Trajectory {
	p.pool.Reset()
	p.open.Reset()
	p.closed = make(map[waypoint.Id]bool)
	p.seq = 0

	start := waypoint.New(origin)
	start.G = 0
	start.ETO = etd
	startId := p.pool.Add(start)
	goalId := p.pool.FindOrAdd(destination)

	p.open.Upsert(startId, 0, 0)

	for {
		cur, ok := p.open.PopBest()
		if !ok {
			return trajectory.Trajectory{}
		}
		if cur == goalId {
			return p.reconstruct(cur)
		}
		p.closed[cur] = true

		for _, nb := range p.expand(cur, goalId) {
			if p.closed[nb] {
				continue
			}
			if p.computeCost(cur, nb, goalId) {
				w := p.pool.Get(nb)
				p.seq++
				p.open.Upsert(nb, w.G+w.H, float32(p.seq))
			}
		}
	}
}

// expand enumerates candidate successors of source: the environment's
// neighbors of its position (adjacent grid cells, or roadmap vertices
// joined by an edge); if source is adjacent to the goal, goal is
// additionally offered.
func (p *ForwardAStar) expand(source, goal waypoint.Id) []waypoint.Id {
	src := p.pool.Get(source)
	out := util.MapSlice(p.Env.Neighbors(src.Position), p.pool.FindOrAdd)
	if p.Env.AreNeighbors(src.Position, p.pool.Get(goal).Position) {
		out = append(out, goal)
	}
	return out
}

// computeCost applies the relaxation rule: if src.g + stepCost < tgt.g,
// update tgt's parent/g/eto and report true so the caller re-inserts it
// into open with the new key.
func (p *ForwardAStar) computeCost(src, tgt, goal waypoint.Id) bool {
	s, t := p.pool.Get(src), p.pool.Get(tgt)
	eto, ok := p.Aircraft.GetEstimatedTime(aircraft.Leg{From: s.Position, To: t.Position}, s.ETO)
	if !ok {
		if p.Logger != nil {
			p.Logger.Warn("infeasible leg", "from", s.Position, "to", t.Position)
		}
		return false
	}
	step := p.Env.GetStepCost(s.Position, t.Position, s.ETO, eto, p.CostPolicy, p.RiskPolicy)
	if environment.IsInf(step) {
		return false
	}
	g := s.G + step
	if g < t.G {
		t.Parent = src
		t.G = g
		t.ETO = eto
		if t.H == 0 {
			t.H = p.Env.NormalizedDistance(t.Position, p.pool.Get(goal).Position)
		}
		p.pool.Set(tgt, t)
		return true
	}
	return false
}

func (p *ForwardAStar) reconstruct(goal waypoint.Id) trajectory.Trajectory {
	var rev []waypoint.Waypoint
	for id := goal; id != waypoint.NoId; {
		w := p.pool.Get(id)
		rev = append(rev, w)
		if w.Parent == id {
			break
		}
		id = w.Parent
	}
	out := make([]waypoint.Waypoint, len(rev))
	for i, w := range rev {
		out[len(rev)-1-i] = w
	}
	return trajectory.Trajectory{Waypoints: out}
}
