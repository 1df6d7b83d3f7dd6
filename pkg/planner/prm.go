// pkg/planner/prm.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package planner

import (
	"time"

	"github.com/mmp/flightplan/pkg/aircraft"
	"github.com/mmp/flightplan/pkg/environment"
	"github.com/mmp/flightplan/pkg/geo"
	"github.com/mmp/flightplan/pkg/trajectory"
	"github.com/mmp/flightplan/pkg/waypoint"
)

// PRMVariant selects construction-time collision checking: BasicPRM and
// RigidPRM both validate edges eagerly and never re-check them at query
// time (the two take the same code paths; as for every variant, the
// roadmap still drops an edge that a later hard obstacle crosses);
// LazyPRM skips validation during construction and only discovers a
// blocked edge when the query tries to use it.
type PRMVariant int

const (
	BasicPRM PRMVariant = iota
	LazyPRM
	RigidPRM
)

// PRM is the probabilistic roadmap family: BasicPRM, LazyPRM, RigidPRM.
// Construction and query share this type; Variant selects the
// collision-checking discipline.
type PRM struct {
	AbstractPlanner

	Variant       PRMVariant
	MaxIterations int
	MaxDistance   float32
	MaxNeighbors  int
	Lambda        float32

	rm *environment.Roadmap
}

// NewBasicPRM, NewLazyPRM and NewRigidPRM are the named constructors the
// session builder looks up by planner name; all three return the same
// *PRM type tagged with the requested Variant.
func NewBasicPRM(ap AbstractPlanner) *PRM { return NewPRM(ap, BasicPRM) }
func NewLazyPRM(ap AbstractPlanner) *PRM  { return NewPRM(ap, LazyPRM) }
func NewRigidPRM(ap AbstractPlanner) *PRM { return NewPRM(ap, RigidPRM) }

func NewPRM(ap AbstractPlanner, variant PRMVariant) *PRM {
	rm, _ := ap.Env.(*environment.Roadmap)
	return &PRM{
		AbstractPlanner: ap,
		Variant:         variant,
		MaxIterations:   500,
		MaxDistance:     200,
		MaxNeighbors:    10,
		Lambda:          0.5,
		rm:              rm,
	}
}

func (p *PRM) Supports(env environment.Environment) bool {
	_, ok := env.(*environment.Roadmap)
	return ok
}

// Construct grows the roadmap by sampling up to MaxIterations
// collision-free waypoints and connecting each to nearby existing
// waypoints via connectWaypoint.
func (p *PRM) Construct() {
	for i := 0; i < p.MaxIterations; i++ {
		pos := p.rm.SampleRandomPosition()
		if p.rm.CheckConflict(pos) {
			continue
		}
		id := p.rm.AddWaypoint(pos)
		p.connectWaypoint(id)
	}
}

// connectWaypoint sorts existing waypoints by distance to id's position
// and accepts edges to up to MaxNeighbors of them within MaxDistance
// that survive a collision check against the current obstacle set
// (skipped entirely for LazyPRM, which validates only at query time).
func (p *PRM) connectWaypoint(id waypoint.Id) {
	pos := p.rm.Pool.Get(id).Position
	candidates := p.rm.FindNearest(pos, p.rm.Pool.Len())
	connected := 0
	for _, c := range candidates {
		if connected >= p.MaxNeighbors {
			break
		}
		if c == id {
			continue
		}
		other := p.rm.Pool.Get(c).Position
		if p.rm.Distance(pos, other) > p.MaxDistance {
			continue
		}
		if p.Variant != LazyPRM && p.rm.CheckConflictSegment(pos, other, p.Aircraft) {
			continue
		}
		p.rm.AddEdge(id, c, p.Lambda)
		connected++
	}
}

func (p *PRM) Plan(origin, destination geo.Position, etd time.Time) trajectory.Trajectory {
	return p.PlanVia(origin, destination, nil, etd)
}

func (p *PRM) PlanVia(origin, destination geo.Position, via []geo.Position, etd time.Time) trajectory.Trajectory {
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
			t.Waypoints = t.Waypoints[1:]
		}
		full = append(full, t.Waypoints...)
		depart = full[len(full)-1].ETO
	}
	result := trajectory.Trajectory{Waypoints: full}
	p.RevisePlan(result)
	return result
}

// planLeg extends the roadmap with origin/destination (same connection
// rule as Construct) and runs A* over the roadmap's edges. LazyPRM
// retries with the offending edge stripped whenever the search returns a
// path containing a now-invalid edge.
func (p *PRM) planLeg(origin, destination geo.Position, etd time.Time) trajectory.Trajectory {
	startId := p.rm.AddWaypoint(origin)
	p.connectWaypoint(startId)
	goalId := p.rm.AddWaypoint(destination)
	p.connectWaypoint(goalId)

	for attempt := 0; attempt < p.MaxIterations; attempt++ {
		p.resetSearchState()
		sw := p.rm.Pool.Get(startId)
		sw.G = 0
		sw.ETO = etd
		p.rm.Pool.Set(startId, sw)

		path, ok := p.search(startId, goalId)
		if !ok {
			return trajectory.Trajectory{}
		}
		if p.Variant != LazyPRM {
			return path
		}
		if blocked, u, v := p.firstBlockedEdge(path); blocked {
			p.rm.RemoveEdge(u, v)
			continue
		}
		return path
	}
	return trajectory.Trajectory{}
}

func (p *PRM) resetSearchState() {
	for _, id := range p.rm.Pool.All() {
		w := p.rm.Pool.Get(id)
		w.G = environment.Inf()
		w.Parent = waypoint.NoId
		p.rm.Pool.Set(id, w)
	}
}

func (p *PRM) search(startId, goalId waypoint.Id) (trajectory.Trajectory, bool) {
	open := NewOpenQueue()
	closed := make(map[waypoint.Id]bool)
	var seq int64
	open.Upsert(startId, 0, 0)

	for {
		cur, ok := open.PopBest()
		if !ok {
			return trajectory.Trajectory{}, false
		}
		if cur == goalId {
			return p.reconstructRoadmap(cur), true
		}
		closed[cur] = true
		for _, e := range p.rm.EdgesOf(cur) {
			nb := e.V
			if nb == cur {
				nb = e.U
			}
			if closed[nb] {
				continue
			}
			if p.updateRoadmapSuccessor(cur, nb, goalId) {
				w := p.rm.Pool.Get(nb)
				seq++
				open.Upsert(nb, w.G+w.H, float32(seq))
			}
		}
	}
}

func (p *PRM) updateRoadmapSuccessor(src, tgt, goal waypoint.Id) bool {
	s, t := p.rm.Pool.Get(src), p.rm.Pool.Get(tgt)
	eto, ok := p.Aircraft.GetEstimatedTime(aircraft.Leg{From: s.Position, To: t.Position}, s.ETO)
	if !ok {
		return false
	}
	step := p.rm.GetStepCost(s.Position, t.Position, s.ETO, eto, p.CostPolicy, p.RiskPolicy)
	if environment.IsInf(step) {
		return false
	}
	g := s.G + step
	if g < t.G {
		t.Parent = src
		t.G = g
		t.ETO = eto
		if t.H == 0 {
			t.H = p.rm.NormalizedDistance(t.Position, p.rm.Pool.Get(goal).Position)
		}
		p.rm.Pool.Set(tgt, t)
		return true
	}
	return false
}

func (p *PRM) reconstructRoadmap(goal waypoint.Id) trajectory.Trajectory {
	var rev []waypoint.Waypoint
	for id := goal; id != waypoint.NoId; {
		w := p.rm.Pool.Get(id)
		rev = append(rev, w)
		par := w.Parent
		if par == waypoint.NoId {
			break
		}
		id = par
	}
	out := make([]waypoint.Waypoint, len(rev))
	for i, w := range rev {
		out[len(rev)-1-i] = w
	}
	return trajectory.Trajectory{Waypoints: out}
}

// firstBlockedEdge walks the reconstructed path's consecutive waypoints
// and re-checks each against the current obstacle set, used to validate
// a LazyPRM path post-hoc.
func (p *PRM) firstBlockedEdge(t trajectory.Trajectory) (blocked bool, u, v waypoint.Id) {
	for i := 0; i+1 < len(t.Waypoints); i++ {
		a, b := t.Waypoints[i].Position, t.Waypoints[i+1].Position
		if p.rm.CheckConflictSegment(a, b, p.Aircraft) {
			ua, _ := p.rm.Pool.Find(a)
			vb, _ := p.rm.Pool.Find(b)
			return true, ua, vb
		}
	}
	return false, waypoint.NoId, waypoint.NoId
}
