// pkg/planner/thetastar.go
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

// ThetaStar wraps ForwardAStar and overrides computeCost to additionally
// try the any-angle shortcut parent(src)->tgt, producing paths
// unconstrained by grid edges.
type ThetaStar struct {
	*ForwardAStar
}

func NewThetaStar(ap AbstractPlanner) *ThetaStar {
	return &ThetaStar{ForwardAStar: NewForwardAStar(ap)}
}

func (p *ThetaStar) Plan(origin, destination geo.Position, etd time.Time) trajectory.Trajectory {
	return p.PlanVia(origin, destination, nil, etd)
}

func (p *ThetaStar) PlanVia(origin, destination geo.Position, via []geo.Position, etd time.Time) trajectory.Trajectory {
	// Re-implemented (rather than delegated to ForwardAStar.PlanVia) so
	// planLeg below dispatches to this type's computeCost override; Go
	// has no virtual dispatch through an embedded pointer.
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

func (p *ThetaStar) planLeg(origin, destination geo.Position, etd time.Time) trajectory.Trajectory {
	p.pool.Reset()
	p.open.Reset()
	p.closed = make(map[waypoint.Id]bool)
	p.seq = 0

	start := waypoint.New(origin)
	start.G = 0
	start.ETO = etd
	start.Parent = -1
	startId := p.pool.Add(start)
	// Theta* shortcuts test parent(src); seed start's parent as itself
	// so the shortcut check at the first expansion has a defined (and
	// trivially rejected, since src==parent(src)) target.
	sw := p.pool.Get(startId)
	sw.Parent = startId
	p.pool.Set(startId, sw)

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
			if p.computeCostThetaStar(cur, nb, goalId) {
				w := p.pool.Get(nb)
				p.seq++
				p.open.Upsert(nb, w.G+w.H, float32(p.seq))
			}
		}
	}
}

// computeCostThetaStar tries the straight edge src->tgt exactly as
// ForwardAStar.computeCost, then separately attempts the any-angle
// shortcut parent(src)->tgt; the shortcut is only accepted if it yields
// a strictly lower g, the leg is aircraft-feasible, and there is line of
// sight (GetLegCost finite) between parent(src) and tgt. The shortcut is
// evaluated unconditionally, gating only on its own line of sight, not
// on whether parent(src) still has line of sight to src; see DESIGN.md.
func (p *ThetaStar) computeCostThetaStar(src, tgt, goal waypoint.Id) bool {
	updated := p.computeCost(src, tgt, goal)

	s := p.pool.Get(src)
	if s.Parent == waypoint.NoId || s.Parent == src {
		return updated
	}
	par := p.pool.Get(s.Parent)
	t := p.pool.Get(tgt)

	if !p.Aircraft.IsFeasible(par.Position, t.Position) {
		return updated
	}
	if !environment.LineOfSight(p.Env, par.Position, t.Position, par.ETO) {
		return updated
	}
	eto, ok := p.Aircraft.GetEstimatedTime(aircraft.Leg{From: par.Position, To: t.Position}, par.ETO)
	if !ok {
		return updated
	}
	legCost := p.Env.GetLegCost(par.Position, t.Position, par.ETO, eto, p.CostPolicy, p.RiskPolicy)
	if environment.IsInf(legCost) {
		return updated
	}
	g := par.G + legCost
	if g < t.G {
		t.Parent = s.Parent
		t.G = g
		t.ETO = eto
		if t.H == 0 {
			t.H = p.Env.NormalizedDistance(t.Position, p.pool.Get(goal).Position)
		}
		p.pool.Set(tgt, t)
		return true
	}
	return updated
}
