// pkg/planner/arastar.go
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

// ARAStar is anytime weighted-A*: each pass runs with f=g+eps*h for a
// monotonically shrinking eps, reusing the previous pass's pool and
// re-expanding only waypoints that became inconsistent, publishing the
// improved trajectory after every pass.
type ARAStar struct {
	AbstractPlanner

	pool        *waypoint.Pool
	open        *OpenQueue
	closed      map[waypoint.Id]bool
	incons      map[waypoint.Id]bool
	seq         int64
	minQuality  float32 // epsilon floor (best/most exploitative)
	maxQuality  float32 // epsilon ceiling (first pass, most relaxed)
	improvement float32
	deadline    time.Time
}

func NewARAStar(ap AbstractPlanner) *ARAStar {
	return &ARAStar{
		AbstractPlanner: ap,
		pool:            waypoint.NewPool(),
		open:            NewOpenQueue(),
		closed:          make(map[waypoint.Id]bool),
		incons:          make(map[waypoint.Id]bool),
		minQuality:      1,
		maxQuality:      2.5,
		improvement:     0.2,
	}
}

func (p *ARAStar) Supports(env environment.Environment) bool {
	return env.Kind() == environment.GridKind || env.Kind() == environment.RoadmapKind
}

func (p *ARAStar) MinQuality() float32         { return p.minQuality }
func (p *ARAStar) MaxQuality() float32         { return p.maxQuality }
func (p *ARAStar) QualityImprovement() float32 { return p.improvement }
func (p *ARAStar) Deadline() time.Time         { return p.deadline }
func (p *ARAStar) SetDeadline(t time.Time)     { p.deadline = t }

func (p *ARAStar) SetMinQuality(v float32) error {
	if v < 0 || v > p.maxQuality {
		return ErrInvalidParameter{"minQuality must be in [0, maxQuality]"}
	}
	p.minQuality = v
	return nil
}

func (p *ARAStar) SetMaxQuality(v float32) error {
	if v < p.minQuality {
		return ErrInvalidParameter{"maxQuality must be >= minQuality"}
	}
	p.maxQuality = v
	return nil
}

func (p *ARAStar) SetQualityImprovement(v float32) error {
	if v <= 0 {
		return ErrInvalidParameter{"qualityImprovement must be > 0"}
	}
	p.improvement = v
	return nil
}

func (p *ARAStar) Plan(origin, destination geo.Position, etd time.Time) trajectory.Trajectory {
	return p.PlanVia(origin, destination, nil, etd)
}

func (p *ARAStar) PlanVia(origin, destination geo.Position, via []geo.Position, etd time.Time) trajectory.Trajectory {
	// ARA* is only meaningfully anytime for a single origin/destination
	// leg; via points are visited by chaining independent anytime runs,
	// publishing each leg's final pass as it completes.
	legs := append(append([]geo.Position{origin}, via...), destination)
	var full []waypoint.Waypoint
	depart := etd
	var last trajectory.Trajectory
	for i := 0; i+1 < len(legs); i++ {
		last = p.planLeg(legs[i], legs[i+1], depart)
		if last.Empty() {
			empty := trajectory.Trajectory{}
			p.RevisePlan(empty)
			return empty
		}
		if i > 0 {
			last.Waypoints = last.Waypoints[1:]
		}
		full = append(full, last.Waypoints...)
		depart = full[len(full)-1].ETO
	}
	result := trajectory.Trajectory{Waypoints: full}
	p.RevisePlan(result)
	return result
}

func (p *ARAStar) planLeg(origin, destination geo.Position, etd time.Time) trajectory.Trajectory {
	p.pool.Reset()
	p.open.Reset()
	p.closed = make(map[waypoint.Id]bool)
	p.incons = make(map[waypoint.Id]bool)
	p.seq = 0

	start := waypoint.New(origin)
	start.G = 0
	start.ETO = etd
	startId := p.pool.Add(start)
	goalId := p.pool.FindOrAdd(destination)

	eps := p.maxQuality
	var best trajectory.Trajectory

	p.open.Upsert(startId, eps*p.heuristic(startId, goalId), 0)
	for {
		p.improve(goalId, eps)
		if t, ok := p.pathTo(goalId); ok {
			best = t
			p.RevisePlan(best)
		}
		if eps <= p.minQuality {
			return best
		}
		if !p.deadline.IsZero() && !time.Now().Before(p.deadline) {
			return best
		}
		eps -= p.improvement
		if eps < p.minQuality {
			eps = p.minQuality
		}
		// Move every inconsistent waypoint back into open and clear
		// closed, so the next pass re-expands only what the cheaper
		// epsilon can improve.
		for id := range p.incons {
			w := p.pool.Get(id)
			p.seq++
			p.open.Upsert(id, w.G+eps*w.H, float32(p.seq))
		}
		p.incons = make(map[waypoint.Id]bool)
		p.closed = make(map[waypoint.Id]bool)
	}
}

func (p *ARAStar) heuristic(id, goal waypoint.Id) float32 {
	return p.Env.NormalizedDistance(p.pool.Get(id).Position, p.pool.Get(goal).Position)
}

// improve runs one bounded weighted-A* pass to exhaustion of the current
// open queue (ARA*'s inner loop: expand until open is drained or goal's
// key can no longer beat the best candidate -- simplified here to
// "drain open", since this implementation's OpenQueue has no cheap
// peek-min-key comparison against a running bound).
func (p *ARAStar) improve(goal waypoint.Id, eps float32) {
	for {
		cur, ok := p.open.PopBest()
		if !ok {
			return
		}
		p.closed[cur] = true
		src := p.pool.Get(cur)
		for _, pos := range p.Env.Neighbors(src.Position) {
			nb := p.pool.FindOrAdd(pos)
			if p.updateSuccessor(cur, nb, goal) {
				w := p.pool.Get(nb)
				key := w.G + eps*w.H
				if p.closed[nb] {
					p.incons[nb] = true
				} else {
					p.seq++
					p.open.Upsert(nb, key, float32(p.seq))
				}
			}
		}
		if p.Env.AreNeighbors(src.Position, p.pool.Get(goal).Position) {
			if p.updateSuccessor(cur, goal, goal) {
				w := p.pool.Get(goal)
				key := w.G + eps*w.H
				if p.closed[goal] {
					p.incons[goal] = true
				} else {
					p.seq++
					p.open.Upsert(goal, key, float32(p.seq))
				}
			}
		}
	}
}

func (p *ARAStar) updateSuccessor(src, tgt, goal waypoint.Id) bool {
	s, t := p.pool.Get(src), p.pool.Get(tgt)
	eto, ok := p.Aircraft.GetEstimatedTime(aircraft.Leg{From: s.Position, To: t.Position}, s.ETO)
	if !ok {
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
			t.H = p.heuristic(tgt, goal)
		}
		p.pool.Set(tgt, t)
		return true
	}
	return false
}

func (p *ARAStar) pathTo(goal waypoint.Id) (trajectory.Trajectory, bool) {
	w := p.pool.Get(goal)
	if !w.Reached() {
		return trajectory.Trajectory{}, false
	}
	var rev []waypoint.Waypoint
	for id := goal; ; {
		cw := p.pool.Get(id)
		rev = append(rev, cw)
		if cw.Parent == waypoint.NoId {
			break
		}
		id = cw.Parent
	}
	out := make([]waypoint.Waypoint, len(rev))
	for i, w := range rev {
		out[len(rev)-1-i] = w
	}
	return trajectory.Trajectory{Waypoints: out}, true
}
