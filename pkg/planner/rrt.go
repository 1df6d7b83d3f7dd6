// pkg/planner/rrt.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package planner

import (
	"math"
	"time"

	"github.com/mmp/flightplan/pkg/aircraft"
	"github.com/mmp/flightplan/pkg/environment"
	"github.com/mmp/flightplan/pkg/geo"
	"github.com/mmp/flightplan/pkg/rand"
	"github.com/mmp/flightplan/pkg/trajectory"
	"github.com/mmp/flightplan/pkg/waypoint"
)

// ExtensionKind selects how RRT.extend validates a candidate step:
// Linear accepts any geometrically unobstructed step, Feasible
// additionally requires the aircraft capabilities model to accept the
// leg.
type ExtensionKind int

const (
	Linear ExtensionKind = iota
	Feasible
)

// ExtensionStrategy selects how far RRT.extend advances toward the
// sample: Extend takes a single Epsilon-length step, Connect repeatedly
// steps until the sample is reached or a step is rejected.
type ExtensionStrategy int

const (
	Extend ExtensionStrategy = iota
	Connect
)

// RRT is the rapidly-exploring random tree family: RRT, HRRT, ARRT,
// RRTStar, DRRT, ADRRT all share this type, tagged by the Heuristic,
// Anytime, Rewire, and Dynamic flags below rather than a type per
// variant.
type RRT struct {
	AbstractPlanner

	MaxIterations   int
	Bias            float32 // goal-bias probability in [0,1]
	Epsilon         float32 // step length, nautical miles
	GoalThreshold   float32
	Extension       ExtensionKind
	Strategy        ExtensionStrategy
	RewireRadius    float32 // RRTStar

	// Heuristic enables HRRT's quality-weighted nearest-neighbor bias.
	Heuristic bool
	KNearest  int
	ProbFloor float32

	// Anytime enables ARRT's shrinking cost bound between passes.
	Anytime             bool
	MinQualityBound     float32
	MaxQualityBound      float32
	QualityImprovementBy float32
	deadline             time.Time

	// Rewire enables RRTStar's rewiring step.
	Rewire bool

	// Dynamic enables DRRT/ADRRT's subtree invalidation on world change.
	Dynamic bool

	rm  *environment.Roadmap
	rnd rand.Rand
}

func NewRRT(ap AbstractPlanner) *RRT {
	rm, _ := ap.Env.(*environment.Roadmap)
	return &RRT{
		AbstractPlanner: ap,
		MaxIterations:   2000,
		Bias:            0.05,
		Epsilon:         50,
		GoalThreshold:   10,
		KNearest:        5,
		ProbFloor:       0.05,
		MinQualityBound: 1,
		MaxQualityBound: math.MaxFloat32,
		QualityImprovementBy: 0.1,
		RewireRadius:    100,
		rm:              rm,
		rnd:             rand.New(),
	}
}

func NewHRRT(ap AbstractPlanner) *RRT { r := NewRRT(ap); r.Heuristic = true; return r }
func NewARRT(ap AbstractPlanner) *RRT { r := NewRRT(ap); r.Anytime = true; return r }
func NewRRTStar(ap AbstractPlanner) *RRT { r := NewRRT(ap); r.Rewire = true; return r }
func NewDRRT(ap AbstractPlanner) *RRT { r := NewRRT(ap); r.Dynamic = true; return r }
func NewADRRT(ap AbstractPlanner) *RRT { r := NewRRT(ap); r.Dynamic, r.Anytime = true, true; return r }

func (p *RRT) Supports(env environment.Environment) bool {
	_, ok := env.(*environment.Roadmap)
	return ok
}

func (p *RRT) MinQuality() float32             { return p.MinQualityBound }
func (p *RRT) MaxQuality() float32             { return p.MaxQualityBound }
func (p *RRT) QualityImprovement() float32     { return p.QualityImprovementBy }
func (p *RRT) Deadline() time.Time             { return p.deadline }
func (p *RRT) SetDeadline(t time.Time)         { p.deadline = t }

func (p *RRT) SetMinQuality(v float32) error {
	if v < 0 {
		return ErrInvalidParameter{"minQuality must be >= 0"}
	}
	p.MinQualityBound = v
	return nil
}
func (p *RRT) SetMaxQuality(v float32) error {
	if v < p.MinQualityBound {
		return ErrInvalidParameter{"maxQuality must be >= minQuality"}
	}
	p.MaxQualityBound = v
	return nil
}
func (p *RRT) SetQualityImprovement(v float32) error {
	if v <= 0 {
		return ErrInvalidParameter{"qualityImprovement must be > 0"}
	}
	p.QualityImprovementBy = v
	return nil
}

func (p *RRT) Plan(origin, destination geo.Position, etd time.Time) trajectory.Trajectory {
	return p.PlanVia(origin, destination, nil, etd)
}

func (p *RRT) PlanVia(origin, destination geo.Position, via []geo.Position, etd time.Time) trajectory.Trajectory {
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

func (p *RRT) planLeg(origin, destination geo.Position, etd time.Time) trajectory.Trajectory {
	p.rm.Reset()
	start := waypoint.New(origin)
	start.G = 0
	start.ETO = etd
	startId := p.rm.Pool.Add(start)

	cmax := float32(math.MaxFloat32)
	var best trajectory.Trajectory

	for pass := 0; ; pass++ {
		goalId, found := p.grow(startId, destination, etd, cmax)
		improved := false
		if found {
			if t := p.reconstructTree(goalId); t.Cost() < best.Cost() {
				best = t
				improved = true
				p.RevisePlan(best)
			}
		}
		if !p.Anytime || best.Empty() {
			return best
		}
		if pass > 0 && !improved {
			// The tighter bound couldn't be met within MaxIterations; the
			// current best stands.
			return best
		}
		cmax = best.Cost() - p.QualityImprovementBy
		if cmax <= p.MinQualityBound {
			return best
		}
		if !p.deadline.IsZero() && !time.Now().Before(p.deadline) {
			return best
		}
		// The next anytime pass continues growing the same tree toward
		// the tighter cost bound.
	}
}

// grow runs up to MaxIterations of sample/nearest/extend, returning the
// goal waypoint id and true the first time the goal threshold is
// satisfied. cmax bounds the accepted cost for ARRT/ADRRT anytime
// passes: candidates whose own g already exceeds cmax can't possibly
// improve the current best and are skipped before the costlier
// extend/collision work.
func (p *RRT) grow(startId waypoint.Id, goal geo.Position, etd time.Time, cmax float32) (waypoint.Id, bool) {
	for i := 0; i < p.MaxIterations; i++ {
		sample := p.sample(goal)
		nearest := p.nearest(sample)
		if p.rm.Pool.Get(nearest).G >= cmax {
			continue
		}
		newId, ok := p.extend(nearest, sample, etd)
		if !ok {
			continue
		}
		if p.Rewire {
			p.rewire(newId)
		}
		if p.rm.Distance(p.rm.Pool.Get(newId).Position, goal) < p.GoalThreshold {
			goalId, connected := p.connectToGoal(newId, goal, etd)
			if connected {
				return goalId, true
			}
		}
	}
	return waypoint.NoId, false
}

func (p *RRT) sample(goal geo.Position) geo.Position {
	if p.rnd.Float32() < p.Bias {
		return goal
	}
	return p.rm.SampleRandomPosition()
}

// nearest returns the tree waypoint closest to sample, using a
// heuristic-quality-weighted choice among k-nearest candidates for HRRT
// and plain argmin distance otherwise.
func (p *RRT) nearest(sample geo.Position) waypoint.Id {
	if !p.Heuristic {
		return p.argminDistance(sample)
	}
	k := p.KNearest
	if k < 1 {
		k = 1
	}
	candidates := p.rm.FindNearest(sample, k)
	if len(candidates) == 0 {
		return p.argminDistance(sample)
	}
	fmin, fmax := float32(math.MaxFloat32), float32(0)
	for _, c := range candidates {
		w := p.rm.Pool.Get(c)
		f := w.G + w.H
		fmin, fmax = geo.Min(fmin, f), geo.Max(fmax, f)
	}
	for _, c := range candidates {
		w := p.rm.Pool.Get(c)
		f := w.G + w.H
		q := float32(1)
		if fmax > fmin {
			q = 1 - (f-fmin)/(fmax-fmin)
		}
		if p.rnd.Float32() < geo.Max(q, p.ProbFloor) {
			return c
		}
	}
	return candidates[0]
}

func (p *RRT) argminDistance(sample geo.Position) waypoint.Id {
	best, bestDist := waypoint.NoId, float32(math.MaxFloat32)
	for _, id := range p.rm.Pool.All() {
		d := p.rm.NormalizedDistance(p.rm.Pool.Get(id).Position, sample)
		if d < bestDist {
			bestDist, best = d, id
		}
	}
	return best
}

// extend advances from 'from' toward 'to' by up to Epsilon (Extend) or
// repeatedly until 'to' is reached (Connect), rejecting the step on
// collision or (for Feasible extension) aircraft infeasibility.
func (p *RRT) extend(from waypoint.Id, to geo.Position, etd time.Time) (waypoint.Id, bool) {
	cur := from
	for {
		fromPos := p.rm.Pool.Get(cur).Position
		dist := p.rm.Distance(fromPos, to)
		var next geo.Position
		if dist <= p.Epsilon {
			next = to
		} else {
			next = stepToward(p.rm.Globe(), fromPos, to, p.Epsilon)
		}
		if p.rm.CheckConflict(next) {
			return waypoint.NoId, false
		}
		if p.Extension == Feasible && !p.Aircraft.IsFeasible(fromPos, next) {
			return waypoint.NoId, false
		}
		if p.rm.CheckConflictSegment(fromPos, next, p.Aircraft) {
			return waypoint.NoId, false
		}
		id, isNew := p.addChild(cur, next, etd)
		if !isNew {
			return id, true
		}
		cur = id
		if p.Strategy == Extend || next == to {
			return cur, true
		}
	}
}

func (p *RRT) addChild(parent waypoint.Id, pos geo.Position, etd time.Time) (waypoint.Id, bool) {
	par := p.rm.Pool.Get(parent)
	eto, ok := p.Aircraft.GetEstimatedTime(aircraft.Leg{From: par.Position, To: pos}, par.ETO)
	if !ok {
		eto = par.ETO
	}
	if existing, ok := p.rm.Pool.Find(pos); ok {
		// Re-reaching an existing waypoint (the goal, typically) through a
		// cheaper route reparents it, which is what lets anytime passes
		// actually lower the best cost.
		if w := p.rm.Pool.Get(existing); par.G+p.rm.Distance(par.Position, pos) < w.G {
			w.Parent = parent
			w.G = par.G + p.rm.Distance(par.Position, pos)
			w.ETO = eto
			p.rm.Pool.Set(existing, w)
			p.rm.AddEdge(parent, existing, 0.5)
		}
		return existing, false
	}
	w := waypoint.New(pos)
	w.Parent = parent
	w.G = par.G + p.rm.Distance(par.Position, pos)
	w.ETO = eto
	id := p.rm.Pool.Add(w)
	p.rm.AddEdge(parent, id, 0.5)
	return id, true
}

func (p *RRT) connectToGoal(near waypoint.Id, goal geo.Position, etd time.Time) (waypoint.Id, bool) {
	id, ok := p.extend(near, goal, etd)
	if !ok {
		return waypoint.NoId, false
	}
	return id, p.rm.Pool.Get(id).Position == goal || p.rm.Distance(p.rm.Pool.Get(id).Position, goal) < p.GoalThreshold
}

// rewire implements RRT*'s local rewiring: for every existing waypoint
// within RewireRadius of the newly inserted one, reroute it through new
// if that lowers its accumulated cost, propagating the improvement to
// its descendants' g values.
func (p *RRT) rewire(newId waypoint.Id) {
	newW := p.rm.Pool.Get(newId)
	for _, id := range p.rm.Pool.All() {
		if id == newId {
			continue
		}
		w := p.rm.Pool.Get(id)
		if p.rm.Distance(w.Position, newW.Position) > p.RewireRadius {
			continue
		}
		if p.rm.CheckConflictSegment(newW.Position, w.Position, p.Aircraft) {
			continue
		}
		g := newW.G + p.rm.Distance(newW.Position, w.Position)
		if g < w.G {
			oldParent := w.Parent
			w.Parent = newId
			w.G = g
			p.rm.Pool.Set(id, w)
			p.rm.RemoveEdge(oldParent, id)
			p.rm.AddEdge(newId, id, 0.5)
			p.propagateRewire(id)
		}
	}
}

func (p *RRT) propagateRewire(parent waypoint.Id) {
	par := p.rm.Pool.Get(parent)
	for _, id := range p.rm.Pool.All() {
		w := p.rm.Pool.Get(id)
		if w.Parent != parent {
			continue
		}
		g := par.G + p.rm.Distance(par.Position, w.Position)
		if g < w.G {
			w.G = g
			p.rm.Pool.Set(id, w)
			p.propagateRewire(id)
		}
	}
}

// ObstacleChanged implements DynamicPlanner: it invalidates every
// subtree rooted at a waypoint whose incoming edge now conflicts with
// the obstacle set. The next Plan/PlanVia call resets the roadmap and
// grows a new tree from the origin; the surviving fragment is not
// reused.
func (p *RRT) ObstacleChanged() {
	if !p.Dynamic {
		return
	}
	invalid := make(map[waypoint.Id]bool)
	for _, id := range p.rm.Pool.All() {
		w := p.rm.Pool.Get(id)
		if w.Parent == waypoint.NoId {
			continue
		}
		par := p.rm.Pool.Get(w.Parent)
		if p.rm.CheckConflictSegment(par.Position, w.Position, p.Aircraft) {
			invalid[id] = true
		}
	}
	if len(invalid) == 0 {
		return
	}
	p.invalidateSubtrees(invalid)
}

func (p *RRT) invalidateSubtrees(roots map[waypoint.Id]bool) {
	changed := true
	for changed {
		changed = false
		for _, id := range p.rm.Pool.All() {
			if roots[id] {
				continue
			}
			w := p.rm.Pool.Get(id)
			if w.Parent != waypoint.NoId && roots[w.Parent] {
				roots[id] = true
				changed = true
			}
		}
	}
	for id := range roots {
		w := p.rm.Pool.Get(id)
		w.G = environment.Inf()
		w.Parent = waypoint.NoId
		p.rm.Pool.Set(id, w)
		if p.Logger != nil {
			p.Logger.Debug("invalidated subtree waypoint", "id", id)
		}
	}
}

func (p *RRT) reconstructTree(goal waypoint.Id) trajectory.Trajectory {
	var rev []waypoint.Waypoint
	for id := goal; id != waypoint.NoId; {
		w := p.rm.Pool.Get(id)
		rev = append(rev, w)
		id = w.Parent
	}
	out := make([]waypoint.Waypoint, len(rev))
	for i, w := range rev {
		out[len(rev)-1-i] = w
	}
	return trajectory.Trajectory{Waypoints: out}
}

// stepToward returns the point Epsilon nautical miles from `from` along
// the direction toward `to`.
func stepToward(g *geo.Globe, from, to geo.Position, epsilon float32) geo.Position {
	a, b := g.ToPoint3(from), g.ToPoint3(to)
	dir := geo.Normalize3(geo.Sub3(b, a))
	return g.ToPosition(geo.Add3(a, geo.Scale3(dir, epsilon)))
}
