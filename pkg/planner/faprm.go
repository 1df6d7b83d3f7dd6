// pkg/planner/faprm.go
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
	"github.com/mmp/flightplan/pkg/util"
	"github.com/mmp/flightplan/pkg/waypoint"
)

// FAPRM is the flexible anytime/dynamic/online PRM family: FAPRM,
// FADPRM, OFADPRM, RADPRM. It combines roadmap growth, density-weighted
// priority, anytime beta inflation, and (when Online is set) online
// start-shift.
type FAPRM struct {
	AbstractPlanner

	MaxIterations int
	Bias          float32
	MaxDistance   float32
	MaxNeighbors  int
	Lambda        float32

	InitialBeta float32
	FinalBeta   float32
	StepBeta    float32

	// Dynamic enables propagateCorrections repair when an edge is
	// removed (FADPRM).
	Dynamic bool
	// Online enables the aircraft-position-driven start-shift loop
	// (OFADPRM). RADPRM additionally randomizes beta progression instead
	// of a fixed step (set via RandomizedBeta).
	Online         bool
	RandomizedBeta bool

	StartShiftLookahead int // plan-index lookahead for the online start shift
	positionThreshold   float32
	GoalThresholdOnline float32

	deadline time.Time
	onlineOn bool

	rm             *environment.Roadmap
	rnd            rand.Rand
	beta           float32
	open           *OpenQueue
	closed         map[waypoint.Id]bool
	start, goal    waypoint.Id
	backup         []waypoint.Waypoint
	positionSource func() (geo.Position, time.Time)
}

func NewFAPRM(ap AbstractPlanner) *FAPRM {
	rm, _ := ap.Env.(*environment.Roadmap)
	return &FAPRM{
		AbstractPlanner:     ap,
		MaxIterations:       2000,
		Bias:                0.1,
		MaxDistance:         200,
		MaxNeighbors:        10,
		Lambda:              0.5,
		InitialBeta:         0,
		FinalBeta:           1,
		StepBeta:            0.1,
		StartShiftLookahead: 3,
		positionThreshold:   5,
		GoalThresholdOnline: 10,
		rm:                  rm,
		rnd:                 rand.New(),
		open:                NewOpenQueue(),
		closed:              make(map[waypoint.Id]bool),
	}
}

func NewFADPRM(ap AbstractPlanner) *FAPRM { p := NewFAPRM(ap); p.Dynamic = true; return p }
func NewOFADPRM(ap AbstractPlanner) *FAPRM {
	p := NewFAPRM(ap)
	p.Dynamic, p.Online = true, true
	return p
}
func NewRADPRM(ap AbstractPlanner) *FAPRM {
	p := NewFAPRM(ap)
	p.Dynamic, p.RandomizedBeta = true, true
	return p
}

func (p *FAPRM) Supports(env environment.Environment) bool {
	_, ok := env.(*environment.Roadmap)
	return ok
}

func (p *FAPRM) MinQuality() float32         { return p.InitialBeta }
func (p *FAPRM) MaxQuality() float32         { return p.FinalBeta }
func (p *FAPRM) QualityImprovement() float32 { return p.StepBeta }
func (p *FAPRM) Deadline() time.Time         { return p.deadline }
func (p *FAPRM) SetDeadline(t time.Time)     { p.deadline = t }

func (p *FAPRM) SetMinQuality(v float32) error {
	if v < 0 || v > p.FinalBeta {
		return ErrInvalidParameter{"invalid inflation"}
	}
	p.InitialBeta = v
	return nil
}
func (p *FAPRM) SetMaxQuality(v float32) error {
	if v < p.InitialBeta || v > 1 {
		return ErrInvalidParameter{"invalid inflation"}
	}
	p.FinalBeta = v
	return nil
}
func (p *FAPRM) SetQualityImprovement(v float32) error {
	if v <= 0 {
		return ErrInvalidParameter{"invalid inflation"}
	}
	p.StepBeta = v
	return nil
}

func (p *FAPRM) OnlineStatus() bool     { return p.onlineOn }
func (p *FAPRM) SetOnlineStatus(v bool) { p.onlineOn = v && p.Online }
func (p *FAPRM) PositionThreshold() float32 { return p.positionThreshold }
func (p *FAPRM) SetPositionThreshold(v float32) error {
	if v <= 0 {
		return ErrInvalidParameter{"positionThreshold must be > 0"}
	}
	p.positionThreshold = v
	return nil
}

func (p *FAPRM) ObstacleChanged() {
	if !p.Dynamic {
		return
	}
	p.propagateCorrectionsAll()
}

func (p *FAPRM) Plan(origin, destination geo.Position, etd time.Time) trajectory.Trajectory {
	return p.PlanVia(origin, destination, nil, etd)
}

func (p *FAPRM) PlanVia(origin, destination geo.Position, via []geo.Position, etd time.Time) trajectory.Trajectory {
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

// key implements the FAPRM priority with f=(g+h)/2 and ties favoring
// higher h (deeper progress); lower key wins on the OpenQueue. The
// density term scales with the neighbor count so that at beta=0 a
// sparser neighborhood pops first and at beta=1 ordering reduces to
// best-f-first; see DESIGN.md for why the density term is not 1/density.
func (p *FAPRM) key(w waypoint.Waypoint) (key, tieBreak float32) {
	density := w.Density
	if density < 1 {
		density = 1
	}
	f := (w.G + w.H) / 2
	key = (1-p.beta)*float32(density) + p.beta*f
	return key, -w.H
}

func (p *FAPRM) planLeg(origin, destination geo.Position, etd time.Time) trajectory.Trajectory {
	p.rm.Reset()
	p.beta = p.InitialBeta

	start := waypoint.New(origin)
	start.G = 0
	start.ETO = etd
	start.Beta = p.beta
	p.start = p.rm.Pool.Add(start)
	p.goal = p.rm.Pool.FindOrAdd(destination)

	p.seedOpen()

	var best trajectory.Trajectory
	for {
		t := p.computeOrImprovePath(etd)
		if !t.Empty() {
			best = t
			p.RevisePlan(best)
		}
		if p.beta >= p.FinalBeta {
			break
		}
		if !p.deadline.IsZero() && !time.Now().Before(p.deadline) {
			if t.Empty() {
				// The deadline interrupted an inflation pass that hadn't
				// produced a path yet; roll the pool back to the snapshot
				// taken before the pass so best's parent chain is intact.
				p.restoreBackup()
			}
			break
		}
		p.improve()
		if p.onlineOn {
			p.runOnlineCycle(etd)
		}
	}
	return best
}

func (p *FAPRM) seedOpen() {
	p.open.Reset()
	p.closed = make(map[waypoint.Id]bool)
	w := p.rm.Pool.Get(p.start)
	key, tie := p.key(w)
	p.open.Upsert(p.start, key, tie)
}

// computeOrImprovePath is the main loop: pop the best-key open
// waypoint; if it's the goal, reconstruct and return. Otherwise try a
// direct source->goal connection; failing that, expand a new roadmap
// waypoint toward the sampled target; finally move source to closed.
// The loop is bounded by MaxIterations expansions: an improve pass whose
// goal cost can't be beaten would otherwise keep sampling fresh waypoints
// (each unreached, so always pushed) and never drain open.
func (p *FAPRM) computeOrImprovePath(etd time.Time) trajectory.Trajectory {
	for iter := 0; iter < p.MaxIterations; iter++ {
		source, ok := p.open.PopBest()
		if !ok {
			return trajectory.Trajectory{}
		}
		if source == p.goal {
			return p.reconstruct(source)
		}

		sw := p.rm.Pool.Get(source)
		goalPos := p.rm.Pool.Get(p.goal).Position
		if p.rm.Distance(sw.Position, goalPos) <= p.MaxDistance &&
			p.Aircraft.IsFeasible(sw.Position, goalPos) &&
			!p.rm.CheckConflictSegment(sw.Position, goalPos, p.Aircraft) {
			if p.computeCost(source, p.goal) {
				p.pushOpen(p.goal)
			}
		} else if successor, ok := p.expand(source); ok {
			p.updateDensity(successor)
			if p.computeCost(source, successor) {
				p.pushOpen(successor)
			}
			for _, nb := range p.rm.EdgesOf(source) {
				other := nb.V
				if other == source {
					other = nb.U
				}
				if other == successor || p.closed[other] {
					continue
				}
				if p.computeCost(source, other) {
					p.pushOpen(other)
				}
			}
		}
		p.closed[source] = true
	}
	return trajectory.Trajectory{}
}

func (p *FAPRM) pushOpen(id waypoint.Id) {
	w := p.rm.Pool.Get(id)
	key, tie := p.key(w)
	p.open.Upsert(id, key, tie)
}

// expand is the roadmap-growth sampling step: draw a position (goal-biased
// or within a cube of side 2*maxDistance/sqrt(3) around source), reject
// on conflict/infeasibility and resample, then connect it to source and
// to the nearest other waypoints within MaxDistance, MaxNeighbors edges
// in all (the source edge included).
func (p *FAPRM) expand(source waypoint.Id) (waypoint.Id, bool) {
	sw := p.rm.Pool.Get(source)
	goalPos := p.rm.Pool.Get(p.goal).Position

	const maxAttempts = 50
	for attempt := 0; attempt < maxAttempts; attempt++ {
		var candidate geo.Position
		if p.rnd.Float32() < p.Bias {
			candidate = moveToward(p.rm.Globe(), sw.Position, goalPos, p.MaxDistance)
		} else {
			side := 2 * p.MaxDistance / geo.Sqrt(3)
			candidate = sampleCube(p.rm.Globe(), &p.rnd, sw.Position, side)
		}
		if !p.rm.Contains(candidate) || p.rm.CheckConflict(candidate) {
			continue
		}
		if _, exists := p.rm.Pool.Find(candidate); exists {
			// Re-inserting an existing waypoint would double-count its
			// neighbors' density on the caller's update.
			continue
		}
		if !p.Aircraft.IsFeasible(sw.Position, candidate) {
			continue
		}
		if p.rm.CheckConflictSegment(sw.Position, candidate, p.Aircraft) {
			continue
		}

		newId := p.rm.AddWaypoint(candidate)
		nw := p.rm.Pool.Get(newId)
		nw.Beta = p.beta
		p.rm.Pool.Set(newId, nw)
		p.rm.AddEdge(source, newId, p.Lambda)

		connected := 1
		for _, c := range p.rm.FindNearest(candidate, p.rm.Pool.Len()) {
			if connected >= p.MaxNeighbors {
				break
			}
			if c == newId || c == source {
				continue
			}
			other := p.rm.Pool.Get(c).Position
			if p.rm.Distance(candidate, other) > p.MaxDistance {
				continue
			}
			if p.rm.CheckConflictSegment(candidate, other, p.Aircraft) {
				continue
			}
			p.rm.AddEdge(newId, c, p.Lambda)
			connected++
		}
		return newId, true
	}
	return waypoint.NoId, false
}

// updateDensity recomputes the Density field of w and every existing
// waypoint within MaxDistance of it, maintaining the invariant that
// density counts exactly the neighbors closer than MaxDistance.
func (p *FAPRM) updateDensity(w waypoint.Id) {
	pos := p.rm.Pool.Get(w).Position
	count := 0
	for _, id := range p.rm.Pool.All() {
		if id == w {
			continue
		}
		other := p.rm.Pool.Get(id)
		if p.rm.Distance(pos, other.Position) < p.MaxDistance {
			count++
			other.Density++
			p.rm.Pool.Set(id, other)
		}
	}
	ww := p.rm.Pool.Get(w)
	ww.Density = count
	p.rm.Pool.Set(w, ww)
}

// computeCost blends step cost with edge desirability, weighted by the
// planner's Lambda (the value expand stores on each edge it adds), and applies the conventional g-improvement test
// (src.g + blended cost < tgt.g); see DESIGN.md for the alternative
// update predicate considered and rejected.
func (p *FAPRM) computeCost(src, tgt waypoint.Id) bool {
	s, t := p.rm.Pool.Get(src), p.rm.Pool.Get(tgt)
	eto, ok := p.Aircraft.GetEstimatedTime(aircraft.Leg{From: s.Position, To: t.Position}, s.ETO)
	if !ok {
		return false
	}
	step := p.rm.GetStepCost(s.Position, t.Position, s.ETO, eto, p.CostPolicy, p.RiskPolicy)
	if environment.IsInf(step) {
		return false
	}
	desirability := p.edgeDesirability(src, tgt)
	var lambda float32 = p.Lambda
	blended := (1-lambda)*step + lambda*(1-desirability)
	g := s.G + blended
	if g < t.G {
		t.Parent = src
		t.G = g
		t.ETO = eto
		if t.H == 0 {
			t.H = p.rm.NormalizedDistance(t.Position, p.rm.Pool.Get(p.goal).Position)
		}
		t.Beta = p.beta
		p.rm.Pool.Set(tgt, t)
		return true
	}
	return false
}

func (p *FAPRM) edgeDesirability(u, v waypoint.Id) float32 {
	for _, e := range p.rm.EdgesOf(u) {
		if (e.U == u && e.V == v) || (e.U == v && e.V == u) {
			return e.Desirability
		}
	}
	return 0.5
}

func (p *FAPRM) reconstruct(goal waypoint.Id) trajectory.Trajectory {
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

// improve is the anytime cycle: back up the waypoint pool so a
// multi-segment plan can be restored if the pass is abandoned, then
// raise beta, propagate it to every waypoint, clear open/closed, and
// re-seed from start.
func (p *FAPRM) improve() {
	p.backup = p.rm.Pool.Snapshot()

	if p.RandomizedBeta {
		p.beta += p.StepBeta * (0.5 + p.rnd.Float32())
	} else {
		p.beta += p.StepBeta
	}
	if p.beta > p.FinalBeta {
		p.beta = p.FinalBeta
	}
	for _, id := range p.rm.Pool.All() {
		w := p.rm.Pool.Get(id)
		w.Beta = p.beta
		p.rm.Pool.Set(id, w)
	}
	p.seedOpen()
}

// restoreBackup rolls the pool back to the last improve() snapshot,
// used when the deadline abandons an inflation pass that hasn't
// completed.
func (p *FAPRM) restoreBackup() {
	if p.backup != nil {
		p.rm.Pool.Restore(p.backup)
	}
}

// runOnlineCycle polls the aircraft position, and once it has passed
// waypoint index i with i+lookahead < len(plan), calls UpdateStart on
// plan[i+lookahead].
func (p *FAPRM) runOnlineCycle(etd time.Time) {
	pos, _ := p.AircraftTimedPosition()
	plan := p.reconstruct(p.goal)
	if plan.Empty() {
		return
	}
	idx := p.nearestPlanIndex(plan, pos)
	if idx < 0 || idx+p.StartShiftLookahead >= len(plan.Waypoints) {
		return
	}
	if p.rm.Distance(pos, plan.Waypoints[idx].Position) < p.positionThreshold {
		return
	}
	if p.rm.Distance(pos, plan.Waypoints[len(plan.Waypoints)-1].Position) < p.GoalThresholdOnline {
		return
	}
	p.UpdateStart(plan.Waypoints[idx+p.StartShiftLookahead].Position)
}

func (p *FAPRM) nearestPlanIndex(t trajectory.Trajectory, pos geo.Position) int {
	best, bestDist := -1, float32(math.MaxFloat32)
	for i, w := range t.Waypoints {
		d := p.rm.Distance(pos, w.Position)
		if d < bestDist {
			bestDist, best = d, i
		}
	}
	return best
}

// AircraftTimedPosition is a placeholder hook for the online cycle's
// position poll; real online planners are constructed with a datalink
// and override this via SetAircraftPositionSource.
func (p *FAPRM) AircraftTimedPosition() (geo.Position, time.Time) {
	if p.positionSource != nil {
		return p.positionSource()
	}
	w := p.rm.Pool.Get(p.start)
	return w.Position, w.ETO
}

// SetAircraftPositionSource wires the online cycle's position poll to a
// real source (normally the datalink adapter's GetAircraftTimedPosition).
func (p *FAPRM) SetAircraftPositionSource(f func() (geo.Position, time.Time)) {
	p.positionSource = f
}

// UpdateStart implements the online start-shift: clear open, reset
// every waypoint's cost to +Inf and parent to none, reconnect a fresh
// start to its MaxNeighbors nearest, and resume planning.
func (p *FAPRM) UpdateStart(pos geo.Position) {
	for _, id := range p.rm.Pool.All() {
		w := p.rm.Pool.Get(id)
		w.G = environment.Inf()
		w.Parent = waypoint.NoId
		p.rm.Pool.Set(id, w)
	}
	newStart := p.rm.AddWaypoint(pos)
	sw := p.rm.Pool.Get(newStart)
	sw.G = 0
	p.rm.Pool.Set(newStart, sw)
	p.start = newStart

	connected := 0
	for _, c := range p.rm.FindNearest(pos, p.rm.Pool.Len()) {
		if connected >= p.MaxNeighbors {
			break
		}
		if c == newStart {
			continue
		}
		other := p.rm.Pool.Get(c).Position
		if p.rm.Distance(pos, other) > p.MaxDistance {
			continue
		}
		if p.rm.CheckConflictSegment(pos, other, p.Aircraft) {
			continue
		}
		p.rm.AddEdge(newStart, c, p.Lambda)
		connected++
	}
	p.seedOpen()
}

// propagateCorrectionsAll is the correction/repair pass: every waypoint
// whose parent edge is no longer valid, and every descendant of one, has
// its cost reset to +Inf and parent cleared; each then recomputes its
// cost from its still-valid neighbors via computeCost. A waypoint that
// regains a finite cost is re-inserted into open with its new key; one
// that does not keeps whatever entry it already had in open.
func (p *FAPRM) propagateCorrectionsAll() {
	invalid := make(map[waypoint.Id]bool)
	for _, id := range p.rm.Pool.All() {
		w := p.rm.Pool.Get(id)
		if w.Parent == waypoint.NoId {
			continue
		}
		if !p.hasEdge(w.Parent, id) {
			invalid[id] = true
		}
	}
	changed := true
	for changed {
		changed = false
		for _, id := range p.rm.Pool.All() {
			if invalid[id] {
				continue
			}
			w := p.rm.Pool.Get(id)
			if w.Parent != waypoint.NoId && invalid[w.Parent] {
				invalid[id] = true
				changed = true
			}
		}
	}
	// Sorted iteration keeps the recompute order (and thus the repaired
	// parents) deterministic across runs.
	for _, id := range util.SortedMapKeys(invalid) {
		w := p.rm.Pool.Get(id)
		w.G = environment.Inf()
		w.Parent = waypoint.NoId
		p.rm.Pool.Set(id, w)
		for _, e := range p.rm.EdgesOf(id) {
			other := e.V
			if other == id {
				other = e.U
			}
			if invalid[other] {
				continue
			}
			if p.computeCost(other, id) {
				p.pushOpen(id)
			}
		}
	}
}

func (p *FAPRM) hasEdge(u, v waypoint.Id) bool {
	for _, e := range p.rm.EdgesOf(u) {
		if (e.U == u && e.V == v) || (e.U == v && e.V == u) {
			return true
		}
	}
	return false
}

func moveToward(g *geo.Globe, from, to geo.Position, maxDistance float32) geo.Position {
	a, b := g.ToPoint3(from), g.ToPoint3(to)
	d := geo.Distance3(a, b)
	if d <= maxDistance {
		return to
	}
	dir := geo.Normalize3(geo.Sub3(b, a))
	return g.ToPosition(geo.Add3(a, geo.Scale3(dir, maxDistance)))
}

func sampleCube(g *geo.Globe, r *rand.Rand, center geo.Position, side float32) geo.Position {
	c := g.ToPoint3(center)
	half := side / 2
	pt := geo.Point3{
		c[0] + (r.Float32()*2-1)*half,
		c[1] + (r.Float32()*2-1)*half,
		c[2] + (r.Float32()*2-1)*half,
	}
	return g.ToPosition(pt)
}
