// pkg/environment/roadmap.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package environment

import (
	"sort"
	"time"

	"github.com/mmp/flightplan/pkg/aircraft"
	"github.com/mmp/flightplan/pkg/costinterval"
	"github.com/mmp/flightplan/pkg/geo"
	"github.com/mmp/flightplan/pkg/log"
	"github.com/mmp/flightplan/pkg/obstacle"
	"github.com/mmp/flightplan/pkg/rand"
	"github.com/mmp/flightplan/pkg/util"
	"github.com/mmp/flightplan/pkg/waypoint"
)

// Roadmap is the continuous-box (sampling) environment variant: a
// single oriented box with an ordered list of sampled waypoints and
// explicit edges. RRT-family
// planners use it as a plain continuous box (ignoring the waypoint/edge
// list they don't populate via roadmap growth); PRM-family planners
// populate and query the roadmap.
type Roadmap struct {
	globe *geo.Globe
	box   geo.OrientedBox
	now   time.Time
	lg    *log.Logger
	rnd   rand.Rand
	mu    util.LoggingMutex

	tree       *costinterval.Tree
	obstacles  map[string]obstacle.Obstacle
	desirables []obstacle.DesirabilityZone

	Pool  *waypoint.Pool
	edges map[waypoint.Id][]*waypoint.Edge
}

// NewRoadmap returns an empty roadmap over the given box.
func NewRoadmap(box geo.OrientedBox, lg *log.Logger) *Roadmap {
	return &Roadmap{
		box:       box,
		tree:      costinterval.New(),
		obstacles: make(map[string]obstacle.Obstacle),
		Pool:      waypoint.NewPool(),
		edges:     make(map[waypoint.Id][]*waypoint.Edge),
		rnd:       rand.New(),
		lg:        lg,
	}
}

func (r *Roadmap) Kind() Kind { return RoadmapKind }

func (r *Roadmap) Lock(lg *log.Logger)   { r.mu.Lock(lg) }
func (r *Roadmap) Unlock(lg *log.Logger) { r.mu.Unlock(lg) }

func (r *Roadmap) Globe() *geo.Globe      { return r.globe }
func (r *Roadmap) SetGlobe(g *geo.Globe)  { r.globe = g }
func (r *Roadmap) Now() time.Time         { return r.now }
func (r *Roadmap) SetTime(t time.Time)    { r.now = t }
func (r *Roadmap) Seed(s int64)           { r.rnd.Seed(s) }
func (r *Roadmap) Box() geo.OrientedBox   { return r.box }

func (r *Roadmap) AddCostInterval(iv costinterval.CostInterval) { r.tree.Add(iv) }
func (r *Roadmap) RemoveCostInterval(id string, start time.Time) bool {
	return r.tree.Remove(id, start)
}

func (r *Roadmap) DesirabilityZones() []obstacle.DesirabilityZone { return r.desirables }
func (r *Roadmap) AddDesirabilityZone(z obstacle.DesirabilityZone) {
	r.desirables = append(r.desirables, z)
}

func (r *Roadmap) Embed(ob obstacle.Obstacle) bool {
	box := r.box.BoundingExtent3D()
	if !ob.Shape.Intersects(box) {
		return false
	}
	r.obstacles[ob.Id] = ob
	if !ob.Hard {
		r.tree.Add(costinterval.CostInterval{Id: ob.Id, Start: ob.Start, End: ob.End, Cost: ob.Cost})
	}
	// A hard obstacle drops every stored edge whose segment now crosses
	// it; the FADPRM/DRRT repair loops react to the resulting gaps. Edges
	// crossing a soft obstacle are kept, and its cost is picked up per
	// query by GetLegCost.
	r.invalidateEdges(ob)
	return true
}

func (r *Roadmap) Unembed(ob obstacle.Obstacle) bool {
	if _, ok := r.obstacles[ob.Id]; !ok {
		return false
	}
	delete(r.obstacles, ob.Id)
	r.tree.RemoveAllById(ob.Id)
	return true
}

func (r *Roadmap) UnembedAll() {
	r.obstacles = make(map[string]obstacle.Obstacle)
	r.tree = costinterval.New()
}

func (r *Roadmap) Distance(a, b geo.Position) float32 {
	return geo.Distance3D(a, b)
}

func (r *Roadmap) NormalizedDistance(a, b geo.Position) float32 {
	n := r.box.BoundingExtent3D().LongestEdge()
	if n == 0 {
		return 0
	}
	return r.Distance(a, b) / n
}

func (r *Roadmap) Contains(p geo.Position) bool {
	return r.box.Inside(r.globe.ToPoint3(p))
}

// Neighbors returns the roadmap waypoints directly connected to the
// waypoint at p, or nil if p isn't a roadmap vertex.
func (r *Roadmap) Neighbors(p geo.Position) []geo.Position {
	id, ok := r.Pool.Find(p)
	if !ok {
		return nil
	}
	var out []geo.Position
	for _, e := range r.edges[id] {
		other := e.V
		if other == id {
			other = e.U
		}
		out = append(out, r.Pool.Get(other).Position)
	}
	return out
}

func (r *Roadmap) AreNeighbors(a, b geo.Position) bool {
	aid, aok := r.Pool.Find(a)
	bid, bok := r.Pool.Find(b)
	if !aok || !bok {
		return false
	}
	for _, e := range r.edges[aid] {
		if e.U == bid || e.V == bid {
			return true
		}
	}
	return false
}

func (r *Roadmap) GetStepCost(p, q geo.Position, start, end time.Time, cp CostPolicy, rp RiskPolicy) float32 {
	if !r.AreNeighbors(p, q) {
		return inf
	}
	return r.GetLegCost(p, q, start, end, cp, rp)
}

// GetLegCost tests the segment p-q against the embedded obstacle set
// directly (the roadmap has no discrete cells to walk), blocking
// outright on any active hard obstacle intersecting the segment and
// otherwise admitting 1 plus the aggregated cost of the soft obstacles
// the segment crosses through rp. Intervals added with AddCostInterval
// are not part of this sum.
func (r *Roadmap) GetLegCost(p, q geo.Position, start, end time.Time, cp CostPolicy, rp RiskPolicy) float32 {
	a, b := r.globe.ToPoint3(p), r.globe.ToPoint3(q)
	for _, ob := range r.obstacles {
		if ob.Hard && ob.Active(start, end) && ob.Shape.IntersectsSegment(a, b) {
			return inf
		}
	}
	magnitude := 1 + r.embedIntervalTree(a, b).Cost(start, end)
	admitted := rp.Admit(magnitude)
	if IsInf(admitted) {
		return inf
	}
	return cp.Combine([]float32{admitted})
}

// embedIntervalTree builds the edge-local interval tree for a segment by
// intersecting it against every soft obstacle's cost intervals; built
// on demand by GetLegCost (edges do not store one).
func (r *Roadmap) embedIntervalTree(a, b geo.Point3) *costinterval.Tree {
	t := costinterval.New()
	for _, ob := range r.obstacles {
		if ob.Hard {
			continue
		}
		if ob.Shape.IntersectsSegment(a, b) {
			t.Add(costinterval.CostInterval{Id: ob.Id, Start: ob.Start, End: ob.End, Cost: ob.Cost})
		}
	}
	return t
}

// SampleRandomPosition returns a position sampled uniformly within the
// box.
func (r *Roadmap) SampleRandomPosition() geo.Position {
	he := r.box.HalfExtents
	local := geo.Point3{
		(r.rnd.Float32()*2 - 1) * he[0],
		(r.rnd.Float32()*2 - 1) * he[1],
		(r.rnd.Float32()*2 - 1) * he[2],
	}
	h := geo.Radians(r.box.Heading)
	c, s := geo.Cos(h), geo.Sin(h)
	rot := geo.Point3{local[0]*c - local[1]*s, local[0]*s + local[1]*c, local[2]}
	pt := geo.Add3(rot, r.box.Center)
	return r.globe.ToPosition(pt)
}

// CheckConflict reports whether the position collides with any hard
// (terrain) obstacle.
func (r *Roadmap) CheckConflict(p geo.Position) bool {
	pt := r.globe.ToPoint3(p)
	box := geo.Extent3D{P0: pt, P1: pt}
	for _, ob := range r.obstacles {
		if ob.Hard && ob.Shape.Intersects(box) {
			return true
		}
	}
	return false
}

// CheckConflictSegment reports whether the segment u-v, inflated by the
// aircraft's separation radius, collides with any hard obstacle.
func (r *Roadmap) CheckConflictSegment(u, v geo.Position, cap aircraft.Capabilities) bool {
	a, b := r.globe.ToPoint3(u), r.globe.ToPoint3(v)
	radius := float32(0)
	if cap != nil {
		radius = cap.SeparationRadius()
	}
	for _, ob := range r.obstacles {
		if !ob.Hard {
			continue
		}
		inflated := ob.Shape
		switch inflated.Kind {
		case obstacle.Sphere, obstacle.Cylinder:
			inflated.Radius += radius
		case obstacle.Box:
			inflated.Box.P0 = geo.Sub3(inflated.Box.P0, geo.Point3{radius, radius, radius})
			inflated.Box.P1 = geo.Add3(inflated.Box.P1, geo.Point3{radius, radius, radius})
		}
		if inflated.IntersectsSegment(a, b) {
			return true
		}
	}
	return false
}

// invalidateEdges drops any stored edge whose segment now crosses a
// newly embedded hard obstacle; used to feed the FADPRM/DRRT repair
// loop, which reacts to the resulting gaps via propagateCorrections.
func (r *Roadmap) invalidateEdges(ob obstacle.Obstacle) {
	if !ob.Hard {
		return
	}
	for id, edges := range r.edges {
		r.edges[id] = util.FilterSlice(edges, func(e *waypoint.Edge) bool {
			a := r.Pool.Get(e.U).Position
			b := r.Pool.Get(e.V).Position
			return !ob.Shape.IntersectsSegment(r.globe.ToPoint3(a), r.globe.ToPoint3(b))
		})
	}
}

// Reset clears the roadmap's waypoints and edges together for a fresh
// query. Clearing only the pool would leave edges keyed by dead waypoint
// ids behind, so the two always reset as a unit.
func (r *Roadmap) Reset() {
	r.Pool.Reset()
	r.edges = make(map[waypoint.Id][]*waypoint.Edge)
}

// EdgesOf returns the edges incident on id.
func (r *Roadmap) EdgesOf(id waypoint.Id) []*waypoint.Edge { return r.edges[id] }

// AddWaypoint inserts pos into the pool (reusing an existing waypoint
// within PrecisionPosition, per the identity invariant) and returns its
// id.
func (r *Roadmap) AddWaypoint(pos geo.Position) waypoint.Id {
	return r.Pool.FindOrAdd(pos)
}

// AddEdge connects u and v with a bidirectional edge, computing its
// length and its desirability against the roadmap's desirability zones.
// No interval tree is stored on the edge; GetLegCost builds the
// segment's tree when the edge is costed.
func (r *Roadmap) AddEdge(u, v waypoint.Id, lambda float32) *waypoint.Edge {
	a, b := r.Pool.Get(u).Position, r.Pool.Get(v).Position
	pa, pb := r.globe.ToPoint3(a), r.globe.ToPoint3(b)
	e := &waypoint.Edge{
		U: u, V: v, Length: geo.Distance3(pa, pb), Lambda: lambda,
		Desirability: r.desirabilityOf(pa, pb),
	}
	r.edges[u] = append(r.edges[u], e)
	r.edges[v] = append(r.edges[v], e)
	return e
}

// RemoveEdge removes the edge between u and v, if present.
func (r *Roadmap) RemoveEdge(u, v waypoint.Id) {
	strip := func(id waypoint.Id) {
		r.edges[id] = util.FilterSlice(r.edges[id], func(e *waypoint.Edge) bool {
			return !((e.U == u && e.V == v) || (e.U == v && e.V == u))
		})
	}
	strip(u)
	strip(v)
}

func (r *Roadmap) desirabilityOf(a, b geo.Point3) float32 {
	if len(r.desirables) == 0 {
		return 0.5
	}
	var sum float32
	var n int
	for _, z := range r.desirables {
		if z.Shape.IntersectsSegment(a, b) {
			sum += z.Desirability
			n++
		}
	}
	if n == 0 {
		return 0.5
	}
	return sum / float32(n)
}

// SortNearest stably sorts ids by normalized distance to p. Distances
// are computed once per id rather than inside the comparator; the
// comparator runs O(n log n) times and the distance math is the
// expensive part.
func (r *Roadmap) SortNearest(p geo.Position, ids []waypoint.Id) {
	type idDist struct {
		id waypoint.Id
		d  float32
	}
	byDist := make([]idDist, len(ids))
	for i, id := range ids {
		byDist[i] = idDist{id, r.NormalizedDistance(p, r.Pool.Get(id).Position)}
	}
	sort.SliceStable(byDist, func(i, j int) bool { return byDist[i].d < byDist[j].d })
	for i, e := range byDist {
		ids[i] = e.id
	}
}

// FindNearest returns up to k waypoints closest to p, sorted ascending
// by normalized distance, excluding p itself if it's already a roadmap
// vertex.
func (r *Roadmap) FindNearest(p geo.Position, k int) []waypoint.Id {
	self, hasSelf := r.Pool.Find(p)
	all := r.Pool.All()
	ids := make([]waypoint.Id, 0, len(all))
	for _, id := range all {
		if hasSelf && id == self {
			continue
		}
		ids = append(ids, id)
	}
	r.SortNearest(p, ids)
	if len(ids) > k {
		ids = ids[:k]
	}
	return ids
}
