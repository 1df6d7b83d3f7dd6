// pkg/environment/grid.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package environment

import (
	"time"

	"github.com/mmp/flightplan/pkg/costinterval"
	"github.com/mmp/flightplan/pkg/geo"
	"github.com/mmp/flightplan/pkg/log"
	"github.com/mmp/flightplan/pkg/obstacle"
	"github.com/mmp/flightplan/pkg/util"
)

// cellState is the per-cell bookkeeping a PlanningGrid maintains: an
// embedded interval tree of soft (cost) contributions and the set of
// hard (terrain) obstacles currently affecting the cell.
type cellState struct {
	tree *costinterval.Tree
	hard map[string]obstacle.Obstacle
}

func newCellState() *cellState {
	return &cellState{tree: costinterval.New(), hard: make(map[string]obstacle.Obstacle)}
}

// PlanningGrid is a cubic subdivision of an oriented box with embedded
// obstacles and a per-cell aggregated cost, at the single fixed
// resolution requested by NewPlanningGrid (see DESIGN.md's pkg/environment
// notes for why there is no nested multi-resolution hierarchy). A
// caller wanting finer cells constructs a finer grid.
type PlanningGrid struct {
	globe *geo.Globe
	grid  *geo.CubicGrid
	now   time.Time
	lg    *log.Logger
	mu    util.LoggingMutex

	cells map[geo.CellIndex]*cellState
	// affected maps an obstacle id to every cell it touched, so Unembed
	// can reverse Embed without re-walking the geometry.
	affected map[string][]geo.CellIndex
}

// NewPlanningGrid subdivides bounds into an r*s*t cubic grid.
func NewPlanningGrid(bounds geo.OrientedBox, r, s, t int, lg *log.Logger) *PlanningGrid {
	return &PlanningGrid{
		grid:     geo.NewCubicGrid(bounds, r, s, t),
		cells:    make(map[geo.CellIndex]*cellState),
		affected: make(map[string][]geo.CellIndex),
		lg:       lg,
	}
}

func (g *PlanningGrid) Kind() Kind { return GridKind }

func (g *PlanningGrid) Lock(lg *log.Logger)   { g.mu.Lock(lg) }
func (g *PlanningGrid) Unlock(lg *log.Logger) { g.mu.Unlock(lg) }

func (g *PlanningGrid) Globe() *geo.Globe     { return g.globe }
func (g *PlanningGrid) SetGlobe(gl *geo.Globe) { g.globe = gl }
func (g *PlanningGrid) Now() time.Time        { return g.now }
func (g *PlanningGrid) SetTime(t time.Time)   { g.now = t }

func (g *PlanningGrid) cellAt(c geo.CellIndex) *cellState {
	cs, ok := g.cells[c]
	if !ok {
		cs = newCellState()
		g.cells[c] = cs
	}
	return cs
}

// lookupCells returns the (normally singleton) set of cells containing
// the given position; empty if outside the grid.
func (g *PlanningGrid) lookupCells(p geo.Position) []geo.CellIndex {
	pt := g.globe.ToPoint3(p)
	i, j, k, ok := g.grid.LookupCell(pt)
	if !ok {
		return nil
	}
	return []geo.CellIndex{{I: i, J: j, K: k}}
}

func (g *PlanningGrid) AddCostInterval(iv costinterval.CostInterval) {
	// A bare CostInterval (not tied to an Obstacle) is added to every cell
	// that already has state, i.e. every cell an earlier Embed touched;
	// cells no obstacle has touched yet do not receive it. Callers
	// normally go through Embed instead. Exposed for direct
	// environment-level hazard injection (e.g., a controller-entered
	// restriction not modeled as an Obstacle).
	for c, cs := range g.cells {
		_ = c
		cs.tree.Add(iv)
	}
}

func (g *PlanningGrid) RemoveCostInterval(id string, start time.Time) bool {
	removed := false
	for _, cs := range g.cells {
		if cs.tree.Remove(id, start) {
			removed = true
		}
	}
	return removed
}

// Embed pushes the obstacle into every cell whose box intersects its
// shape.
func (g *PlanningGrid) Embed(ob obstacle.Obstacle) bool {
	var touched []geo.CellIndex
	for i := 0; i < g.grid.R; i++ {
		for j := 0; j < g.grid.S; j++ {
			for k := 0; k < g.grid.T; k++ {
				ext, ok := g.grid.CellExtent(i, j, k)
				if !ok || !ob.Shape.Intersects(ext) {
					continue
				}
				c := geo.CellIndex{I: i, J: j, K: k}
				cs := g.cellAt(c)
				if ob.Hard {
					cs.hard[ob.Id] = ob
				} else {
					cs.tree.Add(costinterval.CostInterval{
						Id: ob.Id, Start: ob.Start, End: ob.End, Cost: ob.Cost,
					})
				}
				touched = append(touched, c)
			}
		}
	}
	if len(touched) == 0 {
		return false
	}
	g.affected[ob.Id] = touched
	if g.lg != nil {
		g.lg.Debug("embedded obstacle", "id", ob.Id, "cells", len(touched))
	}
	return true
}

// Unembed reverses a prior Embed, consulting the affected-children map
// recorded at embed time rather than re-testing geometry.
func (g *PlanningGrid) Unembed(ob obstacle.Obstacle) bool {
	cells, ok := g.affected[ob.Id]
	if !ok {
		return false
	}
	for _, c := range cells {
		cs, ok := g.cells[c]
		if !ok {
			continue
		}
		if ob.Hard {
			delete(cs.hard, ob.Id)
		} else {
			cs.tree.RemoveAllById(ob.Id)
		}
	}
	delete(g.affected, ob.Id)
	return true
}

func (g *PlanningGrid) UnembedAll() {
	for id, cells := range g.affected {
		for _, c := range cells {
			if cs, ok := g.cells[c]; ok {
				cs.tree.RemoveAllById(id)
				delete(cs.hard, id)
			}
		}
	}
	g.affected = make(map[string][]geo.CellIndex)
}

func (g *PlanningGrid) Distance(a, b geo.Position) float32 {
	return geo.GreatCircleDistance(a, b)
}

func (g *PlanningGrid) NormalizedDistance(a, b geo.Position) float32 {
	n := g.grid.Bounds.BoundingExtent3D().LongestEdge()
	if n == 0 {
		return 0
	}
	return g.Distance(a, b) / n
}

func (g *PlanningGrid) Contains(p geo.Position) bool {
	_, _, _, ok := g.grid.LookupCell(g.globe.ToPoint3(p))
	return ok
}

func (g *PlanningGrid) Neighbors(p geo.Position) []geo.Position {
	pt := g.globe.ToPoint3(p)
	i, j, k, ok := g.grid.LookupCell(pt)
	if !ok {
		return nil
	}
	self := geo.CellIndex{I: i, J: j, K: k}
	var out []geo.Position
	for _, n := range g.grid.Neighbors(self) {
		ext, _ := g.grid.CellExtent(n.I, n.J, n.K)
		center := ext.Center()
		out = append(out, g.globe.ToPosition(center))
	}
	return out
}

func (g *PlanningGrid) AreNeighbors(a, b geo.Position) bool {
	ai, aj, ak, aok := g.grid.LookupCell(g.globe.ToPoint3(a))
	bi, bj, bk, bok := g.grid.LookupCell(g.globe.ToPoint3(b))
	if !aok || !bok {
		return false
	}
	return geo.AreNeighbors(geo.CellIndex{I: ai, J: aj, K: ak}, geo.CellIndex{I: bi, J: bj, K: bk})
}

// cellCost returns the cell's aggregate cost (1 + unique active soft
// contributions) after the risk policy has been applied, and whether a
// hard obstacle blocks the cell outright over [start,end].
func (g *PlanningGrid) cellCost(c geo.CellIndex, start, end time.Time, rp RiskPolicy) (float32, bool) {
	cs, ok := g.cells[c]
	if !ok {
		return 1, false
	}
	for _, h := range cs.hard {
		if h.Active(start, end) {
			return inf, true
		}
	}
	magnitude := 1 + cs.tree.Cost(start, end)
	admitted := rp.Admit(magnitude)
	return admitted, IsInf(admitted)
}

func (g *PlanningGrid) GetStepCost(p, q geo.Position, start, end time.Time, cp CostPolicy, rp RiskPolicy) float32 {
	if !g.AreNeighbors(p, q) {
		return inf
	}
	shared := sharedCells(g.lookupCells(p), g.lookupCells(q))
	if len(shared) == 0 {
		shared = append(shared, g.lookupCells(p)...)
		shared = append(shared, g.lookupCells(q)...)
	}
	var costs []float32
	for _, c := range shared {
		cost, blocked := g.cellCost(c, start, end, rp)
		if blocked {
			return inf
		}
		costs = append(costs, cost)
	}
	return cp.Combine(costs)
}

// GetLegCost walks every cell the segment p-q passes through (a
// DDA-style sampled walk along the segment, since the grid has no
// native raycast) and combines their admitted cost, blocking outright on
// any hard obstacle along the way. Used by Theta*'s shortcut test and
// any caller needing a non-adjacent leg cost.
func (g *PlanningGrid) GetLegCost(p, q geo.Position, start, end time.Time, cp CostPolicy, rp RiskPolicy) float32 {
	a, b := g.globe.ToPoint3(p), g.globe.ToPoint3(q)
	dist := geo.Distance3(a, b)
	if dist == 0 {
		return 0
	}
	// Sample roughly one point per cell-width along the segment.
	cellWidth := g.grid.Bounds.BoundingExtent3D().LongestEdge() / float32(geo.Max(1, geo.Max(g.grid.R, geo.Max(g.grid.S, g.grid.T))))
	if cellWidth <= 0 {
		cellWidth = dist
	}
	steps := int(dist/cellWidth) + 1
	seen := make(map[geo.CellIndex]bool)
	var costs []float32
	for i := 0; i <= steps; i++ {
		t := float32(i) / float32(steps)
		pt := geo.Lerp3(t, a, b)
		ci, cj, ck, ok := g.grid.LookupCell(pt)
		if !ok {
			continue
		}
		c := geo.CellIndex{I: ci, J: cj, K: ck}
		if seen[c] {
			continue
		}
		seen[c] = true
		cost, blocked := g.cellCost(c, start, end, rp)
		if blocked {
			return inf
		}
		costs = append(costs, cost)
	}
	return cp.Combine(costs)
}

func sharedCells(a, b []geo.CellIndex) []geo.CellIndex {
	var out []geo.CellIndex
	for _, x := range a {
		for _, y := range b {
			if x == y {
				out = append(out, x)
			}
		}
	}
	return out
}
