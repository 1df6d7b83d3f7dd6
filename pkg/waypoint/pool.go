// pkg/waypoint/pool.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package waypoint

import (
	"github.com/brunoga/deep"

	"github.com/mmp/flightplan/pkg/geo"
)

// Pool is the arena that owns every Waypoint created during a planner's
// lifetime. Waypoints are retained across anytime passes so later passes
// can reuse them (and their incoming edges); Reset clears the pool for a
// fresh query.
//
// Because Parent/Neighbors are Ids rather than pointers, a Pool snapshot
// is just a slice copy: no pointer rewiring is needed to make a backup
// self-consistent, which is what the FAPRM family uses before each
// inflation pass (ARA* keeps its pool across passes without a snapshot).
type Pool struct {
	waypoints []Waypoint
	// posIndex speeds up position-based equality lookups (waypoint
	// equality is by spatial position, not identity); keyed by a
	// quantized position so near-duplicates within the position epsilon
	// collide into the same bucket.
	posIndex map[quantizedPos][]Id
}

type quantizedPos [3]int32

const quantum = 1e4 // 1e-4 degree buckets: ~36 ft of latitude

func quantize(p geo.Position) quantizedPos {
	return quantizedPos{
		int32(p.Latitude * quantum),
		int32(p.Longitude * quantum),
		int32(p.Elevation),
	}
}

// NewPool returns an empty waypoint arena.
func NewPool() *Pool {
	return &Pool{posIndex: make(map[quantizedPos][]Id)}
}

// Reset clears the pool for a fresh planning query.
func (p *Pool) Reset() {
	p.waypoints = p.waypoints[:0]
	p.posIndex = make(map[quantizedPos][]Id)
}

// Len returns the number of waypoints currently in the pool.
func (p *Pool) Len() int { return len(p.waypoints) }

// Add inserts a new waypoint and returns its handle.
func (p *Pool) Add(w Waypoint) Id {
	id := Id(len(p.waypoints))
	p.waypoints = append(p.waypoints, w)
	q := quantize(w.Position)
	p.posIndex[q] = append(p.posIndex[q], id)
	return id
}

// Get returns a copy of the waypoint with the given id.
func (p *Pool) Get(id Id) Waypoint {
	return p.waypoints[id]
}

// Ptr returns a mutable pointer to the waypoint with the given id, valid
// until the next Add (which may grow the backing slice).
func (p *Pool) Ptr(id Id) *Waypoint {
	return &p.waypoints[id]
}

// Set overwrites the waypoint at id.
func (p *Pool) Set(id Id, w Waypoint) {
	p.waypoints[id] = w
}

// Find returns the Id of an existing waypoint within PrecisionPosition of
// pos, if any, implementing the "same graph node" identity rule.
func (p *Pool) Find(pos geo.Position) (Id, bool) {
	q := quantize(pos)
	for _, id := range p.posIndex[q] {
		w := p.waypoints[id]
		if geo.PrecisionEqual(w.Position.Latitude, pos.Latitude) &&
			geo.PrecisionEqual(w.Position.Longitude, pos.Longitude) &&
			geo.PrecisionEqual(w.Position.Elevation, pos.Elevation) {
			return id, true
		}
	}
	return NoId, false
}

// FindOrAdd returns the existing waypoint at pos if one exists, or
// creates and returns a fresh one.
func (p *Pool) FindOrAdd(pos geo.Position) Id {
	if id, ok := p.Find(pos); ok {
		return id
	}
	return p.Add(New(pos))
}

// All returns every waypoint id currently allocated.
func (p *Pool) All() []Id {
	ids := make([]Id, len(p.waypoints))
	for i := range ids {
		ids[i] = Id(i)
	}
	return ids
}

// Snapshot deep-copies the pool's waypoint slice for later restoration,
// the backup anytime planners take before an inflation pass. The index map
// doesn't need deep copying since it's rebuilt wholesale by Restore via
// Add-free replacement.
func (p *Pool) Snapshot() []Waypoint {
	cp, err := deep.Copy(p.waypoints)
	if err != nil {
		// deep.Copy only fails on unsupported field types; Waypoint has
		// none, so this is unreachable in practice. Fall back to a
		// shallow copy rather than losing the backup outright.
		cp = append([]Waypoint(nil), p.waypoints...)
	}
	return cp
}

// Restore replaces the pool's contents with a previously captured
// Snapshot. Since Ids are positional, restoring is just swapping the
// backing slice back in; no parent/neighbor pointers need rewiring.
func (p *Pool) Restore(snapshot []Waypoint) {
	p.waypoints = append([]Waypoint(nil), snapshot...)
	p.posIndex = make(map[quantizedPos][]Id)
	for i, w := range p.waypoints {
		q := quantize(w.Position)
		p.posIndex[q] = append(p.posIndex[q], Id(i))
	}
}
