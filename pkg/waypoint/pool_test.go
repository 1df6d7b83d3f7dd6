// pkg/waypoint/pool_test.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package waypoint

import (
	"math"
	"testing"

	"github.com/mmp/flightplan/pkg/geo"
)

func TestNewWaypointUnreached(t *testing.T) {
	w := New(geo.Position{Latitude: 1, Longitude: 2, Elevation: 3})
	if w.Reached() {
		t.Errorf("a fresh waypoint should be unreached")
	}
	if w.Parent != NoId {
		t.Errorf("a fresh waypoint should have no parent")
	}
	w.G = 42
	if !w.Reached() {
		t.Errorf("a waypoint with finite G should be reached")
	}
}

// TestPoolIdentityByPosition exercises the invariant that two waypoints
// at the same position (within the position epsilon) are the same graph
// node, not distinguished by identity.
func TestPoolIdentityByPosition(t *testing.T) {
	p := NewPool()
	pos := geo.Position{Latitude: 10, Longitude: 20, Elevation: 1000}

	id1 := p.FindOrAdd(pos)
	id2 := p.FindOrAdd(pos)
	if id1 != id2 {
		t.Fatalf("FindOrAdd returned distinct ids for the same position: %v, %v", id1, id2)
	}
	if p.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", p.Len())
	}

	nearby := geo.Position{Latitude: 10.0000001, Longitude: 20, Elevation: 1000}
	id3 := p.FindOrAdd(nearby)
	if id3 != id1 {
		t.Fatalf("a position within epsilon should resolve to the same node")
	}

	distinct := geo.Position{Latitude: 11, Longitude: 20, Elevation: 1000}
	id4 := p.FindOrAdd(distinct)
	if id4 == id1 {
		t.Fatalf("a distinct position should not resolve to the same node")
	}
	if p.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", p.Len())
	}
}

func TestPoolSnapshotRestore(t *testing.T) {
	p := NewPool()
	id := p.Add(New(geo.Position{Latitude: 1}))
	w := p.Get(id)
	w.G = 5
	p.Set(id, w)

	snap := p.Snapshot()

	w2 := p.Get(id)
	w2.G = 999
	p.Set(id, w2)
	if p.Get(id).G != 999 {
		t.Fatalf("mutation after snapshot didn't take effect")
	}

	p.Restore(snap)
	if p.Get(id).G != 5 {
		t.Fatalf("Restore() didn't roll back to the snapshot's G value, got %v", p.Get(id).G)
	}

	// Restore must also rebuild the position index so Find still works.
	if _, ok := p.Find(geo.Position{Latitude: 1}); !ok {
		t.Errorf("Find() after Restore failed to locate the restored waypoint")
	}
}

func TestPoolReset(t *testing.T) {
	p := NewPool()
	p.Add(New(geo.Position{Latitude: 1}))
	p.Add(New(geo.Position{Latitude: 2}))
	p.Reset()
	if p.Len() != 0 {
		t.Fatalf("Len() after Reset() = %d, want 0", p.Len())
	}
	if _, ok := p.Find(geo.Position{Latitude: 1}); ok {
		t.Errorf("Find() found a waypoint after Reset()")
	}
}

func TestPoolAllAndPtr(t *testing.T) {
	p := NewPool()
	a := p.Add(New(geo.Position{Latitude: 1}))
	b := p.Add(New(geo.Position{Latitude: 2}))

	ids := p.All()
	if len(ids) != 2 || ids[0] != a || ids[1] != b {
		t.Fatalf("All() = %v, want [%v %v]", ids, a, b)
	}

	ptr := p.Ptr(a)
	ptr.G = 123
	if p.Get(a).G != 123 {
		t.Errorf("mutation through Ptr() didn't take effect")
	}
}

func TestWaypointGHNonNegativeByConstruction(t *testing.T) {
	w := New(geo.Position{})
	if w.H < 0 {
		t.Errorf("H should start non-negative")
	}
	if w.G < 0 && !math.IsInf(float64(w.G), 1) {
		t.Errorf("G should be non-negative or +Inf, got %v", w.G)
	}
}
