// pkg/costinterval/tree_test.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package costinterval

import (
	"testing"
	"time"
)

func mkTime(minutes int) time.Time {
	return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(minutes) * time.Minute)
}

func TestSearchPointAndRange(t *testing.T) {
	tr := New()
	tr.Add(CostInterval{Id: "a", Start: mkTime(0), End: mkTime(10), Cost: 5})
	tr.Add(CostInterval{Id: "b", Start: mkTime(5), End: mkTime(15), Cost: 7})
	tr.Add(CostInterval{Id: "c", Start: mkTime(20), End: mkTime(30), Cost: 3})

	if tr.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", tr.Len())
	}

	at := tr.SearchPoint(mkTime(7))
	if len(at) != 2 {
		t.Fatalf("SearchPoint(7) returned %d intervals, want 2", len(at))
	}

	rng := tr.SearchRange(mkTime(9), mkTime(21))
	if len(rng) != 3 {
		t.Fatalf("SearchRange(9,21) returned %d intervals, want 3", len(rng))
	}

	none := tr.SearchPoint(mkTime(17))
	if len(none) != 0 {
		t.Fatalf("SearchPoint(17) returned %d intervals, want 0", len(none))
	}
}

// TestCostDedup: aggregating cost
// over [t1,t2] with two intervals sharing the same Id yields the same
// value as with a single copy.
func TestCostDedup(t *testing.T) {
	single := New()
	single.Add(CostInterval{Id: "x", Start: mkTime(0), End: mkTime(10), Cost: 100})
	singleCost := single.Cost(mkTime(0), mkTime(10))

	dup := New()
	dup.Add(CostInterval{Id: "x", Start: mkTime(0), End: mkTime(5), Cost: 100})
	dup.Add(CostInterval{Id: "x", Start: mkTime(3), End: mkTime(10), Cost: 100})
	dupCost := dup.Cost(mkTime(0), mkTime(10))

	if singleCost != dupCost {
		t.Errorf("dedup mismatch: single=%v dup=%v", singleCost, dupCost)
	}
	if dupCost != 100 {
		t.Errorf("Cost() = %v, want 100 after dedup", dupCost)
	}
}

func TestCostDistinctIdsSum(t *testing.T) {
	tr := New()
	tr.Add(CostInterval{Id: "a", Start: mkTime(0), End: mkTime(10), Cost: 10})
	tr.Add(CostInterval{Id: "b", Start: mkTime(0), End: mkTime(10), Cost: 20})
	if got := tr.Cost(mkTime(0), mkTime(10)); got != 30 {
		t.Errorf("Cost() = %v, want 30", got)
	}
}

func TestWeightedCost(t *testing.T) {
	iv := CostInterval{Cost: 10, Weight: 0.5}
	if got := iv.WeightedCost(); got != 5 {
		t.Errorf("WeightedCost() = %v, want 5", got)
	}
	unweighted := CostInterval{Cost: 10}
	if got := unweighted.WeightedCost(); got != 10 {
		t.Errorf("WeightedCost() = %v, want 10 (no weight set)", got)
	}
}

func TestRemove(t *testing.T) {
	tr := New()
	tr.Add(CostInterval{Id: "a", Start: mkTime(0), End: mkTime(10), Cost: 5})
	tr.Add(CostInterval{Id: "b", Start: mkTime(0), End: mkTime(10), Cost: 5})

	if !tr.Remove("a", mkTime(0)) {
		t.Fatalf("Remove(a) reported not found")
	}
	if tr.Len() != 1 {
		t.Fatalf("Len() after Remove = %d, want 1", tr.Len())
	}
	if tr.Remove("a", mkTime(0)) {
		t.Fatalf("Remove(a) reported found after already removed")
	}
}

func TestRemoveAllById(t *testing.T) {
	tr := New()
	tr.Add(CostInterval{Id: "a", Start: mkTime(0), End: mkTime(5), Cost: 5})
	tr.Add(CostInterval{Id: "a", Start: mkTime(10), End: mkTime(15), Cost: 5})
	tr.Add(CostInterval{Id: "b", Start: mkTime(0), End: mkTime(5), Cost: 5})

	n := tr.RemoveAllById("a")
	if n != 1 {
		t.Fatalf("RemoveAllById returned %d, want 1 (remaining count)", n)
	}
	if tr.Len() != 1 {
		t.Fatalf("Len() after RemoveAllById = %d, want 1", tr.Len())
	}
	if got := tr.SearchPoint(mkTime(2)); len(got) != 0 {
		t.Errorf("found %d intervals with id a after removal, want 0", len(got))
	}
}

func TestOverlapsAndContains(t *testing.T) {
	iv := CostInterval{Start: mkTime(10), End: mkTime(20)}
	if !iv.Contains(mkTime(15)) {
		t.Errorf("Contains(15) = false, want true")
	}
	if iv.Contains(mkTime(25)) {
		t.Errorf("Contains(25) = true, want false")
	}
	if !iv.Overlaps(mkTime(18), mkTime(30)) {
		t.Errorf("Overlaps(18,30) = false, want true")
	}
	if iv.Overlaps(mkTime(21), mkTime(30)) {
		t.Errorf("Overlaps(21,30) = true, want false")
	}
}

func TestEmptyTreeCostIsZero(t *testing.T) {
	tr := New()
	if got := tr.Cost(mkTime(0), mkTime(100)); got != 0 {
		t.Errorf("Cost() on empty tree = %v, want 0", got)
	}
}
