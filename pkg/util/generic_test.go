// pkg/util/generic_test.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package util

import (
	"slices"
	"strconv"
	"testing"
)

func TestRingBuffer(t *testing.T) {
	rb := NewRingBuffer[int](4)

	if rb.Size() != 0 {
		t.Errorf("empty ring buffer has size %d", rb.Size())
	}

	rb.Add(0, 1, 2, 3, 4)
	if rb.Size() != 4 {
		t.Errorf("Size() = %d, want 4 after overfilling", rb.Size())
	}
	// Oldest element (0) should have been discarded.
	for i := 0; i < 4; i++ {
		if rb.Get(i) != i+1 {
			t.Errorf("Get(%d) = %d, want %d", i, rb.Get(i), i+1)
		}
	}

	rb.Add(5, 6, 7, 8)
	for i := 0; i < 4; i++ {
		if rb.Get(i) != i+5 {
			t.Errorf("Get(%d) = %d, want %d", i, rb.Get(i), i+5)
		}
	}
}

func TestSortedMapKeys(t *testing.T) {
	m := map[int]string{10: "a", 2: "b", 7: "c"}
	if got := SortedMapKeys(m); !slices.Equal(got, []int{2, 7, 10}) {
		t.Errorf("SortedMapKeys = %v, want [2 7 10]", got)
	}

	s := map[string]int{"x": 0, "a": 0, "m": 0}
	if got := SortedMapKeys(s); !slices.Equal(got, []string{"a", "m", "x"}) {
		t.Errorf("SortedMapKeys = %v, want [a m x]", got)
	}
}

func TestDuplicateSlice(t *testing.T) {
	orig := []int{1, 2, 3}
	dupe := DuplicateSlice(orig)
	if !slices.Equal(orig, dupe) {
		t.Errorf("duplicate doesn't match original")
	}
	dupe[0] = 99
	if orig[0] != 1 {
		t.Errorf("mutating duplicate changed the original")
	}
}

func TestMapSlice(t *testing.T) {
	got := MapSlice([]int{1, 2, 3}, strconv.Itoa)
	if !slices.Equal(got, []string{"1", "2", "3"}) {
		t.Errorf("MapSlice = %v", got)
	}
}

func TestFilterSlice(t *testing.T) {
	got := FilterSlice([]int{1, 2, 3, 4, 5, 6}, func(v int) bool { return v%2 == 0 })
	if !slices.Equal(got, []int{2, 4, 6}) {
		t.Errorf("FilterSlice = %v, want [2 4 6]", got)
	}

	if got := FilterSlice(nil, func(int) bool { return true }); got != nil {
		t.Errorf("FilterSlice(nil) = %v, want nil", got)
	}
}
