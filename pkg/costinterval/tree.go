// pkg/costinterval/tree.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package costinterval

import (
	"time"

	"github.com/mmp/flightplan/pkg/rand"
)

// Tree is a balanced interval tree keyed by CostInterval.Start and
// augmented with each subtree's maximum End, which lets SearchPoint and
// SearchRange prune subtrees that cannot possibly overlap the query in
// O(log n + k) time. Balance is maintained with treap priorities (random
// priorities plus heap order) rather than rotations tied to insertion
// order, so adversarial insertion sequences (e.g., monotonically
// increasing obstacle timestamps) don't degenerate into a linked list.
type Tree struct {
	root *node
	r    rand.Rand
	size int
}

type node struct {
	iv       CostInterval
	maxEnd   time.Time
	priority uint32
	left     *node
	right    *node
}

// New returns an empty interval tree.
func New() *Tree {
	t := &Tree{r: rand.New()}
	return t
}

func (t *Tree) Len() int { return t.size }

func subtreeMaxEnd(n *node) time.Time {
	if n == nil {
		return time.Time{}
	}
	return n.maxEnd
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func (n *node) update() {
	m := n.iv.End
	m = maxTime(m, subtreeMaxEnd(n.left))
	m = maxTime(m, subtreeMaxEnd(n.right))
	n.maxEnd = m
}

// Add inserts a CostInterval into the tree.
func (t *Tree) Add(iv CostInterval) {
	n := &node{iv: iv, maxEnd: iv.End, priority: t.r.Uint32()}
	t.root = treapInsert(t.root, n)
	t.size++
}

func treapInsert(root, n *node) *node {
	if root == nil {
		return n
	}
	if n.iv.Start.Before(root.iv.Start) {
		root.left = treapInsert(root.left, n)
		if root.left.priority < root.priority {
			root = rotateRight(root)
		}
	} else {
		root.right = treapInsert(root.right, n)
		if root.right.priority < root.priority {
			root = rotateLeft(root)
		}
	}
	root.update()
	return root
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	y.update()
	x.update()
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	x.update()
	y.update()
	return y
}

// Remove deletes the first CostInterval found with the given Id and
// matching Start, returning whether one was found.
func (t *Tree) Remove(id string, start time.Time) bool {
	removed := false
	t.root = treapRemove(t.root, id, start, &removed)
	if removed {
		t.size--
	}
	return removed
}

func treapRemove(root *node, id string, start time.Time, removed *bool) *node {
	if root == nil {
		return nil
	}
	if start.Before(root.iv.Start) {
		root.left = treapRemove(root.left, id, start, removed)
	} else if start.After(root.iv.Start) {
		root.right = treapRemove(root.right, id, start, removed)
	} else if root.iv.Id != id {
		// Same start time, different interval: could be either side due to
		// equal keys; probe both.
		root.left = treapRemove(root.left, id, start, removed)
		if !*removed {
			root.right = treapRemove(root.right, id, start, removed)
		}
	} else {
		*removed = true
		root = mergeChildren(root.left, root.right)
		if root != nil {
			root.update()
		}
		return root
	}
	if root != nil {
		root.update()
	}
	return root
}

func mergeChildren(l, r *node) *node {
	if l == nil {
		return r
	}
	if r == nil {
		return l
	}
	if l.priority < r.priority {
		l.right = mergeChildren(l.right, r)
		l.update()
		return l
	}
	r.left = mergeChildren(l, r.left)
	r.update()
	return r
}

// RemoveAllById removes every interval with the given Id, returning the
// count removed. Used by Obstacle unembed, where a single obstacle may
// have contributed many CostIntervals across cells/edges.
func (t *Tree) RemoveAllById(id string) int {
	var all []CostInterval
	t.root = collectExcept(t.root, id, &all)
	n := t.size - len(all)
	t.root = nil
	t.size = 0
	for _, iv := range all {
		t.Add(iv)
	}
	return n
}

func collectExcept(n *node, id string, keep *[]CostInterval) *node {
	if n == nil {
		return nil
	}
	collectExcept(n.left, id, keep)
	if n.iv.Id != id {
		*keep = append(*keep, n.iv)
	}
	collectExcept(n.right, id, keep)
	return nil
}

// SearchPoint returns every interval active at instant t.
func (t *Tree) SearchPoint(at time.Time) []CostInterval {
	var out []CostInterval
	searchPoint(t.root, at, &out)
	return out
}

func searchPoint(n *node, at time.Time, out *[]CostInterval) {
	if n == nil || subtreeMaxEnd(n).Before(at) {
		return
	}
	searchPoint(n.left, at, out)
	if n.iv.Contains(at) {
		*out = append(*out, n.iv)
	}
	if !n.iv.Start.After(at) {
		searchPoint(n.right, at, out)
	}
}

// SearchRange returns every interval overlapping [start, end].
func (t *Tree) SearchRange(start, end time.Time) []CostInterval {
	var out []CostInterval
	searchRange(t.root, start, end, &out)
	return out
}

func searchRange(n *node, start, end time.Time, out *[]CostInterval) {
	if n == nil || subtreeMaxEnd(n).Before(start) {
		return
	}
	searchRange(n.left, start, end, out)
	if n.iv.Overlaps(start, end) {
		*out = append(*out, n.iv)
	}
	if !n.iv.Start.After(end) {
		searchRange(n.right, start, end, out)
	}
}

// Cost aggregates the dedup'd cost of all intervals overlapping
// [start, end]: each unique Id contributes only its first encounter, so
// re-received observations of the same phenomenon don't double-count;
// weighted intervals contribute WeightedCost instead of Cost.
func (t *Tree) Cost(start, end time.Time) float32 {
	seen := make(map[string]bool)
	var total float32
	for _, iv := range t.SearchRange(start, end) {
		if seen[iv.Id] {
			continue
		}
		seen[iv.Id] = true
		total += iv.WeightedCost()
	}
	return total
}
