// pkg/planner/openqueue.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package planner

import (
	"container/heap"

	"github.com/mmp/flightplan/pkg/waypoint"
)

// OpenQueue is a priority queue with mutable keys, used by every
// best-first search in this package (ForwardAStar, ThetaStar, ARAStar,
// PRM query, FAPRM/FADPRM). Go's container/heap has no decrease-key, so
// a changed key is handled by re-inserting a fresh entry and tracking
// the current "version" of each waypoint's key; a pop that surfaces a
// stale entry (one whose version doesn't match the latest push for that
// id) is discarded and the next entry is popped instead.
type OpenQueue struct {
	items   []queueItem
	version map[waypoint.Id]int64
	inOpen  map[waypoint.Id]bool
}

type queueItem struct {
	id      waypoint.Id
	key     float32
	version int64
	// tieBreak is compared when key is equal; lower wins. Planners set
	// this to queue insertion order (FIFO ties) or -h (FAPRM's "ties
	// broken in favor of higher h").
	tieBreak float32
}

func NewOpenQueue() *OpenQueue {
	return &OpenQueue{version: make(map[waypoint.Id]int64), inOpen: make(map[waypoint.Id]bool)}
}

func (q *OpenQueue) Len() int { return len(q.items) }

func (q *OpenQueue) Less(i, j int) bool {
	if q.items[i].key != q.items[j].key {
		return q.items[i].key < q.items[j].key
	}
	return q.items[i].tieBreak < q.items[j].tieBreak
}

func (q *OpenQueue) Swap(i, j int) { q.items[i], q.items[j] = q.items[j], q.items[i] }

func (q *OpenQueue) Push(x any) { q.items = append(q.items, x.(queueItem)) }

func (q *OpenQueue) Pop() any {
	n := len(q.items)
	it := q.items[n-1]
	q.items = q.items[:n-1]
	return it
}

// Upsert inserts id with the given key/tieBreak, or -- if id is already
// open -- bumps its version and pushes a fresh entry, leaving the stale
// one to be skipped on pop, so a changed key is always reflected in pop
// order.
func (q *OpenQueue) Upsert(id waypoint.Id, key, tieBreak float32) {
	q.version[id]++
	q.inOpen[id] = true
	heap.Push(q, queueItem{id: id, key: key, version: q.version[id], tieBreak: tieBreak})
}

// PopBest returns the lowest-key waypoint still open, skipping stale
// entries left behind by Upsert, and false if the queue is empty.
func (q *OpenQueue) PopBest() (waypoint.Id, bool) {
	for q.Len() > 0 {
		it := heap.Pop(q).(queueItem)
		if q.version[it.id] != it.version {
			continue // superseded by a later Upsert
		}
		delete(q.inOpen, it.id)
		return it.id, true
	}
	return waypoint.NoId, false
}

// Contains reports whether id currently has a live (non-stale) entry in
// the queue.
func (q *OpenQueue) Contains(id waypoint.Id) bool { return q.inOpen[id] }

// Remove invalidates id's current entry without popping it, for a
// caller that takes a waypoint out of open outside of Pop. No planner
// in this package calls it; FADPRM's correction propagation re-inserts
// with Upsert instead.
func (q *OpenQueue) Remove(id waypoint.Id) {
	q.version[id]++
	delete(q.inOpen, id)
}

// Reset empties the queue for a fresh search.
func (q *OpenQueue) Reset() {
	q.items = q.items[:0]
	q.version = make(map[waypoint.Id]int64)
	q.inOpen = make(map[waypoint.Id]bool)
}
