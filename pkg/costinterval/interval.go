// pkg/costinterval/interval.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package costinterval implements the interval tree of time-varying cost
// intervals that every Environment variant embeds: a balanced BST keyed
// by interval start, augmented with subtree-max end, supporting point and
// range queries and dedup-by-id cost aggregation.
package costinterval

import (
	"time"

	"github.com/google/uuid"
)

// CostInterval is a time-varying hazard or desirability observation: a
// cost magnitude active over [Start, End]. Id is stable across
// re-receipts of the same phenomenon (e.g., successive radar sweeps of
// the same weather cell) so that the aggregation pass in Tree.Cost can
// dedupe overlapping observations of it.
type CostInterval struct {
	Id     string
	Start  time.Time
	End    time.Time
	Cost   float32
	Weight float32 // 0 means "unweighted"; see WeightedCost
}

// NewCostInterval mints a CostInterval with a fresh, stable Id, for
// callers observing a phenomenon for the first time; a re-receipt of the
// same phenomenon should reuse the original Id rather than minting again.
func NewCostInterval(start, end time.Time, cost float32) CostInterval {
	return CostInterval{Id: uuid.NewString(), Start: start, End: end, Cost: cost}
}

// Overlaps reports whether the interval is active at any point in
// [start, end].
func (c CostInterval) Overlaps(start, end time.Time) bool {
	return !c.Start.After(end) && !c.End.Before(start)
}

// Contains reports whether the interval is active at instant t.
func (c CostInterval) Contains(t time.Time) bool {
	return !c.Start.After(t) && !c.End.Before(t)
}

// WeightedCost returns Cost*Weight if a weight was supplied, else Cost.
func (c CostInterval) WeightedCost() float32 {
	if c.Weight == 0 {
		return c.Cost
	}
	return c.Cost * c.Weight
}
