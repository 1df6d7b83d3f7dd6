// pkg/trajectory/trajectory_test.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package trajectory

import (
	"testing"

	"github.com/mmp/flightplan/pkg/geo"
	"github.com/mmp/flightplan/pkg/waypoint"
)

func mkTraj(positions ...float32) Trajectory {
	var ws []waypoint.Waypoint
	for i, lat := range positions {
		w := waypoint.New(geo.Position{Latitude: lat})
		w.G = float32(i)
		ws = append(ws, w)
	}
	return Trajectory{Waypoints: ws}
}

func TestEmpty(t *testing.T) {
	if !(Trajectory{}).Empty() {
		t.Errorf("zero-value Trajectory should be Empty()")
	}
	if mkTraj(1, 2).Empty() {
		t.Errorf("a Trajectory with waypoints should not be Empty()")
	}
}

func TestCost(t *testing.T) {
	tr := mkTraj(1, 2, 3)
	if got := tr.Cost(); got != 2 {
		t.Errorf("Cost() = %v, want 2 (last waypoint's G)", got)
	}
	if got := (Trajectory{}).Cost(); got < 1e20 {
		t.Errorf("Cost() of an empty trajectory should be +Inf-ish, got %v", got)
	}
}

func TestLength(t *testing.T) {
	if got := (Trajectory{}).Length(); got != 0 {
		t.Errorf("Length() of an empty trajectory = %v, want 0", got)
	}
	// Waypoints one degree of latitude apart are 60nm apart.
	tr := mkTraj(0, 1, 2)
	if got := tr.Length(); got < 119.9 || got > 120.1 {
		t.Errorf("Length() = %v nm, want ~120", got)
	}
}

// TestReverseRoundTrip: reversing a plan's waypoints revisits the same
// positions in the opposite order.
func TestReverseRoundTrip(t *testing.T) {
	tr := mkTraj(1, 2, 3, 4)
	rev := tr.Reverse()
	if len(rev.Waypoints) != len(tr.Waypoints) {
		t.Fatalf("Reverse() changed length: %d vs %d", len(rev.Waypoints), len(tr.Waypoints))
	}
	for i, w := range tr.Waypoints {
		back := rev.Waypoints[len(rev.Waypoints)-1-i]
		if w.Position.Latitude != back.Position.Latitude {
			t.Errorf("position %d: %v != %v after round trip", i, w.Position, back.Position)
		}
	}
	// Reversing twice should restore the original order.
	if got := rev.Reverse(); len(got.Waypoints) != len(tr.Waypoints) {
		t.Fatalf("double Reverse() changed length")
	} else {
		for i := range tr.Waypoints {
			if tr.Waypoints[i].Position.Latitude != got.Waypoints[i].Position.Latitude {
				t.Errorf("double reverse mismatch at %d", i)
			}
		}
	}
}

func TestBroadcasterNotifiesAllSubscribers(t *testing.T) {
	var b Broadcaster
	var got1, got2 int
	b.Subscribe(func(t Trajectory) { got1 = len(t.Waypoints) })
	b.Subscribe(func(t Trajectory) { got2 = len(t.Waypoints) })

	b.Notify(mkTraj(1, 2, 3))

	if got1 != 3 || got2 != 3 {
		t.Errorf("subscribers saw (%d, %d), want (3, 3)", got1, got2)
	}
}

func TestBroadcasterDeliversEmptyPlan(t *testing.T) {
	var b Broadcaster
	var sawEmpty bool
	b.Subscribe(func(t Trajectory) { sawEmpty = t.Empty() })
	b.Notify(Trajectory{})
	if !sawEmpty {
		t.Errorf("an empty trajectory (NoPlan) should still be delivered to subscribers")
	}
}
