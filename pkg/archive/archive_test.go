// pkg/archive/archive_test.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package archive

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/mmp/flightplan/pkg/geo"
	"github.com/mmp/flightplan/pkg/trajectory"
	"github.com/mmp/flightplan/pkg/waypoint"
)

func TestArchiveRoundTrip(t *testing.T) {
	mkTraj := func(n int, cost float32) trajectory.Trajectory {
		etd := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
		var ws []waypoint.Waypoint
		for i := 0; i < n; i++ {
			w := waypoint.New(geo.Position{Latitude: float32(i), Longitude: float32(2 * i), Elevation: 1000})
			w.G = cost * float32(i) / float32(n)
			w.ETO = etd.Add(time.Duration(i) * time.Minute)
			ws = append(ws, w)
		}
		return trajectory.Trajectory{Waypoints: ws}
	}

	var buf bytes.Buffer
	a, err := NewTrajectoryArchiver(&buf)
	if err != nil {
		t.Fatalf("NewTrajectoryArchiver: %v", err)
	}

	records := []Record{
		{Planner: "faprm", Quality: 0.25, Trajectory: mkTraj(6, 30)},
		{Planner: "faprm", Quality: 0.5, Trajectory: mkTraj(5, 25)},
		{Planner: "faprm", Quality: 1, Trajectory: mkTraj(4, 20)},
	}
	for _, r := range records {
		if err := a.Write(r); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := NewReader(&buf)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()

	for i, want := range records {
		got, err := r.Next()
		if err != nil {
			t.Fatalf("Next() record %d: %v", i, err)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("record %d round trip mismatch (-want +got):\n%s", i, diff)
		}
	}
	if _, err := r.Next(); err != io.EOF {
		t.Errorf("Next() past the end: %v, want io.EOF", err)
	}
}
