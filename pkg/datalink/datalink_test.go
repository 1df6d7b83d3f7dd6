// pkg/datalink/datalink_test.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package datalink

import (
	"testing"
	"time"

	"github.com/mmp/flightplan/pkg/geo"
	"github.com/mmp/flightplan/pkg/trajectory"
	"github.com/mmp/flightplan/pkg/waypoint"
)

func testPlan() trajectory.Trajectory {
	etd := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	var ws []waypoint.Waypoint
	for i := 0; i < 5; i++ {
		w := waypoint.New(geo.Position{Latitude: float32(i), Longitude: float32(i)})
		w.ETO = etd.Add(time.Duration(i) * time.Minute)
		ws = append(ws, w)
	}
	return trajectory.Trajectory{Waypoints: ws}
}

func TestSimulatedRequiresConnection(t *testing.T) {
	s := NewSimulated()
	if s.IsConnected() {
		t.Errorf("fresh link reports connected")
	}
	if _, _, err := s.GetAircraftTimedPosition(); err != ErrNotConnected {
		t.Errorf("GetAircraftTimedPosition without connection: %v, want ErrNotConnected", err)
	}
	if _, err := s.GetNextWaypointIndex(); err != ErrNotConnected {
		t.Errorf("GetNextWaypointIndex without connection: %v, want ErrNotConnected", err)
	}
	if err := s.UploadFlightPath(testPlan()); err != ErrNotConnected {
		t.Errorf("UploadFlightPath without connection: %v, want ErrNotConnected", err)
	}
	if err := s.StartMonitoring(time.Millisecond); err != ErrNotConnected {
		t.Errorf("StartMonitoring without connection: %v, want ErrNotConnected", err)
	}
}

func TestSimulatedAdvancesAlongPlan(t *testing.T) {
	s := NewSimulated()
	if err := s.Connect(""); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	plan := testPlan()
	if err := s.UploadFlightPath(plan); err != nil {
		t.Fatalf("UploadFlightPath: %v", err)
	}

	pos, at, err := s.GetAircraftTimedPosition()
	if err != nil {
		t.Fatalf("GetAircraftTimedPosition: %v", err)
	}
	if pos != plan.Waypoints[0].Position || !at.Equal(plan.Waypoints[0].ETO) {
		t.Errorf("freshly uploaded plan should place the aircraft at waypoint 0")
	}

	for i := 1; i < len(plan.Waypoints); i++ {
		if !s.Advance() {
			t.Fatalf("Advance() = false at waypoint %d", i)
		}
		idx, _ := s.GetNextWaypointIndex()
		if idx != i {
			t.Errorf("after %d advances, index = %d", i, idx)
		}
		pos, _, _ = s.GetAircraftTimedPosition()
		if pos != plan.Waypoints[i].Position {
			t.Errorf("after advance %d, position = %v, want %v", i, pos, plan.Waypoints[i].Position)
		}
	}
	if s.Advance() {
		t.Errorf("Advance() past the final waypoint should report false")
	}
}

func TestSimulatedMonitoringPublishesTrack(t *testing.T) {
	s := NewSimulated()
	s.Connect("")
	s.UploadFlightPath(testPlan())

	got := make(chan geo.Position, 16)
	s.SubscribeTrack(func(p geo.Position, _ time.Time) {
		select {
		case got <- p:
		default:
		}
	})

	if err := s.StartMonitoring(5 * time.Millisecond); err != nil {
		t.Fatalf("StartMonitoring: %v", err)
	}
	defer s.StopMonitoring()

	select {
	case <-got:
	case <-time.After(2 * time.Second):
		t.Fatalf("no track update within 2s")
	}

	if len(s.TrackHistory()) == 0 {
		t.Errorf("published samples should be retained in the track history")
	}
}

func TestSimulatedDisconnectStopsService(t *testing.T) {
	s := NewSimulated()
	s.Connect("")
	if !s.IsConnected() {
		t.Fatalf("Connect didn't connect")
	}
	s.Disconnect()
	if s.IsConnected() {
		t.Errorf("Disconnect didn't disconnect")
	}
	if _, _, err := s.GetAircraftTimedPosition(); err != ErrNotConnected {
		t.Errorf("disconnected link should report ErrNotConnected, got %v", err)
	}
}
