// pkg/datalink/datalink.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package datalink implements the adapter the online planners (FAPRM's
// OFADPRM variant) use to talk to a real aircraft: connect/disconnect,
// poll the aircraft's current timed position, look up how far along its
// uploaded route it has progressed, upload a revised flight path, and
// subscribe to a periodic track feed. The transport is net/rpc over a
// gob codec with flate compression, reusing pkg/util's RPC plumbing
// rather than inventing a new wire format.
package datalink

import (
	"errors"
	"net"
	"net/rpc"
	"sync"
	"time"

	"github.com/mmp/flightplan/pkg/geo"
	"github.com/mmp/flightplan/pkg/log"
	"github.com/mmp/flightplan/pkg/trajectory"
	"github.com/mmp/flightplan/pkg/util"
	"github.com/mmp/flightplan/pkg/waypoint"
)

var ErrNotConnected = errors.New("datalink: not connected")

// AircraftLink is the planning engine's view of a datalink connection to
// a single aircraft. A real implementation dials an RPC server running
// aboard (or alongside) the aircraft; Simulated below is a standalone
// implementation useful for tests and for running online planners
// without real hardware.
type AircraftLink interface {
	Connect(address string) error
	Disconnect() error
	IsConnected() bool

	GetAircraftTimedPosition() (geo.Position, time.Time, error)
	GetNextWaypointIndex() (int, error)
	UploadFlightPath(t trajectory.Trajectory) error

	StartMonitoring(interval time.Duration) error
	StopMonitoring()
	SubscribeTrack(l func(geo.Position, time.Time))
}

// TrackSample is one published track update: where the aircraft was and
// when it was there.
type TrackSample struct {
	Position geo.Position
	Time     time.Time
}

// trackHistorySize bounds the ring buffer of recent track samples each
// link retains for TrackHistory.
const trackHistorySize = 128

///////////////////////////////////////////////////////////////////////////
// RPC transport

// The RPC argument/reply types below are unexported implementation detail
// of RPCLink (gob encodes their exported fields); callers only ever see
// the AircraftLink interface.
type positionReply struct {
	Position geo.Position
	Time     time.Time
}

type waypointIndexReply struct {
	Index int
}

type uploadArgs struct {
	Waypoints []waypoint.Waypoint
}

type uploadReply struct {
	Accepted bool
}

// RPCLink is an AircraftLink backed by net/rpc over a gob-encoded,
// flate-compressed connection, matching the transport pkg/util/rpc.go
// already provides for the rest of this module.
type RPCLink struct {
	lg   *log.Logger
	mu   sync.Mutex
	conn net.Conn
	cli  *rpc.Client

	stopMonitor chan struct{}
	listeners   []func(geo.Position, time.Time)
	track       *util.RingBuffer[TrackSample]
}

func NewRPCLink(lg *log.Logger) *RPCLink {
	return &RPCLink{lg: lg, track: util.NewRingBuffer[TrackSample](trackHistorySize)}
}

func (l *RPCLink) Connect(address string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	conn, err := net.Dial("tcp", address)
	if err != nil {
		return err
	}
	cc, err := util.MakeCompressedConn(conn)
	if err != nil {
		conn.Close()
		return err
	}
	logged := util.MakeLoggingConn(cc, l.lg)
	codec := util.MakeGOBClientCodec(logged)
	l.conn = conn
	l.cli = rpc.NewClientWithCodec(util.MakeLoggingClientCodec("datalink", codec, l.lg))
	return nil
}

func (l *RPCLink) Disconnect() error {
	l.StopMonitoring()
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cli == nil {
		return nil
	}
	err := l.cli.Close()
	l.cli = nil
	l.conn = nil
	return err
}

func (l *RPCLink) IsConnected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cli != nil
}

func (l *RPCLink) GetAircraftTimedPosition() (geo.Position, time.Time, error) {
	l.mu.Lock()
	cli := l.cli
	l.mu.Unlock()
	if cli == nil {
		return geo.Position{}, time.Time{}, ErrNotConnected
	}
	var reply positionReply
	if err := cli.Call("Aircraft.GetTimedPosition", struct{}{}, &reply); err != nil {
		return geo.Position{}, time.Time{}, err
	}
	return reply.Position, reply.Time, nil
}

func (l *RPCLink) GetNextWaypointIndex() (int, error) {
	l.mu.Lock()
	cli := l.cli
	l.mu.Unlock()
	if cli == nil {
		return 0, ErrNotConnected
	}
	var reply waypointIndexReply
	if err := cli.Call("Aircraft.GetNextWaypointIndex", struct{}{}, &reply); err != nil {
		return 0, err
	}
	return reply.Index, nil
}

func (l *RPCLink) UploadFlightPath(t trajectory.Trajectory) error {
	l.mu.Lock()
	cli := l.cli
	l.mu.Unlock()
	if cli == nil {
		return ErrNotConnected
	}
	var reply uploadReply
	err := cli.Call("Aircraft.UploadFlightPath", uploadArgs{Waypoints: t.Waypoints}, &reply)
	if err != nil {
		return err
	}
	if !reply.Accepted {
		return errors.New("datalink: flight path upload rejected")
	}
	return nil
}

// StartMonitoring polls GetAircraftTimedPosition at the given interval
// on a single background goroutine, notifying every subscriber with
// each successful poll; this is the track feed the online replanning
// cycle consumes. A connection error simply skips that tick rather than
// tearing down monitoring.
func (l *RPCLink) StartMonitoring(interval time.Duration) error {
	l.mu.Lock()
	if l.cli == nil {
		l.mu.Unlock()
		return ErrNotConnected
	}
	if l.stopMonitor != nil {
		l.mu.Unlock()
		return nil
	}
	stop := make(chan struct{})
	l.stopMonitor = stop
	l.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				pos, t, err := l.GetAircraftTimedPosition()
				if err != nil {
					l.lg.Warnf("datalink: poll failed: %v", err)
					continue
				}
				l.mu.Lock()
				l.track.Add(TrackSample{Position: pos, Time: t})
				ls := util.DuplicateSlice(l.listeners)
				l.mu.Unlock()
				for _, f := range ls {
					f(pos, t)
				}
			}
		}
	}()
	return nil
}

func (l *RPCLink) StopMonitoring() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopMonitor != nil {
		close(l.stopMonitor)
		l.stopMonitor = nil
	}
}

func (l *RPCLink) SubscribeTrack(f func(geo.Position, time.Time)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.listeners = append(l.listeners, f)
}

// TrackHistory returns the retained track samples, oldest first.
func (l *RPCLink) TrackHistory() []TrackSample {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]TrackSample, l.track.Size())
	for i := range out {
		out[i] = l.track.Get(i)
	}
	return out
}

///////////////////////////////////////////////////////////////////////////
// Simulated link

// Simulated is an in-memory AircraftLink that steps a position along
// an uploaded flight path one waypoint per Advance call (or per
// monitoring tick), jumping to that waypoint's position and ETO; used by tests and by
// the planviz tool's --simulate-datalink mode to exercise the online
// cycle without real hardware.
type Simulated struct {
	mu          sync.Mutex
	connected   bool
	plan        trajectory.Trajectory
	idx         int
	pos         geo.Position
	at          time.Time
	stopMonitor chan struct{}
	listeners   []func(geo.Position, time.Time)
	track       *util.RingBuffer[TrackSample]
}

func NewSimulated() *Simulated {
	return &Simulated{track: util.NewRingBuffer[TrackSample](trackHistorySize)}
}

func (s *Simulated) Connect(address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = true
	return nil
}

func (s *Simulated) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	return nil
}

func (s *Simulated) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *Simulated) GetAircraftTimedPosition() (geo.Position, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return geo.Position{}, time.Time{}, ErrNotConnected
	}
	return s.pos, s.at, nil
}

func (s *Simulated) GetNextWaypointIndex() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return 0, ErrNotConnected
	}
	return s.idx, nil
}

func (s *Simulated) UploadFlightPath(t trajectory.Trajectory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return ErrNotConnected
	}
	s.plan = t
	s.idx = 0
	if !t.Empty() {
		s.pos = t.Waypoints[0].Position
		s.at = t.Waypoints[0].ETO
	}
	return nil
}

// Advance moves the simulated aircraft to plan waypoint idx+1, used by
// tests to drive the online cycle deterministically instead of relying
// on StartMonitoring's ticker.
func (s *Simulated) Advance() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.idx+1 >= len(s.plan.Waypoints) {
		return false
	}
	s.idx++
	s.pos = s.plan.Waypoints[s.idx].Position
	s.at = s.plan.Waypoints[s.idx].ETO
	return true
}

func (s *Simulated) StartMonitoring(interval time.Duration) error {
	s.mu.Lock()
	if !s.connected {
		s.mu.Unlock()
		return ErrNotConnected
	}
	if s.stopMonitor != nil {
		s.mu.Unlock()
		return nil
	}
	stop := make(chan struct{})
	s.stopMonitor = stop
	s.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.Advance()
				s.mu.Lock()
				pos, at := s.pos, s.at
				s.track.Add(TrackSample{Position: pos, Time: at})
				ls := util.DuplicateSlice(s.listeners)
				s.mu.Unlock()
				for _, f := range ls {
					f(pos, at)
				}
			}
		}
	}()
	return nil
}

func (s *Simulated) StopMonitoring() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopMonitor != nil {
		close(s.stopMonitor)
		s.stopMonitor = nil
	}
}

func (s *Simulated) SubscribeTrack(f func(geo.Position, time.Time)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, f)
}

// TrackHistory returns the retained track samples, oldest first.
func (s *Simulated) TrackHistory() []TrackSample {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TrackSample, s.track.Size())
	for i := range out {
		out[i] = s.track.Get(i)
	}
	return out
}
