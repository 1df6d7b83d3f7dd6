// main.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package main

// This file implements planviz, a command-line driver that builds a
// planner from a config file, runs it between two positions, and prints
// (or archives) the resulting trajectory, for exercising the planner
// family without a UI.

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mmp/flightplan/pkg/aircraft"
	"github.com/mmp/flightplan/pkg/archive"
	"github.com/mmp/flightplan/pkg/config"
	"github.com/mmp/flightplan/pkg/datalink"
	"github.com/mmp/flightplan/pkg/environment"
	"github.com/mmp/flightplan/pkg/geo"
	"github.com/mmp/flightplan/pkg/log"
	"github.com/mmp/flightplan/pkg/session"
)

var (
	logLevel    = flag.String("loglevel", "info", "logging level: debug, info, warn, error")
	logDir      = flag.String("logdir", "", "log file directory")
	configPath  = flag.String("config", "", "planner config JSON file (default: built-in defaults for -planner)")
	plannerArg  = flag.String("planner", "faprm", "planner to run: "+strings.Join(session.Names(), ", "))
	originArg   = flag.String("origin", "", "origin position as lat,lon,elevft")
	destArg     = flag.String("dest", "", "destination position as lat,lon,elevft")
	boxHalfNM   = flag.Float64("box", 200, "half-extent (nm) of the planning volume, centered between origin and dest")
	refLat      = flag.Float64("reflat", 0, "reference latitude for the local Cartesian frame (default: midpoint of origin/dest)")
	groundKts   = flag.Float64("speed", 300, "aircraft ground speed, knots")
	simDatalink = flag.Bool("simulate-datalink", false, "drive an online planner's start-shift cycle with a Simulated datalink instead of the planner's own ETO fallback")
	archivePath = flag.String("archive", "", "write every published revision to this zstd-compressed archive file")
)

func parsePosition(s string) (geo.Position, error) {
	var lat, lon, elev float64
	n, err := fmt.Sscanf(s, "%f,%f,%f", &lat, &lon, &elev)
	if err != nil || n != 3 {
		return geo.Position{}, fmt.Errorf("expected lat,lon,elevft, got %q", s)
	}
	return geo.Position{Latitude: float32(lat), Longitude: float32(lon), Elevation: float32(elev)}, nil
}

func main() {
	flag.Parse()

	lg := log.New(false, *logLevel, *logDir)

	if *originArg == "" || *destArg == "" {
		lg.Errorf("planviz: -origin and -dest are required")
		os.Exit(1)
	}
	origin, err := parsePosition(*originArg)
	if err != nil {
		lg.Errorf("planviz: -origin: %v", err)
		os.Exit(1)
	}
	dest, err := parsePosition(*destArg)
	if err != nil {
		lg.Errorf("planviz: -dest: %v", err)
		os.Exit(1)
	}

	rl := *refLat
	if rl == 0 {
		rl = (float64(origin.Latitude) + float64(dest.Latitude)) / 2
	}
	globe := geo.NewGlobe(float32(rl))

	mid := geo.Position{
		Latitude:  (origin.Latitude + dest.Latitude) / 2,
		Longitude: (origin.Longitude + dest.Longitude) / 2,
		Elevation: (origin.Elevation + dest.Elevation) / 2,
	}
	box := geo.OrientedBox{
		Center:      globe.ToPoint3(mid),
		HalfExtents: geo.Point3{float32(*boxHalfNM), float32(*boxHalfNM), float32(*boxHalfNM)},
	}

	rm := environment.NewRoadmap(box, lg)
	rm.SetGlobe(globe)

	cfg := config.Default(*plannerArg)
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
		if err != nil {
			lg.Errorf("planviz: %v", err)
			os.Exit(1)
		}
	}

	var link datalink.AircraftLink
	if *simDatalink {
		link = datalink.NewSimulated()
		link.Connect("")
	}

	scenario := session.Scenario{
		Environment: rm,
		Aircraft:    aircraft.Uniform{GroundSpeed: float32(*groundKts)},
		Datalink:    link,
	}

	p, err := session.Build(cfg.Planner, scenario, cfg, lg)
	if err != nil {
		lg.Errorf("planviz: %v", err)
		os.Exit(1)
	}

	var arc *archive.TrajectoryArchiver
	if *archivePath != "" {
		f, err := os.Create(*archivePath)
		if err != nil {
			lg.Errorf("planviz: %v", err)
			os.Exit(1)
		}
		defer f.Close()
		arc, err = archive.NewTrajectoryArchiver(f)
		if err != nil {
			lg.Errorf("planviz: %v", err)
			os.Exit(1)
		}
		defer arc.Close()
		session.ArchiveRevisions(p, cfg.Planner, arc)
	}

	t := p.Plan(origin, dest, time.Now())
	if t.Empty() {
		fmt.Println("planviz: no plan found")
		os.Exit(1)
	}

	fmt.Printf("planviz: %s plan, %d waypoints, cost %.2f, %.1f nm\n",
		cfg.Planner, len(t.Waypoints), t.Cost(), t.Length())
	for i, w := range t.Waypoints {
		fmt.Printf("  %3d  %s  eto=%s  g=%.2f\n", i, w.Position, w.ETO.Format(time.RFC3339), w.G)
	}
}
