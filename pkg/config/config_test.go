// pkg/config/config_test.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package config

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mmp/flightplan/pkg/util"
)

func TestParseMergesOverDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`{"planner": "rrt", "bias": 0.2, "epsilon": 25}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Planner != "rrt" {
		t.Errorf("Planner = %q, want rrt", cfg.Planner)
	}
	if cfg.Bias != 0.2 || cfg.Epsilon != 25 {
		t.Errorf("overridden fields not applied: bias %v epsilon %v", cfg.Bias, cfg.Epsilon)
	}
	// Untouched fields keep the planner defaults.
	if cfg.MaxIterations != 2000 || cfg.MaxNeighbors != 10 {
		t.Errorf("defaults not preserved: maxIterations %d maxNeighbors %d", cfg.MaxIterations, cfg.MaxNeighbors)
	}
}

func TestParsePreservesUnknownKeys(t *testing.T) {
	cfg, err := Parse([]byte(`{"planner": "faprm", "operatorNotes": "keep clear of R-2508"}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	v, ok := cfg.Extra.Get("operatorNotes")
	if !ok {
		t.Fatalf("unknown key was dropped instead of preserved")
	}
	if v != "keep clear of R-2508" {
		t.Errorf("Extra[operatorNotes] = %v", v)
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	if _, err := Parse([]byte(`{"planner": `)); err == nil {
		t.Errorf("malformed JSON should fail to parse")
	}
	if _, err := Parse([]byte(`{"bias": "not-a-number"}`)); err == nil {
		t.Errorf("type mismatch should fail to parse")
	}
}

func TestDurationJSON(t *testing.T) {
	cfg, err := Parse([]byte(`{"planner": "araStar", "deadline": "1h30m"}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if time.Duration(cfg.Deadline) != 90*time.Minute {
		t.Errorf("Deadline = %v, want 1h30m", time.Duration(cfg.Deadline))
	}

	if _, err := Parse([]byte(`{"deadline": "yesterday"}`)); err == nil {
		t.Errorf("unparseable duration should fail")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "planner.json")

	cfg, err := Parse([]byte(`{"planner": "lazyPRM", "maxDistance": 150, "corridor": "V-23"}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Planner != "lazyPRM" || loaded.MaxDistance != 150 {
		t.Errorf("round trip lost typed fields: %+v", loaded)
	}
	if v, ok := loaded.Extra.Get("corridor"); !ok || v != "V-23" {
		t.Errorf("round trip lost the extra key: %v %v", v, ok)
	}
}

func TestValidate(t *testing.T) {
	var e util.ErrorLogger
	Default("rrt").Validate(&e)
	if e.HaveErrors() {
		t.Fatalf("defaults should validate cleanly:\n%s", e.String())
	}

	bad := Default("faprm")
	bad.Bias = 2
	bad.StepBeta = -1
	bad.RiskPolicy = "wishful"
	var e2 util.ErrorLogger
	bad.Validate(&e2)
	if !e2.HaveErrors() {
		t.Fatalf("invalid config passed validation")
	}
	// All three problems are reported in one batch, not just the first.
	if got := strings.Count(e2.String(), "\n") + 1; got != 3 {
		t.Errorf("accumulated %d errors, want 3:\n%s", got, e2.String())
	}
}
