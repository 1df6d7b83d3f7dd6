// pkg/config/config.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package config loads planner tunables from JSON. Known keys are typed
// fields on PlannerConfig; anything else in the document is preserved in
// Extra (an orderedmap.OrderedMap, so key order survives diffing and
// re-serialization) rather than silently dropped.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/iancoleman/orderedmap"

	"github.com/mmp/flightplan/pkg/util"
)

// PlannerConfig is the flat set of tunables named across the planner
// family: anytime inflation bounds, RRT/PRM sampling parameters, FAPRM's
// beta schedule, and the online cycle's position threshold and
// start-shift lookahead.
type PlannerConfig struct {
	Planner string `json:"planner"`

	MaxIterations int     `json:"maxIterations"`
	Bias          float32 `json:"bias"`
	Epsilon       float32 `json:"epsilon"`
	GoalThreshold float32 `json:"goalThreshold"`
	MaxDistance   float32 `json:"maxDistance"`
	MaxNeighbors  int     `json:"maxNeighbors"`
	Lambda        float32 `json:"lambda"`
	RewireRadius  float32 `json:"rewireRadius"`
	KNearest      int     `json:"kNearest"`
	ProbFloor     float32 `json:"probFloor"`

	MinQuality         float32 `json:"minQuality"`
	MaxQuality         float32 `json:"maxQuality"`
	QualityImprovement float32 `json:"qualityImprovement"`
	Deadline           Duration `json:"deadline"`

	InitialBeta float32 `json:"initialBeta"`
	FinalBeta   float32 `json:"finalBeta"`
	StepBeta    float32 `json:"stepBeta"`

	PositionThreshold   float32 `json:"positionThreshold"`
	StartShiftLookahead int     `json:"startShiftLookahead"`

	CostPolicy string  `json:"costPolicy"`
	RiskPolicy string  `json:"riskPolicy"`
	RiskThreshold float32 `json:"riskThreshold"`

	// Extra preserves any keys not named above, so a config document
	// round-trips through Load/Save without losing caller-specific
	// extensions the planner family doesn't itself interpret.
	Extra *orderedmap.OrderedMap `json:"-"`
}

// Duration is a time.Duration that unmarshals from a JSON string like
// "5m" or "1h30m" instead of raw nanoseconds, since a hand-edited
// scenario document is much more readable that way.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Default returns one planner-agnostic set of tunables; only Planner is
// taken from the argument. The values do not all match what each
// constructor sets on its own (NewPRM uses 500 iterations, NewFAPRM a
// bias of 0.1, NewRRT a quality improvement of 0.1), and session.Build
// applies these over the constructor's values, so a config file only
// needs to override what it wants to change.
func Default(planner string) PlannerConfig {
	return PlannerConfig{
		Planner:             planner,
		MaxIterations:       2000,
		Bias:                0.05,
		Epsilon:             50,
		GoalThreshold:       10,
		MaxDistance:         200,
		MaxNeighbors:        10,
		Lambda:              0.5,
		RewireRadius:        100,
		KNearest:            5,
		ProbFloor:           0.05,
		MinQuality:          1,
		MaxQuality:          2.5,
		QualityImprovement:  0.2,
		InitialBeta:         0,
		FinalBeta:           1,
		StepBeta:            0.1,
		PositionThreshold:   5,
		StartShiftLookahead: 3,
		CostPolicy:          "minimum",
		RiskPolicy:          "safety",
		RiskThreshold:       1000,
	}
}

// Load reads a PlannerConfig from a JSON file, merging it over Default
// for whichever planner name the document specifies. Unrecognized keys
// are retained in Extra rather than causing an error, so a config file
// shared across planner families doesn't need to be pruned per-planner.
func Load(path string) (PlannerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return PlannerConfig{}, err
	}
	return Parse(data)
}

func Parse(data []byte) (PlannerConfig, error) {
	raw := orderedmap.New()
	if err := util.UnmarshalJSON(data, raw); err != nil {
		return PlannerConfig{}, fmt.Errorf("config: %w", err)
	}

	var typed struct {
		Planner string `json:"planner"`
	}
	if err := util.UnmarshalJSON(data, &typed); err != nil {
		return PlannerConfig{}, fmt.Errorf("config: %w", err)
	}

	cfg := Default(typed.Planner)
	if err := util.UnmarshalJSON(data, &cfg); err != nil {
		return PlannerConfig{}, fmt.Errorf("config: %w", err)
	}

	known := map[string]bool{
		"planner": true, "maxIterations": true, "bias": true, "epsilon": true,
		"goalThreshold": true, "maxDistance": true, "maxNeighbors": true,
		"lambda": true, "rewireRadius": true, "kNearest": true, "probFloor": true,
		"minQuality": true, "maxQuality": true, "qualityImprovement": true,
		"deadline": true, "initialBeta": true, "finalBeta": true, "stepBeta": true,
		"positionThreshold": true, "startShiftLookahead": true,
		"costPolicy": true, "riskPolicy": true, "riskThreshold": true,
	}
	extra := orderedmap.New()
	for _, k := range raw.Keys() {
		if known[k] {
			continue
		}
		v, _ := raw.Get(k)
		extra.Set(k, v)
	}
	cfg.Extra = extra

	return cfg, nil
}

// Validate checks cfg's tunables against the invariants the planner
// setters enforce, accumulating every problem into e so a hand-edited
// config's errors are reported in one batch rather than one at a time.
func (cfg PlannerConfig) Validate(e *util.ErrorLogger) {
	e.Push("config")
	defer e.Pop()

	if cfg.Bias < 0 || cfg.Bias > 1 {
		e.ErrorString("bias %v outside [0,1]", cfg.Bias)
	}
	if cfg.MaxIterations <= 0 {
		e.ErrorString("maxIterations %d must be positive", cfg.MaxIterations)
	}
	if cfg.MaxDistance <= 0 {
		e.ErrorString("maxDistance %v must be positive", cfg.MaxDistance)
	}
	if cfg.MaxNeighbors < 1 {
		e.ErrorString("maxNeighbors %d must be at least 1", cfg.MaxNeighbors)
	}
	if cfg.Lambda < 0 || cfg.Lambda > 1 {
		e.ErrorString("lambda %v outside [0,1]", cfg.Lambda)
	}
	if cfg.MinQuality < 0 || cfg.MinQuality > cfg.MaxQuality {
		e.ErrorString("invalid inflation: minQuality %v, maxQuality %v", cfg.MinQuality, cfg.MaxQuality)
	}
	if cfg.QualityImprovement <= 0 {
		e.ErrorString("invalid inflation: qualityImprovement %v must be positive", cfg.QualityImprovement)
	}
	if cfg.InitialBeta < 0 || cfg.InitialBeta > cfg.FinalBeta || cfg.FinalBeta > 1 {
		e.ErrorString("invalid inflation: initialBeta %v, finalBeta %v", cfg.InitialBeta, cfg.FinalBeta)
	}
	if cfg.StepBeta <= 0 {
		e.ErrorString("invalid inflation: stepBeta %v must be positive", cfg.StepBeta)
	}
	if cfg.PositionThreshold <= 0 {
		e.ErrorString("positionThreshold %v must be positive", cfg.PositionThreshold)
	}
	if cfg.StartShiftLookahead < 0 {
		e.ErrorString("startShiftLookahead %d must not be negative", cfg.StartShiftLookahead)
	}
	switch cfg.CostPolicy {
	case "minimum", "maximum", "average":
	default:
		e.ErrorString("unknown costPolicy %q", cfg.CostPolicy)
	}
	switch cfg.RiskPolicy {
	case "ignorance", "safety", "avoidance":
	default:
		e.ErrorString("unknown riskPolicy %q", cfg.RiskPolicy)
	}
}

// Save writes cfg back out as JSON, round-tripping any Extra keys.
func Save(path string, cfg PlannerConfig) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	if cfg.Extra != nil && len(cfg.Extra.Keys()) > 0 {
		merged := orderedmap.New()
		if err := json.Unmarshal(data, merged); err != nil {
			return err
		}
		for _, k := range cfg.Extra.Keys() {
			v, _ := cfg.Extra.Get(k)
			merged.Set(k, v)
		}
		data, err = json.MarshalIndent(merged, "", "  ")
		if err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0644)
}
