package engine

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"gridfire.ai/internal/engine/danger"
	"gridfire.ai/internal/engine/plan"
	"gridfire.ai/internal/engine/target"
)

// Config is the engine's full tunable surface, loaded from
// configs/tuning.yaml. LoadConfig unmarshals onto DefaultConfig, so a
// partial file overrides only the keys it names.
type Config struct {
	Cycle   CycleConfig   `yaml:"cycle"`
	Danger  DangerConfig  `yaml:"danger"`
	Target  TargetConfig  `yaml:"target"`
	Plan    PlanConfig    `yaml:"plan"`
	Gateway GatewayConfig `yaml:"gateway"`
	Replay  ReplayConfig  `yaml:"replay"`
}

// CycleConfig paces the decision loop and the engine-level bookkeeping.
type CycleConfig struct {
	IntervalMs   int `yaml:"interval_ms"`
	VisionRadius int `yaml:"vision_radius"`
	SafeHorizon  int `yaml:"safe_horizon"`
	// StuckWindow is how many cycles a unit may sit on one cell with no
	// team score movement before a failure is charged against it.
	StuckWindow int `yaml:"stuck_window"`
	// ReserveTTL is the hard-reservation lifetime in ticks after a command
	// is confirmed.
	ReserveTTL int `yaml:"reserve_ttl"`
}

type DangerConfig struct {
	MobDangerRadius int     `yaml:"mob_danger_radius"`
	MobThreatLimit  float64 `yaml:"mob_threat_limit"`
}

type TargetConfig struct {
	BombRange          int     `yaml:"bomb_range"`
	MinK               int     `yaml:"min_k"`
	ScoreScale         float64 `yaml:"score_scale"`
	TripleBonus        float64 `yaml:"triple_bonus"`
	QuadBonus          float64 `yaml:"quad_bonus"`
	SpacingRadius      int     `yaml:"spacing_radius"`
	SpacingPenalty     float64 `yaml:"spacing_penalty"`
	AllyBlastPenalty   float64 `yaml:"ally_blast_penalty"`
	HostileRadius      int     `yaml:"hostile_radius"`
	HostilePenalty     float64 `yaml:"hostile_penalty"`
	EscapeSteps        int     `yaml:"escape_steps"`
	RelaxedEscapeSteps int     `yaml:"relaxed_escape_steps"`
	RelaxAfter         int     `yaml:"relax_after"`
	LastResortAfter    int     `yaml:"last_resort_after"`
	RejectedCellTTL    int     `yaml:"rejected_cell_ttl"`
	TargetCooldown     int     `yaml:"target_cooldown"`
	FarmCooldown       int     `yaml:"farm_cooldown"`
}

type PlanConfig struct {
	SearchRadius    int     `yaml:"search_radius"`
	AnchorRadius    int     `yaml:"anchor_radius"`
	MaxPathLength   int     `yaml:"max_path_length"`
	CrossfireRadius int     `yaml:"crossfire_radius"`
	EvadeScore      float64 `yaml:"evade_score"`
	ExploreScore    float64 `yaml:"explore_score"`
	StepPenalty     float64 `yaml:"step_penalty"`
	Workers         int     `yaml:"workers"`
}

// GatewayConfig seeds the transport defaults. WELCOME overrides them when
// the arena announces its own limits.
type GatewayConfig struct {
	RatePerSec float64 `yaml:"rate_per_sec"`
	RateBurst  int     `yaml:"rate_burst"`
}

type ReplayConfig struct {
	Dir string `yaml:"dir"`
}

// DefaultConfig mirrors the package defaults plus playable loop pacing.
func DefaultConfig() Config {
	dp := danger.DefaultParams()
	tp := target.DefaultParams()
	pp := plan.DefaultParams()
	return Config{
		Cycle: CycleConfig{
			IntervalMs:   250,
			VisionRadius: 10,
			SafeHorizon:  pp.SafeHorizon,
			StuckWindow:  8,
			ReserveTTL:   3,
		},
		Danger: DangerConfig{
			MobDangerRadius: dp.MobDangerRadius,
			MobThreatLimit:  dp.MobThreatLimit,
		},
		Target: TargetConfig{
			BombRange:          tp.BombRange,
			MinK:               tp.MinK,
			ScoreScale:         tp.ScoreScale,
			TripleBonus:        tp.TripleBonus,
			QuadBonus:          tp.QuadBonus,
			SpacingRadius:      tp.SpacingRadius,
			SpacingPenalty:     tp.SpacingPenalty,
			AllyBlastPenalty:   tp.AllyBlastPenalty,
			HostileRadius:      tp.HostileRadius,
			HostilePenalty:     tp.HostilePenalty,
			EscapeSteps:        tp.EscapeSteps,
			RelaxedEscapeSteps: tp.RelaxedEscapeSteps,
			RelaxAfter:         tp.RelaxAfter,
			LastResortAfter:    tp.LastResortAfter,
			RejectedCellTTL:    tp.RejectedCellTTL,
			TargetCooldown:     tp.TargetCooldown,
			FarmCooldown:       tp.FarmCooldown,
		},
		Plan: PlanConfig{
			SearchRadius:    pp.SearchRadius,
			AnchorRadius:    pp.AnchorRadius,
			MaxPathLength:   pp.MaxPathLength,
			CrossfireRadius: pp.CrossfireRadius,
			EvadeScore:      pp.EvadeScore,
			ExploreScore:    pp.ExploreScore,
			StepPenalty:     pp.StepPenalty,
			Workers:         pp.Workers,
		},
		Gateway: GatewayConfig{RatePerSec: 3, RateBurst: 3},
		Replay:  ReplayConfig{Dir: "replays"},
	}
}

// LoadConfig reads path over DefaultConfig. A missing file is an error;
// start without --config to run on pure defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("tuning config: %w", err)
	}
	return cfg, nil
}

func (c Config) DangerParams() danger.Params {
	return danger.Params{
		MobDangerRadius: c.Danger.MobDangerRadius,
		MobThreatLimit:  c.Danger.MobThreatLimit,
	}
}

func (c Config) TargetParams() target.Params {
	t := c.Target
	return target.Params{
		BombRange:          t.BombRange,
		MinK:               t.MinK,
		ScoreScale:         t.ScoreScale,
		TripleBonus:        t.TripleBonus,
		QuadBonus:          t.QuadBonus,
		SpacingRadius:      t.SpacingRadius,
		SpacingPenalty:     t.SpacingPenalty,
		AllyBlastPenalty:   t.AllyBlastPenalty,
		HostileRadius:      t.HostileRadius,
		HostilePenalty:     t.HostilePenalty,
		EscapeSteps:        t.EscapeSteps,
		RelaxedEscapeSteps: t.RelaxedEscapeSteps,
		RelaxAfter:         t.RelaxAfter,
		LastResortAfter:    t.LastResortAfter,
		RejectedCellTTL:    t.RejectedCellTTL,
		TargetCooldown:     t.TargetCooldown,
		FarmCooldown:       t.FarmCooldown,
	}
}

func (c Config) PlanParams() plan.Params {
	p := c.Plan
	return plan.Params{
		SearchRadius:    p.SearchRadius,
		AnchorRadius:    p.AnchorRadius,
		MaxPathLength:   p.MaxPathLength,
		CrossfireRadius: p.CrossfireRadius,
		SafeHorizon:     c.Cycle.SafeHorizon,
		EvadeScore:      p.EvadeScore,
		ExploreScore:    p.ExploreScore,
		StepPenalty:     p.StepPenalty,
		Workers:         p.Workers,
	}
}
