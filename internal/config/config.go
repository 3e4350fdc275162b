// Package config loads the tunable knobs that govern planning and
// simulation behavior — thresholds, default reach, time step. It
// never carries scene or weld data; those remain plain Go values
// supplied directly by the embedder.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Options holds the tunables for the planner, splitter, and simulator.
// Defaults match the values named throughout spec §4.
// ZoneImbalanceThreshold and MinSplitSegment are not read by the
// splitter, which uses its own constants of the same default values
// (0.20 and 100); overriding them has no effect on planning.
type Options struct {
	Reach        float64 `mapstructure:"reach"`
	SafeDistance float64 `mapstructure:"safe_distance"`

	ZoneImbalanceThreshold float64 `mapstructure:"zone_imbalance_threshold"`
	MinSplitSegment        float64 `mapstructure:"min_split_segment"`

	WOMMaxGap    float64 `mapstructure:"wom_max_gap"`
	WOMMinLength float64 `mapstructure:"wom_min_length"`

	SAWMaxStopSpacing float64 `mapstructure:"saw_max_stop_spacing"`
	SAWStopReach      float64 `mapstructure:"saw_stop_reach"`

	SimDT time.Duration `mapstructure:"sim_dt"`

	CarriageOffsetXPlus  float64 `mapstructure:"carriage_offset_x_plus"`
	CarriageOffsetXMinus float64 `mapstructure:"carriage_offset_x_minus"`

	StallTicks int `mapstructure:"stall_ticks"`
}

// Defaults returns the values spec.md names throughout §4 as Options'
// zero-configuration baseline.
func Defaults() Options {
	return Options{
		Reach:        2000,
		SafeDistance: 150,

		ZoneImbalanceThreshold: 0.20,
		MinSplitSegment:        100,

		WOMMaxGap:    500,
		WOMMinLength: 300,

		SAWMaxStopSpacing: 500,
		SAWStopReach:      400,

		SimDT: 100 * time.Millisecond,

		CarriageOffsetXPlus:  300,
		CarriageOffsetXMinus: -300,

		StallTicks: 50,
	}
}

// Load reads tunable overrides from an optional YAML file at path and
// from environment variables prefixed by envPrefix (default "WELD"
// when empty), layering them over Defaults. path may be empty, in
// which case only defaults and the environment are consulted. Load
// never accepts scene or weld data — those are plain Go values the
// embedder constructs and passes directly to Plan.
func Load(path, envPrefix string) (Options, error) {
	if envPrefix == "" {
		envPrefix = "WELD"
	}

	v := viper.New()
	d := Defaults()
	v.SetDefault("reach", d.Reach)
	v.SetDefault("safe_distance", d.SafeDistance)
	v.SetDefault("zone_imbalance_threshold", d.ZoneImbalanceThreshold)
	v.SetDefault("min_split_segment", d.MinSplitSegment)
	v.SetDefault("wom_max_gap", d.WOMMaxGap)
	v.SetDefault("wom_min_length", d.WOMMinLength)
	v.SetDefault("saw_max_stop_spacing", d.SAWMaxStopSpacing)
	v.SetDefault("saw_stop_reach", d.SAWStopReach)
	v.SetDefault("sim_dt", d.SimDT)
	v.SetDefault("carriage_offset_x_plus", d.CarriageOffsetXPlus)
	v.SetDefault("carriage_offset_x_minus", d.CarriageOffsetXMinus)
	v.SetDefault("stall_ticks", d.StallTicks)

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Options{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var opts Options
	if err := v.Unmarshal(&opts); err != nil {
		return Options{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	return opts, nil
}
