// Package config defines engine configuration structures and loading hooks.
//
// Conventions:
// - Durations are carried as integer milliseconds (`*_ms` keys) and exposed
//   as time.Duration through accessor methods.
// - New() returns the documented defaults; Load layers file and env on top.
// - Validation errors wrap ErrInvalidConfig and name the offending key.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Sensor backends.
const (
	SensorSimulated   = "simulated"
	SensorRangefinder = "rangefinder"
	SensorTelemetry   = "telemetry"
	SensorReplay      = "replay"
)

// Collision policies.
const (
	CollisionRadius = "radius"
	CollisionBand   = "band"
)

// Clustering strategies.
const (
	ClustererSequential = "sequential"
	ClustererGrid       = "grid"
)

// Ranking backends.
const (
	RankingSQLite = "sqlite"
	RankingMemory = "memory"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// TickHz is the control tick rate.
	TickHz int `koanf:"tick_hz"`

	// ScreenWidth and ScreenHeight define the play-field in pixels.
	ScreenWidth  float64 `koanf:"screen_width"`
	ScreenHeight float64 `koanf:"screen_height"`

	// Clustering (rangefinder only), millimetres. Clusterer is sequential for
	// angle-ordered scans or grid for merged or unordered ones.
	Clusterer       string  `koanf:"clusterer"`
	MergeDistanceMM float64 `koanf:"merge_distance_mm"`
	MinWidthMM      float64 `koanf:"min_width_mm"`
	MaxWidthMM      float64 `koanf:"max_width_mm"`
	HoldTimeMS      int     `koanf:"hold_time_ms"`

	// Participant slots.
	LeaveTimeoutMS   int  `koanf:"leave_timeout_ms"`
	GraceTimeMS      int  `koanf:"grace_time_ms"`
	MaxPlayers       int  `koanf:"max_players"`
	StrictInvariants bool `koanf:"strict_invariants"`

	// Falling objects.
	LaneCount         int     `koanf:"lane_count"`
	CollisionPolicy   string  `koanf:"collision_policy"`
	CatchRadiusPX     float64 `koanf:"catch_radius_px"`
	BandAbovePX       float64 `koanf:"band_above_px"`
	BandBelowPX       float64 `koanf:"band_below_px"`
	BandLateralPX     float64 `koanf:"band_lateral_px"`
	SpawnChance       float64 `koanf:"spawn_chance"`
	LaneCooldownTicks float64 `koanf:"lane_cooldown_ticks"`
	MinFallSpeed      float64 `koanf:"min_fall_speed"`
	MaxFallSpeed      float64 `koanf:"max_fall_speed"`

	// SpeedMultipliers maps confirmed participant count (index+1) to a speed factor.
	SpeedMultipliers []float64 `koanf:"speed_multipliers"`

	// PhaseDurationsMS maps phase names to their durations. TITLE is manual.
	PhaseDurationsMS map[string]int `koanf:"phase_durations_ms"`

	// Ranking persistence.
	MaxEntries     int    `koanf:"max_entries"`
	RankingBackend string `koanf:"ranking_backend"`
	RankingPath    string `koanf:"ranking_path"`

	// CatalogPath points at a YAML or JSON item catalog; empty uses the built-in one.
	CatalogPath string `koanf:"catalog_path"`

	// Sensor selects the tracking backend.
	Sensor             string  `koanf:"sensor"`
	SerialPort         string  `koanf:"serial_port"`
	SerialBaud         int     `koanf:"serial_baud"`
	TelemetryAddr      string  `koanf:"telemetry_addr"`
	ReplayPath         string  `koanf:"replay_path"`
	RangefinderSpanMM  float64 `koanf:"rangefinder_span_mm"`
	RangefinderDepthMM float64 `koanf:"rangefinder_depth_mm"`
	SimulatedPlayers   int     `koanf:"simulated_players"`
}

// New creates a Config holding the documented defaults.
func New() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "text",
		Addr:      ":9080",
		TickHz:    60,

		ScreenWidth:  1920,
		ScreenHeight: 1080,

		Clusterer:       ClustererSequential,
		MergeDistanceMM: 300,
		MinWidthMM:      300,
		MaxWidthMM:      800,
		HoldTimeMS:      1500,

		LeaveTimeoutMS: 1500,
		GraceTimeMS:    3000,
		MaxPlayers:     3,

		LaneCount:         5,
		CollisionPolicy:   CollisionRadius,
		CatchRadiusPX:     120,
		BandAbovePX:       80,
		BandBelowPX:       20,
		BandLateralPX:     110,
		SpawnChance:       0.024,
		LaneCooldownTicks: 45,
		MinFallSpeed:      4,
		MaxFallSpeed:      7,

		SpeedMultipliers: []float64{1.0, 1.2, 1.5},

		PhaseDurationsMS: map[string]int{
			"BOOT":      1000,
			"TUTORIAL":  5000,
			"COUNTDOWN": 3000,
			"PLAY":      30000,
			"RESULT":    5000,
			"RECOMMEND": 6000,
			"PHOTO":     10000,
			"RANKING":   8000,
		},

		MaxEntries:     30,
		RankingBackend: RankingSQLite,
		RankingPath:    "ranking.db",

		Sensor:             SensorSimulated,
		SerialPort:         "/dev/ttyACM0",
		SerialBaud:         115200,
		TelemetryAddr:      ":7000",
		RangefinderSpanMM:  4000,
		RangefinderDepthMM: 3000,
		SimulatedPlayers:   1,
	}
}

// TickPeriod returns the control tick period.
func (c *Config) TickPeriod() time.Duration { return time.Second / time.Duration(c.TickHz) }

// HoldTime returns the debounce hold time.
func (c *Config) HoldTime() time.Duration { return ms(c.HoldTimeMS) }

// LeaveTimeout returns the slot leave timeout.
func (c *Config) LeaveTimeout() time.Duration { return ms(c.LeaveTimeoutMS) }

// GraceTime returns the pointer fallback grace time.
func (c *Config) GraceTime() time.Duration { return ms(c.GraceTimeMS) }

// PhaseDurations returns the phase table keyed by upper-case phase name.
func (c *Config) PhaseDurations() map[string]time.Duration {
	out := make(map[string]time.Duration, len(c.PhaseDurationsMS))
	for name, v := range c.PhaseDurationsMS {
		out[strings.ToUpper(name)] = ms(v)
	}
	return out
}

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }

var knownPhases = map[string]bool{
	"BOOT": true, "TITLE": true, "TUTORIAL": true, "COUNTDOWN": true, "PLAY": true,
	"RESULT": true, "RECOMMEND": true, "PHOTO": true, "RANKING": true,
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	bad := func(key, format string, args ...any) error {
		return fmt.Errorf("%w: %s: %s", ErrInvalidConfig, key, fmt.Sprintf(format, args...))
	}

	switch {
	case strings.TrimSpace(c.Addr) == "":
		return bad("addr", "must not be empty")
	case c.TickHz <= 0:
		return bad("tick_hz", "must be positive, got %d", c.TickHz)
	case c.ScreenWidth <= 0 || c.ScreenHeight <= 0:
		return bad("screen_width/screen_height", "must be positive")
	case c.Clusterer != ClustererSequential && c.Clusterer != ClustererGrid:
		return bad("clusterer", "unknown clusterer %q", c.Clusterer)
	case c.MergeDistanceMM <= 0:
		return bad("merge_distance_mm", "must be positive")
	case c.MinWidthMM < 0 || c.MaxWidthMM < c.MinWidthMM:
		return bad("min_width_mm/max_width_mm", "need 0 <= min <= max, got %v..%v", c.MinWidthMM, c.MaxWidthMM)
	case c.HoldTimeMS < 0 || c.LeaveTimeoutMS <= 0 || c.GraceTimeMS < 0:
		return bad("hold_time_ms/leave_timeout_ms/grace_time_ms", "must not be negative")
	case c.MaxPlayers < 1 || c.MaxPlayers > 3:
		return bad("max_players", "must be within 1..3, got %d", c.MaxPlayers)
	case c.LaneCount < 1:
		return bad("lane_count", "must be at least 1")
	case c.CollisionPolicy != CollisionRadius && c.CollisionPolicy != CollisionBand:
		return bad("collision_policy", "unknown policy %q", c.CollisionPolicy)
	case c.CatchRadiusPX <= 0:
		return bad("catch_radius_px", "must be positive")
	case c.SpawnChance < 0 || c.SpawnChance > 1:
		return bad("spawn_chance", "must be within 0..1")
	case c.LaneCooldownTicks < 0:
		return bad("lane_cooldown_ticks", "must not be negative")
	case c.MinFallSpeed <= 0 || c.MaxFallSpeed < c.MinFallSpeed:
		return bad("min_fall_speed/max_fall_speed", "need 0 < min <= max")
	case len(c.SpeedMultipliers) < c.MaxPlayers:
		return bad("speed_multipliers", "need one entry per player count, got %d", len(c.SpeedMultipliers))
	case c.MaxEntries < 1:
		return bad("max_entries", "must be at least 1")
	case c.RankingBackend != RankingSQLite && c.RankingBackend != RankingMemory:
		return bad("ranking_backend", "unknown backend %q", c.RankingBackend)
	case c.RankingBackend == RankingSQLite && c.RankingPath == "":
		return bad("ranking_path", "required for the sqlite backend")
	}

	for _, m := range c.SpeedMultipliers {
		if m <= 0 {
			return bad("speed_multipliers", "values must be positive, got %v", m)
		}
	}
	for name, v := range c.PhaseDurationsMS {
		if !knownPhases[strings.ToUpper(name)] {
			return bad("phase_durations_ms", "unknown phase %q", name)
		}
		if v < 0 {
			return bad("phase_durations_ms", "%s must not be negative", name)
		}
	}

	switch c.Sensor {
	case SensorSimulated:
	case SensorRangefinder:
		if c.SerialPort == "" || c.SerialBaud <= 0 {
			return bad("serial_port/serial_baud", "required for the rangefinder sensor")
		}
		if c.RangefinderSpanMM <= 0 || c.RangefinderDepthMM <= 0 {
			return bad("rangefinder_span_mm/rangefinder_depth_mm", "must be positive")
		}
	case SensorTelemetry:
		if c.TelemetryAddr == "" {
			return bad("telemetry_addr", "required for the telemetry sensor")
		}
	case SensorReplay:
		if c.ReplayPath == "" {
			return bad("replay_path", "required for the replay sensor")
		}
	default:
		return bad("sensor", "unknown sensor %q", c.Sensor)
	}
	return nil
}
