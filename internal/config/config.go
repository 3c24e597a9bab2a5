package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DefaultRelayCount         = 8
	DefaultPlacement          = "staged-for-deployment"
	DefaultCorridorSpanM      = 100.0
	DefaultUserSpeedMps       = 2.5
	DefaultLossPct            = 30.0
	DefaultRTTMs              = 150.0
	DefaultSignalDBm          = -75.0
	DefaultMaxHopDistM        = 40.0
	DefaultDeployCriterion    = "weakest-hop"
	DefaultBalanceMetric      = "distance"
	DefaultMoveThresholdM     = 3.0
	DefaultMoveSpeedMps       = 3.0
	DefaultClampMarginM       = 0.1
	DefaultMinSeparationM     = 2.0
	DefaultMonitorIntervalSec = 2
	DefaultBalanceIntervalSec = 1
	DefaultTxPowerDBm         = 20.0
	DefaultPathLossExponent   = 2.5
	DefaultReferenceDistM     = 1.0
	DefaultNoise              = "gaussian"
	DefaultNoiseSpread        = 1.0
)

// Config holds the full controller configuration.
type Config struct {
	Corridor   CorridorConfig  `yaml:"corridor"`
	Thresholds ThresholdConfig `yaml:"thresholds"`
	Balance    BalanceConfig   `yaml:"balance"`
	Signal     SignalConfig    `yaml:"signal"`
	Intervals  IntervalConfig  `yaml:"intervals"`
}

// CorridorConfig describes the node roster when no scenario file is
// used.
type CorridorConfig struct {
	RelayCount   int     `yaml:"relay_count"`
	Placement    string  `yaml:"placement"` // even | clustered-near-source | staged-for-deployment
	SpanM        float64 `yaml:"span_m"`
	UserSpeedMps float64 `yaml:"user_speed_mps"`
}

// ThresholdConfig holds the deployment trigger levels.
type ThresholdConfig struct {
	LossPct     float64 `yaml:"loss_pct"`
	RTTMs       float64 `yaml:"rtt_ms"`
	SignalDBm   float64 `yaml:"signal_dbm"`
	MaxHopDistM float64 `yaml:"max_hop_dist_m"`
	Criterion   string  `yaml:"criterion"` // weakest-hop | direct-path
}

// BalanceConfig holds the relay repositioning knobs.
type BalanceConfig struct {
	Metric          string  `yaml:"metric"` // distance | signal
	MoveThresholdM  float64 `yaml:"move_threshold_m"`
	MoveSpeedMps    float64 `yaml:"move_speed_mps"`
	ClampToCorridor *bool   `yaml:"clamp_to_corridor"` // optional; defaults to true
	ClampMarginM    float64 `yaml:"clamp_margin_m"`
	MinSeparationM  float64 `yaml:"min_separation_m"`
}

// SignalConfig holds the path-loss model parameters.
type SignalConfig struct {
	TxPowerDBm       float64 `yaml:"tx_power_dbm"`
	PathLossExponent float64 `yaml:"path_loss_exponent"`
	ReferenceDistM   float64 `yaml:"reference_dist_m"`
	Noise            string  `yaml:"noise"` // none | uniform | gaussian
	NoiseMean        float64 `yaml:"noise_mean"`
	NoiseSpread      float64 `yaml:"noise_spread"`
	Seed             int64   `yaml:"seed"`
}

// IntervalConfig holds the periodic task cadence in simulated seconds.
type IntervalConfig struct {
	MonitorSec int `yaml:"monitor_sec"`
	BalanceSec int `yaml:"balance_sec"`
}

// Load reads and parses a YAML config file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}

	ApplyDefaults(&cfg)
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() Config {
	var cfg Config
	ApplyDefaults(&cfg)
	return cfg
}

// Validate performs minimal validation of enum-like fields.
func Validate(cfg Config) error {
	switch cfg.Corridor.Placement {
	case "even", "clustered-near-source", "staged-for-deployment":
	default:
		return fmt.Errorf("corridor.placement: unknown mode %q", cfg.Corridor.Placement)
	}
	switch cfg.Thresholds.Criterion {
	case "weakest-hop", "direct-path":
	default:
		return fmt.Errorf("thresholds.criterion: unknown criterion %q", cfg.Thresholds.Criterion)
	}
	switch cfg.Balance.Metric {
	case "distance", "signal":
	default:
		return fmt.Errorf("balance.metric: unknown metric %q", cfg.Balance.Metric)
	}
	switch cfg.Signal.Noise {
	case "none", "uniform", "gaussian":
	default:
		return fmt.Errorf("signal.noise: unknown noise kind %q", cfg.Signal.Noise)
	}
	if cfg.Corridor.RelayCount < 0 {
		return fmt.Errorf("corridor.relay_count: must be non-negative")
	}
	return nil
}

// ApplyDefaults fills in default values when empty. Zero is treated as
// unset for every numeric field; thresholds that legitimately need a
// zero value are not a supported configuration.
func ApplyDefaults(cfg *Config) {
	if cfg.Corridor.RelayCount == 0 {
		cfg.Corridor.RelayCount = DefaultRelayCount
	}
	if cfg.Corridor.Placement == "" {
		cfg.Corridor.Placement = DefaultPlacement
	}
	if cfg.Corridor.SpanM == 0 {
		cfg.Corridor.SpanM = DefaultCorridorSpanM
	}
	if cfg.Corridor.UserSpeedMps == 0 {
		cfg.Corridor.UserSpeedMps = DefaultUserSpeedMps
	}

	if cfg.Thresholds.LossPct == 0 {
		cfg.Thresholds.LossPct = DefaultLossPct
	}
	if cfg.Thresholds.RTTMs == 0 {
		cfg.Thresholds.RTTMs = DefaultRTTMs
	}
	if cfg.Thresholds.SignalDBm == 0 {
		cfg.Thresholds.SignalDBm = DefaultSignalDBm
	}
	if cfg.Thresholds.MaxHopDistM == 0 {
		cfg.Thresholds.MaxHopDistM = DefaultMaxHopDistM
	}
	if cfg.Thresholds.Criterion == "" {
		cfg.Thresholds.Criterion = DefaultDeployCriterion
	}

	if cfg.Balance.Metric == "" {
		cfg.Balance.Metric = DefaultBalanceMetric
	}
	if cfg.Balance.MoveThresholdM == 0 {
		cfg.Balance.MoveThresholdM = DefaultMoveThresholdM
	}
	if cfg.Balance.MoveSpeedMps == 0 {
		cfg.Balance.MoveSpeedMps = DefaultMoveSpeedMps
	}
	if cfg.Balance.ClampToCorridor == nil {
		clamp := true
		cfg.Balance.ClampToCorridor = &clamp
	}
	if cfg.Balance.ClampMarginM == 0 {
		cfg.Balance.ClampMarginM = DefaultClampMarginM
	}
	if cfg.Balance.MinSeparationM == 0 {
		cfg.Balance.MinSeparationM = DefaultMinSeparationM
	}

	if cfg.Signal.TxPowerDBm == 0 {
		cfg.Signal.TxPowerDBm = DefaultTxPowerDBm
	}
	if cfg.Signal.PathLossExponent == 0 {
		cfg.Signal.PathLossExponent = DefaultPathLossExponent
	}
	if cfg.Signal.ReferenceDistM == 0 {
		cfg.Signal.ReferenceDistM = DefaultReferenceDistM
	}
	if cfg.Signal.Noise == "" {
		cfg.Signal.Noise = DefaultNoise
	}
	if cfg.Signal.NoiseSpread == 0 {
		cfg.Signal.NoiseSpread = DefaultNoiseSpread
	}

	if cfg.Intervals.MonitorSec == 0 {
		cfg.Intervals.MonitorSec = DefaultMonitorIntervalSec
	}
	if cfg.Intervals.BalanceSec == 0 {
		cfg.Intervals.BalanceSec = DefaultBalanceIntervalSec
	}
}
