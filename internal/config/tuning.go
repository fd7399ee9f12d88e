package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for the sensing loop.
// Every field is optional; the Get* accessors supply defaults for anything
// the file leaves out, so partial configs are safe.
type TuningConfig struct {
	// Frame loop and bus
	FrameInterval      *string `json:"frame_interval,omitempty" yaml:"frame_interval,omitempty"` // duration string like "100ms"
	BusCapacity        *int    `json:"bus_capacity,omitempty" yaml:"bus_capacity,omitempty"`
	SensorHealthWindow *int    `json:"sensor_health_window,omitempty" yaml:"sensor_health_window,omitempty"`

	// CA-CFAR detector
	CFARGuardCells    *int     `json:"cfar_guard_cells,omitempty" yaml:"cfar_guard_cells,omitempty"`
	CFARTrainingCells *int     `json:"cfar_training_cells,omitempty" yaml:"cfar_training_cells,omitempty"`
	CFARPfa           *float64 `json:"cfar_pfa,omitempty" yaml:"cfar_pfa,omitempty"`
	CFARNoiseFloor    *float64 `json:"cfar_noise_floor,omitempty" yaml:"cfar_noise_floor,omitempty"`

	// Tracker
	GateThreshold            *float64 `json:"gate_threshold,omitempty" yaml:"gate_threshold,omitempty"` // squared Mahalanobis distance
	CoastLimit               *int     `json:"coast_limit,omitempty" yaml:"coast_limit,omitempty"`
	HitsToConfirm            *int     `json:"hits_to_confirm,omitempty" yaml:"hits_to_confirm,omitempty"`
	MaxTracks                *int     `json:"max_tracks,omitempty" yaml:"max_tracks,omitempty"`
	ProcessNoiseAccel        *float64 `json:"process_noise_accel,omitempty" yaml:"process_noise_accel,omitempty"`
	MeasurementNoiseRange    *float64 `json:"measurement_noise_range,omitempty" yaml:"measurement_noise_range,omitempty"`
	MeasurementNoiseVelocity *float64 `json:"measurement_noise_velocity,omitempty" yaml:"measurement_noise_velocity,omitempty"`
	InitialAccelVariance     *float64 `json:"initial_accel_variance,omitempty" yaml:"initial_accel_variance,omitempty"`

	// Cognitive engine
	CognitiveEnabled *bool    `json:"cognitive_enabled,omitempty" yaml:"cognitive_enabled,omitempty"`
	SmoothingWeight  *float64 `json:"smoothing_weight,omitempty" yaml:"smoothing_weight,omitempty"` // weight of the new command

	// Synthetic scene
	RangeBins          *int     `json:"range_bins,omitempty" yaml:"range_bins,omitempty"`
	DopplerBins        *int     `json:"doppler_bins,omitempty" yaml:"doppler_bins,omitempty"`
	RangeResolution    *float64 `json:"range_resolution,omitempty" yaml:"range_resolution,omitempty"`
	VelocityResolution *float64 `json:"velocity_resolution,omitempty" yaml:"velocity_resolution,omitempty"`

	// Effector
	PriorityEngageThreshold *float64 `json:"priority_engage_threshold,omitempty" yaml:"priority_engage_threshold,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with all fields set to nil, so
// every Get* accessor yields its built-in default.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a .json, .yaml or .yml file.
// The file must be under 1MB. Fields omitted from the file keep their
// defaults.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleanPath))
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if ext == ".json" {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents up to the repository root. Panics if the file
// cannot be loaded; intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configured values are usable.
func (c *TuningConfig) Validate() error {
	if c.FrameInterval != nil && *c.FrameInterval != "" {
		d, err := time.ParseDuration(*c.FrameInterval)
		if err != nil {
			return fmt.Errorf("invalid frame_interval '%s': %w", *c.FrameInterval, err)
		}
		if d <= 0 {
			return fmt.Errorf("frame_interval must be positive, got %s", d)
		}
	}
	if c.BusCapacity != nil && *c.BusCapacity < 1 {
		return fmt.Errorf("bus_capacity must be >= 1, got %d", *c.BusCapacity)
	}
	if c.CFARGuardCells != nil && *c.CFARGuardCells < 0 {
		return fmt.Errorf("cfar_guard_cells must be non-negative, got %d", *c.CFARGuardCells)
	}
	if c.CFARTrainingCells != nil && *c.CFARTrainingCells < 1 {
		return fmt.Errorf("cfar_training_cells must be >= 1, got %d", *c.CFARTrainingCells)
	}
	if c.CFARPfa != nil && (*c.CFARPfa <= 0 || *c.CFARPfa >= 1) {
		return fmt.Errorf("cfar_pfa must be between 0 and 1 exclusive, got %g", *c.CFARPfa)
	}
	if c.CFARNoiseFloor != nil && *c.CFARNoiseFloor < 0 {
		return fmt.Errorf("cfar_noise_floor must be non-negative, got %g", *c.CFARNoiseFloor)
	}
	if c.GateThreshold != nil && *c.GateThreshold <= 0 {
		return fmt.Errorf("gate_threshold must be positive, got %g", *c.GateThreshold)
	}
	if c.CoastLimit != nil && *c.CoastLimit < 1 {
		return fmt.Errorf("coast_limit must be >= 1, got %d", *c.CoastLimit)
	}
	if c.HitsToConfirm != nil && *c.HitsToConfirm < 1 {
		return fmt.Errorf("hits_to_confirm must be >= 1, got %d", *c.HitsToConfirm)
	}
	if c.MaxTracks != nil && *c.MaxTracks < 1 {
		return fmt.Errorf("max_tracks must be >= 1, got %d", *c.MaxTracks)
	}
	for name, v := range map[string]*float64{
		"process_noise_accel":        c.ProcessNoiseAccel,
		"measurement_noise_range":    c.MeasurementNoiseRange,
		"measurement_noise_velocity": c.MeasurementNoiseVelocity,
		"initial_accel_variance":     c.InitialAccelVariance,
		"range_resolution":           c.RangeResolution,
		"velocity_resolution":        c.VelocityResolution,
	} {
		if v != nil && *v <= 0 {
			return fmt.Errorf("%s must be positive, got %g", name, *v)
		}
	}
	if c.SmoothingWeight != nil && (*c.SmoothingWeight <= 0 || *c.SmoothingWeight > 1) {
		return fmt.Errorf("smoothing_weight must be within (0, 1], got %g", *c.SmoothingWeight)
	}
	if c.RangeBins != nil && *c.RangeBins < 1 {
		return fmt.Errorf("range_bins must be >= 1, got %d", *c.RangeBins)
	}
	if c.DopplerBins != nil && *c.DopplerBins < 1 {
		return fmt.Errorf("doppler_bins must be >= 1, got %d", *c.DopplerBins)
	}
	if c.SensorHealthWindow != nil && *c.SensorHealthWindow < 1 {
		return fmt.Errorf("sensor_health_window must be >= 1, got %d", *c.SensorHealthWindow)
	}
	if c.PriorityEngageThreshold != nil && (*c.PriorityEngageThreshold < 0 || *c.PriorityEngageThreshold > 10) {
		return fmt.Errorf("priority_engage_threshold must be within [0, 10], got %g", *c.PriorityEngageThreshold)
	}
	return nil
}

// GetFrameInterval parses and returns the FrameInterval.
func (c *TuningConfig) GetFrameInterval() time.Duration {
	if c.FrameInterval == nil || *c.FrameInterval == "" {
		return 100 * time.Millisecond // 10 Hz
	}
	d, err := time.ParseDuration(*c.FrameInterval)
	if err != nil || d <= 0 {
		return 100 * time.Millisecond // default on parse error
	}
	return d
}

// GetBusCapacity returns the per-channel queue capacity.
func (c *TuningConfig) GetBusCapacity() int {
	if c.BusCapacity == nil {
		return 32
	}
	return *c.BusCapacity
}

// GetSensorHealthWindow returns the number of recent frames used to score sensor health.
func (c *TuningConfig) GetSensorHealthWindow() int {
	if c.SensorHealthWindow == nil {
		return 10
	}
	return *c.SensorHealthWindow
}

// GetCFARGuardCells returns the guard radius.
func (c *TuningConfig) GetCFARGuardCells() int {
	if c.CFARGuardCells == nil {
		return 2
	}
	return *c.CFARGuardCells
}

// GetCFARTrainingCells returns the training radius.
func (c *TuningConfig) GetCFARTrainingCells() int {
	if c.CFARTrainingCells == nil {
		return 4
	}
	return *c.CFARTrainingCells
}

// GetCFARPfa returns the target false-alarm probability.
func (c *TuningConfig) GetCFARPfa() float64 {
	if c.CFARPfa == nil {
		return 1e-5
	}
	return *c.CFARPfa
}

// GetCFARNoiseFloor returns the absolute detection floor.
func (c *TuningConfig) GetCFARNoiseFloor() float64 {
	if c.CFARNoiseFloor == nil {
		return 2.0
	}
	return *c.CFARNoiseFloor
}

// GetGateThreshold returns the squared Mahalanobis gate (3.5σ).
func (c *TuningConfig) GetGateThreshold() float64 {
	if c.GateThreshold == nil {
		return 3.5 * 3.5
	}
	return *c.GateThreshold
}

// GetCoastLimit returns the number of consecutive misses a confirmed track may coast.
func (c *TuningConfig) GetCoastLimit() int {
	if c.CoastLimit == nil {
		return 10
	}
	return *c.CoastLimit
}

// GetHitsToConfirm returns the consecutive hits needed for confirmation.
func (c *TuningConfig) GetHitsToConfirm() int {
	if c.HitsToConfirm == nil {
		return 3
	}
	return *c.HitsToConfirm
}

// GetMaxTracks returns the maximum number of live tracks.
func (c *TuningConfig) GetMaxTracks() int {
	if c.MaxTracks == nil {
		return 64
	}
	return *c.MaxTracks
}

// GetProcessNoiseAccel returns the jerk noise spectral density (m²/s⁵).
func (c *TuningConfig) GetProcessNoiseAccel() float64 {
	if c.ProcessNoiseAccel == nil {
		return 4.0
	}
	return *c.ProcessNoiseAccel
}

// GetMeasurementNoiseRange returns the range measurement variance (m²).
func (c *TuningConfig) GetMeasurementNoiseRange() float64 {
	if c.MeasurementNoiseRange == nil {
		return 25.0
	}
	return *c.MeasurementNoiseRange
}

// GetMeasurementNoiseVelocity returns the radial velocity measurement variance ((m/s)²).
func (c *TuningConfig) GetMeasurementNoiseVelocity() float64 {
	if c.MeasurementNoiseVelocity == nil {
		return 1.0
	}
	return *c.MeasurementNoiseVelocity
}

// GetInitialAccelVariance returns the acceleration variance of a new track ((m/s²)²).
func (c *TuningConfig) GetInitialAccelVariance() float64 {
	if c.InitialAccelVariance == nil {
		return 25.0
	}
	return *c.InitialAccelVariance
}

// GetCognitiveEnabled reports whether adaptive mode is on.
func (c *TuningConfig) GetCognitiveEnabled() bool {
	if c.CognitiveEnabled == nil {
		return true
	}
	return *c.CognitiveEnabled
}

// GetSmoothingWeight returns the weight given to the new command when damping.
func (c *TuningConfig) GetSmoothingWeight() float64 {
	if c.SmoothingWeight == nil {
		return 0.8
	}
	return *c.SmoothingWeight
}

// GetRangeBins returns the synthetic map range dimension.
func (c *TuningConfig) GetRangeBins() int {
	if c.RangeBins == nil {
		return 128
	}
	return *c.RangeBins
}

// GetDopplerBins returns the synthetic map Doppler dimension.
func (c *TuningConfig) GetDopplerBins() int {
	if c.DopplerBins == nil {
		return 64
	}
	return *c.DopplerBins
}

// GetRangeResolution returns metres per range bin.
func (c *TuningConfig) GetRangeResolution() float64 {
	if c.RangeResolution == nil {
		return 15.0
	}
	return *c.RangeResolution
}

// GetVelocityResolution returns m/s per Doppler bin.
func (c *TuningConfig) GetVelocityResolution() float64 {
	if c.VelocityResolution == nil {
		return 2.0
	}
	return *c.VelocityResolution
}

// GetPriorityEngageThreshold returns the threat priority at which the effector engages.
func (c *TuningConfig) GetPriorityEngageThreshold() float64 {
	if c.PriorityEngageThreshold == nil {
		return 5.0
	}
	return *c.PriorityEngageThreshold
}
