package cognitive

import (
	"fmt"

	"github.com/banshee-data/cognitive.radar/internal/config"
)

// Mode selects adaptive or static operation.
type Mode string

const (
	ModeAdaptive Mode = "adaptive"
	ModeStatic   Mode = "static"
)

// Config holds the engine mode, damping weight and rule thresholds.
type Config struct {
	Mode Mode
	// SmoothingWeight is the weight w of the new command in
	// w·new + (1−w)·previous.
	SmoothingWeight float64

	ClutterRatioThreshold   float64 // clutter_ratio above this is CLUTTERED
	DenseTrackThreshold     int     // confirmed tracks above this is DENSE
	LowConfidence           float64 // tx power boost below this
	HighConfidence          float64 // cfar alpha relaxed above this
	HighStability           float64 // tx power reduced above this
	LowStability            float64 // dwell extended below this
	VelocitySpreadThreshold float64 // m/s; prf reduced above this
}

// DefaultConfig returns the built-in engine configuration.
func DefaultConfig() Config {
	return ConfigFromTuning(config.EmptyTuningConfig())
}

// ConfigFromTuning builds a Config from a loaded TuningConfig.
func ConfigFromTuning(cfg *config.TuningConfig) Config {
	mode := ModeAdaptive
	if !cfg.GetCognitiveEnabled() {
		mode = ModeStatic
	}
	return Config{
		Mode:                    mode,
		SmoothingWeight:         cfg.GetSmoothingWeight(),
		ClutterRatioThreshold:   0.3,
		DenseTrackThreshold:     5,
		LowConfidence:           0.6,
		HighConfidence:          0.85,
		HighStability:           0.9,
		LowStability:            0.5,
		VelocitySpreadThreshold: 50,
	}
}

// Validate checks parameter ranges.
func (c Config) Validate() error {
	if c.Mode != ModeAdaptive && c.Mode != ModeStatic {
		return fmt.Errorf("unknown mode %q", c.Mode)
	}
	if !(c.SmoothingWeight > 0 && c.SmoothingWeight <= 1) {
		return fmt.Errorf("smoothing weight must be within (0, 1], got %g", c.SmoothingWeight)
	}
	if c.ClutterRatioThreshold < 0 || c.ClutterRatioThreshold > 1 {
		return fmt.Errorf("clutter ratio threshold must be within [0, 1], got %g", c.ClutterRatioThreshold)
	}
	if c.LowConfidence > c.HighConfidence {
		return fmt.Errorf("low confidence %g above high confidence %g", c.LowConfidence, c.HighConfidence)
	}
	if c.LowStability > c.HighStability {
		return fmt.Errorf("low stability %g above high stability %g", c.LowStability, c.HighStability)
	}
	if c.DenseTrackThreshold < 0 || c.VelocitySpreadThreshold < 0 {
		return fmt.Errorf("thresholds must be >= 0")
	}
	return nil
}
