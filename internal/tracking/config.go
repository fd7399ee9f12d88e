package tracking

import (
	"fmt"

	"github.com/banshee-data/cognitive.radar/internal/config"
)

// Config holds configuration parameters for the tracker.
type Config struct {
	GateThreshold            float64 // squared Mahalanobis distance accepted for association
	CoastLimit               int     // misses a confirmed track may coast before deletion
	HitsToConfirm            int     // consecutive hits needed for confirmation
	MaxTracks                int     // cap on live tracks; extra detections are not initiated
	ProcessNoiseAccel        float64 // white-jerk spectral density q (m²/s⁵)
	MeasurementNoiseRange    float64 // σ²_r (m²)
	MeasurementNoiseVelocity float64 // σ²_v ((m/s)²)
	InitialAccelVariance     float64 // σ²_a of a new track ((m/s²)²)
	DefaultDt                float64 // seconds, used when Update gets dt <= 0
	MaxPredictDt             float64 // seconds, cap per predict step
}

// DefaultConfig returns the built-in tracker defaults.
func DefaultConfig() Config {
	return ConfigFromTuning(config.EmptyTuningConfig())
}

// ConfigFromTuning builds a Config from a loaded TuningConfig.
func ConfigFromTuning(cfg *config.TuningConfig) Config {
	frame := cfg.GetFrameInterval().Seconds()
	return Config{
		GateThreshold:            cfg.GetGateThreshold(),
		CoastLimit:               cfg.GetCoastLimit(),
		HitsToConfirm:            cfg.GetHitsToConfirm(),
		MaxTracks:                cfg.GetMaxTracks(),
		ProcessNoiseAccel:        cfg.GetProcessNoiseAccel(),
		MeasurementNoiseRange:    cfg.GetMeasurementNoiseRange(),
		MeasurementNoiseVelocity: cfg.GetMeasurementNoiseVelocity(),
		InitialAccelVariance:     cfg.GetInitialAccelVariance(),
		DefaultDt:                frame,
		MaxPredictDt:             10 * frame,
	}
}

// Validate checks parameter ranges.
func (c Config) Validate() error {
	switch {
	case c.GateThreshold <= 0:
		return fmt.Errorf("gate threshold must be > 0, got %g", c.GateThreshold)
	case c.CoastLimit < 1:
		return fmt.Errorf("coast limit must be >= 1, got %d", c.CoastLimit)
	case c.HitsToConfirm < 1:
		return fmt.Errorf("hits to confirm must be >= 1, got %d", c.HitsToConfirm)
	case c.MaxTracks < 1:
		return fmt.Errorf("max tracks must be >= 1, got %d", c.MaxTracks)
	case c.ProcessNoiseAccel <= 0, c.MeasurementNoiseRange <= 0, c.MeasurementNoiseVelocity <= 0, c.InitialAccelVariance <= 0:
		return fmt.Errorf("noise parameters must be > 0")
	case c.DefaultDt <= 0 || c.MaxPredictDt < c.DefaultDt:
		return fmt.Errorf("dt limits invalid: default=%g max=%g", c.DefaultDt, c.MaxPredictDt)
	}
	return nil
}
