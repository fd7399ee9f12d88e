package cfar

import (
	"fmt"

	"github.com/banshee-data/cognitive.radar/internal/config"
)

// Config holds the detector parameters.
type Config struct {
	GuardCells    int     // guard radius in bins, both axes
	TrainingCells int     // training radius in bins beyond the guard band
	Pfa           float64 // target probability of false alarm, (0,1)
	NoiseFloor    float64 // absolute power a detection must also exceed
}

// DefaultConfig returns the built-in detector defaults.
func DefaultConfig() Config {
	return ConfigFromTuning(config.EmptyTuningConfig())
}

// ConfigFromTuning builds a Config from a loaded TuningConfig.
func ConfigFromTuning(cfg *config.TuningConfig) Config {
	return Config{
		GuardCells:    cfg.GetCFARGuardCells(),
		TrainingCells: cfg.GetCFARTrainingCells(),
		Pfa:           cfg.GetCFARPfa(),
		NoiseFloor:    cfg.GetCFARNoiseFloor(),
	}
}

// Validate checks parameter ranges.
func (c Config) Validate() error {
	if c.GuardCells < 0 {
		return fmt.Errorf("guard cells must be >= 0, got %d", c.GuardCells)
	}
	if c.TrainingCells < 1 {
		return fmt.Errorf("training cells must be >= 1, got %d", c.TrainingCells)
	}
	if !(c.Pfa > 0 && c.Pfa < 1) {
		return fmt.Errorf("pfa must be within (0, 1), got %g", c.Pfa)
	}
	if c.NoiseFloor < 0 {
		return fmt.Errorf("noise floor must be >= 0, got %g", c.NoiseFloor)
	}
	return nil
}

// FullWindowTrainingCells is the training-cell count of an interior cell.
func (c Config) FullWindowTrainingCells() int {
	outer := 2*(c.GuardCells+c.TrainingCells) + 1
	guard := 2*c.GuardCells + 1
	return outer*outer - guard*guard
}
