// Package rdmap holds the range-Doppler power map handed to the core by the
// waveform simulator once per frame.
package rdmap

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// minPowerForDB keeps dB conversions finite on all-zero maps.
const minPowerForDB = 1e-12

// Scale maps bin indices to physical units.
type Scale struct {
	RangeResolution    float64 // metres per range bin
	RangeOrigin        float64 // metres at range bin 0
	VelocityResolution float64 // m/s per Doppler bin
	VelocityOrigin     float64 // m/s at Doppler bin 0
}

// PowerMap is a rows=range × cols=Doppler matrix of non-negative power.
type PowerMap struct {
	FrameID uint64
	Power   *mat.Dense
	Scale   Scale
}

// New validates the inputs and returns a map. power is not copied; the
// caller must not mutate it afterwards.
func New(frameID uint64, power *mat.Dense, scale Scale) (*PowerMap, error) {
	m := &PowerMap{FrameID: frameID, Power: power, Scale: scale}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Validate checks dimensions, scale and that every cell is finite and >= 0.
func (m *PowerMap) Validate() error {
	if m == nil || m.Power == nil {
		return errors.New("power map is nil")
	}
	r, c := m.Power.Dims()
	if r == 0 || c == 0 {
		return fmt.Errorf("power map has empty dimension %dx%d", r, c)
	}
	if !(m.Scale.RangeResolution > 0) || !(m.Scale.VelocityResolution > 0) {
		return fmt.Errorf("power map resolutions must be > 0, got range=%g velocity=%g",
			m.Scale.RangeResolution, m.Scale.VelocityResolution)
	}
	if m.Scale.RangeOrigin < 0 || math.IsNaN(m.Scale.RangeOrigin) || math.IsNaN(m.Scale.VelocityOrigin) {
		return fmt.Errorf("power map origin invalid: range=%g velocity=%g", m.Scale.RangeOrigin, m.Scale.VelocityOrigin)
	}
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := m.Power.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
				return fmt.Errorf("power map cell (%d,%d)=%g must be finite and >= 0", i, j, v)
			}
		}
	}
	return nil
}

// Dims returns (range bins, Doppler bins).
func (m *PowerMap) Dims() (int, int) { return m.Power.Dims() }

// Range converts a range bin index to metres.
func (m *PowerMap) Range(bin int) float64 {
	return m.Scale.RangeOrigin + float64(bin)*m.Scale.RangeResolution
}

// Velocity converts a Doppler bin index to m/s.
func (m *PowerMap) Velocity(bin int) float64 {
	return m.Scale.VelocityOrigin + float64(bin)*m.Scale.VelocityResolution
}

// Peak returns the largest cell value.
func (m *PowerMap) Peak() float64 {
	return mat.Max(m.Power)
}

// Median returns the empirical median cell value.
func (m *PowerMap) Median() float64 {
	r, c := m.Power.Dims()
	values := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		values = append(values, m.Power.RawRowView(i)...)
	}
	sort.Float64s(values)
	return stat.Quantile(0.5, stat.Empirical, values, nil)
}

// EstimatedSNRdB is the peak power over the median power, in dB.
func (m *PowerMap) EstimatedSNRdB() float64 {
	return PowerDB(m.Peak()) - PowerDB(m.Median())
}

// PowerDB converts linear power to dB, flooring tiny values.
func PowerDB(p float64) float64 {
	if p < minPowerForDB {
		p = minPowerForDB
	}
	return 10 * math.Log10(p)
}
