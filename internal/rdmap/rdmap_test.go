package rdmap

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

var unitScale = Scale{RangeResolution: 15, VelocityResolution: 2, VelocityOrigin: -8}

func TestNewValidates(t *testing.T) {
	t.Parallel()

	_, err := New(1, nil, unitScale)
	assert.Error(t, err)

	_, err = New(1, mat.NewDense(2, 2, []float64{1, 2, -1, 4}), unitScale)
	assert.Error(t, err, "negative power")

	_, err = New(1, mat.NewDense(2, 2, []float64{1, 2, math.NaN(), 4}), unitScale)
	assert.Error(t, err, "NaN power")

	_, err = New(1, mat.NewDense(2, 2, []float64{1, 2, 3, 4}), Scale{RangeResolution: 0, VelocityResolution: 1})
	assert.Error(t, err, "zero resolution")

	m, err := New(1, mat.NewDense(2, 2, []float64{1, 2, 3, 4}), unitScale)
	require.NoError(t, err)
	r, c := m.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 2, c)
}

func TestPhysicalUnits(t *testing.T) {
	t.Parallel()
	m, err := New(1, mat.NewDense(1, 8, nil), unitScale)
	require.NoError(t, err)
	assert.Equal(t, 45.0, m.Range(3))
	assert.Equal(t, -8.0, m.Velocity(0))
	assert.Equal(t, 0.0, m.Velocity(4))
}

func TestEstimatedSNR(t *testing.T) {
	t.Parallel()
	data := make([]float64, 25)
	for i := range data {
		data[i] = 1
	}
	data[12] = 1000
	m, err := New(1, mat.NewDense(5, 5, data), unitScale)
	require.NoError(t, err)

	assert.Equal(t, 1000.0, m.Peak())
	assert.Equal(t, 1.0, m.Median())
	assert.InDelta(t, 30.0, m.EstimatedSNRdB(), 1e-9)
}

func TestEstimatedSNRAllZero(t *testing.T) {
	t.Parallel()
	m, err := New(1, mat.NewDense(3, 3, nil), unitScale)
	require.NoError(t, err)
	assert.Equal(t, 0.0, m.EstimatedSNRdB())
}
