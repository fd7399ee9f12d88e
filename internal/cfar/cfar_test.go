package cfar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/cognitive.radar/internal/rdmap"
)

var testScale = rdmap.Scale{RangeResolution: 10, VelocityResolution: 1, VelocityOrigin: -16}

func flatMap(t *testing.T, rows, cols int, level float64, targets map[[2]int]float64) *rdmap.PowerMap {
	t.Helper()
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = level
	}
	for rc, p := range targets {
		data[rc[0]*cols+rc[1]] = p
	}
	m, err := rdmap.New(1, mat.NewDense(rows, cols, data), testScale)
	require.NoError(t, err)
	return m
}

func newDetector(t *testing.T, cfg Config) *Detector {
	t.Helper()
	d, err := New(cfg)
	require.NoError(t, err)
	return d
}

func TestDeriveAlphaMonotonicInPfa(t *testing.T) {
	t.Parallel()
	for _, n := range []int{8, 24, 144} {
		prev := DeriveAlpha(1e-8, n)
		for _, pfa := range []float64{1e-7, 1e-6, 1e-5, 1e-4, 1e-3, 1e-2, 0.1} {
			a := DeriveAlpha(pfa, n)
			assert.Less(t, a, prev, "n=%d pfa=%g", n, pfa)
			assert.Greater(t, a, 0.0)
			prev = a
		}
	}
}

func TestDeriveAlphaKnownValue(t *testing.T) {
	t.Parallel()
	// N=16, Pfa=1e-4: 16·(10^(4/16) − 1)
	assert.InDelta(t, 12.4525, DeriveAlpha(1e-4, 16), 1e-3)
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()
	good := DefaultConfig()
	require.NoError(t, good.Validate())
	assert.Equal(t, 144, good.FullWindowTrainingCells())

	bad := good
	bad.Pfa = 0
	assert.Error(t, bad.Validate())
	bad = good
	bad.TrainingCells = 0
	assert.Error(t, bad.Validate())
	bad = good
	bad.GuardCells = -1
	assert.Error(t, bad.Validate())

	_, err := New(bad)
	assert.Error(t, err)
}

func TestSingleTargetDetected(t *testing.T) {
	t.Parallel()
	d := newDetector(t, DefaultConfig())
	m := flatMap(t, 64, 32, 1, map[[2]int]float64{{20, 10}: 100})

	res, err := d.Detect(m, nil)
	require.NoError(t, err)
	require.Len(t, res.Detections, 1)

	det := res.Detections[0]
	assert.Equal(t, 20, det.RangeBin)
	assert.Equal(t, 10, det.DopplerBin)
	assert.Equal(t, 200.0, det.Range)
	assert.Equal(t, -6.0, det.Velocity)
	assert.Equal(t, 100.0, det.Power)
	assert.InDelta(t, 20.0, det.SNRdB, 1e-9)
	assert.Equal(t, uint64(1), det.FrameID)
	assert.False(t, res.Overridden)
	assert.InDelta(t, DeriveAlpha(d.Config().Pfa, 144), res.Alpha, 1e-12)
}

func TestFlatNoiseHasNoDetections(t *testing.T) {
	t.Parallel()
	d := newDetector(t, DefaultConfig())
	res, err := d.Detect(flatMap(t, 32, 32, 5, nil), nil)
	require.NoError(t, err)
	assert.Empty(t, res.Detections)
	assert.Zero(t, res.HitCells)
}

func TestClusterCollapsesToPeak(t *testing.T) {
	t.Parallel()
	d := newDetector(t, DefaultConfig())
	targets := map[[2]int]float64{}
	for dr := -1; dr <= 1; dr++ {
		for dc := -1; dc <= 1; dc++ {
			targets[[2]int{30 + dr, 15 + dc}] = 40
		}
	}
	targets[[2]int{31, 16}] = 90 // off-centre peak

	res, err := d.Detect(flatMap(t, 64, 32, 1, targets), nil)
	require.NoError(t, err)
	require.Len(t, res.Detections, 1)
	assert.Equal(t, 31, res.Detections[0].RangeBin)
	assert.Equal(t, 16, res.Detections[0].DopplerBin)
	assert.Greater(t, res.HitCells, 1)
}

func TestDetectionsOrderedByRangeThenDoppler(t *testing.T) {
	t.Parallel()
	d := newDetector(t, DefaultConfig())
	m := flatMap(t, 64, 32, 1, map[[2]int]float64{
		{40, 5}:  80,
		{12, 20}: 80,
		{40, 25}: 80,
	})
	res, err := d.Detect(m, nil)
	require.NoError(t, err)
	require.Len(t, res.Detections, 3)
	assert.Equal(t, [2]int{12, 20}, [2]int{res.Detections[0].RangeBin, res.Detections[0].DopplerBin})
	assert.Equal(t, [2]int{40, 5}, [2]int{res.Detections[1].RangeBin, res.Detections[1].DopplerBin})
	assert.Equal(t, [2]int{40, 25}, [2]int{res.Detections[2].RangeBin, res.Detections[2].DopplerBin})
}

func TestAlphaOverrideUsedExactly(t *testing.T) {
	t.Parallel()
	d := newDetector(t, DefaultConfig())
	m := flatMap(t, 64, 32, 1, map[[2]int]float64{{20, 10}: 7})

	res, err := d.Detect(m, nil)
	require.NoError(t, err)
	assert.Empty(t, res.Detections, "7 is below the derived threshold of ~12")

	override := 6.5
	res, err = d.Detect(m, &override)
	require.NoError(t, err)
	assert.True(t, res.Overridden)
	assert.Equal(t, override, res.Alpha)
	require.Len(t, res.Detections, 1)

	override = 7.5
	res, err = d.Detect(m, &override)
	require.NoError(t, err)
	assert.Empty(t, res.Detections)
	assert.Equal(t, 7.5, res.Alpha)

	for _, bad := range []float64{0, -1} {
		bad := bad
		_, err = d.Detect(m, &bad)
		assert.Error(t, err)
	}
}

func TestHigherPfaLowersThreshold(t *testing.T) {
	t.Parallel()
	m := flatMap(t, 64, 32, 1, map[[2]int]float64{{20, 10}: 10})

	strict := DefaultConfig()
	strict.Pfa = 1e-6
	res, err := newDetector(t, strict).Detect(m, nil)
	require.NoError(t, err)
	assert.Empty(t, res.Detections)

	loose := DefaultConfig()
	loose.Pfa = 1e-3
	res2, err := newDetector(t, loose).Detect(m, nil)
	require.NoError(t, err)
	assert.Len(t, res2.Detections, 1)
	assert.Less(t, res2.Alpha, res.Alpha)
}

func TestNoiseFloorSuppressesWeakHits(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.NoiseFloor = 50
	m := flatMap(t, 64, 32, 0.1, map[[2]int]float64{{20, 10}: 30})
	res, err := newDetector(t, cfg).Detect(m, nil)
	require.NoError(t, err)
	assert.Empty(t, res.Detections)
}

func TestEdgeCellsUseShrunkenWindow(t *testing.T) {
	t.Parallel()
	d := newDetector(t, DefaultConfig())
	// Row 0 has no room above, so its window collapses to the Doppler
	// axis; the target is still detected without wraparound artefacts.
	m := flatMap(t, 32, 32, 1, map[[2]int]float64{{0, 16}: 100, {31, 16}: 100})
	res, err := d.Detect(m, nil)
	require.NoError(t, err)
	require.Len(t, res.Detections, 2)
	assert.Equal(t, 0, res.Detections[0].RangeBin)
	assert.Equal(t, 31, res.Detections[1].RangeBin)
}

func TestCornerCellIsNeverTested(t *testing.T) {
	t.Parallel()
	d := newDetector(t, DefaultConfig())
	m := flatMap(t, 16, 16, 1, map[[2]int]float64{{0, 0}: 1000})
	res, err := d.Detect(m, nil)
	require.NoError(t, err)
	assert.Empty(t, res.Detections, "a corner cell has no symmetric training window")
}

func TestIntegralImageMatchesNaiveSum(t *testing.T) {
	t.Parallel()
	rows, cols := 9, 7
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = float64(i%5) + 0.5
	}
	m, err := rdmap.New(1, mat.NewDense(rows, cols, data), testScale)
	require.NoError(t, err)
	ii := newIntegralImage(m)

	naive := func(r0, r1, c0, c1 int) float64 {
		s := 0.0
		for r := r0; r <= r1; r++ {
			for c := c0; c <= c1; c++ {
				s += data[r*cols+c]
			}
		}
		return s
	}
	for _, rect := range [][4]int{{0, 0, 0, 0}, {0, 8, 0, 6}, {2, 5, 1, 3}, {8, 8, 6, 6}, {3, 3, 0, 6}} {
		assert.InDelta(t, naive(rect[0], rect[1], rect[2], rect[3]), ii.sum(rect[0], rect[1], rect[2], rect[3]), 1e-9, "rect %v", rect)
	}
}

func TestDetectRejectsInvalidMap(t *testing.T) {
	t.Parallel()
	d := newDetector(t, DefaultConfig())
	_, err := d.Detect(&rdmap.PowerMap{}, nil)
	assert.Error(t, err)
}
