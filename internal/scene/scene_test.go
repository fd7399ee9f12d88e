package scene

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/cognitive.radar/internal/config"
	"github.com/banshee-data/cognitive.radar/internal/messages"
)

func testGenConfig() GeneratorConfig {
	return GeneratorConfigFromTuning(config.EmptyTuningConfig(), 7)
}

func TestNewGenerator_Invalid(t *testing.T) {
	cfg := testGenConfig()
	cfg.RangeBins = 0
	_, err := NewGenerator(cfg, nil, nil)
	assert.Error(t, err)
}

func TestGenerator_DeterministicForSeed(t *testing.T) {
	t.Parallel()
	targets, clutter := DefaultScenario()
	a, err := NewGenerator(testGenConfig(), targets, clutter)
	require.NoError(t, err)
	b, err := NewGenerator(testGenConfig(), targets, clutter)
	require.NoError(t, err)

	ctx := context.Background()
	for f := uint64(1); f <= 3; f++ {
		ma, err := a.Acquire(ctx, f, messages.NeutralAdaptation())
		require.NoError(t, err)
		mb, err := b.Acquire(ctx, f, messages.NeutralAdaptation())
		require.NoError(t, err)
		assert.True(t, mat.Equal(ma.Power, mb.Power), "frame %d differs", f)
		assert.Equal(t, f, ma.FrameID)
	}
}

func TestGenerator_TargetPeakAtExpectedBin(t *testing.T) {
	t.Parallel()
	g, err := NewGenerator(testGenConfig(), []Target{{Range: 600, Velocity: -8, Amplitude: 1000}}, nil)
	require.NoError(t, err)
	m, err := g.Acquire(context.Background(), 1, messages.NeutralAdaptation())
	require.NoError(t, err)

	rows, cols := m.Dims()
	assert.Equal(t, 128, rows)
	assert.Equal(t, 64, cols)
	bestR, bestD, best := 0, 0, 0.0
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if v := m.Power.At(i, j); v > best {
				bestR, bestD, best = i, j, v
			}
		}
	}
	assert.InDelta(t, 600, m.Range(bestR), 15)
	assert.InDelta(t, -8, m.Velocity(bestD), 2)
	assert.Greater(t, m.EstimatedSNRdB(), 20.0)
}

func TestGenerator_TxPowerRaisesPeak(t *testing.T) {
	t.Parallel()
	target := []Target{{Range: 900, Velocity: 10, Amplitude: 500}}
	lo, err := NewGenerator(testGenConfig(), target, nil)
	require.NoError(t, err)
	hi, err := NewGenerator(testGenConfig(), target, nil)
	require.NoError(t, err)

	ml, err := lo.Acquire(context.Background(), 1, messages.NeutralAdaptation())
	require.NoError(t, err)
	mh, err := hi.Acquire(context.Background(), 1, messages.NeutralAdaptation().WithScale(messages.ParamTxPower, 2))
	require.NoError(t, err)
	assert.Greater(t, mh.Peak(), 1.5*ml.Peak())
}

func TestGenerator_TargetsMoveAndLeave(t *testing.T) {
	t.Parallel()
	cfg := testGenConfig()
	cfg.FrameInterval = time.Second
	g, err := NewGenerator(cfg, []Target{{Range: 30, Velocity: -20, Amplitude: 100}}, nil)
	require.NoError(t, err)

	_, err = g.Acquire(context.Background(), 1, messages.NeutralAdaptation())
	require.NoError(t, err)
	require.Len(t, g.Targets(), 1)
	assert.InDelta(t, 10, g.Targets()[0].Range, 1e-9)

	_, err = g.Acquire(context.Background(), 2, messages.NeutralAdaptation())
	require.NoError(t, err)
	assert.Empty(t, g.Targets())
}

func TestGenerator_CancelledContext(t *testing.T) {
	g, err := NewGenerator(testGenConfig(), nil, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = g.Acquire(ctx, 1, messages.NeutralAdaptation())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClassifier(t *testing.T) {
	t.Parallel()
	tracks := []messages.TrackReport{
		{ID: 1, State: messages.TrackConfirmed, Velocity: -8, Quality: 1},
		{ID: 2, State: messages.TrackConfirmed, Velocity: -55, Quality: 1},
		{ID: 3, State: messages.TrackCoasting, Velocity: 30, Quality: 0.8},
		{ID: 4, State: messages.TrackProvisional, Velocity: 8, Quality: 1},
		{ID: 5, State: messages.TrackConfirmed, Velocity: 0, Quality: 1},
	}
	got := Classifier{}.Classify(tracks)
	require.Len(t, got, 4, "provisional tracks get no output")

	byID := map[int]messages.ThreatAssessment{}
	for _, a := range got {
		require.NoError(t, a.Validate())
		byID[a.TrackID] = a
	}
	assert.Equal(t, messages.ThreatDrone, byID[1].Class)
	assert.Equal(t, messages.ThreatMissile, byID[2].Class)
	assert.Equal(t, messages.ThreatAircraft, byID[3].Class)
	assert.Equal(t, messages.ThreatClutter, byID[5].Class)
	assert.Greater(t, byID[2].Priority, byID[1].Priority)
	assert.Less(t, byID[5].Priority, 1.0)
}

func TestClassifier_LowQualityIsUnknown(t *testing.T) {
	got := Classifier{MinConfidence: 0.9}.Classify([]messages.TrackReport{
		{ID: 1, State: messages.TrackConfirmed, Velocity: -19, Quality: 0.2},
	})
	require.Len(t, got, 1)
	assert.Equal(t, messages.ThreatUnknown, got[0].Class)
	assert.LessOrEqual(t, got[0].Priority, 2.0)
	assert.Greater(t, got[0].Entropy, 0.0)
}
