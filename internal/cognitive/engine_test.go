package cognitive

import (
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/cognitive.radar/internal/messages"
	"github.com/banshee-data/cognitive.radar/internal/rdmap"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(DefaultConfig())
	require.NoError(t, err)
	return e
}

func confirmed(id int, hits, age int, velocity float64) messages.TrackReport {
	return messages.TrackReport{ID: id, State: messages.TrackConfirmed, Range: 1000, Velocity: velocity, Hits: hits, Age: age}
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SmoothingWeight = 0
	_, err := New(cfg)
	assert.Error(t, err)

	cfg = DefaultConfig()
	cfg.Mode = "turbo"
	_, err = New(cfg)
	assert.Error(t, err)
}

func TestAssess_SceneTypes(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)

	tests := []struct {
		name   string
		in     Inputs
		expect messages.SceneType
	}{
		{
			name:   "no confirmed tracks is search",
			in:     Inputs{Tracks: []messages.TrackReport{{ID: 1, State: messages.TrackProvisional, Hits: 1, Age: 1}}},
			expect: messages.SceneSearch,
		},
		{
			name: "tracking",
			in: Inputs{
				Detections:   make([]messages.Detection, 2),
				Associations: []int{1, 2},
				Tracks:       []messages.TrackReport{confirmed(1, 5, 5, 10), confirmed(2, 5, 5, 12)},
			},
			expect: messages.SceneTracking,
		},
		{
			name: "cluttered beats dense",
			in: Inputs{
				Detections:   make([]messages.Detection, 10),
				Associations: []int{1, 2, 3, 4, 5, 6, 0, 0, 0, 0},
				Tracks: []messages.TrackReport{
					confirmed(1, 5, 5, 0), confirmed(2, 5, 5, 0), confirmed(3, 5, 5, 0),
					confirmed(4, 5, 5, 0), confirmed(5, 5, 5, 0), confirmed(6, 5, 5, 0),
				},
			},
			expect: messages.SceneCluttered,
		},
		{
			name: "dense",
			in: Inputs{
				Detections:   make([]messages.Detection, 6),
				Associations: []int{1, 2, 3, 4, 5, 6},
				Tracks: []messages.TrackReport{
					confirmed(1, 5, 5, 0), confirmed(2, 5, 5, 0), confirmed(3, 5, 5, 0),
					confirmed(4, 5, 5, 0), confirmed(5, 5, 5, 0), confirmed(6, 5, 5, 0),
				},
			},
			expect: messages.SceneDense,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sa := e.Assess(tt.in)
			assert.Equal(t, tt.expect, sa.SceneType)
			assert.NoError(t, sa.Validate())
		})
	}
}

func TestAssess_ClutterCountsProvisionalAssociationsAsFalse(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	in := Inputs{
		Detections:   make([]messages.Detection, 4),
		Associations: []int{1, 2, 0}, // fourth entry missing
		Tracks: []messages.TrackReport{
			confirmed(1, 4, 4, 0),
			{ID: 2, State: messages.TrackProvisional, Hits: 2, Age: 2},
		},
	}
	sa := e.Assess(in)
	assert.InDelta(t, 0.75, sa.ClutterRatio, 1e-12)
	assert.Equal(t, 4, sa.NumDetections)
}

func TestAssess_MissingClassifierOutputExcluded(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	in := Inputs{
		Tracks: []messages.TrackReport{confirmed(1, 3, 3, 0), confirmed(2, 3, 3, 0)},
		Threats: []messages.ThreatAssessment{
			{TrackID: 1, Class: messages.ThreatDrone, Confidence: 0.7},
			{TrackID: 1, Class: messages.ThreatDrone, Confidence: 0.1}, // duplicate ignored
			{TrackID: 99, Class: messages.ThreatMissile, Confidence: 0.1},
		},
	}
	sa := e.Assess(in)
	assert.Equal(t, 1, sa.ClassifiedTracks)
	assert.InDelta(t, 0.7, sa.MeanClassificationConfidence, 1e-12)

	// With no classifier output at all, no confidence rule fires.
	in.Threats = nil
	sa = e.Assess(in)
	assert.Equal(t, 0, sa.ClassifiedTracks)
	cmd := e.Decide(sa)
	assert.Equal(t, 1.0, cmd.TxPowerScale)
	assert.Equal(t, 1.0, cmd.CFARAlphaScale)
}

func TestAssess_StabilitySpreadAndSNR(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	power := mat.NewDense(3, 3, []float64{1, 1, 1, 1, 1000, 1, 1, 1, 1})
	m, err := rdmap.New(7, power, rdmap.Scale{RangeResolution: 15, VelocityResolution: 2})
	require.NoError(t, err)

	in := Inputs{
		FrameID: 7,
		Tracks: []messages.TrackReport{
			confirmed(1, 4, 4, -60),
			{ID: 2, State: messages.TrackCoasting, Velocity: 60, Hits: 2, Age: 4},
			{ID: 3, State: messages.TrackProvisional, Velocity: 500, Hits: 1, Age: 1},
		},
		Map: m,
	}
	sa := e.Assess(in)
	assert.Equal(t, 2, sa.StabilityTracks)
	assert.InDelta(t, 0.75, sa.MeanTrackStability, 1e-12)
	assert.InDelta(t, 60, sa.MeanVelocitySpread, 1e-9)
	assert.InDelta(t, 30, sa.EstimatedSNRdB, 1e-9)
	assert.Equal(t, 1, sa.NumConfirmedTracks)
	assert.Equal(t, uint64(7), sa.FrameID)

	cmd := e.Decide(sa)
	assert.Equal(t, 0.9, cmd.PRFScale)
}

func TestAssess_Idempotent(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	in := Inputs{
		FrameID:      3,
		Detections:   make([]messages.Detection, 3),
		Associations: []int{1, 0, 2},
		Tracks:       []messages.TrackReport{confirmed(1, 3, 4, 5), confirmed(2, 7, 9, -30)},
		Threats:      []messages.ThreatAssessment{{TrackID: 2, Class: messages.ThreatAircraft, Confidence: 0.4}},
	}
	first := e.Assess(in)
	second := e.Assess(in)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("Assess not idempotent (-first +second):\n%s", diff)
	}
}

func TestScenario_ClutterAdaptation(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)

	// 20 detections, 11 on confirmed tracks: clutter ratio 0.45.
	assoc := make([]int, 20)
	tracks := make([]messages.TrackReport, 0, 11)
	for i := 0; i < 11; i++ {
		assoc[i] = i + 1
		tracks = append(tracks, confirmed(i+1, 5, 6, 0))
	}
	in := Inputs{FrameID: 1, Detections: make([]messages.Detection, 20), Associations: assoc, Tracks: tracks}

	d := e.Step(in, messages.NeutralAdaptation())
	require.InDelta(t, 0.45, d.Situation.ClutterRatio, 1e-12)
	assert.Equal(t, messages.SceneCluttered, d.Situation.SceneType)
	assert.Equal(t, 1.3, d.Raw.BandwidthScale)
	assert.InDelta(t, 0.8*1.3+0.2*1.0, d.Command.BandwidthScale, 1e-12)
	assert.InDelta(t, 1.24, d.Command.BandwidthScale, 1e-12)
	assert.GreaterOrEqual(t, d.Command.BandwidthScale, 1.0)
	assert.Contains(t, strings.ToLower(d.Command.Reasoning[messages.ParamBandwidth]), "clutter")
	assert.NoError(t, d.Command.Validate())
}

func TestScenario_WeakTarget(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	sa := messages.SituationAssessment{
		SceneType:                    messages.SceneTracking,
		MeanClassificationConfidence: 0.52,
		ClassifiedTracks:             1,
		MeanTrackStability:           0.4,
		StabilityTracks:              1,
		NumConfirmedTracks:           1,
	}
	raw := e.Decide(sa)
	assert.Equal(t, 1.5, raw.TxPowerScale)
	assert.Equal(t, 1.5, raw.DwellTimeScale)
	assert.Contains(t, raw.Reasoning[messages.ParamTxPower], "Low detection confidence")
	assert.Contains(t, raw.Reasoning[messages.ParamDwellTime], "Low track stability")
}

func TestDecide_EveryParameterHasReasoning(t *testing.T) {
	e := newTestEngine(t)
	cmd := e.Decide(messages.SituationAssessment{SceneType: messages.SceneSearch})
	for _, p := range messages.Parameters {
		assert.NotEmpty(t, cmd.Reasoning[p], p)
	}
	assert.Equal(t, 1.0, cmd.BandwidthScale)
}

func TestDecide_HighConfidenceAndStability(t *testing.T) {
	e := newTestEngine(t)
	cmd := e.Decide(messages.SituationAssessment{
		SceneType:                    messages.SceneTracking,
		MeanClassificationConfidence: 0.95,
		ClassifiedTracks:             2,
		MeanTrackStability:           0.95,
		StabilityTracks:              2,
	})
	assert.Equal(t, 0.8, cmd.TxPowerScale)
	assert.Equal(t, 0.9, cmd.CFARAlphaScale)
}

func TestBound_AdversarialValues(t *testing.T) {
	raw := messages.NeutralAdaptation()
	raw.BandwidthScale = 1e9
	raw.PRFScale = -4
	raw.TxPowerScale = math.NaN()
	raw.CFARAlphaScale = math.Inf(-1)
	raw.DwellTimeScale = math.Inf(1)
	for _, p := range messages.Parameters {
		raw.Reasoning[p] = "adversarial"
	}

	got := Bound(raw)
	require.NoError(t, got.Validate())
	assert.Equal(t, 1.5, got.BandwidthScale)
	assert.Equal(t, 0.7, got.PRFScale)
	assert.Equal(t, 1.0, got.TxPowerScale)
	assert.Equal(t, 0.85, got.CFARAlphaScale)
	assert.Equal(t, 2.0, got.DwellTimeScale)
	assert.Contains(t, got.Reasoning[messages.ParamBandwidth], "clipped")
}

func TestStep_BoundsHoldUnderOscillatingInputs(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	rng := rand.New(rand.NewSource(42))
	prev := messages.NeutralAdaptation()

	for frame := uint64(1); frame <= 500; frame++ {
		n := rng.Intn(12)
		tracks := make([]messages.TrackReport, 0, n)
		threats := make([]messages.ThreatAssessment, 0, n)
		assoc := make([]int, rng.Intn(30))
		for i := 0; i < n; i++ {
			age := 1 + rng.Intn(20)
			st := messages.TrackConfirmed
			if frame%2 == 0 {
				st = messages.TrackCoasting
			}
			tracks = append(tracks, messages.TrackReport{
				ID: i + 1, State: st, Velocity: (rng.Float64() - 0.5) * 600,
				Hits: rng.Intn(age + 1), Age: age,
			})
			threats = append(threats, messages.ThreatAssessment{
				TrackID: i + 1, Class: messages.ThreatUnknown, Confidence: rng.Float64(),
			})
		}
		for i := range assoc {
			if n > 0 && rng.Intn(2) == 0 {
				assoc[i] = 1 + rng.Intn(n)
			}
		}
		in := Inputs{FrameID: frame, Detections: make([]messages.Detection, len(assoc)), Associations: assoc, Tracks: tracks, Threats: threats}

		d := e.Step(in, prev)
		require.NoError(t, d.Command.Validate(), "frame %d", frame)
		require.NoError(t, d.Situation.Validate(), "frame %d", frame)
		prev = d.Command
	}
}

func TestDamp_FirstFrameUsesNeutral(t *testing.T) {
	cmd := messages.NeutralAdaptation().WithScale(messages.ParamDwellTime, 1.5)
	got := Damp(cmd, messages.NeutralAdaptation(), 0.8)
	assert.InDelta(t, 1.4, got.DwellTimeScale, 1e-12)

	// A weight of one disables smoothing.
	got = Damp(cmd, messages.NeutralAdaptation(), 1)
	assert.Equal(t, 1.5, got.DwellTimeScale)
}

func TestStep_StaticMode(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.Mode = ModeStatic
	e, err := New(cfg)
	require.NoError(t, err)

	prev := messages.NeutralAdaptation().WithScale(messages.ParamTxPower, 1.8)
	in := Inputs{
		FrameID:      9,
		Detections:   make([]messages.Detection, 4),
		Associations: []int{1, 0, 0, 0},
		Tracks:       []messages.TrackReport{confirmed(1, 3, 3, 0)},
	}
	d := e.Step(in, prev)
	assert.Equal(t, messages.SceneCluttered, d.Situation.SceneType, "situation is still assessed")
	for _, p := range messages.Parameters {
		assert.Equal(t, 1.0, d.Command.Scale(p), p)
		assert.Equal(t, staticReason, d.Command.Reasoning[p])
	}
	assert.Equal(t, uint64(9), d.Command.FrameID)
}
