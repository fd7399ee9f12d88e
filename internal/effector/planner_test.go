package effector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/cognitive.radar/internal/messages"
)

var t0 = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func newTestPlanner(t *testing.T) *Planner {
	t.Helper()
	p, err := New(DefaultConfig("ew-1"))
	require.NoError(t, err)
	return p
}

func packet(frame uint64, tracks []messages.TrackReport, threats []messages.ThreatAssessment) messages.IntelligencePacket {
	return messages.IntelligencePacket{FrameID: frame, SensorID: "radar-1", Timestamp: t0, Tracks: tracks, Threats: threats}
}

func trk(id int, rng float64) messages.TrackReport {
	return messages.TrackReport{ID: id, State: messages.TrackConfirmed, Range: rng, Hits: 3, Age: 3, Quality: 1}
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
	cfg := DefaultConfig("ew")
	cfg.EngageThreshold = 11
	_, err = New(cfg)
	assert.Error(t, err)
}

func TestPlan_ChoosesCountermeasureByClass(t *testing.T) {
	t.Parallel()
	p := newTestPlanner(t)
	pkt := packet(1,
		[]messages.TrackReport{trk(1, 1000), trk(2, 8000), trk(3, 2000), trk(4, 9000), trk(5, 500)},
		[]messages.ThreatAssessment{
			{TrackID: 1, Class: messages.ThreatDrone, Confidence: 0.9, Priority: 6},
			{TrackID: 2, Class: messages.ThreatMissile, Confidence: 0.8, Priority: 9},
			{TrackID: 3, Class: messages.ThreatMissile, Confidence: 0.8, Priority: 9},
			{TrackID: 4, Class: messages.ThreatAircraft, Confidence: 0.5, Priority: 7},
			{TrackID: 5, Class: messages.ThreatClutter, Confidence: 0.9, Priority: 9},
		})

	fb, err := p.Plan(pkt, t0)
	require.NoError(t, err)
	require.Len(t, fb.Countermeasures, 4)

	byTrack := map[int]messages.CountermeasureType{}
	for _, c := range fb.Countermeasures {
		byTrack[c.TrackID] = c.Type
	}
	assert.Equal(t, messages.CountermeasureNoiseJamming, byTrack[1])
	assert.Equal(t, messages.CountermeasureDecoy, byTrack[2])
	assert.Equal(t, messages.CountermeasureChaff, byTrack[3])
	assert.Equal(t, messages.CountermeasureDeceptionJamming, byTrack[4])
	assert.NotContains(t, byTrack, 5)

	// Highest priority first, ties by id.
	assert.Equal(t, 2, fb.Countermeasures[0].TrackID)
	assert.Equal(t, 3, fb.Countermeasures[1].TrackID)
	assert.Equal(t, "ew-1", fb.EffectorID)
	assert.Equal(t, uint64(1), fb.FrameID)
	assert.NoError(t, fb.Validate())
}

func TestPlan_BelowThresholdIsMonitored(t *testing.T) {
	t.Parallel()
	p := newTestPlanner(t)
	fb, err := p.Plan(packet(1,
		[]messages.TrackReport{trk(1, 1000)},
		[]messages.ThreatAssessment{{TrackID: 1, Class: messages.ThreatDrone, Confidence: 0.4, Priority: 2}}), t0)
	require.NoError(t, err)
	assert.Empty(t, fb.Countermeasures)
	require.Len(t, fb.Engagements, 1)
	assert.Equal(t, messages.EngagementMonitoring, fb.Engagements[0].State)
	assert.Equal(t, 0.0, fb.OverallEffectiveness)
	assert.InDelta(t, 0.4, fb.DecisionConfidence, 1e-12)
}

func TestPlan_EngagementLifecycle(t *testing.T) {
	t.Parallel()
	p := newTestPlanner(t)
	threat := []messages.ThreatAssessment{{TrackID: 7, Class: messages.ThreatDrone, Confidence: 1, Priority: 8}}

	for frame := uint64(1); frame <= 3; frame++ {
		fb, err := p.Plan(packet(frame, []messages.TrackReport{trk(7, 1500)}, threat), t0)
		require.NoError(t, err)
		require.Len(t, fb.Engagements, 1)
		assert.Equal(t, messages.EngagementEngaging, fb.Engagements[0].State)
		assert.Equal(t, int(frame), fb.Engagements[0].FramesEngaged)
		assert.InDelta(t, 0.7, fb.OverallEffectiveness, 1e-12)
	}

	// Track gone: reported DISENGAGED once, then forgotten.
	fb, err := p.Plan(packet(4, nil, nil), t0)
	require.NoError(t, err)
	require.Len(t, fb.Engagements, 1)
	assert.Equal(t, messages.EngagementDisengaged, fb.Engagements[0].State)
	assert.Equal(t, 3, fb.Engagements[0].FramesEngaged)

	fb, err = p.Plan(packet(5, nil, nil), t0)
	require.NoError(t, err)
	assert.Empty(t, fb.Engagements)
}

func TestPlan_DeletedTrackDisengages(t *testing.T) {
	t.Parallel()
	p := newTestPlanner(t)
	threat := []messages.ThreatAssessment{{TrackID: 1, Class: messages.ThreatAircraft, Confidence: 0.9, Priority: 9}}
	_, err := p.Plan(packet(1, []messages.TrackReport{trk(1, 3000)}, threat), t0)
	require.NoError(t, err)

	gone := trk(1, 3000)
	gone.State = messages.TrackDeleted
	fb, err := p.Plan(packet(2, []messages.TrackReport{gone}, threat), t0)
	require.NoError(t, err)
	assert.Empty(t, fb.Countermeasures)
	require.Len(t, fb.Engagements, 1)
	assert.Equal(t, messages.EngagementDisengaged, fb.Engagements[0].State)
}

func TestPlan_MaxEngagements(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig("ew")
	cfg.MaxEngagements = 1
	p, err := New(cfg)
	require.NoError(t, err)

	fb, err := p.Plan(packet(1,
		[]messages.TrackReport{trk(1, 1000), trk(2, 1000)},
		[]messages.ThreatAssessment{
			{TrackID: 1, Class: messages.ThreatDrone, Confidence: 0.9, Priority: 6},
			{TrackID: 2, Class: messages.ThreatDrone, Confidence: 0.9, Priority: 8},
		}), t0)
	require.NoError(t, err)
	require.Len(t, fb.Countermeasures, 1)
	assert.Equal(t, 2, fb.Countermeasures[0].TrackID)
	assert.InDelta(t, 0.8, fb.Countermeasures[0].Power, 1e-12)
}
