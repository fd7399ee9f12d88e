package cognitive

import (
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/cognitive.radar/internal/messages"
	"github.com/banshee-data/cognitive.radar/internal/rdmap"
)

// Inputs is the frozen per-frame view handed to the engine.
type Inputs struct {
	FrameID    uint64
	Detections []messages.Detection
	// Associations[i] is the id of the track detection i updated this
	// frame, or 0. Missing entries count as unassociated.
	Associations []int
	Tracks       []messages.TrackReport
	Threats      []messages.ThreatAssessment
	Map          *rdmap.PowerMap
}

// Assess computes the SituationAssessment for in. It reads in only and is
// safe to call repeatedly on the same snapshot.
func (e *Engine) Assess(in Inputs) messages.SituationAssessment {
	sa := messages.SituationAssessment{
		FrameID:       in.FrameID,
		NumDetections: len(in.Detections),
	}

	state := make(map[int]messages.TrackState, len(in.Tracks))
	var (
		stability  float64
		velocities []float64
	)
	for _, tr := range in.Tracks {
		state[tr.ID] = tr.State
		switch tr.State {
		case messages.TrackConfirmed:
			sa.NumConfirmedTracks++
		case messages.TrackCoasting:
		default:
			continue
		}
		stability += messages.TrackQuality(tr.Hits, tr.Age)
		velocities = append(velocities, tr.Velocity)
	}
	sa.StabilityTracks = len(velocities)
	if sa.StabilityTracks > 0 {
		sa.MeanTrackStability = stability / float64(sa.StabilityTracks)
	}
	if len(velocities) > 1 {
		sa.MeanVelocitySpread = stat.PopStdDev(velocities, nil)
	}

	sa.ClutterRatio = clutterRatio(in, state)

	// One classifier verdict per live track; tracks without output are
	// left out of the mean rather than counted as zero confidence.
	var conf float64
	seen := make(map[int]bool, len(in.Threats))
	for _, th := range in.Threats {
		st, ok := state[th.TrackID]
		if !ok || st == messages.TrackDeleted || seen[th.TrackID] {
			continue
		}
		seen[th.TrackID] = true
		conf += th.Confidence
	}
	sa.ClassifiedTracks = len(seen)
	if sa.ClassifiedTracks > 0 {
		sa.MeanClassificationConfidence = conf / float64(sa.ClassifiedTracks)
	}

	if in.Map != nil {
		sa.EstimatedSNRdB = in.Map.EstimatedSNRdB()
	}

	switch {
	case sa.NumConfirmedTracks == 0:
		sa.SceneType = messages.SceneSearch
	case sa.ClutterRatio > e.cfg.ClutterRatioThreshold:
		sa.SceneType = messages.SceneCluttered
	case sa.NumConfirmedTracks > e.cfg.DenseTrackThreshold:
		sa.SceneType = messages.SceneDense
	default:
		sa.SceneType = messages.SceneTracking
	}
	return sa
}

// clutterRatio is the share of detections not associated to a track that
// is CONFIRMED after this frame's update.
func clutterRatio(in Inputs, state map[int]messages.TrackState) float64 {
	if len(in.Detections) == 0 {
		return 0
	}
	spurious := 0
	for i := range in.Detections {
		id := 0
		if i < len(in.Associations) {
			id = in.Associations[i]
		}
		if id == 0 || state[id] != messages.TrackConfirmed {
			spurious++
		}
	}
	return float64(spurious) / float64(len(in.Detections))
}
