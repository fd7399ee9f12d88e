package messages

// SituationAssessment is the per-frame scene snapshot produced by the
// cognitive engine.
type SituationAssessment struct {
	FrameID                      uint64    `json:"frame_id"`
	SceneType                    SceneType `json:"scene_type"`
	ClutterRatio                 float64   `json:"clutter_ratio"`
	MeanClassificationConfidence float64   `json:"mean_classification_confidence"`
	MeanTrackStability           float64   `json:"mean_track_stability"`
	MeanVelocitySpread           float64   `json:"mean_velocity_spread"`
	EstimatedSNRdB               float64   `json:"estimated_snr_db"`
	NumConfirmedTracks           int       `json:"num_confirmed_tracks"`

	// ClassifiedTracks counts tracks that contributed to the confidence
	// mean; zero means the mean is undefined and confidence rules are skipped.
	ClassifiedTracks int `json:"classified_tracks"`
	// StabilityTracks counts confirmed+coasting tracks behind the stability
	// mean; zero means the mean is undefined.
	StabilityTracks int `json:"stability_tracks"`
	NumDetections   int `json:"num_detections"`
}

// Validate checks the assessment's bounds.
func (s SituationAssessment) Validate() error {
	const m = "SituationAssessment"
	if !s.SceneType.Valid() {
		return invalid(m, "scene_type", s.SceneType, "unknown scene type")
	}
	if err := checkUnit(m, "clutter_ratio", s.ClutterRatio); err != nil {
		return err
	}
	if err := checkUnit(m, "mean_classification_confidence", s.MeanClassificationConfidence); err != nil {
		return err
	}
	if err := checkUnit(m, "mean_track_stability", s.MeanTrackStability); err != nil {
		return err
	}
	if err := checkNonNegative(m, "mean_velocity_spread", s.MeanVelocitySpread); err != nil {
		return err
	}
	if err := checkFinite(m, "estimated_snr_db", s.EstimatedSNRdB); err != nil {
		return err
	}
	if s.NumConfirmedTracks < 0 || s.ClassifiedTracks < 0 || s.StabilityTracks < 0 || s.NumDetections < 0 {
		return invalid(m, "counts", s.NumConfirmedTracks, "must be >= 0")
	}
	return nil
}
