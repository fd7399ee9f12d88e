package messages

// MaxThreatPriority is the upper bound of ThreatAssessment.Priority.
const MaxThreatPriority = 10.0

// ThreatAssessment is the external classifier's verdict on one track.
type ThreatAssessment struct {
	TrackID    int         `json:"track_id"`
	Class      ThreatClass `json:"threat_class"`
	Confidence float64     `json:"classification_confidence"`
	Entropy    float64     `json:"class_entropy"`
	Priority   float64     `json:"threat_priority"`
}

// NewThreatAssessment validates a and returns it.
func NewThreatAssessment(a ThreatAssessment) (ThreatAssessment, error) {
	if err := a.Validate(); err != nil {
		return ThreatAssessment{}, err
	}
	return a, nil
}

// Validate checks the assessment's bounds.
func (a ThreatAssessment) Validate() error {
	const m = "ThreatAssessment"
	if a.TrackID <= 0 {
		return invalid(m, "track_id", a.TrackID, "must be > 0")
	}
	if !a.Class.Valid() {
		return invalid(m, "threat_class", a.Class, "unknown class")
	}
	if err := checkUnit(m, "classification_confidence", a.Confidence); err != nil {
		return err
	}
	if err := checkNonNegative(m, "class_entropy", a.Entropy); err != nil {
		return err
	}
	if !isFinite(a.Priority) || a.Priority < 0 || a.Priority > MaxThreatPriority {
		return invalid(m, "threat_priority", a.Priority, "must be within [0, 10]")
	}
	return nil
}
