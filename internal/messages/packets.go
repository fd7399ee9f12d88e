package messages

import "time"

// SchemaVersion is bumped whenever an envelope field changes meaning.
const SchemaVersion = 1

// IntelligencePacket is the sensor → effector envelope for one frame.
type IntelligencePacket struct {
	FrameID           uint64              `json:"frame_id"`
	SensorID          string              `json:"sensor_id"`
	Timestamp         time.Time           `json:"timestamp"`
	Tracks            []TrackReport       `json:"tracks"`
	Threats           []ThreatAssessment  `json:"threats"`
	Situation         SituationAssessment `json:"situation"`
	Adaptation        AdaptationCommand   `json:"adaptation"`
	OverallConfidence float64             `json:"overall_confidence"`
	DataQuality       float64             `json:"data_quality"`
	SensorHealth      float64             `json:"sensor_health"`
	Extensions        Extensions          `json:"extensions,omitempty"`
}

// NewIntelligencePacket deep-copies p, validates it and returns the copy.
// An invalid packet is never returned.
func NewIntelligencePacket(p IntelligencePacket) (IntelligencePacket, error) {
	out := p.clone()
	if err := out.Validate(); err != nil {
		return IntelligencePacket{}, err
	}
	return out, nil
}

// Kind identifies the envelope on the wire.
func (p IntelligencePacket) Kind() MessageKind { return KindIntelligence }

func (p IntelligencePacket) clone() IntelligencePacket {
	out := p
	out.Tracks = append([]TrackReport(nil), p.Tracks...)
	out.Threats = append([]ThreatAssessment(nil), p.Threats...)
	out.Adaptation = p.Adaptation.Clone()
	out.Extensions = p.Extensions.Clone()
	return out
}

// Validate checks every field and nested value.
func (p IntelligencePacket) Validate() error {
	const m = "IntelligencePacket"
	if p.SensorID == "" {
		return invalid(m, "sensor_id", p.SensorID, "must not be empty")
	}
	if p.Timestamp.IsZero() {
		return invalid(m, "timestamp", p.Timestamp, "must be set")
	}
	seen := make(map[int]bool, len(p.Tracks))
	for _, t := range p.Tracks {
		if err := t.Validate(); err != nil {
			return err
		}
		if seen[t.ID] {
			return invalid(m, "tracks", t.ID, "duplicate track id")
		}
		seen[t.ID] = true
	}
	for _, a := range p.Threats {
		if err := a.Validate(); err != nil {
			return err
		}
	}
	if err := p.Situation.Validate(); err != nil {
		return err
	}
	if err := p.Adaptation.Validate(); err != nil {
		return err
	}
	if err := checkUnit(m, "overall_confidence", p.OverallConfidence); err != nil {
		return err
	}
	if err := checkUnit(m, "data_quality", p.DataQuality); err != nil {
		return err
	}
	if err := checkUnit(m, "sensor_health", p.SensorHealth); err != nil {
		return err
	}
	return p.Extensions.Validate(m)
}

// FeedbackPacket is the effector → sensor envelope.
type FeedbackPacket struct {
	EffectorID           string             `json:"effector_id"`
	FrameID              uint64             `json:"frame_id"` // intelligence frame this answers
	Timestamp            time.Time          `json:"timestamp"`
	Countermeasures      []Countermeasure   `json:"countermeasures"`
	Engagements          []EngagementStatus `json:"engagements"`
	OverallEffectiveness float64            `json:"overall_effectiveness"`
	DecisionConfidence   float64            `json:"decision_confidence"`
	Extensions           Extensions         `json:"extensions,omitempty"`
}

// NewFeedbackPacket deep-copies p, validates it and returns the copy.
func NewFeedbackPacket(p FeedbackPacket) (FeedbackPacket, error) {
	out := p.clone()
	if err := out.Validate(); err != nil {
		return FeedbackPacket{}, err
	}
	return out, nil
}

// Kind identifies the envelope on the wire.
func (p FeedbackPacket) Kind() MessageKind { return KindFeedback }

func (p FeedbackPacket) clone() FeedbackPacket {
	out := p
	out.Countermeasures = append([]Countermeasure(nil), p.Countermeasures...)
	out.Engagements = append([]EngagementStatus(nil), p.Engagements...)
	out.Extensions = p.Extensions.Clone()
	return out
}

// Validate checks every field and nested value.
func (p FeedbackPacket) Validate() error {
	const m = "FeedbackPacket"
	if p.EffectorID == "" {
		return invalid(m, "effector_id", p.EffectorID, "must not be empty")
	}
	if p.Timestamp.IsZero() {
		return invalid(m, "timestamp", p.Timestamp, "must be set")
	}
	for _, c := range p.Countermeasures {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	for _, e := range p.Engagements {
		if err := e.Validate(); err != nil {
			return err
		}
	}
	if err := checkUnit(m, "overall_effectiveness", p.OverallEffectiveness); err != nil {
		return err
	}
	if err := checkUnit(m, "decision_confidence", p.DecisionConfidence); err != nil {
		return err
	}
	return p.Extensions.Validate(m)
}
