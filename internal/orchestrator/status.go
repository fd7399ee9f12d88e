package orchestrator

import (
	"github.com/banshee-data/cognitive.radar/internal/cognitive"
	"github.com/banshee-data/cognitive.radar/internal/eventbus"
	"github.com/banshee-data/cognitive.radar/internal/messages"
)

// TrackCounts counts live tracks by state.
type TrackCounts struct {
	Provisional int `json:"provisional"`
	Confirmed   int `json:"confirmed"`
	Coasting    int `json:"coasting"`
}

// Status is the point-in-time report polled by dashboards and the CLI.
type Status struct {
	SensorID       string                        `json:"sensor_id"`
	Mode           cognitive.Mode                `json:"mode"`
	Frames         uint64                        `json:"frames"`
	FramesOK       uint64                        `json:"frames_ok"`
	FramesFailed   uint64                        `json:"frames_failed"`
	LastFrameOK    bool                          `json:"last_frame_ok"`
	SensorHealth   float64                       `json:"sensor_health"`
	Tracks         TrackCounts                   `json:"tracks"`
	LastSituation  *messages.SituationAssessment `json:"last_situation,omitempty"`
	LastAdaptation *messages.AdaptationCommand   `json:"last_adaptation,omitempty"`
	LastFeedback   *messages.FeedbackPacket      `json:"last_feedback,omitempty"`
	FeedbackSeen   uint64                        `json:"feedback_seen"`
	Bus            eventbus.Statistics           `json:"bus"`
}

// Healthy reports whether the last frame acquired a map and at least half
// of the recent frames did.
func (s Status) Healthy() bool {
	return s.LastFrameOK && s.SensorHealth >= 0.5
}

// StatusReport returns a copy of the sensor's current state.
func (s *Sensor) StatusReport() Status {
	prov, conf, coast := s.deps.Tracker.Counts()
	bus := s.deps.Bus.Statistics()

	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Status{
		SensorID:     s.cfg.SensorID,
		Mode:         s.deps.Engine.Mode(),
		Frames:       s.frameID,
		FramesOK:     s.framesOK,
		FramesFailed: s.framesFailed,
		LastFrameOK:  s.lastOK,
		SensorHealth: s.healthLocked(),
		Tracks:       TrackCounts{Provisional: prov, Confirmed: conf, Coasting: coast},
		FeedbackSeen: s.feedbackSeen,
		Bus:          bus,
	}
	if s.lastSA != nil {
		sa := *s.lastSA
		st.LastSituation = &sa
	}
	if s.lastPacket != nil {
		cmd := s.lastPacket.Adaptation.Clone()
		st.LastAdaptation = &cmd
	}
	if s.lastFeedback != nil {
		fb := *s.lastFeedback
		st.LastFeedback = &fb
	}
	return st
}

// LastPacket returns the most recently published IntelligencePacket.
func (s *Sensor) LastPacket() (messages.IntelligencePacket, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastPacket == nil {
		return messages.IntelligencePacket{}, false
	}
	return *s.lastPacket, true
}
