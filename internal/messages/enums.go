package messages

import "fmt"

// TrackState is the lifecycle state of a track.
type TrackState string

const (
	TrackProvisional TrackState = "PROVISIONAL" // New track, awaiting confirmation
	TrackConfirmed   TrackState = "CONFIRMED"   // Associated on enough consecutive frames
	TrackCoasting    TrackState = "COASTING"    // Confirmed track predicting through misses
	TrackDeleted     TrackState = "DELETED"     // Terminal; the id is never reused
)

// Valid reports whether s is one of the declared states.
func (s TrackState) Valid() bool {
	switch s {
	case TrackProvisional, TrackConfirmed, TrackCoasting, TrackDeleted:
		return true
	}
	return false
}

// SceneType is the coarse scene classification computed every frame.
type SceneType string

const (
	SceneSearch    SceneType = "SEARCH"
	SceneTracking  SceneType = "TRACKING"
	SceneCluttered SceneType = "CLUTTERED"
	SceneDense     SceneType = "DENSE"
)

// Valid reports whether s is one of the declared scene types.
func (s SceneType) Valid() bool {
	switch s {
	case SceneSearch, SceneTracking, SceneCluttered, SceneDense:
		return true
	}
	return false
}

// ThreatClass is the categorical output of the classifier.
type ThreatClass string

const (
	ThreatUnknown  ThreatClass = "unknown"
	ThreatDrone    ThreatClass = "drone"
	ThreatAircraft ThreatClass = "aircraft"
	ThreatMissile  ThreatClass = "missile"
	ThreatClutter  ThreatClass = "clutter"
)

// Valid reports whether c is one of the declared classes.
func (c ThreatClass) Valid() bool {
	switch c {
	case ThreatUnknown, ThreatDrone, ThreatAircraft, ThreatMissile, ThreatClutter:
		return true
	}
	return false
}

// ParseThreatClass maps a classifier label onto a ThreatClass. Labels the
// core does not know about are rejected rather than silently coerced.
func ParseThreatClass(label string) (ThreatClass, error) {
	c := ThreatClass(label)
	if !c.Valid() {
		return ThreatUnknown, fmt.Errorf("unknown threat class %q", label)
	}
	return c, nil
}

// CountermeasureType enumerates the electronic-warfare responses.
type CountermeasureType string

const (
	CountermeasureNoiseJamming     CountermeasureType = "noise_jamming"
	CountermeasureDeceptionJamming CountermeasureType = "deception_jamming"
	CountermeasureChaff            CountermeasureType = "chaff"
	CountermeasureDecoy            CountermeasureType = "decoy"
)

// Valid reports whether t is one of the declared countermeasures.
func (t CountermeasureType) Valid() bool {
	switch t {
	case CountermeasureNoiseJamming, CountermeasureDeceptionJamming, CountermeasureChaff, CountermeasureDecoy:
		return true
	}
	return false
}

// EngagementState is the effector's view of one track.
type EngagementState string

const (
	EngagementMonitoring EngagementState = "MONITORING"
	EngagementEngaging   EngagementState = "ENGAGING"
	EngagementDisengaged EngagementState = "DISENGAGED"
)

// Valid reports whether s is one of the declared engagement states.
func (s EngagementState) Valid() bool {
	switch s {
	case EngagementMonitoring, EngagementEngaging, EngagementDisengaged:
		return true
	}
	return false
}

// MessageKind tags envelope messages on the wire.
type MessageKind string

const (
	KindIntelligence MessageKind = "intelligence"
	KindFeedback     MessageKind = "feedback"
)
