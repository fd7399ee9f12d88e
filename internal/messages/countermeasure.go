package messages

// Countermeasure is one EW action chosen by the effector.
type Countermeasure struct {
	TrackID       int                `json:"track_id"`
	Type          CountermeasureType `json:"type"`
	Power         float64            `json:"power"`         // normalised emitter power [0,1]
	Effectiveness float64            `json:"effectiveness"` // predicted [0,1]
	Rationale     string             `json:"rationale,omitempty"`
}

// Validate checks the countermeasure's bounds.
func (c Countermeasure) Validate() error {
	const m = "Countermeasure"
	if c.TrackID <= 0 {
		return invalid(m, "track_id", c.TrackID, "must be > 0")
	}
	if !c.Type.Valid() {
		return invalid(m, "type", c.Type, "unknown countermeasure")
	}
	if err := checkUnit(m, "power", c.Power); err != nil {
		return err
	}
	return checkUnit(m, "effectiveness", c.Effectiveness)
}

// EngagementStatus is the effector's engagement state for one track.
type EngagementStatus struct {
	TrackID       int             `json:"track_id"`
	State         EngagementState `json:"state"`
	FramesEngaged int             `json:"frames_engaged"`
}

// Validate checks the status' bounds.
func (e EngagementStatus) Validate() error {
	const m = "EngagementStatus"
	if e.TrackID <= 0 {
		return invalid(m, "track_id", e.TrackID, "must be > 0")
	}
	if !e.State.Valid() {
		return invalid(m, "state", e.State, "unknown engagement state")
	}
	if e.FramesEngaged < 0 {
		return invalid(m, "frames_engaged", e.FramesEngaged, "must be >= 0")
	}
	return nil
}
