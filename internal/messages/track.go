package messages

// TrackReport is a read-only snapshot of one tracker track. Covariance is
// an array so copying the struct copies the matrix.
type TrackReport struct {
	ID                int           `json:"id"`
	State             TrackState    `json:"state"`
	Range             float64       `json:"range_m"`
	Velocity          float64       `json:"velocity_mps"`
	Acceleration      float64       `json:"acceleration_mps2"`
	Covariance        [3][3]float64 `json:"covariance"`
	Age               int           `json:"age"`
	Hits              int           `json:"hits"`
	ConsecutiveMisses int           `json:"consecutive_misses"`
	Quality           float64       `json:"quality"`
}

// TrackQuality returns hits/age clamped to [0, 1].
func TrackQuality(hits, age int) float64 {
	if age <= 0 || hits <= 0 {
		return 0
	}
	q := float64(hits) / float64(age)
	if q > 1 {
		return 1
	}
	return q
}

// Validate checks the report's bounds.
func (t TrackReport) Validate() error {
	const m = "TrackReport"
	if t.ID <= 0 {
		return invalid(m, "id", t.ID, "must be > 0")
	}
	if !t.State.Valid() {
		return invalid(m, "state", t.State, "unknown state")
	}
	if err := checkNonNegative(m, "range_m", t.Range); err != nil {
		return err
	}
	if err := checkFinite(m, "velocity_mps", t.Velocity); err != nil {
		return err
	}
	if err := checkFinite(m, "acceleration_mps2", t.Acceleration); err != nil {
		return err
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if !isFinite(t.Covariance[i][j]) {
				return invalid(m, "covariance", t.Covariance[i][j], "must be finite")
			}
		}
		if t.Covariance[i][i] < 0 {
			return invalid(m, "covariance", t.Covariance[i][i], "diagonal must be >= 0")
		}
	}
	if t.Age < 0 || t.Hits < 0 || t.ConsecutiveMisses < 0 {
		return invalid(m, "counters", [3]int{t.Age, t.Hits, t.ConsecutiveMisses}, "must be >= 0")
	}
	return checkUnit(m, "quality", t.Quality)
}
