package messages

// Detection is a single CFAR hit in physical units. Values are passed by
// copy, so a Detection cannot change after NewDetection returns it.
type Detection struct {
	FrameID    uint64  `json:"frame_id"`
	Range      float64 `json:"range_m"`
	Velocity   float64 `json:"velocity_mps"` // radial, positive = receding
	Power      float64 `json:"power"`
	SNRdB      float64 `json:"snr_db"`
	RangeBin   int     `json:"range_bin"`
	DopplerBin int     `json:"doppler_bin"`
}

// NewDetection validates d and returns it.
func NewDetection(d Detection) (Detection, error) {
	const m = "Detection"
	if err := checkNonNegative(m, "range_m", d.Range); err != nil {
		return Detection{}, err
	}
	if err := checkFinite(m, "velocity_mps", d.Velocity); err != nil {
		return Detection{}, err
	}
	if err := checkNonNegative(m, "power", d.Power); err != nil {
		return Detection{}, err
	}
	if err := checkFinite(m, "snr_db", d.SNRdB); err != nil {
		return Detection{}, err
	}
	if d.RangeBin < 0 || d.DopplerBin < 0 {
		return Detection{}, invalid(m, "bin", [2]int{d.RangeBin, d.DopplerBin}, "bin indices must be >= 0")
	}
	return d, nil
}
