package messages

import "fmt"

// Parameter names one adaptable sensing parameter.
type Parameter string

const (
	ParamBandwidth Parameter = "bandwidth_scaling"
	ParamPRF       Parameter = "prf_scale"
	ParamTxPower   Parameter = "tx_power_scaling"
	ParamCFARAlpha Parameter = "cfar_alpha_scale"
	ParamDwellTime Parameter = "dwell_time_scale"
)

// Parameters lists every adaptable parameter in a stable order.
var Parameters = []Parameter{ParamBandwidth, ParamPRF, ParamTxPower, ParamCFARAlpha, ParamDwellTime}

// Bounds is a closed multiplicative interval.
type Bounds struct {
	Min float64
	Max float64
}

// Clip returns v limited to [Min, Max]. NaN maps to the neutral scale
// clipped into the interval.
func (b Bounds) Clip(v float64) float64 {
	if v != v {
		v = 1
	}
	if v < b.Min {
		return b.Min
	}
	if v > b.Max {
		return b.Max
	}
	return v
}

// Contains reports whether v lies inside the interval.
func (b Bounds) Contains(v float64) bool {
	return isFinite(v) && v >= b.Min && v <= b.Max
}

// BoundsFor returns the hard safety bound of p.
func BoundsFor(p Parameter) Bounds {
	switch p {
	case ParamBandwidth:
		return Bounds{Min: 0.8, Max: 1.5}
	case ParamPRF:
		return Bounds{Min: 0.7, Max: 1.3}
	case ParamTxPower:
		return Bounds{Min: 0.7, Max: 2.0}
	case ParamCFARAlpha:
		return Bounds{Min: 0.85, Max: 1.3}
	case ParamDwellTime:
		return Bounds{Min: 0.9, Max: 2.0}
	}
	panic(fmt.Sprintf("messages: unknown parameter %q", p))
}

// AdaptationCommand carries the five scale factors for the next frame plus
// the rationale behind each one.
type AdaptationCommand struct {
	FrameID        uint64               `json:"frame_id"`
	BandwidthScale float64              `json:"bandwidth_scaling"`
	PRFScale       float64              `json:"prf_scale"`
	TxPowerScale   float64              `json:"tx_power_scaling"`
	CFARAlphaScale float64              `json:"cfar_alpha_scale"`
	DwellTimeScale float64              `json:"dwell_time_scale"`
	Reasoning      map[Parameter]string `json:"reasoning"`
}

// NeutralAdaptation returns the command that changes nothing.
func NeutralAdaptation() AdaptationCommand {
	return AdaptationCommand{
		BandwidthScale: 1,
		PRFScale:       1,
		TxPowerScale:   1,
		CFARAlphaScale: 1,
		DwellTimeScale: 1,
		Reasoning:      map[Parameter]string{},
	}
}

// Scale returns the factor for p.
func (a AdaptationCommand) Scale(p Parameter) float64 {
	switch p {
	case ParamBandwidth:
		return a.BandwidthScale
	case ParamPRF:
		return a.PRFScale
	case ParamTxPower:
		return a.TxPowerScale
	case ParamCFARAlpha:
		return a.CFARAlphaScale
	case ParamDwellTime:
		return a.DwellTimeScale
	}
	panic(fmt.Sprintf("messages: unknown parameter %q", p))
}

// WithScale returns a copy of a with p set to v.
func (a AdaptationCommand) WithScale(p Parameter, v float64) AdaptationCommand {
	out := a.Clone()
	switch p {
	case ParamBandwidth:
		out.BandwidthScale = v
	case ParamPRF:
		out.PRFScale = v
	case ParamTxPower:
		out.TxPowerScale = v
	case ParamCFARAlpha:
		out.CFARAlphaScale = v
	case ParamDwellTime:
		out.DwellTimeScale = v
	default:
		panic(fmt.Sprintf("messages: unknown parameter %q", p))
	}
	return out
}

// Clone deep-copies the reasoning map.
func (a AdaptationCommand) Clone() AdaptationCommand {
	out := a
	out.Reasoning = make(map[Parameter]string, len(a.Reasoning))
	for k, v := range a.Reasoning {
		out.Reasoning[k] = v
	}
	return out
}

// Clipped returns a copy with every factor limited to its bound.
func (a AdaptationCommand) Clipped() AdaptationCommand {
	out := a.Clone()
	for _, p := range Parameters {
		out = out.WithScale(p, BoundsFor(p).Clip(a.Scale(p)))
	}
	return out
}

// Validate checks every factor against its bound.
func (a AdaptationCommand) Validate() error {
	for _, p := range Parameters {
		v := a.Scale(p)
		if b := BoundsFor(p); !b.Contains(v) {
			return invalid("AdaptationCommand", string(p), v, fmt.Sprintf("must be within [%g, %g]", b.Min, b.Max))
		}
	}
	for k := range a.Reasoning {
		switch k {
		case ParamBandwidth, ParamPRF, ParamTxPower, ParamCFARAlpha, ParamDwellTime:
		default:
			return invalid("AdaptationCommand", "reasoning", k, "unknown parameter")
		}
	}
	return nil
}
