package cognitive

import (
	"fmt"

	"github.com/banshee-data/cognitive.radar/internal/messages"
)

// Decide applies the rule table to sa and returns the raw, unbounded
// command. Each parameter gets exactly one reasoning entry. Rules that read
// an undefined mean (no classified or no stable tracks) do not fire.
func (e *Engine) Decide(sa messages.SituationAssessment) messages.AdaptationCommand {
	c := e.cfg
	cmd := messages.NeutralAdaptation()
	cmd.FrameID = sa.FrameID
	haveConf := sa.ClassifiedTracks > 0
	haveStab := sa.StabilityTracks > 0

	set := func(p messages.Parameter, v float64, reason string) {
		cmd = cmd.WithScale(p, v)
		cmd.Reasoning[p] = reason
		tracef("frame %d rule %s -> %.2f: %s", sa.FrameID, p, v, reason)
	}

	switch {
	case haveConf && sa.MeanClassificationConfidence < c.LowConfidence:
		set(messages.ParamTxPower, 1.5, fmt.Sprintf(
			"Low detection confidence (%.2f < %.2f): boost SNR", sa.MeanClassificationConfidence, c.LowConfidence))
	case haveStab && sa.MeanTrackStability > c.HighStability:
		set(messages.ParamTxPower, 0.8, fmt.Sprintf(
			"High track stability (%.2f > %.2f): reduce emissions", sa.MeanTrackStability, c.HighStability))
	default:
		set(messages.ParamTxPower, 1.0, "Nominal confidence and stability: hold transmit power")
	}

	switch sa.SceneType {
	case messages.SceneCluttered:
		set(messages.ParamBandwidth, 1.3, fmt.Sprintf(
			"Cluttered scene (clutter ratio %.2f > %.2f): widen bandwidth for range resolution", sa.ClutterRatio, c.ClutterRatioThreshold))
	case messages.SceneDense:
		set(messages.ParamBandwidth, 1.2, fmt.Sprintf(
			"Dense scene (%d confirmed tracks > %d): widen bandwidth to separate targets", sa.NumConfirmedTracks, c.DenseTrackThreshold))
	default:
		set(messages.ParamBandwidth, 1.0, fmt.Sprintf("Scene %s: hold bandwidth", sa.SceneType))
	}

	switch {
	case haveConf && sa.MeanClassificationConfidence > c.HighConfidence:
		set(messages.ParamCFARAlpha, 0.9, fmt.Sprintf(
			"High classification confidence (%.2f > %.2f): lower CFAR threshold for sensitivity", sa.MeanClassificationConfidence, c.HighConfidence))
	case sa.SceneType == messages.SceneCluttered:
		set(messages.ParamCFARAlpha, 1.2, fmt.Sprintf(
			"Cluttered scene (clutter ratio %.2f): raise CFAR threshold to suppress false alarms", sa.ClutterRatio))
	default:
		set(messages.ParamCFARAlpha, 1.0, "No confidence or clutter trigger: hold CFAR threshold")
	}

	if haveStab && sa.MeanTrackStability < c.LowStability {
		set(messages.ParamDwellTime, 1.5, fmt.Sprintf(
			"Low track stability (%.2f < %.2f): extend dwell for integration gain", sa.MeanTrackStability, c.LowStability))
	} else {
		set(messages.ParamDwellTime, 1.0, "Track stability adequate: hold dwell time")
	}

	if sa.MeanVelocitySpread > c.VelocitySpreadThreshold {
		set(messages.ParamPRF, 0.9, fmt.Sprintf(
			"Wide velocity spread (%.1f m/s > %.1f m/s): lower PRF to trade Doppler for range ambiguity", sa.MeanVelocitySpread, c.VelocitySpreadThreshold))
	} else {
		set(messages.ParamPRF, 1.0, "Velocity spread within limits: hold PRF")
	}
	return cmd
}

// Bound clips every factor of cmd to its hard limit and notes any clip in
// the reasoning.
func Bound(cmd messages.AdaptationCommand) messages.AdaptationCommand {
	out := cmd.Clipped()
	for _, p := range messages.Parameters {
		if raw, got := cmd.Scale(p), out.Scale(p); raw != got {
			out.Reasoning[p] = fmt.Sprintf("%s; clipped %.3f to %.3f", out.Reasoning[p], raw, got)
		}
	}
	return out
}

// Damp blends cmd with prev as w·cmd + (1−w)·prev per factor and re-clips
// the result. prev values outside their bounds are clipped first.
func Damp(cmd, prev messages.AdaptationCommand, w float64) messages.AdaptationCommand {
	out := cmd.Clone()
	for _, p := range messages.Parameters {
		b := messages.BoundsFor(p)
		target := b.Clip(cmd.Scale(p))
		v := b.Clip(w*target + (1-w)*b.Clip(prev.Scale(p)))
		out = out.WithScale(p, v)
		if v != target {
			out.Reasoning[p] = fmt.Sprintf("%s; smoothed to %.3f", out.Reasoning[p], v)
		}
	}
	return out
}
