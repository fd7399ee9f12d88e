package cognitive

import (
	"fmt"

	"github.com/banshee-data/cognitive.radar/internal/messages"
)

// staticReason is recorded against every parameter in ModeStatic.
const staticReason = "Cognitive engine disabled: static defaults"

// Decision is the full output of one Step.
type Decision struct {
	Situation messages.SituationAssessment
	// Raw is the rule-table output before bounding; factors may lie
	// outside their limits.
	Raw messages.AdaptationCommand
	// Command is bounded and damped; it is what the next frame uses.
	Command messages.AdaptationCommand
}

// Engine evaluates the rule table. It is safe for concurrent use.
type Engine struct {
	cfg Config
}

// New validates cfg and returns an Engine.
func New(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid cognitive config: %w", err)
	}
	return &Engine{cfg: cfg}, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.cfg }

// Mode returns the configured mode.
func (e *Engine) Mode() Mode { return e.cfg.Mode }

// Step assesses in and produces the command for the next frame. prev is
// the command used for the current frame; on the first frame callers pass
// messages.NeutralAdaptation().
func (e *Engine) Step(in Inputs, prev messages.AdaptationCommand) Decision {
	sa := e.Assess(in)
	if e.cfg.Mode == ModeStatic {
		cmd := messages.NeutralAdaptation()
		cmd.FrameID = in.FrameID
		for _, p := range messages.Parameters {
			cmd.Reasoning[p] = staticReason
		}
		return Decision{Situation: sa, Raw: cmd, Command: cmd.Clone()}
	}

	raw := e.Decide(sa)
	cmd := Damp(Bound(raw), prev, e.cfg.SmoothingWeight)
	cmd.FrameID = in.FrameID
	diagf("frame %d scene=%s clutter=%.2f conf=%.2f stab=%.2f spread=%.1f snr=%.1fdB",
		in.FrameID, sa.SceneType, sa.ClutterRatio, sa.MeanClassificationConfidence,
		sa.MeanTrackStability, sa.MeanVelocitySpread, sa.EstimatedSNRdB)
	for _, p := range messages.Parameters {
		if v := cmd.Scale(p); v != prev.Scale(p) {
			diagf("frame %d %s %.3f -> %.3f: %s", in.FrameID, p, prev.Scale(p), v, cmd.Reasoning[p])
		}
	}
	return Decision{Situation: sa, Raw: raw, Command: cmd}
}
