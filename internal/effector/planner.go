// Package effector plans electronic-warfare responses to the sensor's
// tactical picture and tracks per-target engagement state.
package effector

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/banshee-data/cognitive.radar/internal/config"
	"github.com/banshee-data/cognitive.radar/internal/messages"
)

// Config holds the planner settings.
type Config struct {
	EffectorID      string
	EngageThreshold float64 // minimum threat priority to engage
	MaxEngagements  int     // concurrent engagements per frame
	ChaffRange      float64 // metres; missiles inside this get chaff, beyond it a decoy
}

// DefaultConfig returns the built-in planner settings for effectorID.
func DefaultConfig(effectorID string) Config {
	return ConfigFromTuning(effectorID, config.EmptyTuningConfig())
}

// ConfigFromTuning builds a Config from a loaded TuningConfig.
func ConfigFromTuning(effectorID string, cfg *config.TuningConfig) Config {
	return Config{
		EffectorID:      effectorID,
		EngageThreshold: cfg.GetPriorityEngageThreshold(),
		MaxEngagements:  4,
		ChaffRange:      5000,
	}
}

// Validate checks parameter ranges.
func (c Config) Validate() error {
	if c.EffectorID == "" {
		return fmt.Errorf("effector id must not be empty")
	}
	if c.EngageThreshold < 0 || c.EngageThreshold > messages.MaxThreatPriority {
		return fmt.Errorf("engage threshold must be within [0, %g], got %g", messages.MaxThreatPriority, c.EngageThreshold)
	}
	if c.MaxEngagements < 1 {
		return fmt.Errorf("max engagements must be >= 1, got %d", c.MaxEngagements)
	}
	if c.ChaffRange <= 0 {
		return fmt.Errorf("chaff range must be > 0, got %g", c.ChaffRange)
	}
	return nil
}

// baseEffectiveness is the predicted effectiveness of each response at
// full classification confidence.
var baseEffectiveness = map[messages.CountermeasureType]float64{
	messages.CountermeasureNoiseJamming:     0.70,
	messages.CountermeasureDeceptionJamming: 0.60,
	messages.CountermeasureChaff:            0.80,
	messages.CountermeasureDecoy:            0.65,
}

type engagement struct {
	state  messages.EngagementState
	frames int
}

// Planner maps threat assessments to countermeasures. It keeps engagement
// history across frames and must be used from a single goroutine.
type Planner struct {
	cfg         Config
	engagements map[int]*engagement
}

// New validates cfg and returns a Planner.
func New(cfg Config) (*Planner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid effector config: %w", err)
	}
	return &Planner{cfg: cfg, engagements: make(map[int]*engagement)}, nil
}

// Config returns the planner configuration.
func (p *Planner) Config() Config { return p.cfg }

// Plan builds the FeedbackPacket answering pkt.
func (p *Planner) Plan(pkt messages.IntelligencePacket, now time.Time) (messages.FeedbackPacket, error) {
	threats := make(map[int]messages.ThreatAssessment, len(pkt.Threats))
	for _, th := range pkt.Threats {
		if _, dup := threats[th.TrackID]; !dup {
			threats[th.TrackID] = th
		}
	}

	type candidate struct {
		track  messages.TrackReport
		threat messages.ThreatAssessment
		kind   messages.CountermeasureType
	}
	var cands []candidate
	live := make(map[int]messages.TrackReport, len(pkt.Tracks))
	for _, tr := range pkt.Tracks {
		if tr.State == messages.TrackDeleted {
			continue
		}
		live[tr.ID] = tr
		th, ok := threats[tr.ID]
		if !ok || th.Priority < p.cfg.EngageThreshold {
			continue
		}
		kind, ok := p.choose(th.Class, tr.Range)
		if !ok {
			continue
		}
		cands = append(cands, candidate{track: tr, threat: th, kind: kind})
	}
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].threat.Priority != cands[j].threat.Priority {
			return cands[i].threat.Priority > cands[j].threat.Priority
		}
		return cands[i].track.ID < cands[j].track.ID
	})
	if len(cands) > p.cfg.MaxEngagements {
		cands = cands[:p.cfg.MaxEngagements]
	}

	fb := messages.FeedbackPacket{
		EffectorID: p.cfg.EffectorID,
		FrameID:    pkt.FrameID,
		Timestamp:  now,
	}
	engaged := make(map[int]bool, len(cands))
	var effSum, confSum float64
	for _, c := range cands {
		eff := baseEffectiveness[c.kind] * c.threat.Confidence
		fb.Countermeasures = append(fb.Countermeasures, messages.Countermeasure{
			TrackID:       c.track.ID,
			Type:          c.kind,
			Power:         clampUnit(math.Max(0.2, c.threat.Priority/messages.MaxThreatPriority)),
			Effectiveness: clampUnit(eff),
			Rationale: fmt.Sprintf("%s at %.0f m, priority %.1f, confidence %.2f",
				c.threat.Class, c.track.Range, c.threat.Priority, c.threat.Confidence),
		})
		engaged[c.track.ID] = true
		effSum += eff
		confSum += c.threat.Confidence
	}

	fb.Engagements = p.advance(live, engaged)

	if n := len(cands); n > 0 {
		fb.OverallEffectiveness = clampUnit(effSum / float64(n))
		fb.DecisionConfidence = clampUnit(confSum / float64(n))
	} else if len(threats) > 0 {
		var sum float64
		for _, th := range threats {
			sum += th.Confidence
		}
		fb.DecisionConfidence = clampUnit(sum / float64(len(threats)))
	}
	return messages.NewFeedbackPacket(fb)
}

// choose picks the response for a class. Unknown and clutter tracks are
// monitored only.
func (p *Planner) choose(class messages.ThreatClass, rng float64) (messages.CountermeasureType, bool) {
	switch class {
	case messages.ThreatDrone:
		return messages.CountermeasureNoiseJamming, true
	case messages.ThreatAircraft:
		return messages.CountermeasureDeceptionJamming, true
	case messages.ThreatMissile:
		if rng < p.cfg.ChaffRange {
			return messages.CountermeasureChaff, true
		}
		return messages.CountermeasureDecoy, true
	}
	return "", false
}

// advance moves every engagement one frame forward and returns the status
// list sorted by track id. DISENGAGED entries are reported once.
func (p *Planner) advance(live map[int]messages.TrackReport, engaged map[int]bool) []messages.EngagementStatus {
	for id, e := range p.engagements {
		if e.state == messages.EngagementDisengaged {
			delete(p.engagements, id)
		}
	}
	for id := range live {
		e, ok := p.engagements[id]
		if !ok {
			e = &engagement{}
			p.engagements[id] = e
		}
		if engaged[id] {
			e.state = messages.EngagementEngaging
			e.frames++
		} else {
			e.state = messages.EngagementMonitoring
		}
	}
	for id, e := range p.engagements {
		if _, ok := live[id]; !ok {
			if e.state == messages.EngagementEngaging {
				e.state = messages.EngagementDisengaged
			} else {
				delete(p.engagements, id)
			}
		}
	}

	out := make([]messages.EngagementStatus, 0, len(p.engagements))
	for id, e := range p.engagements {
		out = append(out, messages.EngagementStatus{TrackID: id, State: e.state, FramesEngaged: e.frames})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TrackID < out[j].TrackID })
	return out
}

func clampUnit(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
