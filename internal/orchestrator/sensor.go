package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/banshee-data/cognitive.radar/internal/cfar"
	"github.com/banshee-data/cognitive.radar/internal/cognitive"
	"github.com/banshee-data/cognitive.radar/internal/eventbus"
	"github.com/banshee-data/cognitive.radar/internal/messages"
	"github.com/banshee-data/cognitive.radar/internal/monitoring"
	"github.com/banshee-data/cognitive.radar/internal/rdmap"
	"github.com/banshee-data/cognitive.radar/internal/timeutil"
	"github.com/banshee-data/cognitive.radar/internal/tracking"
)

// ErrNoPowerMap aborts a frame. It is the only error a sensor Step returns
// besides context cancellation.
var ErrNoPowerMap = errors.New("no power map acquired")

// feedbackDrainLimit bounds how many queued FeedbackPackets one frame
// consumes.
const feedbackDrainLimit = 64

// MapSource produces the power map for a frame, shaped by the adaptation
// command chosen on the previous frame.
type MapSource interface {
	Acquire(ctx context.Context, frameID uint64, cmd messages.AdaptationCommand) (*rdmap.PowerMap, error)
}

// Classifier labels tracks. Tracks without an output are left out of the
// confidence averages.
type Classifier interface {
	Classify(tracks []messages.TrackReport) []messages.ThreatAssessment
}

// Journal persists one IntelligencePacket per frame.
type Journal interface {
	RecordFrame(ctx context.Context, pkt messages.IntelligencePacket) error
}

// Mirror forwards envelopes outside the process.
type Mirror interface {
	PublishIntelligence(p messages.IntelligencePacket) error
	PublishFeedback(p messages.FeedbackPacket) error
}

// SensorConfig holds the sensor phase settings.
type SensorConfig struct {
	SensorID      string
	FrameInterval time.Duration // also the tracker's dt
	HealthWindow  int           // frames behind SensorHealth
}

// SensorDeps are the collaborators of a Sensor. Classifier, Journal,
// Mirror and Metrics are optional.
type SensorDeps struct {
	Bus        *eventbus.Bus
	Source     MapSource
	Detector   *cfar.Detector
	Tracker    *tracking.Tracker
	Engine     *cognitive.Engine
	Classifier Classifier
	Journal    Journal
	Mirror     Mirror
	Metrics    *monitoring.Metrics
	Clock      timeutil.Clock
}

// Sensor runs the sensor phase. Step must be called from one goroutine;
// StatusReport may be called from any.
type Sensor struct {
	cfg     SensorConfig
	deps    SensorDeps
	stamper *timeutil.Stamper
	dt      float64

	mu           sync.RWMutex
	frameID      uint64
	framesOK     uint64
	framesFailed uint64
	lastOK       bool
	health       []bool // ring of recent acquisition outcomes
	healthNext   int
	cmd          messages.AdaptationCommand // applied to the next frame
	lastSA       *messages.SituationAssessment
	lastPacket   *messages.IntelligencePacket
	lastFeedback *messages.FeedbackPacket
	feedbackSeen uint64
}

// NewSensor validates cfg and deps and returns a Sensor whose first frame
// uses the neutral adaptation.
func NewSensor(cfg SensorConfig, deps SensorDeps) (*Sensor, error) {
	if cfg.SensorID == "" {
		return nil, errors.New("sensor id must not be empty")
	}
	if cfg.FrameInterval <= 0 {
		return nil, fmt.Errorf("frame interval must be > 0, got %s", cfg.FrameInterval)
	}
	if cfg.HealthWindow <= 0 {
		cfg.HealthWindow = 10
	}
	if deps.Bus == nil || deps.Source == nil || deps.Detector == nil || deps.Tracker == nil || deps.Engine == nil {
		return nil, errors.New("sensor requires bus, source, detector, tracker and engine")
	}
	if deps.Clock == nil {
		deps.Clock = timeutil.RealClock{}
	}
	return &Sensor{
		cfg:     cfg,
		deps:    deps,
		stamper: timeutil.NewStamper(deps.Clock),
		dt:      cfg.FrameInterval.Seconds(),
		health:  make([]bool, 0, cfg.HealthWindow),
		cmd:     messages.NeutralAdaptation(),
	}, nil
}

// Step processes one frame and returns the published packet.
func (s *Sensor) Step(ctx context.Context) (messages.IntelligencePacket, error) {
	if err := ctx.Err(); err != nil {
		return messages.IntelligencePacket{}, err
	}
	start := s.deps.Clock.Now()

	s.mu.Lock()
	s.frameID++
	frameID := s.frameID
	prev := s.cmd.Clone()
	s.mu.Unlock()

	m, err := s.deps.Source.Acquire(ctx, frameID, prev)
	if err == nil && m == nil {
		err = errors.New("source returned nil map")
	}
	var res cfar.Result
	if err == nil {
		res, err = s.deps.Detector.Detect(m, s.alphaOverride(prev))
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return messages.IntelligencePacket{}, ctxErr
		}
		health := s.recordOutcome(false)
		s.deps.Metrics.ObserveFrame(false, s.deps.Clock.Since(start), health)
		opsf("frame %d aborted: %v", frameID, err)
		return messages.IntelligencePacket{}, fmt.Errorf("%w for frame %d: %w", ErrNoPowerMap, frameID, err)
	}
	health := s.recordOutcome(true)

	fr := s.deps.Tracker.Update(res.Detections, s.dt)
	tracks := s.deps.Tracker.Snapshot()
	threats := s.classify(frameID, tracks)

	dec := s.deps.Engine.Step(cognitive.Inputs{
		FrameID:      frameID,
		Detections:   res.Detections,
		Associations: fr.Associations,
		Tracks:       tracks,
		Threats:      threats,
		Map:          m,
	}, prev)

	pkt, err := messages.NewIntelligencePacket(messages.IntelligencePacket{
		FrameID:           frameID,
		SensorID:          s.cfg.SensorID,
		Timestamp:         s.stamper.Next(),
		Tracks:            tracks,
		Threats:           threats,
		Situation:         dec.Situation,
		Adaptation:        dec.Command,
		OverallConfidence: overallConfidence(tracks, dec.Situation),
		DataQuality:       clampUnit(1 - dec.Situation.ClutterRatio),
		SensorHealth:      health,
		Extensions: messages.Extensions{
			"cfar_alpha":       messages.ExtFloat(res.Alpha),
			"cfar_hit_cells":   messages.ExtInt(int64(res.HitCells)),
			"numerical_resets": messages.ExtInt(int64(fr.NumericalResets)),
			"engine_mode":      messages.ExtString(string(s.deps.Engine.Mode())),
		},
	})
	if err != nil {
		// Reached only if a component breaks its output contract.
		return messages.IntelligencePacket{}, fmt.Errorf("frame %d: build intelligence packet: %w", frameID, err)
	}

	if !s.deps.Bus.PublishIntelligence(pkt) {
		opsf("frame %d: intelligence rejected by bus", frameID)
	}
	if s.deps.Mirror != nil {
		if err := s.deps.Mirror.PublishIntelligence(pkt); err != nil {
			opsf("frame %d: mirror: %v", frameID, err)
		}
	}
	if s.deps.Journal != nil {
		if err := s.deps.Journal.RecordFrame(ctx, pkt); err != nil {
			s.deps.Metrics.JournalError()
			opsf("frame %d: journal: %v", frameID, err)
		}
	}

	fb, nfb := s.drainFeedback()

	s.mu.Lock()
	s.cmd = dec.Command
	sa := dec.Situation
	s.lastSA = &sa
	s.lastPacket = &pkt
	if fb != nil {
		s.lastFeedback = fb
		s.feedbackSeen += uint64(nfb)
	}
	s.mu.Unlock()

	prov, conf, coast := s.deps.Tracker.Counts()
	s.deps.Metrics.ObserveTracking(len(res.Detections), prov, conf, coast, fr.NumericalResets)
	s.deps.Metrics.ObserveDecision(dec.Situation, dec.Command)
	s.deps.Metrics.ObserveFrame(true, s.deps.Clock.Since(start), health)

	diagf("frame %d detections=%d tracks=%d/%d/%d threats=%d scene=%s health=%.2f",
		frameID, len(res.Detections), prov, conf, coast, len(threats), dec.Situation.SceneType, health)
	return pkt, nil
}

// alphaOverride is nil in static mode so the detector derives alpha from
// Pfa alone.
func (s *Sensor) alphaOverride(cmd messages.AdaptationCommand) *float64 {
	if s.deps.Engine.Mode() != cognitive.ModeAdaptive {
		return nil
	}
	a := s.deps.Detector.NominalAlpha() * cmd.CFARAlphaScale
	return &a
}

// classify keeps at most one valid assessment per live track.
func (s *Sensor) classify(frameID uint64, tracks []messages.TrackReport) []messages.ThreatAssessment {
	if s.deps.Classifier == nil {
		return nil
	}
	live := make(map[int]bool, len(tracks))
	for _, tr := range tracks {
		live[tr.ID] = tr.State != messages.TrackDeleted
	}
	var out []messages.ThreatAssessment
	for _, a := range s.deps.Classifier.Classify(tracks) {
		if !live[a.TrackID] {
			tracef("frame %d: dropping assessment for unknown track %d", frameID, a.TrackID)
			continue
		}
		if err := a.Validate(); err != nil {
			opsf("frame %d: dropping classifier output: %v", frameID, err)
			continue
		}
		live[a.TrackID] = false
		out = append(out, a)
	}
	return out
}

func (s *Sensor) drainFeedback() (*messages.FeedbackPacket, int) {
	var (
		last *messages.FeedbackPacket
		n    int
	)
	for n < feedbackDrainLimit {
		fb, ok := s.deps.Bus.ReceiveEWFeedback(0)
		if !ok {
			break
		}
		last = &fb
		n++
		tracef("feedback for frame %d from %s: %d countermeasures", fb.FrameID, fb.EffectorID, len(fb.Countermeasures))
	}
	return last, n
}

// recordOutcome pushes ok into the health ring and returns the fraction of
// successful acquisitions in it.
func (s *Sensor) recordOutcome(ok bool) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.health) < s.cfg.HealthWindow {
		s.health = append(s.health, ok)
	} else {
		s.health[s.healthNext] = ok
		s.healthNext = (s.healthNext + 1) % s.cfg.HealthWindow
	}
	s.lastOK = ok
	if ok {
		s.framesOK++
	} else {
		s.framesFailed++
	}
	return s.healthLocked()
}

func (s *Sensor) healthLocked() float64 {
	if len(s.health) == 0 {
		return 0
	}
	n := 0
	for _, ok := range s.health {
		if ok {
			n++
		}
	}
	return float64(n) / float64(len(s.health))
}

// overallConfidence averages confirmed track quality, blended evenly with
// the mean classification confidence when any track was classified.
func overallConfidence(tracks []messages.TrackReport, sa messages.SituationAssessment) float64 {
	var sum float64
	n := 0
	for _, tr := range tracks {
		if tr.State == messages.TrackConfirmed {
			sum += tr.Quality
			n++
		}
	}
	q := 0.0
	if n > 0 {
		q = sum / float64(n)
	}
	if sa.ClassifiedTracks > 0 {
		q = 0.5*q + 0.5*sa.MeanClassificationConfidence
	}
	return clampUnit(q)
}

func clampUnit(v float64) float64 {
	if v < 0 || v != v {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
