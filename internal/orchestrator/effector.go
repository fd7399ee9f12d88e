package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/banshee-data/cognitive.radar/internal/effector"
	"github.com/banshee-data/cognitive.radar/internal/eventbus"
	"github.com/banshee-data/cognitive.radar/internal/messages"
	"github.com/banshee-data/cognitive.radar/internal/monitoring"
	"github.com/banshee-data/cognitive.radar/internal/timeutil"
)

// EffectorDeps are the collaborators of an Effector. Mirror and Metrics
// are optional.
type EffectorDeps struct {
	Bus     *eventbus.Bus
	Planner *effector.Planner
	Mirror  Mirror
	Metrics *monitoring.Metrics
	Clock   timeutil.Clock
}

// Effector runs the effector phase: one FeedbackPacket per received
// IntelligencePacket.
type Effector struct {
	deps    EffectorDeps
	stamper *timeutil.Stamper

	mu        sync.RWMutex
	processed uint64
	last      *messages.FeedbackPacket
}

// NewEffector returns an Effector.
func NewEffector(deps EffectorDeps) (*Effector, error) {
	if deps.Bus == nil || deps.Planner == nil {
		return nil, errors.New("effector requires bus and planner")
	}
	if deps.Clock == nil {
		deps.Clock = timeutil.RealClock{}
	}
	return &Effector{deps: deps, stamper: timeutil.NewStamper(deps.Clock)}, nil
}

// Step waits up to timeout for intelligence and answers it. ok is false
// when nothing arrived or the bus stopped.
func (e *Effector) Step(ctx context.Context, timeout time.Duration) (fb messages.FeedbackPacket, ok bool, err error) {
	if err := ctx.Err(); err != nil {
		return messages.FeedbackPacket{}, false, err
	}
	pkt, ok := e.deps.Bus.ReceiveIntelligence(timeout)
	if !ok {
		return messages.FeedbackPacket{}, false, nil
	}

	fb, err = e.deps.Planner.Plan(pkt, e.stamper.Next())
	if err != nil {
		opsf("effector: frame %d: %v", pkt.FrameID, err)
		return messages.FeedbackPacket{}, false, err
	}
	if !e.deps.Bus.PublishFeedback(fb) {
		opsf("effector: feedback for frame %d rejected by bus", fb.FrameID)
	}
	if e.deps.Mirror != nil {
		if err := e.deps.Mirror.PublishFeedback(fb); err != nil {
			opsf("effector: mirror: %v", err)
		}
	}
	e.deps.Metrics.ObserveFeedback(fb)

	e.mu.Lock()
	e.processed++
	e.last = &fb
	e.mu.Unlock()

	diagf("effector: frame %d countermeasures=%d effectiveness=%.2f confidence=%.2f",
		fb.FrameID, len(fb.Countermeasures), fb.OverallEffectiveness, fb.DecisionConfidence)
	return fb, true, nil
}

// Processed returns the number of IntelligencePackets answered.
func (e *Effector) Processed() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.processed
}

// LastFeedback returns the most recent FeedbackPacket, if any.
func (e *Effector) LastFeedback() (messages.FeedbackPacket, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.last == nil {
		return messages.FeedbackPacket{}, false
	}
	return *e.last, true
}
