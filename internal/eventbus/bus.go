// Package eventbus connects the sensor and effector phases with two
// one-directional bounded channels.
//
// Publishing never blocks: a full channel evicts its oldest message so the
// effector always sees the most recent tactical picture and the radar
// never stalls. Receivers choose between a zero-timeout poll (inside the
// frame loop) and a bounded wait. Stop wakes every waiting receiver.
package eventbus

import (
	"sync"
	"time"

	"github.com/banshee-data/cognitive.radar/internal/messages"
)

// DefaultCapacity is the per-channel queue length used when Config.Capacity is 0.
const DefaultCapacity = 32

// Config holds the bus sizing.
type Config struct {
	Capacity int // per channel
}

// Statistics aggregates both channels.
type Statistics struct {
	Intelligence ChannelStats `json:"intelligence"`
	Feedback     ChannelStats `json:"feedback"`
	Stopped      bool         `json:"stopped"`
}

// Bus carries IntelligencePacket (sensor → effector) and FeedbackPacket
// (effector → sensor). It is safe for concurrent publishers; each channel
// expects a single consumer.
type Bus struct {
	intelligence *queue[messages.IntelligencePacket]
	feedback     *queue[messages.FeedbackPacket]

	done     chan struct{}
	stopOnce sync.Once
}

// New creates a running bus.
func New(cfg Config) *Bus {
	capacity := cfg.Capacity
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	done := make(chan struct{})
	b := &Bus{
		intelligence: newQueue[messages.IntelligencePacket]("intelligence", capacity, done),
		feedback:     newQueue[messages.FeedbackPacket]("feedback", capacity, done),
		done:         done,
	}
	diagf("bus created with capacity %d per channel", capacity)
	return b
}

// PublishIntelligence enqueues msg without blocking. It returns false only
// when the bus is stopped or msg fails validation; a full channel drops its
// oldest entry and still returns true.
func (b *Bus) PublishIntelligence(msg messages.IntelligencePacket) bool {
	if err := msg.Validate(); err != nil {
		b.intelligence.reject()
		opsf("rejected intelligence frame %d: %v", msg.FrameID, err)
		return false
	}
	ok := b.intelligence.push(msg)
	tracef("publish intelligence frame=%d tracks=%d ok=%t", msg.FrameID, len(msg.Tracks), ok)
	return ok
}

// ReceiveIntelligence returns the oldest queued intelligence packet. A zero
// timeout polls; a positive timeout waits at most that long.
func (b *Bus) ReceiveIntelligence(timeout time.Duration) (messages.IntelligencePacket, bool) {
	return b.intelligence.pop(timeout)
}

// PublishFeedback enqueues msg without blocking, with the same drop-oldest
// policy as PublishIntelligence.
func (b *Bus) PublishFeedback(msg messages.FeedbackPacket) bool {
	if err := msg.Validate(); err != nil {
		b.feedback.reject()
		opsf("rejected feedback from %s: %v", msg.EffectorID, err)
		return false
	}
	ok := b.feedback.push(msg)
	tracef("publish feedback frame=%d countermeasures=%d ok=%t", msg.FrameID, len(msg.Countermeasures), ok)
	return ok
}

// ReceiveEWFeedback returns the oldest queued feedback packet.
func (b *Bus) ReceiveEWFeedback(timeout time.Duration) (messages.FeedbackPacket, bool) {
	return b.feedback.pop(timeout)
}

// Statistics returns counters for both channels.
func (b *Bus) Statistics() Statistics {
	return Statistics{
		Intelligence: b.intelligence.snapshot(),
		Feedback:     b.feedback.snapshot(),
		Stopped:      b.Stopped(),
	}
}

// Clear discards every queued message on both channels.
func (b *Bus) Clear() {
	ni := b.intelligence.clear()
	nf := b.feedback.clear()
	diagf("cleared %d intelligence and %d feedback messages", ni, nf)
}

// Stop rejects further publishes and releases every blocked receiver.
// It is idempotent.
func (b *Bus) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
		b.intelligence.fence()
		b.feedback.fence()
		diagf("bus stopped")
	})
}

// Stopped reports whether Stop has been called.
func (b *Bus) Stopped() bool {
	select {
	case <-b.done:
		return true
	default:
		return false
	}
}
