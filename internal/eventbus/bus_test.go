package eventbus

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/cognitive.radar/internal/messages"
)

func intel(frame uint64) messages.IntelligencePacket {
	return messages.IntelligencePacket{
		FrameID:    frame,
		SensorID:   "radar-test",
		Timestamp:  time.Unix(1700000000, int64(frame)),
		Situation:  messages.SituationAssessment{SceneType: messages.SceneSearch},
		Adaptation: messages.NeutralAdaptation(),
	}
}

func feedback(frame uint64) messages.FeedbackPacket {
	return messages.FeedbackPacket{
		EffectorID: "ew-test",
		FrameID:    frame,
		Timestamp:  time.Unix(1700000000, int64(frame)),
	}
}

func TestPublishReceiveFIFO(t *testing.T) {
	t.Parallel()
	b := New(Config{Capacity: 4})

	for i := uint64(1); i <= 3; i++ {
		require.True(t, b.PublishIntelligence(intel(i)))
	}
	for i := uint64(1); i <= 3; i++ {
		msg, ok := b.ReceiveIntelligence(0)
		require.True(t, ok)
		assert.Equal(t, i, msg.FrameID)
	}
	_, ok := b.ReceiveIntelligence(0)
	assert.False(t, ok, "empty poll returns nothing")

	stats := b.Statistics().Intelligence
	assert.Equal(t, uint64(3), stats.Published)
	assert.Equal(t, uint64(3), stats.Received)
	assert.Zero(t, stats.Dropped)
}

func TestFullQueueDropsOldest(t *testing.T) {
	t.Parallel()
	b := New(Config{Capacity: 2})

	start := time.Now()
	for i := uint64(1); i <= 5; i++ {
		require.True(t, b.PublishIntelligence(intel(i)))
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond, "publish must not block")

	stats := b.Statistics().Intelligence
	assert.Equal(t, uint64(5), stats.Published)
	assert.Equal(t, uint64(3), stats.Dropped, "one drop per evicted message")
	assert.Equal(t, 2, stats.Depth)

	first, ok := b.ReceiveIntelligence(0)
	require.True(t, ok)
	second, ok := b.ReceiveIntelligence(0)
	require.True(t, ok)
	assert.Equal(t, uint64(4), first.FrameID)
	assert.Equal(t, uint64(5), second.FrameID)

	stats = b.Statistics().Intelligence
	assert.Equal(t, stats.Published, stats.Received+stats.Dropped+stats.Cleared+uint64(stats.Depth))
}

func TestReceiveTimeout(t *testing.T) {
	t.Parallel()
	b := New(Config{Capacity: 2})

	start := time.Now()
	_, ok := b.ReceiveEWFeedback(30 * time.Millisecond)
	elapsed := time.Since(start)
	assert.False(t, ok)
	assert.GreaterOrEqual(t, elapsed, 25*time.Millisecond)
	assert.Less(t, elapsed, time.Second)
}

func TestReceiveWakesOnPublish(t *testing.T) {
	t.Parallel()
	b := New(Config{Capacity: 2})

	go func() {
		time.Sleep(10 * time.Millisecond)
		b.PublishFeedback(feedback(9))
	}()
	msg, ok := b.ReceiveEWFeedback(2 * time.Second)
	require.True(t, ok)
	assert.Equal(t, uint64(9), msg.FrameID)
}

func TestStopReleasesBlockedReceivers(t *testing.T) {
	t.Parallel()
	b := New(Config{Capacity: 2})

	var wg sync.WaitGroup
	results := make(chan bool, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, ok := b.ReceiveIntelligence(time.Minute)
		results <- ok
	}()
	go func() {
		defer wg.Done()
		_, ok := b.ReceiveEWFeedback(time.Minute)
		results <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	start := time.Now()
	b.Stop()
	wg.Wait()
	close(results)

	assert.Less(t, time.Since(start), time.Second)
	for ok := range results {
		assert.False(t, ok)
	}
	assert.True(t, b.Stopped())
	assert.False(t, b.PublishIntelligence(intel(1)), "stopped bus rejects publishes")
	assert.Equal(t, uint64(1), b.Statistics().Intelligence.Rejected)
	b.Stop() // idempotent
}

func TestInvalidMessageNeverQueued(t *testing.T) {
	t.Parallel()
	b := New(Config{Capacity: 2})

	bad := intel(1)
	bad.SensorHealth = 3
	assert.False(t, b.PublishIntelligence(bad))

	badFB := feedback(1)
	badFB.EffectorID = ""
	assert.False(t, b.PublishFeedback(badFB))

	stats := b.Statistics()
	assert.Zero(t, stats.Intelligence.Depth)
	assert.Zero(t, stats.Intelligence.Published)
	assert.Equal(t, uint64(1), stats.Intelligence.Rejected)
	assert.Equal(t, uint64(1), stats.Feedback.Rejected)
}

func TestClear(t *testing.T) {
	t.Parallel()
	b := New(Config{Capacity: 4})
	b.PublishIntelligence(intel(1))
	b.PublishIntelligence(intel(2))
	b.PublishFeedback(feedback(1))

	b.Clear()

	stats := b.Statistics()
	assert.Zero(t, stats.Intelligence.Depth)
	assert.Equal(t, uint64(2), stats.Intelligence.Cleared)
	assert.Equal(t, uint64(1), stats.Feedback.Cleared)
	_, ok := b.ReceiveIntelligence(0)
	assert.False(t, ok)
}

func TestConcurrentPublishersAccounting(t *testing.T) {
	t.Parallel()
	b := New(Config{Capacity: 8})

	const publishers = 8
	const perPublisher = 200
	var wg sync.WaitGroup
	for p := 0; p < publishers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perPublisher; i++ {
				b.PublishIntelligence(intel(uint64(p*perPublisher + i + 1)))
			}
		}(p)
	}

	received := 0
	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		for {
			if _, ok := b.ReceiveIntelligence(50 * time.Millisecond); !ok {
				return
			}
			received++
		}
	}()
	wg.Wait()
	<-consumerDone

	stats := b.Statistics().Intelligence
	assert.Equal(t, uint64(publishers*perPublisher), stats.Published)
	assert.Equal(t, uint64(received), stats.Received)
	assert.Equal(t, stats.Published, stats.Received+stats.Dropped+stats.Cleared+uint64(stats.Depth))
}

func TestNoPublishAdmittedAfterStop(t *testing.T) {
	t.Parallel()
	for round := 0; round < 50; round++ {
		b := New(Config{Capacity: 4})

		const publishers = 4
		var wg sync.WaitGroup
		start := make(chan struct{})
		var mu sync.Mutex
		admitted := uint64(0)
		for p := 0; p < publishers; p++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				for i := uint64(1); ; i++ {
					if !b.PublishIntelligence(intel(i)) {
						return
					}
					mu.Lock()
					admitted++
					mu.Unlock()
				}
			}()
		}
		close(start)
		time.Sleep(time.Millisecond)
		b.Stop()
		atStop := b.Statistics().Intelligence.Published

		wg.Wait()
		final := b.Statistics().Intelligence
		require.Equal(t, atStop, final.Published, "round %d: publish admitted after Stop returned", round)
		assert.Equal(t, admitted, final.Published)
		assert.GreaterOrEqual(t, final.Rejected, uint64(publishers))
		assert.False(t, b.PublishIntelligence(intel(1)))
	}
}

func TestDefaultCapacity(t *testing.T) {
	t.Parallel()
	b := New(Config{})
	assert.Equal(t, DefaultCapacity, b.Statistics().Intelligence.Capacity)
}
