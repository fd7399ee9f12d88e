package eventbus

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ChannelStats is a point-in-time view of one channel's counters.
//
// Every accepted message ends up in exactly one of Received, Dropped,
// Cleared or Depth, so Published == Received + Dropped + Cleared + Depth.
type ChannelStats struct {
	Published uint64 `json:"published"`
	Received  uint64 `json:"received"`
	Dropped   uint64 `json:"dropped"`
	Cleared   uint64 `json:"cleared"`
	Rejected  uint64 `json:"rejected"` // failed validation or bus stopped
	Depth     int    `json:"depth"`
	Capacity  int    `json:"capacity"`
}

// queue is a bounded FIFO ring that evicts its oldest entry when full.
type queue[T any] struct {
	name string

	mu    sync.Mutex
	buf   []T
	head  int
	count int
	stats ChannelStats

	// notify has capacity 1 and is signalled after each push so a
	// waiting receiver wakes without polling.
	notify chan struct{}
	done   <-chan struct{}

	dropLimiter *rate.Limiter
}

func newQueue[T any](name string, capacity int, done <-chan struct{}) *queue[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &queue[T]{
		name:        name,
		buf:         make([]T, capacity),
		notify:      make(chan struct{}, 1),
		done:        done,
		stats:       ChannelStats{Capacity: capacity},
		dropLimiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

func (q *queue[T]) stopped() bool {
	select {
	case <-q.done:
		return true
	default:
		return false
	}
}

// push never blocks. It reports whether msg was admitted.
func (q *queue[T]) push(msg T) bool {
	q.mu.Lock()
	if q.stopped() {
		q.stats.Rejected++
		q.mu.Unlock()
		return false
	}

	dropped := false
	if q.count == len(q.buf) {
		var zero T
		q.buf[q.head] = zero
		q.head = (q.head + 1) % len(q.buf)
		q.count--
		q.stats.Dropped++
		dropped = true
	}
	q.buf[(q.head+q.count)%len(q.buf)] = msg
	q.count++
	q.stats.Published++
	totalDropped := q.stats.Dropped
	q.mu.Unlock()

	if dropped && q.dropLimiter.Allow() {
		opsf("%s channel full, dropped oldest message (total dropped: %d)", q.name, totalDropped)
	}
	q.signal()
	return true
}

func (q *queue[T]) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *queue[T]) tryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var zero T
	if q.count == 0 {
		return zero, false
	}
	msg := q.buf[q.head]
	q.buf[q.head] = zero
	q.head = (q.head + 1) % len(q.buf)
	q.count--
	q.stats.Received++
	if q.count > 0 {
		q.signal()
	}
	return msg, true
}

// pop returns the oldest message, waiting up to timeout for one to arrive.
// A zero timeout polls. A stopped queue always reports nothing.
func (q *queue[T]) pop(timeout time.Duration) (T, bool) {
	var zero T
	if q.stopped() {
		return zero, false
	}
	if msg, ok := q.tryPop(); ok || timeout <= 0 {
		return msg, ok
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case <-q.done:
			return zero, false
		case <-timer.C:
			return q.tryPop()
		case <-q.notify:
			if msg, ok := q.tryPop(); ok {
				return msg, true
			}
		}
	}
}

// fence waits for any push already inside the critical section. Called
// after done is closed, no later push is admitted.
func (q *queue[T]) fence() {
	q.mu.Lock()
	q.mu.Unlock() //nolint:staticcheck
}

func (q *queue[T]) reject() {
	q.mu.Lock()
	q.stats.Rejected++
	q.mu.Unlock()
}

func (q *queue[T]) clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := q.count
	var zero T
	for i := range q.buf {
		q.buf[i] = zero
	}
	q.head = 0
	q.count = 0
	q.stats.Cleared += uint64(n)
	return n
}

func (q *queue[T]) snapshot() ChannelStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	s := q.stats
	s.Depth = q.count
	return s
}
