package orchestrator

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/cognitive.radar/internal/eventbus"
	"github.com/banshee-data/cognitive.radar/internal/timeutil"
)

// defaultEffectorPoll is the effector's blocking wait between stop checks.
const defaultEffectorPoll = 50 * time.Millisecond

// Runner drives a Sensor at a fixed interval and an Effector as fast as
// intelligence arrives, until the context ends or MaxFrames frames ran.
type Runner struct {
	Sensor   *Sensor
	Effector *Effector // optional
	Bus      *eventbus.Bus
	Clock    timeutil.Clock
	Interval time.Duration
	// MaxFrames stops the run after that many sensor frames. Zero runs
	// until the context is cancelled.
	MaxFrames    uint64
	EffectorPoll time.Duration
}

// Run blocks until the run ends. It stops the bus on return, which wakes
// any receiver. A frame that fails with ErrNoPowerMap is logged and the
// loop continues on the next tick.
func (r *Runner) Run(ctx context.Context) error {
	if r.Sensor == nil || r.Bus == nil {
		return errors.New("runner requires a sensor and a bus")
	}
	if r.Interval <= 0 {
		return errors.New("runner interval must be > 0")
	}
	clock := r.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	poll := r.EffectorPoll
	if poll <= 0 {
		poll = defaultEffectorPoll
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-gctx.Done()
		r.Bus.Stop()
		return nil
	})

	g.Go(func() error {
		defer cancel()
		ticker := clock.NewTicker(r.Interval)
		defer ticker.Stop()
		var frames uint64
		for {
			_, err := r.Sensor.Step(gctx)
			switch {
			case err == nil:
			case errors.Is(err, ErrNoPowerMap):
				// logged by Step; retry next tick
			case gctx.Err() != nil:
				return nil
			default:
				return err
			}
			frames++
			if r.MaxFrames > 0 && frames >= r.MaxFrames {
				opsf("runner: reached %d frames", frames)
				return nil
			}
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C():
			}
		}
	})

	if r.Effector != nil {
		g.Go(func() error {
			for !r.Bus.Stopped() {
				if _, _, err := r.Effector.Step(gctx, poll); err != nil {
					if gctx.Err() != nil {
						return nil
					}
					opsf("runner: effector step: %v", err)
				}
			}
			return nil
		})
	}

	return g.Wait()
}
