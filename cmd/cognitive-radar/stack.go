package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/banshee-data/cognitive.radar/internal/cfar"
	"github.com/banshee-data/cognitive.radar/internal/cognitive"
	"github.com/banshee-data/cognitive.radar/internal/config"
	"github.com/banshee-data/cognitive.radar/internal/db"
	"github.com/banshee-data/cognitive.radar/internal/effector"
	"github.com/banshee-data/cognitive.radar/internal/eventbus"
	"github.com/banshee-data/cognitive.radar/internal/monitoring"
	"github.com/banshee-data/cognitive.radar/internal/natsbridge"
	"github.com/banshee-data/cognitive.radar/internal/orchestrator"
	"github.com/banshee-data/cognitive.radar/internal/scene"
	"github.com/banshee-data/cognitive.radar/internal/tracking"
)

// options are the flags shared by run and status-once.
type options struct {
	configPath   string
	frames       uint64
	tick         time.Duration // runner tick; zero means the frame interval
	dbPath       string
	natsURL      string
	natsEncoding string
	listen       string
	grpcListen   string
	logLevel     string
	sensorID     string
	effectorID   string
	seed         uint64
	static       bool
}

// stack is a fully wired sensor and effector pair.
type stack struct {
	tuning   *config.TuningConfig
	bus      *eventbus.Bus
	sensor   *orchestrator.Sensor
	effector *orchestrator.Effector
	metrics  *monitoring.Metrics
	journal  *db.Journal
	nc       *nats.Conn
}

func loadTuning(path string) (*config.TuningConfig, error) {
	if path == "" {
		return config.EmptyTuningConfig(), nil
	}
	return config.LoadTuningConfig(path)
}

func buildStack(ctx context.Context, opts options, logOut io.Writer) (_ *stack, err error) {
	monitoring.LogWritersForLevel(opts.logLevel, logOut).Apply(
		eventbus.SetLogWriters,
		cfar.SetLogWriters,
		tracking.SetLogWriters,
		cognitive.SetLogWriters,
		orchestrator.SetLogWriters,
	)

	tuning, err := loadTuning(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.sensorID == "" {
		opts.sensorID = "radar-" + uuid.NewString()[:8]
	}
	if opts.effectorID == "" {
		opts.effectorID = "ew-" + uuid.NewString()[:8]
	}

	s := &stack{tuning: tuning}
	defer func() {
		if err != nil {
			s.Close()
		}
	}()

	if s.metrics, err = monitoring.NewMetrics(); err != nil {
		return nil, err
	}
	s.bus = eventbus.New(eventbus.Config{Capacity: tuning.GetBusCapacity()})
	if err = s.metrics.RegisterBus(s.bus.Statistics); err != nil {
		return nil, err
	}

	detector, err := cfar.New(cfar.ConfigFromTuning(tuning))
	if err != nil {
		return nil, err
	}
	tracker, err := tracking.New(tracking.ConfigFromTuning(tuning))
	if err != nil {
		return nil, err
	}
	ecfg := cognitive.ConfigFromTuning(tuning)
	if opts.static {
		ecfg.Mode = cognitive.ModeStatic
	}
	engine, err := cognitive.New(ecfg)
	if err != nil {
		return nil, err
	}
	targets, clutter := scene.DefaultScenario()
	gen, err := scene.NewGenerator(scene.GeneratorConfigFromTuning(tuning, opts.seed), targets, clutter)
	if err != nil {
		return nil, err
	}
	planner, err := effector.New(effector.ConfigFromTuning(opts.effectorID, tuning))
	if err != nil {
		return nil, err
	}

	sdeps := orchestrator.SensorDeps{
		Bus:        s.bus,
		Source:     gen,
		Detector:   detector,
		Tracker:    tracker,
		Engine:     engine,
		Classifier: scene.Classifier{},
		Metrics:    s.metrics,
	}
	edeps := orchestrator.EffectorDeps{Bus: s.bus, Planner: planner, Metrics: s.metrics}

	if opts.dbPath != "" {
		if s.journal, err = db.Open(ctx, opts.dbPath, opts.sensorID, string(ecfg.Mode)); err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
		sdeps.Journal = s.journal
		monitoring.Logf("journal %s run %s", opts.dbPath, s.journal.RunID())
	}
	if opts.natsURL != "" {
		if s.nc, err = natsbridge.Connect(opts.natsURL, opts.sensorID); err != nil {
			return nil, fmt.Errorf("connect nats: %w", err)
		}
		var bridge *natsbridge.Bridge
		if bridge, err = natsbridge.New(s.nc, natsbridge.Encoding(opts.natsEncoding)); err != nil {
			return nil, err
		}
		sdeps.Mirror = bridge
		edeps.Mirror = bridge
	}

	s.sensor, err = orchestrator.NewSensor(orchestrator.SensorConfig{
		SensorID:      opts.sensorID,
		FrameInterval: tuning.GetFrameInterval(),
		HealthWindow:  tuning.GetSensorHealthWindow(),
	}, sdeps)
	if err != nil {
		return nil, err
	}
	if s.effector, err = orchestrator.NewEffector(edeps); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *stack) runner(opts options) *orchestrator.Runner {
	tick := opts.tick
	if tick <= 0 {
		tick = s.tuning.GetFrameInterval()
	}
	return &orchestrator.Runner{
		Sensor:    s.sensor,
		Effector:  s.effector,
		Bus:       s.bus,
		Interval:  tick,
		MaxFrames: opts.frames,
	}
}

// Close releases the journal and the NATS connection.
func (s *stack) Close() error {
	var errs []error
	if s.bus != nil {
		s.bus.Stop()
	}
	if s.nc != nil {
		if err := s.nc.Drain(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.journal != nil {
		if err := s.journal.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
