package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/banshee-data/cognitive.radar/internal/eventbus"
	"github.com/banshee-data/cognitive.radar/internal/messages"
)

const namespace = "cognitive_radar"

// Metrics holds the Prometheus instruments of the frame loop. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	frames          *prometheus.CounterVec   // by status: ok, no_map
	frameDuration   prometheus.Histogram     // sensor phase wall time
	detections      prometheus.Gauge         // detections in the last frame
	tracks          *prometheus.GaugeVec     // by state
	numericalResets prometheus.Counter       // tracker covariance resets
	adaptation      *prometheus.GaugeVec     // by parameter
	scene           *prometheus.GaugeVec     // one-hot by scene type
	sensorHealth    prometheus.Gauge         // fraction of recent frames with a map
	countermeasures *prometheus.CounterVec   // by type
	journalErrors   prometheus.Counter       // failed journal writes
	effectiveness   prometheus.Histogram     // feedback overall effectiveness
}

// NewMetrics creates the instruments on a fresh registry that also carries
// the Go runtime and process collectors.
func NewMetrics() (*Metrics, error) {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sensor",
			Name:      "frames_total",
			Help:      "Sensor frames processed, by outcome",
		}, []string{"status"}),
		frameDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sensor",
			Name:      "frame_duration_seconds",
			Help:      "Wall time of the sensor phase per frame",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),
		detections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cfar",
			Name:      "detections",
			Help:      "Detections reported in the most recent frame",
		}),
		tracks: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "tracks",
			Help:      "Live tracks by lifecycle state",
		}, []string{"state"}),
		numericalResets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "numerical_resets_total",
			Help:      "Tracks forced to COASTING after a numerical failure",
		}),
		adaptation: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cognitive",
			Name:      "adaptation_scale",
			Help:      "Current adaptation scale factor by parameter",
		}, []string{"parameter"}),
		scene: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cognitive",
			Name:      "scene_type",
			Help:      "1 for the current scene type, 0 otherwise",
		}, []string{"scene"}),
		sensorHealth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sensor",
			Name:      "health",
			Help:      "Fraction of recent frames that acquired a power map",
		}),
		countermeasures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "effector",
			Name:      "countermeasures_total",
			Help:      "Countermeasures planned, by type",
		}, []string{"type"}),
		journalErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "journal",
			Name:      "errors_total",
			Help:      "Frames that could not be written to the journal",
		}),
		effectiveness: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "effector",
			Name:      "overall_effectiveness",
			Help:      "Overall effectiveness reported in feedback packets",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		}),
	}

	for _, c := range []prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.frames, m.frameDuration, m.detections, m.tracks, m.numericalResets,
		m.adaptation, m.scene, m.sensorHealth, m.countermeasures, m.journalErrors, m.effectiveness,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveFrame records one sensor frame outcome.
func (m *Metrics) ObserveFrame(ok bool, d time.Duration, sensorHealth float64) {
	if m == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "no_map"
	}
	m.frames.WithLabelValues(status).Inc()
	m.frameDuration.Observe(d.Seconds())
	m.sensorHealth.Set(sensorHealth)
}

// ObserveTracking records detection and track counts for a frame.
func (m *Metrics) ObserveTracking(detections, provisional, confirmed, coasting, resets int) {
	if m == nil {
		return
	}
	m.detections.Set(float64(detections))
	m.tracks.WithLabelValues(string(messages.TrackProvisional)).Set(float64(provisional))
	m.tracks.WithLabelValues(string(messages.TrackConfirmed)).Set(float64(confirmed))
	m.tracks.WithLabelValues(string(messages.TrackCoasting)).Set(float64(coasting))
	m.numericalResets.Add(float64(resets))
}

// ObserveDecision records the situation and the command for the next frame.
func (m *Metrics) ObserveDecision(sa messages.SituationAssessment, cmd messages.AdaptationCommand) {
	if m == nil {
		return
	}
	for _, p := range messages.Parameters {
		m.adaptation.WithLabelValues(string(p)).Set(cmd.Scale(p))
	}
	for _, s := range []messages.SceneType{messages.SceneSearch, messages.SceneTracking, messages.SceneCluttered, messages.SceneDense} {
		v := 0.0
		if s == sa.SceneType {
			v = 1
		}
		m.scene.WithLabelValues(string(s)).Set(v)
	}
}

// ObserveFeedback records a feedback packet produced by the effector.
func (m *Metrics) ObserveFeedback(fb messages.FeedbackPacket) {
	if m == nil {
		return
	}
	for _, c := range fb.Countermeasures {
		m.countermeasures.WithLabelValues(string(c.Type)).Inc()
	}
	m.effectiveness.Observe(fb.OverallEffectiveness)
}

// JournalError counts a failed journal write.
func (m *Metrics) JournalError() {
	if m == nil {
		return
	}
	m.journalErrors.Inc()
}

// RegisterBus exports the bus counters through stats on every scrape.
func (m *Metrics) RegisterBus(stats func() eventbus.Statistics) error {
	if m == nil {
		return nil
	}
	return m.Registry.Register(newBusCollector(stats))
}

// busCollector reads eventbus statistics at scrape time so the bus itself
// stays free of Prometheus types.
type busCollector struct {
	stats    func() eventbus.Statistics
	messages *prometheus.Desc
	depth    *prometheus.Desc
	stopped  *prometheus.Desc
}

func newBusCollector(stats func() eventbus.Statistics) *busCollector {
	return &busCollector{
		stats: stats,
		messages: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "bus", "messages_total"),
			"Bus messages by channel and outcome",
			[]string{"channel", "outcome"}, nil),
		depth: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "bus", "depth"),
			"Messages currently queued per channel",
			[]string{"channel"}, nil),
		stopped: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "bus", "stopped"),
			"1 once the bus has been stopped",
			nil, nil),
	}
}

func (c *busCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.messages
	ch <- c.depth
	ch <- c.stopped
}

func (c *busCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.stats()
	for _, channel := range []struct {
		name  string
		stats eventbus.ChannelStats
	}{{"intelligence", s.Intelligence}, {"feedback", s.Feedback}} {
		for outcome, v := range map[string]uint64{
			"published": channel.stats.Published,
			"received":  channel.stats.Received,
			"dropped":   channel.stats.Dropped,
			"cleared":   channel.stats.Cleared,
			"rejected":  channel.stats.Rejected,
		} {
			ch <- prometheus.MustNewConstMetric(c.messages, prometheus.CounterValue, float64(v), channel.name, outcome)
		}
		ch <- prometheus.MustNewConstMetric(c.depth, prometheus.GaugeValue, float64(channel.stats.Depth), channel.name)
	}
	stopped := 0.0
	if s.Stopped {
		stopped = 1
	}
	ch <- prometheus.MustNewConstMetric(c.stopped, prometheus.GaugeValue, stopped)
}
