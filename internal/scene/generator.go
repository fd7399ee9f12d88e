package scene

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/banshee-data/cognitive.radar/internal/config"
	"github.com/banshee-data/cognitive.radar/internal/messages"
	"github.com/banshee-data/cognitive.radar/internal/rdmap"
)

// Target is a point scatterer moving along the radial axis.
type Target struct {
	Range        float64 // m
	Velocity     float64 // m/s, positive = receding
	Acceleration float64 // m/s²
	Amplitude    float64 // linear power at unit transmit scale
}

// Clutter is a stationary patch that appears on a fraction of frames.
type Clutter struct {
	Range       float64 // m
	Amplitude   float64
	Probability float64 // per-frame chance of appearing
}

// GeneratorConfig sizes the synthetic map.
type GeneratorConfig struct {
	RangeBins          int
	DopplerBins        int
	RangeResolution    float64 // m per bin
	VelocityResolution float64 // m/s per bin
	NoisePower         float64 // mean noise power at unit dwell
	FrameInterval      time.Duration
	Seed               uint64
}

// GeneratorConfigFromTuning builds a GeneratorConfig from a TuningConfig.
func GeneratorConfigFromTuning(cfg *config.TuningConfig, seed uint64) GeneratorConfig {
	return GeneratorConfig{
		RangeBins:          cfg.GetRangeBins(),
		DopplerBins:        cfg.GetDopplerBins(),
		RangeResolution:    cfg.GetRangeResolution(),
		VelocityResolution: cfg.GetVelocityResolution(),
		NoisePower:         1,
		FrameInterval:      cfg.GetFrameInterval(),
		Seed:               seed,
	}
}

// Generator is a deterministic, seeded map source.
type Generator struct {
	cfg   GeneratorConfig
	scale rdmap.Scale

	mu      sync.Mutex
	rng     *rand.Rand
	noise   distuv.Exponential
	targets []Target
	clutter []Clutter
	frame   uint64
}

// NewGenerator returns a generator with the given scenario.
func NewGenerator(cfg GeneratorConfig, targets []Target, clutter []Clutter) (*Generator, error) {
	if cfg.RangeBins < 1 || cfg.DopplerBins < 1 {
		return nil, fmt.Errorf("map dimensions must be >= 1, got %dx%d", cfg.RangeBins, cfg.DopplerBins)
	}
	if cfg.RangeResolution <= 0 || cfg.VelocityResolution <= 0 || cfg.NoisePower <= 0 || cfg.FrameInterval <= 0 {
		return nil, fmt.Errorf("resolutions, noise power and frame interval must be > 0")
	}
	src := rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)
	g := &Generator{
		cfg: cfg,
		scale: rdmap.Scale{
			RangeResolution:    cfg.RangeResolution,
			VelocityResolution: cfg.VelocityResolution,
			VelocityOrigin:     -float64(cfg.DopplerBins/2) * cfg.VelocityResolution,
		},
		rng:     rand.New(src),
		noise:   distuv.Exponential{Rate: 1 / cfg.NoisePower, Src: src},
		targets: append([]Target(nil), targets...),
		clutter: append([]Clutter(nil), clutter...),
	}
	return g, nil
}

// DefaultScenario is a drone, an aircraft and an inbound fast mover over
// two clutter patches, sized for the default map.
func DefaultScenario() ([]Target, []Clutter) {
	return []Target{
			{Range: 600, Velocity: -8, Amplitude: 200},
			{Range: 1500, Velocity: -30, Amplitude: 400},
			{Range: 1850, Velocity: -55, Acceleration: -0.5, Amplitude: 150},
		}, []Clutter{
			{Range: 300, Amplitude: 60, Probability: 0.5},
			{Range: 950, Amplitude: 80, Probability: 0.3},
		}
}

// Scale returns the bin-to-unit scale of every generated map.
func (g *Generator) Scale() rdmap.Scale { return g.scale }

// Acquire renders the next frame under cmd and advances the scenario.
func (g *Generator) Acquire(ctx context.Context, frameID uint64, cmd messages.AdaptationCommand) (*rdmap.PowerMap, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	dwell := messages.BoundsFor(messages.ParamDwellTime).Clip(cmd.DwellTimeScale)
	tx := messages.BoundsFor(messages.ParamTxPower).Clip(cmd.TxPowerScale)
	bw := messages.BoundsFor(messages.ParamBandwidth).Clip(cmd.BandwidthScale)

	rows, cols := g.cfg.RangeBins, g.cfg.DopplerBins
	power := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		row := power.RawRowView(i)
		for j := range row {
			row[j] = g.noise.Rand() / dwell
		}
	}

	// Range spread narrows with bandwidth; integration gain grows with dwell.
	sigmaR := 0.8 / bw
	const sigmaD = 0.7
	for _, t := range g.targets {
		g.splat(power, t.Range, t.Velocity, t.Amplitude*tx*dwell, sigmaR, sigmaD)
	}
	for _, c := range g.clutter {
		if g.rng.Float64() < c.Probability {
			g.splat(power, c.Range, 0, c.Amplitude*tx*dwell, sigmaR, sigmaD)
		}
	}

	g.frame++
	g.advance()
	return rdmap.New(frameID, power, g.scale)
}

// splat adds a separable Gaussian blob centred on (rng, vel).
func (g *Generator) splat(power *mat.Dense, rng, vel, amp, sigmaR, sigmaD float64) {
	rows, cols := power.Dims()
	rc := (rng - g.scale.RangeOrigin) / g.scale.RangeResolution
	dc := (vel - g.scale.VelocityOrigin) / g.scale.VelocityResolution
	if rc < -3 || rc > float64(rows)+3 || dc < -3 || dc > float64(cols)+3 {
		return
	}
	r0, r1 := clampBin(int(math.Floor(rc-3*sigmaR)), rows), clampBin(int(math.Ceil(rc+3*sigmaR)), rows)
	d0, d1 := clampBin(int(math.Floor(dc-3*sigmaD)), cols), clampBin(int(math.Ceil(dc+3*sigmaD)), cols)
	for i := r0; i <= r1; i++ {
		dr := (float64(i) - rc) / sigmaR
		for j := d0; j <= d1; j++ {
			dd := (float64(j) - dc) / sigmaD
			power.Set(i, j, power.At(i, j)+amp*math.Exp(-0.5*(dr*dr+dd*dd)))
		}
	}
}

func clampBin(b, n int) int {
	if b < 0 {
		return 0
	}
	if b >= n {
		return n - 1
	}
	return b
}

// advance moves every target one frame; targets leaving the window are
// dropped.
func (g *Generator) advance() {
	dt := g.cfg.FrameInterval.Seconds()
	maxRange := g.scale.RangeOrigin + float64(g.cfg.RangeBins)*g.scale.RangeResolution
	kept := g.targets[:0]
	for _, t := range g.targets {
		t.Range += t.Velocity*dt + 0.5*t.Acceleration*dt*dt
		t.Velocity += t.Acceleration * dt
		if t.Range < g.scale.RangeOrigin || t.Range >= maxRange {
			continue
		}
		kept = append(kept, t)
	}
	g.targets = kept
}

// Targets returns a copy of the current target states.
func (g *Generator) Targets() []Target {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Target(nil), g.targets...)
}
