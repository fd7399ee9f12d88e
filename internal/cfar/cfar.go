package cfar

import (
	"fmt"
	"math"
	"sort"

	"github.com/banshee-data/cognitive.radar/internal/messages"
	"github.com/banshee-data/cognitive.radar/internal/rdmap"
)

// DeriveAlpha returns the CA-CFAR threshold multiplier for n training
// cells: α = N·(Pfa^(−1/N) − 1).
func DeriveAlpha(pfa float64, n int) float64 {
	if n <= 0 {
		return math.Inf(1)
	}
	N := float64(n)
	return N * (math.Pow(pfa, -1/N) - 1)
}

// Result is the output of one Detect call.
type Result struct {
	Detections []messages.Detection
	// Alpha is the multiplier applied to interior cells. When an override
	// was supplied it is exactly that value.
	Alpha         float64
	Overridden    bool
	TrainingCells int // training cells of an interior window
	HitCells      int // cells above threshold before clustering
}

// Detector runs CA-CFAR with a fixed configuration. It holds no per-frame
// state, so one Detector may be reused across frames.
type Detector struct {
	cfg Config
}

// New validates cfg and returns a Detector.
func New(cfg Config) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid cfar config: %w", err)
	}
	return &Detector{cfg: cfg}, nil
}

// Config returns the detector configuration.
func (d *Detector) Config() Config { return d.cfg }

// NominalAlpha is the Pfa-derived multiplier for an interior cell.
func (d *Detector) NominalAlpha() float64 {
	return DeriveAlpha(d.cfg.Pfa, d.cfg.FullWindowTrainingCells())
}

// Detect thresholds m and returns one detection per connected cluster of
// hits. When alphaOverride is non-nil its value is used for every cell in
// place of the Pfa-derived multiplier.
func (d *Detector) Detect(m *rdmap.PowerMap, alphaOverride *float64) (Result, error) {
	if err := m.Validate(); err != nil {
		return Result{}, fmt.Errorf("cfar input: %w", err)
	}
	if alphaOverride != nil {
		a := *alphaOverride
		if math.IsNaN(a) || math.IsInf(a, 0) || a <= 0 {
			opsf("frame %d: rejecting alpha override %g", m.FrameID, a)
			return Result{}, fmt.Errorf("alpha override must be finite and > 0, got %g", a)
		}
	}

	rows, cols := m.Dims()
	integral := newIntegralImage(m)

	res := Result{
		TrainingCells: d.cfg.FullWindowTrainingCells(),
		Alpha:         d.NominalAlpha(),
	}
	if alphaOverride != nil {
		res.Alpha = *alphaOverride
		res.Overridden = true
	}

	// Edge windows have fewer training cells, so the Pfa-derived alpha is
	// recomputed per distinct count.
	alphaByN := map[int]float64{}

	hit := make([]bool, rows*cols)
	noise := make([]float64, rows*cols)
	window := d.cfg.GuardCells + d.cfg.TrainingCells

	for r := 0; r < rows; r++ {
		outerR := minInt(window, r, rows-1-r)
		guardR := minInt(d.cfg.GuardCells, outerR)
		for c := 0; c < cols; c++ {
			outerC := minInt(window, c, cols-1-c)
			guardC := minInt(d.cfg.GuardCells, outerC)

			n := (2*outerR+1)*(2*outerC+1) - (2*guardR+1)*(2*guardC+1)
			if n <= 0 {
				continue
			}
			sum := integral.sum(r-outerR, r+outerR, c-outerC, c+outerC) -
				integral.sum(r-guardR, r+guardR, c-guardC, c+guardC)
			if sum < 0 {
				sum = 0 // float cancellation on near-zero maps
			}
			level := sum / float64(n)

			alpha := res.Alpha
			if alphaOverride == nil {
				a, ok := alphaByN[n]
				if !ok {
					a = DeriveAlpha(d.cfg.Pfa, n)
					alphaByN[n] = a
				}
				alpha = a
			}

			p := m.Power.At(r, c)
			if p > level*alpha && p > d.cfg.NoiseFloor {
				hit[r*cols+c] = true
				noise[r*cols+c] = level
				res.HitCells++
			}
		}
	}

	dets, err := clusterPeaks(m, hit, noise)
	if err != nil {
		return Result{}, err
	}
	res.Detections = dets
	diagf("frame %d alpha=%.3f overridden=%t hit_cells=%d detections=%d",
		m.FrameID, res.Alpha, res.Overridden, res.HitCells, len(dets))
	for _, det := range dets {
		tracef("frame %d detection bin=(%d,%d) range=%.1f velocity=%.2f snr=%.1fdB",
			m.FrameID, det.RangeBin, det.DopplerBin, det.Range, det.Velocity, det.SNRdB)
	}
	return res, nil
}

// clusterPeaks collapses 8-connected hit cells to their strongest cell and
// returns detections ordered by (range bin, Doppler bin).
func clusterPeaks(m *rdmap.PowerMap, hit []bool, noise []float64) ([]messages.Detection, error) {
	rows, cols := m.Dims()
	visited := make([]bool, len(hit))
	var peaks []int
	var stack []int

	for start := range hit {
		if !hit[start] || visited[start] {
			continue
		}
		best := start
		stack = append(stack[:0], start)
		visited[start] = true
		for len(stack) > 0 {
			idx := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			r, c := idx/cols, idx%cols
			if m.Power.At(r, c) > m.Power.At(best/cols, best%cols) {
				best = idx
			}
			for dr := -1; dr <= 1; dr++ {
				for dc := -1; dc <= 1; dc++ {
					nr, nc := r+dr, c+dc
					if nr < 0 || nr >= rows || nc < 0 || nc >= cols {
						continue
					}
					nIdx := nr*cols + nc
					if hit[nIdx] && !visited[nIdx] {
						visited[nIdx] = true
						stack = append(stack, nIdx)
					}
				}
			}
		}
		peaks = append(peaks, best)
	}

	sort.Ints(peaks) // row-major index order == (range, Doppler) order
	dets := make([]messages.Detection, 0, len(peaks))
	for _, idx := range peaks {
		r, c := idx/cols, idx%cols
		p := m.Power.At(r, c)
		det, err := messages.NewDetection(messages.Detection{
			FrameID:    m.FrameID,
			Range:      m.Range(r),
			Velocity:   m.Velocity(c),
			Power:      p,
			SNRdB:      rdmap.PowerDB(p) - rdmap.PowerDB(noise[idx]),
			RangeBin:   r,
			DopplerBin: c,
		})
		if err != nil {
			return nil, fmt.Errorf("cfar detection at (%d,%d): %w", r, c, err)
		}
		dets = append(dets, det)
	}
	return dets, nil
}

func minInt(vals ...int) int {
	m := vals[0]
	for _, v := range vals[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
