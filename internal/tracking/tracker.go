package tracking

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/cognitive.radar/internal/messages"
)

// track is the tracker-private state of one target.
type track struct {
	id     int
	state  messages.TrackState
	x      *mat.VecDense // [range, velocity, acceleration]
	p      *mat.SymDense
	age    int
	hits   int
	misses int

	// Last posterior that passed the finite/PSD checks.
	goodX *mat.VecDense
	goodP *mat.SymDense
}

func (t *track) live() bool { return t.state != messages.TrackDeleted }

// FrameResult summarises one Update call.
type FrameResult struct {
	Frame int
	// Associations[i] is the id of the track detection i updated, or 0 when
	// the detection was not associated to an existing track.
	Associations    []int
	Created         []int
	Confirmed       []int
	Deleted         []int
	NumericalResets int
}

// Tracker maintains Kalman-filtered range/velocity tracks with GNN
// association and a PROVISIONAL → CONFIRMED ⇄ COASTING → DELETED lifecycle.
// The track table is only reachable through Snapshot.
type Tracker struct {
	cfg Config
	r   *mat.SymDense

	mu     sync.RWMutex
	tracks map[int]*track
	nextID int
	frames int
	last   FrameResult
}

// New validates cfg and returns an empty Tracker.
func New(cfg Config) (*Tracker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tracker config: %w", err)
	}
	return &Tracker{
		cfg:    cfg,
		r:      mat.NewSymDense(2, []float64{cfg.MeasurementNoiseRange, 0, 0, cfg.MeasurementNoiseVelocity}),
		tracks: make(map[int]*track),
		nextID: 1,
	}, nil
}

// Config returns the tracker configuration.
func (t *Tracker) Config() Config { return t.cfg }

// Update runs one predict/associate/update/lifecycle cycle for the
// detections of a frame. dt is the time since the previous frame in
// seconds; dt <= 0 selects Config.DefaultDt.
func (t *Tracker) Update(dets []messages.Detection, dt float64) FrameResult {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.frames++
	res := FrameResult{Frame: t.frames, Associations: make([]int, len(dets))}

	if dt <= 0 || math.IsNaN(dt) {
		dt = t.cfg.DefaultDt
	}
	if dt > t.cfg.MaxPredictDt {
		dt = t.cfg.MaxPredictDt
	}

	// Tracks deleted last frame were reported once; drop them now.
	for id, tr := range t.tracks {
		if !tr.live() {
			delete(t.tracks, id)
		}
	}
	ids := t.sortedIDs()

	// Step 1: predict and build innovation factorisations.
	var (
		gateIDs   []int
		gateChols []*mat.Cholesky
		recovered = make(map[int]bool)
	)
	for _, id := range ids {
		tr := t.tracks[id]
		tr.age++
		xp, pp := kalmanPredict(tr.x, tr.p, dt, t.cfg.ProcessNoiseAccel)
		if !isFiniteVec(xp) || !isPSD(pp) {
			t.recover(tr, "predict produced non-finite or non-PSD state")
			recovered[id] = true
			res.NumericalResets++
			continue
		}
		tr.x, tr.p = xp, pp
		chol, ok := innovationCovariance(tr.p, t.r)
		if !ok {
			t.recover(tr, "singular innovation covariance")
			recovered[id] = true
			res.NumericalResets++
			continue
		}
		c := chol
		gateIDs = append(gateIDs, id)
		gateChols = append(gateChols, &c)
	}

	// Step 2: gate and build the cost matrix (rows detections, cols tracks).
	cost := make([][]float64, len(dets))
	innov := make([][]*mat.VecDense, len(dets))
	for i, d := range dets {
		cost[i] = make([]float64, len(gateIDs))
		innov[i] = make([]*mat.VecDense, len(gateIDs))
		finite := !math.IsNaN(d.Range) && !math.IsInf(d.Range, 0) &&
			!math.IsNaN(d.Velocity) && !math.IsInf(d.Velocity, 0)
		for j, id := range gateIDs {
			cost[i][j] = math.Inf(1)
			if !finite {
				continue
			}
			d2, y, err := mahalanobis(t.tracks[id].x, gateChols[j], d.Range, d.Velocity)
			accepted := err == nil && !math.IsNaN(d2) && d2 <= t.cfg.GateThreshold
			tracef("gate det=%d track=%d d2=%.3f accepted=%t", i, id, d2, accepted)
			if accepted {
				cost[i][j] = d2
				innov[i][j] = y
			}
		}
	}

	// Step 3: global nearest neighbour assignment and Kalman update.
	matched := make(map[int]bool)
	for i, col := range assign(cost, t.cfg.GateThreshold) {
		if col < 0 {
			continue
		}
		id := gateIDs[col]
		tr := t.tracks[id]
		res.Associations[i] = id
		xn, pn, err := kalmanUpdate(tr.x, tr.p, t.r, innovation{y: innov[i][col], chol: *gateChols[col]})
		if err != nil || !isFiniteVec(xn) || !isPSD(pn) {
			t.recover(tr, "update produced non-finite or non-PSD state")
			recovered[id] = true
			res.NumericalResets++
			continue
		}
		tr.x, tr.p = xn, pn
		tr.goodX, tr.goodP = cloneVec(xn), clonePSD(pn)
		tr.hits++
		tr.misses = 0
		matched[id] = true
		switch {
		case tr.state == messages.TrackProvisional && tr.hits >= t.cfg.HitsToConfirm:
			tr.state = messages.TrackConfirmed
			res.Confirmed = append(res.Confirmed, id)
			diagf("track %d confirmed after %d hits", id, tr.hits)
		case tr.state == messages.TrackCoasting:
			tr.state = messages.TrackConfirmed
			diagf("track %d reacquired after coasting", id)
		}
	}

	// Step 4: misses and lifecycle for everything not updated.
	for _, id := range ids {
		tr := t.tracks[id]
		if matched[id] || !tr.live() {
			continue
		}
		tr.misses++
		switch tr.state {
		case messages.TrackProvisional:
			tr.state = messages.TrackDeleted
		case messages.TrackConfirmed:
			tr.state = messages.TrackCoasting
			diagf("track %d coasting", id)
		case messages.TrackCoasting:
			if tr.misses > t.cfg.CoastLimit {
				tr.state = messages.TrackDeleted
			}
		}
		if !tr.live() {
			res.Deleted = append(res.Deleted, id)
			diagf("track %d deleted after %d misses (recovered=%t)", id, tr.misses, recovered[id])
		}
	}

	// Step 5: spawn provisional tracks from unassociated detections.
	live := t.liveCount()
	for i, d := range dets {
		if res.Associations[i] != 0 {
			continue
		}
		if math.IsNaN(d.Range) || math.IsInf(d.Range, 0) || math.IsNaN(d.Velocity) || math.IsInf(d.Velocity, 0) {
			opsf("frame %d: ignoring non-finite detection %d", t.frames, i)
			continue
		}
		if live >= t.cfg.MaxTracks {
			diagf("frame %d: track cap %d reached, %d detections not initiated", t.frames, t.cfg.MaxTracks, len(dets)-i)
			break
		}
		id := t.spawn(d)
		res.Created = append(res.Created, id)
		live++
	}

	t.last = res
	return res
}

// recover restores a track's last good posterior and marks it COASTING.
// A provisional track has never been confirmed, so it is deleted instead.
func (t *Tracker) recover(tr *track, reason string) {
	opsf("track %d numerical reset: %s", tr.id, reason)
	tr.x, tr.p = cloneVec(tr.goodX), clonePSD(tr.goodP)
	if tr.state == messages.TrackProvisional {
		return // deleted as a provisional miss in step 4
	}
	tr.state = messages.TrackCoasting
}

func (t *Tracker) spawn(d messages.Detection) int {
	id := t.nextID
	t.nextID++
	x := mat.NewVecDense(3, []float64{d.Range, d.Velocity, 0})
	p := mat.NewSymDense(3, []float64{
		t.cfg.MeasurementNoiseRange, 0, 0,
		0, t.cfg.MeasurementNoiseVelocity, 0,
		0, 0, t.cfg.InitialAccelVariance,
	})
	t.tracks[id] = &track{
		id:    id,
		state: messages.TrackProvisional,
		x:     x,
		p:     p,
		age:   1,
		hits:  1,
		goodX: cloneVec(x),
		goodP: clonePSD(p),
	}
	diagf("track %d created at range=%.1f velocity=%.2f", id, d.Range, d.Velocity)
	return id
}

func (t *Tracker) sortedIDs() []int {
	ids := make([]int, 0, len(t.tracks))
	for id := range t.tracks {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func (t *Tracker) liveCount() int {
	n := 0
	for _, tr := range t.tracks {
		if tr.live() {
			n++
		}
	}
	return n
}

// Snapshot returns read-only reports of every track, sorted by id. Tracks
// deleted during the most recent Update are included once with state
// DELETED.
func (t *Tracker) Snapshot() []messages.TrackReport {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]messages.TrackReport, 0, len(t.tracks))
	for _, id := range t.sortedIDs() {
		out = append(out, report(t.tracks[id]))
	}
	return out
}

// LastResult returns the FrameResult of the most recent Update.
func (t *Tracker) LastResult() FrameResult {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r := t.last
	r.Associations = append([]int(nil), r.Associations...)
	return r
}

// Counts returns the number of live tracks per state.
func (t *Tracker) Counts() (provisional, confirmed, coasting int) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, tr := range t.tracks {
		switch tr.state {
		case messages.TrackProvisional:
			provisional++
		case messages.TrackConfirmed:
			confirmed++
		case messages.TrackCoasting:
			coasting++
		}
	}
	return
}

// Reset drops every track. Ids continue from where they left off.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tracks = make(map[int]*track)
	t.last = FrameResult{}
}

// report builds the published view of tr. A negative range estimate is
// reported as 0; the filter state keeps the raw value.
func report(tr *track) messages.TrackReport {
	rng := tr.x.AtVec(0)
	if rng < 0 {
		diagf("track %d range estimate %.3f clamped to 0 in report", tr.id, rng)
		rng = 0
	}
	r := messages.TrackReport{
		ID:                tr.id,
		State:             tr.state,
		Range:             rng,
		Velocity:          tr.x.AtVec(1),
		Acceleration:      tr.x.AtVec(2),
		Age:               tr.age,
		Hits:              tr.hits,
		ConsecutiveMisses: tr.misses,
		Quality:           messages.TrackQuality(tr.hits, tr.age),
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r.Covariance[i][j] = tr.p.At(i, j)
		}
	}
	return r
}

func cloneVec(v *mat.VecDense) *mat.VecDense {
	var c mat.VecDense
	c.CloneFromVec(v)
	return &c
}

func clonePSD(p *mat.SymDense) *mat.SymDense {
	c := mat.NewSymDense(p.SymmetricDim(), nil)
	c.CopySym(p)
	return c
}
