package tracking

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Numerical stability constants; not user-tunable.
const (
	// minInnovationDet is the smallest det(S) accepted as invertible.
	minInnovationDet = 1e-9
	// psdTolerance is the relative negative-eigenvalue slack for P.
	psdTolerance = 1e-9
)

// measurementMatrix H extracts [range, velocity] from [r, v, a].
var measurementMatrix = mat.NewDense(2, 3, []float64{
	1, 0, 0,
	0, 1, 0,
})

// transition returns F for a constant-acceleration model:
//
//	F = [1  dt  dt²/2]
//	    [0  1   dt   ]
//	    [0  0   1    ]
func transition(dt float64) *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		1, dt, dt * dt / 2,
		0, 1, dt,
		0, 0, 1,
	})
}

// processNoise returns the discrete white-jerk Q scaled by spectral density q.
func processNoise(dt, q float64) *mat.SymDense {
	dt2 := dt * dt
	dt3 := dt2 * dt
	dt4 := dt3 * dt
	dt5 := dt4 * dt
	return mat.NewSymDense(3, []float64{
		q * dt5 / 20, q * dt4 / 8, q * dt3 / 6,
		q * dt4 / 8, q * dt3 / 3, q * dt2 / 2,
		q * dt3 / 6, q * dt2 / 2, q * dt,
	})
}

// symmetrize returns (A + Aᵀ)/2 as a SymDense.
func symmetrize(a mat.Matrix) *mat.SymDense {
	n, _ := a.Dims()
	s := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			s.SetSym(i, j, (a.At(i, j)+a.At(j, i))/2)
		}
	}
	return s
}

// kalmanPredict propagates state and covariance by dt.
func kalmanPredict(x *mat.VecDense, p *mat.SymDense, dt, q float64) (*mat.VecDense, *mat.SymDense) {
	f := transition(dt)
	var xp mat.VecDense
	xp.MulVec(f, x)

	var fpf mat.Dense
	fpf.Product(f, p, f.T())
	fpf.Add(&fpf, processNoise(dt, q))
	return &xp, symmetrize(&fpf)
}

// innovation holds the per-pair quantities shared by gating and update.
type innovation struct {
	y    *mat.VecDense // z − Hx
	chol mat.Cholesky  // factorisation of S = HPHᵀ + R
}

// innovationCovariance factorises S for a track. ok is false when S is
// singular or not positive definite.
func innovationCovariance(p *mat.SymDense, r *mat.SymDense) (mat.Cholesky, bool) {
	var hph mat.Dense
	hph.Product(measurementMatrix, p, measurementMatrix.T())
	hph.Add(&hph, r)
	var chol mat.Cholesky
	if !chol.Factorize(symmetrize(&hph)) {
		return chol, false
	}
	det := chol.Det()
	if math.IsNaN(det) || det < minInnovationDet {
		return chol, false
	}
	return chol, true
}

// mahalanobis returns d² = yᵀS⁻¹y for measurement z against state x.
func mahalanobis(x *mat.VecDense, chol *mat.Cholesky, rng, vel float64) (float64, *mat.VecDense, error) {
	y := mat.NewVecDense(2, []float64{rng - x.AtVec(0), vel - x.AtVec(1)})
	var z mat.VecDense
	if err := chol.SolveVecTo(&z, y); err != nil {
		return math.Inf(1), y, err
	}
	return mat.Dot(y, &z), y, nil
}

// kalmanUpdate applies the Joseph-form update and returns the posterior.
func kalmanUpdate(x *mat.VecDense, p *mat.SymDense, r *mat.SymDense, inn innovation) (*mat.VecDense, *mat.SymDense, error) {
	// K = P Hᵀ S⁻¹, computed as (S⁻¹ (P Hᵀ)ᵀ)ᵀ since S is symmetric.
	var pht mat.Dense
	pht.Mul(p, measurementMatrix.T())
	var kt mat.Dense
	if err := inn.chol.SolveTo(&kt, pht.T()); err != nil {
		return nil, nil, err
	}
	k := kt.T()

	var dx mat.VecDense
	dx.MulVec(k, inn.y)
	var xn mat.VecDense
	xn.AddVec(x, &dx)

	// P' = (I − KH) P (I − KH)ᵀ + K R Kᵀ
	var kh mat.Dense
	kh.Mul(k, measurementMatrix)
	a := mat.NewDense(3, 3, nil)
	a.Sub(eye3(), &kh)
	var apa mat.Dense
	apa.Product(a, p, a.T())
	var krk mat.Dense
	krk.Product(k, r, k.T())
	apa.Add(&apa, &krk)
	return &xn, symmetrize(&apa), nil
}

func eye3() *mat.Dense {
	return mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
}

// isPSD reports whether p is finite and positive semi-definite within tolerance.
func isPSD(p *mat.SymDense) bool {
	n := p.SymmetricDim()
	trace := 0.0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			v := p.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
		trace += p.At(i, i)
	}
	var eig mat.EigenSym
	if !eig.Factorize(p, false) {
		return false
	}
	for _, v := range eig.Values(nil) {
		if v < -psdTolerance*math.Max(1, math.Abs(trace)) {
			return false
		}
	}
	return true
}

func isFiniteVec(x *mat.VecDense) bool {
	for i := 0; i < x.Len(); i++ {
		v := x.AtVec(i)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
