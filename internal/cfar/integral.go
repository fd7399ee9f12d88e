package cfar

import "github.com/banshee-data/cognitive.radar/internal/rdmap"

// integralImage holds cumulative sums with a zero top row and left column,
// so any rectangle sum is four lookups.
type integralImage struct {
	cols int // stride, = map cols + 1
	s    []float64
}

func newIntegralImage(m *rdmap.PowerMap) integralImage {
	rows, cols := m.Dims()
	stride := cols + 1
	s := make([]float64, (rows+1)*stride)
	for r := 0; r < rows; r++ {
		rowSum := 0.0
		for c := 0; c < cols; c++ {
			rowSum += m.Power.At(r, c)
			s[(r+1)*stride+c+1] = s[r*stride+c+1] + rowSum
		}
	}
	return integralImage{cols: stride, s: s}
}

// sum returns the total over rows [r0,r1] and cols [c0,c1], inclusive.
func (ii integralImage) sum(r0, r1, c0, c1 int) float64 {
	a := ii.s[(r1+1)*ii.cols+c1+1]
	b := ii.s[r0*ii.cols+c1+1]
	c := ii.s[(r1+1)*ii.cols+c0]
	d := ii.s[r0*ii.cols+c0]
	return a - b - c + d
}
