package tracking

import "math"

// assign computes the global-nearest-neighbour association between
// detections (rows) and tracks (columns) of an n×m matrix of squared
// Mahalanobis distances. Entries that are NaN, negative or above gate are
// outside the gate and never selected.
//
// The problem is solved as a square (n+m)×(n+m) Kuhn–Munkres assignment
// over an augmented matrix:
//
//	[ D (n×m)         | gate on diagonal (n×n) ]
//	[ gate on diag (m×m) | 0 (m×n)              ]
//
// D holds the gated distances. The right block lets detection i stay
// unassigned at cost gate; the lower block does the same for track j; the
// zero block pairs up the dummies. Every other cell carries a forbidden
// cost larger than any feasible total, so the minimum is always feasible.
// The solver therefore minimises
//
//	Σ matched d² + gate × (unmatched detections + unmatched tracks)
//
// which prefers matching every gated pair (d² ≤ gate < 2·gate) and, among
// matchings of equal size, the smallest total distance. All costs stay
// within a few orders of magnitude of gate, so float64 resolves them.
//
// It returns out[i] = column for row i, or -1 when row i is unassigned.
func assign(cost [][]float64, gate float64) []int {
	n := len(cost)
	if n == 0 {
		return nil
	}
	m := len(cost[0])
	out := make([]int, n)
	for i := range out {
		out[i] = -1
	}
	if m == 0 || !(gate > 0) {
		return out
	}

	dim := n + m
	forbidden := gate * float64(dim+1)
	c := make([][]float64, dim)
	for i := 0; i < dim; i++ {
		c[i] = make([]float64, dim)
		for j := 0; j < dim; j++ {
			c[i][j] = forbidden
			switch {
			case i < n && j < m:
				if gated(cost[i][j], gate) {
					c[i][j] = cost[i][j]
				}
			case i < n && j-m == i:
				c[i][j] = gate
			case i >= n && j < m && i-n == j:
				c[i][j] = gate
			case i >= n && j >= m:
				c[i][j] = 0
			}
		}
	}

	p := hungarian(c)
	for j := 0; j < m; j++ {
		row := p[j]
		if row < n && gated(cost[row][j], gate) {
			out[row] = j
		}
	}
	return out
}

func gated(d2, gate float64) bool {
	return d2 >= 0 && d2 <= gate
}

// hungarian solves the square min-cost assignment for c using shortest
// augmenting paths with row/column potentials, O(dim³). It returns
// rowOf[j], the row assigned to column j.
func hungarian(c [][]float64) []int {
	dim := len(c)
	const inf = math.MaxFloat64 / 2

	// Potentials and matching are 1-indexed; index 0 is the virtual
	// column each augmentation starts from.
	u := make([]float64, dim+1)
	v := make([]float64, dim+1)
	p := make([]int, dim+1) // p[j] = row matched to column j
	way := make([]int, dim+1)
	minv := make([]float64, dim+1)
	used := make([]bool, dim+1)

	for i := 1; i <= dim; i++ {
		p[0] = i
		j0 := 0
		for j := 1; j <= dim; j++ {
			minv[j] = inf
			used[j] = false
		}
		// Grow the alternating tree from row i until a free column is reached.
		for {
			used[j0] = true
			i0 := p[j0]
			delta := inf
			j1 := -1
			for j := 1; j <= dim; j++ {
				if used[j] {
					continue
				}
				if reduced := c[i0-1][j-1] - u[i0] - v[j]; reduced < minv[j] {
					minv[j] = reduced
					way[j] = j0
				}
				if minv[j] < delta {
					delta = minv[j]
					j1 = j
				}
			}
			if j1 < 0 {
				break
			}
			for j := 0; j <= dim; j++ {
				if used[j] {
					u[p[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}
			j0 = j1
			if p[j0] == 0 {
				break
			}
		}
		// Flip the augmenting path.
		for j0 != 0 {
			p[j0] = p[way[j0]]
			j0 = way[j0]
		}
	}

	rowOf := make([]int, dim)
	for j := 1; j <= dim; j++ {
		rowOf[j-1] = p[j] - 1
	}
	return rowOf
}
