// Package cfar implements a two-dimensional cell-averaging constant
// false-alarm-rate (CA-CFAR) detector over range-Doppler power maps.
//
// Local noise is estimated from a rectangular training window around each
// cell under test, excluding a guard band. Window sums come from an
// integral image so a full map costs O(R·D) regardless of window size.
// Cells near the map edges use a window shrunk symmetrically to fit.
// Adjacent hits are collapsed to one detection at the cluster's peak.
package cfar
