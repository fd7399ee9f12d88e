// Package scene provides stand-ins for the collaborators that sit outside
// the radar core: a synthetic range-Doppler map source and a heuristic
// threat classifier.
//
// Generator produces square-law (exponential) noise plus moving point
// targets and flickering zero-Doppler clutter. It honours the transmit
// power, bandwidth and dwell factors of the previous frame's
// AdaptationCommand. PRF is accepted but does not alter the map.
//
// Classifier scores each confirmed or coasting track against per-class
// radial speed prototypes and reports confidence, entropy and priority.
package scene
