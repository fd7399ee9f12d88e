// Package tracking maintains range/Doppler tracks from per-frame
// detections.
//
// Responsibilities: constant-acceleration Kalman filtering, Mahalanobis
// gating, global-nearest-neighbour association (Hungarian assignment) and
// the track lifecycle PROVISIONAL → CONFIRMED ⇄ COASTING → DELETED.
// Key types: Tracker, FrameResult.
//
// The track table is owned by the Tracker; callers only ever receive
// messages.TrackReport copies. Track ids increase monotonically and are
// never reused within a Tracker's lifetime.
package tracking
