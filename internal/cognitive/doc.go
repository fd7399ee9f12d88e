// Package cognitive turns a frame's tracks, detections and classifier
// output into a SituationAssessment and a bounded, damped
// AdaptationCommand for the next frame.
//
// The engine is a fixed, ordered rule table. Every factor it emits carries
// a reasoning string naming the metric and threshold behind it. The engine
// holds no per-frame state: the previous command is owned by the caller and
// passed into Step.
//
// Two modes are supported. ModeAdaptive runs the rule table. ModeStatic
// still assesses the scene for telemetry but always emits the neutral
// command, so the detector derives alpha from Pfa alone and the waveform
// generator keeps its defaults.
package cognitive
