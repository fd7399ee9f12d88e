// Package orchestrator sequences one radar frame: acquire a power map,
// detect, track, classify, decide the next adaptation and publish the
// result. The sensor and effector phases share nothing but an
// eventbus.Bus; Runner drives both at a fixed frame interval.
package orchestrator
