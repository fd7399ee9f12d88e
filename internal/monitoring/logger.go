// Package monitoring holds the process-wide logger, the per-package log
// stream fan-out and the Prometheus metrics of the radar loop.
package monitoring

import (
	"io"
	"log"
)

// Logf is the package-level logger used by command wiring. It defaults to
// log.Printf and may be replaced by SetLogger.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil installs a no-op.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// LogWriters holds the writers of the three per-package streams: ops for
// actionable events, diag for per-frame context, trace for per-detection
// detail. A nil writer disables that stream.
type LogWriters struct {
	Ops   io.Writer
	Diag  io.Writer
	Trace io.Writer
}

// Apply hands w to every package setter.
func (w LogWriters) Apply(setters ...func(ops, diag, trace io.Writer)) {
	for _, set := range setters {
		set(w.Ops, w.Diag, w.Trace)
	}
}

// LogWritersForLevel maps a verbosity name to writers on out: "ops" enables
// ops only, "diag" adds diag, "trace" enables all three. Anything else
// disables every stream.
func LogWritersForLevel(level string, out io.Writer) LogWriters {
	switch level {
	case "ops":
		return LogWriters{Ops: out}
	case "diag":
		return LogWriters{Ops: out, Diag: out}
	case "trace":
		return LogWriters{Ops: out, Diag: out, Trace: out}
	}
	return LogWriters{}
}
