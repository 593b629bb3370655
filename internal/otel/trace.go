package otel

import (
	"os"
	"sync/atomic"
)

// traceEnabled gates per-line events, which are too chatty for normal runs.
var traceEnabled atomic.Bool

func init() {
	traceEnabled.Store(os.Getenv("WATCHCREW_TRACE") != "")
}

// TraceEnabled reports whether WATCHCREW_TRACE is set.
func TraceEnabled() bool {
	return traceEnabled.Load()
}

// SetTraceEnabled overrides the environment setting.
func SetTraceEnabled(v bool) {
	traceEnabled.Store(v)
}
