package otel

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"
)

var traceOn atomic.Bool

func init() {
	traceOn.Store(os.Getenv("DEEPSEARCH_TRACE") != "")
}

// TraceEnabled reports whether DEEPSEARCH_TRACE was set at startup.
func TraceEnabled() bool {
	return traceOn.Load()
}

func setTraceEnabled(v bool) {
	traceOn.Store(v)
}

// Trace records that comp received msg and returns a func that records
// when it finished handling it. Both are no-ops unless tracing is on:
//
//	defer otel.Trace(log, "ui", msg)()
func Trace(l *Logger, comp string, msg any) func() {
	if l == nil || !TraceEnabled() {
		return func() {}
	}
	name := fmt.Sprintf("%T", msg)
	start := time.Now()
	l.Emit(Event{Level: LevelDebug, Kind: KindMsgReceived, Comp: comp, Msg: name})
	return func() {
		l.Emit(Event{Level: LevelDebug, Kind: KindMsgHandled, Comp: comp, Msg: name, Dur: time.Since(start)})
	}
}
