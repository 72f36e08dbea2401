// Package otel records what the client did as a stream of typed events.
//
// Each Event becomes one JSON line in ~/.deepsearch/deepsearch.events.jsonl.
// Writes happen on a background goroutine so polling and the TUI never wait
// on disk. A RingBuffer can be attached to keep recent events in memory for
// the debug overlay.
package otel

import (
	"encoding/json"
	"strings"
	"time"
)

// Level is an event's severity.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// EventKind names what happened as "<subsystem>.<action>".
type EventKind string

const (
	KindPollOK    EventKind = "poll.ok"
	KindPollError EventKind = "poll.error"
	KindPollSkip  EventKind = "poll.skip" // previous poll still in flight

	KindTransition EventKind = "session.transition"
	KindStale      EventKind = "session.stale" // outcome arrived after a newer local change

	KindUploadStart    EventKind = "upload.start"
	KindUploadComplete EventKind = "upload.complete"
	KindUploadError    EventKind = "upload.error"

	KindSearchStart    EventKind = "search.start"
	KindSearchComplete EventKind = "search.complete"
	KindSearchError    EventKind = "search.error"

	KindResetComplete EventKind = "reset.complete"
	KindResetError    EventKind = "reset.error"

	KindSeek          EventKind = "playback.seek"
	KindPlaybackError EventKind = "playback.error"

	KindStoreError EventKind = "store.error"

	KindStartup  EventKind = "sys.startup"
	KindShutdown EventKind = "sys.shutdown"
	KindError    EventKind = "sys.error"

	// Only emitted while DEEPSEARCH_TRACE is set.
	KindMsgReceived EventKind = "trace.msg_received"
	KindMsgHandled  EventKind = "trace.msg_handled"
)

// Subsystem returns the part of k before the first dot.
func (k EventKind) Subsystem() string {
	s, _, _ := strings.Cut(string(k), ".")
	return s
}

// Failure reports whether k records something going wrong.
func (k EventKind) Failure() bool {
	_, action, _ := strings.Cut(string(k), ".")
	return action == "error"
}

// Event is one observation. Kind is required; Time and RunID are filled in
// by the Logger.
type Event struct {
	Time    time.Time      `json:"t"`
	Level   Level          `json:"level,omitempty"`
	Kind    EventKind      `json:"kind"`
	Comp    string         `json:"comp,omitempty"`
	RunID   string         `json:"run,omitempty"` // one per client process
	QueryID string         `json:"qid,omitempty"` // ties search.start to its outcome
	Dur     time.Duration  `json:"-"`
	DurMs   float64        `json:"dur_ms,omitempty"` // derived from Dur when encoding
	Count   int            `json:"count,omitempty"`  // results, bytes or percent, per kind
	Status  string         `json:"status,omitempty"` // session status after the event
	Query   string         `json:"query,omitempty"`
	Err     string         `json:"err,omitempty"`
	Msg     string         `json:"msg,omitempty"`
	Extra   map[string]any `json:"extra,omitempty"`
}

// MarshalJSON writes Dur as fractional milliseconds.
func (e Event) MarshalJSON() ([]byte, error) {
	type plain Event
	p := plain(e)
	if e.Dur > 0 {
		p.DurMs = float64(e.Dur) / float64(time.Millisecond)
	}
	return json.Marshal(p)
}
