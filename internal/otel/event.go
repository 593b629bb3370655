// Package otel records structured session events for watchcrew.
//
// Events are typed structs serialized as JSONL lines. The Logger writes
// events asynchronously via a buffered channel and background drain goroutine.
// An optional RingBuffer keeps the latest events in memory for the status bar.
package otel

import (
	"encoding/json"
	"time"
)

// Level defines event severity for filtering.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// EventKind identifies the category of an event.
// Dot-delimited: "<subsystem>.<action>".
type EventKind string

const (
	// Request cycle
	KindCycleStart    EventKind = "cycle.start"
	KindRequestError  EventKind = "cycle.request_error"
	KindStreamOpen    EventKind = "cycle.stream_open"
	KindStreamError   EventKind = "cycle.stream_error"
	KindParseError    EventKind = "cycle.parse_error"
	KindMessageShown  EventKind = "cycle.message"
	KindCycleComplete EventKind = "cycle.complete"
	KindCooling       EventKind = "cycle.cooling"

	// Per-line tracing, only when WATCHCREW_TRACE is set
	KindLineReceived EventKind = "trace.line"

	// Session
	KindSessionStart EventKind = "session.start"
	KindSessionStop  EventKind = "session.stop"
	KindUserSubmit   EventKind = "user.submit"

	// Auxiliary context
	KindNewsRefresh  EventKind = "news.refresh"
	KindNewsError    EventKind = "news.error"
	KindAgentsReload EventKind = "agents.reload"
)

// Event is the universal record. Every field except Kind and Time is
// optional. Serialized as a single JSONL line.
type Event struct {
	Time      time.Time      `json:"t"`
	Level     Level          `json:"level,omitempty"`
	Kind      EventKind      `json:"kind"`
	Comp      string         `json:"comp,omitempty"`       // component: "coord", "ui", "news", "main"
	SessionID string         `json:"session_id,omitempty"` // random hex, same for entire app run
	Cycle     int            `json:"cycle,omitempty"`
	Dur       time.Duration  `json:"-"`
	DurMs     float64        `json:"dur_ms,omitempty"` // computed from Dur at marshal time
	Count     int            `json:"count,omitempty"`
	Speaker   string         `json:"speaker,omitempty"`
	Team      string         `json:"team,omitempty"`
	Err       string         `json:"err,omitempty"`
	Msg       string         `json:"msg,omitempty"`
	Extra     map[string]any `json:"extra,omitempty"`
}

// MarshalJSON converts Dur to DurMs.
func (e Event) MarshalJSON() ([]byte, error) {
	type alias Event
	a := struct {
		alias
	}{alias: alias(e)}
	if e.Dur > 0 {
		a.DurMs = float64(e.Dur) / float64(time.Millisecond)
	}
	return json.Marshal(a)
}
