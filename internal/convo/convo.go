// Package convo accumulates the viewer's chat lines that are sent back to
// the backend as conversation context.
package convo

import "sync"

// Entry is one line of context in the request payload.
type Entry struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// Accumulator is an append-only context log. Snapshot returns a copy, so a
// cycle's view is frozen even while the viewer keeps typing.
type Accumulator struct {
	mu      sync.Mutex
	entries []Entry
}

// New returns an empty accumulator.
func New() *Accumulator {
	return &Accumulator{}
}

// Append adds one entry.
func (a *Accumulator) Append(speaker, text string) {
	a.mu.Lock()
	a.entries = append(a.entries, Entry{Speaker: speaker, Text: text})
	a.mu.Unlock()
}

// Snapshot returns every entry since session start, oldest first.
// Never nil, so it always encodes as a JSON array.
func (a *Accumulator) Snapshot() []Entry {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Entry, len(a.entries))
	copy(out, a.entries)
	return out
}

// Len returns the number of entries.
func (a *Accumulator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.entries)
}

// Reset clears the log. Only the session owner calls this, when a new
// viewing session begins.
func (a *Accumulator) Reset() {
	a.mu.Lock()
	a.entries = nil
	a.mu.Unlock()
}
