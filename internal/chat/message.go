// Package chat holds the displayed message log that the UI renders.
package chat

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind tells the UI how to render a message.
type Kind int

const (
	KindAgent Kind = iota
	KindViewer
	KindSystem
)

func (k Kind) String() string {
	switch k {
	case KindViewer:
		return "viewer"
	case KindSystem:
		return "system"
	default:
		return "agent"
	}
}

// SystemSpeaker attributes synthetic messages such as request failures.
const SystemSpeaker = "system"

// Message is one line on screen. Never mutated after Append.
type Message struct {
	ID          string
	Kind        Kind
	SpeakerID   string
	DisplayName string
	TeamID      string
	IsHome      bool
	Text        string
	ShownAt     time.Time
	AvatarKey   string // empty when the speaker has no avatar
}

// NewID returns a fresh message ID.
func NewID() string {
	return uuid.NewString()
}

// Sink receives messages in display order.
type Sink interface {
	Append(Message) Message
}

// Log is the append-only message sequence for one viewing session.
// ShownAt never decreases: a message stamped earlier than its predecessor
// is clamped to the predecessor's time. Safe for concurrent use.
type Log struct {
	mu       sync.RWMutex
	messages []Message

	// order serializes Append end to end so notify sees log order.
	order  sync.Mutex
	notify func(Message)
}

// NewLog creates an empty log. notify, if non-nil, is called after every
// append, in log order, outside the read/write lock. notify must not call
// Append.
func NewLog(notify func(Message)) *Log {
	return &Log{notify: notify}
}

// Append stores m and returns it as stored (ID and ShownAt filled in).
func (l *Log) Append(m Message) Message {
	l.order.Lock()
	defer l.order.Unlock()

	l.mu.Lock()
	if m.ID == "" {
		m.ID = NewID()
	}
	if m.ShownAt.IsZero() {
		m.ShownAt = time.Now()
	}
	if n := len(l.messages); n > 0 && m.ShownAt.Before(l.messages[n-1].ShownAt) {
		m.ShownAt = l.messages[n-1].ShownAt
	}
	l.messages = append(l.messages, m)
	notify := l.notify
	l.mu.Unlock()

	if notify != nil {
		notify(m)
	}
	return m
}

// Len returns the number of messages.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.messages)
}

// Snapshot returns a copy of all messages in order.
func (l *Log) Snapshot() []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Message, len(l.messages))
	copy(out, l.messages)
	return out
}

// Last returns the most recent message.
func (l *Log) Last() (Message, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.messages) == 0 {
		return Message{}, false
	}
	return l.messages[len(l.messages)-1], true
}
