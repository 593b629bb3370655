// Package ui provides the Bubble Tea TUI for watchcrew.
package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/infblueocean/watchcrew/internal/chat"
	"github.com/infblueocean/watchcrew/internal/coord"
)

// MessageShown is sent for every message appended to the chat log.
type MessageShown struct {
	Message chat.Message
}

// StateChanged is sent when the request loop changes state.
type StateChanged struct {
	State coord.State
}

// CycleComplete is sent when a request cycle ends.
type CycleComplete struct {
	Stats coord.CycleStats
}

// SubmitDone is the result of a viewer submission.
type SubmitDone struct {
	Err error
}

// Sender is the part of *tea.Program the session side needs.
type Sender interface {
	Send(msg tea.Msg)
}

// Observer forwards loop progress into the program.
type Observer struct {
	p Sender
}

// NewObserver returns a coord.Observer that sends to p.
func NewObserver(p Sender) *Observer {
	return &Observer{p: p}
}

// StateChanged implements coord.Observer.
func (o *Observer) StateChanged(s coord.State) {
	o.p.Send(StateChanged{State: s})
}

// CycleComplete implements coord.Observer.
func (o *Observer) CycleComplete(st coord.CycleStats) {
	o.p.Send(CycleComplete{Stats: st})
}

// Notify returns a chat.Log notify function that sends to p.
func Notify(p Sender) func(chat.Message) {
	return func(m chat.Message) {
		p.Send(MessageShown{Message: m})
	}
}
