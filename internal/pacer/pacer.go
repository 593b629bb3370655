// Package pacer spaces out agent messages so a batch that arrives all at
// once still reads like a live chat.
package pacer

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/jonboulle/clockwork"

	"github.com/infblueocean/watchcrew/internal/chat"
	"github.com/infblueocean/watchcrew/internal/commentary"
	"github.com/infblueocean/watchcrew/internal/team"
)

const (
	// ReferenceLength is the text length (in runes) that maps to the
	// midpoint of the interval range. Twice this saturates at MaxInterval.
	ReferenceLength = 100

	MinInterval = 3500 * time.Millisecond
	MaxInterval = 4500 * time.Millisecond
)

// Options configures a Pacer. Zero values take the package defaults.
type Options struct {
	ReferenceLength int
	MinInterval     time.Duration
	MaxInterval     time.Duration

	// Home and Away are the fallbacks for items whose team label does not
	// resolve, tried in that order before team.DefaultID.
	Home string
	Away string

	// Avatar returns the avatar key for a speaker, or "".
	Avatar func(speaker string) string
}

// Pacer delays reveals; it never drops or reorders. Schedule must be called
// from a single goroutine, in stream order.
type Pacer struct {
	opts     Options
	clock    clockwork.Clock
	resolver *team.Resolver
	sink     chat.Sink

	started bool
	last    time.Time
}

// New creates a pacer that appends revealed messages to sink.
func New(sink chat.Sink, resolver *team.Resolver, clock clockwork.Clock, opts Options) *Pacer {
	if opts.ReferenceLength <= 0 {
		opts.ReferenceLength = ReferenceLength
	}
	if opts.MinInterval <= 0 {
		opts.MinInterval = MinInterval
	}
	if opts.MaxInterval <= 0 {
		opts.MaxInterval = MaxInterval
	}
	if opts.MaxInterval < opts.MinInterval {
		opts.MaxInterval = opts.MinInterval
	}
	if resolver == nil {
		resolver = team.NewResolver(nil)
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Pacer{
		opts:     opts,
		clock:    clock,
		resolver: resolver,
		sink:     sink,
	}
}

// Reset forgets the last reveal. Called at the start of every cycle, so
// the first item of a batch always shows immediately.
func (p *Pacer) Reset() {
	p.started = false
	p.last = time.Time{}
}

// Target returns the interval a message of this text wants after the
// previous one: linear from MinInterval (empty) to MaxInterval
// (2*ReferenceLength runes or longer).
func (p *Pacer) Target(text string) time.Duration {
	ratio := float64(utf8.RuneCountInString(text)) / float64(p.opts.ReferenceLength)
	if ratio > 2 {
		ratio = 2
	}
	span := p.opts.MaxInterval - p.opts.MinInterval
	return p.opts.MinInterval + time.Duration(float64(span)*(ratio/2))
}

// Wait returns how long Schedule would sleep before revealing item now.
func (p *Pacer) Wait(item commentary.Item) time.Duration {
	if !p.started {
		return 0
	}
	target := p.Target(item.Text)
	elapsed := p.clock.Since(p.last)
	if elapsed >= target {
		return 0
	}
	return target - elapsed
}

// Schedule waits out the pacing delay, then appends item to the sink.
// If ctx ends first nothing is appended and ctx.Err() is returned.
func (p *Pacer) Schedule(ctx context.Context, item commentary.Item) (chat.Message, error) {
	if err := ctx.Err(); err != nil {
		return chat.Message{}, err
	}

	if wait := p.Wait(item); wait > 0 {
		timer := p.clock.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return chat.Message{}, ctx.Err()
		case <-timer.Chan():
		}
	}

	// The timer and cancellation can race; cancellation wins.
	if err := ctx.Err(); err != nil {
		return chat.Message{}, err
	}

	now := p.clock.Now()
	teamID := p.resolver.ResolveOr(item.Team, p.opts.Home, p.opts.Away)

	msg := chat.Message{
		ID:          chat.NewID(),
		Kind:        chat.KindAgent,
		SpeakerID:   item.Speaker,
		DisplayName: item.Speaker,
		TeamID:      teamID,
		IsHome:      teamID == p.opts.Home,
		Text:        item.Text,
		ShownAt:     now,
	}
	if p.opts.Avatar != nil {
		msg.AvatarKey = p.opts.Avatar(item.Speaker)
	}

	stored := p.sink.Append(msg)
	p.started = true
	p.last = now
	return stored, nil
}
