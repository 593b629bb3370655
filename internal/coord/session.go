// Package coord runs the request loop of a watch session: request a batch
// of commentary, pace it onto the chat, cool down, repeat.
package coord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/infblueocean/watchcrew/internal/chat"
	"github.com/infblueocean/watchcrew/internal/commentary"
	"github.com/infblueocean/watchcrew/internal/convo"
	"github.com/infblueocean/watchcrew/internal/logging"
	"github.com/infblueocean/watchcrew/internal/orchestrate"
	"github.com/infblueocean/watchcrew/internal/otel"
	"github.com/infblueocean/watchcrew/internal/pacer"
	"github.com/infblueocean/watchcrew/internal/persona"
	"github.com/infblueocean/watchcrew/internal/stream"
	"github.com/infblueocean/watchcrew/internal/team"
)

const (
	// DefaultPeriod is the minimum time from one cycle start to the next.
	DefaultPeriod = 15 * time.Second

	// DefaultRequestTimeout bounds the wait for response headers.
	DefaultRequestTimeout = 20 * time.Second

	// resetTimeout bounds the best-effort row index reset on stop.
	resetTimeout = 5 * time.Second
)

// RequestFailedText is shown once for every cycle whose request failed
// before any byte arrived.
const RequestFailedText = "Couldn't reach the fan chat. Retrying shortly."

var (
	// ErrRequestTimeout means no response headers arrived in time.
	ErrRequestTimeout = errors.New("request timed out before response")

	// ErrStopped is returned by Submit after the session stopped.
	ErrStopped = errors.New("session stopped")
)

// Requester issues one orchestrate request. *orchestrate.Client implements it.
type Requester interface {
	Orchestrate(ctx context.Context, req orchestrate.Request) (io.ReadCloser, error)
}

// resetter is implemented by clients that can rewind the backend replay.
type resetter interface {
	ResetRowIndex(ctx context.Context) error
}

// newsKicker starts a background news refresh without blocking.
type newsKicker interface {
	Kick(ctx context.Context) bool
}

// Deps are the collaborators of a Session. Client, Sink and Context are
// required.
type Deps struct {
	Client   Requester
	Aux      AuxSource // nil: empty auxiliary context
	Sink     chat.Sink
	Context  *convo.Accumulator
	Clock    clockwork.Clock    // nil: real clock
	Events   *otel.Logger       // nil: no events
	Observer Observer           // nil: no callbacks
	News     newsKicker         // nil: no background news refresh
	Parser   *commentary.Parser // nil: commentary.NewParser("")
}

// Options tune a Session. Zero values take the defaults.
type Options struct {
	Period         time.Duration
	RequestTimeout time.Duration
	ChunkSize      int

	Game   team.Game
	Pacing pacer.Options // Home, Away and Avatar are filled in by the session

	ViewerName string
	ViewerTeam string // empty: the home team

	// ResetOnStop rewinds the backend replay when the session stops.
	ResetOnStop bool
}

// Session is one watch session. Run drives the loop; Submit may be called
// from any goroutine.
// Uses context cancellation as the ONLY stop mechanism.
type Session struct {
	client   Requester
	aux      AuxSource
	sink     chat.Sink
	context  *convo.Accumulator
	clock    clockwork.Clock
	events   *otel.Logger
	observer Observer
	news     newsKicker
	parser   *commentary.Parser
	pacer    *pacer.Pacer
	opts     Options

	state  atomic.Int32
	roster atomic.Pointer[persona.Roster]
	cycle  int // loop goroutine only

	mu   sync.Mutex
	last CycleStats

	wg sync.WaitGroup
}

// New creates a Session in the Idle state.
func New(d Deps, o Options) *Session {
	if o.Period <= 0 {
		o.Period = DefaultPeriod
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = DefaultRequestTimeout
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = stream.DefaultChunkSize
	}
	if o.Game.Home == "" {
		o.Game.Home = team.DefaultID
	}
	resolver := team.NewResolver(nil)
	o.ViewerTeam = resolver.ResolveOr(o.ViewerTeam, o.Game.Home)
	if strings.TrimSpace(o.ViewerName) == "" {
		o.ViewerName = "me"
	}
	if d.Clock == nil {
		d.Clock = clockwork.NewRealClock()
	}
	if d.Parser == nil {
		d.Parser = commentary.NewParser("")
	}

	s := &Session{
		client:   d.Client,
		aux:      d.Aux,
		sink:     d.Sink,
		context:  d.Context,
		clock:    d.Clock,
		events:   d.Events,
		observer: d.Observer,
		news:     d.News,
		parser:   d.Parser,
		opts:     o,
	}

	po := o.Pacing
	po.Home = o.Game.Home
	po.Away = o.Game.Away
	po.Avatar = s.avatar
	s.pacer = pacer.New(d.Sink, resolver, d.Clock, po)
	return s
}

// Start runs the loop in a goroutine. Call with a cancellable context.
func (s *Session) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.Run(ctx)
	}()
}

// Wait blocks until the loop goroutine exits.
// Call after canceling the context passed to Start.
func (s *Session) Wait() {
	s.wg.Wait()
}

// State returns the current loop state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// LastCycle returns the stats of the most recently completed cycle.
func (s *Session) LastCycle() CycleStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Run drives the loop until ctx is cancelled, then moves to Stopped.
func (s *Session) Run(ctx context.Context) {
	logging.Info("session: start", "game", s.opts.Game.ID, "period", s.opts.Period)
	s.events.Info(otel.KindSessionStart, "coord", s.opts.Game.ID)
	defer s.stop(ctx)

	for {
		if ctx.Err() != nil {
			return
		}

		start := s.clock.Now()
		stats := s.runCycle(ctx, start)
		s.complete(stats)

		if ctx.Err() != nil {
			return
		}

		s.setState(StateCooling)
		remaining := s.opts.Period - s.clock.Since(start)
		if remaining <= 0 {
			continue
		}
		s.events.Emit(otel.Event{Level: otel.LevelDebug, Kind: otel.KindCooling, Comp: "coord", Cycle: stats.Cycle, Dur: remaining})

		timer := s.clock.NewTimer(remaining)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.Chan():
		}
	}
}

func (s *Session) stop(ctx context.Context) {
	s.setState(StateStopped)
	logging.Info("session: stop", "cycles", s.cycle)
	s.events.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindSessionStop, Comp: "coord", Count: s.cycle})

	if !s.opts.ResetOnStop {
		return
	}
	r, ok := s.client.(resetter)
	if !ok {
		return
	}
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), resetTimeout)
	defer cancel()
	if err := r.ResetRowIndex(rctx); err != nil {
		logging.Warn("session: row index reset failed", "error", err)
	}
}

// runCycle performs Requesting and Streaming for one cycle.
func (s *Session) runCycle(ctx context.Context, start time.Time) (stats CycleStats) {
	s.cycle++
	stats = CycleStats{Cycle: s.cycle, Start: start}
	defer func() {
		stats.Duration = s.clock.Since(start)
		stats.Cancelled = ctx.Err() != nil
	}()

	s.pacer.Reset()
	s.setState(StateRequesting)
	s.events.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindCycleStart, Comp: "coord", Cycle: stats.Cycle})

	if s.news != nil {
		s.news.Kick(ctx)
	}

	req := s.buildRequest(ctx)
	body, err := s.open(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return stats
		}
		stats.RequestErr = err
		logging.Warn("session: request failed", "cycle", stats.Cycle, "error", err)
		s.events.Error(otel.KindRequestError, "coord", stats.Cycle, err)
		s.systemMessage(ctx, RequestFailedText)
		return stats
	}
	defer body.Close()

	if ctx.Err() != nil {
		return stats
	}
	s.setState(StateStreaming)
	s.events.Emit(otel.Event{Level: otel.LevelDebug, Kind: otel.KindStreamOpen, Comp: "coord", Cycle: stats.Cycle})

	s.consume(ctx, body, &stats)
	return stats
}

// buildRequest freezes the context snapshot and loads auxiliary context.
func (s *Session) buildRequest(ctx context.Context) orchestrate.Request {
	req := orchestrate.Request{UserMessages: s.context.Snapshot()}
	if s.aux == nil {
		return req
	}
	aux, err := s.aux.Aux(ctx)
	if err != nil {
		logging.Warn("session: auxiliary context unavailable", "cycle", s.cycle, "error", err)
		return req
	}
	req.Agents = aux.Agents
	req.NewsData = aux.News
	req.CurrGameStat = aux.Status
	req.GameFlow = aux.Flow
	s.updateRoster(aux.Agents)
	return req
}

// open sends the request. The body stays bound to a child context that is
// cancelled when the body is closed. If no headers arrive within
// RequestTimeout the request is abandoned with ErrRequestTimeout.
func (s *Session) open(ctx context.Context, req orchestrate.Request) (io.ReadCloser, error) {
	reqCtx, cancel := context.WithCancel(ctx)

	var timedOut atomic.Bool
	timer := s.clock.AfterFunc(s.opts.RequestTimeout, func() {
		timedOut.Store(true)
		cancel()
	})

	body, err := s.client.Orchestrate(reqCtx, req)
	stopped := timer.Stop()

	if err != nil {
		cancel()
		if timedOut.Load() && ctx.Err() == nil {
			return nil, fmt.Errorf("%w (%s)", ErrRequestTimeout, s.opts.RequestTimeout)
		}
		return nil, err
	}
	if !stopped && timedOut.Load() {
		// Headers and the timeout raced; the body is already cancelled.
		body.Close()
		cancel()
		return nil, fmt.Errorf("%w (%s)", ErrRequestTimeout, s.opts.RequestTimeout)
	}
	return &cancelOnClose{ReadCloser: body, cancel: cancel}, nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

// consume drives decoder, parser and pacer over the body.
func (s *Session) consume(ctx context.Context, body io.Reader, stats *CycleStats) {
	trace := otel.TraceEnabled()

	for line, err := range stream.Lines(ctx, body, s.opts.ChunkSize) {
		if err != nil {
			if ctx.Err() == nil {
				stats.StreamErr = err
				logging.Warn("session: stream ended abnormally", "cycle", stats.Cycle, "displayed", stats.Displayed, "error", err)
				s.events.Error(otel.KindStreamError, "coord", stats.Cycle, err)
			}
			return
		}
		if line == "" {
			continue
		}
		stats.Lines++
		if trace {
			s.events.Emit(otel.Event{Level: otel.LevelDebug, Kind: otel.KindLineReceived, Comp: "coord", Cycle: stats.Cycle, Msg: line})
		}

		item, perr := s.parser.Parse(line)
		if perr != nil {
			stats.ParseErrors++
			logging.Debug("session: skipping line", "cycle", stats.Cycle, "error", perr)
			s.events.Error(otel.KindParseError, "coord", stats.Cycle, perr)
			continue
		}
		stats.Parsed++

		msg, err := s.pacer.Schedule(ctx, item)
		if err != nil {
			return
		}
		stats.Displayed++
		s.events.Emit(otel.Event{
			Level:   otel.LevelDebug,
			Kind:    otel.KindMessageShown,
			Comp:    "coord",
			Cycle:   stats.Cycle,
			Speaker: msg.DisplayName,
			Team:    msg.TeamID,
		})
	}
}

// systemMessage appends a message from the system sentinel speaker unless
// the session was cancelled.
func (s *Session) systemMessage(ctx context.Context, text string) {
	if ctx.Err() != nil {
		return
	}
	s.sink.Append(chat.Message{
		Kind:        chat.KindSystem,
		SpeakerID:   chat.SystemSpeaker,
		DisplayName: chat.SystemSpeaker,
		TeamID:      s.opts.Game.Home,
		Text:        text,
		ShownAt:     s.clock.Now(),
	})
}

// Submit records a viewer message: one chat message now, one context entry
// for the next request.
func (s *Session) Submit(text string) (chat.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return chat.Message{}, errors.New("empty message")
	}
	if s.State() == StateStopped {
		return chat.Message{}, ErrStopped
	}

	s.context.Append(s.opts.ViewerName, text)
	msg := s.sink.Append(chat.Message{
		Kind:        chat.KindViewer,
		SpeakerID:   s.opts.ViewerName,
		DisplayName: s.opts.ViewerName,
		TeamID:      s.opts.ViewerTeam,
		IsHome:      s.opts.ViewerTeam == s.opts.Game.Home,
		Text:        text,
		ShownAt:     s.clock.Now(),
	})

	logging.Debug("session: viewer message", "len", len(text))
	s.events.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindUserSubmit, Comp: "coord", Speaker: s.opts.ViewerName})
	return msg, nil
}

func (s *Session) complete(stats CycleStats) {
	s.mu.Lock()
	s.last = stats
	s.mu.Unlock()

	logging.Info("session: cycle complete",
		"cycle", stats.Cycle,
		"lines", stats.Lines,
		"displayed", stats.Displayed,
		"parse_errors", stats.ParseErrors,
		"duration", stats.Duration,
	)
	e := otel.Event{
		Level: otel.LevelInfo,
		Kind:  otel.KindCycleComplete,
		Comp:  "coord",
		Cycle: stats.Cycle,
		Dur:   stats.Duration,
		Count: stats.Displayed,
		Extra: map[string]any{
			"lines":        stats.Lines,
			"parsed":       stats.Parsed,
			"parse_errors": stats.ParseErrors,
			"cancelled":    stats.Cancelled,
		},
	}
	if stats.RequestErr != nil {
		e.Err = stats.RequestErr.Error()
	} else if stats.StreamErr != nil {
		e.Err = stats.StreamErr.Error()
	}
	s.events.Emit(e)

	if s.observer != nil {
		s.observer.CycleComplete(stats)
	}
}

func (s *Session) setState(st State) {
	if State(s.state.Swap(int32(st))) == st {
		return
	}
	logging.Debug("session: state", "state", st.String())
	if s.observer != nil {
		s.observer.StateChanged(st)
	}
}

// updateRoster keeps the latest valid roster for avatar lookups. An
// invalid roster is still sent to the backend as is.
func (s *Session) updateRoster(raw []json.RawMessage) {
	r, err := persona.Parse(raw)
	if err != nil {
		logging.Debug("session: roster not parsed", "error", err)
		return
	}
	s.roster.Store(&r)
}

func (s *Session) avatar(speaker string) string {
	if r := s.roster.Load(); r != nil {
		return r.Avatar(speaker)
	}
	return ""
}
