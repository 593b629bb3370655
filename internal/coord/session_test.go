package coord

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/infblueocean/watchcrew/internal/chat"
	"github.com/infblueocean/watchcrew/internal/convo"
	"github.com/infblueocean/watchcrew/internal/orchestrate"
	"github.com/infblueocean/watchcrew/internal/pacer"
	"github.com/infblueocean/watchcrew/internal/store"
	"github.com/infblueocean/watchcrew/internal/team"
)

const waitFor = 2 * time.Second

// fakeRequester serves scripted responses, one per call.
type fakeRequester struct {
	mu      sync.Mutex
	reqs    []orchestrate.Request
	respond func(ctx context.Context, n int) (io.ReadCloser, error)
	resets  atomic.Int32
}

func (f *fakeRequester) Orchestrate(ctx context.Context, req orchestrate.Request) (io.ReadCloser, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	n := len(f.reqs)
	f.mu.Unlock()
	if f.respond == nil {
		return body(""), nil
	}
	return f.respond(ctx, n)
}

func (f *fakeRequester) ResetRowIndex(ctx context.Context) error {
	f.resets.Add(1)
	return nil
}

func (f *fakeRequester) requests() []orchestrate.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]orchestrate.Request, len(f.reqs))
	copy(out, f.reqs)
	return out
}

func body(s string) io.ReadCloser {
	return io.NopCloser(strings.NewReader(s))
}

// recorder is an Observer that keeps everything it is told.
type recorder struct {
	mu     sync.Mutex
	states []State
	cycles chan CycleStats
}

func newRecorder() *recorder {
	return &recorder{cycles: make(chan CycleStats, 64)}
}

func (r *recorder) StateChanged(s State) {
	r.mu.Lock()
	r.states = append(r.states, s)
	r.mu.Unlock()
}

func (r *recorder) CycleComplete(st CycleStats) {
	r.cycles <- st
}

func (r *recorder) nextCycle(t *testing.T) CycleStats {
	t.Helper()
	select {
	case st := <-r.cycles:
		return st
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for cycle to complete")
		return CycleStats{}
	}
}

type harness struct {
	session *Session
	log     *chat.Log
	convo   *convo.Accumulator
	clock   *clockwork.FakeClock
	obs     *recorder
	ctx     context.Context
	cancel  context.CancelFunc
}

func newHarness(t *testing.T, req Requester, aux AuxSource, mutate func(*Options)) *harness {
	t.Helper()
	game, err := team.ParseGameID("250523_HTSS")
	require.NoError(t, err)

	h := &harness{
		log:   chat.NewLog(nil),
		convo: convo.New(),
		clock: clockwork.NewFakeClock(),
		obs:   newRecorder(),
	}
	opts := Options{Game: game, ViewerName: "viewer", RequestTimeout: 5 * time.Second}
	if mutate != nil {
		mutate(&opts)
	}
	h.session = New(Deps{
		Client:   req,
		Aux:      aux,
		Sink:     h.log,
		Context:  h.convo,
		Clock:    h.clock,
		Observer: h.obs,
	}, opts)

	h.ctx, h.cancel = context.WithCancel(context.Background())
	t.Cleanup(func() {
		h.cancel()
		h.session.Wait()
	})
	return h
}

func (h *harness) start() {
	h.session.Start(h.ctx)
}

func (h *harness) stop() {
	h.cancel()
	h.session.Wait()
}

func (h *harness) blockUntil(t *testing.T, n int) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, h.clock.BlockUntilContext(ctx, n))
}

func (h *harness) waitMessages(t *testing.T, n int) []chat.Message {
	t.Helper()
	require.Eventually(t, func() bool { return h.log.Len() >= n }, waitFor, time.Millisecond)
	return h.log.Snapshot()
}

func (h *harness) waitState(t *testing.T, s State) {
	t.Helper()
	require.Eventually(t, func() bool { return h.session.State() == s }, waitFor, time.Millisecond)
}

func TestSessionPacesTwoLinesOverHTTP(t *testing.T) {
	long := strings.Repeat("x", 220)
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/x-ndjson")
		if hits.Add(1) > 1 {
			return
		}
		io.WriteString(w, `{"speaker":"A","text":"hi"}`+"\n")
		io.WriteString(w, `{"speaker":"B","text":"`+long+`"}`+"\n")
	}))
	defer srv.Close()

	h := newHarness(t, orchestrate.NewClient(srv.URL, time.Second), nil, nil)
	t0 := h.clock.Now()
	h.start()

	msgs := h.waitMessages(t, 1)
	assert.Equal(t, "A", msgs[0].DisplayName)
	assert.Equal(t, t0, msgs[0].ShownAt, "first reveal waits zero")

	// The second line waits the full max interval after the first.
	h.blockUntil(t, 1)
	h.clock.Advance(pacer.MaxInterval - time.Millisecond)
	assert.Never(t, func() bool { return h.log.Len() > 1 }, 30*time.Millisecond, time.Millisecond)
	h.clock.Advance(time.Millisecond)

	msgs = h.waitMessages(t, 2)
	assert.Equal(t, "B", msgs[1].DisplayName)
	assert.Equal(t, pacer.MaxInterval, msgs[1].ShownAt.Sub(msgs[0].ShownAt))

	st := h.obs.nextCycle(t)
	assert.Equal(t, 2, st.Lines)
	assert.Equal(t, 2, st.Displayed)
	assert.Zero(t, st.ParseErrors)
	assert.NoError(t, st.RequestErr)

	// Cooling covers the rest of the period from cycle start.
	h.waitState(t, StateCooling)
	h.blockUntil(t, 1)
	h.clock.Advance(DefaultPeriod - pacer.MaxInterval - time.Millisecond)
	assert.Never(t, func() bool { return hits.Load() > 1 }, 30*time.Millisecond, time.Millisecond)
	h.clock.Advance(time.Millisecond)
	require.Eventually(t, func() bool { return hits.Load() == 2 }, waitFor, time.Millisecond)
}

func TestSessionSkipsMalformedLine(t *testing.T) {
	fr := &fakeRequester{respond: func(ctx context.Context, n int) (io.ReadCloser, error) {
		if n > 1 {
			return body(""), nil
		}
		return body("this is not json\n" + `{"speaker":"B","text":"ok"}` + "\n"), nil
	}}
	h := newHarness(t, fr, nil, nil)
	h.start()

	st := h.obs.nextCycle(t)
	assert.Equal(t, 1, st.ParseErrors)
	assert.Equal(t, 1, st.Parsed)
	assert.Equal(t, 1, st.Displayed)

	msgs := h.log.Snapshot()
	require.Len(t, msgs, 1)
	assert.Equal(t, "B", msgs[0].DisplayName)
	assert.Equal(t, chat.KindAgent, msgs[0].Kind)
}

func TestSessionRequestFailureShowsOneSystemMessage(t *testing.T) {
	fr := &fakeRequester{respond: func(ctx context.Context, n int) (io.ReadCloser, error) {
		if n == 1 {
			return nil, errors.New("connection refused")
		}
		return body(""), nil
	}}
	h := newHarness(t, fr, nil, nil)
	h.start()

	st := h.obs.nextCycle(t)
	require.Error(t, st.RequestErr)
	assert.Zero(t, st.Displayed)

	msgs := h.log.Snapshot()
	require.Len(t, msgs, 1)
	assert.Equal(t, chat.KindSystem, msgs[0].Kind)
	assert.Equal(t, chat.SystemSpeaker, msgs[0].SpeakerID)
	assert.Equal(t, RequestFailedText, msgs[0].Text)

	// The next cycle follows after the whole cooling period.
	h.waitState(t, StateCooling)
	h.blockUntil(t, 1)
	h.clock.Advance(DefaultPeriod - time.Millisecond)
	assert.Never(t, func() bool { return len(fr.requests()) > 1 }, 30*time.Millisecond, time.Millisecond)
	h.clock.Advance(time.Millisecond)
	require.Eventually(t, func() bool { return len(fr.requests()) == 2 }, waitFor, time.Millisecond)

	st = h.obs.nextCycle(t)
	assert.NoError(t, st.RequestErr)
	assert.Equal(t, 1, h.log.Len(), "a successful cycle adds no system message")
}

func TestSessionNonSuccessStatusIsRequestFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	h := newHarness(t, orchestrate.NewClient(srv.URL, time.Second), nil, nil)
	h.start()

	st := h.obs.nextCycle(t)
	assert.ErrorIs(t, st.RequestErr, orchestrate.ErrStatus)
	msgs := h.log.Snapshot()
	require.Len(t, msgs, 1)
	assert.Equal(t, RequestFailedText, msgs[0].Text)
}

func TestSessionRequestTimeout(t *testing.T) {
	fr := &fakeRequester{respond: func(ctx context.Context, n int) (io.ReadCloser, error) {
		if n > 1 {
			return body(""), nil
		}
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	h := newHarness(t, fr, nil, nil)
	h.start()

	// The only waiter while headers are pending is the request timeout.
	h.blockUntil(t, 1)
	h.clock.Advance(5 * time.Second)

	st := h.obs.nextCycle(t)
	assert.ErrorIs(t, st.RequestErr, ErrRequestTimeout)
	msgs := h.waitMessages(t, 1)
	assert.Equal(t, RequestFailedText, msgs[0].Text)

	// 5s of the 15s period are spent already.
	h.waitState(t, StateCooling)
	h.blockUntil(t, 1)
	h.clock.Advance(10 * time.Second)
	require.Eventually(t, func() bool { return len(fr.requests()) == 2 }, waitFor, time.Millisecond)
}

func TestSessionLongCycleRequestsImmediately(t *testing.T) {
	var h *harness
	fr := &fakeRequester{}
	fr.respond = func(ctx context.Context, n int) (io.ReadCloser, error) {
		if n == 1 {
			// The backend takes longer than a whole period to answer.
			h.clock.Advance(20 * time.Second)
		}
		return body(""), nil
	}
	h = newHarness(t, fr, nil, func(o *Options) { o.RequestTimeout = time.Minute })
	h.start()

	require.Eventually(t, func() bool { return len(fr.requests()) >= 2 }, waitFor, time.Millisecond)
	st := h.obs.nextCycle(t)
	assert.Equal(t, 20*time.Second, st.Duration)
}

func TestSessionCancelDuringPacing(t *testing.T) {
	fr := &fakeRequester{respond: func(ctx context.Context, n int) (io.ReadCloser, error) {
		return body(`{"speaker":"A","text":"one"}` + "\n" + `{"speaker":"B","text":"two"}` + "\n"), nil
	}}
	h := newHarness(t, fr, nil, nil)
	h.start()

	h.waitMessages(t, 1)
	h.blockUntil(t, 1)
	h.stop()

	h.clock.Advance(time.Minute)
	assert.Equal(t, 1, h.log.Len())
	assert.Len(t, fr.requests(), 1)
	assert.Equal(t, StateStopped, h.session.State())

	st := h.obs.nextCycle(t)
	assert.True(t, st.Cancelled)
	assert.Equal(t, 1, st.Displayed)
}

func TestSessionCancelDuringCooling(t *testing.T) {
	fr := &fakeRequester{}
	h := newHarness(t, fr, nil, nil)
	h.start()

	h.waitState(t, StateCooling)
	h.blockUntil(t, 1)
	h.stop()

	h.clock.Advance(time.Minute)
	assert.Len(t, fr.requests(), 1)
	assert.Zero(t, h.log.Len())
	assert.Equal(t, StateStopped, h.session.State())
}

func TestSessionCancelBeforeHeaders(t *testing.T) {
	fr := &fakeRequester{respond: func(ctx context.Context, n int) (io.ReadCloser, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	h := newHarness(t, fr, nil, nil)
	h.start()

	h.blockUntil(t, 1)
	h.stop()

	assert.Zero(t, h.log.Len(), "cancellation is not a request failure")
	st := h.obs.nextCycle(t)
	assert.NoError(t, st.RequestErr)
	assert.True(t, st.Cancelled)
}

func TestSessionStateSequence(t *testing.T) {
	fr := &fakeRequester{respond: func(ctx context.Context, n int) (io.ReadCloser, error) {
		return body(`{"speaker":"A","text":"hi"}` + "\n"), nil
	}}
	h := newHarness(t, fr, nil, nil)
	assert.Equal(t, StateIdle, h.session.State())
	h.start()

	h.waitState(t, StateCooling)
	h.stop()

	h.obs.mu.Lock()
	defer h.obs.mu.Unlock()
	assert.Equal(t, []State{StateRequesting, StateStreaming, StateCooling, StateStopped}, h.obs.states)
}

type failingReader struct {
	data string
	done bool
}

func (r *failingReader) Read(p []byte) (int, error) {
	if r.done {
		return 0, errors.New("connection reset")
	}
	r.done = true
	return copy(p, r.data), nil
}

func (r *failingReader) Close() error { return nil }

func TestSessionMidStreamErrorKeepsDisplayed(t *testing.T) {
	fr := &fakeRequester{respond: func(ctx context.Context, n int) (io.ReadCloser, error) {
		if n > 1 {
			return body(""), nil
		}
		return &failingReader{data: `{"speaker":"A","text":"hi"}` + "\n" + `{"speaker":"B","te`}, nil
	}}
	h := newHarness(t, fr, nil, nil)
	h.start()

	st := h.obs.nextCycle(t)
	require.Error(t, st.StreamErr)
	assert.NoError(t, st.RequestErr)
	assert.Equal(t, 1, st.Displayed)

	msgs := h.log.Snapshot()
	require.Len(t, msgs, 1)
	assert.Equal(t, "A", msgs[0].DisplayName)
	h.waitState(t, StateCooling)
}

func TestSessionTeamFallbacks(t *testing.T) {
	fr := &fakeRequester{respond: func(ctx context.Context, n int) (io.ReadCloser, error) {
		if n > 1 {
			return body(""), nil
		}
		return body(`{"speaker":"A","text":"a","team":"Samsung Lions"}` + "\n" +
			`{"speaker":"B","text":"b","team":"Mars Rovers"}` + "\n"), nil
	}}
	h := newHarness(t, fr, nil, func(o *Options) {
		o.Pacing = pacer.Options{MinInterval: time.Millisecond, MaxInterval: time.Millisecond}
	})
	h.start()

	h.waitMessages(t, 1)
	h.blockUntil(t, 1)
	h.clock.Advance(time.Millisecond)
	msgs := h.waitMessages(t, 2)

	assert.Equal(t, "SS", msgs[0].TeamID)
	assert.False(t, msgs[0].IsHome)
	assert.Equal(t, "HT", msgs[1].TeamID, "unknown label falls back to the home team")
	assert.True(t, msgs[1].IsHome)
}

func TestSubmitIsVisibleNextCycleOnly(t *testing.T) {
	var h *harness
	fr := &fakeRequester{}
	fr.respond = func(ctx context.Context, n int) (io.ReadCloser, error) {
		if n == 1 {
			_, err := h.session.Submit("mid-cycle")
			assert.NoError(t, err)
		}
		return body(""), nil
	}
	h = newHarness(t, fr, nil, nil)

	_, err := h.session.Submit("  before  ")
	require.NoError(t, err)
	h.start()

	h.waitState(t, StateCooling)
	h.blockUntil(t, 1)
	h.clock.Advance(DefaultPeriod)
	require.Eventually(t, func() bool { return len(fr.requests()) == 2 }, waitFor, time.Millisecond)

	reqs := fr.requests()
	assert.Equal(t, []convo.Entry{{Speaker: "viewer", Text: "before"}}, reqs[0].UserMessages)
	assert.Equal(t, []convo.Entry{
		{Speaker: "viewer", Text: "before"},
		{Speaker: "viewer", Text: "mid-cycle"},
	}, reqs[1].UserMessages)

	msgs := h.log.Snapshot()
	require.Len(t, msgs, 2)
	assert.Equal(t, chat.KindViewer, msgs[0].Kind)
	assert.Equal(t, "HT", msgs[0].TeamID, "viewer defaults to the home team")
	assert.True(t, msgs[0].IsHome)
}

func TestSubmitRejectsEmptyAndStopped(t *testing.T) {
	h := newHarness(t, &fakeRequester{}, nil, nil)

	_, err := h.session.Submit("   ")
	assert.Error(t, err)

	h.start()
	h.waitState(t, StateCooling)
	h.stop()

	_, err = h.session.Submit("late")
	assert.ErrorIs(t, err, ErrStopped)
	assert.Zero(t, h.convo.Len())
}

func TestSessionResetOnStop(t *testing.T) {
	fr := &fakeRequester{}
	h := newHarness(t, fr, nil, func(o *Options) { o.ResetOnStop = true })
	h.start()
	h.waitState(t, StateCooling)
	h.stop()
	assert.EqualValues(t, 1, fr.resets.Load())

	fr2 := &fakeRequester{}
	h2 := newHarness(t, fr2, nil, nil)
	h2.start()
	h2.waitState(t, StateCooling)
	h2.stop()
	assert.Zero(t, fr2.resets.Load())
}

func TestSessionSendsStoredAuxContext(t *testing.T) {
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	defer st.Close()

	require.NoError(t, st.SaveAgents([]json.RawMessage{
		json.RawMessage(`{"name":"A","team":"Kia Tigers","avatarSeed":"seed-a"}`),
	}))
	require.NoError(t, st.SaveNews("250523_HTSS", map[string]string{"Kia Tigers": "3연승"}))

	fr := &fakeRequester{respond: func(ctx context.Context, n int) (io.ReadCloser, error) {
		return body(`{"speaker":"A","text":"hi","team":"Kia Tigers"}` + "\n"), nil
	}}
	h := newHarness(t, fr, NewStoreAux(st, "250523_HTSS", "3회초", "흐름"), nil)
	h.start()

	msgs := h.waitMessages(t, 1)
	assert.Equal(t, "seed-a", msgs[0].AvatarKey)

	reqs := fr.requests()
	require.NotEmpty(t, reqs)
	assert.Len(t, reqs[0].Agents, 1)
	assert.Equal(t, map[string]string{"Kia Tigers": "3연승"}, reqs[0].NewsData)
	assert.Equal(t, "3회초", reqs[0].CurrGameStat)
	assert.Equal(t, "흐름", reqs[0].GameFlow)
}

type countingKicker struct{ n atomic.Int32 }

func (k *countingKicker) Kick(ctx context.Context) bool {
	k.n.Add(1)
	return true
}

func TestSessionKicksNewsEveryCycle(t *testing.T) {
	game, err := team.ParseGameID("250523_HTSS")
	require.NoError(t, err)
	clock := clockwork.NewFakeClock()
	kicker := &countingKicker{}
	obs := newRecorder()

	s := New(Deps{
		Client:   &fakeRequester{},
		Sink:     chat.NewLog(nil),
		Context:  convo.New(),
		Clock:    clock,
		Observer: obs,
		News:     kicker,
	}, Options{Game: game})

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	defer func() {
		cancel()
		s.Wait()
	}()

	select {
	case <-obs.cycles:
	case <-time.After(waitFor):
		t.Fatal("no cycle")
	}
	assert.EqualValues(t, 1, kicker.n.Load())
}
