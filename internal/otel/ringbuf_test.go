package otel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pushCycles(r *RingBuffer, from, to int) {
	for i := from; i <= to; i++ {
		r.Push(Event{Kind: KindCycleStart, Cycle: i})
	}
}

func cycles(events []Event) []int {
	out := make([]int, len(events))
	for i, e := range events {
		out[i] = e.Cycle
	}
	return out
}

func TestRingBufferBeforeWrap(t *testing.T) {
	r := NewRingBuffer(4)
	pushCycles(r, 1, 3)

	assert.Equal(t, 3, r.Len())
	assert.Equal(t, []int{1, 2, 3}, cycles(r.Snapshot()))
	assert.Equal(t, []int{2, 3}, cycles(r.Last(2)))
}

func TestRingBufferWrapsOldestFirst(t *testing.T) {
	r := NewRingBuffer(4)
	pushCycles(r, 1, 6)

	assert.Equal(t, 4, r.Len())
	assert.Equal(t, []int{3, 4, 5, 6}, cycles(r.Snapshot()))
	assert.Equal(t, []int{5, 6}, cycles(r.Last(2)))
	assert.Equal(t, []int{3, 4, 5, 6}, cycles(r.Last(10)))
	assert.Nil(t, r.Last(0))
}

func TestRingBufferLastOf(t *testing.T) {
	r := NewRingBuffer(4)
	r.Push(Event{Kind: KindCycleComplete, Cycle: 1})
	r.Push(Event{Kind: KindParseError, Cycle: 2})
	r.Push(Event{Kind: KindCycleComplete, Cycle: 2})
	r.Push(Event{Kind: KindMessageShown, Cycle: 3})

	e, ok := r.LastOf(KindCycleComplete)
	require.True(t, ok)
	assert.Equal(t, 2, e.Cycle)

	_, ok = r.LastOf(KindNewsError)
	assert.False(t, ok)
}

func TestRingBufferCounts(t *testing.T) {
	r := NewRingBuffer(8)
	r.Push(Event{Kind: KindParseError})
	r.Push(Event{Kind: KindParseError})
	r.Push(Event{Kind: KindMessageShown})

	assert.Equal(t, map[EventKind]int{KindParseError: 2, KindMessageShown: 1}, r.Counts())
}

func TestRingBufferCopiesExtra(t *testing.T) {
	r := NewRingBuffer(2)
	extra := map[string]any{"lines": 1}
	r.Push(Event{Kind: KindCycleComplete, Extra: extra})
	extra["lines"] = 99

	assert.Equal(t, 1, r.Snapshot()[0].Extra["lines"])
}

func TestRingBufferDefaultSize(t *testing.T) {
	assert.Equal(t, DefaultRingSize, NewRingBuffer(0).Cap())
}
