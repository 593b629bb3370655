package coord

import "time"

// State is the loop state machine position.
type State int32

const (
	StateIdle State = iota
	StateRequesting
	StateStreaming
	StateCooling
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequesting:
		return "requesting"
	case StateStreaming:
		return "streaming"
	case StateCooling:
		return "cooling"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// CycleStats summarizes one request cycle.
type CycleStats struct {
	Cycle       int
	Start       time.Time
	Duration    time.Duration
	Lines       int // non-empty lines decoded
	Parsed      int
	ParseErrors int
	Displayed   int
	RequestErr  error // failure before the first byte
	StreamErr   error // failure mid-stream
	Cancelled   bool
}

// Observer receives loop progress. Calls come from the loop goroutine and
// must not block for long.
type Observer interface {
	StateChanged(State)
	CycleComplete(CycleStats)
}
