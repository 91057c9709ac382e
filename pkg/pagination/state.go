package pagination

import "encoding/json"

// Direction identifies a load edge of the loader.
type Direction string

const (
	// DirectionRefresh replaces the whole cached sequence.
	DirectionRefresh Direction = "refresh"

	// DirectionPrepend loads the page before the first cached page.
	DirectionPrepend Direction = "prepend"

	// DirectionAppend loads the page after the last cached page.
	DirectionAppend Direction = "append"
)

// Status is the coarse load status of one edge.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// LoadState is the state of one edge.
// Within one request it moves Idle -> Loading -> Idle or Error.
type LoadState struct {
	Status Status

	// Err is the failure cause when Status is StatusError.
	Err error

	// EndReached is set on an idle edge that has no further page to load.
	EndReached bool
}

// Idle returns an idle state.
func Idle(endReached bool) LoadState {
	return LoadState{Status: StatusIdle, EndReached: endReached}
}

// Loading returns a loading state.
func Loading() LoadState {
	return LoadState{Status: StatusLoading}
}

// Failed returns an error state carrying cause.
func Failed(cause error) LoadState {
	return LoadState{Status: StatusError, Err: cause}
}

// MarshalJSON renders the state for presentation consumers.
func (s LoadState) MarshalJSON() ([]byte, error) {
	out := struct {
		Status     string `json:"status"`
		Error      string `json:"error,omitempty"`
		EndReached bool   `json:"endReached"`
	}{
		Status:     s.Status.String(),
		EndReached: s.EndReached,
	}
	if s.Err != nil {
		out.Error = s.Err.Error()
	}
	return json.Marshal(out)
}

// LoadStates holds the independent state of every edge.
type LoadStates struct {
	Refresh LoadState `json:"refresh"`
	Prepend LoadState `json:"prepend"`
	Append  LoadState `json:"append"`
}

// Get returns the state of dir.
func (s LoadStates) Get(dir Direction) LoadState {
	switch dir {
	case DirectionPrepend:
		return s.Prepend
	case DirectionAppend:
		return s.Append
	default:
		return s.Refresh
	}
}

func (s *LoadStates) set(dir Direction, state LoadState) {
	switch dir {
	case DirectionPrepend:
		s.Prepend = state
	case DirectionAppend:
		s.Append = state
	default:
		s.Refresh = state
	}
}

// Snapshot is a consistent copy of the loader's pages and states.
type Snapshot[T any] struct {
	Pages  []Page[T]  `json:"pages"`
	States LoadStates `json:"states"`
}
