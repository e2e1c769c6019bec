package pipeline

import (
	"fmt"
)

// State is the lifecycle position of a single captured photo.
type State int

const (
	Pending State = iota
	Processing
	Completed
	Failed
)

// transitions lists every legal move. Completed and Failed are terminal;
// there is no retry edge.
var transitions = map[State][]State{
	Pending:    {Processing},
	Processing: {Completed, Failed},
}

func (s State) String() string {
	switch s {
	case Pending:
		return "Pending"
	case Processing:
		return "Processing"
	case Completed:
		return "Completed"
	case Failed:
		return "Failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == Completed || s == Failed
}

// CanTransition reports whether moving from s to next is allowed.
func (s State) CanTransition(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s State) MarshalText() ([]byte, error) {
	switch s {
	case Pending, Processing, Completed, Failed:
		return []byte(s.String()), nil
	default:
		return nil, fmt.Errorf("unknown photo state %d", int(s))
	}
}

func (s *State) UnmarshalText(text []byte) error {
	switch string(text) {
	case "Pending":
		*s = Pending
	case "Processing":
		*s = Processing
	case "Completed":
		*s = Completed
	case "Failed":
		*s = Failed
	default:
		return fmt.Errorf("unknown photo state %q", text)
	}
	return nil
}

// PhotoStatus is a State plus the reason for a failure.
type PhotoStatus struct {
	State  State  `json:"state"`
	Reason string `json:"reason,omitempty"`
}

func (s PhotoStatus) String() string {
	if s.State == Failed && s.Reason != "" {
		return s.State.String() + ": " + s.Reason
	}
	return s.State.String()
}

// CapturedPhoto is one item in a session queue.
type CapturedPhoto struct {
	URI            string      `json:"uri"`
	SequenceNumber int         `json:"sequence_number"`
	Status         PhotoStatus `json:"status"`
}
