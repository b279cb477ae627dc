package sessions

import (
	"encoding/json"
	"slices"
)

// State is the single stored lifecycle column of a validation session.
type State string

const (
	StatePending     State = "pending"
	StateProcessing  State = "processing"
	StateUnderReview State = "under_review"
	StateFinalised   State = "finalised"
	StateError       State = "error"
)

var states = []State{
	StatePending,
	StateProcessing,
	StateUnderReview,
	StateFinalised,
	StateError,
}

// transitions lists the states reachable from each state. Finalised is terminal;
// error only leaves through a manual retry.
var transitions = map[State][]State{
	StatePending:     {StateProcessing, StateError},
	StateProcessing:  {StateUnderReview, StateError},
	StateUnderReview: {StateFinalised, StateError},
	StateError:       {StatePending},
}

// States returns every session state in lifecycle order.
func States() []State {
	return slices.Clone(states)
}

// CanTransition reports whether a session may move from one state to another.
func CanTransition(from, to State) bool {
	return slices.Contains(transitions[from], to)
}

// Sources returns the states from which to is reachable.
func Sources(to State) []State {
	var from []State
	for _, s := range states {
		if CanTransition(s, to) {
			from = append(from, s)
		}
	}
	return from
}

// Terminal reports whether s admits no automatic progress.
func (s State) Terminal() bool {
	return s == StateFinalised || s == StateError
}

// AcceptsResults reports whether results may be written for a session in s.
func (s State) AcceptsResults() bool {
	return s == StateUnderReview || s == StateFinalised
}

// ParseState validates s as a known session state.
func ParseState(s string) (State, error) {
	v := State(s)
	if !slices.Contains(states, v) {
		return "", ErrInvalidState
	}
	return v, nil
}

// UnmarshalJSON validates that the decoded string is a known state.
func (s *State) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v, err := ParseState(raw)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

func stateStrings(ss []State) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = string(s)
	}
	return out
}
