// Package fsm implements closed status enums with an explicit transition table.
package fsm

import (
	"fmt"
	"sort"
)

// Table maps each state to the states it may move to. States absent from the
// table are unknown; states mapping to nothing are terminal.
type Table[S ~string] map[S][]S

// TransitionError is returned for a move the table does not allow.
type TransitionError[S ~string] struct {
	From S
	To   S
}

func (e *TransitionError[S]) Error() string {
	return fmt.Sprintf("transition %s -> %s not allowed", e.From, e.To)
}

// UnknownStateError is returned when a state is not part of the table.
type UnknownStateError[S ~string] struct {
	State S
}

func (e *UnknownStateError[S]) Error() string {
	return fmt.Sprintf("unknown state %q", e.State)
}

// Known reports whether s is a state of the table.
func (t Table[S]) Known(s S) bool {
	_, ok := t[s]
	return ok
}

// Terminal reports whether s has no outgoing transitions.
func (t Table[S]) Terminal(s S) bool {
	next, ok := t[s]
	return ok && len(next) == 0
}

// Can reports whether from -> to is allowed. A state may always be "moved" to itself.
func (t Table[S]) Can(from, to S) bool {
	if !t.Known(from) || !t.Known(to) {
		return false
	}
	if from == to {
		return true
	}
	for _, n := range t[from] {
		if n == to {
			return true
		}
	}
	return false
}

// Check returns nil when from -> to is allowed, else a typed error.
func (t Table[S]) Check(from, to S) error {
	if !t.Known(from) {
		return &UnknownStateError[S]{State: from}
	}
	if !t.Known(to) {
		return &UnknownStateError[S]{State: to}
	}
	if !t.Can(from, to) {
		return &TransitionError[S]{From: from, To: to}
	}
	return nil
}

// States returns all states in sorted order.
func (t Table[S]) States() []S {
	out := make([]S, 0, len(t))
	for s := range t {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Next returns the allowed targets of s.
func (t Table[S]) Next(s S) []S {
	next := t[s]
	out := make([]S, len(next))
	copy(out, next)
	return out
}
