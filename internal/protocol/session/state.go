package session

import (
	"fmt"
	"slices"
)

// State is one node of a session state machine.
type State string

const (
	StateSending    State = "sending"
	StateRequesting State = "requesting"
	StateReceiving  State = "receiving"
	StateFinalizing State = "finalizing"

	StateListening State = "listening"
	StateAnswering State = "answering"

	StateDone    State = "done"
	StateErrored State = "errored"
)

func (s State) Terminal() bool {
	return s == StateDone || s == StateErrored
}

// transitions lists the allowed non-error successors of each state.
// StateErrored is reachable from every non-terminal state.
type transitions map[State][]State

var initiatorTransitions = transitions{
	StateSending:    {StateRequesting},
	StateRequesting: {StateReceiving},
	StateReceiving:  {StateFinalizing},
	StateFinalizing: {StateDone},
}

var responderTransitions = transitions{
	StateListening: {StateListening, StateAnswering, StateDone},
	StateAnswering: {StateListening},
}

type machine struct {
	state State
	table transitions
}

func newMachine(start State, table transitions) machine {
	return machine{state: start, table: table}
}

func (m *machine) current() State {
	return m.state
}

func (m *machine) can(next State) bool {
	if m.state.Terminal() {
		return false
	}
	if next == StateErrored {
		return true
	}
	return slices.Contains(m.table[m.state], next)
}

func (m *machine) to(next State) error {
	if !m.can(next) {
		return transitionError(m.state, next)
	}
	m.state = next
	return nil
}

func transitionError(from, to State) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}
