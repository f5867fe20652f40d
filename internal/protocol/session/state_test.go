package session

import (
	"testing"

	"github.com/danmuck/plenty/internal/testutil/testlog"
	"github.com/stretchr/testify/require"
)

func TestInitiatorTransitionTable(t *testing.T) {
	testlog.Start(t)
	m := newMachine(StateSending, initiatorTransitions)
	for _, next := range []State{StateRequesting, StateReceiving, StateFinalizing, StateDone} {
		require.NoError(t, m.to(next))
	}
	require.ErrorIs(t, m.to(StateErrored), ErrInvalidTransition, "done is absorbing")
}

func TestInitiatorCannotSkipStates(t *testing.T) {
	testlog.Start(t)
	m := newMachine(StateSending, initiatorTransitions)
	require.ErrorIs(t, m.to(StateReceiving), ErrInvalidTransition)
	require.ErrorIs(t, m.to(StateDone), ErrInvalidTransition)
	require.Equal(t, StateSending, m.current())
}

func TestErroredReachableFromEveryLiveState(t *testing.T) {
	testlog.Start(t)
	for _, start := range []State{StateSending, StateRequesting, StateReceiving, StateFinalizing} {
		m := newMachine(start, initiatorTransitions)
		require.NoError(t, m.to(StateErrored), start)
		require.ErrorIs(t, m.to(start), ErrInvalidTransition, "errored is absorbing")
	}
	for _, start := range []State{StateListening, StateAnswering} {
		m := newMachine(start, responderTransitions)
		require.NoError(t, m.to(StateErrored), start)
	}
}

func TestResponderTransitionTable(t *testing.T) {
	testlog.Start(t)
	m := newMachine(StateListening, responderTransitions)
	require.NoError(t, m.to(StateListening))
	require.NoError(t, m.to(StateAnswering))
	require.ErrorIs(t, m.to(StateDone), ErrInvalidTransition, "answer must return to listening first")
	require.NoError(t, m.to(StateListening))
	require.NoError(t, m.to(StateDone))
	require.True(t, m.current().Terminal())
}
