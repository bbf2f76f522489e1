package threadloop

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiagnostics_bindAndUnbind(t *testing.T) {
	var log eventLog
	r := NewRegistry()
	a, err := New(WithRegistry(r), WithLogger(log.logger()))
	require.NoError(t, err)
	b, err := New(WithRegistry(r), WithLogger(log.logger()))
	require.NoError(t, err)

	require.NoError(t, a.BindThread())
	require.ErrorIs(t, b.BindThread(), ErrThreadAlreadyBound)
	a.UnbindThread()

	bind := log.category(categoryBind)
	require.Len(t, bind, 2)
	assert.Equal(t, `threadloop: bound thread`, bind[0].fields[`msg`])
	assert.Contains(t, bind[0].fields, `os_thread`)
	assert.Equal(t, `threadloop: bind thread failed`, bind[1].fields[`msg`])
	assert.Equal(t, ErrThreadAlreadyBound, bind[1].fields[`err`])

	unbind := log.category(categoryUnbind)
	require.Len(t, unbind, 1)
	assert.Equal(t, CurrentThreadID().String(), unbind[0].fields[`thread`])
}

func TestDiagnostics_invariantLogged(t *testing.T) {
	var log eventLog
	l, err := New(WithRegistry(NewRegistry()), WithLogger(log.logger()))
	require.NoError(t, err)

	assert.NotPanics(t, l.UnbindThread)
	events := log.category(categoryInvariant)
	require.Len(t, events, 1)
	var invariant *InvariantError
	require.ErrorAs(t, events[0].fields[`err`].(error), &invariant)
	assert.Contains(t, invariant.Message, `is not bound`)
}

func TestDiagnostics_rateLimited(t *testing.T) {
	var log eventLog
	l, err := New(
		WithRegistry(NewRegistry()),
		WithLogger(log.logger()),
		WithDiagnosticRateLimits(map[time.Duration]int{time.Hour: 3}),
	)
	require.NoError(t, err)

	for range 10 {
		l.UnbindThread()
	}
	assert.Len(t, log.category(categoryInvariant), 3)

	// categories are limited independently
	require.NoError(t, l.BindThread())
	defer l.UnbindThread()
	for range 5 {
		l.Process(OperationFunc(func() { panic(`boom`) }))
	}
	assert.Len(t, log.category(categoryPanic), 3)
}

func TestDiagnostics_nilLogger(t *testing.T) {
	l := bindLoop(t)
	assert.NotPanics(t, func() {
		l.Process(OperationFunc(func() { panic(`boom`) }))
		l.diag.invariant(`nothing %s`, `logged`)
		l.diag.closedWhileBound(CurrentThreadID(), 0)
	})
}
