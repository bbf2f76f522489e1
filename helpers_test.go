package threadloop

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/stretchr/testify/require"
)

// bindLoop creates a loop with its own registry, bound to the test goroutine,
// for tests that drive Dispatch manually.
func bindLoop(t *testing.T, opts ...LoopOption) *Loop {
	t.Helper()
	l, err := New(append([]LoopOption{WithRegistry(NewRegistry())}, opts...)...)
	require.NoError(t, err)
	require.NoError(t, l.BindThread())
	t.Cleanup(func() {
		if l.IsRunning() {
			l.UnbindThread()
		}
		_ = l.Close()
	})
	return l
}

// startLoop runs the loop on a new goroutine, returning a function that
// stops it and returns the result of Run.
func startLoop(t *testing.T, l *Loop) (stop func() error) {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- l.Run(context.Background()) }()
	require.Eventually(t, l.IsRunning, 5*time.Second, time.Millisecond)
	var (
		once sync.Once
		err  error
	)
	stop = func() error {
		once.Do(func() {
			l.Stop()
			select {
			case err = <-done:
			case <-time.After(5 * time.Second):
				t.Error("timed out waiting for loop to stop")
			}
		})
		return err
	}
	t.Cleanup(func() { _ = stop() })
	return stop
}

// dispatchAll dispatches until nothing is due.
func dispatchAll(l *Loop) (n int) {
	for l.Dispatch() {
		n++
	}
	return n
}

type capturedEvent struct {
	logiface.UnimplementedEvent
	fields map[string]any
	level  logiface.Level
}

func (e *capturedEvent) Level() logiface.Level { return e.level }

func (e *capturedEvent) AddField(key string, val any) { e.fields[key] = val }

// eventLog records every event written by its logger.
type eventLog struct {
	events []*capturedEvent
	mu     sync.Mutex
}

func (x *eventLog) logger() *logiface.Logger[logiface.Event] {
	return logiface.New[*capturedEvent](
		logiface.WithEventFactory[*capturedEvent](logiface.NewEventFactoryFunc(func(level logiface.Level) *capturedEvent {
			return &capturedEvent{level: level, fields: make(map[string]any)}
		})),
		logiface.WithWriter[*capturedEvent](logiface.NewWriterFunc(func(event *capturedEvent) error {
			x.mu.Lock()
			x.events = append(x.events, event)
			x.mu.Unlock()
			return nil
		})),
		logiface.WithLevel[*capturedEvent](logiface.LevelTrace),
	).Logger()
}

// category returns the events logged for the given diagnostic category.
func (x *eventLog) category(category string) []*capturedEvent {
	x.mu.Lock()
	defer x.mu.Unlock()
	var out []*capturedEvent
	for _, event := range x.events {
		if event.fields[`category`] == category {
			out = append(out, event)
		}
	}
	return out
}

// recoverInvariant calls fn, returning the *InvariantError it panicked with.
func recoverInvariant(t *testing.T, fn func()) (err *InvariantError) {
	t.Helper()
	defer func() {
		r := recover()
		require.NotNil(t, r, "expected a panic")
		var ok bool
		err, ok = r.(*InvariantError)
		require.True(t, ok, "unexpected panic value: %v", r)
	}()
	fn()
	return nil
}
