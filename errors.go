package threadloop

import (
	"errors"
	"fmt"
)

// Standard errors.
var (
	// ErrLoopAlreadyBound is returned when binding a loop that is already
	// bound to a thread.
	ErrLoopAlreadyBound = errors.New("threadloop: loop is already bound to a thread")

	// ErrThreadAlreadyBound is returned when the calling thread is already
	// registered as running a different loop.
	ErrThreadAlreadyBound = errors.New("threadloop: thread is already bound to a loop")

	// ErrLoopClosed is returned when binding a loop after Close.
	ErrLoopClosed = errors.New("threadloop: loop has been closed")

	// ErrLoopBoundAtClose is returned by Close when the loop was still bound
	// to a thread. Pending commands are revoked regardless.
	ErrLoopBoundAtClose = errors.New("threadloop: loop closed while still bound to a thread")
)

// PanicError wraps a value recovered from a panicking [Operation].
type PanicError struct {
	Value any
}

// Error implements the error interface.
func (e PanicError) Error() string {
	return fmt.Sprintf("threadloop: operation panicked: %v", e.Value)
}

// Unwrap returns the panic value if it is an error, for use with
// [errors.Is] and [errors.As].
func (e PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// InvariantError describes a violated internal invariant, usually caused by
// misuse, e.g. unbinding a loop that was never bound. It is the panic value
// when [WithDebugMode] is enabled.
type InvariantError struct {
	Message string
}

// Error implements the error interface.
func (e *InvariantError) Error() string {
	return "threadloop: invariant violated: " + e.Message
}
