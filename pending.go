package threadloop

import (
	"context"

	"github.com/joeycumines/go-threadloop/internal/cond"
)

// CommandState is the lifecycle state of a posted command.
//
//	CommandPending -> CommandProcessing -> CommandProcessed
//	CommandPending -> CommandRevoked
//
// CommandProcessed and CommandRevoked are terminal.
type CommandState uint8

const (
	// CommandPending indicates the command is queued and may be revoked.
	CommandPending CommandState = iota
	// CommandProcessing indicates the operation is executing.
	CommandProcessing
	// CommandProcessed indicates the operation has finished executing.
	CommandProcessed
	// CommandRevoked indicates the command was cancelled before it started.
	CommandRevoked
)

// String returns a human-readable representation of the state.
func (s CommandState) String() string {
	switch s {
	case CommandPending:
		return "Pending"
	case CommandProcessing:
		return "Processing"
	case CommandProcessed:
		return "Processed"
	case CommandRevoked:
		return "Revoked"
	default:
		return "Unknown"
	}
}

// pendingCond guards the state of every PendingState. Handles are short-lived
// and rarely contended, so a single process-wide pair suffices.
var pendingCond cond.Cond

// PendingState is the handle returned for a posted command. It is shared by
// the loop's queue entry and every holder of the handle, and is safe for
// concurrent use.
type PendingState struct {
	_     [0]func()
	state CommandState
}

func newPendingState() *PendingState {
	return &PendingState{state: CommandPending}
}

// Revoke cancels the command if it has not started. It returns true if the
// command is (now, or already was) revoked, and false if the operation is
// running or has run. Revoking has no effect on an operation that has
// already been dequeued for execution.
func (x *PendingState) Revoke() bool {
	revoked, _ := x.revoke()
	return revoked
}

// revoke behaves like Revoke, also reporting whether this call performed the
// transition.
func (x *PendingState) revoke() (revoked, changed bool) {
	pendingCond.Lock()
	defer pendingCond.Unlock()
	if x.state == CommandPending {
		x.state = CommandRevoked
		changed = true
		pendingCond.Broadcast()
	}
	return x.state == CommandRevoked, changed
}

// Result blocks until the command is processed or revoked, and reports
// whether it was processed.
//
// It must not be called from the thread bound to the loop the command was
// posted to, as that thread would be waiting on itself.
func (x *PendingState) Result() bool {
	pendingCond.Lock()
	defer pendingCond.Unlock()
	for !x.state.terminal() {
		pendingCond.Wait()
	}
	return x.state == CommandProcessed
}

// ResultContext behaves like [PendingState.Result], but returns ctx.Err() if
// the context is done before the command reaches a terminal state. The
// command is not revoked.
func (x *PendingState) ResultContext(ctx context.Context) (bool, error) {
	pendingCond.Lock()
	defer pendingCond.Unlock()
	for !x.state.terminal() {
		if err := pendingCond.WaitContext(ctx); err != nil {
			return false, err
		}
	}
	return x.state == CommandProcessed, nil
}

// State returns a snapshot of the current state.
func (x *PendingState) State() CommandState {
	pendingCond.Lock()
	defer pendingCond.Unlock()
	return x.state
}

// IsDone reports whether the operation has finished executing.
func (x *PendingState) IsDone() bool { return x.State() == CommandProcessed }

// IsPending reports whether the command is still queued.
func (x *PendingState) IsPending() bool { return x.State() == CommandPending }

// IsRevoked reports whether the command was revoked.
func (x *PendingState) IsRevoked() bool { return x.State() == CommandRevoked }

// enterOperation is the single check-and-set that races with Revoke.
func (x *PendingState) enterOperation() bool {
	pendingCond.Lock()
	defer pendingCond.Unlock()
	if x.state == CommandPending {
		x.state = CommandProcessing
		return true
	}
	return false
}

// leaveOperation marks the operation processed. It returns false, without
// changing state, if enterOperation had not succeeded.
func (x *PendingState) leaveOperation() bool {
	pendingCond.Lock()
	defer pendingCond.Unlock()
	if x.state != CommandProcessing {
		return false
	}
	x.state = CommandProcessed
	pendingCond.Broadcast()
	return true
}

func (s CommandState) terminal() bool {
	return s == CommandProcessed || s == CommandRevoked
}
