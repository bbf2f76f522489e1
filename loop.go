package threadloop

import (
	"context"
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/go-threadloop/internal/cond"
)

// loopIDs allocates Loop.ID values.
var loopIDs atomic.Uint64

// Loop is a thread-affine event loop. Commands posted from any goroutine are
// executed, one at a time, on the single goroutine the loop is bound to.
//
// Two queues are maintained: one keyed by [Tick] (relative delays, immune to
// wall clock changes), and one keyed by wall-clock time. Each is dispatched
// in ascending fire order, stable for equal fire times. When both have a due
// command, the tick queue is served first.
//
// A Loop may be driven by [Loop.Run], or manually, by calling
// [Loop.BindThread], then [Loop.Dispatch] and [Loop.WaitNextLoop] (or
// similar) in a loop of the caller's own, then [Loop.UnbindThread].
type Loop struct { // betteralign:ignore
	// Prevent copying
	_ [0]func()

	registry       *Registry
	metrics        *loopMetrics
	idleHook       func(*Loop)
	executionScope func(perform func())

	diag diagnostics

	// queueCond guards the fields below it, and is signalled on every post
	queueCond cond.Cond
	tickQueue commandQueue[Tick]
	timeQueue commandQueue[time.Time]
	closed    bool

	// bindMu serializes BindThread and UnbindThread
	bindMu  sync.Mutex
	boundAt time.Time

	threadID atomic.Uint64
	// generation is incremented on each bind, so a stop command posted
	// during one run cannot end the next
	generation atomic.Uint64
	// running is set on bind, and only ever cleared on the bound thread
	running atomic.Bool

	id           uint64
	lockOSThread bool
}

// New creates a new, unbound, Loop.
func New(opts ...LoopOption) (*Loop, error) {
	options, err := resolveLoopOptions(opts)
	if err != nil {
		return nil, err
	}

	l := &Loop{
		registry:       options.registry,
		idleHook:       options.idleHook,
		executionScope: options.executionScope,
		tickQueue:      newTickQueue(),
		timeQueue:      newTimeQueue(),
		id:             loopIDs.Add(1),
		lockOSThread:   !options.noLockOSThread,
	}
	l.diag = newDiagnostics(l.id, options)
	if options.metricsEnabled {
		l.metrics = newLoopMetrics()
	}

	return l, nil
}

// ID returns a process-unique identifier for the loop, used in diagnostics.
func (l *Loop) ID() uint64 { return l.id }

// Post queues op to run on the loop's thread, no sooner than delay from now.
// Delays are measured using the monotonic [SystemTick]. A negative delay is
// treated as zero.
//
// A nil op queues nothing, but still wakes the loop, and returns nil.
// Posting to a closed loop returns an already revoked state.
func (l *Loop) Post(op Operation, delay time.Duration) *PendingState {
	now := SystemTick()
	fire := now + DurationTicks(max(delay, 0))
	if fire < now {
		fire = math.MaxInt64
	}
	return l.post(op, false, func(state *PendingState) {
		l.tickQueue.push(op, state, fire)
	})
}

// PostAt queues op to run on the loop's thread, no sooner than the wall
// clock time at. Only the wall clock reading of at is considered. See also
// [Loop.Post].
func (l *Loop) PostAt(op Operation, at time.Time) *PendingState {
	fire := at.Round(0)
	return l.post(op, false, func(state *PendingState) {
		l.timeQueue.push(op, state, fire)
	})
}

// post pushes under the queue lock. Internal posts are accepted even after
// Close, and are not counted as posted.
func (l *Loop) post(op Operation, internal bool, push func(state *PendingState)) *PendingState {
	if isNilOperation(op) {
		l.queueCond.Lock()
		l.queueCond.Signal()
		l.queueCond.Unlock()
		return nil
	}

	state := newPendingState()

	l.queueCond.Lock()
	if l.closed && !internal {
		l.queueCond.Unlock()
		state.Revoke()
		if l.metrics != nil {
			l.metrics.revoked.Add(1)
		}
		return state
	}
	push(state)
	if l.metrics != nil {
		if !internal {
			l.metrics.posted.Add(1)
		}
		l.metrics.queueDepths(l.tickQueue.Len(), l.timeQueue.Len())
	}
	l.queueCond.Signal()
	l.queueCond.Unlock()

	return state
}

// Process runs op on the loop's thread, and reports whether it ran.
//
// Called from the bound thread, op is performed immediately, and Process
// returns true. Otherwise op is posted with no delay, and Process blocks
// until it is processed (true) or revoked (false). A nil op returns false.
func (l *Loop) Process(op Operation) bool {
	if isNilOperation(op) {
		return false
	}
	if l.IsLoopThread() {
		l.processInline(op)
		return true
	}
	return l.Post(op, 0).Result()
}

// ProcessContext behaves like [Loop.Process], but stops waiting once ctx is
// done, revoking the command if it has not yet started. If the operation
// had already started, it runs to completion regardless, and the result is
// (false, ctx.Err()).
func (l *Loop) ProcessContext(ctx context.Context, op Operation) (bool, error) {
	if isNilOperation(op) {
		return false, nil
	}
	if l.IsLoopThread() {
		l.processInline(op)
		return true, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	state := l.Post(op, 0)
	ok, err := state.ResultContext(ctx)
	if err != nil {
		state.Revoke()
		return false, err
	}
	return ok, nil
}

func (l *Loop) processInline(op Operation) {
	if l.metrics != nil {
		l.metrics.inline.Add(1)
	}
	l.perform(op)
}

// RevokeAll removes every queued command from both queues, revoking each,
// and returns the number removed. Commands already dequeued by Dispatch are
// unaffected.
func (l *Loop) RevokeAll() int {
	l.queueCond.Lock()
	states, n := l.drainLocked()
	l.queueCond.Unlock()
	l.revoke(states)
	return n
}

// drainLocked empties both queues, returning the states of the commands
// that were not internal, and the total number of commands removed.
func (l *Loop) drainLocked() (states []*PendingState, n int) {
	ticks := l.tickQueue.drain()
	times := l.timeQueue.drain()
	states = make([]*PendingState, 0, len(ticks)+len(times))
	for _, cmd := range ticks {
		if !cmd.internal {
			states = append(states, cmd.state)
		}
	}
	for _, cmd := range times {
		if !cmd.internal {
			states = append(states, cmd.state)
		}
	}
	if l.metrics != nil {
		l.metrics.queueDepths(0, 0)
	}
	return states, len(ticks) + len(times)
}

// revoke revokes every state, counting those that were still pending.
func (l *Loop) revoke(states []*PendingState) (changed int) {
	for _, state := range states {
		if _, ok := state.revoke(); ok {
			changed++
		}
	}
	if l.metrics != nil {
		l.metrics.revoked.Add(uint64(changed))
	}
	return changed
}

// BindThread binds the loop to the calling goroutine, registering it, and
// setting the loop running. It fails with [ErrLoopAlreadyBound] if the loop
// is bound, [ErrThreadAlreadyBound] if the calling goroutine already runs a
// loop (in the same registry), or [ErrLoopClosed].
//
// Most callers should use [Loop.Run] instead.
func (l *Loop) BindThread() error {
	l.bindMu.Lock()
	defer l.bindMu.Unlock()

	thread := CurrentThreadID()

	l.queueCond.Lock()
	closed := l.closed
	l.queueCond.Unlock()
	if closed {
		return ErrLoopClosed
	}

	if ThreadID(l.threadID.Load()) != InvalidThreadID {
		l.diag.bindFailed(thread, ErrLoopAlreadyBound)
		return ErrLoopAlreadyBound
	}

	if l.registry.Contains(l) {
		l.diag.invariant(`loop %d is registered but not bound`, l.id)
	}

	if !l.registry.register(thread, l) {
		l.diag.bindFailed(thread, ErrThreadAlreadyBound)
		return ErrThreadAlreadyBound
	}

	l.generation.Add(1)
	l.running.Store(true)
	l.threadID.Store(uint64(thread))
	l.boundAt = time.Now()

	l.diag.bound(thread)

	return nil
}

// UnbindThread reverses a successful [Loop.BindThread]. Calling it on a loop
// that is not bound violates an invariant.
func (l *Loop) UnbindThread() {
	l.bindMu.Lock()
	defer l.bindMu.Unlock()

	thread := ThreadID(l.threadID.Load())
	if thread == InvalidThreadID {
		l.diag.invariant(`loop %d is not bound`, l.id)
		return
	}

	if !l.registry.unregister(thread, l) {
		l.diag.invariant(`loop %d is not registered for thread %s`, l.id, thread)
	}

	l.threadID.Store(uint64(InvalidThreadID))
	l.running.Store(false)

	l.diag.unbound(thread, time.Since(l.boundAt))
}

// Run binds the loop to the calling goroutine, then dispatches commands until
// stopped, via [Loop.Stop], or ctx being done. Between commands, it calls the
// idle hook (see [WithIdleHook]) or, if none is set, blocks until the next
// command is due.
//
// Run returns nil once stopped, ctx.Err() if ctx ended the run, or the error
// from [Loop.BindThread].
func (l *Loop) Run(ctx context.Context) error {
	if l.lockOSThread {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
	}

	if err := l.BindThread(); err != nil {
		return err
	}

	// Start context watcher goroutine to stop the loop on cancellation
	generation := l.generation.Load()
	ctxDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			l.stop(generation)
		case <-ctxDone:
		}
	}()

	for {
		next := l.Dispatch()
		if !l.running.Load() {
			break
		}
		if !next {
			l.idle()
		}
	}

	close(ctxDone)
	l.UnbindThread()

	return ctx.Err()
}

func (l *Loop) idle() {
	if l.idleHook != nil {
		l.idleHook(l)
		return
	}
	l.WaitNextLoop()
}

// Stop asks a running loop to stop. It posts a command that clears the
// running flag, so commands already due are dispatched first. It has no
// effect on a loop that is not bound.
func (l *Loop) Stop() {
	if !l.IsRunning() {
		return
	}
	l.stop(l.generation.Load())
}

// stop posts a command that ends the run identified by generation, if it is
// still the current one when dispatched.
func (l *Loop) stop(generation uint64) {
	fire := SystemTick()
	var op OperationFunc = func() {
		if l.generation.Load() == generation {
			l.running.Store(false)
		}
	}
	l.post(op, true, func(state *PendingState) {
		l.tickQueue.pushInternal(op, state, fire)
	})
}

// Dispatch executes at most one due command, on the calling goroutine, which
// must be the bound thread. It returns true if a command was dequeued, even
// if it had been revoked, and so did not execute.
func (l *Loop) Dispatch() bool {
	if !l.IsLoopThread() {
		l.diag.invariant(`loop %d dispatched from thread %s, bound to %s`, l.id, CurrentThreadID(), l.RunningThreadID())
		return false
	}

	var (
		op       Operation
		state    *PendingState
		lag      time.Duration
		internal bool
	)

	l.queueCond.Lock()
	now := SystemTick()
	if cmd, ok := l.tickQueue.peek(); ok && cmd.fire <= now {
		lag = (now - cmd.fire).Duration()
		c := l.tickQueue.pop()
		op, state, internal = c.operation, c.state, c.internal
	} else if cmd, ok := l.timeQueue.peek(); ok {
		if wall := wallNow(); !cmd.fire.After(wall) {
			lag = wall.Sub(cmd.fire)
			c := l.timeQueue.pop()
			op, state, internal = c.operation, c.state, c.internal
		}
	}
	if state != nil && l.metrics != nil {
		l.metrics.queueDepths(l.tickQueue.Len(), l.timeQueue.Len())
	}
	l.queueCond.Unlock()

	if state == nil {
		return false
	}

	if internal {
		if state.enterOperation() {
			op.Perform()
			state.leaveOperation()
		}
		return true
	}

	if l.metrics != nil {
		l.metrics.dispatched.Add(1)
	}

	l.execute(op, state, lag)

	return true
}

func (l *Loop) execute(op Operation, state *PendingState, lag time.Duration) {
	if !state.enterOperation() {
		if l.metrics != nil {
			l.metrics.skipped.Add(1)
		}
		return
	}

	defer func() {
		if !state.leaveOperation() {
			l.diag.invariant(`command left while %s`, state.State())
		}
	}()

	if l.metrics != nil {
		l.metrics.recordLag(lag)
		l.metrics.executed.Add(1)
	}

	l.perform(op)
}

// perform runs op within the execution scope, recovering any panic.
func (l *Loop) perform(op Operation) {
	if l.executionScope == nil {
		l.safeExecute(op)
		return
	}

	var performed bool
	l.executionScope(func() {
		if performed {
			l.diag.invariant(`execution scope performed an operation twice`)
			return
		}
		performed = true
		l.safeExecute(op)
	})
	if !performed {
		l.diag.invariant(`execution scope did not perform the operation`)
	}
}

// safeExecute executes an operation with panic recovery.
func (l *Loop) safeExecute(op Operation) {
	defer func() {
		if r := recover(); r != nil {
			if l.metrics != nil {
				l.metrics.panicked.Add(1)
			}
			l.diag.operationPanicked(r)
		}
	}()

	op.Perform()
}

// nextIntervalLocked returns the time until the earliest queued command is
// due, clamped to zero, or false if both queues are empty.
func (l *Loop) nextIntervalLocked() (time.Duration, bool) {
	tickCmd, hasTick := l.tickQueue.peek()
	timeCmd, hasTime := l.timeQueue.peek()

	var tickDelay, timeDelay time.Duration
	if hasTick {
		if now := SystemTick(); tickCmd.fire > now {
			tickDelay = (tickCmd.fire - now).Duration()
		}
	}
	if hasTime {
		if now := wallNow(); timeCmd.fire.After(now) {
			timeDelay = timeCmd.fire.Sub(now)
		}
	}

	switch {
	case hasTick && hasTime:
		return min(tickDelay, timeDelay), true
	case hasTick:
		return tickDelay, true
	case hasTime:
		return timeDelay, true
	default:
		return 0, false
	}
}

// WaitNextLoop blocks until the earliest queued command is due, or until
// anything is posted. It returns immediately if a command is already due.
func (l *Loop) WaitNextLoop() {
	l.queueCond.Lock()
	defer l.queueCond.Unlock()
	if d, ok := l.nextIntervalLocked(); ok {
		l.queueCond.WaitTimeout(d)
	} else {
		l.queueCond.Wait()
	}
}

// WaitNextLoopTimeout behaves like [Loop.WaitNextLoop], but waits at most t.
// It reports whether a queued command is expected to be due on return,
// i.e. the earliest command's delay was less than t. A non-positive t
// returns false immediately.
func (l *Loop) WaitNextLoopTimeout(t time.Duration) bool {
	if t <= 0 {
		return false
	}
	l.queueCond.Lock()
	defer l.queueCond.Unlock()
	if d, ok := l.nextIntervalLocked(); ok {
		delay := min(d, t)
		l.queueCond.WaitTimeout(delay)
		return delay < t
	}
	l.queueCond.WaitTimeout(t)
	return false
}

// PendingEventInterval returns the time until the earliest queued command is
// due, zero if it is already due, or (-1, false) if nothing is queued.
func (l *Loop) PendingEventInterval() (time.Duration, bool) {
	l.queueCond.Lock()
	defer l.queueCond.Unlock()
	if d, ok := l.nextIntervalLocked(); ok {
		return d, true
	}
	return -1, false
}

// IsRunning reports whether the loop is bound to a thread.
func (l *Loop) IsRunning() bool {
	return ThreadID(l.threadID.Load()) != InvalidThreadID
}

// IsLoopThread reports whether the caller is the loop's bound thread.
func (l *Loop) IsLoopThread() bool {
	thread := ThreadID(l.threadID.Load())
	if thread == InvalidThreadID {
		return false
	}
	return CurrentThreadID() == thread
}

// RunningThreadID returns the bound thread, or [InvalidThreadID].
func (l *Loop) RunningThreadID() ThreadID {
	return ThreadID(l.threadID.Load())
}

// Metrics returns a snapshot of the loop's metrics, or nil if they were not
// enabled, see [WithMetrics].
func (l *Loop) Metrics() *Metrics {
	return l.metrics.snapshot()
}

// Close releases the loop, revoking every queued command. Subsequent posts
// return revoked states, and binding fails with [ErrLoopClosed].
//
// A loop must be stopped (unbound) before it is closed. If it is not, Close
// reports the misuse, returns [ErrLoopBoundAtClose], and asks the loop to
// stop. Close is idempotent.
func (l *Loop) Close() error {
	l.queueCond.Lock()
	first := !l.closed
	l.closed = true
	states, _ := l.drainLocked()
	l.queueCond.Broadcast()
	l.queueCond.Unlock()

	revoked := l.revoke(states)

	if thread := l.RunningThreadID(); thread != InvalidThreadID {
		if first {
			l.diag.closedWhileBound(thread, revoked)
		}
		l.Stop()
		return ErrLoopBoundAtClose
	}

	return nil
}
