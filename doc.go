// Package threadloop provides a thread-affine event loop: operations are
// posted from any goroutine, ordered by when they should fire, and executed
// exclusively on the goroutine that is running the loop.
//
// # Architecture
//
// A [Loop] owns two ordered command queues. The tick queue is keyed by a
// monotonic [Tick] (see [SystemTick]), and is fed by [Loop.Post], which
// takes a relative delay that is immune to wall-clock adjustments. The time
// queue is keyed by a wall-clock [time.Time], and is fed by [Loop.PostAt].
// Each queue is strictly ordered by fire key, with equal keys kept in
// insertion order.
//
// Every posted command returns a [PendingState], which any goroutine may use
// to poll ([PendingState.IsDone], [PendingState.IsPending],
// [PendingState.IsRevoked]), block ([PendingState.Result]), or cancel
// ([PendingState.Revoke]) the command. Cancellation only succeeds while the
// command is still queued; exactly one of Revoke and the loop's start of
// execution wins.
//
// # Thread Affinity
//
// "Thread" means goroutine throughout this package, identified by
// [ThreadID]. [Loop.Run] binds the loop to the calling goroutine (and, by
// default, pins it to its OS thread with [runtime.LockOSThread]), and
// records the binding in a [Registry]. At most one loop may be bound to a
// goroutine, and a loop may be bound to at most one goroutine at a time.
// Collaborators use [CurrentLoop] and [LoopForThread] to decide whether to
// post work or run it inline, and [Loop.Process] does that decision for
// them.
//
// # Dispatch
//
// Each [Loop.Dispatch] call pops at most one due command. When both queues
// have a due command, the tick queue wins; the time queue's command is
// picked by the next call. No lock is held while an operation executes.
//
// When a bound loop finds no due work it calls its idle hook
// ([WithIdleHook]). Without a hook, the loop blocks in [Loop.WaitNextLoop]
// until the next deadline or a new post, rather than spinning.
//
// # Usage
//
//	loop, err := threadloop.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer loop.Close()
//
//	go func() {
//	    state := loop.Post(threadloop.OperationFunc(func() {
//	        fmt.Println("runs on the loop goroutine")
//	    }), 100*time.Millisecond)
//	    state.Result()
//	    loop.Stop()
//	}()
//
//	if err := loop.Run(context.Background()); err != nil {
//	    log.Fatal(err)
//	}
package threadloop
