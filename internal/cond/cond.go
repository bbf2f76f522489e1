// Package cond implements a condition variable, paired with its own mutex,
// that supports waits bounded by a timeout or a context.
//
// [sync.Cond] has no way to abandon a wait, which the loop needs to sleep
// until the next command's deadline. Waiters instead block on a channel that
// is closed (and replaced) on each broadcast. A waiter captures the channel
// while holding the lock, so a broadcast issued after the waiter released
// the lock is never missed.
//
// Signal is implemented as a broadcast. As with any condition variable,
// waiters must re-check their predicate after waking.
package cond

import (
	"context"
	"sync"
	"time"
)

// Cond is a mutex and condition variable pair. The zero value is ready to
// use. It must not be copied after first use.
type Cond struct {
	_  [0]func()
	mu sync.Mutex
	ch chan struct{}
}

// Lock locks the associated mutex.
func (c *Cond) Lock() { c.mu.Lock() }

// Unlock unlocks the associated mutex.
func (c *Cond) Unlock() { c.mu.Unlock() }

// Broadcast wakes all current waiters. The caller must hold the lock.
func (c *Cond) Broadcast() {
	if c.ch != nil {
		close(c.ch)
		c.ch = nil
	}
}

// Signal wakes the current waiters. The caller must hold the lock.
func (c *Cond) Signal() { c.Broadcast() }

// Wait atomically unlocks, blocks until woken, then re-locks before
// returning. The caller must hold the lock.
func (c *Cond) Wait() {
	ch := c.notify()
	c.mu.Unlock()
	<-ch
	c.mu.Lock()
}

// WaitTimeout behaves like Wait, but gives up after d. It reports whether
// the wait ended due to a wakeup (true), or the timeout (false). A
// non-positive d returns false immediately, without releasing the lock.
func (c *Cond) WaitTimeout(d time.Duration) bool {
	if d <= 0 {
		return false
	}
	ch := c.notify()
	c.mu.Unlock()
	timer := time.NewTimer(d)
	var woken bool
	select {
	case <-ch:
		woken = true
	case <-timer.C:
	}
	timer.Stop()
	c.mu.Lock()
	return woken
}

// WaitContext behaves like Wait, but returns ctx.Err() if the context is
// done first. The lock is held on return in either case.
func (c *Cond) WaitContext(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ch := c.notify()
	c.mu.Unlock()
	var err error
	select {
	case <-ch:
	case <-ctx.Done():
		err = ctx.Err()
	}
	c.mu.Lock()
	return err
}

func (c *Cond) notify() chan struct{} {
	if c.ch == nil {
		c.ch = make(chan struct{})
	}
	return c.ch
}
