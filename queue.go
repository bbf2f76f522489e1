package threadloop

import (
	"container/heap"
	"time"
)

// scheduledCommand is a queued operation, fired once its key has passed.
type scheduledCommand[K any] struct {
	operation Operation
	state     *PendingState
	fire      K
	// seq breaks ties between equal fire keys, preserving insertion order
	seq uint64
	// internal commands are issued by the loop itself, and are not metered
	internal bool
}

// commandQueue is a min-heap of scheduled commands, ordered by fire key and
// then by insertion order. It is not safe for concurrent use.
type commandQueue[K any] struct {
	less  func(a, b K) bool
	items []scheduledCommand[K]
	seq   uint64
}

func newTickQueue() commandQueue[Tick] {
	return commandQueue[Tick]{less: func(a, b Tick) bool { return a < b }}
}

func newTimeQueue() commandQueue[time.Time] {
	return commandQueue[time.Time]{less: time.Time.Before}
}

// Implement heap.Interface for commandQueue

func (q *commandQueue[K]) Len() int { return len(q.items) }

func (q *commandQueue[K]) Less(i, j int) bool {
	a, b := &q.items[i], &q.items[j]
	switch {
	case q.less(a.fire, b.fire):
		return true
	case q.less(b.fire, a.fire):
		return false
	default:
		return a.seq < b.seq
	}
}

func (q *commandQueue[K]) Swap(i, j int) { q.items[i], q.items[j] = q.items[j], q.items[i] }

func (q *commandQueue[K]) Push(x any) {
	q.items = append(q.items, x.(scheduledCommand[K]))
}

func (q *commandQueue[K]) Pop() any {
	n := len(q.items) - 1
	x := q.items[n]
	q.items[n] = scheduledCommand[K]{} // release references for GC
	q.items = q.items[:n]
	return x
}

func (q *commandQueue[K]) push(op Operation, state *PendingState, fire K) {
	q.insert(scheduledCommand[K]{operation: op, state: state, fire: fire})
}

func (q *commandQueue[K]) pushInternal(op Operation, state *PendingState, fire K) {
	q.insert(scheduledCommand[K]{operation: op, state: state, fire: fire, internal: true})
}

func (q *commandQueue[K]) insert(cmd scheduledCommand[K]) {
	q.seq++
	cmd.seq = q.seq
	heap.Push(q, cmd)
}

// peek returns the earliest command, which remains valid only until the
// queue is next modified.
func (q *commandQueue[K]) peek() (*scheduledCommand[K], bool) {
	if len(q.items) == 0 {
		return nil, false
	}
	return &q.items[0], true
}

func (q *commandQueue[K]) pop() scheduledCommand[K] {
	return heap.Pop(q).(scheduledCommand[K])
}

// drain removes and returns every command, in no particular order.
func (q *commandQueue[K]) drain() []scheduledCommand[K] {
	items := q.items
	q.items = nil
	return items
}
