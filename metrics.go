package threadloop

import (
	"sync"
	"sync/atomic"
	"time"
)

// Metrics is a snapshot of a loop's runtime statistics, see [Loop.Metrics].
//
// Example:
//
//	loop, _ := threadloop.New(threadloop.WithMetrics(true))
//	// ...
//	m := loop.Metrics()
//	fmt.Printf("executed=%d p99 lag=%v\n", m.Executed, m.Lag.P99)
type Metrics struct {
	// Lag is the delay between a command's fire time and the start of its
	// execution.
	Lag LatencyMetrics

	// Queue depth metrics, sampled on every post and dispatch.
	TickQueue QueueMetrics
	TimeQueue QueueMetrics

	// Posted counts commands enqueued by Post and PostAt. Commands the loop
	// queues for itself, such as the one issued by Stop, are not counted.
	Posted uint64
	// Dispatched counts posted commands popped by Dispatch.
	Dispatched uint64
	// Executed counts dispatched commands whose operation ran.
	Executed uint64
	// Skipped counts dispatched commands that had already been revoked.
	Skipped uint64
	// Revoked counts posted commands that were revoked by RevokeAll or Close
	// while still pending, plus posts rejected by a closed loop.
	Revoked uint64
	// Inline counts operations run synchronously by Process.
	Inline uint64
	// Panicked counts operations that panicked.
	Panicked uint64
}

// LatencyMetrics summarizes a latency distribution. Percentiles are
// streaming estimates.
type LatencyMetrics struct {
	P50   time.Duration
	P90   time.Duration
	P95   time.Duration
	P99   time.Duration
	Max   time.Duration
	Mean  time.Duration
	Count int
}

// QueueMetrics tracks the depth of one command queue.
type QueueMetrics struct {
	Current int
	Max     int
	// Avg is an exponential moving average with alpha=0.1, initialized to
	// the first observed depth.
	Avg float64

	initialized bool
}

func (q *QueueMetrics) update(depth int) {
	if !q.initialized {
		q.Avg = float64(depth)
		q.initialized = true
	} else {
		q.Avg = 0.9*q.Avg + 0.1*float64(depth)
	}
	q.Current = depth
	q.Max = max(q.Max, depth)
}

// lagPercentiles are the quantiles tracked for dispatch lag, in the order of
// the LatencyMetrics fields.
var lagPercentiles = [...]float64{0.50, 0.90, 0.95, 0.99}

// loopMetrics is the live, thread-safe counterpart of Metrics.
type loopMetrics struct {
	lag        *quantiles
	tickQueue  QueueMetrics
	timeQueue  QueueMetrics
	posted     atomic.Uint64
	dispatched atomic.Uint64
	executed   atomic.Uint64
	skipped    atomic.Uint64
	revoked    atomic.Uint64
	inline     atomic.Uint64
	panicked   atomic.Uint64
	mu         sync.Mutex
}

func newLoopMetrics() *loopMetrics {
	return &loopMetrics{lag: newQuantiles(lagPercentiles[:]...)}
}

// queueDepths is called with the loop's queue lock held.
func (x *loopMetrics) queueDepths(tick, wall int) {
	if x == nil {
		return
	}
	x.mu.Lock()
	x.tickQueue.update(tick)
	x.timeQueue.update(wall)
	x.mu.Unlock()
}

func (x *loopMetrics) recordLag(d time.Duration) {
	if x == nil {
		return
	}
	x.mu.Lock()
	x.lag.observe(float64(max(d, 0)))
	x.mu.Unlock()
}

func (x *loopMetrics) snapshot() *Metrics {
	if x == nil {
		return nil
	}
	m := &Metrics{
		Posted:     x.posted.Load(),
		Dispatched: x.dispatched.Load(),
		Executed:   x.executed.Load(),
		Skipped:    x.skipped.Load(),
		Revoked:    x.revoked.Load(),
		Inline:     x.inline.Load(),
		Panicked:   x.panicked.Load(),
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	m.TickQueue = x.tickQueue
	m.TimeQueue = x.timeQueue
	m.Lag = LatencyMetrics{
		P50:   time.Duration(x.lag.quantile(0)),
		P90:   time.Duration(x.lag.quantile(1)),
		P95:   time.Duration(x.lag.quantile(2)),
		P99:   time.Duration(x.lag.quantile(3)),
		Max:   time.Duration(x.lag.maximum()),
		Mean:  time.Duration(x.lag.mean()),
		Count: x.lag.count,
	}
	return m
}
