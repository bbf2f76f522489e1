package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"text/tabwriter"
	"time"

	threadloop "github.com/joeycumines/go-threadloop"
	"github.com/joeycumines/logiface"
)

// Result summarizes a benchmark run.
type Result struct {
	Metrics   []*threadloop.Metrics
	Elapsed   time.Duration
	Processed int64
	Revoked   int64
	Failed    int64
}

// Run executes the workload described by cfg. Each loop runs on its own
// goroutine, while producers post to them round robin.
func Run(ctx context.Context, cfg Config, logger *logiface.Logger[logiface.Event]) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	loops := make([]*threadloop.Loop, cfg.Loops)
	for i := range loops {
		loop, err := threadloop.New(
			threadloop.WithLogger(logger),
			threadloop.WithMetrics(true),
		)
		if err != nil {
			return nil, err
		}
		loops[i] = loop
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	var (
		runWg   sync.WaitGroup
		runErrs = make([]error, len(loops))
	)
	for i, loop := range loops {
		runWg.Add(1)
		go func() {
			defer runWg.Done()
			runErrs[i] = loop.Run(runCtx)
		}()
	}

	var (
		result  Result
		next    atomic.Uint64
		prodWg  sync.WaitGroup
		started = time.Now()
	)
	for p := range cfg.Producers {
		prodWg.Add(1)
		go func() {
			defer prodWg.Done()
			rng := rand.New(rand.NewPCG(uint64(p), uint64(started.UnixNano())))
			produce(ctx, cfg, rng, &result, func() *threadloop.Loop {
				return loops[next.Add(1)%uint64(len(loops))]
			}, opsFor(cfg, p))
		}()
	}
	prodWg.Wait()
	result.Elapsed = time.Since(started)

	for _, loop := range loops {
		loop.Stop()
	}
	cancel()
	runWg.Wait()

	var errs []error
	for i, loop := range loops {
		result.Metrics = append(result.Metrics, loop.Metrics())
		if err := runErrs[i]; err != nil && !errors.Is(err, context.Canceled) {
			errs = append(errs, fmt.Errorf("loop %d: %w", loop.ID(), err))
		}
		if err := loop.Close(); err != nil {
			errs = append(errs, fmt.Errorf("loop %d: %w", loop.ID(), err))
		}
	}

	return &result, errors.Join(errs...)
}

// opsFor divides cfg.Ops between the producers.
func opsFor(cfg Config, producer int) int {
	n := cfg.Ops / cfg.Producers
	if producer < cfg.Ops%cfg.Producers {
		n++
	}
	return n
}

func produce(ctx context.Context, cfg Config, rng *rand.Rand, result *Result, pick func() *threadloop.Loop, ops int) {
	var (
		executed atomic.Int64
		op       = threadloop.OperationFunc(func() { executed.Add(1) })
		states   []*threadloop.PendingState
	)

	delay := func() time.Duration {
		if cfg.MaxDelay <= 0 {
			return 0
		}
		return time.Duration(rng.Int64N(int64(cfg.MaxDelay)))
	}

	for i := range ops {
		if ctx.Err() != nil {
			break
		}
		loop := pick()
		var state *threadloop.PendingState
		switch i % 3 {
		case 0:
			state = loop.Post(op, delay())
		case 1:
			state = loop.PostAt(op, time.Now().Add(delay()))
		default:
			if loop.Process(op) {
				atomic.AddInt64(&result.Processed, 1)
			} else {
				atomic.AddInt64(&result.Failed, 1)
			}
			continue
		}
		if rng.Float64() < cfg.RevokeRatio && state.Revoke() {
			atomic.AddInt64(&result.Revoked, 1)
			continue
		}
		states = append(states, state)
	}

	for _, state := range states {
		ok, err := state.ResultContext(ctx)
		switch {
		case err != nil:
			state.Revoke()
			atomic.AddInt64(&result.Failed, 1)
		case ok:
			atomic.AddInt64(&result.Processed, 1)
		default:
			atomic.AddInt64(&result.Revoked, 1)
		}
	}
}

// WriteSummary writes a human-readable report of the result.
func WriteSummary(w io.Writer, result *Result) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "loop\tposted\texecuted\tskipped\trevoked\tpanicked\tlag p50\tlag p99\tlag max\tmax depth\t\n")
	for i, m := range result.Metrics {
		if m == nil {
			continue
		}
		fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%d\t%d\t%v\t%v\t%v\t%d\t\n",
			i,
			m.Posted,
			m.Executed,
			m.Skipped,
			m.Revoked,
			m.Panicked,
			m.Lag.P50.Round(time.Microsecond),
			m.Lag.P99.Round(time.Microsecond),
			m.Lag.Max.Round(time.Microsecond),
			max(m.TickQueue.Max, m.TimeQueue.Max),
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	var rate float64
	if result.Elapsed > 0 {
		rate = float64(result.Processed) / result.Elapsed.Seconds()
	}
	_, err := fmt.Fprintf(w, "\nprocessed=%d revoked=%d failed=%d elapsed=%v rate=%.0f/s\n",
		result.Processed,
		result.Revoked,
		result.Failed,
		result.Elapsed.Round(time.Millisecond),
		rate,
	)
	return err
}
