// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package threadloop

import (
	"errors"
	"time"

	"github.com/joeycumines/logiface"
)

// loopOptions holds configuration options for Loop creation.
type loopOptions struct {
	registry         *Registry
	logger           *logiface.Logger[logiface.Event]
	idleHook         func(*Loop)
	executionScope   func(perform func())
	diagnosticRates  map[time.Duration]int
	metricsEnabled   bool
	debugMode        bool
	noLockOSThread   bool
	noDiagnosticRate bool
}

// --- Loop Options ---

// LoopOption configures a Loop instance.
type LoopOption interface {
	applyLoop(*loopOptions) error
}

// loopOptionImpl implements LoopOption.
type loopOptionImpl struct {
	applyLoopFunc func(*loopOptions) error
}

func (l *loopOptionImpl) applyLoop(opts *loopOptions) error {
	return l.applyLoopFunc(opts)
}

// WithRegistry sets the registry the loop binds itself in. Defaults to
// [DefaultRegistry]. A nil registry is an error.
func WithRegistry(registry *Registry) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		if registry == nil {
			return errors.New("threadloop: nil registry")
		}
		opts.registry = registry
		return nil
	}}
}

// WithIdleHook sets the function [Loop.Run] calls, on the bound thread, each
// time it finds no due command. The hook is expected to integrate with some
// external wait mechanism, e.g. pumping a platform message queue, and should
// return promptly once [Loop.PendingEventInterval] reports due work.
//
// When unset, Run blocks in [Loop.WaitNextLoop] instead.
func WithIdleHook(hook func(loop *Loop)) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.idleHook = hook
		return nil
	}}
}

// WithExecutionScope wraps the execution of every operation, e.g. to run it
// inside a resource pool that must be released after each operation. The
// scope must call perform exactly once, on the calling goroutine.
func WithExecutionScope(scope func(perform func())) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.executionScope = scope
		return nil
	}}
}

// WithLogger sets the structured logger used for diagnostics. A nil logger
// (the default) disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithMetrics enables runtime metrics collection on the Loop.
// When enabled, metrics can be accessed via Loop.Metrics().
func WithMetrics(enabled bool) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.metricsEnabled = enabled
		return nil
	}}
}

// WithDebugMode makes violated invariants (misuse, such as dispatching from
// a thread the loop is not bound to) panic with an [*InvariantError],
// instead of being logged.
func WithDebugMode(enabled bool) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.debugMode = enabled
		return nil
	}}
}

// WithLockOSThread sets whether [Loop.Run] locks the bound goroutine to its
// OS thread, for the duration of the run. Defaults to true.
func WithLockOSThread(enabled bool) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.noLockOSThread = !enabled
		return nil
	}}
}

// WithDiagnosticRateLimits sets the per-category sliding window limits
// applied to repeated diagnostics, see [github.com/joeycumines/go-catrate].
// A nil or empty map disables rate limiting.
func WithDiagnosticRateLimits(rates map[time.Duration]int) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.diagnosticRates = rates
		opts.noDiagnosticRate = len(rates) == 0
		return nil
	}}
}

// defaultDiagnosticRates apply per diagnostic category, per loop.
var defaultDiagnosticRates = map[time.Duration]int{
	time.Second: 5,
	time.Minute: 60,
}

// resolveLoopOptions applies LoopOption instances to loopOptions.
func resolveLoopOptions(opts []LoopOption) (*loopOptions, error) {
	cfg := &loopOptions{
		registry:        defaultRegistry,
		diagnosticRates: defaultDiagnosticRates,
	}
	for _, opt := range opts {
		if opt == nil {
			continue // Skip nil options gracefully
		}
		if err := opt.applyLoop(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
