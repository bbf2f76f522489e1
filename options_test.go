package threadloop

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveLoopOptions_defaults(t *testing.T) {
	opts, err := resolveLoopOptions(nil)
	require.NoError(t, err)
	assert.Same(t, defaultRegistry, opts.registry)
	assert.Nil(t, opts.logger)
	assert.Nil(t, opts.idleHook)
	assert.Nil(t, opts.executionScope)
	assert.False(t, opts.metricsEnabled)
	assert.False(t, opts.debugMode)
	assert.False(t, opts.noLockOSThread)
	assert.Equal(t, defaultDiagnosticRates, opts.diagnosticRates)
}

func TestResolveLoopOptions_nilOptionSkipped(t *testing.T) {
	opts, err := resolveLoopOptions([]LoopOption{nil, WithMetrics(true), nil})
	require.NoError(t, err)
	assert.True(t, opts.metricsEnabled)
}

func TestWithRegistry_nil(t *testing.T) {
	l, err := New(WithRegistry(nil))
	assert.Nil(t, l)
	assert.EqualError(t, err, `threadloop: nil registry`)
}

func TestNew_allOptionsCombined(t *testing.T) {
	var log eventLog
	r := NewRegistry()
	l, err := New(
		WithRegistry(r),
		WithLogger(log.logger()),
		WithIdleHook(func(*Loop) {}),
		WithExecutionScope(func(perform func()) { perform() }),
		WithMetrics(true),
		WithDebugMode(true),
		WithLockOSThread(false),
		WithDiagnosticRateLimits(map[time.Duration]int{time.Second: 1}),
	)
	require.NoError(t, err)
	defer l.Close()

	assert.Same(t, r, l.registry)
	assert.NotNil(t, l.idleHook)
	assert.NotNil(t, l.executionScope)
	assert.NotNil(t, l.metrics)
	assert.NotNil(t, l.Metrics())
	assert.True(t, l.diag.debugMode)
	assert.NotNil(t, l.diag.logger)
	assert.NotNil(t, l.diag.limiter)
	assert.False(t, l.lockOSThread)
}

func TestWithMetrics_disabled(t *testing.T) {
	l, err := New()
	require.NoError(t, err)
	assert.Nil(t, l.Metrics())
	assert.True(t, l.lockOSThread)
}

func TestWithDiagnosticRateLimits_disabled(t *testing.T) {
	for _, rates := range []map[time.Duration]int{nil, {}} {
		l, err := New(WithDiagnosticRateLimits(rates))
		require.NoError(t, err)
		assert.Nil(t, l.diag.limiter)
	}
}
