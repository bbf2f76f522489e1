package threadloop

import (
	"fmt"
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
)

// diagnostic categories, each rate limited independently
const (
	categoryBind      = `bind`
	categoryUnbind    = `unbind`
	categoryClose     = `close`
	categoryDispatch  = `dispatch`
	categoryPanic     = `panic`
	categoryInvariant = `invariant`
	categoryScope     = `scope`
)

// diagnostics reports misuse and failures for a single loop. Logging is
// disabled when the logger is nil.
type diagnostics struct {
	logger    *logiface.Logger[logiface.Event]
	limiter   *catrate.Limiter
	loopID    uint64
	debugMode bool
}

func newDiagnostics(loopID uint64, opts *loopOptions) diagnostics {
	d := diagnostics{
		logger:    opts.logger,
		loopID:    loopID,
		debugMode: opts.debugMode,
	}
	if !opts.noDiagnosticRate && len(opts.diagnosticRates) != 0 {
		d.limiter = catrate.NewLimiter(opts.diagnosticRates)
	}
	return d
}

// allow registers an event for category, returning false if it is limited.
func (x *diagnostics) allow(category string) bool {
	if x.limiter == nil {
		return true
	}
	_, ok := x.limiter.Allow(category)
	return ok
}

// build returns a builder for category, or nil if disabled or rate limited.
func (x *diagnostics) build(level logiface.Level, category string) *logiface.Builder[logiface.Event] {
	b := x.logger.Build(level)
	if !b.Enabled() {
		return nil
	}
	if !x.allow(category) {
		b.Release()
		return nil
	}
	return b.
		Uint64(`loop`, x.loopID).
		Str(`category`, category)
}

// invariant reports a violated invariant, panicking in debug mode.
func (x *diagnostics) invariant(format string, args ...any) {
	err := &InvariantError{Message: fmt.Sprintf(format, args...)}
	if x.debugMode {
		panic(err)
	}
	x.build(logiface.LevelCritical, categoryInvariant).
		Err(err).
		Log(`threadloop: invariant violated`)
}

func (x *diagnostics) bindFailed(thread ThreadID, err error) {
	x.build(logiface.LevelWarning, categoryBind).
		Stringer(`thread`, thread).
		Err(err).
		Log(`threadloop: bind thread failed`)
}

func (x *diagnostics) bound(thread ThreadID) {
	x.build(logiface.LevelDebug, categoryBind).
		Stringer(`thread`, thread).
		Int64(`os_thread`, osThreadID()).
		Log(`threadloop: bound thread`)
}

func (x *diagnostics) unbound(thread ThreadID, ran time.Duration) {
	x.build(logiface.LevelDebug, categoryUnbind).
		Stringer(`thread`, thread).
		Dur(`bound_for`, ran).
		Log(`threadloop: unbound thread`)
}

func (x *diagnostics) closedWhileBound(thread ThreadID, revoked int) {
	x.build(logiface.LevelCritical, categoryClose).
		Stringer(`thread`, thread).
		Int(`revoked`, revoked).
		Err(ErrLoopBoundAtClose).
		Log(`threadloop: loop must be stopped before it is closed`)
}

func (x *diagnostics) operationPanicked(value any) {
	x.build(logiface.LevelError, categoryPanic).
		Err(PanicError{Value: value}).
		Log(`threadloop: operation panicked`)
}
