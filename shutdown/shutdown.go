package shutdown

import (
	"context"
	"errors"
	"time"

	"github.com/vinayprograms/pluginkit/logging"
	"github.com/vinayprograms/pluginkit/telemetry"
)

// GracePeriod is how long Initiate waits for callbacks.
const GracePeriod = time.Second

// Common errors.
var (
	// ErrNotRunning is returned by Register once shutdown has begun.
	ErrNotRunning = errors.New("shutdown already initiated; callback will not run")

	// ErrCallbackFailed indicates one or more callbacks returned an error.
	ErrCallbackFailed = errors.New("one or more shutdown callbacks failed")
)

// State is the coordinator lifecycle state.
type State int

const (
	Running State = iota
	Stopping
	Stopped
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Callback is a cleanup function. ctx is cancelled when the grace period ends.
type Callback func(ctx context.Context) error

// Destructor removes a registration. Calling it more than once has no effect.
type Destructor func()

// CallbackResult is the outcome of one callback.
type CallbackResult struct {
	// ID is the registration handle.
	ID string

	// Duration until the callback returned, or until it was abandoned.
	Duration time.Duration

	// Err is the callback's error, or a PANIC error if it panicked.
	Err error

	// Abandoned is true when the callback had not returned by the deadline.
	Abandoned bool
}

// Result is the outcome of a shutdown sequence.
type Result struct {
	// Duration of the whole sequence.
	Duration time.Duration

	// Results for each callback, in registration order.
	Results []CallbackResult

	// Err is nil when every callback returned nil in time.
	Err error
}

// Failed returns true if any callback failed or was abandoned.
func (r *Result) Failed() bool {
	return r.Err != nil
}

// Abandoned returns the number of callbacks still running at the deadline.
func (r *Result) Abandoned() int {
	n := 0
	for _, cr := range r.Results {
		if cr.Abandoned {
			n++
		}
	}
	return n
}

// FailedIDs returns the handles of callbacks that returned an error.
func (r *Result) FailedIDs() []string {
	var failed []string
	for _, cr := range r.Results {
		if cr.Err != nil {
			failed = append(failed, cr.ID)
		}
	}
	return failed
}

// Config configures the coordinator.
type Config struct {
	// OnProgress is called as each callback settles, and once per
	// abandoned callback at the deadline.
	OnProgress func(result CallbackResult)

	// Logger defaults to logging.Nop().
	Logger *logging.Logger

	// Tracer defaults to telemetry.GetTracer().
	Tracer *telemetry.Tracer
}

type registration struct {
	id string
	fn Callback
}
