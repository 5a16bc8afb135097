package shutdown

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vinayprograms/pluginkit/errors"
	"github.com/vinayprograms/pluginkit/logging"
	"github.com/vinayprograms/pluginkit/telemetry"
)

// Coordinator owns one plugin's shutdown callbacks.
type Coordinator struct {
	config Config
	logger *logging.Logger
	tracer *telemetry.Tracer

	mu            sync.Mutex
	state         State
	registrations []registration

	once   sync.Once
	done   chan struct{}
	result *Result
}

// NewCoordinator creates a coordinator in the Running state.
func NewCoordinator(config Config) *Coordinator {
	logger := config.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	tracer := config.Tracer
	if tracer == nil {
		tracer = telemetry.GetTracer()
	}
	return &Coordinator{
		config: config,
		logger: logger.WithComponent("shutdown"),
		tracer: tracer,
		done:   make(chan struct{}),
	}
}

// Register adds fn to the callbacks run by Initiate. Each registration is
// independent, even for the same function. Once shutdown has begun, fn is
// not kept and ErrNotRunning is returned with a no-op Destructor.
func (c *Coordinator) Register(fn Callback) (Destructor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Running {
		c.logger.Warn("late_shutdown_listener", logging.Fields{"state": c.state.String()})
		return func() {}, ErrNotRunning
	}

	id := uuid.NewString()
	c.registrations = append(c.registrations, registration{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() { c.unregister(id) })
	}, nil
}

func (c *Coordinator) unregister(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Running {
		return
	}
	for i, r := range c.registrations {
		if r.id == id {
			c.registrations = append(c.registrations[:i:i], c.registrations[i+1:]...)
			return
		}
	}
}

// State returns the current lifecycle state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Pending returns the number of registered callbacks.
func (c *Coordinator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.registrations)
}

// Initiate runs the shutdown sequence once. Concurrent and later calls wait
// for it and return the same Result. It returns within GracePeriod, or
// sooner if ctx is done first.
func (c *Coordinator) Initiate(ctx context.Context) *Result {
	c.once.Do(func() {
		c.result = c.run(ctx)
		close(c.done)
	})
	<-c.done
	return c.result
}

// Done is closed when the coordinator reaches Stopped.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Result returns the shutdown result, or nil before Stopped.
func (c *Coordinator) Result() *Result {
	select {
	case <-c.done:
		return c.result
	default:
		return nil
	}
}

type settled struct {
	index  int
	result CallbackResult
}

func (c *Coordinator) run(ctx context.Context) *Result {
	start := time.Now()

	c.mu.Lock()
	c.state = Stopping
	regs := c.registrations
	c.registrations = nil
	c.mu.Unlock()

	ctx, span := c.tracer.StartShutdownSpan(ctx)
	graceCtx, cancel := context.WithTimeout(ctx, GracePeriod)
	defer cancel()

	results := make([]CallbackResult, len(regs))
	ch := make(chan settled, len(regs))
	for i, r := range regs {
		go func(idx int, r registration) {
			began := time.Now()
			err := call(graceCtx, r.fn)
			ch <- settled{idx, CallbackResult{ID: r.id, Duration: time.Since(began), Err: err}}
		}(i, r)
	}

	received := make([]bool, len(regs))
	var failures []error
	remaining := len(regs)

wait:
	for remaining > 0 {
		select {
		case s := <-ch:
			results[s.index] = s.result
			received[s.index] = true
			remaining--
			if s.result.Err != nil {
				failures = append(failures, fmt.Errorf("%s: %w", s.result.ID, s.result.Err))
			}
			c.progress(s.result)
		case <-graceCtx.Done():
			break wait
		}
	}

	for i, r := range regs {
		if received[i] {
			continue
		}
		results[i] = CallbackResult{ID: r.id, Duration: time.Since(start), Abandoned: true}
		c.progress(results[i])
	}

	res := &Result{Duration: time.Since(start), Results: results}
	switch {
	case remaining > 0:
		res.Err = errors.ShutdownTimeout(
			fmt.Sprintf("%d of %d shutdown callbacks still running after %s", remaining, len(regs), GracePeriod),
			errors.WithMetadata("abandoned", fmt.Sprint(remaining)),
			errors.WithCause(errors.Join(failures...)),
		)
	case len(failures) > 0:
		res.Err = fmt.Errorf("%w: %w", ErrCallbackFailed, errors.Join(failures...))
	}

	c.mu.Lock()
	c.state = Stopped
	c.mu.Unlock()

	c.tracer.EndShutdownSpan(span, telemetry.ShutdownSpanOptions{
		Callbacks: len(regs),
		Failed:    len(failures),
		Abandoned: remaining,
	}, res.Err)
	c.logger.ShutdownComplete(res.Duration, len(regs), remaining)
	return res
}

func (c *Coordinator) progress(r CallbackResult) {
	if c.config.OnProgress != nil {
		c.config.OnProgress(r)
	}
}

func call(ctx context.Context, fn Callback) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.RecoverPanic(r)
		}
	}()
	return fn(ctx)
}
