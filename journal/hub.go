package journal

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/vinayprograms/pluginkit/logging"
	"github.com/vinayprograms/pluginkit/telemetry"
)

// Destructor removes a registration. Calling it more than once, or after
// the hub is closed, has no effect.
type Destructor func()

// Batch is one delivery to a listener: the events of one journal file from
// one commander, in file order.
type Batch[T any] struct {
	Cmdr   string
	File   string
	Events []T

	// Errors holds one MALFORMED_EVENT error per event left out of Events.
	Errors []error
}

// registration is a listener bound to its decoder.
type registration struct {
	deliver func(cmdr, file string, raw []string) (malformed int)
	removed atomic.Bool
}

// Hub fans journal batches out to listeners.
//
// Deliveries are serialized: every listener has returned from batch N
// before any listener sees batch N+1. Listeners must not call Deliver.
type Hub struct {
	logger  *logging.Logger
	tracer  *telemetry.Tracer
	onError func(cmdr, file string, err error)

	mu        sync.Mutex
	listeners []*registration
	closed    atomic.Bool

	deliverMu sync.Mutex
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithLogger sets the logger. Defaults to logging.Nop().
func WithLogger(l *logging.Logger) HubOption {
	return func(h *Hub) {
		h.logger = l.WithComponent("journal")
	}
}

// WithTracer sets the tracer. Defaults to telemetry.GetTracer().
func WithTracer(t *telemetry.Tracer) HubOption {
	return func(h *Hub) {
		h.tracer = t
	}
}

// WithErrorHandler is called for every event that fails to decode, in
// addition to the error being reported in the batch.
func WithErrorHandler(fn func(cmdr, file string, err error)) HubOption {
	return func(h *Hub) {
		h.onError = fn
	}
}

// NewHub creates an empty hub.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{logger: logging.Nop()}
	for _, opt := range opts {
		opt(h)
	}
	if h.tracer == nil {
		h.tracer = telemetry.GetTracer()
	}
	return h
}

// Listen registers fn to receive every batch decoded with mode.
func Listen[T any](h *Hub, mode Mode[T], fn func(Batch[T])) Destructor {
	reg := &registration{}
	reg.deliver = func(cmdr, file string, raw []string) int {
		b := Batch[T]{Cmdr: cmdr, File: file, Events: make([]T, 0, len(raw))}
		for i, r := range raw {
			ev, err := mode.Decode(r, i)
			if err != nil {
				b.Errors = append(b.Errors, err)
				h.reportMalformed(cmdr, file, err)
				continue
			}
			b.Events = append(b.Events, ev)
		}
		h.invoke(func() { fn(b) })
		return len(b.Errors)
	}
	return h.add(reg)
}

// Register adds a listener receiving raw event strings.
func (h *Hub) Register(fn func(Batch[string])) Destructor {
	return Listen(h, Raw, fn)
}

// Deliver hands one batch to every active listener. Empty batches are
// dropped.
func (h *Hub) Deliver(cmdr, file string, raw []string) {
	h.DeliverContext(context.Background(), cmdr, file, raw)
}

// DeliverContext is Deliver with a parent context for tracing.
func (h *Hub) DeliverContext(ctx context.Context, cmdr, file string, raw []string) {
	if len(raw) == 0 || h.closed.Load() {
		return
	}

	h.deliverMu.Lock()
	defer h.deliverMu.Unlock()

	_, span := h.tracer.StartJournalSpan(ctx)

	// The batch is copied so listeners never see a caller's later writes.
	events := make([]string, len(raw))
	copy(events, raw)

	h.mu.Lock()
	snapshot := make([]*registration, len(h.listeners))
	copy(snapshot, h.listeners)
	h.mu.Unlock()

	malformed := 0
	for _, reg := range snapshot {
		// A listener removed by an earlier one in this batch is skipped.
		if reg.removed.Load() || h.closed.Load() {
			continue
		}
		malformed += reg.deliver(cmdr, file, events)
	}

	h.tracer.EndJournalSpan(span, telemetry.JournalSpanOptions{
		Cmdr:      cmdr,
		File:      file,
		Events:    len(events),
		Listeners: len(snapshot),
		Malformed: malformed,
	})
	h.logger.Debug("batch_delivered", logging.Fields{
		"cmdr":      cmdr,
		"file":      file,
		"events":    len(events),
		"listeners": len(snapshot),
	})
}

// ListenerCount returns the number of active listeners.
func (h *Hub) ListenerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.listeners)
}

// Close removes every listener. Later deliveries and destructors are no-ops.
func (h *Hub) Close() {
	if h.closed.Swap(true) {
		return
	}
	h.mu.Lock()
	for _, reg := range h.listeners {
		reg.removed.Store(true)
	}
	h.listeners = nil
	h.mu.Unlock()
}

// Closed reports whether Close has been called.
func (h *Hub) Closed() bool {
	return h.closed.Load()
}

func (h *Hub) add(reg *registration) Destructor {
	h.mu.Lock()
	if h.closed.Load() {
		h.mu.Unlock()
		return func() {}
	}
	h.listeners = append(h.listeners, reg)
	h.mu.Unlock()

	return func() {
		if reg.removed.Swap(true) {
			return
		}
		h.mu.Lock()
		defer h.mu.Unlock()
		for i, existing := range h.listeners {
			if existing == reg {
				h.listeners = append(h.listeners[:i:i], h.listeners[i+1:]...)
				return
			}
		}
	}
}

func (h *Hub) invoke(call func()) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.ListenerPanic("journal", r)
		}
	}()
	call()
}

func (h *Hub) reportMalformed(cmdr, file string, err error) {
	h.logger.Warn("malformed_event", logging.Fields{
		"cmdr":  cmdr,
		"file":  file,
		"error": err,
	})
	if h.onError != nil {
		h.onError(cmdr, file, err)
	}
}
