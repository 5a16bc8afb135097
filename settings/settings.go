package settings

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/vinayprograms/pluginkit/errors"
	"github.com/vinayprograms/pluginkit/logging"
	"github.com/vinayprograms/pluginkit/state"
	"github.com/vinayprograms/pluginkit/telemetry"
)

// Destructor removes a registration. Calling it more than once has no effect.
type Destructor func()

// ChangeFunc receives the qualified key and committed value of every write.
type ChangeFunc func(key string, value any)

type listener struct {
	fn      ChangeFunc
	removed atomic.Bool
}

// Capability is one plugin's view of the settings store.
//
// Writes made through the capability notify its listeners synchronously.
// Writes made anywhere else (another capability, another context, the host)
// reach the listeners from the store's change feed, on a separate goroutine,
// for every key the plugin may read.
//
// Listener bookkeeping is safe for concurrent use. Notifications for
// concurrent writes to the same key are ordered by the caller, not by
// the capability.
type Capability struct {
	pluginID string
	store    state.Store
	logger   *logging.Logger
	tracer   *telemetry.Tracer

	// origin tags this capability's writes so their echoes are skipped.
	origin string
	stop   context.CancelFunc

	mu        sync.Mutex
	listeners []*listener
}

// Option configures a Capability.
type Option func(*Capability)

// WithLogger sets the logger. Defaults to logging.Nop().
func WithLogger(l *logging.Logger) Option {
	return func(c *Capability) {
		c.logger = l.WithComponent("settings").WithPluginID(c.pluginID)
	}
}

// WithTracer sets the tracer. Defaults to telemetry.GetTracer().
func WithTracer(t *telemetry.Tracer) Option {
	return func(c *Capability) {
		c.tracer = t
	}
}

// New creates a settings capability for pluginID over store and starts
// following changes made by other writers. Close stops following.
func New(pluginID string, store state.Store, opts ...Option) *Capability {
	c := &Capability{
		pluginID: pluginID,
		store:    store,
		logger:   logging.Nop(),
		origin:   uuid.NewString(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.tracer == nil {
		c.tracer = telemetry.GetTracer()
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.stop = cancel
	changes, err := store.Watch(ctx, "*")
	if err != nil {
		c.logger.Warn("settings_watch_failed", logging.Fields{"error": err})
		return c
	}
	go c.follow(ctx, changes)
	return c
}

// Close stops delivering changes made by other writers. Writes through the
// capability still notify. Safe to call more than once.
func (c *Capability) Close() {
	c.stop()
}

// follow forwards foreign changes the plugin is allowed to read.
func (c *Capability) follow(ctx context.Context, changes <-chan *state.Entry) {
	for e := range changes {
		if ctx.Err() != nil {
			return
		}
		if e.Origin == c.origin {
			continue
		}
		res, err := Resolve(c.pluginID, e.Key)
		if err != nil || !res.CanRead {
			continue
		}
		c.notify(e.Key, e.Value)
	}
}

// PluginID returns the identity the capability resolves keys against.
func (c *Capability) PluginID() string {
	return c.pluginID
}

// Resolve qualifies key for this capability's plugin.
func (c *Capability) Resolve(key string) (Resolution, error) {
	return Resolve(c.pluginID, key)
}

// Get reads the current value of key. ok is false when the key holds no value.
func (c *Capability) Get(ctx context.Context, key string) (value any, ok bool, err error) {
	ctx, span := c.tracer.StartSettingsSpan(ctx, "get")
	res, err := c.Resolve(key)
	defer func() {
		c.tracer.EndSettingsSpan(span, telemetry.SettingsSpanOptions{
			PluginID:     c.pluginID,
			Key:          key,
			QualifiedKey: res.Key,
			Found:        ok,
			Value:        fmt.Sprint(value),
		}, err)
	}()

	if err != nil {
		return nil, false, c.fail("get", key, res.Key, err)
	}
	if !res.CanRead {
		return nil, false, c.fail("get", key, res.Key,
			errors.PermissionDenied(fmt.Sprintf("plugin %q may not read %q", c.pluginID, res.Key)))
	}

	value, ok, err = c.store.Read(ctx, res.Key)
	if err != nil {
		return nil, false, c.fail("get", key, res.Key, storeError(err, "read setting"))
	}
	return value, ok, nil
}

// Write stores value under key and returns the committed value. Every
// registered listener is notified with the qualified key before Write
// returns. A nil value clears the key.
func (c *Capability) Write(ctx context.Context, key string, value any) (committed any, err error) {
	ctx, span := c.tracer.StartSettingsSpan(ctx, "write")
	res, err := c.Resolve(key)
	notified := 0
	defer func() {
		c.tracer.EndSettingsSpan(span, telemetry.SettingsSpanOptions{
			PluginID:     c.pluginID,
			Key:          key,
			QualifiedKey: res.Key,
			Found:        committed != nil,
			Listeners:    notified,
			Value:        fmt.Sprint(committed),
		}, err)
	}()

	if err != nil {
		return nil, c.fail("write", key, res.Key, err)
	}
	if !res.CanWrite {
		return nil, c.fail("write", key, res.Key,
			errors.PermissionDenied(fmt.Sprintf("plugin %q may not write %q", c.pluginID, res.Key)))
	}

	committed, err = c.store.Write(state.WithOrigin(ctx, c.origin), res.Key, value)
	if err != nil {
		return nil, c.fail("write", key, res.Key, storeError(err, "write setting"))
	}

	notified = c.notify(res.Key, committed)
	return committed, nil
}

// OnChange registers fn for every committed change to a key the plugin may
// read, for any key. Filtering is up to fn. Once the returned Destructor has
// run, fn is not called again, even by a notification already in progress.
func (c *Capability) OnChange(fn ChangeFunc) Destructor {
	l := &listener{fn: fn}

	c.mu.Lock()
	c.listeners = append(c.listeners, l)
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.removed.Store(true)
			c.mu.Lock()
			defer c.mu.Unlock()
			for i, existing := range c.listeners {
				if existing == l {
					c.listeners = append(c.listeners[:i:i], c.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// ListenerCount returns the number of active change listeners.
func (c *Capability) ListenerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.listeners)
}

func (c *Capability) notify(key string, value any) int {
	c.mu.Lock()
	snapshot := make([]*listener, len(c.listeners))
	copy(snapshot, c.listeners)
	c.mu.Unlock()

	notified := 0
	for _, l := range snapshot {
		if l.removed.Load() {
			continue
		}
		c.invoke(l, key, value)
		notified++
	}
	return notified
}

func (c *Capability) invoke(l *listener, key string, value any) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.ListenerPanic("settings_changed", r)
		}
	}()
	l.fn(key, value)
}

// fail decorates err with the key context and logs it.
func (c *Capability) fail(op, key, qualified string, err error) error {
	wrapped := errors.Wrap(err, fmt.Sprintf("%s %q", op, key),
		errors.WithPluginID(c.pluginID),
		errors.WithMetadata("plugin_id", c.pluginID),
		errors.WithMetadata("key", key),
		errors.WithMetadata("qualified_key", qualified),
	)
	c.logger.AccessDenied(op, key, qualified, wrapped)
	return wrapped
}

func storeError(err error, message string) error {
	switch {
	case stderrors.Is(err, state.ErrInvalidKey):
		return errors.InvalidKey(message, errors.WithCause(err))
	case stderrors.Is(err, state.ErrClosed):
		return errors.New(errors.ErrCodeUnavailable, message, errors.WithCause(err))
	default:
		return errors.Wrap(err, message)
	}
}
