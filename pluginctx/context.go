package pluginctx

import (
	"context"
	"sync"

	"github.com/vinayprograms/pluginkit/bus"
	"github.com/vinayprograms/pluginkit/errors"
	"github.com/vinayprograms/pluginkit/journal"
	"github.com/vinayprograms/pluginkit/logging"
	"github.com/vinayprograms/pluginkit/settings"
	"github.com/vinayprograms/pluginkit/shutdown"
	"github.com/vinayprograms/pluginkit/state"
	"github.com/vinayprograms/pluginkit/telemetry"
)

// Options configures a context. Manifest, AssetsBase and Store are required.
type Options struct {
	Manifest   Manifest
	AssetsBase string

	// Store is the host settings store, shared by every plugin's context.
	Store state.Store

	// Opener defaults to BrowserOpener.
	Opener URLOpener

	// Logger defaults to logging.Nop().
	Logger *logging.Logger

	// Tracer defaults to telemetry.GetTracer().
	Tracer *telemetry.Tracer
}

// SettingsContext is the settings-only surface given to a plugin.
type SettingsContext struct {
	manifest Manifest
	assets   Assets
	settings *settings.Capability
	coord    *shutdown.Coordinator
	opener   URLOpener
	logger   *logging.Logger
}

// NewSettingsContext builds a settings-only context.
func NewSettingsContext(opts Options) (*SettingsContext, error) {
	if err := opts.Manifest.Validate(); err != nil {
		return nil, err
	}
	if opts.Store == nil {
		return nil, errors.InvalidInput("settings store is required")
	}
	assets, err := NewAssets(opts.AssetsBase)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = telemetry.GetTracer()
	}
	opener := opts.Opener
	if opener == nil {
		opener = BrowserOpener{}
	}
	id := opts.Manifest.ID

	return &SettingsContext{
		manifest: opts.Manifest,
		assets:   assets,
		settings: settings.New(id, opts.Store, settings.WithLogger(logger), settings.WithTracer(tracer)),
		coord: shutdown.NewCoordinator(shutdown.Config{
			Logger: logger.WithPluginID(id),
			Tracer: tracer,
		}),
		opener: opener,
		logger: logger.WithPluginID(id),
	}, nil
}

// Settings returns the plugin's settings capability.
func (c *SettingsContext) Settings() *settings.Capability {
	return c.settings
}

// AssetsBase returns the asset root URL, ending in "/".
func (c *SettingsContext) AssetsBase() string {
	return c.assets.Base()
}

// Assets returns the asset URL builder.
func (c *SettingsContext) Assets() Assets {
	return c.assets
}

// PluginMeta returns a copy of the plugin's manifest.
func (c *SettingsContext) PluginMeta() Manifest {
	return c.manifest
}

// RegisterShutdownListener adds a cleanup callback. Once shutdown has begun
// the callback is not kept and shutdown.ErrNotRunning is returned.
func (c *SettingsContext) RegisterShutdownListener(fn shutdown.Callback) (func(), error) {
	return c.coord.Register(fn)
}

// OpenURL opens an http or https URL in the user's browser. Every plugin
// may do this.
func (c *SettingsContext) OpenURL(ctx context.Context, rawURL string) error {
	u, err := ValidateURL(rawURL)
	if err != nil {
		c.logger.Warn("open_url_rejected", logging.Fields{"url": rawURL, "error": err})
		return err
	}
	c.logger.Debug("open_url", logging.Fields{"url": u.String()})
	return c.opener.OpenURL(ctx, u.String())
}

// State returns the shutdown lifecycle state.
func (c *SettingsContext) State() shutdown.State {
	return c.coord.State()
}

// RequestShutdown runs the plugin's shutdown callbacks, then stops following
// settings changes made elsewhere. It returns within shutdown.GracePeriod and
// never fails; problems are reported in the result.
func (c *SettingsContext) RequestShutdown(ctx context.Context) *shutdown.Result {
	res := c.coord.Initiate(ctx)
	c.settings.Close()
	return res
}

// Context is the full surface given to a plugin.
type Context struct {
	*SettingsContext

	hub *journal.Hub

	mu    sync.Mutex
	feeds []*journal.Feed
}

// New builds a full plugin context.
func New(opts Options) (*Context, error) {
	sc, err := NewSettingsContext(opts)
	if err != nil {
		return nil, err
	}
	hubOpts := []journal.HubOption{journal.WithLogger(sc.logger)}
	if opts.Tracer != nil {
		hubOpts = append(hubOpts, journal.WithTracer(opts.Tracer))
	}
	return &Context{
		SettingsContext: sc,
		hub:             journal.NewHub(hubOpts...),
	}, nil
}

// RegisterEventListener receives every journal batch as raw strings. Use
// journal.Listen on Journal() to pick a decoding mode.
func (c *Context) RegisterEventListener(fn func(journal.Batch[string])) func() {
	return c.hub.Register(fn)
}

// Journal returns the context's journal hub.
func (c *Context) Journal() *journal.Hub {
	return c.hub
}

// DeliverJournalBatch hands one batch from the host to the plugin.
func (c *Context) DeliverJournalBatch(cmdr, file string, events []string) {
	c.hub.Deliver(cmdr, file, events)
}

// ConnectBus feeds batches published on subject into the context until
// shutdown.
func (c *Context) ConnectBus(b bus.MessageBus, subject string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hub.Closed() || c.State() != shutdown.Running {
		return shutdown.ErrNotRunning
	}
	feed, err := journal.NewFeed(b, subject, c.hub, c.logger)
	if err != nil {
		return err
	}
	c.feeds = append(c.feeds, feed)
	return nil
}

// RequestShutdown runs the shutdown callbacks, then stops journal delivery.
func (c *Context) RequestShutdown(ctx context.Context) *shutdown.Result {
	res := c.SettingsContext.RequestShutdown(ctx)

	c.mu.Lock()
	feeds := c.feeds
	c.feeds = nil
	c.mu.Unlock()

	for _, f := range feeds {
		f.Stop()
	}
	c.hub.Close()
	return res
}
