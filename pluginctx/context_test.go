package pluginctx

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/vinayprograms/pluginkit/bus"
	"github.com/vinayprograms/pluginkit/errors"
	"github.com/vinayprograms/pluginkit/journal"
	"github.com/vinayprograms/pluginkit/settings"
	"github.com/vinayprograms/pluginkit/shutdown"
	"github.com/vinayprograms/pluginkit/state"
)

type recordingOpener struct {
	mu   sync.Mutex
	urls []string
}

func (o *recordingOpener) OpenURL(ctx context.Context, rawURL string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.urls = append(o.urls, rawURL)
	return nil
}

func newTestContext(t *testing.T, id string, store state.Store) (*Context, *recordingOpener) {
	t.Helper()
	opener := &recordingOpener{}
	c, err := New(Options{
		Manifest:   Manifest{ID: id, Name: "Test " + id, Version: "0.1.0"},
		AssetsBase: "http://localhost:41234/plugins/" + id,
		Store:      store,
		Opener:     opener,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c, opener
}

func TestNew_Validation(t *testing.T) {
	store := state.NewMemoryStore()
	defer store.Close()

	tests := []struct {
		name string
		opts Options
	}{
		{"missing id", Options{AssetsBase: "/a", Store: store}},
		{"dotted id", Options{Manifest: Manifest{ID: "a.b"}, AssetsBase: "/a", Store: store}},
		{"missing store", Options{Manifest: Manifest{ID: "alpha"}, AssetsBase: "/a"}},
		{"bad assets base", Options{Manifest: Manifest{ID: "alpha"}, AssetsBase: "relative", Store: store}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.opts); !errors.Is(err, errors.ErrCodeInvalidInput) {
				t.Errorf("New = %v, want INVALID_INPUT", err)
			}
		})
	}
}

func TestPluginMetaIsCopy(t *testing.T) {
	store := state.NewMemoryStore()
	defer store.Close()
	c, _ := newTestContext(t, "alpha", store)

	meta := c.PluginMeta()
	meta.ID = "mallory"

	if c.PluginMeta().ID != "alpha" {
		t.Error("PluginMeta should not be mutable through its return value")
	}
	if c.PluginMeta().DisplayName() != "Test alpha" {
		t.Errorf("DisplayName() = %q", c.PluginMeta().DisplayName())
	}
	if (Manifest{ID: "x"}).DisplayName() != "x" {
		t.Error("DisplayName should fall back to ID")
	}
}

func TestAssetsBaseStable(t *testing.T) {
	store := state.NewMemoryStore()
	defer store.Close()
	c, _ := newTestContext(t, "alpha", store)

	if c.AssetsBase() != "http://localhost:41234/plugins/alpha/" {
		t.Errorf("AssetsBase() = %q", c.AssetsBase())
	}
	if c.AssetsBase() != c.Assets().Base() {
		t.Error("AssetsBase and Assets().Base() differ")
	}
}

func TestSettingsAcrossPlugins(t *testing.T) {
	store := state.NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	alpha, _ := newTestContext(t, "alpha", store)
	beta, _ := newTestContext(t, "beta", store)

	seen := make(chan string, 8)
	alpha.Settings().OnChange(func(key string, _ any) { seen <- key })

	if _, err := beta.Settings().Write(ctx, ".secret", "hidden"); err != nil {
		t.Fatalf("beta write private: %v", err)
	}
	if _, err := beta.Settings().Write(ctx, ".SHARED", "hello"); err != nil {
		t.Fatalf("beta write: %v", err)
	}
	v, ok, err := alpha.Settings().Get(ctx, "beta.SHARED")
	if err != nil || !ok || v != "hello" {
		t.Errorf("alpha reads beta.SHARED = (%v, %v, %v)", v, ok, err)
	}
	if _, err := alpha.Settings().Write(ctx, "beta.SHARED", "x"); !errors.Is(err, errors.ErrCodePermissionDenied) {
		t.Errorf("alpha write = %v, want PERMISSION_DENIED", err)
	}

	// Only the public key reaches alpha; the private write comes first, so
	// the first key seen must be the public one.
	select {
	case key := <-seen:
		if key != "beta.SHARED" {
			t.Errorf("alpha notified of %q, want beta.SHARED", key)
		}
	case <-time.After(time.Second):
		t.Fatal("alpha not notified of beta's public write")
	}
	select {
	case key := <-seen:
		t.Errorf("unexpected notification %q", key)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSettingsPaneWriteReachesMainView(t *testing.T) {
	store := state.NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	view, _ := newTestContext(t, "alpha", store)
	pane, err := NewSettingsContext(Options{
		Manifest:   Manifest{ID: "alpha"},
		AssetsBase: "/plugins/alpha/",
		Store:      store,
		Opener:     &recordingOpener{},
	})
	if err != nil {
		t.Fatalf("NewSettingsContext: %v", err)
	}

	theme, err := settings.Bind(ctx, view.Settings(), ".theme")
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	defer theme.Close()
	updated := make(chan any, 4)
	theme.OnUpdate(func(v any) { updated <- v })

	var mu sync.Mutex
	paneCalls := 0
	pane.Settings().OnChange(func(string, any) {
		mu.Lock()
		paneCalls++
		mu.Unlock()
	})

	if _, err := pane.Settings().Write(ctx, ".theme", "dark"); err != nil {
		t.Fatalf("pane write: %v", err)
	}

	select {
	case v := <-updated:
		if v != "dark" {
			t.Errorf("main view got %v, want dark", v)
		}
	case <-time.After(time.Second):
		t.Fatal("main view not notified of the pane's write")
	}
	if theme.Value() != "dark" {
		t.Errorf("Value = %v, want dark", theme.Value())
	}

	// The writer's own listeners hear the write exactly once.
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if paneCalls != 1 {
		t.Errorf("pane notified %d times, want 1", paneCalls)
	}
}

func TestShutdownStopsFollowingSettings(t *testing.T) {
	store := state.NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	alpha, _ := newTestContext(t, "alpha", store)
	seen := make(chan string, 4)
	alpha.Settings().OnChange(func(key string, _ any) { seen <- key })

	alpha.RequestShutdown(ctx)
	time.Sleep(20 * time.Millisecond)
	store.Write(ctx, "alpha.theme", "dark")

	select {
	case key := <-seen:
		t.Errorf("notified of %q after shutdown", key)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestOpenURL(t *testing.T) {
	store := state.NewMemoryStore()
	defer store.Close()
	c, opener := newTestContext(t, "alpha", store)
	ctx := context.Background()

	for _, u := range []string{"https://inara.cz/elite/", "http://localhost:8080/x?y=1"} {
		if err := c.OpenURL(ctx, u); err != nil {
			t.Errorf("OpenURL(%q): %v", u, err)
		}
	}
	for _, u := range []string{"file:///etc/passwd", "javascript:alert(1)", "ftp://host/x", "https://", "not a url", "mailto:a@b.c"} {
		if err := c.OpenURL(ctx, u); !errors.Is(err, errors.ErrCodeInvalidInput) {
			t.Errorf("OpenURL(%q) = %v, want INVALID_INPUT", u, err)
		}
	}
	if len(opener.urls) != 2 {
		t.Errorf("opener received %v", opener.urls)
	}
}

func TestJournalDelivery(t *testing.T) {
	store := state.NewMemoryStore()
	defer store.Close()
	c, _ := newTestContext(t, "alpha", store)

	var raw []journal.Batch[string]
	c.RegisterEventListener(func(b journal.Batch[string]) { raw = append(raw, b) })
	var names []string
	journal.Listen(c.Journal(), journal.JSONSimple, func(b journal.Batch[journal.Event]) {
		for _, ev := range b.Events {
			names = append(names, ev.Name())
		}
	})

	c.DeliverJournalBatch("A", "f1", []string{`{"event":"LoadGame"}`, `{"event":"Location"}`})
	c.DeliverJournalBatch("B", "f2", nil)

	if len(raw) != 1 || len(raw[0].Events) != 2 {
		t.Errorf("raw batches = %+v", raw)
	}
	if len(names) != 2 || names[0] != "LoadGame" || names[1] != "Location" {
		t.Errorf("names = %v", names)
	}
}

func TestRequestShutdown(t *testing.T) {
	store := state.NewMemoryStore()
	defer store.Close()
	c, _ := newTestContext(t, "alpha", store)

	cleaned := false
	if _, err := c.RegisterShutdownListener(func(ctx context.Context) error {
		cleaned = true
		return nil
	}); err != nil {
		t.Fatalf("RegisterShutdownListener: %v", err)
	}
	events := 0
	c.RegisterEventListener(func(journal.Batch[string]) { events++ })

	res := c.RequestShutdown(context.Background())
	if res.Err != nil || !cleaned {
		t.Errorf("result = %+v cleaned=%v", res, cleaned)
	}
	if c.State() != shutdown.Stopped {
		t.Errorf("State() = %v", c.State())
	}

	// The journal is torn down with the context.
	c.DeliverJournalBatch("A", "f1", []string{"{}"})
	if events != 0 {
		t.Error("batch delivered after shutdown")
	}

	stop, err := c.RegisterShutdownListener(func(ctx context.Context) error { return nil })
	if !stderrors.Is(err, shutdown.ErrNotRunning) {
		t.Errorf("late registration = %v, want ErrNotRunning", err)
	}
	stop()
}

func TestSettingsContextShutdown(t *testing.T) {
	store := state.NewMemoryStore()
	defer store.Close()

	sc, err := NewSettingsContext(Options{
		Manifest:   Manifest{ID: "alpha"},
		AssetsBase: "/plugins/alpha/",
		Store:      store,
		Opener:     &recordingOpener{},
	})
	if err != nil {
		t.Fatalf("NewSettingsContext: %v", err)
	}

	sc.RegisterShutdownListener(func(ctx context.Context) error { return stderrors.New("flush failed") })
	res := sc.RequestShutdown(context.Background())
	if !stderrors.Is(res.Err, shutdown.ErrCallbackFailed) {
		t.Errorf("Err = %v, want ErrCallbackFailed", res.Err)
	}
}

func TestConnectBus(t *testing.T) {
	store := state.NewMemoryStore()
	defer store.Close()
	b := bus.NewMemoryBus(bus.DefaultConfig())
	defer b.Close()

	c, _ := newTestContext(t, "alpha", store)
	got := make(chan journal.Batch[string], 1)
	c.RegisterEventListener(func(batch journal.Batch[string]) { got <- batch })

	if err := c.ConnectBus(b, "journal.alpha"); err != nil {
		t.Fatalf("ConnectBus: %v", err)
	}
	if err := journal.PublishBatch(context.Background(), b, "journal.alpha", "A", "f1", []string{"e1"}); err != nil {
		t.Fatalf("PublishBatch: %v", err)
	}

	select {
	case batch := <-got:
		if batch.Cmdr != "A" || len(batch.Events) != 1 {
			t.Errorf("batch = %+v", batch)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for bus batch")
	}

	c.RequestShutdown(context.Background())
	if err := c.ConnectBus(b, "journal.alpha"); !stderrors.Is(err, shutdown.ErrNotRunning) {
		t.Errorf("ConnectBus after shutdown = %v", err)
	}
}
