package settings

import (
	"context"
	"sync"
	"sync/atomic"
)

// Binding tracks a single setting: its current value, whether the initial
// load finished, and every change to it, whoever made it.
type Binding struct {
	c   *Capability
	res Resolution

	mu       sync.Mutex
	value    any
	loaded   bool
	updates  []*update
	unlisten Destructor
}

type update struct {
	fn      func(value any)
	removed atomic.Bool
}

// Bind resolves key once, loads its current value and starts following
// changes to it. The initial load failing leaves nothing registered.
func Bind(ctx context.Context, c *Capability, key string) (*Binding, error) {
	res, err := c.Resolve(key)
	if err != nil {
		return nil, c.fail("bind", key, res.Key, err)
	}

	b := &Binding{c: c, res: res}
	b.unlisten = c.OnChange(func(k string, v any) {
		if k != b.res.Key {
			return
		}
		b.set(v)
	})

	v, _, err := c.Get(ctx, res.Key)
	if err != nil {
		b.unlisten()
		return nil, err
	}

	b.mu.Lock()
	// A write that raced the initial read already holds the newer value.
	if !b.loaded {
		b.value = v
		b.loaded = true
	}
	b.mu.Unlock()
	return b, nil
}

// Key returns the qualified key being followed.
func (b *Binding) Key() string {
	return b.res.Key
}

// Writable reports whether the calling plugin may write this key.
func (b *Binding) Writable() bool {
	return b.res.CanWrite
}

// Loaded reports whether the initial read completed. A loaded binding with a
// nil Value means the setting is absent.
func (b *Binding) Loaded() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loaded
}

// Value returns the last known value.
func (b *Binding) Value() any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.value
}

// Write stores v through the capability. The binding's value is updated by
// the change notification.
func (b *Binding) Write(ctx context.Context, v any) error {
	_, err := b.c.Write(ctx, b.res.Key, v)
	return err
}

// OnUpdate registers fn for every change of this key. Once the returned
// Destructor has run, fn is not called again.
func (b *Binding) OnUpdate(fn func(value any)) Destructor {
	h := &update{fn: fn}
	b.mu.Lock()
	b.updates = append(b.updates, h)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.removed.Store(true)
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, existing := range b.updates {
				if existing == h {
					b.updates = append(b.updates[:i:i], b.updates[i+1:]...)
					return
				}
			}
		})
	}
}

// Close stops following the key.
func (b *Binding) Close() {
	b.unlisten()
}

func (b *Binding) set(v any) {
	b.mu.Lock()
	b.value = v
	b.loaded = true
	updates := make([]*update, len(b.updates))
	copy(updates, b.updates)
	b.mu.Unlock()

	for _, u := range updates {
		if u.removed.Load() {
			continue
		}
		u.fn(v)
	}
}
