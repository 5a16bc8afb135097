package bus

import (
	"sync"
	"sync/atomic"
)

// MemoryBus implements MessageBus using in-memory channels.
type MemoryBus struct {
	config Config

	mu     sync.RWMutex
	subs   map[string][]*channelSub
	closed atomic.Bool

	// Serializes publishers so every subscriber sees one global order.
	pubMu sync.Mutex
}

// NewMemoryBus creates a new in-memory message bus.
func NewMemoryBus(cfg Config) *MemoryBus {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultConfig().BufferSize
	}
	return &MemoryBus{
		config: cfg,
		subs:   make(map[string][]*channelSub),
	}
}

// Publish sends data to all subscribers of subject.
func (b *MemoryBus) Publish(subject string, data []byte) error {
	return b.PublishMsg(NewMessage(subject, data))
}

// PublishMsg sends msg to all subscribers of its subject, blocking while a
// subscriber's buffer is full.
func (b *MemoryBus) PublishMsg(msg *Message) error {
	if err := ValidateSubject(msg.Subject); err != nil {
		return err
	}
	if b.closed.Load() {
		return ErrClosed
	}
	if msg.ID == "" {
		msg.ID = NewMessage("", nil).ID
	}

	b.pubMu.Lock()
	defer b.pubMu.Unlock()

	b.mu.RLock()
	subs := make([]*channelSub, len(b.subs[msg.Subject]))
	copy(subs, b.subs[msg.Subject])
	b.mu.RUnlock()

	for _, sub := range subs {
		sub.send(msg)
	}
	return nil
}

// Subscribe creates a subscription to subject.
func (b *MemoryBus) Subscribe(subject string) (Subscription, error) {
	if err := ValidateSubject(subject); err != nil {
		return nil, err
	}
	if b.closed.Load() {
		return nil, ErrClosed
	}

	var sub *channelSub
	sub = newChannelSub(b.config.BufferSize, func() { b.remove(subject, sub) })

	b.mu.Lock()
	b.subs[subject] = append(b.subs[subject], sub)
	b.mu.Unlock()

	return sub, nil
}

func (b *MemoryBus) remove(subject string, target *channelSub) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[subject]
	for i, sub := range subs {
		if sub == target {
			b.subs[subject] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// Close ends every subscription.
func (b *MemoryBus) Close() error {
	if b.closed.Swap(true) {
		return nil
	}

	b.mu.Lock()
	var all []*channelSub
	for _, subs := range b.subs {
		all = append(all, subs...)
	}
	b.subs = make(map[string][]*channelSub)
	b.mu.Unlock()

	for _, sub := range all {
		sub.Unsubscribe()
	}
	return nil
}
