package bus

import (
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSBus implements MessageBus using NATS core pub/sub.
//
// NATS invokes a subscription's handler serially, so blocking the handler
// on a full buffer preserves publish order; the server-side pending limits
// apply while it waits.
type NATSBus struct {
	conn   *nats.Conn
	config NATSConfig
	owned  bool

	mu   sync.Mutex
	subs []*channelSub
}

// NATSConfig holds NATS connection configuration.
type NATSConfig struct {
	Config

	// URL is the NATS server URL (e.g., "nats://localhost:4222").
	URL string

	// Name is the client name for identification.
	Name string

	// Token for token-based auth.
	Token string

	// User and Password for basic auth.
	User     string
	Password string

	// ReconnectWait is the time to wait between reconnection attempts.
	ReconnectWait time.Duration

	// MaxReconnects is the maximum number of reconnection attempts.
	// -1 = unlimited
	MaxReconnects int

	// ConnectTimeout for initial connection.
	ConnectTimeout time.Duration
}

// DefaultNATSConfig returns configuration with sensible defaults.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		Config:         DefaultConfig(),
		URL:            nats.DefaultURL,
		ReconnectWait:  2 * time.Second,
		MaxReconnects:  -1,
		ConnectTimeout: 5 * time.Second,
	}
}

// NewNATSBus connects to NATS. Close closes the connection.
func NewNATSBus(cfg NATSConfig) (*NATSBus, error) {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultConfig().BufferSize
	}
	if cfg.URL == "" {
		cfg.URL = nats.DefaultURL
	}

	conn, err := nats.Connect(cfg.URL, buildNATSOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return &NATSBus{conn: conn, config: cfg, owned: true}, nil
}

// NewNATSBusFromConn wraps an existing connection. Close leaves it open.
func NewNATSBusFromConn(conn *nats.Conn, cfg NATSConfig) *NATSBus {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultConfig().BufferSize
	}
	return &NATSBus{conn: conn, config: cfg}
}

func buildNATSOptions(cfg NATSConfig) []nats.Option {
	opts := []nats.Option{
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.Timeout(cfg.ConnectTimeout),
	}
	if cfg.Name != "" {
		opts = append(opts, nats.Name(cfg.Name))
	}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}
	if cfg.User != "" {
		opts = append(opts, nats.UserInfo(cfg.User, cfg.Password))
	}
	return opts
}

// Publish sends data to subject.
func (b *NATSBus) Publish(subject string, data []byte) error {
	return b.PublishMsg(NewMessage(subject, data))
}

// PublishMsg sends msg with its ID in the Nats-Msg-Id header.
func (b *NATSBus) PublishMsg(msg *Message) error {
	if err := ValidateSubject(msg.Subject); err != nil {
		return err
	}
	if b.conn.IsClosed() {
		return ErrClosed
	}
	if msg.ID == "" {
		msg.ID = NewMessage("", nil).ID
	}

	if err := b.conn.PublishMsg(toNATSMsg(msg)); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	return nil
}

// Subscribe creates a subscription to subject.
func (b *NATSBus) Subscribe(subject string) (Subscription, error) {
	if err := ValidateSubject(subject); err != nil {
		return nil, err
	}
	if b.conn.IsClosed() {
		return nil, ErrClosed
	}

	var ns *nats.Subscription
	sub := newChannelSub(b.config.BufferSize, func() {
		if ns != nil {
			ns.Unsubscribe()
		}
	})

	ns, err := b.conn.Subscribe(subject, func(m *nats.Msg) {
		sub.send(fromNATSMsg(m))
	})
	if err != nil {
		sub.Unsubscribe()
		return nil, fmt.Errorf("nats subscribe: %w", err)
	}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()
	return sub, nil
}

// Close ends every subscription and closes the connection if the bus
// opened it.
func (b *NATSBus) Close() error {
	b.mu.Lock()
	subs := b.subs
	b.subs = nil
	b.mu.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}
	if b.owned {
		b.conn.Close()
	}
	return nil
}

// Conn returns the underlying NATS connection.
func (b *NATSBus) Conn() *nats.Conn {
	return b.conn
}

func toNATSMsg(msg *Message) *nats.Msg {
	m := nats.NewMsg(msg.Subject)
	m.Data = msg.Data
	for k, v := range msg.Header {
		m.Header.Set(k, v)
	}
	m.Header.Set(nats.MsgIdHdr, msg.ID)
	return m
}

func fromNATSMsg(m *nats.Msg) *Message {
	msg := &Message{
		ID:      m.Header.Get(nats.MsgIdHdr),
		Subject: m.Subject,
		Data:    m.Data,
		Header:  make(map[string]string, len(m.Header)),
	}
	for k := range m.Header {
		if k == nats.MsgIdHdr {
			continue
		}
		msg.Header[k] = m.Header.Get(k)
	}
	return msg
}
