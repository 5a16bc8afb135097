package transport

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketTransport implements Transport over WebSocket.
type WebSocketTransport struct {
	*pump

	conn   *websocket.Conn
	config WebSocketConfig

	wmu       sync.Mutex
	closeOnce sync.Once
	running   atomic.Bool
}

// WebSocketConfig holds WebSocket transport configuration.
type WebSocketConfig struct {
	Config // Embed base config

	// WriteTimeout for write operations.
	WriteTimeout time.Duration

	// MaxMessageSize limits incoming message size.
	MaxMessageSize int64

	// PingInterval for keepalive pings (0 = disabled).
	PingInterval time.Duration
}

// DefaultWebSocketConfig returns configuration with sensible defaults.
func DefaultWebSocketConfig() WebSocketConfig {
	return WebSocketConfig{
		Config:         DefaultConfig(),
		WriteTimeout:   10 * time.Second,
		MaxMessageSize: 1024 * 1024, // 1MB
		PingInterval:   30 * time.Second,
	}
}

// NewWebSocketTransport creates a transport from an existing connection.
func NewWebSocketTransport(conn *websocket.Conn, cfg WebSocketConfig) *WebSocketTransport {
	cfg.Config = cfg.Config.withDefaults()
	if cfg.MaxMessageSize > 0 {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}

	return &WebSocketTransport{
		pump:   newPump(cfg.Config),
		conn:   conn,
		config: cfg,
	}
}

// NewWebSocketUpgrader creates an upgrader for accepting WebSocket
// connections. checkOrigin may be nil to accept any origin.
func NewWebSocketUpgrader(checkOrigin func(r *http.Request) bool) *websocket.Upgrader {
	if checkOrigin == nil {
		checkOrigin = func(r *http.Request) bool { return true }
	}
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     checkOrigin,
	}
}

// Run starts the transport, blocking until ctx is cancelled, Close is
// called, or the peer disconnects.
func (t *WebSocketTransport) Run(ctx context.Context) error {
	t.running.Store(true)
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		t.readLoop(ctx)
		// A dead connection ends the transport.
		t.shut()
	}()

	go func() {
		defer wg.Done()
		var tick <-chan time.Time
		if t.config.PingInterval > 0 {
			ticker := time.NewTicker(t.config.PingInterval)
			defer ticker.Stop()
			tick = ticker.C
		}
		t.writeLoop(ctx, t.write, tick, t.ping)
		// Queued messages are flushed; now unblock the reader.
		t.closeConn()
	}()

	var err error
	select {
	case <-ctx.Done():
		err = ctx.Err()
	case <-t.done:
	}

	t.shut()
	wg.Wait()
	return err
}

// Close initiates graceful shutdown. The connection itself is closed by Run
// after pending sends are flushed, or here if Run was never started.
func (t *WebSocketTransport) Close() error {
	t.shut()
	if !t.running.Load() {
		t.closeConn()
	}
	return nil
}

func (t *WebSocketTransport) readLoop(ctx context.Context) {
	defer close(t.recv)

	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			// Normal closure, going away, or a broken connection all end the loop.
			return
		}
		if !t.deliver(ctx, data) {
			return
		}
	}
}

func (t *WebSocketTransport) write(data []byte) error {
	t.wmu.Lock()
	defer t.wmu.Unlock()

	if t.config.WriteTimeout > 0 {
		t.conn.SetWriteDeadline(time.Now().Add(t.config.WriteTimeout))
	}
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

func (t *WebSocketTransport) ping() {
	t.wmu.Lock()
	defer t.wmu.Unlock()
	t.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second))
}

func (t *WebSocketTransport) closeConn() {
	t.closeOnce.Do(func() {
		t.wmu.Lock()
		t.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		t.wmu.Unlock()
		t.conn.Close()
	})
}
