package transport

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"
)

// Common errors.
var (
	ErrClosed = errors.New("transport closed")
)

// Transport provides bidirectional JSON-RPC message passing.
type Transport interface {
	// Recv returns channel for incoming messages.
	// Channel is closed when transport shuts down.
	Recv() <-chan *InboundMessage

	// Send queues a message for delivery.
	// Returns ErrClosed if transport is closed.
	Send(msg *OutboundMessage) error

	// Run starts the transport, blocks until ctx is cancelled or Close is called.
	Run(ctx context.Context) error

	// Close initiates shutdown. Pending sends are flushed by Run.
	Close() error
}

// InboundMessage wraps an incoming JSON-RPC message.
type InboundMessage struct {
	// Request is set if this is a JSON-RPC request (has ID).
	Request *Request

	// Notification is set if this is a notification (no ID).
	Notification *Notification

	// Raw contains the original bytes.
	Raw json.RawMessage
}

// OutboundMessage wraps an outgoing JSON-RPC message.
type OutboundMessage struct {
	// Response is set when replying to a request.
	Response *Response

	// Notification is set when sending an unsolicited notification.
	Notification *Notification
}

// ParseInbound parses raw JSON into an InboundMessage.
func ParseInbound(data []byte) (*InboundMessage, error) {
	var raw struct {
		JSONRPC string          `json:"jsonrpc"`
		ID      json.RawMessage `json:"id"`
		Method  string          `json:"method"`
	}

	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &Error{Code: ParseError, Message: "Parse error", Data: err.Error()}
	}
	if raw.JSONRPC != Version {
		return nil, &Error{Code: InvalidRequest, Message: "Invalid Request", Data: "jsonrpc must be 2.0"}
	}
	if raw.Method == "" {
		return nil, &Error{Code: InvalidRequest, Message: "Invalid Request", Data: "method is required"}
	}

	msg := &InboundMessage{Raw: data}

	// A present, non-null id makes it a request.
	if len(raw.ID) > 0 && string(raw.ID) != "null" {
		var req Request
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, &Error{Code: ParseError, Message: "Parse error", Data: err.Error()}
		}
		msg.Request = &req
	} else {
		var notif Notification
		if err := json.Unmarshal(data, &notif); err != nil {
			return nil, &Error{Code: ParseError, Message: "Parse error", Data: err.Error()}
		}
		msg.Notification = &notif
	}

	return msg, nil
}

// MarshalOutbound serializes an OutboundMessage to JSON.
func MarshalOutbound(msg *OutboundMessage) ([]byte, error) {
	if msg.Response != nil {
		return json.Marshal(msg.Response)
	}
	if msg.Notification != nil {
		return json.Marshal(msg.Notification)
	}
	return nil, errors.New("empty outbound message")
}

// Config holds common transport configuration.
type Config struct {
	// RecvBufferSize is the size of the receive channel buffer.
	// Default: 100
	RecvBufferSize int

	// SendBufferSize is the size of the internal send buffer.
	// Default: 100
	SendBufferSize int
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		RecvBufferSize: 100,
		SendBufferSize: 100,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.RecvBufferSize <= 0 {
		c.RecvBufferSize = d.RecvBufferSize
	}
	if c.SendBufferSize <= 0 {
		c.SendBufferSize = d.SendBufferSize
	}
	return c
}

// pump holds the channel plumbing shared by every transport: a receive
// queue, a send queue that is flushed on shutdown, and the closed state.
type pump struct {
	recv chan *InboundMessage
	send chan *OutboundMessage
	done chan struct{}

	mu     sync.Mutex
	closed bool
}

func newPump(cfg Config) *pump {
	return &pump{
		recv: make(chan *InboundMessage, cfg.RecvBufferSize),
		send: make(chan *OutboundMessage, cfg.SendBufferSize),
		done: make(chan struct{}),
	}
}

func (p *pump) Recv() <-chan *InboundMessage {
	return p.recv
}

func (p *pump) Send(msg *OutboundMessage) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.mu.Unlock()

	select {
	case p.send <- msg:
		return nil
	case <-p.done:
		return ErrClosed
	}
}

// shut marks the pump closed. It reports whether this call closed it.
func (p *pump) shut() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	p.closed = true
	close(p.done)
	return true
}

// deliver hands a parsed message to Recv, or answers a parse failure.
func (p *pump) deliver(ctx context.Context, data []byte) bool {
	msg, err := ParseInbound(data)
	if err != nil {
		p.Send(parseErrorResponse(data, err))
		return true
	}
	select {
	case p.recv <- msg:
		return true
	case <-ctx.Done():
		return false
	case <-p.done:
		return false
	}
}

// writeLoop writes queued messages until shutdown, then flushes the queue.
// tick may be nil.
func (p *pump) writeLoop(ctx context.Context, write func([]byte) error, tick <-chan time.Time, onTick func()) {
	for {
		select {
		case <-ctx.Done():
			p.flush(write)
			return
		case <-p.done:
			p.flush(write)
			return
		case <-tick:
			onTick()
		case msg := <-p.send:
			if data, err := MarshalOutbound(msg); err == nil {
				write(data)
			}
		}
	}
}

func (p *pump) flush(write func([]byte) error) {
	for {
		select {
		case msg := <-p.send:
			if data, err := MarshalOutbound(msg); err == nil {
				write(data)
			}
		default:
			return
		}
	}
}

func parseErrorResponse(raw []byte, parseErr error) *OutboundMessage {
	// Echo the id back when the message was close enough to JSON to have one.
	var partial struct {
		ID any `json:"id"`
	}
	json.Unmarshal(raw, &partial)

	rpcErr, ok := parseErr.(*Error)
	if !ok {
		rpcErr = &Error{Code: ParseError, Message: "Parse error", Data: parseErr.Error()}
	}
	return &OutboundMessage{Response: &Response{JSONRPC: Version, ID: partial.ID, Error: rpcErr}}
}
