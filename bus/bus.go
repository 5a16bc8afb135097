package bus

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

// Common errors.
var (
	ErrClosed         = errors.New("bus closed")
	ErrInvalidSubject = errors.New("invalid subject")
)

// Message is one payload on the bus.
type Message struct {
	// ID uniquely identifies the message across publishers.
	ID string

	Subject string
	Data    []byte

	// Header carries metadata such as trace context. May be nil.
	Header map[string]string
}

// NewMessage creates a message with a fresh ID and an empty header.
func NewMessage(subject string, data []byte) *Message {
	return &Message{
		ID:      uuid.NewString(),
		Subject: subject,
		Data:    data,
		Header:  make(map[string]string),
	}
}

// MessageBus publishes and subscribes to ordered message streams.
type MessageBus interface {
	// Publish sends data to every subscriber of subject.
	Publish(subject string, data []byte) error

	// PublishMsg sends a prepared message. An empty ID is filled in.
	PublishMsg(msg *Message) error

	// Subscribe delivers messages published to subject, in publish order.
	Subscribe(subject string) (Subscription, error)

	// Close ends all subscriptions created through this bus.
	Close() error
}

// Subscription is an active subscription.
type Subscription interface {
	// Messages returns the delivery channel. It is closed when the
	// subscription ends.
	Messages() <-chan *Message

	// Unsubscribe ends the subscription. Safe to call more than once.
	Unsubscribe() error
}

// Config holds common bus configuration.
type Config struct {
	// BufferSize for subscription channels.
	// Default: 256
	BufferSize int
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BufferSize: 256,
	}
}

// ValidateSubject checks that subject is a concrete, dot-separated name.
// Wildcards are rejected because delivery order is only defined per subject.
func ValidateSubject(subject string) error {
	if subject == "" || strings.ContainsAny(subject, " \t\r\n*>") {
		return ErrInvalidSubject
	}
	for _, tok := range strings.Split(subject, ".") {
		if tok == "" {
			return ErrInvalidSubject
		}
	}
	return nil
}
