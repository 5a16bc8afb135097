package state

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Common errors.
var (
	ErrClosed     = errors.New("store closed")
	ErrInvalidKey = errors.New("invalid key")
)

// Operation represents the type of change to a key.
type Operation int

const (
	// OpPut indicates a key was created or updated.
	OpPut Operation = iota
	// OpClear indicates the absence value was written.
	OpClear
)

// String returns the operation name.
func (o Operation) String() string {
	switch o {
	case OpPut:
		return "put"
	case OpClear:
		return "clear"
	default:
		return "unknown"
	}
}

// Entry describes one committed change.
type Entry struct {
	// Key is the fully-qualified settings key.
	Key string

	// Value is the committed value; nil for OpClear.
	Value any

	// Revision is a monotonic version number.
	Revision uint64

	// Operation indicates the type of change.
	Operation Operation

	// Modified is when the change was committed.
	Modified time.Time

	// Origin identifies the writer, as set with WithOrigin. Empty for
	// writes made without one.
	Origin string
}

type originKey struct{}

// WithOrigin tags writes made with ctx so watchers can tell who made them.
func WithOrigin(ctx context.Context, origin string) context.Context {
	return context.WithValue(ctx, originKey{}, origin)
}

// OriginFrom returns the origin set on ctx, or "".
func OriginFrom(ctx context.Context) string {
	origin, _ := ctx.Value(originKey{}).(string)
	return origin
}

// Store is the settings store collaborator owned by the host.
// Keys passed in are always fully qualified.
type Store interface {
	// Read returns the current value. ok is false when the key is absent.
	Read(ctx context.Context, key string) (value any, ok bool, err error)

	// Write stores value and returns the committed value.
	// A nil value clears the key.
	Write(ctx context.Context, key string, value any) (any, error)

	// Watch streams committed changes to keys matching a pattern.
	// Pattern supports * wildcard at the end (e.g., "alpha.*").
	// The channel is closed when ctx is done or the store closes.
	Watch(ctx context.Context, pattern string) (<-chan *Entry, error)

	// Close shuts down the store and releases resources.
	Close() error
}

// ValidateKey checks that a qualified key is storable.
func ValidateKey(key string) error {
	if key == "" || len(key) > 1024 {
		return ErrInvalidKey
	}
	if strings.ContainsAny(key, " \t\r\n*>") {
		return ErrInvalidKey
	}
	if strings.HasPrefix(key, ".") || strings.HasSuffix(key, ".") {
		return ErrInvalidKey
	}
	return nil
}

// MatchPattern checks if a key matches a pattern.
// Supports * wildcard at the end (e.g., "alpha.*" matches "alpha.theme").
func MatchPattern(pattern, key string) bool {
	if pattern == "*" {
		return true
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(key, strings.TrimSuffix(pattern, "*"))
	}
	return pattern == key
}
