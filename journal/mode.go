package journal

import (
	"fmt"

	"github.com/vinayprograms/pluginkit/errors"
)

// ModeName identifies a decoding mode.
type ModeName string

const (
	ModeRaw        ModeName = "raw"
	ModeJSONBigInt ModeName = "jsonBigint"
	ModeJSONSimple ModeName = "jsonSimple"
)

// ParseModeName validates a mode name from configuration or the wire.
func ParseModeName(s string) (ModeName, error) {
	switch m := ModeName(s); m {
	case ModeRaw, ModeJSONBigInt, ModeJSONSimple:
		return m, nil
	default:
		return "", errors.InvalidInput(fmt.Sprintf("unknown decode mode %q", s),
			errors.WithMetadata("mode", s))
	}
}

// Mode decodes raw events into T. The decoder is chosen once, when a
// listener registers.
type Mode[T any] struct {
	name   ModeName
	decode func(string) (T, error)
}

// Name returns the mode's name.
func (m Mode[T]) Name() ModeName {
	return m.name
}

// Decode converts one raw event. index is only used for error reporting.
func (m Mode[T]) Decode(raw string, index int) (T, error) {
	v, err := m.decode(raw)
	if err != nil {
		var zero T
		return zero, errors.MalformedEvent(fmt.Sprintf("event %d is malformed", index),
			errors.WithCause(err),
			errors.WithMetadata("mode", string(m.name)),
			errors.WithMetadata("index", fmt.Sprint(index)),
			errors.WithMetadata("event", EventName(raw)),
			errors.WithMetadata("snippet", snippet(raw)),
		)
	}
	return v, nil
}

var (
	// Raw passes events through unchanged.
	Raw = Mode[string]{name: ModeRaw, decode: func(s string) (string, error) { return s, nil }}

	// JSONBigInt decodes events keeping integers exact.
	JSONBigInt = Mode[Event]{name: ModeJSONBigInt, decode: decodeBigInt}

	// JSONSimple decodes events with float64 numbers.
	JSONSimple = Mode[Event]{name: ModeJSONSimple, decode: decodeSimple}
)

func snippet(raw string) string {
	const max = 64
	if len(raw) <= max {
		return raw
	}
	return raw[:max] + "..."
}
