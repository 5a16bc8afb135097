package journal

import (
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Event is a decoded journal event.
type Event map[string]any

// Name returns the event type, e.g. "FSDJump".
func (e Event) Name() string {
	s, _ := e["event"].(string)
	return s
}

// Timestamp parses the event's timestamp field.
func (e Event) Timestamp() (time.Time, bool) {
	s, ok := e["timestamp"].(string)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// BigInt returns an integer field decoded in JSONBigInt mode.
func (e Event) BigInt(key string) (*big.Int, bool) {
	n, ok := e[key].(*big.Int)
	return n, ok
}

// EventName extracts the event type from a raw event without decoding it.
func EventName(raw string) string {
	return gjson.Get(raw, "event").String()
}

func decodeSimple(raw string) (Event, error) {
	var ev Event
	if err := decodeObject(raw, false, &ev); err != nil {
		return nil, err
	}
	return ev, nil
}

func decodeBigInt(raw string) (Event, error) {
	var obj map[string]any
	if err := decodeObject(raw, true, &obj); err != nil {
		return nil, err
	}
	for k, v := range obj {
		converted, err := convertNumbers(v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		obj[k] = converted
	}
	return Event(obj), nil
}

// decodeObject decodes exactly one top-level JSON object from raw.
func decodeObject(raw string, useNumber bool, dst any) error {
	if !strings.HasPrefix(strings.TrimLeft(raw, " \t\r\n"), "{") {
		return fmt.Errorf("top-level value is not an object")
	}
	dec := json.NewDecoder(strings.NewReader(raw))
	if useNumber {
		dec.UseNumber()
	}
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return fmt.Errorf("unexpected data after object")
	}
	return nil
}

// convertNumbers replaces json.Number values: integer literals become
// *big.Int, everything else float64.
func convertNumbers(v any) (any, error) {
	switch t := v.(type) {
	case json.Number:
		s := t.String()
		if !strings.ContainsAny(s, ".eE") {
			n, ok := new(big.Int).SetString(s, 10)
			if !ok {
				return nil, fmt.Errorf("invalid integer %s", s)
			}
			return n, nil
		}
		return t.Float64()
	case map[string]any:
		for k, inner := range t {
			converted, err := convertNumbers(inner)
			if err != nil {
				return nil, err
			}
			t[k] = converted
		}
		return t, nil
	case []any:
		for i, inner := range t {
			converted, err := convertNumbers(inner)
			if err != nil {
				return nil, err
			}
			t[i] = converted
		}
		return t, nil
	default:
		return v, nil
	}
}
