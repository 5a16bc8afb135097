package journal

import (
	"math/big"
	"testing"
	"time"

	"github.com/vinayprograms/pluginkit/errors"
)

const largeID = `{"a":1,"id":9007199254740993}`

func TestRawIsIdentity(t *testing.T) {
	for _, raw := range []string{largeID, "not json", "", `  {"x":1}  `} {
		got, err := Raw.Decode(raw, 0)
		if err != nil || got != raw {
			t.Errorf("Raw.Decode(%q) = (%q, %v)", raw, got, err)
		}
	}
}

func TestJSONBigIntPreservesIntegers(t *testing.T) {
	ev, err := JSONBigInt.Decode(largeID, 0)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	id, ok := ev.BigInt("id")
	if !ok {
		t.Fatalf("id has type %T, want *big.Int", ev["id"])
	}
	want, _ := new(big.Int).SetString("9007199254740993", 10)
	if id.Cmp(want) != 0 {
		t.Errorf("id = %s, want %s", id, want)
	}
	if a, _ := ev.BigInt("a"); a == nil || a.Int64() != 1 {
		t.Errorf("a = %v", ev["a"])
	}
}

func TestJSONBigIntNestedAndFloats(t *testing.T) {
	ev, err := JSONBigInt.Decode(`{"event":"Scan","dist":12.5,"exp":1e3,"rings":[{"mass":123456789012345678901}],"nested":{"n":-7}}`, 0)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if ev["dist"] != 12.5 {
		t.Errorf("dist = %#v, want float64 12.5", ev["dist"])
	}
	if ev["exp"] != 1000.0 {
		t.Errorf("exp = %#v, want float64 1000", ev["exp"])
	}
	mass := ev["rings"].([]any)[0].(map[string]any)["mass"].(*big.Int)
	if mass.String() != "123456789012345678901" {
		t.Errorf("mass = %s", mass)
	}
	if n := ev["nested"].(map[string]any)["n"].(*big.Int); n.Int64() != -7 {
		t.Errorf("n = %s", n)
	}
}

func TestJSONSimpleUsesFloats(t *testing.T) {
	ev, err := JSONSimple.Decode(largeID, 0)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	id, ok := ev["id"].(float64)
	if !ok {
		t.Fatalf("id has type %T, want float64", ev["id"])
	}
	// 9007199254740993 is not representable; it rounds to an even neighbour.
	if id != 9007199254740992 {
		t.Errorf("id = %v", id)
	}
}

func TestDecodeMalformed(t *testing.T) {
	inputs := []string{
		"",
		"not json",
		`{"a":`,
		`[1,2]`,
		`"event"`,
		`null`,
		`{"a":1} {"b":2}`,
		`{"a":1}x`,
	}
	for _, mode := range []Mode[Event]{JSONBigInt, JSONSimple} {
		for _, raw := range inputs {
			_, err := mode.Decode(raw, 3)
			if !errors.Is(err, errors.ErrCodeMalformedEvent) {
				t.Errorf("%s.Decode(%q) = %v, want MALFORMED_EVENT", mode.Name(), raw, err)
				continue
			}
			meta := errors.GetMetadata(err)
			if meta["mode"] != string(mode.Name()) || meta["index"] != "3" {
				t.Errorf("metadata = %v", meta)
			}
			if e := errors.As(err); e == nil || e.Message() != "event 3 is malformed" {
				t.Errorf("%s.Decode(%q) message = %v", mode.Name(), raw, err)
			}
		}
	}
}

func TestDecodeAllowsSurroundingWhitespace(t *testing.T) {
	ev, err := JSONSimple.Decode("  {\"event\":\"Docked\"}\n", 0)
	if err != nil || ev.Name() != "Docked" {
		t.Errorf("Decode = (%v, %v)", ev, err)
	}
}

func TestEventAccessors(t *testing.T) {
	ev, err := JSONSimple.Decode(`{"timestamp":"2024-05-01T12:30:00Z","event":"FSDJump"}`, 0)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if ev.Name() != "FSDJump" {
		t.Errorf("Name() = %q", ev.Name())
	}
	ts, ok := ev.Timestamp()
	if !ok || !ts.Equal(time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)) {
		t.Errorf("Timestamp() = (%v, %v)", ts, ok)
	}

	if _, ok := (Event{"timestamp": "yesterday"}).Timestamp(); ok {
		t.Error("unparseable timestamp should report false")
	}
	if (Event{}).Name() != "" {
		t.Error("missing event name should be empty")
	}
}

func TestEventName(t *testing.T) {
	if got := EventName(`{"timestamp":"x","event":"Location"}`); got != "Location" {
		t.Errorf("EventName = %q", got)
	}
	if got := EventName("garbage"); got != "" {
		t.Errorf("EventName(garbage) = %q", got)
	}
}

func TestParseModeName(t *testing.T) {
	for _, name := range []string{"raw", "jsonBigint", "jsonSimple"} {
		if m, err := ParseModeName(name); err != nil || string(m) != name {
			t.Errorf("ParseModeName(%q) = (%q, %v)", name, m, err)
		}
	}
	if _, err := ParseModeName("jsonbigint"); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("ParseModeName(jsonbigint) = %v, want INVALID_INPUT", err)
	}
}

func TestModeNames(t *testing.T) {
	if Raw.Name() != ModeRaw || JSONBigInt.Name() != ModeJSONBigInt || JSONSimple.Name() != ModeJSONSimple {
		t.Error("mode names do not match constants")
	}
}
