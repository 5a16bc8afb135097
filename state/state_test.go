package state

import (
	"strings"
	"testing"

	"github.com/nats-io/nats.go/jetstream"
)

func TestOperation_String(t *testing.T) {
	tests := []struct {
		op   Operation
		want string
	}{
		{OpPut, "put"},
		{OpClear, "clear"},
		{Operation(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.op.String(); got != tt.want {
			t.Errorf("Operation(%d).String() = %q, want %q", tt.op, got, tt.want)
		}
	}
}

func TestValidateKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr error
	}{
		{"qualified key", "alpha.theme", nil},
		{"public key", "core.Locale", nil},
		{"long key", strings.Repeat("a", 1024), nil},
		{"empty key", "", ErrInvalidKey},
		{"key with space", "alpha.my key", ErrInvalidKey},
		{"wildcard", "alpha.*", ErrInvalidKey},
		{"leading dot", ".theme", ErrInvalidKey},
		{"trailing dot", "alpha.", ErrInvalidKey},
		{"too long key", strings.Repeat("a", 1025), ErrInvalidKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateKey(tt.key); err != tt.wantErr {
				t.Errorf("ValidateKey(%q) = %v, want %v", tt.key, err, tt.wantErr)
			}
		})
	}
}

func TestMatchPattern(t *testing.T) {
	tests := []struct {
		pattern string
		key     string
		want    bool
	}{
		{"*", "alpha.theme", true},
		{"alpha.*", "alpha.theme", true},
		{"alpha.*", "alpha.ui.theme", true},
		{"alpha.*", "beta.theme", false},
		{"alpha.*", "alphabet.theme", false},
		{"alpha.theme", "alpha.theme", true},
		{"alpha.theme", "alpha.themes", false},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+"_"+tt.key, func(t *testing.T) {
			if got := MatchPattern(tt.pattern, tt.key); got != tt.want {
				t.Errorf("MatchPattern(%q, %q) = %v, want %v", tt.pattern, tt.key, got, tt.want)
			}
		})
	}
}

func TestToNATSPattern(t *testing.T) {
	tests := map[string]string{
		"*":           ">",
		"":            ">",
		"alpha.*":     "alpha.>",
		"alpha.th*":   ">",
		"alpha.theme": "alpha.theme",
	}
	for in, want := range tests {
		if got := toNATSPattern(in); got != want {
			t.Errorf("toNATSPattern(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestOpFromNATS(t *testing.T) {
	tests := []struct {
		op   jetstream.KeyValueOp
		want Operation
	}{
		{jetstream.KeyValuePut, OpPut},
		{jetstream.KeyValueDelete, OpClear},
		{jetstream.KeyValuePurge, OpClear},
	}
	for _, tt := range tests {
		if got := opFromNATS(tt.op); got != tt.want {
			t.Errorf("opFromNATS(%v) = %v, want %v", tt.op, got, tt.want)
		}
	}
}

func TestDecodeValueKeepsIntegerPrecision(t *testing.T) {
	v, err := decodeValue([]byte(`{"id":9007199254740993}`))
	if err != nil {
		t.Fatalf("decodeValue: %v", err)
	}
	m := v.(map[string]any)
	if got := m["id"].(interface{ String() string }).String(); got != "9007199254740993" {
		t.Errorf("id = %s, want 9007199254740993", got)
	}
}

func TestDecodeRecord(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		origin  string
		cleared bool
		value   string
	}{
		{"value", `{"origin":"a1","value":"dark"}`, "a1", false, `"dark"`},
		{"cleared", `{"origin":"a1","cleared":true}`, "a1", true, ""},
		{"no origin", `{"value":42}`, "", false, "42"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := decodeRecord([]byte(tt.data))
			if err != nil {
				t.Fatalf("decodeRecord: %v", err)
			}
			if rec.Origin != tt.origin || rec.Cleared != tt.cleared || string(rec.Value) != tt.value {
				t.Errorf("record = %+v", rec)
			}
		})
	}
	if _, err := decodeRecord([]byte("dark")); err == nil {
		t.Error("expected error for a bare value")
	}
}

func TestDefaultNATSStoreConfig(t *testing.T) {
	cfg := DefaultNATSStoreConfig()
	if cfg.Bucket != "plugin-settings" {
		t.Errorf("Bucket = %q", cfg.Bucket)
	}
	if cfg.History != 1 || cfg.MaxValueSize != 1024*1024 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestNewNATSStore_NilConn(t *testing.T) {
	if _, err := NewNATSStore(NATSStoreConfig{Bucket: "test"}); err == nil {
		t.Error("expected error for nil connection")
	}
}
