//go:build integration

package state

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
)

func getNATSURL() string {
	if url := os.Getenv("NATS_URL"); url != "" {
		return url
	}
	return nats.DefaultURL
}

func newTestNATSStore(t *testing.T, bucket string) *NATSStore {
	conn, err := nats.Connect(getNATSURL())
	if err != nil {
		t.Skipf("NATS not available: %v", err)
	}

	store, err := NewNATSStore(NATSStoreConfig{Conn: conn, Bucket: bucket})
	if err != nil {
		conn.Close()
		t.Fatalf("NewNATSStore failed: %v", err)
	}

	t.Cleanup(func() {
		store.Close()
		store.js.DeleteKeyValue(context.Background(), bucket)
		conn.Close()
	})
	return store
}

func TestNATSStore_WriteReadClear(t *testing.T) {
	s := newTestNATSStore(t, "test-write-read")
	ctx := context.Background()

	if _, err := s.Write(ctx, "alpha.theme", "dark"); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	v, ok, err := s.Read(ctx, "alpha.theme")
	if err != nil || !ok || v != "dark" {
		t.Fatalf("Read = (%v, %v, %v)", v, ok, err)
	}

	if _, err := s.Write(ctx, "alpha.theme", nil); err != nil {
		t.Fatalf("Write(nil) failed: %v", err)
	}
	if _, ok, _ := s.Read(ctx, "alpha.theme"); ok {
		t.Error("expected absent after clear")
	}
}

func TestNATSStore_Watch(t *testing.T) {
	s := newTestNATSStore(t, "test-watch")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := s.Watch(ctx, "alpha.*")
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	s.Write(WithOrigin(ctx, "pane"), "alpha.theme", "dark")
	s.Write(WithOrigin(ctx, "pane"), "alpha.theme", nil)

	want := []Operation{OpPut, OpClear}
	for i, op := range want {
		select {
		case e := <-ch:
			if e.Key != "alpha.theme" || e.Operation != op || e.Origin != "pane" {
				t.Errorf("entry %d = %+v, want %v from pane", i, e, op)
			}
			if op == OpPut && e.Value != "dark" {
				t.Errorf("Value = %v, want dark", e.Value)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for watch event %d", i)
		}
	}
}
