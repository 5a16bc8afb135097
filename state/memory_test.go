package state

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMemoryStore_ReadAbsent(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	v, ok, err := s.Read(context.Background(), "alpha.missing")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if ok || v != nil {
		t.Errorf("expected absent, got (%v, %v)", v, ok)
	}
}

func TestMemoryStore_WriteRead(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	value := map[string]any{"site": "edsy", "count": 3}
	committed, err := s.Write(ctx, "alpha.tooling", value)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if committed == nil {
		t.Fatal("expected committed value")
	}

	got, ok, err := s.Read(ctx, "alpha.tooling")
	if err != nil || !ok {
		t.Fatalf("Read = (%v, %v, %v)", got, ok, err)
	}
	if got.(map[string]any)["site"] != "edsy" {
		t.Errorf("unexpected value %v", got)
	}
}

func TestMemoryStore_WriteNilClears(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	s.Write(ctx, "alpha.theme", "dark")
	if _, err := s.Write(ctx, "alpha.theme", nil); err != nil {
		t.Fatalf("Write(nil) failed: %v", err)
	}

	if _, ok, _ := s.Read(ctx, "alpha.theme"); ok {
		t.Error("expected key to be absent after writing nil")
	}
}

func TestMemoryStore_InvalidKey(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	if _, err := s.Write(context.Background(), "", "x"); err != ErrInvalidKey {
		t.Errorf("expected ErrInvalidKey, got %v", err)
	}
	if _, _, err := s.Read(context.Background(), ".theme"); err != ErrInvalidKey {
		t.Errorf("expected ErrInvalidKey, got %v", err)
	}
}

func TestMemoryStore_CanceledContext(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Write(ctx, "alpha.theme", "dark"); err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestMemoryStore_Watch(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	ch, err := s.Watch(ctx, "alpha.*")
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	s.Write(ctx, "beta.theme", "ignored")
	s.Write(ctx, "alpha.theme", "dark")
	s.Write(ctx, "alpha.theme", nil)

	want := []Operation{OpPut, OpClear}
	for i, op := range want {
		select {
		case e := <-ch:
			if e.Key != "alpha.theme" || e.Operation != op {
				t.Errorf("event %d = %s/%v, want alpha.theme/%v", i, e.Key, e.Operation, op)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for event %d", i)
		}
	}
}

func TestMemoryStore_RevisionsIncrease(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	ch, _ := s.Watch(ctx, "*")
	s.Write(ctx, "alpha.a", 1)
	s.Write(ctx, "alpha.a", 2)

	first := <-ch
	second := <-ch
	if second.Revision <= first.Revision {
		t.Errorf("revisions not increasing: %d then %d", first.Revision, second.Revision)
	}
}

func TestMemoryStore_Close(t *testing.T) {
	s := NewMemoryStore()
	ch, _ := s.Watch(context.Background(), "*")

	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close should be a no-op, got %v", err)
	}
	if _, ok := <-ch; ok {
		t.Error("watch channel should be closed")
	}
	if _, _, err := s.Read(context.Background(), "alpha.a"); err != ErrClosed {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestMemoryStore_WatchOrigin(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	ch, _ := s.Watch(ctx, "*")
	s.Write(WithOrigin(ctx, "pane"), "alpha.theme", "dark")
	s.Write(ctx, "alpha.theme", nil)

	tests := []struct {
		origin string
		op     Operation
	}{
		{"pane", OpPut},
		{"", OpClear},
	}
	for i, tt := range tests {
		select {
		case e := <-ch:
			if e.Origin != tt.origin || e.Operation != tt.op {
				t.Errorf("event %d = %q/%v, want %q/%v", i, e.Origin, e.Operation, tt.origin, tt.op)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for event %d", i)
		}
	}
}

func TestMemoryStore_WatchCancel(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch, _ := s.Watch(ctx, "*")
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("unexpected entry after cancel")
		}
	case <-time.After(time.Second):
		t.Fatal("watch channel not closed after cancel")
	}

	// Writes after the watcher left must not panic on a closed channel.
	if _, err := s.Write(context.Background(), "alpha.a", 1); err != nil {
		t.Errorf("Write after cancel: %v", err)
	}
}

func TestOriginFrom(t *testing.T) {
	if got := OriginFrom(context.Background()); got != "" {
		t.Errorf("OriginFrom(empty) = %q", got)
	}
	if got := OriginFrom(WithOrigin(context.Background(), "x")); got != "x" {
		t.Errorf("OriginFrom = %q, want x", got)
	}
}

func TestMemoryStore_ConcurrentWrites(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			s.Write(ctx, "alpha.counter", n)
		}(i)
	}
	wg.Wait()

	if _, ok, _ := s.Read(ctx, "alpha.counter"); !ok {
		t.Error("expected counter to be present")
	}
}
