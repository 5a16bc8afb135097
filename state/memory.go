package state

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// MemoryStore implements Store in memory.
// Values are stored as given, so a read returns exactly what was written.
type MemoryStore struct {
	mu       sync.RWMutex
	data     map[string]*memoryEntry
	watchers []*watcher
	revision uint64
	closed   atomic.Bool
	done     chan struct{}
}

type memoryEntry struct {
	value    any
	revision uint64
	modified time.Time
}

type watcher struct {
	pattern string
	ch      chan *Entry
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]*memoryEntry),
		done: make(chan struct{}),
	}
}

// Read returns the current value for key.
func (s *MemoryStore) Read(ctx context.Context, key string) (any, bool, error) {
	if err := ValidateKey(key); err != nil {
		return nil, false, err
	}
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if s.closed.Load() {
		return nil, false, ErrClosed
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	return e.value, true, nil
}

// Write stores value under key; nil clears it.
func (s *MemoryStore) Write(ctx context.Context, key string, value any) (any, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.closed.Load() {
		return nil, ErrClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		return nil, ErrClosed
	}

	s.revision++
	now := time.Now()

	op := OpPut
	if value == nil {
		op = OpClear
		delete(s.data, key)
	} else {
		s.data[key] = &memoryEntry{value: value, revision: s.revision, modified: now}
	}

	s.notifyWatchers(&Entry{
		Key:       key,
		Value:     value,
		Revision:  s.revision,
		Operation: op,
		Modified:  now,
		Origin:    OriginFrom(ctx),
	})
	return value, nil
}

// Watch streams changes to keys matching a pattern until ctx is done.
// A watcher that falls 256 entries behind misses changes.
func (s *MemoryStore) Watch(ctx context.Context, pattern string) (<-chan *Entry, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	w := &watcher{pattern: pattern, ch: make(chan *Entry, 256)}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		return nil, ErrClosed
	}
	s.watchers = append(s.watchers, w)

	go func() {
		select {
		case <-ctx.Done():
			s.removeWatcher(w)
		case <-s.done:
		}
	}()
	return w.ch, nil
}

func (s *MemoryStore) removeWatcher(target *watcher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, w := range s.watchers {
		if w == target {
			s.watchers = append(s.watchers[:i:i], s.watchers[i+1:]...)
			close(w.ch)
			return
		}
	}
}

// notifyWatchers must be called with the write lock held.
func (s *MemoryStore) notifyWatchers(e *Entry) {
	for _, w := range s.watchers {
		if !MatchPattern(w.pattern, e.Key) {
			continue
		}
		select {
		case w.ch <- e:
		default:
			// Watcher not keeping up, drop
		}
	}
}

// Close shuts down the store.
func (s *MemoryStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, w := range s.watchers {
		close(w.ch)
	}
	s.watchers = nil
	s.data = nil
	close(s.done)
	return nil
}
