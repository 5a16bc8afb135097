package state

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// NATSStore implements Store on a NATS JetStream KV bucket.
// Each revision is a JSON record holding the value and the writer's origin;
// clearing a key writes a cleared record so watchers on other hosts still
// learn who cleared it. Numbers read back as json.Number so integer settings
// keep full precision.
type NATSStore struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	kv     jetstream.KeyValue
	config NATSStoreConfig
	closed atomic.Bool
	cancel context.CancelFunc
	ctx    context.Context
}

// NATSStoreConfig holds NATS KV store configuration.
type NATSStoreConfig struct {
	// Conn is the NATS connection to use.
	Conn *nats.Conn

	// Bucket is the KV bucket name.
	Bucket string

	// History is the number of revisions to keep per key.
	// Default: 1
	History int

	// MaxValueSize is the maximum value size in bytes.
	// Default: 1MB
	MaxValueSize int32

	// OpTimeout bounds each KV round trip when the caller's context has no deadline.
	// Default: 5s
	OpTimeout time.Duration
}

// DefaultNATSStoreConfig returns configuration with sensible defaults.
func DefaultNATSStoreConfig() NATSStoreConfig {
	return NATSStoreConfig{
		Bucket:       "plugin-settings",
		History:      1,
		MaxValueSize: 1024 * 1024,
		OpTimeout:    5 * time.Second,
	}
}

// NewNATSStore creates a store backed by a JetStream KV bucket, creating the
// bucket if needed.
func NewNATSStore(cfg NATSStoreConfig) (*NATSStore, error) {
	if cfg.Conn == nil {
		return nil, fmt.Errorf("nats connection required")
	}
	defaults := DefaultNATSStoreConfig()
	if cfg.Bucket == "" {
		cfg.Bucket = defaults.Bucket
	}
	if cfg.History <= 0 {
		cfg.History = defaults.History
	}
	if cfg.MaxValueSize <= 0 {
		cfg.MaxValueSize = defaults.MaxValueSize
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = defaults.OpTimeout
	}

	js, err := jetstream.New(cfg.Conn)
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:       cfg.Bucket,
		History:      uint8(cfg.History),
		MaxValueSize: cfg.MaxValueSize,
	})
	if err != nil {
		return nil, fmt.Errorf("create kv bucket: %w", err)
	}

	watchCtx, watchCancel := context.WithCancel(context.Background())
	return &NATSStore{
		conn:   cfg.Conn,
		js:     js,
		kv:     kv,
		config: cfg,
		ctx:    watchCtx,
		cancel: watchCancel,
	}, nil
}

func (s *NATSStore) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.config.OpTimeout)
}

// Read returns the current value for key.
func (s *NATSStore) Read(ctx context.Context, key string) (any, bool, error) {
	if err := ValidateKey(key); err != nil {
		return nil, false, err
	}
	if s.closed.Load() {
		return nil, false, ErrClosed
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	entry, err := s.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("kv get: %w", err)
	}

	rec, err := decodeRecord(entry.Value())
	if err != nil {
		return nil, false, fmt.Errorf("decode %s: %w", key, err)
	}
	if rec.Cleared {
		return nil, false, nil
	}
	v, err := decodeValue(rec.Value)
	if err != nil {
		return nil, false, fmt.Errorf("decode %s: %w", key, err)
	}
	return v, true, nil
}

// Write stores value under key; nil deletes it from the bucket.
func (s *NATSStore) Write(ctx context.Context, key string, value any) (any, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	if s.closed.Load() {
		return nil, ErrClosed
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	rec := record{Origin: OriginFrom(ctx), Cleared: value == nil}
	if value != nil {
		data, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", key, err)
		}
		rec.Value = data
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", key, err)
	}
	if _, err := s.kv.Put(ctx, key, data); err != nil {
		return nil, fmt.Errorf("kv put: %w", err)
	}
	return value, nil
}

// Watch streams changes to keys matching a pattern until ctx is done.
func (s *NATSStore) Watch(ctx context.Context, pattern string) (<-chan *Entry, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	var (
		w   jetstream.KeyWatcher
		err error
	)
	if natsPattern := toNATSPattern(pattern); natsPattern == ">" {
		w, err = s.kv.WatchAll(s.ctx, jetstream.UpdatesOnly())
	} else {
		w, err = s.kv.Watch(s.ctx, natsPattern, jetstream.UpdatesOnly())
	}
	if err != nil {
		return nil, fmt.Errorf("kv watch: %w", err)
	}

	ch := make(chan *Entry, 256)
	go s.watchLoop(ctx, w, ch, pattern)
	return ch, nil
}

func (s *NATSStore) watchLoop(ctx context.Context, w jetstream.KeyWatcher, ch chan *Entry, pattern string) {
	defer close(ch)
	defer w.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ctx.Done():
			return
		case kve, ok := <-w.Updates():
			if !ok {
				return
			}
			if kve == nil || !MatchPattern(pattern, kve.Key()) {
				continue
			}

			e := &Entry{
				Key:       kve.Key(),
				Revision:  kve.Revision(),
				Operation: opFromNATS(kve.Operation()),
				Modified:  kve.Created(),
			}
			if e.Operation == OpPut {
				rec, err := decodeRecord(kve.Value())
				if err != nil {
					continue
				}
				e.Origin = rec.Origin
				if rec.Cleared {
					e.Operation = OpClear
				} else if e.Value, err = decodeValue(rec.Value); err != nil {
					continue
				}
			}

			select {
			case ch <- e:
			case <-ctx.Done():
				return
			case <-s.ctx.Done():
				return
			}
		}
	}
}

// Close stops watchers. The NATS connection stays open; it belongs to the caller.
func (s *NATSStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.cancel()
	return nil
}

func opFromNATS(op jetstream.KeyValueOp) Operation {
	switch op {
	case jetstream.KeyValueDelete, jetstream.KeyValuePurge:
		return OpClear
	default:
		return OpPut
	}
}

// toNATSPattern converts a trailing-* pattern to NATS subject wildcards.
func toNATSPattern(pattern string) string {
	if pattern == "*" || pattern == "" {
		return ">"
	}
	if strings.HasSuffix(pattern, ".*") {
		return strings.TrimSuffix(pattern, "*") + ">"
	}
	if strings.HasSuffix(pattern, "*") {
		// Partial-segment prefix; watch everything and filter locally.
		return ">"
	}
	return pattern
}

// record is the stored form of one revision.
type record struct {
	Origin  string          `json:"origin,omitempty"`
	Value   json.RawMessage `json:"value,omitempty"`
	Cleared bool            `json:"cleared,omitempty"`
}

func decodeRecord(data []byte) (record, error) {
	var rec record
	err := json.Unmarshal(data, &rec)
	return rec, err
}

func decodeValue(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}
