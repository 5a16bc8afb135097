package transport

import (
	"bufio"
	"context"
	"io"
	"sync"
)

// StdioTransport implements Transport over newline-delimited JSON, typically
// a plugin process's stdin/stdout.
type StdioTransport struct {
	*pump

	reader io.Reader
	writer io.Writer
	config Config

	wmu sync.Mutex
}

// NewStdioTransport creates a new stdio transport.
func NewStdioTransport(r io.Reader, w io.Writer, cfg Config) *StdioTransport {
	cfg = cfg.withDefaults()
	return &StdioTransport{
		pump:   newPump(cfg),
		reader: r,
		writer: w,
		config: cfg,
	}
}

// Run starts the transport, blocking until ctx is cancelled or Close is called.
// Reaching EOF on the reader does not end Run; Recv is closed instead.
func (t *StdioTransport) Run(ctx context.Context) error {
	// The reader is not waited for: a blocked read on stdin cannot be
	// interrupted, and it exits on its own once the source ends.
	go t.readLoop(ctx)

	wrote := make(chan struct{})
	go func() {
		defer close(wrote)
		t.writeLoop(ctx, t.write, nil, nil)
	}()

	var err error
	select {
	case <-ctx.Done():
		err = ctx.Err()
	case <-t.done:
	}

	t.Close()
	<-wrote
	return err
}

// Close initiates graceful shutdown.
func (t *StdioTransport) Close() error {
	t.shut()
	return nil
}

func (t *StdioTransport) readLoop(ctx context.Context) {
	defer close(t.recv)

	scanner := bufio.NewScanner(t.reader)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024) // 1MB buffer

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		case <-t.done:
			return
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		// Scanner reuses its buffer.
		data := append([]byte(nil), line...)
		if !t.deliver(ctx, data) {
			return
		}
	}
}

func (t *StdioTransport) write(data []byte) error {
	t.wmu.Lock()
	defer t.wmu.Unlock()
	_, err := t.writer.Write(append(data, '\n'))
	return err
}
