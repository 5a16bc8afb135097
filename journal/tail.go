package journal

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/tidwall/gjson"

	"github.com/vinayprograms/pluginkit/bus"
	"github.com/vinayprograms/pluginkit/logging"
)

// JournalPattern matches journal file names inside the watched directory.
const JournalPattern = "Journal.*.log"

// Tailer watches a journal directory and publishes every newly appended
// line of a journal file as a batch: one batch per write notification,
// holding the complete lines written since the previous one.
type Tailer struct {
	dir     string
	bus     bus.MessageBus
	subject string
	logger  *logging.Logger

	mu    sync.Mutex
	files map[string]*tailState
}

type tailState struct {
	offset  int64
	partial []byte
	cmdr    string
}

// NewTailer creates a tailer for dir publishing on subject.
func NewTailer(dir string, b bus.MessageBus, subject string, logger *logging.Logger) *Tailer {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Tailer{
		dir:     dir,
		bus:     b,
		subject: subject,
		logger:  logger.WithComponent("journal"),
		files:   make(map[string]*tailState),
	}
}

// Run watches the directory until ctx is done. Journal files already
// present are skipped to their current end.
func (t *Tailer) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(t.dir); err != nil {
		return fmt.Errorf("watch journal dir: %w", err)
	}
	t.skipExisting()
	t.logger.Info("tailing", logging.Fields{"dir": t.dir})

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isJournal(event.Name) {
				continue
			}
			switch {
			case event.Has(fsnotify.Write), event.Has(fsnotify.Create):
				if err := t.Poll(ctx, event.Name); err != nil {
					t.logger.Warn("tail_failed", logging.Fields{"file": filepath.Base(event.Name), "error": err})
				}
			case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
				t.forget(event.Name)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			t.logger.Warn("watcher_error", logging.Fields{"error": err})
		}
	}
}

// Poll reads what was appended to path since the last call and publishes
// the complete lines as one batch. A trailing line without a newline is
// held until it is finished.
func (t *Tailer) Poll(ctx context.Context, path string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	st := t.files[path]
	if st == nil {
		st = &tailState{}
		t.files[path] = st
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.Size() < st.offset {
		// Truncated; start over.
		st.offset = 0
		st.partial = nil
	}
	if _, err := f.Seek(st.offset, io.SeekStart); err != nil {
		return err
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return err
	}
	st.offset += int64(len(data))

	data = append(st.partial, data...)
	cut := bytes.LastIndexByte(data, '\n')
	if cut < 0 {
		st.partial = data
		return nil
	}
	st.partial = append([]byte(nil), data[cut+1:]...)

	var events []string
	for _, line := range strings.Split(string(data[:cut]), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if name := commanderName(line); name != "" {
			st.cmdr = name
		}
		events = append(events, line)
	}
	return PublishBatch(ctx, t.bus, t.subject, st.cmdr, filepath.Base(path), events)
}

func (t *Tailer) skipExisting() {
	matches, _ := filepath.Glob(filepath.Join(t.dir, JournalPattern))

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		t.files[path] = &tailState{offset: info.Size()}
	}
}

func (t *Tailer) forget(path string) {
	t.mu.Lock()
	delete(t.files, path)
	t.mu.Unlock()
}

func isJournal(path string) bool {
	ok, _ := filepath.Match(JournalPattern, filepath.Base(path))
	return ok
}

// commanderName returns the commander a line identifies, if any.
func commanderName(line string) string {
	switch EventName(line) {
	case "Commander":
		return gjson.Get(line, "Name").String()
	case "LoadGame":
		return gjson.Get(line, "Commander").String()
	}
	return ""
}
