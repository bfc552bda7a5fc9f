// Package tail follows a growing engine log file and surfaces new lines.
//
// The tailer is a pure observer: the engine writes the log, we only read.
// It never signals end-of-stream on its own; the log may always still grow,
// so the owner detaches explicitly when the phase is over.
package tail

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// pollInterval is the fallback cadence when fsnotify events are quiet.
// Network filesystems common on HPC hosts drop inotify events, so the
// poll path is load-bearing, not just a safety net.
const pollInterval = 250 * time.Millisecond

// Tailer follows one log file. Obtain with Attach, stop with Detach.
type Tailer struct {
	path   string
	lines  chan string
	stop   chan struct{}
	done   chan struct{}
	once   sync.Once
	logger *zap.Logger

	// read state, owned by the run goroutine
	file    *os.File
	offset  int64
	partial []byte
}

// Attach starts following path. The file may not exist yet; the tailer
// waits for it to appear. Callers must Detach on every exit path.
func Attach(path string, logger *zap.Logger) (*Tailer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Tailer{
		path:   path,
		lines:  make(chan string, 256),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		logger: logger,
	}

	// Watch the parent directory: the log itself may not exist yet, and
	// watching the dir also survives the engine recreating the file.
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		// Degrade to pure polling rather than failing the phase.
		logger.Warn("fsnotify unavailable, tailing by polling only", zap.Error(err))
		watcher = nil
	} else if werr := watcher.Add(filepath.Dir(path)); werr != nil {
		logger.Warn("failed to watch log directory, tailing by polling only",
			zap.String("dir", filepath.Dir(path)), zap.Error(werr))
		_ = watcher.Close()
		watcher = nil
	}

	go t.run(watcher)
	return t, nil
}

// Lines returns the channel of new log lines. Closed only by Detach.
func (t *Tailer) Lines() <-chan string {
	return t.lines
}

// Detach stops the tailer and releases the watcher and the open file
// handle. Idempotent; safe on every exit path including phase failure.
func (t *Tailer) Detach() {
	t.once.Do(func() {
		close(t.stop)
	})
	<-t.done
}

func (t *Tailer) run(watcher *fsnotify.Watcher) {
	defer close(t.done)
	defer close(t.lines)
	defer func() {
		if watcher != nil {
			_ = watcher.Close()
		}
		if t.file != nil {
			_ = t.file.Close()
		}
	}()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	var events <-chan fsnotify.Event
	var errs <-chan error
	if watcher != nil {
		events = watcher.Events
		errs = watcher.Errors
	}

	for {
		t.drain()
		select {
		case <-t.stop:
			// Final drain so lines written just before detach are not lost.
			t.drain()
			return
		case <-ticker.C:
		case ev := <-events:
			if ev.Name != t.path {
				continue
			}
		case err := <-errs:
			if err != nil {
				t.logger.Warn("log watch error", zap.Error(err))
			}
		}
	}
}

// drain reads any new bytes and emits complete lines.
func (t *Tailer) drain() {
	if t.file == nil {
		f, err := os.Open(t.path)
		if err != nil {
			// Not created yet; keep waiting.
			return
		}
		t.file = f
		t.offset = 0
	}

	info, err := t.file.Stat()
	if err != nil {
		return
	}
	size := info.Size()
	if size < t.offset {
		// Truncated mid-run: start over from the top without failing.
		t.offset = 0
		t.partial = nil
	}
	if size == t.offset {
		return
	}

	if _, err := t.file.Seek(t.offset, io.SeekStart); err != nil {
		return
	}
	buf := make([]byte, size-t.offset)
	n, err := io.ReadFull(t.file, buf)
	if err != nil && err != io.ErrUnexpectedEOF {
		return
	}
	t.offset += int64(n)
	buf = buf[:n]

	data := append(t.partial, buf...)
	for {
		idx := bytes.IndexByte(data, '\n')
		if idx < 0 {
			break
		}
		t.emit(string(data[:idx]))
		data = data[idx+1:]
	}
	t.partial = data
}

// emit delivers a line without blocking forever: if the consumer is gone or
// slow, drop rather than wedge the phase teardown.
func (t *Tailer) emit(line string) {
	select {
	case t.lines <- line:
	default:
		// Consumer lagging; drop the line. The log file remains the
		// authoritative record.
	}
}
