package tailer

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/faisal-shah/logmerge/internal/diag"
	"github.com/faisal-shah/logmerge/internal/metrics"
	"github.com/faisal-shah/logmerge/internal/model"
	"github.com/faisal-shah/logmerge/internal/parser"
	"github.com/faisal-shah/logmerge/internal/platform"
)

// DefaultPollInterval is how often a watcher checks its file for growth.
const DefaultPollInterval = time.Second

// Status is the position of a FileWatcher in its polling state machine.
type Status int32

const (
	StatusIdle Status = iota
	StatusPolling
	StatusGrowing
	StatusUnchanged
	StatusRotated
	StatusStopped
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusPolling:
		return "polling"
	case StatusGrowing:
		return "growing"
	case StatusUnchanged:
		return "unchanged"
	case StatusRotated:
		return "rotated"
	case StatusStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// WatchState is the read position of one file. It is owned exclusively by
// the FileWatcher that tracks the file.
type WatchState struct {
	Path         string
	Offset       int64 // bytes consumed, including Pending
	LastSize     int64
	LastIdentity platform.Identity
	Pending      []byte // bytes after the last newline
}

// Emitter receives accepted records.
type Emitter interface {
	Push(*model.Record)
}

// Options configures a FileWatcher.
type Options struct {
	PollInterval time.Duration
	FromEnd      bool // skip content present at the first poll
	Logger       *slog.Logger
	Diag         diag.Sink
	Metrics      *metrics.Metrics
}

// FileWatcher polls one file, frames complete lines, parses them, and emits
// the resulting records in file order.
type FileWatcher struct {
	state   WatchState
	primed  bool
	failing bool

	parser  parser.Parser
	out     Emitter
	opts    Options
	logger  *slog.Logger
	diag    diag.Sink
	wake    chan struct{}
	status  atomic.Int32
	emitted atomic.Int64
}

// New creates a FileWatcher for path.
func New(path string, p parser.Parser, out Emitter, opts Options) *FileWatcher {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	d := opts.Diag
	if d == nil {
		d = diag.Discard
	}
	return &FileWatcher{
		state:  WatchState{Path: path},
		parser: p,
		out:    out,
		opts:   opts,
		logger: logger.With("file", path),
		diag:   d,
		wake:   make(chan struct{}, 1),
	}
}

// Path returns the watched path.
func (w *FileWatcher) Path() string { return w.state.Path }

// Status returns the current state machine position. Safe for concurrent use.
func (w *FileWatcher) Status() Status { return Status(w.status.Load()) }

// Emitted returns how many records this watcher has pushed. Safe for
// concurrent use.
func (w *FileWatcher) Emitted() int64 { return w.emitted.Load() }

// State returns a copy of the watch state. It must not be called while Run
// is active.
func (w *FileWatcher) State() WatchState {
	s := w.state
	s.Pending = bytes.Clone(w.state.Pending)
	return s
}

// Wake asks a running watcher to poll before its next tick. It never blocks.
func (w *FileWatcher) Wake() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Run polls until ctx is cancelled. The context is checked once per
// iteration and between lines.
func (w *FileWatcher) Run(ctx context.Context) {
	defer w.status.Store(int32(StatusStopped))

	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			return
		}
		_, _ = w.Poll(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-w.wake:
		}
	}
}

// Poll performs one polling iteration and returns the number of records
// emitted. I/O errors are logged, reported, and returned; the watcher's
// state is left consistent so the next poll retries.
func (w *FileWatcher) Poll(ctx context.Context) (int, error) {
	w.status.Store(int32(StatusPolling))
	start := time.Now()

	n, err := w.poll(ctx)
	if err != nil {
		w.reportError(err)
		return n, err
	}
	if w.failing {
		w.failing = false
		w.logger.Info("file readable again")
	}
	if n > 0 {
		w.diag.Emit(diag.Event{Kind: diag.KindFileProcessed, File: w.state.Path, Count: n, Elapsed: time.Since(start)})
	}
	return n, nil
}

func (w *FileWatcher) poll(ctx context.Context) (int, error) {
	fi, err := os.Stat(w.state.Path)
	if err != nil {
		return 0, fmt.Errorf("stat: %w", err)
	}
	if fi.IsDir() {
		return 0, fmt.Errorf("stat: %s is a directory", w.state.Path)
	}
	size := fi.Size()
	id := platform.IdentityOf(fi)

	switch {
	case !w.primed:
		w.primed = true
		if w.opts.FromEnd {
			w.state.Offset = size
		}
	case w.rotated(id, size):
		w.logger.Info("file truncated or rotated, reading from start",
			"previous_size", w.state.LastSize, "size", size)
		w.state.Offset = 0
		w.state.Pending = nil
		w.status.Store(int32(StatusRotated))
	}
	w.state.LastSize = size
	w.state.LastIdentity = id

	if size <= w.state.Offset {
		if w.Status() != StatusRotated {
			w.status.Store(int32(StatusUnchanged))
		}
		return 0, nil
	}
	w.status.Store(int32(StatusGrowing))
	return w.readFrom(ctx, size)
}

func (w *FileWatcher) rotated(id platform.Identity, size int64) bool {
	if id.Known() && w.state.LastIdentity.Known() && id != w.state.LastIdentity {
		return true
	}
	return size < w.state.LastSize || size < w.state.Offset
}

// readFrom consumes bytes between Offset and size. Offset advances past each
// complete line as soon as it has been handed off.
func (w *FileWatcher) readFrom(ctx context.Context, size int64) (int, error) {
	f, err := os.Open(w.state.Path)
	if err != nil {
		return 0, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	if _, err := f.Seek(w.state.Offset, io.SeekStart); err != nil {
		return 0, fmt.Errorf("seek: %w", err)
	}

	r := bufio.NewReaderSize(io.LimitReader(f, size-w.state.Offset), 64*1024)
	var emitted int
	for {
		if ctx.Err() != nil {
			return emitted, nil
		}
		chunk, err := r.ReadBytes('\n')
		switch {
		case err == nil:
			line := chunk
			if len(w.state.Pending) > 0 {
				line = append(w.state.Pending, chunk...)
				w.state.Pending = nil
			}
			if w.handle(line) {
				emitted++
			}
			w.state.Offset += int64(len(chunk))

		case errors.Is(err, io.EOF):
			if len(chunk) > 0 {
				w.state.Pending = append(w.state.Pending, chunk...)
				w.state.Offset += int64(len(chunk))
			}
			return emitted, nil

		default:
			return emitted, fmt.Errorf("read: %w", err)
		}
	}
}

// handle parses one complete line, newline included, and emits the record.
func (w *FileWatcher) handle(line []byte) bool {
	line = bytes.TrimSuffix(line, []byte("\n"))
	line = bytes.TrimSuffix(line, []byte("\r"))

	rec, ok := w.parser.Parse(string(line), w.state.Path)
	if !ok {
		return false
	}
	w.out.Push(rec)
	w.emitted.Add(1)
	return true
}

func (w *FileWatcher) reportError(err error) {
	if !w.failing {
		w.logger.Warn("cannot read file, will retry", "error", err)
	} else {
		w.logger.Debug("file still unreadable", "error", err)
	}
	w.failing = true
	w.opts.Metrics.FileError(w.state.Path)
	w.diag.Emit(diag.Event{Kind: diag.KindFileError, File: w.state.Path, Err: err})
}
