// Package supervisor owns the lifecycle of a merge session: one FileWatcher
// per file, the shared RecordBuffer, and the Drainer feeding the Store.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/faisal-shah/logmerge/internal/buffer"
	"github.com/faisal-shah/logmerge/internal/diag"
	"github.com/faisal-shah/logmerge/internal/drainer"
	"github.com/faisal-shah/logmerge/internal/metrics"
	"github.com/faisal-shah/logmerge/internal/model"
	"github.com/faisal-shah/logmerge/internal/parser"
	"github.com/faisal-shah/logmerge/internal/store"
	"github.com/faisal-shah/logmerge/internal/tailer"
	"github.com/faisal-shah/logmerge/internal/watcher"
)

const (
	DefaultShutdownTimeout       = 3 * time.Second
	DefaultForceTerminateTimeout = time.Second
)

var (
	ErrShutdownTimeout = errors.New("watchers did not stop within the shutdown timeout")
	ErrNotRunning      = errors.New("supervisor is not running")
	ErrAlreadyRunning  = errors.New("supervisor is already running")
)

// Options configures a Supervisor. Zero values select the defaults.
type Options struct {
	PollInterval          time.Duration
	DrainInterval         time.Duration
	ShutdownTimeout       time.Duration
	ForceTerminateTimeout time.Duration
	FromEnd               bool // start new watchers at the current end of file
	Notify                bool // wake watchers on filesystem notifications
	Logger                *slog.Logger
	Diag                  diag.Sink
	Metrics               *metrics.Metrics
}

// StopReport summarizes a shutdown.
type StopReport struct {
	Stopped []string // watchers that exited cooperatively
	Aborted []string // watchers abandoned after both timeouts
	Elapsed time.Duration
	Err     error // wraps ErrShutdownTimeout when Aborted is non-empty
}

// WatcherInfo is a point-in-time view of one watcher.
type WatcherInfo struct {
	Path    string `json:"path"`
	Status  string `json:"status"`
	Emitted int64  `json:"emitted"`
}

type handle struct {
	w      *tailer.FileWatcher
	gate   *gate
	cancel context.CancelFunc
	done   chan struct{}
}

// gate forwards pushes until it is detached. Once detached, a watcher that
// ignored cancellation can no longer add records to the session.
type gate struct {
	mu       sync.RWMutex
	out      tailer.Emitter
	detached bool
}

func (g *gate) Push(rec *model.Record) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if !g.detached {
		g.out.Push(rec)
	}
}

func (g *gate) detach() {
	g.mu.Lock()
	g.detached = true
	g.mu.Unlock()
}

// Supervisor starts, reconfigures, and stops a merge session.
type Supervisor struct {
	parser parser.Parser
	buf    *buffer.RecordBuffer
	store  *store.Store
	opts   Options
	logger *slog.Logger
	diag   diag.Sink

	mu          sync.Mutex
	running     bool
	ctx         context.Context
	cancel      context.CancelFunc
	drainCancel context.CancelFunc
	drainDone   chan struct{}
	notifier    *watcher.Notifier
	watchers    map[string]*handle
	order       []string
}

// New creates a Supervisor that parses lines with p and merges into st.
func New(p parser.Parser, st *store.Store, opts Options) *Supervisor {
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = DefaultShutdownTimeout
	}
	if opts.ForceTerminateTimeout <= 0 {
		opts.ForceTerminateTimeout = DefaultForceTerminateTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	d := opts.Diag
	if d == nil {
		d = diag.Discard
	}
	return &Supervisor{
		parser: p,
		buf:    buffer.New(),
		store:  st,
		opts:   opts,
		logger: logger,
		diag:   d,
	}
}

// Store returns the store the session merges into.
func (s *Supervisor) Store() *store.Store { return s.store }

// Running reports whether a session is active.
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Files returns the watched paths in the order they were added.
func (s *Supervisor) Files() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}

// Watchers returns the status of every watcher in file order.
func (s *Supervisor) Watchers() []WatcherInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]WatcherInfo, 0, len(s.order))
	for _, p := range s.order {
		h := s.watchers[p]
		out = append(out, WatcherInfo{Path: p, Status: h.w.Status().String(), Emitted: h.w.Emitted()})
	}
	return out
}

// Start launches one watcher per path and the drainer. The session ends
// when Stop is called or ctx is cancelled.
func (s *Supervisor) Start(ctx context.Context, paths []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyRunning
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.watchers = make(map[string]*handle)
	s.order = nil

	if s.opts.Notify {
		n, err := watcher.NewNotifier(s.wake, s.logger)
		if err != nil {
			s.logger.Warn("file notifications unavailable, polling only", "error", err)
			s.diag.Emit(diag.Event{Kind: diag.KindMonitoringError, Err: err})
		} else {
			s.notifier = n
			go n.Run(s.ctx)
		}
	}

	for _, p := range normalize(paths) {
		s.startLocked(p)
	}

	// Only Stop ends the drainer, after the watchers have exited, so the
	// final drain sees everything they pushed.
	var drainCtx context.Context
	drainCtx, s.drainCancel = context.WithCancel(context.WithoutCancel(ctx))
	s.drainDone = make(chan struct{})
	d := drainer.New(s.buf, s.store, s.opts.DrainInterval, s.diag, s.opts.Metrics)
	go func(done chan struct{}) {
		defer close(done)
		d.Run(drainCtx)
	}(s.drainDone)

	s.running = true
	s.logger.Info("merge session started", "files", len(s.order))
	return nil
}

// UpdateFileList reconciles the watched set with paths. Removed files are
// stopped and their further output discarded, new files start from a fresh
// state, and files present in both sets keep their watcher untouched.
func (s *Supervisor) UpdateFileList(paths []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return ErrNotRunning
	}

	want := normalize(paths)
	keep := make(map[string]bool, len(want))
	for _, p := range want {
		keep[p] = true
	}

	var removed, added int
	for _, p := range s.order {
		if keep[p] {
			continue
		}
		h := s.watchers[p]
		h.gate.detach()
		h.cancel()
		if s.notifier != nil {
			s.notifier.Remove(p)
		}
		delete(s.watchers, p)
		removed++
	}

	order := make([]string, 0, len(want))
	for _, p := range want {
		if _, ok := s.watchers[p]; !ok {
			s.startLocked(p)
			added++
		}
		order = append(order, p)
	}
	s.order = order

	s.logger.Info("file list updated", "added", added, "removed", removed, "files", len(s.order))
	return nil
}

func (s *Supervisor) startLocked(path string) {
	g := &gate{out: s.buf}
	w := tailer.New(path, s.parser, g, tailer.Options{
		PollInterval: s.opts.PollInterval,
		FromEnd:      s.opts.FromEnd,
		Logger:       s.logger,
		Diag:         s.diag,
		Metrics:      s.opts.Metrics,
	})
	ctx, cancel := context.WithCancel(s.ctx)
	h := &handle{w: w, gate: g, cancel: cancel, done: make(chan struct{})}

	if s.notifier != nil {
		if err := s.notifier.Add(path); err != nil {
			s.logger.Debug("cannot watch file for notifications", "file", path, "error", err)
		}
	}

	m := s.opts.Metrics
	m.WatcherStarted()
	go func() {
		defer close(h.done)
		defer m.WatcherStopped()
		w.Run(ctx)
	}()

	s.watchers[path] = h
	s.order = append(s.order, path)
}

func (s *Supervisor) wake(path string) {
	s.mu.Lock()
	h, ok := s.watchers[path]
	s.mu.Unlock()
	if ok {
		h.w.Wake()
	}
}

// Stop cancels every watcher and waits up to ShutdownTimeout for them to
// exit. Stragglers are detached and given ForceTerminateTimeout more; any
// still running after that are abandoned and listed in the report. The
// drainer then performs its final drain. Stop returns within the sum of
// both timeouts.
func (s *Supervisor) Stop() StopReport {
	start := time.Now()

	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return StopReport{Err: ErrNotRunning}
	}
	s.running = false
	handles := make(map[string]*handle, len(s.watchers))
	for p, h := range s.watchers {
		handles[p] = h
	}
	order := append([]string(nil), s.order...)
	s.cancel()
	drainCancel, drainDone := s.drainCancel, s.drainDone
	s.notifier = nil
	s.mu.Unlock()

	deadline := start.Add(s.opts.ShutdownTimeout + s.opts.ForceTerminateTimeout)
	var report StopReport

	stragglers := waitAll(order, handles, time.After(s.opts.ShutdownTimeout))
	if len(stragglers) > 0 {
		for _, p := range stragglers {
			s.logger.Warn("watcher did not stop in time, detaching", "file", p)
			handles[p].gate.detach()
		}
		report.Aborted = waitAll(stragglers, handles, time.After(s.opts.ForceTerminateTimeout))
	}

	aborted := make(map[string]bool, len(report.Aborted))
	for _, p := range report.Aborted {
		aborted[p] = true
		s.logger.Warn("watcher abandoned", "file", p)
		s.opts.Metrics.WatcherAborted()
		s.diag.Emit(diag.Event{Kind: diag.KindWatcherAborted, File: p, Err: ErrShutdownTimeout})
	}
	for _, p := range order {
		if !aborted[p] {
			report.Stopped = append(report.Stopped, p)
		}
	}

	drainCancel()
	select {
	case <-drainDone:
	case <-time.After(time.Until(deadline)):
		s.logger.Warn("final drain did not finish before the shutdown deadline")
	}

	if len(report.Aborted) > 0 {
		report.Err = fmt.Errorf("%w: %d abandoned", ErrShutdownTimeout, len(report.Aborted))
	}
	report.Elapsed = time.Since(start)
	s.logger.Info("merge session stopped",
		"stopped", len(report.Stopped), "aborted", len(report.Aborted), "elapsed", report.Elapsed)
	return report
}

// waitAll waits for every listed watcher to exit or for timeout to fire and
// returns the paths still running, in the given order.
func waitAll(paths []string, handles map[string]*handle, timeout <-chan time.Time) []string {
	var pending []string
	expired := false
	for _, p := range paths {
		if expired {
			select {
			case <-handles[p].done:
			default:
				pending = append(pending, p)
			}
			continue
		}
		select {
		case <-handles[p].done:
		case <-timeout:
			expired = true
			pending = append(pending, p)
		}
	}
	return pending
}

// normalize makes paths absolute and drops duplicates, keeping first
// occurrence order.
func normalize(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if abs, err := filepath.Abs(p); err == nil {
			p = abs
		}
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}
