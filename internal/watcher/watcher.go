package watcher

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Notifier turns OS-level file notifications into early-poll hints for
// registered files. Polling stays authoritative; a lost notification only
// delays a read until the next tick.
type Notifier struct {
	fsw      *fsnotify.Watcher
	logger   *slog.Logger
	onChange func(path string)

	mu    sync.Mutex
	files map[string]struct{}
	dirs  map[string]int // watched directory -> registered files inside
}

// NewNotifier creates a Notifier that calls onChange with the absolute path
// of any registered file that was written, created, renamed, or removed.
func NewNotifier(onChange func(path string), logger *slog.Logger) (*Notifier, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Notifier{
		fsw:      fsw,
		logger:   logger,
		onChange: onChange,
		files:    make(map[string]struct{}),
		dirs:     make(map[string]int),
	}, nil
}

// Add registers a file. Its parent directory is watched so that rotation
// (remove + create) keeps producing events.
func (n *Notifier) Add(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, ok := n.files[abs]; ok {
		return nil
	}
	dir := filepath.Dir(abs)
	if n.dirs[dir] == 0 {
		if err := n.fsw.Add(dir); err != nil {
			return err
		}
	}
	n.dirs[dir]++
	n.files[abs] = struct{}{}
	return nil
}

// Remove unregisters a file and stops watching its directory once empty.
func (n *Notifier) Remove(path string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, ok := n.files[abs]; !ok {
		return
	}
	delete(n.files, abs)
	dir := filepath.Dir(abs)
	n.dirs[dir]--
	if n.dirs[dir] <= 0 {
		delete(n.dirs, dir)
		_ = n.fsw.Remove(dir)
	}
}

// Paths returns the registered files.
func (n *Notifier) Paths() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.files))
	for p := range n.files {
		out = append(out, p)
	}
	return out
}

// Run forwards events until the context is cancelled, then closes the
// underlying OS watcher.
func (n *Notifier) Run(ctx context.Context) {
	defer n.fsw.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-n.fsw.Events:
			if !ok {
				return
			}
			// Forward relevant events (write, create, remove, rename).
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) &&
				!ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if n.registered(ev.Name) {
				n.onChange(filepath.Clean(ev.Name))
			}
		case err, ok := <-n.fsw.Errors:
			if !ok {
				return
			}
			n.logger.Warn("file notification error", "error", err)
		}
	}
}

func (n *Notifier) registered(name string) bool {
	abs, err := filepath.Abs(name)
	if err != nil {
		return false
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	_, ok := n.files[abs]
	return ok
}
