// Package diag carries status events from the merge pipeline to whatever
// surface displays them (status line, log, HTTP API). Events are
// informational only; nothing in the pipeline depends on how they are handled.
package diag

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Kind identifies the pipeline stage that produced an Event.
type Kind int

const (
	KindDrained Kind = iota
	KindDrainEmpty
	KindFileProcessed
	KindFileError
	KindWatcherAborted
	KindMonitoringError
)

func (k Kind) String() string {
	switch k {
	case KindDrained:
		return "drained"
	case KindDrainEmpty:
		return "drain_empty"
	case KindFileProcessed:
		return "file_processed"
	case KindFileError:
		return "file_error"
	case KindWatcherAborted:
		return "watcher_aborted"
	case KindMonitoringError:
		return "monitoring_error"
	default:
		return "unknown"
	}
}

// Event is one status update.
type Event struct {
	Kind    Kind
	File    string
	Count   int
	Elapsed time.Duration
	Err     error
}

// String renders the event in status-bar wording.
func (e Event) String() string {
	switch e.Kind {
	case KindDrained:
		return fmt.Sprintf("Buffer drained with %d entries in %.3f seconds", e.Count, e.Elapsed.Seconds())
	case KindDrainEmpty:
		return "Buffer empty - no entries to process"
	case KindFileProcessed:
		return fmt.Sprintf("Processed %d new entries from %s in %.6f seconds", e.Count, e.File, e.Elapsed.Seconds())
	case KindFileError:
		return fmt.Sprintf("Error monitoring file %s: %v", e.File, e.Err)
	case KindWatcherAborted:
		return fmt.Sprintf("Watcher for %s did not stop in time and was abandoned", e.File)
	default:
		return fmt.Sprintf("Monitoring error: %v", e.Err)
	}
}

// Sink receives events. Implementations must be safe for concurrent use and
// must not block.
type Sink interface {
	Emit(Event)
}

// Func adapts a function to a Sink.
type Func func(Event)

func (f Func) Emit(e Event) { f(e) }

// Discard drops every event.
var Discard Sink = Func(func(Event) {})

// Multi fans an event out to several sinks.
func Multi(sinks ...Sink) Sink {
	return Func(func(e Event) {
		for _, s := range sinks {
			if s != nil {
				s.Emit(e)
			}
		}
	})
}

// LogSink writes events to a slog.Logger at a level matching their kind.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Emit(e Event) {
	if s.Logger == nil {
		return
	}
	attrs := []slog.Attr{slog.String("event", e.Kind.String())}
	if e.File != "" {
		attrs = append(attrs, slog.String("file", e.File))
	}
	switch e.Kind {
	case KindDrained, KindFileProcessed:
		attrs = append(attrs, slog.Int("count", e.Count), slog.Duration("elapsed", e.Elapsed))
	case KindFileError, KindMonitoringError:
		attrs = append(attrs, slog.Any("error", e.Err))
	}
	s.Logger.LogAttrs(context.Background(), level(e.Kind), e.String(), attrs...)
}

func level(k Kind) slog.Level {
	switch k {
	case KindWatcherAborted:
		return slog.LevelWarn
	case KindMonitoringError:
		return slog.LevelError
	default:
		return slog.LevelDebug
	}
}
