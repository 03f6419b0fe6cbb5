package diag

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestEventString(t *testing.T) {
	tests := []struct {
		ev   Event
		want string
	}{
		{Event{Kind: KindDrained, Count: 12, Elapsed: 12 * time.Millisecond}, "Buffer drained with 12 entries in 0.012 seconds"},
		{Event{Kind: KindDrainEmpty}, "Buffer empty - no entries to process"},
		{Event{Kind: KindFileProcessed, File: "a.log", Count: 3, Elapsed: time.Millisecond}, "Processed 3 new entries from a.log in 0.001000 seconds"},
		{Event{Kind: KindFileError, File: "a.log", Err: errors.New("denied")}, "Error monitoring file a.log: denied"},
		{Event{Kind: KindMonitoringError, Err: errors.New("boom")}, "Monitoring error: boom"},
	}
	for _, tt := range tests {
		if got := tt.ev.String(); got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.ev.Kind, got, tt.want)
		}
	}
}

func TestMultiFansOut(t *testing.T) {
	var a, b int
	sink := Multi(Func(func(Event) { a++ }), nil, Func(func(Event) { b++ }))
	sink.Emit(Event{Kind: KindDrainEmpty})
	sink.Emit(Event{Kind: KindDrainEmpty})
	if a != 2 || b != 2 {
		t.Errorf("expected both sinks to see 2 events, got %d and %d", a, b)
	}
}

func TestLogSinkLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	sink := LogSink{Logger: logger}

	sink.Emit(Event{Kind: KindDrained, Count: 1})
	if buf.Len() != 0 {
		t.Errorf("expected drain event below warn to be filtered, got %s", buf.String())
	}

	// The watcher itself warns once per failure streak; repeated poll
	// errors stay at debug.
	sink.Emit(Event{Kind: KindFileError, File: "x.log", Err: errors.New("gone")})
	if buf.Len() != 0 {
		t.Errorf("expected file error below warn to be filtered, got %s", buf.String())
	}

	sink.Emit(Event{Kind: KindWatcherAborted, File: "x.log"})
	out := buf.String()
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, "file=x.log") {
		t.Errorf("expected warn line with file attr, got %s", out)
	}
}

func TestLogSinkFileErrorAtDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	LogSink{Logger: logger}.Emit(Event{Kind: KindFileError, File: "x.log", Err: errors.New("gone")})

	out := buf.String()
	if !strings.Contains(out, "level=DEBUG") || !strings.Contains(out, "error=gone") {
		t.Errorf("expected debug line with error attr, got %s", out)
	}
}
