package drainer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/faisal-shah/logmerge/internal/buffer"
	"github.com/faisal-shah/logmerge/internal/diag"
	"github.com/faisal-shah/logmerge/internal/model"
	"github.com/faisal-shah/logmerge/internal/store"
)

type eventLog struct {
	mu     sync.Mutex
	events []diag.Event
}

func (l *eventLog) Emit(e diag.Event) {
	l.mu.Lock()
	l.events = append(l.events, e)
	l.mu.Unlock()
}

func (l *eventLog) kinds() []diag.Kind {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []diag.Kind
	for _, e := range l.events {
		out = append(out, e.Kind)
	}
	return out
}

func TestDrainMovesBatch(t *testing.T) {
	buf := buffer.New()
	st := store.New()
	events := &eventLog{}
	d := New(buf, st, time.Hour, events, nil)

	if n := d.Drain(); n != 0 {
		t.Errorf("expected 0 from empty buffer, got %d", n)
	}

	buf.Push(&model.Record{Timestamp: model.At(2)})
	buf.Push(&model.Record{Timestamp: model.At(1)})
	if n := d.Drain(); n != 2 {
		t.Errorf("expected 2 drained, got %d", n)
	}
	if st.Len() != 2 || buf.Len() != 0 {
		t.Errorf("expected store=2 buffer=0, got store=%d buffer=%d", st.Len(), buf.Len())
	}

	kinds := events.kinds()
	if len(kinds) != 2 || kinds[0] != diag.KindDrainEmpty || kinds[1] != diag.KindDrained {
		t.Errorf("unexpected diagnostics: %v", kinds)
	}
	if events.events[1].Count != 2 {
		t.Errorf("expected drain count 2, got %d", events.events[1].Count)
	}
}

func TestRunDrainsPeriodicallyAndOnStop(t *testing.T) {
	buf := buffer.New()
	st := store.New()
	d := New(buf, st, 20*time.Millisecond, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	buf.Push(&model.Record{Raw: "a"})
	deadline := time.After(2 * time.Second)
	for st.Len() != 1 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for periodic drain")
		case <-time.After(5 * time.Millisecond):
		}
	}

	buf.Push(&model.Record{Raw: "b"})
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("drainer did not stop")
	}
	if st.Len() != 2 {
		t.Errorf("expected final drain on stop, store has %d", st.Len())
	}
}

func TestDefaultInterval(t *testing.T) {
	d := New(buffer.New(), store.New(), 0, nil, nil)
	if d.interval != DefaultInterval {
		t.Errorf("expected %v, got %v", DefaultInterval, d.interval)
	}
}
