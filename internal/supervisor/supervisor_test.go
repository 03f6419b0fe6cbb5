package supervisor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/faisal-shah/logmerge/internal/model"
	"github.com/faisal-shah/logmerge/internal/parser"
	"github.com/faisal-shah/logmerge/internal/schema"
	"github.com/faisal-shah/logmerge/internal/store"
)

const (
	waitFor = 3 * time.Second
	tick    = 10 * time.Millisecond
)

func dbglogParser(t *testing.T) *parser.LineParser {
	t.Helper()
	s, err := schema.LoadPlugin("dbglog")
	require.NoError(t, err)
	return parser.New(s, nil)
}

func fastOptions() Options {
	return Options{
		PollInterval:          tick,
		DrainInterval:         tick,
		ShutdownTimeout:       time.Second,
		ForceTerminateTimeout: 200 * time.Millisecond,
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func appendTo(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644)
	require.NoError(t, err)
	defer f.Close()
	_, err = f.WriteString(content)
	require.NoError(t, err)
}

func timestamps(st *store.Store) []float64 {
	var out []float64
	for _, r := range st.Snapshot() {
		out = append(out, r.Timestamp.Seconds)
	}
	return out
}

func TestMergesFilesInTimestampOrder(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.log")
	b := filepath.Join(dir, "b.log")
	writeFile(t, a, "6 1.000000 app first\n6 3.000000 app third\n")
	writeFile(t, b, "6 2.000000 db second\n6 4.000000 db fourth\n")

	st := store.New()
	sup := New(dbglogParser(t), st, fastOptions())
	require.NoError(t, sup.Start(context.Background(), []string{a, b}))
	assert.True(t, sup.Running())
	assert.Equal(t, []string{a, b}, sup.Files())

	require.Eventually(t, func() bool { return st.Len() == 4 }, waitFor, tick)
	assert.Equal(t, []float64{1, 2, 3, 4}, timestamps(st))

	report := sup.Stop()
	require.NoError(t, report.Err)
	assert.ElementsMatch(t, []string{a, b}, report.Stopped)
	assert.Empty(t, report.Aborted)
	assert.False(t, sup.Running())
}

func TestLifecycleErrors(t *testing.T) {
	sup := New(dbglogParser(t), store.New(), fastOptions())

	assert.ErrorIs(t, sup.UpdateFileList(nil), ErrNotRunning)
	assert.ErrorIs(t, sup.Stop().Err, ErrNotRunning)

	require.NoError(t, sup.Start(context.Background(), nil))
	assert.ErrorIs(t, sup.Start(context.Background(), nil), ErrAlreadyRunning)
	require.NoError(t, sup.Stop().Err)

	// A stopped supervisor can start a new session.
	require.NoError(t, sup.Start(context.Background(), nil))
	require.NoError(t, sup.Stop().Err)
}

func TestUpdateFileListKeepsUnchangedWatchers(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.log")
	b := filepath.Join(dir, "b.log")
	writeFile(t, a, "6 1.000000 app one\n6 2.000000 app two\n")
	writeFile(t, b, "6 3.000000 db three\n")

	st := store.New()
	sup := New(dbglogParser(t), st, fastOptions())
	require.NoError(t, sup.Start(context.Background(), []string{a}))
	defer sup.Stop()

	require.Eventually(t, func() bool { return st.Len() == 2 }, waitFor, tick)

	sup.mu.Lock()
	before := sup.watchers[a]
	sup.mu.Unlock()

	require.NoError(t, sup.UpdateFileList([]string{a, b}))
	assert.Equal(t, []string{a, b}, sup.Files())

	sup.mu.Lock()
	after := sup.watchers[a]
	sup.mu.Unlock()
	assert.Same(t, before, after, "unchanged file must keep its watcher")

	// a is not re-read from the start; only b's line is new.
	require.Eventually(t, func() bool { return st.Len() == 3 }, waitFor, tick)
	time.Sleep(5 * tick)
	assert.Equal(t, 3, st.Len())

	require.NoError(t, sup.UpdateFileList([]string{b}))
	assert.Equal(t, []string{b}, sup.Files())

	appendTo(t, a, "6 9.000000 app ignored\n")
	appendTo(t, b, "6 4.000000 db four\n")
	require.Eventually(t, func() bool { return st.Len() == 4 }, waitFor, tick)
	time.Sleep(5 * tick)
	assert.Equal(t, []float64{1, 2, 3, 4}, timestamps(st))
}

func TestStopDrainsPendingRecords(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.log")
	writeFile(t, a, "6 1.000000 app one\n")

	opts := fastOptions()
	opts.DrainInterval = time.Hour

	st := store.New()
	sup := New(dbglogParser(t), st, opts)
	require.NoError(t, sup.Start(context.Background(), []string{a}))
	require.Eventually(t, func() bool { return sup.buf.Len() == 1 }, waitFor, tick)

	require.NoError(t, sup.Stop().Err)
	assert.Equal(t, 1, st.Len(), "final drain must flush the buffer")
}

// stuckParser blocks inside Parse until released, ignoring cancellation.
type stuckParser struct {
	entered chan struct{}
	once    sync.Once
	release chan struct{}
}

func (p *stuckParser) Parse(raw, source string) (*model.Record, bool) {
	p.once.Do(func() { close(p.entered) })
	<-p.release
	return &model.Record{Source: source, Raw: raw, Timestamp: model.At(1)}, true
}

func TestStopIsBoundedWhenWatcherHangs(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.log")
	writeFile(t, a, "line one\nline two\n")

	p := &stuckParser{entered: make(chan struct{}), release: make(chan struct{})}
	opts := fastOptions()
	opts.ShutdownTimeout = 100 * time.Millisecond
	opts.ForceTerminateTimeout = 50 * time.Millisecond

	st := store.New()
	sup := New(p, st, opts)
	require.NoError(t, sup.Start(context.Background(), []string{a}))

	select {
	case <-p.entered:
	case <-time.After(waitFor):
		t.Fatal("parser was never called")
	}

	start := time.Now()
	report := sup.Stop()
	elapsed := time.Since(start)

	assert.Less(t, elapsed, time.Second, "stop must return within the shutdown bound")
	assert.GreaterOrEqual(t, elapsed, 150*time.Millisecond)
	assert.True(t, errors.Is(report.Err, ErrShutdownTimeout))
	assert.Equal(t, []string{a}, report.Aborted)
	assert.Empty(t, report.Stopped)

	// The abandoned watcher's late output is discarded.
	close(p.release)
	time.Sleep(5 * tick)
	assert.Equal(t, 0, sup.buf.Len())
	assert.Equal(t, 0, st.Len())
}

func TestNotificationsWakeWatchers(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.log")
	writeFile(t, a, "6 1.000000 app one\n")

	opts := fastOptions()
	opts.PollInterval = time.Hour
	opts.Notify = true

	st := store.New()
	sup := New(dbglogParser(t), st, opts)
	require.NoError(t, sup.Start(context.Background(), []string{a}))
	defer sup.Stop()

	require.Eventually(t, func() bool { return st.Len() == 1 }, waitFor, tick)

	appendTo(t, a, "6 2.000000 app two\n")
	require.Eventually(t, func() bool { return st.Len() == 2 }, waitFor, tick)
}

func TestWatchersReportStatus(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.log")
	writeFile(t, a, "6 1.000000 app one\n")

	sup := New(dbglogParser(t), store.New(), fastOptions())
	require.NoError(t, sup.Start(context.Background(), []string{a}))
	defer sup.Stop()

	require.Eventually(t, func() bool {
		ws := sup.Watchers()
		return len(ws) == 1 && ws[0].Emitted == 1
	}, waitFor, tick)
	assert.Equal(t, a, sup.Watchers()[0].Path)
}

func TestStopDrainsAfterStartContextCancelled(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.log")
	writeFile(t, a, "only line\n")

	p := &stuckParser{entered: make(chan struct{}), release: make(chan struct{})}
	opts := fastOptions()
	opts.DrainInterval = time.Hour

	st := store.New()
	sup := New(p, st, opts)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, sup.Start(ctx, []string{a}))

	select {
	case <-p.entered:
	case <-time.After(waitFor):
		t.Fatal("parser was never called")
	}

	// The session context ends while the watcher still holds a line.
	cancel()
	time.Sleep(5 * tick)
	close(p.release)

	report := sup.Stop()
	require.NoError(t, report.Err)
	assert.Equal(t, []string{a}, report.Stopped)
	assert.Equal(t, 0, sup.buf.Len(), "nothing may be left in the buffer")
	assert.Equal(t, 1, st.Len())
}
