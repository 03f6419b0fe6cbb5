package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatal(err)
	}
}

func TestExpand(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "a.log"))
	touch(t, filepath.Join(dir, "sub", "b.log"))
	touch(t, filepath.Join(dir, "sub", "c.txt"))

	got := Expand([]string{
		filepath.Join(dir, "**", "*.log"),
		filepath.Join(dir, "a.log"),       // duplicate of a glob match
		filepath.Join(dir, "not-yet.log"), // literal, kept
	}, nil)

	want := []string{
		filepath.Join(dir, "a.log"),
		filepath.Join(dir, "sub", "b.log"),
		filepath.Join(dir, "not-yet.log"),
	}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "app.log"))
	touch(t, filepath.Join(dir, "notes.txt"))
	touch(t, filepath.Join(dir, "daily", "error-1.log"))

	flat, err := Discover(dir, `.*\.log$`, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(flat) != 1 || flat[0] != filepath.Join(dir, "app.log") {
		t.Errorf("non-recursive: unexpected %v", flat)
	}

	deep, err := Discover(dir, `^daily/.*`, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(deep) != 1 || deep[0] != filepath.Join(dir, "daily", "error-1.log") {
		t.Errorf("recursive: unexpected %v", deep)
	}

	if _, err := Discover(dir, `[`, true); err == nil {
		t.Error("expected error for invalid pattern")
	}
	if _, err := Discover(filepath.Join(dir, "app.log"), `.*`, true); err == nil {
		t.Error("expected error for non-directory root")
	}
}

func TestNotifierSignalsRegisteredFiles(t *testing.T) {
	dir := t.TempDir()
	watched := filepath.Join(dir, "watched.log")
	other := filepath.Join(dir, "other.log")
	touch(t, watched)
	touch(t, other)

	changed := make(chan string, 16)
	n, err := NewNotifier(func(p string) { changed <- p }, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := n.Add(watched); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go n.Run(ctx)

	// Give the OS watcher a moment to settle.
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(other, []byte("ignored\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(watched, []byte("hello\n"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case p := <-changed:
		if p != watched {
			t.Errorf("expected %s, got %s", watched, p)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for notification")
	}

	n.Remove(watched)
	if len(n.Paths()) != 0 {
		t.Errorf("expected no registered paths, got %v", n.Paths())
	}
}
