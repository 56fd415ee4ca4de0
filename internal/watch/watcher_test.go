package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

func isMarkdown(path string) bool { return strings.HasSuffix(path, ".md") }

func TestHandleEventFiltersByMatchAndOp(t *testing.T) {
	dir := t.TempDir()
	doc := filepath.Join(dir, "a.md")
	other := filepath.Join(dir, "a.txt")
	for _, p := range []string{doc, other} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	w := New(Options{Root: dir, Match: isMarkdown})

	cases := []struct {
		name string
		ev   fsnotify.Event
		want bool
	}{
		{"write markdown", fsnotify.Event{Name: doc, Op: fsnotify.Write}, true},
		{"create markdown", fsnotify.Event{Name: doc, Op: fsnotify.Create}, true},
		{"write and chmod", fsnotify.Event{Name: doc, Op: fsnotify.Write | fsnotify.Chmod}, true},
		{"chmod only", fsnotify.Event{Name: doc, Op: fsnotify.Chmod}, false},
		{"remove", fsnotify.Event{Name: filepath.Join(dir, "gone.md"), Op: fsnotify.Remove}, false},
		{"other extension", fsnotify.Event{Name: other, Op: fsnotify.Write}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := w.handleEvent(nil, tc.ev); got != tc.want {
				t.Fatalf("handleEvent = %v, want %v", got, tc.want)
			}
		})
	}
	batch := w.drain()
	if len(batch) != 1 || batch[0] != doc {
		t.Fatalf("unexpected batch: %v", batch)
	}
	if len(w.drain()) != 0 {
		t.Fatal("drain should clear pending paths")
	}
}

func TestRunDeliversDebouncedBatch(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "guide")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	w := New(Options{Root: dir, Match: isMarkdown, Debounce: 50 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	batches := make(chan []string, 4)
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(_ context.Context, paths []string) { batches <- paths })
	}()

	target := filepath.Join(sub, "intro.md")
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for {
		// Writes repeat until the watcher is registered and reports a batch.
		if err := os.WriteFile(target, []byte("![x](https://cdn.example/a.png)"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		select {
		case batch := <-batches:
			if len(batch) != 1 || batch[0] != target {
				t.Fatalf("unexpected batch: %v", batch)
			}
			cancel()
			if err := <-done; err != nil {
				t.Fatalf("Run: %v", err)
			}
			return
		case <-tick.C:
		case <-deadline:
			t.Fatal("timed out waiting for batch")
		}
	}
}

func TestRunMissingRootFails(t *testing.T) {
	w := New(Options{Root: filepath.Join(t.TempDir(), "missing")})
	if err := w.Run(context.Background(), func(context.Context, []string) {}); err == nil {
		t.Fatal("expected error for missing root")
	}
}
