package download

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"imgsync/internal/services"
)

func TestFetchWritesBodyAndReportsMonotonicProgress(t *testing.T) {
	payload := strings.Repeat("x", 64*1024)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "imgsync-test" {
			t.Errorf("unexpected user agent %q", r.Header.Get("User-Agent"))
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
		_, _ = w.Write([]byte(payload))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "a.png")
	client := New(Options{UserAgent: "imgsync-test"})

	var events []Progress
	n, err := client.Fetch(context.Background(), srv.URL+"/a.png", dest, func(p Progress) { events = append(events, p) })
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if n != int64(len(payload)) {
		t.Fatalf("written = %d, want %d", n, len(payload))
	}
	got, err := os.ReadFile(dest)
	if err != nil || string(got) != payload {
		t.Fatalf("unexpected content len=%d err=%v", len(got), err)
	}
	if _, err := os.Stat(dest + partSuffix); !os.IsNotExist(err) {
		t.Fatalf("expected partial file removed, err=%v", err)
	}
	if len(events) == 0 {
		t.Fatal("expected progress events")
	}
	for i := 1; i < len(events); i++ {
		if events[i].Percent < events[i-1].Percent {
			t.Fatalf("progress went backwards: %v then %v", events[i-1].Percent, events[i].Percent)
		}
	}
	if last := events[len(events)-1]; last.Percent != 100 || last.Total != int64(len(payload)) {
		t.Fatalf("unexpected final event: %+v", last)
	}
}

func TestFetchChunkedResponseIsSilent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.(http.Flusher).Flush()
		_, _ = w.Write([]byte("chunked body"))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "b.png")
	called := false
	if _, err := New(Options{}).Fetch(context.Background(), srv.URL, dest, func(Progress) { called = true }); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if called {
		t.Fatal("expected no progress without Content-Length")
	}
}

func TestFetchNonSuccessStatusLeavesNothing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "missing.png")
	_, err := New(Options{}).Fetch(context.Background(), srv.URL+"/missing.png", dest, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	var dlErr *services.DownloadError
	if !errors.As(err, &dlErr) || dlErr.URL != srv.URL+"/missing.png" {
		t.Fatalf("expected DownloadError, got %v", err)
	}
	if !errors.Is(err, services.ErrDownload) {
		t.Fatal("expected ErrDownload marker")
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("expected no files left, found %d", len(entries))
	}
}

func TestFetchTruncatesStalePartialFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("new"))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "c.png")
	if err := os.WriteFile(dest+partSuffix, []byte("stale leftover bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := New(Options{}).Fetch(context.Background(), srv.URL, dest, nil); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	got, _ := os.ReadFile(dest)
	if string(got) != "new" {
		t.Fatalf("content = %q, want %q", got, "new")
	}
}

func TestFetchTLSVerification(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("secure"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	if _, err := New(Options{}).Fetch(context.Background(), srv.URL, filepath.Join(dir, "relaxed.png"), nil); err != nil {
		t.Fatalf("relaxed TLS fetch failed: %v", err)
	}
	if _, err := New(Options{VerifyTLS: true}).Fetch(context.Background(), srv.URL, filepath.Join(dir, "strict.png"), nil); err == nil {
		t.Fatal("expected certificate error with verification enabled")
	}
}

func TestFetchHonoursCancellation(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	dest := filepath.Join(t.TempDir(), "slow.png")
	if _, err := New(Options{}).Fetch(ctx, srv.URL, dest, nil); err == nil {
		t.Fatal("expected cancellation error")
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Fatal("expected no destination file")
	}
}

func TestHostLimitersSeparateHosts(t *testing.T) {
	if newHostLimiters(0, 1) != nil {
		t.Fatal("expected nil limiter set when throttling disabled")
	}
	limits := newHostLimiters(1, 1)
	ctx := context.Background()
	if err := limits.wait(ctx, "a.example"); err != nil {
		t.Fatal(err)
	}
	if err := limits.wait(ctx, "b.example"); err != nil {
		t.Fatal(err)
	}
	if len(limits.hosts) != 2 {
		t.Fatalf("expected one limiter per host, got %d", len(limits.hosts))
	}

	short, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	if err := limits.wait(short, "a.example"); err == nil {
		t.Fatal("expected second request to the same host to be throttled past the deadline")
	}
}
