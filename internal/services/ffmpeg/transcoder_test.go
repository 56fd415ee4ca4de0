package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"testing"
	"time"

	"imgsync/internal/services"
)

// setHelperCommand routes ffmpeg invocations to TestHelperProcess. The helper
// writes outSize bytes to the final argument unless mode says otherwise.
func setHelperCommand(t *testing.T, mode string, outSize int, captured *[]string) {
	t.Helper()
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		if captured != nil {
			*captured = append([]string{name}, args...)
		}
		helperArgs := append([]string{"-test.run=TestHelperProcess", "--"}, args...)
		cmd := exec.CommandContext(ctx, os.Args[0], helperArgs...)
		cmd.Env = append(os.Environ(),
			"GO_WANT_HELPER_PROCESS=1",
			"FFMPEG_HELPER_MODE="+mode,
			"FFMPEG_HELPER_SIZE="+strconv.Itoa(outSize),
		)
		return cmd
	}
	t.Cleanup(func() {
		commandContext = original
	})
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	args := os.Args
	for i, arg := range args {
		if arg == "--" {
			args = args[i+1:]
			break
		}
	}
	switch os.Getenv("FFMPEG_HELPER_MODE") {
	case "encode":
		size, _ := strconv.Atoi(os.Getenv("FFMPEG_HELPER_SIZE"))
		out := args[len(args)-1]
		if err := os.WriteFile(out, []byte(strings.Repeat("a", size)), 0o644); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		os.Exit(0)
	case "fail":
		fmt.Fprintln(os.Stderr, "ffmpeg version n7.0")
		fmt.Fprintln(os.Stderr, "Unknown encoder 'libaom-av1'")
		os.Exit(1)
	case "no-output":
		os.Exit(0)
	default:
		os.Exit(0)
	}
}

func writeInput(t *testing.T, dir string, size int) string {
	t.Helper()
	path := filepath.Join(dir, "photo.jpg")
	if err := os.WriteFile(path, []byte(strings.Repeat("j", size)), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func assertWorkDirEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil && !os.IsNotExist(err) {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty work dir, found %d entries", len(entries))
	}
}

func TestTranscodeAcceptsSmallerOutput(t *testing.T) {
	var captured []string
	setHelperCommand(t, "encode", 40, &captured)
	base := t.TempDir()
	workDir := filepath.Join(base, "work")
	input := writeInput(t, base, 100)

	tr := New(Options{Binary: "/opt/ffmpeg", WorkDir: workDir})
	res, err := tr.Transcode(context.Background(), input, input)
	if err != nil {
		t.Fatalf("Transcode: %v", err)
	}
	if !res.Accepted || res.Forced || res.InputBytes != 100 || res.OutputBytes != 40 || res.Saved() != 60 {
		t.Fatalf("unexpected result: %+v", res)
	}
	info, err := os.Stat(input)
	if err != nil || info.Size() != 40 {
		t.Fatalf("expected asset replaced with 40 bytes, info=%v err=%v", info, err)
	}
	if captured[0] != "/opt/ffmpeg" {
		t.Fatalf("unexpected binary %q", captured[0])
	}
	wantPrefix := []string{"-y", "-i", input, "-c:v", "libaom-av1"}
	if !slices.Equal(captured[1:6], wantPrefix) {
		t.Fatalf("unexpected args %v", captured[1:])
	}
	temp := captured[6]
	if filepath.Dir(temp) != workDir || !strings.HasPrefix(filepath.Base(temp), tempPrefix) || filepath.Ext(temp) != ".avif" {
		t.Fatalf("unexpected temp path %q", temp)
	}
	assertWorkDirEmpty(t, workDir)
}

func TestTranscodeRejectsEqualOrLargerOutput(t *testing.T) {
	for _, size := range []int{100, 150} {
		t.Run(strconv.Itoa(size), func(t *testing.T) {
			setHelperCommand(t, "encode", size, nil)
			base := t.TempDir()
			workDir := filepath.Join(base, "work")
			input := writeInput(t, base, 100)

			res, err := New(Options{WorkDir: workDir}).Transcode(context.Background(), input, input)
			if err != nil {
				t.Fatalf("Transcode: %v", err)
			}
			if res.Accepted || res.Saved() != 0 {
				t.Fatalf("expected rejection, got %+v", res)
			}
			got, _ := os.ReadFile(input)
			if string(got) != strings.Repeat("j", 100) {
				t.Fatal("expected input untouched")
			}
			assertWorkDirEmpty(t, workDir)
		})
	}
}

func TestTranscodeForceAccept(t *testing.T) {
	setHelperCommand(t, "encode", 150, nil)
	base := t.TempDir()
	input := writeInput(t, base, 100)

	res, err := New(Options{WorkDir: filepath.Join(base, "work"), ForceAccept: true}).Transcode(context.Background(), input, input)
	if err != nil {
		t.Fatalf("Transcode: %v", err)
	}
	if !res.Accepted || !res.Forced || res.Saved() != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	info, _ := os.Stat(input)
	if info.Size() != 150 {
		t.Fatalf("expected forced replacement, size=%d", info.Size())
	}
}

func TestTranscodeFailureReportsLastLine(t *testing.T) {
	setHelperCommand(t, "fail", 0, nil)
	base := t.TempDir()
	workDir := filepath.Join(base, "work")
	input := writeInput(t, base, 100)

	_, err := New(Options{WorkDir: workDir}).Transcode(context.Background(), input, input)
	var tErr *services.TranscodeError
	if !errors.As(err, &tErr) || tErr.Input != input {
		t.Fatalf("expected TranscodeError, got %v", err)
	}
	if !strings.Contains(err.Error(), "Unknown encoder") || strings.Contains(err.Error(), "ffmpeg version") {
		t.Fatalf("expected trimmed ffmpeg output, got %v", err)
	}
	got, _ := os.ReadFile(input)
	if len(got) != 100 {
		t.Fatal("expected input untouched")
	}
	assertWorkDirEmpty(t, workDir)
}

func TestTranscodeMissingOutput(t *testing.T) {
	setHelperCommand(t, "no-output", 0, nil)
	base := t.TempDir()
	input := writeInput(t, base, 100)
	_, err := New(Options{WorkDir: filepath.Join(base, "work")}).Transcode(context.Background(), input, input)
	if !errors.Is(err, services.ErrTranscode) {
		t.Fatalf("expected ErrTranscode, got %v", err)
	}
}

func TestTranscodeMissingInput(t *testing.T) {
	_, err := New(Options{WorkDir: t.TempDir()}).Transcode(context.Background(), "/does/not/exist.png", "/does/not/exist.png")
	if !errors.Is(err, services.ErrTranscode) {
		t.Fatalf("expected ErrTranscode, got %v", err)
	}
}

func TestSweepStaleRemovesOnlyTempEncodes(t *testing.T) {
	workDir := t.TempDir()
	old := time.Now().Add(-time.Hour)
	for _, name := range []string{"imgsync-1.avif", "imgsync-2.avif", "keep.avif", "imgsync-3.png"} {
		path := filepath.Join(workDir, name)
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		if err := os.Chtimes(path, old, old); err != nil {
			t.Fatal(err)
		}
	}
	removed, err := New(Options{WorkDir: workDir, Timeout: time.Second}).SweepStale()
	if err != nil {
		t.Fatalf("SweepStale: %v", err)
	}
	if removed != 2 {
		t.Fatalf("removed = %d, want 2", removed)
	}
	entries, _ := os.ReadDir(workDir)
	if len(entries) != 2 {
		t.Fatalf("expected 2 files kept, got %d", len(entries))
	}
}

func TestSweepStaleKeepsEncodesInProgress(t *testing.T) {
	workDir := t.TempDir()
	live := filepath.Join(workDir, "imgsync-live.avif")
	if err := os.WriteFile(live, []byte("partial"), 0o644); err != nil {
		t.Fatal(err)
	}
	removed, err := New(Options{WorkDir: workDir}).SweepStale()
	if err != nil {
		t.Fatalf("SweepStale: %v", err)
	}
	if removed != 0 {
		t.Fatalf("removed = %d, want 0", removed)
	}
	if _, err := os.Stat(live); err != nil {
		t.Fatalf("encode of a concurrent run was swept: %v", err)
	}
}

func TestNewDefaults(t *testing.T) {
	tr := New(Options{})
	if tr.Binary() != "ffmpeg" || tr.codec != "libaom-av1" || tr.timeout != defaultTimeout {
		t.Fatalf("unexpected defaults: %+v", tr)
	}
}
