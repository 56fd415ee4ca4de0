package services_test

import (
	"errors"
	"io/fs"
	"strings"
	"testing"

	"imgsync/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrIO, "scanner", "read", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrIO) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"scanner", "read", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsMarker(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrIO) {
		t.Fatalf("expected io marker by default, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected placeholder detail, got %q", err.Error())
	}
}

func TestTypedErrorsMatchMarkers(t *testing.T) {
	cause := fs.ErrPermission
	download := &services.DownloadError{URL: "https://cdn.example/a.png", Err: cause}
	if !errors.Is(download, services.ErrDownload) || !errors.Is(download, cause) {
		t.Fatalf("download error does not unwrap: %v", download)
	}
	if !strings.Contains(download.Error(), "https://cdn.example/a.png") {
		t.Fatalf("expected url in message, got %q", download.Error())
	}

	transcode := &services.TranscodeError{Input: "a.png", Err: cause}
	if !errors.Is(transcode, services.ErrTranscode) {
		t.Fatalf("expected transcode marker, got %v", transcode)
	}
	var target *services.TranscodeError
	if !errors.As(error(transcode), &target) || target.Input != "a.png" {
		t.Fatalf("errors.As failed for transcode error")
	}

	archive := &services.ArchiveError{Archive: "ffmpeg.zip", Entry: "bin/ffmpeg.exe"}
	if !errors.Is(archive, services.ErrArchive) {
		t.Fatalf("expected archive marker, got %v", archive)
	}
}

func TestRecoverable(t *testing.T) {
	if !services.Recoverable(&services.DownloadError{URL: "u", Err: errors.New("x")}) {
		t.Fatal("download errors are recoverable")
	}
	if !services.Recoverable(&services.TranscodeError{Input: "a"}) {
		t.Fatal("transcode errors are recoverable")
	}
	if services.Recoverable(services.Wrap(services.ErrIO, "preflight", "stat", "missing", nil)) {
		t.Fatal("io errors are not recoverable")
	}
	if services.Recoverable(services.Wrap(services.ErrConfiguration, "config", "", "bad", nil)) {
		t.Fatal("configuration errors are not recoverable")
	}
}
