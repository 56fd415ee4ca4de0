package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"

	"imgsync/internal/config"
	"imgsync/internal/deps"
	"imgsync/internal/fileutil"
	"imgsync/internal/logging"
	"imgsync/internal/services"
	"imgsync/internal/services/download"
)

// Fetcher downloads a URL to a local file.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL, dest string, progress func(download.Progress)) (int64, error)
}

// Bootstrapper installs an ffmpeg binary from a zip release archive.
type Bootstrapper struct {
	Fetcher Fetcher
	URL     string
	// Entry is the slash-separated path of the executable inside the archive.
	Entry  string
	Dest   string
	Logger *slog.Logger
}

// NewBootstrapper builds a Bootstrapper installing into the state directory.
func NewBootstrapper(cfg *config.Config, fetcher Fetcher, logger *slog.Logger) *Bootstrapper {
	return &Bootstrapper{
		Fetcher: fetcher,
		URL:     cfg.Transcode.BootstrapURL,
		Entry:   cfg.Transcode.BootstrapEntry,
		Dest:    cfg.SidecarFFmpegPath(),
		Logger:  logging.NewComponentLogger(logger, "codec"),
	}
}

// Install downloads the archive, extracts the configured entry to Dest via
// temp+rename, removes the archive, and returns Dest.
func (b *Bootstrapper) Install(ctx context.Context, progress func(download.Progress)) (string, error) {
	if strings.TrimSpace(b.URL) == "" {
		return "", services.Wrap(services.ErrConfiguration, "codec", "install", "no bootstrap_url configured for this platform", nil)
	}
	if b.Fetcher == nil {
		return "", errors.New("codec install: no fetcher configured")
	}
	dir := filepath.Dir(b.Dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", services.Wrap(services.ErrIO, "codec", "install", dir, err)
	}

	archivePath := filepath.Join(dir, "ffmpeg-release.zip")
	defer os.Remove(archivePath)

	b.Logger.Info("downloading ffmpeg", logging.URL(b.URL))
	if _, err := b.Fetcher.Fetch(ctx, b.URL, archivePath, progress); err != nil {
		return "", err
	}

	written, err := extractEntry(archivePath, b.Entry, b.Dest)
	if err != nil {
		return "", &services.ArchiveError{Archive: b.URL, Entry: b.Entry, Err: err}
	}
	b.Logger.Info("ffmpeg installed",
		logging.String("path", b.Dest),
		logging.Int64("bytes", written),
	)
	return b.Dest, nil
}

func extractEntry(archivePath, entry, dest string) (int64, error) {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return 0, fmt.Errorf("open archive: %w", err)
	}
	defer zr.Close()

	want := strings.Trim(path.Clean("/"+filepath.ToSlash(entry)), "/")
	for _, file := range zr.File {
		if file.FileInfo().IsDir() {
			continue
		}
		name := strings.Trim(path.Clean("/"+file.Name), "/")
		if !strings.EqualFold(name, want) {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return 0, fmt.Errorf("open entry: %w", err)
		}
		written, err := fileutil.WriteStreamAtomic(dest, rc, 0o755)
		rc.Close()
		if err != nil {
			return 0, fmt.Errorf("write entry: %w", err)
		}
		return written, nil
	}
	return 0, errors.New("entry not found in archive")
}

// Resolve returns the ffmpeg binary to run for cfg. When none is installed and
// bootstrapping is enabled, the binary is downloaded first. An empty result
// with a nil error means transcoding is unavailable on this host.
func Resolve(ctx context.Context, cfg *config.Config, fetcher Fetcher, logger *slog.Logger) (string, error) {
	status := deps.ResolveFFmpeg(cfg.Transcode.FFmpegPath, filepath.Dir(cfg.SidecarFFmpegPath()))
	if status.Available {
		return status.Command, nil
	}
	if status.Source == deps.SourceConfigured {
		return "", services.Wrap(services.ErrConfiguration, "codec", "resolve", status.Detail, nil)
	}
	if !cfg.Transcode.Bootstrap || strings.TrimSpace(cfg.Transcode.BootstrapURL) == "" {
		return "", nil
	}
	return NewBootstrapper(cfg, fetcher, logger).Install(ctx, nil)
}
