package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"imgsync/internal/config"
	"imgsync/internal/fileutil"
	"imgsync/internal/logging"
	"imgsync/internal/services"
)

var commandContext = exec.CommandContext

const (
	tempPrefix     = "imgsync-"
	tempSuffix     = ".avif"
	defaultCodec   = "libaom-av1"
	defaultTimeout = 120 * time.Second
	staleGrace     = time.Minute
)

// Result describes the outcome of one transcode attempt.
type Result struct {
	Accepted    bool
	Forced      bool
	InputBytes  int64
	OutputBytes int64
}

// Saved returns the bytes saved by an accepted transcode; zero otherwise.
func (r Result) Saved() int64 {
	if !r.Accepted || r.OutputBytes >= r.InputBytes {
		return 0
	}
	return r.InputBytes - r.OutputBytes
}

// Options configures a Transcoder.
type Options struct {
	Binary      string
	Codec       string
	WorkDir     string
	ForceAccept bool
	Timeout     time.Duration
	Logger      *slog.Logger
}

// Transcoder runs ffmpeg against fetched assets.
type Transcoder struct {
	binary      string
	codec       string
	workDir     string
	forceAccept bool
	timeout     time.Duration
	logger      *slog.Logger
}

// New constructs a Transcoder, applying defaults for empty fields.
func New(opts Options) *Transcoder {
	t := &Transcoder{
		binary:      strings.TrimSpace(opts.Binary),
		codec:       strings.TrimSpace(opts.Codec),
		workDir:     strings.TrimSpace(opts.WorkDir),
		forceAccept: opts.ForceAccept,
		timeout:     opts.Timeout,
		logger:      logging.NewComponentLogger(opts.Logger, "transcode"),
	}
	if t.binary == "" {
		t.binary = "ffmpeg"
	}
	if t.codec == "" {
		t.codec = defaultCodec
	}
	if t.workDir == "" {
		t.workDir = filepath.Join(os.TempDir(), "imgsync")
	}
	if t.timeout <= 0 {
		t.timeout = defaultTimeout
	}
	return t
}

// NewFromConfig constructs a Transcoder for the resolved ffmpeg binary.
func NewFromConfig(cfg config.Transcode, binary string, logger *slog.Logger) *Transcoder {
	return New(Options{
		Binary:      binary,
		Codec:       cfg.Codec,
		WorkDir:     cfg.WorkDir,
		ForceAccept: cfg.ForceAccept,
		Timeout:     time.Duration(cfg.TimeoutSeconds) * time.Second,
		Logger:      logger,
	})
}

// Binary returns the ffmpeg executable this transcoder runs.
func (t *Transcoder) Binary() string { return t.binary }

// Transcode encodes input and, when the encode is strictly smaller than input
// (or ForceAccept is set), moves it over output. A rejected encode leaves
// output untouched. The temp file never survives the call.
func (t *Transcoder) Transcode(ctx context.Context, input, output string) (Result, error) {
	inInfo, err := os.Stat(input)
	if err != nil {
		return Result{}, &services.TranscodeError{Input: input, Err: fmt.Errorf("stat input: %w", err)}
	}
	result := Result{InputBytes: inInfo.Size()}

	if err := os.MkdirAll(t.workDir, 0o755); err != nil {
		return result, &services.TranscodeError{Input: input, Err: fmt.Errorf("create work dir: %w", err)}
	}
	temp := filepath.Join(t.workDir, tempPrefix+uuid.NewString()+tempSuffix)
	defer os.Remove(temp)

	runCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	args := []string{"-y", "-i", input, "-c:v", t.codec, temp}
	cmd := commandContext(runCtx, t.binary, args...) //nolint:gosec
	if out, err := cmd.CombinedOutput(); err != nil {
		if runCtx.Err() != nil && ctx.Err() == nil {
			err = fmt.Errorf("timed out after %s: %w", t.timeout, err)
		}
		return result, &services.TranscodeError{Input: input, Err: fmt.Errorf("ffmpeg: %w: %s", err, lastLine(out))}
	}

	outInfo, err := os.Stat(temp)
	if err != nil {
		return result, &services.TranscodeError{Input: input, Err: fmt.Errorf("read encoded output: %w", err)}
	}
	result.OutputBytes = outInfo.Size()

	if result.OutputBytes >= result.InputBytes && !t.forceAccept {
		logging.WithContext(ctx, t.logger).Debug("encode discarded",
			logging.String("path", input),
			logging.Int64("bytes_in", result.InputBytes),
			logging.Int64("bytes_out", result.OutputBytes),
		)
		return result, nil
	}

	if err := fileutil.MoveFile(temp, output); err != nil {
		return result, &services.TranscodeError{Input: input, Err: fmt.Errorf("replace asset: %w", err)}
	}
	result.Accepted = true
	result.Forced = result.OutputBytes >= result.InputBytes
	logging.WithContext(ctx, t.logger).Debug("encode accepted",
		logging.String("path", output),
		logging.Int64("bytes_in", result.InputBytes),
		logging.Int64("bytes_out", result.OutputBytes),
		logging.Bool("forced", result.Forced),
	)
	return result, nil
}

// SweepStale removes temp encodes left in the work directory by interrupted
// runs and returns how many were deleted. The work directory is shared by
// runs against other image roots, so only encodes older than the transcode
// timeout plus staleGrace are removed; a live encode is always younger.
func (t *Transcoder) SweepStale() (int, error) {
	matches, err := filepath.Glob(filepath.Join(t.workDir, tempPrefix+"*"+tempSuffix))
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().Add(-(t.timeout + staleGrace))
	removed := 0
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return removed, services.Wrap(services.ErrIO, "transcode", "sweep", path, err)
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, services.Wrap(services.ErrIO, "transcode", "sweep", path, err)
		}
		removed++
	}
	if removed > 0 {
		t.logger.Info("removed stale encodes", logging.Int("count", removed), logging.String("dir", t.workDir))
	}
	return removed, nil
}

// ffmpeg prints its banner first; the final line carries the actual failure.
func lastLine(out []byte) string {
	trimmed := strings.TrimSpace(string(out))
	if idx := strings.LastIndexByte(trimmed, '\n'); idx >= 0 {
		return strings.TrimSpace(trimmed[idx+1:])
	}
	return trimmed
}
