package localize

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"imgsync/internal/assets"
	"imgsync/internal/config"
	"imgsync/internal/docscan"
	"imgsync/internal/ledger"
	"imgsync/internal/logging"
	"imgsync/internal/services"
)

const defaultFailedURLCache = 512

// Options configures a Driver.
type Options struct {
	DocRoot            string
	ImageRoot          string
	Extension          string
	HTMLImages         bool
	RespectFrontMatter bool
	Workers            int
	FailedURLCache     int
	// LockPath, when set, is held with an exclusive flock for the whole run.
	LockPath   string
	Fetcher    Fetcher
	Transcoder Transcoder
	Recorder   Recorder
	Reporter   Reporter
	Logger     *slog.Logger
}

// Driver runs localization passes.
type Driver struct {
	docRoot            string
	extension          string
	htmlImages         bool
	respectFrontMatter bool
	workers            int
	lockPath           string
	namer              assets.Namer
	fetcher            Fetcher
	transcoder         Transcoder
	recorder           Recorder
	events             *eventSink
	failed             *lru.Cache[string, error]
	logger             *slog.Logger
}

// New constructs a Driver. A nil Transcoder disables transcoding and a nil
// Recorder disables history.
func New(opts Options) (*Driver, error) {
	if strings.TrimSpace(opts.DocRoot) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "localize", "init", "document root is empty", nil)
	}
	if strings.TrimSpace(opts.ImageRoot) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "localize", "init", "image root is empty", nil)
	}
	if opts.Fetcher == nil {
		return nil, services.Wrap(services.ErrConfiguration, "localize", "init", "fetcher is nil", nil)
	}
	docRoot, err := filepath.Abs(opts.DocRoot)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "localize", "init", opts.DocRoot, err)
	}
	imgRoot, err := filepath.Abs(opts.ImageRoot)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "localize", "init", opts.ImageRoot, err)
	}
	ext := strings.ToLower(strings.TrimSpace(opts.Extension))
	if ext == "" {
		ext = ".md"
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	cacheSize := opts.FailedURLCache
	if cacheSize <= 0 {
		cacheSize = defaultFailedURLCache
	}
	failed, err := lru.New[string, error](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed-url cache: %w", err)
	}

	return &Driver{
		docRoot:            docRoot,
		extension:          ext,
		htmlImages:         opts.HTMLImages,
		respectFrontMatter: opts.RespectFrontMatter,
		workers:            workers,
		lockPath:           strings.TrimSpace(opts.LockPath),
		namer:              assets.Namer{ImageRoot: imgRoot},
		fetcher:            opts.Fetcher,
		transcoder:         opts.Transcoder,
		recorder:           opts.Recorder,
		events:             newEventSink(opts.Reporter),
		failed:             failed,
		logger:             logging.NewComponentLogger(opts.Logger, "localize"),
	}, nil
}

// NewFromConfig builds a Driver from cfg. Collaborators are passed in because
// their availability (ffmpeg, history) is decided by the caller.
func NewFromConfig(cfg *config.Config, fetcher Fetcher, transcoder Transcoder, recorder Recorder, reporter Reporter, logger *slog.Logger) (*Driver, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "localize", "init", "config is nil", nil)
	}
	return New(Options{
		DocRoot:            cfg.Paths.DocDir,
		ImageRoot:          cfg.Paths.ImgDir,
		Extension:          cfg.Documents.Extension,
		HTMLImages:         cfg.Documents.HTMLImages,
		RespectFrontMatter: cfg.Documents.RespectFrontMatter,
		Workers:            cfg.Pipeline.Workers,
		FailedURLCache:     cfg.Pipeline.FailedURLCache,
		LockPath:           cfg.LockPath(),
		Fetcher:            fetcher,
		Transcoder:         transcoder,
		Recorder:           recorder,
		Reporter:           reporter,
		Logger:             logger,
	})
}

// DocRoot returns the absolute document root.
func (d *Driver) DocRoot() string { return d.docRoot }

// ImageRoot returns the absolute image root.
func (d *Driver) ImageRoot() string { return d.namer.ImageRoot }

// Run processes every document below the document root. Per-reference and
// per-document failures are collected in the summary; the returned error is
// non-nil only when the run could not start or was cancelled.
func (d *Driver) Run(ctx context.Context) (Summary, error) {
	docs := docscan.Scan(d.docRoot, docscan.HasExtension(d.extension))
	return d.run(ctx, docs, func() int { return docscan.Count(docs) })
}

// RunPaths processes only the given documents as one run. Paths that do not
// carry the document extension are ignored.
func (d *Driver) RunPaths(ctx context.Context, paths []string) (Summary, error) {
	accepted := make([]string, 0, len(paths))
	for _, p := range paths {
		if d.Accepts(p) {
			accepted = append(accepted, p)
		}
	}
	seq := func(yield func(string, error) bool) {
		for _, p := range accepted {
			if !yield(p, nil) {
				return
			}
		}
	}
	return d.run(ctx, seq, func() int { return len(accepted) })
}

// Accepts reports whether path is a document this driver localizes.
func (d *Driver) Accepts(path string) bool {
	return docscan.HasExtension(d.extension)(path)
}

func (d *Driver) run(ctx context.Context, docs iter.Seq2[string, error], count func() int) (Summary, error) {
	release, err := d.acquireLock()
	if err != nil {
		return Summary{}, err
	}
	defer release()
	// The memo spans one run; a later run retries every URL.
	d.failed.Purge()

	started := time.Now()
	summary := Summary{RunID: uuid.NewString()}
	ctx = services.WithRunID(ctx, summary.RunID)
	logger := logging.WithContext(ctx, d.logger)

	d.sweepTemps(logger)

	run := &ledger.Run{ID: summary.RunID, StartedAt: started.UTC(), DocRoot: d.docRoot, ImgRoot: d.namer.ImageRoot}
	recording := d.startRun(ctx, logger, run)

	total := count()
	logger.Info("localization started",
		logging.String("doc_root", d.docRoot),
		logging.String("img_root", d.namer.ImageRoot),
		logging.Int("documents", total),
		logging.Int("workers", d.workers),
		logging.Bool("transcode", d.transcoder != nil),
	)

	index := 0
	for path, scanErr := range docs {
		if ctx.Err() != nil {
			summary.Interrupted = true
			break
		}
		rel := d.relPath(path)
		if scanErr != nil {
			if path == "" {
				return summary, services.Wrap(services.ErrIO, "localize", "scan", d.docRoot, scanErr)
			}
			logging.WarnWithContext(logger, "document entry unreadable", "document_scan_failed",
				logging.Document(rel),
				logging.Error(scanErr),
				logging.String(logging.FieldErrorHint, "check file permissions"),
				logging.String(logging.FieldImpact, "entry skipped"),
			)
			summary.addDocumentFailure(rel, scanErr)
			d.events.emit(Event{Kind: EventDocumentFailed, Document: rel, Err: scanErr})
			continue
		}

		index++
		d.events.emit(Event{Kind: EventDocument, Index: index, Total: total, Document: rel})
		result, procErr := d.ProcessDocument(ctx, path)
		if procErr != nil {
			if ctx.Err() != nil {
				summary.Interrupted = true
				break
			}
			logging.WarnWithContext(logger, "document skipped", "document_failed",
				logging.Document(rel),
				logging.Error(procErr),
				logging.String(logging.FieldErrorHint, "check the document is readable and writable"),
				logging.String(logging.FieldImpact, "document left unchanged"),
			)
			summary.addDocumentFailure(rel, procErr)
			d.events.emit(Event{Kind: EventDocumentFailed, Document: rel, Err: procErr})
			continue
		}
		summary.add(result)
		if recording {
			d.recordOutcomes(ctx, logger, summary.RunID, result)
		}
	}

	summary.Duration = time.Since(started)
	if recording {
		summary.ledgerRun(run)
		if err := d.recorder.FinishRun(context.WithoutCancel(ctx), run); err != nil {
			logging.WarnWithContext(logger, "history finish failed", "history_write_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "run counters missing from history"),
			)
		}
	}

	logger.Info("localization finished",
		logging.Int("documents", summary.Documents),
		logging.Int("changed", summary.Changed),
		logging.Int("fetched", summary.Fetched),
		logging.Int("skipped", summary.Skipped),
		logging.Int("failed", summary.Failed),
		logging.Int("transcoded", summary.Transcoded),
		logging.Int64("bytes_saved", summary.BytesSaved),
		logging.Duration("duration", summary.Duration),
	)
	d.events.emit(Event{Kind: EventFinished, Index: index, Total: total, Summary: &summary})

	if summary.Interrupted {
		return summary, ctx.Err()
	}
	return summary, nil
}

func (d *Driver) acquireLock() (func(), error) {
	if d.lockPath == "" {
		return func() {}, nil
	}
	if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o755); err != nil {
		return nil, services.Wrap(services.ErrIO, "localize", "lock", d.lockPath, err)
	}
	lock := flock.New(d.lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, services.Wrap(services.ErrIO, "localize", "lock", d.lockPath, err)
	}
	if !ok {
		return nil, services.Wrap(services.ErrConfiguration, "localize", "lock",
			fmt.Sprintf("another run holds %s", d.lockPath), ErrRunInProgress)
	}
	return func() {
		if err := lock.Unlock(); err != nil {
			d.logger.Warn("failed to release run lock", logging.String("lock", d.lockPath), logging.Error(err))
		}
	}, nil
}

// ErrRunInProgress reports that another process is localizing into the same
// image root.
var ErrRunInProgress = errors.New("run already in progress")

func (d *Driver) sweepTemps(logger *slog.Logger) {
	sweeper, ok := d.transcoder.(interface{ SweepStale() (int, error) })
	if !ok {
		return
	}
	removed, err := sweeper.SweepStale()
	if err != nil {
		logger.Debug("temp sweep failed", logging.Error(err))
		return
	}
	if removed > 0 {
		logger.Info("removed stale transcode temps", logging.Int("count", removed))
	}
}

func (d *Driver) startRun(ctx context.Context, logger *slog.Logger, run *ledger.Run) bool {
	if d.recorder == nil {
		return false
	}
	if err := d.recorder.StartRun(ctx, run); err != nil {
		logging.WarnWithContext(logger, "history unavailable for this run", "history_write_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check history.path is writable"),
			logging.String(logging.FieldImpact, "run not recorded"),
		)
		return false
	}
	return true
}

func (d *Driver) recordOutcomes(ctx context.Context, logger *slog.Logger, runID string, result DocumentResult) {
	for _, o := range result.Outcomes {
		asset := ledger.Asset{
			RunID:     runID,
			Document:  result.Rel,
			URL:       o.URL,
			LocalPath: o.LocalPath,
			Status:    o.Status,
			BytesIn:   o.BytesIn,
			BytesOut:  o.BytesOut,
			Error:     errorText(o.Err),
		}
		if err := d.recorder.RecordAsset(ctx, asset); err != nil {
			logger.Debug("history asset write failed", logging.URL(o.URL), logging.Error(err))
		}
	}
}

func (d *Driver) relPath(path string) string {
	if path == "" {
		return ""
	}
	rel, err := filepath.Rel(d.docRoot, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}
