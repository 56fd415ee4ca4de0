package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"imgsync/internal/config"
	"imgsync/internal/ledger"
	"imgsync/internal/localize"
	"imgsync/internal/logging"
	"imgsync/internal/preflight"
	"imgsync/internal/services/download"
	"imgsync/internal/services/ffmpeg"
)

type syncFlags struct {
	noConvert    bool
	forceConvert bool
	workers      int
	format       string
}

func (f *syncFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVarP(&f.noConvert, "no-convert", "n", false, "Skip AVIF conversion of downloaded images")
	cmd.Flags().BoolVar(&f.forceConvert, "force-convert", false, "Keep AVIF output even when it is not smaller")
	cmd.Flags().IntVarP(&f.workers, "workers", "w", 0, "Concurrent downloads per document (default from config)")
	cmd.Flags().StringVar(&f.format, "format", "text", "Summary output format: text, json, or yaml")
}

func (f *syncFlags) apply(cfg *config.Config) error {
	if f.noConvert {
		cfg.Transcode.Enabled = false
	}
	if f.forceConvert {
		cfg.Transcode.ForceAccept = true
	}
	if f.workers < 0 {
		return errors.New("--workers must not be negative")
	}
	if f.workers > 0 {
		cfg.Pipeline.Workers = f.workers
	}
	switch f.outputFormat() {
	case formatText, formatJSON, formatYAML:
		return nil
	default:
		return fmt.Errorf("unsupported --format %q (want text, json, or yaml)", f.format)
	}
}

func (f *syncFlags) outputFormat() string {
	format := strings.ToLower(strings.TrimSpace(f.format))
	if format == "" {
		return formatText
	}
	return format
}

func newSyncCommand(ctx *commandContext) *cobra.Command {
	flags := &syncFlags{}
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Localize remote images once (the default command)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, ctx, flags)
		},
	}
	flags.register(cmd)
	return cmd
}

func runSync(cmd *cobra.Command, ctx *commandContext, flags *syncFlags) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	if err := flags.apply(cfg); err != nil {
		return err
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	format := flags.outputFormat()
	out := cmd.OutOrStdout()
	progressOut := out
	if format != formatText {
		progressOut = cmd.ErrOrStderr()
	}
	reporter := newTerminalReporter(progressOut, shouldColorize(progressOut))

	session, err := openSession(cmd.Context(), cfg, reporter, logger)
	if err != nil {
		return err
	}
	defer session.Close()

	summary, runErr := session.driver.Run(cmd.Context())
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	if err := writeSummary(out, format, summary, shouldColorize(out)); err != nil {
		return err
	}
	return runErr
}

// session bundles a driver with the resources it holds open.
type session struct {
	driver *localize.Driver
	store  *ledger.Store
}

func (s *session) Close() {
	if s != nil && s.store != nil {
		_ = s.store.Close()
	}
}

// openSession runs the startup checks and wires a driver for cfg. Missing or
// unwritable roots abort; an unavailable ffmpeg or history ledger only
// disables that feature.
func openSession(ctx context.Context, cfg *config.Config, reporter localize.Reporter, logger *slog.Logger) (*session, error) {
	if err := preflight.Err(preflight.RunAll(cfg)); err != nil {
		return nil, err
	}

	fetcher := download.NewFromConfig(cfg.Download, logger)
	s := &session{}

	var transcoder localize.Transcoder
	if cfg.Transcode.Enabled {
		if t := resolveTranscoder(ctx, cfg, fetcher, logger); t != nil {
			transcoder = t
		}
	}

	var recorder localize.Recorder
	if cfg.History.Enabled {
		store, err := ledger.Open(cfg.History.Path)
		if err != nil {
			logging.WarnWithContext(logger, "history ledger unavailable", "history_open_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check history.path or set history.enabled = false"),
				logging.String(logging.FieldImpact, "this run is not recorded"),
			)
		} else {
			s.store = store
			recorder = store
		}
	}

	driver, err := localize.NewFromConfig(cfg, fetcher, transcoder, recorder, reporter, logger)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.driver = driver
	return s, nil
}

// resolveTranscoder locates or installs ffmpeg. It returns nil when
// transcoding has to be skipped for this run.
func resolveTranscoder(ctx context.Context, cfg *config.Config, fetcher ffmpeg.Fetcher, logger *slog.Logger) *ffmpeg.Transcoder {
	binary, err := ffmpeg.Resolve(ctx, cfg, fetcher, logger)
	if err != nil {
		logging.WarnWithContext(logger, "ffmpeg unavailable; images will not be converted", "codec_unavailable",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run imgsync codec status, or pass --no-convert"),
			logging.String(logging.FieldImpact, "downloads kept in their original format"),
		)
		return nil
	}
	if binary == "" {
		logger.Info("ffmpeg not found; conversion disabled for this run")
		return nil
	}
	return ffmpeg.NewFromConfig(cfg.Transcode, binary, logger)
}
