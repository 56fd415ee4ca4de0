package main

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"imgsync/internal/logging"
	"imgsync/internal/watch"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	flags := &syncFlags{}
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Localize once, then again whenever a document changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := flags.apply(cfg); err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			reporter := newTerminalReporter(out, shouldColorize(out))
			session, err := openSession(cmd.Context(), cfg, reporter, logger)
			if err != nil {
				return err
			}
			defer session.Close()

			if _, err := session.driver.Run(cmd.Context()); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			}

			imgRoot := session.driver.ImageRoot()
			w := watch.New(watch.Options{
				Root:     session.driver.DocRoot(),
				Match:    session.driver.Accepts,
				SkipDir:  func(dir string) bool { return within(dir, imgRoot) },
				Debounce: debounce,
				Logger:   logger,
			})
			return w.Run(cmd.Context(), func(runCtx context.Context, paths []string) {
				summary, err := session.driver.RunPaths(runCtx, paths)
				if err != nil && !errors.Is(err, context.Canceled) {
					logging.WarnWithContext(logger, "watch pass failed", "watch_pass_failed",
						logging.Error(err),
						logging.Int("documents", len(paths)),
						logging.String(logging.FieldImpact, "changes retried on next edit"),
					)
					return
				}
				if summary.Changed > 0 {
					logger.Info("watch pass rewrote documents", logging.Int("changed", summary.Changed))
				}
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "Quiet period before changed documents are processed")
	return cmd
}

// within reports whether path equals root or lies below it.
func within(path, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
