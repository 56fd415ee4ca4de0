package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"imgsync/internal/config"
	"imgsync/internal/deps"
	"imgsync/internal/ledger"
	"imgsync/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var checkNetwork bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Report directory, codec, and history readiness",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			color := shouldColorize(out)
			results := preflight.RunAll(cfg)

			writeSection(out, "Directories", color)
			for _, r := range results {
				kind := statusOK
				if !r.Passed {
					kind = statusError
				}
				fmt.Fprintln(out, renderStatusLine(r.Name, kind, r.Detail, color))
			}

			fmt.Fprintln(out)
			writeSection(out, "Dependencies", color)
			fmt.Fprintln(out, renderFFmpegStatus(preflight.CheckSystemDeps(cfg), cfg.Transcode.Enabled, color))
			if checkNetwork && cfg.Transcode.Bootstrap {
				r := preflight.CheckBootstrapSource(cmd.Context(), cfg.Transcode.BootstrapURL)
				kind := statusOK
				if !r.Passed {
					kind = statusWarn
				}
				fmt.Fprintln(out, renderStatusLine(r.Name, kind, r.Detail, color))
			}

			fmt.Fprintln(out)
			writeSection(out, "State", color)
			fmt.Fprintln(out, renderLockStatus(cfg, color))
			fmt.Fprintln(out, renderHistoryStatus(cmd.Context(), cfg, color))

			return preflight.Err(results)
		},
	}
	cmd.Flags().BoolVar(&checkNetwork, "check-network", false, "Also verify the ffmpeg download URL is reachable")
	return cmd
}

func writeSection(out io.Writer, title string, color bool) {
	for _, line := range renderSectionHeader(title, color) {
		fmt.Fprintln(out, line)
	}
}

func renderFFmpegStatus(status deps.FFmpegStatus, enabled bool, color bool) string {
	switch {
	case !enabled:
		return renderStatusLine(status.Name, statusInfo, "conversion disabled (transcode.enabled = false)", color)
	case status.Available:
		return renderStatusLine(status.Name, statusOK, fmt.Sprintf("%s (%s)", status.Command, status.Source), color)
	default:
		return renderStatusLine(status.Name, statusWarn, status.Detail, color)
	}
}

func renderLockStatus(cfg *config.Config, color bool) string {
	path := cfg.LockPath()
	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		return renderStatusLine("Run lock", statusOK, "idle", color)
	}
	lock := flock.New(path)
	locked, err := lock.TryLock()
	if err != nil {
		return renderStatusLine("Run lock", statusWarn, err.Error(), color)
	}
	if !locked {
		return renderStatusLine("Run lock", statusWarn, "a run is in progress for this image root", color)
	}
	_ = lock.Unlock()
	return renderStatusLine("Run lock", statusOK, "idle", color)
}

func renderHistoryStatus(ctx context.Context, cfg *config.Config, color bool) string {
	if !cfg.History.Enabled {
		return renderStatusLine("History", statusInfo, "disabled", color)
	}
	if _, err := os.Stat(cfg.History.Path); err != nil {
		return renderStatusLine("History", statusInfo, fmt.Sprintf("%s (no runs yet)", cfg.History.Path), color)
	}
	store, err := ledger.Open(cfg.History.Path)
	if err != nil {
		return renderStatusLine("History", statusWarn, err.Error(), color)
	}
	defer store.Close()
	runs, err := store.ListRuns(ctx, 1)
	if err != nil {
		return renderStatusLine("History", statusWarn, err.Error(), color)
	}
	if len(runs) == 0 {
		return renderStatusLine("History", statusInfo, fmt.Sprintf("%s (no runs yet)", cfg.History.Path), color)
	}
	last := runs[0]
	msg := fmt.Sprintf("last run %s at %s: %d fetched, %d failed",
		shortID(last.ID), last.StartedAt.Local().Format(time.DateTime), last.Fetched, last.Failed)
	return renderStatusLine("History", statusOK, msg, color)
}
