package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"imgsync/internal/localize"
	"imgsync/internal/preflight"
	"imgsync/internal/services/download"
	"imgsync/internal/services/ffmpeg"
)

func newCodecCommand(ctx *commandContext) *cobra.Command {
	codecCmd := &cobra.Command{
		Use:   "codec",
		Short: "Inspect or install the ffmpeg binary used for AVIF conversion",
	}
	codecCmd.AddCommand(newCodecStatusCommand(ctx))
	codecCmd.AddCommand(newCodecInstallCommand(ctx))
	return codecCmd
}

func newCodecStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show which ffmpeg binary would be used",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			color := shouldColorize(out)
			status := preflight.CheckSystemDeps(cfg)

			for _, line := range renderSectionHeader("Codec", color) {
				fmt.Fprintln(out, line)
			}
			fmt.Fprintln(out, renderFFmpegStatus(status, cfg.Transcode.Enabled, color))
			fmt.Fprintln(out, renderStatusLine("Encoder", statusInfo, cfg.Transcode.Codec, color))
			fmt.Fprintln(out, renderStatusLine("Keep larger output", statusInfo, yesNo(cfg.Transcode.ForceAccept), color))
			if !status.Available && strings.TrimSpace(cfg.Transcode.BootstrapURL) != "" {
				fmt.Fprintln(out, renderStatusLine("Bootstrap", statusInfo, "run `imgsync codec install` to download ffmpeg", color))
			}
			return nil
		},
	}
}

func newCodecInstallCommand(ctx *commandContext) *cobra.Command {
	var urlFlag string
	var entryFlag string

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Download ffmpeg from the configured release archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			if u := strings.TrimSpace(urlFlag); u != "" {
				cfg.Transcode.BootstrapURL = u
			}
			if e := strings.TrimSpace(entryFlag); e != "" {
				cfg.Transcode.BootstrapEntry = e
			}

			out := cmd.OutOrStdout()
			reporter := newTerminalReporter(out, shouldColorize(out))
			fetcher := download.NewFromConfig(cfg.Download, logger)
			installer := ffmpeg.NewBootstrapper(cfg, fetcher, logger)
			fmt.Fprintf(out, "Downloading ffmpeg from %s\n", cfg.Transcode.BootstrapURL)
			path, err := installer.Install(cmd.Context(), func(p download.Progress) {
				reporter.Report(localize.Event{Kind: localize.EventProgress, Progress: p})
			})
			reporter.closeBar()
			if err != nil {
				return fmt.Errorf("install ffmpeg: %w", err)
			}
			fmt.Fprintf(out, "Installed ffmpeg to %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&urlFlag, "url", "", "Release archive URL (default: transcode.bootstrap_url)")
	cmd.Flags().StringVar(&entryFlag, "entry", "", "Path of the ffmpeg executable inside the archive")
	return cmd
}
