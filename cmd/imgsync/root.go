package main

import (
	"github.com/spf13/cobra"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func newRootCommand() *cobra.Command {
	var (
		configFlag string
		docDirFlag string
		imgDirFlag string
		logLevel   string
	)
	ctx := newCommandContext(&configFlag, &docDirFlag, &imgDirFlag, &logLevel)
	flags := &syncFlags{}

	rootCmd := &cobra.Command{
		Use:   "imgsync",
		Short: "Download remote Markdown images and rewrite links to local copies",
		Long: "imgsync scans a Markdown tree for remote ![..](url) images, saves each one under\n" +
			"<img_dir>/images/<document dir>/, optionally re-encodes it to AVIF with ffmpeg\n" +
			"when that makes it smaller, and rewrites the documents to the local paths.",
		Example: "  imgsync -d src -i src/.vuepress/public\n  imgsync -n",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, ctx, flags)
		},
	}
	rootCmd.SetVersionTemplate("imgsync {{.Version}}\n")

	persistent := rootCmd.PersistentFlags()
	persistent.StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	persistent.StringVarP(&docDirFlag, "doc-dir", "d", "", "Markdown document root (default: src)")
	persistent.StringVarP(&imgDirFlag, "img-dir", "i", "", "Image root (default: src/.vuepress/public)")
	persistent.StringVar(&logLevel, "log-level", "", "Log level override (debug, info, warn, error)")
	flags.register(rootCmd)

	rootCmd.AddCommand(newSyncCommand(ctx))
	rootCmd.AddCommand(newWatchCommand(ctx))
	rootCmd.AddCommand(newAuditCommand(ctx))
	rootCmd.AddCommand(newHistoryCommand(ctx))
	rootCmd.AddCommand(newCodecCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))
	rootCmd.AddCommand(newStatusCommand(ctx))

	return rootCmd
}
