package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"imgsync/internal/ledger"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var (
		limit  int
		runID  string
		format string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded runs, or the images of one run",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cfg.History.Enabled {
				return errors.New("history is disabled (history.enabled = false)")
			}
			store, err := ledger.Open(cfg.History.Path)
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			format = strings.ToLower(strings.TrimSpace(format))
			if id := strings.TrimSpace(runID); id != "" {
				run, err := findRun(cmd, store, id)
				if err != nil {
					return err
				}
				assets, err := store.RunAssets(cmd.Context(), run.ID)
				if err != nil {
					return err
				}
				return writeRunDetail(out, format, *run, assets)
			}

			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return writeRuns(out, format, runs)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "Number of runs to show (0 for all)")
	cmd.Flags().StringVar(&runID, "run", "", "Show the images of one run (full ID or unique prefix)")
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text, json, or yaml")
	return cmd
}

// findRun resolves a full run ID or a unique prefix as shown in tables.
func findRun(cmd *cobra.Command, store *ledger.Store, id string) (*ledger.Run, error) {
	run, err := store.GetRun(cmd.Context(), id)
	if err != nil {
		return nil, err
	}
	if run != nil {
		return run, nil
	}
	runs, err := store.ListRuns(cmd.Context(), 0)
	if err != nil {
		return nil, err
	}
	var match *ledger.Run
	for i := range runs {
		if strings.HasPrefix(runs[i].ID, id) {
			if match != nil {
				return nil, fmt.Errorf("run prefix %q is ambiguous", id)
			}
			match = &runs[i]
		}
	}
	if match == nil {
		return nil, fmt.Errorf("run %q not found", id)
	}
	return match, nil
}

func writeRuns(w io.Writer, format string, runs []ledger.Run) error {
	switch format {
	case formatJSON:
		return writeJSON(w, runs)
	case formatYAML:
		return writeYAML(w, runs)
	case formatText, "":
	default:
		return fmt.Errorf("unsupported --format %q (want text, json, or yaml)", format)
	}
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded yet.")
		return nil
	}
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			shortID(r.ID),
			r.StartedAt.Local().Format(time.DateTime),
			runDuration(r),
			strconv.Itoa(r.Documents),
			strconv.Itoa(r.Changed),
			strconv.Itoa(r.Fetched),
			strconv.Itoa(r.Skipped),
			strconv.Itoa(r.Failed),
			humanize.IBytes(uint64(max(r.BytesSaved, 0))),
		})
	}
	fmt.Fprintln(w, renderTable(
		[]string{"Run", "Started", "Took", "Docs", "Changed", "Fetched", "Present", "Failed", "Saved"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight},
	))
	return nil
}

func writeRunDetail(w io.Writer, format string, run ledger.Run, assets []ledger.Asset) error {
	detail := struct {
		Run    ledger.Run     `json:"run" yaml:"run"`
		Assets []ledger.Asset `json:"assets" yaml:"assets"`
	}{run, assets}
	switch format {
	case formatJSON:
		return writeJSON(w, detail)
	case formatYAML:
		return writeYAML(w, detail)
	case formatText, "":
	default:
		return fmt.Errorf("unsupported --format %q (want text, json, or yaml)", format)
	}
	fmt.Fprintf(w, "Run %s started %s (%s)\n", run.ID, run.StartedAt.Local().Format(time.DateTime), runDuration(run))
	if len(assets) == 0 {
		fmt.Fprintln(w, "No images recorded for this run.")
		return nil
	}
	rows := make([][]string, 0, len(assets))
	for _, a := range assets {
		size := humanize.IBytes(uint64(max(a.BytesOut, 0)))
		if a.Status == ledger.StatusFailed {
			size = a.Error
		}
		rows = append(rows, []string{a.Document, string(a.Status), a.URL, size})
	}
	fmt.Fprintln(w, renderTable([]string{"Document", "Status", "URL", "Size / Error"}, rows, nil))
	return nil
}

func runDuration(r ledger.Run) string {
	if r.FinishedAt == nil {
		if r.Interrupted {
			return "interrupted"
		}
		return "running"
	}
	return r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
}
