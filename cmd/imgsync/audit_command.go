package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"imgsync/internal/docscan"
	"imgsync/internal/markdown"
)

type auditEntry struct {
	Document string   `json:"document" yaml:"document"`
	Title    string   `json:"title,omitempty" yaml:"title,omitempty"`
	OptedOut bool     `json:"opted_out,omitempty" yaml:"opted_out,omitempty"`
	Remote   []string `json:"remote" yaml:"remote"`
}

func newAuditCommand(ctx *commandContext) *cobra.Command {
	var format string
	var strict bool

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "List documents that still reference remote images",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			entries, err := auditDocuments(cfg.Paths.DocDir, cfg.Documents.Extension)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch strings.ToLower(strings.TrimSpace(format)) {
			case formatJSON:
				err = writeJSON(out, entries)
			case formatYAML:
				err = writeYAML(out, entries)
			case formatText, "":
				renderAudit(out, entries, shouldColorize(out))
			default:
				return fmt.Errorf("unsupported --format %q (want text, json, or yaml)", format)
			}
			if err != nil {
				return err
			}
			if strict && pendingCount(entries) > 0 {
				return fmt.Errorf("%d documents still reference remote images", pendingCount(entries))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text, json, or yaml")
	cmd.Flags().BoolVar(&strict, "strict", false, "Exit non-zero when any localizable document has remote images")
	return cmd
}

// auditDocuments parses every document with a full Markdown parser and
// reports rendered images that still point at remote hosts.
func auditDocuments(root, ext string) ([]auditEntry, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if info, err := os.Stat(absRoot); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("document root %s is not a readable directory", absRoot)
	}
	var entries []auditEntry
	for path, err := range docscan.Scan(absRoot, docscan.HasExtension(ext)) {
		if err != nil {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		remote := markdown.RemoteImages(data)
		if len(remote) == 0 {
			continue
		}
		rel, _ := filepath.Rel(absRoot, path)
		entry := auditEntry{Document: filepath.ToSlash(rel), Remote: remote}
		if fm, err := markdown.ParseFrontMatter(data); err == nil {
			entry.Title = fm.Title
			entry.OptedOut = !fm.Localize
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func pendingCount(entries []auditEntry) int {
	n := 0
	for _, e := range entries {
		if !e.OptedOut {
			n++
		}
	}
	return n
}

func renderAudit(w io.Writer, entries []auditEntry, color bool) {
	if len(entries) == 0 {
		fmt.Fprintln(w, colorIf(color, styleGreen, "No remote images found."))
		return
	}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		note := ""
		if e.OptedOut {
			note = "opted out"
		}
		rows = append(rows, []string{e.Document, e.Title, strconv.Itoa(len(e.Remote)), note})
	}
	fmt.Fprintln(w, renderTable([]string{"Document", "Title", "Remote", "Note"}, rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft}))
}
