package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"imgsync/internal/localize"
)

const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

// writeJSON encodes v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeYAML encodes v as a YAML document.
func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func writeSummary(w io.Writer, format string, summary localize.Summary, color bool) error {
	switch format {
	case formatJSON:
		return writeJSON(w, summary)
	case formatYAML:
		return writeYAML(w, summary)
	}

	rows := [][]string{
		{"Documents", strconv.Itoa(summary.Documents)},
		{"Changed", strconv.Itoa(summary.Changed)},
		{"Images fetched", strconv.Itoa(summary.Fetched)},
		{"Already present", strconv.Itoa(summary.Skipped)},
		{"Failed", strconv.Itoa(summary.Failed)},
		{"Converted to AVIF", strconv.Itoa(summary.Transcoded)},
		{"Bytes saved", humanize.IBytes(uint64(max(summary.BytesSaved, 0)))},
	}
	if summary.OptedOut > 0 {
		rows = append(rows, []string{"Opted out", strconv.Itoa(summary.OptedOut)})
	}
	fmt.Fprintln(w, renderTable([]string{"Run " + shortID(summary.RunID), ""}, rows, []columnAlignment{alignLeft, alignRight}))

	if len(summary.Failures) > 0 {
		fmt.Fprintln(w)
		for _, line := range renderSectionHeader("Failures", color) {
			fmt.Fprintln(w, line)
		}
		failRows := make([][]string, 0, len(summary.Failures))
		for _, f := range summary.Failures {
			failRows = append(failRows, []string{f.Document, f.URL, f.Error})
		}
		fmt.Fprintln(w, renderTable([]string{"Document", "URL", "Error"}, failRows, nil))
	}
	if summary.Interrupted {
		fmt.Fprintln(w, colorIf(color, styleYellow, "Run interrupted; finished documents were saved."))
	}
	return nil
}

func colorIf(enabled bool, s style, text string) string {
	if !enabled {
		return text
	}
	return colorize(s, text)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
