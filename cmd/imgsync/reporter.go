package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"

	"imgsync/internal/ledger"
	"imgsync/internal/localize"
	"imgsync/internal/logging"
	"imgsync/internal/services"
	"imgsync/internal/services/download"
)

// terminalReporter prints one "[NN/NN] document" line per document, a line
// per failed or converted image, and the closing "[N/N] analysis complete"
// line. On a terminal downloads render as a progress bar; elsewhere progress
// is sampled into plain lines.
type terminalReporter struct {
	out         io.Writer
	color       bool
	interactive bool
	sampler     *logging.ProgressSampler
	bar         *progressbar.ProgressBar
	barURL      string
}

func newTerminalReporter(out io.Writer, interactive bool) *terminalReporter {
	return &terminalReporter{
		out:         out,
		color:       interactive,
		interactive: interactive,
		sampler:     logging.NewProgressSampler(25),
	}
}

func (r *terminalReporter) Report(e localize.Event) {
	switch e.Kind {
	case localize.EventDocument:
		r.closeBar()
		fmt.Fprintf(r.out, "%s %s\n", counter(e.Index, e.Total), colorIf(r.color, styleCyan, e.Document))
	case localize.EventOptOut:
		fmt.Fprintf(r.out, "  %s %s\n", e.Document, colorIf(r.color, styleYellow, "skipped (imgsync: false)"))
	case localize.EventProgress:
		r.progress(e.Progress)
	case localize.EventReference:
		r.closeBar()
		r.reference(e.Outcome)
	case localize.EventDocumentFailed:
		r.closeBar()
		fmt.Fprintf(r.out, "  %s %s: %s\n", colorIf(r.color, styleRed, "document failed"), e.Document, errText(e.Err))
	case localize.EventFinished:
		r.closeBar()
		processed := 0
		if e.Summary != nil {
			processed = e.Summary.Fetched
		}
		fmt.Fprintf(r.out, "[%d/%d] analysis complete, processed %s images\n",
			e.Index, e.Total, colorIf(r.color, styleCyan, strconv.Itoa(processed)))
	}
}

func (r *terminalReporter) reference(o *localize.Outcome) {
	if o == nil {
		return
	}
	switch o.Status {
	case ledger.StatusFailed:
		fmt.Fprintf(r.out, "  %s %s: %s\n", colorIf(r.color, styleRed, failureLabel(o.Err)), o.URL, errText(o.Err))
	case ledger.StatusTranscoded:
		fmt.Fprintf(r.out, "  converted %s (%s -> %s)\n", o.RewritePath,
			humanize.IBytes(uint64(o.BytesIn)), humanize.IBytes(uint64(o.BytesOut)))
	case ledger.StatusFetched:
		if o.Warning != nil {
			fmt.Fprintf(r.out, "  %s %s: %s\n", colorIf(r.color, styleYellow, "conversion failed"), o.RewritePath, o.Warning)
		}
	}
}

func (r *terminalReporter) progress(p download.Progress) {
	if !r.interactive {
		if r.sampler.ShouldLog(p.Percent, p.URL) {
			fmt.Fprintf(r.out, "  downloading %s %.0f%%\n", p.URL, p.Percent)
		}
		return
	}
	if r.bar == nil || r.barURL != p.URL {
		r.closeBar()
		r.barURL = p.URL
		r.bar = progressbar.NewOptions64(p.Total,
			progressbar.OptionSetWriter(r.out),
			progressbar.OptionSetDescription("  Downloading..."),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetWidth(30),
			progressbar.OptionThrottle(65*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
	}
	_ = r.bar.Set64(p.Downloaded)
}

func (r *terminalReporter) closeBar() {
	if r.bar == nil {
		return
	}
	_ = r.bar.Finish()
	r.bar = nil
	r.barURL = ""
	r.sampler.Reset()
}

// failureLabel names the step that failed so naming and document errors
// are not reported as downloads.
func failureLabel(err error) string {
	if errors.Is(err, services.ErrDownload) {
		return "download failed"
	}
	return "image failed"
}

// counter renders "[07/12]" with the index zero-padded to the width of total.
func counter(index, total int) string {
	width := len(strconv.Itoa(total))
	return fmt.Sprintf("[%0*d/%d]", width, index, total)
}

func errText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
