package localize

import (
	"context"
	"time"

	"imgsync/internal/ledger"
	"imgsync/internal/services/download"
	"imgsync/internal/services/ffmpeg"
)

// Fetcher downloads a remote asset to dest.
type Fetcher interface {
	Fetch(ctx context.Context, url, dest string, progress func(download.Progress)) (int64, error)
}

// Transcoder re-encodes a fetched asset in place.
type Transcoder interface {
	Transcode(ctx context.Context, input, output string) (ffmpeg.Result, error)
}

// Recorder persists run history.
type Recorder interface {
	StartRun(ctx context.Context, run *ledger.Run) error
	RecordAsset(ctx context.Context, asset ledger.Asset) error
	FinishRun(ctx context.Context, run *ledger.Run) error
}

// Outcome is the result of one distinct reference within a document.
type Outcome struct {
	Document    string
	Target      string
	URL         string
	LocalPath   string
	RewritePath string
	Status      ledger.AssetStatus
	BytesIn     int64
	BytesOut    int64
	// Err is set for failed references.
	Err error
	// Warning carries a non-fatal transcode failure.
	Warning error
}

// Rewritten reports whether the reference's target is replaced in the document.
func (o Outcome) Rewritten() bool {
	return o.Status != ledger.StatusFailed && o.RewritePath != ""
}

// Saved returns the bytes a transcode saved for this reference.
func (o Outcome) Saved() int64 {
	if o.Status != ledger.StatusTranscoded || o.BytesOut >= o.BytesIn {
		return 0
	}
	return o.BytesIn - o.BytesOut
}

// DocumentResult summarises one processed document.
type DocumentResult struct {
	Path     string
	Rel      string
	Changed  bool
	OptedOut bool
	Outcomes []Outcome
}

// Failure identifies a reference or document that could not be processed.
type Failure struct {
	Document string `json:"document" yaml:"document"`
	URL      string `json:"url,omitempty" yaml:"url,omitempty"`
	Error    string `json:"error" yaml:"error"`
}

// Summary holds the counters of one run.
type Summary struct {
	RunID       string        `json:"run_id" yaml:"run_id"`
	Documents   int           `json:"documents" yaml:"documents"`
	Changed     int           `json:"changed" yaml:"changed"`
	OptedOut    int           `json:"opted_out" yaml:"opted_out"`
	Images      int           `json:"images" yaml:"images"`
	Fetched     int           `json:"fetched" yaml:"fetched"`
	Skipped     int           `json:"skipped" yaml:"skipped"`
	Failed      int           `json:"failed" yaml:"failed"`
	Transcoded  int           `json:"transcoded" yaml:"transcoded"`
	BytesSaved  int64         `json:"bytes_saved" yaml:"bytes_saved"`
	Duration    time.Duration `json:"duration" yaml:"duration"`
	Interrupted bool          `json:"interrupted,omitempty" yaml:"interrupted,omitempty"`
	Failures    []Failure     `json:"failures,omitempty" yaml:"failures,omitempty"`
}

func (s *Summary) add(result DocumentResult) {
	s.Documents++
	if result.Changed {
		s.Changed++
	}
	if result.OptedOut {
		s.OptedOut++
	}
	for _, o := range result.Outcomes {
		s.Images++
		switch o.Status {
		case ledger.StatusSkipped:
			s.Skipped++
		case ledger.StatusFetched:
			s.Fetched++
		case ledger.StatusTranscoded:
			s.Fetched++
			s.Transcoded++
			s.BytesSaved += o.Saved()
		case ledger.StatusFailed:
			s.Failed++
			s.Failures = append(s.Failures, Failure{Document: result.Rel, URL: o.URL, Error: errorText(o.Err)})
		}
	}
}

func (s *Summary) addDocumentFailure(rel string, err error) {
	s.Documents++
	s.Failures = append(s.Failures, Failure{Document: rel, Error: errorText(err)})
}

func (s Summary) ledgerRun(run *ledger.Run) {
	run.Documents = s.Documents
	run.Changed = s.Changed
	run.Fetched = s.Fetched
	run.Skipped = s.Skipped
	run.Failed = s.Failed
	run.Transcoded = s.Transcoded
	run.BytesSaved = s.BytesSaved
	run.Interrupted = s.Interrupted
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
