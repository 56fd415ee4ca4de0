package ledger

import "time"

// AssetStatus is the outcome of one reference in a run.
type AssetStatus string

const (
	StatusFetched    AssetStatus = "fetched"
	StatusSkipped    AssetStatus = "skipped"
	StatusFailed     AssetStatus = "failed"
	StatusTranscoded AssetStatus = "transcoded"
)

// Run summarises one invocation.
type Run struct {
	ID          string     `json:"id" yaml:"id"`
	StartedAt   time.Time  `json:"started_at" yaml:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
	DocRoot     string     `json:"doc_root" yaml:"doc_root"`
	ImgRoot     string     `json:"img_root" yaml:"img_root"`
	Documents   int        `json:"documents" yaml:"documents"`
	Changed     int        `json:"changed" yaml:"changed"`
	Fetched     int        `json:"fetched" yaml:"fetched"`
	Skipped     int        `json:"skipped" yaml:"skipped"`
	Failed      int        `json:"failed" yaml:"failed"`
	Transcoded  int        `json:"transcoded" yaml:"transcoded"`
	BytesSaved  int64      `json:"bytes_saved" yaml:"bytes_saved"`
	Interrupted bool       `json:"interrupted,omitempty" yaml:"interrupted,omitempty"`
}

// Asset records the outcome of one reference.
type Asset struct {
	RunID      string      `json:"run_id" yaml:"run_id"`
	Document   string      `json:"document" yaml:"document"`
	URL        string      `json:"url" yaml:"url"`
	LocalPath  string      `json:"local_path,omitempty" yaml:"local_path,omitempty"`
	Status     AssetStatus `json:"status" yaml:"status"`
	BytesIn    int64       `json:"bytes_in" yaml:"bytes_in"`
	BytesOut   int64       `json:"bytes_out" yaml:"bytes_out"`
	Error      string      `json:"error,omitempty" yaml:"error,omitempty"`
	RecordedAt time.Time   `json:"recorded_at" yaml:"recorded_at"`
}
