package localize

import (
	"sync"

	"imgsync/internal/services/download"
)

// EventKind classifies reporter events.
type EventKind string

const (
	// EventDocument fires before a document is processed.
	EventDocument EventKind = "document"
	// EventOptOut fires when front matter excludes a document.
	EventOptOut EventKind = "opt_out"
	// EventProgress reports download progress for one URL.
	EventProgress EventKind = "progress"
	// EventReference fires once per distinct reference when it settles.
	EventReference EventKind = "reference"
	// EventDocumentFailed fires when a document cannot be read or written.
	EventDocumentFailed EventKind = "document_failed"
	// EventFinished fires once the run has ended.
	EventFinished EventKind = "finished"
)

// Event is delivered to a Reporter. Only the fields relevant to Kind are set.
type Event struct {
	Kind     EventKind
	Index    int
	Total    int
	Document string
	Progress download.Progress
	Outcome  *Outcome
	Summary  *Summary
	Err      error
}

// Reporter receives pipeline events. Calls are serialized by the driver.
type Reporter interface {
	Report(Event)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(Event)

// Report calls f(e).
func (f ReporterFunc) Report(e Event) { f(e) }

// eventSink serializes reporter calls and keeps progress monotonic per URL.
type eventSink struct {
	mu       sync.Mutex
	reporter Reporter
	percent  map[string]float64
}

func newEventSink(r Reporter) *eventSink {
	return &eventSink{reporter: r, percent: make(map[string]float64)}
}

func (s *eventSink) emit(e Event) {
	if s == nil || s.reporter == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	switch e.Kind {
	case EventProgress:
		last, seen := s.percent[e.Progress.URL]
		if seen && e.Progress.Percent <= last {
			return
		}
		s.percent[e.Progress.URL] = e.Progress.Percent
	case EventReference:
		if e.Outcome != nil {
			delete(s.percent, e.Outcome.URL)
		}
	}
	s.reporter.Report(e)
}
