// Package logging assembles structured slog loggers and formatting helpers used
// across imgsync.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so pipeline code can tag log
// lines with the run ID, document, and stage. The package also provides a
// no-op logger for tests and a sampler that thins download progress output.
package logging
