// Package services defines shared utilities consumed by the localization
// pipeline and its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, document paths, and pipeline stages
//     for logging.
//   - Structured error markers plus the Wrap helper, and the typed
//     DownloadError, TranscodeError, and ArchiveError values that classify
//     per-reference failures as recoverable.
//
// The subpackages wrap the collaborators the pipeline talks to: the HTTP
// downloader and the ffmpeg codec process.
package services
