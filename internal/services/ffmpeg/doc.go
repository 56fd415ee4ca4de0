// Package ffmpeg re-encodes downloaded images with an external ffmpeg and
// acquires that binary when it is missing.
//
// Transcoder writes every encode to a uniquely named temp file in a work
// directory and only replaces the original asset when the result is strictly
// smaller (or acceptance is forced). Bootstrapper downloads a release archive,
// extracts the single ffmpeg entry, and installs it next to imgsync's state.
package ffmpeg
