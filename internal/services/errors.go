package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrIO            = errors.New("io error")
	ErrDownload      = errors.New("download error")
	ErrTranscode     = errors.New("transcode error")
	ErrArchive       = errors.New("archive error")
	ErrConfiguration = errors.New("configuration error")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrIO
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// DownloadError reports a failed fetch of a remote asset. The referencing
// document keeps its remote link so a later run retries the URL.
type DownloadError struct {
	URL string
	Err error
}

func (e *DownloadError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("download %s failed", e.URL)
	}
	return fmt.Sprintf("download %s: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() []error { return withCause(ErrDownload, e.Err) }

// TranscodeError reports a codec failure. The fetched asset stays in place
// untranscoded.
type TranscodeError struct {
	Input string
	Err   error
}

func (e *TranscodeError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("transcode %s failed", e.Input)
	}
	return fmt.Sprintf("transcode %s: %v", e.Input, e.Err)
}

func (e *TranscodeError) Unwrap() []error { return withCause(ErrTranscode, e.Err) }

// ArchiveError reports a failure to extract the codec binary from its release
// archive. Transcoding is disabled for the run when it occurs.
type ArchiveError struct {
	Archive string
	Entry   string
	Err     error
}

func (e *ArchiveError) Error() string {
	msg := fmt.Sprintf("extract %s from %s", e.Entry, e.Archive)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ArchiveError) Unwrap() []error { return withCause(ErrArchive, e.Err) }

// Recoverable reports whether err only affects a single reference or asset
// and the run may continue.
func Recoverable(err error) bool {
	switch {
	case err == nil:
		return true
	case errors.Is(err, ErrDownload), errors.Is(err, ErrTranscode), errors.Is(err, ErrArchive):
		return true
	default:
		return false
	}
}

func withCause(marker, cause error) []error {
	if cause == nil {
		return []error{marker}
	}
	return []error{marker, cause}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
