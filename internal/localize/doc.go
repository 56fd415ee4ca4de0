// Package localize drives one localization pass over a document tree.
//
// Documents are visited one at a time. For each document the driver extracts
// remote image targets, resolves each to an asset under the image root,
// downloads the assets that are not present yet, optionally transcodes them,
// and rewrites every occurrence of the original target to the local path.
// A document is written back only when its content changed.
//
// Reference failures never abort a document or the run. A failed download
// leaves the remote link in place so the next run retries it; a failed
// transcode keeps the original bytes and still rewrites the link.
package localize
