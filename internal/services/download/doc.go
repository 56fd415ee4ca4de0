// Package download streams remote assets to disk.
//
// Bodies are written to "<dest>.part" and renamed into place only after the
// full response has been copied and the file closed, so an interrupted run
// never leaves a truncated asset that a later run would mistake for a
// finished one. Requests can be throttled per host with a token bucket.
package download
