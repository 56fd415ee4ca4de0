// Package ledger records the history of imgsync runs in SQLite.
//
// Each run stores its counters and every reference outcome (fetched, skipped,
// failed, transcoded). The ledger is write-mostly: the pipeline never consults
// it to decide whether to fetch; the asset file on disk is the only memo.
// The "imgsync history" command reads it back.
package ledger
