// Package watch turns filesystem notifications below a document root into
// debounced batches of changed documents.
package watch
