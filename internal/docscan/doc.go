// Package docscan enumerates the documents under a root directory.
//
// Scan is lazy and restartable: each range over the returned sequence walks
// the tree again, in lexical order per directory, so callers can count the
// documents first and then process them in a second pass.
package docscan
