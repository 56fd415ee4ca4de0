// Package assets maps remote image URLs to stable local file names.
//
// Names are derived from the URL alone so repeated runs resolve to the same
// path and an existing file short-circuits the download. Assets are
// partitioned by the referencing document's directory under images/.
package assets
