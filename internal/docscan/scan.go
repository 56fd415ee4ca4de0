package docscan

import (
	"io/fs"
	"iter"
	"path/filepath"
	"strings"
)

// Scan yields the absolute path of every regular file below root accepted by
// match. Entries that cannot be read are yielded as errors and the walk
// continues with the next sibling; stopping the range stops the walk.
func Scan(root string, match func(path string) bool) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		absRoot, err := filepath.Abs(root)
		if err != nil {
			yield("", err)
			return
		}
		_ = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if path == absRoot {
					yield("", err)
					return fs.SkipAll
				}
				if !yield(path, err) {
					return fs.SkipAll
				}
				if d != nil && d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if d.IsDir() || !d.Type().IsRegular() {
				return nil
			}
			if match != nil && !match(path) {
				return nil
			}
			if !yield(path, nil) {
				return fs.SkipAll
			}
			return nil
		})
	}
}

// HasExtension returns a predicate matching paths whose extension equals ext,
// ignoring case.
func HasExtension(ext string) func(string) bool {
	ext = strings.ToLower(ext)
	return func(path string) bool {
		return strings.ToLower(filepath.Ext(path)) == ext
	}
}

// Count ranges over seq once and returns how many paths it produced, ignoring
// errors.
func Count(seq iter.Seq2[string, error]) int {
	n := 0
	for _, err := range seq {
		if err == nil {
			n++
		}
	}
	return n
}

// RelDir returns the slash-separated directory of path relative to root, or
// "" for documents directly inside root.
func RelDir(root, path string) (string, error) {
	rel, err := filepath.Rel(root, filepath.Dir(path))
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)
	if rel == "." {
		return "", nil
	}
	return rel, nil
}
