package assets

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"imgsync/internal/fileutil"
	"imgsync/internal/services"
)

// ImagesDir is the directory under the image root that holds every asset.
const ImagesDir = "images"

// trailingSuffix strips decorations after an extension such as
// "photo.jpg!thumbnail" or "photo.jpg@2x".
var trailingSuffix = regexp.MustCompile(`(\.\w+)[^\w].*`)

// Record locates one asset on disk and in rewritten documents.
type Record struct {
	Name        string
	LocalPath   string
	RewritePath string
	Present     bool
}

// Namer resolves remote URLs to asset records below ImageRoot.
type Namer struct {
	ImageRoot string
}

// Name derives the asset file name for remoteURL.
func Name(remoteURL string) (string, error) {
	trimmed := strings.TrimRight(remoteURL, "/")
	raw := trimmed[strings.LastIndex(trimmed, "/")+1:]

	name := trailingSuffix.ReplaceAllString(raw, "$1")
	if idx := strings.Index(name, "?"); idx >= 0 {
		name = name[:idx] + ".png"
	}
	name = norm.NFC.String(name)

	switch name {
	case "", ".", "..", ".png":
		return "", fmt.Errorf("no usable file name in %q", remoteURL)
	}
	if strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("file name %q from %q contains a path separator", name, remoteURL)
	}
	return name, nil
}

// SaveDir returns the slash-separated asset directory for documents in
// docRelDir, relative to the image root.
func SaveDir(docRelDir string) string {
	docRelDir = strings.Trim(filepath.ToSlash(docRelDir), "/")
	if docRelDir == "" || docRelDir == "." {
		return ImagesDir
	}
	return path.Join(ImagesDir, docRelDir)
}

// Resolve names remoteURL for a document in docRelDir, ensures the asset
// directory exists, and reports whether the asset is already present.
func (n Namer) Resolve(remoteURL, docRelDir string) (Record, error) {
	name, err := Name(remoteURL)
	if err != nil {
		return Record{}, services.Wrap(services.ErrIO, "assets", "name", remoteURL, err)
	}
	saveDir := SaveDir(docRelDir)
	dir := filepath.Join(n.ImageRoot, filepath.FromSlash(saveDir))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Record{}, services.Wrap(services.ErrIO, "assets", "create directory", dir, err)
	}

	rec := Record{
		Name:        name,
		LocalPath:   filepath.Join(dir, name),
		RewritePath: "/" + saveDir + "/" + name,
	}
	present, err := fileutil.Exists(rec.LocalPath)
	if err != nil {
		return Record{}, services.Wrap(services.ErrIO, "assets", "stat", rec.LocalPath, err)
	}
	rec.Present = present
	return rec, nil
}
