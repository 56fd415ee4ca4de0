package localize

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"imgsync/internal/docscan"
	"imgsync/internal/fileutil"
	"imgsync/internal/logging"
	"imgsync/internal/markdown"
	"imgsync/internal/services"
)

// reference is one distinct remote target found in a document.
type reference struct {
	target string
	url    string
	// err marks a reference that cannot be rewritten in place.
	err error
}

// ErrTargetNotInText reports an inline image whose src spelling could not be
// located in the document, so its link cannot be rewritten.
var ErrTargetNotInText = errors.New("image source not found verbatim in document")

// ProcessDocument localizes the remote images of the document at path and
// writes it back if any target was rewritten.
func (d *Driver) ProcessDocument(ctx context.Context, path string) (DocumentResult, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return DocumentResult{Path: path}, services.Wrap(services.ErrIO, "localize", "resolve document", path, err)
	}
	rel := d.relPath(abs)
	result := DocumentResult{Path: abs, Rel: rel}
	ctx = services.WithDocument(ctx, rel)
	logger := logging.WithContext(ctx, d.logger)

	info, err := os.Stat(abs)
	if err != nil {
		return result, services.Wrap(services.ErrIO, "localize", "stat document", abs, err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return result, services.Wrap(services.ErrIO, "localize", "read document", abs, err)
	}

	if d.respectFrontMatter {
		fm, fmErr := markdown.ParseFrontMatter(data)
		switch {
		case fmErr != nil:
			logger.Debug("front matter unreadable; localizing anyway", logging.Error(fmErr))
		case !fm.Localize:
			result.OptedOut = true
			logger.Info("document opted out via front matter")
			d.events.emit(Event{Kind: EventOptOut, Document: rel})
			return result, nil
		}
	}

	relDir, err := docscan.RelDir(d.docRoot, abs)
	if err != nil {
		return result, services.Wrap(services.ErrIO, "localize", "relative directory", abs, err)
	}

	text := string(data)
	refs := d.collectReferences(text, logger)
	if len(refs) == 0 {
		return result, nil
	}
	logger.Debug("remote references found", logging.Int("count", len(refs)))

	result.Outcomes = d.resolveAll(ctx, rel, relDir, refs)
	if err := ctx.Err(); err != nil {
		return result, err
	}

	updated := rewrite(text, result.Outcomes)
	if updated == text {
		return result, nil
	}
	if err := fileutil.WriteFileAtomic(abs, []byte(updated), info.Mode().Perm()); err != nil {
		return result, services.Wrap(services.ErrIO, "localize", "write document", abs, err)
	}
	result.Changed = true
	logger.Info("document rewritten", logging.Int("references", len(result.Outcomes)))
	return result, nil
}

// collectReferences returns the distinct remote targets of text in order of
// first appearance. Markdown images come before inline HTML images.
func (d *Driver) collectReferences(text string, logger *slog.Logger) []reference {
	seen := make(map[string]struct{})
	var refs []reference
	add := func(ref reference) {
		if _, dup := seen[ref.target]; dup {
			return
		}
		seen[ref.target] = struct{}{}
		refs = append(refs, ref)
	}

	for _, target := range markdown.ExtractImageTargets(text) {
		if markdown.IsRemote(target) {
			add(reference{target: target, url: markdown.NormalizeURL(target)})
		}
	}
	if d.htmlImages {
		images, err := markdown.ExtractHTMLImageSources(text)
		if err != nil {
			logger.Debug("inline html unreadable", logging.Error(err))
		}
		for _, img := range images {
			if !markdown.IsRemote(img.Source) {
				continue
			}
			ref := reference{target: img.Literal, url: markdown.NormalizeURL(img.Source)}
			if img.Literal == "" {
				ref.target = img.Source
				ref.err = fmt.Errorf("%w: %s", ErrTargetNotInText, img.Source)
			}
			add(ref)
		}
	}
	return refs
}

// rewrite replaces every occurrence of each settled target with its local
// path in a single pass. Longer targets take priority so a URL that is a
// prefix of another never clobbers it.
func rewrite(text string, outcomes []Outcome) string {
	pairs := make([]Outcome, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Rewritten() && o.Target != "" && strings.Contains(text, o.Target) {
			pairs = append(pairs, o)
		}
	}
	if len(pairs) == 0 {
		return text
	}
	slices.SortStableFunc(pairs, func(a, b Outcome) int {
		return cmp.Compare(len(b.Target), len(a.Target))
	})
	args := make([]string, 0, len(pairs)*2)
	for _, o := range pairs {
		args = append(args, o.Target, o.RewritePath)
	}
	return strings.NewReplacer(args...).Replace(text)
}
