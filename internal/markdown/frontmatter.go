package markdown

import (
	"bytes"
	"fmt"

	"github.com/adrg/frontmatter"
)

// FrontMatter holds the document metadata imgsync reads.
type FrontMatter struct {
	Title string
	// Localize is false when the document opts out with `imgsync: false`.
	Localize bool
}

type frontMatterEnvelope struct {
	Title   string `yaml:"title" toml:"title"`
	Imgsync *bool  `yaml:"imgsync" toml:"imgsync"`
}

// ParseFrontMatter extracts YAML or TOML front matter from source. Documents
// without front matter yield a zero title and Localize=true.
func ParseFrontMatter(source []byte) (FrontMatter, error) {
	var meta frontMatterEnvelope
	if _, err := frontmatter.Parse(bytes.NewReader(source), &meta); err != nil {
		return FrontMatter{Localize: true}, fmt.Errorf("parse frontmatter: %w", err)
	}
	fm := FrontMatter{Title: meta.Title, Localize: true}
	if meta.Imgsync != nil {
		fm.Localize = *meta.Imgsync
	}
	return fm, nil
}
