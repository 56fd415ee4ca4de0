package markdown

import (
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// HTMLImage is the src of an inline <img> element.
type HTMLImage struct {
	// Source is the entity-decoded attribute value.
	Source string
	// Literal is how Source is spelled in the document text, or "" when no
	// spelling of it could be located.
	Literal string
}

// ExtractHTMLImageSources returns the src attribute of every inline <img>
// element in text, in document order. Markdown syntax around the tags is
// treated as plain text by the HTML parser.
func ExtractHTMLImageSources(text string) ([]HTMLImage, error) {
	if !strings.Contains(strings.ToLower(text), "<img") {
		return nil, nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return nil, err
	}
	var images []HTMLImage
	doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		if src, ok := s.Attr("src"); ok {
			if src = strings.TrimSpace(src); src != "" {
				images = append(images, HTMLImage{Source: src, Literal: literalSpelling(text, src)})
			}
		}
	})
	return images, nil
}

// literalSpelling finds the form of the decoded value src that occurs in
// text: as is, with only ampersands escaped, or fully entity-escaped.
func literalSpelling(text, src string) string {
	candidates := []string{
		src,
		strings.ReplaceAll(src, "&", "&amp;"),
		html.EscapeString(src),
	}
	for _, c := range candidates {
		if strings.Contains(text, c) {
			return c
		}
	}
	return ""
}
