package markdown

import (
	"regexp"
	"strings"
)

var imagePattern = regexp.MustCompile(`!\[.*?\]\((.*?)\)`)

// ExtractImageTargets returns the target of every `![alt](target)` occurrence
// in text, in order of appearance. Duplicates are kept.
func ExtractImageTargets(text string) []string {
	matches := imagePattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	targets := make([]string, 0, len(matches))
	for _, m := range matches {
		targets = append(targets, m[1])
	}
	return targets
}

// IsRemote reports whether target points at an http(s) or protocol-relative URL.
func IsRemote(target string) bool {
	return strings.HasPrefix(target, "http://") ||
		strings.HasPrefix(target, "https://") ||
		strings.HasPrefix(target, "//")
}

// NormalizeURL turns a protocol-relative target into an https URL and returns
// any other target unchanged.
func NormalizeURL(target string) string {
	if strings.HasPrefix(target, "//") {
		return "https:" + target
	}
	return target
}
