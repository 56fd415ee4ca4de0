// Package markdown finds image references inside Markdown documents.
//
// ExtractImageTargets is the line-oriented pattern scan the pipeline rewrites
// with: it sees every `![alt](target)` occurrence, including those inside code
// spans, exactly as the text will be rewritten. The goldmark-based
// RemoteImages is a read-only audit view that only reports images the
// Markdown grammar would render. Front matter and inline HTML helpers support
// the optional per-document opt-out and <img> localization.
package markdown
