package markdown

import (
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

var auditEngine = goldmark.New(goldmark.WithExtensions(extension.GFM))

// RemoteImages parses source as Markdown and returns the destination of every
// rendered image node that still points at a remote URL. Images inside code
// spans and fenced blocks are not reported.
func RemoteImages(source []byte) []string {
	root := auditEngine.Parser().Parse(text.NewReader(source))
	var remote []string
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if img, ok := n.(*ast.Image); ok {
			if dest := string(img.Destination); IsRemote(dest) {
				remote = append(remote, dest)
			}
		}
		return ast.WalkContinue, nil
	})
	return remote
}
