package relationships

import (
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// extractMarkdownLinks parses markdown with goldmark and collects link and
// image destinations from the AST. A parse that fails to walk cleanly just
// returns what was collected so far.
func extractMarkdownLinks(source []byte) []string {
	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(source))

	var targets []string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Link:
			targets = append(targets, string(node.Destination))
		case *ast.Image:
			targets = append(targets, string(node.Destination))
		}
		return ast.WalkContinue, nil
	})

	return targets
}
