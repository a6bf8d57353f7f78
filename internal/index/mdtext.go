package index

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// PlainText flattens chunk markdown to the text that gets embedded and
// excerpted. Table cells collapse to space separated values, emphasis and
// link markup disappear, block boundaries become newlines.
func PlainText(markdown string) string {
	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	source := []byte(markdown)
	doc := md.Parser().Parse(text.NewReader(source))

	var sb strings.Builder
	_ = ast.Walk(doc, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			switch node.(type) {
			case *ast.Paragraph, *ast.Heading, *ast.ListItem, *extast.TableRow, *extast.TableHeader:
				sb.WriteString("\n")
			case *extast.TableCell:
				sb.WriteString(" ")
			}
			return ast.WalkContinue, nil
		}
		switch n := node.(type) {
		case *ast.Text:
			sb.Write(n.Segment.Value(source))
			if n.SoftLineBreak() || n.HardLineBreak() {
				sb.WriteString("\n")
			}
		case *ast.CodeBlock:
			writeLines(&sb, source, n)
		case *ast.FencedCodeBlock:
			writeLines(&sb, source, n)
		case *ast.AutoLink:
			sb.Write(n.URL(source))
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}

func writeLines(sb *strings.Builder, source []byte, node ast.Node) {
	lines := node.Lines()
	for i := 0; i < lines.Len(); i++ {
		segment := lines.At(i)
		sb.Write(segment.Value(source))
	}
}
