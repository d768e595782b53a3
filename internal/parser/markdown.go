package parser

import (
	"os"
	"strings"

	"deckgen/internal/models"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

func parseMarkdownFile(filePath string) (*models.ParsedDocument, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return ParseMarkdown(data), nil
}

// ParseMarkdown walks the goldmark AST and emits heading, text and table items.
// Each top level heading starts a new page.
func ParseMarkdown(source []byte) *models.ParsedDocument {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	root := md.Parser().Parse(text.NewReader(source))

	doc := &models.ParsedDocument{}
	page := models.Page{Number: 1}
	flush := func() {
		if len(page.Items) > 0 {
			doc.Pages = append(doc.Pages, page)
		}
		page = models.Page{Number: len(doc.Pages) + 1}
	}

	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			if node.Level == 1 {
				flush()
			}
			if v := nodeText(node, source); v != "" {
				page.Items = append(page.Items, models.Item{Type: models.ItemHeading, Value: v})
			}
		case *east.Table:
			if rows := tableRows(node, source); len(rows) > 0 {
				page.Items = append(page.Items, models.Item{Type: models.ItemTable, Rows: rows})
			}
		case *ast.List:
			for li := node.FirstChild(); li != nil; li = li.NextSibling() {
				if v := nodeText(li, source); v != "" {
					page.Items = append(page.Items, models.Item{Type: models.ItemText, Value: v})
				}
			}
		case *ast.ThematicBreak:
		default:
			if v := nodeText(node, source); v != "" {
				page.Items = append(page.Items, models.Item{Type: models.ItemText, Value: v})
			}
		}
	}
	flush()
	return doc
}

func tableRows(table *east.Table, source []byte) [][]string {
	var rows [][]string
	for row := table.FirstChild(); row != nil; row = row.NextSibling() {
		var cells []string
		for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
			cells = append(cells, nodeText(cell, source))
		}
		rows = append(rows, cells)
	}
	return rows
}

// nodeText concatenates the text segments below n
func nodeText(n ast.Node, source []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(child ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch c := child.(type) {
		case *ast.Text:
			b.Write(c.Segment.Value(source))
			if c.SoftLineBreak() || c.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(c.Value)
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			lines := child.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				b.Write(seg.Value(source))
			}
		}
		return ast.WalkContinue, nil
	})
	return strings.Join(strings.Fields(b.String()), " ")
}
