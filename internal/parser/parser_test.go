package parser

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"deckgen/internal/models"
)

func TestParseMarkdownItems(t *testing.T) {
	src := `# Airbnb Case

Airbnb started with **air mattresses** in a San Francisco loft.

## Funding

| round | amount |
|-------|--------|
| seed  | 600k   |

- first bullet
- second bullet

# Growth

Hosts and listings grew quickly.
`
	doc := ParseMarkdown([]byte(src))
	if len(doc.Pages) != 2 {
		t.Fatalf("expected 2 pages (one per top level heading), got %d", len(doc.Pages))
	}

	first := doc.Pages[0].Items
	if first[0].Type != models.ItemHeading || first[0].Value != "Airbnb Case" {
		t.Fatalf("unexpected first item %#v", first[0])
	}
	if first[1].Value != "Airbnb started with air mattresses in a San Francisco loft." {
		t.Fatalf("unexpected paragraph text %q", first[1].Value)
	}

	var table *models.Item
	bullets := 0
	for i := range first {
		if first[i].Type == models.ItemTable {
			table = &first[i]
		}
		if first[i].Value == "first bullet" || first[i].Value == "second bullet" {
			bullets++
		}
	}
	if table == nil {
		t.Fatal("expected a table item")
	}
	if len(table.Rows) != 2 || table.Rows[1][0] != "seed" || table.Rows[1][1] != "600k" {
		t.Fatalf("unexpected table rows %#v", table.Rows)
	}
	if bullets != 2 {
		t.Fatalf("expected list items as text, got %d", bullets)
	}
}

func TestExtractTextAndTables(t *testing.T) {
	doc := &models.ParsedDocument{Pages: []models.Page{
		{Items: []models.Item{
			{Type: models.ItemHeading, Value: "Title"},
			{Type: models.ItemText, Value: "  "},
			{Type: models.ItemTable, Rows: [][]string{{"a", "b"}}},
			{Type: "figure", Value: "ignored"},
		}},
		{Items: []models.Item{{Type: models.ItemText, Value: "Body"}}},
	}}

	items := ExtractTextAndTables(doc)
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	if items[0].Text != "Title" || len(items[1].Rows) != 1 || items[2].Text != "Body" {
		t.Fatalf("unexpected items %#v", items)
	}
}

func TestDecodeParsedJSONArrayForm(t *testing.T) {
	data := []byte(`[{"job_id":"abc","pages":[{"page":1,"items":[
		{"type":"heading","value":"Intro"},
		{"type":"table","rows":[["year",2023],["growth",null]]}
	],"images":[{"name":"img_p0_1.png","width":640,"height":480}]}]}]`)

	doc, err := DecodeParsedJSON(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(doc.Pages) != 1 || len(doc.Pages[0].Items) != 2 {
		t.Fatalf("unexpected document %#v", doc)
	}
	rows := doc.Pages[0].Items[1].Rows
	if rows[0][1] != "2023" || rows[1][1] != "" {
		t.Fatalf("unexpected rows %#v", rows)
	}
	if doc.Pages[0].Images[0].Width != 640 {
		t.Fatalf("expected image metadata to survive, got %#v", doc.Pages[0].Images)
	}
}

func TestLocalParserText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.txt")
	if err := os.WriteFile(path, []byte("First paragraph\nstill first.\n\nSecond paragraph."), 0o644); err != nil {
		t.Fatal(err)
	}

	doc, err := NewLocalParser().Parse(context.Background(), path)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	items := doc.Pages[0].Items
	if len(items) != 2 || items[0].Value != "First paragraph still first." {
		t.Fatalf("unexpected items %#v", items)
	}
	if doc.Source != path {
		t.Fatalf("expected source %q, got %q", path, doc.Source)
	}
}

func TestLocalParserUnsupported(t *testing.T) {
	if _, err := NewLocalParser().Parse(context.Background(), "deck.key"); err == nil {
		t.Fatal("expected unsupported format error")
	}
}
