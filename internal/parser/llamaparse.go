package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"deckgen/internal/models"
)

// llamaDocument mirrors the JSON produced by hosted parsing services such as LlamaParse.
type llamaDocument struct {
	JobID string      `json:"job_id"`
	Pages []llamaPage `json:"pages"`
}

type llamaPage struct {
	Page   int                `json:"page"`
	Items  []llamaItem        `json:"items"`
	Images []models.PageImage `json:"images"`
}

type llamaItem struct {
	Type  string          `json:"type"`
	Value string          `json:"value"`
	Rows  [][]interface{} `json:"rows"`
}

func parseLlamaJSON(filePath string) (*models.ParsedDocument, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return DecodeParsedJSON(data)
}

// DecodeParsedJSON accepts either one document object or an array whose first element holds the pages.
func DecodeParsedJSON(data []byte) (*models.ParsedDocument, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("empty document json")
	}

	var raw llamaDocument
	if data[0] == '[' {
		var docs []llamaDocument
		if err := json.Unmarshal(data, &docs); err != nil {
			return nil, fmt.Errorf("decode document json: %w", err)
		}
		if len(docs) == 0 {
			return nil, fmt.Errorf("document json holds no documents")
		}
		raw = docs[0]
	} else if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode document json: %w", err)
	}

	doc := &models.ParsedDocument{}
	for i, p := range raw.Pages {
		page := models.Page{Number: p.Page, Images: p.Images}
		if page.Number == 0 {
			page.Number = i + 1
		}
		for _, item := range p.Items {
			switch item.Type {
			case models.ItemHeading, models.ItemText:
				page.Items = append(page.Items, models.Item{Type: item.Type, Value: item.Value})
			case models.ItemTable:
				page.Items = append(page.Items, models.Item{Type: models.ItemTable, Rows: stringRows(item.Rows)})
			}
		}
		doc.Pages = append(doc.Pages, page)
	}
	return doc, nil
}

func stringRows(rows [][]interface{}) [][]string {
	out := make([][]string, 0, len(rows))
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			if cell == nil {
				continue
			}
			cells[i] = fmt.Sprint(cell)
		}
		out = append(out, cells)
	}
	return out
}
