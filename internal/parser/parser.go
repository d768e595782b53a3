package parser

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"deckgen/internal/models"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/rs/zerolog/log"
	"github.com/tealeg/xlsx"
	"github.com/xuri/excelize/v2"
)

// Parser is the document parser collaborator consumed by the pipeline.
type Parser interface {
	Parse(ctx context.Context, filePath string) (*models.ParsedDocument, error)
}

// LocalParser parses documents on the local filesystem.
type LocalParser struct{}

func NewLocalParser() *LocalParser {
	return &LocalParser{}
}

var (
	blankLineRe  = regexp.MustCompile(`\n\s*\n`)
	slideNameRe  = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)
	docxParaRe   = regexp.MustCompile(`(?s)<w:p[ >].*?</w:p>`)
	xmlTextRunRe = regexp.MustCompile(`(?s)<(?:a|w):t(?: [^>]*)?>(.*?)</(?:a|w):t>`)
)

func (p *LocalParser) Parse(ctx context.Context, filePath string) (*models.ParsedDocument, error) {
	var (
		doc *models.ParsedDocument
		err error
	)

	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".json":
		doc, err = parseLlamaJSON(filePath)
	case ".md", ".markdown":
		doc, err = parseMarkdownFile(filePath)
	case ".pdf":
		doc, err = parsePDF(filePath)
	case ".docx":
		doc, err = parseDOCX(filePath)
	case ".pptx":
		doc, err = parsePPTX(filePath)
	case ".xlsx":
		doc, err = parseXLSX(filePath)
	case ".xlsm", ".xltx", ".xltm":
		doc, err = parseExcelize(filePath)
	case ".txt":
		doc, err = parseText(filePath)
	default:
		return nil, fmt.Errorf("unsupported file format: %s", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filePath, err)
	}
	doc.Source = filePath

	log.Debug().Str("file", filePath).Int("pages", len(doc.Pages)).Msg("Parsed document")
	return doc, nil
}

// ExtractTextAndTables flattens a parsed document into chunker input, keeping page order.
func ExtractTextAndTables(doc *models.ParsedDocument) []models.TextItem {
	var items []models.TextItem
	if doc == nil {
		return items
	}
	for _, page := range doc.Pages {
		for _, item := range page.Items {
			switch item.Type {
			case models.ItemHeading, models.ItemText:
				if strings.TrimSpace(item.Value) != "" {
					items = append(items, models.TextItem{Text: item.Value})
				}
			case models.ItemTable:
				if len(item.Rows) > 0 {
					items = append(items, models.TextItem{Rows: item.Rows})
				}
			}
		}
	}
	return items
}

func parsePDF(filePath string) (*models.ParsedDocument, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}

	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return nil, err
	}

	doc := &models.ParsedDocument{}
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return nil, err
		}
		doc.Pages = append(doc.Pages, models.Page{
			Number: i,
			Items:  paragraphItems(pageText),
		})
	}
	return doc, nil
}

func parseDOCX(filePath string) (*models.ParsedDocument, error) {
	r, err := docx.ReadDocxFile(filePath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	// GetContent returns the document XML, one <w:p> per paragraph
	content := r.Editable().GetContent()
	page := models.Page{Number: 1}
	for _, para := range docxParaRe.FindAllString(content, -1) {
		text := strings.TrimSpace(extractTextFromXML(para))
		if text == "" {
			continue
		}
		page.Items = append(page.Items, models.Item{Type: models.ItemText, Value: text})
	}
	return &models.ParsedDocument{Pages: []models.Page{page}}, nil
}

func parsePPTX(filePath string) (*models.ParsedDocument, error) {
	f, err := zip.OpenReader(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	type slideText struct {
		number int
		text   string
	}
	var slides []slideText
	for _, file := range f.File {
		m := slideNameRe.FindStringSubmatch(file.Name)
		if m == nil {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			continue
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		slides = append(slides, slideText{number: n, text: extractTextFromXML(string(data))})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].number < slides[j].number })

	doc := &models.ParsedDocument{}
	for _, s := range slides {
		if strings.TrimSpace(s.text) == "" {
			continue
		}
		doc.Pages = append(doc.Pages, models.Page{
			Number: s.number,
			Items:  []models.Item{{Type: models.ItemText, Value: strings.TrimSpace(s.text)}},
		})
	}
	return doc, nil
}

func parseXLSX(filePath string) (*models.ParsedDocument, error) {
	f, err := xlsx.OpenFile(filePath)
	if err != nil {
		return nil, err
	}

	doc := &models.ParsedDocument{}
	for sheetNum, sheet := range f.Sheets {
		var rows [][]string
		for _, row := range sheet.Rows {
			var cells []string
			for _, cell := range row.Cells {
				cells = append(cells, cell.String())
			}
			if len(cells) > 0 {
				rows = append(rows, cells)
			}
		}
		doc.Pages = append(doc.Pages, sheetPage(sheetNum+1, sheet.Name, rows))
	}
	return doc, nil
}

func parseExcelize(filePath string) (*models.ParsedDocument, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	doc := &models.ParsedDocument{}
	for sheetNum, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			continue
		}
		doc.Pages = append(doc.Pages, sheetPage(sheetNum+1, sheetName, rows))
	}
	return doc, nil
}

func sheetPage(number int, name string, rows [][]string) models.Page {
	page := models.Page{Number: number}
	page.Items = append(page.Items, models.Item{Type: models.ItemHeading, Value: "Sheet: " + name})
	if len(rows) > 0 {
		page.Items = append(page.Items, models.Item{Type: models.ItemTable, Rows: rows})
	}
	return page
}

func parseText(filePath string) (*models.ParsedDocument, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	page := models.Page{Number: 1, Items: paragraphItems(string(data))}
	return &models.ParsedDocument{Pages: []models.Page{page}}, nil
}

// paragraphItems splits plain text on blank lines into text items
func paragraphItems(text string) []models.Item {
	var items []models.Item
	for _, para := range blankLineRe.Split(text, -1) {
		para = strings.Join(strings.Fields(para), " ")
		if para == "" {
			continue
		}
		items = append(items, models.Item{Type: models.ItemText, Value: para})
	}
	return items
}

func extractTextFromXML(xmlContent string) string {
	var text strings.Builder
	for _, m := range xmlTextRunRe.FindAllStringSubmatch(xmlContent, -1) {
		text.WriteString(unescapeXML(m[1]) + " ")
	}
	return strings.Join(strings.Fields(text.String()), " ")
}

var xmlUnescaper = strings.NewReplacer("&amp;", "&", "&lt;", "<", "&gt;", ">", "&quot;", `"`, "&apos;", "'")

func unescapeXML(s string) string {
	return xmlUnescaper.Replace(s)
}
