package models

const (
	ItemHeading = "heading"
	ItemText    = "text"
	ItemTable   = "table"
)

// ParsedDocument is the structured output of the document parser collaborator.
type ParsedDocument struct {
	Source string `json:"source,omitempty"`
	Pages  []Page `json:"pages"`
}

type Page struct {
	Number int         `json:"page"`
	Items  []Item      `json:"items"`
	Images []PageImage `json:"images"`
}

// Item is one heading, text or table element of a page.
type Item struct {
	Type  string     `json:"type"`
	Value string     `json:"value,omitempty"`
	Rows  [][]string `json:"rows,omitempty"`
}

type PageImage struct {
	Name   string `json:"name"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// TextItem is a heading/text value or a table fed to the chunker.
type TextItem struct {
	Text string
	Rows [][]string
}

// DocumentChunk is an ordered, immutable segment of source text.
type DocumentChunk struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// RetrievedContent is a document passage answering a summary query.
type RetrievedContent struct {
	Query    string `json:"query"`
	Response string `json:"response"`
}

// SummaryUnit is one entry of the presentation data handed to the slide generator.
type SummaryUnit struct {
	Index            int                `json:"index"`
	DetailedSummary  string             `json:"detailed_summary"`
	KeyPoints        []string           `json:"key_points"`
	Visualizations   []string           `json:"visualizations"`
	DocumentQueries  []string           `json:"document_queries"`
	RetrievedContent []RetrievedContent `json:"retrieved_content"`
	CandidateImages  []string           `json:"candidate_images"`
}
