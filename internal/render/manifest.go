package render

import (
	"context"
	"encoding/json"
	"fmt"

	"deckgen/internal/layout"
	"deckgen/internal/models"
)

// Manifest is the JSON form of a rendered deck, for presentation writers outside this module.
type Manifest struct {
	Template    string                    `json:"template"`
	SlideWidth  int64                     `json:"slide_width"`
	SlideHeight int64                     `json:"slide_height"`
	Slides      []models.PlacementMapping `json:"slides"`
}

type ManifestRenderer struct{}

func NewManifestRenderer() *ManifestRenderer {
	return &ManifestRenderer{}
}

func (r *ManifestRenderer) Render(ctx context.Context, templatePath string, mappings []models.PlacementMapping, outputPath string) error {
	tmpl, err := layout.LoadTemplate(templatePath)
	if err != nil {
		return err
	}
	m := Manifest{
		Template:    templatePath,
		SlideWidth:  tmpl.SlideWidth,
		SlideHeight: tmpl.SlideHeight,
		Slides:      mappings,
	}
	if m.Slides == nil {
		m.Slides = []models.PlacementMapping{}
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	return writeFile(outputPath, data)
}
