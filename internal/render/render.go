package render

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"deckgen/internal/helper"
	"deckgen/internal/models"

	"github.com/rs/zerolog/log"
)

// ErrUnsupportedFormat is returned for output formats no shipped renderer writes.
var ErrUnsupportedFormat = errors.New("unsupported output format")

// Renderer writes mapped slide content into an output file.
type Renderer interface {
	Render(ctx context.Context, templatePath string, mappings []models.PlacementMapping, outputPath string) error
}

// ForPath picks the renderer for the output file extension.
func ForPath(outputPath string) (Renderer, error) {
	switch strings.ToLower(filepath.Ext(outputPath)) {
	case ".html", ".htm":
		return NewHTMLRenderer(), nil
	case ".json":
		return NewManifestRenderer(), nil
	default:
		// .pptx belongs to an external presentation writer
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(outputPath))
	}
}

// Render renders mappings with the renderer matching outputPath.
func Render(ctx context.Context, templatePath string, mappings []models.PlacementMapping, outputPath string) error {
	r, err := ForPath(outputPath)
	if err != nil {
		return err
	}
	if err := r.Render(ctx, templatePath, mappings, outputPath); err != nil {
		return err
	}
	log.Info().Str("output", outputPath).Int("slides", len(mappings)).Msg("Rendered deck")
	return nil
}

// writeFile replaces outputPath with data through a temporary file in the same directory
func writeFile(outputPath string, data []byte) error {
	dir := filepath.Dir(outputPath)
	if err := helper.CreateFolder(dir); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(outputPath)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", outputPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), outputPath); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename %s: %w", outputPath, err)
	}
	return nil
}
