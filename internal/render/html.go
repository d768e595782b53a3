package render

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"math"
	"path/filepath"
	"strings"

	"deckgen/internal/layout"
	"deckgen/internal/models"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// PageWidth is the rendered slide width in CSS pixels.
const PageWidth = 960

const emuPerPoint = 12700

var deckTemplate = template.Must(template.New("deck").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { background: #e5e5e5; font-family: sans-serif; margin: 0; padding: 24px; }
.slide { position: relative; background: #fff; margin: 0 auto 24px; overflow: hidden; box-shadow: 0 1px 4px rgba(0,0,0,.3); }
.box { position: absolute; overflow: hidden; }
.box p, .box ul { margin: 0; }
.box img { width: 100%; height: 100%; object-fit: contain; }
.notes { margin: -16px auto 24px; font-size: 13px; color: #444; }
</style>
</head>
<body>
{{- range .Slides}}
<section class="slide" data-layout="{{.LayoutID}}" style="width:{{$.Width}}px;height:{{$.Height}}px">
{{- range .Boxes}}
<div class="box {{.Class}}" style="left:{{.Left}}px;top:{{.Top}}px;width:{{.Width}}px;height:{{.Height}}px;font-size:{{.FontSize}}px">
{{- if .Image}}<img src="{{.Image}}" alt="">{{else}}{{.Body}}{{end -}}
</div>
{{- end}}
</section>
{{- if .Notes}}
<aside class="notes" style="width:{{$.Width}}px">{{.Notes}}</aside>
{{- end}}
{{- end}}
</body>
</html>
`))

type htmlDeck struct {
	Title  string
	Width  int
	Height int
	Slides []htmlSlide
}

type htmlSlide struct {
	LayoutID int
	Boxes    []htmlBox
	Notes    template.HTML
}

type htmlBox struct {
	Class                    string
	Left, Top, Width, Height int
	FontSize                 int
	Body                     template.HTML
	Image                    string
}

// HTMLRenderer writes one absolutely positioned page per slide, scaled from template EMU.
type HTMLRenderer struct {
	md goldmark.Markdown
}

func NewHTMLRenderer() *HTMLRenderer {
	return &HTMLRenderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(
				html.WithHardWraps(),
			),
		),
	}
}

func (r *HTMLRenderer) Render(ctx context.Context, templatePath string, mappings []models.PlacementMapping, outputPath string) error {
	tmpl, err := layout.LoadTemplate(templatePath)
	if err != nil {
		return err
	}
	scale := float64(PageWidth) / float64(tmpl.SlideWidth)
	deck := htmlDeck{
		Width:  PageWidth,
		Height: px(tmpl.SlideHeight, scale),
	}

	for _, m := range mappings {
		if err := ctx.Err(); err != nil {
			return err
		}
		slide := htmlSlide{LayoutID: m.LayoutID}
		for _, e := range m.Entries {
			if e.ContentType == models.ContentSpeakerNotes && e.Box == nil {
				body, err := r.markdown(e.Value)
				if err != nil {
					return err
				}
				slide.Notes = body
				continue
			}
			if e.Box == nil {
				continue
			}
			box := htmlBox{
				Class:    strings.ReplaceAll(e.ContentType, "_", "-"),
				Left:     px(e.Box.X, scale),
				Top:      px(e.Box.Y, scale),
				Width:    px(e.Box.CX, scale),
				Height:   px(e.Box.CY, scale),
				FontSize: px(int64(e.FontSize)*emuPerPoint, scale),
			}
			switch e.ContentType {
			case models.ContentImage:
				box.Image = imageSrc(e.Value, outputPath)
			case models.ContentBullets:
				box.Body, err = r.markdown(bulletMarkdown(e.Items))
			default:
				box.Body, err = r.markdown(e.Value)
			}
			if err != nil {
				return err
			}
			slide.Boxes = append(slide.Boxes, box)
			if e.ContentType == models.ContentTitle && deck.Title == "" {
				deck.Title = e.Value
			}
		}
		deck.Slides = append(deck.Slides, slide)
	}

	var buf bytes.Buffer
	if err := deckTemplate.Execute(&buf, deck); err != nil {
		return fmt.Errorf("execute deck template: %w", err)
	}
	return writeFile(outputPath, buf.Bytes())
}

func (r *HTMLRenderer) markdown(text string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(text), &buf); err != nil {
		return "", fmt.Errorf("convert markdown: %w", err)
	}
	return template.HTML(buf.String()), nil
}

func px(emu int64, scale float64) int {
	return int(math.Round(float64(emu) * scale))
}

func bulletMarkdown(items []string) string {
	var b strings.Builder
	for _, item := range items {
		b.WriteString("- ")
		b.WriteString(strings.ReplaceAll(item, "\n", " "))
		b.WriteString("\n")
	}
	return b.String()
}

// imageSrc makes image paths relative to the output file when possible
func imageSrc(imagePath, outputPath string) string {
	abs, err := filepath.Abs(imagePath)
	if err != nil {
		return filepath.ToSlash(imagePath)
	}
	outDir, err := filepath.Abs(filepath.Dir(outputPath))
	if err != nil {
		return filepath.ToSlash(abs)
	}
	rel, err := filepath.Rel(outDir, abs)
	if err != nil {
		return filepath.ToSlash(abs)
	}
	return filepath.ToSlash(rel)
}
