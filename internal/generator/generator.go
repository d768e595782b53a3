package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"deckgen/internal/llmservice"
	"deckgen/internal/models"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const maxCaptions = 3

type Options struct {
	MinSlides  int
	MaxSlides  int
	MaxBullets int
	Retries    int
	Workers    int
}

// Generator produces slide content from summary units through typed generation calls.
type Generator struct {
	llm  llmservice.Client
	opts Options
}

func New(llm llmservice.Client, opts Options) *Generator {
	if opts.MaxBullets < 1 {
		opts.MaxBullets = BulletBound(2)
	}
	if opts.Retries < 1 {
		opts.Retries = 1
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.MaxSlides > 0 && opts.MinSlides > opts.MaxSlides {
		opts.MinSlides = opts.MaxSlides
	}
	return &Generator{llm: llm, opts: opts}
}

// BulletBound is 3 when the richest layout has a single text region, 4 otherwise.
func BulletBound(maxTextRegions int) int {
	if maxTextRegions <= 1 {
		return 3
	}
	return 4
}

type metadataResponse struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
}

type slideResponse struct {
	Title         string   `json:"title"`
	Bullets       []string `json:"bullets"`
	SpeakerNotes  string   `json:"speaker_notes"`
	ImageCaptions []string `json:"image_captions"`
	ImagePaths    []string `json:"image_paths"`
}

// Generate returns the deck title slide followed by one slide per planned outline entry.
// Slides that cannot be generated are replaced by placeholder slides.
func (g *Generator) Generate(ctx context.Context, units []models.SummaryUnit) ([]models.SlideSpec, models.Metadata) {
	meta := g.metadata(ctx, units)
	plan := g.outline(ctx, meta, units)

	slides := make([]models.SlideSpec, len(plan)+1)
	slides[0] = models.SlideSpec{
		Index:         0,
		Title:         meta.Title,
		Subtitle:      meta.Subtitle,
		Bullets:       []string{},
		ImageCaptions: []string{},
		ImagePaths:    []string{},
	}

	eg := new(errgroup.Group)
	eg.SetLimit(g.opts.Workers)
	for i := range plan {
		eg.Go(func() error {
			slides[i+1] = g.slide(ctx, meta, plan, i, units)
			return nil
		})
	}
	_ = eg.Wait()

	placeholders := 0
	for _, s := range slides {
		if s.Placeholder {
			placeholders++
		}
	}
	log.Info().Int("slides", len(slides)).Int("placeholders", placeholders).Str("title", meta.Title).Msg("Generated slide content")
	return slides, meta
}

func (g *Generator) metadata(ctx context.Context, units []models.SummaryUnit) models.Metadata {
	fallback := models.Metadata{Title: models.DefaultDeckTitle, Subtitle: models.DefaultDeckSubtitle}
	if len(units) == 0 {
		return fallback
	}

	prompt := fmt.Sprintf(models.MetadataPromptTemplate, numberedSummaries(units))
	for attempt := 1; attempt <= g.opts.Retries; attempt++ {
		var res metadataResponse
		if err := llmservice.CompleteJSON(ctx, g.llm, models.MetadataSystemPrompt, prompt, &res); err != nil {
			log.Warn().Err(err).Int("attempt", attempt).Msg("Metadata generation failed")
			continue
		}
		title := strings.TrimSpace(res.Title)
		if title == "" {
			log.Warn().Int("attempt", attempt).Msg("Metadata without title")
			continue
		}
		return models.Metadata{Title: title, Subtitle: strings.TrimSpace(res.Subtitle)}
	}
	log.Warn().Msg("Using default presentation metadata")
	return fallback
}

// slide generates content slide i of the plan; its deck index is i+1
func (g *Generator) slide(ctx context.Context, meta models.Metadata, plan []plannedSlide, i int, units []models.SummaryUnit) models.SlideSpec {
	index := i + 1
	p := plan[i]
	candidates := candidateImages(p, units)
	prompt := fmt.Sprintf(models.SlidePromptTemplate,
		index, len(plan),
		meta.Title, meta.Subtitle,
		adjacentContext(plan, i, units),
		headingOrDefault(p.Heading),
		bulletList(p.KeyPoints),
		sourceMaterial(p, units),
		bulletList(candidates),
		g.opts.MaxBullets,
	)

	for attempt := 1; attempt <= g.opts.Retries; attempt++ {
		var res slideResponse
		if err := llmservice.CompleteJSON(ctx, g.llm, models.SlideSystemPrompt, prompt, &res); err != nil {
			log.Warn().Err(err).Int("slide", index).Int("attempt", attempt).Msg("Slide generation failed")
			continue
		}
		spec := normalizeSlide(index, res, candidates, g.opts.MaxBullets)
		if err := ValidateSlide(spec, candidates, g.opts.MaxBullets); err != nil {
			var verr *ValidationError
			if errors.As(err, &verr) {
				log.Warn().Strs("problems", verr.Problems).Int("slide", index).Int("attempt", attempt).Msg("Slide rejected")
			}
			continue
		}
		return spec
	}

	log.Warn().Int("slide", index).Msg("Using placeholder slide")
	return PlaceholderSlide(index)
}

// PlaceholderSlide is the degraded slide emitted when generation keeps failing.
func PlaceholderSlide(index int) models.SlideSpec {
	return models.SlideSpec{
		Index:         index,
		Title:         fmt.Sprintf("Slide %d", index),
		Bullets:       []string{models.PlaceholderSlideBullet},
		SpeakerNotes:  models.PlaceholderSlideNotes,
		ImageCaptions: []string{},
		ImagePaths:    []string{},
		Placeholder:   true,
	}
}

// normalizeSlide trims the answer and enforces the bullet and image bounds.
func normalizeSlide(index int, res slideResponse, candidates []string, maxBullets int) models.SlideSpec {
	spec := models.SlideSpec{
		Index:         index,
		Title:         strings.TrimSpace(res.Title),
		Bullets:       []string{},
		SpeakerNotes:  strings.TrimSpace(res.SpeakerNotes),
		ImageCaptions: []string{},
		ImagePaths:    []string{},
	}
	for _, b := range res.Bullets {
		if b = strings.TrimSpace(b); b != "" && len(spec.Bullets) < maxBullets {
			spec.Bullets = append(spec.Bullets, b)
		}
	}
	for _, c := range res.ImageCaptions {
		if c = strings.TrimSpace(c); c != "" && len(spec.ImageCaptions) < maxCaptions {
			spec.ImageCaptions = append(spec.ImageCaptions, c)
		}
	}
	for _, p := range res.ImagePaths {
		path, ok := canonicalImage(p, candidates)
		if !ok {
			log.Warn().Int("slide", index).Str("path", p).Msg("Dropping image path that is not a candidate")
			continue
		}
		spec.ImagePaths = []string{path}
		break
	}
	if spec.SpeakerNotes == "" {
		spec.SpeakerNotes = strings.Join(spec.Bullets, " ")
	}
	return spec
}

func candidateImages(p plannedSlide, units []models.SummaryUnit) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, u := range p.SourceUnits {
		for _, img := range units[u].CandidateImages {
			if !seen[img] {
				seen[img] = true
				out = append(out, img)
			}
		}
	}
	return out
}

func adjacentContext(plan []plannedSlide, i int, units []models.SummaryUnit) string {
	var b strings.Builder
	if i > 0 {
		fmt.Fprintf(&b, "Previous slide context:\n%s\n\n", slideSummary(plan[i-1], units))
	}
	if i < len(plan)-1 {
		fmt.Fprintf(&b, "Next slide context:\n%s\n\n", slideSummary(plan[i+1], units))
	}
	return b.String()
}

func slideSummary(p plannedSlide, units []models.SummaryUnit) string {
	if p.Heading != "" {
		return p.Heading
	}
	return units[p.SourceUnits[0]].DetailedSummary
}

func sourceMaterial(p plannedSlide, units []models.SummaryUnit) string {
	var b strings.Builder
	for _, u := range p.SourceUnits {
		unit := units[u]
		b.WriteString(unit.DetailedSummary)
		b.WriteString("\n")
		for _, rc := range unit.RetrievedContent {
			fmt.Fprintf(&b, "Q: %s\nA: %s\n", rc.Query, rc.Response)
		}
	}
	return strings.TrimSpace(b.String())
}

func headingOrDefault(h string) string {
	if h == "" {
		return "(choose a fitting title)"
	}
	return h
}

func bulletList(items []string) string {
	if len(items) == 0 {
		return "(none)"
	}
	var b strings.Builder
	for _, item := range items {
		b.WriteString("- ")
		b.WriteString(item)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
