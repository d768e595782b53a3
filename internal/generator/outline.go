package generator

import (
	"context"
	"fmt"
	"strings"

	"deckgen/internal/llmservice"
	"deckgen/internal/models"

	"github.com/rs/zerolog/log"
)

type outlineResponse struct {
	Sections []outlineSection `json:"sections"`
}

type outlineSection struct {
	Heading          string   `json:"heading"`
	SourceUnits      []int    `json:"source_units"`
	NumContentSlides int      `json:"num_content_slides"`
	KeyPoints        []string `json:"key_points"`
}

// plannedSlide is one content slide of the outline.
type plannedSlide struct {
	Heading     string
	KeyPoints   []string
	SourceUnits []int
}

func (g *Generator) outline(ctx context.Context, meta models.Metadata, units []models.SummaryUnit) []plannedSlide {
	if len(units) == 0 {
		return nil
	}
	minSlides := min(g.opts.MinSlides, len(units))
	prompt := fmt.Sprintf(models.OutlinePromptTemplate, meta.Title, numberedSummaries(units), minSlides, g.opts.MaxSlides)

	for attempt := 1; attempt <= g.opts.Retries; attempt++ {
		var res outlineResponse
		if err := llmservice.CompleteJSON(ctx, g.llm, models.OutlineSystemPrompt, prompt, &res); err != nil {
			log.Warn().Err(err).Int("attempt", attempt).Msg("Outline generation failed")
			continue
		}
		plan, err := expandOutline(res, len(units), minSlides, g.opts.MaxSlides)
		if err != nil {
			log.Warn().Err(err).Int("attempt", attempt).Msg("Outline rejected")
			continue
		}
		log.Info().Int("sections", len(res.Sections)).Int("slides", len(plan)).Msg("Generated outline")
		return plan
	}

	log.Warn().Int("units", len(units)).Msg("Falling back to one slide per summary")
	return fallbackOutline(units, g.opts.MaxSlides)
}

// expandOutline turns sections into planned slides, never planning more than maxSlides.
func expandOutline(res outlineResponse, numUnits, minSlides, maxSlides int) ([]plannedSlide, error) {
	if len(res.Sections) == 0 {
		return nil, fmt.Errorf("outline has no sections")
	}

	var plan []plannedSlide
	for i, section := range res.Sections {
		var sources []int
		for _, u := range section.SourceUnits {
			if u >= 0 && u < numUnits {
				sources = append(sources, u)
			}
		}
		if len(sources) == 0 {
			sources = []int{min(i, numUnits-1)}
		}
		n := max(section.NumContentSlides, 1)
		if maxSlides > 0 {
			if len(plan) >= maxSlides {
				break
			}
			n = min(n, maxSlides-len(plan))
		}
		for part := 0; part < n; part++ {
			heading := strings.TrimSpace(section.Heading)
			if n > 1 && heading != "" {
				heading = fmt.Sprintf("%s (%d/%d)", heading, part+1, n)
			}
			plan = append(plan, plannedSlide{
				Heading:     heading,
				KeyPoints:   splitKeyPoints(section.KeyPoints, part, n),
				SourceUnits: sources,
			})
		}
	}

	if len(plan) < minSlides {
		return nil, fmt.Errorf("outline plans %d slides, need at least %d", len(plan), minSlides)
	}
	return plan, nil
}

// splitKeyPoints deals the section key points across its slides round robin
func splitKeyPoints(points []string, part, parts int) []string {
	out := []string{}
	for i, p := range points {
		if i%parts == part && strings.TrimSpace(p) != "" {
			out = append(out, strings.TrimSpace(p))
		}
	}
	return out
}

// fallbackOutline spreads the units evenly over at most maxSlides slides.
func fallbackOutline(units []models.SummaryUnit, maxSlides int) []plannedSlide {
	n := len(units)
	if maxSlides > 0 && n > maxSlides {
		n = maxSlides
	}
	plan := make([]plannedSlide, 0, n)
	for i := 0; i < n; i++ {
		from, to := i*len(units)/n, (i+1)*len(units)/n
		var sources []int
		var points []string
		for u := from; u < to; u++ {
			sources = append(sources, u)
			points = append(points, units[u].KeyPoints...)
		}
		plan = append(plan, plannedSlide{KeyPoints: points, SourceUnits: sources})
	}
	return plan
}

func numberedSummaries(units []models.SummaryUnit) string {
	var b strings.Builder
	for i, u := range units {
		fmt.Fprintf(&b, "%d. %s\n", i, u.DetailedSummary)
	}
	return b.String()
}
