package summarizer

import (
	"context"
	"fmt"
	"strings"

	"deckgen/internal/llmservice"
	"deckgen/internal/models"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	maxSummaryWords  = 120
	maxKeyPoints     = 5
	validateAttempts = 2
)

// Summarizer turns document chunks into summary units, one per chunk.
type Summarizer struct {
	llm     llmservice.Client
	workers int
}

func New(llm llmservice.Client, workers int) *Summarizer {
	if workers < 1 {
		workers = 1
	}
	return &Summarizer{llm: llm, workers: workers}
}

type summaryResponse struct {
	DetailedSummary string   `json:"detailed_summary"`
	KeyPoints       []string `json:"key_points"`
	Visualizations  []string `json:"visualizations"`
	DocumentQueries []string `json:"document_queries"`
}

// Summarize runs one generation per chunk on bounded workers.
// Units come back in chunk order; a failed chunk yields a degraded unit built from its text.
func (s *Summarizer) Summarize(ctx context.Context, chunks []models.DocumentChunk) []models.SummaryUnit {
	units := make([]models.SummaryUnit, len(chunks))
	g := new(errgroup.Group)
	g.SetLimit(s.workers)
	for i, chunk := range chunks {
		previous := ""
		if i > 0 {
			previous = chunks[i-1].Text
		}
		g.Go(func() error {
			unit, err := s.summarizeChunk(ctx, chunk.Text, previous)
			if err != nil {
				log.Warn().Err(err).Int("chunk", chunk.Index).Msg("Summary failed, using chunk text")
				unit = degradedUnit(chunk.Text)
			}
			unit.Index = i
			units[i] = unit
			return nil
		})
	}
	_ = g.Wait()

	log.Info().Int("units", len(units)).Msg("Summarized document")
	return units
}

func (s *Summarizer) summarizeChunk(ctx context.Context, text, previous string) (models.SummaryUnit, error) {
	previousBlock := ""
	if previous != "" {
		previousBlock = fmt.Sprintf(models.PreviousSectionTemplate, previous)
	}
	prompt := fmt.Sprintf(models.SummaryPromptTemplate, previousBlock, text)

	var lastErr error
	for attempt := 0; attempt < validateAttempts; attempt++ {
		var res summaryResponse
		if err := llmservice.CompleteJSON(ctx, s.llm, models.SummarizerSystemPrompt, prompt, &res); err != nil {
			lastErr = err
			continue
		}
		unit, err := normalize(res)
		if err != nil {
			lastErr = err
			continue
		}
		return unit, nil
	}
	return models.SummaryUnit{}, lastErr
}

func normalize(res summaryResponse) (models.SummaryUnit, error) {
	unit := models.SummaryUnit{
		DetailedSummary:  strings.TrimSpace(res.DetailedSummary),
		KeyPoints:        cleanList(res.KeyPoints, maxKeyPoints),
		Visualizations:   cleanList(res.Visualizations, 0),
		DocumentQueries:  cleanList(res.DocumentQueries, 0),
		RetrievedContent: []models.RetrievedContent{},
		CandidateImages:  []string{},
	}
	if unit.DetailedSummary == "" {
		return unit, fmt.Errorf("summary is empty")
	}
	if len(unit.KeyPoints) == 0 {
		return unit, fmt.Errorf("summary has no key points")
	}
	return unit, nil
}

// degradedUnit keeps the raw text so later stages still have material
func degradedUnit(text string) models.SummaryUnit {
	words := strings.Fields(text)
	if len(words) > maxSummaryWords {
		words = words[:maxSummaryWords]
	}

	var points []string
	for _, sentence := range strings.SplitAfter(text, models.SentenceSeparator) {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		points = append(points, sentence)
		if len(points) == 3 {
			break
		}
	}

	return models.SummaryUnit{
		DetailedSummary:  strings.Join(words, " "),
		KeyPoints:        cleanList(points, 3),
		Visualizations:   []string{},
		DocumentQueries:  []string{},
		RetrievedContent: []models.RetrievedContent{},
		CandidateImages:  []string{},
	}
}

func cleanList(items []string, limit int) []string {
	out := []string{}
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
