package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"deckgen/internal/checkpoint"
	"deckgen/internal/config"
	"deckgen/internal/generator"
	"deckgen/internal/helper"
	"deckgen/internal/layout"
	"deckgen/internal/llmservice"
	"deckgen/internal/models"
	"deckgen/internal/parser"
	"deckgen/internal/render"
	"deckgen/internal/resolver"
	"deckgen/internal/summarizer"

	"github.com/rs/zerolog/log"
)

// ImageIndex is the local image similarity index, rebuilt once per run.
type ImageIndex interface {
	resolver.Index
	BuildIndex(ctx context.Context, dir string) ([]models.ImageRecord, error)
	Candidates(ctx context.Context, captions []string, threshold float32) []string
}

// Retriever answers summary queries from the source document.
type Retriever interface {
	Index(ctx context.Context, chunks []models.DocumentChunk) error
	Answer(ctx context.Context, queries []string) []models.RetrievedContent
}

// Deps are the collaborators of a pipeline. Retriever, Fallback and Store may be nil.
type Deps struct {
	Parser    parser.Parser
	LLM       llmservice.Client
	Index     ImageIndex
	Retriever Retriever
	Fallback  resolver.Fallback
	Store     checkpoint.Store
	Renderer  render.Renderer
}

type Request struct {
	DocumentPath string
	TemplatePath string
	OutputPath   string
	RunID        string
	Resume       bool
}

type Result struct {
	RunID      string                    `json:"run_id"`
	OutputPath string                    `json:"output_path"`
	Metadata   models.Metadata           `json:"metadata"`
	Slides     int                       `json:"slides"`
	Mappings   []models.PlacementMapping `json:"mappings"`
}

// Deck accumulates the output of every stage and is handed to the renderer once.
type Deck struct {
	RunID    string
	Metadata models.Metadata
	Slides   []models.SlideSpec
	Template *models.Template
	Mappings []models.PlacementMapping
}

type Pipeline struct {
	cfg  *config.Config
	deps Deps

	// runs share the image index
	mu         sync.Mutex
	indexBuilt bool
}

func New(cfg *config.Config, deps Deps) (*Pipeline, error) {
	if deps.Parser == nil || deps.LLM == nil || deps.Index == nil {
		return nil, errors.New("pipeline needs a parser, a language model and an image index")
	}
	return &Pipeline{cfg: cfg, deps: deps}, nil
}

// RunID derives a stable run identifier from the document name so reruns find their checkpoints.
func RunID(documentPath string) string {
	stem := strings.TrimSuffix(filepath.Base(documentPath), filepath.Ext(documentPath))
	if id := helper.Slugify(stem, 60); id != "" {
		return id
	}
	id, err := helper.GenerateUUID()
	if err != nil {
		return "run"
	}
	return id
}

// Run turns one document into a rendered deck. Only parse, template and render failures stop a run.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.indexBuilt = false

	if req.DocumentPath == "" {
		return nil, errors.New("document path is empty")
	}
	templatePath := req.TemplatePath
	if templatePath == "" {
		templatePath = p.cfg.Paths.Template
	}
	if templatePath == "" {
		return nil, errors.New("template path is empty")
	}
	runID := req.RunID
	if runID == "" {
		runID = RunID(req.DocumentPath)
	}
	outputPath := req.OutputPath
	if outputPath == "" {
		outputPath = filepath.Join(p.cfg.Paths.Outputs, runID+".html")
	}

	tmpl, err := layout.LoadTemplate(templatePath)
	if err != nil {
		return nil, err
	}
	if p.deps.Renderer == nil {
		if _, err := render.ForPath(outputPath); err != nil {
			return nil, err
		}
	}
	deck := &Deck{RunID: runID, Template: tmpl}
	st := &stages{p: p, runID: runID, resume: req.Resume}
	log.Info().Str("run", runID).Str("document", req.DocumentPath).Str("template", templatePath).Bool("resume", req.Resume).Msg("Starting run")

	doc, err := st.documentParsed(ctx, req.DocumentPath)
	if err != nil {
		return nil, err
	}
	units := st.presentationData(ctx, doc)
	deck.Metadata, deck.Slides = st.slideContent(ctx, tmpl, units)
	deck.Mappings, err = st.generatedLayouts(ctx, tmpl, deck.Slides)
	if err != nil {
		return nil, err
	}

	if err := p.render(ctx, templatePath, deck, outputPath); err != nil {
		return nil, err
	}
	log.Info().Str("run", runID).Str("output", outputPath).Int("slides", len(deck.Slides)).Msg("Run finished")
	return &Result{
		RunID:      runID,
		OutputPath: outputPath,
		Metadata:   deck.Metadata,
		Slides:     len(deck.Slides),
		Mappings:   deck.Mappings,
	}, nil
}

func (p *Pipeline) render(ctx context.Context, templatePath string, deck *Deck, outputPath string) error {
	if p.deps.Renderer != nil {
		return p.deps.Renderer.Render(ctx, templatePath, deck.Mappings, outputPath)
	}
	return render.Render(ctx, templatePath, deck.Mappings, outputPath)
}

func (p *Pipeline) ensureIndex(ctx context.Context) {
	if p.indexBuilt {
		return
	}
	p.indexBuilt = true
	records, err := p.deps.Index.BuildIndex(ctx, p.cfg.Paths.Images)
	if err != nil {
		log.Warn().Err(err).Str("dir", p.cfg.Paths.Images).Msg("Image index unavailable, every caption falls back")
		return
	}
	log.Info().Int("images", len(records)).Msg("Built image index")
}

// stages runs the checkpointed stages of one run. Once a stage is recomputed,
// later checkpoints are stale and are no longer loaded.
type stages struct {
	p      *Pipeline
	runID  string
	resume bool
}

func (s *stages) load(ctx context.Context, stage string, v interface{}) bool {
	if !s.resume || s.p.deps.Store == nil {
		return false
	}
	err := s.p.deps.Store.Load(ctx, s.runID, stage, v)
	if err == nil {
		log.Info().Str("run", s.runID).Str("stage", stage).Msg("Resumed from checkpoint")
		return true
	}
	if !errors.Is(err, checkpoint.ErrNotFound) {
		log.Warn().Err(err).Str("stage", stage).Msg("Checkpoint unreadable, recomputing")
	}
	s.resume = false
	return false
}

func (s *stages) save(ctx context.Context, stage string, v interface{}) {
	if s.p.deps.Store == nil {
		return
	}
	if err := s.p.deps.Store.Save(ctx, s.runID, stage, v); err != nil {
		log.Warn().Err(err).Str("stage", stage).Msg("Error saving checkpoint")
	}
}

func (s *stages) documentParsed(ctx context.Context, documentPath string) (*models.ParsedDocument, error) {
	var doc models.ParsedDocument
	if s.load(ctx, models.StageDocumentParsed, &doc) {
		return &doc, nil
	}
	parsed, err := s.p.deps.Parser.Parse(ctx, documentPath)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", documentPath, err)
	}
	log.Info().Int("pages", len(parsed.Pages)).Msg("Parsed document")
	s.save(ctx, models.StageDocumentParsed, parsed)
	return parsed, nil
}

func (s *stages) presentationData(ctx context.Context, doc *models.ParsedDocument) []models.SummaryUnit {
	var units []models.SummaryUnit
	if s.load(ctx, models.StagePresentationData, &units) {
		return units
	}
	cfg := s.p.cfg.Pipeline

	chunks := parser.ChunkText(parser.ExtractTextAndTables(doc), cfg.MinChunkSize, cfg.MaxChunkSize)
	log.Info().Int("chunks", len(chunks)).Msg("Chunked document")

	units = summarizer.New(s.p.deps.LLM, cfg.Workers).Summarize(ctx, chunks)

	retriever := s.p.deps.Retriever
	if retriever != nil {
		if err := retriever.Index(ctx, chunks); err != nil {
			log.Warn().Err(err).Msg("Document retrieval unavailable for this run")
			retriever = nil
		}
	}

	s.p.ensureIndex(ctx)
	for i := range units {
		if retriever != nil {
			units[i].RetrievedContent = retriever.Answer(ctx, units[i].DocumentQueries)
		}
		units[i].CandidateImages = s.p.deps.Index.Candidates(ctx, units[i].Visualizations, cfg.ConfidenceThreshold)
	}
	s.save(ctx, models.StagePresentationData, units)
	return units
}

func (s *stages) slideContent(ctx context.Context, tmpl *models.Template, units []models.SummaryUnit) (models.Metadata, []models.SlideSpec) {
	var content models.SlideContent
	if s.load(ctx, models.StageSlideContent, &content) {
		return content.Metadata, content.Slides
	}
	cfg := s.p.cfg.Pipeline

	gen := generator.New(s.p.deps.LLM, generator.Options{
		MinSlides:  cfg.MinSlides,
		MaxSlides:  cfg.MaxSlides,
		MaxBullets: generator.BulletBound(tmpl.MaxTextRegions()),
		Retries:    cfg.Retries,
		Workers:    cfg.Workers,
	})
	slides, meta := gen.Generate(ctx, units)

	s.p.ensureIndex(ctx)
	res := resolver.New(s.p.deps.Index, s.p.deps.Fallback, resolver.Options{
		Threshold:   cfg.ConfidenceThreshold,
		MaxAttempts: cfg.MaxDownloadAttempts,
		DestDir:     filepath.Join(s.p.cfg.Paths.Images, "downloaded"),
		Workers:     cfg.Workers,
		Timeout:     cfg.CallTimeout,
	})
	slides = res.Resolve(ctx, slides)

	content = models.SlideContent{Metadata: meta, Slides: slides}
	s.save(ctx, models.StageSlideContent, content)
	return meta, slides
}

func (s *stages) generatedLayouts(ctx context.Context, tmpl *models.Template, slides []models.SlideSpec) ([]models.PlacementMapping, error) {
	var mappings []models.PlacementMapping
	if s.load(ctx, models.StageGeneratedLayouts, &mappings) {
		return mappings, nil
	}
	mappings, err := layout.NewAssigner(tmpl, s.p.cfg.Pipeline.DefaultLayout).AssignAll(slides)
	if err != nil {
		return nil, fmt.Errorf("assign layouts: %w", err)
	}
	dropped := 0
	for _, m := range mappings {
		dropped += len(m.Dropped)
	}
	log.Info().Int("slides", len(mappings)).Int("dropped", dropped).Msg("Assigned layouts")
	s.save(ctx, models.StageGeneratedLayouts, mappings)
	return mappings, nil
}
