package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"deckgen/internal/checkpoint"
	"deckgen/internal/chromemdb"
	"deckgen/internal/config"
	"deckgen/internal/embedding"
	"deckgen/internal/helper"
	"deckgen/internal/imageindex"
	"deckgen/internal/llmservice"
	"deckgen/internal/parser"
	"deckgen/internal/pipeline"
	"deckgen/internal/rag"
	"deckgen/internal/server"
	"deckgen/internal/webimage"
)

const (
	configFilePath = "./configs/config.yaml"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Caller().Logger()

	configPath := flag.String("config", configFilePath, "Path to the config file")
	filePath := flag.String("file", "", "Path to the document file")
	templatePath := flag.String("template", "", "Path to the presentation template (.pptx, .potx, .yaml, .json)")
	outputPath := flag.String("output", "", "Output file (.html or .json)")
	runID := flag.String("run", "", "Run identifier used for checkpoints, derived from the file name by default")
	resume := flag.Bool("resume", false, "Skip stages whose checkpoint exists")
	serve := flag.Bool("serve", false, "Start the upload/download HTTP service")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file loaded")
	}

	if *filePath == "" && !*serve {
		log.Fatal().Msg("Please provide either a document file using the -file flag or -serve to start the service")
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}
	if *templatePath != "" {
		cfg.Paths.Template = *templatePath
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	p, closeFn, err := buildPipeline(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Error building pipeline")
	}
	defer closeFn()

	if *serve {
		serveHTTP(ctx, cfg, p)
		return
	}

	res, err := p.Run(ctx, pipeline.Request{
		DocumentPath: *filePath,
		TemplatePath: cfg.Paths.Template,
		OutputPath:   *outputPath,
		RunID:        *runID,
		Resume:       *resume,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Error generating presentation")
	}
	log.Info().Msg("Presentation: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	helper.PrettyPrint(res)
	for _, m := range res.Mappings {
		if len(m.Dropped) > 0 {
			log.Warn().Int("slide", m.SlideIndex).Strs("dropped", m.Dropped).Msg("Slide degraded")
		}
	}
}

// buildPipeline wires every collaborator from the config. The returned func releases the database.
func buildPipeline(ctx context.Context, cfg *config.Config) (*pipeline.Pipeline, func(), error) {
	closeFn := func() {}
	for _, dir := range []string{cfg.Paths.Images, cfg.Paths.Outputs, cfg.Paths.Uploads} {
		if err := helper.CreateFolder(dir); err != nil {
			return nil, closeFn, err
		}
	}

	llm, err := llmservice.NewClient(&cfg.LLM, cfg.Pipeline.CallTimeout, cfg.Pipeline.Retries)
	if err != nil {
		return nil, closeFn, fmt.Errorf("init llm: %w", err)
	}

	httpClient := &http.Client{Timeout: cfg.Pipeline.DownloadTimeout}

	imageStore, err := chromemdb.NewVectorDBManager("")
	if err != nil {
		return nil, closeFn, err
	}
	clip := embedding.NewCLIPClient(&cfg.CLIP)
	index := imageindex.New(clip, imageStore, cfg.Pipeline.Workers)

	searcher, err := webimage.NewSearcher(&cfg.Search, httpClient)
	if err != nil {
		log.Warn().Err(err).Msg("Web image search disabled")
	}
	fetcher := webimage.NewFetcher(searcher, httpClient, cfg.Pipeline.DownloadTimeout)
	if cfg.ImageGen.Enabled {
		fetcher.WithGenerator(webimage.NewOpenAIGenerator(&cfg.ImageGen))
	}

	deps := pipeline.Deps{
		Parser:   parser.NewLocalParser(),
		LLM:      llm,
		Index:    index,
		Fallback: fetcher,
	}

	if cfg.EmbedLLM.Model != "" {
		embedder, err := embedding.NewEmbedder(&cfg.EmbedLLM)
		if err != nil {
			return nil, closeFn, fmt.Errorf("init embedder: %w", err)
		}
		docStore, err := chromemdb.NewVectorDBManager("")
		if err != nil {
			return nil, closeFn, err
		}
		deps.Retriever = rag.NewRAG(docStore, embedder, &cfg.RAG)
	} else {
		log.Info().Msg("No embedding model configured, document retrieval disabled")
	}

	if cfg.Database.Enabled {
		sqldb, err := checkpoint.ConnectDB(&cfg.Database)
		if err != nil {
			return nil, closeFn, fmt.Errorf("connect database: %w", err)
		}
		db := checkpoint.NewDB(sqldb, cfg.Database.Debug)
		closeFn = func() { db.Close() }
		if err := checkpoint.InitDB(ctx, db); err != nil {
			return nil, closeFn, fmt.Errorf("init database: %w", err)
		}
		deps.Store = checkpoint.NewPostgresStore(db)
	} else {
		deps.Store = checkpoint.NewFileStore(cfg.Paths.Checkpoints)
	}

	p, err := pipeline.New(cfg, deps)
	return p, closeFn, err
}

func serveHTTP(ctx context.Context, cfg *config.Config, p *pipeline.Pipeline) {
	n := server.SetupNegroni(server.SetupRoutes(server.NewHandler(p, &cfg.Paths)))
	srv := server.NewServer(cfg.Server.Addr, n)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Error shutting down server")
		}
	}()

	log.Info().Str("addr", cfg.Server.Addr).Msg("Starting server")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("Server error")
	}
}
