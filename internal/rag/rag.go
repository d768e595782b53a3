package rag

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"deckgen/internal/chromemdb"
	"deckgen/internal/config"
	"deckgen/internal/embedding"
	"deckgen/internal/models"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/textsplitter"
)

const collectionName = "document"

// RAG answers document queries with the closest source passages.
type RAG struct {
	store    *chromemdb.VectorDBManager
	embedder embeddings.Embedder
	splitter textsplitter.RecursiveCharacter
	topK     int
}

func NewRAG(store *chromemdb.VectorDBManager, embedder embeddings.Embedder, cfg *config.RAGConfig) *RAG {
	topK := cfg.TopK
	if topK < 1 {
		topK = 1
	}
	return &RAG{
		store:    store,
		embedder: embedder,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(cfg.ChunkSize),
			textsplitter.WithChunkOverlap(cfg.ChunkOverlap),
		),
		topK: topK,
	}
}

// Index splits the chunks into passages and stores their embeddings, replacing any previous document.
func (r *RAG) Index(ctx context.Context, chunks []models.DocumentChunk) error {
	if _, err := r.store.ResetCollection(collectionName, embedding.EmbeddingFunc(r.embedder)); err != nil {
		return err
	}

	var passages []string
	var sources []int
	for _, chunk := range chunks {
		parts, err := r.splitter.SplitText(chunk.Text)
		if err != nil {
			return fmt.Errorf("split chunk %d: %w", chunk.Index, err)
		}
		for _, p := range parts {
			if strings.TrimSpace(p) == "" {
				continue
			}
			passages = append(passages, p)
			sources = append(sources, chunk.Index)
		}
	}

	vectors, err := embedding.GenerateEmbeddings(ctx, r.embedder, passages)
	if err != nil {
		return err
	}
	docs := make([]chromemdb.Document, len(passages))
	for i, p := range passages {
		docs[i] = chromemdb.Document{
			ID:        strconv.Itoa(i),
			Content:   p,
			Metadata:  map[string]string{"chunk": strconv.Itoa(sources[i])},
			Embedding: vectors[i],
		}
	}
	if err := r.store.CreateDocs(ctx, docs); err != nil {
		return err
	}
	log.Info().Int("chunks", len(chunks)).Int("passages", len(docs)).Msg("Indexed document passages")
	return nil
}

// Query returns the top passages for query joined by blank lines.
func (r *RAG) Query(ctx context.Context, query string) (string, error) {
	vec, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return "", fmt.Errorf("embed query: %w", err)
	}
	results, err := r.store.SearchWithQueryOptions(ctx, chromem.QueryOptions{QueryEmbedding: vec, NResults: r.topK})
	if err != nil {
		return "", err
	}

	var context strings.Builder
	for i, res := range results {
		if i > 0 {
			context.WriteString("\n\n")
		}
		context.WriteString(res.Content)
	}
	return context.String(), nil
}

// Answer resolves each query independently; failed queries are skipped.
func (r *RAG) Answer(ctx context.Context, queries []string) []models.RetrievedContent {
	out := []models.RetrievedContent{}
	for _, q := range queries {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		response, err := r.Query(ctx, q)
		if err != nil {
			log.Warn().Err(err).Str("query", q).Msg("Document query failed")
			continue
		}
		if response == "" {
			continue
		}
		out = append(out, models.RetrievedContent{Query: q, Response: response})
	}
	return out
}
