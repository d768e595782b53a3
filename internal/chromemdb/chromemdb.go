package chromemdb

import (
	"context"
	"fmt"
	"runtime"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"
)

// Document represents our data structure with content and metadata
type Document struct {
	ID        string
	Content   string
	Metadata  map[string]string
	Embedding []float32
}

// VectorDBManager encapsulates the chromem-go database operations
type VectorDBManager struct {
	db         *chromem.DB
	collection *chromem.Collection
	dbPath     string
}

const (
	compress = false
)

// NewVectorDBManager opens a persistent database under dbPath, or an in-memory one when dbPath is empty
func NewVectorDBManager(dbPath string) (*VectorDBManager, error) {
	if dbPath == "" {
		return &VectorDBManager{db: chromem.NewDB()}, nil
	}
	db, err := chromem.NewPersistentDB(dbPath, compress)
	if err != nil {
		return nil, fmt.Errorf("failed to create database: %w", err)
	}
	return &VectorDBManager{db: db, dbPath: dbPath}, nil
}

// create or read collection
func (m *VectorDBManager) GetOrCreateCollection(collectionName string, embed chromem.EmbeddingFunc) (*chromem.Collection, error) {
	c, err := m.db.GetOrCreateCollection(collectionName, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("failed to create/get collection: %w", err)
	}
	m.collection = c
	return c, nil
}

// ResetCollection drops any previous content of the collection and opens it empty
func (m *VectorDBManager) ResetCollection(collectionName string, embed chromem.EmbeddingFunc) (*chromem.Collection, error) {
	if err := m.db.DeleteCollection(collectionName); err != nil {
		return nil, fmt.Errorf("failed to drop collection: %w", err)
	}
	return m.GetOrCreateCollection(collectionName, embed)
}

// add multiple documents
func (m *VectorDBManager) CreateDocs(ctx context.Context, documents []Document) error {
	if m.collection == nil {
		return fmt.Errorf("collection is required")
	}
	if len(documents) == 0 {
		return nil
	}
	docs := make([]chromem.Document, len(documents))
	for i, doc := range documents {
		docs[i] = chromem.Document{
			ID:        doc.ID,
			Content:   doc.Content,
			Metadata:  doc.Metadata,
			Embedding: doc.Embedding,
		}
	}
	if err := m.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	log.Debug().Str("collection", m.collection.Name).Int("documents", len(docs)).Msg("Added documents")
	return nil
}

// Count returns the number of documents in the open collection
func (m *VectorDBManager) Count() int {
	if m.collection == nil {
		return 0
	}
	return m.collection.Count()
}

// SearchWithQueryOptions performs a similarity search, capping NResults at the collection size
func (m *VectorDBManager) SearchWithQueryOptions(ctx context.Context, opts chromem.QueryOptions) ([]chromem.Result, error) {
	// exit if query or embedding is not provided
	if opts.QueryText == "" && opts.QueryEmbedding == nil {
		return nil, fmt.Errorf("either query or embedding must be provided")
	}
	n := m.Count()
	if n == 0 {
		return nil, nil
	}
	if opts.NResults <= 0 || opts.NResults > n {
		opts.NResults = n
	}

	results, err := m.collection.QueryWithOptions(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}
	return results, nil
}
