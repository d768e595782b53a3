package imageindex

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"deckgen/internal/chromemdb"
	"deckgen/internal/embedding"
	"deckgen/internal/models"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"
)

const collectionName = "images"

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
	".gif":  true,
	".bmp":  true,
}

// Index ranks local images against captions by cosine similarity.
// It is built once per run and read-only afterwards.
type Index struct {
	embedder embedding.ImageEmbedder
	store    *chromemdb.VectorDBManager
	workers  int
	records  []models.ImageRecord
	byPath   map[string]models.ImageRecord
}

func New(embedder embedding.ImageEmbedder, store *chromemdb.VectorDBManager, workers int) *Index {
	if workers < 1 {
		workers = 1
	}
	return &Index{
		embedder: embedder,
		store:    store,
		workers:  workers,
		byPath:   map[string]models.ImageRecord{},
	}
}

// BuildIndex embeds every image of dir in directory listing order.
// Files that cannot be decoded or embedded are skipped.
func (ix *Index) BuildIndex(ctx context.Context, dir string) ([]models.ImageRecord, error) {
	if _, err := ix.store.ResetCollection(collectionName, nil); err != nil {
		return nil, err
	}
	ix.records = nil
	ix.byPath = map[string]models.ImageRecord{}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn().Str("dir", dir).Msg("Image directory missing, index is empty")
			return nil, nil
		}
		return nil, fmt.Errorf("list images: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}

	// one slot per file keeps listing order regardless of completion order
	slots := make([]*models.ImageRecord, len(paths))
	g := new(errgroup.Group)
	g.SetLimit(ix.workers)
	for i, path := range paths {
		g.Go(func() error {
			rec, err := ix.embedFile(ctx, path)
			if err != nil {
				log.Warn().Err(err).Str("file", path).Msg("Skipping image")
				return nil
			}
			slots[i] = rec
			return nil
		})
	}
	_ = g.Wait()

	var docs []chromemdb.Document
	for _, rec := range slots {
		if rec == nil {
			continue
		}
		order := len(ix.records)
		ix.records = append(ix.records, *rec)
		ix.byPath[rec.Filename] = *rec
		docs = append(docs, chromemdb.Document{
			ID:        strconv.Itoa(order),
			Content:   rec.Filename,
			Metadata:  map[string]string{"filename": rec.Filename, "order": strconv.Itoa(order)},
			Embedding: rec.Embedding,
		})
	}
	if err := ix.store.CreateDocs(ctx, docs); err != nil {
		return nil, err
	}

	log.Info().Str("dir", dir).Int("images", len(ix.records)).Int("skipped", len(paths)-len(ix.records)).Msg("Built image index")
	return ix.records, nil
}

func (ix *Index) embedFile(ctx context.Context, path string) (*models.ImageRecord, error) {
	dim, err := ReadDimensions(path)
	if err != nil {
		return nil, err
	}
	vec, err := ix.embedder.EmbedImage(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("embed image: %w", err)
	}
	unit, ok := normalize(vec)
	if !ok {
		return nil, fmt.Errorf("zero embedding")
	}
	return &models.ImageRecord{Filename: path, Embedding: unit, Width: dim.Width, Height: dim.Height}, nil
}

// BestMatch returns the indexed image closest to caption and its cosine score in [-1, 1].
// Ties go to the image listed first. An empty index yields ("", -1).
func (ix *Index) BestMatch(ctx context.Context, caption string) (string, float32, error) {
	if ix.store.Count() == 0 {
		return "", -1, nil
	}

	vec, err := ix.embedder.EmbedText(ctx, caption)
	if err != nil {
		return "", -1, fmt.Errorf("embed caption: %w", err)
	}
	query, ok := normalize(vec)
	if !ok {
		return "", -1, fmt.Errorf("zero caption embedding")
	}

	results, err := ix.store.SearchWithQueryOptions(ctx, chromem.QueryOptions{
		QueryEmbedding: query,
		NResults:       ix.store.Count(),
	})
	if err != nil {
		return "", -1, err
	}

	best, bestOrder := "", math.MaxInt
	bestScore := float32(-2)
	for _, r := range results {
		score := clamp(r.Similarity)
		order, _ := strconv.Atoi(r.Metadata["order"])
		if score > bestScore || (score == bestScore && order < bestOrder) {
			best, bestScore, bestOrder = r.Metadata["filename"], score, order
		}
	}
	if best == "" {
		return "", -1, nil
	}
	return best, bestScore, nil
}

// Candidates looks every caption up and keeps the distinct matches scoring at least threshold.
func (ix *Index) Candidates(ctx context.Context, captions []string, threshold float32) []string {
	seen := map[string]bool{}
	var out []string
	for _, caption := range captions {
		path, score, err := ix.BestMatch(ctx, caption)
		if err != nil {
			log.Warn().Err(err).Str("caption", caption).Msg("Candidate lookup failed")
			continue
		}
		if path == "" || score < threshold || seen[path] {
			continue
		}
		seen[path] = true
		out = append(out, path)
	}
	return out
}

// Dimensions returns the recorded size of an indexed image.
func (ix *Index) Dimensions(path string) (models.Dimension, bool) {
	rec, ok := ix.byPath[path]
	if !ok {
		return models.Dimension{}, false
	}
	return models.Dimension{Width: rec.Width, Height: rec.Height}, true
}

// ReadDimensions decodes only the image header of path.
func ReadDimensions(path string) (models.Dimension, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.Dimension{}, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return models.Dimension{}, fmt.Errorf("decode image header: %w", err)
	}
	return models.Dimension{Width: cfg.Width, Height: cfg.Height}, nil
}

func normalize(vec []float32) ([]float32, bool) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return nil, false
	}
	norm := math.Sqrt(sum)
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return out, true
}

func clamp(score float32) float32 {
	switch {
	case score != score:
		return -1
	case score > 1:
		return 1
	case score < -1:
		return -1
	}
	return score
}
