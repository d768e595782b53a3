package resolver

import (
	"context"
	"time"

	"deckgen/internal/imageindex"
	"deckgen/internal/models"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Index is the read-only local image similarity index.
type Index interface {
	BestMatch(ctx context.Context, caption string) (string, float32, error)
	Dimensions(path string) (models.Dimension, bool)
}

// Fallback fetches a substitute image from outside the local index.
type Fallback interface {
	FetchImage(ctx context.Context, caption, destDir string, maxAttempts int) (string, error)
}

type Options struct {
	Threshold   float32
	MaxAttempts int
	DestDir     string
	Workers     int
	Timeout     time.Duration
}

// Resolver attaches at most one image to every slide.
type Resolver struct {
	index    Index
	fallback Fallback
	opts     Options
}

func New(index Index, fallback Fallback, opts Options) *Resolver {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Resolver{index: index, fallback: fallback, opts: opts}
}

// Resolve returns a copy of slides with image paths and dimensions filled.
// Each worker owns one slide index, so ordering is kept whatever the completion order.
func (r *Resolver) Resolve(ctx context.Context, slides []models.SlideSpec) []models.SlideSpec {
	out := make([]models.SlideSpec, len(slides))
	g := new(errgroup.Group)
	g.SetLimit(r.opts.Workers)
	for i := range slides {
		g.Go(func() error {
			out[i] = r.resolveSlide(ctx, slides[i])
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (r *Resolver) resolveSlide(ctx context.Context, slide models.SlideSpec) models.SlideSpec {
	slide.ImagePaths = append([]string{}, slide.ImagePaths...)
	slide.ImageDimensions = nil

	if slide.HasImage() {
		path := slide.ImagePaths[0]
		dim, err := r.dimensions(path)
		if err != nil {
			log.Warn().Err(err).Int("slide", slide.Index).Str("path", path).Msg("Dropping unreadable image")
			slide.ImagePaths = []string{}
			return slide
		}
		slide.ImagePaths = slide.ImagePaths[:1]
		slide.ImageDimensions = []models.Dimension{dim}
		return slide
	}

	for _, caption := range slide.ImageCaptions {
		path := r.resolveCaption(ctx, slide.Index, caption)
		if path == "" {
			continue
		}
		dim, err := r.dimensions(path)
		if err != nil {
			log.Warn().Err(err).Int("slide", slide.Index).Str("path", path).Msg("Resolved image is unreadable")
			continue
		}
		slide.ImagePaths = []string{path}
		slide.ImageDimensions = []models.Dimension{dim}
		return slide
	}
	return slide
}

// resolveCaption uses the local match when it clears the threshold and the fallback otherwise
func (r *Resolver) resolveCaption(ctx context.Context, slideIndex int, caption string) string {
	path, score := r.bestMatch(ctx, caption)
	if path != "" && score >= r.opts.Threshold {
		log.Debug().Int("slide", slideIndex).Str("caption", caption).Float32("score", score).Str("path", path).Msg("Local image match")
		return path
	}

	log.Debug().Int("slide", slideIndex).Str("caption", caption).Float32("score", score).Msg("Low confidence, trying web fallback")
	if r.fallback == nil {
		return ""
	}
	fetched, err := r.fallback.FetchImage(ctx, caption, r.opts.DestDir, r.opts.MaxAttempts)
	if err != nil {
		log.Warn().Err(err).Int("slide", slideIndex).Str("caption", caption).Msg("No fallback image")
		return ""
	}
	return fetched
}

// bestMatch treats errors and timeouts as no match
func (r *Resolver) bestMatch(ctx context.Context, caption string) (string, float32) {
	if r.index == nil {
		return "", -1
	}
	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}
	path, score, err := r.index.BestMatch(ctx, caption)
	if err != nil {
		log.Warn().Err(err).Str("caption", caption).Msg("Image index lookup failed")
		return "", -1
	}
	return path, score
}

func (r *Resolver) dimensions(path string) (models.Dimension, error) {
	if r.index != nil {
		if dim, ok := r.index.Dimensions(path); ok {
			return dim, nil
		}
	}
	return imageindex.ReadDimensions(path)
}
