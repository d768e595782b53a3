package webimage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"deckgen/internal/helper"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	maxImageBytes = 20 << 20
	maxImageSide  = 2048
	jpegQuality   = 90
	userAgent     = "Mozilla/5.0 (compatible; deckgen/1.0)"
)

// ErrNoImage is returned when every candidate failed and nothing could be generated.
var ErrNoImage = errors.New("no image could be fetched")

// ImageGenerator produces encoded image bytes for a prompt.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) ([]byte, error)
}

// Fetcher downloads a substitute image for a caption from web search results.
type Fetcher struct {
	searcher   Searcher
	httpClient *http.Client
	timeout    time.Duration
	generator  ImageGenerator
}

func NewFetcher(searcher Searcher, httpClient *http.Client, timeout time.Duration) *Fetcher {
	return &Fetcher{searcher: searcher, httpClient: client(httpClient), timeout: timeout}
}

// WithGenerator sets the generator tried once every search candidate failed.
func (f *Fetcher) WithGenerator(g ImageGenerator) *Fetcher {
	f.generator = g
	return f
}

// FetchImage tries up to maxAttempts ranked candidate URLs and persists the first one that decodes.
// Candidate failures are skipped; exhaustion returns ErrNoImage.
func (f *Fetcher) FetchImage(ctx context.Context, caption, destDir string, maxAttempts int) (string, error) {
	if err := helper.CreateFolder(destDir); err != nil {
		return "", err
	}

	var urls []string
	if f.searcher != nil {
		found, err := f.searcher.SearchImages(ctx, caption)
		if err != nil {
			log.Warn().Err(err).Str("caption", caption).Msg("Image search failed")
		}
		urls = found
	}
	if maxAttempts > 0 && len(urls) > maxAttempts {
		urls = urls[:maxAttempts]
	}

	for i, u := range urls {
		if ctx.Err() != nil {
			break
		}
		path, err := f.attempt(ctx, caption, u, destDir)
		if err != nil {
			log.Warn().Err(err).Int("attempt", i+1).Str("url", u).Msg("Skipping image candidate")
			continue
		}
		log.Info().Str("caption", caption).Str("url", u).Str("path", path).Msg("Downloaded fallback image")
		return path, nil
	}

	if f.generator != nil && ctx.Err() == nil {
		path, err := f.generate(ctx, caption, destDir)
		if err == nil {
			log.Info().Str("caption", caption).Str("path", path).Msg("Generated fallback image")
			return path, nil
		}
		log.Warn().Err(err).Str("caption", caption).Msg("Image generation failed")
	}
	return "", ErrNoImage
}

// attempt downloads one candidate within its own timeout
func (f *Fetcher) attempt(ctx context.Context, caption, rawURL, destDir string) (string, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	data, contentType, err := f.download(ctx, rawURL)
	if err != nil {
		return "", err
	}
	if isHTML(contentType, data) {
		imgURL, err := resolveHTMLImage(rawURL, data)
		if err != nil {
			return "", err
		}
		if data, _, err = f.download(ctx, imgURL); err != nil {
			return "", err
		}
	}

	img, err := decode(data)
	if err != nil {
		return "", err
	}
	return save(img, filepath.Join(destDir, ImageFilename(caption, rawURL)))
}

func (f *Fetcher) download(ctx context.Context, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("download failed: %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, "", err
	}
	return data, resp.Header.Get("Content-Type"), nil
}

func (f *Fetcher) generate(ctx context.Context, caption, destDir string) (string, error) {
	data, err := f.generator.GenerateImage(ctx, caption)
	if err != nil {
		return "", err
	}
	img, err := decode(data)
	if err != nil {
		return "", err
	}
	return save(img, filepath.Join(destDir, ImageFilename(caption, "generated:"+caption)))
}

func isHTML(contentType string, data []byte) bool {
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return strings.Contains(strings.ToLower(contentType), "text/html")
}

// resolveHTMLImage picks og:image, then the first <img>, relative to the page URL
func resolveHTMLImage(pageURL string, page []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	src, _ := doc.Find(`meta[property="og:image"]`).First().Attr("content")
	if strings.TrimSpace(src) == "" {
		src, _ = doc.Find("img[src]").First().Attr("src")
	}
	src = strings.TrimSpace(src)
	if src == "" {
		return "", fmt.Errorf("html page has no image")
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(src)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}

func decode(data []byte) (image.Image, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("empty %s image", format)
	}
	return img, nil
}

// toRGB flattens onto white and caps the longest side at maxImageSide
func toRGB(img image.Image) *image.RGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w > maxImageSide || h > maxImageSide {
		if w >= h {
			h = max(1, h*maxImageSide/w)
			w = maxImageSide
		} else {
			w = max(1, w*maxImageSide/h)
			h = maxImageSide
		}
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	if w == b.Dx() && h == b.Dy() {
		draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	}
	return dst
}

func save(img image.Image, path string) (string, error) {
	out, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return "", err
	}
	tmp := out.Name()
	if err := jpeg.Encode(out, toRGB(img), &jpeg.Options{Quality: jpegQuality}); err != nil {
		out.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("encode jpeg: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return "", err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", err
	}
	return path, nil
}

// ImageFilename derives a stable file name from the caption and the source URL.
func ImageFilename(caption, sourceURL string) string {
	h := fnv.New32a()
	h.Write([]byte(sourceURL))
	return fmt.Sprintf("%s_%08x.jpg", helper.Slugify(caption, 40), h.Sum32())
}
