package webimage

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"deckgen/internal/config"
)

type staticSearcher struct {
	urls []string
	err  error
}

func (s staticSearcher) SearchImages(ctx context.Context, query string) ([]string, error) {
	return s.urls, s.err
}

type stubGenerator struct {
	data []byte
	err  error
}

func (g stubGenerator) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	return g.data, g.err
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	// fully transparent except one opaque pixel
	img.Set(0, 0, color.NRGBA{R: 200, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func imageServer(t *testing.T, good []byte, hits *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		switch r.URL.Path {
		case "/good.png":
			w.Header().Set("Content-Type", "image/png")
			w.Write(good)
		case "/page":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			fmt.Fprint(w, `<html><head><meta property="og:image" content="/good.png"></head><body><img src="/bad"></body></html>`)
		case "/missing":
			http.NotFound(w, r)
		default:
			w.Header().Set("Content-Type", "image/png")
			w.Write([]byte("corrupt"))
		}
	}))
}

func TestFetchImageStopsAtFirstDecodableCandidate(t *testing.T) {
	var hits int32
	server := imageServer(t, pngBytes(t, 64, 32), &hits)
	defer server.Close()

	urls := []string{
		server.URL + "/bad1",
		server.URL + "/missing",
		server.URL + "/bad3",
		server.URL + "/bad4",
		server.URL + "/good.png",
	}
	dest := t.TempDir()
	f := NewFetcher(staticSearcher{urls: urls}, server.Client(), time.Second)

	path, err := f.FetchImage(context.Background(), "Revenue growth chart", dest, 5)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	want := filepath.Join(dest, ImageFilename("Revenue growth chart", urls[4]))
	if path != want {
		t.Fatalf("expected %s, got %s", want, path)
	}
	if atomic.LoadInt32(&hits) != 5 {
		t.Fatalf("expected exactly 5 attempts, got %d", hits)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()
	img, err := jpeg.Decode(file)
	if err != nil {
		t.Fatalf("persisted file is not a jpeg: %v", err)
	}
	if img.Bounds().Dx() != 64 || img.Bounds().Dy() != 32 {
		t.Fatalf("unexpected size %v", img.Bounds())
	}
	// transparent areas are flattened onto white
	r, g, b, _ := img.At(40, 20).RGBA()
	if r>>8 < 240 || g>>8 < 240 || b>>8 < 240 {
		t.Fatalf("expected white background, got %d %d %d", r>>8, g>>8, b>>8)
	}
}

func TestFetchImageHonoursMaxAttempts(t *testing.T) {
	var hits int32
	server := imageServer(t, pngBytes(t, 8, 8), &hits)
	defer server.Close()

	urls := []string{server.URL + "/a", server.URL + "/b", server.URL + "/c", server.URL + "/good.png"}
	f := NewFetcher(staticSearcher{urls: urls}, server.Client(), time.Second)

	_, err := f.FetchImage(context.Background(), "caption", t.TempDir(), 3)
	if !errors.Is(err, ErrNoImage) {
		t.Fatalf("expected ErrNoImage, got %v", err)
	}
	if atomic.LoadInt32(&hits) != 3 {
		t.Fatalf("expected 3 attempts, got %d", hits)
	}
}

func TestFetchImageSearchFailureIsNotFatal(t *testing.T) {
	f := NewFetcher(staticSearcher{err: errors.New("quota")}, nil, time.Second)
	if _, err := f.FetchImage(context.Background(), "caption", t.TempDir(), 5); !errors.Is(err, ErrNoImage) {
		t.Fatalf("expected ErrNoImage, got %v", err)
	}
}

func TestFetchImageResolvesHTMLPage(t *testing.T) {
	var hits int32
	server := imageServer(t, pngBytes(t, 16, 16), &hits)
	defer server.Close()

	f := NewFetcher(staticSearcher{urls: []string{server.URL + "/page"}}, server.Client(), time.Second)
	path, err := f.FetchImage(context.Background(), "landing page", t.TempDir(), 5)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if filepath.Base(path) != ImageFilename("landing page", server.URL+"/page") {
		t.Fatalf("unexpected path %s", path)
	}
	if atomic.LoadInt32(&hits) != 2 {
		t.Fatalf("expected page and image requests, got %d", hits)
	}
}

func TestFetchImageFallsBackToGenerator(t *testing.T) {
	f := NewFetcher(staticSearcher{}, nil, time.Second).WithGenerator(stubGenerator{data: pngBytes(t, 3000, 1000)})

	path, err := f.FetchImage(context.Background(), "generated", t.TempDir(), 5)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	file, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()
	cfg, err := jpeg.DecodeConfig(file)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Width != 2048 || cfg.Height != 682 {
		t.Fatalf("expected downscale to 2048x682, got %dx%d", cfg.Width, cfg.Height)
	}

	f = NewFetcher(staticSearcher{}, nil, time.Second).WithGenerator(stubGenerator{err: errors.New("policy")})
	if _, err := f.FetchImage(context.Background(), "generated", t.TempDir(), 5); !errors.Is(err, ErrNoImage) {
		t.Fatalf("expected ErrNoImage, got %v", err)
	}
}

func TestFetchImageConcurrentSameCaption(t *testing.T) {
	var hits int32
	server := imageServer(t, pngBytes(t, 64, 32), &hits)
	defer server.Close()

	dest := t.TempDir()
	f := NewFetcher(staticSearcher{urls: []string{server.URL + "/good.png"}}, server.Client(), time.Second)

	var wg sync.WaitGroup
	for round := 0; round < 10; round++ {
		for w := 0; w < 4; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := f.FetchImage(context.Background(), "solar panel", dest, 1); err != nil {
					t.Errorf("round %d worker %d: %v", round, w, err)
				}
			}()
		}
		wg.Wait()
	}

	entries, err := os.ReadDir(dest)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || strings.HasPrefix(entries[0].Name(), ".") {
		t.Fatalf("expected one image and no temp files, got %d entries", len(entries))
	}
	file, err := os.Open(filepath.Join(dest, entries[0].Name()))
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()
	if _, err := jpeg.Decode(file); err != nil {
		t.Fatalf("persisted file is not a jpeg: %v", err)
	}
}

func TestImageFilename(t *testing.T) {
	a := ImageFilename("Market Share 2024!", "https://x/a.png")
	b := ImageFilename("Market Share 2024!", "https://x/b.png")
	if a == b {
		t.Fatal("different urls must give different names")
	}
	if a != ImageFilename("Market Share 2024!", "https://x/a.png") {
		t.Fatal("name must be stable")
	}
	if filepath.Ext(a) != ".jpg" || a[:17] != "market_share_2024" {
		t.Fatalf("unexpected name %s", a)
	}
}

func TestTavilySearcher(t *testing.T) {
	var got tavilyRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"images": ["https://a/1.png", {"url": "https://a/2.png", "description": "x"}, "https://a/1.png", ""]}`))
	}))
	defer server.Close()

	s := &TavilySearcher{BaseURL: server.URL, Key: "k", MaxResults: 5, HTTPClient: server.Client()}
	urls, err := s.SearchImages(context.Background(), "solar panels")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(urls) != 2 || urls[0] != "https://a/1.png" || urls[1] != "https://a/2.png" {
		t.Fatalf("unexpected urls %v", urls)
	}
	if !got.IncludeImages || got.Query != "solar panels" || got.APIKey != "k" {
		t.Fatalf("unexpected request %#v", got)
	}
}

func TestGoogleSearcher(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("searchType") != "image" || q.Get("cx") != "cx1" || q.Get("num") != "10" {
			http.Error(w, "bad query", http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{"items": [{"link": "https://g/1.jpg"}, {"link": "https://g/2.jpg"}]}`))
	}))
	defer server.Close()

	s := &GoogleSearcher{BaseURL: server.URL, Key: "k", CX: "cx1", MaxResults: 20, HTTPClient: server.Client()}
	urls, err := s.SearchImages(context.Background(), "wind farm")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(urls) != 2 {
		t.Fatalf("unexpected urls %v", urls)
	}
}

func TestNewSearcherRequiresKeys(t *testing.T) {
	if _, err := NewSearcher(&config.SearchConfig{Provider: config.SearchTavily}, nil); err == nil {
		t.Fatal("expected missing key error")
	}
	if _, err := NewSearcher(&config.SearchConfig{Provider: config.SearchGoogle, GoogleKey: "k"}, nil); err == nil {
		t.Fatal("expected missing cx error")
	}
	if _, err := NewSearcher(&config.SearchConfig{Provider: "bing"}, nil); err == nil {
		t.Fatal("expected unknown provider error")
	}
}

func TestOpenAIGenerator(t *testing.T) {
	img := pngBytes(t, 4, 4)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/images/generations" {
			http.NotFound(w, r)
			return
		}
		var req map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req["response_format"] != "b64_json" {
			http.Error(w, "expected b64_json", http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"created": 1,
			"data":    []map[string]string{{"b64_json": base64.StdEncoding.EncodeToString(img)}},
		})
	}))
	defer server.Close()

	g := NewOpenAIGenerator(&config.ImageGenConfig{Key: "k", BaseURL: server.URL + "/v1", Model: "dall-e-3", Size: "1024x1024"})
	data, err := g.GenerateImage(context.Background(), "a lighthouse")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !bytes.Equal(data, img) {
		t.Fatal("unexpected image bytes")
	}
}
