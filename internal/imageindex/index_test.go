package imageindex

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"deckgen/internal/chromemdb"
)

type stubEmbedder struct {
	images map[string][]float32
	texts  map[string][]float32
}

func (s *stubEmbedder) EmbedImage(ctx context.Context, path string) ([]float32, error) {
	v, ok := s.images[filepath.Base(path)]
	if !ok {
		return nil, errors.New("unknown image")
	}
	return v, nil
}

func (s *stubEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	v, ok := s.texts[text]
	if !ok {
		return nil, errors.New("unknown text")
	}
	return v, nil
}

func writePNG(t *testing.T, dir, name string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func newIndex(t *testing.T, emb *stubEmbedder) *Index {
	t.Helper()
	store, err := chromemdb.NewVectorDBManager("")
	if err != nil {
		t.Fatal(err)
	}
	return New(emb, store, 2)
}

func TestBestMatchEmptyIndex(t *testing.T) {
	ix := newIndex(t, &stubEmbedder{})
	records, err := ix.BuildIndex(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no records, got %d", len(records))
	}

	name, score, err := ix.BestMatch(context.Background(), "anything")
	if err != nil || name != "" || score != -1 {
		t.Fatalf("expected (\"\", -1), got (%q, %v, %v)", name, score, err)
	}
}

func TestBestMatchRanksAndBreaksTies(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, dir, "a_chart.png", 40, 20)
	writePNG(t, dir, "b_chart.png", 40, 20)
	writePNG(t, dir, "c_rocket.png", 10, 30)
	writePNG(t, dir, "d_blank.png", 5, 5)
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "broken.jpg"), []byte("not a jpeg"), 0o644); err != nil {
		t.Fatal(err)
	}

	emb := &stubEmbedder{
		images: map[string][]float32{
			"a_chart.png":  {1, 0, 0},
			"b_chart.png":  {2, 0, 0},
			"c_rocket.png": {0, 1, 0},
			"d_blank.png":  {0, 0, 0},
			"broken.jpg":   {0, 0, 1},
		},
		texts: map[string][]float32{
			"revenue chart": {1, 0.1, 0},
			"launch":        {0, 3, 0},
			"opposite":      {-1, 0, 0},
		},
	}
	ix := newIndex(t, emb)
	records, err := ix.BuildIndex(context.Background(), dir)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 indexed images (zero vector and broken file skipped), got %d", len(records))
	}
	if records[0].Filename != filepath.Join(dir, "a_chart.png") || records[2].Width != 10 || records[2].Height != 30 {
		t.Fatalf("unexpected records %#v", records)
	}

	indexed := map[string]bool{}
	for _, r := range records {
		indexed[r.Filename] = true
	}

	cases := []struct {
		caption string
		want    string
	}{
		{"revenue chart", "a_chart.png"},
		{"launch", "c_rocket.png"},
		{"opposite", "c_rocket.png"},
	}
	for _, tc := range cases {
		name, score, err := ix.BestMatch(context.Background(), tc.caption)
		if err != nil {
			t.Fatalf("%s: %v", tc.caption, err)
		}
		if !indexed[name] {
			t.Fatalf("%s: %q is not an indexed image", tc.caption, name)
		}
		if score < -1 || score > 1 {
			t.Fatalf("%s: score %v out of range", tc.caption, score)
		}
		if filepath.Base(name) != tc.want {
			t.Fatalf("%s: expected %s, got %s (score %v)", tc.caption, tc.want, name, score)
		}
	}

	if _, _, err := ix.BestMatch(context.Background(), "unknown caption"); err == nil {
		t.Fatal("expected embed error to surface")
	}

	dim, ok := ix.Dimensions(filepath.Join(dir, "a_chart.png"))
	if !ok || dim.Width != 40 || dim.Height != 20 {
		t.Fatalf("unexpected dimensions %v %v", dim, ok)
	}
}

func TestCandidatesFiltersByThreshold(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, dir, "chart.png", 8, 8)
	emb := &stubEmbedder{
		images: map[string][]float32{"chart.png": {1, 0}},
		texts: map[string][]float32{
			"chart":       {1, 0},
			"chart again": {1, 0.01},
			"unrelated":   {0, 1},
		},
	}
	ix := newIndex(t, emb)
	if _, err := ix.BuildIndex(context.Background(), dir); err != nil {
		t.Fatal(err)
	}

	got := ix.Candidates(context.Background(), []string{"chart", "unrelated", "chart again", "missing"}, 0.3)
	if len(got) != 1 || filepath.Base(got[0]) != "chart.png" {
		t.Fatalf("unexpected candidates %v", got)
	}
}
