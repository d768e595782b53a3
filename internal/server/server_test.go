package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"deckgen/internal/config"
	"deckgen/internal/pipeline"
)

type stubRunner struct {
	req      pipeline.Request
	uploaded []byte
	err      error
}

func (s *stubRunner) Run(ctx context.Context, req pipeline.Request) (*pipeline.Result, error) {
	s.req = req
	s.uploaded, _ = os.ReadFile(req.DocumentPath)
	if s.err != nil {
		return nil, s.err
	}
	if err := os.MkdirAll(filepath.Dir(req.OutputPath), 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(req.OutputPath, []byte("<html>deck</html>"), 0o644); err != nil {
		return nil, err
	}
	return &pipeline.Result{RunID: req.RunID, OutputPath: req.OutputPath, Slides: 3}, nil
}

func newTestServer(t *testing.T, runner Runner) (*httptest.Server, *config.PathsConfig) {
	t.Helper()
	dir := t.TempDir()
	paths := &config.PathsConfig{
		Uploads:  filepath.Join(dir, "uploads"),
		Outputs:  filepath.Join(dir, "outputs"),
		Template: filepath.Join(dir, "template.pptx"),
	}
	srv := httptest.NewServer(SetupNegroni(SetupRoutes(NewHandler(runner, paths))))
	t.Cleanup(srv.Close)
	return srv, paths
}

func upload(t *testing.T, url, name string, content []byte) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatal(err)
	}
	part.Write(content)
	mw.Close()
	resp, err := http.Post(url+"/upload", mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func TestUploadAndDownload(t *testing.T) {
	runner := &stubRunner{}
	srv, paths := newTestServer(t, runner)

	resp := upload(t, srv.URL, "report.pdf", []byte("%PDF-1.4 test"))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var out struct {
		Status   string `json:"status"`
		RunID    string `json:"run_id"`
		Filename string `json:"presentation_filename"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Status != "success" || out.Filename != out.RunID+".html" {
		t.Fatalf("unexpected response %#v", out)
	}
	if string(runner.uploaded) != "%PDF-1.4 test" || filepath.Ext(runner.req.DocumentPath) != ".pdf" {
		t.Fatalf("pipeline did not see the upload: %#v", runner.req)
	}
	if runner.req.TemplatePath != paths.Template {
		t.Fatalf("expected configured template, got %s", runner.req.TemplatePath)
	}
	if _, err := os.Stat(runner.req.DocumentPath); !os.IsNotExist(err) {
		t.Fatal("upload should be removed after processing")
	}

	dl, err := http.Get(srv.URL + "/download/" + out.Filename)
	if err != nil {
		t.Fatal(err)
	}
	defer dl.Body.Close()
	var page bytes.Buffer
	page.ReadFrom(dl.Body)
	if dl.StatusCode != http.StatusOK || page.String() != "<html>deck</html>" {
		t.Fatalf("unexpected download %d %q", dl.StatusCode, page.String())
	}
}

func TestUploadErrors(t *testing.T) {
	srv, _ := newTestServer(t, &stubRunner{err: errors.New("parse failed")})

	resp := upload(t, srv.URL, "broken.pdf", []byte("x"))
	resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}

	resp, err := http.Post(srv.URL+"/upload", "text/plain", bytes.NewBufferString("no form"))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestDownloadMissingAndRoot(t *testing.T) {
	srv, _ := newTestServer(t, &stubRunner{})

	resp, err := http.Get(srv.URL + "/download/missing.html")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var root map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&root); err != nil {
		t.Fatal(err)
	}
	if root["status"] != "success" {
		t.Fatalf("unexpected root response %v", root)
	}
}
