package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"deckgen/internal/config"
	"deckgen/internal/helper"
	"deckgen/internal/pipeline"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	"github.com/urfave/negroni"
)

const (
	maxUploadSize = 64 << 20
	outputExt     = ".html"
)

// Runner runs the deck pipeline for one uploaded document.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

type Handler struct {
	runner   Runner
	uploads  string
	outputs  string
	template string
}

func NewHandler(runner Runner, paths *config.PathsConfig) *Handler {
	return &Handler{
		runner:   runner,
		uploads:  paths.Uploads,
		outputs:  paths.Outputs,
		template: paths.Template,
	}
}

func SetupRoutes(h *Handler) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", h.Root).Methods("GET")
	r.HandleFunc("/upload", h.Upload).Methods("POST")
	r.HandleFunc("/download/{filename}", h.Download).Methods("GET")
	return r
}

func SetupNegroni(r *mux.Router) *negroni.Negroni {
	n := negroni.New()
	n.Use(negroni.NewRecovery())
	n.Use(negroni.NewLogger())
	n.UseHandler(r)
	return n
}

// NewServer allows long writes, an upload is answered only once its deck is rendered.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		IdleTimeout:  time.Minute,
		ReadTimeout:  time.Minute,
		WriteTimeout: 15 * time.Minute,
	}
}

func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "success",
		"message": "Deck generator API is running",
		"endpoints": map[string]string{
			"upload":   "/upload",
			"download": "/download/{filename}",
		},
	})
}

// Upload stores the multipart "file" field, runs the pipeline on it and removes the upload afterwards.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing or invalid file field")
		return
	}
	defer file.Close()

	runID, err := helper.GenerateUUID()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	uploadPath, err := h.saveUpload(file, runID+filepath.Ext(header.Filename))
	if err != nil {
		log.Error().Err(err).Str("file", header.Filename).Msg("Error saving upload")
		writeError(w, http.StatusInternalServerError, "could not store upload")
		return
	}
	defer func() {
		if err := os.Remove(uploadPath); err != nil {
			log.Warn().Err(err).Str("path", uploadPath).Msg("Error removing upload")
		}
	}()

	filename := runID + outputExt
	log.Info().Str("run", runID).Str("file", header.Filename).Msg("Processing upload")
	res, err := h.runner.Run(r.Context(), pipeline.Request{
		DocumentPath: uploadPath,
		TemplatePath: h.template,
		OutputPath:   filepath.Join(h.outputs, filename),
		RunID:        runID,
	})
	if err != nil {
		log.Error().Err(err).Str("run", runID).Msg("Error processing upload")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":                "success",
		"message":               "File processed successfully",
		"run_id":                res.RunID,
		"presentation_filename": filename,
		"data":                  res,
	})
}

func (h *Handler) saveUpload(src io.Reader, name string) (string, error) {
	if err := helper.CreateFolder(h.uploads); err != nil {
		return "", err
	}
	path := filepath.Join(h.uploads, name)
	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return "", fmt.Errorf("copy upload: %w", err)
	}
	return path, dst.Close()
}

// Download serves a rendered deck from the outputs directory only.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	filename := filepath.Base(mux.Vars(r)["filename"])
	if filename == "." || filename == string(filepath.Separator) {
		writeError(w, http.StatusBadRequest, "invalid filename")
		return
	}
	path := filepath.Join(h.outputs, filename)
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) || (err == nil && info.IsDir()) {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	http.ServeFile(w, r, path)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Error writing response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"status": "error", "message": message})
}
