package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"deckgen/internal/helper"

	"github.com/rs/zerolog/log"
)

// FileStore keeps checkpoints as indented JSON files under dir/<run>/<stage>.json.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) path(runID, stage string) string {
	return filepath.Join(s.dir, filepath.Base(runID), stage+".json")
}

// Save writes the checkpoint through a temporary file so readers never see a partial file.
func (s *FileStore) Save(ctx context.Context, runID, stage string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s checkpoint: %w", stage, err)
	}
	target := s.path(runID, stage)
	if err := helper.CreateFolder(filepath.Dir(target)); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), stage+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp checkpoint: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s checkpoint: %w", stage, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename %s checkpoint: %w", stage, err)
	}

	log.Debug().Str("run", runID).Str("stage", stage).Str("path", target).Msg("Saved checkpoint")
	return nil
}

func (s *FileStore) Load(ctx context.Context, runID, stage string, v interface{}) error {
	data, err := os.ReadFile(s.path(runID, stage))
	if errors.Is(err, os.ErrNotExist) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read %s checkpoint: %w", stage, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s checkpoint: %w", stage, err)
	}
	return nil
}
