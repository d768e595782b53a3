package checkpoint

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Load when no checkpoint exists for the run and stage.
var ErrNotFound = errors.New("checkpoint not found")

// Store persists the JSON output of one pipeline stage per run.
type Store interface {
	Save(ctx context.Context, runID, stage string, v interface{}) error
	Load(ctx context.Context, runID, stage string, v interface{}) error
}
