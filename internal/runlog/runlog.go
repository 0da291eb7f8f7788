// Package runlog keeps the history of pipeline runs.
package runlog

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/cepsync/internal/model"
)

// ErrNotFound is returned when a run ID is unknown.
var ErrNotFound = eris.New("runlog: run not found")

// Filter specifies criteria for listing runs.
type Filter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Mode   model.WalkMode  `json:"mode,omitempty"`
	Limit  int             `json:"limit,omitempty"`
}

// Store persists run summaries.
type Store interface {
	// Start records a run that has just begun.
	Start(ctx context.Context, s *model.RunSummary) error
	// Finish records the final summary of a run.
	Finish(ctx context.Context, s *model.RunSummary) error
	Get(ctx context.Context, runID string) (*model.RunSummary, error)
	List(ctx context.Context, f Filter) ([]model.RunSummary, error)

	Migrate(ctx context.Context) error
	Close() error
}

const defaultListLimit = 50

func limitOf(f Filter) int {
	if f.Limit <= 0 {
		return defaultListLimit
	}
	return f.Limit
}

func encodeSummary(s *model.RunSummary) ([]byte, error) {
	data, err := json.Marshal(s)
	return data, eris.Wrap(err, "runlog: marshal summary")
}

func decodeSummary(data []byte, status string) (*model.RunSummary, error) {
	var s model.RunSummary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, eris.Wrap(err, "runlog: unmarshal summary")
	}
	s.Status = model.RunStatus(status)
	return &s, nil
}
