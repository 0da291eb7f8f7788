package model

import "time"

// RunStatus is the terminal state of a pipeline run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusComplete  RunStatus = "complete"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// WalkMode selects how query keys are generated.
type WalkMode string

const (
	ModeRange    WalkMode = "range"
	ModeLocality WalkMode = "locality"
	ModeMerge    WalkMode = "merge"
)

// RunSummary is produced once per run and never modified afterwards.
type RunSummary struct {
	RunID      string            `json:"run_id"`
	Mode       WalkMode          `json:"mode"`
	Params     map[string]string `json:"params,omitempty"`
	Processed  int               `json:"processed"`
	Found      int               `json:"found"`
	NotFound   int               `json:"not_found"`
	Failed     int               `json:"failed"`
	Rejected   int               `json:"rejected"`
	Added      int               `json:"added"`
	Duplicates int               `json:"duplicates"`
	NewRegions []string          `json:"new_regions"`
	Status     RunStatus         `json:"status"`
	Error      string            `json:"error,omitempty"`
	StartedAt  time.Time         `json:"started_at"`
	Elapsed    time.Duration     `json:"elapsed_ns"`
}
