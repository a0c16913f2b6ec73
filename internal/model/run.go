package model

import (
	"time"
)

// RunStatus represents the current state of a map run.
type RunStatus string

const (
	RunStatusQueued     RunStatus = "queued"
	RunStatusFetching   RunStatus = "fetching"
	RunStatusGeocoding  RunStatus = "geocoding"
	RunStatusRendering  RunStatus = "rendering"
	RunStatusCapturing  RunStatus = "capturing"
	RunStatusEncoding   RunStatus = "encoding"
	RunStatusPublishing RunStatus = "publishing"
	RunStatusComplete   RunStatus = "complete"
	RunStatusFailed     RunStatus = "failed"
)

// RunParams describes what a run was asked to produce.
type RunParams struct {
	Connector      string    `json:"connector,omitempty"`
	DateFrom       string    `json:"date_from,omitempty"`
	DateTo         string    `json:"date_to,omitempty"`
	Fields         []string  `json:"fields,omitempty"`
	InputPath      string    `json:"input_path,omitempty"` // local dataset instead of the API
	LocationColumn string    `json:"location_column"`
	DateColumn     string    `json:"date_column"`
	ValueColumn    string    `json:"value_column"`
	Caption        string    `json:"caption"`
	Normalize      bool      `json:"normalize"`
	HTMLPath       string    `json:"html_path"`
	GIFPath        string    `json:"gif_path,omitempty"`
	SkipGIF        bool      `json:"skip_gif,omitempty"`
	RequestedAt    time.Time `json:"requested_at"`
}

// Run represents a single pipeline run.
type Run struct {
	ID        string     `json:"id"`
	Params    RunParams  `json:"params"`
	Status    RunStatus  `json:"status"`
	Result    *RunResult `json:"result,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// RunResult holds the final outcome of a run.
type RunResult struct {
	Rows          int           `json:"rows"`
	Locations     int           `json:"locations"`
	Unresolved    []string      `json:"unresolved,omitempty"`
	Features      int           `json:"features"`
	HTMLPath      string        `json:"html_path"`
	GIFPath       string        `json:"gif_path,omitempty"`
	Frames        int           `json:"frames,omitempty"`
	PublishedURLs []string      `json:"published_urls,omitempty"`
	Phases        []PhaseResult `json:"phases"`
	Error         string        `json:"error,omitempty"`
}

// RunPhase represents a phase within a run.
type RunPhase struct {
	ID        string       `json:"id"`
	RunID     string       `json:"run_id"`
	Name      string       `json:"name"`
	Status    PhaseStatus  `json:"status"`
	Result    *PhaseResult `json:"result,omitempty"`
	StartedAt time.Time    `json:"started_at"`
}

// PhaseStatus represents the current state of a pipeline phase.
type PhaseStatus string

const (
	PhaseStatusRunning  PhaseStatus = "running"
	PhaseStatusComplete PhaseStatus = "complete"
	PhaseStatusFailed   PhaseStatus = "failed"
	PhaseStatusSkipped  PhaseStatus = "skipped"
)

// PhaseResult holds the outcome of a pipeline phase.
type PhaseResult struct {
	Name     string         `json:"name"`
	Status   PhaseStatus    `json:"status"`
	Duration int64          `json:"duration_ms"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}
