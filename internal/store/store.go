// Package store persists run history and the geocode cache.
package store

import (
	"context"

	"github.com/sells-group/clickmap/internal/model"
	"github.com/sells-group/clickmap/pkg/geocode"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// LocationEntry is one row of the geocode cache.
type LocationEntry struct {
	Key    string         `json:"key"`
	Label  string         `json:"label"`
	Result geocode.Result `json:"result"`
}

// Store defines the persistence interface for map runs.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, params model.RunParams) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	UpdateRunResult(ctx context.Context, runID string, result *model.RunResult) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Phases
	CreatePhase(ctx context.Context, runID string, name string) (*model.RunPhase, error)
	CompletePhase(ctx context.Context, phaseID string, result *model.PhaseResult) error
	ListPhases(ctx context.Context, runID string) ([]model.RunPhase, error)

	// Geocode cache
	geocode.Cache
	ImportLocations(ctx context.Context, entries []LocationEntry) (int64, error)
	ClearLocations(ctx context.Context) (int64, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// runStatusFor returns the terminal status for a stored result.
func runStatusFor(result *model.RunResult) model.RunStatus {
	if result != nil && result.Error != "" {
		return model.RunStatusFailed
	}
	return model.RunStatusComplete
}
