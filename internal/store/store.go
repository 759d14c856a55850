package store

import (
	"context"
	"errors"

	"github.com/ajitpratap0/classcycle/internal/models"
)

// ErrNotFound is returned when the requested analysis run does not exist.
var ErrNotFound = errors.New("run not found")

// DefaultListLimit is used by ListRuns when limit is not positive.
const DefaultListLimit = 50

// Store persists dependency analyses as graphs.
type Store interface {
	// EnsureSchema creates constraints and indexes if they don't exist.
	EnsureSchema(ctx context.Context) error

	// SaveAnalysis writes the run, its class and package graphs, and its cycles.
	// Saving the same run twice is idempotent.
	SaveAnalysis(ctx context.Context, a *models.Analysis) error

	// GetRun returns the summary of a stored run.
	GetRun(ctx context.Context, id string) (*models.RunSummary, error)

	// ListRuns returns stored runs, newest first.
	ListRuns(ctx context.Context, limit int) ([]models.RunSummary, error)

	// Cycles returns the cycles of a stored run at the given level, sorted by name.
	Cycles(ctx context.Context, runID string, level models.Level) ([]models.Cycle, error)

	// Close cleans up resources.
	Close() error
}
