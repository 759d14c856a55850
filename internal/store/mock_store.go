package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ajitpratap0/classcycle/internal/models"
)

// MockStore is an in-memory implementation of Store for testing.
type MockStore struct {
	mu   sync.RWMutex
	runs map[string]*models.Analysis
}

// NewMockStore creates a new mock store.
func NewMockStore() *MockStore {
	return &MockStore{
		runs: make(map[string]*models.Analysis),
	}
}

// EnsureSchema is a no-op for the mock store.
func (m *MockStore) EnsureSchema(_ context.Context) error {
	return nil
}

// SaveAnalysis stores a copy of the analysis.
func (m *MockStore) SaveAnalysis(_ context.Context, a *models.Analysis) error {
	if a == nil || a.ID == "" {
		return fmt.Errorf("mock store: analysis must have an id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	// Copy cycles so callers can not mutate stored data through shared slices.
	cp := *a
	cp.ClassCycles = copyCycles(a.ClassCycles)
	cp.PackageCycles = copyCycles(a.PackageCycles)
	m.runs[a.ID] = &cp
	return nil
}

// GetRun returns the summary of a stored run.
func (m *MockStore) GetRun(_ context.Context, id string) (*models.RunSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s := a.Summary()
	return &s, nil
}

// ListRuns returns stored runs, newest first.
func (m *MockStore) ListRuns(_ context.Context, limit int) ([]models.RunSummary, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.RunSummary, 0, len(m.runs))
	for _, a := range m.runs {
		out = append(out, a.Summary())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Cycles returns the cycles of a stored run.
func (m *MockStore) Cycles(_ context.Context, runID string, level models.Level) ([]models.Cycle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.runs[runID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	return copyCycles(a.Cycles(level)), nil
}

// Close is a no-op for the mock store.
func (m *MockStore) Close() error {
	return nil
}

func copyCycles(in []models.Cycle) []models.Cycle {
	if in == nil {
		return nil
	}
	out := make([]models.Cycle, len(in))
	for i, c := range in {
		c.Members = append([]string(nil), c.Members...)
		out[i] = c
	}
	return out
}
