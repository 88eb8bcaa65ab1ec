package storage

import (
	"errors"
	"fmt"
	"sync"

	"github.com/eddiefleurent/pmcc_screener/internal/models"
)

// MockStorage implements Interface in memory for testing
type MockStorage struct {
	mu            sync.Mutex
	saveError     error
	runs          []*models.Run
	saveCallCount int
}

// Ensure MockStorage implements Interface
var _ Interface = (*MockStorage)(nil)

// NewMockStorage creates a new mock storage for testing
func NewMockStorage() *MockStorage {
	return &MockStorage{}
}

// SetSaveError makes every following SaveRun fail with err.
func (m *MockStorage) SetSaveError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveError = err
}

// SaveCallCount returns how many times SaveRun was called.
func (m *MockStorage) SaveCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveCallCount
}

func (m *MockStorage) SaveRun(run *models.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveCallCount++
	if m.saveError != nil {
		return m.saveError
	}
	if run == nil || run.ID == "" {
		return errors.New("run with an id is required")
	}
	m.runs = append(m.runs, cloneRun(run))
	return nil
}

func (m *MockStorage) LatestRun() (*models.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.runs) == 0 {
		return nil, ErrRunNotFound
	}
	return cloneRun(m.runs[len(m.runs)-1]), nil
}

func (m *MockStorage) GetRun(id string) (*models.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.runs {
		if r.ID == id {
			return cloneRun(r), nil
		}
	}
	return nil, fmt.Errorf("run %s: %w", id, ErrRunNotFound)
}

func (m *MockStorage) ListRuns() []models.RunSummary {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.RunSummary, 0, len(m.runs))
	for i := len(m.runs) - 1; i >= 0; i-- {
		out = append(out, m.runs[i].Summary())
	}
	return out
}
