package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/eddiefleurent/pmcc_screener/internal/models"
)

// JSONStorage keeps the run history in a single JSON file.
type JSONStorage struct {
	mu       sync.RWMutex
	filepath string
	maxRuns  int
	data     *storageData
}

// storageData is the on-disk layout. Runs are kept oldest first.
type storageData struct {
	Runs        []*models.Run `json:"runs"`
	LastUpdated time.Time     `json:"last_updated"`
}

// NewJSONStorage opens the history at path, loading it when the file exists.
func NewJSONStorage(path string, maxRuns int) (*JSONStorage, error) {
	if maxRuns < 0 {
		return nil, fmt.Errorf("max runs must be >= 0, got %d", maxRuns)
	}
	s := &JSONStorage{
		filepath: path,
		maxRuns:  maxRuns,
		data:     &storageData{},
	}

	if err := s.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading storage: %w", err)
	}
	return s, nil
}

// Load replaces the in-memory history with the file contents.
func (s *JSONStorage) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.filepath) // #nosec G304 -- path comes from config
	if err != nil {
		return err
	}

	var data storageData
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("decoding %s: %w", s.filepath, err)
	}
	data.Runs = s.trim(data.Runs)
	s.data = &data
	return nil
}

// SaveRun appends run and persists the history. The in-memory history only
// changes once the file has been written.
func (s *JSONStorage) SaveRun(run *models.Run) error {
	if run == nil || run.ID == "" {
		return errors.New("run with an id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	runs := append(slices.Clone(s.data.Runs), cloneRun(run))
	next := &storageData{Runs: s.trim(runs), LastUpdated: time.Now().UTC()}
	if err := s.save(next); err != nil {
		return err
	}
	s.data = next
	return nil
}

// trim drops the oldest runs beyond maxRuns.
func (s *JSONStorage) trim(runs []*models.Run) []*models.Run {
	if s.maxRuns > 0 && len(runs) > s.maxRuns {
		return append([]*models.Run(nil), runs[len(runs)-s.maxRuns:]...)
	}
	return runs
}

// save writes data through a temp file and an atomic rename. Caller holds
// the lock.
func (s *JSONStorage) save(data *storageData) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding runs: %w", err)
	}

	dir := filepath.Dir(s.filepath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating storage directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.filepath)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.filepath); err != nil {
		return fmt.Errorf("replacing %s: %w", s.filepath, err)
	}
	return nil
}

// LatestRun returns the newest run.
func (s *JSONStorage) LatestRun() (*models.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.data.Runs) == 0 {
		return nil, ErrRunNotFound
	}
	return cloneRun(s.data.Runs[len(s.data.Runs)-1]), nil
}

// GetRun returns the run with the given id.
func (s *JSONStorage) GetRun(id string) (*models.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.data.Runs) - 1; i >= 0; i-- {
		if s.data.Runs[i].ID == id {
			return cloneRun(s.data.Runs[i]), nil
		}
	}
	return nil, fmt.Errorf("run %s: %w", id, ErrRunNotFound)
}

// ListRuns returns summaries, newest first.
func (s *JSONStorage) ListRuns() []models.RunSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.RunSummary, 0, len(s.data.Runs))
	for i := len(s.data.Runs) - 1; i >= 0; i-- {
		out = append(out, s.data.Runs[i].Summary())
	}
	return out
}
