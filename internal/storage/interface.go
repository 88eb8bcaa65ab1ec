package storage

import (
	"slices"

	"github.com/eddiefleurent/pmcc_screener/internal/models"
)

// Interface defines the contract for screening run persistence.
//
// Implementations must be safe for concurrent use. Returned runs are copies;
// mutating them never changes what is stored.
type Interface interface {
	// SaveRun appends a run to the history, evicting the oldest runs beyond
	// the retention limit.
	SaveRun(run *models.Run) error

	// LatestRun returns the most recently saved run, or ErrRunNotFound.
	LatestRun() (*models.Run, error)

	// GetRun returns the run with the given id, or ErrRunNotFound.
	GetRun(id string) (*models.Run, error)

	// ListRuns returns run summaries, newest first.
	ListRuns() []models.RunSummary
}

// NewStorage creates a new storage implementation (currently JSON-based)
// keeping at most maxRuns runs. 0 keeps every run.
func NewStorage(filepath string, maxRuns int) (Interface, error) {
	s, err := NewJSONStorage(filepath, maxRuns)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Ensure JSONStorage implements Interface
var _ Interface = (*JSONStorage)(nil)

// cloneRun copies a run deeply enough that callers cannot reach stored slices.
func cloneRun(run *models.Run) *models.Run {
	if run == nil {
		return nil
	}
	out := *run
	out.Tickers = slices.Clone(run.Tickers)
	out.Combos = slices.Clone(run.Combos)
	out.Config = slices.Clone(run.Config)
	return &out
}
