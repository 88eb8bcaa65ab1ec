package models

import (
	"encoding/json"
	"time"
)

// LegStats counts how many contracts of one leg survived each stage.
type LegStats struct {
	Rows      int `json:"rows"`
	Contracts int `json:"contracts"`
	// Malformed counts non-placeholder cells that failed to parse.
	Malformed int `json:"malformed_fields"`
	// UnparseableExpiry counts contracts dropped because their expiry label
	// is not a recognised date.
	UnparseableExpiry  int `json:"unparseable_expiry"`
	InWindow           int `json:"in_window"`
	EnrichmentFailures int `json:"enrichment_failures"`
	Filtered           int `json:"filtered"`
	Retained           int `json:"retained"`
}

// TickerReport summarises the screening of a single ticker.
type TickerReport struct {
	Ticker string   `json:"ticker"`
	Spot   float64  `json:"spot"`
	Leaps  LegStats `json:"leaps"`
	Shorts LegStats `json:"shorts"`
	Combos int      `json:"combos"`
	// Error is set when the ticker could not be screened.
	Error string `json:"error,omitempty"`
}

// Failed reports whether the ticker hit a fatal condition.
func (r TickerReport) Failed() bool {
	return r.Error != ""
}

// Run is the outcome of one screening run across all requested tickers.
type Run struct {
	ID         string          `json:"id"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	SortKey    string          `json:"sort_key"`
	Config     json.RawMessage `json:"config,omitempty"` // selection thresholds and windows used
	Tickers    []TickerReport  `json:"tickers"`
	Combos     []Combo         `json:"combos"`
}

// Failures returns the reports of tickers that could not be screened.
func (r *Run) Failures() []TickerReport {
	var out []TickerReport
	for _, t := range r.Tickers {
		if t.Failed() {
			out = append(out, t)
		}
	}
	return out
}

// RunSummary is the listing form of a Run.
type RunSummary struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	SortKey    string    `json:"sort_key"`
	Tickers    int       `json:"tickers"`
	Failed     int       `json:"failed"`
	Combos     int       `json:"combos"`
}

// Summary returns the listing form of the run.
func (r *Run) Summary() RunSummary {
	return RunSummary{
		ID:         r.ID,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		SortKey:    r.SortKey,
		Tickers:    len(r.Tickers),
		Failed:     len(r.Failures()),
		Combos:     len(r.Combos),
	}
}
