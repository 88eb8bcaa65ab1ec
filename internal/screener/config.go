package screener

import "fmt"

// Ranking keys accepted by Rank.
const (
	SortMetric1 = "metric1"
	SortMetric2 = "metric2"
)

// SelectionConfig holds every threshold applied during one screening run.
type SelectionConfig struct {
	// LEAPS filters
	LeapsDeltaLow  float64 `json:"leaps_delta_low"`
	LeapsDeltaHigh float64 `json:"leaps_delta_high"`
	MaxLeapsIV     float64 `json:"max_leaps_iv"`
	LeapsMinDays   int     `json:"leaps_min_days"`

	// Short call filters
	ShortDeltaLow  float64 `json:"short_delta_low"`
	ShortDeltaHigh float64 `json:"short_delta_high"`
	ShortMinDays   int     `json:"short_min_days"`
	ShortMaxDays   int     `json:"short_max_days"`

	// Combination thresholds
	MinCushionPct    float64 `json:"min_cushion_pct"`
	EarlyCloseBuffer float64 `json:"early_close_buffer"` // $ per share paid to close an ITM short near expiry

	TopNLeaps     int                 `json:"top_n_leaps"`
	TopNShorts    int                 `json:"top_n_shorts"`
	SortKey       string              `json:"sort"`
	MissingGreeks MissingGreeksPolicy `json:"missing_greeks"`
}

// DefaultSelectionConfig returns the thresholds used when none are configured.
func DefaultSelectionConfig() SelectionConfig {
	return SelectionConfig{
		LeapsDeltaLow:    0.75,
		LeapsDeltaHigh:   0.85,
		MaxLeapsIV:       0.50,
		LeapsMinDays:     365,
		ShortDeltaLow:    0.25,
		ShortDeltaHigh:   0.40,
		ShortMinDays:     25,
		ShortMaxDays:     50,
		MinCushionPct:    2.5,
		EarlyCloseBuffer: 0.30,
		TopNLeaps:        8,
		TopNShorts:       10,
		SortKey:          SortMetric1,
		MissingGreeks:    MissingGreeksZero,
	}
}

// Validate checks that the thresholds are usable.
func (c SelectionConfig) Validate() error {
	if c.LeapsDeltaLow > c.LeapsDeltaHigh {
		return fmt.Errorf("leaps delta range [%.2f,%.2f] must have low <= high", c.LeapsDeltaLow, c.LeapsDeltaHigh)
	}
	if c.ShortDeltaLow > c.ShortDeltaHigh {
		return fmt.Errorf("short delta range [%.2f,%.2f] must have low <= high", c.ShortDeltaLow, c.ShortDeltaHigh)
	}
	if c.MaxLeapsIV <= 0 {
		return fmt.Errorf("max leaps iv must be > 0")
	}
	if c.ShortMinDays > c.ShortMaxDays {
		return fmt.Errorf("short expiry window [%d,%d] must have min <= max", c.ShortMinDays, c.ShortMaxDays)
	}
	if c.EarlyCloseBuffer < 0 {
		return fmt.Errorf("early close buffer must be >= 0")
	}
	if c.TopNLeaps <= 0 || c.TopNShorts <= 0 {
		return fmt.Errorf("top-n counts must be > 0")
	}
	if c.SortKey != SortMetric1 && c.SortKey != SortMetric2 {
		return fmt.Errorf("sort key must be %q or %q, got %q", SortMetric1, SortMetric2, c.SortKey)
	}
	if !c.MissingGreeks.Valid() {
		return fmt.Errorf("missing greeks policy must be %q or %q, got %q",
			MissingGreeksZero, MissingGreeksReject, c.MissingGreeks)
	}
	return nil
}
