package screener

import (
	"math"
	"strings"
	"time"

	"github.com/eddiefleurent/pmcc_screener/internal/models"
)

// ParseExpiry parses an expiry label as midnight UTC of that date.
// models.ExpiryLabelLayout is the only accepted format.
func ParseExpiry(text string) (time.Time, bool) {
	text = strings.TrimSpace(text)
	switch strings.ToLower(text) {
	case "", "--", "none":
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(models.ExpiryLabelLayout, text, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// DaysUntil returns the whole days from now to expiry, rounded down.
func DaysUntil(expiry, now time.Time) int {
	return int(math.Floor(expiry.Sub(now.UTC()).Hours() / 24))
}

// WithinWindow reports whether expiryText falls at least minDays and, when
// maxDays is given, at most maxDays[0] days after now. Unparseable text is
// never within the window.
func WithinWindow(expiryText string, now time.Time, minDays int, maxDays ...int) bool {
	expiry, ok := ParseExpiry(expiryText)
	if !ok {
		return false
	}
	days := DaysUntil(expiry, now)
	if len(maxDays) == 0 {
		return days >= minDays
	}
	return minDays <= days && days <= maxDays[0]
}

// FilterByExpiry keeps the contracts whose expiry passes WithinWindow.
// The second result counts contracts whose expiry label could not be parsed.
func FilterByExpiry(contracts []models.OptionContract, now time.Time, minDays int, maxDays ...int) ([]models.OptionContract, int) {
	kept := make([]models.OptionContract, 0, len(contracts))
	unparseable := 0
	for _, c := range contracts {
		if _, ok := ParseExpiry(c.Expiry); !ok {
			unparseable++
			continue
		}
		if WithinWindow(c.Expiry, now, minDays, maxDays...) {
			kept = append(kept, c)
		}
	}
	return kept, unparseable
}
