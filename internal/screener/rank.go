package screener

import (
	"math"
	"sort"

	"github.com/eddiefleurent/pmcc_screener/internal/models"
)

// Rank flattens the per-ticker combo sets in the given order and sorts them
// for sortKey. metric2 ranks by premium over LEAPS price then short mid;
// every other key ranks by ITM-close ROI then metric2. NaN sorts last.
func Rank(perTicker [][]models.Combo, sortKey string) []models.Combo {
	n := 0
	for _, set := range perTicker {
		n += len(set)
	}
	all := make([]models.Combo, 0, n)
	for _, set := range perTicker {
		all = append(all, set...)
	}

	primary, secondary := rankKeys(sortKey)
	sort.SliceStable(all, func(i, j int) bool {
		if c := compareDesc(primary(&all[i]), primary(&all[j])); c != 0 {
			return c < 0
		}
		return compareDesc(secondary(&all[i]), secondary(&all[j])) < 0
	})
	return all
}

type comboKey func(*models.Combo) float64

func rankKeys(sortKey string) (primary, secondary comboKey) {
	if sortKey == SortMetric2 {
		return func(c *models.Combo) float64 { return c.Metric2 },
			func(c *models.Combo) float64 { return c.ShortMid }
	}
	return func(c *models.Combo) float64 { return c.ITMCloseROIPct },
		func(c *models.Combo) float64 { return c.Metric2 }
}

// compareDesc orders a before b (-1) when a is larger; NaN is always last.
func compareDesc(a, b float64) int {
	if c, decided := compareNaN(a, b); decided {
		return c
	}
	switch {
	case a > b:
		return -1
	case a < b:
		return 1
	}
	return 0
}

// compareAsc orders a before b (-1) when a is smaller; NaN is always last.
func compareAsc(a, b float64) int {
	if c, decided := compareNaN(a, b); decided {
		return c
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareNaN(a, b float64) (int, bool) {
	an, bn := math.IsNaN(a), math.IsNaN(b)
	switch {
	case an && bn:
		return 0, true
	case an:
		return 1, true
	case bn:
		return -1, true
	}
	return 0, false
}
