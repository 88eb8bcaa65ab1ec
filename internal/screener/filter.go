package screener

import "github.com/eddiefleurent/pmcc_screener/internal/models"

// MissingGreeksPolicy decides how contracts without resolved greeks are
// treated by the delta/IV filter.
type MissingGreeksPolicy string

const (
	// MissingGreeksZero treats an absent delta as 0.0. An absent IV never
	// satisfies the LEAPS IV cap.
	MissingGreeksZero MissingGreeksPolicy = "zero"
	// MissingGreeksReject excludes any contract lacking a greek the filter reads.
	MissingGreeksReject MissingGreeksPolicy = "reject"
)

// Valid reports whether p is a known policy.
func (p MissingGreeksPolicy) Valid() bool {
	return p == MissingGreeksZero || p == MissingGreeksReject
}

// inRange is inclusive on both bounds.
func inRange(v, low, high float64) bool {
	return v >= low && v <= high
}

// KeepLeaps reports whether a LEAPS contract passes the delta range and IV cap.
func (c SelectionConfig) KeepLeaps(oc *models.OptionContract) bool {
	if oc.Delta == nil && c.MissingGreeks == MissingGreeksReject {
		return false
	}
	if oc.IV == nil {
		return false
	}
	return inRange(oc.DeltaOr(0), c.LeapsDeltaLow, c.LeapsDeltaHigh) && *oc.IV <= c.MaxLeapsIV
}

// KeepShort reports whether a short-call contract passes the delta range.
func (c SelectionConfig) KeepShort(oc *models.OptionContract) bool {
	if oc.Delta == nil && c.MissingGreeks == MissingGreeksReject {
		return false
	}
	return inRange(oc.DeltaOr(0), c.ShortDeltaLow, c.ShortDeltaHigh)
}

// FilterLeaps returns the LEAPS contracts that pass KeepLeaps, in input order.
func (c SelectionConfig) FilterLeaps(contracts []models.OptionContract) []models.OptionContract {
	return filter(contracts, c.KeepLeaps)
}

// FilterShorts returns the short-call contracts that pass KeepShort, in input order.
func (c SelectionConfig) FilterShorts(contracts []models.OptionContract) []models.OptionContract {
	return filter(contracts, c.KeepShort)
}

func filter(contracts []models.OptionContract, keep func(*models.OptionContract) bool) []models.OptionContract {
	out := make([]models.OptionContract, 0, len(contracts))
	for i := range contracts {
		if keep(&contracts[i]) {
			out = append(out, contracts[i])
		}
	}
	return out
}
