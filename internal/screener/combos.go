package screener

import (
	"math"

	"github.com/eddiefleurent/pmcc_screener/internal/models"
)

// contractMultiplier converts option points into dollars per contract.
const contractMultiplier = 100.0

// Intrinsic returns max(spot-strike, 0), or NaN when spot is unknown.
func Intrinsic(spot, strike float64) float64 {
	if !(spot > 0) {
		return math.NaN()
	}
	return math.Max(spot-strike, 0)
}

// CushionPct is the distance from spot up to the short strike, in percent of spot.
func CushionPct(shortStrike, spot float64) float64 {
	if !(spot > 0) {
		return math.NaN()
	}
	return (shortStrike - spot) / spot * 100
}

// ITMClosePL models closing both legs with spot at the short strike near
// expiry: the long leg keeps (short strike - leap strike) of intrinsic and
// the buffer absorbs the cost of buying the short back. Dollars per spread.
func ITMClosePL(leapStrike, leapMid, shortStrike, shortMid, buffer float64) float64 {
	return ((shortStrike - leapStrike) - buffer + shortMid - leapMid) * contractMultiplier
}

// ROIPct returns pl as a percentage of the net debit in dollars. It is NaN
// when the debit is not positive.
func ROIPct(pl, netDebit float64) float64 {
	if !(netDebit > 0) {
		return math.NaN()
	}
	return pl / (netDebit * contractMultiplier) * 100
}

// BuildCombo derives the metrics of one pair. It returns false when either
// leg is unpriced or the cushion does not exceed minCushionPct.
func BuildCombo(l, s *models.Candidate, cfg SelectionConfig) (models.Combo, bool) {
	if l.Mid <= 0 || l.Strike <= 0 || s.Mid <= 0 || s.Strike <= 0 {
		return models.Combo{}, false
	}
	spot := l.Spot
	cushion := CushionPct(s.Strike, spot)
	if !(cushion > cfg.MinCushionPct) {
		return models.Combo{}, false
	}

	intrinsic := Intrinsic(spot, l.Strike)
	netDebit := l.Mid - s.Mid
	pl := ITMClosePL(l.Strike, l.Mid, s.Strike, s.Mid, cfg.EarlyCloseBuffer)

	return models.Combo{
		Ticker:           l.Ticker,
		Spot:             spot,
		LeapExpiry:       l.Expiry,
		LeapStrike:       l.Strike,
		LeapMid:          l.Mid,
		LeapDelta:        models.NaNIfNil(l.Delta),
		LeapIV:           models.NaNIfNil(l.IV),
		LeapScore:        models.NaNIfNil(l.Score),
		LeapIntrinsicNow: intrinsic,
		LeapIntrinsicPct: intrinsic / l.Mid * 100,
		ShortExpiry:      s.Expiry,
		ShortStrike:      s.Strike,
		ShortMid:         s.Mid,
		ShortDelta:       models.NaNIfNil(s.Delta),
		ShortIV:          models.NaNIfNil(s.IV),
		CushionPct:       cushion,
		NetDebit:         netDebit,
		ITMClosePL:       pl,
		ITMCloseROIPct:   ROIPct(pl, netDebit),
		Metric1:          s.Strike / l.Strike * 100,
		Metric2:          s.Mid / l.Mid * 100,
	}, true
}

// BuildCombos pairs every LEAPS candidate with every short candidate of the
// same ticker, in LEAPS-major order, keeping the pairs BuildCombo accepts.
func BuildCombos(leaps, shorts []models.Candidate, cfg SelectionConfig) []models.Combo {
	if len(leaps) == 0 || len(shorts) == 0 {
		return nil
	}
	combos := make([]models.Combo, 0, len(leaps)*len(shorts))
	for i := range leaps {
		for j := range shorts {
			if combo, ok := BuildCombo(&leaps[i], &shorts[j], cfg); ok {
				combos = append(combos, combo)
			}
		}
	}
	return combos
}
