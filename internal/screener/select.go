package screener

import (
	"sort"

	"github.com/eddiefleurent/pmcc_screener/internal/models"
)

// SelectLeaps scores the LEAPS contracts, orders them by score (ties keep
// input order) and returns the best topN tagged with ticker and spot.
func SelectLeaps(contracts []models.OptionContract, ticker string, spot float64, cfg SelectionConfig) []models.Candidate {
	cands := tag(contracts, ticker, spot)
	for i := range cands {
		cands[i].Score = models.Float(ScoreLeaps(&cands[i].OptionContract, cfg.MaxLeapsIV))
	}
	sort.SliceStable(cands, func(i, j int) bool {
		return compareDesc(*cands[i].Score, *cands[j].Score) < 0
	})
	return truncate(cands, cfg.TopNLeaps)
}

// SelectShorts orders short-call contracts by mid (desc), IV (desc) and
// delta (asc), with absent values last, and returns the first topN.
func SelectShorts(contracts []models.OptionContract, ticker string, spot float64, cfg SelectionConfig) []models.Candidate {
	cands := tag(contracts, ticker, spot)
	sort.SliceStable(cands, func(i, j int) bool {
		a, b := &cands[i], &cands[j]
		if c := compareDesc(a.Mid, b.Mid); c != 0 {
			return c < 0
		}
		if c := compareDesc(models.NaNIfNil(a.IV), models.NaNIfNil(b.IV)); c != 0 {
			return c < 0
		}
		return compareAsc(models.NaNIfNil(a.Delta), models.NaNIfNil(b.Delta)) < 0
	})
	return truncate(cands, cfg.TopNShorts)
}

func tag(contracts []models.OptionContract, ticker string, spot float64) []models.Candidate {
	cands := make([]models.Candidate, len(contracts))
	for i, c := range contracts {
		cands[i] = models.Candidate{OptionContract: c, Ticker: ticker, Spot: spot}
	}
	return cands
}

func truncate(cands []models.Candidate, n int) []models.Candidate {
	if n <= 0 {
		return cands[:0]
	}
	if len(cands) > n {
		return cands[:n]
	}
	return cands
}
