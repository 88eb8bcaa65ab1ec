package screener

import (
	"math"

	"github.com/eddiefleurent/pmcc_screener/internal/models"
)

// LEAPS composite score weights.
const (
	WeightDelta     = 0.5
	WeightIV        = 0.2
	WeightSpread    = 0.2
	WeightLiquidity = 0.1

	// IdealLeapsDelta is where DeltaScore peaks.
	IdealLeapsDelta = 0.80
	// deltaFalloff is the distance from IdealLeapsDelta at which DeltaScore reaches 0.
	deltaFalloff = 0.20
	// liquidityCap is the volume+open interest that earns a full liquidity score.
	liquidityCap = 5000.0
	minIVCap     = 1e-6
)

// DeltaScore peaks at 1 for delta 0.80 and decays linearly to 0 at ±0.20.
func DeltaScore(delta float64) float64 {
	return 1 - math.Min(1, math.Abs(delta-IdealLeapsDelta)/deltaFalloff)
}

// IVScore favours low implied volatility relative to maxIV.
func IVScore(iv, maxIV float64) float64 {
	return 1 - math.Min(1, iv/math.Max(maxIV, minIVCap))
}

// SpreadScore favours tight bid/ask spreads. An unpriced ask scores 0 and a
// crossed quote (bid above ask) scores as a zero spread, so the result stays
// within [0, 1].
func SpreadScore(bid, ask float64) float64 {
	spread := 1.0
	if ask > 0 {
		spread = math.Max(0, (ask-bid)/ask)
	}
	return 1 - math.Min(1, spread)
}

// LiquidityScore saturates at 5000 contracts of volume plus open interest.
func LiquidityScore(volume, openInterest int64) float64 {
	return math.Min(1, float64(volume+openInterest)/liquidityCap)
}

// CompositeScore combines the four sub-scores with their fixed weights.
func CompositeScore(deltaScore, ivScore, spreadScore, liqScore float64) float64 {
	return WeightDelta*deltaScore + WeightIV*ivScore + WeightSpread*spreadScore + WeightLiquidity*liqScore
}

// ScoreLeaps scores a LEAPS contract. Absent delta, IV, bid and ask count as 0.
func ScoreLeaps(c *models.OptionContract, maxIV float64) float64 {
	return CompositeScore(
		DeltaScore(c.DeltaOr(0)),
		IVScore(c.IVOr(0), maxIV),
		SpreadScore(c.BidOrZero(), c.AskOrZero()),
		LiquidityScore(c.Volume, c.OpenInterest),
	)
}
