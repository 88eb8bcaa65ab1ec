package models

import (
	"encoding/json"
	"math"
)

// Combo is one LEAPS leg paired with one short call of the same ticker, plus
// the metrics derived from the pair. Undefined metrics hold NaN.
type Combo struct {
	Ticker string
	Spot   float64

	LeapExpiry       string
	LeapStrike       float64
	LeapMid          float64
	LeapDelta        float64
	LeapIV           float64
	LeapScore        float64
	LeapIntrinsicNow float64
	LeapIntrinsicPct float64
	ShortExpiry      string
	ShortStrike      float64
	ShortMid         float64
	ShortDelta       float64
	ShortIV          float64
	CushionPct       float64
	NetDebit         float64 // per spread, in option points
	ITMClosePL       float64 // per spread, in dollars
	ITMCloseROIPct   float64
	Metric1          float64
	Metric2          float64
}

// comboJSON is the wire form of Combo. NaN has no JSON encoding, so every
// float travels as a nullable pointer.
type comboJSON struct {
	Ticker           string   `json:"ticker"`
	Spot             *float64 `json:"spot"`
	LeapExpiry       string   `json:"leap_expiry"`
	LeapStrike       *float64 `json:"leap_strike"`
	LeapMid          *float64 `json:"leap_mid"`
	LeapDelta        *float64 `json:"leap_delta"`
	LeapIV           *float64 `json:"leap_iv"`
	LeapScore        *float64 `json:"leap_score"`
	LeapIntrinsicNow *float64 `json:"leap_intrinsic_now"`
	LeapIntrinsicPct *float64 `json:"leap_intrinsic_pct_of_price"`
	ShortExpiry      string   `json:"short_expiry"`
	ShortStrike      *float64 `json:"short_strike"`
	ShortMid         *float64 `json:"short_mid"`
	ShortDelta       *float64 `json:"short_delta"`
	ShortIV          *float64 `json:"short_iv"`
	CushionPct       *float64 `json:"cushion_to_short_strike_pct"`
	NetDebit         *float64 `json:"net_debit_per_spread"`
	ITMClosePL       *float64 `json:"itm_close_pl_per_spread_$"`
	ITMCloseROIPct   *float64 `json:"itm_close_roi_pct_on_net"`
	Metric1          *float64 `json:"metric1_short_over_leap_strike_pct"`
	Metric2          *float64 `json:"metric2_premium_over_leap_price_pct"`
}

// MarshalJSON encodes undefined metrics as null.
func (c Combo) MarshalJSON() ([]byte, error) {
	return json.Marshal(comboJSON{
		Ticker:           c.Ticker,
		Spot:             finite(c.Spot),
		LeapExpiry:       c.LeapExpiry,
		LeapStrike:       finite(c.LeapStrike),
		LeapMid:          finite(c.LeapMid),
		LeapDelta:        finite(c.LeapDelta),
		LeapIV:           finite(c.LeapIV),
		LeapScore:        finite(c.LeapScore),
		LeapIntrinsicNow: finite(c.LeapIntrinsicNow),
		LeapIntrinsicPct: finite(c.LeapIntrinsicPct),
		ShortExpiry:      c.ShortExpiry,
		ShortStrike:      finite(c.ShortStrike),
		ShortMid:         finite(c.ShortMid),
		ShortDelta:       finite(c.ShortDelta),
		ShortIV:          finite(c.ShortIV),
		CushionPct:       finite(c.CushionPct),
		NetDebit:         finite(c.NetDebit),
		ITMClosePL:       finite(c.ITMClosePL),
		ITMCloseROIPct:   finite(c.ITMCloseROIPct),
		Metric1:          finite(c.Metric1),
		Metric2:          finite(c.Metric2),
	})
}

// UnmarshalJSON restores null metrics as NaN.
func (c *Combo) UnmarshalJSON(b []byte) error {
	var w comboJSON
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*c = Combo{
		Ticker:           w.Ticker,
		Spot:             orNaN(w.Spot),
		LeapExpiry:       w.LeapExpiry,
		LeapStrike:       orNaN(w.LeapStrike),
		LeapMid:          orNaN(w.LeapMid),
		LeapDelta:        orNaN(w.LeapDelta),
		LeapIV:           orNaN(w.LeapIV),
		LeapScore:        orNaN(w.LeapScore),
		LeapIntrinsicNow: orNaN(w.LeapIntrinsicNow),
		LeapIntrinsicPct: orNaN(w.LeapIntrinsicPct),
		ShortExpiry:      w.ShortExpiry,
		ShortStrike:      orNaN(w.ShortStrike),
		ShortMid:         orNaN(w.ShortMid),
		ShortDelta:       orNaN(w.ShortDelta),
		ShortIV:          orNaN(w.ShortIV),
		CushionPct:       orNaN(w.CushionPct),
		NetDebit:         orNaN(w.NetDebit),
		ITMClosePL:       orNaN(w.ITMClosePL),
		ITMCloseROIPct:   orNaN(w.ITMCloseROIPct),
		Metric1:          orNaN(w.Metric1),
		Metric2:          orNaN(w.Metric2),
	}
	return nil
}

// NaNIfNil returns *p, or NaN when p is nil.
func NaNIfNil(p *float64) float64 {
	return orNaN(p)
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func orNaN(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}
