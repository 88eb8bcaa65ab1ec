// Package models defines the option contract, candidate and combination records
// shared by the screener, its market data providers and its result sinks.
package models

// RawRow is one row of an option chain as delivered by a chain fetcher.
// Monetary and counter fields are left as the provider formatted them
// ("$1,234.50", "--", "1,024").
//
// A row with a non-empty ExpiryGroup is a label row: it carries no contract
// and names the expiry of every data row that follows it until the next label.
type RawRow struct {
	ExpiryGroup  string `json:"expirygroup,omitempty"`
	Strike       string `json:"strike,omitempty"`
	Bid          string `json:"bid,omitempty"`
	Ask          string `json:"ask,omitempty"`
	Last         string `json:"last,omitempty"`
	Volume       string `json:"volume,omitempty"`
	OpenInterest string `json:"open_interest,omitempty"`
	// DetailRef is the provider-specific key used to fetch the contract's greeks.
	DetailRef string `json:"detail_ref,omitempty"`
}

// ExpiryLabelLayout is the format of RawRow expiry labels
// ("October 17, 2025"). Providers that report ISO dates emit their labels in
// it so every chain normalizes alike.
const ExpiryLabelLayout = "January 2, 2006"

// IsLabel reports whether the row is an expiry-group marker.
func (r RawRow) IsLabel() bool {
	return r.ExpiryGroup != ""
}

// Greeks holds the enrichment values of a contract. A nil field means the
// value could not be resolved.
type Greeks struct {
	Delta *float64 `json:"delta"`
	Gamma *float64 `json:"gamma"`
	Theta *float64 `json:"theta"`
	Vega  *float64 `json:"vega"`
	IV    *float64 `json:"iv"`
}

// IsZero reports whether no greek was resolved.
func (g Greeks) IsZero() bool {
	return g.Delta == nil && g.Gamma == nil && g.Theta == nil && g.Vega == nil && g.IV == nil
}

// OptionContract is the normalized form of a single call contract.
type OptionContract struct {
	Expiry string `json:"expiry"`
	// Strike is 0 when the provider's strike could not be parsed.
	Strike       float64  `json:"strike"`
	Bid          *float64 `json:"bid"`
	Ask          *float64 `json:"ask"`
	Last         *float64 `json:"last"`
	Mid          float64  `json:"mid"`
	Volume       int64    `json:"volume"`
	OpenInterest int64    `json:"open_interest"`
	DetailRef    string   `json:"detail_ref,omitempty"`
	Greeks
}

// BidOrZero returns the bid, treating an absent quote as 0.
func (c *OptionContract) BidOrZero() float64 { return valueOr(c.Bid, 0) }

// AskOrZero returns the ask, treating an absent quote as 0.
func (c *OptionContract) AskOrZero() float64 { return valueOr(c.Ask, 0) }

// DeltaOr returns the delta or def when it is absent.
func (c *OptionContract) DeltaOr(def float64) float64 { return valueOr(c.Delta, def) }

// IVOr returns the implied volatility or def when it is absent.
func (c *OptionContract) IVOr(def float64) float64 { return valueOr(c.IV, def) }

// Candidate is a contract retained for a ticker, tagged with the ticker's spot.
type Candidate struct {
	OptionContract
	Ticker string   `json:"ticker"`
	Spot   float64  `json:"spot"`
	Score  *float64 `json:"score,omitempty"`
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

func valueOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}
