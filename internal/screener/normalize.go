package screener

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/eddiefleurent/pmcc_screener/internal/models"
)

// ParseMoney parses a provider money string such as "$1,234.50".
// Placeholders ("--", "-", "") and anything unparseable yield nil.
func ParseMoney(s string) *float64 {
	v, _ := parseMoney(s)
	return v
}

// parseMoney is ParseMoney that also reports whether s was a non-placeholder
// value that failed to parse.
func parseMoney(s string) (*float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	if isPlaceholder(s) {
		return nil, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, true
	}
	f, _ := d.Float64()
	return &f, false
}

// ParseCount parses a provider counter such as "1,024". Placeholders,
// unparseable and negative values yield 0.
func ParseCount(s string) int64 {
	n, _ := parseCount(s)
	return n
}

func parseCount(s string) (int64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if isPlaceholder(s) {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0, true
	}
	return n, false
}

func isPlaceholder(s string) bool {
	return s == "" || s == "--" || s == "-"
}

// Mid returns (bid+ask)/2 with an absent side counted as 0.
func Mid(bid, ask *float64) float64 {
	var b, a float64
	if bid != nil {
		b = *bid
	}
	if ask != nil {
		a = *ask
	}
	return (b + a) / 2
}

// NormalizeRows converts raw chain rows into contracts. Label rows set the
// expiry carried onto every following data row until the next label.
// Malformed fields degrade to absent (or 0) and are counted in the second
// return value; placeholders are not malformed.
func NormalizeRows(rows []models.RawRow) ([]models.OptionContract, int) {
	contracts := make([]models.OptionContract, 0, len(rows))
	currentExpiry := ""
	malformed := 0
	money := func(s string) *float64 {
		v, bad := parseMoney(s)
		if bad {
			malformed++
		}
		return v
	}
	count := func(s string) int64 {
		n, bad := parseCount(s)
		if bad {
			malformed++
		}
		return n
	}
	for _, r := range rows {
		if r.IsLabel() {
			currentExpiry = strings.TrimSpace(r.ExpiryGroup)
			continue
		}
		bid := money(r.Bid)
		ask := money(r.Ask)
		c := models.OptionContract{
			Expiry:       currentExpiry,
			Bid:          bid,
			Ask:          ask,
			Last:         money(r.Last),
			Mid:          Mid(bid, ask),
			Volume:       count(r.Volume),
			OpenInterest: count(r.OpenInterest),
			DetailRef:    r.DetailRef,
		}
		if strike := money(r.Strike); strike != nil {
			c.Strike = *strike
		}
		contracts = append(contracts, c)
	}
	return contracts, malformed
}
