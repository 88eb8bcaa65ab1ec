// Package mock provides a deterministic synthetic market data provider for
// demos and tests. Prices and greeks come from a Black-Scholes model whose
// spot and volatility are derived from a hash of the ticker, so the same
// ticker always yields the same chain for a given clock.
package mock

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/shopspring/decimal"

	"github.com/eddiefleurent/pmcc_screener/internal/marketdata"
	"github.com/eddiefleurent/pmcc_screener/internal/models"
	"github.com/eddiefleurent/pmcc_screener/internal/util"
)

const (
	minYears         = 1.0 / 365.0
	defaultHorizon   = 2 // years listed when a request has no upper bound
	strikeRangeRatio = 0.5
)

// DataProvider generates option chains with monthly expirations on the third
// Friday of each month.
type DataProvider struct {
	now func() time.Time
}

// Ensure DataProvider implements marketdata.Provider at compile time.
var _ marketdata.Provider = (*DataProvider)(nil)

// Option configures a DataProvider.
type Option func(*DataProvider)

// WithClock fixes the time used for time-to-expiry.
func WithClock(now func() time.Time) Option {
	return func(d *DataProvider) {
		if now != nil {
			d.now = now
		}
	}
}

// NewDataProvider creates a synthetic provider.
func NewDataProvider(opts ...Option) *DataProvider {
	d := &DataProvider{now: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Spot returns the synthetic price of a ticker, between 20 and 500.
func Spot(ticker string) float64 {
	h := xxhash.Sum64String(strings.ToUpper(ticker))
	return 20 + float64(h%480) + float64((h>>16)%100)/100
}

// Volatility returns the synthetic implied volatility of a ticker, between 0.20 and 0.44.
func Volatility(ticker string) float64 {
	h := xxhash.Sum64String("iv:" + strings.ToUpper(ticker))
	return 0.20 + float64(h%25)/100
}

func strikeStep(spot float64) float64 {
	switch {
	case spot < 50:
		return 1
	case spot < 200:
		return 5
	default:
		return 10
	}
}

// thirdFriday returns the third Friday of t's month.
func thirdFriday(year int, month time.Month) time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	offset := (int(time.Friday) - int(first.Weekday()) + 7) % 7
	return first.AddDate(0, 0, offset+14)
}

// expirations lists the monthly expirations inside [from, to].
func expirations(from, to time.Time) []time.Time {
	var out []time.Time
	for y, m := from.Year(), from.Month(); ; {
		exp := thirdFriday(y, m)
		if exp.After(to) {
			return out
		}
		if !exp.Before(from) {
			out = append(out, exp)
		}
		m++
		if m > time.December {
			m = time.January
			y++
		}
	}
}

func (d *DataProvider) window(req marketdata.ChainRequest) (time.Time, time.Time, error) {
	now := d.now().UTC()
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	to := from.AddDate(defaultHorizon, 0, 0)
	var err error
	if req.From != "" {
		if from, err = time.Parse(marketdata.DateLayout, req.From); err != nil {
			return from, to, fmt.Errorf("invalid from date %q: %w", req.From, err)
		}
	}
	if req.To != "" {
		if to, err = time.Parse(marketdata.DateLayout, req.To); err != nil {
			return from, to, fmt.Errorf("invalid to date %q: %w", req.To, err)
		}
	}
	return from, to, nil
}

// FetchChain generates the calls and puts of every monthly expiration in the
// request window, filtered by type and moneyness.
func (d *DataProvider) FetchChain(ctx context.Context, req marketdata.ChainRequest) (*marketdata.Chain, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	from, to, err := d.window(req)
	if err != nil {
		return nil, err
	}

	spot := Spot(req.Ticker)
	step := strikeStep(spot)
	low := math.Max(step, math.Floor(spot*(1-strikeRangeRatio)/step)*step)
	high := math.Ceil(spot*(1+strikeRangeRatio)/step) * step

	chain := &marketdata.Chain{Spot: spot}
	for _, exp := range expirations(from, to) {
		chain.Rows = append(chain.Rows, models.RawRow{ExpiryGroup: exp.Format(models.ExpiryLabelLayout)})
		for strike := low; strike <= high; strike += step {
			for _, optType := range []string{marketdata.CallPutCall, marketdata.CallPutPut} {
				if !marketdata.MatchesCallPut(optType, req.CallPut) ||
					!marketdata.MatchesMoney(optType, strike, spot, req.Money) {
					continue
				}
				symbol := OSISymbol(req.Ticker, exp, optType, strike)
				price := d.price(req.Ticker, exp, optType, strike)
				spread := math.Max(0.05, price*0.02)
				bid := math.Max(util.PennyTick, util.RoundPremium(price-spread/2))
				ask := util.RoundPremium(price + spread/2)
				h := xxhash.Sum64String(symbol)
				chain.Rows = append(chain.Rows, models.RawRow{
					Strike:       decimal.NewFromFloat(strike).StringFixed(2),
					Bid:          dollars(bid),
					Ask:          dollars(ask),
					Last:         dollars(util.RoundPremium(price)),
					Volume:       strconv.FormatUint(h%5000, 10),
					OpenInterest: strconv.FormatUint((h>>20)%20000, 10),
					DetailRef:    symbol,
				})
			}
		}
	}
	return chain, nil
}

// dollars formats a premium the way chain pages quote it.
func dollars(v float64) string {
	return "$" + decimal.NewFromFloat(v).StringFixed(2)
}

// FetchGreeks computes the greeks of the contract named by an OSI symbol.
func (d *DataProvider) FetchGreeks(ctx context.Context, ticker, ref string) (models.Greeks, error) {
	if err := ctx.Err(); err != nil {
		return models.Greeks{}, err
	}
	underlying, exp, optType, strike, ok := ParseOSI(ref)
	if !ok {
		return models.Greeks{}, fmt.Errorf("mock %q: %w", ref, marketdata.ErrGreeksUnavailable)
	}
	q := d.quote(underlying, exp, optType, strike)
	return models.Greeks{
		Delta: models.Float(q.delta),
		Gamma: models.Float(q.gamma),
		Theta: models.Float(q.theta),
		Vega:  models.Float(q.vega),
		IV:    models.Float(Volatility(underlying)),
	}, nil
}

type bsQuote struct {
	price, delta, gamma, theta, vega float64
}

func normCDF(x float64) float64 {
	return 0.5 * (1 + math.Erf(x/math.Sqrt2))
}

func normPDF(x float64) float64 {
	return math.Exp(-x*x/2) / math.Sqrt(2*math.Pi)
}

// quote prices a European option with zero rates.
func (d *DataProvider) quote(ticker string, exp time.Time, optType string, strike float64) bsQuote {
	s := Spot(ticker)
	vol := Volatility(ticker)
	years := math.Max(minYears, exp.Sub(d.now().UTC()).Hours()/24/365)
	sqrtT := math.Sqrt(years)
	d1 := (math.Log(s/strike) + 0.5*vol*vol*years) / (vol * sqrtT)
	d2 := d1 - vol*sqrtT

	q := bsQuote{
		gamma: normPDF(d1) / (s * vol * sqrtT),
		theta: -s * normPDF(d1) * vol / (2 * sqrtT) / 365,
		vega:  s * normPDF(d1) * sqrtT / 100,
	}
	if optType == marketdata.CallPutPut {
		q.price = strike*normCDF(-d2) - s*normCDF(-d1)
		q.delta = normCDF(d1) - 1
	} else {
		q.price = s*normCDF(d1) - strike*normCDF(d2)
		q.delta = normCDF(d1)
	}
	return q
}

func (d *DataProvider) price(ticker string, exp time.Time, optType string, strike float64) float64 {
	return math.Max(0.05, d.quote(ticker, exp, optType, strike).price)
}

// OSISymbol formats an OSI option symbol, e.g. SPY241220C00450000.
func OSISymbol(underlying string, exp time.Time, optType string, strike float64) string {
	typeChar := "C"
	if optType == marketdata.CallPutPut {
		typeChar = "P"
	}
	return fmt.Sprintf("%s%s%s%08d", strings.ToUpper(underlying), exp.Format("060102"), typeChar, int64(math.Round(strike*1000)))
}

// ParseOSI splits an OSI option symbol into its parts. The underlying is
// everything before the 6-digit expiration.
func ParseOSI(s string) (underlying string, exp time.Time, optType string, strike float64, ok bool) {
	s = strings.TrimSpace(s)
	// UNDERLYING + YYMMDD + P/C + 8-digit strike
	if len(s) < 16 {
		return "", time.Time{}, "", 0, false
	}
	strikeStart := len(s) - 8
	typeAt := strikeStart - 1
	dateStart := typeAt - 6
	if !isDigits(s[strikeStart:], 8) || !isDigits(s[dateStart:typeAt], 6) {
		return "", time.Time{}, "", 0, false
	}
	switch s[typeAt] {
	case 'C', 'c':
		optType = marketdata.CallPutCall
	case 'P', 'p':
		optType = marketdata.CallPutPut
	default:
		return "", time.Time{}, "", 0, false
	}
	exp, err := time.Parse("060102", s[dateStart:typeAt])
	if err != nil {
		return "", time.Time{}, "", 0, false
	}
	milli, err := strconv.ParseInt(s[strikeStart:], 10, 64)
	if err != nil {
		return "", time.Time{}, "", 0, false
	}
	underlying = s[:dateStart]
	if underlying == "" {
		return "", time.Time{}, "", 0, false
	}
	return underlying, exp, optType, float64(milli) / 1000, true
}

// isDigits checks if a string consists of exactly n digits
func isDigits(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
