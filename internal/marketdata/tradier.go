package marketdata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/eddiefleurent/pmcc_screener/internal/models"
)

// TradierProvider serves chains from the Tradier market data API. Greeks
// arrive with the chain, so FetchGreeks answers from what FetchChain saw.
//
// Captured greeks are held per ticker and expiration. Refetching an
// expiration replaces its entry and expirations no longer listed for the
// ticker are dropped, so the cache never outgrows the listed chains of the
// tickers screened.
type TradierProvider struct {
	client  *http.Client
	apiKey  string
	baseURL string

	mu     sync.RWMutex
	greeks map[string]map[string]symbolGreeks // ticker -> expiration -> symbols
}

// symbolGreeks maps option symbols to their greeks.
type symbolGreeks map[string]models.Greeks

// Ensure TradierProvider implements Provider at compile time.
var _ Provider = (*TradierProvider)(nil)

// NewTradierProvider creates a Tradier provider. An empty baseURL selects the
// production or sandbox host.
func NewTradierProvider(apiKey string, sandbox bool, baseURL string, client *http.Client) *TradierProvider {
	if baseURL == "" {
		if sandbox {
			baseURL = "https://sandbox.tradier.com/v1"
		} else {
			baseURL = "https://api.tradier.com/v1"
		}
	}
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &TradierProvider{
		client:  client,
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		greeks:  make(map[string]map[string]symbolGreeks),
	}
}

// ============ EXACT API Response Structures ============

// Handle single-object vs array responses from Tradier
type singleOrArray[T any] []T

func (s *singleOrArray[T]) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '[' {
		return json.Unmarshal(b, (*[]T)(s))
	}
	var one T
	if err := json.Unmarshal(b, &one); err != nil {
		return err
	}
	*s = append(*s, one)
	return nil
}

type tradierQuotesResponse struct {
	Quotes struct {
		Quote singleOrArray[tradierQuote] `json:"quote"`
	} `json:"quotes"`
}

type tradierQuote struct {
	Symbol    string  `json:"symbol"`
	Last      float64 `json:"last"`
	Bid       float64 `json:"bid"`
	Ask       float64 `json:"ask"`
	PrevClose float64 `json:"prevclose"`
}

type tradierExpirationsResponse struct {
	Expirations *struct {
		Date singleOrArray[string] `json:"date"`
	} `json:"expirations"`
}

type tradierChainResponse struct {
	Options *struct {
		Option singleOrArray[tradierOption] `json:"option"`
	} `json:"options"`
}

type tradierOption struct {
	Greeks         *tradierGreeks `json:"greeks,omitempty"`
	Symbol         string         `json:"symbol"`
	OptionType     string         `json:"option_type"`
	ExpirationDate string         `json:"expiration_date"`
	Strike         float64        `json:"strike"`
	Bid            *float64       `json:"bid"`
	Ask            *float64       `json:"ask"`
	Last           *float64       `json:"last"`
	Volume         int64          `json:"volume"`
	OpenInterest   int64          `json:"open_interest"`
}

type tradierGreeks struct {
	Delta  float64 `json:"delta"`
	Gamma  float64 `json:"gamma"`
	Theta  float64 `json:"theta"`
	Vega   float64 `json:"vega"`
	MidIV  float64 `json:"mid_iv"`
	SmvVol float64 `json:"smv_vol"`
}

func (g *tradierGreeks) toModel() models.Greeks {
	out := models.Greeks{
		Delta: models.Float(g.Delta),
		Gamma: models.Float(g.Gamma),
		Theta: models.Float(g.Theta),
		Vega:  models.Float(g.Vega),
	}
	switch {
	case g.MidIV > 0:
		out.IV = models.Float(g.MidIV)
	case g.SmvVol > 0:
		out.IV = models.Float(g.SmvVol)
	}
	return out
}

// ============ API Methods ============

func (t *TradierProvider) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+t.apiKey)
	header.Set("Accept", "application/json")
	header.Set("User-Agent", "pmcc-screener/1.0 (+tradier)")
	return getJSON(ctx, t.client, t.baseURL+path+"?"+params.Encode(), header, out)
}

// spot returns the last trade price, falling back to the quote midpoint and
// the previous close. 0 means no usable price.
func (t *TradierProvider) spot(ctx context.Context, symbol string) (float64, error) {
	params := url.Values{}
	params.Set("symbols", symbol)
	params.Set("greeks", "false")
	var resp tradierQuotesResponse
	if err := t.get(ctx, "/markets/quotes", params, &resp); err != nil {
		return 0, err
	}
	if len(resp.Quotes.Quote) == 0 {
		return 0, nil
	}
	q := resp.Quotes.Quote[0]
	switch {
	case q.Last > 0:
		return q.Last, nil
	case q.Bid > 0 && q.Ask > 0:
		return (q.Bid + q.Ask) / 2, nil
	default:
		return q.PrevClose, nil
	}
}

func (t *TradierProvider) expirations(ctx context.Context, symbol string) ([]string, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("includeAllRoots", "true")
	params.Set("strikes", "false")
	var resp tradierExpirationsResponse
	if err := t.get(ctx, "/markets/options/expirations", params, &resp); err != nil {
		return nil, err
	}
	if resp.Expirations == nil {
		return nil, nil
	}
	return resp.Expirations.Date, nil
}

func (t *TradierProvider) chain(ctx context.Context, symbol, expiration string) ([]tradierOption, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("expiration", expiration)
	params.Set("greeks", "true")
	var resp tradierChainResponse
	if err := t.get(ctx, "/markets/options/chains", params, &resp); err != nil {
		return nil, err
	}
	if resp.Options == nil {
		return nil, nil
	}
	return resp.Options.Option, nil
}

// FetchChain lists the expirations inside the request window and returns
// their contracts grouped under expiry label rows. Moneyness is judged
// against the quoted spot.
func (t *TradierProvider) FetchChain(ctx context.Context, req ChainRequest) (*Chain, error) {
	spot, err := t.spot(ctx, req.Ticker)
	if err != nil {
		return nil, fmt.Errorf("tradier quote %s: %w", req.Ticker, err)
	}
	dates, err := t.expirations(ctx, req.Ticker)
	if err != nil {
		return nil, fmt.Errorf("tradier expirations %s: %w", req.Ticker, err)
	}

	t.pruneGreeks(req.Ticker, dates)

	chain := &Chain{Spot: spot}
	for _, date := range dates {
		if (req.From != "" && date < req.From) || (req.To != "" && date > req.To) {
			continue
		}
		expiry, err := time.Parse(DateLayout, date)
		if err != nil {
			continue
		}
		options, err := t.chain(ctx, req.Ticker, date)
		if err != nil {
			return nil, fmt.Errorf("tradier chain %s %s: %w", req.Ticker, date, err)
		}

		t.storeGreeks(req.Ticker, date, options)

		label := false
		for i := range options {
			o := &options[i]
			if !MatchesCallPut(o.OptionType, req.CallPut) || !MatchesMoney(o.OptionType, o.Strike, spot, req.Money) {
				continue
			}
			if !label {
				chain.Rows = append(chain.Rows, models.RawRow{ExpiryGroup: expiry.Format(models.ExpiryLabelLayout)})
				label = true
			}
			chain.Rows = append(chain.Rows, models.RawRow{
				Strike:       strconv.FormatFloat(o.Strike, 'f', -1, 64),
				Bid:          formatPrice(o.Bid),
				Ask:          formatPrice(o.Ask),
				Last:         formatPrice(o.Last),
				Volume:       strconv.FormatInt(o.Volume, 10),
				OpenInterest: strconv.FormatInt(o.OpenInterest, 10),
				DetailRef:    o.Symbol,
			})
		}
	}
	return chain, nil
}

// FetchGreeks returns the greeks captured for an option symbol by an earlier
// FetchChain, or ErrGreeksUnavailable.
func (t *TradierProvider) FetchGreeks(ctx context.Context, ticker, ref string) (models.Greeks, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, book := range t.greeks[ticker] {
		if g, ok := book[ref]; ok {
			return g, nil
		}
	}
	return models.Greeks{}, fmt.Errorf("tradier %s: %w", ref, ErrGreeksUnavailable)
}

// storeGreeks replaces the greeks captured for one expiration of ticker.
// Every option of the expiration is kept, whatever the request's filters,
// so in- and out-of-the-money fetches of the same date do not evict each
// other.
func (t *TradierProvider) storeGreeks(ticker, expiration string, options []tradierOption) {
	book := make(symbolGreeks, len(options))
	for i := range options {
		if g := options[i].Greeks; g != nil {
			book[options[i].Symbol] = g.toModel()
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	byExpiry := t.greeks[ticker]
	if byExpiry == nil {
		byExpiry = make(map[string]symbolGreeks)
		t.greeks[ticker] = byExpiry
	}
	byExpiry[expiration] = book
}

// pruneGreeks drops the greeks of expirations no longer listed for ticker.
func (t *TradierProvider) pruneGreeks(ticker string, listed []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	byExpiry := t.greeks[ticker]
	for expiration := range byExpiry {
		if !slices.Contains(listed, expiration) {
			delete(byExpiry, expiration)
		}
	}
}


func formatPrice(p *float64) string {
	if p == nil {
		return "--"
	}
	return strconv.FormatFloat(*p, 'f', -1, 64)
}

// MatchesCallPut reports whether an option type satisfies a call/put filter.
func MatchesCallPut(optionType, want string) bool {
	switch want {
	case "", CallPutAll:
		return true
	default:
		return strings.EqualFold(optionType, want)
	}
}

// MatchesMoney reports whether a contract satisfies a moneyness filter. With
// no spot every contract matches.
func MatchesMoney(optionType string, strike, spot float64, want string) bool {
	if want == "" || want == MoneyAll || !(spot > 0) {
		return true
	}
	itm := strike < spot
	if strings.EqualFold(optionType, CallPutPut) {
		itm = strike > spot
	}
	if want == MoneyIn {
		return itm
	}
	return !itm
}
