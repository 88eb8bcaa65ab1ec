package marketdata

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/eddiefleurent/pmcc_screener/internal/models"
)

// Nasdaq asset classes. ETFs are served under a different class than stocks
// and the API answers with a null data object when the class is wrong.
const (
	AssetClassStocks = "stocks"
	AssetClassETF    = "etf"
)

const (
	defaultNasdaqBaseURL = "https://api.nasdaq.com"
	defaultNasdaqLimit   = 500
)

var nasdaqHeaders = http.Header{
	"User-Agent": {"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"},
	"Accept":     {"application/json, text/plain, */*"},
	"Origin":     {"https://www.nasdaq.com"},
	"Referer":    {"https://www.nasdaq.com/"},
}

var lastTradePrice = regexp.MustCompile(`\$([0-9]+(?:\.[0-9]+)?)`)

// NasdaqProvider fetches option chains and per-contract greeks from the
// public Nasdaq quote API.
type NasdaqProvider struct {
	client     *http.Client
	baseURL    string
	assetClass string
	limit      int

	mu      sync.Mutex
	classes map[string]string // ticker -> resolved asset class
}

// Ensure NasdaqProvider implements Provider at compile time.
var _ Provider = (*NasdaqProvider)(nil)

// NasdaqOption configures a NasdaqProvider.
type NasdaqOption func(*NasdaqProvider)

// WithNasdaqBaseURL points the provider at another host (tests, proxies).
func WithNasdaqBaseURL(baseURL string) NasdaqOption {
	return func(p *NasdaqProvider) {
		if baseURL != "" {
			p.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithNasdaqHTTPClient overrides the HTTP client.
func WithNasdaqHTTPClient(c *http.Client) NasdaqOption {
	return func(p *NasdaqProvider) {
		if c != nil {
			p.client = c
		}
	}
}

// WithNasdaqAssetClass sets the asset class tried first for every ticker.
func WithNasdaqAssetClass(class string) NasdaqOption {
	return func(p *NasdaqProvider) {
		if class != "" {
			p.assetClass = class
		}
	}
}

// NewNasdaqProvider creates a Nasdaq provider.
func NewNasdaqProvider(opts ...NasdaqOption) *NasdaqProvider {
	p := &NasdaqProvider{
		client:     &http.Client{Timeout: DefaultTimeout},
		baseURL:    defaultNasdaqBaseURL,
		assetClass: AssetClassStocks,
		limit:      defaultNasdaqLimit,
		classes:    make(map[string]string),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ============ Response Structures ============

type nasdaqChainResponse struct {
	Data *struct {
		TotalRecord int    `json:"totalRecord"`
		LastTrade   string `json:"lastTrade"`
		Table       *struct {
			Rows []nasdaqRow `json:"rows"`
		} `json:"table"`
	} `json:"data"`
}

// nasdaqRow cells are usually strings, but a bare number in any cell must
// not fail the whole chain.
type nasdaqRow struct {
	ExpiryGroup  flexString `json:"expirygroup"`
	Strike       flexString `json:"strike"`
	Bid          flexString `json:"c_Bid"`
	Ask          flexString `json:"c_Ask"`
	Last         flexString `json:"c_Last"`
	Volume       flexString `json:"c_Volume"`
	OpenInterest flexString `json:"c_Openinterest"`
	DrillDownURL flexString `json:"drillDownURL"`
}

type nasdaqGreekValue struct {
	Value flexFloat `json:"value"`
}

type nasdaqGreeksResponse struct {
	Data *struct {
		OptionChainCallData *struct {
			OptionChainGreeksList *struct {
				Delta  nasdaqGreekValue `json:"Delta"`
				Gamma  nasdaqGreekValue `json:"Gamma"`
				Theta  nasdaqGreekValue `json:"Theta"`
				Vega   nasdaqGreekValue `json:"Vega"`
				Impvol nasdaqGreekValue `json:"Impvol"`
			} `json:"optionChainGreeksList"`
		} `json:"optionChainCallData"`
	} `json:"data"`
}

// ============ API Methods ============

func (p *NasdaqProvider) classFor(ticker string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.classes[ticker]; ok {
		return c
	}
	return p.assetClass
}

func (p *NasdaqProvider) rememberClass(ticker, class string) {
	p.mu.Lock()
	p.classes[ticker] = class
	p.mu.Unlock()
}

func (p *NasdaqProvider) chainURL(req ChainRequest, class string) string {
	params := url.Values{}
	params.Set("assetclass", class)
	params.Set("limit", strconv.Itoa(p.limit))
	params.Set("fromdate", req.From)
	params.Set("todate", req.To)
	params.Set("excode", "oprac")
	params.Set("callput", orAll(req.CallPut))
	params.Set("money", orAll(req.Money))
	params.Set("type", "all")
	return fmt.Sprintf("%s/api/quote/%s/option-chain?%s", p.baseURL, url.PathEscape(req.Ticker), params.Encode())
}

func orAll(s string) string {
	if s == "" {
		return "all"
	}
	return s
}

// FetchChain retrieves one chain window. A null data object under the
// configured asset class is retried once as an ETF, and the class that
// answered is remembered for the ticker.
func (p *NasdaqProvider) FetchChain(ctx context.Context, req ChainRequest) (*Chain, error) {
	class := p.classFor(req.Ticker)

	var resp nasdaqChainResponse
	if err := getJSON(ctx, p.client, p.chainURL(req, class), nasdaqHeaders, &resp); err != nil {
		return nil, fmt.Errorf("nasdaq chain %s: %w", req.Ticker, err)
	}
	if resp.Data == nil && class != AssetClassETF {
		class = AssetClassETF
		resp = nasdaqChainResponse{}
		if err := getJSON(ctx, p.client, p.chainURL(req, class), nasdaqHeaders, &resp); err != nil {
			return nil, fmt.Errorf("nasdaq chain %s: %w", req.Ticker, err)
		}
	}
	if resp.Data != nil {
		p.rememberClass(req.Ticker, class)
	}

	chain := &Chain{}
	if resp.Data == nil || resp.Data.TotalRecord <= 0 {
		return chain, nil
	}
	chain.Spot = parseLastTrade(resp.Data.LastTrade)
	if resp.Data.Table == nil {
		return chain, nil
	}
	chain.Rows = make([]models.RawRow, 0, len(resp.Data.Table.Rows))
	for _, r := range resp.Data.Table.Rows {
		chain.Rows = append(chain.Rows, models.RawRow{
			ExpiryGroup:  string(r.ExpiryGroup),
			Strike:       string(r.Strike),
			Bid:          string(r.Bid),
			Ask:          string(r.Ask),
			Last:         string(r.Last),
			Volume:       string(r.Volume),
			OpenInterest: string(r.OpenInterest),
			DetailRef:    string(r.DrillDownURL),
		})
	}
	return chain, nil
}

// parseLastTrade extracts the first dollar amount of a lastTrade string such
// as "LAST TRADE: $1,234.56 (AS OF SEP 5, 2025)". It returns 0 when none is found.
func parseLastTrade(s string) float64 {
	m := lastTradePrice.FindStringSubmatch(strings.ReplaceAll(s, ",", ""))
	if m == nil {
		return 0
	}
	d, err := decimal.NewFromString(m[1])
	if err != nil {
		return 0
	}
	return d.InexactFloat64()
}

// greeksURL maps a drill-down path to the quote endpoint that serves its
// greeks. The record id is the last path segment of the drill-down URL.
func (p *NasdaqProvider) greeksURL(ticker, ref string) (string, error) {
	ref = strings.TrimRight(strings.TrimSpace(ref), "/")
	if u, err := url.Parse(ref); err == nil && u.Path != "" {
		ref = u.Path
	}
	recordID := path.Base(ref)
	if recordID == "" || recordID == "." || recordID == "/" {
		return "", fmt.Errorf("nasdaq: no record id in detail reference %q", ref)
	}
	params := url.Values{}
	params.Set("assetclass", p.classFor(ticker))
	params.Set("recordID", recordID)
	return fmt.Sprintf("%s/api/quote/%s/option-chain?%s",
		p.baseURL, url.PathEscape(strings.ToLower(ticker)), params.Encode()), nil
}

// FetchGreeks resolves the greeks of one contract from its drill-down URL.
// Values the endpoint omits or cannot format as numbers stay nil.
func (p *NasdaqProvider) FetchGreeks(ctx context.Context, ticker, ref string) (models.Greeks, error) {
	endpoint, err := p.greeksURL(ticker, ref)
	if err != nil {
		return models.Greeks{}, err
	}
	var resp nasdaqGreeksResponse
	if err := getJSON(ctx, p.client, endpoint, nasdaqHeaders, &resp); err != nil {
		return models.Greeks{}, fmt.Errorf("nasdaq greeks %s: %w", ticker, err)
	}
	if resp.Data == nil || resp.Data.OptionChainCallData == nil || resp.Data.OptionChainCallData.OptionChainGreeksList == nil {
		return models.Greeks{}, fmt.Errorf("nasdaq greeks %s %s: %w", ticker, ref, ErrGreeksUnavailable)
	}
	g := resp.Data.OptionChainCallData.OptionChainGreeksList
	return models.Greeks{
		Delta: g.Delta.Value.Ptr(),
		Gamma: g.Gamma.Value.Ptr(),
		Theta: g.Theta.Value.Ptr(),
		Vega:  g.Vega.Value.Ptr(),
		IV:    g.Impvol.Value.Ptr(),
	}, nil
}
