package marketdata

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const nasdaqChainBody = `{
  "data": {
    "totalRecord": 3,
    "lastTrade": "LAST TRADE: $1,234.56 (AS OF SEP 5, 2025)",
    "table": {
      "rows": [
        {"expirygroup": "January 15, 2027", "strike": null},
        {"expirygroup": "", "strike": "1,000.00", "c_Bid": "$250.10", "c_Ask": "252.90", "c_Last": "--",
         "c_Volume": "1,024", "c_Openinterest": "--",
         "drillDownURL": "/market-activity/stocks/aapl/option-chain/call-put-options/aapl--270115c01000000"},
        {"expirygroup": null, "strike": "1,100.00", "c_Bid": "--", "c_Ask": "--", "c_Last": "--",
         "c_Volume": null, "c_Openinterest": "12", "drillDownURL": null}
      ]
    }
  },
  "status": {"rCode": 200}
}`

func newNasdaqTestServer(t *testing.T, handler http.HandlerFunc) *NasdaqProvider {
	t.Helper()
	s := httptest.NewServer(handler)
	t.Cleanup(s.Close)
	return NewNasdaqProvider(WithNasdaqBaseURL(s.URL+"/"), WithNasdaqHTTPClient(s.Client()))
}

func TestNasdaqProvider_FetchChain(t *testing.T) {
	reqs := make(chan *http.Request, 1)
	p := newNasdaqTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		reqs <- r
		_, _ = w.Write([]byte(nasdaqChainBody))
	})

	chain, err := p.FetchChain(context.Background(), ChainRequest{
		Ticker: "AAPL", From: "2026-09-01", To: "2028-09-01", CallPut: CallPutCall, Money: MoneyIn,
	})
	require.NoError(t, err)

	got := <-reqs
	assert.Equal(t, "/api/quote/AAPL/option-chain", got.URL.Path)
	q := got.URL.Query()
	assert.Equal(t, "stocks", q.Get("assetclass"))
	assert.Equal(t, "500", q.Get("limit"))
	assert.Equal(t, "2026-09-01", q.Get("fromdate"))
	assert.Equal(t, "2028-09-01", q.Get("todate"))
	assert.Equal(t, "call", q.Get("callput"))
	assert.Equal(t, "in", q.Get("money"))
	assert.Equal(t, "https://www.nasdaq.com", got.Header.Get("Origin"))
	assert.Contains(t, got.Header.Get("User-Agent"), "Mozilla/5.0")

	assert.InDelta(t, 1234.56, chain.Spot, 1e-9)
	require.Len(t, chain.Rows, 3)
	assert.True(t, chain.Rows[0].IsLabel())
	assert.Equal(t, "January 15, 2027", chain.Rows[0].ExpiryGroup)
	assert.Equal(t, "1,000.00", chain.Rows[1].Strike)
	assert.Equal(t, "$250.10", chain.Rows[1].Bid)
	assert.Equal(t, "1,024", chain.Rows[1].Volume)
	assert.Equal(t, "/market-activity/stocks/aapl/option-chain/call-put-options/aapl--270115c01000000", chain.Rows[1].DetailRef)
	assert.False(t, chain.Rows[2].IsLabel())
	assert.Empty(t, chain.Rows[2].DetailRef)
}

func TestNasdaqProvider_FetchChainNumericCells(t *testing.T) {
	p := newNasdaqTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data": {"totalRecord": 1, "lastTrade": "$450", "table": {"rows": [
			{"expirygroup": "October 17, 2025"},
			{"expirygroup": "", "strike": 475, "c_Bid": 4.1, "c_Ask": "4.30", "c_Last": null,
			 "c_Volume": 123, "c_Openinterest": "1,500", "drillDownURL": "/spy--251017c00475000"}
		]}}}`))
	})

	chain, err := p.FetchChain(context.Background(), ChainRequest{Ticker: "SPY"})
	require.NoError(t, err)
	require.Len(t, chain.Rows, 2)
	row := chain.Rows[1]
	assert.Equal(t, "475", row.Strike)
	assert.Equal(t, "4.1", row.Bid)
	assert.Equal(t, "4.30", row.Ask)
	assert.Empty(t, row.Last)
	assert.Equal(t, "123", row.Volume)
	assert.Equal(t, "1,500", row.OpenInterest)
	assert.Equal(t, "/spy--251017c00475000", row.DetailRef)
}

func TestFlexString(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`"$1.05"`, "$1.05"},
		{`12`, "12"},
		{`-0.5`, "-0.5"},
		{`null`, ""},
		{`""`, ""},
		{`true`, "true"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var f flexString
			require.NoError(t, json.Unmarshal([]byte(tt.in), &f))
			assert.Equal(t, tt.want, string(f))
		})
	}
}

func TestNasdaqProvider_FallsBackToETF(t *testing.T) {
	var calls int32
	p := newNasdaqTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.URL.Query().Get("assetclass") == "etf" {
			_, _ = w.Write([]byte(`{"data": {"totalRecord": 1, "lastTrade": "$450", "table": {"rows": [{"expirygroup": "October 17, 2025"}]}}}`))
			return
		}
		_, _ = w.Write([]byte(`{"data": null, "status": {"rCode": 400}}`))
	})

	chain, err := p.FetchChain(context.Background(), ChainRequest{Ticker: "SPY"})
	require.NoError(t, err)
	assert.Equal(t, 450.0, chain.Spot)
	assert.Len(t, chain.Rows, 1)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))

	// The resolved class is reused for the ticker.
	_, err = p.FetchChain(context.Background(), ChainRequest{Ticker: "SPY"})
	require.NoError(t, err)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
	assert.Equal(t, AssetClassETF, p.classFor("SPY"))
	assert.Equal(t, AssetClassStocks, p.classFor("AAPL"))
}

func TestNasdaqProvider_EmptyChain(t *testing.T) {
	p := newNasdaqTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data": {"totalRecord": 0, "lastTrade": "$12.00", "table": null}}`))
	})

	chain, err := p.FetchChain(context.Background(), ChainRequest{Ticker: "XYZ"})
	require.NoError(t, err)
	assert.Empty(t, chain.Rows)
	assert.Zero(t, chain.Spot)
}

func TestNasdaqProvider_HTTPError(t *testing.T) {
	p := newNasdaqTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		http.Error(w, "slow down", http.StatusTooManyRequests)
	})

	_, err := p.FetchChain(context.Background(), ChainRequest{Ticker: "SPY"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.Status)
	assert.Contains(t, apiErr.Body, "retry-after: 30")
}

func TestNasdaqProvider_FetchGreeks(t *testing.T) {
	reqs := make(chan *http.Request, 1)
	p := newNasdaqTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		reqs <- r
		_, _ = w.Write([]byte(`{"data": {"optionChainCallData": {"optionChainGreeksList": {
			"Delta": {"label": "Delta", "value": "0.8123"},
			"Gamma": {"label": "Gamma", "value": 0.0041},
			"Theta": {"label": "Theta", "value": "--"},
			"Vega": {"label": "Vega", "value": "1.2"},
			"Impvol": {"label": "Impvol", "value": "0.2750"}
		}}}}`))
	})

	g, err := p.FetchGreeks(context.Background(), "AAPL",
		"/market-activity/stocks/aapl/option-chain/call-put-options/aapl--270115c01000000")
	require.NoError(t, err)

	got := <-reqs
	assert.Equal(t, "/api/quote/aapl/option-chain", got.URL.Path)
	assert.Equal(t, "aapl--270115c01000000", got.URL.Query().Get("recordID"))
	assert.Equal(t, "stocks", got.URL.Query().Get("assetclass"))

	require.NotNil(t, g.Delta)
	assert.InDelta(t, 0.8123, *g.Delta, 1e-12)
	require.NotNil(t, g.Gamma)
	assert.InDelta(t, 0.0041, *g.Gamma, 1e-12)
	assert.Nil(t, g.Theta)
	require.NotNil(t, g.IV)
	assert.InDelta(t, 0.275, *g.IV, 1e-12)
}

func TestNasdaqProvider_FetchGreeksMissingData(t *testing.T) {
	p := newNasdaqTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data": {"optionChainCallData": null}}`))
	})

	_, err := p.FetchGreeks(context.Background(), "AAPL", "/x/aapl--1")
	assert.ErrorIs(t, err, ErrGreeksUnavailable)

	_, err = p.FetchGreeks(context.Background(), "AAPL", "")
	assert.Error(t, err)
}

func TestParseLastTrade(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"LAST TRADE: $229.65 (AS OF SEP 5, 2025)", 229.65},
		{"LAST TRADE: $1,234.50", 1234.5},
		{"$450", 450},
		{"no price here", 0},
		{"", 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.InDelta(t, tt.want, parseLastTrade(tt.in), 1e-9)
		})
	}
}
