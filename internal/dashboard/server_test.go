package dashboard

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eddiefleurent/pmcc_screener/internal/models"
	"github.com/eddiefleurent/pmcc_screener/internal/storage"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func seededStorage(t *testing.T) *storage.MockStorage {
	t.Helper()
	store := storage.NewMockStorage()
	base := time.Date(2025, time.September, 1, 15, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveRun(&models.Run{
		ID: "run-1", StartedAt: base, FinishedAt: base.Add(time.Second), SortKey: "metric1",
		Tickers: []models.TickerReport{{Ticker: "SPY", Spot: 450}},
	}))
	require.NoError(t, store.SaveRun(&models.Run{
		ID: "run-2", StartedAt: base.Add(time.Hour), FinishedAt: base.Add(time.Hour + time.Second), SortKey: "metric2",
		Tickers: []models.TickerReport{{Ticker: "SPY", Spot: 451, Combos: 1}},
		Combos: []models.Combo{{
			Ticker: "SPY", Spot: 451, LeapExpiry: "January 15, 2027", LeapStrike: 350, LeapMid: 110,
			LeapDelta: 0.8, LeapIV: 0.2, LeapScore: 3, LeapIntrinsicNow: 101, LeapIntrinsicPct: 91.8,
			ShortExpiry: "October 17, 2025", ShortStrike: 475, ShortMid: 4, ShortDelta: 0.3, ShortIV: 0.18,
			CushionPct: 5.3, NetDebit: 106, ITMClosePL: 1870, ITMCloseROIPct: 17.6, Metric1: 35.7, Metric2: 3.6,
		}},
	}))
	return store
}

func newTestServer(t *testing.T, token string) *httptest.Server {
	t.Helper()
	s := NewServer(Config{Port: 0, AuthToken: token}, seededStorage(t), quietLogger())
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func get(t *testing.T, ts *httptest.Server, path string, header http.Header) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, ts.URL+path, nil)
	require.NoError(t, err)
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, "")
	resp := get(t, ts, "/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, 2.0, body["runs"])
}

func TestListRuns(t *testing.T) {
	ts := newTestServer(t, "")
	resp := get(t, ts, "/api/runs", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var runs []models.RunSummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&runs))
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].ID)
	assert.Equal(t, 1, runs[0].Combos)
}

func TestGetRun(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		status int
		wantID string
	}{
		{"by id", "/api/runs/run-1", http.StatusOK, "run-1"},
		{"latest", "/api/runs/latest", http.StatusOK, "run-2"},
		{"unknown", "/api/runs/nope", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, "")
			resp := get(t, ts, tt.path, nil)
			require.Equal(t, tt.status, resp.StatusCode)
			if tt.wantID == "" {
				return
			}
			var run models.Run
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&run))
			assert.Equal(t, tt.wantID, run.ID)
		})
	}
}

func TestLatestRun_EmptyStorage(t *testing.T) {
	s := NewServer(Config{}, storage.NewMockStorage(), quietLogger())
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	resp := get(t, ts, "/api/runs/latest", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCombosCSV(t *testing.T) {
	ts := newTestServer(t, "")
	resp := get(t, ts, "/api/runs/latest/combos.csv", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/csv"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "pmcc_run-2.csv")

	records, err := csv.NewReader(resp.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "ticker", records[0][0])
	assert.Equal(t, "SPY", records[1][0])
	assert.Equal(t, "475.0000", records[1][10])

	missing := get(t, ts, "/api/runs/nope/combos.csv", nil)
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestAuthToken(t *testing.T) {
	ts := newTestServer(t, "s3cret")

	assert.Equal(t, http.StatusOK, get(t, ts, "/health", nil).StatusCode, "health stays open")
	assert.Equal(t, http.StatusUnauthorized, get(t, ts, "/api/runs", nil).StatusCode)
	assert.Equal(t, http.StatusUnauthorized, get(t, ts, "/api/runs", http.Header{"X-Auth-Token": {"wrong"}}).StatusCode)
	assert.Equal(t, http.StatusOK, get(t, ts, "/api/runs", http.Header{"X-Auth-Token": {"s3cret"}}).StatusCode)
	assert.Equal(t, http.StatusOK, get(t, ts, "/api/runs?token=s3cret", nil).StatusCode)
}

func TestZstdCompression(t *testing.T) {
	ts := newTestServer(t, "")

	// Disable the transport's transparent gzip so the raw encoding is visible.
	client := &http.Client{Transport: &http.Transport{DisableCompression: true}}
	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/runs/run-2", nil)
	require.NoError(t, err)
	req.Header.Set("Accept-Encoding", "zstd")
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "zstd", resp.Header.Get("Content-Encoding"))

	dec, err := zstd.NewReader(resp.Body)
	require.NoError(t, err)
	defer dec.Close()

	var run models.Run
	require.NoError(t, json.NewDecoder(dec).Decode(&run))
	assert.Equal(t, "run-2", run.ID)
	require.Len(t, run.Combos, 1)
	assert.Equal(t, 475.0, run.Combos[0].ShortStrike)

	plain := get(t, ts, "/api/runs/run-2", nil)
	assert.Empty(t, plain.Header.Get("Content-Encoding"))
}
