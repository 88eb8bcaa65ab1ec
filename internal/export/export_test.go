package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eddiefleurent/pmcc_screener/internal/models"
)

func sampleCombos() []models.Combo {
	return []models.Combo{
		{
			Ticker: "BBB", Spot: 100,
			LeapExpiry: "January 15, 2027", LeapStrike: 70, LeapMid: 32, LeapDelta: 0.8, LeapIV: 0.3,
			LeapScore: 12.5, LeapIntrinsicNow: 30, LeapIntrinsicPct: 93.75,
			ShortExpiry: "October 10, 2025", ShortStrike: 105, ShortMid: 3, ShortDelta: 0.3, ShortIV: 0.25,
			CushionPct: 5, NetDebit: 29, ITMClosePL: 570, ITMCloseROIPct: 19.655172,
			Metric1: 4.2857, Metric2: 9.375,
		},
		{
			Ticker: "CCC", Spot: 50,
			LeapExpiry: "January 15, 2027", LeapStrike: 40, LeapMid: 9, LeapDelta: math.NaN(), LeapIV: math.NaN(),
			LeapScore: math.NaN(), LeapIntrinsicNow: 10, LeapIntrinsicPct: 111.1111,
			ShortExpiry: "October 10, 2025", ShortStrike: 55, ShortMid: 10, ShortDelta: 0.35, ShortIV: 0.4,
			CushionPct: 10, NetDebit: -1, ITMClosePL: 1470, ITMCloseROIPct: math.NaN(),
			Metric1: 25, Metric2: 111.1111,
		},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleCombos()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, Columns, records[0])
	assert.Equal(t, "itm_close_pl_per_spread_$", records[0][16])
	assert.Equal(t, "leap_score", records[0][len(records[0])-1])

	row := records[1]
	require.Len(t, row, len(Columns))
	assert.Equal(t, "BBB", row[0])
	assert.Equal(t, "100.0000", row[1])
	assert.Equal(t, "January 15, 2027", row[2])
	assert.Equal(t, "0.8000", row[5])
	assert.Equal(t, "19.6552", row[17])
	assert.Equal(t, "12.5000", row[20])

	undefined := records[2]
	assert.Empty(t, undefined[5], "NaN delta renders empty")
	assert.Empty(t, undefined[6])
	assert.Empty(t, undefined[17], "undefined ROI renders empty")
	assert.Empty(t, undefined[20])
	assert.Equal(t, "-1.0000", undefined[15])
}

func TestWriteCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))
	assert.Equal(t, strings.Join(Columns, ",")+"\n", buf.String())
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sampleCombos()))

	var rows []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rows))
	require.Len(t, rows, 2)

	assert.Equal(t, "BBB", rows[0]["ticker"])
	assert.Equal(t, 105.0, rows[0]["short_strike"])
	assert.Equal(t, 570.0, rows[0]["itm_close_pl_per_spread_$"])

	assert.Contains(t, rows[1], "itm_close_roi_pct_on_net")
	assert.Nil(t, rows[1]["itm_close_roi_pct_on_net"])
	assert.Nil(t, rows[1]["leap_delta"])

	var back []models.Combo
	require.NoError(t, json.Unmarshal(buf.Bytes(), &back))
	assert.True(t, math.IsNaN(back[1].ITMCloseROIPct))
	assert.Equal(t, 29.0, back[0].NetDebit)
}

func TestWriteJSON_EmptyIsArray(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, nil))
	assert.Equal(t, "[]\n", buf.String())
}

func TestWriteTable(t *testing.T) {
	tests := []struct {
		name  string
		limit int
		rows  int
	}{
		{"all", 0, 2},
		{"limited", 1, 1},
		{"limit above count", 10, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, WriteTable(&buf, sampleCombos(), tt.limit))

			lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
			require.Len(t, lines, tt.rows+1)
			assert.Contains(t, lines[0], "TICKER")
			assert.Contains(t, lines[1], "BBB")
			assert.Contains(t, lines[1], "19.66")
		})
	}

	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, sampleCombos(), 0))
	last := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")[2]
	assert.Contains(t, last, "CCC")
	assert.Contains(t, last, " - ", "undefined values render as a dash")
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "combos.csv")
	require.NoError(t, WriteFile(path, sampleCombos(), WriteCSV))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "ticker,spot,"))
}
