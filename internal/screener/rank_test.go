package screener

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/eddiefleurent/pmcc_screener/internal/models"
)

func combo(ticker string, metric2, shortMid, roi float64) models.Combo {
	return models.Combo{Ticker: ticker, Metric2: metric2, ShortMid: shortMid, ITMCloseROIPct: roi}
}

func tickersOf(combos []models.Combo) []string {
	out := make([]string, len(combos))
	for i, c := range combos {
		out[i] = c.Ticker
	}
	return out
}

func TestRank_Metric2(t *testing.T) {
	perTicker := [][]models.Combo{
		{combo("a", 10, 1.0, 50), combo("b", 15, 2.0, 10)},
		{combo("c", 15, 3.0, math.NaN()), combo("d", math.NaN(), 9.0, 90)},
		{combo("e", 12, 1.0, 70)},
	}

	got := Rank(perTicker, SortMetric2)

	assert.Equal(t, []string{"c", "b", "e", "a", "d"}, tickersOf(got))
}

func TestRank_DefaultKeyUsesROI(t *testing.T) {
	perTicker := [][]models.Combo{
		{combo("a", 10, 1.0, 50), combo("b", 15, 2.0, math.NaN())},
		{combo("c", 11, 3.0, 50), combo("d", 1, 9.0, 90)},
	}

	for _, key := range []string{SortMetric1, "anything"} {
		t.Run(key, func(t *testing.T) {
			got := Rank(perTicker, key)
			assert.Equal(t, []string{"d", "c", "a", "b"}, tickersOf(got))
		})
	}
}

func TestRank_Empty(t *testing.T) {
	assert.Empty(t, Rank(nil, SortMetric2))
	assert.Empty(t, Rank([][]models.Combo{nil, {}}, SortMetric1))
}

func TestRank_OrderIndependentForDistinctKeys(t *testing.T) {
	a := [][]models.Combo{{combo("a", 1, 1, 5)}, {combo("b", 2, 1, 4)}, {combo("c", 3, 1, 3)}}
	b := [][]models.Combo{a[2], a[0], a[1]}

	assert.Equal(t, tickersOf(Rank(a, SortMetric2)), tickersOf(Rank(b, SortMetric2)))
	assert.Equal(t, tickersOf(Rank(a, SortMetric1)), tickersOf(Rank(b, SortMetric1)))
}

func TestCompareDesc_NaNLast(t *testing.T) {
	assert.Equal(t, -1, compareDesc(2, 1))
	assert.Equal(t, 1, compareDesc(1, 2))
	assert.Equal(t, 0, compareDesc(1, 1))
	assert.Equal(t, -1, compareDesc(-100, math.NaN()))
	assert.Equal(t, 1, compareDesc(math.NaN(), -100))
	assert.Equal(t, 0, compareDesc(math.NaN(), math.NaN()))
	assert.Equal(t, -1, compareAsc(1, 2))
	assert.Equal(t, -1, compareAsc(100, math.NaN()))
}
