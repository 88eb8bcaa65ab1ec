package screener

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/eddiefleurent/pmcc_screener/internal/models"
)

func contractWith(delta, iv *float64) models.OptionContract {
	return models.OptionContract{
		Strike: 100,
		Mid:    20,
		Greeks: models.Greeks{Delta: delta, IV: iv},
	}
}

func TestKeepLeaps(t *testing.T) {
	cfg := DefaultSelectionConfig()
	cfg.LeapsDeltaLow, cfg.LeapsDeltaHigh, cfg.MaxLeapsIV = 0.75, 0.85, 0.50

	tests := []struct {
		name  string
		delta *float64
		iv    *float64
		want  bool
	}{
		{"inside range", models.Float(0.80), models.Float(0.30), true},
		{"low bound inclusive", models.Float(0.75), models.Float(0.30), true},
		{"high bound inclusive", models.Float(0.85), models.Float(0.30), true},
		{"below range", models.Float(0.74), models.Float(0.30), false},
		{"above range", models.Float(0.86), models.Float(0.30), false},
		{"iv at cap", models.Float(0.80), models.Float(0.50), true},
		{"iv above cap", models.Float(0.80), models.Float(0.51), false},
		{"missing delta treated as zero", nil, models.Float(0.30), false},
		{"missing iv fails cap", models.Float(0.80), nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := contractWith(tt.delta, tt.iv)
			assert.Equal(t, tt.want, cfg.KeepLeaps(&c))
		})
	}
}

// A contract whose enrichment failed must not slip through the LEAPS filter.
func TestKeepLeaps_MissingDeltaExcluded(t *testing.T) {
	cfg := DefaultSelectionConfig()
	cfg.LeapsDeltaLow, cfg.LeapsDeltaHigh = 0.75, 0.85

	c := contractWith(nil, models.Float(0.30))
	assert.False(t, cfg.KeepLeaps(&c))
	assert.Empty(t, cfg.FilterLeaps([]models.OptionContract{c}))
}

func TestKeepShort(t *testing.T) {
	cfg := DefaultSelectionConfig()
	cfg.ShortDeltaLow, cfg.ShortDeltaHigh = 0.25, 0.40

	in := contractWith(models.Float(0.30), nil)
	assert.True(t, cfg.KeepShort(&in), "shorts have no IV cap")

	edge := contractWith(models.Float(0.40), models.Float(3.0))
	assert.True(t, cfg.KeepShort(&edge))

	out := contractWith(models.Float(0.45), models.Float(0.2))
	assert.False(t, cfg.KeepShort(&out))

	missing := contractWith(nil, nil)
	assert.False(t, cfg.KeepShort(&missing))
}

func TestMissingGreeksPolicy(t *testing.T) {
	missing := contractWith(nil, models.Float(0.30))

	t.Run("zero policy admits missing delta when range includes zero", func(t *testing.T) {
		cfg := DefaultSelectionConfig()
		cfg.ShortDeltaLow, cfg.ShortDeltaHigh = 0, 0.40
		cfg.LeapsDeltaLow = 0
		assert.True(t, cfg.KeepShort(&missing))
		assert.True(t, cfg.KeepLeaps(&missing))
	})

	t.Run("reject policy always excludes missing delta", func(t *testing.T) {
		cfg := DefaultSelectionConfig()
		cfg.MissingGreeks = MissingGreeksReject
		cfg.ShortDeltaLow, cfg.ShortDeltaHigh = 0, 0.40
		cfg.LeapsDeltaLow = 0
		assert.False(t, cfg.KeepShort(&missing))
		assert.False(t, cfg.KeepLeaps(&missing))
	})
}

func TestFilterLeaps_PreservesOrder(t *testing.T) {
	cfg := DefaultSelectionConfig()
	in := []models.OptionContract{
		{Strike: 1, Greeks: models.Greeks{Delta: models.Float(0.80), IV: models.Float(0.3)}},
		{Strike: 2, Greeks: models.Greeks{Delta: models.Float(0.60), IV: models.Float(0.3)}},
		{Strike: 3, Greeks: models.Greeks{Delta: models.Float(0.78), IV: models.Float(0.4)}},
	}

	out := cfg.FilterLeaps(in)
	if assert.Len(t, out, 2) {
		assert.Equal(t, 1.0, out[0].Strike)
		assert.Equal(t, 3.0, out[1].Strike)
	}
}

func TestSelectionConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultSelectionConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*SelectionConfig)
	}{
		{"inverted leaps delta", func(c *SelectionConfig) { c.LeapsDeltaLow, c.LeapsDeltaHigh = 0.9, 0.8 }},
		{"inverted short delta", func(c *SelectionConfig) { c.ShortDeltaLow, c.ShortDeltaHigh = 0.5, 0.2 }},
		{"zero iv cap", func(c *SelectionConfig) { c.MaxLeapsIV = 0 }},
		{"inverted short window", func(c *SelectionConfig) { c.ShortMinDays, c.ShortMaxDays = 60, 30 }},
		{"negative buffer", func(c *SelectionConfig) { c.EarlyCloseBuffer = -0.1 }},
		{"zero top-n", func(c *SelectionConfig) { c.TopNShorts = 0 }},
		{"unknown sort key", func(c *SelectionConfig) { c.SortKey = "roi" }},
		{"unknown policy", func(c *SelectionConfig) { c.MissingGreeks = "ignore" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultSelectionConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
