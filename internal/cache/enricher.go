package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/eddiefleurent/pmcc_screener/internal/marketdata"
	"github.com/eddiefleurent/pmcc_screener/internal/models"
)

// CachedProvider serves greeks from a Cache before asking the wrapped
// provider. Chain fetches pass straight through. Cache failures are logged
// and fall back to the provider; they never fail a lookup.
type CachedProvider struct {
	provider marketdata.Provider
	cache    Cache
	ttl      time.Duration
	logger   logrus.FieldLogger
}

// Ensure CachedProvider implements marketdata.Provider at compile time.
var _ marketdata.Provider = (*CachedProvider)(nil)

// NewCachedProvider wraps provider with a greeks cache.
func NewCachedProvider(provider marketdata.Provider, c Cache, ttl time.Duration, logger logrus.FieldLogger) *CachedProvider {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &CachedProvider{provider: provider, cache: c, ttl: ttl, logger: logger}
}

func greeksKey(ticker, ref string) string {
	return "greeks:" + ticker + ":" + ref
}

func (c *CachedProvider) FetchChain(ctx context.Context, req marketdata.ChainRequest) (*marketdata.Chain, error) {
	return c.provider.FetchChain(ctx, req)
}

func (c *CachedProvider) FetchGreeks(ctx context.Context, ticker, ref string) (models.Greeks, error) {
	key := greeksKey(ticker, ref)
	log := c.logger.WithField("ticker", ticker)

	if raw, ok, err := c.cache.Get(ctx, key); err != nil {
		log.WithError(err).Warn("Greeks cache read failed")
	} else if ok {
		var g models.Greeks
		if err := json.Unmarshal(raw, &g); err == nil {
			return g, nil
		}
		log.WithField("key", key).Warn("Discarding undecodable greeks cache entry")
	}

	g, err := c.provider.FetchGreeks(ctx, ticker, ref)
	if err != nil {
		return g, err
	}
	if raw, err := json.Marshal(g); err == nil {
		if err := c.cache.Set(ctx, key, raw, c.ttl); err != nil {
			log.WithError(err).Warn("Greeks cache write failed")
		}
	}
	return g, nil
}
