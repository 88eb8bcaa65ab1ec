package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/eddiefleurent/pmcc_screener/internal/cache"
	"github.com/eddiefleurent/pmcc_screener/internal/config"
	"github.com/eddiefleurent/pmcc_screener/internal/dashboard"
	"github.com/eddiefleurent/pmcc_screener/internal/export"
	"github.com/eddiefleurent/pmcc_screener/internal/marketdata"
	"github.com/eddiefleurent/pmcc_screener/internal/mock"
	"github.com/eddiefleurent/pmcc_screener/internal/models"
	"github.com/eddiefleurent/pmcc_screener/internal/screener"
	"github.com/eddiefleurent/pmcc_screener/internal/storage"
)

const noCombosMessage = "No combos found. Consider widening date windows or relaxing filters."

// run parses args, screens the configured tickers and reports the results.
// Results go to stdout, logs to stderr.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var f cliFlags
	fset := newFlagSet(&f, stderr)
	if err := fset.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(fset, &f)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Environment, stderr)

	provider, closeProvider, err := buildProvider(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeProvider()

	s, err := screener.New(provider, cfg.Selection.Screener(), screener.Options{
		Windows:           cfg.Screen.Windows(),
		TickerConcurrency: cfg.Screen.TickerConcurrency,
		EnrichConcurrency: cfg.Screen.EnrichConcurrency,
	}, logger)
	if err != nil {
		return err
	}

	result, err := s.Run(ctx, cfg.Screen.Tickers)
	if errors.Is(err, screener.ErrNoTickers) {
		return fmt.Errorf("%w: pass -tickers or set screen.tickers", err)
	}
	if err != nil {
		return err
	}

	if err := report(stdout, result, cfg.Output); err != nil {
		return err
	}
	if err := writeOutputs(stdout, result.Combos, cfg.Output); err != nil {
		return err
	}

	store, err := storage.NewStorage(cfg.Storage.Path, cfg.Storage.MaxRuns)
	if err != nil {
		logger.WithError(err).Warn("Run history unavailable")
	} else if err := store.SaveRun(result); err != nil {
		logger.WithError(err).WithField("run_id", result.ID).Warn("Failed to save run")
	}

	if cfg.Dashboard.Enabled && store != nil {
		return serve(ctx, dashboard.NewServer(dashboard.Config{
			Port:      cfg.Dashboard.Port,
			AuthToken: cfg.Dashboard.AuthToken,
		}, store, logger), logger)
	}
	return nil
}

func newLogger(env config.EnvironmentConfig, out io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)
	if level, err := logrus.ParseLevel(env.LogLevel); err == nil {
		logger.SetLevel(level)
	}
	if env.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}

// buildProvider assembles the data source: the configured provider behind an
// optional circuit breaker, with an optional greeks cache in front.
func buildProvider(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (marketdata.Provider, func(), error) {
	client := &http.Client{Timeout: cfg.GetTimeout()}

	var p marketdata.Provider
	switch cfg.Provider.Name {
	case config.ProviderTradier:
		p = marketdata.NewTradierProvider(cfg.Provider.APIKey, cfg.Provider.Sandbox, cfg.Provider.APIEndpoint, client)
	case config.ProviderMock:
		p = mock.NewDataProvider()
	default:
		opts := []marketdata.NasdaqOption{
			marketdata.WithNasdaqHTTPClient(client),
			marketdata.WithNasdaqAssetClass(cfg.Provider.AssetClass),
		}
		if cfg.Provider.APIEndpoint != "" {
			opts = append(opts, marketdata.WithNasdaqBaseURL(cfg.Provider.APIEndpoint))
		}
		p = marketdata.NewNasdaqProvider(opts...)
	}

	if cfg.Provider.CircuitBreaker.Enabled {
		p = marketdata.NewCircuitBreakerProvider(p, cfg.CircuitBreakerSettings())
	}

	var c cache.Cache
	switch cfg.Cache.Backend {
	case config.CacheMemory:
		c = cache.NewMemoryCache()
	case config.CacheRedis:
		rc, err := cache.NewRedisCache(ctx, cfg.Cache.RedisURL, cfg.Cache.KeyPrefix)
		if err != nil {
			return nil, nil, fmt.Errorf("greeks cache: %w", err)
		}
		c = rc
	}
	if c == nil {
		return p, func() {}, nil
	}

	logger.WithFields(logrus.Fields{
		"backend": cfg.Cache.Backend,
		"ttl":     cfg.GetCacheTTL().String(),
	}).Debug("Greeks cache enabled")
	closeCache := func() {
		if err := c.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close greeks cache")
		}
	}
	return cache.NewCachedProvider(p, c, cfg.GetCacheTTL(), logger), closeCache, nil
}

// report prints the per-ticker summary, the failures and the ranked table.
func report(w io.Writer, result *models.Run, out config.OutputConfig) error {
	for _, t := range result.Tickers {
		fmt.Fprintf(w, "\n=== Processing %s ===\n", t.Ticker)
		if t.Failed() {
			fmt.Fprintf(w, "%s: FAILED: %s\n", t.Ticker, t.Error)
			continue
		}
		if t.Leaps.Retained == 0 {
			fmt.Fprintf(w, "%s: No LEAPS candidates after filtering.\n", t.Ticker)
		} else {
			fmt.Fprintf(w, "%s: LEAPS candidates: %d\n", t.Ticker, t.Leaps.Retained)
		}
		if t.Shorts.Retained == 0 {
			fmt.Fprintf(w, "%s: No SHORT candidates after filtering.\n", t.Ticker)
		} else {
			fmt.Fprintf(w, "%s: SHORT candidates: %d\n", t.Ticker, t.Shorts.Retained)
		}
		if failed := t.Leaps.EnrichmentFailures + t.Shorts.EnrichmentFailures; failed > 0 {
			fmt.Fprintf(w, "%s: greeks unavailable for %d contracts\n", t.Ticker, failed)
		}
		if n := t.Leaps.UnparseableExpiry + t.Shorts.UnparseableExpiry; n > 0 {
			fmt.Fprintf(w, "%s: skipped %d contracts with unparseable expiry\n", t.Ticker, n)
		}
		if n := t.Leaps.Malformed + t.Shorts.Malformed; n > 0 {
			fmt.Fprintf(w, "%s: %d malformed chain fields treated as missing\n", t.Ticker, n)
		}
	}

	if errors.Is(screener.Outcome(result), screener.ErrNoCombos) {
		fmt.Fprintf(w, "\n%s\n", noCombosMessage)
		return nil
	}
	if !out.Table {
		return nil
	}
	fmt.Fprintf(w, "\n=== Global PMCC Combos (ranked by %s) ===\n", result.SortKey)
	return export.WriteTable(w, result.Combos, out.Limit)
}

func writeOutputs(w io.Writer, combos []models.Combo, out config.OutputConfig) error {
	if out.CSV != "" {
		if err := export.WriteFile(out.CSV, combos, export.WriteCSV); err != nil {
			return fmt.Errorf("saving csv: %w", err)
		}
		fmt.Fprintf(w, "Saved CSV to %s\n", out.CSV)
	}
	if out.JSON != "" {
		if err := export.WriteFile(out.JSON, combos, export.WriteJSON); err != nil {
			return fmt.Errorf("saving json: %w", err)
		}
		fmt.Fprintf(w, "Saved JSON to %s\n", out.JSON)
	}
	return nil
}

// serve runs the results API until ctx is canceled.
func serve(ctx context.Context, srv *dashboard.Server, logger *logrus.Logger) error {
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("dashboard: %w", err)
	case <-ctx.Done():
		logger.Info("Shutdown signal received, stopping dashboard...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
