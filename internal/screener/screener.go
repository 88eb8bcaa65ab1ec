// Package screener selects Poor Man's Covered Call candidates from option
// chains: it normalizes chain rows, filters and scores LEAPS and short calls
// per ticker, pairs them into combos and ranks the combos across tickers.
package screener

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/eddiefleurent/pmcc_screener/internal/marketdata"
	"github.com/eddiefleurent/pmcc_screener/internal/models"
)

// Windows are the expiry date ranges requested from the chain fetcher.
// Empty bounds are derived from the selection config at run time.
type Windows struct {
	LeapsFrom  string `json:"leaps_from"`
	LeapsTo    string `json:"leaps_to"`
	ShortsFrom string `json:"shorts_from"`
	ShortsTo   string `json:"shorts_to"`
}

// runSettings is the config snapshot stored with each run.
type runSettings struct {
	Selection SelectionConfig `json:"selection"`
	Windows   Windows         `json:"windows"`
}

// defaultLeapsHorizonYears bounds the LEAPS request when LeapsTo is unset.
const defaultLeapsHorizonYears = 3

func (w Windows) resolve(now time.Time, cfg SelectionConfig) Windows {
	day := func(t time.Time) string { return t.Format(marketdata.DateLayout) }
	if w.LeapsFrom == "" {
		w.LeapsFrom = day(now.AddDate(0, 0, cfg.LeapsMinDays))
	}
	if w.LeapsTo == "" {
		w.LeapsTo = day(now.AddDate(defaultLeapsHorizonYears, 0, 0))
	}
	if w.ShortsFrom == "" {
		w.ShortsFrom = day(now.AddDate(0, 0, cfg.ShortMinDays))
	}
	if w.ShortsTo == "" {
		w.ShortsTo = day(now.AddDate(0, 0, cfg.ShortMaxDays))
	}
	return w
}

// Options tune how a Screener schedules its work.
type Options struct {
	Windows Windows
	// TickerConcurrency bounds how many tickers are screened at once.
	TickerConcurrency int
	// EnrichConcurrency bounds the greeks lookups in flight per ticker leg.
	EnrichConcurrency int
	// Now overrides the clock, mainly for tests.
	Now func() time.Time
}

// Screener runs the PMCC selection pipeline against a market data provider.
type Screener struct {
	provider marketdata.Provider
	cfg      SelectionConfig
	opts     Options
	logger   logrus.FieldLogger
}

// New creates a Screener. The selection config is validated once and then
// treated as immutable.
func New(provider marketdata.Provider, cfg SelectionConfig, opts Options, logger logrus.FieldLogger) (*Screener, error) {
	if provider == nil {
		return nil, errors.New("screener: provider is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid selection config: %w", err)
	}
	if opts.TickerConcurrency <= 0 {
		opts.TickerConcurrency = 1
	}
	if opts.EnrichConcurrency <= 0 {
		opts.EnrichConcurrency = 1
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Screener{provider: provider, cfg: cfg, opts: opts, logger: logger}, nil
}

// Config returns the selection config of the screener.
func (s *Screener) Config() SelectionConfig {
	return s.cfg
}

// TickerResult is the outcome of screening a single ticker.
type TickerResult struct {
	Leaps  []models.Candidate
	Shorts []models.Candidate
	Combos []models.Combo
	Report models.TickerReport
	Err    error
}

// NormalizeTickers upper-cases and trims tickers, dropping blanks and duplicates.
func NormalizeTickers(tickers []string) []string {
	seen := make(map[string]bool, len(tickers))
	out := make([]string, 0, len(tickers))
	for _, t := range tickers {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// Run screens every ticker and ranks the combined combos. Ticker failures are
// recorded in the run's reports; an error is returned only when there is
// nothing to screen or ctx is canceled.
func (s *Screener) Run(ctx context.Context, tickers []string) (*models.Run, error) {
	tickers = NormalizeTickers(tickers)
	if len(tickers) == 0 {
		return nil, ErrNoTickers
	}

	run := &models.Run{
		ID:        uuid.New().String(),
		StartedAt: s.opts.Now().UTC(),
		SortKey:   s.cfg.SortKey,
	}
	log := s.logger.WithField("run_id", run.ID)
	log.WithField("tickers", strings.Join(tickers, ",")).Info("Starting screening run")

	settings := runSettings{Selection: s.cfg, Windows: s.opts.Windows.resolve(run.StartedAt, s.cfg)}
	if raw, err := json.Marshal(settings); err != nil {
		log.WithError(err).Warn("Could not snapshot run settings")
	} else {
		run.Config = raw
	}

	results := make([]TickerResult, len(tickers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.TickerConcurrency)
	for i, ticker := range tickers {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = s.ScreenTicker(gctx, ticker)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("screening run canceled: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("screening run canceled: %w", err)
	}

	perTicker := make([][]models.Combo, len(results))
	run.Tickers = make([]models.TickerReport, len(results))
	for i, r := range results {
		perTicker[i] = r.Combos
		run.Tickers[i] = r.Report
	}
	run.Combos = Rank(perTicker, s.cfg.SortKey)
	run.FinishedAt = s.opts.Now().UTC()

	log.WithFields(logrus.Fields{
		"combos": len(run.Combos),
		"failed": len(run.Failures()),
	}).Info("Screening run complete")
	return run, nil
}

// Outcome returns ErrNoCombos when the run produced no combos.
func Outcome(run *models.Run) error {
	if run == nil || len(run.Combos) == 0 {
		return ErrNoCombos
	}
	return nil
}

// ScreenTicker fetches, filters, scores and pairs the candidates of one ticker.
func (s *Screener) ScreenTicker(ctx context.Context, ticker string) TickerResult {
	log := s.logger.WithField("ticker", ticker)
	res := TickerResult{Report: models.TickerReport{Ticker: ticker}}
	fail := func(stage string, err error) TickerResult {
		res.Err = &TickerError{Ticker: ticker, Stage: stage, Err: err}
		res.Report.Error = res.Err.Error()
		log.WithError(err).WithField("stage", stage).Warn("Ticker failed")
		return res
	}

	now := s.opts.Now().UTC()
	w := s.opts.Windows.resolve(now, s.cfg)

	leapsChain, err := s.provider.FetchChain(ctx, marketdata.ChainRequest{
		Ticker: ticker, From: w.LeapsFrom, To: w.LeapsTo,
		CallPut: marketdata.CallPutCall, Money: marketdata.MoneyIn,
	})
	if err != nil {
		return fail(StageLeapsChain, err)
	}
	shortsChain, err := s.provider.FetchChain(ctx, marketdata.ChainRequest{
		Ticker: ticker, From: w.ShortsFrom, To: w.ShortsTo,
		CallPut: marketdata.CallPutCall, Money: marketdata.MoneyOut,
	})
	if err != nil {
		return fail(StageShortsChain, err)
	}

	spot := leapsChain.Spot
	if !(spot > 0) {
		spot = shortsChain.Spot
	}
	if !(spot > 0) {
		return fail(StageSpot, ErrNoSpotPrice)
	}
	res.Report.Spot = spot

	leaps, leapsMalformed := NormalizeRows(leapsChain.Rows)
	shorts, shortsMalformed := NormalizeRows(shortsChain.Rows)
	res.Report.Leaps.Rows, res.Report.Leaps.Contracts = len(leapsChain.Rows), len(leaps)
	res.Report.Shorts.Rows, res.Report.Shorts.Contracts = len(shortsChain.Rows), len(shorts)
	res.Report.Leaps.Malformed, res.Report.Shorts.Malformed = leapsMalformed, shortsMalformed

	leaps, res.Report.Leaps.UnparseableExpiry = FilterByExpiry(leaps, now, s.cfg.LeapsMinDays)
	shorts, res.Report.Shorts.UnparseableExpiry = FilterByExpiry(shorts, now, s.cfg.ShortMinDays, s.cfg.ShortMaxDays)
	if n := res.Report.Leaps.UnparseableExpiry + res.Report.Shorts.UnparseableExpiry; n > 0 {
		log.WithField("contracts", n).Warn("Dropped contracts with unparseable expiry labels")
	}
	if n := leapsMalformed + shortsMalformed; n > 0 {
		log.WithField("fields", n).Warn("Malformed chain fields degraded to absent")
	}
	res.Report.Leaps.InWindow, res.Report.Shorts.InWindow = len(leaps), len(shorts)

	res.Report.Leaps.EnrichmentFailures = s.enrich(ctx, ticker, leaps, log.WithField("leg", "leaps"))
	res.Report.Shorts.EnrichmentFailures = s.enrich(ctx, ticker, shorts, log.WithField("leg", "shorts"))

	leaps = s.cfg.FilterLeaps(leaps)
	shorts = s.cfg.FilterShorts(shorts)
	res.Report.Leaps.Filtered, res.Report.Shorts.Filtered = len(leaps), len(shorts)

	res.Leaps = SelectLeaps(leaps, ticker, spot, s.cfg)
	res.Shorts = SelectShorts(shorts, ticker, spot, s.cfg)
	res.Report.Leaps.Retained, res.Report.Shorts.Retained = len(res.Leaps), len(res.Shorts)

	if len(res.Leaps) == 0 {
		log.Info("No LEAPS candidates after filtering")
	}
	if len(res.Shorts) == 0 {
		log.Info("No SHORT candidates after filtering")
	}

	res.Combos = BuildCombos(res.Leaps, res.Shorts, s.cfg)
	res.Report.Combos = len(res.Combos)
	log.WithFields(logrus.Fields{
		"spot":   spot,
		"leaps":  len(res.Leaps),
		"shorts": len(res.Shorts),
		"combos": len(res.Combos),
	}).Info("Ticker screened")
	return res
}

// enrich fills in the greeks of each contract in place and returns how many
// lookups failed. A failed lookup leaves that contract's greeks absent.
func (s *Screener) enrich(ctx context.Context, ticker string, contracts []models.OptionContract, log logrus.FieldLogger) int {
	failed := make([]bool, len(contracts))
	var g errgroup.Group
	g.SetLimit(s.opts.EnrichConcurrency)
	for i := range contracts {
		g.Go(func() error {
			c := &contracts[i]
			if c.DetailRef == "" {
				failed[i] = true
				return nil
			}
			greeks, err := s.provider.FetchGreeks(ctx, ticker, c.DetailRef)
			if err != nil {
				failed[i] = true
				log.WithError(fmt.Errorf("%w: %s: %w", ErrEnrichment, c.DetailRef, err)).Debug("Greeks degraded to absent")
				return nil
			}
			c.Greeks = greeks
			return nil
		})
	}
	_ = g.Wait()

	n := 0
	for _, f := range failed {
		if f {
			n++
		}
	}
	return n
}
