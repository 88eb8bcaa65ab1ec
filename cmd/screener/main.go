package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/eddiefleurent/pmcc_screener/internal/config"
)

// cliFlags holds the command line. Values only override the config file when
// the flag was set explicitly.
type cliFlags struct {
	configPath string
	envFile    string

	provider       string
	tickers        string
	leapsFrom      string
	leapsTo        string
	shortsFrom     string
	shortsTo       string
	leapsDeltaLow  float64
	leapsDeltaHigh float64
	shortDeltaLow  float64
	shortDeltaHigh float64
	maxLeapsIV     float64
	minCushionPct  float64
	earlyClose     float64
	topNLeaps      int
	topNShorts     int
	sort           string
	missingGreeks  string

	csv      string
	json     string
	limit    int
	noTable  bool
	serve    bool
	port     int
	logLevel string
}

func newFlagSet(f *cliFlags, output io.Writer) *flag.FlagSet {
	sel := config.Default().Selection
	fset := flag.NewFlagSet("pmcc-screener", flag.ContinueOnError)
	fset.SetOutput(output)

	fset.StringVar(&f.configPath, "config", "config.yaml", "Path to configuration file")
	fset.StringVar(&f.envFile, "env", ".env", "Path to .env file")

	fset.StringVar(&f.provider, "provider", "", "Market data provider: nasdaq, tradier or mock")
	fset.StringVar(&f.tickers, "tickers", "", "Comma-separated tickers, e.g. SPY,QQQ,AAPL")
	fset.StringVar(&f.leapsFrom, "leaps-from", "", "YYYY-MM-DD start for LEAPS")
	fset.StringVar(&f.leapsTo, "leaps-to", "", "YYYY-MM-DD end for LEAPS")
	fset.StringVar(&f.shortsFrom, "shorts-from", "", "YYYY-MM-DD start for near-term shorts")
	fset.StringVar(&f.shortsTo, "shorts-to", "", "YYYY-MM-DD end for near-term shorts")
	fset.Float64Var(&f.leapsDeltaLow, "target-delta-low", sel.LeapsDeltaLow, "Lowest LEAPS delta")
	fset.Float64Var(&f.leapsDeltaHigh, "target-delta-high", sel.LeapsDeltaHigh, "Highest LEAPS delta")
	fset.Float64Var(&f.shortDeltaLow, "short-delta-low", sel.ShortDeltaLow, "Lowest short call delta")
	fset.Float64Var(&f.shortDeltaHigh, "short-delta-high", sel.ShortDeltaHigh, "Highest short call delta")
	fset.Float64Var(&f.maxLeapsIV, "max-leaps-iv", sel.MaxLeapsIV, "Highest LEAPS implied volatility")
	fset.Float64Var(&f.minCushionPct, "min-cushion-pct", sel.MinCushionPct, "Minimum % between spot and short strike")
	fset.Float64Var(&f.earlyClose, "early-close-buffer", sel.EarlyCloseBuffer, "$ per share paid to close an ITM short near expiry")
	fset.IntVar(&f.topNLeaps, "top-n-leaps", sel.TopNLeaps, "LEAPS kept per ticker")
	fset.IntVar(&f.topNShorts, "top-n-shorts", sel.TopNShorts, "Short calls kept per ticker")
	fset.StringVar(&f.sort, "sort", sel.SortKey, "metric1 = ITM-close ROI, metric2 = short/LEAPS premium ratio")
	fset.StringVar(&f.missingGreeks, "missing-greeks", sel.MissingGreeks, "Absent greeks policy: zero or reject")

	fset.StringVar(&f.csv, "csv", "", "If set, save results to this CSV file")
	fset.StringVar(&f.json, "json", "", "If set, save results to this JSON file")
	fset.IntVar(&f.limit, "limit", 0, "Table rows to print, 0 for all")
	fset.BoolVar(&f.noTable, "no-table", false, "Do not print the results table")
	fset.BoolVar(&f.serve, "serve", false, "Serve the results API after screening")
	fset.IntVar(&f.port, "port", 0, "Results API port")
	fset.StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	return fset
}

// loadConfig reads the config file and applies explicitly set flags. A
// missing default config file falls back to defaults; a missing file named
// with -config is an error.
func loadConfig(fset *flag.FlagSet, f *cliFlags) (*config.Config, error) {
	set := map[string]bool{}
	fset.Visit(func(fl *flag.Flag) { set[fl.Name] = true })

	if err := config.LoadDotEnv(f.envFile); err != nil {
		return nil, err
	}

	var cfg *config.Config
	if _, err := os.Stat(f.configPath); errors.Is(err, fs.ErrNotExist) && !set["config"] {
		d := config.Default()
		cfg = &d
	} else {
		if cfg, err = config.Load(f.configPath); err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	fset.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "provider":
			cfg.Provider.Name = f.provider
		case "tickers":
			cfg.Screen.Tickers = strings.Split(f.tickers, ",")
		case "leaps-from":
			cfg.Screen.LeapsFrom = f.leapsFrom
		case "leaps-to":
			cfg.Screen.LeapsTo = f.leapsTo
		case "shorts-from":
			cfg.Screen.ShortsFrom = f.shortsFrom
		case "shorts-to":
			cfg.Screen.ShortsTo = f.shortsTo
		case "target-delta-low":
			cfg.Selection.LeapsDeltaLow = f.leapsDeltaLow
		case "target-delta-high":
			cfg.Selection.LeapsDeltaHigh = f.leapsDeltaHigh
		case "short-delta-low":
			cfg.Selection.ShortDeltaLow = f.shortDeltaLow
		case "short-delta-high":
			cfg.Selection.ShortDeltaHigh = f.shortDeltaHigh
		case "max-leaps-iv":
			cfg.Selection.MaxLeapsIV = f.maxLeapsIV
		case "min-cushion-pct":
			cfg.Selection.MinCushionPct = f.minCushionPct
		case "early-close-buffer":
			cfg.Selection.EarlyCloseBuffer = f.earlyClose
		case "top-n-leaps":
			cfg.Selection.TopNLeaps = f.topNLeaps
		case "top-n-shorts":
			cfg.Selection.TopNShorts = f.topNShorts
		case "sort":
			cfg.Selection.SortKey = f.sort
		case "missing-greeks":
			cfg.Selection.MissingGreeks = f.missingGreeks
		case "csv":
			cfg.Output.CSV = f.csv
		case "json":
			cfg.Output.JSON = f.json
		case "limit":
			cfg.Output.Limit = f.limit
		case "no-table":
			cfg.Output.Table = !f.noTable
		case "serve":
			cfg.Dashboard.Enabled = f.serve
		case "port":
			cfg.Dashboard.Port = f.port
		case "log-level":
			cfg.Environment.LogLevel = f.logLevel
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "pmcc-screener: %v\n", err)
		os.Exit(1)
	}
}
