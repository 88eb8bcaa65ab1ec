// Package config provides configuration management for the screener.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	yaml "gopkg.in/yaml.v3"

	"github.com/eddiefleurent/pmcc_screener/internal/marketdata"
	"github.com/eddiefleurent/pmcc_screener/internal/screener"
)

// Provider names.
const (
	ProviderNasdaq  = "nasdaq"
	ProviderTradier = "tradier"
	ProviderMock    = "mock"
)

// Cache backends.
const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

const (
	defaultTimeout     = "25s"
	defaultCacheTTL    = "6h"
	defaultStoragePath = "runs.json"
	defaultMaxRuns     = 50
	defaultPort        = 8080
)

// Config represents the complete application configuration.
type Config struct {
	Environment EnvironmentConfig `yaml:"environment"`
	Provider    ProviderConfig    `yaml:"provider"`
	Cache       CacheConfig       `yaml:"cache"`
	Screen      ScreenConfig      `yaml:"screen"`
	Selection   SelectionConfig   `yaml:"selection"`
	Output      OutputConfig      `yaml:"output"`
	Storage     StorageConfig     `yaml:"storage"`
	Dashboard   DashboardConfig   `yaml:"dashboard"`
}

// EnvironmentConfig defines the environment settings.
type EnvironmentConfig struct {
	LogLevel  string `yaml:"log_level"`  // debug | info | warn | error
	LogFormat string `yaml:"log_format"` // text | json
}

// ProviderConfig selects and configures the market data source.
type ProviderConfig struct {
	Name           string               `yaml:"name"` // nasdaq | tradier | mock
	APIKey         string               `yaml:"api_key"`
	APIEndpoint    string               `yaml:"api_endpoint"`
	Sandbox        bool                 `yaml:"sandbox"`
	Timeout        string               `yaml:"timeout"`
	AssetClass     string               `yaml:"asset_class"` // nasdaq only: stocks | etf
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// CircuitBreakerConfig mirrors marketdata.CircuitBreakerSettings.
type CircuitBreakerConfig struct {
	Enabled      bool    `yaml:"enabled"`
	MaxRequests  uint32  `yaml:"max_requests"`
	Interval     string  `yaml:"interval"`
	Timeout      string  `yaml:"timeout"`
	MinRequests  uint32  `yaml:"min_requests"`
	FailureRatio float64 `yaml:"failure_ratio"`
}

// CacheConfig defines the greeks cache.
type CacheConfig struct {
	Backend   string `yaml:"backend"` // none | memory | redis
	RedisURL  string `yaml:"redis_url"`
	KeyPrefix string `yaml:"key_prefix"`
	TTL       string `yaml:"ttl"`
}

// ScreenConfig defines what is screened and how much work runs at once.
// Empty window bounds are derived from the selection thresholds.
type ScreenConfig struct {
	Tickers           []string `yaml:"tickers"`
	LeapsFrom         string   `yaml:"leaps_from"`
	LeapsTo           string   `yaml:"leaps_to"`
	ShortsFrom        string   `yaml:"shorts_from"`
	ShortsTo          string   `yaml:"shorts_to"`
	TickerConcurrency int      `yaml:"ticker_concurrency"`
	EnrichConcurrency int      `yaml:"enrich_concurrency"`
}

// SelectionConfig holds the filter, scoring and pairing thresholds.
type SelectionConfig struct {
	LeapsDeltaLow    float64 `yaml:"leaps_delta_low"`
	LeapsDeltaHigh   float64 `yaml:"leaps_delta_high"`
	MaxLeapsIV       float64 `yaml:"max_leaps_iv"`
	LeapsMinDays     int     `yaml:"leaps_min_days"`
	ShortDeltaLow    float64 `yaml:"short_delta_low"`
	ShortDeltaHigh   float64 `yaml:"short_delta_high"`
	ShortMinDays     int     `yaml:"short_min_days"`
	ShortMaxDays     int     `yaml:"short_max_days"`
	MinCushionPct    float64 `yaml:"min_cushion_pct"`
	EarlyCloseBuffer float64 `yaml:"early_close_buffer"`
	TopNLeaps        int     `yaml:"top_n_leaps"`
	TopNShorts       int     `yaml:"top_n_shorts"`
	SortKey          string  `yaml:"sort"`           // metric1 | metric2
	MissingGreeks    string  `yaml:"missing_greeks"` // zero | reject
}

// OutputConfig defines where results are written.
type OutputConfig struct {
	CSV   string `yaml:"csv"`
	JSON  string `yaml:"json"`
	Table bool   `yaml:"table"`
	Limit int    `yaml:"limit"` // table rows, 0 for all
}

// StorageConfig defines storage settings for run history.
type StorageConfig struct {
	Path    string `yaml:"path"`
	MaxRuns int    `yaml:"max_runs"`
}

// DashboardConfig defines the read-only results API.
type DashboardConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Port      int    `yaml:"port"`
	AuthToken string `yaml:"auth_token"`
}

// Default returns a configuration with every optional value filled in.
func Default() Config {
	sel := screener.DefaultSelectionConfig()
	cb := marketdata.DefaultCircuitBreakerSettings()
	return Config{
		Environment: EnvironmentConfig{LogLevel: "info", LogFormat: "text"},
		Provider: ProviderConfig{
			Name:       ProviderNasdaq,
			Timeout:    defaultTimeout,
			AssetClass: marketdata.AssetClassStocks,
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:      true,
				MaxRequests:  cb.MaxRequests,
				Interval:     cb.Interval.String(),
				Timeout:      cb.Timeout.String(),
				MinRequests:  cb.MinRequests,
				FailureRatio: cb.FailureRatio,
			},
		},
		Cache:  CacheConfig{Backend: CacheNone, TTL: defaultCacheTTL},
		Screen: ScreenConfig{TickerConcurrency: 2, EnrichConcurrency: 4},
		Selection: SelectionConfig{
			LeapsDeltaLow:    sel.LeapsDeltaLow,
			LeapsDeltaHigh:   sel.LeapsDeltaHigh,
			MaxLeapsIV:       sel.MaxLeapsIV,
			LeapsMinDays:     sel.LeapsMinDays,
			ShortDeltaLow:    sel.ShortDeltaLow,
			ShortDeltaHigh:   sel.ShortDeltaHigh,
			ShortMinDays:     sel.ShortMinDays,
			ShortMaxDays:     sel.ShortMaxDays,
			MinCushionPct:    sel.MinCushionPct,
			EarlyCloseBuffer: sel.EarlyCloseBuffer,
			TopNLeaps:        sel.TopNLeaps,
			TopNShorts:       sel.TopNShorts,
			SortKey:          sel.SortKey,
			MissingGreeks:    string(sel.MissingGreeks),
		},
		Output:    OutputConfig{Table: true},
		Storage:   StorageConfig{Path: defaultStoragePath, MaxRuns: defaultMaxRuns},
		Dashboard: DashboardConfig{Port: defaultPort},
	}
}

// LoadDotEnv loads environment variables from the given .env files, or
// ".env" when none are named. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

// Load reads and parses the configuration file from the specified path.
// Values absent from the file keep their defaults.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	data, err := os.ReadFile(configPath) // #nosec G304 -- configPath is a user-provided config file path
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	config := Default()
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(&config); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	// Validate config
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// Validate checks that all configuration values are valid and consistent.
func (c *Config) Validate() error {
	c.normalize()

	// Environment validation
	if _, err := logrus.ParseLevel(c.Environment.LogLevel); err != nil {
		return fmt.Errorf("environment.log_level must be one of debug, info, warn, error")
	}
	if c.Environment.LogFormat != "text" && c.Environment.LogFormat != "json" {
		return fmt.Errorf("environment.log_format must be 'text' or 'json'")
	}

	// Provider validation
	switch c.Provider.Name {
	case ProviderNasdaq:
		if c.Provider.AssetClass != marketdata.AssetClassStocks && c.Provider.AssetClass != marketdata.AssetClassETF {
			return fmt.Errorf("provider.asset_class must be 'stocks' or 'etf'")
		}
	case ProviderTradier:
		if c.Provider.APIKey == "" {
			return fmt.Errorf("provider.api_key is required for tradier")
		}
	case ProviderMock:
	default:
		return fmt.Errorf("provider.name must be one of nasdaq, tradier, mock")
	}
	if d, err := time.ParseDuration(c.Provider.Timeout); err != nil || d <= 0 {
		return fmt.Errorf("provider.timeout must be a positive duration")
	}
	if cb := c.Provider.CircuitBreaker; cb.Enabled {
		if _, err := time.ParseDuration(cb.Interval); err != nil {
			return fmt.Errorf("provider.circuit_breaker.interval invalid: %w", err)
		}
		if d, err := time.ParseDuration(cb.Timeout); err != nil || d <= 0 {
			return fmt.Errorf("provider.circuit_breaker.timeout must be a positive duration")
		}
		if cb.FailureRatio <= 0 || cb.FailureRatio > 1 {
			return fmt.Errorf("provider.circuit_breaker.failure_ratio must be in (0,1]")
		}
	}

	// Cache validation
	switch c.Cache.Backend {
	case CacheNone, CacheMemory:
	case CacheRedis:
		if c.Cache.RedisURL == "" {
			return fmt.Errorf("cache.redis_url is required for the redis backend")
		}
	default:
		return fmt.Errorf("cache.backend must be one of none, memory, redis")
	}
	if _, err := time.ParseDuration(c.Cache.TTL); err != nil {
		return fmt.Errorf("cache.ttl invalid: %w", err)
	}

	// Screen validation
	for _, bound := range []struct{ name, from, to string }{
		{"leaps", c.Screen.LeapsFrom, c.Screen.LeapsTo},
		{"shorts", c.Screen.ShortsFrom, c.Screen.ShortsTo},
	} {
		if err := validateWindow(bound.name, bound.from, bound.to); err != nil {
			return err
		}
	}
	if c.Screen.TickerConcurrency <= 0 {
		return fmt.Errorf("screen.ticker_concurrency must be > 0")
	}
	if c.Screen.EnrichConcurrency <= 0 {
		return fmt.Errorf("screen.enrich_concurrency must be > 0")
	}

	// Selection validation
	if err := c.Selection.Screener().Validate(); err != nil {
		return fmt.Errorf("selection: %w", err)
	}

	// Output, storage and dashboard validation
	if c.Output.Limit < 0 {
		return fmt.Errorf("output.limit must be >= 0")
	}
	if c.Storage.MaxRuns < 0 {
		return fmt.Errorf("storage.max_runs must be >= 0")
	}
	if c.Dashboard.Enabled && (c.Dashboard.Port <= 0 || c.Dashboard.Port > 65535) {
		return fmt.Errorf("dashboard.port must be between 1 and 65535")
	}

	return nil
}

func validateWindow(name, from, to string) error {
	var f, t time.Time
	var err error
	if from != "" {
		if f, err = time.Parse(marketdata.DateLayout, from); err != nil {
			return fmt.Errorf("screen.%s_from must be YYYY-MM-DD", name)
		}
	}
	if to != "" {
		if t, err = time.Parse(marketdata.DateLayout, to); err != nil {
			return fmt.Errorf("screen.%s_to must be YYYY-MM-DD", name)
		}
	}
	if from != "" && to != "" && t.Before(f) {
		return fmt.Errorf("screen.%s_from (%s) must not be after screen.%s_to (%s)", name, from, name, to)
	}
	return nil
}

// normalize trims and lower-cases enumerations and fills blank values
func (c *Config) normalize() {
	c.Environment.LogLevel = strings.ToLower(strings.TrimSpace(c.Environment.LogLevel))
	c.Environment.LogFormat = strings.ToLower(strings.TrimSpace(c.Environment.LogFormat))
	c.Provider.Name = strings.ToLower(strings.TrimSpace(c.Provider.Name))
	c.Provider.AssetClass = strings.ToLower(strings.TrimSpace(c.Provider.AssetClass))
	c.Cache.Backend = strings.ToLower(strings.TrimSpace(c.Cache.Backend))
	if c.Cache.Backend == "" {
		c.Cache.Backend = CacheNone
	}
	if c.Provider.Timeout == "" {
		c.Provider.Timeout = defaultTimeout
	}
	if c.Cache.TTL == "" {
		c.Cache.TTL = defaultCacheTTL
	}
	if c.Storage.Path == "" {
		c.Storage.Path = defaultStoragePath
	}
	if c.Dashboard.Port == 0 {
		c.Dashboard.Port = defaultPort
	}
	c.Screen.Tickers = screener.NormalizeTickers(c.Screen.Tickers)
}

// Screener converts the thresholds into the screener's selection config.
func (s SelectionConfig) Screener() screener.SelectionConfig {
	return screener.SelectionConfig{
		LeapsDeltaLow:    s.LeapsDeltaLow,
		LeapsDeltaHigh:   s.LeapsDeltaHigh,
		MaxLeapsIV:       s.MaxLeapsIV,
		LeapsMinDays:     s.LeapsMinDays,
		ShortDeltaLow:    s.ShortDeltaLow,
		ShortDeltaHigh:   s.ShortDeltaHigh,
		ShortMinDays:     s.ShortMinDays,
		ShortMaxDays:     s.ShortMaxDays,
		MinCushionPct:    s.MinCushionPct,
		EarlyCloseBuffer: s.EarlyCloseBuffer,
		TopNLeaps:        s.TopNLeaps,
		TopNShorts:       s.TopNShorts,
		SortKey:          strings.ToLower(strings.TrimSpace(s.SortKey)),
		MissingGreeks:    screener.MissingGreeksPolicy(strings.ToLower(strings.TrimSpace(s.MissingGreeks))),
	}
}

// Windows returns the configured chain request windows.
func (s ScreenConfig) Windows() screener.Windows {
	return screener.Windows{
		LeapsFrom:  s.LeapsFrom,
		LeapsTo:    s.LeapsTo,
		ShortsFrom: s.ShortsFrom,
		ShortsTo:   s.ShortsTo,
	}
}

// GetTimeout returns the provider HTTP timeout.
func (c *Config) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Provider.Timeout)
	if err != nil || d <= 0 {
		return marketdata.DefaultTimeout
	}
	return d
}

// GetCacheTTL returns the greeks cache entry lifetime.
func (c *Config) GetCacheTTL() time.Duration {
	d, err := time.ParseDuration(c.Cache.TTL)
	if err != nil {
		return 0
	}
	return d
}

// CircuitBreakerSettings converts the breaker section, falling back to the
// defaults for unparseable durations.
func (c *Config) CircuitBreakerSettings() marketdata.CircuitBreakerSettings {
	s := marketdata.DefaultCircuitBreakerSettings()
	cb := c.Provider.CircuitBreaker
	if cb.MaxRequests > 0 {
		s.MaxRequests = cb.MaxRequests
	}
	if d, err := time.ParseDuration(cb.Interval); err == nil {
		s.Interval = d
	}
	if d, err := time.ParseDuration(cb.Timeout); err == nil && d > 0 {
		s.Timeout = d
	}
	if cb.MinRequests > 0 {
		s.MinRequests = cb.MinRequests
	}
	if cb.FailureRatio > 0 {
		s.FailureRatio = cb.FailureRatio
	}
	return s
}
