package marketdata

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/eddiefleurent/pmcc_screener/internal/models"
)

// Chain request filters.
const (
	CallPutCall = "call"
	CallPutPut  = "put"
	CallPutAll  = "all"

	MoneyIn  = "in"
	MoneyOut = "out"
	MoneyAll = "all"
)

// DateLayout is the format of ChainRequest.From and ChainRequest.To.
const DateLayout = "2006-01-02"

// ChainRequest selects the contracts of one option chain fetch.
type ChainRequest struct {
	Ticker  string
	From    string // YYYY-MM-DD, inclusive
	To      string // YYYY-MM-DD, inclusive
	CallPut string
	Money   string
}

// Chain is the raw result of a chain fetch.
type Chain struct {
	Rows []models.RawRow
	// Spot is the underlying's last price, 0 when the provider did not report one.
	Spot float64
}

// ChainFetcher retrieves option chains.
type ChainFetcher interface {
	FetchChain(ctx context.Context, req ChainRequest) (*Chain, error)
}

// Enricher resolves the greeks of a single contract from its detail reference.
type Enricher interface {
	FetchGreeks(ctx context.Context, ticker, ref string) (models.Greeks, error)
}

// Provider is a complete market data source for the screener.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	ChainFetcher
	Enricher
}

// ErrGreeksUnavailable is returned when a provider has no greeks for a contract.
var ErrGreeksUnavailable = errors.New("greeks unavailable")

// CircuitBreakerProvider wraps a Provider with circuit breaker functionality.
// Chain fetches and greeks lookups trip independent breakers so a failing
// drill-down endpoint does not block chain retrieval.
type CircuitBreakerProvider struct {
	provider      Provider
	chainBreaker  *gobreaker.CircuitBreaker
	greeksBreaker *gobreaker.CircuitBreaker
}

// CircuitBreakerSettings configures circuit breaker behavior
type CircuitBreakerSettings struct {
	MaxRequests  uint32        // Max requests when half-open
	Interval     time.Duration // Reset counts interval
	Timeout      time.Duration // Open circuit duration
	MinRequests  uint32        // Min requests before tripping
	FailureRatio float64       // Failure ratio threshold
}

// DefaultCircuitBreakerSettings returns the settings used when none are configured.
func DefaultCircuitBreakerSettings() CircuitBreakerSettings {
	return CircuitBreakerSettings{
		MaxRequests:  3,
		Interval:     60 * time.Second,
		Timeout:      30 * time.Second,
		MinRequests:  5,
		FailureRatio: 0.6,
	}
}

// Ensure CircuitBreakerProvider implements Provider at compile time.
var _ Provider = (*CircuitBreakerProvider)(nil)

// NewCircuitBreakerProvider creates a CircuitBreakerProvider with custom settings
func NewCircuitBreakerProvider(provider Provider, settings CircuitBreakerSettings) *CircuitBreakerProvider {
	return &CircuitBreakerProvider{
		provider:      provider,
		chainBreaker:  gobreaker.NewCircuitBreaker(breakerSettings("ChainCircuitBreaker", settings)),
		greeksBreaker: gobreaker.NewCircuitBreaker(breakerSettings("GreeksCircuitBreaker", settings)),
	}
}

func breakerSettings(name string, settings CircuitBreakerSettings) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        name,
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests == 0 || counts.Requests < settings.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= settings.FailureRatio
		},
		// A contract without greeks is a data gap, not an unhealthy endpoint.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrGreeksUnavailable)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logrus.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	}
}

// execCircuitBreaker is a generic helper for circuit breaker wrapper methods
func execCircuitBreaker[T any](breaker *gobreaker.CircuitBreaker, fn func() (T, error)) (T, error) {
	var zero T
	res, err := breaker.Execute(func() (interface{}, error) { return fn() })
	if err != nil {
		return zero, err
	}
	if res == nil {
		return zero, nil
	}
	v, ok := res.(T)
	if !ok {
		return zero, errors.New("circuit breaker: type assertion failed")
	}
	return v, nil
}

// FetchChain wraps the underlying provider call with circuit breaker
func (c *CircuitBreakerProvider) FetchChain(ctx context.Context, req ChainRequest) (*Chain, error) {
	return execCircuitBreaker(c.chainBreaker, func() (*Chain, error) {
		return c.provider.FetchChain(ctx, req)
	})
}

// FetchGreeks wraps the underlying provider call with circuit breaker
func (c *CircuitBreakerProvider) FetchGreeks(ctx context.Context, ticker, ref string) (models.Greeks, error) {
	return execCircuitBreaker(c.greeksBreaker, func() (models.Greeks, error) {
		return c.provider.FetchGreeks(ctx, ticker, ref)
	})
}
