package screener

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSpotPrice is returned when neither chain of a ticker carried a usable spot price.
	ErrNoSpotPrice = errors.New("could not determine spot price")
	// ErrEnrichment wraps a greeks lookup failure for a single contract.
	ErrEnrichment = errors.New("greeks enrichment failed")
	// ErrNoCombos signals that no combination survived filtering. It is a
	// valid outcome, not a failure of the run.
	ErrNoCombos = errors.New("no combos found")
	// ErrNoTickers is returned when a run is started without tickers.
	ErrNoTickers = errors.New("no tickers to screen")
)

// Ticker pipeline stages reported in TickerError.
const (
	StageLeapsChain  = "leaps chain"
	StageShortsChain = "shorts chain"
	StageSpot        = "spot price"
)

// TickerError is a condition that prevented a ticker from being screened.
// Other tickers of the run are unaffected.
type TickerError struct {
	Ticker string
	Stage  string
	Err    error
}

func (e *TickerError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Ticker, e.Stage, e.Err)
}

func (e *TickerError) Unwrap() error {
	return e.Err
}
