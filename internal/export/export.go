// Package export writes ranked combos as CSV, JSON or an aligned text table.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"github.com/eddiefleurent/pmcc_screener/internal/models"
)

// csvPlaces is the number of decimals written for CSV numbers.
const csvPlaces = 4

// Columns is the CSV header, in output order.
var Columns = []string{
	"ticker",
	"spot",
	"leap_expiry",
	"leap_strike",
	"leap_mid",
	"leap_delta",
	"leap_iv",
	"leap_intrinsic_now",
	"leap_intrinsic_pct_of_price",
	"short_expiry",
	"short_strike",
	"short_mid",
	"short_delta",
	"short_iv",
	"cushion_to_short_strike_pct",
	"net_debit_per_spread",
	"itm_close_pl_per_spread_$",
	"itm_close_roi_pct_on_net",
	"metric1_short_over_leap_strike_pct",
	"metric2_premium_over_leap_price_pct",
	"leap_score",
}

func record(c models.Combo) []string {
	n := func(v float64) string { return formatNumber(v, csvPlaces) }
	return []string{
		c.Ticker,
		n(c.Spot),
		c.LeapExpiry,
		n(c.LeapStrike),
		n(c.LeapMid),
		n(c.LeapDelta),
		n(c.LeapIV),
		n(c.LeapIntrinsicNow),
		n(c.LeapIntrinsicPct),
		c.ShortExpiry,
		n(c.ShortStrike),
		n(c.ShortMid),
		n(c.ShortDelta),
		n(c.ShortIV),
		n(c.CushionPct),
		n(c.NetDebit),
		n(c.ITMClosePL),
		n(c.ITMCloseROIPct),
		n(c.Metric1),
		n(c.Metric2),
		n(c.LeapScore),
	}
}

// formatNumber renders v with a fixed number of decimals. Undefined values
// render empty.
func formatNumber(v float64, places int32) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return decimal.NewFromFloat(v).StringFixed(places)
}

// WriteCSV writes the header and one record per combo.
func WriteCSV(w io.Writer, combos []models.Combo) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	for i := range combos {
		if err := cw.Write(record(combos[i])); err != nil {
			return fmt.Errorf("writing csv row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON writes the combos as an indented JSON array. Undefined metrics
// are null.
func WriteJSON(w io.Writer, combos []models.Combo) error {
	if combos == nil {
		combos = []models.Combo{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(combos); err != nil {
		return fmt.Errorf("encoding combos: %w", err)
	}
	return nil
}

// WriteTable writes the first limit combos as an aligned table. A limit of 0
// writes all of them.
func WriteTable(w io.Writer, combos []models.Combo, limit int) error {
	if limit > 0 && len(combos) > limit {
		combos = combos[:limit]
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "#\tTICKER\tSPOT\tLEAP EXPIRY\tSTRIKE\tMID\tDELTA\tSHORT EXPIRY\tSTRIKE\tMID\tDELTA\tCUSHION%\tNET DEBIT\tROI%\tM1%\tM2%\t")
	for i, c := range combos {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			i+1, c.Ticker, cell(c.Spot, 2),
			c.LeapExpiry, cell(c.LeapStrike, 2), cell(c.LeapMid, 2), cell(c.LeapDelta, 3),
			c.ShortExpiry, cell(c.ShortStrike, 2), cell(c.ShortMid, 2), cell(c.ShortDelta, 3),
			cell(c.CushionPct, 2), cell(c.NetDebit, 2), cell(c.ITMCloseROIPct, 2),
			cell(c.Metric1, 2), cell(c.Metric2, 2))
	}
	return tw.Flush()
}

func cell(v float64, places int32) string {
	if s := formatNumber(v, places); s != "" {
		return s
	}
	return "-"
}

// WriteFile creates path and fills it using write. Missing parent
// directories are created.
func WriteFile(path string, combos []models.Combo, write func(io.Writer, []models.Combo) error) (err error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("creating directory: %w", err)
		}
	}
	f, err := os.Create(path) // #nosec G304 -- output path comes from the operator
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing %s: %w", path, cerr)
		}
	}()
	return write(f, combos)
}
