// Copyright 2026 Peter Edge
//
// All rights reserved.

// Package taxctlform1325 assembles Israeli tax form 1325 from extracted
// trades.
//
// The assembler drives FIFO lot matching per security, filters matched rows
// to the reporting year, sorts them by sell date, and numbers the form lines.
// Dates are rendered in the Israeli day-month-year convention. The persisted
// CSV uses the official Hebrew column headers with columns in reverse
// declared order, prefixed with a UTF-8 BOM so right-to-left text renders
// correctly in spreadsheet applications.
package taxctlform1325

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/taxctl/taxctl/internal/pkg/brokercsv"
	"github.com/taxctl/taxctl/internal/pkg/cliio"
	"github.com/taxctl/taxctl/internal/pkg/fxrate"
	"github.com/taxctl/taxctl/internal/standard/xtime"
	"github.com/taxctl/taxctl/internal/taxctl/taxctllot"
)

// displayPlaces is the number of decimal places for displayed monetary values.
// Internal computation keeps full precision.
const displayPlaces = 3

// formHeaders are the form 1325 column headers in declared order. The form
// is Hebrew; the quantity and foreign-cost columns are conventionally left
// in English on the digital form.
var formHeaders = []string{
	"מספר",
	"זיהוי מלא של נייר הערך שנמכר לפי הסדר הכרונולוגי של המכירות",
	"נרכש טרם הרישום למסחר",
	"Quantity",
	"ערך נקוב במכירה",
	"תאריך הרכישה",
	"Cost",
	"מחיר מקורי",
	"1 + שיעור עליית המדד",
	"מחיר מתואם",
	"תאריך המכירה",
	"תמורה",
	"רווח הון ריאלי בשיעור מס של 25%",
	"הפסד הון",
}

// Row is one numbered line of form 1325.
type Row struct {
	// Sequence is the 1-based form line number, contiguous within the
	// reporting year after filtering and sorting.
	Sequence int
	taxctllot.Row
}

// Report is an assembled form 1325 for one reporting year.
type Report struct {
	// Year is the reporting year as a 4-digit string.
	Year string
	// ForeignCurrency is the currency the trades were denominated in.
	ForeignCurrency string
	// BaseCurrency is the reporting currency.
	BaseCurrency string
	// Rows are the form lines, sorted by sell date ascending.
	Rows []Row
	// UnmatchedSells records sell quantity that no prior buy lot covered.
	// A report with unmatched sells is incomplete and must not be filed
	// without investigating the gap.
	UnmatchedSells []taxctllot.UnmatchedSell
}

// Generator assembles reports using an explicit rate provider and currency pair.
type Generator struct {
	matcher         *taxctllot.Matcher
	foreignCurrency string
	baseCurrency    string
}

// NewGenerator creates a Generator converting foreignCurrency amounts to
// baseCurrency through the given converter.
func NewGenerator(converter fxrate.Converter, foreignCurrency string, baseCurrency string) *Generator {
	return &Generator{
		matcher:         taxctllot.NewMatcher(converter, foreignCurrency, baseCurrency),
		foreignCurrency: foreignCurrency,
		baseCurrency:    baseCurrency,
	}
}

// Generate assembles the form 1325 report for the reporting year from
// extracted trades.
//
// Securities are processed in the chronological order of their first sell.
// Rows are filtered to sells within the reporting calendar year, sorted by
// sell date ascending, and numbered 1..n in a final pass so form line
// numbers are contiguous for the filed year.
func (g *Generator) Generate(ctx context.Context, trades []brokercsv.Trade, year string) (*Report, error) {
	yearStart, yearEnd, err := yearBounds(year)
	if err != nil {
		return nil, err
	}
	// Build per-symbol buy and sell queues, each ordered oldest-first.
	symbolBuys := make(map[string][]*taxctllot.BuyLot)
	symbolSells := make(map[string][]taxctllot.SellEvent)
	for _, trade := range trades {
		switch {
		case trade.Quantity > 0:
			lot, err := taxctllot.NewBuyLot(trade.Symbol, trade.Date, trade.Quantity, trade.Basis)
			if err != nil {
				return nil, err
			}
			symbolBuys[trade.Symbol] = append(symbolBuys[trade.Symbol], lot)
		case trade.Quantity < 0:
			sell, err := taxctllot.NewSellEvent(trade.Symbol, trade.Date, -trade.Quantity, trade.Basis)
			if err != nil {
				return nil, err
			}
			symbolSells[trade.Symbol] = append(symbolSells[trade.Symbol], sell)
		default:
			return nil, fmt.Errorf("trade for %s on %s has zero quantity", trade.Symbol, trade.Date)
		}
	}
	for _, lots := range symbolBuys {
		sort.SliceStable(lots, func(i, j int) bool {
			return lots[i].Date.Before(lots[j].Date)
		})
	}
	for _, sells := range symbolSells {
		sort.SliceStable(sells, func(i, j int) bool {
			return sells[i].Date.Before(sells[j].Date)
		})
	}
	// Match each sold security. Buy-only securities produce no rows.
	report := &Report{
		Year:            year,
		ForeignCurrency: g.foreignCurrency,
		BaseCurrency:    g.baseCurrency,
	}
	for _, symbol := range symbolsByFirstSell(symbolSells) {
		result, err := g.matcher.MatchSecurity(ctx, symbolBuys[symbol], symbolSells[symbol])
		if err != nil {
			return nil, fmt.Errorf("matching %s: %w", symbol, err)
		}
		// Keep only sells within the reporting calendar year.
		for _, row := range result.Rows {
			if row.SellDate.EqualOrAfter(yearStart) && row.SellDate.EqualOrBefore(yearEnd) {
				report.Rows = append(report.Rows, Row{Row: row})
			}
		}
		report.UnmatchedSells = append(report.UnmatchedSells, result.UnmatchedSells...)
	}
	// Sort by sell date ascending, then number the form lines.
	sort.SliceStable(report.Rows, func(i, j int) bool {
		return report.Rows[i].SellDate.Before(report.Rows[j].SellDate)
	})
	for i := range report.Rows {
		report.Rows[i].Sequence = i + 1
	}
	return report, nil
}

// TradeDateRange returns the earliest and latest trade dates, for sizing the
// rate provider's fetch window. ok is false when there are no trades.
func TradeDateRange(trades []brokercsv.Trade) (first xtime.Date, last xtime.Date, ok bool) {
	for _, trade := range trades {
		if !ok {
			first, last, ok = trade.Date, trade.Date, true
			continue
		}
		if trade.Date.Before(first) {
			first = trade.Date
		}
		if trade.Date.After(last) {
			last = trade.Date
		}
	}
	return first, last, ok
}

// Headers returns the display column headers in declared order.
func (r *Report) Headers() []string {
	return []string{
		"#",
		"Symbol",
		"Pre-Listing",
		"Quantity",
		fmt.Sprintf("Proceeds (%s)", r.ForeignCurrency),
		"Buy Date",
		fmt.Sprintf("Cost (%s)", r.ForeignCurrency),
		fmt.Sprintf("Cost (%s)", r.BaseCurrency),
		"Rate Change",
		fmt.Sprintf("Adjusted Cost (%s)", r.BaseCurrency),
		"Sell Date",
		fmt.Sprintf("Proceeds (%s)", r.BaseCurrency),
		"Gain",
		"Loss",
	}
}

// RowRecord renders a row's values in declared column order, monetary values
// rounded to three decimal places and dates in day-month-year format. The
// pre-listing column is reserved and left empty. Exactly one of the gain and
// loss cells is non-empty.
func RowRecord(row Row) []string {
	gain := ""
	if row.Gain != nil {
		gain = row.Gain.Round(displayPlaces).String()
	}
	loss := ""
	if row.Loss != nil {
		loss = row.Loss.Round(displayPlaces).String()
	}
	return []string{
		fmt.Sprintf("%d", row.Sequence),
		row.Symbol,
		"",
		fmt.Sprintf("%d", row.Quantity),
		row.ProceedsFX.Round(displayPlaces).String(),
		FormatDate(row.BuyDate),
		row.CostFX.Round(displayPlaces).String(),
		row.CostBase.Round(displayPlaces).String(),
		row.RateChange.Round(displayPlaces).String(),
		row.AdjustedCostBase.Round(displayPlaces).String(),
		FormatDate(row.SellDate),
		row.ProceedsBase.Round(displayPlaces).String(),
		gain,
		loss,
	}
}

// WriteFormCSV writes the report as a form 1325 CSV file: Hebrew headers,
// columns in reverse declared order (the form reads right-to-left), and a
// UTF-8 BOM prefix.
func WriteFormCSV(writer io.Writer, report *Report) error {
	records := make([][]string, 0, len(report.Rows)+1)
	records = append(records, reversed(formHeaders))
	for _, row := range report.Rows {
		records = append(records, reversed(RowRecord(row)))
	}
	return cliio.WriteCSVRecordsWithBOM(writer, records)
}

// FormatDate renders a date in the Israeli day-month-year convention
// (e.g., 2021-03-15 → "15-03-2021").
func FormatDate(d xtime.Date) string {
	return fmt.Sprintf("%02d-%02d-%04d", d.Day, d.Month, d.Year)
}

// ParseFormattedDate parses a day-month-year date back into a Date. Inverse
// of FormatDate.
func ParseFormattedDate(s string) (xtime.Date, error) {
	t, err := time.Parse("02-01-2006", s)
	if err != nil {
		return xtime.Date{}, err
	}
	return xtime.TimeToDate(t), nil
}

// *** PRIVATE ***

// yearBounds validates a 4-digit reporting year and returns the inclusive
// calendar year bounds.
func yearBounds(year string) (xtime.Date, xtime.Date, error) {
	if len(year) != 4 {
		return xtime.Date{}, xtime.Date{}, fmt.Errorf("reporting year must be a 4-digit string, got %q", year)
	}
	var y int
	if _, err := fmt.Sscanf(year, "%4d", &y); err != nil || y < 1000 {
		return xtime.Date{}, xtime.Date{}, fmt.Errorf("reporting year must be a 4-digit string, got %q", year)
	}
	return xtime.Date{Year: y, Month: time.January, Day: 1},
		xtime.Date{Year: y, Month: time.December, Day: 31},
		nil
}

// reversed returns a new slice with the elements in reverse order.
func reversed(values []string) []string {
	result := make([]string, len(values))
	for i, value := range values {
		result[len(values)-1-i] = value
	}
	return result
}

// symbolsByFirstSell returns the sold symbols ordered by the date of each
// symbol's first sell, matching the chronological order of the form.
func symbolsByFirstSell(symbolSells map[string][]taxctllot.SellEvent) []string {
	symbols := make([]string, 0, len(symbolSells))
	for symbol := range symbolSells {
		symbols = append(symbols, symbol)
	}
	sort.SliceStable(symbols, func(i, j int) bool {
		first, second := symbolSells[symbols[i]][0], symbolSells[symbols[j]][0]
		if first.Date != second.Date {
			return first.Date.Before(second.Date)
		}
		return symbols[i] < symbols[j]
	})
	return symbols
}
