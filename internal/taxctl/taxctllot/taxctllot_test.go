// Copyright 2026 Peter Edge
//
// All rights reserved.

package taxctllot

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/taxctl/taxctl/internal/pkg/fxrate"
	"github.com/taxctl/taxctl/internal/standard/xtime"
)

// staticConverter serves fixed per-date USD→ILS rates for tests.
type staticConverter struct {
	rates map[xtime.Date]decimal.Decimal
}

func (s staticConverter) Convert(
	_ context.Context,
	amount decimal.Decimal,
	fromCurrency string,
	toCurrency string,
	date xtime.Date,
) (decimal.Decimal, error) {
	if fromCurrency == toCurrency {
		return amount, nil
	}
	rate, ok := s.rates[date]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("%w: %s/%s on %s", fxrate.ErrNoRate, fromCurrency, toCurrency, date)
	}
	return amount.Mul(rate), nil
}

func date(year int, month time.Month, day int) xtime.Date {
	return xtime.Date{Year: year, Month: month, Day: day}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestMatchSingleLotFullyConsumed(t *testing.T) {
	t.Parallel()
	// Buy 100 @ $1000 total, sell all 100 @ $1200 total.
	matcher := NewMatcher(staticConverter{rates: map[xtime.Date]decimal.Decimal{
		date(2021, time.January, 10): dec("3.2"),
		date(2021, time.June, 1):     dec("3.5"),
	}}, "USD", "ILS")
	buy, err := NewBuyLot("VTI", date(2021, time.January, 10), 100, dec("1000"))
	require.NoError(t, err)
	sell, err := NewSellEvent("VTI", date(2021, time.June, 1), 100, dec("1200"))
	require.NoError(t, err)

	result, err := matcher.MatchSecurity(context.Background(), []*BuyLot{buy}, []SellEvent{sell})
	require.NoError(t, err)
	require.Empty(t, result.UnmatchedSells)
	require.Len(t, result.Rows, 1)

	row := result.Rows[0]
	require.Equal(t, "VTI", row.Symbol)
	require.Equal(t, int64(100), row.Quantity)
	require.True(t, row.ProceedsFX.Equal(dec("1200")), "proceeds_fx = %s", row.ProceedsFX)
	require.True(t, row.CostFX.Equal(dec("1000")), "cost_fx = %s", row.CostFX)
	// cost_base = 3.2 * 1000, proceeds_base = 1200 * 3.5.
	require.True(t, row.CostBase.Equal(dec("3200")), "cost_base = %s", row.CostBase)
	require.True(t, row.ProceedsBase.Equal(dec("4200")), "proceeds_base = %s", row.ProceedsBase)
	// adjusted_cost_base = 3200 * (3.5 / 3.2) = 3500.
	require.Equal(t, "3500", row.AdjustedCostBase.Round(3).String())
	// Gained in USD terms: report the lesser of the nominal (1000) and
	// rate-adjusted (700) gain.
	require.Nil(t, row.Loss)
	require.NotNil(t, row.Gain)
	require.Equal(t, "700", row.Gain.Round(3).String())
	require.Equal(t, int64(0), buy.Remaining)
}

func TestMatchPartialLotSplit(t *testing.T) {
	t.Parallel()
	// Buy 50 @ $500, buy 50 @ $600, sell 70 @ $800: the sell consumes all of
	// lot 1 and 20 units of lot 2.
	matcher := NewMatcher(staticConverter{rates: map[xtime.Date]decimal.Decimal{
		date(2021, time.January, 1):  dec("3.2"),
		date(2021, time.February, 1): dec("3.3"),
		date(2021, time.July, 1):     dec("3.1"),
	}}, "USD", "ILS")
	lot1, err := NewBuyLot("TSLA", date(2021, time.January, 1), 50, dec("500"))
	require.NoError(t, err)
	lot2, err := NewBuyLot("TSLA", date(2021, time.February, 1), 50, dec("600"))
	require.NoError(t, err)
	sell, err := NewSellEvent("TSLA", date(2021, time.July, 1), 70, dec("800"))
	require.NoError(t, err)

	result, err := matcher.MatchSecurity(context.Background(), []*BuyLot{lot1, lot2}, []SellEvent{sell})
	require.NoError(t, err)
	require.Empty(t, result.UnmatchedSells)
	require.Len(t, result.Rows, 2)

	first, second := result.Rows[0], result.Rows[1]
	require.Equal(t, int64(50), first.Quantity)
	require.True(t, first.CostFX.Equal(dec("500")), "cost_fx = %s", first.CostFX)
	require.Equal(t, "571.429", first.ProceedsFX.Round(3).String())
	require.Equal(t, date(2021, time.January, 1), first.BuyDate)

	require.Equal(t, int64(20), second.Quantity)
	// cost_fx = (20 / 50) * 600.
	require.True(t, second.CostFX.Equal(dec("240")), "cost_fx = %s", second.CostFX)
	require.Equal(t, "228.571", second.ProceedsFX.Round(3).String())
	require.Equal(t, date(2021, time.February, 1), second.BuyDate)
	// Lost in USD terms (228.571 < 240): the rate-adjusted loss is the
	// smaller-magnitude one and is reported.
	require.Nil(t, second.Gain)
	require.NotNil(t, second.Loss)
	require.Equal(t, "-35.429", second.Loss.Round(3).String())

	// Conservation: matched quantities sum to the sell's target.
	require.Equal(t, int64(70), first.Quantity+second.Quantity)
	// Lot 2 was split, not consumed.
	require.Equal(t, int64(0), lot1.Remaining)
	require.Equal(t, int64(30), lot2.Remaining)
}

func TestMatchUnderCoverage(t *testing.T) {
	t.Parallel()
	// Sell with zero prior buys: no rows, explicit under-coverage, no failure.
	matcher := NewMatcher(staticConverter{rates: map[xtime.Date]decimal.Decimal{
		date(2021, time.March, 1): dec("3.3"),
	}}, "USD", "ILS")
	sell, err := NewSellEvent("NET", date(2021, time.March, 1), 30, dec("900"))
	require.NoError(t, err)

	result, err := matcher.MatchSecurity(context.Background(), nil, []SellEvent{sell})
	require.NoError(t, err)
	require.Empty(t, result.Rows)
	require.Len(t, result.UnmatchedSells, 1)
	require.Equal(t, UnmatchedSell{Symbol: "NET", SellDate: date(2021, time.March, 1), Quantity: 30}, result.UnmatchedSells[0])
}

func TestMatchSellPredatingBuys(t *testing.T) {
	t.Parallel()
	// A sell before any buy matches nothing, and the later buy stays intact
	// for subsequent sells.
	matcher := NewMatcher(staticConverter{rates: map[xtime.Date]decimal.Decimal{
		date(2021, time.January, 5):  dec("3.2"),
		date(2021, time.February, 1): dec("3.25"),
		date(2021, time.March, 1):    dec("3.3"),
	}}, "USD", "ILS")
	buy, err := NewBuyLot("AAPL", date(2021, time.February, 1), 10, dec("1500"))
	require.NoError(t, err)
	earlySell, err := NewSellEvent("AAPL", date(2021, time.January, 5), 10, dec("1600"))
	require.NoError(t, err)
	lateSell, err := NewSellEvent("AAPL", date(2021, time.March, 1), 10, dec("1700"))
	require.NoError(t, err)

	result, err := matcher.MatchSecurity(context.Background(), []*BuyLot{buy}, []SellEvent{earlySell, lateSell})
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	require.Equal(t, date(2021, time.March, 1), result.Rows[0].SellDate)
	require.Len(t, result.UnmatchedSells, 1)
	require.Equal(t, int64(10), result.UnmatchedSells[0].Quantity)
}

func TestMatchPartialCoverage(t *testing.T) {
	t.Parallel()
	// Sell 80 with only 50 bought: 50 matched, 30 unmatched.
	matcher := NewMatcher(staticConverter{rates: map[xtime.Date]decimal.Decimal{
		date(2021, time.January, 1): dec("3.2"),
		date(2021, time.June, 1):    dec("3.4"),
	}}, "USD", "ILS")
	buy, err := NewBuyLot("VXUS", date(2021, time.January, 1), 50, dec("2000"))
	require.NoError(t, err)
	sell, err := NewSellEvent("VXUS", date(2021, time.June, 1), 80, dec("4000"))
	require.NoError(t, err)

	result, err := matcher.MatchSecurity(context.Background(), []*BuyLot{buy}, []SellEvent{sell})
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	require.Equal(t, int64(50), result.Rows[0].Quantity)
	require.Len(t, result.UnmatchedSells, 1)
	require.Equal(t, int64(30), result.UnmatchedSells[0].Quantity)
}

func TestMatchGainLossExclusivity(t *testing.T) {
	t.Parallel()
	// Across a spread of scenarios, every row has exactly one of gain/loss,
	// gains are non-negative, losses non-positive, and no lot goes negative.
	rates := map[xtime.Date]decimal.Decimal{}
	day := date(2020, time.January, 1)
	rateValues := []string{"3.1", "3.2", "3.3", "3.4", "3.5", "3.45", "3.15", "3.25"}
	days := make([]xtime.Date, 0, len(rateValues))
	for _, rateValue := range rateValues {
		rates[day] = dec(rateValue)
		days = append(days, day)
		day = day.AddDays(30)
	}
	matcher := NewMatcher(staticConverter{rates: rates}, "USD", "ILS")
	var buys []*BuyLot
	for i, basis := range []string{"1000", "1200", "900", "1500"} {
		lot, err := NewBuyLot("SPY", days[i], 25, dec(basis))
		require.NoError(t, err)
		buys = append(buys, lot)
	}
	var sells []SellEvent
	for i, basis := range []string{"800", "1600", "500", "2100"} {
		sell, err := NewSellEvent("SPY", days[4+i], 20, dec(basis))
		require.NoError(t, err)
		sells = append(sells, sell)
	}

	result, err := matcher.MatchSecurity(context.Background(), buys, sells)
	require.NoError(t, err)
	require.Empty(t, result.UnmatchedSells)
	var totalMatched int64
	for _, row := range result.Rows {
		require.True(t, (row.Gain != nil) != (row.Loss != nil), "exactly one of gain/loss must be set")
		if row.Gain != nil {
			require.False(t, row.Gain.IsNegative(), "gain %s must be >= 0", row.Gain)
		}
		if row.Loss != nil {
			require.False(t, row.Loss.IsPositive(), "loss %s must be <= 0", row.Loss)
		}
		totalMatched += row.Quantity
	}
	// Conservation across all sells.
	require.Equal(t, int64(80), totalMatched)
	for _, lot := range buys {
		require.GreaterOrEqual(t, lot.Remaining, int64(0))
	}
}

func TestMatchRateFailure(t *testing.T) {
	t.Parallel()
	// No rate for the sell date, not even via fallback: fatal with context.
	matcher := NewMatcher(staticConverter{rates: map[xtime.Date]decimal.Decimal{
		date(2021, time.January, 1): dec("3.2"),
	}}, "USD", "ILS")
	buy, err := NewBuyLot("MSFT", date(2021, time.January, 1), 10, dec("2500"))
	require.NoError(t, err)
	sell, err := NewSellEvent("MSFT", date(2021, time.June, 1), 10, dec("2800"))
	require.NoError(t, err)

	_, err = matcher.MatchSecurity(context.Background(), []*BuyLot{buy}, []SellEvent{sell})
	require.Error(t, err)
	require.ErrorIs(t, err, fxrate.ErrNoRate)
	require.Contains(t, err.Error(), "MSFT")
	require.Contains(t, err.Error(), "2021-06-01")
}

func TestNewBuyLotRejectsNonPositiveQuantity(t *testing.T) {
	t.Parallel()
	_, err := NewBuyLot("VTI", date(2021, time.January, 1), 0, dec("100"))
	require.Error(t, err)
	_, err = NewBuyLot("VTI", date(2021, time.January, 1), -5, dec("100"))
	require.Error(t, err)
	_, err = NewSellEvent("VTI", date(2021, time.January, 1), 0, dec("100"))
	require.Error(t, err)
}
