// Copyright 2026 Peter Edge
//
// All rights reserved.

// Package taxctllot provides FIFO lot matching and currency-adjusted
// gain/loss computation for one security's trades.
//
// Sells are matched against prior buys oldest-first. A sell that consumes
// only part of a buy lot splits it: the lot's remaining quantity decreases
// and the lot stays at the front of the queue. Each matched (buy fragment,
// sell fragment) pair produces one result row with cost and proceeds
// converted to the base currency at the buy-date and sell-date rates.
package taxctllot

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/taxctl/taxctl/internal/pkg/fxrate"
	"github.com/taxctl/taxctl/internal/standard/xtime"
)

// BuyLot is a single purchase tracked through FIFO matching. Remaining
// starts at Quantity and monotonically decreases as sells consume the lot.
type BuyLot struct {
	// Symbol is the ticker symbol.
	Symbol string
	// Date is the purchase date.
	Date xtime.Date
	// Quantity is the original lot quantity. Always positive.
	Quantity int64
	// Remaining is the unconsumed quantity. Never negative.
	Remaining int64
	// Basis is the total foreign-currency cost for the whole original lot.
	Basis decimal.Decimal
}

// NewBuyLot creates a BuyLot with its full quantity remaining.
// The quantity must be positive.
func NewBuyLot(symbol string, date xtime.Date, quantity int64, basis decimal.Decimal) (*BuyLot, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("buy lot for %s on %s has non-positive quantity %d", symbol, date, quantity)
	}
	return &BuyLot{
		Symbol:    symbol,
		Date:      date,
		Quantity:  quantity,
		Remaining: quantity,
		Basis:     basis.Abs(),
	}, nil
}

// SellEvent is a single sale to be matched against prior buy lots.
// Immutable during matching.
type SellEvent struct {
	// Symbol is the ticker symbol.
	Symbol string
	// Date is the sale date.
	Date xtime.Date
	// Quantity is the number of units sold. Always positive.
	Quantity int64
	// Basis is the total foreign-currency proceeds for the whole sale.
	Basis decimal.Decimal
}

// NewSellEvent creates a SellEvent. The quantity must be positive (callers
// pass the absolute value of the broker's negative sell quantity).
func NewSellEvent(symbol string, date xtime.Date, quantity int64, basis decimal.Decimal) (SellEvent, error) {
	if quantity <= 0 {
		return SellEvent{}, fmt.Errorf("sell event for %s on %s has non-positive quantity %d", symbol, date, quantity)
	}
	return SellEvent{
		Symbol:   symbol,
		Date:     date,
		Quantity: quantity,
		Basis:    basis.Abs(),
	}, nil
}

// Row is one matched (buy fragment, sell fragment) pair. All monetary values
// are kept at full precision; rounding happens at display time. Exactly one
// of Gain and Loss is set: Gain (>= 0) when the fragment gained in
// foreign-currency terms, Loss (<= 0) otherwise.
type Row struct {
	// Symbol is the ticker symbol.
	Symbol string
	// Quantity is the matched quantity: units of this buy lot consumed by
	// this sell.
	Quantity int64
	// ProceedsFX is this fragment's share of the sell's foreign-currency proceeds.
	ProceedsFX decimal.Decimal
	// BuyDate is the purchase date of the consumed lot.
	BuyDate xtime.Date
	// CostFX is this fragment's share of the lot's foreign-currency cost.
	CostFX decimal.Decimal
	// CostBase is CostFX converted to the base currency at the buy-date rate.
	CostBase decimal.Decimal
	// RateChange is the sell-date rate divided by the buy-date rate.
	RateChange decimal.Decimal
	// AdjustedCostBase is CostBase restated as if it had moved with the
	// exchange rate between purchase and sale.
	AdjustedCostBase decimal.Decimal
	// SellDate is the sale date.
	SellDate xtime.Date
	// ProceedsBase is ProceedsFX converted to the base currency at the
	// sell-date rate.
	ProceedsBase decimal.Decimal
	// Gain is the realized gain in base currency, nil when the fragment lost.
	Gain *decimal.Decimal
	// Loss is the realized loss in base currency, nil when the fragment gained.
	Loss *decimal.Decimal
}

// UnmatchedSell records sell quantity that could not be matched against any
// prior buy lot (e.g., the buy occurred before the export window).
type UnmatchedSell struct {
	// Symbol is the ticker symbol.
	Symbol string
	// SellDate is the date of the under-covered sale.
	SellDate xtime.Date
	// Quantity is the sell quantity left without a matching buy lot.
	Quantity int64
}

// MatchResult contains the output of matching one security's sells.
type MatchResult struct {
	// Rows is the ordered sequence of matched-lot rows.
	Rows []Row
	// UnmatchedSells records sells that could not be fully covered.
	UnmatchedSells []UnmatchedSell
}

// Matcher matches sells against buy lots and computes per-fragment
// gain/loss. The rate provider and the currency pair are passed in at
// construction rather than held as shared state.
type Matcher struct {
	converter       fxrate.Converter
	foreignCurrency string
	baseCurrency    string
}

// NewMatcher creates a Matcher converting foreignCurrency amounts to
// baseCurrency through the given converter.
func NewMatcher(converter fxrate.Converter, foreignCurrency string, baseCurrency string) *Matcher {
	return &Matcher{
		converter:       converter,
		foreignCurrency: foreignCurrency,
		baseCurrency:    baseCurrency,
	}
}

// MatchSecurity matches one security's sells against its buy lots using FIFO
// ordering. Both queues must be ordered oldest-first; the buy queue is
// consumed destructively.
//
// Every sell produces rows covering as much of its quantity as prior buy
// lots allow. A sell that exhausts the buy queue before being fully covered
// is recorded in UnmatchedSells rather than failing the run.
func (m *Matcher) MatchSecurity(ctx context.Context, buys []*BuyLot, sells []SellEvent) (*MatchResult, error) {
	result := &MatchResult{}
	for _, sell := range sells {
		if sell.Quantity <= 0 {
			return nil, fmt.Errorf("sell event for %s on %s has non-positive quantity %d", sell.Symbol, sell.Date, sell.Quantity)
		}
		var matched int64
		for matched < sell.Quantity && len(buys) > 0 {
			buy := buys[0]
			// Only quantity bought on or before the sell date is available:
			// a sell predating its buys matches nothing.
			if buy.Date.After(sell.Date) {
				break
			}
			if buy.Remaining <= 0 {
				return nil, fmt.Errorf("buy lot for %s on %s has non-positive remaining quantity %d", buy.Symbol, buy.Date, buy.Remaining)
			}
			take := buy.Remaining
			if rest := sell.Quantity - matched; rest < take {
				take = rest
			}
			// Compute the row before mutating the lot: the cost fraction is
			// taken over the lot's original quantity.
			row, err := m.computeRow(ctx, buy, sell, take)
			if err != nil {
				return nil, err
			}
			result.Rows = append(result.Rows, row)
			buy.Remaining -= take
			if buy.Remaining == 0 {
				buys = buys[1:]
			}
			matched += take
		}
		if matched < sell.Quantity {
			result.UnmatchedSells = append(result.UnmatchedSells, UnmatchedSell{
				Symbol:   sell.Symbol,
				SellDate: sell.Date,
				Quantity: sell.Quantity - matched,
			})
		}
	}
	return result, nil
}

// *** PRIVATE ***

// one is the unit amount converted to obtain a plain exchange rate.
var one = decimal.NewFromInt(1)

// computeRow computes the matched-lot row for take units of the buy lot
// consumed by the sell.
//
// The fragment's proceeds are its proportional share of the sell's total
// proceeds, and its cost is its proportional share of the lot's original
// total cost. The two conversions at buy-date and sell-date rates yield the
// nominal base-currency difference; the rate-change adjustment restates the
// cost as if it had moved with the exchange rate, and whichever of the
// nominal and adjusted differences is more conservative for the taxpayer is
// reported (smaller gain, greater loss), clamped at zero.
func (m *Matcher) computeRow(ctx context.Context, buy *BuyLot, sell SellEvent, take int64) (Row, error) {
	quantity := decimal.NewFromInt(take)
	proceedsFX := quantity.Div(decimal.NewFromInt(sell.Quantity)).Mul(sell.Basis.Abs())
	costFX := quantity.Div(decimal.NewFromInt(buy.Quantity)).Mul(buy.Basis)
	rateBuy, err := m.converter.Convert(ctx, one, m.foreignCurrency, m.baseCurrency, buy.Date)
	if err != nil {
		return Row{}, fmt.Errorf("buy-date rate for %s: %w", buy.Symbol, err)
	}
	rateSell, err := m.converter.Convert(ctx, one, m.foreignCurrency, m.baseCurrency, sell.Date)
	if err != nil {
		return Row{}, fmt.Errorf("sell-date rate for %s: %w", sell.Symbol, err)
	}
	if rateBuy.IsZero() {
		return Row{}, fmt.Errorf("zero %s/%s rate on %s for %s", m.foreignCurrency, m.baseCurrency, buy.Date, buy.Symbol)
	}
	costBase := rateBuy.Mul(costFX)
	rateChange := rateSell.Div(rateBuy)
	adjustedCostBase := costBase.Mul(rateChange)
	proceedsBase := proceedsFX.Mul(rateSell)
	row := Row{
		Symbol:           sell.Symbol,
		Quantity:         take,
		ProceedsFX:       proceedsFX,
		BuyDate:          buy.Date,
		CostFX:           costFX,
		CostBase:         costBase,
		RateChange:       rateChange,
		AdjustedCostBase: adjustedCostBase,
		SellDate:         sell.Date,
		ProceedsBase:     proceedsBase,
	}
	nominal := proceedsBase.Sub(costBase)
	adjusted := proceedsBase.Sub(adjustedCostBase)
	if proceedsFX.GreaterThan(costFX) {
		// Gained in foreign-currency terms: report the lesser of the nominal
		// and the rate-adjusted gain, never below zero.
		gain := decimal.Min(adjusted, nominal)
		if gain.IsNegative() {
			gain = decimal.Zero
		}
		row.Gain = &gain
	} else {
		// Lost in foreign-currency terms: report the smaller-magnitude of the
		// nominal and the rate-adjusted loss, never above zero.
		loss := decimal.Max(adjusted, nominal)
		if loss.IsPositive() {
			loss = decimal.Zero
		}
		row.Loss = &loss
	}
	return row, nil
}
