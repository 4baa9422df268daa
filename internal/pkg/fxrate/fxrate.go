// Copyright 2026 Peter Edge
//
// All rights reserved.

// Package fxrate provides historical currency conversion with a
// most-recent-prior-rate fallback.
//
// Rate series are lazily fetched per currency pair from a rate Source
// (e.g., the frankfurter.dev client) and cached in memory. Rates are not
// published on weekends and holidays, so lookups for those dates fall back
// to the most recent prior published rate.
package fxrate

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/taxctl/taxctl/internal/standard/xtime"
)

// FallbackDays is the maximum number of days a lookup walks back from the
// requested date before giving up. ECB publication gaps are at most a few
// days (weekends, holiday clusters); anything beyond this indicates the
// requested date is outside the loaded series.
const FallbackDays = 30

// ErrNoRate is returned when no rate is available for a date, even via the
// prior-rate fallback.
var ErrNoRate = errors.New("no exchange rate available")

// Source fetches daily exchange rate series for a currency pair.
// *frankfurter.Client implements this.
type Source interface {
	GetRates(ctx context.Context, baseCurrency string, quoteCurrency string, startDate xtime.Date, endDate xtime.Date) (map[xtime.Date]decimal.Decimal, error)
}

// Converter converts amounts between currencies at historical daily rates.
type Converter interface {
	// Convert converts amount from fromCurrency to toCurrency at the rate
	// for date, falling back to the most recent prior rate when the exact
	// date has no published rate.
	//
	// Returns an error wrapping ErrNoRate if no rate is available even via
	// the fallback.
	Convert(ctx context.Context, amount decimal.Decimal, fromCurrency string, toCurrency string, date xtime.Date) (decimal.Decimal, error)
}

// NewConverter creates a Converter that serves conversions for dates within
// [startDate, endDate] from the given source.
//
// The series for each pair is fetched once, on first use, covering
// [startDate - FallbackDays, endDate] so that fallback lookups near the
// start of the range still resolve.
func NewConverter(source Source, startDate xtime.Date, endDate xtime.Date) Converter {
	return &converter{
		source:    source,
		startDate: startDate,
		endDate:   endDate,
		pairs:     make(map[string]map[xtime.Date]decimal.Decimal),
	}
}

type converter struct {
	source    Source
	startDate xtime.Date
	endDate   xtime.Date
	// mu protects pairs for concurrent lazy loading.
	mu sync.Mutex
	// pairs maps "FROM.TO" to the loaded daily rate series for that pair.
	// A nil map means the fetch was attempted and returned no data.
	pairs map[string]map[xtime.Date]decimal.Decimal
}

func (c *converter) Convert(
	ctx context.Context,
	amount decimal.Decimal,
	fromCurrency string,
	toCurrency string,
	date xtime.Date,
) (decimal.Decimal, error) {
	if fromCurrency == toCurrency {
		return amount, nil
	}
	rates, err := c.loadPair(ctx, fromCurrency, toCurrency)
	if err != nil {
		return decimal.Decimal{}, err
	}
	// Walk back from the requested date to the most recent published rate.
	lookup := date
	for i := 0; i <= FallbackDays; i++ {
		if rate, ok := rates[lookup]; ok {
			return amount.Mul(rate), nil
		}
		lookup = lookup.AddDays(-1)
	}
	return decimal.Decimal{}, fmt.Errorf("%w: %s/%s on %s", ErrNoRate, fromCurrency, toCurrency, date)
}

// *** PRIVATE ***

// loadPair lazily fetches the rate series for a currency pair, returning the
// cached series on subsequent calls.
func (c *converter) loadPair(ctx context.Context, fromCurrency string, toCurrency string) (map[xtime.Date]decimal.Decimal, error) {
	pairKey := fromCurrency + "." + toCurrency
	c.mu.Lock()
	defer c.mu.Unlock()
	if rates, loaded := c.pairs[pairKey]; loaded {
		return rates, nil
	}
	// Extend the fetch window back so fallback lookups at the range start resolve.
	rates, err := c.source.GetRates(ctx, fromCurrency, toCurrency, c.startDate.AddDays(-FallbackDays), c.endDate)
	if err != nil {
		return nil, fmt.Errorf("loading rates for %s: %w", pairKey, err)
	}
	c.pairs[pairKey] = rates
	return rates, nil
}
