// Copyright 2026 Peter Edge
//
// All rights reserved.

// Package brokercsv parses brokerage Activity Statement CSV exports.
//
// Activity Statement CSVs are multi-section files where each row starts with
// a section name and row type (Header, Data, SubTotal, Total). Different
// sections have different column layouts; each section's Header row names its
// columns. Section and column names are supplied by a Schema so the parser
// can be re-keyed to other brokers' export layouts without code changes. The
// default Schema matches Interactive Brokers Activity Statements.
//
// The parser extracts stock trades (Order rows only, excluding consolidated
// summary rows), dividends, and withholding taxes. Cash Report rows are
// excluded even when they mention dividends or taxes — they are account-level
// summaries, not individual entries.
package brokercsv

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/taxctl/taxctl/internal/standard/xtime"
)

// Schema maps the parser onto a broker's export layout. All fields are
// required; Validate rejects a Schema with missing keys.
type Schema struct {
	// TradesSection is the section name for trade rows.
	TradesSection string
	// DividendsSection is the section name for dividend rows.
	DividendsSection string
	// WithholdingSection is the section name for withholding tax rows.
	WithholdingSection string
	// CashReportSection is the section name for cash report summary rows,
	// which are always excluded.
	CashReportSection string
	// StocksCategory is the asset category value marking stock trades.
	StocksCategory string
	// OrderDiscriminator is the data discriminator value marking individual
	// orders (as opposed to consolidated summary rows).
	OrderDiscriminator string
	// SymbolColumn is the column name for the ticker symbol.
	SymbolColumn string
	// QuantityColumn is the column name for the signed trade quantity.
	QuantityColumn string
	// DateTimeColumn is the column name for the trade date/time.
	DateTimeColumn string
	// BasisColumn is the column name for the trade cost/proceeds basis.
	BasisColumn string
	// AssetCategoryColumn is the column name for the asset category.
	AssetCategoryColumn string
	// DiscriminatorColumn is the column name for the data discriminator.
	DiscriminatorColumn string
	// CurrencyColumn is the column name for the currency code in cash sections.
	CurrencyColumn string
	// DateColumn is the column name for the date in cash sections.
	DateColumn string
	// DescriptionColumn is the column name for the description in cash sections.
	DescriptionColumn string
	// AmountColumn is the column name for the amount in cash sections.
	AmountColumn string
}

// DefaultSchema returns the Schema for Interactive Brokers Activity Statements.
func DefaultSchema() Schema {
	return Schema{
		TradesSection:       "Trades",
		DividendsSection:    "Dividends",
		WithholdingSection:  "Withholding Tax",
		CashReportSection:   "Cash Report",
		StocksCategory:      "Stocks",
		OrderDiscriminator:  "Order",
		SymbolColumn:        "Symbol",
		QuantityColumn:      "Quantity",
		DateTimeColumn:      "Date/Time",
		BasisColumn:         "Basis",
		AssetCategoryColumn: "Asset Category",
		DiscriminatorColumn: "DataDiscriminator",
		CurrencyColumn:      "Currency",
		DateColumn:          "Date",
		DescriptionColumn:   "Description",
		AmountColumn:        "Amount",
	}
}

// Validate checks that every section and column key is set.
func (s Schema) Validate() error {
	for _, field := range []struct {
		name  string
		value string
	}{
		{"trades section", s.TradesSection},
		{"dividends section", s.DividendsSection},
		{"withholding section", s.WithholdingSection},
		{"cash report section", s.CashReportSection},
		{"stocks category", s.StocksCategory},
		{"order discriminator", s.OrderDiscriminator},
		{"symbol column", s.SymbolColumn},
		{"quantity column", s.QuantityColumn},
		{"date/time column", s.DateTimeColumn},
		{"basis column", s.BasisColumn},
		{"asset category column", s.AssetCategoryColumn},
		{"discriminator column", s.DiscriminatorColumn},
		{"currency column", s.CurrencyColumn},
		{"date column", s.DateColumn},
		{"description column", s.DescriptionColumn},
		{"amount column", s.AmountColumn},
	} {
		if field.value == "" {
			return fmt.Errorf("schema %s is required", field.name)
		}
	}
	return nil
}

// Statement contains all records extracted from a single export.
type Statement struct {
	// Trades contains individual stock trade executions (buys and sells).
	Trades []Trade
	// Dividends contains dividend payments received.
	Dividends []Dividend
	// WithholdingTaxes contains taxes withheld on dividends.
	WithholdingTaxes []WithholdingTax
}

// Trade is a single stock order. Immutable once extracted.
type Trade struct {
	// Symbol is the ticker symbol.
	Symbol string
	// Date is the trade date. Time of day is dropped after parsing.
	Date xtime.Date
	// Quantity is positive for buys, negative for sells. Never zero.
	Quantity int64
	// Basis is the total cost (buy) or proceeds (sell) for the order in the
	// trade currency, always a positive magnitude. The sign of Quantity
	// disambiguates buy vs sell.
	Basis decimal.Decimal
	// CurrencyCode is the trade currency (e.g., "USD").
	CurrencyCode string
}

// Dividend is a single dividend payment.
type Dividend struct {
	CurrencyCode string
	Date         xtime.Date
	Description  string
	Amount       decimal.Decimal
}

// WithholdingTax is a single tax withheld on a dividend.
type WithholdingTax struct {
	CurrencyCode string
	Date         xtime.Date
	Description  string
	Amount       decimal.Decimal
}

// ParseFile parses a single Activity Statement CSV file.
func ParseFile(filePath string, schema Schema) (*Statement, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	statement, err := Parse(file, schema)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filePath, err)
	}
	return statement, nil
}

// Parse parses an Activity Statement CSV from the reader.
func Parse(reader io.Reader, schema Schema) (*Statement, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	csvReader := csv.NewReader(reader)
	// Sections have different column counts.
	csvReader.FieldsPerRecord = -1
	csvReader.TrimLeadingSpace = true

	statement := &Statement{}
	// Track the current header for each section to map column names to indices.
	sectionColumns := make(map[string]map[string]int)

	for {
		record, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV: %w", err)
		}
		if len(record) < 2 {
			continue
		}
		sectionName := record[0]
		rowType := record[1]

		// Cash Report rows are account-level summaries, never individual entries.
		if sectionName == schema.CashReportSection {
			continue
		}

		// Header rows define the column layout for subsequent Data rows.
		if rowType == "Header" {
			columns := make(map[string]int, len(record))
			for i, name := range record {
				columns[name] = i
			}
			sectionColumns[sectionName] = columns
			continue
		}

		// Only process Data rows (skip SubTotal, Total, Notes).
		if rowType != "Data" {
			continue
		}

		columns := sectionColumns[sectionName]
		if columns == nil {
			// Sections we do not extract may appear without a header row.
			switch sectionName {
			case schema.TradesSection, schema.DividendsSection, schema.WithholdingSection:
				return nil, fmt.Errorf("section %q has a data row before its header", sectionName)
			default:
				continue
			}
		}

		switch sectionName {
		case schema.TradesSection:
			if err := parseTrade(record, columns, schema, statement); err != nil {
				return nil, fmt.Errorf("parsing trade: %w", err)
			}
		case schema.DividendsSection:
			dividend, ok, err := parseCashRow(record, columns, schema)
			if err != nil {
				return nil, fmt.Errorf("parsing dividend: %w", err)
			}
			if ok {
				statement.Dividends = append(statement.Dividends, Dividend(dividend))
			}
		case schema.WithholdingSection:
			withholding, ok, err := parseCashRow(record, columns, schema)
			if err != nil {
				return nil, fmt.Errorf("parsing withholding tax: %w", err)
			}
			if ok {
				statement.WithholdingTaxes = append(statement.WithholdingTaxes, WithholdingTax(withholding))
			}
		}
	}
	return statement, nil
}

// *** PRIVATE ***

// cashRow is the common shape of dividend and withholding tax rows.
type cashRow struct {
	CurrencyCode string
	Date         xtime.Date
	Description  string
	Amount       decimal.Decimal
}

// parseTrade parses a trades Data row. Only individual stock orders are kept:
// rows whose asset category and data discriminator match the schema.
func parseTrade(record []string, columns map[string]int, schema Schema, statement *Statement) error {
	discriminator, err := field(record, columns, schema.DiscriminatorColumn)
	if err != nil {
		return err
	}
	if discriminator != schema.OrderDiscriminator {
		return nil
	}
	assetCategory, err := field(record, columns, schema.AssetCategoryColumn)
	if err != nil {
		return err
	}
	if assetCategory != schema.StocksCategory {
		return nil
	}
	symbol, err := field(record, columns, schema.SymbolColumn)
	if err != nil {
		return err
	}
	dateTimeValue, err := field(record, columns, schema.DateTimeColumn)
	if err != nil {
		return err
	}
	date, err := parseTradeDate(dateTimeValue)
	if err != nil {
		return fmt.Errorf("parsing date %q for %s: %w", dateTimeValue, symbol, err)
	}
	quantityValue, err := field(record, columns, schema.QuantityColumn)
	if err != nil {
		return err
	}
	quantity, err := strconv.ParseInt(cleanNumber(quantityValue), 10, 64)
	if err != nil {
		return fmt.Errorf("parsing quantity %q for %s: %w", quantityValue, symbol, err)
	}
	if quantity == 0 {
		return fmt.Errorf("zero quantity for %s on %s", symbol, date)
	}
	basisValue, err := field(record, columns, schema.BasisColumn)
	if err != nil {
		return err
	}
	basis, err := decimal.NewFromString(cleanNumber(basisValue))
	if err != nil {
		return fmt.Errorf("parsing basis %q for %s: %w", basisValue, symbol, err)
	}
	currencyCode, err := field(record, columns, schema.CurrencyColumn)
	if err != nil {
		return err
	}
	statement.Trades = append(statement.Trades, Trade{
		Symbol:       symbol,
		Date:         date,
		Quantity:     quantity,
		Basis:        basis.Abs(),
		CurrencyCode: currencyCode,
	})
	return nil
}

// parseCashRow parses a dividend or withholding tax Data row. Returns ok=false
// for Total/summary rows, which carry a "Total..." marker in the currency column.
func parseCashRow(record []string, columns map[string]int, schema Schema) (cashRow, bool, error) {
	currencyCode, err := field(record, columns, schema.CurrencyColumn)
	if err != nil {
		return cashRow{}, false, err
	}
	if strings.HasPrefix(currencyCode, "Total") {
		return cashRow{}, false, nil
	}
	dateValue, err := field(record, columns, schema.DateColumn)
	if err != nil {
		return cashRow{}, false, err
	}
	date, err := xtime.ParseDate(dateValue)
	if err != nil {
		return cashRow{}, false, fmt.Errorf("parsing date %q: %w", dateValue, err)
	}
	description, err := field(record, columns, schema.DescriptionColumn)
	if err != nil {
		return cashRow{}, false, err
	}
	amountValue, err := field(record, columns, schema.AmountColumn)
	if err != nil {
		return cashRow{}, false, err
	}
	amount, err := decimal.NewFromString(cleanNumber(amountValue))
	if err != nil {
		return cashRow{}, false, fmt.Errorf("parsing amount %q: %w", amountValue, err)
	}
	return cashRow{
		CurrencyCode: currencyCode,
		Date:         date,
		Description:  description,
		Amount:       amount,
	}, true, nil
}

// field returns the named column's value from the record.
func field(record []string, columns map[string]int, name string) (string, error) {
	index, ok := columns[name]
	if !ok {
		return "", fmt.Errorf("column %q not found in section header", name)
	}
	if index >= len(record) {
		return "", fmt.Errorf("row too short for column %q (index %d, %d fields)", name, index, len(record))
	}
	return record[index], nil
}

// parseTradeDate parses a trade date/time value in "2006-01-02, 15:04:05"
// format, keeping only the date. Date-only values are also accepted.
func parseTradeDate(s string) (xtime.Date, error) {
	dateString, _, _ := strings.Cut(s, ",")
	return xtime.ParseDate(strings.TrimSpace(dateString))
}

// cleanNumber strips commas and surrounding whitespace from numeric strings
// (e.g., "-2,290" → "-2290").
func cleanNumber(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
}
