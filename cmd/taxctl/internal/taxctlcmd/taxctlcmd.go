// Copyright 2026 Peter Edge
//
// All rights reserved.

// Package taxctlcmd provides shared wiring for taxctl commands that need the
// report pipeline (reading config, parsing the export, constructing the rate
// provider).
package taxctlcmd

import (
	"fmt"
	"sort"
	"strings"

	"buf.build/go/app/appext"

	"github.com/shopspring/decimal"
	"github.com/taxctl/taxctl/internal/pkg/brokercsv"
	"github.com/taxctl/taxctl/internal/pkg/frankfurter"
	"github.com/taxctl/taxctl/internal/pkg/fxrate"
	"github.com/taxctl/taxctl/internal/standard/xtime"
	"github.com/taxctl/taxctl/internal/taxctl/taxctlconfig"
)

const (
	// DirFlagName is the shared flag name for the base directory containing taxctl.yaml.
	DirFlagName = "dir"
	// FileFlagName is the shared flag name for the broker export CSV file.
	FileFlagName = "file"
	// FormatFlagName is the shared flag name for the output format.
	FormatFlagName = "format"
)

// NewConverter constructs the rate provider for conversions between startDate
// and endDate, backed by the frankfurter.dev ECB rate API.
func NewConverter(container appext.Container, startDate xtime.Date, endDate xtime.Date) fxrate.Converter {
	client := frankfurter.NewClient(frankfurter.ClientWithLogger(container.Logger()))
	return fxrate.NewConverter(client, startDate, endDate)
}

// ReadStatement reads the config from the base directory and parses the
// broker export with the configured schema.
func ReadStatement(dirPath string, filePath string) (*taxctlconfig.Config, *brokercsv.Statement, error) {
	config, err := taxctlconfig.ReadConfig(dirPath)
	if err != nil {
		return nil, nil, err
	}
	statement, err := brokercsv.ParseFile(filePath, config.Schema)
	if err != nil {
		return nil, nil, err
	}
	return config, statement, nil
}

// FormatCurrencyTotals renders per-currency totals as "USD 123.45, EUR 6.78"
// with currencies in sorted order.
func FormatCurrencyTotals(totals map[string]decimal.Decimal) string {
	currencyCodes := make([]string, 0, len(totals))
	for currencyCode := range totals {
		currencyCodes = append(currencyCodes, currencyCode)
	}
	sort.Strings(currencyCodes)
	parts := make([]string, 0, len(currencyCodes))
	for _, currencyCode := range currencyCodes {
		parts = append(parts, fmt.Sprintf("%s %s", currencyCode, totals[currencyCode].String()))
	}
	return strings.Join(parts, ", ")
}
