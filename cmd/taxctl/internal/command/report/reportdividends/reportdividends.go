// Copyright 2026 Peter Edge
//
// All rights reserved.

// Package reportdividends implements the "report dividends" command.
package reportdividends

import (
	"context"
	"strconv"

	"buf.build/go/app/appcmd"
	"buf.build/go/app/appext"
	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
	"github.com/taxctl/taxctl/cmd/taxctl/internal/taxctlcmd"
	"github.com/taxctl/taxctl/internal/pkg/brokercsv"
	"github.com/taxctl/taxctl/internal/pkg/cliio"
)

// yearFlagName is the flag name for the optional reporting year filter.
const yearFlagName = "year"

// NewCommand returns a new dividends command that lists dividend payments.
func NewCommand(name string, builder appext.SubCommandBuilder) *appcmd.Command {
	flags := newFlags()
	return &appcmd.Command{
		Use:   name,
		Short: "List dividend payments from a broker export",
		Args:  appcmd.NoArgs,
		Run: builder.NewRunFunc(
			func(ctx context.Context, container appext.Container) error {
				return run(ctx, container, flags)
			},
		),
		BindFlags: flags.Bind,
	}
}

type flags struct {
	// Dir is the base directory containing taxctl.yaml.
	Dir string
	// File is the broker export CSV to read.
	File string
	// Year optionally filters to a reporting year.
	Year string
	// Format is the output format (table, csv, json).
	Format string
}

func newFlags() *flags {
	return &flags{}
}

// Bind registers the flag definitions with the given flag set.
func (f *flags) Bind(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&f.Dir, taxctlcmd.DirFlagName, ".", "The base directory containing taxctl.yaml")
	flagSet.StringVar(&f.File, taxctlcmd.FileFlagName, "", "The broker export CSV file")
	flagSet.StringVar(&f.Year, yearFlagName, "", "Filter to a reporting year (omit for all years)")
	flagSet.StringVar(&f.Format, taxctlcmd.FormatFlagName, "table", "Output format (table, csv, json)")
}

func run(_ context.Context, container appext.Container, flags *flags) error {
	if flags.File == "" {
		return appcmd.NewInvalidArgumentErrorf("--%s is required", taxctlcmd.FileFlagName)
	}
	format, err := cliio.ParseFormat(flags.Format)
	if err != nil {
		return appcmd.NewInvalidArgumentError(err.Error())
	}
	_, statement, err := taxctlcmd.ReadStatement(flags.Dir, flags.File)
	if err != nil {
		return err
	}
	dividends := make([]brokercsv.Dividend, 0, len(statement.Dividends))
	for _, dividend := range statement.Dividends {
		if flags.Year != "" && strconv.Itoa(dividend.Date.Year) != flags.Year {
			continue
		}
		dividends = append(dividends, dividend)
	}
	headers := []string{"Date", "Currency", "Description", "Amount"}
	writer := container.Stdout()
	switch format {
	case cliio.FormatTable:
		rows := make([][]string, 0, len(dividends))
		// Total per currency, so mixed-currency exports stay honest.
		totals := make(map[string]decimal.Decimal)
		for _, dividend := range dividends {
			rows = append(rows, []string{
				dividend.Date.String(),
				dividend.CurrencyCode,
				dividend.Description,
				dividend.Amount.String(),
			})
			totals[dividend.CurrencyCode] = totals[dividend.CurrencyCode].Add(dividend.Amount)
		}
		totalsRow := []string{"TOTAL", "", "", taxctlcmd.FormatCurrencyTotals(totals)}
		return cliio.WriteTableWithTotals(writer, headers, rows, totalsRow)
	case cliio.FormatCSV:
		records := make([][]string, 0, len(dividends)+1)
		records = append(records, headers)
		for _, dividend := range dividends {
			records = append(records, []string{
				dividend.Date.String(),
				dividend.CurrencyCode,
				dividend.Description,
				dividend.Amount.String(),
			})
		}
		return cliio.WriteCSVRecords(writer, records)
	case cliio.FormatJSON:
		return cliio.WriteJSON(writer, dividends...)
	default:
		return appcmd.NewInvalidArgumentErrorf("unsupported format: %s", format)
	}
}
