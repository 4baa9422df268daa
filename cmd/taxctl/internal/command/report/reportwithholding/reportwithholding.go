// Copyright 2026 Peter Edge
//
// All rights reserved.

// Package reportwithholding implements the "report withholding" command.
package reportwithholding

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

// NewCommand returns a new withholding command that lists foreign taxes
// withheld (typically on dividends), creditable against the local liability.
func NewCommand(name string, builder appext.SubCommandBuilder) *appcmd.Command {
	flags := newFlags()
	return &appcmd.Command{
		Use:   name,
		Short: "List foreign withholding taxes from a broker export",
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
	withholdings := make([]brokercsv.WithholdingTax, 0, len(statement.WithholdingTaxes))
	for _, withholding := range statement.WithholdingTaxes {
		if flags.Year != "" && strconv.Itoa(withholding.Date.Year) != flags.Year {
			continue
		}
		withholdings = append(withholdings, withholding)
	}
	headers := []string{"Date", "Currency", "Description", "Amount"}
	writer := container.Stdout()
	switch format {
	case cliio.FormatTable:
		rows := make([][]string, 0, len(withholdings))
		// Total per currency, so mixed-currency exports stay honest.
		totals := make(map[string]decimal.Decimal)
		for _, withholding := range withholdings {
			rows = append(rows, []string{
				withholding.Date.String(),
				withholding.CurrencyCode,
				withholding.Description,
				withholding.Amount.String(),
			})
			totals[withholding.CurrencyCode] = totals[withholding.CurrencyCode].Add(withholding.Amount)
		}
		totalsRow := []string{"TOTAL", "", "", taxctlcmd.FormatCurrencyTotals(totals)}
		return cliio.WriteTableWithTotals(writer, headers, rows, totalsRow)
	case cliio.FormatCSV:
		records := make([][]string, 0, len(withholdings)+1)
		records = append(records, headers)
		for _, withholding := range withholdings {
			records = append(records, []string{
				withholding.Date.String(),
				withholding.CurrencyCode,
				withholding.Description,
				withholding.Amount.String(),
			})
		}
		return cliio.WriteCSVRecords(writer, records)
	case cliio.FormatJSON:
		return cliio.WriteJSON(writer, withholdings...)
	default:
		return appcmd.NewInvalidArgumentErrorf("unsupported format: %s", format)
	}
}
