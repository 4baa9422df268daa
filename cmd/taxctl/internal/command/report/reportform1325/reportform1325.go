// Copyright 2026 Peter Edge
//
// All rights reserved.

// Package reportform1325 implements the "report form1325" command.
package reportform1325

import (
	"context"
	"fmt"
	"io"

	"buf.build/go/app/appcmd"
	"buf.build/go/app/appext"
	"github.com/spf13/pflag"
	"github.com/taxctl/taxctl/cmd/taxctl/internal/taxctlcmd"
	"github.com/taxctl/taxctl/internal/pkg/cliio"
	"github.com/taxctl/taxctl/internal/taxctl/taxctlform1325"
)

const (
	// yearFlagName is the flag name for the reporting year.
	yearFlagName = "year"
	// outFlagName is the flag name for the form 1325 CSV output file.
	outFlagName = "out"
)

// NewCommand returns a new form1325 command that generates the capital gains form.
func NewCommand(name string, builder appext.SubCommandBuilder) *appcmd.Command {
	flags := newFlags()
	return &appcmd.Command{
		Use:   name,
		Short: "Generate Israeli tax form 1325 (FIFO capital gains) for a reporting year",
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
	// Year is the reporting year as a 4-digit string.
	Year string
	// Format is the output format (table, csv, json).
	Format string
	// Out is the optional form 1325 CSV output file path.
	Out string
}

func newFlags() *flags {
	return &flags{}
}

// Bind registers the flag definitions with the given flag set.
func (f *flags) Bind(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&f.Dir, taxctlcmd.DirFlagName, ".", "The base directory containing taxctl.yaml")
	flagSet.StringVar(&f.File, taxctlcmd.FileFlagName, "", "The broker export CSV file")
	flagSet.StringVar(&f.Year, yearFlagName, "", "The reporting year (e.g., 2021)")
	flagSet.StringVar(&f.Format, taxctlcmd.FormatFlagName, "table", "Output format (table, csv, json)")
	flagSet.StringVar(&f.Out, outFlagName, "", "Write the form 1325 CSV (Hebrew headers, BOM) to this file")
}

func run(ctx context.Context, container appext.Container, flags *flags) error {
	if flags.File == "" {
		return appcmd.NewInvalidArgumentErrorf("--%s is required", taxctlcmd.FileFlagName)
	}
	if flags.Year == "" {
		return appcmd.NewInvalidArgumentErrorf("--%s is required", yearFlagName)
	}
	format, err := cliio.ParseFormat(flags.Format)
	if err != nil {
		return appcmd.NewInvalidArgumentError(err.Error())
	}
	// Read config and extract the trade records from the export.
	config, statement, err := taxctlcmd.ReadStatement(flags.Dir, flags.File)
	if err != nil {
		return err
	}
	first, last, ok := taxctlform1325.TradeDateRange(statement.Trades)
	if !ok {
		return fmt.Errorf("no stock trades found in %s", flags.File)
	}
	// The rate provider covers the full trade date span; each pair is fetched once.
	converter := taxctlcmd.NewConverter(container, first, last)
	generator := taxctlform1325.NewGenerator(converter, config.ForeignCurrency, config.BaseCurrency)
	report, err := generator.Generate(ctx, statement.Trades, flags.Year)
	if err != nil {
		return err
	}
	// Surface under-covered sells loudly: the report is incomplete without
	// the missing buy history (e.g., buys before the export window).
	for _, unmatched := range report.UnmatchedSells {
		container.Logger().Warn(
			"sell not fully covered by prior buys",
			"symbol", unmatched.Symbol,
			"sell_date", unmatched.SellDate.String(),
			"unmatched_quantity", unmatched.Quantity,
		)
	}
	// Write the form 1325 CSV file if requested.
	if flags.Out != "" {
		if err := cliio.ForWriteFile(flags.Out, func(writer io.Writer) error {
			return taxctlform1325.WriteFormCSV(writer, report)
		}); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(container.Stdout(), "%s\n", flags.Out); err != nil {
			return err
		}
	}
	// Write output in the requested format.
	writer := container.Stdout()
	switch format {
	case cliio.FormatTable:
		headers := report.Headers()
		rows := make([][]string, 0, len(report.Rows))
		for _, row := range report.Rows {
			rows = append(rows, taxctlform1325.RowRecord(row))
		}
		return cliio.WriteTable(writer, headers, rows)
	case cliio.FormatCSV:
		records := make([][]string, 0, len(report.Rows)+1)
		records = append(records, report.Headers())
		for _, row := range report.Rows {
			records = append(records, taxctlform1325.RowRecord(row))
		}
		return cliio.WriteCSVRecords(writer, records)
	case cliio.FormatJSON:
		return cliio.WriteJSON(writer, report.Rows...)
	default:
		return appcmd.NewInvalidArgumentErrorf("unsupported format: %s", format)
	}
}
