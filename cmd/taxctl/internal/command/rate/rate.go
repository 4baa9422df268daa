// Copyright 2026 Peter Edge
//
// All rights reserved.

// Package rate implements the "rate" command.
package rate

import (
	"context"
	"fmt"

	"buf.build/go/app/appcmd"
	"buf.build/go/app/appext"
	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
	"github.com/taxctl/taxctl/cmd/taxctl/internal/taxctlcmd"
	"github.com/taxctl/taxctl/internal/standard/xtime"
	"github.com/taxctl/taxctl/internal/taxctl/taxctlconfig"
)

const (
	// dateFlagName is the flag name for the rate date.
	dateFlagName = "date"
	// fromFlagName is the flag name for the source currency.
	fromFlagName = "from"
	// toFlagName is the flag name for the target currency.
	toFlagName = "to"
	// amountFlagName is the flag name for the amount to convert.
	amountFlagName = "amount"
)

// NewCommand returns a new rate command that converts an amount between
// currencies at a historical daily rate, with the same prior-date fallback
// the report uses for weekends and holidays.
func NewCommand(name string, builder appext.SubCommandBuilder) *appcmd.Command {
	flags := newFlags()
	return &appcmd.Command{
		Use:   name,
		Short: "Convert an amount between currencies at a historical date's rate",
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
	// Date is the rate date in YYYY-MM-DD format.
	Date string
	// From is the source currency. Empty means the configured foreign currency.
	From string
	// To is the target currency. Empty means the configured base currency.
	To string
	// Amount is the amount to convert.
	Amount string
}

func newFlags() *flags {
	return &flags{}
}

// Bind registers the flag definitions with the given flag set.
func (f *flags) Bind(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&f.Dir, taxctlcmd.DirFlagName, ".", "The base directory containing taxctl.yaml")
	flagSet.StringVar(&f.Date, dateFlagName, "", "The rate date (YYYY-MM-DD)")
	flagSet.StringVar(&f.From, fromFlagName, "", "Source currency (defaults to the configured foreign currency)")
	flagSet.StringVar(&f.To, toFlagName, "", "Target currency (defaults to the configured base currency)")
	flagSet.StringVar(&f.Amount, amountFlagName, "1", "The amount to convert")
}

func run(ctx context.Context, container appext.Container, flags *flags) error {
	if flags.Date == "" {
		return appcmd.NewInvalidArgumentErrorf("--%s is required", dateFlagName)
	}
	date, err := xtime.ParseDate(flags.Date)
	if err != nil {
		return appcmd.NewInvalidArgumentErrorf("invalid --%s: %v", dateFlagName, err)
	}
	amount, err := decimal.NewFromString(flags.Amount)
	if err != nil {
		return appcmd.NewInvalidArgumentErrorf("invalid --%s: %v", amountFlagName, err)
	}
	config, err := taxctlconfig.ReadConfig(flags.Dir)
	if err != nil {
		return err
	}
	fromCurrency := flags.From
	if fromCurrency == "" {
		fromCurrency = config.ForeignCurrency
	}
	toCurrency := flags.To
	if toCurrency == "" {
		toCurrency = config.BaseCurrency
	}
	converter := taxctlcmd.NewConverter(container, date, date)
	converted, err := converter.Convert(ctx, amount, fromCurrency, toCurrency, date)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(container.Stdout(), "%s\n", converted.String())
	return err
}
