// Copyright 2026 Peter Edge
//
// All rights reserved.

// Package report implements the "report" command group.
package report

import (
	"buf.build/go/app/appcmd"
	"buf.build/go/app/appext"
	"github.com/taxctl/taxctl/cmd/taxctl/internal/command/report/reportdividends"
	"github.com/taxctl/taxctl/cmd/taxctl/internal/command/report/reportform1325"
	"github.com/taxctl/taxctl/cmd/taxctl/internal/command/report/reportwithholding"
)

// NewCommand returns a new report command group with form1325, dividends,
// and withholding sub-commands.
func NewCommand(name string, builder appext.SubCommandBuilder) *appcmd.Command {
	return &appcmd.Command{
		Use:   name,
		Short: "Generate annual tax report tables from a broker export",
		SubCommands: []*appcmd.Command{
			reportform1325.NewCommand("form1325", builder),
			reportdividends.NewCommand("dividends", builder),
			reportwithholding.NewCommand("withholding", builder),
		},
	}
}
