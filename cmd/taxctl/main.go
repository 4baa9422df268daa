// Copyright 2026 Peter Edge
//
// All rights reserved.

package main

import (
	"context"

	"buf.build/go/app/appcmd"
	"buf.build/go/app/appext"
	"github.com/taxctl/taxctl/cmd/taxctl/internal/command/config"
	"github.com/taxctl/taxctl/cmd/taxctl/internal/command/rate"
	"github.com/taxctl/taxctl/cmd/taxctl/internal/command/report"
)

func main() {
	appcmd.Main(context.Background(), newRootCommand("taxctl"))
}

// newRootCommand creates the root taxctl command with all sub-commands.
func newRootCommand(name string) *appcmd.Command {
	builder := appext.NewBuilder(name)
	return &appcmd.Command{
		Use:                 name,
		Short:               "Generate Israeli tax report forms from brokerage exports",
		BindPersistentFlags: builder.BindRoot,
		SubCommands: []*appcmd.Command{
			config.NewCommand("config", builder),
			rate.NewCommand("rate", builder),
			report.NewCommand("report", builder),
		},
	}
}
