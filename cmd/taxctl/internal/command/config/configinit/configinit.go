// Copyright 2026 Peter Edge
//
// All rights reserved.

// Package configinit implements the "config init" command.
package configinit

import (
	"context"
	"fmt"

	"buf.build/go/app/appcmd"
	"buf.build/go/app/appext"
	"github.com/spf13/pflag"
	"github.com/taxctl/taxctl/cmd/taxctl/internal/taxctlcmd"
	"github.com/taxctl/taxctl/internal/taxctl/taxctlconfig"
)

// NewCommand returns a new config init command that creates a default configuration file.
func NewCommand(name string, builder appext.SubCommandBuilder) *appcmd.Command {
	flags := newFlags()
	return &appcmd.Command{
		Use:   name,
		Short: "Create a new configuration file",
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
}

func newFlags() *flags {
	return &flags{}
}

// Bind registers the flag definitions with the given flag set.
func (f *flags) Bind(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&f.Dir, taxctlcmd.DirFlagName, ".", "The base directory containing taxctl.yaml")
}

func run(_ context.Context, container appext.Container, flags *flags) error {
	// Create the configuration file in the specified directory.
	filePath, err := taxctlconfig.InitConfig(flags.Dir)
	if err != nil {
		return err
	}
	// Print the file path so the user knows where to find it.
	_, err = fmt.Fprintf(container.Stdout(), "%s\n", filePath)
	return err
}
