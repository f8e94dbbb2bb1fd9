package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for pdnstool.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pdnstool",
		Short: "Query and crawl passive DNS providers",
		Long: `pdnstool aggregates historical DNS resolutions ("passive DNS") from
several providers, normalizes them into one record shape and can crawl
the answers recursively to map related names and addresses.

Provider credentials are read from .pdnstool (see "pdnstool init").`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewQueryCmd())
	cmd.AddCommand(NewRenderCmd())
	cmd.AddCommand(NewProvidersCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
