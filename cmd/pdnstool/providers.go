package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nao1215/passivedns/internal/provider"
)

// NewProvidersCmd creates the providers command.
func NewProvidersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List the supported passive DNS providers",
		Long: `List every supported provider with the letter that selects it in
"pdnstool query -d" and the section that holds its settings in .pdnstool.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "LETTER\tNAME\tSECTION")
			for _, info := range provider.Registered() {
				fmt.Fprintf(tw, "%c\t%s\t%s\n", info.Letter, info.Name, info.Section)
			}
			return tw.Flush()
		},
	}
}
