package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/nao1215/passivedns/internal/config"
	"github.com/nao1215/passivedns/internal/database"
	pdnslog "github.com/nao1215/passivedns/internal/log"
)

// errNoStateFile is returned when render is called without -f.
var errNoStateFile = errors.New("no state file specified: use -f")

// NewRenderCmd creates the render command.
func NewRenderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render -f <state file> [flags]",
		Short: "Render the results stored in a crawl state file",
		Long: `Render reads the results gathered by an earlier "pdnstool query -f"
run and writes them in any supported format without contacting a provider.

Examples:
  # Print the stored results as text
  pdnstool render -f crawl.db

  # Draw the crawl as a GraphML graph
  pdnstool render -f crawl.db -m -o crawl.graphml`,
		Args: cobra.NoArgs,
		RunE: runRenderCmd,
	}

	cmd.Flags().StringP("file", "f", "",
		"SQLite state file written by query -f")
	addOutputFlags(cmd)

	return cmd
}

// runRenderCmd executes the render command.
func runRenderCmd(cmd *cobra.Command, _ []string) error {
	path, err := cmd.Flags().GetString("file")
	if err != nil {
		return err
	}
	if path == "" {
		return errNoStateFile
	}
	path = config.ResolveStatePath(path)

	format, sep, output, err := outputSettings(cmd)
	if err != nil {
		return err
	}

	logger := pdnslog.NewSecureLogger(cmd.ErrOrStderr(), getVerboseFlag(cmd))
	slog.SetDefault(logger)

	ctx := cmd.Context()
	opts := database.DefaultOptions()
	opts.CreateIfNotExists = false
	db, err := database.Open(ctx, path, opts)
	if err != nil {
		return fmt.Errorf("failed to open crawl state: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("failed to close crawl state", "error", err)
		}
	}()

	logger.Debug("rendering crawl state", "path", db.Path(), "format", format)
	return render(ctx, db, format, sep, output, cmd.OutOrStdout())
}
