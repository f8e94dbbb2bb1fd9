package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nao1215/passivedns/internal/config"
)

// formatFlag binds a boolean output flag to a format.
type formatFlag struct {
	name      string
	shorthand string
	format    string
	usage     string
}

var formatFlags = []formatFlag{
	{"text", "t", config.FormatText, "Text output, one separator-joined line per record (default)"},
	{"csv", "c", config.FormatCSV, "CSV output"},
	{"json", "j", config.FormatJSON, "JSON output"},
	{"yaml", "y", config.FormatYAML, "YAML output"},
	{"xml", "x", config.FormatXML, "XML output"},
	{"gdf", "g", config.FormatGDF, "GDF graph output (Gephi)"},
	{"graphviz", "z", config.FormatGraphviz, "Graphviz DOT graph output"},
	{"graphml", "m", config.FormatGraphML, "GraphML graph output"},
	{"markdown", "M", config.FormatMarkdown, "Markdown report"},
}

// addOutputFlags registers the format, separator and output flags shared
// by query and render.
func addOutputFlags(cmd *cobra.Command) {
	names := make([]string, 0, len(formatFlags))
	for _, f := range formatFlags {
		cmd.Flags().BoolP(f.name, f.shorthand, false, f.usage)
		names = append(names, f.name)
	}
	cmd.MarkFlagsMutuallyExclusive(names...)

	cmd.Flags().StringP("sep", "s", config.DefaultSeparator,
		"Field separator for text output")
	cmd.Flags().StringP("output", "o", "",
		"Write the rendered results to this file instead of stdout")
}

// outputSettings reads the format, separator and output file from flags.
func outputSettings(cmd *cobra.Command) (format, sep, output string, err error) {
	format = config.DefaultFormat
	for _, f := range formatFlags {
		set, err := cmd.Flags().GetBool(f.name)
		if err != nil {
			return "", "", "", err
		}
		if set {
			format = f.format
		}
	}

	if sep, err = cmd.Flags().GetString("sep"); err != nil {
		return "", "", "", err
	}
	if output, err = cmd.Flags().GetString("output"); err != nil {
		return "", "", "", err
	}
	return format, sep, output, nil
}

// openOutput returns the destination for rendered results and a function
// that closes it. An empty path means w.
func openOutput(path string, w io.Writer) (io.Writer, func() error, error) {
	if path == "" {
		return w, func() error { return nil }, nil
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // User-provided output path is intentional
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, f.Close, nil
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}
