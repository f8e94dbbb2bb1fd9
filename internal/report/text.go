package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/nao1215/passivedns/internal/model"
)

// TextWriter writes a header row of field names followed by one line per
// result, fields joined by a separator. Values are not quoted.
type TextWriter struct {
	baseWriter

	// separator joins the fields of a line.
	separator string
}

// NewTextWriter creates a TextWriter. An empty separator means tab.
func NewTextWriter(output io.Writer, separator string) *TextWriter {
	if separator == "" {
		separator = "\t"
	}
	return &TextWriter{
		baseWriter: newBaseWriter(output),
		separator:  separator,
	}
}

// Write implements Writer.
func (w *TextWriter) Write(results iter.Seq2[model.Result, error]) (int, error) {
	w.printf("%s\n", strings.Join(model.ResultFields, w.separator))

	for r, err := range results {
		if err != nil {
			n, _ := w.finish()
			return n, fmt.Errorf("failed to read results: %w", err)
		}
		w.printf("%s\n", strings.Join(fields(r), w.separator))
		if w.err != nil {
			break
		}
	}
	return w.finish()
}

// CSVWriter writes RFC 4180 CSV with a header row. Unlike TextWriter with
// a comma separator, it quotes values that contain commas or quotes, which
// TXT and SOA answers often do.
type CSVWriter struct {
	baseWriter
}

// NewCSVWriter creates a CSVWriter.
func NewCSVWriter(output io.Writer) *CSVWriter {
	return &CSVWriter{baseWriter: newBaseWriter(output)}
}

// Write implements Writer.
func (w *CSVWriter) Write(results iter.Seq2[model.Result, error]) (int, error) {
	cw := csv.NewWriter(&w.baseWriter)
	_ = cw.Write(model.ResultFields)

	for r, err := range results {
		if err != nil {
			cw.Flush()
			n, _ := w.finish()
			return n, fmt.Errorf("failed to read results: %w", err)
		}
		if err := cw.Write(fields(r)); err != nil {
			break
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil && w.err == nil {
		w.err = err
	}
	return w.finish()
}
