package report

import (
	"encoding/json"
	"fmt"
	"io"
	"iter"

	"github.com/nao1215/passivedns/internal/model"
)

// JSONWriter writes results as a JSON array of objects, one element per
// result, streaming each element as it arrives.
type JSONWriter struct {
	baseWriter

	// indent is the per-level indentation inside each element; empty
	// writes compact elements.
	indent string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent sets the indentation used inside each element.
func WithIndent(indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = indent
	}
}

// WithPrettyPrint indents elements by two spaces.
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("  ")
}

// NewJSONWriter creates a JSONWriter.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write implements Writer.
func (w *JSONWriter) Write(results iter.Seq2[model.Result, error]) (int, error) {
	w.printf("[")
	sep := "\n"

	for r, err := range results {
		if err != nil {
			n, _ := w.finish()
			return n, fmt.Errorf("failed to read results: %w", err)
		}

		data, err := w.marshal(newRecord(r))
		if err != nil {
			n, _ := w.finish()
			return n, fmt.Errorf("failed to encode result: %w", err)
		}
		w.printf("%s%s", sep, data)
		sep = ",\n"
		if w.err != nil {
			break
		}
	}

	if sep == "\n" {
		w.printf("]\n")
	} else {
		w.printf("\n]\n")
	}
	return w.finish()
}

func (w *JSONWriter) marshal(v any) ([]byte, error) {
	if w.indent == "" {
		return json.Marshal(v)
	}
	return json.MarshalIndent(v, "", w.indent)
}
