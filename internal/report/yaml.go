package report

import (
	"fmt"
	"io"
	"iter"

	"gopkg.in/yaml.v3"

	"github.com/nao1215/passivedns/internal/model"
)

// YAMLWriter writes results as a YAML sequence of mappings.
// Each result is encoded as a one-element sequence, so the concatenated
// output is a single sequence and no result has to be buffered.
type YAMLWriter struct {
	baseWriter
}

// NewYAMLWriter creates a YAMLWriter.
func NewYAMLWriter(output io.Writer) *YAMLWriter {
	return &YAMLWriter{baseWriter: newBaseWriter(output)}
}

// Write implements Writer.
func (w *YAMLWriter) Write(results iter.Seq2[model.Result, error]) (int, error) {
	empty := true

	for r, err := range results {
		if err != nil {
			n, _ := w.finish()
			return n, fmt.Errorf("failed to read results: %w", err)
		}

		data, err := yaml.Marshal([]record{newRecord(r)})
		if err != nil {
			n, _ := w.finish()
			return n, fmt.Errorf("failed to encode result: %w", err)
		}
		_, _ = w.baseWriter.Write(data)
		empty = false
		if w.err != nil {
			break
		}
	}

	if empty {
		w.printf("[]\n")
	}
	return w.finish()
}
