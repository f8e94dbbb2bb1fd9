package report

import (
	"encoding/xml"
	"fmt"
	"io"
	"iter"

	"github.com/nao1215/passivedns/internal/model"
)

// XMLWriter writes results as
// <report><results><result>...</result></results></report>.
type XMLWriter struct {
	baseWriter
}

// NewXMLWriter creates an XMLWriter.
func NewXMLWriter(output io.Writer) *XMLWriter {
	return &XMLWriter{baseWriter: newBaseWriter(output)}
}

// Write implements Writer.
func (w *XMLWriter) Write(results iter.Seq2[model.Result, error]) (int, error) {
	w.printf("%s<report>\n\t<results>\n", xml.Header)

	for r, err := range results {
		if err != nil {
			n, _ := w.finish()
			return n, fmt.Errorf("failed to read results: %w", err)
		}

		data, err := xml.MarshalIndent(newRecord(r), "\t\t", "\t")
		if err != nil {
			n, _ := w.finish()
			return n, fmt.Errorf("failed to encode result: %w", err)
		}
		w.printf("%s\n", data)
		if w.err != nil {
			break
		}
	}

	w.printf("\t</results>\n</report>\n")
	return w.finish()
}
