package report

import (
	"encoding/xml"
	"fmt"
	"io"
	"iter"
	"strconv"
	"time"

	"github.com/nao1215/passivedns/internal/config"
	"github.com/nao1215/passivedns/internal/model"
)

// Writer renders a sequence of results.
type Writer interface {
	// Write renders every result and returns the number of bytes written.
	// An error from the sequence stops rendering and is returned wrapped.
	Write(results iter.Seq2[model.Result, error]) (int, error)
}

// Option configures the writer built by New.
type Option func(*options)

type options struct {
	separator string
	title     string
}

// WithSeparator sets the field separator for text output.
func WithSeparator(sep string) Option {
	return func(o *options) {
		if sep != "" {
			o.separator = sep
		}
	}
}

// WithTitle sets the heading of the Markdown report.
func WithTitle(title string) Option {
	return func(o *options) {
		if title != "" {
			o.title = title
		}
	}
}

// New returns the Writer for format, one of config.SupportedFormats.
func New(format string, output io.Writer, opts ...Option) (Writer, error) {
	o := &options{
		separator: config.DefaultSeparator,
		title:     "Passive DNS Report",
	}
	for _, opt := range opts {
		opt(o)
	}

	switch format {
	case config.FormatText:
		return NewTextWriter(output, o.separator), nil
	case config.FormatCSV:
		return NewCSVWriter(output), nil
	case config.FormatJSON:
		return NewJSONWriter(output, WithPrettyPrint()), nil
	case config.FormatYAML:
		return NewYAMLWriter(output), nil
	case config.FormatXML:
		return NewXMLWriter(output), nil
	case config.FormatGDF:
		return NewGDFWriter(output), nil
	case config.FormatGraphviz:
		return NewGraphvizWriter(output), nil
	case config.FormatGraphML:
		return NewGraphMLWriter(output), nil
	case config.FormatMarkdown:
		return NewMarkdownWriter(output, o.title), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// baseWriter provides byte counting and sticky errors for writers that
// emit their output in many small pieces.
type baseWriter struct {
	output io.Writer
	n      int
	err    error
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// Write implements io.Writer. After the first failure it writes nothing.
func (b *baseWriter) Write(p []byte) (int, error) {
	if b.err != nil {
		return 0, b.err
	}
	n, err := b.output.Write(p)
	b.n += n
	b.err = err
	return n, err
}

func (b *baseWriter) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(b, format, args...)
}

// finish returns the byte count and the first write error, resetting
// both so the writer can be reused.
func (b *baseWriter) finish() (int, error) {
	n, err := b.n, b.err
	b.n, b.err = 0, nil
	return n, err
}

// collect drains results into a slice.
func collect(results iter.Seq2[model.Result, error]) ([]model.Result, error) {
	var out []model.Result
	for r, err := range results {
		if err != nil {
			return out, fmt.Errorf("failed to read results: %w", err)
		}
		out = append(out, r)
	}
	return out, nil
}

// record is the serialized form of a Result shared by the JSON, YAML and
// XML writers. The response time is reported in seconds.
type record struct {
	XMLName      xml.Name   `json:"-" yaml:"-" xml:"result"`
	Source       string     `json:"source" yaml:"source" xml:"source"`
	ResponseTime float64    `json:"response_time" yaml:"response_time" xml:"response_time"`
	Query        string     `json:"query" yaml:"query" xml:"query"`
	Answer       string     `json:"answer" yaml:"answer" xml:"answer"`
	RRType       string     `json:"rrtype" yaml:"rrtype" xml:"rrtype"`
	TTL          *int       `json:"ttl,omitempty" yaml:"ttl,omitempty" xml:"ttl,omitempty"`
	FirstSeen    *time.Time `json:"firstseen,omitempty" yaml:"firstseen,omitempty" xml:"firstseen,omitempty"`
	LastSeen     *time.Time `json:"lastseen,omitempty" yaml:"lastseen,omitempty" xml:"lastseen,omitempty"`
	Count        *int       `json:"count,omitempty" yaml:"count,omitempty" xml:"count,omitempty"`
}

func newRecord(r model.Result) record {
	return record{
		Source:       r.Source,
		ResponseTime: r.ResponseTime.Seconds(),
		Query:        r.Query,
		Answer:       r.Answer,
		RRType:       r.RRType,
		TTL:          r.TTL,
		FirstSeen:    r.FirstSeen,
		LastSeen:     r.LastSeen,
		Count:        r.Count,
	}
}

// fields returns the columns of r in model.ResultFields order.
// Unreported optional fields are empty strings.
func fields(r model.Result) []string {
	return []string{
		r.Source,
		formatSeconds(r.ResponseTime),
		r.Query,
		r.Answer,
		r.RRType,
		formatInt(r.TTL),
		formatTime(r.FirstSeen),
		formatTime(r.LastSeen),
		formatInt(r.Count),
	}
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}

func formatInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
