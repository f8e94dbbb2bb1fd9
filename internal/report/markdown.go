package report

import (
	"cmp"
	"io"
	"iter"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/passivedns/internal/model"
)

// MarkdownWriter writes a Markdown report: a summary table, the record
// count per rrtype (with a mermaid pie chart) and the full result table.
type MarkdownWriter struct {
	baseWriter

	// title is the H1 heading.
	title string
}

// NewMarkdownWriter creates a MarkdownWriter.
func NewMarkdownWriter(output io.Writer, title string) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
		title:      title,
	}
}

// summary aggregates a result log.
type summary struct {
	results   int
	queries   map[string]bool
	answers   map[string]bool
	sources   map[string]int
	rrtypes   map[string]int
	firstSeen *time.Time
	lastSeen  *time.Time
}

func summarize(results []model.Result) summary {
	s := summary{
		results: len(results),
		queries: make(map[string]bool),
		answers: make(map[string]bool),
		sources: make(map[string]int),
		rrtypes: make(map[string]int),
	}
	for _, r := range results {
		s.queries[r.Query] = true
		s.answers[r.Answer] = true
		s.sources[r.Source]++
		s.rrtypes[r.RRType]++
		if r.FirstSeen != nil && (s.firstSeen == nil || r.FirstSeen.Before(*s.firstSeen)) {
			s.firstSeen = r.FirstSeen
		}
		if r.LastSeen != nil && (s.lastSeen == nil || r.LastSeen.After(*s.lastSeen)) {
			s.lastSeen = r.LastSeen
		}
	}
	return s
}

// Write implements Writer.
func (w *MarkdownWriter) Write(results iter.Seq2[model.Result, error]) (int, error) {
	all, err := collect(results)
	if err != nil {
		return 0, err
	}
	s := summarize(all)

	md := markdown.NewMarkdown(&w.baseWriter)
	md.H1(w.title)
	md.PlainText("")

	w.writeSummary(md, s)
	w.writeRRTypes(md, s)
	w.writeResults(md, all)

	md.HorizontalRule()
	md.PlainText("")
	md.PlainText("*Report generated by pdnstool*")

	if err := md.Build(); err != nil && w.err == nil {
		w.err = err
	}
	return w.finish()
}

func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, s summary) {
	md.H2("Summary")
	md.PlainText("")

	sources := countRows(s.sources)
	names := make([]string, len(sources))
	for i, row := range sources {
		names[i] = row[0]
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Results", strconv.Itoa(s.results)},
			{"Unique queries", strconv.Itoa(len(s.queries))},
			{"Unique answers", strconv.Itoa(len(s.answers))},
			{"Sources", orDash(strings.Join(names, ", "))},
			{"First seen", orDash(formatTime(s.firstSeen))},
			{"Last seen", orDash(formatTime(s.lastSeen))},
		},
	})
	md.PlainText("")

	if s.results == 0 {
		md.Note("No passive DNS records were found.")
		md.PlainText("")
	}
}

func (w *MarkdownWriter) writeRRTypes(md *markdown.Markdown, s summary) {
	if len(s.rrtypes) == 0 {
		return
	}

	md.H2("Records by Type")
	md.PlainText("")

	rows := countRows(s.rrtypes)
	md.Table(markdown.TableSet{
		Header: []string{"RRType", "Count"},
		Rows:   rows,
	})
	md.PlainText("")

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Record Types"),
		piechart.WithShowData(true),
	)
	for _, row := range rows {
		chart.LabelAndIntValue(row[0], uint64(s.rrtypes[row[0]])) //nolint:gosec // counts are non-negative
	}
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeResults(md *markdown.Markdown, results []model.Result) {
	md.H2("Results")
	md.PlainText("")

	if len(results) == 0 {
		md.PlainText("No results.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(results))
	for i, r := range results {
		rows[i] = []string{
			r.Source,
			"`" + r.Query + "`",
			"`" + r.Answer + "`",
			r.RRType,
			orDash(formatInt(r.TTL)),
			orDash(formatTime(r.FirstSeen)),
			orDash(formatTime(r.LastSeen)),
			orDash(formatInt(r.Count)),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Source", "Query", "Answer", "RRType", "TTL", "First Seen", "Last Seen", "Count"},
		Rows:   rows,
	})
	md.PlainText("")
}

// countRows returns name/count rows, highest count first, ties by name.
func countRows(counts map[string]int) [][]string {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	slices.SortFunc(names, func(a, b string) int {
		if c := cmp.Compare(counts[b], counts[a]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})

	rows := make([][]string, len(names))
	for i, name := range names {
		rows[i] = []string{name, strconv.Itoa(counts[name])}
	}
	return rows
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
