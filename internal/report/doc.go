// Package report renders crawl results.
//
// Every writer consumes the result log as an iter.Seq2[model.Result, error],
// the shape returned by state.Queue.Results, so a durable crawl can be
// rendered without loading it into memory first. The graph writers (GDF,
// Graphviz, GraphML) and the Markdown summary are the exception: they
// dedupe nodes and edges or aggregate counts, so they collect the results.
//
// Available formats:
//   - text: one separator-joined line per result, with a header row
//   - csv: RFC 4180 records with a header row
//   - json: an array of objects
//   - yaml: a sequence of mappings
//   - xml: <report><results><result>...</result></results></report>
//   - gdf: GUESS/Gephi node and edge definitions
//   - graphviz: an undirected DOT graph
//   - graphml: a directed GraphML graph
//   - markdown: summary, per-rrtype counts and the result table
package report
