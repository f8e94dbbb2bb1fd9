package report

import (
	"encoding/xml"
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/nao1215/passivedns/internal/model"
)

// defaultEdgeColor colors edges whose rrtype has no entry in edgeColors.
const defaultEdgeColor = "blue"

// edgeColors maps record types to the edge colors of the graph outputs.
var edgeColors = map[string]string{
	"MX":    "green",
	"A":     "blue",
	"CNAME": "pink",
	"NS":    "red",
	"SOA":   "white",
	"PTR":   "purple",
	"TXT":   "brown",
}

func edgeColor(rrtype string) string {
	if c, ok := edgeColors[rrtype]; ok {
		return c
	}
	return defaultEdgeColor
}

// isAddress reports whether a node name is an IP address.
func isAddress(name string) bool {
	return model.Classify(name).IsAddress()
}

// graph is the deduplicated node and edge set of a result log, in first-seen order.
type graph struct {
	nodes []string
	edges []graphEdge

	seenNodes map[string]bool
	seenEdges map[graphEdge]bool
}

type graphEdge struct {
	source string
	target string
	rrtype string
}

func newGraph() *graph {
	return &graph{
		seenNodes: make(map[string]bool),
		seenEdges: make(map[graphEdge]bool),
	}
}

func (g *graph) add(r model.Result) {
	for _, name := range []string{r.Query, r.Answer} {
		if !g.seenNodes[name] {
			g.seenNodes[name] = true
			g.nodes = append(g.nodes, name)
		}
	}
	e := graphEdge{source: r.Query, target: r.Answer, rrtype: r.RRType}
	if !g.seenEdges[e] {
		g.seenEdges[e] = true
		g.edges = append(g.edges, e)
	}
}

func buildGraph(results iter.Seq2[model.Result, error]) (*graph, error) {
	g := newGraph()
	for r, err := range results {
		if err != nil {
			return nil, fmt.Errorf("failed to read results: %w", err)
		}
		g.add(r)
	}
	return g, nil
}

// GDFWriter writes the result graph in the GUESS GDF format understood by Gephi.
// IP nodes are white, names are gray. Edges with the same endpoints and
// color are written once.
type GDFWriter struct {
	baseWriter
}

// NewGDFWriter creates a GDFWriter.
func NewGDFWriter(output io.Writer) *GDFWriter {
	return &GDFWriter{baseWriter: newBaseWriter(output)}
}

// Write implements Writer.
func (w *GDFWriter) Write(results iter.Seq2[model.Result, error]) (int, error) {
	g, err := buildGraph(results)
	if err != nil {
		return 0, err
	}

	w.printf("nodedef> name,description VARCHAR(12),color,style\n")
	for _, name := range g.nodes {
		if isAddress(name) {
			w.printf("%s,,white,1\n", name)
		} else {
			w.printf("%s,,gray,2\n", name)
		}
	}

	w.printf("edgedef> node1,node2,color\n")
	seen := make(map[string]bool)
	for _, e := range g.edges {
		line := e.source + "," + e.target + "," + edgeColor(e.rrtype)
		if seen[line] {
			continue
		}
		seen[line] = true
		w.printf("%s\n", line)
	}
	return w.finish()
}

// GraphvizWriter writes the result graph as an undirected DOT graph.
type GraphvizWriter struct {
	baseWriter
}

// NewGraphvizWriter creates a GraphvizWriter.
func NewGraphvizWriter(output io.Writer) *GraphvizWriter {
	return &GraphvizWriter{baseWriter: newBaseWriter(output)}
}

// Write implements Writer.
func (w *GraphvizWriter) Write(results iter.Seq2[model.Result, error]) (int, error) {
	g, err := buildGraph(results)
	if err != nil {
		return 0, err
	}

	w.printf("graph pdns {\n")
	for _, name := range g.nodes {
		if isAddress(name) {
			w.printf("  %s [shape=box, style=filled, color=white];\n", dotQuote(name))
		} else {
			w.printf("  %s [shape=ellipse, style=filled, color=gray];\n", dotQuote(name))
		}
	}
	for _, e := range g.edges {
		w.printf("  %s -- %s [color=%s];\n", dotQuote(e.source), dotQuote(e.target), edgeColor(e.rrtype))
	}
	w.printf("}\n")
	return w.finish()
}

var dotEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)

func dotQuote(s string) string {
	return `"` + dotEscaper.Replace(s) + `"`
}

// GraphMLWriter writes the result graph as directed GraphML. Parallel
// edges between the same nodes are written once.
type GraphMLWriter struct {
	baseWriter
}

// NewGraphMLWriter creates a GraphMLWriter.
func NewGraphMLWriter(output io.Writer) *GraphMLWriter {
	return &GraphMLWriter{baseWriter: newBaseWriter(output)}
}

type graphMLDocument struct {
	XMLName        xml.Name     `xml:"graphml"`
	Xmlns          string       `xml:"xmlns,attr"`
	XmlnsXSI       string       `xml:"xmlns:xsi,attr"`
	SchemaLocation string       `xml:"xsi:schemaLocation,attr"`
	Graph          graphMLGraph `xml:"graph"`
}

type graphMLGraph struct {
	ID          string        `xml:"id,attr"`
	EdgeDefault string        `xml:"edgedefault,attr"`
	Nodes       []graphMLNode `xml:"node"`
	Edges       []graphMLEdge `xml:"edge"`
}

type graphMLNode struct {
	ID string `xml:"id,attr"`
}

type graphMLEdge struct {
	Source string `xml:"source,attr"`
	Target string `xml:"target,attr"`
}

// Write implements Writer.
func (w *GraphMLWriter) Write(results iter.Seq2[model.Result, error]) (int, error) {
	g, err := buildGraph(results)
	if err != nil {
		return 0, err
	}

	doc := graphMLDocument{
		Xmlns:          "http://graphml.graphdrawing.org/xmlns",
		XmlnsXSI:       "http://www.w3.org/2001/XMLSchema-instance",
		SchemaLocation: "http://graphml.graphdrawing.org/xmlns http://graphml.graphdrawing.org/xmlns/1.0/graphml.xsd",
		Graph: graphMLGraph{
			ID:          "G",
			EdgeDefault: "directed",
		},
	}
	for _, name := range g.nodes {
		doc.Graph.Nodes = append(doc.Graph.Nodes, graphMLNode{ID: name})
	}
	seen := make(map[graphMLEdge]bool)
	for _, e := range g.edges {
		edge := graphMLEdge{Source: e.source, Target: e.target}
		if seen[edge] {
			continue
		}
		seen[edge] = true
		doc.Graph.Edges = append(doc.Graph.Edges, edge)
	}

	data, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("failed to encode graphml: %w", err)
	}
	w.printf("%s%s\n", xml.Header, data)
	return w.finish()
}
