// Package main provides the entry point for the pdnstool CLI.
//
// pdnstool queries several passive DNS providers for an IP address,
// domain or CIDR block, optionally follows the answers recursively, and
// renders the collected records as text, CSV, JSON, YAML, XML, Markdown or
// a graph (GDF, Graphviz, GraphML).
//
// Usage:
//
//	pdnstool query -d dvt example.org
//	pdnstool query -r 2 -f crawl.db -z 192.0.2.1 > graph.dot
//	pdnstool render -f crawl.db -j
//
// See --help for all available options.
package main

func main() {
	Execute()
}
