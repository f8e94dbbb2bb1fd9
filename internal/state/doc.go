// Package state defines the crawl queue used by recursive passive DNS
// queries and provides its in-memory backend.
//
// A Queue holds two things: the ordered list of work items, one per unique
// query, and the append-only log of results. Recording a result also
// enqueues its query and answer, which is how a crawl discovers new work.
// Depth grows by one per hop from a seed and bounds the recursion.
//
// The durable backend lives in internal/database. Both backends are
// checked against the same behavioural suite in package statetest.
package state
