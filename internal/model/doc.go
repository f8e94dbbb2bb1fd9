// Package model defines the data shared by every layer of pdnstool.
//
// This package contains the following main types:
//   - Result: a single passive DNS observation returned by a provider
//   - WorkItem: one node of a recursive crawl, keyed by its query string
//   - Status: the lifecycle of a WorkItem (pending, queried, failed)
//   - Kind: the shape of a query label (domain, IP, CIDR, onion)
//
// Design decision: Result carries every field explicitly. Values that a
// provider may not report (TTL, first/last seen, observation count) are
// pointers, so "not reported" and "zero" stay distinguishable all the way
// to the renderers and the state database.
package model
