// Package crawl implements recursive passive DNS queries.
//
// Seeds are added to a state.Queue at depth 0. The Controller repeatedly
// claims pending queries, resolves each one through a Querier, and records
// every result. Recording a result enqueues its query and answer one level
// deeper than the query that produced it, so the crawl widens hop by hop
// until the maximum depth is reached.
//
// The controller is sequential. Concurrency happens only inside a single
// Query call, where the dispatcher fans out to every provider.
package crawl
