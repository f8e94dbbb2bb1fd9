package state

import (
	"context"
	"iter"

	"github.com/nao1215/passivedns/internal/model"
)

// Queue is the crawl work list together with the log of gathered results.
//
// Queries are unique: adding a query that is already present, in any
// state, is a no-op. A query's depth is fixed when it is first added.
// Implementations are owned by a single crawl goroutine and need not be
// safe for concurrent mutation.
type Queue interface {
	// AddQuery adds query as a child of the most recently claimed item,
	// that is at one more than that item's depth. It reports whether the
	// query was new.
	AddQuery(ctx context.Context, query string, status model.Status) (bool, error)

	// AddQueryAt adds query at an explicit depth. Seeds use depth 0.
	AddQueryAt(ctx context.Context, query string, status model.Status, depth int) (bool, error)

	// AddResult appends r to the result log and then adds its answer and
	// its query as pending work.
	AddResult(ctx context.Context, r model.Result) error

	// Pending yields claimable (pending or failed) queries whose depth is
	// below maxDepth, marking each as queried as it is yielded. Within one
	// traversal an item is yielded at most once. A storage failure is
	// yielded as the error of the final pair.
	Pending(ctx context.Context, maxDepth int) iter.Seq2[string, error]

	// UpdateQuery sets the status of an existing query.
	// Unknown queries are ignored.
	UpdateQuery(ctx context.Context, query string, status model.Status) error

	// Level returns the smallest depth among claimable items, or 0 when
	// there are none.
	Level(ctx context.Context) (int, error)

	// Results yields the result log in insertion order.
	Results(ctx context.Context) iter.Seq2[model.Result, error]

	// WorkItems returns a snapshot of every item in discovery order.
	WorkItems(ctx context.Context) ([]model.WorkItem, error)

	// Close releases the resources held by the queue.
	Close() error
}

// Normalize prepares a query for insertion into any Queue backend. It
// reports false for queries that are empty after normalization.
func Normalize(query string) (string, bool) {
	q := model.NormalizeQuery(query)
	return q, q != ""
}
