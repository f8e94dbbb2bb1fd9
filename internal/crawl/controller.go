package crawl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/passivedns/internal/model"
	"github.com/nao1215/passivedns/internal/state"
)

// Querier resolves one label against the configured providers.
// *dispatch.Dispatcher satisfies it.
type Querier interface {
	Query(ctx context.Context, label string, limit int) []model.Result
}

// Observer receives crawl progress.
type Observer interface {
	// ObserveQuery is called once per claimed query with its final status
	// (queried when results were recorded, failed otherwise).
	ObserveQuery(status model.Status, results int)

	// ObserveLevel is called after every pass with the queue's level.
	ObserveLevel(level int)
}

// Stats summarizes a Run.
type Stats struct {
	// Passes is the number of traversals of the queue that were started.
	Passes int
	// Queried counts queries that produced at least one result.
	Queried int
	// Failed counts queries that produced no results.
	Failed int
	// Results counts recorded results.
	Results int
}

// Controller drives a recursive crawl: it claims pending queries from a
// queue, resolves them and feeds the results back into the queue.
type Controller struct {
	// querier resolves each claimed query.
	querier Querier

	// limit is the per-provider record cap passed to the querier.
	limit int

	// delay is the pause after every query.
	delay time.Duration

	// logger is used for structured logging during the crawl.
	logger *slog.Logger

	// observer is notified of progress; may be nil.
	observer Observer
}

// Option is a function that configures a Controller.
type Option func(*Controller)

// WithLimit sets the per-provider record cap. Zero or negative means no cap.
func WithLimit(limit int) Option {
	return func(c *Controller) {
		c.limit = limit
	}
}

// WithDelay sets the pause between consecutive queries.
// Some providers ban clients that query too quickly.
func WithDelay(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.delay = d
		}
	}
}

// WithLogger sets a custom logger for the controller.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithObserver registers an observer for crawl progress.
func WithObserver(o Observer) Option {
	return func(c *Controller) {
		c.observer = o
	}
}

// New creates a Controller that resolves queries with q.
func New(q Querier, opts ...Option) *Controller {
	c := &Controller{querier: q}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Run crawls queue until maxDepth. It makes up to maxDepth passes over
// the queue; each pass claims every pending or failed query shallower than
// maxDepth, including queries discovered during the pass. A pass that
// claims nothing ends the crawl early. maxDepth 0 queries nothing.
//
// Storage errors and context cancellation abort the run. Results recorded
// before the failure remain in the queue.
func (c *Controller) Run(ctx context.Context, queue state.Queue, maxDepth int) (Stats, error) {
	var stats Stats

	for pass := 0; pass < maxDepth; pass++ {
		stats.Passes++
		claimed := 0

		for query, err := range queue.Pending(ctx, maxDepth) {
			if err != nil {
				return stats, fmt.Errorf("failed to claim next query: %w", err)
			}
			claimed++

			if err := c.resolve(ctx, queue, query, &stats); err != nil {
				return stats, err
			}
			if err := c.sleep(ctx); err != nil {
				return stats, err
			}
		}

		level, err := queue.Level(ctx)
		if err != nil {
			return stats, err
		}
		c.logger.Info("crawl pass finished",
			"pass", pass+1,
			"claimed", claimed,
			"level", level,
			"results", stats.Results,
		)
		if c.observer != nil {
			c.observer.ObserveLevel(level)
		}
		if claimed == 0 {
			break
		}
	}

	return stats, nil
}

// resolve queries one label and records the outcome. Store writes use a
// context that outlives ctx, so a claimed query always ends with results,
// Failed, or Pending again when ctx is cancelled during the lookup.
func (c *Controller) resolve(ctx context.Context, queue state.Queue, query string, stats *Stats) error {
	c.logger.Debug("querying", "query", query)

	results := c.querier.Query(ctx, query, c.limit)
	store := context.WithoutCancel(ctx)

	if err := ctx.Err(); err != nil {
		// The lookup was cut short; its results may be incomplete.
		if uerr := queue.UpdateQuery(store, query, model.StatusPending); uerr != nil {
			return errors.Join(err, uerr)
		}
		c.logger.Debug("lookup interrupted, query released", "query", query)
		return err
	}

	if len(results) == 0 {
		if err := queue.UpdateQuery(store, query, model.StatusFailed); err != nil {
			return err
		}
		stats.Failed++
		c.logger.Debug("no results", "query", query)
		c.observe(model.StatusFailed, 0)
		return nil
	}

	for _, r := range results {
		if err := queue.AddResult(store, r); err != nil {
			return err
		}
	}
	stats.Queried++
	stats.Results += len(results)
	c.logger.Debug("recorded results", "query", query, "count", len(results))
	c.observe(model.StatusQueried, len(results))
	return nil
}

func (c *Controller) observe(status model.Status, n int) {
	if c.observer != nil {
		c.observer.ObserveQuery(status, n)
	}
}

// sleep waits for the configured delay or until ctx is done.
func (c *Controller) sleep(ctx context.Context) error {
	if c.delay <= 0 {
		return nil
	}
	timer := time.NewTimer(c.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
