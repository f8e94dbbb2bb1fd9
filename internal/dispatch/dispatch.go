package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/passivedns/internal/model"
	"github.com/nao1215/passivedns/internal/provider"
)

// DefaultTimeout bounds a single provider lookup unless overridden.
const DefaultTimeout = 240 * time.Second

// Outcome classifies a single provider lookup for observers.
type Outcome string

const (
	// OutcomeOK means the provider answered with at least one record.
	OutcomeOK Outcome = "ok"
	// OutcomeEmpty means the provider answered with no crawlable records.
	OutcomeEmpty Outcome = "empty"
	// OutcomeError means the provider failed.
	OutcomeError Outcome = "error"
	// OutcomeTimeout means the provider did not answer within its timeout.
	OutcomeTimeout Outcome = "timeout"
)

// Observer receives the outcome of every provider lookup.
// Implementations must be safe for concurrent use.
type Observer interface {
	ObserveLookup(provider string, outcome Outcome, elapsed time.Duration, results int)
}

// Dispatcher fans a query out to every configured provider and merges
// their answers.
type Dispatcher struct {
	providers []provider.Provider
	timeout   time.Duration
	timeouts  map[string]time.Duration
	logger    *slog.Logger
	observer  Observer
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithTimeout sets the lookup timeout used for providers without an override.
func WithTimeout(d time.Duration) Option {
	return func(dp *Dispatcher) {
		if d > 0 {
			dp.timeout = d
		}
	}
}

// WithProviderTimeout overrides the timeout of the provider whose config
// section is section.
func WithProviderTimeout(section string, d time.Duration) Option {
	return func(dp *Dispatcher) {
		if d > 0 {
			dp.timeouts[section] = d
		}
	}
}

// WithLogger sets the logger used for per-provider failures.
func WithLogger(logger *slog.Logger) Option {
	return func(dp *Dispatcher) {
		if logger != nil {
			dp.logger = logger
		}
	}
}

// WithObserver registers an observer for lookup outcomes.
func WithObserver(o Observer) Option {
	return func(dp *Dispatcher) {
		dp.observer = o
	}
}

// New creates a Dispatcher over providers. The order of providers is the
// order in which their contributions are merged.
func New(providers []provider.Provider, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		providers: providers,
		timeout:   DefaultTimeout,
		timeouts:  make(map[string]time.Duration),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Providers returns the providers the dispatcher queries.
func (d *Dispatcher) Providers() []provider.Provider {
	return d.providers
}

// Query asks every provider about label at the same time and waits for all
// of them. Each provider contributes at most limit crawlable records
// (limit <= 0 means no cap). A provider that fails or times out contributes
// nothing; its error is logged and never reaches the caller.
func (d *Dispatcher) Query(ctx context.Context, label string, limit int) []model.Result {
	contributions := make([][]model.Result, len(d.providers))

	// A plain Group: one provider's failure must not cancel the others.
	var g errgroup.Group
	for i, p := range d.providers {
		g.Go(func() error {
			contributions[i] = d.lookup(ctx, p, label, limit)
			return nil
		})
	}
	_ = g.Wait()

	var merged []model.Result
	for _, c := range contributions {
		merged = append(merged, c...)
	}
	return merged
}

func (d *Dispatcher) timeoutFor(info provider.Info) time.Duration {
	if t, ok := d.timeouts[info.Section]; ok {
		return t
	}
	return d.timeout
}

func (d *Dispatcher) lookup(ctx context.Context, p provider.Provider, label string, limit int) []model.Result {
	info := p.Info()
	ctx, cancel := context.WithTimeout(ctx, d.timeoutFor(info))
	defer cancel()

	start := time.Now()
	results, err := safeLookup(ctx, p, label, limit)
	elapsed := time.Since(start)

	if err != nil {
		outcome := OutcomeError
		if errors.Is(err, context.DeadlineExceeded) {
			outcome = OutcomeTimeout
		}
		d.logger.Debug("provider lookup failed",
			"provider", info.Name,
			"query", label,
			"outcome", string(outcome),
			"error", err,
		)
		d.observe(info.Name, outcome, elapsed, 0)
		return nil
	}

	kept := filterCrawlable(results, limit)
	outcome := OutcomeOK
	if len(kept) == 0 {
		outcome = OutcomeEmpty
	}
	d.logger.Debug("provider lookup finished",
		"provider", info.Name,
		"query", label,
		"records", len(results),
		"kept", len(kept),
		"elapsed", elapsed,
	)
	d.observe(info.Name, outcome, elapsed, len(kept))
	return kept
}

// safeLookup turns a panic inside a provider into an ErrProviderPanic error.
func safeLookup(ctx context.Context, p provider.Provider, label string, limit int) (results []model.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			results = nil
			err = fmt.Errorf("%w: %s: %v", ErrProviderPanic, p.Info().Name, r)
		}
	}()
	return p.Lookup(ctx, label, limit)
}

func (d *Dispatcher) observe(name string, outcome Outcome, elapsed time.Duration, n int) {
	if d.observer != nil {
		d.observer.ObserveLookup(name, outcome, elapsed, n)
	}
}

// filterCrawlable keeps records whose rrtype belongs in the crawl stream,
// preserving order, and stops after limit records when limit > 0.
func filterCrawlable(results []model.Result, limit int) []model.Result {
	var kept []model.Result
	for _, r := range results {
		if limit > 0 && len(kept) >= limit {
			break
		}
		if model.IsCrawlable(r.RRType) {
			kept = append(kept, r)
		}
	}
	return kept
}
