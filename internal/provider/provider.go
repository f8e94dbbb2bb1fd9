package provider

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/nao1215/passivedns/internal/model"
)

// Provider hides one upstream passive DNS source behind a uniform call.
type Provider interface {
	// Info returns the static metadata of the provider.
	Info() Info

	// Lookup returns the records the provider holds for label, which is a
	// domain name, a bare IP address or a CIDR. Forms the provider cannot
	// answer yield an empty slice. limit is forwarded upstream where the
	// API accepts one; 0 means no limit. Errors are recoverable: the
	// caller treats them as "no records from this provider".
	Lookup(ctx context.Context, label string, limit int) ([]model.Result, error)
}

// Info is the static metadata of a provider.
type Info struct {
	// Name is the display name, also used as Result.Source.
	Name string

	// Section is the key of the provider's section in the config file.
	Section string

	// Letter selects the provider with the -d command line option.
	Letter rune

	// DefaultTimeout overrides the global lookup timeout when the config
	// file does not set one. Zero means use the global timeout.
	DefaultTimeout time.Duration
}

// options holds the dependencies shared by every provider constructor.
type options struct {
	httpClient   *http.Client
	logger       *slog.Logger
	userAgent    string
	maxAttempts  int
	retryBackoff time.Duration
}

// Option configures a provider at construction time.
type Option func(*options)

// WithHTTPClient sets the HTTP client used for upstream requests.
// The transport package builds clients for direct, proxied and Tor access.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		if c != nil {
			o.httpClient = c
		}
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithUserAgent sets the User-Agent header sent upstream.
func WithUserAgent(ua string) Option {
	return func(o *options) {
		if ua != "" {
			o.userAgent = ua
		}
	}
}

// WithRetry sets how often a rate-limited request is attempted and the
// base delay between attempts. The delay grows linearly with the attempt.
func WithRetry(maxAttempts int, backoff time.Duration) Option {
	return func(o *options) {
		if maxAttempts > 0 {
			o.maxAttempts = maxAttempts
		}
		if backoff >= 0 {
			o.retryBackoff = backoff
		}
	}
}

const (
	defaultMaxAttempts  = 3
	defaultRetryBackoff = 3 * time.Second
	defaultUserAgent    = "pdnstool"
)

func newOptions(opts []Option) *options {
	o := &options{
		httpClient:   http.DefaultClient,
		logger:       slog.Default(),
		userAgent:    defaultUserAgent,
		maxAttempts:  defaultMaxAttempts,
		retryBackoff: defaultRetryBackoff,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
