package provider

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// maxBodySize caps how much of a reply is read.
const maxBodySize = 10 * 1024 * 1024

// reply is a fully read HTTP response.
type reply struct {
	status  int
	header  http.Header
	body    []byte
	elapsed time.Duration
}

// httpDoer performs the HTTP round trips of one provider. It paces requests
// through a token bucket and retries replies that signal rate limiting.
type httpDoer struct {
	name         string
	client       *http.Client
	limiter      *rate.Limiter
	logger       *slog.Logger
	userAgent    string
	maxAttempts  int
	retryBackoff time.Duration

	// throttled reports whether a reply asks the caller to slow down.
	// Providers with non-standard signals (VirusTotal's 204) replace it.
	throttled func(status int, header http.Header) bool
}

// newHTTPDoer creates a doer. perMinute is the request budget; zero or
// negative means unlimited.
func newHTTPDoer(name string, perMinute float64, o *options) *httpDoer {
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Limit(perMinute / 60)
	}
	return &httpDoer{
		name:         name,
		client:       o.httpClient,
		limiter:      rate.NewLimiter(limit, 1),
		logger:       o.logger,
		userAgent:    o.userAgent,
		maxAttempts:  o.maxAttempts,
		retryBackoff: o.retryBackoff,
		throttled:    defaultThrottled,
	}
}

func defaultThrottled(status int, header http.Header) bool {
	switch status {
	case http.StatusTooManyRequests:
		return true
	case http.StatusServiceUnavailable:
		return header.Get("Retry-After") != ""
	default:
		return false
	}
}

// do sends the request produced by newRequest, building a fresh request
// for every attempt. The elapsed time of the last attempt is reported.
func (d *httpDoer) do(ctx context.Context, newRequest func(ctx context.Context) (*http.Request, error)) (*reply, error) {
	for attempt := 1; ; attempt++ {
		if err := d.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%s: failed to wait for rate limiter: %w", d.name, err)
		}

		req, err := newRequest(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to create request: %w", d.name, err)
		}
		req.Header.Set("User-Agent", d.userAgent)

		start := time.Now()
		resp, err := d.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%s: request failed: %w", d.name, err)
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
		_ = resp.Body.Close()
		elapsed := time.Since(start)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to read reply: %w", d.name, err)
		}

		if !d.throttled(resp.StatusCode, resp.Header) {
			return &reply{
				status:  resp.StatusCode,
				header:  resp.Header,
				body:    body,
				elapsed: elapsed,
			}, nil
		}

		if attempt >= d.maxAttempts {
			return nil, fmt.Errorf("%s: %w after %d attempts (HTTP %d)", d.name, ErrRateLimited, attempt, resp.StatusCode)
		}

		delay := retryAfter(resp.Header, time.Now())
		if delay <= 0 {
			delay = time.Duration(attempt) * d.retryBackoff
		}
		d.logger.Debug("provider asked to slow down",
			"provider", d.name,
			"attempt", attempt,
			"status", resp.StatusCode,
			"delay", delay,
		)
		if err := sleep(ctx, delay); err != nil {
			return nil, fmt.Errorf("%s: %w", d.name, err)
		}
	}
}

// retryAfter parses a Retry-After header given in seconds or as an HTTP date.
func retryAfter(header http.Header, now time.Time) time.Duration {
	v := header.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		return at.Sub(now)
	}
	return 0
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// expectOK converts any status other than 200 into ErrUnexpectedStatus.
func (r *reply) expectOK(name string) error {
	if r.status == http.StatusOK {
		return nil
	}
	return fmt.Errorf("%s: %w: %d", name, ErrUnexpectedStatus, r.status)
}

