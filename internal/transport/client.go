package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/proxy"
)

// checkProxyTimeout bounds the connectivity check of a proxy.
const checkProxyTimeout = 2 * time.Second

// SOCKS5 greeting constants.
const (
	socks5Version      = 0x05
	socks5AuthNone     = 0x00
	socks5AuthPassword = 0x02
	socks5AuthNoAccept = 0xFF
)

// Client creates HTTP clients for provider traffic.
// The zero proxy routes requests directly.
type Client struct {
	// proxyURL is the configured proxy, nil for direct connections.
	proxyURL *url.URL

	// dialer is the SOCKS5 dialer, nil unless proxyURL is a SOCKS5 proxy.
	dialer proxy.Dialer

	// timeout is the overall HTTP client timeout. Zero leaves timing to the
	// request context.
	timeout time.Duration

	// userAgent is set on requests that carry no User-Agent.
	userAgent string

	// headers are added to every request.
	headers map[string]string
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithUserAgent sets the default User-Agent.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithHeaders adds fixed headers to every request.
func WithHeaders(headers map[string]string) Option {
	return func(c *Client) {
		c.headers = headers
	}
}

// New creates a Client. proxyAddress is empty for direct connections,
// socks5://host:port (optionally with user:password), http://host:port,
// or a bare host:port which is taken as a SOCKS5 proxy.
//
// New does not contact the proxy. Call CheckConnection to verify it.
func New(proxyAddress string, opts ...Option) (*Client, error) {
	c := &Client{}
	for _, opt := range opts {
		opt(c)
	}

	if proxyAddress == "" {
		return c, nil
	}

	u, err := parseProxyURL(proxyAddress)
	if err != nil {
		return nil, err
	}
	c.proxyURL = u

	if isSOCKS(u.Scheme) {
		var auth *proxy.Auth
		if u.User != nil {
			password, _ := u.User.Password()
			auth = &proxy.Auth{User: u.User.Username(), Password: password}
		}
		dialer, err := proxy.SOCKS5("tcp", u.Host, auth, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
		c.dialer = dialer
	}

	return c, nil
}

// parseProxyURL accepts a proxy URL or a bare host:port.
func parseProxyURL(address string) (*url.URL, error) {
	if !strings.Contains(address, "://") {
		address = "socks5://" + address
	}

	u, err := url.Parse(address)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidProxyAddress, err)
	}

	switch u.Scheme {
	case "socks5", "socks5h", "http", "https":
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProxy, u.Scheme)
	}

	host, port, err := net.SplitHostPort(u.Host)
	if err != nil || host == "" || port == "" {
		return nil, ErrInvalidProxyAddress
	}
	return u, nil
}

func isSOCKS(scheme string) bool {
	return scheme == "socks5" || scheme == "socks5h"
}

// ProxyAddress returns the proxy host:port, or "" for direct connections.
func (c *Client) ProxyAddress() string {
	if c.proxyURL == nil {
		return ""
	}
	return c.proxyURL.Host
}

// HTTPClient returns a new HTTP client routed through the configured proxy.
func (c *Client) HTTPClient() *http.Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,
		TLSHandshakeTimeout: 30 * time.Second,
	}

	switch {
	case c.dialer != nil:
		transport.Proxy = nil
		transport.DialContext = c.DialContext
	case c.proxyURL != nil:
		transport.Proxy = http.ProxyURL(c.proxyURL)
	}

	return &http.Client{
		Transport: &headerInjectingTransport{
			base:      transport,
			userAgent: c.userAgent,
			headers:   c.headers,
		},
		Timeout: c.timeout,
	}
}

// DialContext opens a TCP connection, through the SOCKS5 proxy when one
// is configured.
func (c *Client) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if c.dialer == nil {
		var d net.Dialer
		return d.DialContext(ctx, network, address)
	}
	if cd, ok := c.dialer.(proxy.ContextDialer); ok {
		return cd.DialContext(ctx, network, address)
	}

	type dialResult struct {
		conn net.Conn
		err  error
	}
	resultCh := make(chan dialResult, 1)
	go func() {
		conn, err := c.dialer.Dial(network, address)
		resultCh <- dialResult{conn, err}
	}()

	select {
	case result := <-resultCh:
		return result.conn, result.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// CheckConnection verifies that the proxy is reachable. For SOCKS5 proxies
// it also performs the method negotiation so that a wrong service on the
// port is reported as ProxyStatusWrongType. Direct clients are always OK.
func (c *Client) CheckConnection(ctx context.Context) ProxyStatus {
	if c.proxyURL == nil {
		return ProxyStatusOK
	}

	ctx, cancel := context.WithTimeout(ctx, checkProxyTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", c.proxyURL.Host)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ProxyStatusTimeout
		}
		return ProxyStatusCannotConnect
	}
	defer conn.Close()

	if !isSOCKS(c.proxyURL.Scheme) {
		return ProxyStatusOK
	}

	if err := conn.SetDeadline(time.Now().Add(checkProxyTimeout)); err != nil {
		return ProxyStatusCannotConnect
	}

	// Offer the methods proxy.SOCKS5 will use.
	greeting := []byte{socks5Version, 0x01, socks5AuthNone}
	if c.proxyURL.User != nil {
		greeting = []byte{socks5Version, 0x02, socks5AuthNone, socks5AuthPassword}
	}
	if _, err := conn.Write(greeting); err != nil {
		return ProxyStatusCannotConnect
	}

	resp := make([]byte, 2)
	if _, err := io.ReadFull(conn, resp); err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return ProxyStatusTimeout
		}
		return ProxyStatusWrongType
	}
	if resp[0] != socks5Version || resp[1] == socks5AuthNoAccept {
		return ProxyStatusWrongType
	}
	if resp[1] != socks5AuthNone && resp[1] != socks5AuthPassword {
		return ProxyStatusWrongType
	}
	return ProxyStatusOK
}

// headerInjectingTransport sets the default User-Agent and fixed headers
// on every request, redirects included.
type headerInjectingTransport struct {
	base      http.RoundTripper
	userAgent string
	headers   map[string]string
}

// RoundTrip implements http.RoundTripper.
func (t *headerInjectingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())

	if t.userAgent != "" && clone.Header.Get("User-Agent") == "" {
		clone.Header.Set("User-Agent", t.userAgent)
	}
	for key, value := range t.headers {
		clone.Header.Set(key, value)
	}

	return t.base.RoundTrip(clone)
}
