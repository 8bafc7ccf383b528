package redfish

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/proxy"
	"golang.org/x/time/rate"

	"github.com/nao1215/redfishscan/internal/model"
)

// Default transport settings.
const (
	// DefaultTimeout is the per-request timeout. BMCs are slow, and
	// LogService entry collections can take tens of seconds to render.
	DefaultTimeout = 60 * time.Second

	// DefaultMaxBodySize limits how much of a response body is read.
	DefaultMaxBodySize = 32 * 1024 * 1024 // 32MB

	// DefaultUserAgent identifies the tool to the service.
	DefaultUserAgent = "redfishscan"

	// maxRedirects bounds redirect chains.
	maxRedirects = 10
)

// Response is one HTTP response with its body fully read.
type Response struct {
	// Method is the request method.
	Method string

	// URL is the absolute request URL.
	URL string

	// StatusCode is the HTTP status.
	StatusCode int

	// Header holds the response headers.
	Header http.Header

	// Body is the response body, at most the client's size limit.
	Body []byte
}

// Err returns a *StatusError for non-2xx responses and nil otherwise.
func (r *Response) Err() error {
	if r.StatusCode >= 200 && r.StatusCode < 300 {
		return nil
	}
	return newStatusError(r.Method, r.URL, r.StatusCode, r.Body)
}

// Client talks to one Redfish service.
type Client struct {
	// base is the scheme and authority of the service.
	base *url.URL

	// httpClient performs requests. Its transport attaches credentials.
	httpClient *http.Client

	// timeout is the per-request timeout for the default HTTP client.
	timeout time.Duration

	// insecureSkipVerify disables TLS certificate verification.
	insecureSkipVerify bool

	// proxyAddress is an optional SOCKS5 proxy in "host:port" form.
	proxyAddress string

	// headers are added to every request sent to the base host.
	headers map[string]string

	// userAgent is the User-Agent header.
	userAgent string

	// maxBodySize limits response bodies.
	maxBodySize int64

	// limiter throttles requests. Nil means unlimited.
	limiter *rate.Limiter

	// username and password enable basic auth when no session token is set.
	username string
	password string

	// mu guards token and sessionURI.
	mu         sync.RWMutex
	token      string
	sessionURI string

	logger *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithInsecureSkipVerify disables TLS certificate verification. Most BMCs
// ship self-signed certificates.
func WithInsecureSkipVerify(skip bool) Option {
	return func(c *Client) {
		c.insecureSkipVerify = skip
	}
}

// WithSOCKS5Proxy routes connections through a SOCKS5 proxy, typically a
// jump host's "ssh -D" tunnel into an isolated management network.
func WithSOCKS5Proxy(address string) Option {
	return func(c *Client) {
		c.proxyAddress = address
	}
}

// WithRateLimit allows at most rps requests per second with the given burst.
// rps <= 0 disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithBasicAuth sends HTTP basic credentials when no session token is set.
func WithBasicAuth(username, password string) Option {
	return func(c *Client) {
		c.username = username
		c.password = password
	}
}

// WithToken sets a pre-existing session token.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithHeaders adds headers to every request sent to the base host.
func WithHeaders(headers map[string]string) Option {
	return func(c *Client) {
		if c.headers == nil {
			c.headers = make(map[string]string, len(headers))
		}
		for k, v := range headers {
			c.headers[k] = v
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithMaxBodySize sets the maximum response body size in bytes.
func WithMaxBodySize(n int64) Option {
	return func(c *Client) {
		c.maxBodySize = n
	}
}

// WithHTTPClient uses hc instead of building a client. Its transport is
// wrapped so credentials are still attached; hc itself is not modified.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger used for per-request debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a Client for the service at baseURI. Only the scheme
// and authority of baseURI are used.
//
// NewClient validates its configuration but does not contact the service.
func NewClient(baseURI string, opts ...Option) (*Client, error) {
	base, err := model.ParseBaseURI(baseURI)
	if err != nil {
		return nil, err
	}

	c := &Client{
		base:        base,
		timeout:     DefaultTimeout,
		userAgent:   DefaultUserAgent,
		maxBodySize: DefaultMaxBodySize,
		headers:     make(map[string]string),
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}

	var transport http.RoundTripper
	if c.httpClient == nil {
		hc, err := c.newHTTPClient()
		if err != nil {
			return nil, err
		}
		c.httpClient = hc
	} else {
		hc := *c.httpClient
		c.httpClient = &hc
	}
	transport = c.httpClient.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	c.httpClient.Transport = &headerInjectingTransport{base: transport, client: c}

	return c, nil
}

// newHTTPClient builds the default HTTP client: optional SOCKS5 dialer,
// optional TLS skip, bounded redirects.
func (c *Client) newHTTPClient() (*http.Client, error) {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: c.insecureSkipVerify, //nolint:gosec // opt-in for self-signed BMC certificates
		},
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     30 * time.Second,
	}

	if c.proxyAddress != "" {
		if !isValidProxyAddress(c.proxyAddress) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidProxyAddress, c.proxyAddress)
		}
		dialer, err := proxy.SOCKS5("tcp", c.proxyAddress, nil, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
		transport.Proxy = nil
		if cd, ok := dialer.(proxy.ContextDialer); ok {
			transport.DialContext = cd.DialContext
		} else {
			transport.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
				return dialer.Dial(network, addr)
			}
		}
	}

	return &http.Client{
		Transport: transport,
		Timeout:   c.timeout,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}, nil
}

// isValidProxyAddress checks that address is "host:port" with a non-empty
// host and a port in 1-65535.
func isValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return false
	}
	return n >= 1 && n <= 65535
}

// BaseURI returns a copy of the service's scheme and authority.
func (c *Client) BaseURI() *url.URL {
	u := *c.base
	return &u
}

// Token returns the current session token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// resolve turns p into an absolute URL. Absolute URLs are returned as is.
func (c *Client) resolve(p string) string {
	if strings.Contains(p, "://") {
		return p
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return c.base.Scheme + "://" + c.base.Host + p
}

// Get issues a GET for p.
func (c *Client) Get(ctx context.Context, p string) (*Response, error) {
	return c.Do(ctx, http.MethodGet, p, nil)
}

// Do issues one request. p may be relative to the base URI or absolute.
// The error is non-nil only when no response was received; check
// Response.Err for HTTP-level failures.
func (c *Client) Do(ctx context.Context, method, p string, body []byte) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	target := c.resolve(p)

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("OData-Version", "4.0")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("request failed",
			slog.String("method", method),
			slog.String("url", target),
			slog.String("error", err.Error()))
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(data)) > c.maxBodySize {
		return nil, fmt.Errorf("%w: %s %s", ErrBodyTooLarge, method, target)
	}

	c.logger.Debug("request completed",
		slog.String("method", method),
		slog.String("url", target),
		slog.Int("status", resp.StatusCode),
		slog.Duration("elapsed", time.Since(start)))

	return &Response{
		Method:     method,
		URL:        target,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}

// headerInjectingTransport attaches credentials and custom headers to
// requests for the base host and strips them from any other host.
// Running at the transport level covers redirect hops too.
type headerInjectingTransport struct {
	base   http.RoundTripper
	client *Client
}

// RoundTrip implements http.RoundTripper.
func (t *headerInjectingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())

	if t.client.sameHost(clone.URL) {
		for key, value := range t.client.headers {
			clone.Header.Set(key, value)
		}
		if token := t.client.Token(); token != "" {
			clone.Header.Set("X-Auth-Token", token)
		} else if t.client.username != "" {
			clone.SetBasicAuth(t.client.username, t.client.password)
		}
	} else {
		clone.Header.Del("X-Auth-Token")
		clone.Header.Del("Authorization")
		for key := range t.client.headers {
			clone.Header.Del(key)
		}
	}

	return t.base.RoundTrip(clone)
}

// sameHost reports whether u points at the base scheme and host.
func (c *Client) sameHost(u *url.URL) bool {
	return strings.EqualFold(u.Scheme, c.base.Scheme) && strings.EqualFold(u.Host, c.base.Host)
}
