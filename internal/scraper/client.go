package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"time"

	"golang.org/x/net/proxy"
)

// ErrInvalidProxyAddress is returned when a proxy address is not in
// "host:port" format.
var ErrInvalidProxyAddress = errors.New("proxy address must be in host:port format")

const (
	// defaultFetchTimeout bounds one mirror page fetch.
	defaultFetchTimeout = 30 * time.Second

	// defaultUserAgent is sent with every request. Mirror instances
	// reject obvious bot agents, so we present a plain browser.
	defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:109.0) Gecko/20100101 Firefox/115.0"

	// maxResponseBytes is the default cap on how much of a response
	// body is read. Status pages are small; anything larger is not a
	// status page.
	maxResponseBytes = 5 << 20

	// maxRedirects bounds redirect chains. Mirrors redirect between
	// hosts occasionally but never this deep.
	maxRedirects = 10
)

// Client fetches mirror status pages over plain HTTP, optionally
// through a SOCKS5 proxy.
//
// Design decision: the proxy is configured at construction rather than
// per request because one check session talks to one network path. We
// do not verify the proxy is reachable in the constructor; the first
// fetch surfaces that error with full context.
type Client struct {
	// httpClient performs the requests, already wired with the proxy
	// dialer when one was configured.
	httpClient *http.Client

	// userAgent is the User-Agent header to send.
	userAgent string

	// maxBodySize caps how much of a response body is read.
	maxBodySize int64
}

// clientSettings collects constructor options before the HTTP client
// is assembled.
type clientSettings struct {
	timeout      time.Duration
	proxyAddress string
	userAgent    string
	maxBodySize  int64
}

// ClientOption is a function that configures a Client.
type ClientOption func(*clientSettings)

// WithFetchTimeout sets the overall timeout for one fetch.
func WithFetchTimeout(timeout time.Duration) ClientOption {
	return func(s *clientSettings) {
		s.timeout = timeout
	}
}

// WithProxyAddress routes all requests through a SOCKS5 proxy at the
// given "host:port" address. An empty address keeps direct dialing.
func WithProxyAddress(address string) ClientOption {
	return func(s *clientSettings) {
		s.proxyAddress = address
	}
}

// WithUserAgent sets a custom User-Agent header.
func WithUserAgent(userAgent string) ClientOption {
	return func(s *clientSettings) {
		s.userAgent = userAgent
	}
}

// WithMaxBodySize caps how many bytes of a response body are read.
// Non-positive values keep the default.
func WithMaxBodySize(size int64) ClientOption {
	return func(s *clientSettings) {
		if size > 0 {
			s.maxBodySize = size
		}
	}
}

// NewClient creates a new mirror page client.
func NewClient(opts ...ClientOption) (*Client, error) {
	settings := &clientSettings{
		timeout:     defaultFetchTimeout,
		userAgent:   defaultUserAgent,
		maxBodySize: maxResponseBytes,
	}
	for _, opt := range opts {
		opt(settings)
	}

	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     30 * time.Second,
	}

	if settings.proxyAddress != "" {
		if !isValidProxyAddress(settings.proxyAddress) {
			return nil, ErrInvalidProxyAddress
		}
		dialer, err := proxy.SOCKS5("tcp", settings.proxyAddress, nil, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
		transport.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
			return dialer.Dial(network, addr)
		}
	}

	// Some mirror instances set a session cookie on first contact and
	// expect it back on the redirect that follows.
	jar, _ := cookiejar.New(nil) //nolint:errcheck // cookiejar.New only fails with invalid options

	return &Client{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   settings.timeout,
			Jar:       jar,
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		userAgent:   settings.userAgent,
		maxBodySize: settings.maxBodySize,
	}, nil
}

// isValidProxyAddress checks that the address is "host:port" with a
// port in range.
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

// FetchStatusPage fetches the given URL and returns the response body.
// Non-200 responses are errors: mirror instances serve error pages with
// real content that must never reach the reply parser.
func (c *Client) FetchStatusPage(ctx context.Context, pageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", pageURL, err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, pageURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", pageURL, err)
	}

	return body, nil
}
