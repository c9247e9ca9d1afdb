package browser

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/nao1215/replywatch/internal/model"
)

// ErrNoTabID is returned when the browser accepted a tab request but
// did not return a tab id.
var ErrNoTabID = errors.New("browser returned no tab id")

// monitorUserID identifies this tool's tabs to the browser so they
// never collide with tabs owned by other clients of the same browser.
const monitorUserID = "x-monitor"

// Per-operation timeouts. Opening a tab and closing it are cheap
// control calls; reading a snapshot serializes the whole page and
// needs more room.
const (
	openTabTimeout  = 10 * time.Second
	snapshotTimeout = 15 * time.Second
	closeTabTimeout = 5 * time.Second
)

// defaultRenderWait is how long a page is given to render before the
// snapshot is taken. Status pages load their reply list with scripts,
// so snapshotting immediately after navigation sees an empty thread.
const defaultRenderWait = 8 * time.Second

// maxSnapshotBytes caps how much snapshot text is read. A rendered
// status page serializes to well under this.
const maxSnapshotBytes = 10 << 20

// Client drives a headless browser over its local control API: open a
// tab on a URL, wait for the page to render, read the accessibility
// snapshot, close the tab.
//
// Design decision: the constructor performs no network traffic, so a
// Client can be built before the browser is running. The first OpenTab
// call surfaces connectivity problems with full context.
type Client struct {
	// baseURL is the control API root, e.g. "http://localhost:9377".
	baseURL string

	// httpClient performs the control API calls. Per-operation timeouts
	// come from request contexts, not from this client.
	httpClient *http.Client

	// renderWait is how long FetchSnapshot pauses between opening the
	// tab and reading the snapshot.
	renderWait time.Duration

	// logger records best-effort cleanup failures.
	logger *slog.Logger
}

// Option is a function that configures a Client.
type Option func(*Client)

// WithRenderWait sets how long a page is given to render before its
// snapshot is taken.
func WithRenderWait(wait time.Duration) Option {
	return func(c *Client) {
		c.renderWait = wait
	}
}

// WithHTTPClient sets a custom HTTP client for the control API.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets a custom logger.
// If not set, the default logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a client for the browser control API at the given
// host and port.
func NewClient(host string, port int, opts ...Option) *Client {
	c := &Client{
		baseURL:    fmt.Sprintf("http://%s:%d", host, port),
		renderWait: defaultRenderWait,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}

	return c
}

// tabRequest is the body of a tab creation call.
type tabRequest struct {
	UserID     string `json:"userId"`
	SessionKey string `json:"sessionKey"`
	URL        string `json:"url"`
}

// tabResponse is the browser's answer to a tab creation call.
type tabResponse struct {
	TabID string `json:"tabId"`
}

// snapshotResponse is the browser's answer to a snapshot call.
type snapshotResponse struct {
	Snapshot string `json:"snapshot"`
}

// OpenTab opens a browser tab on pageURL under a session keyed to the
// monitored tweet and returns the tab id. Keying the session to the
// tweet lets the browser reuse the same profile across checks of the
// same thread.
func (c *Client) OpenTab(ctx context.Context, ref model.TweetRef, pageURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, openTabTimeout)
	defer cancel()

	payload, err := json.Marshal(tabRequest{
		UserID:     monitorUserID,
		SessionKey: "monitor-" + ref.ID(),
		URL:        pageURL,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode tab request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tabs", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create tab request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to open browser tab: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("browser rejected tab request with status %d", resp.StatusCode)
	}

	var tab tabResponse
	if err := json.NewDecoder(resp.Body).Decode(&tab); err != nil {
		return "", fmt.Errorf("failed to decode tab response: %w", err)
	}
	if tab.TabID == "" {
		return "", ErrNoTabID
	}

	return tab.TabID, nil
}

// Snapshot reads the accessibility snapshot of an open tab. An empty
// snapshot is not an error; the page may legitimately render to
// nothing the parser recognizes.
func (c *Client) Snapshot(ctx context.Context, tabID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, snapshotTimeout)
	defer cancel()

	snapURL := fmt.Sprintf("%s/tabs/%s/snapshot?userId=%s", c.baseURL, tabID, monitorUserID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, snapURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create snapshot request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("browser rejected snapshot request with status %d", resp.StatusCode)
	}

	var snap snapshotResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxSnapshotBytes)).Decode(&snap); err != nil {
		return "", fmt.Errorf("failed to decode snapshot response: %w", err)
	}

	return snap.Snapshot, nil
}

// CloseTab closes a tab. Closing is best effort: a tab that cannot be
// closed now is cleaned up by the browser's own session expiry, so
// failures are logged and swallowed.
func (c *Client) CloseTab(tabID string) {
	ctx, cancel := context.WithTimeout(context.Background(), closeTabTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/tabs/"+tabID, nil)
	if err != nil {
		c.logger.Debug("failed to create close tab request", "tab", tabID, "error", err)
		return
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("failed to close browser tab", "tab", tabID, "error", err)
		return
	}
	resp.Body.Close()
}

// FetchSnapshot opens a tab on pageURL, waits for the page to render,
// reads the snapshot, and closes the tab. The render wait honors
// context cancellation; the tab is closed on every path after it was
// opened.
func (c *Client) FetchSnapshot(ctx context.Context, ref model.TweetRef, pageURL string) (string, error) {
	tabID, err := c.OpenTab(ctx, ref, pageURL)
	if err != nil {
		return "", err
	}
	defer c.CloseTab(tabID)

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(c.renderWait):
	}

	return c.Snapshot(ctx, tabID)
}
