package update

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nao1215/replywatch/internal/config"
)

// ErrUnknownVersion is returned when the running binary carries no
// release version to compare against, such as a development build.
var ErrUnknownVersion = errors.New("no release version to compare against")

// defaultAPIBaseURL is the GitHub API root.
const defaultAPIBaseURL = "https://api.github.com"

// fetchTimeout bounds the release lookup. The check runs before real
// work starts, so it must never hold the program for long.
const fetchTimeout = 5 * time.Second

// cacheTTL is how long a fetched release version is trusted before the
// API is asked again.
const cacheTTL = 24 * time.Hour

// maxResponseBytes caps how much of the API response is read.
const maxResponseBytes = 1 << 20

// devVersions mark builds without an injected release version: "dev"
// from handmade builds, "(devel)" from plain go build and test
// binaries. Comparing them against a release tag is meaningless.
var devVersions = map[string]bool{
	"":        true,
	"dev":     true,
	"(devel)": true,
}

// Result describes the outcome of an update check.
type Result struct {
	// CurrentVersion is the running version without the "v" prefix.
	CurrentVersion string

	// LatestVersion is the newest released version without the "v" prefix.
	LatestVersion string

	// UpdateAvailable is true when the released version differs from
	// the running one.
	UpdateAvailable bool
}

// Checker looks up the latest released version on GitHub and compares
// it against the running binary.
//
// Design decision: results are cached on disk for a day so repeated
// invocations cost nothing, and every failure stays silent at the call
// sites. A monitoring run must never break because GitHub is slow or
// unreachable.
type Checker struct {
	// repo is the GitHub repository in "owner/name" form.
	repo string

	// current is the running version, "v" prefix stripped.
	current string

	// cacheDir holds the per-repository cache file.
	cacheDir string

	// apiBaseURL is the GitHub API root. Overridden in tests.
	apiBaseURL string

	// output receives the update notice.
	output io.Writer

	// httpClient performs the release lookup.
	httpClient *http.Client
}

// Option is a function that configures a Checker.
type Option func(*Checker)

// WithCacheDir sets the directory for the version cache file.
func WithCacheDir(dir string) Option {
	return func(c *Checker) {
		c.cacheDir = dir
	}
}

// WithAPIBaseURL sets the GitHub API root.
func WithAPIBaseURL(baseURL string) Option {
	return func(c *Checker) {
		c.apiBaseURL = baseURL
	}
}

// WithOutput sets where the update notice is written.
func WithOutput(w io.Writer) Option {
	return func(c *Checker) {
		c.output = w
	}
}

// WithHTTPClient sets a custom HTTP client for the release lookup.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Checker) {
		c.httpClient = httpClient
	}
}

// NewChecker creates a Checker for the given GitHub repository and
// running version.
func NewChecker(repo, current string, opts ...Option) *Checker {
	c := &Checker{
		repo:       repo,
		current:    strings.TrimPrefix(current, "v"),
		cacheDir:   config.XDGCacheDir(),
		apiBaseURL: defaultAPIBaseURL,
		output:     os.Stderr,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: fetchTimeout}
	}

	return c
}

// cacheEntry is the on-disk cache format.
type cacheEntry struct {
	CheckedAt     int64  `json:"checked_at"`
	RemoteVersion string `json:"remote_version"`
}

// releaseResponse is the slice of the GitHub release payload we need.
type releaseResponse struct {
	TagName string `json:"tag_name"`
}

// Check returns the latest released version, served from the cache when
// it is fresh and from the GitHub API otherwise.
func (c *Checker) Check(ctx context.Context) (*Result, error) {
	if devVersions[c.current] {
		return nil, ErrUnknownVersion
	}

	if remote, ok := c.cachedVersion(); ok {
		return c.result(remote), nil
	}

	remote, err := c.fetchLatestVersion(ctx)
	if err != nil {
		return nil, err
	}

	// Cache write failures are not fatal; the check just repeats next run.
	c.writeCache(remote)

	return c.result(remote), nil
}

// Notify runs Check and prints an update notice when a newer release
// exists. Every failure is swallowed.
func (c *Checker) Notify(ctx context.Context) {
	result, err := c.Check(ctx)
	if err != nil || !result.UpdateAvailable {
		return
	}

	const (
		yellow = "\033[33m"
		green  = "\033[32m"
		bold   = "\033[1m"
		reset  = "\033[0m"
	)

	fmt.Fprintf(c.output, "\n%s%sUpdate available!%s\n", yellow, bold, reset)
	fmt.Fprintf(c.output, "  current: v%s -> latest: %sv%s%s\n", result.CurrentVersion, green, result.LatestVersion, reset)
	fmt.Fprintf(c.output, "  details: https://github.com/%s/releases\n\n", c.repo)
}

// result builds a Result comparing the remote version to the running one.
func (c *Checker) result(remote string) *Result {
	return &Result{
		CurrentVersion:  c.current,
		LatestVersion:   remote,
		UpdateAvailable: remote != "" && remote != c.current,
	}
}

// cacheFile returns the path of the per-repository cache file.
func (c *Checker) cacheFile() string {
	name := strings.ReplaceAll(c.repo, "/", "_") + ".json"
	return filepath.Join(c.cacheDir, name)
}

// cachedVersion returns the cached remote version when the cache file
// exists, parses, and is younger than cacheTTL.
func (c *Checker) cachedVersion() (string, bool) {
	data, err := os.ReadFile(c.cacheFile())
	if err != nil {
		return "", false
	}

	var entry cacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return "", false
	}

	if time.Since(time.Unix(entry.CheckedAt, 0)) >= cacheTTL {
		return "", false
	}

	return entry.RemoteVersion, true
}

// writeCache records the fetched remote version with the current time.
func (c *Checker) writeCache(remote string) {
	data, err := json.Marshal(cacheEntry{
		CheckedAt:     time.Now().Unix(),
		RemoteVersion: remote,
	})
	if err != nil {
		return
	}

	if err := os.MkdirAll(c.cacheDir, 0750); err != nil {
		return
	}

	_ = os.WriteFile(c.cacheFile(), data, 0600)
}

// fetchLatestVersion asks the GitHub API for the latest release tag.
func (c *Checker) fetchLatestVersion(ctx context.Context) (version string, err error) {
	url := fmt.Sprintf("%s/repos/%s/releases/latest", c.apiBaseURL, c.repo)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create release request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch latest release: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close response body: %w", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("release lookup returned status %d", resp.StatusCode)
	}

	var release releaseResponse
	if decodeErr := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&release); decodeErr != nil {
		return "", fmt.Errorf("failed to decode release response: %w", decodeErr)
	}

	return strings.TrimPrefix(release.TagName, "v"), nil
}
