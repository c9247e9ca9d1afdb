package update

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// newReleaseServer returns a test server that serves the given tag as
// the latest release and counts how often it was asked.
func newReleaseServer(t *testing.T, tag string, requests *atomic.Int64) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)

		if r.URL.Path != "/repos/nao1215/replywatch/releases/latest" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Accept"); got != "application/vnd.github.v3+json" {
			t.Errorf("expected GitHub v3 accept header, got %q", got)
		}

		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write([]byte(`{"tag_name":"` + tag + `"}`)); err != nil {
			t.Errorf("failed to write response: %v", err)
		}
	}))
	t.Cleanup(server.Close)

	return server
}

// TestCheckerCheck tests release lookups and version comparison.
func TestCheckerCheck(t *testing.T) {
	t.Parallel()

	t.Run("reports newer release", func(t *testing.T) {
		t.Parallel()

		var requests atomic.Int64
		server := newReleaseServer(t, "v1.2.0", &requests)

		checker := NewChecker("nao1215/replywatch", "1.0.0",
			WithAPIBaseURL(server.URL),
			WithCacheDir(t.TempDir()),
		)

		result, err := checker.Check(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if !result.UpdateAvailable {
			t.Error("expected update to be available")
		}
		if result.LatestVersion != "1.2.0" {
			t.Errorf("expected latest version %q, got %q", "1.2.0", result.LatestVersion)
		}
		if result.CurrentVersion != "1.0.0" {
			t.Errorf("expected current version %q, got %q", "1.0.0", result.CurrentVersion)
		}
	})

	t.Run("same version means no update", func(t *testing.T) {
		t.Parallel()

		var requests atomic.Int64
		server := newReleaseServer(t, "v1.0.0", &requests)

		checker := NewChecker("nao1215/replywatch", "v1.0.0",
			WithAPIBaseURL(server.URL),
			WithCacheDir(t.TempDir()),
		)

		result, err := checker.Check(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if result.UpdateAvailable {
			t.Error("expected no update for the same version")
		}
	})

	t.Run("serves second check from the cache", func(t *testing.T) {
		t.Parallel()

		var requests atomic.Int64
		server := newReleaseServer(t, "v1.2.0", &requests)
		cacheDir := t.TempDir()

		checker := NewChecker("nao1215/replywatch", "1.0.0",
			WithAPIBaseURL(server.URL),
			WithCacheDir(cacheDir),
		)

		if _, err := checker.Check(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := checker.Check(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if got := requests.Load(); got != 1 {
			t.Errorf("expected 1 API request, got %d", got)
		}
	})

	t.Run("stale cache triggers a fresh lookup", func(t *testing.T) {
		t.Parallel()

		var requests atomic.Int64
		server := newReleaseServer(t, "v1.2.0", &requests)
		cacheDir := t.TempDir()

		stale, err := json.Marshal(cacheEntry{
			CheckedAt:     time.Now().Add(-25 * time.Hour).Unix(),
			RemoteVersion: "1.1.0",
		})
		if err != nil {
			t.Fatal(err)
		}
		cachePath := filepath.Join(cacheDir, "nao1215_replywatch.json")
		if err := os.WriteFile(cachePath, stale, 0600); err != nil {
			t.Fatal(err)
		}

		checker := NewChecker("nao1215/replywatch", "1.0.0",
			WithAPIBaseURL(server.URL),
			WithCacheDir(cacheDir),
		)

		result, err := checker.Check(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if requests.Load() != 1 {
			t.Errorf("expected the stale cache to be refreshed, got %d requests", requests.Load())
		}
		if result.LatestVersion != "1.2.0" {
			t.Errorf("expected refreshed version %q, got %q", "1.2.0", result.LatestVersion)
		}
	})

	t.Run("corrupt cache triggers a fresh lookup", func(t *testing.T) {
		t.Parallel()

		var requests atomic.Int64
		server := newReleaseServer(t, "v1.2.0", &requests)
		cacheDir := t.TempDir()

		cachePath := filepath.Join(cacheDir, "nao1215_replywatch.json")
		if err := os.WriteFile(cachePath, []byte("{not json"), 0600); err != nil {
			t.Fatal(err)
		}

		checker := NewChecker("nao1215/replywatch", "1.0.0",
			WithAPIBaseURL(server.URL),
			WithCacheDir(cacheDir),
		)

		if _, err := checker.Check(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if requests.Load() != 1 {
			t.Errorf("expected corrupt cache to be ignored, got %d requests", requests.Load())
		}
	})

	t.Run("development build skips the check", func(t *testing.T) {
		t.Parallel()

		for _, current := range []string{"", "dev", "(devel)"} {
			checker := NewChecker("nao1215/replywatch", current,
				WithCacheDir(t.TempDir()),
			)

			_, err := checker.Check(context.Background())
			if !errors.Is(err, ErrUnknownVersion) {
				t.Errorf("version %q: expected ErrUnknownVersion, got %v", current, err)
			}
		}
	})

	t.Run("API failure returns error", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		t.Cleanup(server.Close)

		checker := NewChecker("nao1215/replywatch", "1.0.0",
			WithAPIBaseURL(server.URL),
			WithCacheDir(t.TempDir()),
		)

		if _, err := checker.Check(context.Background()); err == nil {
			t.Error("expected error for failing API")
		}
	})
}

// TestCheckerNotify tests the printed update notice.
func TestCheckerNotify(t *testing.T) {
	t.Parallel()

	t.Run("prints notice when newer release exists", func(t *testing.T) {
		t.Parallel()

		var requests atomic.Int64
		server := newReleaseServer(t, "v2.0.0", &requests)

		var buf bytes.Buffer
		checker := NewChecker("nao1215/replywatch", "1.0.0",
			WithAPIBaseURL(server.URL),
			WithCacheDir(t.TempDir()),
			WithOutput(&buf),
		)

		checker.Notify(context.Background())

		output := buf.String()
		if !strings.Contains(output, "Update available!") {
			t.Errorf("expected update notice, got: %q", output)
		}
		if !strings.Contains(output, "v2.0.0") {
			t.Errorf("expected latest version in notice, got: %q", output)
		}
		if !strings.Contains(output, "https://github.com/nao1215/replywatch/releases") {
			t.Errorf("expected releases link in notice, got: %q", output)
		}
	})

	t.Run("silent when up to date", func(t *testing.T) {
		t.Parallel()

		var requests atomic.Int64
		server := newReleaseServer(t, "v1.0.0", &requests)

		var buf bytes.Buffer
		checker := NewChecker("nao1215/replywatch", "1.0.0",
			WithAPIBaseURL(server.URL),
			WithCacheDir(t.TempDir()),
			WithOutput(&buf),
		)

		checker.Notify(context.Background())

		if buf.Len() != 0 {
			t.Errorf("expected no output when up to date, got: %q", buf.String())
		}
	})

	t.Run("silent on lookup failure", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		server.Close()

		var buf bytes.Buffer
		checker := NewChecker("nao1215/replywatch", "1.0.0",
			WithAPIBaseURL(server.URL),
			WithCacheDir(t.TempDir()),
			WithOutput(&buf),
		)

		checker.Notify(context.Background())

		if buf.Len() != 0 {
			t.Errorf("expected no output on failure, got: %q", buf.String())
		}
	})
}
