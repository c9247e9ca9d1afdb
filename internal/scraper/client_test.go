package scraper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNewClient(t *testing.T) {
	t.Parallel()

	t.Run("creates client with defaults", func(t *testing.T) {
		t.Parallel()

		client, err := NewClient()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if client == nil {
			t.Fatal("expected client, got nil")
		}
	})

	t.Run("rejects malformed proxy address", func(t *testing.T) {
		t.Parallel()

		_, err := NewClient(WithProxyAddress("not-an-address"))
		if !errors.Is(err, ErrInvalidProxyAddress) {
			t.Errorf("expected ErrInvalidProxyAddress, got %v", err)
		}
	})

	t.Run("accepts well formed proxy address", func(t *testing.T) {
		t.Parallel()

		client, err := NewClient(WithProxyAddress("127.0.0.1:9050"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if client == nil {
			t.Fatal("expected client, got nil")
		}
	})
}

func TestIsValidProxyAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		address string
		want    bool
	}{
		{name: "valid localhost address", address: "127.0.0.1:9050", want: true},
		{name: "valid hostname address", address: "proxy.example.com:1080", want: true},
		{name: "missing port", address: "127.0.0.1", want: false},
		{name: "missing host", address: ":9050", want: false},
		{name: "port zero", address: "127.0.0.1:0", want: false},
		{name: "port too large", address: "127.0.0.1:70000", want: false},
		{name: "non numeric port", address: "127.0.0.1:abc", want: false},
		{name: "empty string", address: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := isValidProxyAddress(tt.address); got != tt.want {
				t.Errorf("isValidProxyAddress(%q) = %v, want %v", tt.address, got, tt.want)
			}
		})
	}
}

func TestClient_FetchStatusPage(t *testing.T) {
	t.Parallel()

	t.Run("returns body and sends browser headers", func(t *testing.T) {
		t.Parallel()

		var gotUserAgent string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotUserAgent = r.Header.Get("User-Agent")
			if _, err := w.Write([]byte("<html>page</html>")); err != nil {
				t.Errorf("failed to write response: %v", err)
			}
		}))
		defer server.Close()

		client, err := NewClient()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		body, err := client.FetchStatusPage(context.Background(), server.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(body) != "<html>page</html>" {
			t.Errorf("unexpected body: %q", string(body))
		}
		if !strings.Contains(gotUserAgent, "Mozilla") {
			t.Errorf("expected browser user agent, got %q", gotUserAgent)
		}
	})

	t.Run("custom user agent is sent", func(t *testing.T) {
		t.Parallel()

		var gotUserAgent string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotUserAgent = r.Header.Get("User-Agent")
		}))
		defer server.Close()

		client, err := NewClient(WithUserAgent("replywatch-test/1.0"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if _, err := client.FetchStatusPage(context.Background(), server.URL); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if gotUserAgent != "replywatch-test/1.0" {
			t.Errorf("expected custom user agent, got %q", gotUserAgent)
		}
	})

	t.Run("body cap truncates oversized responses", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			if _, err := w.Write([]byte(strings.Repeat("x", 100))); err != nil {
				t.Errorf("failed to write response: %v", err)
			}
		}))
		defer server.Close()

		client, err := NewClient(WithMaxBodySize(10))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		body, err := client.FetchStatusPage(context.Background(), server.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(body) != 10 {
			t.Errorf("expected 10 bytes after the cap, got %d", len(body))
		}
	})

	t.Run("non-200 status is an error", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "rate limited", http.StatusTooManyRequests)
		}))
		defer server.Close()

		client, err := NewClient()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if _, err := client.FetchStatusPage(context.Background(), server.URL); err == nil {
			t.Error("expected an error for non-200 status")
		}
	})

	t.Run("context cancellation aborts the fetch", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(5 * time.Second):
			}
		}))
		defer server.Close()

		client, err := NewClient()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		if _, err := client.FetchStatusPage(ctx, server.URL); err == nil {
			t.Error("expected an error after context cancellation")
		}
	})
}
