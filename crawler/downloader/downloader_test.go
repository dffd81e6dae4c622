package downloader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDownloaderDoSetsUserAgentAndTimes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "test-agent" {
			t.Errorf("expected User-Agent header to be set, got %q", r.Header.Get("User-Agent"))
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	d := New(Config{UserAgent: "test-agent"})
	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	exchange := d.Do(context.Background(), req)
	if exchange.Err != nil {
		t.Fatalf("unexpected error: %v", exchange.Err)
	}
	defer exchange.Response.Body.Close()
	if exchange.Response.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", exchange.Response.StatusCode)
	}
}

func TestDownloaderDoPropagatesError(t *testing.T) {
	d := New(Config{UserAgent: "test-agent"})
	req, err := http.NewRequest(http.MethodGet, "http://127.0.0.1:0", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	exchange := d.Do(context.Background(), req)
	if exchange.Err == nil {
		t.Fatal("expected an error connecting to port 0")
	}
}
