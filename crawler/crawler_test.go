package crawler_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/feedcrawler/core/crawler"
	"github.com/feedcrawler/core/crawler/feedspider"
)

// newTestCrawler builds a Crawler wired with the reference feedspider for
// end-to-end tests: robots and inter-request delay disabled so tests run
// fast and deterministically, feed-aware deduplication on, and a short
// total timeout.
func newTestCrawler(t *testing.T, opts ...crawler.CrawlerOpt) (*crawler.Crawler, *feedspider.Spider) {
	t.Helper()
	base := []crawler.CrawlerOpt{
		crawler.WithRespectRobots(false),
		crawler.WithDelay(0),
		crawler.WithRequestTimeout(2 * time.Second),
		crawler.WithTotalTimeout(5 * time.Second),
		crawler.WithFeedAwareDedup(true),
		crawler.WithConcurrency(4),
	}
	c := crawler.New("feedcrawler-test/1.0", append(base, opts...)...)
	s := feedspider.New(c)
	c.SetCallback(s.ParseResponse)
	return c, s
}

// TestCrawlDiscoversAtomFeedViaLinkTag: a seed page links an Atom feed via
// <link rel="alternate">; the crawl should fetch it and emit exactly one
// feed Item.
func TestCrawlDiscoversAtomFeedViaLinkTag(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head>
			<link rel="alternate" type="application/atom+xml" href="/feed.xml">
		</head><body></body></html>`)
	})
	mux.HandleFunc("/feed.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/atom+xml")
		fmt.Fprint(w, `<?xml version="1.0" encoding="utf-8"?>
			<feed xmlns="http://www.w3.org/2005/Atom">
				<title>Example Feed</title>
			</feed>`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c, _ := newTestCrawler(t)
	if err := c.Crawl(context.Background(), server.URL+"/"); err != nil {
		t.Fatalf("Crawl: %v", err)
	}

	items := c.Items()
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1: %+v", len(items), items)
	}
	info, ok := items[0].(feedspider.FeedInfo)
	if !ok {
		t.Fatalf("item = %+v, want feedspider.FeedInfo", items[0])
	}
	if !strings.HasSuffix(info.URL, "/feed.xml") {
		t.Errorf("item URL = %s, want suffix /feed.xml", info.URL)
	}

	snap := c.GetStats()
	if snap.Requests.Successful < 2 {
		t.Errorf("requests.successful = %d, want >= 2", snap.Requests.Successful)
	}
	if snap.Items.Processed != 1 {
		t.Errorf("items.processed = %d, want 1", snap.Items.Processed)
	}
}

// TestCrawlSuppressesDuplicateQueryVariant: two links to the same path
// differing only by a non-feed query string must collapse to a single
// fetch under the feed-aware duplicate filter.
func TestCrawlSuppressesDuplicateQueryVariant(t *testing.T) {
	var feedHits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body>
			<a href="/feed">feed</a>
			<a href="/feed?utm_source=x">feed again</a>
		</body></html>`)
	})
	mux.HandleFunc("/feed", func(w http.ResponseWriter, r *http.Request) {
		feedHits.Add(1)
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, `<?xml version="1.0"?><rss version="2.0"><channel></channel></rss>`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c, _ := newTestCrawler(t)
	if err := c.Crawl(context.Background(), server.URL+"/"); err != nil {
		t.Fatalf("Crawl: %v", err)
	}

	if feedHits.Load() != 1 {
		t.Errorf("server saw %d requests to /feed, want exactly 1", feedHits.Load())
	}
}

// TestCrawlRespectsMaxDepth: a chain of feedlike pages each linking the
// next must stop being followed once MaxDepth is reached.
func TestCrawlRespectsMaxDepth(t *testing.T) {
	var dHits atomic.Int32
	mux := http.NewServeMux()
	page := func(next string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprintf(w, `<html><body><a href="%s">feeds next</a></body></html>`, next)
		}
	}
	mux.HandleFunc("/a/feeds", page("/b/feeds"))
	mux.HandleFunc("/b/feeds", page("/c/feeds"))
	mux.HandleFunc("/c/feeds", page("/d/feeds"))
	mux.HandleFunc("/d/feeds", func(w http.ResponseWriter, r *http.Request) {
		dHits.Add(1)
		w.WriteHeader(http.StatusOK)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c, _ := newTestCrawler(t, crawler.WithMaxDepth(2))
	if err := c.Crawl(context.Background(), server.URL+"/a/feeds"); err != nil {
		t.Fatalf("Crawl: %v", err)
	}

	if dHits.Load() != 0 {
		t.Errorf("server saw %d requests to /d/feeds, want 0 (beyond max depth)", dHits.Load())
	}
}

// TestCrawlRetriesOn503: a feed URL failing twice with 503 before
// succeeding should be retried up to MaxRetries and the final
// Response/Item reflect the eventual success.
func TestCrawlRetriesOn503(t *testing.T) {
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><a href="/feed.rss">feed</a></body></html>`)
	})
	mux.HandleFunc("/feed.rss", func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, `<?xml version="1.0"?><rss version="2.0"><channel></channel></rss>`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c, _ := newTestCrawler(t, crawler.WithMaxRetries(3), crawler.WithTotalTimeout(10*time.Second))
	if err := c.Crawl(context.Background(), server.URL+"/"); err != nil {
		t.Fatalf("Crawl: %v", err)
	}

	if hits.Load() != 3 {
		t.Errorf("server saw %d requests to /feed.rss, want exactly 3", hits.Load())
	}
	if len(c.Items()) != 1 {
		t.Errorf("got %d items, want 1 after eventual success", len(c.Items()))
	}
}

// TestCrawlHonorsTotalTimeout: the whole crawl must return within
// TotalTimeout plus a small grace for worker cancellation, even when the
// server stalls every response.
func TestCrawlHonorsTotalTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	c, _ := newTestCrawler(t,
		crawler.WithTotalTimeout(1*time.Second),
		crawler.WithRequestTimeout(10*time.Second),
	)
	start := time.Now()
	if err := c.Crawl(context.Background(), server.URL+"/"); err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("crawl took %v, want <= total_timeout + grace", elapsed)
	}
	if len(c.Items()) != 0 {
		t.Errorf("got %d items from a stalled server, want 0", len(c.Items()))
	}
}

// TestCrawlRejectsOversizeBody: a body larger than MaxContentLength must
// be aborted as a synthetic 413, recorded as a failed request, and never
// parsed into an Item.
func TestCrawlRejectsOversizeBody(t *testing.T) {
	const oversizeBytes = 2 * 1024 * 1024
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><a href="/feed">feed</a></body></html>`)
	})
	mux.HandleFunc("/feed", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write(make([]byte, oversizeBytes))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c, _ := newTestCrawler(t, crawler.WithMaxContentLength(1024*1024))
	if err := c.Crawl(context.Background(), server.URL+"/"); err != nil {
		t.Fatalf("Crawl: %v", err)
	}

	if len(c.Items()) != 0 {
		t.Errorf("got %d items, want 0 for an oversize body", len(c.Items()))
	}
	snap := c.GetStats()
	if snap.Requests.Failed < 1 {
		t.Errorf("requests.failed = %d, want >= 1", snap.Requests.Failed)
	}
}
