package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/feedcrawler/core/crawler"
	"github.com/feedcrawler/core/crawler/feedspider"
)

// captureProducer records every produced payload in memory.
type captureProducer struct {
	mu       sync.Mutex
	payloads [][]byte
}

func (p *captureProducer) Produce(data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.payloads = append(p.payloads, data)
	return nil
}

func (p *captureProducer) Payloads() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]byte(nil), p.payloads...)
}

func TestItemSinkProducesJSONPayload(t *testing.T) {
	producer := &captureProducer{}
	sink := NewItemSink(producer)

	type feedInfo struct {
		URL string `json:"url"`
	}
	if err := sink.ProcessItem(feedInfo{URL: "https://example.com/feed.xml"}); err != nil {
		t.Fatalf("ProcessItem: %v", err)
	}

	payloads := producer.Payloads()
	if len(payloads) != 1 {
		t.Fatalf("got %d payloads, want 1", len(payloads))
	}
	var got feedInfo
	if err := json.Unmarshal(payloads[0], &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.URL != "https://example.com/feed.xml" {
		t.Errorf("got.URL = %q, want %q", got.URL, "https://example.com/feed.xml")
	}
}

func TestItemSinkPropagatesMarshalError(t *testing.T) {
	sink := NewItemSink(&captureProducer{})
	if err := sink.ProcessItem(make(chan int)); err == nil {
		t.Error("ProcessItem(chan) = nil error, want a marshal error")
	}
}

// TestItemSinkReceivesItemsFromCrawl wires the sink into a live crawl: the
// feed item discovered by the spider must arrive at the Producer as a JSON
// payload instead of the crawler's in-memory item set.
func TestItemSinkReceivesItemsFromCrawl(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head>
			<link rel="alternate" type="application/atom+xml" href="/feed.xml">
		</head><body></body></html>`)
	})
	mux.HandleFunc("/feed.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/atom+xml")
		fmt.Fprint(w, `<?xml version="1.0"?><feed xmlns="http://www.w3.org/2005/Atom"></feed>`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	producer := &captureProducer{}
	c := crawler.New("feedcrawler-test/1.0",
		crawler.WithRespectRobots(false),
		crawler.WithDelay(0),
		crawler.WithTotalTimeout(5*time.Second),
		crawler.WithFeedAwareDedup(true),
		crawler.WithItemSink(NewItemSink(producer)),
	)
	s := feedspider.New(c)
	c.SetCallback(s.ParseResponse)

	if err := c.Crawl(context.Background(), server.URL+"/"); err != nil {
		t.Fatalf("Crawl: %v", err)
	}

	payloads := producer.Payloads()
	if len(payloads) != 1 {
		t.Fatalf("got %d payloads, want 1", len(payloads))
	}
	var got struct {
		URL string
	}
	if err := json.Unmarshal(payloads[0], &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !strings.HasSuffix(got.URL, "/feed.xml") {
		t.Errorf("payload URL = %q, want suffix /feed.xml", got.URL)
	}
	if items := c.Items(); items != nil {
		t.Errorf("Items() = %v, want nil when a custom sink is configured", items)
	}
}
