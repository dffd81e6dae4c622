package crawler

import (
	"context"
	"net/url"
	"testing"
	"time"
)

// TestThrottleMiddlewareSpacesDispatchPerHost: successive dispatches to
// the same host must be separated by at least 1/R, while a different host
// is unaffected.
func TestThrottleMiddlewareSpacesDispatchPerHost(t *testing.T) {
	m := NewThrottleMiddleware(2, nil) // 2 req/sec => 500ms apart
	ctx := context.Background()

	hostA := &Request{URL: &url.URL{Scheme: "http", Host: "a.test"}}
	hostB := &Request{URL: &url.URL{Scheme: "http", Host: "b.test"}}

	start := time.Now()
	if err := m.ProcessRequest(ctx, hostA); err != nil {
		t.Fatalf("ProcessRequest host A (1st): %v", err)
	}
	firstElapsed := time.Since(start)
	if firstElapsed > 50*time.Millisecond {
		t.Errorf("first dispatch to a.test waited %v, want ~immediate", firstElapsed)
	}

	// A different host must not be throttled by a.test's limiter.
	if err := m.ProcessRequest(ctx, hostB); err != nil {
		t.Fatalf("ProcessRequest host B: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("dispatch to b.test waited %v, want ~immediate (independent host)", elapsed)
	}

	second := time.Now()
	if err := m.ProcessRequest(ctx, hostA); err != nil {
		t.Fatalf("ProcessRequest host A (2nd): %v", err)
	}
	if gap := time.Since(second); gap < 400*time.Millisecond {
		t.Errorf("second dispatch to a.test waited only %v, want >= ~500ms", gap)
	}
}

// TestThrottleMiddlewareHonorsRobotsCrawlDelay verifies that a host's
// limiter interval is max(configured interval, robots Crawl-delay),
// applied once at the host's first dispatch.
func TestThrottleMiddlewareHonorsRobotsCrawlDelay(t *testing.T) {
	robots := NewRobotsMiddleware("test-agent", nil)
	robots.cache["slow.test"] = &robotsEntry{crawlDelay: 300 * time.Millisecond}

	m := NewThrottleMiddleware(100, robots) // configured interval 10ms, robots wins
	ctx := context.Background()
	req := &Request{URL: &url.URL{Scheme: "http", Host: "slow.test"}}

	start := time.Now()
	if err := m.ProcessRequest(ctx, req); err != nil {
		t.Fatalf("ProcessRequest (1st): %v", err)
	}
	second := time.Now()
	if err := m.ProcessRequest(ctx, req); err != nil {
		t.Fatalf("ProcessRequest (2nd): %v", err)
	}
	if gap := time.Since(second); gap < 250*time.Millisecond {
		t.Errorf("dispatch gap = %v, want >= ~300ms (robots crawl-delay should win)", gap)
	}
	_ = start
}
