package crawler

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

// ErrBlockedByRobots is returned from ProcessRequest when robots.txt
// disallows the request's URL for the configured user agent.
type ErrBlockedByRobots struct {
	URL string
}

func (e *ErrBlockedByRobots) Error() string {
	return fmt.Sprintf("blocked-by-robots: %s", e.URL)
}

// robotsEntry caches the parsed robots.txt group for one host, or nil if
// none could be fetched/parsed (permissive on errors).
type robotsEntry struct {
	group      *robotstxt.Group
	crawlDelay time.Duration
}

// RobotsMiddleware lazily fetches and caches robots.txt per host and
// blocks disallowed requests. Fetch failures are cached as permissive, so
// an unreachable robots.txt never stalls a host's crawl.
type RobotsMiddleware struct {
	userAgent string
	client    *http.Client

	mu    sync.Mutex
	cache map[string]*robotsEntry
}

// NewRobotsMiddleware builds a RobotsMiddleware using client for the
// robots.txt fetch itself (a plain client is enough; robots.txt is small
// and not subject to the crawl's own size/retry policy).
func NewRobotsMiddleware(userAgent string, client *http.Client) *RobotsMiddleware {
	if client == nil {
		client = http.DefaultClient
	}
	return &RobotsMiddleware{userAgent: userAgent, client: client, cache: make(map[string]*robotsEntry)}
}

func (m *RobotsMiddleware) PreRequest(ctx context.Context, req *Request) {}

func (m *RobotsMiddleware) ProcessRequest(ctx context.Context, req *Request) error {
	host := req.URL.Host
	if host == "" {
		return nil
	}
	entry := m.entryFor(ctx, req.URL.Scheme, host)
	if entry.group != nil && !entry.group.Test(req.URL.RequestURI()) {
		return &ErrBlockedByRobots{URL: req.URL.String()}
	}
	return nil
}

func (m *RobotsMiddleware) ProcessResponse(ctx context.Context, req *Request, resp *Response) {}
func (m *RobotsMiddleware) ProcessException(ctx context.Context, req *Request, resp *Response, err error) {
}

// CrawlDelay returns the Crawl-delay directive cached for host, or 0 if
// none was found (or robots.txt hasn't been fetched yet).
func (m *RobotsMiddleware) CrawlDelay(host string) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.cache[host]; ok && e != nil {
		return e.crawlDelay
	}
	return 0
}

func (m *RobotsMiddleware) entryFor(ctx context.Context, scheme, host string) *robotsEntry {
	m.mu.Lock()
	if e, ok := m.cache[host]; ok {
		m.mu.Unlock()
		return e
	}
	m.mu.Unlock()

	entry := m.fetch(ctx, scheme, host)

	m.mu.Lock()
	m.cache[host] = entry
	m.mu.Unlock()
	return entry
}

func (m *RobotsMiddleware) fetch(ctx context.Context, scheme, host string) *robotsEntry {
	url := fmt.Sprintf("%s://%s/robots.txt", scheme, host)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &robotsEntry{}
	}
	req.Header.Set("User-Agent", m.userAgent)

	resp, err := m.client.Do(req)
	if err != nil || resp.StatusCode >= 400 {
		if resp != nil {
			resp.Body.Close()
		}
		return &robotsEntry{}
	}
	defer resp.Body.Close()

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return &robotsEntry{}
	}

	group := data.FindGroup(m.userAgent)
	entry := &robotsEntry{group: group}
	if group != nil {
		entry.crawlDelay = group.CrawlDelay
	}
	return entry
}
