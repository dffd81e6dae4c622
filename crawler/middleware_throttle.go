package crawler

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// ThrottleMiddleware rate-limits dispatch to R requests/sec PER HOST,
// independent across hosts. Each host gets its own *rate.Limiter with
// burst 1, so a host's requests are spaced at least 1/R apart with no
// bursting. If a RobotsMiddleware is attached, a host's limiter is built
// against max(configured interval, robots Crawl-delay) the first time
// that host is seen.
type ThrottleMiddleware struct {
	rate   rate.Limit
	robots *RobotsMiddleware

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewThrottleMiddleware builds a ThrottleMiddleware targeting ratePerSec
// requests per second per host. robots may be nil to skip the crawl-delay
// override.
func NewThrottleMiddleware(ratePerSec float64, robots *RobotsMiddleware) *ThrottleMiddleware {
	if ratePerSec <= 0 {
		ratePerSec = 1
	}
	return &ThrottleMiddleware{
		rate:     rate.Limit(ratePerSec),
		robots:   robots,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (m *ThrottleMiddleware) PreRequest(ctx context.Context, req *Request) {}

func (m *ThrottleMiddleware) ProcessRequest(ctx context.Context, req *Request) error {
	host := req.URL.Host
	if host == "" {
		return nil
	}
	return m.limiterFor(host).Wait(ctx)
}

// limiterFor returns the per-host limiter, creating it on first use. The
// robots Crawl-delay override (when slower than the configured rate) is
// baked in at creation time rather than re-checked per request, since
// RobotsMiddleware's own cache is already keyed per host and settles on
// the first fetch.
func (m *ThrottleMiddleware) limiterFor(host string) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.limiters[host]; ok {
		return l
	}

	limit := m.rate
	if m.robots != nil {
		if delay := m.robots.CrawlDelay(host); delay > 0 {
			if perSec := rate.Limit(1 / delay.Seconds()); perSec < limit {
				limit = perSec
			}
		}
	}
	l := rate.NewLimiter(limit, 1)
	m.limiters[host] = l
	return l
}

func (m *ThrottleMiddleware) ProcessResponse(ctx context.Context, req *Request, resp *Response) {}
func (m *ThrottleMiddleware) ProcessException(ctx context.Context, req *Request, resp *Response, err error) {
}
