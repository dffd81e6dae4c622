package crawler

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// MonitoringMiddleware feeds a StatsCollector from the fixed lifecycle
// hooks. It is always last in the chain so it observes the outcome every
// earlier middleware (robots, throttle, retry) settled on.
type MonitoringMiddleware struct {
	stats *StatsCollector
	clock clock.Clock

	mu      sync.Mutex
	started map[string]time.Time
}

func NewMonitoringMiddleware(stats *StatsCollector, clk clock.Clock) *MonitoringMiddleware {
	if clk == nil {
		clk = clock.New()
	}
	return &MonitoringMiddleware{stats: stats, clock: clk, started: make(map[string]time.Time)}
}

func (m *MonitoringMiddleware) PreRequest(ctx context.Context, req *Request) {
	m.mu.Lock()
	m.started[req.ID.String()] = m.clock.Now()
	m.mu.Unlock()
	m.stats.RecordRequestQueued()
}

func (m *MonitoringMiddleware) ProcessRequest(ctx context.Context, req *Request) error { return nil }

func (m *MonitoringMiddleware) ProcessResponse(ctx context.Context, req *Request, resp *Response) {
	elapsed := m.elapsed(req)
	if resp.OK() {
		m.stats.RecordRequestSuccessful(resp.StatusCode, elapsed, elapsed, resp.ContentLength, req.URL.Host)
		return
	}
	m.stats.RecordRequestFailed(resp.ErrorCategory(), string(resp.ErrorType), resp.StatusCode, req.URL.String())
	if req.ShouldRetry {
		m.stats.RecordRequestRetried()
	}
}

func (m *MonitoringMiddleware) ProcessException(ctx context.Context, req *Request, resp *Response, err error) {
	category := CategoryOther
	statusCode := StatusGeneric
	if resp != nil {
		category = resp.ErrorCategory()
		statusCode = resp.StatusCode
	}
	if _, ok := err.(*ErrBlockedByRobots); ok {
		category = CategoryRobots
		m.stats.RecordRobotsBlock()
	}
	m.stats.RecordRequestFailed(category, err.Error(), statusCode, req.URL.String())
	if req.ShouldRetry {
		m.stats.RecordRequestRetried()
	}
}

func (m *MonitoringMiddleware) elapsed(req *Request) float64 {
	m.mu.Lock()
	start, ok := m.started[req.ID.String()]
	delete(m.started, req.ID.String())
	m.mu.Unlock()
	if !ok {
		return 0
	}
	return float64(m.clock.Now().Sub(start)) / float64(time.Millisecond)
}
