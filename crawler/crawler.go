// Package crawler containing the crawling logics and utilities to scrape
// remote resources on the web
package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/sync/errgroup"

	"github.com/feedcrawler/core/crawler/downloader"
	"github.com/feedcrawler/core/env"
	"github.com/feedcrawler/core/logging"
)

const (
	defaultUserAgent             = "Mozilla/5.0 (compatible; feedcrawler/1.0; +https://github.com/feedcrawler/core)"
	defaultConcurrency           = 10
	defaultTotalTimeout          = 30 * time.Second
	defaultRequestTimeout        = 5 * time.Second
	defaultMaxContentLength      = 10 * 1024 * 1024
	defaultMaxDepth              = 10
	defaultMaxCallbackRecursion  = 10
	defaultDelay                 = 0.5
	defaultMaxRetries            = 3
	defaultStatsCallbackInterval = 5 * time.Second
	maxWorkerCount               = 20
)

// commonFeedPaths are the well-known feed locations optionally seeded
// against each start URL's origin when TryCommonFeedPaths is enabled.
var commonFeedPaths = []string{
	"/feed", "/feed/", "/rss", "/rss/", "/rss.xml", "/atom.xml",
	"/index.xml", "/feeds/posts/default", "?feed=rss", "?feed=rss2", "?feed=atom",
}

// Config represents general settings for the crawler and its dependencies.
type Config struct {
	UserAgent string
	Headers   http.Header

	Concurrency           int
	TotalTimeout          time.Duration
	RequestTimeout        time.Duration
	MaxContentLength      int64
	MaxDepth              int
	MaxCallbackRecursion  int
	Delay                 float64
	MaxRetries            int
	AllowedSchemes        []string
	AllowedDomains        []string
	SSL                   bool
	Trace                 bool
	RespectRobots         bool
	ThrottleRatePerSecond float64

	StatsLevel            StatisticsLevel
	StatsCallback         func(Snapshot)
	StatsCallbackInterval time.Duration

	// FeedAwareDedup selects the feed-aware duplicate filter (query
	// stripped unless it carries a feed hint key) over the plain one.
	FeedAwareDedup bool

	// TryCommonFeedPaths additionally seeds commonFeedPaths against every
	// start URL's origin.
	TryCommonFeedPaths bool

	// Callback is the default parse callback assigned to seed requests
	// (and to requests built by Follow when the caller doesn't specify
	// one), typically the spider's parse function.
	Callback        Callback
	FailureCallback FailureCallback

	// PostCrawlCallback runs once after the queue drains (or total-timeout
	// fires) and workers have been stopped, before the session closes.
	PostCrawlCallback func(*Crawler)

	ItemSink ItemSink

	Logger *slog.Logger
}

// CrawlerOpt is a type definition for the functional-options pattern used
// while creating a new crawler.
type CrawlerOpt func(*Config)

func WithConcurrency(n int) CrawlerOpt { return func(c *Config) { c.Concurrency = n } }
func WithTotalTimeout(d time.Duration) CrawlerOpt {
	return func(c *Config) { c.TotalTimeout = d }
}
func WithRequestTimeout(d time.Duration) CrawlerOpt {
	return func(c *Config) { c.RequestTimeout = d }
}
func WithMaxContentLength(n int64) CrawlerOpt { return func(c *Config) { c.MaxContentLength = n } }
func WithMaxDepth(n int) CrawlerOpt           { return func(c *Config) { c.MaxDepth = n } }
func WithDelay(seconds float64) CrawlerOpt    { return func(c *Config) { c.Delay = seconds } }
func WithMaxRetries(n int) CrawlerOpt         { return func(c *Config) { c.MaxRetries = n } }
func WithAllowedSchemes(schemes ...string) CrawlerOpt {
	return func(c *Config) { c.AllowedSchemes = schemes }
}
func WithAllowedDomains(domains ...string) CrawlerOpt {
	return func(c *Config) { c.AllowedDomains = domains }
}
func WithSSL(insecureSkipVerify bool) CrawlerOpt { return func(c *Config) { c.SSL = insecureSkipVerify } }
func WithTrace(enabled bool) CrawlerOpt          { return func(c *Config) { c.Trace = enabled } }
func WithRespectRobots(enabled bool) CrawlerOpt  { return func(c *Config) { c.RespectRobots = enabled } }
func WithThrottleRatePerSecond(ratePerSec float64) CrawlerOpt {
	return func(c *Config) { c.ThrottleRatePerSecond = ratePerSec }
}
func WithStatsLevel(level StatisticsLevel) CrawlerOpt {
	return func(c *Config) { c.StatsLevel = level }
}
func WithStatsCallback(interval time.Duration, cb func(Snapshot)) CrawlerOpt {
	return func(c *Config) { c.StatsCallbackInterval = interval; c.StatsCallback = cb }
}
func WithFeedAwareDedup(enabled bool) CrawlerOpt {
	return func(c *Config) { c.FeedAwareDedup = enabled }
}
func WithTryCommonFeedPaths(enabled bool) CrawlerOpt {
	return func(c *Config) { c.TryCommonFeedPaths = enabled }
}
func WithCallback(cb Callback) CrawlerOpt             { return func(c *Config) { c.Callback = cb } }
func WithFailureCallback(cb FailureCallback) CrawlerOpt {
	return func(c *Config) { c.FailureCallback = cb }
}
func WithPostCrawlCallback(cb func(*Crawler)) CrawlerOpt {
	return func(c *Config) { c.PostCrawlCallback = cb }
}
func WithItemSink(sink ItemSink) CrawlerOpt { return func(c *Config) { c.ItemSink = sink } }
func WithLogger(l *slog.Logger) CrawlerOpt  { return func(c *Config) { c.Logger = l } }

func defaultConfig() *Config {
	return &Config{
		UserAgent:             defaultUserAgent,
		Concurrency:           defaultConcurrency,
		TotalTimeout:          defaultTotalTimeout,
		RequestTimeout:        defaultRequestTimeout,
		MaxContentLength:      defaultMaxContentLength,
		MaxDepth:              defaultMaxDepth,
		MaxCallbackRecursion:  defaultMaxCallbackRecursion,
		Delay:                 defaultDelay,
		MaxRetries:            defaultMaxRetries,
		RespectRobots:         true,
		ThrottleRatePerSecond: 2,
		StatsLevel:            StatsStandard,
		StatsCallbackInterval: defaultStatsCallbackInterval,
	}
}

// Crawler is the main object representing a crawler: it owns the priority
// queue, duplicate filter, middleware chain, downloader, and statistics
// collector for one crawl run.
type Crawler struct {
	cfg    *Config
	logger *slog.Logger
	clock  clock.Clock

	queue      *PriorityQueue
	dupe       *DuplicateFilter
	middleware MiddlewareChain
	robots     *RobotsMiddleware
	downloader *downloader.Downloader
	fetcher    *fetcher
	stats      *StatsCollector
	itemSink   ItemSink

	downloadSem chan struct{}
	parseSem    chan struct{}

	mu         sync.Mutex
	seedURLs   map[string]bool
	seedErrors map[string]string
}

// New creates a new Crawler instance, wiring the default middleware chain
// (robots → throttle → retry → cookies → content-type → monitoring) and the
// shared downloader/session for the run.
func New(userAgent string, opts ...CrawlerOpt) *Crawler {
	cfg := defaultConfig()
	cfg.UserAgent = userAgent
	for _, opt := range opts {
		opt(cfg)
	}
	return newCrawler(cfg)
}

// NewFromEnv creates a new Crawler by reading settings from the
// environment through the env package.
func NewFromEnv(opts ...CrawlerOpt) *Crawler {
	cfg := defaultConfig()
	cfg.UserAgent = env.GetEnv("USER_AGENT", defaultUserAgent)
	cfg.Concurrency = env.GetEnvAsInt("CONCURRENCY", defaultConcurrency)
	cfg.TotalTimeout = time.Duration(env.GetEnvFloat("TOTAL_TIMEOUT", defaultTotalTimeout.Seconds())) * time.Second
	cfg.RequestTimeout = time.Duration(env.GetEnvFloat("REQUEST_TIMEOUT", defaultRequestTimeout.Seconds())) * time.Second
	cfg.MaxContentLength = int64(env.GetEnvAsInt("MAX_CONTENT_LENGTH", defaultMaxContentLength))
	cfg.MaxDepth = env.GetEnvAsInt("MAX_DEPTH", defaultMaxDepth)
	cfg.Delay = env.GetEnvFloat("DELAY", defaultDelay)
	cfg.MaxRetries = env.GetEnvAsInt("MAX_RETRIES", defaultMaxRetries)
	cfg.AllowedDomains = env.GetEnvList("ALLOWED_DOMAINS", nil)
	cfg.AllowedSchemes = env.GetEnvList("ALLOWED_SCHEMES", nil)
	cfg.RespectRobots = env.GetEnvBool("RESPECT_ROBOTS", true)
	cfg.StatsLevel = StatisticsLevel(env.GetEnvAsInt("STATS_LEVEL", int(StatsStandard)))
	cfg.StatsCallbackInterval = time.Duration(env.GetEnvFloat("STATS_CALLBACK_INTERVAL", defaultStatsCallbackInterval.Seconds())) * time.Second
	cfg.SSL = env.GetEnvBool("SSL", false)
	cfg.Trace = env.GetEnvBool("TRACE", false)
	cfg.Logger = logging.NewLogger()

	for _, opt := range opts {
		opt(cfg)
	}
	return newCrawler(cfg)
}

func newCrawler(cfg *Config) *Crawler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "crawler")

	clk := clock.New()

	dl := downloader.New(downloader.Config{
		UserAgent:          cfg.UserAgent,
		InsecureSkipVerify: cfg.SSL,
		MaxConnsPerHost:    cfg.Concurrency,
		Clock:              clk,
	})

	var robots *RobotsMiddleware
	chain := MiddlewareChain{}
	if cfg.RespectRobots {
		robots = NewRobotsMiddleware(cfg.UserAgent, &http.Client{Timeout: cfg.RequestTimeout})
		chain = append(chain, robots)
	}
	chain = append(chain, NewThrottleMiddleware(cfg.ThrottleRatePerSecond, robots))
	chain = append(chain, NewRetryMiddleware())
	chain = append(chain, NewCookieMiddleware())
	chain = append(chain, NewContentTypeMiddleware())

	stats := NewStatsCollector(cfg.StatsLevel, 10000, clk)
	chain = append(chain, NewMonitoringMiddleware(stats, clk))

	var dupe *DuplicateFilter
	if cfg.FeedAwareDedup {
		dupe = NewFeedAwareDuplicateFilter()
	} else {
		dupe = NewDuplicateFilter()
	}

	sink := cfg.ItemSink
	if sink == nil {
		sink = newMemoryItemSink()
	}

	c := &Crawler{
		cfg:         cfg,
		logger:      logger,
		clock:       clk,
		queue:       NewPriorityQueue(),
		dupe:        dupe,
		middleware:  chain,
		robots:      robots,
		downloader:  dl,
		fetcher:     newFetcher(dl, chain, cfg.Trace),
		stats:       stats,
		itemSink:    sink,
		downloadSem: make(chan struct{}, cfg.Concurrency),
		parseSem:    make(chan struct{}, 2*cfg.Concurrency),
		seedURLs:    make(map[string]bool),
		seedErrors:  make(map[string]string),
	}
	return c
}

func workerCountFor(concurrency int) int {
	if concurrency < 1 {
		concurrency = 1
	}
	n := int(float64(concurrency) * 1.5)
	if n < concurrency {
		n = concurrency
	}
	if n > maxWorkerCount {
		n = maxWorkerCount
	}
	return n
}

// Crawl runs the orchestrator to completion: it seeds the priority queue
// from seedURLs (robots.txt and sitemap discovery requests, then the seeds
// themselves), spawns the worker pool, and returns when the queue drains,
// the total-timeout fires, or the context is cancelled.
func (c *Crawler) Crawl(ctx context.Context, seedURLs ...string) error {
	c.stats.Start()
	defer c.stats.Stop()

	for _, reqLike := range c.buildSeedRequests(seedURLs) {
		c.enqueueRequest(reqLike)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, c.cfg.TotalTimeout)
	defer cancel()

	g, gctx := errgroup.WithContext(timeoutCtx)
	workerCount := workerCountFor(c.cfg.Concurrency)
	for i := 0; i < workerCount; i++ {
		g.Go(func() error {
			c.workerLoop(gctx)
			return nil
		})
	}

	if c.cfg.StatsCallback != nil {
		g.Go(func() error {
			c.runStatsCallback(gctx)
			return nil
		})
	}

	joinDone := make(chan struct{})
	go func() {
		c.queue.Join()
		close(joinDone)
	}()

	select {
	case <-joinDone:
		c.logger.Debug("crawl queue drained")
	case <-gctx.Done():
		c.logger.Warn("crawl total-timeout reached, clearing queue")
		c.queue.Clear()
		<-joinDone
	}

	// Close unblocks workers waiting in Get; cancel stops the stats-callback
	// ticker and, after a timeout abort, any fetch still in flight.
	c.queue.Close()
	cancel()
	_ = g.Wait()

	if c.cfg.PostCrawlCallback != nil {
		c.cfg.PostCrawlCallback(c)
	}
	c.downloader.CloseIdleConnections()
	c.stats.LogSummary(c.logger)

	// A total-timeout abort still completed a (possibly partial) crawl, so
	// only an outer cancellation is reported as an error to the caller.
	return ctx.Err()
}

func (c *Crawler) runStatsCallback(ctx context.Context) {
	interval := c.cfg.StatsCallbackInterval
	if interval <= 0 {
		interval = defaultStatsCallbackInterval
	}
	ticker := c.clock.Ticker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.cfg.StatsCallback(c.stats.GetStats())
		}
	}
}

func (c *Crawler) workerLoop(ctx context.Context) {
	for {
		item, ok := c.queue.Get()
		if !ok {
			return
		}
		c.process(ctx, item)
	}
}

func (c *Crawler) process(ctx context.Context, item Queueable) {
	defer c.queue.Done()

	var queuedAt time.Time
	switch v := item.(type) {
	case *Request:
		queuedAt = v.QueuedAt()
	case *CallbackResult:
		queuedAt = v.QueuedAt()
	}
	if !queuedAt.IsZero() {
		c.stats.RecordQueueMetrics(float64(c.clock.Now().Sub(queuedAt))/float64(time.Millisecond), c.queue.Len())
	}

	switch v := item.(type) {
	case *CallbackResult:
		c.processCallbackResult(ctx, v)
	case *Request:
		c.processRequest(ctx, v)
	}
}

func (c *Crawler) processRequest(ctx context.Context, req *Request) {
	select {
	case c.downloadSem <- struct{}{}:
	case <-ctx.Done():
		return
	}
	resp := c.fetcher.fetch(ctx, req)
	<-c.downloadSem

	req.HasRun = true
	c.dupe.IsURLSeen(resp.URL, string(resp.Method))

	if resp.OK() && req.Callback != nil {
		c.runCallback(ctx, req, resp)
	} else if !resp.OK() && !req.ShouldRetry && req.FailureCallback != nil {
		req.FailureCallback(req, resp)
	}

	if !resp.OK() && c.isSeedURL(req.URL) {
		c.recordSeedFailure(req.URL.String(), resp)
	}

	shouldRetry := req.ShouldRetry
	req.ShouldRetry = false
	if shouldRetry {
		c.enqueueRequest(req)
	}
}

func (c *Crawler) runCallback(ctx context.Context, req *Request, resp *Response) {
	select {
	case c.parseSem <- struct{}{}:
	case <-ctx.Done():
		return
	}
	defer func() { <-c.parseSem }()

	values, err := req.Callback(req, resp)
	if err != nil {
		c.logger.Warn("callback error", "url", req.URL.String(), "err", err)
		return
	}
	for _, v := range values {
		c.enqueueCallbackResult(v, 0)
	}
}

// processCallbackResult fans out one dequeued CallbackResult: anything
// past MaxCallbackRecursion is dropped, a lazy sequence ([]any) is
// iterated one level deeper, a *Request goes back through enqueueRequest,
// nil is dropped, an error value is logged and dropped, and anything else
// is handed to the item sink.
func (c *Crawler) processCallbackResult(ctx context.Context, cr *CallbackResult) {
	if cr.RecursionDepth >= c.cfg.MaxCallbackRecursion {
		c.logger.Warn("dropping callback result: max recursion exceeded", "depth", cr.RecursionDepth)
		return
	}
	switch v := cr.Value.(type) {
	case nil:
		return
	case *Request:
		c.enqueueRequest(v)
	case []any:
		for _, sub := range v {
			c.enqueueCallbackResult(sub, cr.RecursionDepth+1)
		}
	case error:
		c.logger.Warn("callback yielded error", "err", v)
	default:
		if err := c.itemSink.ProcessItem(v); err != nil {
			c.logger.Warn("item sink error", "err", err)
			return
		}
		c.stats.RecordItemProcessed()
	}
}

func (c *Crawler) enqueueRequest(req *Request) {
	req.MarkEnqueued()
	req.SetQueuedAt(c.clock.Now())
	c.stats.RecordURLSeen(false)
	c.queue.Put(req)
}

func (c *Crawler) enqueueCallbackResult(v any, depth int) {
	cr := NewCallbackResult(v, depth)
	cr.SetQueuedAt(c.clock.Now())
	c.queue.Put(cr)
}

// Follow normalizes rawURL (joining it against resp's origin if relative),
// enforces max depth, the scheme/domain allow-lists, and the duplicate
// filter BEFORE constructing a Request. It returns nil for any rejection,
// in which case the caller yields nothing.
func (c *Crawler) Follow(rawURL string, callback Callback, resp *Response, opts ...func(*Request)) *Request {
	target, history, err := c.resolveFollowTarget(rawURL, resp)
	if err != nil {
		c.logger.Debug("follow: invalid url", "url", rawURL, "err", err)
		return nil
	}
	if len(history) >= c.cfg.MaxDepth {
		return nil
	}
	if !c.schemeAllowed(target.Scheme) {
		return nil
	}
	if !c.domainAllowed(target.Host) {
		return nil
	}
	if c.dupe.IsURLSeen(target, string(MethodGet)) {
		c.stats.RecordURLSeen(true)
		return nil
	}

	if callback == nil {
		callback = c.cfg.Callback
	}
	req := NewRequest(target)
	req.Callback = callback
	req.History = history
	req.MaxRetries = c.cfg.MaxRetries
	req.Timeout = c.cfg.RequestTimeout.Seconds()
	req.MaxContentLength = c.cfg.MaxContentLength
	req.Delay = c.cfg.Delay
	req.Headers = c.defaultHeaders()
	for _, opt := range opts {
		opt(req)
	}
	return req
}

func (c *Crawler) resolveFollowTarget(rawURL string, resp *Response) (*url.URL, []*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, nil, err
	}
	var history []*url.URL
	if resp != nil {
		if u.Host == "" {
			origin, oerr := url.Parse(resp.Origin())
			if oerr == nil {
				u = origin.ResolveReference(u)
			}
		}
		history = append(history, resp.History...)
	}
	if u.Scheme == "" {
		u.Scheme = "https"
	}
	if u.Host == "" {
		return nil, nil, fmt.Errorf("follow: %q has no host", rawURL)
	}
	return u, history, nil
}

func (c *Crawler) schemeAllowed(scheme string) bool {
	if len(c.cfg.AllowedSchemes) == 0 {
		return scheme == "http" || scheme == "https"
	}
	for _, s := range c.cfg.AllowedSchemes {
		if strings.EqualFold(s, scheme) {
			return true
		}
	}
	return false
}

func (c *Crawler) domainAllowed(host string) bool {
	if len(c.cfg.AllowedDomains) == 0 {
		return true
	}
	host = strings.ToLower(host)
	for _, pattern := range c.cfg.AllowedDomains {
		if ok, _ := path.Match(strings.ToLower(pattern), host); ok {
			return true
		}
	}
	return false
}

func (c *Crawler) defaultHeaders() http.Header {
	h := make(http.Header)
	for k, vs := range c.cfg.Headers {
		for _, v := range vs {
			h.Add(k, v)
		}
	}
	if h.Get("User-Agent") == "" {
		h.Set("User-Agent", c.cfg.UserAgent)
	}
	if h.Get("Upgrade-Insecure-Requests") == "" {
		h.Set("Upgrade-Insecure-Requests", "1")
	}
	return h
}

func (c *Crawler) isSeedURL(u *url.URL) bool {
	if u == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seedURLs[u.String()]
}

func (c *Crawler) recordSeedFailure(seedURL string, resp *Response) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seedErrors[seedURL] = fmt.Sprintf("status=%d error_type=%s", resp.StatusCode, resp.ErrorType)
}

// SeedErrors returns a snapshot of seed-URL-level failures, keyed by the
// literal seed URL, so the caller can distinguish "site unreachable" from
// "site reachable but no feeds found".
func (c *Crawler) SeedErrors() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]string, len(c.seedErrors))
	for k, v := range c.seedErrors {
		out[k] = v
	}
	return out
}

// Items returns every Item collected during the crawl, when the
// configured ItemSink is the default in-memory one; it returns nil for a
// custom sink (e.g. one backed by a message queue or database).
func (c *Crawler) Items() []Item {
	if sink, ok := c.itemSink.(*memoryItemSink); ok {
		sink.mu.Lock()
		defer sink.mu.Unlock()
		return sink.items
	}
	return nil
}

// GetStats returns a consistent snapshot of the crawl's statistics.
func (c *Crawler) GetStats() Snapshot {
	return c.stats.GetStats()
}

// SetCallback assigns the default parse callback applied to seed requests,
// for the common case where the callback itself is built from the
// *Crawler (e.g. a feedspider.Spider, whose ParseResponse method calls
// back into Crawler.Follow) and so cannot be supplied as a CrawlerOpt
// before the Crawler exists. Seed requests copy the callback when Crawl
// starts; requests built later from sitemap entries, and by Follow without
// a callback of its own, read it at the time they are built.
func (c *Crawler) SetCallback(cb Callback) { c.cfg.Callback = cb }

// SetFailureCallback is SetCallback's counterpart for FailureCallback.
func (c *Crawler) SetFailureCallback(cb FailureCallback) { c.cfg.FailureCallback = cb }

// buildSeedRequests builds the robots.txt (priority 1) and conventional
// sitemap.xml (priority 5) discovery requests for each distinct seed host,
// plus the seed Requests themselves (priority 100) and, when
// TryCommonFeedPaths is set, the well-known feed-path suffixes against
// each seed's origin. Every request passes through the duplicate filter
// before enqueueing, the same gate Follow applies to discovered links, so
// overlapping seed lists collapse and a later discovered link back to a
// seed is recognized as already seen.
func (c *Crawler) buildSeedRequests(seedURLs []string) []*Request {
	var reqs []*Request

	for _, raw := range seedURLs {
		target, err := normalizeSeedURL(raw)
		if err != nil {
			c.logger.Warn("skipping invalid seed url", "url", raw, "err", err)
			continue
		}

		c.mu.Lock()
		c.seedURLs[target.String()] = true
		c.mu.Unlock()

		if rr := c.robotsDiscoveryRequest(target); rr != nil {
			reqs = append(reqs, rr)
		}
		if sm := c.sitemapRequest(target.Scheme+"://"+target.Host+"/sitemap.xml", PrioritySitemap); sm != nil {
			reqs = append(reqs, sm)
		}

		if c.dupe.IsURLSeen(target, string(MethodGet)) {
			c.stats.RecordURLSeen(true)
		} else {
			reqs = append(reqs, c.seedRequest(target, PriorityDefault))
		}

		if c.cfg.TryCommonFeedPaths {
			origin := target.Scheme + "://" + target.Host
			for _, suffix := range commonFeedPaths {
				u, err := url.Parse(origin + suffix)
				if err != nil || c.dupe.IsURLSeen(u, string(MethodGet)) {
					continue
				}
				reqs = append(reqs, c.seedRequest(u, PriorityFeedlikeURL))
			}
		}
	}
	return reqs
}

func normalizeSeedURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" {
		u.Scheme = "https"
	}
	if u.Host == "" {
		return nil, fmt.Errorf("seed url %q has no host", raw)
	}
	return u, nil
}

func (c *Crawler) seedRequest(target *url.URL, priority int) *Request {
	req := NewRequest(target)
	req.SetPriority(priority)
	req.Callback = c.cfg.Callback
	req.FailureCallback = c.cfg.FailureCallback
	req.MaxRetries = c.cfg.MaxRetries
	req.Timeout = c.cfg.RequestTimeout.Seconds()
	req.MaxContentLength = c.cfg.MaxContentLength
	req.Delay = c.cfg.Delay
	req.Headers = c.defaultHeaders()
	return req
}

// robotsDiscoveryRequest builds a dedicated, independently-queued
// robots.txt fetch so Sitemap: directives can be fanned out in parallel
// with the seed's own fetch; robots.txt Allow/Disallow enforcement itself
// still runs through RobotsMiddleware's own lazily-cached fetch, not this
// one. The duplicate filter collapses repeat seeds on the same host to a
// single fetch; nil is returned for an already-seen URL.
func (c *Crawler) robotsDiscoveryRequest(target *url.URL) *Request {
	u := &url.URL{Scheme: target.Scheme, Host: target.Host, Path: "/robots.txt"}
	if c.dupe.IsURLSeen(u, string(MethodGet)) {
		return nil
	}
	req := NewRequest(u)
	req.SetPriority(PriorityRobots)
	req.MaxRetries = 0
	req.Timeout = c.cfg.RequestTimeout.Seconds()
	req.MaxContentLength = 1024 * 1024
	req.Headers = c.defaultHeaders()
	req.Callback = c.parseRobotsSitemaps
	return req
}

// parseRobotsSitemaps extracts "Sitemap:" directives by a bare line-scan
// (robots.txt is frequently too loose to warrant a full grammar just for
// this), and fans each one out as a priority-5 sitemap request.
func (c *Crawler) parseRobotsSitemaps(req *Request, resp *Response) ([]any, error) {
	if !resp.OK() {
		return nil, nil
	}
	var out []any
	for _, line := range strings.Split(string(resp.Data), "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(strings.ToLower(line), "sitemap:") {
			continue
		}
		sitemapURL := strings.TrimSpace(line[len("sitemap:"):])
		if sitemapURL == "" {
			continue
		}
		if sm := c.sitemapRequest(sitemapURL, PrioritySitemap); sm != nil {
			out = append(out, sm)
		}
	}
	return out, nil
}

func (c *Crawler) sitemapRequest(sitemapURL string, priority int) *Request {
	u, err := url.Parse(sitemapURL)
	if err != nil {
		return nil
	}
	if c.dupe.IsURLSeen(u, string(MethodGet)) {
		return nil
	}
	req := NewRequest(u)
	req.SetPriority(priority)
	req.MaxRetries = 0
	req.Timeout = c.cfg.RequestTimeout.Seconds()
	req.MaxContentLength = c.cfg.MaxContentLength
	req.Headers = c.defaultHeaders()
	req.Callback = c.parseSitemapLocs
	return req
}

// locRegex tolerantly extracts <loc> elements from a sitemap body without
// a full XML parse, since real-world sitemaps are frequently malformed.
var locRegex = regexp.MustCompile(`(?is)<loc>\s*(.*?)\s*</loc>`)

// parseSitemapLocs extracts <loc> elements and filters them for feedlike
// substrings before enqueuing each one at priority 10.
func (c *Crawler) parseSitemapLocs(req *Request, resp *Response) ([]any, error) {
	if !resp.OK() {
		return nil, nil
	}
	body := string(resp.Data)
	var out []any
	for _, m := range locRegex.FindAllStringSubmatch(body, -1) {
		loc := strings.TrimSpace(m[1])
		lowered := strings.ToLower(loc)
		if !feedlikeRegex.MatchString(lowered) && !podcastRegex.MatchString(lowered) {
			continue
		}
		u, err := url.Parse(loc)
		if err != nil || u.Host == "" {
			continue
		}
		if c.dupe.IsURLSeen(u, string(MethodGet)) {
			continue
		}
		r := NewRequest(u)
		r.SetPriority(PrioritySitemapURL)
		r.Callback = c.cfg.Callback
		r.MaxRetries = c.cfg.MaxRetries
		r.Timeout = c.cfg.RequestTimeout.Seconds()
		r.MaxContentLength = c.cfg.MaxContentLength
		r.Headers = c.defaultHeaders()
		out = append(out, r)
	}
	return out, nil
}
