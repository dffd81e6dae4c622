package crawler

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/dustin/go-humanize"
)

// StatisticsLevel controls how much bookkeeping the StatsCollector does.
type StatisticsLevel int

const (
	// StatsMinimal tracks only counters, no memory overhead beyond them.
	StatsMinimal StatisticsLevel = iota
	// StatsStandard adds streaming aggregates (mean/stddev/min/max).
	StatsStandard
	// StatsDetailed adds reservoir-sampled percentiles and per-host stats.
	StatsDetailed
)

// ErrorCategory buckets failures for the stats snapshot.
type ErrorCategory string

const (
	CategoryNetwork    ErrorCategory = "network"
	CategoryTimeout    ErrorCategory = "timeout"
	CategoryHTTPClient ErrorCategory = "http_client"
	CategoryHTTPServer ErrorCategory = "http_server"
	CategoryParsing    ErrorCategory = "parsing"
	CategoryValidation ErrorCategory = "validation"
	CategoryRobots     ErrorCategory = "robots"
	CategoryOther      ErrorCategory = "other"
)

// StreamingStats accumulates count/sum/sum-of-squares/min/max so mean and
// stddev are O(1) to compute, without retaining individual samples.
type StreamingStats struct {
	Count      int64
	Sum        float64
	SumSquares float64
	Min        float64
	Max        float64
}

// NewStreamingStats returns a StreamingStats ready to Add to.
func NewStreamingStats() *StreamingStats {
	return &StreamingStats{Min: math.Inf(1), Max: math.Inf(-1)}
}

// Add folds value into the running aggregate.
func (s *StreamingStats) Add(value float64) {
	s.Count++
	s.Sum += value
	s.SumSquares += value * value
	if value < s.Min {
		s.Min = value
	}
	if value > s.Max {
		s.Max = value
	}
}

// Mean returns the arithmetic mean, or 0 if no samples have been added.
func (s *StreamingStats) Mean() float64 {
	if s.Count == 0 {
		return 0
	}
	return s.Sum / float64(s.Count)
}

// Variance returns the population variance in sum-of-squares form.
func (s *StreamingStats) Variance() float64 {
	if s.Count < 2 {
		return 0
	}
	mean := s.Sum / float64(s.Count)
	return s.SumSquares/float64(s.Count) - mean*mean
}

// StdDev returns the population standard deviation.
func (s *StreamingStats) StdDev() float64 {
	return math.Sqrt(s.Variance())
}

// PercentileTracker keeps a fixed-memory uniform random subsample of an
// unbounded stream via reservoir sampling, used for latency percentiles.
type PercentileTracker struct {
	MaxSamples int
	Samples    []float64
	TotalCount int64
	rng        *rand.Rand
}

// NewPercentileTracker returns a tracker with the given reservoir capacity.
func NewPercentileTracker(maxSamples int) *PercentileTracker {
	return &PercentileTracker{
		MaxSamples: maxSamples,
		rng:        rand.New(rand.NewSource(1)),
	}
}

// Add folds value into the reservoir.
func (p *PercentileTracker) Add(value float64) {
	p.TotalCount++
	if len(p.Samples) < p.MaxSamples {
		p.Samples = append(p.Samples, value)
		return
	}
	idx := p.rng.Int63n(p.TotalCount)
	if idx < int64(p.MaxSamples) {
		p.Samples[idx] = value
	}
}

// Percentile computes the p-th percentile (0-100) via linear interpolation
// between the two nearest ranks, matching numpy's default method.
func (p *PercentileTracker) Percentile(pct float64) float64 {
	if len(p.Samples) == 0 {
		return 0
	}
	sorted := append([]float64(nil), p.Samples...)
	sort.Float64s(sorted)
	k := float64(len(sorted)-1) * (pct / 100.0)
	f := math.Floor(k)
	c := math.Ceil(k)
	if f == c {
		return sorted[int(k)]
	}
	d0 := sorted[int(f)] * (c - k)
	d1 := sorted[int(c)] * (k - f)
	return d0 + d1
}

// Percentiles reports the common p50/p90/p95/p99 cut points.
func (p *PercentileTracker) Percentiles() map[string]float64 {
	if len(p.Samples) == 0 {
		return map[string]float64{"p50": 0, "p90": 0, "p95": 0, "p99": 0}
	}
	return map[string]float64{
		"p50": p.Percentile(50),
		"p90": p.Percentile(90),
		"p95": p.Percentile(95),
		"p99": p.Percentile(99),
	}
}

// ErrorRecord is one entry in the bounded recent-errors ring.
type ErrorRecord struct {
	Timestamp  time.Time
	Category   ErrorCategory
	Message    string
	StatusCode int
	URL        string
}

const maxRecentErrors = 100

// HostStats is the per-host summary reported at StatsDetailed level.
type HostStats struct {
	Requests       int64
	MeanDurationMs float64
}

// StatsCollector is a thread-safe counters + streaming-aggregates +
// reservoir-percentiles collector. Plain counters use atomics; the
// streaming aggregates and recent-errors ring share a mutex because each
// update touches multiple fields together.
type StatsCollector struct {
	level      StatisticsLevel
	clock      clock.Clock
	maxSamples int

	requestsQueued        int64
	requestsSuccessful    int64
	requestsFailed        int64
	requestsRetried       int64
	itemsProcessed        int64
	urlsSeen              int64
	duplicateURLsFiltered int64
	robotsTxtBlocks       int64

	mu               sync.Mutex
	statusCodes      map[int]int64
	errorsByCategory map[ErrorCategory]int64
	recentErrors     []ErrorRecord

	startTime time.Time
	endTime   time.Time

	requestDuration *StreamingStats
	requestLatency  *StreamingStats
	contentLength   *StreamingStats
	queueWait       *StreamingStats
	queueSize       *StreamingStats

	requestDurationPct *PercentileTracker
	requestLatencyPct  *PercentileTracker

	hostRequestCounts map[string]int64
	hostDuration      map[string]*StreamingStats
}

// NewStatsCollector creates a StatsCollector at the given detail level.
// clk lets tests control start/end timing deterministically.
func NewStatsCollector(level StatisticsLevel, maxSamples int, clk clock.Clock) *StatsCollector {
	if maxSamples <= 0 {
		maxSamples = 10000
	}
	if clk == nil {
		clk = clock.New()
	}
	c := &StatsCollector{
		level:            level,
		clock:            clk,
		maxSamples:       maxSamples,
		statusCodes:      make(map[int]int64),
		errorsByCategory: make(map[ErrorCategory]int64),
	}
	if level == StatsStandard || level == StatsDetailed {
		c.requestDuration = NewStreamingStats()
		c.requestLatency = NewStreamingStats()
		c.contentLength = NewStreamingStats()
		c.queueWait = NewStreamingStats()
		c.queueSize = NewStreamingStats()
	}
	if level == StatsDetailed {
		c.requestDurationPct = NewPercentileTracker(maxSamples)
		c.requestLatencyPct = NewPercentileTracker(maxSamples)
		c.hostRequestCounts = make(map[string]int64)
		c.hostDuration = make(map[string]*StreamingStats)
	}
	return c
}

// Start records the crawl's start time.
func (c *StatsCollector) Start() {
	c.startTime = c.clock.Now()
}

// Stop records the crawl's end time, finalizing GetStats's wall-clock
// duration.
func (c *StatsCollector) Stop() {
	c.endTime = c.clock.Now()
}

// RecordRequestQueued increments requests_queued.
func (c *StatsCollector) RecordRequestQueued() {
	atomic.AddInt64(&c.requestsQueued, 1)
}

// RecordRequestSuccessful records a successful exchange and its timings.
func (c *StatsCollector) RecordRequestSuccessful(statusCode int, durationMs, latencyMs float64, contentLength int64, host string) {
	atomic.AddInt64(&c.requestsSuccessful, 1)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.statusCodes[statusCode]++

	if c.level == StatsStandard || c.level == StatsDetailed {
		c.requestDuration.Add(durationMs)
		c.requestLatency.Add(latencyMs)
		c.contentLength.Add(float64(contentLength))
	}
	if c.level == StatsDetailed {
		c.requestDurationPct.Add(durationMs)
		c.requestLatencyPct.Add(latencyMs)
		if host != "" {
			c.hostRequestCounts[host]++
			hs, ok := c.hostDuration[host]
			if !ok {
				hs = NewStreamingStats()
				c.hostDuration[host] = hs
			}
			hs.Add(durationMs)
		}
	}
}

// RecordRequestFailed records a failed exchange and appends to the
// bounded recent-errors ring.
func (c *StatsCollector) RecordRequestFailed(category ErrorCategory, message string, statusCode int, url string) {
	atomic.AddInt64(&c.requestsFailed, 1)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.errorsByCategory[category]++
	if statusCode != 0 {
		c.statusCodes[statusCode]++
	}
	c.recentErrors = append(c.recentErrors, ErrorRecord{
		Timestamp:  c.clock.Now(),
		Category:   category,
		Message:    message,
		StatusCode: statusCode,
		URL:        url,
	})
	if len(c.recentErrors) > maxRecentErrors {
		c.recentErrors = c.recentErrors[len(c.recentErrors)-maxRecentErrors:]
	}
}

// RecordRequestRetried increments requests_retried.
func (c *StatsCollector) RecordRequestRetried() {
	atomic.AddInt64(&c.requestsRetried, 1)
}

// RecordItemProcessed increments items_processed.
func (c *StatsCollector) RecordItemProcessed() {
	atomic.AddInt64(&c.itemsProcessed, 1)
}

// RecordURLSeen increments urls_seen, and duplicate_urls_filtered when the
// URL had already been seen.
func (c *StatsCollector) RecordURLSeen(isDuplicate bool) {
	atomic.AddInt64(&c.urlsSeen, 1)
	if isDuplicate {
		atomic.AddInt64(&c.duplicateURLsFiltered, 1)
	}
}

// RecordRobotsBlock increments robots_txt_blocks.
func (c *StatsCollector) RecordRobotsBlock() {
	atomic.AddInt64(&c.robotsTxtBlocks, 1)
}

// RecordQueueMetrics records queue-wait and queue-size samples, at
// StatsStandard level and above.
func (c *StatsCollector) RecordQueueMetrics(waitTimeMs float64, queueSize int) {
	if c.level != StatsStandard && c.level != StatsDetailed {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queueWait.Add(waitTimeMs)
	c.queueSize.Add(float64(queueSize))
}

// Snapshot is the grouped stats shape GetStats returns.
type Snapshot struct {
	Summary struct {
		TotalDurationSec  float64
		TotalRequests     int64
		SuccessRate       float64
		RequestsPerSecond float64
	}
	Requests struct {
		Queued     int64
		Successful int64
		Failed     int64
		Retried    int64
	}
	Items struct {
		Processed int64
	}
	URLs struct {
		Seen               int64
		DuplicatesFiltered int64
		RobotsBlocked      int64
	}
	StatusCodes map[int]int64
	Errors      struct {
		ByCategory map[ErrorCategory]int64
		Recent     []ErrorRecord
	}
	Performance *PerformanceSnapshot
	Content     *ContentSnapshot
	Queue       *QueueSnapshot
	Hosts       map[string]HostStats
}

// PerformanceSnapshot holds the StatsStandard+ timing aggregates, plus
// percentiles at StatsDetailed.
type PerformanceSnapshot struct {
	RequestDurationMs         *AggregateView
	RequestLatencyMs          *AggregateView
	RequestDurationPercentile map[string]float64
	RequestLatencyPercentile  map[string]float64
}

// AggregateView is a read-only rendering of a StreamingStats.
type AggregateView struct {
	Mean, Min, Max, StdDev float64
}

// ContentSnapshot holds byte-count aggregates and derived throughput.
type ContentSnapshot struct {
	TotalBytes         int64
	MeanBytes          int64
	MinBytes           int64
	MaxBytes           int64
	BytesPerSecond     int64
	MegabytesPerSecond float64
}

// QueueSnapshot holds queue-wait and queue-size aggregates.
type QueueSnapshot struct {
	WaitTimeMs *AggregateView
	Size       *AggregateView
}

// GetStats returns a consistent snapshot of all statistics gathered so
// far, under the same mutex used for writes.
func (c *StatsCollector) GetStats() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	var s Snapshot
	currentTime := c.clock.Now()
	if !c.endTime.IsZero() {
		currentTime = c.endTime
	}
	var totalDuration float64
	if !c.startTime.IsZero() {
		totalDuration = currentTime.Sub(c.startTime).Seconds()
	}

	successful := atomic.LoadInt64(&c.requestsSuccessful)
	failed := atomic.LoadInt64(&c.requestsFailed)
	totalRequests := successful + failed

	s.Summary.TotalDurationSec = totalDuration
	s.Summary.TotalRequests = totalRequests
	if totalRequests > 0 {
		s.Summary.SuccessRate = float64(successful) / float64(totalRequests)
	}
	if totalDuration > 0 {
		s.Summary.RequestsPerSecond = float64(totalRequests) / totalDuration
	}

	s.Requests.Queued = atomic.LoadInt64(&c.requestsQueued)
	s.Requests.Successful = successful
	s.Requests.Failed = failed
	s.Requests.Retried = atomic.LoadInt64(&c.requestsRetried)

	s.Items.Processed = atomic.LoadInt64(&c.itemsProcessed)

	s.URLs.Seen = atomic.LoadInt64(&c.urlsSeen)
	s.URLs.DuplicatesFiltered = atomic.LoadInt64(&c.duplicateURLsFiltered)
	s.URLs.RobotsBlocked = atomic.LoadInt64(&c.robotsTxtBlocks)

	s.StatusCodes = make(map[int]int64, len(c.statusCodes))
	for k, v := range c.statusCodes {
		s.StatusCodes[k] = v
	}

	s.Errors.ByCategory = make(map[ErrorCategory]int64, len(c.errorsByCategory))
	for k, v := range c.errorsByCategory {
		s.Errors.ByCategory[k] = v
	}
	recentN := len(c.recentErrors)
	if recentN > 10 {
		recentN = 10
	}
	s.Errors.Recent = append([]ErrorRecord(nil), c.recentErrors[len(c.recentErrors)-recentN:]...)

	if c.level == StatsStandard || c.level == StatsDetailed {
		perf := &PerformanceSnapshot{}
		if c.requestDuration.Count > 0 {
			perf.RequestDurationMs = viewOf(c.requestDuration)
		}
		if c.requestLatency.Count > 0 {
			perf.RequestLatencyMs = viewOf(c.requestLatency)
		}
		s.Performance = perf

		if c.contentLength.Count > 0 {
			content := &ContentSnapshot{
				TotalBytes: int64(c.contentLength.Sum),
				MeanBytes:  int64(c.contentLength.Mean()),
				MinBytes:   int64(c.contentLength.Min),
				MaxBytes:   int64(c.contentLength.Max),
			}
			if totalDuration > 0 {
				bps := c.contentLength.Sum / totalDuration
				content.BytesPerSecond = int64(bps)
				content.MegabytesPerSecond = bps / 1024 / 1024
			}
			s.Content = content
		}

		var queue *QueueSnapshot
		if c.queueWait.Count > 0 {
			queue = &QueueSnapshot{WaitTimeMs: viewOf(c.queueWait)}
		}
		if c.queueSize.Count > 0 {
			if queue == nil {
				queue = &QueueSnapshot{}
			}
			queue.Size = viewOf(c.queueSize)
		}
		s.Queue = queue
	}

	if c.level == StatsDetailed {
		if s.Performance == nil {
			s.Performance = &PerformanceSnapshot{}
		}
		if len(c.requestDurationPct.Samples) > 0 {
			s.Performance.RequestDurationPercentile = c.requestDurationPct.Percentiles()
		}
		if len(c.requestLatencyPct.Samples) > 0 {
			s.Performance.RequestLatencyPercentile = c.requestLatencyPct.Percentiles()
		}

		if len(c.hostRequestCounts) > 0 {
			s.Hosts = topHosts(c.hostRequestCounts, c.hostDuration, 10)
		}
	}

	return s
}

// LogSummary writes a one-shot digest of the crawl to logger: request
// counts, success rate, item count, and (when content aggregates exist)
// total bytes and throughput rendered human-readably.
func (c *StatsCollector) LogSummary(logger *slog.Logger) {
	snap := c.GetStats()
	attrs := []any{
		"duration_sec", fmt.Sprintf("%.2f", snap.Summary.TotalDurationSec),
		"requests", snap.Summary.TotalRequests,
		"success_rate", fmt.Sprintf("%.1f%%", snap.Summary.SuccessRate*100),
		"items", snap.Items.Processed,
		"urls_seen", snap.URLs.Seen,
		"duplicates_filtered", snap.URLs.DuplicatesFiltered,
	}
	if snap.Content != nil {
		attrs = append(attrs,
			"total_content", humanize.Bytes(uint64(snap.Content.TotalBytes)),
			"throughput", humanize.Bytes(uint64(snap.Content.BytesPerSecond))+"/s",
		)
	}
	logger.Info("crawl summary", attrs...)
	for _, rec := range snap.Errors.Recent {
		logger.Debug("recent error",
			"when", humanize.Time(rec.Timestamp),
			"category", rec.Category,
			"status", rec.StatusCode,
			"url", rec.URL,
			"message", rec.Message,
		)
	}
}

func viewOf(s *StreamingStats) *AggregateView {
	return &AggregateView{Mean: s.Mean(), Min: s.Min, Max: s.Max, StdDev: s.StdDev()}
}

func topHosts(counts map[string]int64, durations map[string]*StreamingStats, n int) map[string]HostStats {
	type kv struct {
		host  string
		count int64
	}
	all := make([]kv, 0, len(counts))
	for h, c := range counts {
		all = append(all, kv{h, c})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].count > all[j].count })
	if len(all) > n {
		all = all[:n]
	}
	out := make(map[string]HostStats, len(all))
	for _, e := range all {
		if hs, ok := durations[e.host]; ok {
			out[e.host] = HostStats{Requests: e.count, MeanDurationMs: hs.Mean()}
		}
	}
	return out
}
