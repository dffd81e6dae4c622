package crawler

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector adapts a StatsCollector snapshot into a
// prometheus.Collector, so an operator can scrape the crawler's counters
// and request-duration mean/min/max gauges alongside the grouped
// GetStats() snapshot the core itself returns. No histogram is exported.
// It is additive, not a replacement for GetStats's reservoir-sampled
// percentile tracker.
type PrometheusCollector struct {
	stats *StatsCollector

	requestsTotal   *prometheus.Desc
	statusCodeTotal *prometheus.Desc
	errorsTotal     *prometheus.Desc
	requestDuration *prometheus.Desc
	itemsProcessed  *prometheus.Desc
}

// NewPrometheusCollector wraps stats for registration with a
// prometheus.Registry.
func NewPrometheusCollector(stats *StatsCollector) *PrometheusCollector {
	return &PrometheusCollector{
		stats: stats,
		requestsTotal: prometheus.NewDesc(
			"feedcrawler_requests_total", "Total HTTP requests by outcome.",
			[]string{"outcome"}, nil,
		),
		statusCodeTotal: prometheus.NewDesc(
			"feedcrawler_status_code_total", "Total responses by HTTP status code.",
			[]string{"code"}, nil,
		),
		errorsTotal: prometheus.NewDesc(
			"feedcrawler_errors_total", "Total failed requests by error category.",
			[]string{"category"}, nil,
		),
		requestDuration: prometheus.NewDesc(
			"feedcrawler_request_duration_ms", "Request duration statistics in milliseconds.",
			[]string{"stat"}, nil,
		),
		itemsProcessed: prometheus.NewDesc(
			"feedcrawler_items_processed_total", "Total items handed to the item sink.",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (p *PrometheusCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- p.requestsTotal
	ch <- p.statusCodeTotal
	ch <- p.errorsTotal
	ch <- p.requestDuration
	ch <- p.itemsProcessed
}

// Collect implements prometheus.Collector, rendering a fresh GetStats()
// snapshot on every scrape.
func (p *PrometheusCollector) Collect(ch chan<- prometheus.Metric) {
	snap := p.stats.GetStats()

	ch <- prometheus.MustNewConstMetric(p.requestsTotal, prometheus.CounterValue, float64(snap.Requests.Successful), "successful")
	ch <- prometheus.MustNewConstMetric(p.requestsTotal, prometheus.CounterValue, float64(snap.Requests.Failed), "failed")
	ch <- prometheus.MustNewConstMetric(p.requestsTotal, prometheus.CounterValue, float64(snap.Requests.Retried), "retried")

	for code, count := range snap.StatusCodes {
		ch <- prometheus.MustNewConstMetric(p.statusCodeTotal, prometheus.CounterValue, float64(count), strconv.Itoa(code))
	}
	for category, count := range snap.Errors.ByCategory {
		ch <- prometheus.MustNewConstMetric(p.errorsTotal, prometheus.CounterValue, float64(count), string(category))
	}
	if snap.Performance != nil && snap.Performance.RequestDurationMs != nil {
		d := snap.Performance.RequestDurationMs
		ch <- prometheus.MustNewConstMetric(p.requestDuration, prometheus.GaugeValue, d.Mean, "mean")
		ch <- prometheus.MustNewConstMetric(p.requestDuration, prometheus.GaugeValue, d.Min, "min")
		ch <- prometheus.MustNewConstMetric(p.requestDuration, prometheus.GaugeValue, d.Max, "max")
	}
	ch <- prometheus.MustNewConstMetric(p.itemsProcessed, prometheus.CounterValue, float64(snap.Items.Processed))
}
