// Package metrics exposes Prometheus collectors for artifact downloads and the
// status server.
package metrics

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Download results.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Downloads tracks deferred checksum downloads. A nil *Downloads is valid and
// records nothing.
type Downloads struct {
	total    *prometheus.CounterVec
	bytes    *prometheus.CounterVec
	duration *prometheus.HistogramVec
	active   prometheus.Gauge
}

// NewDownloads registers the download collectors on reg.
func NewDownloads(reg prometheus.Registerer) (*Downloads, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	d := &Downloads{
		total: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jdkdb_downloads_total",
			Help: "Total artifact downloads, labeled by vendor and result.",
		}, []string{"vendor", "result"}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jdkdb_download_bytes_total",
			Help: "Total artifact bytes fetched, labeled by host.",
		}, []string{"host"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "jdkdb_download_duration_seconds",
			Help:    "Histogram of artifact download durations, labeled by vendor.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"vendor"}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "jdkdb_downloads_active",
			Help: "Number of downloads currently in flight.",
		}),
	}
	for _, c := range []prometheus.Collector{d.total, d.bytes, d.duration, d.active} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register download collector: %w", err)
		}
	}
	return d, nil
}

// Start marks a download in flight and returns the function that records its
// outcome. size is ignored when err is non-nil.
func (d *Downloads) Start(vendor, rawURL string) func(size int64, err error) {
	if d == nil {
		return func(int64, error) {}
	}
	d.active.Inc()
	start := time.Now()
	return func(size int64, err error) {
		d.active.Dec()
		d.duration.WithLabelValues(vendor).Observe(time.Since(start).Seconds())
		if err != nil {
			d.total.WithLabelValues(vendor, ResultFailure).Inc()
			return
		}
		d.total.WithLabelValues(vendor, ResultSuccess).Inc()
		if size > 0 {
			d.bytes.WithLabelValues(SanitizeSite(rawURL)).Add(float64(size))
		}
	}
}

// HTTP tracks requests served by the status server.
type HTTP struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewHTTP registers the HTTP collectors on reg.
func NewHTTP(reg prometheus.Registerer) (*HTTP, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	h := &HTTP{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests, labeled by method and code.",
		}, []string{"method", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, labeled by method and route.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}, []string{"method", "route"}),
	}
	for _, c := range []prometheus.Collector{h.requests, h.duration} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register http collector: %w", err)
		}
	}
	return h, nil
}

// ObserveRequest records one served request.
func (h *HTTP) ObserveRequest(method, route string, code int, duration time.Duration) {
	h.requests.WithLabelValues(method, strconv.Itoa(code)).Inc()
	h.duration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}
