// Package metrics records transport and de-duplication activity as
// Prometheus metrics and keeps an in-process latency histogram for
// console summaries.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/abdul-hamid-achik/extbridge/packages/queue"
)

const (
	namespace = "extbridge"

	// Latencies are recorded in microseconds, 1us to 60s.
	minLatency = 1
	maxLatency = 60_000_000
)

// Collector implements queue.Observer and the HTTP client's TransportObserver.
// It is safe for concurrent use.
type Collector struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	errorsTotal     prometheus.Counter
	queueEvents     *prometheus.CounterVec
	coalescedTotal  prometheus.Counter
	inFlight        prometheus.Gauge

	registry *prometheus.Registry

	mu        sync.Mutex
	histogram *hdrhistogram.Histogram
	requests  int64
	errors    int64
	coalesced int64
}

// NewCollector registers the collector's metrics on registry. A nil registry
// gets a fresh one.
func NewCollector(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	factory := promauto.With(registry)

	return &Collector{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transport_requests_total",
				Help:      "Total number of transport calls made",
			},
			[]string{"method", "status_code"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "transport_request_duration_seconds",
				Help:      "Duration of transport calls in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		errorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transport_errors_total",
			Help:      "Transport calls that failed without a response",
		}),
		queueEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "queue_events_total",
				Help:      "De-duplication queue lifecycle events",
			},
			[]string{"event"},
		),
		coalescedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_coalesced_total",
			Help:      "Requests served from another caller's transport call",
		}),
		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_in_flight",
			Help:      "Keys currently owned by an in-flight request",
		}),
		registry:  registry,
		histogram: hdrhistogram.New(minLatency, maxLatency, 3),
	}
}

// Registry returns the registry the collector's metrics live on.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveTransport records one transport call. status is zero when err is set.
func (c *Collector) ObserveTransport(method, _ string, status int, d time.Duration, err error) {
	code := "error"
	if err == nil {
		code = strconv.Itoa(status)
	} else {
		c.errorsTotal.Inc()
	}
	c.requestsTotal.WithLabelValues(method, code).Inc()
	c.requestDuration.WithLabelValues(method).Observe(d.Seconds())

	us := d.Microseconds()
	if us < minLatency {
		us = minLatency
	}
	if us > maxLatency {
		us = maxLatency
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.histogram.RecordValue(us)
	c.requests++
	if err != nil {
		c.errors++
	}
}

// On records a queue lifecycle event.
func (c *Collector) On(e queue.EventData) {
	c.queueEvents.WithLabelValues(e.Event.String()).Inc()

	switch e.Event {
	case queue.EventLocked:
		c.inFlight.Inc()
	case queue.EventCleared:
		c.inFlight.Dec()
	case queue.EventReleased:
		c.inFlight.Dec()
		c.coalescedTotal.Add(float64(e.Waiters))
		c.mu.Lock()
		c.coalesced += int64(e.Waiters)
		c.mu.Unlock()
	}
}

// Summary is a point-in-time view of what the collector has seen.
type Summary struct {
	Requests  int64
	Errors    int64
	Coalesced int64
	Min       time.Duration
	Mean      time.Duration
	P50       time.Duration
	P95       time.Duration
	P99       time.Duration
	Max       time.Duration
}

// Summary returns latency percentiles and counts.
func (c *Collector) Summary() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Summary{
		Requests:  c.requests,
		Errors:    c.errors,
		Coalesced: c.coalesced,
	}
	if c.histogram.TotalCount() == 0 {
		return s
	}

	s.Min = time.Duration(c.histogram.Min()) * time.Microsecond
	s.Mean = time.Duration(c.histogram.Mean()) * time.Microsecond
	s.P50 = time.Duration(c.histogram.ValueAtQuantile(50)) * time.Microsecond
	s.P95 = time.Duration(c.histogram.ValueAtQuantile(95)) * time.Microsecond
	s.P99 = time.Duration(c.histogram.ValueAtQuantile(99)) * time.Microsecond
	s.Max = time.Duration(c.histogram.Max()) * time.Microsecond
	return s
}
