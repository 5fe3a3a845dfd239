// Package metrics holds the Prometheus collectors of the broker.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "upload_broker"

// Metrics groups HTTP and domain collectors.
type Metrics struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
	InFlight prometheus.Gauge

	Presigned   *prometheus.CounterVec
	RateLimited *prometheus.CounterVec
	ScanResults *prometheus.CounterVec
	Multipart   *prometheus.CounterVec
	Notify      *prometheus.CounterVec
}

// New constructs and registers every collector with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests partitioned by method, route, and status code.",
		}, []string{"method", "route", "status"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Histogram of HTTP request latencies in seconds partitioned by method, route, and status code.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),
		Presigned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "presigned_urls_total",
			Help:      "Presigned URLs issued, partitioned by operation.",
		}, []string{"operation"}),
		RateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected or admitted without a check, partitioned by rule and outcome.",
		}, []string{"rule", "outcome"}),
		ScanResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scan_verdicts_total",
			Help:      "Download gate decisions, partitioned by verdict.",
		}, []string{"verdict"}),
		Multipart: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "multipart_operations_total",
			Help:      "Multipart upload operations forwarded to the store, partitioned by operation and result.",
		}, []string{"operation", "result"}),
		Notify: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Outbound notifications, partitioned by result.",
		}, []string{"result"}),
	}

	for _, c := range []prometheus.Collector{
		m.Requests, m.Duration, m.InFlight,
		m.Presigned, m.RateLimited, m.ScanResults, m.Multipart, m.Notify,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}

	return m, nil
}

// NewNop returns collectors that are not registered anywhere.
func NewNop() *Metrics {
	m, _ := New(prometheus.NewRegistry())
	return m
}
