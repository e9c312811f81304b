package webcrud

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "raadmin_requests_total",
			Help: "Total number of react-admin requests by resource, operation and status",
		},
		[]string{"resource", "operation", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "raadmin_request_duration_seconds",
			Help:    "Latency in seconds of react-admin requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"resource", "operation"},
	)
)

func init() {
	prometheus.MustRegister(RequestsTotal, RequestDuration)
}

func observe(resource string, op Operation, status int, d time.Duration) {
	RequestsTotal.WithLabelValues(resource, string(op), strconv.Itoa(status)).Inc()
	RequestDuration.WithLabelValues(resource, string(op)).Observe(d.Seconds())
}
