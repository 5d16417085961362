package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "placescout_upstream_requests_total",
			Help: "Requests issued to the place search API",
		},
		[]string{"projection", "status"},
	)

	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "placescout_upstream_duration_seconds",
			Help:    "Duration of place search API round-trips in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"projection"},
	)

	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "placescout_jobs_total",
			Help: "Jobs that reached a terminal state",
		},
		[]string{"state"},
	)
)

// RecordUpstream updates the upstream request metrics. projection is "full"
// or "count"; status is the HTTP status code or "error" for transport
// failures.
func RecordUpstream(projection, status string, d time.Duration) {
	UpstreamRequestsTotal.WithLabelValues(projection, status).Inc()
	UpstreamDuration.WithLabelValues(projection).Observe(d.Seconds())
}

// RecordJob counts a job reaching a terminal state.
func RecordJob(state string) {
	JobsTotal.WithLabelValues(state).Inc()
}

// Handler exposes the prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
