package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Admission control metrics
	AdmissionAdmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bundleserve_admission_admitted_total",
			Help: "Requests admitted immediately by an admission gate",
		},
		[]string{"rule"},
	)

	AdmissionQueued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bundleserve_admission_queued_total",
			Help: "Requests that waited in an admission gate queue",
		},
		[]string{"rule"},
	)

	AdmissionRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bundleserve_admission_rejected_total",
			Help: "Requests rejected after exhausting concurrent and queued capacity",
		},
		[]string{"rule"},
	)

	// Request pipeline metrics
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bundleserve_requests_total",
			Help: "Requests served by the primary listener, by method and status",
		},
		[]string{"method", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bundleserve_request_duration_seconds",
			Help:    "Request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// Lifecycle metrics
	ServiceState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bundleserve_service_state",
			Help: "Current service state (0=starting 1=running 2=draining 3=stopped 4=failed_startup)",
		},
	)
)

func init() {
	prometheus.MustRegister(AdmissionAdmitted)
	prometheus.MustRegister(AdmissionQueued)
	prometheus.MustRegister(AdmissionRejected)
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(ServiceState)
}

// Handler returns the Prometheus HTTP handler served on the admin listener.
func Handler() http.Handler {
	return promhttp.Handler()
}
