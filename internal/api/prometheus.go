package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "searchwatch_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "searchwatch_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint"})

	eventsStored = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "searchwatch_events_stored_total",
		Help: "Telemetry events appended to the store",
	}, []string{"mode"})

	ingestSoftFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "searchwatch_ingest_soft_failures_total",
		Help: "Lenient ingestion requests answered with ok:false",
	})

	alertEvaluations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "searchwatch_alert_evaluations_total",
		Help: "Alert evaluations served",
	}, []string{"active"})
)
