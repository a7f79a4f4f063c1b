// pkg/instrument/metrics.go
package instrument

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pln_monitor"

var (
	// CacheLookups counts ResultCache lookups by outcome: hit, miss, shared (joined an in-flight fill) or error.
	CacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "Result cache lookups by outcome.",
	}, []string{"backend", "result"})

	// StoreQueryDuration times every round-trip to the topology and telemetry stores.
	StoreQueryDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "store",
		Name:      "query_duration_seconds",
		Help:      "Duration of store queries.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"store", "query"})

	// StoreQueryErrors counts failed store queries.
	StoreQueryErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "store",
		Name:      "query_errors_total",
		Help:      "Failed store queries.",
	}, []string{"store", "query"})

	PipelineFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "pipeline_failures_total",
		Help:      "View computations that failed and were reported as unavailable.",
	}, []string{"view"})
)

func init() {
	prometheus.MustRegister(CacheLookups, StoreQueryDuration, StoreQueryErrors, PipelineFailures)
}

// ObserveQuery starts timing one store query. Call the returned func with the query error, if any.
//
//	done := instrument.ObserveQuery("topology", "organizations")
//	defer func() { done(err) }()
func ObserveQuery(store, query string) func(error) {
	start := time.Now()
	return func(err error) {
		StoreQueryDuration.WithLabelValues(store, query).Observe(time.Since(start).Seconds())
		if err != nil {
			StoreQueryErrors.WithLabelValues(store, query).Inc()
		}
	}
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
