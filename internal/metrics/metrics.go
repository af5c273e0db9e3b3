// Package metrics exposes Prometheus counters for the decision core.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler exposes the default registry for scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}

var (
	// Evaluations counts signal evaluations by source (analyzer, cached,
	// rules).
	Evaluations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "decision_evaluations_total",
		Help: "Signal evaluations by source.",
	}, []string{"source"})

	// AnalyzerCalls counts outbound reasoning-service calls.
	AnalyzerCalls = promauto.NewCounter(prometheus.CounterOpts{
		Name: "decision_analyzer_calls_total",
		Help: "External analyzer invocations.",
	})

	// AnalyzerFailures counts analyzer timeouts and malformed responses.
	AnalyzerFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "decision_analyzer_failures_total",
		Help: "Analyzer calls that fell back to the rule path.",
	})

	// CacheHits counts analysis cache hits.
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "decision_analysis_cache_hits_total",
		Help: "Analysis cache hits.",
	})

	// LockContention counts failed single-flight lock acquisitions.
	LockContention = promauto.NewCounter(prometheus.CounterOpts{
		Name: "decision_analysis_lock_contention_total",
		Help: "Lock acquisitions lost to a concurrent analyzer call.",
	})

	// RiskRejections counts rejected evaluations by gate.
	RiskRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "decision_risk_rejections_total",
		Help: "Risk engine rejections by gate.",
	}, []string{"gate"})
)
