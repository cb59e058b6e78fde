package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Admission metrics
	AdmissionDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatekeeper_admission_decisions_total",
			Help: "Total admission decisions by outcome",
		},
		[]string{"outcome"}, // allow, challenge, block, rate_limited
	)

	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatekeeper_rate_limit_hits_total",
			Help: "Total requests denied by the rate limiter",
		},
		[]string{"class"},
	)

	DetectorMatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatekeeper_detector_matches_total",
			Help: "Total suspicious pattern matches by signature category",
		},
		[]string{"category"},
	)

	// Audit trail metrics
	AuditWrites = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gatekeeper_audit_writes_total",
			Help: "Total audit entries accepted for persistence",
		},
	)

	// Dropped writes indicate degraded observability, not request failure.
	AuditWriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gatekeeper_audit_write_failures_total",
			Help: "Total audit entries dropped due to storage failure",
		},
	)

	AlertsRaised = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatekeeper_security_alerts_total",
			Help: "Total security alerts raised by the correlator",
		},
		[]string{"risk_level"},
	)

	ValidationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gatekeeper_validation_failures_total",
			Help: "Total payloads rejected by schema validation",
		},
		[]string{"resource"},
	)

	PipelineDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gatekeeper_admission_duration_seconds",
			Help:    "Duration of the full admission check per request",
			Buckets: prometheus.DefBuckets,
		},
	)
)
