package recommendation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SearchRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "closet_search_requests_total",
			Help: "Recommendation searches by outcome (ok, no_outfits)",
		},
		[]string{"outcome"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "closet_search_stage_duration_seconds",
			Help:    "Latency of each recommendation stage",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	CollaboratorFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "closet_collaborator_failures_total",
			Help: "Failed or timed out calls to external collaborators",
		},
		[]string{"collaborator"},
	)

	ContextSources = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "closet_context_tpo_source_total",
			Help: "Which resolver strategy decided the occasion",
		},
		[]string{"source"},
	)

	RetrievalErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "closet_retrieval_errors_total",
			Help: "Category retrievals degraded to an empty list",
		},
		[]string{"category"},
	)

	FeedbackEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "closet_feedback_events_total",
			Help: "Feedback ledger writes by type and status",
		},
		[]string{"feedback_type", "status"},
	)
)
