package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PhaseTransitions tracks bootstrap orchestrator phase changes.
	PhaseTransitions = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bootstrap",
			Name:      "phase_transitions_total",
			Help:      "Total number of bootstrap phase transitions",
		},
		[]string{"phase"}, // Discovering, Registering, Handshaking, Announcing, Ready, Failed
	)

	// CandidatesRegistered tracks candidates that completed registry/genesis
	// lookup and are ready for handshaking.
	CandidatesRegistered = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bootstrap",
			Name:      "candidates_registered_total",
			Help:      "Total number of peer candidates registered",
		},
	)

	// CandidatesPeered tracks candidates that completed a full peering cycle.
	CandidatesPeered = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bootstrap",
			Name:      "candidates_peered_total",
			Help:      "Total number of peer candidates successfully peered",
		},
	)

	// BootstrapFailures tracks per-candidate bootstrap failures by reason.
	BootstrapFailures = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bootstrap",
			Name:      "candidate_failures_total",
			Help:      "Total number of candidates that failed to peer, by reason",
		},
		[]string{"reason"}, // relay_unavailable, spsp_failed, connector_error, invalid_event
	)

	// BootstrapDuration tracks wall-clock time spent in each bootstrap phase.
	BootstrapDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "bootstrap",
			Name:      "phase_duration_seconds",
			Help:      "Bootstrap phase duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14), // 10ms to ~82s
		},
		[]string{"phase"},
	)
)
