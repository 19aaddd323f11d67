package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SpspHandshakesInitiated tracks SPSP-over-ILP handshakes started.
	SpspHandshakesInitiated = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "spsp",
			Name:      "handshakes_initiated_total",
			Help:      "Total number of SPSP handshakes initiated",
		},
	)

	// SpspHandshakesCompleted tracks SPSP handshakes that reached a terminal
	// decrypted response.
	SpspHandshakesCompleted = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "spsp",
			Name:      "handshakes_completed_total",
			Help:      "Total number of SPSP handshakes completed, by status",
		},
		[]string{"status"}, // success, failure
	)

	// SpspHandshakesFailed tracks SPSP handshakes rejected by the remote
	// peer, keyed by the reply code (spec §4.4 step 6).
	SpspHandshakesFailed = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "spsp",
			Name:      "handshakes_failed_total",
			Help:      "Total number of SPSP handshakes rejected, by reply code",
		},
		[]string{"code"},
	)

	// SpspHandshakeDuration tracks the round-trip latency of a handshake.
	SpspHandshakeDuration = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "spsp",
			Name:      "handshake_duration_seconds",
			Help:      "SPSP handshake round-trip duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14), // 10ms to ~82s
		},
	)

	// ChannelsOpened tracks settlement channels opened via ChannelOpener.
	ChannelsOpened = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "spsp",
			Name:      "channels_opened_total",
			Help:      "Total number of settlement channels opened, by status",
		},
		[]string{"status"}, // success, failure
	)
)
