package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CandidatesDiscovered tracks peer candidates surfaced by the aggregator,
	// by source (genesis, registry, config).
	CandidatesDiscovered = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "candidates_discovered_total",
			Help:      "Total number of peer candidates discovered, by source",
		},
		[]string{"source"}, // genesis, registry, config
	)

	// PeerInfoEventsReceived tracks kind:10032 peer-info events accepted by
	// the relay monitor's replaceable-event dedup.
	PeerInfoEventsReceived = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "peer_info_events_total",
			Help:      "Total number of peer-info events received, by outcome",
		},
		[]string{"outcome"}, // accepted, stale, invalid, self
	)

	// Deregistrations tracks kind:10032 events that carry an empty/absent
	// ILP address, signaling a peer withdrawing from discovery.
	Deregistrations = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "deregistrations_total",
			Help:      "Total number of peer deregistration events observed",
		},
	)

	// SubscriptionReconnects counts relay websocket connection losses, each of
	// which closes every open subscription on that client. The client does
	// not redial on its own.
	SubscriptionReconnects = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "subscription_reconnects_total",
			Help:      "Total number of relay connection losses that closed all subscriptions",
		},
	)
)
