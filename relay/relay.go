// Package relay defines the relay wire protocol contract Crosstown consumes
// (spec.md §6.1) and ships a default gorilla/websocket implementation,
// grounded on the teacher's pkg/agent/transport/websocket client shape.
package relay

import (
	"context"

	"github.com/ALLiDoizCode/crosstown/nostr"
)

// Filter is a Nostr REQ filter. Only the fields Crosstown needs are
// modeled: kinds, authors, and limit (spec.md §4.5, §4.6).
type Filter struct {
	Kinds   []int    `json:"kinds,omitempty"`
	Authors []string `json:"authors,omitempty"`
	Limit   int      `json:"limit,omitempty"`
}

// Subscription delivers EVENT messages matching a filter until Unsubscribe
// is called or the relay sends EOSE and no further events follow.
type Subscription interface {
	// Events yields EVENT payloads as they arrive.
	Events() <-chan *nostr.Event
	// EOSE closes when the relay has signaled "end of stored events".
	EOSE() <-chan struct{}
	// Unsubscribe closes the underlying stream (spec.md §4.5 "Cancellation").
	Unsubscribe() error
}

// Client is the relay wire-protocol contract consumed by the monitor and
// the bootstrap orchestrator (spec.md §6.1, §8 "RelayClient").
type Client interface {
	Subscribe(ctx context.Context, filter Filter) (Subscription, error)
	Publish(ctx context.Context, event *nostr.Event) error
}
