// Package connector defines the Go translation of the external interfaces
// Crosstown consumes from the host-supplied ILP connector and payment
// runtime (spec.md §6.2, §6.3; SPEC_FULL §8).
package connector

import "context"

// Settlement is the optional settlement-negotiation block attached to an
// AddPeerRequest (spec.md §6.2).
type Settlement struct {
	Preference          string `json:"preference,omitempty"`
	EvmAddress           string `json:"evmAddress,omitempty"`
	TokenAddress         string `json:"tokenAddress,omitempty"`
	TokenNetworkAddress  string `json:"tokenNetworkAddress,omitempty"`
	ChainID              string `json:"chainId,omitempty"`
	ChannelID            string `json:"channelId,omitempty"`
	InitialDeposit       string `json:"initialDeposit,omitempty"`
}

// Route describes a single routing-table entry for AddPeerRequest.
type Route struct {
	Prefix   string `json:"prefix"`
	Priority int    `json:"priority,omitempty"`
}

// AddPeerRequest mirrors the connector admin's addPeer payload.
type AddPeerRequest struct {
	ID         string      `json:"id"`
	URL        string      `json:"url"`
	AuthToken  string      `json:"authToken"`
	Routes     []Route     `json:"routes"`
	Settlement *Settlement `json:"settlement,omitempty"`
}

// OpenChannelRequest mirrors the connector admin's openChannel payload.
type OpenChannelRequest struct {
	PeerID      string
	Chain       string
	PeerAddress string
}

// OpenChannelResult is returned by a successful OpenChannel call.
type OpenChannelResult struct {
	ChannelID string
	Status    string
}

// ChannelStatus enumerates the lifecycle of a settlement channel.
type ChannelStatus string

const (
	ChannelOpening ChannelStatus = "opening"
	ChannelOpen    ChannelStatus = "open"
	ChannelClosed  ChannelStatus = "closed"
	ChannelSettled ChannelStatus = "settled"
)

// ChannelState is returned by GetChannelState.
type ChannelState struct {
	ChannelID string
	Status    ChannelStatus
	Chain     string
}

// Admin is the interface consumed for peer registration (spec.md §6.2).
type Admin interface {
	AddPeer(ctx context.Context, p AddPeerRequest) error
	RemovePeer(ctx context.Context, id string) error
}

// ChannelOpener is an optional capability a connector handle may expose;
// the facade capability-probes for it via a type assertion (spec.md §9
// Design Notes "Optional capabilities").
type ChannelOpener interface {
	OpenChannel(ctx context.Context, r OpenChannelRequest) (OpenChannelResult, error)
	GetChannelState(ctx context.Context, channelID string) (ChannelState, error)
}

// SendPacketRequest mirrors the payment runtime's sendIlpPacket input
// (spec.md §6.3).
type SendPacketRequest struct {
	Destination string
	Amount      uint64
	Data        []byte
	Timeout     int // milliseconds, 0 means use the runtime's default
}

// SendPacketResult mirrors sendIlpPacket's normalized output. Accepted is
// the normalized success flag; a host adapter must fold a wire `fulfilled`
// field into Accepted before returning (spec.md §6.3).
type SendPacketResult struct {
	Accepted    bool
	Fulfillment string
	Data        []byte
	Code        string
	Message     string
}

// PaymentRuntime is the interface consumed to send paid ILP packets
// (spec.md §6.3).
type PaymentRuntime interface {
	SendIlpPacket(ctx context.Context, r SendPacketRequest) (SendPacketResult, error)
}

// InboundPacket is the input to a host's HandlePacket callback
// (spec.md §6.4).
type InboundPacket struct {
	Destination string
	Amount      uint64
	Data        []byte
}

// InboundResult is the output of a HandlePacket callback.
type InboundResult struct {
	Accept      bool
	Fulfillment string
	Code        string
	Message     string
	Data        []byte
}

// PacketHandler is the callback the core registers with the connector at
// start() to process inbound payments (spec.md §6.4).
type PacketHandler func(ctx context.Context, p InboundPacket) (InboundResult, error)

// Handle is whatever the host supplies as config.Connector. It must expose
// Admin and a SetPacketHandler upcall; ChannelOpener is probed separately
// via a type assertion since it is optional.
type Handle interface {
	Admin
	SetPacketHandler(handler PacketHandler)
}
