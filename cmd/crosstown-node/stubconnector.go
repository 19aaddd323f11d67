package main

import (
	"context"
	"errors"
	"sync"

	"github.com/ALLiDoizCode/crosstown/connector"
	"github.com/ALLiDoizCode/crosstown/internal/logger"
)

var errStubChannelNotFound = errors.New("stub connector: unknown channel id")

// stubConnector is the in-process connector stub SPEC_FULL §3.6 calls for:
// it satisfies connector.Handle, connector.PaymentRuntime, and
// connector.ChannelOpener entirely in memory, so crosstown-node can run
// bootstrap() and the relay monitor against a real Nostr relay without a
// real ILP connector attached. It never actually moves value.
type stubConnector struct {
	log logger.Logger

	mu       sync.Mutex
	peers    map[string]connector.AddPeerRequest
	channels map[string]connector.ChannelState
	handler  connector.PacketHandler
}

func newStubConnector(log logger.Logger) *stubConnector {
	return &stubConnector{
		log:      log,
		peers:    make(map[string]connector.AddPeerRequest),
		channels: make(map[string]connector.ChannelState),
	}
}

func (s *stubConnector) AddPeer(ctx context.Context, p connector.AddPeerRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peers[p.ID] = p
	s.log.Info("stub: addPeer", logger.String("peerId", p.ID), logger.String("url", p.URL))
	return nil
}

func (s *stubConnector) RemovePeer(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.peers, id)
	s.log.Info("stub: removePeer", logger.String("peerId", id))
	return nil
}

func (s *stubConnector) SetPacketHandler(handler connector.PacketHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = handler
}

// SendIlpPacket always rejects: the stub has no liquidity and no path to a
// real network, so every outbound packet fails with F02 (peer unreachable).
func (s *stubConnector) SendIlpPacket(ctx context.Context, r connector.SendPacketRequest) (connector.SendPacketResult, error) {
	return connector.SendPacketResult{Accepted: false, Code: "F02", Message: "stub connector: no route"}, nil
}

func (s *stubConnector) OpenChannel(ctx context.Context, r connector.OpenChannelRequest) (connector.OpenChannelResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	channelID := "stub-" + r.PeerID
	s.channels[channelID] = connector.ChannelState{ChannelID: channelID, Status: connector.ChannelOpen, Chain: r.Chain}
	return connector.OpenChannelResult{ChannelID: channelID, Status: string(connector.ChannelOpen)}, nil
}

func (s *stubConnector) GetChannelState(ctx context.Context, channelID string) (connector.ChannelState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.channels[channelID]
	if !ok {
		return connector.ChannelState{}, errStubChannelNotFound
	}
	return state, nil
}
