// Package monitor implements the Relay Monitor (spec.md §4.5): a long-lived
// subscription to peer-info events that maintains the discovered and
// peered sets and exposes explicit PeerWith registration.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/ALLiDoizCode/crosstown/connector"
	"github.com/ALLiDoizCode/crosstown/identity"
	"github.com/ALLiDoizCode/crosstown/internal/logger"
	"github.com/ALLiDoizCode/crosstown/internal/metrics"
	"github.com/ALLiDoizCode/crosstown/internal/store"
	"github.com/ALLiDoizCode/crosstown/lifecycle"
	"github.com/ALLiDoizCode/crosstown/nostr"
	"github.com/ALLiDoizCode/crosstown/relay"
	"github.com/ALLiDoizCode/crosstown/spsp"
	"github.com/ALLiDoizCode/crosstown/xerrors"
)

// Monitor owns the discovered-set exclusively (spec.md §3 "Ownership") and
// mediates all peering through PeerWith.
type Monitor struct {
	Relay          relay.Client
	ConnectorAdmin connector.Admin
	Spsp           *spsp.Client
	Store          store.Store
	Emitter        *lifecycle.Emitter
	Log            logger.Logger

	SelfPubkey       string
	Exclude          map[string]struct{}
	BasePricePerByte uint64
	QueryTimeout     time.Duration

	sub relay.Subscription

	inFlightMu sync.Mutex
	inFlight   map[string]*sync.Mutex
}

// New constructs a Monitor with sensible defaults for the unexported
// bookkeeping fields. Exported fields must still be set by the caller
// (the facade) before Start.
func New() *Monitor {
	return &Monitor{
		Store:            store.NewMemoryStore(),
		Emitter:          &lifecycle.Emitter{},
		Log:              logger.Noop(),
		Exclude:          make(map[string]struct{}),
		BasePricePerByte: 10,
		QueryTimeout:     5 * time.Second,
		inFlight:         make(map[string]*sync.Mutex),
	}
}

// Start opens the long-lived {kinds:[10032]} subscription and begins
// processing inbound events in a dedicated goroutine (spec.md §4.5,
// §7 "Relay Monitor runs its own read-loop goroutine").
func (m *Monitor) Start(ctx context.Context) error {
	sub, err := m.Relay.Subscribe(ctx, relay.Filter{Kinds: []int{nostr.KindPeerInfo}})
	if err != nil {
		return xerrors.NewRelayUnavailable(err, "subscribe to peer-info events")
	}
	m.sub = sub
	go m.readLoop(ctx)
	return nil
}

// Stop unsubscribes from the relay (idempotent; spec.md §4.5 "Cancellation").
func (m *Monitor) Stop() error {
	if m.sub == nil {
		return nil
	}
	return m.sub.Unsubscribe()
}

// Connected reports whether Start has opened the peer-info subscription, for
// the health endpoint's relay-connectivity check (SPEC_FULL §11) — it never
// dials, so calling it before Start is safe and cheap. It keeps reporting
// true after Stop or after the relay closes the stream.
func (m *Monitor) Connected() bool {
	return m.sub != nil
}

func (m *Monitor) readLoop(ctx context.Context) {
	for {
		select {
		case ev, ok := <-m.sub.Events():
			if !ok {
				return
			}
			m.handleEvent(ev)
		case <-ctx.Done():
			return
		}
	}
}

// handleEvent implements the per-event algorithm of spec.md §4.5.
func (m *Monitor) handleEvent(ev *nostr.Event) {
	if ev.PubKey == m.SelfPubkey {
		return
	}
	if _, excluded := m.Exclude[ev.PubKey]; excluded {
		return
	}

	last, hasLast := m.Store.LastSeenCreatedAt(ev.PubKey)
	if hasLast && ev.CreatedAt <= last {
		return
	}
	m.Store.SetLastSeenCreatedAt(ev.PubKey, ev.CreatedAt)

	info, err := nostr.ParsePeerInfo(ev)
	if err != nil {
		m.handleDeregistration(ev.PubKey)
		return
	}

	peerID := PeerID(ev.PubKey)
	m.Store.UpsertDiscovered(store.DiscoveredPeer{
		Pubkey:       ev.PubKey,
		PeerID:       peerID,
		IlpAddress:   info.IlpAddress,
		BtpEndpoint:  info.BtpEndpoint,
		DiscoveredAt: time.Now(),
	})
	metrics.PeerInfoEventsReceived.WithLabelValues("accepted").Inc()
	m.Emitter.Emit(lifecycle.Event{Kind: lifecycle.KindPeerDiscovered, Fields: map[string]any{
		"pubkey": ev.PubKey, "peerId": peerID, "peerInfo": info,
	}})
}

func (m *Monitor) handleDeregistration(pubkey string) {
	m.Store.RemoveDiscovered(pubkey)
	if !m.Store.IsPeered(pubkey) {
		metrics.PeerInfoEventsReceived.WithLabelValues("stale").Inc()
		return
	}
	peerID := PeerID(pubkey)
	ctx, cancel := context.WithTimeout(context.Background(), m.QueryTimeout)
	defer cancel()
	if err := m.ConnectorAdmin.RemovePeer(ctx, peerID); err != nil {
		m.Log.Warn("removePeer failed during deregistration", logger.String("peerId", peerID), logger.Error(err))
	}
	m.Store.UnmarkPeered(pubkey)
	metrics.Deregistrations.Inc()
	m.Emitter.Emit(lifecycle.Event{Kind: lifecycle.KindPeerDeregistered, Fields: map[string]any{
		"pubkey": pubkey, "peerId": peerID,
	}})
}

// PeerID derives the deterministic peer id spec.md §3 specifies:
// "nostr-" + pubkey[0..16].
func PeerID(pubkey string) string {
	n := 16
	if len(pubkey) < n {
		n = len(pubkey)
	}
	return "nostr-" + pubkey[:n]
}

// lockFor returns (and lazily creates) the per-pubkey mutex that serializes
// PeerWith calls for the same pubkey, collapsing concurrent callers into
// one handshake (spec.md §4.5 "Concurrency", §7, grounded on the teacher's
// core/session/manager.go mutex-guarded map pattern).
func (m *Monitor) lockFor(pubkey string) *sync.Mutex {
	m.inFlightMu.Lock()
	defer m.inFlightMu.Unlock()
	l, ok := m.inFlight[pubkey]
	if !ok {
		l = &sync.Mutex{}
		m.inFlight[pubkey] = l
	}
	return l
}

// PeerWith triggers registration and the SPSP handshake for pubkey
// (spec.md §4.5 steps 1-5). Safe to call concurrently for different
// pubkeys; concurrent calls for the same pubkey serialize and the second
// onward observe the idempotency check and return immediately.
func (m *Monitor) PeerWith(ctx context.Context, pubkey string, kp *identity.KeyPair) error {
	lock := m.lockFor(pubkey)
	lock.Lock()
	defer lock.Unlock()

	if m.Store.IsPeered(pubkey) {
		return nil
	}

	discovered, ok := m.Store.GetDiscovered(pubkey)
	if !ok {
		return xerrors.NewInvalidEvent("no discovered peer-info for pubkey %s", pubkey)
	}
	peerID := discovered.PeerID

	if err := m.ConnectorAdmin.AddPeer(ctx, connector.AddPeerRequest{
		ID:     peerID,
		URL:    discovered.BtpEndpoint,
		Routes: []connector.Route{{Prefix: discovered.IlpAddress}},
	}); err != nil {
		return xerrors.NewConnectorError(err, "addPeer for %s", peerID)
	}
	m.Store.MarkPeered(store.PeeredRecord{Pubkey: pubkey, PeerID: peerID})
	metrics.CandidatesRegistered.Inc()
	m.Emitter.Emit(lifecycle.Event{Kind: lifecycle.KindPeerRegistered, Fields: map[string]any{
		"pubkey": pubkey, "peerId": peerID,
	}})

	transportByteLen := estimateRequestSize(pubkey)
	amount := spsp.Price(transportByteLen, m.BasePricePerByte)
	resp, err := m.Spsp.RequestInfo(ctx, pubkey, discovered.IlpAddress, spsp.RequestOptions{
		Amount:  amount,
		Timeout: m.QueryTimeout,
	})
	if err != nil {
		reason := err.Error()
		if failed, ok := err.(*xerrors.SpspFailed); ok {
			reason = failed.ReplyMessage
		}
		m.Emitter.Emit(lifecycle.Event{Kind: lifecycle.KindHandshakeFailed, Fields: map[string]any{
			"pubkey": pubkey, "peerId": peerID, "reason": reason,
		}})
		return nil
	}

	if resp.Settlement != nil && resp.Settlement.ChannelID != "" {
		if err := m.ConnectorAdmin.AddPeer(ctx, connector.AddPeerRequest{
			ID:     peerID,
			URL:    discovered.BtpEndpoint,
			Routes: []connector.Route{{Prefix: discovered.IlpAddress}},
			Settlement: &connector.Settlement{
				Preference:          resp.Settlement.NegotiatedChain,
				EvmAddress:          resp.Settlement.SettlementAddress,
				TokenAddress:        resp.Settlement.TokenAddress,
				TokenNetworkAddress: resp.Settlement.TokenNetworkAddress,
				ChannelID:           resp.Settlement.ChannelID,
			},
		}); err != nil {
			m.Log.Warn("re-register with channel info failed", logger.String("peerId", peerID), logger.Error(err))
			return nil
		}
		m.Store.MarkPeered(store.PeeredRecord{
			Pubkey:            pubkey,
			PeerID:            peerID,
			ChannelID:         resp.Settlement.ChannelID,
			NegotiatedChain:   resp.Settlement.NegotiatedChain,
			SettlementAddress: resp.Settlement.SettlementAddress,
		})
		metrics.ChannelsOpened.WithLabelValues("success").Inc()
		m.Emitter.Emit(lifecycle.Event{Kind: lifecycle.KindChannelOpened, Fields: map[string]any{
			"pubkey": pubkey, "peerId": peerID, "channelId": resp.Settlement.ChannelID,
		}})
	}
	return nil
}

func estimateRequestSize(pubkey string) int {
	return len(pubkey) + 96
}
