package monitor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ALLiDoizCode/crosstown/connector"
	"github.com/ALLiDoizCode/crosstown/identity"
	"github.com/ALLiDoizCode/crosstown/internal/store"
	"github.com/ALLiDoizCode/crosstown/internal/transport"
	"github.com/ALLiDoizCode/crosstown/lifecycle"
	"github.com/ALLiDoizCode/crosstown/nostr"
	"github.com/ALLiDoizCode/crosstown/spsp"
)

type fakeAdmin struct {
	addCalls    []connector.AddPeerRequest
	removeCalls []string
	addErr      error
}

func (f *fakeAdmin) AddPeer(ctx context.Context, p connector.AddPeerRequest) error {
	f.addCalls = append(f.addCalls, p)
	return f.addErr
}

func (f *fakeAdmin) RemovePeer(ctx context.Context, id string) error {
	f.removeCalls = append(f.removeCalls, id)
	return nil
}

// fakePayments decodes the toon-encoded SPSP request it receives and, if
// accept is true, builds a matching signed SPSP response, mirroring what a
// real peer's payment-verification handler would do.
type fakePayments struct {
	peer       *identity.KeyPair
	accept     bool
	settlement *nostr.SettlementInfo
}

func (f *fakePayments) SendIlpPacket(ctx context.Context, r connector.SendPacketRequest) (connector.SendPacketResult, error) {
	if !f.accept {
		return connector.SendPacketResult{Accepted: false, Code: "F02", Message: "no route"}, nil
	}
	reqEv, err := transport.Decode(r.Data)
	if err != nil {
		return connector.SendPacketResult{}, err
	}
	respEv, err := nostr.BuildSpspResponse(reqEv, nostr.SpspResponsePlaintext{
		DestinationAccount: "g.peer",
		SharedSecret:       "deadbeef",
		Settlement:         f.settlement,
	}, f.peer)
	if err != nil {
		return connector.SendPacketResult{}, err
	}
	encoded, err := transport.Encode(respEv)
	if err != nil {
		return connector.SendPacketResult{}, err
	}
	return connector.SendPacketResult{Accepted: true, Data: encoded}, nil
}

func newTestMonitor(t *testing.T, admin *fakeAdmin, payments *fakePayments) (*Monitor, *identity.KeyPair) {
	t.Helper()
	self, err := identity.Generate()
	require.NoError(t, err)

	m := New()
	m.ConnectorAdmin = admin
	m.SelfPubkey = self.PublicKeyHex()
	m.Spsp = &spsp.Client{
		KeyPair:       self,
		Payments:      payments,
		OwnIlpAddress: "g.crosstown.self",
		Encode:        transport.Encode,
		Decode:        transport.Decode,
		Log:           m.Log,
	}
	return m, self
}

func signedPeerInfoEvent(t *testing.T, kp *identity.KeyPair, createdAt int64, info nostr.PeerInfo) *nostr.Event {
	t.Helper()
	ev, err := nostr.BuildPeerInfoEvent(info, kp)
	require.NoError(t, err)
	ev.CreatedAt = createdAt
	require.NoError(t, ev.Sign(kp))
	return ev
}

func TestHandleEventUpsertsDiscoveredAndEmits(t *testing.T) {
	m, _ := newTestMonitor(t, &fakeAdmin{}, &fakePayments{})
	peer, err := identity.Generate()
	require.NoError(t, err)

	var emitted []lifecycle.Event
	m.Emitter.Listen(func(ev lifecycle.Event) { emitted = append(emitted, ev) })

	info := nostr.PeerInfo{IlpAddress: "g.peer", BtpEndpoint: "wss://peer.example/btp"}
	ev := signedPeerInfoEvent(t, peer, 1000, info)
	m.handleEvent(ev)

	discovered, ok := m.Store.GetDiscovered(peer.PublicKeyHex())
	require.True(t, ok)
	assert.Equal(t, info.IlpAddress, discovered.IlpAddress)
	require.Len(t, emitted, 1)
	assert.Equal(t, lifecycle.KindPeerDiscovered, emitted[0].Kind)
}

func TestHandleEventIgnoresSelf(t *testing.T) {
	m, self := newTestMonitor(t, &fakeAdmin{}, &fakePayments{})

	var emitted []lifecycle.Event
	m.Emitter.Listen(func(ev lifecycle.Event) { emitted = append(emitted, ev) })

	ev := signedPeerInfoEvent(t, self, 1000, nostr.PeerInfo{IlpAddress: "g.self", BtpEndpoint: "wss://self/btp"})
	m.handleEvent(ev)

	_, ok := m.Store.GetDiscovered(self.PublicKeyHex())
	assert.False(t, ok)
	assert.Empty(t, emitted)
}

func TestHandleEventEnforcesMonotonicity(t *testing.T) {
	m, _ := newTestMonitor(t, &fakeAdmin{}, &fakePayments{})
	peer, err := identity.Generate()
	require.NoError(t, err)

	newer := signedPeerInfoEvent(t, peer, 2000, nostr.PeerInfo{IlpAddress: "g.new", BtpEndpoint: "wss://new/btp"})
	m.handleEvent(newer)

	older := signedPeerInfoEvent(t, peer, 1000, nostr.PeerInfo{IlpAddress: "g.old", BtpEndpoint: "wss://old/btp"})
	m.handleEvent(older)

	discovered, ok := m.Store.GetDiscovered(peer.PublicKeyHex())
	require.True(t, ok)
	assert.Equal(t, "g.new", discovered.IlpAddress)
}

func TestHandleEventDeregistersPeeredPubkeyOnEmptyContent(t *testing.T) {
	admin := &fakeAdmin{}
	m, _ := newTestMonitor(t, admin, &fakePayments{})
	peer, err := identity.Generate()
	require.NoError(t, err)

	m.Store.MarkPeered(store.PeeredRecord{Pubkey: peer.PublicKeyHex(), PeerID: PeerID(peer.PublicKeyHex())})

	var emitted []lifecycle.Event
	m.Emitter.Listen(func(ev lifecycle.Event) { emitted = append(emitted, ev) })

	dereg, err := nostr.BuildDeregistrationEvent(peer)
	require.NoError(t, err)
	m.handleEvent(dereg)

	assert.False(t, m.Store.IsPeered(peer.PublicKeyHex()))
	require.Len(t, admin.removeCalls, 1)
	require.Len(t, emitted, 1)
	assert.Equal(t, lifecycle.KindPeerDeregistered, emitted[0].Kind)
}

func TestHandleEventDeregistrationIsNoOpForUnknownPubkey(t *testing.T) {
	admin := &fakeAdmin{}
	m, _ := newTestMonitor(t, admin, &fakePayments{})
	peer, err := identity.Generate()
	require.NoError(t, err)

	dereg, err := nostr.BuildDeregistrationEvent(peer)
	require.NoError(t, err)
	m.handleEvent(dereg)

	assert.Empty(t, admin.removeCalls)
}

func TestPeerWithUnknownPubkeyErrors(t *testing.T) {
	m, self := newTestMonitor(t, &fakeAdmin{}, &fakePayments{})
	peer, err := identity.Generate()
	require.NoError(t, err)

	err = m.PeerWith(context.Background(), peer.PublicKeyHex(), self)
	assert.Error(t, err)
}

func TestPeerWithIsIdempotent(t *testing.T) {
	admin := &fakeAdmin{}
	m, self := newTestMonitor(t, admin, &fakePayments{})
	peer, err := identity.Generate()
	require.NoError(t, err)
	m.Store.MarkPeered(store.PeeredRecord{Pubkey: peer.PublicKeyHex(), PeerID: PeerID(peer.PublicKeyHex())})

	err = m.PeerWith(context.Background(), peer.PublicKeyHex(), self)
	require.NoError(t, err)
	assert.Empty(t, admin.addCalls)
}

func TestPeerWithSuccessfulHandshakeRegistersPeer(t *testing.T) {
	admin := &fakeAdmin{}
	peerKP, err := identity.Generate()
	require.NoError(t, err)
	m, self := newTestMonitor(t, admin, &fakePayments{peer: peerKP, accept: true})

	var emitted []lifecycle.Event
	m.Emitter.Listen(func(ev lifecycle.Event) { emitted = append(emitted, ev) })

	info := nostr.PeerInfo{IlpAddress: "g.peer", BtpEndpoint: "wss://peer.example/btp"}
	m.handleEvent(signedPeerInfoEvent(t, peerKP, 1000, info))

	err = m.PeerWith(context.Background(), peerKP.PublicKeyHex(), self)
	require.NoError(t, err)

	assert.True(t, m.Store.IsPeered(peerKP.PublicKeyHex()))
	require.Len(t, admin.addCalls, 1)

	var kinds []lifecycle.Kind
	for _, ev := range emitted {
		kinds = append(kinds, ev.Kind)
	}
	assert.Contains(t, kinds, lifecycle.KindPeerRegistered)
	assert.NotContains(t, kinds, lifecycle.KindHandshakeFailed)
}

func TestPeerWithHandshakeFailureEmitsHandshakeFailedButStillRegisters(t *testing.T) {
	admin := &fakeAdmin{}
	peerKP, err := identity.Generate()
	require.NoError(t, err)
	m, self := newTestMonitor(t, admin, &fakePayments{peer: peerKP, accept: false})

	var emitted []lifecycle.Event
	m.Emitter.Listen(func(ev lifecycle.Event) { emitted = append(emitted, ev) })

	info := nostr.PeerInfo{IlpAddress: "g.peer", BtpEndpoint: "wss://peer.example/btp"}
	m.handleEvent(signedPeerInfoEvent(t, peerKP, 1000, info))

	err = m.PeerWith(context.Background(), peerKP.PublicKeyHex(), self)
	require.NoError(t, err)

	var kinds []lifecycle.Kind
	for _, ev := range emitted {
		kinds = append(kinds, ev.Kind)
	}
	assert.Contains(t, kinds, lifecycle.KindPeerRegistered)
	assert.Contains(t, kinds, lifecycle.KindHandshakeFailed)
}

func TestPeerIDIsDeterministic(t *testing.T) {
	pubkey := "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcd"
	assert.Equal(t, "nostr-0123456789abcdef", PeerID(pubkey))
	assert.Equal(t, PeerID(pubkey), PeerID(pubkey))
}
