// Package crosstown is the node facade (spec.md §2, §6): CreateNode wires
// the Peer Source Aggregator, Bootstrap Orchestrator, Relay Monitor, and
// SPSP Client into a single object a host starts and stops, grounded on
// the teacher's top-level wiring in cmd/sage-crypto/main.go.
package crosstown

import (
	"context"
	"sync/atomic"

	"github.com/ALLiDoizCode/crosstown/bootstrap"
	"github.com/ALLiDoizCode/crosstown/config"
	"github.com/ALLiDoizCode/crosstown/connector"
	"github.com/ALLiDoizCode/crosstown/health"
	"github.com/ALLiDoizCode/crosstown/identity"
	"github.com/ALLiDoizCode/crosstown/internal/logger"
	"github.com/ALLiDoizCode/crosstown/lifecycle"
	"github.com/ALLiDoizCode/crosstown/monitor"
	"github.com/ALLiDoizCode/crosstown/peers"
	"github.com/ALLiDoizCode/crosstown/relay"
	"github.com/ALLiDoizCode/crosstown/spsp"
	"github.com/ALLiDoizCode/crosstown/xerrors"
)

// StartResult is the return value of Node.Start (spec.md §4.7).
type StartResult struct {
	BootstrapResults []bootstrap.PeeringResult
	PeerCount        int
	ChannelCount     int
}

// Node is a constructed Crosstown instance. Create one with CreateNode and
// call Start exactly once.
type Node struct {
	kp *identity.KeyPair

	orchestrator *bootstrap.Orchestrator
	monitor      *monitor.Monitor
	channelAdmin connector.ChannelOpener // non-nil only if the connector handle implements it
	emitter      *lifecycle.Emitter
	checker      *health.Checker

	started      atomic.Bool
	peerCount    atomic.Int64
	channelCount atomic.Int64
}

// CreateNode validates cfg and wires every component, but performs no I/O
// (no relay dial, no connector calls) until Start is called (spec.md §4.7).
func CreateNode(cfg *config.Config) (*Node, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	kp, err := identity.FromHex(cfg.SecretKey)
	if err != nil {
		return nil, xerrors.NewConfigError("invalid secretKey: %v", err)
	}

	log := logger.NewDefaultLogger()
	emitter := &lifecycle.Emitter{}

	relayDialer := func(url string) relay.Client { return relay.NewWSClient(url) }
	homeRelay := relayDialer(cfg.RelayURL)

	cfg.Connector.SetPacketHandler(func(ctx context.Context, p connector.InboundPacket) (connector.InboundResult, error) {
		return cfg.HandlePacket(ctx, p)
	})

	var channelAdmin connector.ChannelOpener
	if co, ok := cfg.Connector.(connector.ChannelOpener); ok {
		channelAdmin = co
	}

	// cfg.KnownPeers is the config-provided known-peers source (spec.md §4.3
	// source (3), highest merge priority) — distinct from the genesis list,
	// which is a separate compiled-in cold-start source this binary ships
	// empty (spec.md §9 "Genesis peers").
	aggregator := peers.NewAggregator()
	aggregator.ConfigPeers = cfg.KnownPeers
	aggregator.DefaultRelay = cfg.DefaultRelayURL
	if aggregator.DefaultRelay == "" {
		aggregator.DefaultRelay = cfg.RelayURL
	}
	if cfg.ArdriveEnabled() {
		aggregator.RegistryURL = cfg.RegistryURL
	}
	aggregator.Log = log

	// The host's connector handle is required to implement both the admin
	// interface (§6.2) and the payment runtime (§6.3) on one object; unlike
	// ChannelOpener this capability is not optional, so the assertion is
	// unchecked.
	spspClient := &spsp.Client{
		KeyPair:       kp,
		Payments:      cfg.Connector.(connector.PaymentRuntime),
		OwnIlpAddress: cfg.OwnIlpAddress,
		Encode:        cfg.ToonEncoder,
		Decode:        cfg.ToonDecoder,
		Log:           log,
	}

	mon := monitor.New()
	mon.Relay = homeRelay
	mon.ConnectorAdmin = cfg.Connector
	mon.Spsp = spspClient
	mon.Emitter = emitter
	mon.Log = log
	mon.SelfPubkey = kp.PublicKeyHex()
	mon.BasePricePerByte = cfg.BasePricePerByte
	mon.QueryTimeout = cfg.QueryTimeout

	orch := bootstrap.New()
	orch.KeyPair = kp
	orch.Aggregator = aggregator
	orch.RelayDialer = relayDialer
	orch.AnnounceRelay = homeRelay
	orch.Spsp = spspClient
	orch.Monitor = mon
	orch.Emitter = emitter
	orch.Log = log
	orch.OwnIlpAddress = cfg.OwnIlpAddress
	orch.OwnPeerInfo = cfg.IlpInfo
	orch.BasePricePerByte = cfg.BasePricePerByte
	orch.QueryTimeout = cfg.QueryTimeout
	orch.DefaultTimeout = cfg.DefaultTimeout

	checker := health.NewChecker(cfg.QueryTimeout)
	checker.SetLogger(log)
	checker.Register("relay", health.MonitorConnectivityCheck(func(ctx context.Context) error {
		if !mon.Connected() {
			return xerrors.NewRelayUnavailable(nil, "monitor subscription not started")
		}
		return nil
	}))

	n := &Node{
		kp:           kp,
		orchestrator: orch,
		monitor:      mon,
		channelAdmin: channelAdmin,
		emitter:      emitter,
		checker:      checker,
	}

	// Track live peer/channel counts off the lifecycle event stream rather
	// than reaching into the monitor's store, so Health() doesn't need a
	// second counting API on internal/store (spec.md §6.5 event set).
	emitter.Listen(func(ev lifecycle.Event) {
		switch ev.Kind {
		case lifecycle.KindPeerRegistered:
			n.peerCount.Add(1)
		case lifecycle.KindPeerDeregistered:
			n.peerCount.Add(-1)
		case lifecycle.KindChannelOpened:
			n.channelCount.Add(1)
		}
	})

	return n, nil
}

// Listen registers a listener for the node's lifecycle event stream
// (spec.md §6.5: phase, peer-discovered, peer-registered, channel-opened,
// handshake-failed, announced, announce-failed, peer-deregistered, ready).
func (n *Node) Listen(l lifecycle.Listener) {
	n.emitter.Listen(l)
}

// Start runs bootstrap() exactly once, then starts the relay monitor so
// post-bootstrap peer-info events keep being processed (spec.md §4.7). A
// second call rejects with ConfigError and has no side effects.
func (n *Node) Start(ctx context.Context) (*StartResult, error) {
	if !n.started.CompareAndSwap(false, true) {
		return nil, xerrors.NewConfigError("already started")
	}

	results, err := n.orchestrator.Bootstrap(ctx)
	if err != nil {
		return nil, err
	}

	exclude := make(map[string]struct{}, len(results))
	for _, r := range results {
		exclude[r.Pubkey] = struct{}{}
	}
	n.monitor.Exclude = exclude

	if err := n.monitor.Start(ctx); err != nil {
		return nil, err
	}

	channelCount := 0
	for _, r := range results {
		if r.ChannelID != "" {
			channelCount++
		}
	}
	return &StartResult{BootstrapResults: results, PeerCount: len(results), ChannelCount: channelCount}, nil
}

// Stop unsubscribes the relay monitor. Safe to call even if Start was
// never called.
func (n *Node) Stop() error {
	return n.monitor.Stop()
}

// ChannelOpener exposes the connector's optional settlement-channel
// capability and whether the supplied connector handle implements it
// (spec.md §9 Design Notes "Optional capabilities": probed once at
// CreateNode via a type assertion, not re-probed per call).
func (n *Node) ChannelOpener() (connector.ChannelOpener, bool) {
	return n.channelAdmin, n.channelAdmin != nil
}

// Health reports the node's current phase, peer/channel counts, and the
// registered health checks (SPEC_FULL §11).
func (n *Node) Health(ctx context.Context) *health.NodeStatus {
	return n.checker.Report(ctx, func() (string, int, int) {
		return string(n.orchestrator.Phase()), int(n.peerCount.Load()), int(n.channelCount.Load())
	})
}

// PeerWith explicitly triggers registration and the SPSP handshake for a
// pubkey the host already knows about outside of discovery (spec.md §4.5
// "The host (or orchestrator during bootstrap()) calls peerWith(pubkey)").
func (n *Node) PeerWith(ctx context.Context, pubkey string) error {
	return n.monitor.PeerWith(ctx, pubkey, n.kp)
}

// DrainAnnounceSpool retries any peer-info announcements that failed to
// publish during Start (SPEC_FULL §11).
func (n *Node) DrainAnnounceSpool(ctx context.Context) error {
	return n.orchestrator.DrainAnnounceSpool(ctx)
}
