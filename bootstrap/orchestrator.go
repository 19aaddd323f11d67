// Package bootstrap implements the Bootstrap Orchestrator (spec.md §4.6):
// the multi-phase state machine that discovers, registers, and peers with
// candidates exactly once per node lifetime.
package bootstrap

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ALLiDoizCode/crosstown/identity"
	"github.com/ALLiDoizCode/crosstown/internal/logger"
	"github.com/ALLiDoizCode/crosstown/internal/metrics"
	"github.com/ALLiDoizCode/crosstown/internal/store"
	"github.com/ALLiDoizCode/crosstown/lifecycle"
	"github.com/ALLiDoizCode/crosstown/monitor"
	"github.com/ALLiDoizCode/crosstown/nostr"
	"github.com/ALLiDoizCode/crosstown/peers"
	"github.com/ALLiDoizCode/crosstown/relay"
	"github.com/ALLiDoizCode/crosstown/spsp"
	"github.com/ALLiDoizCode/crosstown/xerrors"
)

// Phase enumerates the bootstrap state machine's states (spec.md §3, §4.6).
type Phase string

const (
	PhaseDiscovering Phase = "Discovering"
	PhaseRegistering Phase = "Registering"
	PhaseHandshaking Phase = "Handshaking"
	PhaseAnnouncing  Phase = "Announcing"
	PhaseReady       Phase = "Ready"
	PhaseFailed      Phase = "Failed"
)

// PeeringResult is one successful-or-attempted peering (spec.md §3).
type PeeringResult struct {
	Pubkey            string
	PeerInfo          nostr.PeerInfo
	PeerID            string
	ChannelID         string
	NegotiatedChain   string
	SettlementAddress string
}

// Orchestrator drives bootstrap() exactly once per node lifetime
// (spec.md §4.6 "Idempotency / restart").
type Orchestrator struct {
	KeyPair       *identity.KeyPair
	Aggregator    *peers.Aggregator
	RelayDialer   func(url string) relay.Client
	AnnounceRelay relay.Client
	Spsp          *spsp.Client
	Monitor       *monitor.Monitor
	Emitter       *lifecycle.Emitter
	Log           logger.Logger

	OwnIlpAddress    string
	OwnPeerInfo      nostr.PeerInfo
	BasePricePerByte uint64
	QueryTimeout     time.Duration
	DefaultTimeout   time.Duration

	phase   atomic.Value // Phase
	started atomic.Bool
	spool   announceSpool
}

// New constructs an Orchestrator with sensible defaults for unexported
// bookkeeping fields. Exported collaborator fields must be set by the
// caller (the facade) before Bootstrap.
func New() *Orchestrator {
	o := &Orchestrator{
		Emitter:          &lifecycle.Emitter{},
		Log:              logger.Noop(),
		BasePricePerByte: 10,
		QueryTimeout:     5 * time.Second,
		DefaultTimeout:   30 * time.Second,
	}
	o.phase.Store(Phase(""))
	return o
}

// Phase returns the orchestrator's current phase.
func (o *Orchestrator) Phase() Phase {
	p, _ := o.phase.Load().(Phase)
	return p
}

func (o *Orchestrator) transition(to Phase) {
	from := o.Phase()
	o.phase.Store(to)
	o.Emitter.Emit(lifecycle.Event{Kind: lifecycle.KindPhase, Fields: map[string]any{
		"phase": to, "previousPhase": from,
	}})
	metrics.PhaseTransitions.WithLabelValues(string(to)).Inc()
}

// Bootstrap runs the full state machine once (spec.md §4.6). A second call
// on the same Orchestrator fails fatally with AlreadyStarted.
func (o *Orchestrator) Bootstrap(ctx context.Context) ([]PeeringResult, error) {
	if !o.started.CompareAndSwap(false, true) {
		return nil, xerrors.NewAlreadyStarted()
	}

	o.transition(PhaseDiscovering)
	candidates, err := o.Aggregator.Load(ctx)
	if err != nil {
		// Aggregator.Load itself never returns an error (registry failure is
		// absorbed internally, spec.md §4.3 "Failure policy"); this guards
		// against a future change to that contract rather than a reachable path.
		return nil, xerrors.NewBootstrapError(err, "load peer candidates")
	}
	if len(candidates) == 0 {
		o.transition(PhaseReady)
		o.emitReady(0, 0)
		return []PeeringResult{}, nil
	}

	o.transition(PhaseRegistering)
	results := make([]PeeringResult, 0, len(candidates))
	channelCount := 0
	for _, candidate := range candidates {
		result, hadChannel, ok := o.runCandidatePipeline(ctx, candidate)
		if !ok {
			continue
		}
		results = append(results, result)
		if hadChannel {
			channelCount++
		}
	}

	o.transition(PhaseHandshaking)
	o.transition(PhaseAnnouncing)
	o.announce(ctx)

	o.transition(PhaseReady)
	o.emitReady(len(results), channelCount)
	return results, nil
}

func (o *Orchestrator) emitReady(peerCount, channelCount int) {
	o.Emitter.Emit(lifecycle.Event{Kind: lifecycle.KindReady, Fields: map[string]any{
		"peerCount": peerCount, "channelCount": channelCount,
	}})
}

// runCandidatePipeline implements spec.md §4.6's per-candidate pipeline.
// Every step after the peer-info query is non-fatal: failures are logged,
// emitted, and the pipeline advances to the next candidate.
func (o *Orchestrator) runCandidatePipeline(ctx context.Context, candidate peers.Candidate) (PeeringResult, bool, bool) {
	info, ok := o.queryPeerInfo(ctx, candidate)
	if !ok {
		return PeeringResult{}, false, false
	}

	// Registration, the SPSP handshake, and channel re-registration are all
	// delegated to the monitor's PeerWith (spec.md §4.5 "or orchestrator
	// during bootstrap() calls peerWith()") so the two callers share one
	// implementation of spec.md §4.5 steps 2-5 and its event emissions.
	peerID := monitor.PeerID(candidate.Pubkey)
	metrics.CandidatesRegistered.Inc()
	o.Monitor.Store.UpsertDiscovered(store.DiscoveredPeer{
		Pubkey:      candidate.Pubkey,
		PeerID:      peerID,
		IlpAddress:  info.IlpAddress,
		BtpEndpoint: info.BtpEndpoint,
	})

	result := PeeringResult{Pubkey: candidate.Pubkey, PeerInfo: info, PeerID: peerID}
	if err := o.Monitor.PeerWith(ctx, candidate.Pubkey, o.KeyPair); err != nil {
		o.Log.Warn("addPeer failed, skipping candidate", logger.String("pubkey", candidate.Pubkey), logger.Error(err))
		metrics.BootstrapFailures.WithLabelValues("connector_error").Inc()
		return result, false, true
	}

	metrics.CandidatesPeered.Inc()
	if peered, ok := o.Monitor.Store.GetPeered(candidate.Pubkey); ok {
		result.NegotiatedChain = peered.NegotiatedChain
		result.SettlementAddress = peered.SettlementAddress
		if peered.ChannelID != "" {
			result.ChannelID = peered.ChannelID
			return result, true, true
		}
	}
	return result, false, true
}

// queryPeerInfo implements spec.md §4.6 step 1: open a relay connection to
// the candidate's relayUrl, subscribe for its latest peer-info event, and
// wait up to QueryTimeout. A missing event skips the candidate.
func (o *Orchestrator) queryPeerInfo(ctx context.Context, candidate peers.Candidate) (nostr.PeerInfo, bool) {
	client := o.RelayDialer(candidate.RelayURL)
	queryCtx, cancel := context.WithTimeout(ctx, o.QueryTimeout)
	defer cancel()

	sub, err := client.Subscribe(queryCtx, relay.Filter{
		Kinds:   []int{nostr.KindPeerInfo},
		Authors: []string{candidate.Pubkey},
		Limit:   1,
	})
	if err != nil {
		o.Log.Warn("peer-info query failed, skipping candidate", logger.String("pubkey", candidate.Pubkey), logger.Error(err))
		metrics.BootstrapFailures.WithLabelValues("relay_unavailable").Inc()
		return nostr.PeerInfo{}, false
	}
	defer sub.Unsubscribe()

	var best *nostr.Event
	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return finalizePeerInfo(best, candidate, o)
			}
			if best == nil || ev.CreatedAt > best.CreatedAt {
				best = ev
			}
		case <-sub.EOSE():
			return finalizePeerInfo(best, candidate, o)
		case <-queryCtx.Done():
			o.Log.Warn("peer-info query timed out, skipping candidate", logger.String("pubkey", candidate.Pubkey))
			return finalizePeerInfo(best, candidate, o)
		}
	}
}

func finalizePeerInfo(best *nostr.Event, candidate peers.Candidate, o *Orchestrator) (nostr.PeerInfo, bool) {
	if best == nil {
		return nostr.PeerInfo{}, false
	}
	info, err := nostr.ParsePeerInfo(best)
	if err != nil {
		o.Log.Warn("candidate peer-info invalid, skipping", logger.String("pubkey", candidate.Pubkey), logger.Error(err))
		return nostr.PeerInfo{}, false
	}
	return info, true
}

// announce publishes the node's own peer-info event (spec.md §4.6
// "Announce phase"). Failure is non-fatal: on transport or relay failure
// the event is spooled for a later DrainAnnounceSpool call (SPEC_FULL §11
// "Local event spool for failed announces").
func (o *Orchestrator) announce(ctx context.Context) {
	ev, err := nostr.BuildPeerInfoEvent(o.OwnPeerInfo, o.KeyPair)
	if err != nil {
		o.Log.Warn("failed to build own peer-info event", logger.Error(err))
		o.Emitter.Emit(lifecycle.Event{Kind: lifecycle.KindAnnounceFailed, Fields: map[string]any{"reason": err.Error()}})
		return
	}
	if err := o.AnnounceRelay.Publish(ctx, ev); err != nil {
		o.Log.Warn("announce publish failed, spooling for retry", logger.Error(err))
		o.spool.push(ev)
		o.Emitter.Emit(lifecycle.Event{Kind: lifecycle.KindAnnounceFailed, Fields: map[string]any{"reason": err.Error()}})
		return
	}
	o.Emitter.Emit(lifecycle.Event{Kind: lifecycle.KindAnnounced, Fields: map[string]any{"pubkey": ev.PubKey}})
}

// DrainAnnounceSpool flushes any peer-info events that failed to publish
// during Bootstrap, retrying each via AnnounceRelay (SPEC_FULL §11).
func (o *Orchestrator) DrainAnnounceSpool(ctx context.Context) error {
	events := o.spool.drain()
	var firstErr error
	for _, ev := range events {
		if err := o.AnnounceRelay.Publish(ctx, ev); err != nil {
			o.spool.push(ev)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		o.Emitter.Emit(lifecycle.Event{Kind: lifecycle.KindAnnounced, Fields: map[string]any{"pubkey": ev.PubKey}})
	}
	return firstErr
}

// announceSpool is an in-memory ring buffer of events that failed to
// publish, grounded on the teacher's other_examples sign→broadcast→spool
// publisher pattern (SPEC_FULL §11).
type announceSpool struct {
	mu     sync.Mutex
	events []*nostr.Event
}

const announceSpoolCap = 32

func (s *announceSpool) push(ev *nostr.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	if len(s.events) > announceSpoolCap {
		s.events = s.events[len(s.events)-announceSpoolCap:]
	}
}

func (s *announceSpool) drain() []*nostr.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.events
	s.events = nil
	return out
}
