// Package store defines the discovered-set/peered-set persistence
// interface and ships an in-memory implementation (SPEC_FULL §11, grounded
// on the teacher's pkg/storage/memory.Store). Only the memory
// implementation ships — the interface exists so a host process may later
// add durability without the monitor's semantics changing (spec.md
// Non-goal "storing long-lived agent state" still governs this library).
package store

import (
	"sync"
	"time"
)

// DiscoveredPeer is an observed-but-not-yet-peered candidate (spec.md §3).
type DiscoveredPeer struct {
	Pubkey       string
	PeerID       string
	IlpAddress   string
	BtpEndpoint  string
	DiscoveredAt time.Time
}

// PeeredRecord tracks a pubkey that has been registered with the connector,
// plus the channel and settlement details once a handshake supplied them.
// The last-seen created_at used for replaceable-event monotonicity is kept
// separately (LastSeenCreatedAt), not in this record.
type PeeredRecord struct {
	Pubkey            string
	PeerID            string
	ChannelID         string
	NegotiatedChain   string
	SettlementAddress string
}

// Store is the persistence seam for the monitor's discovered-set and
// peered-set. The memory implementation below is the only one this
// library ships.
type Store interface {
	UpsertDiscovered(p DiscoveredPeer)
	RemoveDiscovered(pubkey string)
	GetDiscovered(pubkey string) (DiscoveredPeer, bool)

	LastSeenCreatedAt(pubkey string) (int64, bool)
	SetLastSeenCreatedAt(pubkey string, createdAt int64)

	IsPeered(pubkey string) bool
	GetPeered(pubkey string) (PeeredRecord, bool)
	MarkPeered(r PeeredRecord)
	UnmarkPeered(pubkey string)
	PeeredCount() int
}

// MemoryStore is a sync.RWMutex-guarded in-memory Store, grounded on the
// teacher's pkg/storage/memory.Store pattern (per-concern maps, each under
// its own lock).
type MemoryStore struct {
	discoveredMu sync.RWMutex
	discovered   map[string]DiscoveredPeer

	lastSeenMu sync.RWMutex
	lastSeen   map[string]int64

	peeredMu sync.RWMutex
	peered   map[string]PeeredRecord
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		discovered: make(map[string]DiscoveredPeer),
		lastSeen:   make(map[string]int64),
		peered:     make(map[string]PeeredRecord),
	}
}

func (s *MemoryStore) UpsertDiscovered(p DiscoveredPeer) {
	s.discoveredMu.Lock()
	defer s.discoveredMu.Unlock()
	s.discovered[p.Pubkey] = p
}

func (s *MemoryStore) RemoveDiscovered(pubkey string) {
	s.discoveredMu.Lock()
	defer s.discoveredMu.Unlock()
	delete(s.discovered, pubkey)
}

func (s *MemoryStore) GetDiscovered(pubkey string) (DiscoveredPeer, bool) {
	s.discoveredMu.RLock()
	defer s.discoveredMu.RUnlock()
	p, ok := s.discovered[pubkey]
	return p, ok
}

func (s *MemoryStore) LastSeenCreatedAt(pubkey string) (int64, bool) {
	s.lastSeenMu.RLock()
	defer s.lastSeenMu.RUnlock()
	v, ok := s.lastSeen[pubkey]
	return v, ok
}

func (s *MemoryStore) SetLastSeenCreatedAt(pubkey string, createdAt int64) {
	s.lastSeenMu.Lock()
	defer s.lastSeenMu.Unlock()
	s.lastSeen[pubkey] = createdAt
}

func (s *MemoryStore) IsPeered(pubkey string) bool {
	s.peeredMu.RLock()
	defer s.peeredMu.RUnlock()
	_, ok := s.peered[pubkey]
	return ok
}

func (s *MemoryStore) GetPeered(pubkey string) (PeeredRecord, bool) {
	s.peeredMu.RLock()
	defer s.peeredMu.RUnlock()
	r, ok := s.peered[pubkey]
	return r, ok
}

func (s *MemoryStore) MarkPeered(r PeeredRecord) {
	s.peeredMu.Lock()
	defer s.peeredMu.Unlock()
	s.peered[r.Pubkey] = r
}

func (s *MemoryStore) UnmarkPeered(pubkey string) {
	s.peeredMu.Lock()
	defer s.peeredMu.Unlock()
	delete(s.peered, pubkey)
}

func (s *MemoryStore) PeeredCount() int {
	s.peeredMu.RLock()
	defer s.peeredMu.RUnlock()
	return len(s.peered)
}
