package nostr

import (
	"encoding/json"

	"github.com/ALLiDoizCode/crosstown/identity"
	"github.com/ALLiDoizCode/crosstown/xerrors"
)

// PeerInfo is the plaintext content of a kind-10032 peer-info event
// (spec.md §3 "Peer-Info event").
type PeerInfo struct {
	IlpAddress  string `json:"ilpAddress"`
	BtpEndpoint string `json:"btpEndpoint"`
	AssetCode   string `json:"assetCode"`
	AssetScale  int    `json:"assetScale"`

	SupportedChains     []string          `json:"supportedChains,omitempty"`
	SettlementAddresses map[string]string `json:"settlementAddresses,omitempty"`
	PreferredTokens     map[string]string `json:"preferredTokens,omitempty"`
	TokenNetworks       map[string]string `json:"tokenNetworks,omitempty"`
}

// BuildPeerInfoEvent serializes info to JSON content, sets kind 10032,
// empty tags, the current timestamp, and computes id/sig (spec.md §4.1).
func BuildPeerInfoEvent(info PeerInfo, kp *identity.KeyPair) (*Event, error) {
	content, err := json.Marshal(info)
	if err != nil {
		return nil, xerrors.NewInvalidEvent("marshal peer info: %v", err)
	}
	ev := &Event{
		CreatedAt: nowUnix(),
		Kind:      KindPeerInfo,
		Tags:      [][]string{},
		Content:   string(content),
	}
	if err := ev.Sign(kp); err != nil {
		return nil, err
	}
	return ev, nil
}

// BuildDeregistrationEvent builds and signs an empty-content kind-10032 event,
// which the monitor interprets as a deregistration signal (spec.md §3).
func BuildDeregistrationEvent(kp *identity.KeyPair) (*Event, error) {
	ev := &Event{
		CreatedAt: nowUnix(),
		Kind:      KindPeerInfo,
		Tags:      [][]string{},
		Content:   "",
	}
	if err := ev.Sign(kp); err != nil {
		return nil, err
	}
	return ev, nil
}

// ParsePeerInfo validates kind and required fields and unmarshals content
// into a PeerInfo (spec.md §4.1). An empty or unparsable content is itself
// meaningful (a deregistration signal) and is reported distinctly via
// ErrDeregistration so callers don't have to special-case JSON errors.
var ErrDeregistration = xerrors.NewInvalidEvent("peer-info content is a deregistration signal")

func ParsePeerInfo(ev *Event) (PeerInfo, error) {
	if ev.Kind != KindPeerInfo {
		return PeerInfo{}, xerrors.NewInvalidEvent("expected kind %d, got %d", KindPeerInfo, ev.Kind)
	}
	if ev.Content == "" {
		return PeerInfo{}, ErrDeregistration
	}
	var info PeerInfo
	if err := json.Unmarshal([]byte(ev.Content), &info); err != nil {
		return PeerInfo{}, ErrDeregistration
	}
	if info.IlpAddress == "" {
		return PeerInfo{}, ErrDeregistration
	}
	return info, nil
}
