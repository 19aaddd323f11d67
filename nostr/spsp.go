package nostr

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/ALLiDoizCode/crosstown/envelope"
	"github.com/ALLiDoizCode/crosstown/identity"
	"github.com/ALLiDoizCode/crosstown/xerrors"
)

// SettlementInfo is the optional settlement-negotiation block carried by
// both SPSP request and response plaintexts (spec.md §3).
type SettlementInfo struct {
	NegotiatedChain     string `json:"negotiatedChain,omitempty"`
	SettlementAddress   string `json:"settlementAddress,omitempty"`
	TokenAddress        string `json:"tokenAddress,omitempty"`
	TokenNetworkAddress string `json:"tokenNetworkAddress,omitempty"`
	ChannelID           string `json:"channelId,omitempty"`
}

// SpspRequestPlaintext is the decrypted content of a kind-23194 event.
type SpspRequestPlaintext struct {
	RequestID   string          `json:"requestId"`
	Destination string          `json:"destination"`
	Settlement  *SettlementInfo `json:"settlement,omitempty"`
}

// SpspResponsePlaintext is the decrypted content of a kind-23195 event.
type SpspResponsePlaintext struct {
	DestinationAccount string          `json:"destinationAccount"`
	SharedSecret        string          `json:"sharedSecret"`
	Settlement          *SettlementInfo `json:"settlement,omitempty"`
}

// BuildSpspRequest constructs an SPSP-Request event addressed to
// recipientPubkey, generating a fresh request id (spec.md §4.1).
func BuildSpspRequest(recipientPubkey string, kp *identity.KeyPair, ownIlpAddress string, settlement *SettlementInfo) (*Event, string, error) {
	requestID := uuid.NewString()
	plaintext := SpspRequestPlaintext{
		RequestID:   requestID,
		Destination: ownIlpAddress,
		Settlement:  settlement,
	}
	raw, err := json.Marshal(plaintext)
	if err != nil {
		return nil, "", xerrors.NewInvalidEvent("marshal spsp request: %v", err)
	}
	ciphertext, err := envelope.Encrypt(raw, kp, recipientPubkey)
	if err != nil {
		return nil, "", err
	}
	ev := &Event{
		CreatedAt: nowUnix(),
		Kind:      KindSpspRequest,
		Tags:      [][]string{{"p", recipientPubkey}},
		Content:   ciphertext,
	}
	if err := ev.Sign(kp); err != nil {
		return nil, "", err
	}
	return ev, requestID, nil
}

// ParseSpspRequest verifies the event and decrypts the plaintext, for use
// by the remote side's payment-verification server.
func ParseSpspRequest(ev *Event, kp *identity.KeyPair) (SpspRequestPlaintext, error) {
	if ev.Kind != KindSpspRequest {
		return SpspRequestPlaintext{}, xerrors.NewInvalidEvent("expected kind %d, got %d", KindSpspRequest, ev.Kind)
	}
	raw, err := envelope.Decrypt(ev.Content, kp, ev.PubKey)
	if err != nil {
		return SpspRequestPlaintext{}, err
	}
	var plaintext SpspRequestPlaintext
	if err := json.Unmarshal(raw, &plaintext); err != nil {
		return SpspRequestPlaintext{}, xerrors.NewInvalidEvent("unmarshal spsp request: %v", err)
	}
	return plaintext, nil
}

// BuildSpspResponse constructs a kind-23195 event replying to request,
// tagged to the requester and to the request event id (spec.md §4.1).
func BuildSpspResponse(request *Event, responsePlaintext SpspResponsePlaintext, kp *identity.KeyPair) (*Event, error) {
	raw, err := json.Marshal(responsePlaintext)
	if err != nil {
		return nil, xerrors.NewInvalidEvent("marshal spsp response: %v", err)
	}
	ciphertext, err := envelope.Encrypt(raw, kp, request.PubKey)
	if err != nil {
		return nil, err
	}
	ev := &Event{
		CreatedAt: nowUnix(),
		Kind:      KindSpspResponse,
		Tags:      [][]string{{"p", request.PubKey}, {"e", request.ID}},
		Content:   ciphertext,
	}
	if err := ev.Sign(kp); err != nil {
		return nil, err
	}
	return ev, nil
}

// ParseSpspResponse verifies the recipient p-tag matches the local pubkey
// and the e-tag matches requestEventID, then decrypts and parses the
// plaintext (spec.md §4.1, §4.4 step 5).
func ParseSpspResponse(ev *Event, kp *identity.KeyPair, requestEventID string) (SpspResponsePlaintext, error) {
	if ev.Kind != KindSpspResponse {
		return SpspResponsePlaintext{}, xerrors.NewInvalidEvent("expected kind %d, got %d", KindSpspResponse, ev.Kind)
	}
	p, ok := ev.TagValue("p")
	if !ok || p != kp.PublicKeyHex() {
		return SpspResponsePlaintext{}, xerrors.NewInvalidEvent("response p-tag does not match local pubkey")
	}
	e, ok := ev.TagValue("e")
	if !ok || e != requestEventID {
		return SpspResponsePlaintext{}, xerrors.NewInvalidEvent("response e-tag %q does not match request %q", e, requestEventID)
	}
	raw, err := envelope.Decrypt(ev.Content, kp, ev.PubKey)
	if err != nil {
		return SpspResponsePlaintext{}, err
	}
	var plaintext SpspResponsePlaintext
	if err := json.Unmarshal(raw, &plaintext); err != nil {
		return SpspResponsePlaintext{}, xerrors.NewInvalidEvent("unmarshal spsp response: %v", err)
	}
	return plaintext, nil
}
