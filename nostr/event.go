// Package nostr implements the social-event codec: building, signing, and
// parsing the peer-info and SPSP request/response events that carry
// Crosstown's peering protocol over a Nostr relay.
package nostr

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ALLiDoizCode/crosstown/identity"
	"github.com/ALLiDoizCode/crosstown/xerrors"
)

// Event kinds relevant to peering (spec.md §3).
const (
	KindPeerInfo    = 10032
	KindSpspRequest = 23194
	KindSpspResponse = 23195
)

// Event is an immutable signed social event (spec.md §3 "Social event").
type Event struct {
	ID        string     `json:"id"`
	PubKey    string     `json:"pubkey"`
	CreatedAt int64      `json:"created_at"`
	Kind      int        `json:"kind"`
	Tags      [][]string `json:"tags"`
	Content   string     `json:"content"`
	Sig       string     `json:"sig"`
}

// serializationArray is the canonical NIP-01 structure that id is the hash
// of: [0, pubkey, created_at, kind, tags, content].
func (e *Event) serializationArray() ([]byte, error) {
	arr := []interface{}{0, e.PubKey, e.CreatedAt, e.Kind, e.Tags, e.Content}
	b, err := json.Marshal(arr)
	if err != nil {
		return nil, fmt.Errorf("nostr: serialize event: %w", err)
	}
	return b, nil
}

// computeID returns the hex sha256 digest over the canonical serialization.
func (e *Event) computeID() (string, [32]byte, error) {
	raw, err := e.serializationArray()
	if err != nil {
		return "", [32]byte{}, err
	}
	digest := sha256.Sum256(raw)
	return hex.EncodeToString(digest[:]), digest, nil
}

// Sign computes id and sig in place using kp.
func (e *Event) Sign(kp *identity.KeyPair) error {
	e.PubKey = kp.PublicKeyHex()
	id, digest, err := e.computeID()
	if err != nil {
		return err
	}
	sig, err := kp.SignDigest(digest)
	if err != nil {
		return xerrors.NewSignatureInvalid("sign event: %v", err)
	}
	e.ID = id
	e.Sig = hex.EncodeToString(sig[:])
	return nil
}

// Verify recomputes id and checks the Schnorr signature over it.
func (e *Event) Verify() error {
	id, digest, err := e.computeID()
	if err != nil {
		return err
	}
	if id != e.ID {
		return xerrors.NewInvalidEvent("event id mismatch: got %s want %s", e.ID, id)
	}
	sigBytes, err := hex.DecodeString(e.Sig)
	if err != nil || len(sigBytes) != 64 {
		return xerrors.NewSignatureInvalid("malformed signature")
	}
	var sig [64]byte
	copy(sig[:], sigBytes)
	if err := identity.VerifyDigest(e.PubKey, digest, sig); err != nil {
		return xerrors.NewSignatureInvalid("%v", err)
	}
	return nil
}

// TagValue returns the first value of the first tag whose first element
// (the tag name) equals name, and whether it was found.
func (e *Event) TagValue(name string) (string, bool) {
	for _, tag := range e.Tags {
		if len(tag) >= 2 && tag[0] == name {
			return tag[1], true
		}
	}
	return "", false
}

func nowUnix() int64 { return time.Now().Unix() }
