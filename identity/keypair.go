// Package identity provides the secp256k1 identity keypair Crosstown nodes
// use to sign Nostr events and to derive ECDH shared secrets for the
// encrypted envelope. Nostr pubkeys are x-only secp256k1 points (BIP-340),
// so event signatures use Schnorr rather than ECDSA.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/schnorr"
)

// KeyPair wraps a secp256k1 private key and exposes the operations
// Crosstown needs: Nostr-compatible signing and ECDH key agreement.
type KeyPair struct {
	priv *secp256k1.PrivateKey
	pub  *secp256k1.PublicKey
}

// Generate creates a new random identity keypair.
func Generate() (*KeyPair, error) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("identity: generate key: %w", err)
	}
	return &KeyPair{priv: priv, pub: priv.PubKey()}, nil
}

// FromHex reconstructs a keypair from a 32-byte hex-encoded private scalar.
func FromHex(privHex string) (*KeyPair, error) {
	b, err := hex.DecodeString(privHex)
	if err != nil {
		return nil, fmt.Errorf("identity: decode private key: %w", err)
	}
	if len(b) != 32 {
		return nil, fmt.Errorf("identity: private key must be 32 bytes, got %d", len(b))
	}
	priv := secp256k1.PrivKeyFromBytes(b)
	return &KeyPair{priv: priv, pub: priv.PubKey()}, nil
}

// PublicKeyXOnly returns the 32-byte x-only public key Nostr uses as a
// pubkey (BIP-340 §"Public Key Generation").
func (kp *KeyPair) PublicKeyXOnly() [32]byte {
	var out [32]byte
	copy(out[:], schnorr.SerializePubKey(kp.pub))
	return out
}

// PublicKeyHex returns the lowercase hex encoding of the x-only public key.
func (kp *KeyPair) PublicKeyHex() string {
	x := kp.PublicKeyXOnly()
	return hex.EncodeToString(x[:])
}

// PrivateKey exposes the underlying scalar for callers (such as envelope)
// that need the raw key for ECDH.
func (kp *KeyPair) PrivateKey() *secp256k1.PrivateKey { return kp.priv }

// PublicKey exposes the underlying curve point.
func (kp *KeyPair) PublicKey() *secp256k1.PublicKey { return kp.pub }

// Sign computes the BIP-340 Schnorr signature over the SHA-256 digest of
// msg, matching NIP-01's event-id-is-the-message convention.
func (kp *KeyPair) Sign(msg []byte) ([64]byte, error) {
	digest := sha256.Sum256(msg)
	sig, err := schnorr.Sign(kp.priv, digest[:])
	if err != nil {
		return [64]byte{}, fmt.Errorf("identity: sign: %w", err)
	}
	var out [64]byte
	copy(out[:], sig.Serialize())
	return out, nil
}

// SignDigest signs a pre-computed 32-byte digest directly (used when the
// caller has already hashed the canonical event serialization).
func (kp *KeyPair) SignDigest(digest [32]byte) ([64]byte, error) {
	sig, err := schnorr.Sign(kp.priv, digest[:])
	if err != nil {
		return [64]byte{}, fmt.Errorf("identity: sign digest: %w", err)
	}
	var out [64]byte
	copy(out[:], sig.Serialize())
	return out, nil
}

// ParsePublicKeyHex parses a 32-byte hex-encoded x-only pubkey.
func ParsePublicKeyHex(pubHex string) (*secp256k1.PublicKey, error) {
	b, err := hex.DecodeString(pubHex)
	if err != nil {
		return nil, fmt.Errorf("identity: decode public key: %w", err)
	}
	if len(b) != 32 {
		return nil, fmt.Errorf("identity: public key must be 32 bytes, got %d", len(b))
	}
	pub, err := schnorr.ParsePubKey(b)
	if err != nil {
		return nil, fmt.Errorf("identity: parse public key: %w", err)
	}
	return pub, nil
}

// VerifyDigest verifies a BIP-340 signature over digest against the x-only
// public key encoded in pubHex.
func VerifyDigest(pubHex string, digest [32]byte, sig [64]byte) error {
	pub, err := ParsePublicKeyHex(pubHex)
	if err != nil {
		return err
	}
	parsed, err := schnorr.ParseSignature(sig[:])
	if err != nil {
		return fmt.Errorf("identity: parse signature: %w", err)
	}
	if !parsed.Verify(digest[:], pub) {
		return fmt.Errorf("identity: signature verification failed")
	}
	return nil
}

// ECDH derives a raw shared secret with a peer's x-only public key. The
// result is fed through HKDF by the envelope package; it must never be
// used directly as a symmetric key.
func (kp *KeyPair) ECDH(peerPubHex string) ([]byte, error) {
	peerPub, err := ParsePublicKeyHex(peerPubHex)
	if err != nil {
		return nil, err
	}
	return secp256k1.GenerateSharedSecret(kp.priv, peerPub), nil
}
