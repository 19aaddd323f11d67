// Package envelope implements the versioned, authenticated symmetric
// encryption used for Nostr event content: an ECDH shared secret between
// the two identity keypairs, run through HKDF-SHA256, feeding AES-256-GCM.
// Grounded on the teacher's EncryptWithEd25519Peer/DecryptWithEd25519Peer
// shape, adapted from X25519 to secp256k1 ECDH (spec.md §4.2, SPEC_FULL §5.2).
package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/ALLiDoizCode/crosstown/identity"
	"github.com/ALLiDoizCode/crosstown/xerrors"
)

// version is the only wire-format version this implementation writes.
// Unknown versions on read fail closed (SPEC_FULL §5.2).
const version byte = 0x02

const hkdfInfo = "crosstown-envelope-v2"

// Encrypt derives the ECDH shared secret between senderSecret and
// recipientPubkey, runs it through HKDF-SHA256, and seals plaintext with
// AES-256-GCM. Returns a base64-encoded wire string.
func Encrypt(plaintext []byte, sender *identity.KeyPair, recipientPubkeyHex string) (string, error) {
	shared, err := sender.ECDH(recipientPubkeyHex)
	if err != nil {
		return "", xerrors.NewDecryptionFailed("ecdh: %v", err)
	}
	key, err := deriveKey(shared)
	if err != nil {
		return "", xerrors.NewDecryptionFailed("hkdf: %v", err)
	}
	aead, err := newAEAD(key)
	if err != nil {
		return "", xerrors.NewDecryptionFailed("aead init: %v", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", xerrors.NewDecryptionFailed("nonce: %v", err)
	}
	aad := []byte{version}
	ciphertext := aead.Seal(nil, nonce, plaintext, aad)

	wire := make([]byte, 0, 1+len(nonce)+len(ciphertext))
	wire = append(wire, version)
	wire = append(wire, nonce...)
	wire = append(wire, ciphertext...)
	return base64.StdEncoding.EncodeToString(wire), nil
}

// Decrypt reverses Encrypt. It fails closed (DecryptionFailed) on an
// unknown version, malformed wire data, or authentication-tag mismatch.
func Decrypt(ciphertextB64 string, recipient *identity.KeyPair, senderPubkeyHex string) ([]byte, error) {
	wire, err := base64.StdEncoding.DecodeString(ciphertextB64)
	if err != nil {
		return nil, xerrors.NewDecryptionFailed("base64 decode: %v", err)
	}
	if len(wire) < 1 {
		return nil, xerrors.NewDecryptionFailed("empty envelope")
	}
	if wire[0] != version {
		return nil, xerrors.NewDecryptionFailed("unsupported envelope version %d", wire[0])
	}

	shared, err := recipient.ECDH(senderPubkeyHex)
	if err != nil {
		return nil, xerrors.NewDecryptionFailed("ecdh: %v", err)
	}
	key, err := deriveKey(shared)
	if err != nil {
		return nil, xerrors.NewDecryptionFailed("hkdf: %v", err)
	}
	aead, err := newAEAD(key)
	if err != nil {
		return nil, xerrors.NewDecryptionFailed("aead init: %v", err)
	}
	nonceSize := aead.NonceSize()
	if len(wire) < 1+nonceSize {
		return nil, xerrors.NewDecryptionFailed("truncated envelope")
	}
	nonce := wire[1 : 1+nonceSize]
	ciphertext := wire[1+nonceSize:]
	aad := []byte{version}

	plaintext, err := aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, xerrors.NewDecryptionFailed("authentication failed")
	}
	return plaintext, nil
}

func deriveKey(shared []byte) ([]byte, error) {
	key := make([]byte, 32)
	r := hkdf.New(sha256.New, shared, nil, []byte(hkdfInfo))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("envelope: hkdf expand: %w", err)
	}
	return key, nil
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("envelope: aes cipher: %w", err)
	}
	return cipher.NewGCM(block)
}
