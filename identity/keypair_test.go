package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyPair(t *testing.T) {
	t.Run("GenerateAndRoundtripHex", func(t *testing.T) {
		kp, err := Generate()
		require.NoError(t, err)

		hexKey := hex.EncodeToString(kp.PrivateKey().Serialize())
		reconstructed, err := FromHex(hexKey)
		require.NoError(t, err)
		assert.Equal(t, kp.PublicKeyHex(), reconstructed.PublicKeyHex())
	})

	t.Run("FromHexRejectsWrongLength", func(t *testing.T) {
		_, err := FromHex("abcd")
		assert.Error(t, err)
	})

	t.Run("FromHexRejectsInvalidHex", func(t *testing.T) {
		_, err := FromHex("not-hex-at-all-zz")
		assert.Error(t, err)
	})

	t.Run("PublicKeyHexIs32Bytes", func(t *testing.T) {
		kp, err := Generate()
		require.NoError(t, err)
		raw, err := hex.DecodeString(kp.PublicKeyHex())
		require.NoError(t, err)
		assert.Len(t, raw, 32)
	})

	t.Run("MultipleKeyPairsHaveDifferentPubkeys", func(t *testing.T) {
		kp1, err := Generate()
		require.NoError(t, err)
		kp2, err := Generate()
		require.NoError(t, err)
		assert.NotEqual(t, kp1.PublicKeyHex(), kp2.PublicKeyHex())
	})
}

func TestSignAndVerify(t *testing.T) {
	kp, err := Generate()
	require.NoError(t, err)

	t.Run("ValidSignatureVerifies", func(t *testing.T) {
		msg := []byte("peer-info event id")
		sig, err := kp.Sign(msg)
		require.NoError(t, err)

		digest := sha256.Sum256(msg)
		err = VerifyDigest(kp.PublicKeyHex(), digest, sig)
		assert.NoError(t, err)
	})

	t.Run("WrongMessageFailsVerification", func(t *testing.T) {
		sig, err := kp.Sign([]byte("original"))
		require.NoError(t, err)

		digest := sha256.Sum256([]byte("tampered"))
		err = VerifyDigest(kp.PublicKeyHex(), digest, sig)
		assert.Error(t, err)
	})

	t.Run("WrongPubkeyFailsVerification", func(t *testing.T) {
		msg := []byte("peer-info event id")
		sig, err := kp.Sign(msg)
		require.NoError(t, err)

		other, err := Generate()
		require.NoError(t, err)

		digest := sha256.Sum256(msg)
		err = VerifyDigest(other.PublicKeyHex(), digest, sig)
		assert.Error(t, err)
	})

	t.Run("SignDigestMatchesSign", func(t *testing.T) {
		msg := []byte("same digest either way")
		digest := sha256.Sum256(msg)

		viaSign, err := kp.Sign(msg)
		require.NoError(t, err)
		viaSignDigest, err := kp.SignDigest(digest)
		require.NoError(t, err)

		assert.NoError(t, VerifyDigest(kp.PublicKeyHex(), digest, viaSign))
		assert.NoError(t, VerifyDigest(kp.PublicKeyHex(), digest, viaSignDigest))
	})
}

func TestECDHAgreement(t *testing.T) {
	alice, err := Generate()
	require.NoError(t, err)
	bob, err := Generate()
	require.NoError(t, err)

	secretAB, err := alice.ECDH(bob.PublicKeyHex())
	require.NoError(t, err)
	secretBA, err := bob.ECDH(alice.PublicKeyHex())
	require.NoError(t, err)

	assert.Equal(t, secretAB, secretBA)
	assert.NotEmpty(t, secretAB)
}

func TestParsePublicKeyHex(t *testing.T) {
	t.Run("RejectsInvalidHex", func(t *testing.T) {
		_, err := ParsePublicKeyHex("zz")
		assert.Error(t, err)
	})

	t.Run("RejectsWrongLength", func(t *testing.T) {
		_, err := ParsePublicKeyHex("abcd")
		assert.Error(t, err)
	})

	t.Run("AcceptsValidPubkey", func(t *testing.T) {
		kp, err := Generate()
		require.NoError(t, err)
		pub, err := ParsePublicKeyHex(kp.PublicKeyHex())
		require.NoError(t, err)
		assert.NotNil(t, pub)
	})
}
