package envelope

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ALLiDoizCode/crosstown/identity"
)

func mustKeyPair(t *testing.T) *identity.KeyPair {
	t.Helper()
	kp, err := identity.Generate()
	require.NoError(t, err)
	return kp
}

func TestEncryptDecryptRoundtrip(t *testing.T) {
	sender := mustKeyPair(t)
	recipient := mustKeyPair(t)
	plaintext := []byte(`{"ilpAddress":"g.crosstown.alice","btpEndpoint":"wss://alice.example/btp"}`)

	ciphertext, err := Encrypt(plaintext, sender, recipient.PublicKeyHex())
	require.NoError(t, err)
	assert.NotEmpty(t, ciphertext)

	decrypted, err := Decrypt(ciphertext, recipient, sender.PublicKeyHex())
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestEncryptEmptyPlaintextRoundtrips(t *testing.T) {
	sender := mustKeyPair(t)
	recipient := mustKeyPair(t)

	ciphertext, err := Encrypt(nil, sender, recipient.PublicKeyHex())
	require.NoError(t, err)

	decrypted, err := Decrypt(ciphertext, recipient, sender.PublicKeyHex())
	require.NoError(t, err)
	assert.Empty(t, decrypted)
}

func TestDecryptWithWrongRecipientFails(t *testing.T) {
	sender := mustKeyPair(t)
	recipient := mustKeyPair(t)
	wrongRecipient := mustKeyPair(t)

	ciphertext, err := Encrypt([]byte("secret"), sender, recipient.PublicKeyHex())
	require.NoError(t, err)

	_, err = Decrypt(ciphertext, wrongRecipient, sender.PublicKeyHex())
	assert.Error(t, err)
}

func TestDecryptWithWrongSenderFails(t *testing.T) {
	sender := mustKeyPair(t)
	recipient := mustKeyPair(t)
	otherSender := mustKeyPair(t)

	ciphertext, err := Encrypt([]byte("secret"), sender, recipient.PublicKeyHex())
	require.NoError(t, err)

	_, err = Decrypt(ciphertext, recipient, otherSender.PublicKeyHex())
	assert.Error(t, err)
}

func TestDecryptRejectsTamperedCiphertext(t *testing.T) {
	sender := mustKeyPair(t)
	recipient := mustKeyPair(t)

	ciphertext, err := Encrypt([]byte("secret"), sender, recipient.PublicKeyHex())
	require.NoError(t, err)

	tampered := []byte(ciphertext)
	tampered[len(tampered)-1] ^= 1
	_, err = Decrypt(string(tampered), recipient, sender.PublicKeyHex())
	assert.Error(t, err)
}

func TestDecryptRejectsUnknownVersion(t *testing.T) {
	sender := mustKeyPair(t)
	recipient := mustKeyPair(t)

	ciphertext, err := Encrypt([]byte("secret"), sender, recipient.PublicKeyHex())
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	require.NoError(t, err)
	raw[0] = 0x99
	_, err = Decrypt(base64.StdEncoding.EncodeToString(raw), recipient, sender.PublicKeyHex())
	assert.Error(t, err)
}

func TestDecryptRejectsMalformedBase64(t *testing.T) {
	recipient := mustKeyPair(t)
	sender := mustKeyPair(t)
	_, err := Decrypt("not valid base64!!", recipient, sender.PublicKeyHex())
	assert.Error(t, err)
}

func TestDecryptRejectsEmptyEnvelope(t *testing.T) {
	recipient := mustKeyPair(t)
	sender := mustKeyPair(t)
	_, err := Decrypt("", recipient, sender.PublicKeyHex())
	assert.Error(t, err)
}
