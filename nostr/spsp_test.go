package nostr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ALLiDoizCode/crosstown/identity"
)

func TestBuildAndParseSpspRequest(t *testing.T) {
	requester, err := identity.Generate()
	require.NoError(t, err)
	recipient, err := identity.Generate()
	require.NoError(t, err)

	ev, requestID, err := BuildSpspRequest(recipient.PublicKeyHex(), requester, "g.crosstown.requester", nil)
	require.NoError(t, err)
	assert.Equal(t, KindSpspRequest, ev.Kind)
	require.NoError(t, ev.Verify())

	p, ok := ev.TagValue("p")
	require.True(t, ok)
	assert.Equal(t, recipient.PublicKeyHex(), p)

	plaintext, err := ParseSpspRequest(ev, recipient)
	require.NoError(t, err)
	assert.Equal(t, requestID, plaintext.RequestID)
	assert.Equal(t, "g.crosstown.requester", plaintext.Destination)
}

func TestParseSpspRequestRejectsWrongKind(t *testing.T) {
	kp, err := identity.Generate()
	require.NoError(t, err)
	ev, err := BuildPeerInfoEvent(PeerInfo{IlpAddress: "g.crosstown.alice"}, kp)
	require.NoError(t, err)

	_, err = ParseSpspRequest(ev, kp)
	assert.Error(t, err)
}

func TestBuildAndParseSpspResponse(t *testing.T) {
	requester, err := identity.Generate()
	require.NoError(t, err)
	recipient, err := identity.Generate()
	require.NoError(t, err)

	reqEv, _, err := BuildSpspRequest(recipient.PublicKeyHex(), requester, "g.crosstown.requester", nil)
	require.NoError(t, err)

	respPlaintext := SpspResponsePlaintext{
		DestinationAccount: "g.crosstown.recipient",
		SharedSecret:       "deadbeef",
	}
	respEv, err := BuildSpspResponse(reqEv, respPlaintext, recipient)
	require.NoError(t, err)
	require.NoError(t, respEv.Verify())

	parsed, err := ParseSpspResponse(respEv, requester, reqEv.ID)
	require.NoError(t, err)
	assert.Equal(t, respPlaintext, parsed)
}

func TestParseSpspResponseRejectsWrongRequestID(t *testing.T) {
	requester, err := identity.Generate()
	require.NoError(t, err)
	recipient, err := identity.Generate()
	require.NoError(t, err)

	reqEv, _, err := BuildSpspRequest(recipient.PublicKeyHex(), requester, "g.crosstown.requester", nil)
	require.NoError(t, err)

	respEv, err := BuildSpspResponse(reqEv, SpspResponsePlaintext{DestinationAccount: "g.crosstown.recipient"}, recipient)
	require.NoError(t, err)

	_, err = ParseSpspResponse(respEv, requester, "some-other-event-id")
	assert.Error(t, err)
}

func TestParseSpspResponseRejectsWrongRecipient(t *testing.T) {
	requester, err := identity.Generate()
	require.NoError(t, err)
	recipient, err := identity.Generate()
	require.NoError(t, err)
	other, err := identity.Generate()
	require.NoError(t, err)

	reqEv, _, err := BuildSpspRequest(recipient.PublicKeyHex(), requester, "g.crosstown.requester", nil)
	require.NoError(t, err)

	respEv, err := BuildSpspResponse(reqEv, SpspResponsePlaintext{DestinationAccount: "g.crosstown.recipient"}, recipient)
	require.NoError(t, err)

	_, err = ParseSpspResponse(respEv, other, reqEv.ID)
	assert.Error(t, err)
}
