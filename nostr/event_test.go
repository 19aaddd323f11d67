package nostr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ALLiDoizCode/crosstown/identity"
)

func TestEventSignAndVerify(t *testing.T) {
	kp, err := identity.Generate()
	require.NoError(t, err)

	ev := &Event{
		CreatedAt: 1700000000,
		Kind:      KindPeerInfo,
		Tags:      [][]string{},
		Content:   "hello",
	}
	require.NoError(t, ev.Sign(kp))

	assert.NotEmpty(t, ev.ID)
	assert.NotEmpty(t, ev.Sig)
	assert.Equal(t, kp.PublicKeyHex(), ev.PubKey)
	assert.NoError(t, ev.Verify())
}

func TestEventVerifyRejectsTamperedContent(t *testing.T) {
	kp, err := identity.Generate()
	require.NoError(t, err)

	ev := &Event{CreatedAt: 1700000000, Kind: KindPeerInfo, Tags: [][]string{}, Content: "hello"}
	require.NoError(t, ev.Sign(kp))

	ev.Content = "tampered"
	assert.Error(t, ev.Verify())
}

func TestEventVerifyRejectsTamperedSig(t *testing.T) {
	kp, err := identity.Generate()
	require.NoError(t, err)

	ev := &Event{CreatedAt: 1700000000, Kind: KindPeerInfo, Tags: [][]string{}, Content: "hello"}
	require.NoError(t, ev.Sign(kp))

	ev.Sig = ev.Sig[:len(ev.Sig)-2] + "00"
	assert.Error(t, ev.Verify())
}

func TestEventTagValue(t *testing.T) {
	ev := &Event{Tags: [][]string{{"p", "abc123"}, {"e", "def456"}}}

	v, ok := ev.TagValue("p")
	assert.True(t, ok)
	assert.Equal(t, "abc123", v)

	_, ok = ev.TagValue("missing")
	assert.False(t, ok)
}
