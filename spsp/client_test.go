package spsp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ALLiDoizCode/crosstown/connector"
	"github.com/ALLiDoizCode/crosstown/identity"
	"github.com/ALLiDoizCode/crosstown/internal/transport"
	"github.com/ALLiDoizCode/crosstown/nostr"
	"github.com/ALLiDoizCode/crosstown/xerrors"
)

// fakePayments decodes the toon-encoded request it receives and builds a
// matching signed response, standing in for the recipient's own SPSP
// payment-verification handler.
type fakePayments struct {
	recipient  *identity.KeyPair
	accept     bool
	code       string
	message    string
	settlement *nostr.SettlementInfo
}

func (f *fakePayments) SendIlpPacket(ctx context.Context, r connector.SendPacketRequest) (connector.SendPacketResult, error) {
	if !f.accept {
		return connector.SendPacketResult{Accepted: false, Code: f.code, Message: f.message}, nil
	}
	reqEv, err := transport.Decode(r.Data)
	if err != nil {
		return connector.SendPacketResult{}, err
	}
	respEv, err := nostr.BuildSpspResponse(reqEv, nostr.SpspResponsePlaintext{
		DestinationAccount: "g.recipient",
		SharedSecret:       "deadbeef",
		Settlement:         f.settlement,
	}, f.recipient)
	if err != nil {
		return connector.SendPacketResult{}, err
	}
	encoded, err := transport.Encode(respEv)
	if err != nil {
		return connector.SendPacketResult{}, err
	}
	return connector.SendPacketResult{Accepted: true, Data: encoded}, nil
}

func TestRequestInfoRoundtrip(t *testing.T) {
	requester, err := identity.Generate()
	require.NoError(t, err)
	recipient, err := identity.Generate()
	require.NoError(t, err)

	c := NewClient(requester, &fakePayments{recipient: recipient, accept: true}, "g.crosstown.requester")

	resp, err := c.RequestInfo(context.Background(), recipient.PublicKeyHex(), "g.crosstown.recipient", RequestOptions{Amount: 100})
	require.NoError(t, err)
	assert.Equal(t, "g.recipient", resp.DestinationAccount)
	assert.Equal(t, "deadbeef", resp.SharedSecret)
}

func TestRequestInfoCarriesSettlementInfo(t *testing.T) {
	requester, err := identity.Generate()
	require.NoError(t, err)
	recipient, err := identity.Generate()
	require.NoError(t, err)

	settlement := &nostr.SettlementInfo{NegotiatedChain: "xrpl", ChannelID: "chan-1"}
	c := NewClient(requester, &fakePayments{recipient: recipient, accept: true, settlement: settlement}, "g.crosstown.requester")

	resp, err := c.RequestInfo(context.Background(), recipient.PublicKeyHex(), "g.crosstown.recipient", RequestOptions{Amount: 100})
	require.NoError(t, err)
	require.NotNil(t, resp.Settlement)
	assert.Equal(t, "chan-1", resp.Settlement.ChannelID)
}

func TestRequestInfoReturnsSpspFailedOnRejection(t *testing.T) {
	requester, err := identity.Generate()
	require.NoError(t, err)
	recipient, err := identity.Generate()
	require.NoError(t, err)

	c := NewClient(requester, &fakePayments{recipient: recipient, accept: false, code: "F02", message: "no route"}, "g.crosstown.requester")

	_, err = c.RequestInfo(context.Background(), recipient.PublicKeyHex(), "g.crosstown.recipient", RequestOptions{Amount: 100})
	require.Error(t, err)
	failed, ok := err.(*xerrors.SpspFailed)
	require.True(t, ok)
	assert.Equal(t, "F02", failed.ReplyCode)
}

func TestPriceIsHalfOfAnnouncePrice(t *testing.T) {
	full := AnnouncePrice(200, 10)
	half := Price(200, 10)
	assert.Equal(t, uint64(2000), full)
	assert.Equal(t, uint64(1000), half)
}

func TestPriceRoundsUp(t *testing.T) {
	assert.Equal(t, uint64(1), Price(1, 1))
}
