// Package spsp implements the SPSP-over-ILP Client (spec.md §4.4): a single
// round-trip encrypted handshake carried inside a paid ILP payment packet.
package spsp

import (
	"context"
	"encoding/base64"
	"math"
	"time"

	"github.com/ALLiDoizCode/crosstown/connector"
	"github.com/ALLiDoizCode/crosstown/identity"
	"github.com/ALLiDoizCode/crosstown/internal/logger"
	"github.com/ALLiDoizCode/crosstown/internal/metrics"
	"github.com/ALLiDoizCode/crosstown/internal/transport"
	"github.com/ALLiDoizCode/crosstown/nostr"
	"github.com/ALLiDoizCode/crosstown/xerrors"
)

// RequestOptions controls a single RequestInfo call (spec.md §4.4).
type RequestOptions struct {
	Amount            uint64
	Timeout           time.Duration
	OwnSettlementInfo *nostr.SettlementInfo
}

// Client executes SPSP-over-ILP handshakes on behalf of the local identity.
type Client struct {
	KeyPair       *identity.KeyPair
	Payments      connector.PaymentRuntime
	OwnIlpAddress string
	Encode        transport.Encoder
	Decode        transport.Decoder
	Log           logger.Logger
}

// NewClient wires the default toon transport codec and a Noop logger.
func NewClient(kp *identity.KeyPair, payments connector.PaymentRuntime, ownIlpAddress string) *Client {
	return &Client{
		KeyPair:       kp,
		Payments:      payments,
		OwnIlpAddress: ownIlpAddress,
		Encode:        transport.Encode,
		Decode:        transport.Decode,
		Log:           logger.Noop(),
	}
}

// RequestInfo performs the handshake algorithm of spec.md §4.4.
func (c *Client) RequestInfo(ctx context.Context, recipientPubkey, recipientIlpAddress string, opts RequestOptions) (*nostr.SpspResponsePlaintext, error) {
	metrics.SpspHandshakesInitiated.Inc()
	start := time.Now()
	resp, err := c.requestInfo(ctx, recipientPubkey, recipientIlpAddress, opts)
	metrics.SpspHandshakeDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.SpspHandshakesCompleted.WithLabelValues("failure").Inc()
		if failed, ok := err.(*xerrors.SpspFailed); ok {
			metrics.SpspHandshakesFailed.WithLabelValues(failed.ReplyCode).Inc()
		}
		return nil, err
	}
	metrics.SpspHandshakesCompleted.WithLabelValues("success").Inc()
	return resp, nil
}

func (c *Client) requestInfo(ctx context.Context, recipientPubkey, recipientIlpAddress string, opts RequestOptions) (*nostr.SpspResponsePlaintext, error) {
	// Step 1-2: build and encode the SPSP-Request event. BuildSpspRequest's
	// second return is the logical requestId carried in the plaintext, not
	// the event id the response's "e" tag echoes back (requestEvent.ID).
	requestEvent, _, err := nostr.BuildSpspRequest(recipientPubkey, c.KeyPair, c.OwnIlpAddress, opts.OwnSettlementInfo)
	if err != nil {
		return nil, err
	}
	transportBytes, err := c.Encode(requestEvent)
	if err != nil {
		return nil, xerrors.NewInvalidEvent("encode spsp request: %v", err)
	}

	// Step 3: send as a paid ILP payment.
	timeoutMs := int(opts.Timeout / time.Millisecond)
	result, err := c.Payments.SendIlpPacket(ctx, connector.SendPacketRequest{
		Destination: recipientIlpAddress,
		Amount:      opts.Amount,
		Data:        transportBytes,
		Timeout:     timeoutMs,
	})
	if err != nil {
		return nil, xerrors.NewConnectorError(err, "send spsp request packet")
	}

	// Step 6: reject/timeout.
	if !result.Accepted {
		return nil, xerrors.NewSpspFailed(result.Code, result.Message)
	}

	// Step 5: decode, verify tags, decrypt.
	replyTransportBytes := result.Data
	if replyTransportBytes == nil && result.Fulfillment != "" {
		replyTransportBytes, err = base64.StdEncoding.DecodeString(result.Fulfillment)
		if err != nil {
			return nil, xerrors.NewInvalidEvent("decode fulfillment: %v", err)
		}
	}
	responseEvent, err := c.Decode(replyTransportBytes)
	if err != nil {
		return nil, xerrors.NewInvalidEvent("decode spsp response: %v", err)
	}
	if err := responseEvent.Verify(); err != nil {
		return nil, err
	}
	plaintext, err := nostr.ParseSpspResponse(responseEvent, c.KeyPair, requestEvent.ID)
	if err != nil {
		return nil, err
	}
	return &plaintext, nil
}

// Price implements the default pricing rule (spec.md §4.4 "Pricing"):
// ceil(transport_byte_length * basePricePerByte / 2) — SPSP requests pay
// half of regular writes (spec.md §9 Design Notes, open question (a)).
func Price(transportByteLength int, basePricePerByte uint64) uint64 {
	full := float64(transportByteLength) * float64(basePricePerByte)
	return uint64(math.Ceil(full / 2))
}

// AnnouncePrice is the full-price rule used by the orchestrator's own
// peer-info announcement (spec.md §9 Design Notes, open question (a):
// the orchestrator's announcement is full-price, not half-price).
func AnnouncePrice(transportByteLength int, basePricePerByte uint64) uint64 {
	return uint64(transportByteLength) * basePricePerByte
}
