// Package transport ships the default "toon" canonical transport codec
// (SPEC_FULL §5.3): a length-prefixed binary record used to carry social
// events as payment-packet payloads. This is one concrete implementation
// of the host-injectable encoder/decoder pair (spec.md §6.4 Design Notes
// "Polymorphism over transport formats") — hosts may supply their own.
package transport

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/ALLiDoizCode/crosstown/nostr"
)

// Encoder/Decoder match the signatures config.Config expects for the
// injected toonEncoder/toonDecoder callbacks.
type Encoder func(ev *nostr.Event) ([]byte, error)
type Decoder func(data []byte) (*nostr.Event, error)

// field order is fixed: id, pubkey, created_at, kind, tags, content, sig.
const (
	fieldID = iota
	fieldPubKey
	fieldCreatedAt
	fieldKind
	fieldTags
	fieldContent
	fieldSig
)

// Encode writes ev as varint(len)||tag||payload records in fixed field
// order; tags are varint(count) followed by each tag's own
// varint(count)||(varint(len)||bytes)* sequence.
func Encode(ev *nostr.Event) ([]byte, error) {
	var buf bytes.Buffer
	writeField(&buf, fieldID, []byte(ev.ID))
	writeField(&buf, fieldPubKey, []byte(ev.PubKey))
	writeField(&buf, fieldCreatedAt, encodeVarint(uint64(ev.CreatedAt)))
	writeField(&buf, fieldKind, encodeVarint(uint64(ev.Kind)))
	writeField(&buf, fieldTags, encodeTags(ev.Tags))
	writeField(&buf, fieldContent, []byte(ev.Content))
	writeField(&buf, fieldSig, []byte(ev.Sig))
	return buf.Bytes(), nil
}

// Decode reverses Encode. Fields may arrive in any order on the wire (the
// tag byte identifies each), though Encode always writes the fixed order.
func Decode(data []byte) (*nostr.Event, error) {
	ev := &nostr.Event{Tags: [][]string{}}
	r := bytes.NewReader(data)
	for r.Len() > 0 {
		tag, payload, err := readField(r)
		if err != nil {
			return nil, fmt.Errorf("transport: decode field: %w", err)
		}
		switch tag {
		case fieldID:
			ev.ID = string(payload)
		case fieldPubKey:
			ev.PubKey = string(payload)
		case fieldCreatedAt:
			v, _, err := decodeVarint(payload)
			if err != nil {
				return nil, fmt.Errorf("transport: created_at: %w", err)
			}
			ev.CreatedAt = int64(v)
		case fieldKind:
			v, _, err := decodeVarint(payload)
			if err != nil {
				return nil, fmt.Errorf("transport: kind: %w", err)
			}
			ev.Kind = int(v)
		case fieldTags:
			tags, err := decodeTags(payload)
			if err != nil {
				return nil, fmt.Errorf("transport: tags: %w", err)
			}
			ev.Tags = tags
		case fieldContent:
			ev.Content = string(payload)
		case fieldSig:
			ev.Sig = string(payload)
		default:
			return nil, fmt.Errorf("transport: unknown field tag %d", tag)
		}
	}
	return ev, nil
}

func writeField(buf *bytes.Buffer, tag byte, payload []byte) {
	buf.Write(encodeVarint(uint64(len(payload)) + 1))
	buf.WriteByte(tag)
	buf.Write(payload)
}

// readField reads varint(len) covering tag+payload, then the tag byte and
// the remaining payload bytes.
func readField(r *bytes.Reader) (byte, []byte, error) {
	length, err := binary.ReadUvarint(r)
	if err != nil {
		return 0, nil, err
	}
	if length == 0 {
		return 0, nil, fmt.Errorf("zero-length field record")
	}
	tag, err := r.ReadByte()
	if err != nil {
		return 0, nil, err
	}
	payload := make([]byte, length-1)
	if _, err := readFull(r, payload); err != nil {
		return 0, nil, err
	}
	return tag, payload, nil
}

func readFull(r *bytes.Reader, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		b, err := r.ReadByte()
		if err != nil {
			return n, err
		}
		buf[n] = b
		n++
	}
	return n, nil
}

func encodeTags(tags [][]string) []byte {
	var buf bytes.Buffer
	buf.Write(encodeVarint(uint64(len(tags))))
	for _, tag := range tags {
		buf.Write(encodeVarint(uint64(len(tag))))
		for _, s := range tag {
			b := []byte(s)
			buf.Write(encodeVarint(uint64(len(b))))
			buf.Write(b)
		}
	}
	return buf.Bytes()
}

func decodeTags(data []byte) ([][]string, error) {
	r := bytes.NewReader(data)
	count, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	tags := make([][]string, 0, count)
	for i := uint64(0); i < count; i++ {
		fieldCount, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, err
		}
		tag := make([]string, 0, fieldCount)
		for j := uint64(0); j < fieldCount; j++ {
			l, err := binary.ReadUvarint(r)
			if err != nil {
				return nil, err
			}
			b := make([]byte, l)
			if _, err := readFull(r, b); err != nil {
				return nil, err
			}
			tag = append(tag, string(b))
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

func encodeVarint(v uint64) []byte {
	buf := make([]byte, binary.MaxVarintLen64)
	n := binary.PutUvarint(buf, v)
	return buf[:n]
}

func decodeVarint(b []byte) (uint64, int, error) {
	v, n := binary.Uvarint(b)
	if n <= 0 {
		return 0, 0, fmt.Errorf("invalid varint")
	}
	return v, n, nil
}
