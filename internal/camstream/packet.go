// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TickBridge Contributors

// Package camstream streams rendered frames as JPEG over UDP.
//
// Each datagram is
//
//	"CAM" | uint32 LE payload length | chunk index | chunk count | payload
//
// Frames larger than one datagram are split into up to 255 chunks.
package camstream

import (
	"bytes"
	"encoding/binary"

	"github.com/samber/oops"
)

// Wire constants.
const (
	Magic      = "CAM"
	HeaderSize = len(Magic) + 4 + 2
	// MaxPacketSize stays below the 65507-byte UDP payload limit.
	MaxPacketSize = 60000
	// MaxChunkPayload reserves one spare header byte per datagram.
	MaxChunkPayload = MaxPacketSize - HeaderSize - 1
	MaxChunks       = 255
)

// Packet is one decoded datagram.
type Packet struct {
	Index   int
	Count   int
	Payload []byte
}

// EncodePacket builds one datagram carrying payload as chunk idx of count.
func EncodePacket(payload []byte, idx, count int) []byte {
	buf := make([]byte, HeaderSize+len(payload))
	copy(buf, Magic)
	binary.LittleEndian.PutUint32(buf[3:7], uint32(len(payload))) //nolint:gosec // bounded by MaxChunkPayload
	buf[7] = byte(idx)
	buf[8] = byte(count)
	copy(buf[HeaderSize:], payload)
	return buf
}

// Packetize splits a frame into datagrams.
func Packetize(frame []byte) ([][]byte, error) {
	if len(frame) == 0 {
		return nil, oops.Code(CodeBadFrame).Errorf("empty frame")
	}
	count := (len(frame) + MaxChunkPayload - 1) / MaxChunkPayload
	if count > MaxChunks {
		return nil, oops.Code(CodeBadFrame).
			With("size", len(frame)).
			With("chunks", count).
			Errorf("frame needs %d chunks, limit is %d", count, MaxChunks)
	}

	packets := make([][]byte, 0, count)
	for i := range count {
		start := i * MaxChunkPayload
		end := min(start+MaxChunkPayload, len(frame))
		packets = append(packets, EncodePacket(frame[start:end], i, count))
	}
	return packets, nil
}

// DecodePacket parses a datagram.
func DecodePacket(b []byte) (Packet, error) {
	if len(b) < HeaderSize || !bytes.Equal(b[:3], []byte(Magic)) {
		return Packet{}, oops.Code(CodeBadPacket).With("size", len(b)).Errorf("not a camera packet")
	}
	n := int(binary.LittleEndian.Uint32(b[3:7]))
	if n != len(b)-HeaderSize {
		return Packet{}, oops.Code(CodeBadPacket).
			With("declared", n).
			With("actual", len(b)-HeaderSize).
			Errorf("payload length mismatch")
	}
	p := Packet{Index: int(b[7]), Count: int(b[8]), Payload: b[HeaderSize:]}
	if p.Count == 0 || p.Index >= p.Count {
		return Packet{}, oops.Code(CodeBadPacket).
			With("index", p.Index).
			With("count", p.Count).
			Errorf("invalid chunk position")
	}
	return p, nil
}

// Reassembler rebuilds frames from packets arriving in order. A packet that
// does not continue the current frame discards it.
type Reassembler struct {
	// Dropped counts incomplete frames that were discarded.
	Dropped int

	count int
	next  int
	buf   bytes.Buffer
}

// Add feeds one packet. It returns the frame once its last chunk arrives.
func (r *Reassembler) Add(p Packet) ([]byte, bool) {
	if p.Index == 0 {
		if r.next != 0 {
			r.Dropped++
		}
		r.reset()
		r.count = p.Count
	} else if p.Index != r.next || p.Count != r.count {
		if r.next != 0 {
			r.Dropped++
		}
		r.reset()
		return nil, false
	}

	r.buf.Write(p.Payload)
	r.next++
	if r.next < r.count {
		return nil, false
	}

	frame := bytes.Clone(r.buf.Bytes())
	r.reset()
	return frame, true
}

func (r *Reassembler) reset() {
	r.count = 0
	r.next = 0
	r.buf.Reset()
}
