// Copyright 2026 The University of Oklahoma.
// SPDX-License-Identifier: Apache-2.0

package channel

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Frame kind constants for the channel stream. Each frame is a 5-byte
// header (1 byte kind + 4 byte big-endian payload length) followed by
// the payload.
const (
	// frameData carries one application message. Bidirectional; the
	// payload is opaque bytes passed through unmodified.
	frameData byte = 0x01

	// framePing carries the sender's send time as 8 bytes of
	// big-endian nanoseconds. The receiver echoes the payload back
	// unchanged in a pong frame.
	framePing byte = 0x02

	// framePong is the echo of a ping. The original sender subtracts
	// the carried send time from its current time to measure the
	// round trip.
	framePong byte = 0x03
)

// frameHeaderLength is the fixed size of a frame header: 1 byte kind
// + 4 bytes payload length.
const frameHeaderLength = 5

// maxPayloadLength is the maximum allowed frame payload. Control
// messages are tens of bytes; anything approaching 1 MiB means a
// corrupted or hostile stream, and the connection is dropped.
const maxPayloadLength = 1 << 20

// writeFrame writes one framed message to w. The frame format is:
// [1 byte kind] [4 bytes payload length, big-endian uint32] [payload].
func writeFrame(w io.Writer, kind byte, payload []byte) error {
	var header [frameHeaderLength]byte
	header[0] = kind
	binary.BigEndian.PutUint32(header[1:5], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("write frame header: %w", err)
	}
	if len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			return fmt.Errorf("write frame payload: %w", err)
		}
	}
	return nil
}

// readFrame reads one framed message from r. Returns an error if the
// stream is malformed or the payload exceeds maxPayloadLength; framing
// errors are unrecoverable because the stream position is lost, so
// callers must drop the connection.
func readFrame(r io.Reader) (kind byte, payload []byte, err error) {
	var header [frameHeaderLength]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return 0, nil, fmt.Errorf("read frame header: %w", err)
	}
	kind = header[0]
	payloadLength := binary.BigEndian.Uint32(header[1:5])
	if payloadLength > maxPayloadLength {
		return 0, nil, fmt.Errorf("frame payload length %d exceeds maximum %d", payloadLength, maxPayloadLength)
	}
	payload = make([]byte, payloadLength)
	if payloadLength > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return 0, nil, fmt.Errorf("read frame payload: %w", err)
		}
	}
	return kind, payload, nil
}
