// Copyright 2026 The University of Oklahoma.
// SPDX-License-Identifier: Apache-2.0

// Package wire defines the control-channel message format shared by
// the ground station and the rover.
//
// Every message is a 4-byte big-endian tag followed by the tag's
// fields in a fixed declared order. There is no schema on the wire,
// so both sides must read exactly the fields the tag declares, in
// order. Field encodings: bool is one byte, 32- and 64-bit integers
// and float64 are big-endian, strings and byte arrays are uint32
// length prefixed. Structured values (a GPS fix, an audio format)
// encode as their fields in declaration order.
//
// The format is deterministic: encoding the same values always yields
// the same bytes, and a decode followed by a re-encode reproduces the
// original buffer bit for bit. Truncated or malformed buffers surface
// as *ProtocolError from the field readers; an unknown tag is a valid
// wire value (the tag decodes fine) whose dispatch is the receiver's
// problem, not a codec failure.
package wire
