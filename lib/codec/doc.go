// Copyright 2026 The University of Oklahoma.
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the shared CBOR encoding configuration for
// the local IPC between the rover agent and its media-streamer
// children.
//
// Two serialization formats exist in this system with a clear
// boundary: the control channel to the ground station carries the
// fixed-order binary messages of lib/wire (a wire-compatibility
// constraint), while local parent↔child coordination uses CBOR, where
// schema evolution matters more than byte layout. This package pins
// the CBOR side to Core Deterministic Encoding (RFC 8949 §4.2):
// sorted map keys, smallest integer encoding, no indefinite-length
// items. The same command or notification always produces identical
// bytes, which keeps captures comparable across runs.
//
// For buffer-oriented operations:
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For stream-oriented operations (the IPC sockets):
//
//	encoder := codec.NewEncoder(conn)
//	decoder := codec.NewDecoder(conn)
//
// IPC types carry `cbor` struct tags; they are never serialized as
// JSON. Unknown fields are ignored on decode so that an older streamer
// binary tolerates commands from a newer agent.
package codec
