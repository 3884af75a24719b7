// Copyright 2026 The University of Oklahoma.
// SPDX-License-Identifier: Apache-2.0

// Package control implements the tagged protocol spoken over the main
// control channel: a stateless [Dispatcher] that routes inbound
// messages to collaborator interfaces, a [RecordingSession] running the
// timed two-phase handshake for synchronized data recording, and the
// outbound command surface for media streams.
//
// The package holds no transport, UI, or storage code of its own.
// Everything it touches arrives through constructor-injected
// collaborators ([UserInterface], [Recorder], [GPSSink], [SensorSink],
// [MessageSender]), which is what lets the ground station and the rover
// agent share the same session logic with different implementations
// behind the interfaces.
//
// The Dispatcher models the ground-station side of the link. The rover
// agent routes its own inbound tags (media commands have no meaning on
// the ground side) but reuses [RecordingSession], so the recording
// handshake is symmetric end to end.
package control
