// Copyright 2026 The University of Oklahoma.
// SPDX-License-Identifier: Apache-2.0

// rover-agent is the onboard control process of the research rover. It
// owns the rover's side of both radio channels, spawns one
// rover-media-streamer child per configured camera plus one for audio,
// and keeps the rover's copy of the synchronized data log.
//
// The main channel carries tagged control messages (recording
// handshakes, stream requests, telemetry going the other way); the
// drive channel carries opaque drive frames and nothing else, so a
// flood of joystick input can never delay a control message. Both are
// served here and dialed by mission control.
//
// Streamer children are commanded over per-child unix sockets in
// media.runtime_dir and report back over a shared notification socket.
// A child that dies before its first stream, or that reports a
// pipeline error, is surfaced to mission control as a media-server-error
// on the main channel. Children are never restarted automatically.
//
// With --simulate-telemetry the agent publishes a drifting GPS fix and
// synthetic wheel and IMU readings, standing in for the sensor
// hardware during bench testing.
//
// SIGINT and SIGTERM stop any active recording, terminate the streamer
// children, and exit.
package main
