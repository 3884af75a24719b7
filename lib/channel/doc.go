// Copyright 2026 The University of Oklahoma.
// SPDX-License-Identifier: Apache-2.0

// Package channel provides the ordered, reliable, message-oriented TCP
// connection that carries rover control traffic. A Channel runs in one
// of two roles: the ground station dials as a client and re-dials with
// exponential backoff whenever the link drops; the rover listens as a
// server and serves one peer at a time, replacing the connected peer
// when a new connection arrives.
//
// The package is organized around the connection data flow:
//
//   - frame.go: wire format for the stream (framed data/ping/pong messages)
//   - channel.go: roles, connection lifecycle, heartbeats, delivery
//
// Both sides heartbeat: every interval each peer sends a ping carrying
// its send time and echoes inbound pings back as pongs, giving a live
// round-trip-time measurement and a liveness check. A peer silent for
// three intervals is presumed dead and the connection is dropped.
//
// Inbound payloads are delivered in receive order on Messages().
// SetSimulatedDelay inserts a fixed hold between receipt and delivery
// without reordering, which the drive channel uses to model
// long-latency teleoperation during research sessions.
package channel
