// Copyright 2026 The University of Oklahoma.
// SPDX-License-Identifier: Apache-2.0

// Package ipc carries the agent↔media-streamer control traffic over
// local unix sockets, CBOR-encoded via lib/codec. Both cmd/rover-agent
// and cmd/rover-media-streamer import this package so the wire types
// are defined once rather than mirrored.
//
// Two planes cross the process boundary:
//
//   - Notifications flow child→parent, fire and forget. A ChildNotifier
//     never blocks its caller and never reports delivery failure; the
//     parent's NotificationServer decodes one stream per child. Every
//     notification carries an explicit Source{PID, Instance} so one
//     parent can supervise several children without trusting
//     transport-level addressing.
//   - Commands flow parent→child. A CommandServer acknowledges each
//     command synchronously with Response{OK, Error}; acceptance only,
//     the outcome still arrives on the notification plane.
package ipc
