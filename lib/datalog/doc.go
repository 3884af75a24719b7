// Copyright 2026 The University of Oklahoma.
// SPDX-License-Identifier: Apache-2.0

// Package datalog writes the telemetry logs produced during a
// synchronized recording session.
//
// A [Recorder] owns one log at a time: a zstd-compressed CSV stream
// (`telemetry_<start>.csv.zst`) with rows of the form
//
//	elapsed_ms,series,value
//
// where elapsed_ms is measured from the session's shared start time, so
// logs recorded on both ends of the link line up row for row. A BLAKE3
// hasher observes the compressed byte stream as it is written; Stop
// emits the digest as a `.b3sum` sidecar for offline integrity checks
// after the files are copied off the rover.
//
// [SensorParser] decodes the rover's ASCII sensor records
// (`tag:value|tag:value`) into per-series rows and implements
// control.SensorSink, making it pluggable directly into the dispatcher.
package datalog
