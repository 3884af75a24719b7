// Copyright 2026 The University of Oklahoma.
// SPDX-License-Identifier: Apache-2.0

// Package media drives the rover's GStreamer encode pipelines. Each
// media streamer process hosts at most one live pipeline at a time; a
// Supervisor owns that pipeline and reacts to stream and stop commands
// from the parent agent plus events from the pipeline's bus.
//
// The package splits along the pipeline boundary:
//
//   - profile.go: compact video profile strings shared by the ground
//     station, the agent, and configuration files
//   - launch.go: gst-launch descriptions built from profiles
//   - pipeline.go: the Pipeline abstraction and the parent Notifier
//   - gstreamer.go: the production GStreamer-backed factory
//   - supervisor.go: the single-goroutine command reactor
//
// The supervisor never retries on its own. A pipeline error or end of
// stream tears the pipeline down, reports the failure to the parent,
// and announces readiness for the next command; restarting the stream
// is the ground station operator's decision.
package media
