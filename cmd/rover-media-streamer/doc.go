// Copyright 2026 The University of Oklahoma.
// SPDX-License-Identifier: Apache-2.0

// rover-media-streamer is the per-stream child process spawned by
// rover-agent. Each instance hosts at most one GStreamer pipeline,
// capturing one camera (or a stereo camera pair, or the audio input)
// and sending the encoded stream to mission control over UDP.
//
// The agent commands the streamer over a unix socket
// (<runtime-dir>/streamer-<instance>.sock); the streamer reports
// readiness, playback, and failures back over the agent's notification
// socket (<runtime-dir>/notify.sock). Pipeline failures self-heal: the
// streamer tears down, reports, and waits for the next command. The
// three startup requirements are fatal instead, each with its own exit
// code (12 runtime directory, 13 command socket, 14 notification
// socket), because a streamer that cannot reach its parent has nothing
// useful to retry and no channel to report on.
//
// Process tree:
//
//	rover-agent → rover-media-streamer (one per camera, one for audio)
//
// SIGINT and SIGTERM tear down the pipeline and exit.
package main
