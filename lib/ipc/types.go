// Copyright 2026 The University of Oklahoma.
// SPDX-License-Identifier: Apache-2.0

package ipc

import "github.com/doublejinitials/rover-research/lib/wire"

// Source identifies the child process a notification came from. The
// parent assigns the instance ID at spawn time and matches incoming
// notifications against it, so a notification from a stale child (or
// from a recycled PID) is recognized and discarded rather than
// misattributed to the current pipeline.
type Source struct {
	// PID is the child's operating-system process ID. Informational:
	// useful in logs, but never used for matching on its own because
	// the kernel reuses PIDs.
	PID int32 `cbor:"pid"`

	// Instance is the opaque identifier the parent generated for this
	// particular spawn of the child. Two launches of the same streamer
	// for the same camera carry different instance IDs.
	Instance string `cbor:"instance"`
}

// Notification kinds, child→parent.
const (
	// KindReady reports that the child is idle with no pipeline
	// running: sent once after startup and again after every teardown,
	// whether the teardown was requested or forced by a failure.
	KindReady = "ready"

	// KindStreaming reports that a pipeline reached playback.
	KindStreaming = "streaming"

	// KindError reports a pipeline failure. Message carries the
	// human-readable cause. Always followed by a KindReady once the
	// child has torn the failed pipeline down.
	KindError = "error"

	// KindLog forwards a child log line for the parent's journal. Tag
	// names the originating component.
	KindLog = "log"
)

// Notification is a CBOR-encoded child→parent status message, sent over
// the parent's notification socket.
type Notification struct {
	// Source identifies which child (and which spawn of it) is
	// speaking. The ChildNotifier stamps this on every message.
	Source Source `cbor:"source"`

	// Kind is one of the Kind* constants above.
	Kind string `cbor:"kind"`

	// Tag is the originating component for KindLog messages.
	Tag string `cbor:"tag,omitempty"`

	// Message carries the error text for KindError and the log line
	// for KindLog.
	Message string `cbor:"message,omitempty"`
}

// Command kinds, parent→child.
const (
	// CommandStream starts a single-camera video pipeline. Uses
	// Device, Address, Port, Profile, and HWAccel.
	CommandStream = "stream"

	// CommandStreamStereo starts a side-by-side two-camera pipeline.
	// Uses LeftDevice, RightDevice, Address, Port, Profile, and
	// HWAccel.
	CommandStreamStereo = "stream-stereo"

	// CommandStreamAudio starts an audio pipeline. Uses Device,
	// Address, Port, and Audio.
	CommandStreamAudio = "stream-audio"

	// CommandStop tears down whatever pipeline is running. A no-op
	// when the child is already idle.
	CommandStop = "stop"
)

// Command is a CBOR-encoded parent→child instruction, sent over the
// child's command socket. Kind selects the operation; the remaining
// fields are populated per the Command* constant documentation.
type Command struct {
	// Kind is one of the Command* constants above.
	Kind string `cbor:"kind"`

	// Device is the capture device path: a V4L2 node for video, an
	// ALSA identifier for audio.
	Device string `cbor:"device,omitempty"`

	// LeftDevice and RightDevice are the V4L2 nodes composited into a
	// stereo frame, left eye first.
	LeftDevice  string `cbor:"left_device,omitempty"`
	RightDevice string `cbor:"right_device,omitempty"`

	// Address and Port are the UDP destination for the encoded stream.
	Address string `cbor:"address,omitempty"`
	Port    int    `cbor:"port,omitempty"`

	// Profile is the compact video profile form, e.g.
	// "mjpeg_640x480_30_q50". The child parses it; a malformed profile
	// is rejected in the acknowledgement.
	Profile string `cbor:"profile,omitempty"`

	// HWAccel selects VA-API encoders instead of software ones.
	HWAccel bool `cbor:"hw_accel,omitempty"`

	// Audio carries the capture format for CommandStreamAudio.
	Audio *AudioParams `cbor:"audio,omitempty"`
}

// AudioParams is the wire form of an audio capture format.
type AudioParams struct {
	Encoding   uint32 `cbor:"encoding"`
	SampleRate uint32 `cbor:"sample_rate"`
	Channels   uint32 `cbor:"channels"`
}

// NewAudioParams converts an audio format to its wire form.
func NewAudioParams(format wire.AudioFormat) AudioParams {
	return AudioParams{
		Encoding:   uint32(format.Encoding),
		SampleRate: format.SampleRate,
		Channels:   format.Channels,
	}
}

// Format reconstructs the audio format the parameters describe.
func (p AudioParams) Format() wire.AudioFormat {
	return wire.AudioFormat{
		Encoding:   wire.AudioEncoding(p.Encoding),
		SampleRate: p.SampleRate,
		Channels:   p.Channels,
	}
}

// Response is a CBOR-encoded child→parent acknowledgement of a single
// Command. It reports acceptance only: a Response with OK set means the
// child understood the command and is acting on it, not that the
// pipeline reached playback. Outcome is reported asynchronously on the
// notification plane.
type Response struct {
	// OK indicates whether the command was accepted.
	OK bool `cbor:"ok"`

	// Error contains the rejection reason if OK is false.
	Error string `cbor:"error,omitempty"`
}
