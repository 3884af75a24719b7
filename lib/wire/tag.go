// Copyright 2026 The University of Oklahoma.
// SPDX-License-Identifier: Apache-2.0

package wire

import "fmt"

// Tag identifies a message's type and therefore its field layout.
// Tags are stable wire constants; changing a value breaks protocol
// compatibility with deployed rovers.
type Tag uint32

const (
	// TagRoverStatusUpdate reports the rover's onboard controller
	// health. Fields: bool mbedOK.
	TagRoverStatusUpdate Tag = 1

	// TagMediaServerError reports a failed media stream. Fields:
	// int32 mediaID, string message.
	TagMediaServerError Tag = 2

	// TagGPSUpdate carries a position fix. Fields: GPSFix.
	TagGPSUpdate Tag = 3

	// TagDriveOverrideStart signals that a safety driver on the rover
	// has taken manual control. No fields.
	TagDriveOverrideStart Tag = 4

	// TagDriveOverrideEnd signals that manual control has been
	// released. No fields.
	TagDriveOverrideEnd Tag = 5

	// TagSensorUpdate carries raw sensor bytes, opaque to the
	// protocol layer. Fields: bytes raw.
	TagSensorUpdate Tag = 6

	// TagStartDataRecording opens the synchronized-recording
	// handshake. Fields: int64 timestampMs (unix milliseconds of the
	// initiating side's capture time).
	TagStartDataRecording Tag = 7

	// TagStopDataRecording ends recording on the receiving side.
	// Fire-and-forget, no fields.
	TagStopDataRecording Tag = 8

	// TagStopAllCameraStreams tells the rover to stop every video
	// stream. No fields.
	TagStopAllCameraStreams Tag = 9

	// TagRequestActivateAudioStream asks the rover to start its audio
	// stream. Fields: AudioFormat. Formats with Usable()==false must
	// never be sent.
	TagRequestActivateAudioStream Tag = 10

	// TagRequestDeactivateAudioStream asks the rover to stop its
	// audio stream. No fields.
	TagRequestDeactivateAudioStream Tag = 11
)

// String returns the tag's protocol name, or "unknown(n)" for values
// outside the defined set.
func (t Tag) String() string {
	switch t {
	case TagRoverStatusUpdate:
		return "rover-status-update"
	case TagMediaServerError:
		return "media-server-error"
	case TagGPSUpdate:
		return "gps-update"
	case TagDriveOverrideStart:
		return "drive-override-start"
	case TagDriveOverrideEnd:
		return "drive-override-end"
	case TagSensorUpdate:
		return "sensor-update"
	case TagStartDataRecording:
		return "start-data-recording"
	case TagStopDataRecording:
		return "stop-data-recording"
	case TagStopAllCameraStreams:
		return "stop-all-camera-streams"
	case TagRequestActivateAudioStream:
		return "request-activate-audio-stream"
	case TagRequestDeactivateAudioStream:
		return "request-deactivate-audio-stream"
	default:
		return fmt.Sprintf("unknown(%d)", uint32(t))
	}
}
