// Copyright 2026 The University of Oklahoma.
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"fmt"
	"time"

	"github.com/doublejinitials/rover-research/lib/wire"
)

// Severity classifies operator notifications.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// Phase is a recording session's state. The session is Idle until a
// start is requested, Waiting while the handshake is in flight, and
// Recording once the local recorder is open.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseWaiting
	PhaseRecording
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseWaiting:
		return "waiting"
	case PhaseRecording:
		return "recording"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// UserInterface is the operator-facing layer. The console provides a
// logging implementation; a GUI would provide its own. Implementations
// must tolerate calls from the channel-delivery goroutine.
type UserInterface interface {
	// Notify surfaces an operator notification.
	Notify(severity Severity, title, message string)

	// SetMbedStatus updates the onboard-controller status indicator.
	// Values used by the protocol: "Normal", "Error", "Manual Override".
	SetMbedStatus(status string)

	// SetRecordingState updates the recording indicator.
	SetRecordingState(phase Phase)

	// UpdateGPSLocation moves the position marker to a new fix.
	UpdateGPSLocation(fix wire.GPSFix)
}

// Recorder is the telemetry data log driven by a RecordingSession.
type Recorder interface {
	// Start opens a new log whose rows are timed relative to
	// startTime. Fails if a log is already open.
	Start(startTime time.Time) error

	// Stop closes the log. Stop without Start is a no-op.
	Stop()

	// Recording reports whether a log is currently open.
	Recording() bool
}

// GPSSink receives every decoded fix for logging, independent of the
// UI's marker updates.
type GPSSink interface {
	AddLocation(fix wire.GPSFix)
}

// SensorSink receives raw sensor payloads exactly as they arrived.
// Decoding the sensor byte format is the sink's concern, not the
// dispatcher's.
type SensorSink interface {
	HandleSensorData(data []byte)
}

// MessageSender sends one encoded message over the control channel.
// Implemented by channel.Channel.
type MessageSender interface {
	Send(message []byte) error
}
