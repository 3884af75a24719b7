// Copyright 2026 The University of Oklahoma.
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"errors"
	"log/slog"

	"github.com/doublejinitials/rover-research/lib/wire"
)

// ErrUnusableFormat is returned by SendActivateAudioStream for a
// format that cannot describe a real stream; nothing is sent.
var ErrUnusableFormat = errors.New("audio format is not usable")

// Dispatcher routes inbound control-channel messages to the
// collaborators that act on them and offers the ground station's
// outbound command surface. It holds no protocol state of its own:
// everything stateful lives behind the injected interfaces.
type Dispatcher struct {
	logger       *slog.Logger
	ui           UserInterface
	gps          GPSSink
	sensors      SensorSink
	session      *RecordingSession
	sender       MessageSender
	audioMediaID int32
}

// DispatcherConfig holds the collaborators a Dispatcher routes to.
// All fields are required.
type DispatcherConfig struct {
	Logger  *slog.Logger
	UI      UserInterface
	GPS     GPSSink
	Sensors SensorSink
	Session *RecordingSession
	Sender  MessageSender

	// AudioMediaID is the media ID the rover uses for its audio
	// stream; media-server-error messages carrying it are classified
	// as audio errors, everything else as video errors.
	AudioMediaID int32
}

// NewDispatcher returns a Dispatcher over the given collaborators.
func NewDispatcher(config DispatcherConfig) *Dispatcher {
	return &Dispatcher{
		logger:       config.Logger,
		ui:           config.UI,
		gps:          config.GPS,
		sensors:      config.Sensors,
		session:      config.Session,
		sender:       config.Sender,
		audioMediaID: config.AudioMediaID,
	}
}

// HandleMessage decodes one message and routes it. Malformed messages
// and unknown tags are logged and dropped; nothing a peer sends can
// panic the dispatcher or disturb unrelated state.
func (d *Dispatcher) HandleMessage(data []byte) {
	tag, reader, err := wire.DecodeTag(data)
	if err != nil {
		d.logger.Error("dropping unreadable message", "error", err)
		return
	}

	switch tag {
	case wire.TagRoverStatusUpdate:
		mbedOK, err := wire.DecodeRoverStatusUpdate(reader)
		if err != nil {
			d.dropMalformed(tag, err)
			return
		}
		d.handleStatusUpdate(mbedOK)

	case wire.TagMediaServerError:
		mediaID, message, err := wire.DecodeMediaServerError(reader)
		if err != nil {
			d.dropMalformed(tag, err)
			return
		}
		d.handleMediaServerError(mediaID, message)

	case wire.TagGPSUpdate:
		fix, err := wire.DecodeGPSUpdate(reader)
		if err != nil {
			d.dropMalformed(tag, err)
			return
		}
		d.ui.UpdateGPSLocation(fix)
		d.gps.AddLocation(fix)

	case wire.TagDriveOverrideStart:
		d.ui.Notify(SeverityInfo, "Network Driving Disabled",
			"The rover is being driven by serial override. Network drive commands will not be accepted.")
		d.ui.SetMbedStatus("Manual Override")

	case wire.TagDriveOverrideEnd:
		d.ui.Notify(SeverityInfo, "Network Driving Enabled",
			"The rover has resumed accepting network drive commands.")
		d.ui.SetMbedStatus("Normal")

	case wire.TagSensorUpdate:
		raw, err := wire.DecodeSensorUpdate(reader)
		if err != nil {
			d.dropMalformed(tag, err)
			return
		}
		d.sensors.HandleSensorData(raw)

	case wire.TagStartDataRecording:
		timestampMS, err := wire.DecodeStartDataRecording(reader)
		if err != nil {
			d.dropMalformed(tag, err)
			return
		}
		d.session.HandleStartMessage(timestampMS)

	case wire.TagStopDataRecording:
		d.session.HandleStopMessage()

	default:
		d.logger.Error("dropping message with unknown tag", "tag", tag.String())
	}
}

func (d *Dispatcher) handleStatusUpdate(mbedOK bool) {
	if !mbedOK {
		d.ui.Notify(SeverityError, "Mbed Error",
			"The rover has lost connection to the mbed. Driving and data collection will no longer work.")
		d.ui.SetMbedStatus("Error")
		return
	}
	d.ui.SetMbedStatus("Normal")
}

func (d *Dispatcher) handleMediaServerError(mediaID int32, message string) {
	if mediaID == d.audioMediaID {
		d.ui.Notify(SeverityWarning, "Audio Stream Error",
			"The rover encountered an error trying to stream audio.")
		d.logger.Error("audio streaming error", "error", message)
		return
	}
	d.ui.Notify(SeverityWarning, "Video Stream Error",
		"The rover encountered an error trying to stream this camera.")
	d.logger.Error("video streaming error", "camera", mediaID, "error", message)
}

func (d *Dispatcher) dropMalformed(tag wire.Tag, err error) {
	d.logger.Error("dropping malformed message", "tag", tag.String(), "error", err)
}

// SendActivateAudioStream asks the rover to start its audio stream.
// Refuses to send a format that cannot be encoded.
func (d *Dispatcher) SendActivateAudioStream(format wire.AudioFormat) error {
	if !format.Usable() {
		return ErrUnusableFormat
	}
	return d.sender.Send(wire.EncodeActivateAudioStream(format))
}

// SendDeactivateAudioStream asks the rover to stop its audio stream.
func (d *Dispatcher) SendDeactivateAudioStream() error {
	return d.sender.Send(wire.EncodeDeactivateAudioStream())
}

// SendStopAllCameraStreams asks the rover to stop every video stream.
func (d *Dispatcher) SendStopAllCameraStreams() error {
	return d.sender.Send(wire.EncodeStopAllCameraStreams())
}
