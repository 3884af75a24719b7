// Copyright 2026 The University of Oklahoma.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/doublejinitials/rover-research/lib/control"
	"github.com/doublejinitials/rover-research/lib/wire"
)

// messageRouter dispatches messages arriving on the rover's main
// channel. Mission control runs the mirror image of this switch; the
// rover only handles the tags that command it. Handlers run
// synchronously on the channel delivery goroutine, so commands apply
// in arrival order.
type messageRouter struct {
	logger   *slog.Logger
	session  *control.RecordingSession
	children *childManager

	audioMediaID int32

	// report relays a refused or failed stream request to mission
	// control, the same path child failures take.
	report func(mediaID int32, message string)
}

func (r *messageRouter) handleMessage(ctx context.Context, data []byte) {
	tag, reader, err := wire.DecodeTag(data)
	if err != nil {
		r.logger.Error("dropping unreadable control message", "error", err)
		return
	}

	switch tag {
	case wire.TagStartDataRecording:
		timestamp, err := wire.DecodeStartDataRecording(reader)
		if err != nil {
			r.logger.Error("dropping malformed start-data-recording", "error", err)
			return
		}
		r.session.HandleStartMessage(timestamp)

	case wire.TagStopDataRecording:
		r.session.HandleStopMessage()

	case wire.TagStopAllCameraStreams:
		r.logger.Info("stopping all camera streams on operator request")
		r.children.stopAllCameras(ctx)

	case wire.TagRequestActivateAudioStream:
		format, err := wire.DecodeActivateAudioStream(reader)
		if err != nil {
			r.logger.Error("dropping malformed audio activation", "error", err)
			return
		}
		if !format.Usable() {
			r.logger.Warn("refusing audio activation", "format", format.String())
			r.report(r.audioMediaID, fmt.Sprintf("unusable audio format %s", format))
			return
		}
		r.logger.Info("activating audio stream", "format", format.String())
		if err := r.children.activateAudio(ctx, format); err != nil {
			r.logger.Error("audio activation failed", "error", err)
			r.report(r.audioMediaID, err.Error())
		}

	case wire.TagRequestDeactivateAudioStream:
		r.logger.Info("deactivating audio stream")
		if err := r.children.deactivateAudio(ctx); err != nil {
			r.logger.Error("audio deactivation failed", "error", err)
			r.report(r.audioMediaID, err.Error())
		}

	default:
		r.logger.Warn("dropping control message the rover does not handle",
			"tag", tag.String())
	}
}

// driveSink terminates the drive channel. Frames are opaque to the
// agent; it counts them and surfaces them at debug level so the drive
// path can be verified end to end from the field.
type driveSink struct {
	logger *slog.Logger
	frames atomic.Uint64
}

func (s *driveSink) handleFrame(frame []byte) {
	total := s.frames.Add(1)
	s.logger.Debug("drive frame", "bytes", len(frame), "total", total)
}
