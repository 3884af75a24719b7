// Copyright 2026 The University of Oklahoma.
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"log/slog"
	"sync"
	"time"

	"github.com/doublejinitials/rover-research/lib/clock"
	"github.com/doublejinitials/rover-research/lib/wire"
)

// startTimeout is how long a session waits for the peer to echo a
// start-data-recording message before abandoning the handshake.
const startTimeout = 5000 * time.Millisecond

// RecordingSession coordinates synchronized data recording across the
// control channel. Starting is a timed two-phase handshake: the
// initiator sends its capture timestamp and opens its recorder only
// when the peer echoes the message back, so logs on both machines
// share one start time. Stopping is fire-and-forget.
//
// Both peers run a session; the same message entry points serve
// whichever side receives them. All state changes are serialized by an
// internal mutex, so the channel-delivery goroutine and the watchdog
// may call in concurrently. Collaborators are invoked with that lock
// held and must not re-enter the session.
type RecordingSession struct {
	logger   *slog.Logger
	clock    clock.Clock
	recorder Recorder
	sender   MessageSender
	ui       UserInterface

	mu             sync.Mutex
	phase          Phase
	startTimestamp int64
	generation     uint64
	watchdog       *clock.Timer
}

// SessionConfig holds the collaborators a RecordingSession is built
// from. All fields are required.
type SessionConfig struct {
	Logger   *slog.Logger
	Clock    clock.Clock
	Recorder Recorder
	Sender   MessageSender
	UI       UserInterface
}

// NewRecordingSession returns an idle session.
func NewRecordingSession(config SessionConfig) *RecordingSession {
	return &RecordingSession{
		logger:   config.Logger,
		clock:    config.Clock,
		recorder: config.Recorder,
		sender:   config.Sender,
		ui:       config.UI,
	}
}

// Phase returns the session's current state.
func (s *RecordingSession) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Start begins the handshake: capture the start timestamp, tell the
// peer, and wait for the echo. A no-op unless the session is Idle.
func (s *RecordingSession) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseIdle {
		s.logger.Debug("recording start ignored", "phase", s.phase.String())
		return
	}

	s.startTimestamp = s.clock.Now().UnixMilli()
	s.generation++
	generation := s.generation
	s.setPhaseLocked(PhaseWaiting)

	if err := s.sender.Send(wire.EncodeStartDataRecording(s.startTimestamp)); err != nil {
		s.logger.Warn("sending start-data-recording", "error", err)
	}

	s.watchdog = s.clock.AfterFunc(startTimeout, func() {
		s.watchdogExpired(generation)
	})
	s.logger.Info("recording handshake started", "start_timestamp_ms", s.startTimestamp)
}

// Stop is unconditional and fire-and-forget: tell the peer, stop the
// local recorder immediately, return to Idle. No acknowledgement is
// awaited; the peer's stop handler never echoes, so there are no stop
// loops.
func (s *RecordingSession) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.sender.Send(wire.EncodeStopDataRecording()); err != nil {
		s.logger.Warn("sending stop-data-recording", "error", err)
	}
	s.recorder.Stop()
	s.stopWatchdogLocked()
	s.setPhaseLocked(PhaseIdle)
}

// Toggle starts or stops based on whether the local recorder is
// active right now, deliberately the recorder's flag rather than the
// session phase. During the Waiting window the recorder is still idle,
// so a toggle re-requests a start; the phase guard in Start drops that
// request, leaving the pending handshake neither duplicated nor
// cancelled.
func (s *RecordingSession) Toggle() {
	if s.recorder.Recording() {
		s.Stop()
	} else {
		s.Start()
	}
}

// HandleStartMessage processes a received start-data-recording,
// whether it is a fresh remote start or the echo of our own.
func (s *RecordingSession) HandleStartMessage(timestampMS int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.phase {
	case PhaseWaiting:
		// The peer echoed our start: open at the timestamp we
		// captured when the handshake began, not the echoed value.
		s.openRecorderLocked(s.startTimestamp)

	case PhaseIdle:
		if timestampMS == s.startTimestamp && s.startTimestamp != 0 {
			// The echo of a start the watchdog already abandoned. A
			// late ack must never restart a dead handshake.
			s.logger.Warn("dropping stale recording ack", "start_timestamp_ms", timestampMS)
			return
		}
		// Fresh remote start: adopt the initiator's timestamp and
		// echo it back so their Waiting side completes.
		s.startTimestamp = timestampMS
		if s.openRecorderLocked(timestampMS) {
			if err := s.sender.Send(wire.EncodeStartDataRecording(timestampMS)); err != nil {
				s.logger.Warn("echoing start-data-recording", "error", err)
			}
		}

	case PhaseRecording:
		// Duplicate or late ack while already recording.
		s.logger.Debug("recording start message ignored", "phase", s.phase.String())
	}
}

// HandleStopMessage processes a received stop-data-recording: stop
// locally, return to Idle, send nothing.
func (s *RecordingSession) HandleStopMessage() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.recorder.Stop()
	s.stopWatchdogLocked()
	s.setPhaseLocked(PhaseIdle)
}

// openRecorderLocked opens the recorder at the given start timestamp
// and moves to Recording. On failure it unwinds the whole handshake:
// recorder stopped if partially opened, peer told to stop, operator
// notified, phase Idle. Reports whether the recorder opened.
func (s *RecordingSession) openRecorderLocked(timestampMS int64) bool {
	if err := s.recorder.Start(time.UnixMilli(timestampMS)); err != nil {
		s.logger.Error("starting data recorder", "error", err)
		s.recorder.Stop()
		if sendErr := s.sender.Send(wire.EncodeStopDataRecording()); sendErr != nil {
			s.logger.Warn("sending stop-data-recording", "error", sendErr)
		}
		s.ui.Notify(SeverityError, "Cannot Record Data",
			"An error occurred attempting to start data logging.")
		s.stopWatchdogLocked()
		s.setPhaseLocked(PhaseIdle)
		return false
	}

	s.stopWatchdogLocked()
	s.setPhaseLocked(PhaseRecording)
	s.logger.Info("recording", "start_timestamp_ms", timestampMS)
	return true
}

// watchdogExpired fires when the peer never echoed our start. The
// generation guard keeps a stale watchdog from touching a later
// handshake that reused the Waiting phase.
func (s *RecordingSession) watchdogExpired(generation uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseWaiting || generation != s.generation {
		return
	}

	s.setPhaseLocked(PhaseIdle)
	s.logger.Error("recording handshake timed out")
	s.ui.Notify(SeverityError, "Cannot Record Data",
		"The rover has not responded to the request to start data recording")
}

func (s *RecordingSession) setPhaseLocked(phase Phase) {
	s.phase = phase
	s.ui.SetRecordingState(phase)
}

func (s *RecordingSession) stopWatchdogLocked() {
	if s.watchdog != nil {
		s.watchdog.Stop()
		s.watchdog = nil
	}
}
