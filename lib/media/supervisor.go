// Copyright 2026 The University of Oklahoma.
// SPDX-License-Identifier: Apache-2.0

package media

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/doublejinitials/rover-research/lib/wire"
)

// notifyTag labels the supervisor's ChildLogInfo lines in the parent's
// logs.
const notifyTag = "supervisor"

// commandBuffer absorbs command bursts from the RPC layer without
// blocking it.
const commandBuffer = 16

// phase tracks where the live pipeline is in its lifecycle.
type phase int

const (
	phaseIdle phase = iota
	phaseStarting
	phaseStreaming
)

func (p phase) String() string {
	switch p {
	case phaseIdle:
		return "idle"
	case phaseStarting:
		return "starting"
	case phaseStreaming:
		return "streaming"
	default:
		return fmt.Sprintf("unknown(%d)", int(p))
	}
}

// SupervisorConfig carries the dependencies for NewSupervisor.
type SupervisorConfig struct {
	// Logger receives the supervisor's local log lines.
	Logger *slog.Logger

	// Notifier carries lifecycle reports to the parent process.
	Notifier Notifier

	// Factory constructs pipelines from launch descriptions.
	Factory PipelineFactory
}

// Supervisor owns at most one live pipeline and reacts to stream and
// stop commands from the parent plus events from the pipeline's bus.
// All state lives on the Run goroutine: command methods enqueue work
// and return immediately, outcomes are reported through the Notifier.
type Supervisor struct {
	logger   *slog.Logger
	notifier Notifier
	factory  PipelineFactory

	commands chan func()
	done     chan struct{}

	// Reactor state, touched only by the Run goroutine.
	phase    phase
	pipeline Pipeline
	events   <-chan Event
}

// NewSupervisor builds a Supervisor. Nothing runs until Run is called;
// commands submitted before that accumulate in the command queue.
func NewSupervisor(cfg SupervisorConfig) *Supervisor {
	return &Supervisor{
		logger:   cfg.Logger,
		notifier: cfg.Notifier,
		factory:  cfg.Factory,
		commands: make(chan func(), commandBuffer),
		done:     make(chan struct{}),
	}
}

// Run is the reactor loop. Commands and pipeline bus events are both
// consumed here, one at a time, so handlers never race each other.
// Blocks until ctx is cancelled, then tears down any live pipeline
// without announcing readiness and returns.
func (s *Supervisor) Run(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			s.releasePipeline()
			return
		case command := <-s.commands:
			command()
		case event, ok := <-s.events:
			if !ok {
				// The live pipeline closed its event channel without a
				// teardown on our side. Stop selecting on it; the
				// pipeline itself is collected on the next stop or
				// replacement.
				s.events = nil
				continue
			}
			s.handleBusEvent(event)
		}
	}
}

// Stream replaces any live pipeline with a single-camera stream.
// Acceptance is immediate; the outcome arrives via the Notifier.
func (s *Supervisor) Stream(device, address string, port int, profile VideoProfile, hwAccel bool) {
	launch := VideoLaunch(device, address, port, profile, hwAccel)
	s.submit(func() { s.startPipeline(launch) })
}

// StreamStereo replaces any live pipeline with a side-by-side
// dual-camera stream.
func (s *Supervisor) StreamStereo(leftDevice, rightDevice, address string, port int, profile VideoProfile, hwAccel bool) {
	launch := StereoVideoLaunch(leftDevice, rightDevice, address, port, profile, hwAccel)
	s.submit(func() { s.startPipeline(launch) })
}

// StreamAudio replaces any live pipeline with an audio stream. An
// unusable format is reported like a construction failure.
func (s *Supervisor) StreamAudio(device, address string, port int, format wire.AudioFormat) {
	s.submit(func() {
		if !format.Usable() {
			s.fail(fmt.Sprintf("refusing to stream unusable audio format %s", format))
			return
		}
		s.startPipeline(AudioLaunch(device, address, port, format))
	})
}

// Stop tears down the live pipeline and announces readiness. With no
// pipeline live the command is a complete no-op: nothing is torn down
// and nothing is sent.
func (s *Supervisor) Stop() {
	s.submit(s.stopPipeline)
}

// submit hands a command to the reactor. Safe to call from any
// goroutine; returns without waiting for execution. Dropped once Run
// has returned.
func (s *Supervisor) submit(command func()) {
	select {
	case s.commands <- command:
	case <-s.done:
	}
}

// startPipeline is the shared stream command path: replace, construct,
// play, report. Runs on the reactor goroutine.
func (s *Supervisor) startPipeline(launch string) {
	s.releasePipeline()

	s.notifier.ChildLogInfo(notifyTag, "starting pipeline: "+launch)
	s.logger.Info("starting pipeline", "launch", launch)

	pipeline, err := s.factory(launch)
	if err != nil {
		s.fail(err.Error())
		return
	}
	s.pipeline = pipeline
	s.events = pipeline.Events()
	s.setPhase(phaseStarting)

	if err := pipeline.Play(); err != nil {
		s.fail(err.Error())
		return
	}

	// Optimistic: playback was requested, not confirmed. A pipeline
	// that cannot actually run reports back through the bus.
	s.notifier.ChildStreaming()
	s.setPhase(phaseStreaming)
}

// stopPipeline is the user-visible stop. Runs on the reactor goroutine.
func (s *Supervisor) stopPipeline() {
	if s.pipeline == nil {
		return
	}
	s.releasePipeline()
	s.notifier.ChildReady()
	s.setPhase(phaseIdle)
	s.logger.Info("stopped streaming")
}

// handleBusEvent feeds one pipeline event into the transition function.
// End-of-stream and error both unwind to Idle; a teleoperation stream
// has no legitimate end of stream.
func (s *Supervisor) handleBusEvent(event Event) {
	switch event.Kind {
	case EventEndOfStream:
		s.fail("received EOS from pipeline bus")
	case EventError:
		if event.Debug != "" {
			s.logger.Debug("pipeline bus error detail", "debug", event.Debug)
		}
		s.fail(event.Message)
	case EventOther:
		// No transition.
	}
}

// fail reports an error to the parent, tears down whatever exists, and
// announces readiness: exactly one error followed by exactly one
// readiness signal. The process stays alive for the next command.
func (s *Supervisor) fail(message string) {
	s.logger.Error("pipeline failed", "error", message)
	s.notifier.ChildError(message)
	s.releasePipeline()
	s.notifier.ChildReady()
	s.setPhase(phaseIdle)
}

// setPhase records a lifecycle transition.
func (s *Supervisor) setPhase(next phase) {
	if next == s.phase {
		return
	}
	s.logger.Debug("phase transition", "from", s.phase, "to", next)
	s.phase = next
}

// releasePipeline closes and forgets the live pipeline without any
// readiness announcement. Idempotent: a nil pipeline is a no-op.
func (s *Supervisor) releasePipeline() {
	if s.pipeline == nil {
		return
	}
	s.notifier.ChildLogInfo(notifyTag, "freeing pipeline")
	s.pipeline.Close()
	s.pipeline = nil
	s.events = nil
}
