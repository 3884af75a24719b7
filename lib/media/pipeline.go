// Copyright 2026 The University of Oklahoma.
// SPDX-License-Identifier: Apache-2.0

package media

import "fmt"

// EventKind classifies a pipeline bus event for the supervisor's
// transition function.
type EventKind int

const (
	// EventEndOfStream reports that the source stopped producing data.
	// The supervisor treats it as an error: a teleoperation stream has
	// no legitimate end.
	EventEndOfStream EventKind = iota

	// EventError reports a fatal pipeline error.
	EventError

	// EventOther covers bus traffic that carries no transition.
	EventOther
)

func (k EventKind) String() string {
	switch k {
	case EventEndOfStream:
		return "end-of-stream"
	case EventError:
		return "error"
	case EventOther:
		return "other"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Event is one pipeline bus message translated into supervisor terms.
// Message and Debug carry the bus error text and debug detail when
// Kind is EventError.
type Event struct {
	Kind    EventKind
	Message string
	Debug   string
}

// Pipeline is a live media pipeline. Play requests playback. Events
// delivers translated bus events until Close. Close tears the pipeline
// down, stops event delivery, and closes the Events channel; it is
// idempotent.
type Pipeline interface {
	Play() error
	Close()
	Events() <-chan Event
}

// PipelineFactory constructs a pipeline from a gst-launch style
// description. Production code uses NewGStreamerPipeline; tests inject
// fakes so the supervisor's state machine runs without GStreamer.
type PipelineFactory func(launch string) (Pipeline, error)

// Notifier carries the supervisor's lifecycle reports to its parent
// process. The contract is fire and forget: no method returns an error
// or blocks on delivery, so a slow or absent parent can never stall
// the supervisor.
type Notifier interface {
	// ChildReady announces that no pipeline is live and the process is
	// ready for a stream command. Sent once at startup and after every
	// user-visible stop or failure teardown.
	ChildReady()

	// ChildStreaming announces that playback was requested. Optimistic:
	// not gated on a first frame reaching the sink.
	ChildStreaming()

	// ChildError reports a failed or dead pipeline. Always followed by
	// ChildReady once the wreckage is torn down.
	ChildError(message string)

	// ChildLogInfo forwards an informational log line to the parent's
	// logs, tagged with the originating component.
	ChildLogInfo(tag, message string)
}
