// Copyright 2026 The University of Oklahoma.
// SPDX-License-Identifier: Apache-2.0

package media

import (
	"fmt"
	"sync"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
)

// busPollTimeout bounds one bus poll so the watcher notices Close
// promptly without a separate wakeup path.
const busPollTimeout = 50 * time.Millisecond

// eventBuffer absorbs bus messages between reactor wakeups.
const eventBuffer = 8

// gstPipeline adapts a GStreamer pipeline to the Pipeline interface. A
// dedicated goroutine polls the pipeline bus and forwards end-of-stream
// and error messages as Events.
type gstPipeline struct {
	pipeline *gst.Pipeline
	events   chan Event
	quit     chan struct{}
	once     sync.Once
	watcher  sync.WaitGroup
}

var _ PipelineFactory = NewGStreamerPipeline

// NewGStreamerPipeline builds a pipeline from a gst-launch description
// and starts its bus watcher. gst.Init must have been called once in
// the process before the first pipeline is built.
func NewGStreamerPipeline(launch string) (Pipeline, error) {
	inner, err := gst.NewPipelineFromString(launch)
	if err != nil {
		return nil, fmt.Errorf("building pipeline: %w", err)
	}
	p := &gstPipeline{
		pipeline: inner,
		events:   make(chan Event, eventBuffer),
		quit:     make(chan struct{}),
	}
	p.watcher.Add(1)
	go p.watchBus()
	return p, nil
}

// Play requests the PLAYING state. GStreamer continues the transition
// asynchronously; failures past this point arrive on Events.
func (p *gstPipeline) Play() error {
	if err := p.pipeline.SetState(gst.StatePlaying); err != nil {
		return fmt.Errorf("requesting playback: %w", err)
	}
	return nil
}

func (p *gstPipeline) Events() <-chan Event { return p.events }

// Close sets the pipeline to NULL, stops the bus watcher, and closes
// the event channel. Safe to call more than once.
func (p *gstPipeline) Close() {
	p.once.Do(func() {
		close(p.quit)
		p.pipeline.SetState(gst.StateNull)
		p.watcher.Wait()
		close(p.events)
	})
}

// watchBus polls the bus and forwards end-of-stream and error messages
// until Close. Messages that carry no supervisor transition are
// dropped here rather than waking the reactor.
func (p *gstPipeline) watchBus() {
	defer p.watcher.Done()
	bus := p.pipeline.GetPipelineBus()
	for {
		select {
		case <-p.quit:
			return
		default:
		}

		message := bus.TimedPop(busPollTimeout)
		if message == nil {
			continue
		}
		event := translateBusMessage(message)
		if event.Kind == EventOther {
			continue
		}
		select {
		case p.events <- event:
		case <-p.quit:
			return
		}
	}
}

// translateBusMessage maps a bus message onto the event enum.
func translateBusMessage(message *gst.Message) Event {
	switch message.Type() {
	case gst.MessageEOS:
		return Event{Kind: EventEndOfStream}
	case gst.MessageError:
		gerr := message.ParseError()
		return Event{Kind: EventError, Message: gerr.Error(), Debug: gerr.DebugString()}
	default:
		return Event{Kind: EventOther}
	}
}
