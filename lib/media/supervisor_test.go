// Copyright 2026 The University of Oklahoma.
// SPDX-License-Identifier: Apache-2.0

package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/doublejinitials/rover-research/lib/wire"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// callNotifier records notifier calls in order on a buffered channel so
// tests can wait for them without polling.
type callNotifier struct {
	calls chan string
}

var _ Notifier = (*callNotifier)(nil)

func newCallNotifier() *callNotifier {
	return &callNotifier{calls: make(chan string, 64)}
}

func (n *callNotifier) ChildReady()                      { n.calls <- "ready" }
func (n *callNotifier) ChildStreaming()                  { n.calls <- "streaming" }
func (n *callNotifier) ChildError(message string)        { n.calls <- "error: " + message }
func (n *callNotifier) ChildLogInfo(tag, message string) { n.calls <- "log " + tag + ": " + message }

func (n *callNotifier) next(t *testing.T) string {
	t.Helper()
	select {
	case call := <-n.calls:
		return call
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for a notifier call")
		return ""
	}
}

// expect asserts the next calls arrive exactly in the given order.
func (n *callNotifier) expect(t *testing.T, want ...string) {
	t.Helper()
	for _, w := range want {
		if got := n.next(t); got != w {
			t.Fatalf("notifier call = %q, want %q", got, w)
		}
	}
}

// expectPrefix asserts the next call starts with prefix. Used for the
// launch log lines, whose full text repeats the launch description.
func (n *callNotifier) expectPrefix(t *testing.T, prefix string) {
	t.Helper()
	if got := n.next(t); !strings.HasPrefix(got, prefix) {
		t.Fatalf("notifier call = %q, want prefix %q", got, prefix)
	}
}

// quiet asserts no further calls have been recorded.
func (n *callNotifier) quiet(t *testing.T) {
	t.Helper()
	select {
	case call := <-n.calls:
		t.Fatalf("unexpected notifier call %q", call)
	default:
	}
}

// fakePipeline is a scriptable Pipeline. Close records itself on the
// factory trace but leaves the event channel open, so tests can prove
// that events staged on a replaced pipeline are never consumed.
type fakePipeline struct {
	factory *fakeFactory
	id      int
	launch  string
	events  chan Event
	playErr error

	mu     sync.Mutex
	closed bool
}

var _ Pipeline = (*fakePipeline)(nil)

func (p *fakePipeline) Play() error {
	p.factory.record(fmt.Sprintf("play %d", p.id))
	return p.playErr
}

func (p *fakePipeline) Events() <-chan Event { return p.events }

func (p *fakePipeline) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	p.factory.record(fmt.Sprintf("close %d", p.id))
}

func (p *fakePipeline) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// emit stages a bus event for the supervisor to consume.
func (p *fakePipeline) emit(event Event) { p.events <- event }

// fakeFactory builds fakePipelines and keeps an ordered trace of
// construction, playback, and close calls across all of them.
type fakeFactory struct {
	mu        sync.Mutex
	trace     []string
	pipelines []*fakePipeline

	// nextErr fails the next construction only.
	nextErr error
	// playErr is copied onto every constructed pipeline.
	playErr error
}

func (f *fakeFactory) new(launch string) (Pipeline, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.nextErr != nil {
		err := f.nextErr
		f.nextErr = nil
		return nil, err
	}
	p := &fakePipeline{
		factory: f,
		id:      len(f.pipelines) + 1,
		launch:  launch,
		events:  make(chan Event, 8),
		playErr: f.playErr,
	}
	f.pipelines = append(f.pipelines, p)
	f.trace = append(f.trace, fmt.Sprintf("new %d", p.id))
	return p, nil
}

func (f *fakeFactory) record(entry string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trace = append(f.trace, entry)
}

func (f *fakeFactory) traceCopy() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.trace...)
}

func (f *fakeFactory) pipeline(t *testing.T, id int) *fakePipeline {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if id < 1 || id > len(f.pipelines) {
		t.Fatalf("no pipeline %d (have %d)", id, len(f.pipelines))
	}
	return f.pipelines[id-1]
}

type supervisorFixture struct {
	supervisor *Supervisor
	notifier   *callNotifier
	factory    *fakeFactory
	cancel     context.CancelFunc
	stopped    chan struct{}
}

func newSupervisorFixture(t *testing.T) *supervisorFixture {
	t.Helper()
	fx := &supervisorFixture{
		notifier: newCallNotifier(),
		factory:  &fakeFactory{},
		stopped:  make(chan struct{}),
	}
	fx.supervisor = NewSupervisor(SupervisorConfig{
		Logger:   testLogger(),
		Notifier: fx.notifier,
		Factory:  fx.factory.new,
	})
	ctx, cancel := context.WithCancel(context.Background())
	fx.cancel = cancel
	go func() {
		fx.supervisor.Run(ctx)
		close(fx.stopped)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-fx.stopped:
		case <-time.After(5 * time.Second):
			t.Errorf("supervisor did not stop")
		}
	})
	return fx
}

// barrier waits until every previously submitted command has executed.
// It says nothing about staged bus events; tests that need event
// ordering chain a second event behind the first.
func (fx *supervisorFixture) barrier(t *testing.T) {
	t.Helper()
	done := make(chan struct{})
	fx.supervisor.submit(func() { close(done) })
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("reactor did not drain")
	}
}

var testProfile = VideoProfile{
	Encoding:     EncodingMJPEG,
	Width:        640,
	Height:       480,
	Framerate:    30,
	MJPEGQuality: 50,
}

// startStream issues a video stream command and consumes its two
// notifier calls, leaving the notifier quiet for the test body.
func (fx *supervisorFixture) startStream(t *testing.T, device string) *fakePipeline {
	t.Helper()
	fx.supervisor.Stream(device, "10.0.0.1", 5560, testProfile, false)
	fx.notifier.expectPrefix(t, "log supervisor: starting pipeline: v4l2src device="+device)
	fx.notifier.expect(t, "streaming")
	fx.factory.mu.Lock()
	p := fx.factory.pipelines[len(fx.factory.pipelines)-1]
	fx.factory.mu.Unlock()
	return p
}

func TestStreamStartsPipeline(t *testing.T) {
	fx := newSupervisorFixture(t)

	p := fx.startStream(t, "/dev/video0")

	want := VideoLaunch("/dev/video0", "10.0.0.1", 5560, testProfile, false)
	if p.launch != want {
		t.Errorf("pipeline launch = %q, want %q", p.launch, want)
	}
	if got, want := fx.factory.traceCopy(), []string{"new 1", "play 1"}; !slices.Equal(got, want) {
		t.Errorf("factory trace = %v, want %v", got, want)
	}
	fx.notifier.quiet(t)
}

func TestStreamReplacementTearsDownFirst(t *testing.T) {
	fx := newSupervisorFixture(t)

	first := fx.startStream(t, "/dev/video0")
	fx.supervisor.Stream("/dev/video1", "10.0.0.1", 5560, testProfile, false)

	fx.notifier.expect(t, "log supervisor: freeing pipeline")
	fx.notifier.expectPrefix(t, "log supervisor: starting pipeline: v4l2src device=/dev/video1")
	fx.notifier.expect(t, "streaming")
	fx.notifier.quiet(t)

	if !first.isClosed() {
		t.Errorf("replaced pipeline was not closed")
	}
	want := []string{"new 1", "play 1", "close 1", "new 2", "play 2"}
	if got := fx.factory.traceCopy(); !slices.Equal(got, want) {
		t.Errorf("factory trace = %v, want %v", got, want)
	}
}

func TestStopAnnouncesReady(t *testing.T) {
	fx := newSupervisorFixture(t)

	p := fx.startStream(t, "/dev/video0")
	fx.supervisor.Stop()

	fx.notifier.expect(t, "log supervisor: freeing pipeline", "ready")
	fx.notifier.quiet(t)
	if !p.isClosed() {
		t.Errorf("pipeline was not closed on stop")
	}
}

func TestStopAtIdleIsCompletelySilent(t *testing.T) {
	fx := newSupervisorFixture(t)

	fx.supervisor.Stop()
	fx.barrier(t)

	fx.notifier.quiet(t)
	if trace := fx.factory.traceCopy(); len(trace) != 0 {
		t.Errorf("factory trace = %v, want empty", trace)
	}
}

func TestBusErrorSelfHeals(t *testing.T) {
	fx := newSupervisorFixture(t)

	p := fx.startStream(t, "/dev/video0")
	p.emit(Event{Kind: EventError, Message: "internal data stream error", Debug: "gstbasesrc.c"})

	fx.notifier.expect(t,
		"error: internal data stream error",
		"log supervisor: freeing pipeline",
		"ready",
	)
	fx.notifier.quiet(t)

	// The process stays alive and accepts the next stream command.
	fx.startStream(t, "/dev/video0")
	if got := fx.factory.traceCopy(); got[len(got)-1] != "play 2" {
		t.Errorf("factory trace = %v, want a second pipeline playing", got)
	}
}

func TestEndOfStreamReportsError(t *testing.T) {
	fx := newSupervisorFixture(t)

	p := fx.startStream(t, "/dev/video0")
	p.emit(Event{Kind: EventEndOfStream})

	fx.notifier.expect(t,
		"error: received EOS from pipeline bus",
		"log supervisor: freeing pipeline",
		"ready",
	)
	fx.notifier.quiet(t)
}

func TestConstructionFailureUnwinds(t *testing.T) {
	fx := newSupervisorFixture(t)
	fx.factory.nextErr = errors.New("no element \"vaapih264enc\"")

	fx.supervisor.Stream("/dev/video0", "10.0.0.1", 5560, testProfile, true)

	fx.notifier.expectPrefix(t, "log supervisor: starting pipeline: ")
	fx.notifier.expect(t, "error: no element \"vaapih264enc\"", "ready")
	fx.notifier.quiet(t)
	if trace := fx.factory.traceCopy(); len(trace) != 0 {
		t.Errorf("factory trace = %v, want empty", trace)
	}

	// nextErr is one-shot, so the supervisor recovers on the retry.
	fx.startStream(t, "/dev/video0")
}

func TestPlaybackFailureUnwinds(t *testing.T) {
	fx := newSupervisorFixture(t)
	fx.factory.playErr = errors.New("could not link jpegenc to rtpjpegpay")

	fx.supervisor.Stream("/dev/video0", "10.0.0.1", 5560, testProfile, false)

	fx.notifier.expectPrefix(t, "log supervisor: starting pipeline: ")
	fx.notifier.expect(t,
		"error: could not link jpegenc to rtpjpegpay",
		"log supervisor: freeing pipeline",
		"ready",
	)
	fx.notifier.quiet(t)
	want := []string{"new 1", "play 1", "close 1"}
	if got := fx.factory.traceCopy(); !slices.Equal(got, want) {
		t.Errorf("factory trace = %v, want %v", got, want)
	}
}

func TestReplacedPipelineEventsNeverConsumed(t *testing.T) {
	fx := newSupervisorFixture(t)

	stale := fx.startStream(t, "/dev/video0")
	fx.supervisor.Stream("/dev/video1", "10.0.0.1", 5560, testProfile, false)
	fx.notifier.expect(t, "log supervisor: freeing pipeline")
	fx.notifier.expectPrefix(t, "log supervisor: starting pipeline: ")
	fx.notifier.expect(t, "streaming")

	// The supervisor now selects on the replacement's event channel
	// only, so an error staged on the old pipeline must go nowhere.
	stale.emit(Event{Kind: EventError, Message: "stale"})
	fx.barrier(t)
	fx.notifier.quiet(t)

	// The replacement is still live and stops normally.
	fx.supervisor.Stop()
	fx.notifier.expect(t, "log supervisor: freeing pipeline", "ready")
}

func TestEventOtherCarriesNoTransition(t *testing.T) {
	fx := newSupervisorFixture(t)

	p := fx.startStream(t, "/dev/video0")
	p.emit(Event{Kind: EventOther})
	p.emit(Event{Kind: EventOther, Message: "state changed"})
	p.emit(Event{Kind: EventEndOfStream})

	// Events on one channel are consumed in order: both EventOther
	// values were processed before the end-of-stream and produced no
	// calls in between.
	fx.notifier.expect(t,
		"error: received EOS from pipeline bus",
		"log supervisor: freeing pipeline",
		"ready",
	)
	fx.notifier.quiet(t)
}

func TestUnusableAudioFormatRejected(t *testing.T) {
	fx := newSupervisorFixture(t)

	format := wire.AudioFormat{}
	fx.supervisor.StreamAudio("hw:1", "10.0.0.1", 5562, format)

	fx.notifier.expect(t,
		fmt.Sprintf("error: refusing to stream unusable audio format %s", format),
		"ready",
	)
	fx.notifier.quiet(t)
	if trace := fx.factory.traceCopy(); len(trace) != 0 {
		t.Errorf("factory trace = %v, want empty", trace)
	}
}

func TestStreamAudioBuildsAudioLaunch(t *testing.T) {
	fx := newSupervisorFixture(t)

	format := wire.AudioFormat{Encoding: wire.AudioEncodingVorbis, SampleRate: 48000, Channels: 2}
	fx.supervisor.StreamAudio("hw:1", "10.0.0.1", 5562, format)

	fx.notifier.expectPrefix(t, "log supervisor: starting pipeline: alsasrc device=hw:1")
	fx.notifier.expect(t, "streaming")

	want := AudioLaunch("hw:1", "10.0.0.1", 5562, format)
	if got := fx.factory.pipeline(t, 1).launch; got != want {
		t.Errorf("pipeline launch = %q, want %q", got, want)
	}
}

func TestStreamStereoBuildsStereoLaunch(t *testing.T) {
	fx := newSupervisorFixture(t)

	fx.supervisor.StreamStereo("/dev/video1", "/dev/video2", "10.0.0.1", 5560, testProfile, false)

	fx.notifier.expectPrefix(t, "log supervisor: starting pipeline: compositor")
	fx.notifier.expect(t, "streaming")

	want := StereoVideoLaunch("/dev/video1", "/dev/video2", "10.0.0.1", 5560, testProfile, false)
	if got := fx.factory.pipeline(t, 1).launch; got != want {
		t.Errorf("pipeline launch = %q, want %q", got, want)
	}
}

func TestRunTeardownOnCancel(t *testing.T) {
	fx := newSupervisorFixture(t)

	p := fx.startStream(t, "/dev/video0")
	fx.cancel()

	select {
	case <-fx.stopped:
	case <-time.After(5 * time.Second):
		t.Fatalf("supervisor did not stop after cancel")
	}
	if !p.isClosed() {
		t.Errorf("pipeline survived supervisor shutdown")
	}
	// Shutdown is not a user-visible stop: the pipeline is freed but no
	// readiness is announced.
	fx.notifier.expect(t, "log supervisor: freeing pipeline")
	fx.notifier.quiet(t)
}

func TestClosedEventChannelTolerated(t *testing.T) {
	fx := newSupervisorFixture(t)

	p := fx.startStream(t, "/dev/video0")
	close(p.events)
	fx.barrier(t)
	fx.notifier.quiet(t)

	// The pipeline is still considered live; stop frees it normally.
	fx.supervisor.Stop()
	fx.notifier.expect(t, "log supervisor: freeing pipeline", "ready")
	fx.notifier.quiet(t)
}
