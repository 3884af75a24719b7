// Copyright 2026 The University of Oklahoma.
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/doublejinitials/rover-research/lib/clock"
	"github.com/doublejinitials/rover-research/lib/wire"
)

var (
	_ UserInterface = (*fakeUI)(nil)
	_ Recorder      = (*fakeRecorder)(nil)
	_ MessageSender = (*fakeSender)(nil)
	_ GPSSink       = (*fakeGPSSink)(nil)
	_ SensorSink    = (*fakeSensorSink)(nil)
)

// testEpoch is the frozen wall time every fixture starts from.
var testEpoch = time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

// testAudioMediaID is the media ID dispatcher fixtures treat as the
// audio stream.
const testAudioMediaID int32 = 100

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// notification is one recorded UserInterface.Notify call.
type notification struct {
	severity Severity
	title    string
	message  string
}

// fakeUI records every user-interface call for later assertions.
type fakeUI struct {
	notifications []notification
	mbedStatuses  []string
	phases        []Phase
	fixes         []wire.GPSFix
}

func (u *fakeUI) Notify(severity Severity, title, message string) {
	u.notifications = append(u.notifications, notification{severity, title, message})
}

func (u *fakeUI) SetMbedStatus(status string) {
	u.mbedStatuses = append(u.mbedStatuses, status)
}

func (u *fakeUI) SetRecordingState(phase Phase) {
	u.phases = append(u.phases, phase)
}

func (u *fakeUI) UpdateGPSLocation(fix wire.GPSFix) {
	u.fixes = append(u.fixes, fix)
}

// lastMbedStatus returns the most recent SetMbedStatus value, or ""
// if none was set.
func (u *fakeUI) lastMbedStatus() string {
	if len(u.mbedStatuses) == 0 {
		return ""
	}
	return u.mbedStatuses[len(u.mbedStatuses)-1]
}

// fakeRecorder implements Recorder with a scriptable Start failure.
type fakeRecorder struct {
	startErr   error
	recording  bool
	startCalls []time.Time
	stopCalls  int
}

func (r *fakeRecorder) Start(startTime time.Time) error {
	r.startCalls = append(r.startCalls, startTime)
	if r.startErr != nil {
		return r.startErr
	}
	r.recording = true
	return nil
}

func (r *fakeRecorder) Stop() {
	r.stopCalls++
	r.recording = false
}

func (r *fakeRecorder) Recording() bool { return r.recording }

// fakeSender captures outbound messages instead of writing to a
// channel.
type fakeSender struct {
	sendErr error
	sent    [][]byte
}

func (s *fakeSender) Send(message []byte) error {
	if s.sendErr != nil {
		return s.sendErr
	}
	s.sent = append(s.sent, message)
	return nil
}

// fakeGPSSink records position fixes handed to the data log.
type fakeGPSSink struct {
	fixes []wire.GPSFix
}

func (g *fakeGPSSink) AddLocation(fix wire.GPSFix) {
	g.fixes = append(g.fixes, fix)
}

// fakeSensorSink records raw sensor payloads. Payloads are copied to
// strings because decoders alias the inbound buffer.
type fakeSensorSink struct {
	payloads []string
}

func (s *fakeSensorSink) HandleSensorData(data []byte) {
	s.payloads = append(s.payloads, string(data))
}

// sessionFixture bundles a RecordingSession with the fakes behind it.
type sessionFixture struct {
	session  *RecordingSession
	clock    *clock.FakeClock
	recorder *fakeRecorder
	sender   *fakeSender
	ui       *fakeUI
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	fx := &sessionFixture{
		clock:    clock.Fake(testEpoch),
		recorder: &fakeRecorder{},
		sender:   &fakeSender{},
		ui:       &fakeUI{},
	}
	fx.session = NewRecordingSession(SessionConfig{
		Logger:   testLogger(),
		Clock:    fx.clock,
		Recorder: fx.recorder,
		Sender:   fx.sender,
		UI:       fx.ui,
	})
	return fx
}

// dispatcherFixture bundles a Dispatcher, its RecordingSession, and
// the fakes behind both.
type dispatcherFixture struct {
	dispatcher *Dispatcher
	session    *RecordingSession
	clock      *clock.FakeClock
	recorder   *fakeRecorder
	sender     *fakeSender
	ui         *fakeUI
	gps        *fakeGPSSink
	sensors    *fakeSensorSink
}

func newDispatcherFixture(t *testing.T) *dispatcherFixture {
	t.Helper()
	fx := &dispatcherFixture{
		clock:    clock.Fake(testEpoch),
		recorder: &fakeRecorder{},
		sender:   &fakeSender{},
		ui:       &fakeUI{},
		gps:      &fakeGPSSink{},
		sensors:  &fakeSensorSink{},
	}
	fx.session = NewRecordingSession(SessionConfig{
		Logger:   testLogger(),
		Clock:    fx.clock,
		Recorder: fx.recorder,
		Sender:   fx.sender,
		UI:       fx.ui,
	})
	fx.dispatcher = NewDispatcher(DispatcherConfig{
		Logger:       testLogger(),
		UI:           fx.ui,
		GPS:          fx.gps,
		Sensors:      fx.sensors,
		Session:      fx.session,
		Sender:       fx.sender,
		AudioMediaID: testAudioMediaID,
	})
	return fx
}

// sentTags decodes the tag of every message the fake sender captured,
// in send order.
func sentTags(t *testing.T, sender *fakeSender) []wire.Tag {
	t.Helper()
	tags := make([]wire.Tag, 0, len(sender.sent))
	for _, message := range sender.sent {
		tag, _, err := wire.DecodeTag(message)
		if err != nil {
			t.Fatalf("DecodeTag(% x): %v", message, err)
		}
		tags = append(tags, tag)
	}
	return tags
}

// lastStartTimestamp decodes the timestamp of the most recent
// start-data-recording message the sender captured.
func lastStartTimestamp(t *testing.T, sender *fakeSender) int64 {
	t.Helper()
	for i := len(sender.sent) - 1; i >= 0; i-- {
		tag, reader, err := wire.DecodeTag(sender.sent[i])
		if err != nil || tag != wire.TagStartDataRecording {
			continue
		}
		timestampMS, err := wire.DecodeStartDataRecording(reader)
		if err != nil {
			t.Fatalf("DecodeStartDataRecording: %v", err)
		}
		return timestampMS
	}
	t.Fatal("no start-data-recording message was sent")
	return 0
}
