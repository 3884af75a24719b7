// Copyright 2026 The University of Oklahoma.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/doublejinitials/rover-research/lib/ipc"
	"github.com/doublejinitials/rover-research/lib/settings"
	"github.com/doublejinitials/rover-research/lib/wire"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeCommander records the commands a child receives and answers with
// a canned response.
type fakeCommander struct {
	mu       sync.Mutex
	commands []ipc.Command
	response ipc.Response
	err      error
}

func (f *fakeCommander) Send(ctx context.Context, command ipc.Command) (ipc.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, command)
	if f.err != nil {
		return ipc.Response{}, f.err
	}
	if f.response == (ipc.Response{}) {
		return ipc.Response{OK: true}, nil
	}
	return f.response, nil
}

func (f *fakeCommander) Close() {}

func (f *fakeCommander) sent() []ipc.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.commands)
}

// errorCollector gathers OnStreamError calls.
type errorCollector struct {
	mu      sync.Mutex
	reports []streamError
}

type streamError struct {
	mediaID int32
	message string
}

func (e *errorCollector) report(mediaID int32, message string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reports = append(e.reports, streamError{mediaID: mediaID, message: message})
}

func (e *errorCollector) all() []streamError {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.reports)
}

func testMediaConfig() settings.MediaConfig {
	return settings.MediaConfig{
		RuntimeDir:    "/run/rover",
		Destination:   "192.168.1.10",
		VideoPortBase: 5520,
		AudioPort:     5512,
		AudioMediaID:  100,
		Audio: settings.AudioConfig{
			Device:     "hw:1",
			Encoding:   "ac3",
			SampleRate: 48000,
			Channels:   2,
		},
	}
}

func newTestManager(t *testing.T) (*childManager, *errorCollector) {
	t.Helper()
	collector := &errorCollector{}
	manager := newChildManager(childManagerConfig{
		Logger:        testLogger(),
		Media:         testMediaConfig(),
		StreamerBin:   "/nonexistent/rover-media-streamer",
		OnStreamError: collector.report,
	})
	return manager, collector
}

// addChild registers a fabricated child, standing in for a spawned
// process.
func addChild(m *childManager, mediaID int32, name string, isAudio bool, client commander) *child {
	c := &child{
		mediaID:  mediaID,
		name:     name,
		instance: uuid.NewString(),
		isAudio:  isAudio,
		client:   client,
		done:     make(chan struct{}),
	}
	m.mu.Lock()
	m.children[c.instance] = c
	m.mu.Unlock()
	return c
}

func TestCameraCommandMono(t *testing.T) {
	t.Parallel()

	media := testMediaConfig()
	camera := settings.CameraConfig{
		ID:      3,
		Device:  "/dev/video4",
		Profile: "mjpeg_1280x720_30_q90",
		HWAccel: true,
	}

	command := cameraCommand(camera, media)
	want := ipc.Command{
		Kind:    ipc.CommandStream,
		Device:  "/dev/video4",
		Address: "192.168.1.10",
		Port:    5523,
		Profile: "mjpeg_1280x720_30_q90",
		HWAccel: true,
	}
	if command != want {
		t.Errorf("cameraCommand = %+v, want %+v", command, want)
	}
}

func TestCameraCommandStereo(t *testing.T) {
	t.Parallel()

	media := testMediaConfig()
	camera := settings.CameraConfig{
		ID:          0,
		LeftDevice:  "/dev/video0",
		RightDevice: "/dev/video2",
		Profile:     "mjpeg_640x480_15_q50",
	}

	command := cameraCommand(camera, media)
	if command.Kind != ipc.CommandStreamStereo {
		t.Errorf("Kind = %q, want %q", command.Kind, ipc.CommandStreamStereo)
	}
	if command.Device != "" {
		t.Errorf("Device = %q, want empty for a stereo pair", command.Device)
	}
	if command.LeftDevice != "/dev/video0" || command.RightDevice != "/dev/video2" {
		t.Errorf("stereo devices = %q/%q, want /dev/video0 and /dev/video2",
			command.LeftDevice, command.RightDevice)
	}
	if command.Port != 5520 {
		t.Errorf("Port = %d, want 5520", command.Port)
	}
}

func TestStopAllCamerasSkipsAudio(t *testing.T) {
	t.Parallel()

	manager, _ := newTestManager(t)
	front := &fakeCommander{}
	rear := &fakeCommander{}
	audio := &fakeCommander{}
	addChild(manager, 0, "camera 0", false, front)
	addChild(manager, 1, "camera 1", false, rear)
	addChild(manager, 100, "audio", true, audio)

	manager.stopAllCameras(context.Background())

	for name, commander := range map[string]*fakeCommander{"front": front, "rear": rear} {
		commands := commander.sent()
		if len(commands) != 1 || commands[0].Kind != ipc.CommandStop {
			t.Errorf("%s camera received %+v, want one stop command", name, commands)
		}
	}
	if commands := audio.sent(); len(commands) != 0 {
		t.Errorf("audio child received %+v, want no commands", commands)
	}
}

func TestActivateAudioUsesExistingChild(t *testing.T) {
	t.Parallel()

	manager, collector := newTestManager(t)
	audio := &fakeCommander{}
	addChild(manager, 100, "audio", true, audio)

	format := wire.AudioFormat{Encoding: wire.AudioEncodingAC3, SampleRate: 48000, Channels: 2}
	if err := manager.activateAudio(context.Background(), format); err != nil {
		t.Fatalf("activateAudio: %v", err)
	}

	commands := audio.sent()
	if len(commands) != 1 {
		t.Fatalf("audio child received %d commands, want 1", len(commands))
	}
	command := commands[0]
	if command.Kind != ipc.CommandStreamAudio {
		t.Errorf("Kind = %q, want %q", command.Kind, ipc.CommandStreamAudio)
	}
	if command.Device != "hw:1" || command.Address != "192.168.1.10" || command.Port != 5512 {
		t.Errorf("destination = %q %q:%d, want hw:1 192.168.1.10:5512",
			command.Device, command.Address, command.Port)
	}
	if command.Audio == nil {
		t.Fatal("command carries no audio parameters")
	}
	if got := command.Audio.Format(); got != format {
		t.Errorf("audio format = %+v, want %+v", got, format)
	}
	if reports := collector.all(); len(reports) != 0 {
		t.Errorf("unexpected stream error reports %+v", reports)
	}
}

func TestActivateAudioRejectionSurfaces(t *testing.T) {
	t.Parallel()

	manager, _ := newTestManager(t)
	audio := &fakeCommander{response: ipc.Response{OK: false, Error: "device busy"}}
	addChild(manager, 100, "audio", true, audio)

	format := wire.AudioFormat{Encoding: wire.AudioEncodingAC3, SampleRate: 48000, Channels: 2}
	err := manager.activateAudio(context.Background(), format)
	if err == nil || !strings.Contains(err.Error(), "device busy") {
		t.Errorf("activateAudio error = %v, want rejection naming the cause", err)
	}
}

func TestDeactivateAudioWithoutChildIsNoop(t *testing.T) {
	t.Parallel()

	manager, collector := newTestManager(t)
	addChild(manager, 0, "camera 0", false, &fakeCommander{})

	if err := manager.deactivateAudio(context.Background()); err != nil {
		t.Fatalf("deactivateAudio: %v", err)
	}
	if reports := collector.all(); len(reports) != 0 {
		t.Errorf("unexpected stream error reports %+v", reports)
	}
}

func TestDeactivateAudioStopsChild(t *testing.T) {
	t.Parallel()

	manager, _ := newTestManager(t)
	audio := &fakeCommander{}
	addChild(manager, 100, "audio", true, audio)

	if err := manager.deactivateAudio(context.Background()); err != nil {
		t.Fatalf("deactivateAudio: %v", err)
	}
	commands := audio.sent()
	if len(commands) != 1 || commands[0].Kind != ipc.CommandStop {
		t.Errorf("audio child received %+v, want one stop command", commands)
	}
}

func TestNotificationMarksStreaming(t *testing.T) {
	t.Parallel()

	manager, collector := newTestManager(t)
	c := addChild(manager, 2, "camera 2", false, &fakeCommander{})

	manager.handleNotification(ipc.Notification{
		Source: ipc.Source{PID: 4242, Instance: c.instance},
		Kind:   ipc.KindStreaming,
	})

	manager.mu.Lock()
	sawStreaming := c.sawStreaming
	manager.mu.Unlock()
	if !sawStreaming {
		t.Error("streaming notification did not mark the child")
	}
	if reports := collector.all(); len(reports) != 0 {
		t.Errorf("unexpected stream error reports %+v", reports)
	}
}

func TestNotificationErrorRelayed(t *testing.T) {
	t.Parallel()

	manager, collector := newTestManager(t)
	c := addChild(manager, 5, "camera 5", false, &fakeCommander{})

	manager.handleNotification(ipc.Notification{
		Source:  ipc.Source{PID: 4242, Instance: c.instance},
		Kind:    ipc.KindError,
		Message: "v4l2 device disappeared",
	})

	reports := collector.all()
	if len(reports) != 1 {
		t.Fatalf("got %d stream error reports, want 1", len(reports))
	}
	if reports[0].mediaID != 5 || reports[0].message != "v4l2 device disappeared" {
		t.Errorf("report = %+v, want media 5 with the pipeline's message", reports[0])
	}
}

func TestNotificationFromUnknownInstanceDropped(t *testing.T) {
	t.Parallel()

	manager, collector := newTestManager(t)
	addChild(manager, 0, "camera 0", false, &fakeCommander{})

	manager.handleNotification(ipc.Notification{
		Source:  ipc.Source{PID: 9999, Instance: uuid.NewString()},
		Kind:    ipc.KindError,
		Message: "late words from a reaped child",
	})

	if reports := collector.all(); len(reports) != 0 {
		t.Errorf("unexpected stream error reports %+v", reports)
	}
}

func TestChildExitedBeforeStreamingReported(t *testing.T) {
	t.Parallel()

	manager, collector := newTestManager(t)
	c := addChild(manager, 1, "camera 1", false, &fakeCommander{})
	c.exitCode = 13

	manager.childExited(c)

	reports := collector.all()
	if len(reports) != 1 {
		t.Fatalf("got %d stream error reports, want 1", len(reports))
	}
	if reports[0].mediaID != 1 {
		t.Errorf("report media = %d, want 1", reports[0].mediaID)
	}
	if !strings.Contains(reports[0].message, "code 13") ||
		!strings.Contains(reports[0].message, "before streaming") {
		t.Errorf("report message = %q, want exit code and startup phrasing", reports[0].message)
	}

	manager.mu.Lock()
	_, stillTracked := manager.children[c.instance]
	manager.mu.Unlock()
	if stillTracked {
		t.Error("exited child still tracked")
	}
}

func TestChildExitedAfterStreamingReported(t *testing.T) {
	t.Parallel()

	manager, collector := newTestManager(t)
	c := addChild(manager, 1, "camera 1", false, &fakeCommander{})
	c.sawStreaming = true
	c.exitCode = 1

	manager.childExited(c)

	reports := collector.all()
	if len(reports) != 1 {
		t.Fatalf("got %d stream error reports, want 1", len(reports))
	}
	if strings.Contains(reports[0].message, "before streaming") {
		t.Errorf("report message = %q, child had already streamed", reports[0].message)
	}
}

func TestDeliberateStopNotReported(t *testing.T) {
	t.Parallel()

	manager, collector := newTestManager(t)
	c := addChild(manager, 1, "camera 1", false, &fakeCommander{})
	c.stopping = true

	manager.childExited(c)

	if reports := collector.all(); len(reports) != 0 {
		t.Errorf("deliberate stop reported as failure: %+v", reports)
	}
}

func TestStartCameraSpawnFailure(t *testing.T) {
	t.Parallel()

	// The configured streamer binary does not exist, so the spawn
	// itself must fail, before any socket waiting.
	manager, _ := newTestManager(t)
	err := manager.startCamera(context.Background(), settings.CameraConfig{
		ID:      0,
		Device:  "/dev/video0",
		Profile: "mjpeg_640x480_15_q50",
	})
	if err == nil {
		t.Fatal("startCamera succeeded with a nonexistent binary")
	}
	if !strings.Contains(err.Error(), "starting streamer") {
		t.Errorf("error = %v, want spawn failure", err)
	}
}

func TestStopCommandFailureDoesNotPanic(t *testing.T) {
	t.Parallel()

	manager, _ := newTestManager(t)
	addChild(manager, 0, "camera 0", false, &fakeCommander{err: errors.New("connection refused")})

	manager.stopAllCameras(context.Background())
}
