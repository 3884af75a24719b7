// Copyright 2026 The University of Oklahoma.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/doublejinitials/rover-research/lib/ipc"
	"github.com/doublejinitials/rover-research/lib/settings"
	"github.com/doublejinitials/rover-research/lib/wire"
)

const (
	// socketWaitTimeout bounds how long a freshly spawned streamer gets
	// to create its command socket.
	socketWaitTimeout = 10 * time.Second

	// childStopTimeout bounds the shutdown grace period between
	// SIGTERM and SIGKILL, shared across all children.
	childStopTimeout = 5 * time.Second
)

// commander is the slice of ipc.CommandClient the manager uses. Tests
// substitute an in-memory fake.
type commander interface {
	Send(ctx context.Context, command ipc.Command) (ipc.Response, error)
	Close()
}

// child is one running rover-media-streamer process.
type child struct {
	mediaID  int32
	name     string // "camera 3", "audio"; used in logs and errors
	instance string
	isAudio  bool
	client   commander

	process *os.Process

	// done closes after the reaper collects the exit status. exitCode
	// is written before the close and must only be read after it.
	done     chan struct{}
	exitCode int

	// sawStreaming and stopping are guarded by the manager's mutex.
	sawStreaming bool
	stopping     bool
}

// childManagerConfig holds the collaborators a childManager is built
// from. All fields are required.
type childManagerConfig struct {
	Logger *slog.Logger

	// Media supplies devices, destination address and ports, and the
	// audio media ID.
	Media settings.MediaConfig

	// StreamerBin is the resolved path of the rover-media-streamer
	// binary.
	StreamerBin string

	// OnStreamError reports a failed stream. mediaID is the camera ID
	// or the audio media ID. Called from child reaper and notification
	// reader goroutines; implementations must be safe for that.
	OnStreamError func(mediaID int32, message string)
}

// childManager owns the streamer children: spawning, commanding,
// relaying their notifications, and tearing them down. One camera or
// the audio input maps to exactly one child; a child that exits is
// removed and never respawned on its own.
type childManager struct {
	logger        *slog.Logger
	media         settings.MediaConfig
	streamerBin   string
	onStreamError func(mediaID int32, message string)

	mu       sync.Mutex
	children map[string]*child // keyed by instance
}

func newChildManager(config childManagerConfig) *childManager {
	return &childManager{
		logger:        config.Logger,
		media:         config.Media,
		streamerBin:   config.StreamerBin,
		onStreamError: config.OnStreamError,
		children:      make(map[string]*child),
	}
}

// spawn starts one streamer process and waits for its command socket.
// The child is registered before the wait so notifications arriving
// during startup find their owner. On error the process is dead and
// deregistered.
func (m *childManager) spawn(name string, mediaID int32, isAudio bool) (*child, error) {
	instance := uuid.NewString()
	socketPath := ipc.CommandSocketPath(m.media.RuntimeDir, instance)

	cmd := exec.Command(m.streamerBin,
		"--runtime-dir", m.media.RuntimeDir,
		"--instance", instance)
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting streamer for %s: %w", name, err)
	}

	c := &child{
		mediaID:  mediaID,
		name:     name,
		instance: instance,
		isAudio:  isAudio,
		client:   ipc.NewCommandClient(socketPath),
		process:  cmd.Process,
		done:     make(chan struct{}),
	}

	m.mu.Lock()
	m.children[instance] = c
	m.mu.Unlock()

	m.logger.Info("streamer spawned",
		"stream", name, "pid", cmd.Process.Pid, "instance", instance)

	// Reap in the background so a dead child never lingers as a
	// zombie, whether or not anyone is waiting on it.
	go func() {
		waitError := cmd.Wait()
		exitCode := 0
		if waitError != nil {
			var exitErr *exec.ExitError
			if errors.As(waitError, &exitErr) {
				exitCode = exitErr.ExitCode()
			} else {
				exitCode = -1
			}
		}
		c.exitCode = exitCode
		close(c.done)
		m.childExited(c)
	}()

	if err := awaitSocket(socketPath, c.done); err != nil {
		m.mu.Lock()
		c.stopping = true
		m.mu.Unlock()
		if killErr := c.process.Kill(); killErr != nil && !errors.Is(killErr, os.ErrProcessDone) {
			m.logger.Warn("killing unresponsive streamer", "stream", name, "error", killErr)
		}
		<-c.done
		return nil, fmt.Errorf("streamer for %s: %w", name, err)
	}
	return c, nil
}

// awaitSocket blocks until socketPath exists, the process exits first,
// or the timeout lapses. The existence check runs after the watch is
// installed, closing the race against a socket that appears in
// between.
func awaitSocket(socketPath string, processDone <-chan struct{}) error {
	ready, cancel, err := watchForFile(filepath.Dir(socketPath), filepath.Base(socketPath))
	if err != nil {
		return fmt.Errorf("watching for command socket: %w", err)
	}
	defer cancel()

	if _, err := os.Stat(socketPath); err == nil {
		return nil
	}

	select {
	case <-ready:
		return nil
	case <-processDone:
		return fmt.Errorf("process exited before creating %s", socketPath)
	case <-time.After(socketWaitTimeout):
		return fmt.Errorf("command socket %s did not appear within %s", socketPath, socketWaitTimeout)
	}
}

// startCamera spawns the child for one configured camera and commands
// it to stream to the ground station.
func (m *childManager) startCamera(ctx context.Context, camera settings.CameraConfig) error {
	name := fmt.Sprintf("camera %d", camera.ID)
	c, err := m.spawn(name, int32(camera.ID), false)
	if err != nil {
		return err
	}

	response, err := c.client.Send(ctx, cameraCommand(camera, m.media))
	if err != nil {
		return fmt.Errorf("commanding %s: %w", name, err)
	}
	if !response.OK {
		return fmt.Errorf("%s rejected stream: %s", name, response.Error)
	}
	return nil
}

// cameraCommand maps one camera's configuration onto the streamer
// command that starts it.
func cameraCommand(camera settings.CameraConfig, media settings.MediaConfig) ipc.Command {
	command := ipc.Command{
		Kind:    ipc.CommandStream,
		Device:  camera.Device,
		Address: media.Destination,
		Port:    media.VideoPort(camera.ID),
		Profile: camera.Profile,
		HWAccel: camera.HWAccel,
	}
	if camera.Stereo() {
		command.Kind = ipc.CommandStreamStereo
		command.Device = ""
		command.LeftDevice = camera.LeftDevice
		command.RightDevice = camera.RightDevice
	}
	return command
}

// stopAllCameras commands every video child to stop streaming. The
// children stay alive and idle; only their pipelines are torn down.
// Command failures are logged, not returned: a child that cannot be
// reached is already being handled by its reaper.
func (m *childManager) stopAllCameras(ctx context.Context) {
	m.mu.Lock()
	cameras := make([]*child, 0, len(m.children))
	for _, c := range m.children {
		if !c.isAudio {
			cameras = append(cameras, c)
		}
	}
	m.mu.Unlock()

	for _, c := range cameras {
		response, err := c.client.Send(ctx, ipc.Command{Kind: ipc.CommandStop})
		switch {
		case err != nil:
			m.logger.Warn("stop command failed", "stream", c.name, "error", err)
		case !response.OK:
			m.logger.Warn("stop command rejected", "stream", c.name, "error", response.Error)
		default:
			m.logger.Info("stream stopped", "stream", c.name)
		}
	}
}

// activateAudio commands the audio child to stream in the requested
// format, spawning the child first if it is not running.
func (m *childManager) activateAudio(ctx context.Context, format wire.AudioFormat) error {
	c := m.audioChild()
	if c == nil {
		spawned, err := m.spawn("audio", int32(m.media.AudioMediaID), true)
		if err != nil {
			return err
		}
		c = spawned
	}

	audio := ipc.NewAudioParams(format)
	response, err := c.client.Send(ctx, ipc.Command{
		Kind:    ipc.CommandStreamAudio,
		Device:  m.media.Audio.Device,
		Address: m.media.Destination,
		Port:    m.media.AudioPort,
		Audio:   &audio,
	})
	if err != nil {
		return fmt.Errorf("commanding audio streamer: %w", err)
	}
	if !response.OK {
		return fmt.Errorf("audio streamer rejected stream: %s", response.Error)
	}
	return nil
}

// deactivateAudio stops the audio stream. A no-op when the audio child
// was never started.
func (m *childManager) deactivateAudio(ctx context.Context) error {
	c := m.audioChild()
	if c == nil {
		m.logger.Debug("audio deactivation ignored, no audio streamer")
		return nil
	}

	response, err := c.client.Send(ctx, ipc.Command{Kind: ipc.CommandStop})
	if err != nil {
		return fmt.Errorf("commanding audio streamer: %w", err)
	}
	if !response.OK {
		return fmt.Errorf("audio streamer rejected stop: %s", response.Error)
	}
	return nil
}

func (m *childManager) audioChild() *child {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.children {
		if c.isAudio {
			return c
		}
	}
	return nil
}

// handleNotification routes one message from the notification socket
// to the owning child. Runs on the notification server's reader
// goroutines.
func (m *childManager) handleNotification(n ipc.Notification) {
	m.mu.Lock()
	c, ok := m.children[n.Source.Instance]
	if ok && n.Kind == ipc.KindStreaming {
		c.sawStreaming = true
	}
	m.mu.Unlock()

	if !ok {
		// Most likely a child we already reaped; its last words race
		// the reaper by nature.
		m.logger.Warn("notification from unknown streamer",
			"instance", n.Source.Instance, "pid", n.Source.PID, "kind", n.Kind)
		return
	}

	switch n.Kind {
	case ipc.KindReady:
		m.logger.Info("streamer ready", "stream", c.name, "pid", n.Source.PID)
	case ipc.KindStreaming:
		m.logger.Info("stream playing", "stream", c.name)
	case ipc.KindError:
		m.logger.Error("stream failed", "stream", c.name, "error", n.Message)
		m.onStreamError(c.mediaID, n.Message)
	case ipc.KindLog:
		m.logger.Info(n.Message, "stream", c.name, "tag", n.Tag)
	default:
		m.logger.Warn("unknown notification kind", "stream", c.name, "kind", n.Kind)
	}
}

// childExited runs on the reaper goroutine after the exit status is
// collected. A child that dies before its first stream never had a
// working pipeline, so the exit is reported as that stream's failure;
// deliberate stops are logged and nothing more.
func (m *childManager) childExited(c *child) {
	m.mu.Lock()
	delete(m.children, c.instance)
	stopping := c.stopping
	sawStreaming := c.sawStreaming
	m.mu.Unlock()

	c.client.Close()

	switch {
	case stopping:
		m.logger.Info("streamer exited",
			"stream", c.name, "exit_code", c.exitCode)
	case !sawStreaming:
		m.logger.Error("streamer failed at startup",
			"stream", c.name, "exit_code", c.exitCode)
		m.onStreamError(c.mediaID,
			fmt.Sprintf("streamer exited with code %d before streaming", c.exitCode))
	default:
		m.logger.Error("streamer exited unexpectedly",
			"stream", c.name, "exit_code", c.exitCode)
		m.onStreamError(c.mediaID,
			fmt.Sprintf("streamer exited with code %d", c.exitCode))
	}
}

// shutdown terminates every child: SIGTERM first, SIGKILL for
// stragglers after a shared grace period. Returns once all reapers
// have finished.
func (m *childManager) shutdown() {
	m.mu.Lock()
	children := make([]*child, 0, len(m.children))
	for _, c := range m.children {
		c.stopping = true
		children = append(children, c)
	}
	m.mu.Unlock()

	for _, c := range children {
		if err := c.process.Signal(syscall.SIGTERM); err != nil &&
			!errors.Is(err, os.ErrProcessDone) {
			m.logger.Warn("signaling streamer", "stream", c.name, "error", err)
		}
	}

	deadline := time.Now().Add(childStopTimeout)
	for _, c := range children {
		select {
		case <-c.done:
		case <-time.After(time.Until(deadline)):
			m.logger.Warn("streamer ignored SIGTERM, killing", "stream", c.name)
			if err := c.process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
				m.logger.Warn("killing streamer", "stream", c.name, "error", err)
			}
			<-c.done
		}
	}
}
