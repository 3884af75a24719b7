// Copyright 2026 The University of Oklahoma.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/tinyzimmer/go-gst/gst"

	"github.com/doublejinitials/rover-research/lib/ipc"
	"github.com/doublejinitials/rover-research/lib/media"
	"github.com/doublejinitials/rover-research/lib/version"
)

// Fatal startup exit codes. The agent reads these from the child's
// wait status to tell which startup requirement failed.
const (
	// exitRuntimeDir means the runtime directory is missing or
	// unusable.
	exitRuntimeDir = 12
	// exitCommandSocket means the streamer could not listen on its
	// own command socket.
	exitCommandSocket = 13
	// exitNotifySocket means the parent's notification socket could
	// not be dialed.
	exitNotifySocket = 14
)

// exitError carries the process exit code for a fatal startup failure.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		var exit *exitError
		if errors.As(err, &exit) {
			os.Exit(exit.code)
		}
		os.Exit(1)
	}
}

func run() error {
	var (
		runtimeDir  string
		instance    string
		showVersion bool
	)
	flag.StringVar(&runtimeDir, "runtime-dir", "/run/rover", "directory holding the agent's notification socket and this streamer's command socket")
	flag.StringVar(&instance, "instance", "", "instance identifier assigned by the agent (required)")
	flag.BoolVar(&showVersion, "version", false, "print version information and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("rover-media-streamer %s\n", version.Info())
		return nil
	}

	if instance == "" {
		return fmt.Errorf("--instance is required")
	}

	logLevel := slog.LevelInfo
	if os.Getenv("ROVER_DEBUG") != "" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// GStreamer wants global initialization before the first pipeline
	// is built.
	gst.Init(nil)

	// Startup checks, in order, each fatal with its own exit code.
	// Without the runtime directory and both sockets the process has
	// no channel left to report problems on, so there is nothing to
	// retry.
	if err := ipc.ValidateRuntimeDir(runtimeDir); err != nil {
		return &exitError{code: exitRuntimeDir, err: err}
	}
	listener, err := ipc.Listen(ipc.CommandSocketPath(runtimeDir, instance))
	if err != nil {
		return &exitError{code: exitCommandSocket, err: fmt.Errorf("command socket: %w", err)}
	}
	source := ipc.Source{PID: int32(os.Getpid()), Instance: instance}
	notifier, err := ipc.NewChildNotifier(ipc.NotifySocketPath(runtimeDir), source, logger)
	if err != nil {
		listener.Close()
		return &exitError{code: exitNotifySocket, err: err}
	}
	defer notifier.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	supervisor := media.NewSupervisor(media.SupervisorConfig{
		Logger:   logger,
		Notifier: notifier,
		Factory:  media.NewGStreamerPipeline,
	})

	server := ipc.NewCommandServer(listener, routeCommand(supervisor), logger)
	defer server.Close()

	notifier.ChildReady()
	logger.Info("media streamer ready",
		"instance", instance,
		"pid", os.Getpid(),
		"runtime_dir", runtimeDir,
	)

	supervisor.Run(ctx)
	logger.Info("shutting down")
	return nil
}

// routeCommand translates decoded commands into supervisor calls.
// Acceptance is synchronous; outcomes arrive on the notification
// plane.
func routeCommand(supervisor *media.Supervisor) ipc.CommandHandler {
	return func(command ipc.Command) ipc.Response {
		switch command.Kind {
		case ipc.CommandStream:
			profile, err := media.ParseVideoProfile(command.Profile)
			if err != nil {
				return ipc.Response{OK: false, Error: err.Error()}
			}
			supervisor.Stream(command.Device, command.Address, command.Port, profile, command.HWAccel)
		case ipc.CommandStreamStereo:
			profile, err := media.ParseVideoProfile(command.Profile)
			if err != nil {
				return ipc.Response{OK: false, Error: err.Error()}
			}
			supervisor.StreamStereo(command.LeftDevice, command.RightDevice, command.Address, command.Port, profile, command.HWAccel)
		case ipc.CommandStreamAudio:
			if command.Audio == nil {
				return ipc.Response{OK: false, Error: "stream-audio command carries no audio parameters"}
			}
			supervisor.StreamAudio(command.Device, command.Address, command.Port, command.Audio.Format())
		case ipc.CommandStop:
			supervisor.Stop()
		default:
			return ipc.Response{OK: false, Error: fmt.Sprintf("unknown command kind %q", command.Kind)}
		}
		return ipc.Response{OK: true}
	}
}
