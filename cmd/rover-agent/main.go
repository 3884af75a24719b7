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
	"time"

	"github.com/doublejinitials/rover-research/lib/channel"
	"github.com/doublejinitials/rover-research/lib/clock"
	"github.com/doublejinitials/rover-research/lib/control"
	"github.com/doublejinitials/rover-research/lib/datalog"
	"github.com/doublejinitials/rover-research/lib/ipc"
	"github.com/doublejinitials/rover-research/lib/media"
	"github.com/doublejinitials/rover-research/lib/settings"
	"github.com/doublejinitials/rover-research/lib/version"
	"github.com/doublejinitials/rover-research/lib/wire"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath        string
		simulateTelemetry bool
		showVersion       bool
	)
	flag.StringVar(&configPath, "config", "", "path to the rover config file (defaults to $ROVER_CONFIG)")
	flag.BoolVar(&simulateTelemetry, "simulate-telemetry", false, "publish a synthetic GPS fix and sensor readings instead of reading hardware")
	flag.BoolVar(&showVersion, "version", false, "print version information and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("rover-agent %s\n", version.Info())
		return nil
	}

	logLevel := slog.LevelInfo
	if os.Getenv("ROVER_DEBUG") != "" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.EnsureDirs(); err != nil {
		return err
	}
	if err := ipc.ValidateRuntimeDir(cfg.Media.RuntimeDir); err != nil {
		return err
	}
	streamerBin, err := cfg.StreamerPath()
	if err != nil {
		return err
	}

	// A profile typo should fail here, not minutes later inside a
	// streamer child.
	for _, camera := range cfg.Media.Cameras {
		if _, err := media.ParseVideoProfile(camera.Profile); err != nil {
			return fmt.Errorf("camera %d: %w", camera.ID, err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clk := clock.Real()

	mainChannel := channel.Server(channel.Config{
		Name:    "main",
		Address: fmt.Sprintf(":%d", cfg.Channels.MainPort),
		Logger:  logger,
		Clock:   clk,
	})
	driveChannel := channel.Server(channel.Config{
		Name:    "drive",
		Address: fmt.Sprintf(":%d", cfg.Channels.DrivePort),
		Logger:  logger,
		Clock:   clk,
	})
	if err := mainChannel.Open(ctx); err != nil {
		return fmt.Errorf("opening main channel: %w", err)
	}
	defer mainChannel.Close()
	if err := driveChannel.Open(ctx); err != nil {
		return fmt.Errorf("opening drive channel: %w", err)
	}
	defer driveChannel.Close()

	// Teleoperation latency studies delay the drive frames on the
	// receiving side, between the radio and the drive sink.
	if cfg.Channels.SimulatedLatencyMS > 0 {
		driveChannel.SetSimulatedDelay(time.Duration(cfg.Channels.SimulatedLatencyMS) * time.Millisecond)
	}

	// Failed streams are reported over the main channel. Between
	// operator sessions there is nobody to tell; the log still has it.
	reportStreamError := func(mediaID int32, message string) {
		err := mainChannel.Send(wire.EncodeMediaServerError(mediaID, message))
		if errors.Is(err, channel.ErrNotConnected) {
			logger.Debug("stream error not relayed, no operator connected", "media_id", mediaID)
			return
		}
		if err != nil {
			logger.Warn("relaying stream error", "media_id", mediaID, "error", err)
		}
	}

	recorder := datalog.NewRecorder(cfg.Recording.Dir, clk, logger)
	session := control.NewRecordingSession(control.SessionConfig{
		Logger:   logger,
		Clock:    clk,
		Recorder: recorder,
		Sender:   mainChannel,
		UI:       logInterface{logger: logger},
	})

	manager := newChildManager(childManagerConfig{
		Logger:        logger,
		Media:         cfg.Media,
		StreamerBin:   streamerBin,
		OnStreamError: reportStreamError,
	})

	notifyListener, err := ipc.Listen(ipc.NotifySocketPath(cfg.Media.RuntimeDir))
	if err != nil {
		return fmt.Errorf("notification socket: %w", err)
	}
	notifyServer := ipc.NewNotificationServer(notifyListener, manager.handleNotification, logger)
	defer notifyServer.Close()

	// Cameras stream from boot. One camera failing to come up must not
	// take the rover down; the failure is reported and the rest carry
	// on.
	for _, camera := range cfg.Media.Cameras {
		if err := manager.startCamera(ctx, camera); err != nil {
			logger.Error("camera failed to start", "camera", camera.ID, "error", err)
			reportStreamError(int32(camera.ID), err.Error())
		}
	}

	router := &messageRouter{
		logger:       logger,
		session:      session,
		children:     manager,
		audioMediaID: int32(cfg.Media.AudioMediaID),
		report:       reportStreamError,
	}

	if simulateTelemetry {
		parser := datalog.NewSensorParser(recorder, logger)
		simulator := newSimulatedTelemetry(telemetryConfig{
			Logger: logger,
			Clock:  clk,
			GPS: func(fix wire.GPSFix) {
				recorder.AddLocation(fix)
				err := mainChannel.Send(wire.EncodeGPSUpdate(fix))
				if err != nil && !errors.Is(err, channel.ErrNotConnected) {
					logger.Warn("sending gps update", "error", err)
				}
			},
			Sensors: func(record []byte) {
				parser.HandleSensorData(record)
				err := mainChannel.Send(wire.EncodeSensorUpdate(record))
				if err != nil && !errors.Is(err, channel.ErrNotConnected) {
					logger.Warn("sending sensor update", "error", err)
				}
			},
		})
		go simulator.run(ctx)
	}

	drive := &driveSink{logger: logger}

	logger.Info("rover agent ready",
		"main_port", cfg.Channels.MainPort,
		"drive_port", cfg.Channels.DrivePort,
		"cameras", len(cfg.Media.Cameras),
	)

	// Delivery channels close when the radio channels shut down, which
	// the context cancellation triggers; a closed channel is taken out
	// of the select rather than spinning.
	mainMessages := mainChannel.Messages()
	mainStates := mainChannel.States()
	driveMessages := driveChannel.Messages()
	driveStates := driveChannel.States()

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			if recorder.Recording() {
				session.Stop()
			}
			manager.shutdown()
			return nil

		case message, ok := <-mainMessages:
			if !ok {
				mainMessages = nil
				continue
			}
			router.handleMessage(ctx, message)

		case state, ok := <-mainStates:
			if !ok {
				mainStates = nil
				continue
			}
			logger.Info("main channel state", "state", state.String())
			if state == channel.StateConnected {
				if err := mainChannel.Send(wire.EncodeRoverStatusUpdate(true)); err != nil {
					logger.Warn("sending rover status", "error", err)
				}
			}

		case frame, ok := <-driveMessages:
			if !ok {
				driveMessages = nil
				continue
			}
			drive.handleFrame(frame)

		case state, ok := <-driveStates:
			if !ok {
				driveStates = nil
				continue
			}
			logger.Debug("drive channel state", "state", state.String())
		}
	}
}

func loadConfig(path string) (*settings.Config, error) {
	if path != "" {
		return settings.LoadFile(path)
	}
	return settings.Load()
}

// logInterface satisfies control.UserInterface for the headless agent:
// session and status changes land in the structured log instead of an
// operator console.
type logInterface struct {
	logger *slog.Logger
}

var _ control.UserInterface = logInterface{}

func (l logInterface) Notify(severity control.Severity, title, message string) {
	switch severity {
	case control.SeverityError:
		l.logger.Error(message, "title", title)
	case control.SeverityWarning:
		l.logger.Warn(message, "title", title)
	default:
		l.logger.Info(message, "title", title)
	}
}

func (l logInterface) SetMbedStatus(status string) {
	l.logger.Info("controller status", "status", status)
}

func (l logInterface) SetRecordingState(phase control.Phase) {
	l.logger.Info("recording state", "state", phase.String())
}

func (l logInterface) UpdateGPSLocation(fix wire.GPSFix) {
	l.logger.Debug("position", "fix", fix.String())
}
