// Copyright 2026 The University of Oklahoma.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"golang.org/x/term"

	"github.com/doublejinitials/rover-research/lib/channel"
	"github.com/doublejinitials/rover-research/lib/clock"
	"github.com/doublejinitials/rover-research/lib/control"
	"github.com/doublejinitials/rover-research/lib/datalog"
	"github.com/doublejinitials/rover-research/lib/settings"
	"github.com/doublejinitials/rover-research/lib/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  string
		showVersion bool
	)
	flag.StringVar(&configPath, "config", "", "path to the rover config file (defaults to $ROVER_CONFIG)")
	flag.BoolVar(&showVersion, "version", false, "print version information and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("rover-control %s\n", version.Info())
		return nil
	}

	logger := newLogger()
	slog.SetDefault(logger)

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	audioFormat, err := cfg.Media.Audio.AudioFormat()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clk := clock.Real()

	mainChannel := channel.Client(channel.Config{
		Name:    "main",
		Address: fmt.Sprintf("%s:%d", cfg.Rover.Address, cfg.Channels.MainPort),
		Logger:  logger,
		Clock:   clk,
	})
	driveChannel := channel.Client(channel.Config{
		Name:    "drive",
		Address: fmt.Sprintf("%s:%d", cfg.Rover.Address, cfg.Channels.DrivePort),
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

	ui := newConsoleUI(logger)

	// The recorder creates the data directory itself on first start;
	// the runtime directory is the rover's business, not created here.
	recorder := datalog.NewRecorder(cfg.Recording.Dir, clk, logger)
	parser := datalog.NewSensorParser(recorder, logger)
	session := control.NewRecordingSession(control.SessionConfig{
		Logger:   logger,
		Clock:    clk,
		Recorder: recorder,
		Sender:   mainChannel,
		UI:       ui,
	})
	dispatcher := control.NewDispatcher(control.DispatcherConfig{
		Logger:       logger,
		UI:           ui,
		GPS:          recorder,
		Sensors:      parser,
		Session:      session,
		Sender:       mainChannel,
		AudioMediaID: int32(cfg.Media.AudioMediaID),
	})

	cons := &console{
		out:        os.Stdout,
		ui:         ui,
		session:    session,
		dispatcher: dispatcher,
		recorder:   recorder,
		main:       mainChannel,
		drive:      driveChannel,
		audio:      audioFormat,
	}

	// The stdin reader cannot be unblocked on shutdown; it is a plain
	// goroutine that dies with the process.
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	stopRecording := func() {
		if recorder.Recording() {
			session.Stop()
		}
	}

	logger.Info("mission control ready",
		"rover", cfg.Rover.Address,
		"main_port", cfg.Channels.MainPort,
		"drive_port", cfg.Channels.DrivePort,
	)
	fmt.Println(`rover-control console; type "help" for commands`)

	// Delivery channels close when the radio channels shut down, which
	// the context cancellation triggers; a closed channel is taken out
	// of the select rather than spinning.
	mainMessages := mainChannel.Messages()
	mainStates := mainChannel.States()
	driveMessages := driveChannel.Messages()
	driveStates := driveChannel.States()

	wasConnected := false
	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			stopRecording()
			return nil

		case line, ok := <-lines:
			if !ok {
				// stdin closed, same as quit.
				stopRecording()
				return nil
			}
			if cons.execute(line) {
				stopRecording()
				return nil
			}

		case message, ok := <-mainMessages:
			if !ok {
				mainMessages = nil
				continue
			}
			dispatcher.HandleMessage(message)

		case state, ok := <-mainStates:
			if !ok {
				mainStates = nil
				continue
			}
			switch state {
			case channel.StateConnected:
				wasConnected = true
				ui.Notify(control.SeverityInfo, "Rover Connected",
					"The main control channel is up.")
			case channel.StateConnecting:
				if wasConnected {
					ui.Notify(control.SeverityWarning, "Rover Connection Lost",
						"Attempting to reconnect.")
				}
			}

		case frame, ok := <-driveMessages:
			if !ok {
				driveMessages = nil
				continue
			}
			// The rover sends nothing on the drive channel.
			logger.Debug("unexpected drive channel message", "bytes", len(frame))

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

// newLogger builds the session log. On a terminal the log is the
// operator's second screen, colorized and lightly timestamped; piped,
// it matches the rover agent's JSON so one set of tooling parses both
// sides of a session capture.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("ROVER_DEBUG") != "" {
		level = slog.LevelDebug
	}
	if term.IsTerminal(int(os.Stderr.Fd())) {
		return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: time.TimeOnly,
		}))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}
