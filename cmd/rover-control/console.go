// Copyright 2026 The University of Oklahoma.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/doublejinitials/rover-research/lib/channel"
	"github.com/doublejinitials/rover-research/lib/control"
	"github.com/doublejinitials/rover-research/lib/datalog"
	"github.com/doublejinitials/rover-research/lib/wire"
)

// consoleUI is the headless stand-in for the operator GUI. Everything
// a GUI would display goes to the structured log, and the latest
// values are kept so the status command can replay them on demand.
// Calls arrive from the channel-delivery goroutine and the console.
type consoleUI struct {
	logger *slog.Logger

	mu         sync.Mutex
	mbedStatus string
	phase      control.Phase
	fix        wire.GPSFix
	haveFix    bool
}

var _ control.UserInterface = (*consoleUI)(nil)

func newConsoleUI(logger *slog.Logger) *consoleUI {
	return &consoleUI{logger: logger, mbedStatus: "Unknown"}
}

func (u *consoleUI) Notify(severity control.Severity, title, message string) {
	switch severity {
	case control.SeverityError:
		u.logger.Error(message, "title", title)
	case control.SeverityWarning:
		u.logger.Warn(message, "title", title)
	default:
		u.logger.Info(message, "title", title)
	}
}

func (u *consoleUI) SetMbedStatus(status string) {
	u.mu.Lock()
	u.mbedStatus = status
	u.mu.Unlock()
	u.logger.Info("onboard controller status", "status", status)
}

func (u *consoleUI) SetRecordingState(phase control.Phase) {
	u.mu.Lock()
	u.phase = phase
	u.mu.Unlock()
	u.logger.Info("recording state", "state", phase.String())
}

func (u *consoleUI) UpdateGPSLocation(fix wire.GPSFix) {
	u.mu.Lock()
	u.fix = fix
	u.haveFix = true
	u.mu.Unlock()
	u.logger.Debug("rover position", "fix", fix.String())
}

// uiSnapshot is the latest rover state, for the status command.
type uiSnapshot struct {
	MbedStatus string
	Phase      control.Phase
	Fix        wire.GPSFix
	HaveFix    bool
}

func (u *consoleUI) snapshot() uiSnapshot {
	u.mu.Lock()
	defer u.mu.Unlock()
	return uiSnapshot{
		MbedStatus: u.mbedStatus,
		Phase:      u.phase,
		Fix:        u.fix,
		HaveFix:    u.haveFix,
	}
}

// console executes operator commands. Command output goes to out;
// protocol effects go through the session and dispatcher, exactly as
// a GUI's buttons would.
type console struct {
	out        io.Writer
	ui         *consoleUI
	session    *control.RecordingSession
	dispatcher *control.Dispatcher
	recorder   *datalog.Recorder
	main       *channel.Channel
	drive      *channel.Channel
	audio      wire.AudioFormat
}

// execute runs one console line. Reports whether the operator asked
// to quit.
func (c *console) execute(line string) (quit bool) {
	args := strings.Fields(line)
	if len(args) == 0 {
		return false
	}

	switch args[0] {
	case "record":
		c.session.Toggle()

	case "audio":
		c.audioCommand(args[1:])

	case "stop-cameras":
		c.report(c.dispatcher.SendStopAllCameraStreams())

	case "status":
		c.printStatus()

	case "help":
		c.printHelp()

	case "quit", "exit":
		return true

	default:
		fmt.Fprintf(c.out, "unknown command %q; try help\n", args[0])
	}
	return false
}

func (c *console) audioCommand(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(c.out, "usage: audio on|off")
		return
	}
	switch args[0] {
	case "on":
		err := c.dispatcher.SendActivateAudioStream(c.audio)
		if errors.Is(err, control.ErrUnusableFormat) {
			fmt.Fprintln(c.out, "audio is disabled in the configuration")
			return
		}
		c.report(err)
	case "off":
		c.report(c.dispatcher.SendDeactivateAudioStream())
	default:
		fmt.Fprintln(c.out, "usage: audio on|off")
	}
}

// report prints a command failure where the operator is looking. The
// common one is a dead link.
func (c *console) report(err error) {
	if err == nil {
		return
	}
	if errors.Is(err, channel.ErrNotConnected) {
		fmt.Fprintln(c.out, "not connected to the rover")
		return
	}
	fmt.Fprintf(c.out, "command failed: %v\n", err)
}

func (c *console) printStatus() {
	snap := c.ui.snapshot()

	fmt.Fprintf(c.out, "main channel:  %s, rtt %s\n", c.main.State(), formatRTT(c.main.RTT()))
	fmt.Fprintf(c.out, "drive channel: %s, rtt %s\n", c.drive.State(), formatRTT(c.drive.RTT()))
	fmt.Fprintf(c.out, "controller:    %s\n", snap.MbedStatus)
	if path := c.recorder.Path(); path != "" {
		fmt.Fprintf(c.out, "recording:     %s (%s)\n", snap.Phase, path)
	} else {
		fmt.Fprintf(c.out, "recording:     %s\n", snap.Phase)
	}
	if snap.HaveFix {
		fmt.Fprintf(c.out, "position:      %s\n", snap.Fix)
	}
}

func (c *console) printHelp() {
	fmt.Fprint(c.out, `commands:
  record        toggle synchronized data recording
  audio on|off  start or stop the rover's audio stream
  stop-cameras  stop every video stream
  status        show link, recording, and rover state
  quit          exit
`)
}

// formatRTT renders a round trip for the status display. Negative
// means no heartbeat has completed yet.
func formatRTT(rtt time.Duration) string {
	if rtt < 0 {
		return "n/a"
	}
	return rtt.Round(100 * time.Microsecond).String()
}
