// Copyright 2026 The University of Oklahoma.
// SPDX-License-Identifier: Apache-2.0

// rover-control is the mission control console for the research rover.
// It dials both of the rover's channels, runs the operator's side of
// the control protocol, and keeps the ground station's copy of the
// synchronized data log, so a run leaves matching records on both
// machines.
//
// Commands are read line by line from stdin:
//
//	record        toggle synchronized data recording
//	audio on|off  start or stop the rover's audio stream
//	stop-cameras  stop every video stream
//	status        show link, recording, and rover state
//	help          list commands
//	quit          exit
//
// The operator GUI (video panes, map, gamepad input) is a separate
// program; everything it would display lands in the structured log
// instead, and the latest values are replayed by status. When stderr
// is a terminal the log is colorized for reading; piped, it switches
// to the same JSON the rover agent writes, so one set of tooling
// parses a whole session capture.
//
// No drive frames originate here. The drive channel is still dialed so
// the link is up, heartbeated, and visible in status.
package main
