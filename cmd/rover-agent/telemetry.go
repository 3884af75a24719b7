// Copyright 2026 The University of Oklahoma.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/doublejinitials/rover-research/lib/clock"
	"github.com/doublejinitials/rover-research/lib/wire"
)

const (
	gpsInterval    = 1 * time.Second
	sensorInterval = 200 * time.Millisecond
)

// wheelTags and imuTags are the record tags the onboard controller
// firmware emits; lib/datalog maps them to series names. Both lists
// change together with the firmware.
var (
	wheelTags = []string{"A", "B", "C", "D", "E", "F"}
	imuTags   = []string{"X", "Y", "Z", "P", "Q", "R"}
)

// simulatedTelemetry stands in for the rover's sensor hardware during
// bench testing: a GPS fix random-walking around the test field and
// synthetic wheel power and IMU readings in the firmware's record
// format. Readings go to the injected sinks, which fan them out to
// mission control and the local data log.
type simulatedTelemetry struct {
	logger  *slog.Logger
	clock   clock.Clock
	gps     func(wire.GPSFix)
	sensors func(record []byte)

	fix wire.GPSFix
}

// telemetryConfig holds the collaborators a simulatedTelemetry is
// built from. All fields are required.
type telemetryConfig struct {
	Logger  *slog.Logger
	Clock   clock.Clock
	GPS     func(wire.GPSFix)
	Sensors func(record []byte)
}

func newSimulatedTelemetry(config telemetryConfig) *simulatedTelemetry {
	return &simulatedTelemetry{
		logger:  config.Logger,
		clock:   config.Clock,
		gps:     config.GPS,
		sensors: config.Sensors,

		// The walk starts on the university's south research campus.
		fix: wire.GPSFix{
			Latitude:   35.1792,
			Longitude:  -97.4385,
			Altitude:   357,
			Heading:    90,
			Satellites: 9,
		},
	}
}

// run publishes readings until the context is cancelled. Sinks are
// called from this goroutine only.
func (s *simulatedTelemetry) run(ctx context.Context) {
	s.logger.Info("simulating telemetry",
		"gps_interval", gpsInterval.String(), "sensor_interval", sensorInterval.String())

	gpsTicker := s.clock.NewTicker(gpsInterval)
	defer gpsTicker.Stop()
	sensorTicker := s.clock.NewTicker(sensorInterval)
	defer sensorTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-gpsTicker.C:
			s.step()
			s.gps(s.fix)
		case <-sensorTicker.C:
			s.sensors(s.sensorRecord())
		}
	}
}

// step advances the random walk by one GPS epoch. The position moves
// about a meter per step, the heading wanders, and the satellite count
// twitches now and then like a real receiver.
func (s *simulatedTelemetry) step() {
	s.fix.Latitude += (rand.Float64() - 0.5) * 2e-5
	s.fix.Longitude += (rand.Float64() - 0.5) * 2e-5
	s.fix.Altitude += (rand.Float64() - 0.5) * 0.4
	s.fix.Heading += (rand.Float64() - 0.5) * 12
	if s.fix.Heading < 0 {
		s.fix.Heading += 360
	} else if s.fix.Heading >= 360 {
		s.fix.Heading -= 360
	}
	if rand.Intn(10) == 0 {
		s.fix.Satellites = int32(7 + rand.Intn(6))
	}
}

// sensorRecord builds one reading in the firmware's ASCII format,
// `tag:value` pairs joined with `|`. Wheel powers sit in a plausible
// cruising band; IMU angles are small and centered on level.
func (s *simulatedTelemetry) sensorRecord() []byte {
	var record strings.Builder
	for _, tag := range wheelTags {
		fmt.Fprintf(&record, "%s:%.2f|", tag, 2.0+rand.Float64()*1.5)
	}
	for i, tag := range imuTags {
		if i > 0 {
			record.WriteByte('|')
		}
		fmt.Fprintf(&record, "%s:%.3f", tag, (rand.Float64()-0.5)*0.4)
	}
	return []byte(record.String())
}
