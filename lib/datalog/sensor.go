// Copyright 2026 The University of Oklahoma.
// SPDX-License-Identifier: Apache-2.0

package datalog

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/doublejinitials/rover-research/lib/control"
)

// sensorSeries maps the one-letter tags of the rover's sensor records
// to data log series names. The tags are assigned by the onboard
// controller firmware; both lists change together.
var sensorSeries = map[string]string{
	"A": "wheel_power_a",
	"B": "wheel_power_b",
	"C": "wheel_power_c",
	"D": "wheel_power_d",
	"E": "wheel_power_e",
	"F": "wheel_power_f",
	"X": "imu_rear_yaw",
	"Y": "imu_rear_pitch",
	"Z": "imu_rear_roll",
	"P": "imu_front_yaw",
	"Q": "imu_front_pitch",
	"R": "imu_front_roll",
}

// SensorParser decodes the rover's ASCII sensor records into data log
// rows. A record is `tag:value` pairs joined with `|`, for example
// `A:1.2|B:1.3|X:-0.05`. Unknown tags and unparseable values are
// logged and skipped; one bad pair never discards its neighbors.
//
// SensorParser implements control.SensorSink.
type SensorParser struct {
	recorder *Recorder
	logger   *slog.Logger
}

var _ control.SensorSink = (*SensorParser)(nil)

// NewSensorParser returns a parser feeding the given recorder.
func NewSensorParser(recorder *Recorder, logger *slog.Logger) *SensorParser {
	return &SensorParser{
		recorder: recorder,
		logger:   logger,
	}
}

// HandleSensorData decodes one raw sensor payload.
func (p *SensorParser) HandleSensorData(data []byte) {
	for _, pair := range strings.Split(string(data), "|") {
		if pair == "" {
			continue
		}
		tag, raw, ok := strings.Cut(pair, ":")
		if !ok {
			p.logger.Warn("malformed sensor record", "pair", pair)
			continue
		}
		series, known := sensorSeries[tag]
		if !known {
			p.logger.Warn("unknown sensor tag", "tag", tag)
			continue
		}
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			p.logger.Warn("unparseable sensor value", "series", series, "value", raw)
			continue
		}
		p.recorder.Add(series, value)
	}
}
