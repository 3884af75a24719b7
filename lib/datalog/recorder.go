// Copyright 2026 The University of Oklahoma.
// SPDX-License-Identifier: Apache-2.0

package datalog

import (
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"

	"github.com/doublejinitials/rover-research/lib/clock"
	"github.com/doublejinitials/rover-research/lib/control"
	"github.com/doublejinitials/rover-research/lib/wire"
)

// Recorder writes one telemetry log per recording session. It
// implements the control package's Recorder and GPSSink collaborator
// interfaces.
//
// All methods are safe for concurrent use. Writes while no log is open
// are dropped silently: telemetry keeps flowing whether or not anyone
// is recording it.
type Recorder struct {
	dir    string
	clock  clock.Clock
	logger *slog.Logger

	mu        sync.Mutex
	file      *os.File
	zstd      *zstd.Encoder
	csv       *csv.Writer
	hasher    *blake3.Hasher
	path      string
	startedAt time.Time
}

var (
	_ control.Recorder = (*Recorder)(nil)
	_ control.GPSSink  = (*Recorder)(nil)
)

// NewRecorder returns a Recorder that writes logs under dir. The
// directory is created on the first Start.
func NewRecorder(dir string, clk clock.Clock, logger *slog.Logger) *Recorder {
	return &Recorder{
		dir:    dir,
		clock:  clk,
		logger: logger,
	}
}

// Start opens a new log timed relative to startTime. The file name
// carries the UTC start time, which both sides of a synchronized
// session share, so matching logs from the two machines is a directory
// listing away.
func (r *Recorder) Start(startTime time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.csv != nil {
		return fmt.Errorf("data log already open at %s", r.path)
	}

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("creating data log directory: %w", err)
	}

	name := fmt.Sprintf("telemetry_%s.csv.zst", startTime.UTC().Format("20060102T150405Z"))
	path := filepath.Join(r.dir, name)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("creating data log: %w", err)
	}

	// The hasher observes the compressed stream, so the sidecar digest
	// verifies the file exactly as it sits on disk.
	hasher := blake3.New()
	encoder, err := zstd.NewWriter(io.MultiWriter(file, hasher),
		zstd.WithEncoderLevel(zstd.SpeedDefault),
	)
	if err != nil {
		file.Close()
		os.Remove(path)
		return fmt.Errorf("creating zstd writer: %w", err)
	}

	writer := csv.NewWriter(encoder)
	if err := writer.Write([]string{"elapsed_ms", "series", "value"}); err != nil {
		encoder.Close()
		file.Close()
		os.Remove(path)
		return fmt.Errorf("writing data log header: %w", err)
	}

	r.file = file
	r.zstd = encoder
	r.csv = writer
	r.hasher = hasher
	r.path = path
	r.startedAt = startTime

	r.logger.Info("data recording started",
		"path", path,
		"start_time", startTime.UTC().Format(time.RFC3339))
	return nil
}

// Stop flushes and closes the log, then writes the BLAKE3 digest of
// the finished file as a `.b3sum` sidecar. Stop without a log open is
// a no-op.
func (r *Recorder) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.csv == nil {
		return
	}

	r.csv.Flush()
	if err := r.csv.Error(); err != nil {
		r.logger.Warn("flushing data log", "path", r.path, "error", err)
	}
	if err := r.zstd.Close(); err != nil {
		r.logger.Warn("closing zstd stream", "path", r.path, "error", err)
	}
	if err := r.file.Close(); err != nil {
		r.logger.Warn("closing data log", "path", r.path, "error", err)
	}

	digest := hex.EncodeToString(r.hasher.Sum(nil))
	sidecar := r.path + ".b3sum"
	content := digest + "  " + filepath.Base(r.path) + "\n"
	if err := os.WriteFile(sidecar, []byte(content), 0o644); err != nil {
		r.logger.Warn("writing digest sidecar", "path", sidecar, "error", err)
	}

	r.logger.Info("data recording stopped", "path", r.path, "blake3", digest)

	r.file = nil
	r.zstd = nil
	r.csv = nil
	r.hasher = nil
	r.path = ""
}

// Recording reports whether a log is currently open.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.csv != nil
}

// Add records one reading. Dropped when no log is open.
func (r *Recorder) Add(series string, value float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.csv == nil {
		return
	}

	elapsed := r.clock.Now().Sub(r.startedAt).Milliseconds()
	record := []string{
		strconv.FormatInt(elapsed, 10),
		series,
		strconv.FormatFloat(value, 'f', -1, 64),
	}
	if err := r.csv.Write(record); err != nil {
		r.logger.Warn("writing data log row", "series", series, "error", err)
	}
}

// AddLocation records a GPS fix as one row per coordinate series.
func (r *Recorder) AddLocation(fix wire.GPSFix) {
	r.Add("gps_latitude", fix.Latitude)
	r.Add("gps_longitude", fix.Longitude)
	r.Add("gps_altitude", fix.Altitude)
	r.Add("gps_heading", fix.Heading)
}

// Path returns the open log's path, or "" when not recording.
func (r *Recorder) Path() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.path
}
