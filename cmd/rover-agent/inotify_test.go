// Copyright 2026 The University of Oklahoma.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func TestWatchForFileSeesCreation(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ready, cancel, err := watchForFile(dir, "streamer-test.sock")
	if err != nil {
		t.Fatalf("watchForFile: %v", err)
	}
	defer cancel()

	// A different file must not trip the watch.
	if err := os.WriteFile(filepath.Join(dir, "decoy.txt"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case <-ready:
		t.Fatal("watch fired for an unrelated file")
	case <-time.After(50 * time.Millisecond):
	}

	if err := os.WriteFile(filepath.Join(dir, "streamer-test.sock"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case <-ready:
	case <-time.After(5 * time.Second):
		t.Fatal("watch never fired for the target file")
	}
}

func TestWatchForFileSeesRename(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	staging := filepath.Join(dir, "incoming.tmp")
	if err := os.WriteFile(staging, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	ready, cancel, err := watchForFile(dir, "final.sock")
	if err != nil {
		t.Fatalf("watchForFile: %v", err)
	}
	defer cancel()

	if err := os.Rename(staging, filepath.Join(dir, "final.sock")); err != nil {
		t.Fatal(err)
	}
	select {
	case <-ready:
	case <-time.After(5 * time.Second):
		t.Fatal("watch never fired for a moved-in file")
	}
}

func TestWatchForFileCancelIsIdempotent(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	_, cancel, err := watchForFile(dir, "never.sock")
	if err != nil {
		t.Fatalf("watchForFile: %v", err)
	}
	cancel()
	cancel()
}

func TestWatchForFileMissingDirectory(t *testing.T) {
	t.Parallel()

	_, _, err := watchForFile(filepath.Join(t.TempDir(), "gone"), "x.sock")
	if err == nil {
		t.Fatal("watchForFile succeeded on a missing directory")
	}
}

func TestAwaitSocketAlreadyPresent(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	socketPath := filepath.Join(dir, "streamer-a.sock")
	if err := os.WriteFile(socketPath, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	if err := awaitSocket(socketPath, make(chan struct{})); err != nil {
		t.Fatalf("awaitSocket: %v", err)
	}
}

func TestAwaitSocketProcessExitsFirst(t *testing.T) {
	t.Parallel()

	processDone := make(chan struct{})
	close(processDone)

	err := awaitSocket(filepath.Join(t.TempDir(), "streamer-b.sock"), processDone)
	if err == nil {
		t.Fatal("awaitSocket succeeded though the process died")
	}
	if !strings.Contains(err.Error(), "exited before creating") {
		t.Errorf("error = %v, want the early-exit cause", err)
	}
}

func TestAwaitSocketLateCreation(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	socketPath := filepath.Join(dir, "streamer-c.sock")
	go func() {
		time.Sleep(20 * time.Millisecond)
		os.WriteFile(socketPath, nil, 0o644)
	}()

	if err := awaitSocket(socketPath, make(chan struct{})); err != nil {
		t.Fatalf("awaitSocket: %v", err)
	}
}

// rawEvent builds the wire form of one inotify_event.
func rawEvent(name string, pad int) []byte {
	buffer := make([]byte, unix.SizeofInotifyEvent+len(name)+pad)
	binary.NativeEndian.PutUint32(buffer[12:16], uint32(len(name)+pad))
	copy(buffer[unix.SizeofInotifyEvent:], name)
	return buffer
}

func TestEventsContainName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		buffer []byte
		target string
		want   bool
	}{
		{
			name:   "match with padding",
			buffer: rawEvent("cmd.sock", 4),
			target: "cmd.sock",
			want:   true,
		},
		{
			name:   "different file",
			buffer: rawEvent("other.sock", 2),
			target: "cmd.sock",
			want:   false,
		},
		{
			name:   "second event matches",
			buffer: append(rawEvent("first.txt", 3), rawEvent("cmd.sock", 4)...),
			target: "cmd.sock",
			want:   true,
		},
		{
			name:   "nameless event",
			buffer: rawEvent("", 0),
			target: "cmd.sock",
			want:   false,
		},
		{
			name:   "truncated event",
			buffer: rawEvent("cmd.sock", 4)[:unix.SizeofInotifyEvent+2],
			target: "cmd.sock",
			want:   false,
		},
		{
			name:   "empty buffer",
			buffer: nil,
			target: "cmd.sock",
			want:   false,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := eventsContainName(test.buffer, test.target); got != test.want {
				t.Errorf("eventsContainName = %v, want %v", got, test.want)
			}
		})
	}
}
