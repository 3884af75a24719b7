// Copyright 2026 The University of Oklahoma.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"golang.org/x/sys/unix"
)

// watchForFile watches a directory for the creation of a named file,
// used to wait for a streamer child's command socket to appear. The
// returned channel closes when the file is created or moved into the
// directory; the cancel function stops the watcher and may be called
// more than once.
//
// Callers must stat the file AFTER this returns, not before: a file
// that lands between a stat and the watch setup would otherwise be
// missed. With the watch already installed, either the stat sees the
// file or the inotify event fires.
func watchForFile(directory, name string) (<-chan struct{}, func(), error) {
	fd, err := unix.InotifyInit1(unix.IN_NONBLOCK | unix.IN_CLOEXEC)
	if err != nil {
		return nil, nil, fmt.Errorf("inotify_init1: %w", err)
	}
	if _, err := unix.InotifyAddWatch(fd, directory, unix.IN_CREATE|unix.IN_MOVED_TO); err != nil {
		unix.Close(fd)
		return nil, nil, fmt.Errorf("inotify_add_watch on %s: %w", directory, err)
	}

	ready := make(chan struct{})
	quit := make(chan struct{})
	go watchLoop(fd, name, ready, quit)

	cancelled := false
	cancel := func() {
		if !cancelled {
			cancelled = true
			close(quit)
		}
	}
	return ready, cancel, nil
}

// watchLoop reads inotify events until the named file appears or the
// quit channel closes. It polls with a 100ms timeout rather than
// blocking in read(2) so the quit signal is honored promptly, and it
// owns the descriptor: the fd is closed when the loop returns.
func watchLoop(fd int, name string, ready chan<- struct{}, quit <-chan struct{}) {
	defer unix.Close(fd)

	buffer := make([]byte, 4096)
	for {
		select {
		case <-quit:
			return
		default:
		}

		fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
		n, err := unix.Poll(fds, 100)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return
		}
		if n == 0 {
			continue
		}

		bytesRead, err := unix.Read(fd, buffer)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EINTR {
				continue
			}
			return
		}
		if eventsContainName(buffer[:bytesRead], name) {
			close(ready)
			return
		}
	}
}

// eventsContainName scans a buffer of raw inotify_event structs for
// one carrying the given name. Per inotify(7) each event is a 16-byte
// header (wd, mask, cookie, len) followed by len bytes of
// null-padded name; len sits at header offset 12.
func eventsContainName(buffer []byte, name string) bool {
	for offset := 0; offset+unix.SizeofInotifyEvent <= len(buffer); {
		nameLength := int(binary.NativeEndian.Uint32(buffer[offset+12 : offset+16]))
		next := offset + unix.SizeofInotifyEvent + nameLength
		if next > len(buffer) {
			return false
		}
		if nameLength > 0 {
			raw := buffer[offset+unix.SizeofInotifyEvent : next]
			eventName, _, _ := bytes.Cut(raw, []byte{0})
			if string(eventName) == name {
				return true
			}
		}
		offset = next
	}
	return false
}
