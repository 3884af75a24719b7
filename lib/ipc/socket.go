// Copyright 2026 The University of Oklahoma.
// SPDX-License-Identifier: Apache-2.0

package ipc

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
)

// instanceLength is how long a streamer instance identifier is on the
// wire and in socket filenames: a canonical 36-byte UUID.
const instanceLength = 36

// NotifySocketPath returns the agent's notification socket path for a
// runtime directory.
//
//	NotifySocketPath("/run/rover") → "/run/rover/notify.sock"
func NotifySocketPath(runtimeDir string) string {
	return runtimeDir + "/notify.sock"
}

// CommandSocketPath returns a streamer instance's command socket path
// for a runtime directory.
//
//	CommandSocketPath("/run/rover", id) → "/run/rover/streamer-<id>.sock"
func CommandSocketPath(runtimeDir, instance string) string {
	return runtimeDir + "/streamer-" + instance + ".sock"
}

// ValidateRuntimeDir checks that runtimeDir exists, is a directory, and
// is short enough that every socket path derived from it fits in the
// 108-byte sun_path limit. The longest derived subpath is
// /streamer-<instance>.sock with a UUID instance.
func ValidateRuntimeDir(runtimeDir string) error {
	info, err := os.Stat(runtimeDir)
	if err != nil {
		return fmt.Errorf("runtime directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("runtime directory %s: not a directory", runtimeDir)
	}
	overhead := len("/streamer-") + instanceLength + len(".sock")
	if len(runtimeDir)+overhead > 107 {
		return fmt.Errorf("runtime directory %q is %d bytes, too long for streamer sockets "+
			"(unix socket path limit is 108 bytes, overhead is %d bytes)",
			runtimeDir, len(runtimeDir), overhead)
	}
	return nil
}

// Listen creates a unix listener at socketPath, replacing any stale
// socket file left behind by a previous process. Binding is separate
// from serving so callers can map a bind failure to their own startup
// handling before any traffic is possible.
func Listen(socketPath string) (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(socketPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating socket directory: %w", err)
	}
	if err := os.Remove(socketPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("removing stale socket: %w", err)
	}
	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", socketPath, err)
	}
	return listener, nil
}
