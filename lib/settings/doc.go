// Copyright 2026 The University of Oklahoma.
// SPDX-License-Identifier: Apache-2.0

// Package settings provides YAML configuration loading for rover
// components.
//
// Configuration is loaded from a single file specified by either the
// ROVER_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There are no fallbacks, no ~/.config discovery,
// and no automatic file search, so a deployment's configuration is
// always auditable from one file.
//
// Variable expansion is performed on string fields after loading:
// ${HOME}, ${VAR}, and ${VAR:-default} patterns are expanded. No other
// environment variables override config values.
//
// Both sides of the link read the same schema. The ground station uses
// the rover address to dial; the rover uses the ports to listen and
// the media section to spawn streamer children.
package settings
