// Copyright 2026 The University of Oklahoma.
// SPDX-License-Identifier: Apache-2.0

package settings

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/doublejinitials/rover-research/lib/wire"
)

// Config is the master configuration shared by the ground station and
// the rover agent.
type Config struct {
	// Rover configures how the two sides find each other.
	Rover RoverConfig `yaml:"rover"`

	// Channels configures the control links.
	Channels ChannelsConfig `yaml:"channels"`

	// Media configures streamer children and stream routing.
	Media MediaConfig `yaml:"media"`

	// Recording configures the telemetry data log.
	Recording RecordingConfig `yaml:"recording"`
}

// RoverConfig locates the rover on the research network.
type RoverConfig struct {
	// Address is the rover's IP. The ground station dials it; the
	// rover binds its listeners to all interfaces regardless.
	Address string `yaml:"address"`
}

// ChannelsConfig configures the control links between the ground
// station and the rover.
type ChannelsConfig struct {
	// MainPort carries the tagged control protocol.
	MainPort int `yaml:"main_port"`

	// DrivePort carries drive commands. Separate from the main
	// channel so simulated latency never delays protocol traffic on
	// the main link.
	DrivePort int `yaml:"drive_port"`

	// SimulatedLatencyMS is artificial one-way delivery delay applied
	// to inbound drive traffic, for experiments that model a
	// long-range link. Zero disables it.
	SimulatedLatencyMS int `yaml:"simulated_latency_ms"`
}

// MediaConfig configures the rover's streamer children and where
// their streams are sent.
type MediaConfig struct {
	// RuntimeDir holds the unix sockets used to talk to streamer
	// children.
	RuntimeDir string `yaml:"runtime_dir"`

	// StreamerBin is the rover-media-streamer binary. A bare name is
	// resolved via PATH.
	StreamerBin string `yaml:"streamer_bin"`

	// Destination is the address streams are sent to, normally the
	// ground station.
	Destination string `yaml:"destination"`

	// VideoPortBase is the destination port for camera 0; camera N
	// streams to VideoPortBase+N.
	VideoPortBase int `yaml:"video_port_base"`

	// AudioPort is the destination port for the audio stream.
	AudioPort int `yaml:"audio_port"`

	// AudioMediaID identifies the audio stream in media-server-error
	// messages. Must not collide with any camera ID.
	AudioMediaID int `yaml:"audio_media_id"`

	// Audio configures the rover's audio capture.
	Audio AudioConfig `yaml:"audio"`

	// Cameras lists the rover's cameras in stream order.
	Cameras []CameraConfig `yaml:"cameras"`
}

// AudioConfig describes the rover's audio capture device and default
// stream format.
type AudioConfig struct {
	// Device is the ALSA capture device.
	Device string `yaml:"device"`

	// Encoding is the stream codec: "ac3", "vorbis", or "none" to
	// disable audio.
	Encoding string `yaml:"encoding"`

	// SampleRate is the capture rate in Hz.
	SampleRate int `yaml:"sample_rate"`

	// Channels is the channel count.
	Channels int `yaml:"channels"`
}

// CameraConfig describes one camera.
type CameraConfig struct {
	// ID is the camera's media ID, used in stream requests and error
	// reports.
	ID int `yaml:"id"`

	// Device is the V4L2 device path.
	Device string `yaml:"device"`

	// LeftDevice and RightDevice configure a side-by-side stereo pair
	// instead of Device. Set both or neither.
	LeftDevice  string `yaml:"left_device"`
	RightDevice string `yaml:"right_device"`

	// Profile is the encode profile string, e.g.
	// "mjpeg_1280x720_30_q90". See lib/media for the grammar.
	Profile string `yaml:"profile"`

	// HWAccel selects the platform's hardware encoder when true.
	HWAccel bool `yaml:"hw_accel"`
}

// Stereo reports whether the camera is a stereo pair.
func (c CameraConfig) Stereo() bool {
	return c.LeftDevice != "" || c.RightDevice != ""
}

// RecordingConfig configures the telemetry data log.
type RecordingConfig struct {
	// Dir is where finished data logs are written.
	Dir string `yaml:"dir"`
}

// Default returns the default configuration. These defaults exist so
// every field has a sensible value before the file is merged in; the
// config file is still required.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		Rover: RoverConfig{
			Address: "192.168.1.20",
		},
		Channels: ChannelsConfig{
			MainPort:           5508,
			DrivePort:          5509,
			SimulatedLatencyMS: 0,
		},
		Media: MediaConfig{
			RuntimeDir:    "/run/rover",
			StreamerBin:   "rover-media-streamer",
			Destination:   "192.168.1.10",
			VideoPortBase: 5520,
			AudioPort:     5512,
			AudioMediaID:  100,
			Audio: AudioConfig{
				Device:     "hw:1",
				Encoding:   "ac3",
				SampleRate: 48000,
				Channels:   2,
			},
		},
		Recording: RecordingConfig{
			Dir: filepath.Join(homeDir, "rover-data"),
		},
	}
}

// Load loads configuration from the path in ROVER_CONFIG.
//
// This is the only way to load configuration without an explicit path.
// If ROVER_CONFIG is not set, Load fails rather than guessing.
func Load() (*Config, error) {
	configPath := os.Getenv("ROVER_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("ROVER_CONFIG environment variable not set; " +
			"set it to the path of your rover.yaml config file, or use --config flag")
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// The config file is the single source of truth. Environment variables
// do not override config values; the only expansion performed is
// ${VAR} and ${VAR:-default} patterns inside string fields.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.expandVariables()

	return cfg, nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in the
// string fields that routinely carry them.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}

	c.Rover.Address = expandVars(c.Rover.Address, vars)
	c.Media.RuntimeDir = expandVars(c.Media.RuntimeDir, vars)
	c.Media.StreamerBin = expandVars(c.Media.StreamerBin, vars)
	c.Media.Destination = expandVars(c.Media.Destination, vars)
	c.Media.Audio.Device = expandVars(c.Media.Audio.Device, vars)
	c.Recording.Dir = expandVars(c.Recording.Dir, vars)
	for i := range c.Media.Cameras {
		c.Media.Cameras[i].Device = expandVars(c.Media.Cameras[i].Device, vars)
		c.Media.Cameras[i].LeftDevice = expandVars(c.Media.Cameras[i].LeftDevice, vars)
		c.Media.Cameras[i].RightDevice = expandVars(c.Media.Cameras[i].RightDevice, vars)
	}
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} patterns.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors, reporting all of them
// at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Rover.Address == "" {
		errs = append(errs, fmt.Errorf("rover.address is required"))
	}

	if !validPort(c.Channels.MainPort) {
		errs = append(errs, fmt.Errorf("channels.main_port %d out of range", c.Channels.MainPort))
	}
	if !validPort(c.Channels.DrivePort) {
		errs = append(errs, fmt.Errorf("channels.drive_port %d out of range", c.Channels.DrivePort))
	}
	if c.Channels.MainPort == c.Channels.DrivePort {
		errs = append(errs, fmt.Errorf("channels.main_port and channels.drive_port must differ"))
	}
	if c.Channels.SimulatedLatencyMS < 0 {
		errs = append(errs, fmt.Errorf("channels.simulated_latency_ms must not be negative"))
	}

	if c.Media.RuntimeDir == "" {
		errs = append(errs, fmt.Errorf("media.runtime_dir is required"))
	}
	if c.Media.StreamerBin == "" {
		errs = append(errs, fmt.Errorf("media.streamer_bin is required"))
	}
	if !validPort(c.Media.VideoPortBase) {
		errs = append(errs, fmt.Errorf("media.video_port_base %d out of range", c.Media.VideoPortBase))
	}
	if !validPort(c.Media.AudioPort) {
		errs = append(errs, fmt.Errorf("media.audio_port %d out of range", c.Media.AudioPort))
	}

	if _, err := wire.ParseAudioEncoding(c.Media.Audio.Encoding); err != nil {
		errs = append(errs, fmt.Errorf("media.audio.encoding: %w", err))
	} else if c.Media.Audio.Encoding != "none" && c.Media.Audio.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("media.audio.sample_rate must be positive"))
	}

	seen := make(map[int]bool)
	for _, camera := range c.Media.Cameras {
		if camera.ID < 0 {
			errs = append(errs, fmt.Errorf("camera id %d must not be negative", camera.ID))
		}
		if seen[camera.ID] {
			errs = append(errs, fmt.Errorf("camera id %d appears more than once", camera.ID))
		}
		seen[camera.ID] = true
		if camera.ID == c.Media.AudioMediaID {
			errs = append(errs, fmt.Errorf("camera id %d collides with media.audio_media_id", camera.ID))
		}
		switch {
		case camera.Stereo() && camera.Device != "":
			errs = append(errs, fmt.Errorf("camera %d: device and left_device/right_device are mutually exclusive", camera.ID))
		case camera.Stereo() && (camera.LeftDevice == "" || camera.RightDevice == ""):
			errs = append(errs, fmt.Errorf("camera %d: left_device and right_device must both be set", camera.ID))
		case !camera.Stereo() && camera.Device == "":
			errs = append(errs, fmt.Errorf("camera %d: device is required", camera.ID))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func validPort(port int) bool {
	return port > 0 && port < 65536
}

// AudioFormat converts the configured audio section into the wire
// format sent in activation requests. Returns a format with
// Usable()==false when audio is disabled.
func (a AudioConfig) AudioFormat() (wire.AudioFormat, error) {
	encoding, err := wire.ParseAudioEncoding(a.Encoding)
	if err != nil {
		return wire.AudioFormat{}, err
	}
	return wire.AudioFormat{
		Encoding:   encoding,
		SampleRate: uint32(a.SampleRate),
		Channels:   uint32(a.Channels),
	}, nil
}

// CameraByID returns the camera with the given media ID.
func (m MediaConfig) CameraByID(id int) (CameraConfig, bool) {
	for _, camera := range m.Cameras {
		if camera.ID == id {
			return camera, true
		}
	}
	return CameraConfig{}, false
}

// VideoPort returns the destination port for a camera's stream.
func (m MediaConfig) VideoPort(cameraID int) int {
	return m.VideoPortBase + cameraID
}

// EnsureDirs creates the runtime and recording directories if they do
// not exist.
func (c *Config) EnsureDirs() error {
	for _, path := range []string{c.Media.RuntimeDir, c.Recording.Dir} {
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}
	return nil
}

// StreamerPath resolves the streamer binary. Absolute and relative
// paths are used as-is; bare names go through PATH lookup so packaged
// installs need no configuration.
func (c *Config) StreamerPath() (string, error) {
	bin := c.Media.StreamerBin
	if filepath.Base(bin) != bin {
		if _, err := os.Stat(bin); err != nil {
			return "", fmt.Errorf("streamer binary %s: %w", bin, err)
		}
		return bin, nil
	}

	path, err := exec.LookPath(bin)
	if err != nil {
		return "", fmt.Errorf("%s not found in PATH", bin)
	}
	return path, nil
}
