// Copyright 2026 The University of Oklahoma.
// SPDX-License-Identifier: Apache-2.0

package media

import (
	"fmt"
	"strconv"
	"strings"
)

// VideoEncoding selects the codec for a video launch description.
type VideoEncoding int

const (
	EncodingMJPEG VideoEncoding = iota
	EncodingMPEG2
	EncodingH264
)

func (e VideoEncoding) String() string {
	switch e {
	case EncodingMJPEG:
		return "mjpeg"
	case EncodingMPEG2:
		return "mpeg2"
	case EncodingH264:
		return "h264"
	default:
		return fmt.Sprintf("unknown(%d)", int(e))
	}
}

// VideoProfile describes one encode configuration. Profiles travel
// between the ground station, the rover agent, and the media streamer
// children as compact strings (see String), and operators write the
// same form directly in configuration files.
type VideoProfile struct {
	Encoding  VideoEncoding
	Width     int
	Height    int
	Framerate int

	// Bitrate is the target rate in bits per second. MPEG2 and H264
	// only.
	Bitrate int

	// MJPEGQuality is the JPEG quality factor, 1-100. MJPEG only.
	MJPEGQuality int
}

// String renders the compact profile form, "mjpeg_640x480_30_q50" or
// "h264_1280x720_30_b2000000". The final field is the quality factor
// for MJPEG and the bitrate for the other encodings.
func (p VideoProfile) String() string {
	if p.Encoding == EncodingMJPEG {
		return fmt.Sprintf("mjpeg_%dx%d_%d_q%d", p.Width, p.Height, p.Framerate, p.MJPEGQuality)
	}
	return fmt.Sprintf("%s_%dx%d_%d_b%d", p.Encoding, p.Width, p.Height, p.Framerate, p.Bitrate)
}

// ParseVideoProfile parses the compact form produced by String. The
// rate field prefix must match the encoding: q for MJPEG, b for MPEG2
// and H264.
func ParseVideoProfile(s string) (VideoProfile, error) {
	fields := strings.Split(s, "_")
	if len(fields) != 4 {
		return VideoProfile{}, fmt.Errorf("media: profile %q: expected 4 fields, got %d", s, len(fields))
	}

	var profile VideoProfile
	switch fields[0] {
	case "mjpeg":
		profile.Encoding = EncodingMJPEG
	case "mpeg2":
		profile.Encoding = EncodingMPEG2
	case "h264":
		profile.Encoding = EncodingH264
	default:
		return VideoProfile{}, fmt.Errorf("media: profile %q: unknown encoding %q", s, fields[0])
	}

	widthText, heightText, ok := strings.Cut(fields[1], "x")
	if !ok {
		return VideoProfile{}, fmt.Errorf("media: profile %q: malformed resolution %q", s, fields[1])
	}
	var err error
	if profile.Width, err = strconv.Atoi(widthText); err != nil {
		return VideoProfile{}, fmt.Errorf("media: profile %q: width: %w", s, err)
	}
	if profile.Height, err = strconv.Atoi(heightText); err != nil {
		return VideoProfile{}, fmt.Errorf("media: profile %q: height: %w", s, err)
	}
	if profile.Framerate, err = strconv.Atoi(fields[2]); err != nil {
		return VideoProfile{}, fmt.Errorf("media: profile %q: framerate: %w", s, err)
	}
	if profile.Width <= 0 || profile.Height <= 0 || profile.Framerate <= 0 {
		return VideoProfile{}, fmt.Errorf("media: profile %q: resolution and framerate must be positive", s)
	}

	rate := fields[3]
	if len(rate) < 2 {
		return VideoProfile{}, fmt.Errorf("media: profile %q: malformed rate field %q", s, rate)
	}
	value, err := strconv.Atoi(rate[1:])
	if err != nil {
		return VideoProfile{}, fmt.Errorf("media: profile %q: rate field: %w", s, err)
	}
	if value <= 0 {
		return VideoProfile{}, fmt.Errorf("media: profile %q: rate field must be positive", s)
	}
	switch {
	case rate[0] == 'q' && profile.Encoding == EncodingMJPEG:
		profile.MJPEGQuality = value
	case rate[0] == 'b' && profile.Encoding != EncodingMJPEG:
		profile.Bitrate = value
	default:
		return VideoProfile{}, fmt.Errorf("media: profile %q: rate field %q does not match encoding %s", s, rate, profile.Encoding)
	}
	return profile, nil
}
