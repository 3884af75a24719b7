// Copyright 2026 The University of Oklahoma.
// SPDX-License-Identifier: Apache-2.0

package wire

import "fmt"

// GPSFix is one position report from the rover's receiver. Heading is
// degrees clockwise from true north; altitude is meters above the WGS84
// ellipsoid.
type GPSFix struct {
	Latitude   float64
	Longitude  float64
	Altitude   float64
	Heading    float64
	Satellites int32
}

func (f GPSFix) String() string {
	return fmt.Sprintf("(%.6f, %.6f) alt %.1fm hdg %.1f° sats %d",
		f.Latitude, f.Longitude, f.Altitude, f.Heading, f.Satellites)
}

// AudioEncoding identifies the codec of the rover's audio stream.
// Values are wire constants.
type AudioEncoding uint32

const (
	// AudioEncodingNone marks an unconfigured format. Never streamable.
	AudioEncodingNone AudioEncoding = 0

	// AudioEncodingAC3 is Dolby AC-3 via GStreamer's avenc_ac3.
	AudioEncodingAC3 AudioEncoding = 1

	// AudioEncodingVorbis is Vorbis via vorbisenc.
	AudioEncodingVorbis AudioEncoding = 2
)

// String returns the encoding's configuration-file name.
func (e AudioEncoding) String() string {
	switch e {
	case AudioEncodingNone:
		return "none"
	case AudioEncodingAC3:
		return "ac3"
	case AudioEncodingVorbis:
		return "vorbis"
	default:
		return fmt.Sprintf("unknown(%d)", uint32(e))
	}
}

// ParseAudioEncoding parses a configuration-file encoding name.
func ParseAudioEncoding(name string) (AudioEncoding, error) {
	switch name {
	case "none":
		return AudioEncodingNone, nil
	case "ac3":
		return AudioEncodingAC3, nil
	case "vorbis":
		return AudioEncodingVorbis, nil
	default:
		return 0, fmt.Errorf("unknown audio encoding: %q", name)
	}
}

// AudioFormat describes the negotiated audio stream parameters. It is
// carried inside activate-audio-stream requests.
type AudioFormat struct {
	Encoding   AudioEncoding
	SampleRate uint32
	Channels   uint32
}

// Usable reports whether the format describes a stream that can
// actually be encoded. Activation requests carrying an unusable format
// are a caller bug; senders must check this first.
func (f AudioFormat) Usable() bool {
	return f.Encoding != AudioEncodingNone && f.SampleRate > 0
}

func (f AudioFormat) String() string {
	return fmt.Sprintf("%s %dHz %dch", f.Encoding, f.SampleRate, f.Channels)
}
