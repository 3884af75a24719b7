// Copyright 2026 The University of Oklahoma.
// SPDX-License-Identifier: Apache-2.0

package media

import "testing"

func TestVideoProfileRoundTrip(t *testing.T) {
	tests := []struct {
		text    string
		profile VideoProfile
	}{
		{
			text: "mjpeg_640x480_30_q50",
			profile: VideoProfile{
				Encoding:     EncodingMJPEG,
				Width:        640,
				Height:       480,
				Framerate:    30,
				MJPEGQuality: 50,
			},
		},
		{
			text: "h264_1280x720_30_b2000000",
			profile: VideoProfile{
				Encoding:  EncodingH264,
				Width:     1280,
				Height:    720,
				Framerate: 30,
				Bitrate:   2000000,
			},
		},
		{
			text: "mpeg2_1024x576_25_b1500000",
			profile: VideoProfile{
				Encoding:  EncodingMPEG2,
				Width:     1024,
				Height:    576,
				Framerate: 25,
				Bitrate:   1500000,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			parsed, err := ParseVideoProfile(tt.text)
			if err != nil {
				t.Fatalf("ParseVideoProfile(%q): %v", tt.text, err)
			}
			if parsed != tt.profile {
				t.Errorf("parsed %+v, want %+v", parsed, tt.profile)
			}
			if got := tt.profile.String(); got != tt.text {
				t.Errorf("String() = %q, want %q", got, tt.text)
			}
		})
	}
}

func TestParseVideoProfileRejectsMalformed(t *testing.T) {
	inputs := []string{
		"",
		"mjpeg_640x480_30",
		"mjpeg_640x480_30_q50_extra",
		"av1_640x480_30_b1000000",
		"mjpeg_640_30_q50",
		"mjpeg_640xtall_30_q50",
		"mjpeg_640x480_fast_q50",
		"mjpeg_640x480_30_b2000000",
		"h264_1280x720_30_q50",
		"h264_1280x720_30_b",
		"h264_1280x720_30_x2000000",
		"h264_0x720_30_b2000000",
		"h264_1280x720_0_b2000000",
		"h264_1280x720_30_b0",
	}
	for _, input := range inputs {
		if _, err := ParseVideoProfile(input); err == nil {
			t.Errorf("ParseVideoProfile(%q) succeeded, want error", input)
		}
	}
}
