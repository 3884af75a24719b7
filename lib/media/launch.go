// Copyright 2026 The University of Oklahoma.
// SPDX-License-Identifier: Apache-2.0

package media

import (
	"fmt"

	"github.com/doublejinitials/rover-research/lib/wire"
)

// VideoLaunch builds the gst-launch description for a single-camera
// stream: capture from a V4L2 device, scale to the profile's
// resolution, encode, payload as RTP, and send UDP to address:port.
// With hwAccel the encoder runs on VAAPI hardware.
func VideoLaunch(device, address string, port int, profile VideoProfile, hwAccel bool) string {
	return fmt.Sprintf("v4l2src device=%s ! videoconvert ! videoscale ! %s ! %s ! %s",
		device, rawVideoCaps(profile), videoEncodeChain(profile, hwAccel), udpSink(address, port))
}

// StereoVideoLaunch builds the dual-camera side-by-side variant: each
// eye is scaled to half the profile width and composited next to the
// other before the shared encode chain. The ground station splits the
// frame back apart for the stereo display.
func StereoVideoLaunch(leftDevice, rightDevice, address string, port int, profile VideoProfile, hwAccel bool) string {
	eyeWidth := profile.Width / 2
	eyeCaps := fmt.Sprintf("video/x-raw,width=%d,height=%d,framerate=%d/1",
		eyeWidth, profile.Height, profile.Framerate)
	return fmt.Sprintf(
		"compositor name=stereo sink_1::xpos=%d ! videoconvert ! %s ! %s ! %s "+
			"v4l2src device=%s ! videoconvert ! videoscale ! %s ! stereo.sink_0 "+
			"v4l2src device=%s ! videoconvert ! videoscale ! %s ! stereo.sink_1",
		eyeWidth, rawVideoCaps(profile), videoEncodeChain(profile, hwAccel), udpSink(address, port),
		leftDevice, eyeCaps,
		rightDevice, eyeCaps)
}

// AudioLaunch builds the audio stream description: capture from an
// ALSA device, resample to the negotiated format, encode, payload as
// RTP, and send UDP to address:port. The format must be usable; the
// supervisor refuses unusable formats before building a launch
// description.
func AudioLaunch(device, address string, port int, format wire.AudioFormat) string {
	caps := fmt.Sprintf("audio/x-raw,rate=%d,channels=%d", format.SampleRate, format.Channels)
	return fmt.Sprintf("alsasrc device=%s ! audioconvert ! audioresample ! %s ! %s ! %s",
		device, caps, audioEncodeChain(format.Encoding), udpSink(address, port))
}

// rawVideoCaps pins the pre-encode format so the camera cannot
// negotiate a different resolution or framerate than the profile asks
// for.
func rawVideoCaps(profile VideoProfile) string {
	return fmt.Sprintf("video/x-raw,width=%d,height=%d,framerate=%d/1",
		profile.Width, profile.Height, profile.Framerate)
}

func udpSink(address string, port int) string {
	return fmt.Sprintf("udpsink host=%s port=%d", address, port)
}

// videoEncodeChain returns the encoder and RTP payloader elements for
// the profile. Bitrates are converted to the kbit/s units the x264 and
// VAAPI encoders expect; avenc_mpeg2video takes bits per second.
func videoEncodeChain(profile VideoProfile, hwAccel bool) string {
	switch profile.Encoding {
	case EncodingMJPEG:
		if hwAccel {
			return fmt.Sprintf("vaapijpegenc quality=%d ! rtpjpegpay", profile.MJPEGQuality)
		}
		return fmt.Sprintf("jpegenc quality=%d ! rtpjpegpay", profile.MJPEGQuality)
	case EncodingMPEG2:
		if hwAccel {
			return fmt.Sprintf("vaapimpeg2enc bitrate=%d ! rtpmpvpay", profile.Bitrate/1000)
		}
		return fmt.Sprintf("avenc_mpeg2video bitrate=%d ! rtpmpvpay", profile.Bitrate)
	case EncodingH264:
		if hwAccel {
			return fmt.Sprintf("vaapih264enc rate-control=cbr bitrate=%d ! rtph264pay config-interval=1", profile.Bitrate/1000)
		}
		return fmt.Sprintf("x264enc tune=zerolatency speed-preset=ultrafast bitrate=%d ! rtph264pay config-interval=1", profile.Bitrate/1000)
	}
	// Out-of-range encodings produce an empty chain, which GStreamer
	// rejects at parse time; the supervisor reports that like any other
	// construction failure.
	return ""
}

// audioEncodeChain returns the encoder and RTP payloader elements for
// the negotiated audio encoding.
func audioEncodeChain(encoding wire.AudioEncoding) string {
	switch encoding {
	case wire.AudioEncodingAC3:
		return "avenc_ac3 ! rtpac3pay"
	case wire.AudioEncodingVorbis:
		return "vorbisenc ! rtpvorbispay"
	}
	return ""
}
