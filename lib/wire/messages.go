// Copyright 2026 The University of Oklahoma.
// SPDX-License-Identifier: Apache-2.0

package wire

// Typed encode/decode helpers, one pair per tag with fields. Encoders
// return the complete message buffer; decoders take the Reader
// produced by DecodeTag and read the tag's fields in declared order.
// Tags without fields get only an encoder; there is nothing to read.

// EncodeRoverStatusUpdate builds a rover-status-update message.
func EncodeRoverStatusUpdate(mbedOK bool) []byte {
	w := NewWriter(TagRoverStatusUpdate)
	w.PutBool(mbedOK)
	return w.Bytes()
}

// DecodeRoverStatusUpdate reads the fields of a rover-status-update.
func DecodeRoverStatusUpdate(r *Reader) (mbedOK bool, err error) {
	return r.Bool()
}

// EncodeMediaServerError builds a media-server-error message.
func EncodeMediaServerError(mediaID int32, message string) []byte {
	w := NewWriter(TagMediaServerError)
	w.PutInt32(mediaID)
	w.PutString(message)
	return w.Bytes()
}

// DecodeMediaServerError reads the fields of a media-server-error.
func DecodeMediaServerError(r *Reader) (mediaID int32, message string, err error) {
	if mediaID, err = r.Int32(); err != nil {
		return 0, "", err
	}
	if message, err = r.String(); err != nil {
		return 0, "", err
	}
	return mediaID, message, nil
}

// EncodeGPSUpdate builds a gps-update message.
func EncodeGPSUpdate(fix GPSFix) []byte {
	w := NewWriter(TagGPSUpdate)
	w.PutGPSFix(fix)
	return w.Bytes()
}

// DecodeGPSUpdate reads the fix carried by a gps-update.
func DecodeGPSUpdate(r *Reader) (GPSFix, error) {
	return r.GPSFix()
}

// EncodeDriveOverrideStart builds a drive-override-start message.
func EncodeDriveOverrideStart() []byte {
	return NewWriter(TagDriveOverrideStart).Bytes()
}

// EncodeDriveOverrideEnd builds a drive-override-end message.
func EncodeDriveOverrideEnd() []byte {
	return NewWriter(TagDriveOverrideEnd).Bytes()
}

// EncodeSensorUpdate builds a sensor-update message around raw sensor
// bytes. The protocol layer does not interpret them.
func EncodeSensorUpdate(raw []byte) []byte {
	w := NewWriter(TagSensorUpdate)
	w.PutBytes(raw)
	return w.Bytes()
}

// DecodeSensorUpdate reads the raw sensor bytes of a sensor-update.
// The returned slice aliases the message buffer.
func DecodeSensorUpdate(r *Reader) ([]byte, error) {
	return r.Bytes()
}

// EncodeStartDataRecording builds a start-data-recording message
// carrying the initiator's capture timestamp in unix milliseconds.
func EncodeStartDataRecording(timestampMS int64) []byte {
	w := NewWriter(TagStartDataRecording)
	w.PutInt64(timestampMS)
	return w.Bytes()
}

// DecodeStartDataRecording reads the capture timestamp of a
// start-data-recording.
func DecodeStartDataRecording(r *Reader) (timestampMS int64, err error) {
	return r.Int64()
}

// EncodeStopDataRecording builds a stop-data-recording message.
func EncodeStopDataRecording() []byte {
	return NewWriter(TagStopDataRecording).Bytes()
}

// EncodeStopAllCameraStreams builds a stop-all-camera-streams message.
func EncodeStopAllCameraStreams() []byte {
	return NewWriter(TagStopAllCameraStreams).Bytes()
}

// EncodeActivateAudioStream builds a request-activate-audio-stream
// message. Callers must not pass a format with Usable()==false; the
// dispatcher's send path enforces this.
func EncodeActivateAudioStream(format AudioFormat) []byte {
	w := NewWriter(TagRequestActivateAudioStream)
	w.PutAudioFormat(format)
	return w.Bytes()
}

// DecodeActivateAudioStream reads the format carried by a
// request-activate-audio-stream.
func DecodeActivateAudioStream(r *Reader) (AudioFormat, error) {
	return r.AudioFormat()
}

// EncodeDeactivateAudioStream builds a request-deactivate-audio-stream
// message.
func EncodeDeactivateAudioStream() []byte {
	return NewWriter(TagRequestDeactivateAudioStream).Bytes()
}
