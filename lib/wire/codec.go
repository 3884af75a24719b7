// Copyright 2026 The University of Oklahoma.
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// tagLength is the fixed prefix every message starts with: the 4-byte
// big-endian tag.
const tagLength = 4

// ErrShortBuffer indicates a buffer that ended before a declared field
// was complete.
var ErrShortBuffer = errors.New("buffer too short")

// ProtocolError reports a malformed or truncated message. Op names the
// field read that failed. Decoders return it instead of panicking so a
// bad peer can never take the dispatcher down.
type ProtocolError struct {
	Op  string
	Err error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("wire: %s: %v", e.Op, e.Err)
	}
	return "wire: " + e.Op
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// Writer builds one message: a tag followed by fields appended in
// declaration order. Writes cannot fail; the result is read once with
// Bytes.
type Writer struct {
	buf []byte
}

// NewWriter starts a message with the given tag.
func NewWriter(tag Tag) *Writer {
	w := &Writer{buf: make([]byte, 0, 64)}
	w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(tag))
	return w
}

// PutBool appends one byte: 1 for true, 0 for false.
func (w *Writer) PutBool(v bool) {
	if v {
		w.buf = append(w.buf, 1)
	} else {
		w.buf = append(w.buf, 0)
	}
}

// PutInt32 appends a big-endian 32-bit integer.
func (w *Writer) PutInt32(v int32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(v))
}

// PutUint32 appends a big-endian unsigned 32-bit integer.
func (w *Writer) PutUint32(v uint32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, v)
}

// PutInt64 appends a big-endian 64-bit integer.
func (w *Writer) PutInt64(v int64) {
	w.buf = binary.BigEndian.AppendUint64(w.buf, uint64(v))
}

// PutFloat64 appends the IEEE 754 bits of v, big-endian.
func (w *Writer) PutFloat64(v float64) {
	w.buf = binary.BigEndian.AppendUint64(w.buf, math.Float64bits(v))
}

// PutString appends a uint32 length prefix and the UTF-8 bytes of s.
func (w *Writer) PutString(s string) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(len(s)))
	w.buf = append(w.buf, s...)
}

// PutBytes appends a uint32 length prefix and the raw bytes.
func (w *Writer) PutBytes(b []byte) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(len(b)))
	w.buf = append(w.buf, b...)
}

// PutGPSFix appends a GPS fix as its fields in declaration order.
func (w *Writer) PutGPSFix(f GPSFix) {
	w.PutFloat64(f.Latitude)
	w.PutFloat64(f.Longitude)
	w.PutFloat64(f.Altitude)
	w.PutFloat64(f.Heading)
	w.PutInt32(f.Satellites)
}

// PutAudioFormat appends an audio format as its fields in declaration
// order.
func (w *Writer) PutAudioFormat(f AudioFormat) {
	w.PutUint32(uint32(f.Encoding))
	w.PutUint32(f.SampleRate)
	w.PutUint32(f.Channels)
}

// Bytes returns the encoded message. The writer retains ownership of
// the buffer; callers must not mutate it after handing it to a sender.
func (w *Writer) Bytes() []byte { return w.buf }

// Reader consumes the fields of one message after DecodeTag has read
// the tag. Each read returns *ProtocolError when the buffer ends
// before the field does.
type Reader struct {
	data []byte
	off  int
}

// DecodeTag reads the 4-byte tag prefix and returns a Reader
// positioned at the first field. Fails with *ProtocolError if the
// buffer is shorter than the prefix. The tag value itself is not
// validated; unknown tags are legal wire values.
func DecodeTag(data []byte) (Tag, *Reader, error) {
	if len(data) < tagLength {
		return 0, nil, &ProtocolError{Op: "read tag", Err: ErrShortBuffer}
	}
	tag := Tag(binary.BigEndian.Uint32(data[:tagLength]))
	return tag, &Reader{data: data, off: tagLength}, nil
}

// take consumes n bytes, or fails the named field read.
func (r *Reader) take(n int, op string) ([]byte, error) {
	if len(r.data)-r.off < n {
		return nil, &ProtocolError{Op: op, Err: ErrShortBuffer}
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b, nil
}

// Bool reads one byte; any nonzero value decodes as true.
func (r *Reader) Bool() (bool, error) {
	b, err := r.take(1, "read bool")
	if err != nil {
		return false, err
	}
	return b[0] != 0, nil
}

// Int32 reads a big-endian 32-bit integer.
func (r *Reader) Int32() (int32, error) {
	b, err := r.take(4, "read int32")
	if err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(b)), nil
}

// Uint32 reads a big-endian unsigned 32-bit integer.
func (r *Reader) Uint32() (uint32, error) {
	b, err := r.take(4, "read uint32")
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// Int64 reads a big-endian 64-bit integer.
func (r *Reader) Int64() (int64, error) {
	b, err := r.take(8, "read int64")
	if err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(b)), nil
}

// Float64 reads big-endian IEEE 754 bits.
func (r *Reader) Float64() (float64, error) {
	b, err := r.take(8, "read float64")
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.BigEndian.Uint64(b)), nil
}

// String reads a uint32 length prefix and that many UTF-8 bytes.
func (r *Reader) String() (string, error) {
	length, err := r.Uint32()
	if err != nil {
		return "", &ProtocolError{Op: "read string length", Err: ErrShortBuffer}
	}
	if int(length) > len(r.data)-r.off {
		return "", &ProtocolError{Op: "read string", Err: ErrShortBuffer}
	}
	b, err := r.take(int(length), "read string")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Bytes reads a uint32 length prefix and that many raw bytes. The
// returned slice aliases the message buffer; callers that retain it
// past the handler must copy.
func (r *Reader) Bytes() ([]byte, error) {
	length, err := r.Uint32()
	if err != nil {
		return nil, &ProtocolError{Op: "read bytes length", Err: ErrShortBuffer}
	}
	if int(length) > len(r.data)-r.off {
		return nil, &ProtocolError{Op: "read bytes", Err: ErrShortBuffer}
	}
	return r.take(int(length), "read bytes")
}

// GPSFix reads a GPS fix's fields in declaration order.
func (r *Reader) GPSFix() (GPSFix, error) {
	var f GPSFix
	var err error
	if f.Latitude, err = r.Float64(); err != nil {
		return GPSFix{}, err
	}
	if f.Longitude, err = r.Float64(); err != nil {
		return GPSFix{}, err
	}
	if f.Altitude, err = r.Float64(); err != nil {
		return GPSFix{}, err
	}
	if f.Heading, err = r.Float64(); err != nil {
		return GPSFix{}, err
	}
	if f.Satellites, err = r.Int32(); err != nil {
		return GPSFix{}, err
	}
	return f, nil
}

// AudioFormat reads an audio format's fields in declaration order.
func (r *Reader) AudioFormat() (AudioFormat, error) {
	var f AudioFormat
	encoding, err := r.Uint32()
	if err != nil {
		return AudioFormat{}, err
	}
	f.Encoding = AudioEncoding(encoding)
	if f.SampleRate, err = r.Uint32(); err != nil {
		return AudioFormat{}, err
	}
	if f.Channels, err = r.Uint32(); err != nil {
		return AudioFormat{}, err
	}
	return f, nil
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.data) - r.off }
