package ebml

import (
	"fmt"
	"math"
	"time"
)

// matroskaEpoch is the reference date (2001-01-01 UTC) from which
// Matroska DateUTC elements count nanoseconds.
var matroskaEpoch = time.Date(2001, time.January, 1, 0, 0, 0, 0, time.UTC)

// Element is a decoded EBML element header together with its raw payload.
// Offset is the absolute file position of the element's ID octet, used by
// cluster/mux for meta-seek bookkeeping. UnknownSize is set when the
// element's size field was the all-ones sentinel (legal for Segment and
// Cluster per spec.md §6.1); in that case Size is 0, since no size was read
// from the stream and the reader does not compute one.
type Element struct {
	ID          uint32
	Size        uint64
	Offset      int64
	HeaderSize  int64
	UnknownSize bool
	Data        []byte
}

// ReadUInt decodes the element's payload as a big-endian unsigned integer.
// Matroska allows 0..8 byte unsigned integers; an empty payload decodes as 0.
func (e *Element) ReadUInt() (uint64, error) {
	if len(e.Data) > 8 {
		return 0, fmt.Errorf("ebml: uint element too large (%d bytes)", len(e.Data))
	}
	var v uint64
	for _, b := range e.Data {
		v = v<<8 | uint64(b)
	}
	return v, nil
}

// ReadInt decodes the element's payload as a big-endian two's-complement
// signed integer, sign-extending from the payload's actual width.
func (e *Element) ReadInt() (int64, error) {
	if len(e.Data) > 8 {
		return 0, fmt.Errorf("ebml: int element too large (%d bytes)", len(e.Data))
	}
	if len(e.Data) == 0 {
		return 0, nil
	}
	var v uint64
	for _, b := range e.Data {
		v = v<<8 | uint64(b)
	}
	bits := uint(len(e.Data)) * 8
	if e.Data[0]&0x80 != 0 && bits < 64 {
		v |= ^uint64(0) << bits
	}
	return int64(v), nil
}

// ReadFloat decodes the element's payload as an IEEE-754 float, which EBML
// permits in either 4-byte (float32) or 8-byte (float64) big-endian form.
func (e *Element) ReadFloat() (float64, error) {
	switch len(e.Data) {
	case 0:
		return 0, nil
	case 4:
		bits := uint32(e.Data[0])<<24 | uint32(e.Data[1])<<16 | uint32(e.Data[2])<<8 | uint32(e.Data[3])
		return float64(math.Float32frombits(bits)), nil
	case 8:
		var bits uint64
		for _, b := range e.Data {
			bits = bits<<8 | uint64(b)
		}
		return math.Float64frombits(bits), nil
	default:
		return 0, fmt.Errorf("ebml: float element has invalid size %d", len(e.Data))
	}
}

// ReadString decodes the element's payload as an ASCII/printable string,
// trimming the NUL padding Matroska writers sometimes leave behind.
func (e *Element) ReadString() string {
	data := e.Data
	for len(data) > 0 && data[len(data)-1] == 0 {
		data = data[:len(data)-1]
	}
	return string(data)
}

// ReadUTF8 decodes the element's payload as a UTF-8 string (UnicodeString
// elements); Matroska does not NUL-pad these, but trimming is harmless.
func (e *Element) ReadUTF8() string {
	return e.ReadString()
}

// ReadDate decodes the element's payload as a Matroska DateUTC value: a
// signed integer count of nanoseconds since 2001-01-01T00:00:00 UTC.
func (e *Element) ReadDate() (time.Time, error) {
	ns, err := e.ReadInt()
	if err != nil {
		return time.Time{}, err
	}
	return matroskaEpoch.Add(time.Duration(ns)), nil
}

// ReadBytes returns the raw payload unchanged (Binary elements).
func (e *Element) ReadBytes() []byte {
	return e.Data
}

// EndOffset returns the absolute file offset one past the element's last
// payload byte, for elements with a known size.
func (e *Element) EndOffset() int64 {
	return e.Offset + e.HeaderSize + int64(e.Size)
}
