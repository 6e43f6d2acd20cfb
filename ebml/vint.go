// Package ebml implements the Extensible Binary Meta Language framing rules
// used by Matroska: variable-length integers, element headers, and the
// scalar encodings (unsigned/signed integer, float, string, date) that sit
// inside leaf elements.
package ebml

import (
	"fmt"
	"io"
)

// maxVIntLength is the largest VINT width EBML allows (8 octets).
const maxVIntLength = 8

// vintMarker and vintPayload are indexed by the number of leading zero bits in
// the first VINT octet (0..7). vintMarker isolates the marker bit, vintPayload
// isolates the payload bits that remain in the first octet once the marker
// bit is stripped. Keeping these as tables rather than a branching if/else
// chain matches how pixelbender's decoder derives width from the first
// octet, and reads more clearly than the teacher's original switch.
var (
	vintMarker  = [8]byte{0x80, 0x40, 0x20, 0x10, 0x08, 0x04, 0x02, 0x01}
	vintPayload = [8]byte{0x7f, 0x3f, 0x1f, 0x0f, 0x07, 0x03, 0x01, 0x00}
)

// ErrUnknownSize is returned (or, where the caller opts in, tolerated) when
// a VINT decodes to the EBML "unknown size" sentinel (all payload bits 1).
var ErrUnknownSize = fmt.Errorf("ebml: unknown-size element")

// vintWidth returns the encoded width of a VINT given its first octet, or
// 0 if the octet is invalid (no marker bit set).
func vintWidth(first byte) int {
	for i := 0; i < maxVIntLength; i++ {
		if first&vintMarker[i] != 0 {
			return i + 1
		}
	}
	return 0
}

// readVInt reads one VINT from r. If keepMarker is true the leading marker
// bit is retained in the returned value (used for element IDs, which are
// compared byte-for-byte including their marker); otherwise it is stripped
// and the numeric payload is returned (used for sizes).
func readVInt(r io.Reader, keepMarker bool) (value uint64, width int, err error) {
	var first [1]byte
	if _, err = io.ReadFull(r, first[:]); err != nil {
		return 0, 0, err
	}
	width = vintWidth(first[0])
	if width == 0 {
		return 0, 0, fmt.Errorf("ebml: invalid vint lead byte 0x%02x", first[0])
	}
	if width == 1 {
		if keepMarker {
			value = uint64(first[0])
		} else {
			value = uint64(first[0] & vintPayload[0])
		}
		return value, width, nil
	}
	rest := make([]byte, width-1)
	if _, err = io.ReadFull(r, rest); err != nil {
		return 0, 0, err
	}
	if keepMarker {
		value = uint64(first[0])
	} else {
		value = uint64(first[0] & vintPayload[width-1])
	}
	for _, b := range rest {
		value = value<<8 | uint64(b)
	}
	return value, width, nil
}

// isUnknownSize reports whether a size VINT of the given width decodes to
// the all-ones "unknown size" sentinel defined by the EBML spec.
func isUnknownSize(value uint64, width int) bool {
	payloadBits := uint(7 * width)
	if width == 0 {
		return false
	}
	return value == (uint64(1)<<payloadBits)-1
}

// vintEncodedWidth returns the minimum number of octets needed to encode v
// as a VINT payload (i.e. not counting any forced minimum width).
func vintEncodedWidth(v uint64) int {
	for w := 1; w <= maxVIntLength; w++ {
		if v < (uint64(1)<<(7*w))-1 {
			return w
		}
	}
	return maxVIntLength
}

// appendVInt appends the VINT encoding of v to dst, using width octets
// (0 = smallest width that fits). Returns an error if v does not fit in
// width octets.
func appendVInt(dst []byte, v uint64, width int) ([]byte, error) {
	if width == 0 {
		width = vintEncodedWidth(v)
	}
	maxVal := (uint64(1) << (7 * width)) - 1
	if width < maxVIntLength && v > maxVal {
		return nil, fmt.Errorf("ebml: value %d does not fit in %d-octet vint", v, width)
	}
	buf := make([]byte, width)
	for i := width - 1; i >= 0; i-- {
		buf[i] = byte(v)
		v >>= 8
	}
	buf[0] |= vintMarker[width-1]
	return append(dst, buf...), nil
}

// appendID appends a raw element-ID VINT (marker bit retained as part of
// the value, exactly as it appears on the wire) to dst.
func appendID(dst []byte, id uint32) []byte {
	width := 4
	switch {
	case id&0xFF000000 != 0:
		width = 4
	case id&0x00FF0000 != 0:
		width = 3
	case id&0x0000FF00 != 0:
		width = 2
	default:
		width = 1
	}
	buf := make([]byte, width)
	v := id
	for i := width - 1; i >= 0; i-- {
		buf[i] = byte(v)
		v >>= 8
	}
	return append(dst, buf...)
}

// unknownSizeValue returns the on-wire value for an unknown-size sentinel
// encoded in width octets.
func unknownSizeValue(width int) uint64 {
	return (uint64(1) << uint(7*width)) - 1
}
