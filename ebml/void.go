package ebml

import "io"

// IDVoid is the Void element ID, used as padding that can be overwritten
// in place without shifting any other element's offset.
const IDVoid = 0xEC

// WriteVoid writes a Void element whose total on-wire size (header +
// payload) is exactly n bytes. n must be large enough to hold the ID octet,
// a size VINT, and zero or more payload bytes; the smallest representable
// Void element is 2 bytes (1-byte ID + 1-byte zero-length size).
func (w *Writer) WriteVoid(n int) error {
	if n < 2 {
		return io.ErrShortWrite
	}
	// IDVoid always encodes as a single octet (0xEC has its marker bit
	// already in position 1), so the size VINT must absorb n-1-sizeWidth
	// payload bytes. Pick the smallest size-VINT width that can express
	// the remaining payload length without the marker+payload together
	// exceeding the budget.
	for sizeWidth := 1; sizeWidth <= maxVIntLength; sizeWidth++ {
		payloadLen := n - 1 - sizeWidth
		if payloadLen < 0 {
			continue
		}
		maxPayload := (uint64(1) << uint(7*sizeWidth)) - 2
		if uint64(payloadLen) > maxPayload {
			continue
		}
		var hdr []byte
		hdr = append(hdr, 0xEC)
		var err error
		hdr, err = appendVInt(hdr, uint64(payloadLen), sizeWidth)
		if err != nil {
			return err
		}
		if err := w.write(hdr); err != nil {
			return err
		}
		if payloadLen > 0 {
			return w.write(make([]byte, payloadLen))
		}
		return nil
	}
	return io.ErrShortWrite
}

// ReplaceWithVoid overwrites the element at offset (header+payload size
// totaling n bytes) with a single Void element of the same total size, via
// ws. This implements spec.md §4.1's reserve-and-replace protocol: a
// SeekHead entry, once its target element's real offset is known, can be
// voided out and replaced without disturbing any later element's position.
func ReplaceWithVoid(ws io.WriteSeeker, offset int64, n int) error {
	if _, err := ws.Seek(offset, io.SeekStart); err != nil {
		return err
	}
	vw := NewWriter(ws)
	return vw.WriteVoid(n)
}
