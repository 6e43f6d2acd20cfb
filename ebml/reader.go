package ebml

import (
	"bytes"
	"fmt"
	"io"
)

// Reader walks an EBML byte stream, handing back one Element at a time.
// It is grounded on luispater-matroska-go/ebml.go's EBMLReader, generalized
// to tolerate the unknown-size sentinel (the teacher's ReadElement rejects
// it outright with "unknown size elements not supported", which spec.md
// §6.1 requires this engine to accept for live-style Segment/Cluster
// writes).
type Reader struct {
	r   io.ReadSeeker
	pos int64
}

// NewReader wraps r for EBML element-at-a-time reading, starting at the
// stream's current position.
func NewReader(r io.ReadSeeker) *Reader {
	return &Reader{r: r}
}

// NewReaderAt wraps r, treating pos as the logical starting offset (used
// when r is itself a sub-slice, e.g. a child-element byte buffer carved out
// of a parent's payload).
func NewReaderAt(r io.ReadSeeker, pos int64) *Reader {
	return &Reader{r: r, pos: pos}
}

// NewBytesReader wraps a byte slice (typically an already-read element's
// Data) for recursive parsing of its children.
func NewBytesReader(b []byte) *Reader {
	return &Reader{r: &seekableBytes{Reader: bytes.NewReader(b)}}
}

// Position returns the reader's current absolute offset.
func (r *Reader) Position() int64 { return r.pos }

// Seek moves the reader to an absolute offset.
func (r *Reader) Seek(pos int64) error {
	if _, err := r.r.Seek(pos, io.SeekStart); err != nil {
		return err
	}
	r.pos = pos
	return nil
}

func (r *Reader) readN(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		return nil, err
	}
	r.pos += int64(n)
	return buf, nil
}

// countingReader lets readVInt consume from the underlying stream while we
// track how many bytes it took, without re-seeking.
type countingReader struct {
	r *Reader
	n int
}

func (c *countingReader) Read(p []byte) (int, error) {
	buf, err := c.r.readN(len(p))
	n := copy(p, buf)
	c.n += n
	return n, err
}

// ReadElementHeader reads the ID and size VINTs of the next element without
// consuming its payload.
func (r *Reader) ReadElementHeader() (*Element, error) {
	start := r.pos
	cr := &countingReader{r: r}
	id, _, err := readVInt(cr, true)
	if err != nil {
		return nil, err
	}
	size, sizeWidth, err := readVInt(cr, false)
	if err != nil {
		return nil, err
	}
	el := &Element{
		ID:         uint32(id),
		Size:       size,
		Offset:     start,
		HeaderSize: int64(cr.n),
	}
	if isUnknownSize(size, sizeWidth) {
		el.UnknownSize = true
		el.Size = 0
	}
	return el, nil
}

// ReadElement reads the next element's header and its full payload. Master
// elements (Segment, Cluster, ...) are typically read via ReadElementHeader
// followed by recursive ReadElement calls over their children instead, to
// avoid buffering gigabyte-scale payloads; ReadElement is for leaf elements
// and small masters only.
func (r *Reader) ReadElement() (*Element, error) {
	el, err := r.ReadElementHeader()
	if err != nil {
		return nil, err
	}
	if el.UnknownSize {
		return el, fmt.Errorf("ebml: ReadElement cannot buffer unknown-size element 0x%X; use ReadElementHeader", el.ID)
	}
	data, err := r.readN(int(el.Size))
	if err != nil {
		return nil, err
	}
	el.Data = data
	return el, nil
}

// SkipElement advances the reader past an already-header-read element's
// payload, without buffering it.
func (r *Reader) SkipElement(el *Element) error {
	if el.UnknownSize {
		return fmt.Errorf("ebml: cannot skip unknown-size element 0x%X", el.ID)
	}
	return r.Seek(el.Offset + el.HeaderSize + int64(el.Size))
}

// seekableBytes adapts *bytes.Reader to io.ReadSeeker with absolute-offset
// semantics matching the teacher's seekableReader helper.
type seekableBytes struct {
	*bytes.Reader
}
