package reader

import (
	"io"

	"github.com/nmaier/mkvengine/internal/mkverr"
	"github.com/nmaier/mkvengine/packet"
	"github.com/nmaier/mkvengine/packetizer"
)

// RawSource treats its input as a single elementary stream on one track,
// splitting it into frames using a caller-supplied FrameSplitter (e.g.
// Annex-B start-code scanning for raw AVC/HEVC, or fixed-size chunking for
// uncompressed PCM). Grounded on the "fullraw" passthrough case spec.md
// §4.3/§4.8 describes for extract_sink's inverse, generalized here to the
// read direction.
type RawSource struct {
	r        io.Reader
	track    *packet.Track
	split    FrameSplitter
	timecode int64
	frameDur int64
	closed   bool
}

// FrameSplitter extracts the next frame's bytes from r, returning io.EOF
// once the stream is exhausted.
type FrameSplitter func(r io.Reader) ([]byte, error)

// NewRawSource constructs a single-track raw elementary-stream source.
// frameDurationNS is used when the format carries no explicit per-frame
// duration (e.g. fixed-frame-rate raw video).
func NewRawSource(r io.Reader, track *packet.Track, split FrameSplitter, frameDurationNS int64) *RawSource {
	return &RawSource{r: r, track: track, split: split, frameDur: frameDurationNS}
}

// Tracks implements Source.
func (s *RawSource) Tracks() []*packet.Track { return []*packet.Track{s.track} }

// ReadFrame implements Source.
func (s *RawSource) ReadFrame(trackIdx int) (packetizer.Frame, error) {
	if trackIdx != 0 {
		return packetizer.Frame{}, mkverr.New(mkverr.InternalInvariant, "raw source has only one track")
	}
	data, err := s.split(s.r)
	if err != nil {
		return packetizer.Frame{}, err
	}
	f := packetizer.Frame{Data: data, Timecode: s.timecode, Duration: s.frameDur, Keyframe: true}
	s.timecode += s.frameDur
	return f, nil
}

// Close implements Source.
func (s *RawSource) Close() error { return nil }

// FixedSizeSplitter returns a FrameSplitter that reads exactly n bytes per
// frame (used for uncompressed PCM and similar fixed-frame formats).
func FixedSizeSplitter(n int) FrameSplitter {
	return func(r io.Reader) ([]byte, error) {
		buf := make([]byte, n)
		if _, err := io.ReadFull(r, buf); err != nil {
			if err == io.ErrUnexpectedEOF {
				return nil, io.EOF
			}
			return nil, err
		}
		return buf, nil
	}
}

// AnnexBSplitter returns a FrameSplitter that scans for 00 00 01 / 00 00 00
// 01 start codes and returns the bytes between them (inclusive of the
// leading start code of the returned frame), the layout raw .h264/.h265
// elementary streams use.
func AnnexBSplitter() FrameSplitter {
	var pending []byte
	return func(r io.Reader) ([]byte, error) {
		buf := make([]byte, 4096)
		for {
			if idx := findNextStartCode(pending, 4); idx > 0 {
				frame := pending[:idx]
				pending = pending[idx:]
				return frame, nil
			}
			n, err := r.Read(buf)
			if n > 0 {
				pending = append(pending, buf[:n]...)
			}
			if err == io.EOF {
				if len(pending) == 0 {
					return nil, io.EOF
				}
				frame := pending
				pending = nil
				return frame, nil
			}
			if err != nil {
				return nil, err
			}
		}
	}
}

// findNextStartCode finds the offset of the second Annex-B start code in
// data (the first is assumed to be at or near offset 0, the frame's own
// leading start code), searching from after the given minimum offset.
func findNextStartCode(data []byte, from int) int {
	for i := from; i+3 <= len(data); i++ {
		if data[i] == 0 && data[i+1] == 0 && data[i+2] == 1 {
			return i
		}
	}
	return -1
}
