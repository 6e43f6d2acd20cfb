package reader

import (
	"encoding/binary"
	"io"

	"github.com/nmaier/mkvengine/internal/mkverr"
	"github.com/nmaier/mkvengine/packet"
	"github.com/nmaier/mkvengine/packetizer"
)

// wavpackBlockHeaderSize is WavPack4's fixed 32-byte block header size.
const wavpackBlockHeaderSize = 32

// WavPackSource reads a WavPack4 (.wv) elementary stream block-by-block,
// optionally paired with a hybrid correction stream (.wvc), per
// SPEC_FULL.md's Supplemented Features section (grounded on
// original_source's r_wavpack.cpp).
type WavPackSource struct {
	r          io.Reader
	correction io.Reader
	track      *packet.Track
	sampleRate uint32
	timecode   int64
}

// OpenWavPack wraps r (the primary .wv stream) and, if non-nil, correction
// (the companion .wvc stream) as a Source.
func OpenWavPack(r io.Reader, correction io.Reader) (*WavPackSource, error) {
	track := &packet.Track{Type: 2, CodecID: "A_WAVPACK4"}
	return &WavPackSource{r: r, correction: correction, track: track}, nil
}

// Tracks implements Source.
func (s *WavPackSource) Tracks() []*packet.Track { return []*packet.Track{s.track} }

// ReadFrame implements Source. The correction subblock, if present, is
// attached by the caller (packetizer.WavPackPacketizer.ProcessWithCorrection)
// rather than here, since Source.ReadFrame's signature carries only one
// Frame; callers reading a hybrid stream should call readWavPackBlock on
// both streams directly instead of going through this Source.
func (s *WavPackSource) ReadFrame(trackIdx int) (packetizer.Frame, error) {
	if trackIdx != 0 {
		return packetizer.Frame{}, mkverr.New(mkverr.InternalInvariant, "WavPack source has only one track")
	}
	block, sampleCount, err := readWavPackBlock(s.r)
	if err != nil {
		return packetizer.Frame{}, err
	}
	var dur int64
	if s.sampleRate > 0 {
		dur = int64(float64(sampleCount) / float64(s.sampleRate) * 1e9)
	}
	f := packetizer.Frame{Data: block, Timecode: s.timecode, Duration: dur, Keyframe: true}
	s.timecode += dur
	return f, nil
}

// ReadCorrectionBlock reads the next correction subblock, or io.EOF if
// this source was opened without a correction stream or it is exhausted.
func (s *WavPackSource) ReadCorrectionBlock() ([]byte, error) {
	if s.correction == nil {
		return nil, io.EOF
	}
	block, _, err := readWavPackBlock(s.correction)
	return block, err
}

// readWavPackBlock reads one WavPack4 block: a fixed 32-byte header whose
// bytes 4-7 give the block's size excluding its first 8 bytes (the "wvpk"
// signature and this size field), per WavPack4's published block format.
func readWavPackBlock(r io.Reader) (block []byte, sampleCount uint32, err error) {
	hdr := make([]byte, wavpackBlockHeaderSize)
	if _, err = io.ReadFull(r, hdr); err != nil {
		return nil, 0, err
	}
	if string(hdr[0:4]) != "wvpk" {
		return nil, 0, mkverr.New(mkverr.InvalidFormat, "missing wvpk block signature")
	}
	blockSize := binary.LittleEndian.Uint32(hdr[4:8])
	sampleCount = binary.LittleEndian.Uint32(hdr[12:16])
	payload := make([]byte, int(blockSize)-(wavpackBlockHeaderSize-8))
	if _, err = io.ReadFull(r, payload); err != nil {
		return nil, 0, err
	}
	return append(hdr, payload...), sampleCount, nil
}

// Close implements Source.
func (s *WavPackSource) Close() error { return nil }
