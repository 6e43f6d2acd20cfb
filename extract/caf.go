package extract

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/nmaier/mkvengine/packet"
)

// CAFSink writes an Apple CAF container carrying ALAC-framed packets,
// the inverse of reader.CoreAudioSource: 'caff' + 'desc' + 'kuki' +
// (multi-channel: 'chan') + a reserved 'free' chunk + a 'data' chunk
// written with CAF's size-unknown (-1) sentinel, per spec.md §4.8.
// Grounded on original_source's caf.h chunk layout.
type CAFSink struct {
	w              io.Writer
	sampleRate     float64
	channels       uint32
	cookie         []byte
	wroteHeader    bool
	pos            int64
	dataSizeOffset int64 // absolute offset of the 'data' chunk's 8-byte size field
	dataBytes      int64
}

// NewCAFSink constructs a sink writing ALAC-in-CAF to w.
func NewCAFSink(w io.Writer, sampleRate float64, channels uint32, alacCookie []byte) *CAFSink {
	return &CAFSink{w: w, sampleRate: sampleRate, channels: channels, cookie: alacCookie}
}

func (s *CAFSink) write(b []byte) error {
	n, err := s.w.Write(b)
	s.pos += int64(n)
	return err
}

func (s *CAFSink) writeHeader() error {
	if err := s.write([]byte("caff\x00\x01\x00\x00")); err != nil {
		return err
	}
	if err := s.writeChunk("desc", cafDescChunk(s.sampleRate, s.channels)); err != nil {
		return err
	}
	if err := s.writeChunk("kuki", s.cookie); err != nil {
		return err
	}
	if s.channels > 2 {
		if err := s.writeChunk("chan", cafChannelLayoutChunk(s.channels)); err != nil {
			return err
		}
	}
	// Reserved 'free' chunk, left available for a later packet-table
	// ('pakt') migration per spec.md §4.8; zero-length is legal.
	if err := s.writeChunk("free", nil); err != nil {
		return err
	}
	return s.writeDataChunkHeader()
}

func (s *CAFSink) writeChunk(chunkType string, body []byte) error {
	var hdr [12]byte
	copy(hdr[0:4], chunkType)
	binary.BigEndian.PutUint64(hdr[4:12], uint64(len(body)))
	if err := s.write(hdr[:]); err != nil {
		return err
	}
	return s.write(body)
}

// writeDataChunkHeader writes the 'data' chunk's header with CAF's -1
// "unknown size" sentinel and records where the size field landed so
// Close can patch it once the packet count (and thus byte count) is known.
func (s *CAFSink) writeDataChunkHeader() error {
	var hdr [12]byte
	copy(hdr[0:4], "data")
	binary.BigEndian.PutUint64(hdr[4:12], math.MaxUint64)
	s.dataSizeOffset = s.pos + 4
	if err := s.write(hdr[:]); err != nil {
		return err
	}
	var editCount [4]byte
	return s.write(editCount[:])
}

func cafDescChunk(sampleRate float64, channels uint32) []byte {
	buf := make([]byte, 32)
	binary.BigEndian.PutUint64(buf[0:8], math.Float64bits(sampleRate))
	copy(buf[8:12], "alac")
	binary.BigEndian.PutUint32(buf[20:24], channels)
	return buf
}

func cafChannelLayoutChunk(channels uint32) []byte {
	buf := make([]byte, 12)
	// The layout-tag field always holds the bare channel count (layout
	// kind 0 in the high 16 bits); no named layout such as MPEG 5.1 is
	// chosen for any channel count, and the bitmap and description count
	// stay 0.
	binary.BigEndian.PutUint32(buf[0:4], channels)
	return buf
}

// WritePacket implements Sink.
func (s *CAFSink) WritePacket(pkt *packet.Packet) error {
	if !s.wroteHeader {
		if err := s.writeHeader(); err != nil {
			return err
		}
		s.wroteHeader = true
	}
	for _, frame := range pkt.Data {
		if err := s.write(frame); err != nil {
			return err
		}
		s.dataBytes += int64(len(frame))
	}
	return nil
}

// Close implements Sink. When w is also an io.WriteSeeker, the 'data'
// chunk's size field (edit count + packet bytes) is rewound and patched in
// place, matching spec.md §4.8's "on finish, rewind and overwrite data
// size" requirement; a non-seekable w keeps CAF's legal -1 sentinel.
func (s *CAFSink) Close() error {
	ws, ok := s.w.(io.WriteSeeker)
	if !ok || !s.wroteHeader {
		return nil
	}
	if _, err := ws.Seek(s.dataSizeOffset, io.SeekStart); err != nil {
		return err
	}
	var sizeBuf [8]byte
	binary.BigEndian.PutUint64(sizeBuf[:], uint64(4+s.dataBytes))
	if _, err := ws.Write(sizeBuf[:]); err != nil {
		return err
	}
	_, err := ws.Seek(0, io.SeekEnd)
	return err
}
