package reader

import (
	"encoding/binary"
	"io"

	"github.com/nmaier/mkvengine/internal/mkverr"
	"github.com/nmaier/mkvengine/packet"
	"github.com/nmaier/mkvengine/packetizer"
)

// OggSource demuxes a single logical Ogg bitstream (Vorbis/Theora/Kate;
// this engine does not attempt multiplexed multi-stream Ogg files, per
// spec.md's single-elementary-stream-per-reader model) into raw packets,
// reassembling packets that Ogg has split across page boundaries.
// Grounded on original_source's r_ogm.h stream model, generalized to plain
// Ogg container parsing (RFC 3533) rather than OGM's AVI-in-Ogg variant.
type OggSource struct {
	r           io.Reader
	track       *packet.Track
	granulerate float64
	pending     []byte // continued packet data spanning a page boundary
	eos         bool

	// segTable/segIndex track progress through the current page's
	// segment table, so a page holding more than one terminated packet
	// (e.g. Vorbis's three header packets grouped onto one page) yields
	// every packet instead of only the first.
	segTable    []byte
	segIndex    int
	pageGranule int64
	pageEOS     bool
}

// oggPageHeader is the fixed 27-byte prefix of every Ogg page (RFC 3533
// §6), before the variable-length segment table.
type oggPageHeader struct {
	version        byte
	headerType     byte
	granulePos     int64
	serial         uint32
	sequence       uint32
	checksum       uint32
	segmentCount   byte
}

// OpenOgg constructs an OggSource over r without reading from it; each
// page's "OggS" capture pattern is checked when ReadFrame reaches that
// page. The caller supplies track metadata (codec
// ID, CodecPrivate built via packetizer.BuildXiphCodecPrivate from the
// stream's own header packets) since identifying a codec from its first
// packet's magic bytes is itself codec-specific and done by the caller
// before constructing the Source.
func OpenOgg(r io.Reader, track *packet.Track, granuleRate float64) *OggSource {
	return &OggSource{r: r, track: track, granulerate: granuleRate}
}

// Tracks implements Source.
func (s *OggSource) Tracks() []*packet.Track { return []*packet.Track{s.track} }

func readOggPage(r io.Reader) (hdr oggPageHeader, segTable []byte, err error) {
	var capture [4]byte
	if _, err = io.ReadFull(r, capture[:]); err != nil {
		return
	}
	if string(capture[:]) != "OggS" {
		err = mkverr.New(mkverr.InvalidFormat, "missing OggS capture pattern")
		return
	}
	var rest [23]byte
	if _, err = io.ReadFull(r, rest[:]); err != nil {
		return
	}
	hdr.version = rest[0]
	hdr.headerType = rest[1]
	hdr.granulePos = int64(binary.LittleEndian.Uint64(rest[2:10]))
	hdr.serial = binary.LittleEndian.Uint32(rest[10:14])
	hdr.sequence = binary.LittleEndian.Uint32(rest[14:18])
	hdr.checksum = binary.LittleEndian.Uint32(rest[18:22])
	hdr.segmentCount = rest[22]
	segTable = make([]byte, hdr.segmentCount)
	_, err = io.ReadFull(r, segTable)
	return
}

// ReadFrame implements Source, reading and reassembling Ogg packets one at
// a time. A page's segment table is fully drained — one packet per call —
// before the next page is fetched, so a page holding several terminated
// packets (e.g. Vorbis's three header packets grouped onto one page) yields
// every one of them instead of only the first.
func (s *OggSource) ReadFrame(trackIdx int) (packetizer.Frame, error) {
	if trackIdx != 0 {
		return packetizer.Frame{}, mkverr.New(mkverr.InternalInvariant, "Ogg source has only one track")
	}
	for {
		if s.segIndex >= len(s.segTable) {
			if s.eos {
				return packetizer.Frame{}, io.EOF
			}
			hdr, segTable, err := readOggPage(s.r)
			if err == io.EOF {
				if len(s.pending) > 0 {
					frame := s.pending
					s.pending = nil
					s.eos = true
					return s.toFrame(frame, s.pageGranule), nil
				}
				return packetizer.Frame{}, io.EOF
			}
			if err != nil {
				return packetizer.Frame{}, err
			}
			s.segTable = segTable
			s.segIndex = 0
			s.pageGranule = hdr.granulePos
			s.pageEOS = hdr.headerType&0x04 != 0
			continue
		}

		segLen := s.segTable[s.segIndex]
		buf := make([]byte, segLen)
		if _, err := io.ReadFull(s.r, buf); err != nil {
			return packetizer.Frame{}, err
		}
		s.pending = append(s.pending, buf...)
		isLastSegment := s.segIndex == len(s.segTable)-1
		s.segIndex++

		if segLen == 255 {
			// Packet continues into the next segment table entry, or
			// (if this was the table's last entry) the next page.
			continue
		}
		frame := s.pending
		s.pending = nil
		if isLastSegment && s.pageEOS {
			s.eos = true
		}
		return s.toFrame(frame, s.pageGranule), nil
	}
}

func (s *OggSource) toFrame(data []byte, granule int64) packetizer.Frame {
	var tc int64
	if s.granulerate > 0 {
		tc = int64(float64(granule) / s.granulerate * 1e9)
	}
	return packetizer.Frame{Data: data, Timecode: tc, Keyframe: true}
}

// Close implements Source.
func (s *OggSource) Close() error { return nil }
