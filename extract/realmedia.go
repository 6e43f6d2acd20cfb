package extract

import (
	"encoding/binary"
	"io"

	"github.com/nmaier/mkvengine/internal/mkverr"
	"github.com/nmaier/mkvengine/packet"
)

// RealMediaSink writes a RealMedia (.rm) file: ".RMF" file header, a PROP
// header, one MDPR per track, and a single DATA chunk of frame records,
// the inverse of reader.RealMediaSource. A placeholder PROP is written on
// construction and patched in place at Close once every packet has been
// seen, driving bit-rate and max/avg packet-size statistics the same way
// original_source's librmff updates them automatically as frames are
// added. Grounded on original_source's librmff/rmff.c
// (write_prop_header/write_mdpr_header); rmff_fix_headers and
// rmff_write_index are themselves unimplemented stubs in the retrieved
// pack (rmff_fix_headers literally `return -1`), so the seek index this
// sink could emit has no reference implementation to follow — see
// DESIGN.md.
type RealMediaSink struct {
	w      io.WriteSeeker
	tracks []*packet.Track
	mdprID map[uint64]uint16 // Matroska track number -> MDPR id written for it

	propOffset int64
	dataHeaderOffset int64

	numPackets   uint32
	totalBytes   int64
	maxPacketSize uint32
	firstTimecode int64
	lastTimecode  int64
	haveFirst     bool
}

// NewRealMediaSink constructs a sink for the given tracks (video and/or
// audio, in MDPR write order) writing to w.
func NewRealMediaSink(w io.WriteSeeker, tracks []*packet.Track) (*RealMediaSink, error) {
	s := &RealMediaSink{w: w, tracks: tracks, mdprID: make(map[uint64]uint16, len(tracks))}
	if err := s.writeHeaders(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *RealMediaSink) writeHeaders() error {
	if err := s.write([]byte(".RMF")); err != nil {
		return err
	}
	if err := s.writeU32(0x12); err != nil { // header_size
		return err
	}
	if err := s.writeU16(1); err != nil { // object_version
		return err
	}
	if err := s.writeU32(0); err != nil { // file_version
		return err
	}
	if err := s.writeU32(uint32(2 + len(s.tracks))); err != nil { // num_headers: PROP+DATA+MDPRs
		return err
	}

	pos, err := s.w.Seek(0, io.SeekCurrent)
	if err != nil {
		return mkverr.Wrap(mkverr.IoError, err, "seeking RealMedia output")
	}
	s.propOffset = pos
	if err := s.writeProp(0, 0, 0, 0, 0, 0, 0); err != nil {
		return err
	}

	for i, t := range s.tracks {
		id := uint16(i + 1)
		s.mdprID[t.Number] = id
		if err := s.writeMDPR(id, t); err != nil {
			return err
		}
	}

	pos, err = s.w.Seek(0, io.SeekCurrent)
	if err != nil {
		return mkverr.Wrap(mkverr.IoError, err, "seeking RealMedia output")
	}
	s.dataHeaderOffset = pos
	return s.writeDataHeader(0)
}

func (s *RealMediaSink) writeProp(maxBitRate, avgBitRate, maxPacketSize, avgPacketSize, numPackets, duration, preroll uint32) error {
	if err := s.write([]byte("PROP")); err != nil {
		return err
	}
	if err := s.writeU32(0x32); err != nil {
		return err
	}
	if err := s.writeU16(0); err != nil {
		return err
	}
	for _, v := range []uint32{maxBitRate, avgBitRate, maxPacketSize, avgPacketSize, numPackets, duration, preroll, 0 /* index_offset */, 0 /* data_offset */} {
		if err := s.writeU32(v); err != nil {
			return err
		}
	}
	if err := s.writeU16(uint16(len(s.tracks))); err != nil { // num_streams
		return err
	}
	return s.writeU16(0) // flags
}

func (s *RealMediaSink) writeMDPR(id uint16, t *packet.Track) error {
	name := t.Name
	mime := "video/x-pn-realvideo"
	if t.Type != 1 {
		mime = "audio/x-pn-realaudio"
	}
	objectSize := uint32(4 + 4 + 2 + 2 + 7*4 + 1 + len(name) + 1 + len(mime) + 4 + len(t.CodecPrivate))

	if err := s.write([]byte("MDPR")); err != nil {
		return err
	}
	if err := s.writeU32(objectSize); err != nil {
		return err
	}
	if err := s.writeU16(0); err != nil { // object_version
		return err
	}
	if err := s.writeU16(id); err != nil {
		return err
	}
	for i := 0; i < 7; i++ { // max/avg bit rate, max/avg packet size, start_time, preroll, duration
		if err := s.writeU32(0); err != nil {
			return err
		}
	}
	if _, err := s.w.Write([]byte{byte(len(name))}); err != nil {
		return err
	}
	if err := s.write([]byte(name)); err != nil {
		return err
	}
	if _, err := s.w.Write([]byte{byte(len(mime))}); err != nil {
		return err
	}
	if err := s.write([]byte(mime)); err != nil {
		return err
	}
	if err := s.writeU32(uint32(len(t.CodecPrivate))); err != nil {
		return err
	}
	return s.write(t.CodecPrivate)
}

func (s *RealMediaSink) writeDataHeader(numPackets uint32) error {
	if err := s.write([]byte("DATA")); err != nil {
		return err
	}
	if err := s.writeU32(0x12); err != nil {
		return err
	}
	if err := s.writeU16(0); err != nil {
		return err
	}
	if err := s.writeU32(numPackets); err != nil {
		return err
	}
	return s.writeU32(0) // next_data_header: single-DATA-chunk files only
}

// WritePacket implements Sink: appends one frame record (12-byte header +
// payload) to the DATA chunk and rolls the running PROP statistics
// forward.
func (s *RealMediaSink) WritePacket(pkt *packet.Packet) error {
	id, ok := s.mdprID[pkt.Track]
	if !ok {
		return mkverr.New(mkverr.InternalInvariant, "RealMedia packet for track %d has no MDPR header", pkt.Track)
	}
	for _, frame := range pkt.Data {
		length := 12 + len(frame)
		if err := s.writeU16(0); err != nil { // object_version
			return err
		}
		if err := s.writeU16(uint16(length)); err != nil {
			return err
		}
		if err := s.writeU16(id); err != nil {
			return err
		}
		if err := s.writeU32(uint32(pkt.Timecode.Milliseconds())); err != nil {
			return err
		}
		if _, err := s.w.Write([]byte{0}); err != nil { // reserved
			return err
		}
		var flags byte
		if pkt.Keyframe() {
			flags = 0x02
		}
		if _, err := s.w.Write([]byte{flags}); err != nil {
			return err
		}
		if err := s.write(frame); err != nil {
			return err
		}

		s.numPackets++
		s.totalBytes += int64(len(frame))
		if uint32(len(frame)) > s.maxPacketSize {
			s.maxPacketSize = uint32(len(frame))
		}
		if !s.haveFirst {
			s.firstTimecode = int64(pkt.Timecode)
			s.haveFirst = true
		}
		if int64(pkt.Timecode) > s.lastTimecode {
			s.lastTimecode = int64(pkt.Timecode)
		}
	}
	return nil
}

// Close implements Sink: patches the PROP header's num_packets/duration/
// avg+max packet size/bit-rate fields and the DATA header's num_packets
// now that the full stream has been seen. The max bit-rate is written equal
// to the average bit-rate; no per-interval peak is measured.
func (s *RealMediaSink) Close() error {
	durationMS := uint32((s.lastTimecode - s.firstTimecode) / 1_000_000)
	var avgPacketSize, avgBitRate, maxBitRate uint32
	if s.numPackets > 0 {
		avgPacketSize = uint32(s.totalBytes / int64(s.numPackets))
	}
	if durationMS > 0 {
		bitsPerMS := s.totalBytes * 8 / int64(durationMS)
		avgBitRate = uint32(bitsPerMS * 1000)
		maxBitRate = avgBitRate
	}

	if _, err := s.w.Seek(s.propOffset, io.SeekStart); err != nil {
		return mkverr.Wrap(mkverr.IoError, err, "seeking to PROP header")
	}
	if err := s.writeProp(maxBitRate, avgBitRate, s.maxPacketSize, avgPacketSize, s.numPackets, durationMS, 0); err != nil {
		return err
	}

	if _, err := s.w.Seek(s.dataHeaderOffset, io.SeekStart); err != nil {
		return mkverr.Wrap(mkverr.IoError, err, "seeking to DATA header")
	}
	return s.writeDataHeader(s.numPackets)
}

func (s *RealMediaSink) write(b []byte) error {
	_, err := s.w.Write(b)
	return err
}

func (s *RealMediaSink) writeU16(v uint16) error {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	return s.write(b[:])
}

func (s *RealMediaSink) writeU32(v uint32) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return s.write(b[:])
}
