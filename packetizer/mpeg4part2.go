package packetizer

import "github.com/nmaier/mkvengine/packet"

// vopStartCode is the MPEG-4 Part 2 VOP (Video Object Plane) start code.
const vopStartCode = 0x000001B6

// VOPCodingType values, the two top bits of the byte following a VOP start
// code (ISO/IEC 14496-2 §6.3.6).
const (
	vopCodingI = 0
	vopCodingP = 1
	vopCodingB = 2
)

// MPEG4Part2Config carries a subset of the VOL header fields
// original_source's mpeg4bitstream.cpp scans for: aspect ratio, the
// time_increment bit-width, and whether B-frames are present. The caller
// fills it in; this package does not parse the VOL header, and
// MPEG4Part2Packetizer stores the config without using it to classify
// frames.
type MPEG4Part2Config struct {
	AspectRatioWidth, AspectRatioHeight int
	TimeIncrementBits                  int
	HasBFrames                         bool
}

// MPEG4Part2Packetizer classifies each MPEG-4 Part 2 frame by its VOP
// coding type: I-frames are marked as keyframes, P- and B-frames get
// ReferencesValid set, and B-frames are also marked discardable. It does
// no buffering and no reordering: every frame is emitted by the Process
// call that receives it, in arrival order.
type MPEG4Part2Packetizer struct {
	Base
	cfg MPEG4Part2Config
}

// NewMPEG4Part2Packetizer constructs a packetizer for an MPEG-4 Part 2
// (DivX/Xvid-style) video track.
func NewMPEG4Part2Packetizer(track *packet.Track, cfg MPEG4Part2Config) *MPEG4Part2Packetizer {
	return &MPEG4Part2Packetizer{Base: NewBase(track), cfg: cfg}
}

// Process implements Packetizer, classifying the VOP coding type from the
// bitstream. BRef and FRef are left empty for every frame type (no anchor
// timecodes are tracked), so cluster_helper resolves no references for
// P- or B-frames.
func (m *MPEG4Part2Packetizer) Process(f Frame) ([]*packet.Packet, error) {
	coding := findVOPCodingType(f.Data)
	pkt := m.simplePacket(f)
	switch coding {
	case vopCodingI:
		pkt.Flags |= packet.FlagKeyframe
		pkt.ReferencesValid = false
	case vopCodingP:
		pkt.ReferencesValid = true // BRef left empty: the prior anchor is not tracked
	case vopCodingB:
		pkt.ReferencesValid = true
		pkt.Flags |= packet.FlagDiscardable
	}
	return []*packet.Packet{pkt}, nil
}

// Flush implements Packetizer; nothing is buffered, so it returns no packets.
func (m *MPEG4Part2Packetizer) Flush() ([]*packet.Packet, error) { return nil, nil }

// findVOPCodingType scans data for a VOP start code and returns its
// coding type, defaulting to I if none is found (e.g. a non-VOP-framed
// elementary stream slice).
func findVOPCodingType(data []byte) int {
	for i := 0; i+4 < len(data); i++ {
		code := uint32(data[i])<<24 | uint32(data[i+1])<<16 | uint32(data[i+2])<<8 | uint32(data[i+3])
		if code == vopStartCode {
			return int(data[i+4]>>6) & 0x3
		}
	}
	return vopCodingI
}
