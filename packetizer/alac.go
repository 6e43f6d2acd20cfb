package packetizer

import (
	"github.com/nmaier/mkvengine/internal/mkverr"
	"github.com/nmaier/mkvengine/packet"
)

// ALACSpecificConfigSize is the fixed size of an ALACSpecificConfig, the
// format Matroska's A_ALAC CodecPrivate carries (Apple's alac.h struct,
// big-endian, no padding).
const ALACSpecificConfigSize = 24

// NormalizeALACMagicCookie extracts the 24-byte ALACSpecificConfig from
// either form original_source/src/common/caf.h's reader may hand back: a
// bare 24-byte config (old frmaalac-style cookie) or a CAF 'kuki' chunk
// that wraps it in an ALAC atom alongside an unrelated 'frma'/'alac' atom
// pair. Matches p_alac.cpp's cookie-normalization step.
func NormalizeALACMagicCookie(cookie []byte) ([]byte, error) {
	if len(cookie) == ALACSpecificConfigSize {
		return cookie, nil
	}
	// Search for a 24-byte run following an "alac" atom tag, the shape
	// QuickTime/CAF magic cookies use when they carry extra atoms.
	for i := 0; i+4+ALACSpecificConfigSize <= len(cookie); i++ {
		if string(cookie[i:i+4]) == "alac" && i+4+ALACSpecificConfigSize <= len(cookie) {
			return cookie[i+4 : i+4+ALACSpecificConfigSize], nil
		}
	}
	return nil, mkverr.New(mkverr.InvalidFormat, "unrecognized ALAC magic cookie (%d bytes)", len(cookie))
}

// ALACPacketizer passes through already-ALAC-framed audio packets
// unchanged; ALAC has no container-agnostic bitstream reframing need
// (unlike AAC's ADTS). The CodecPrivate normalization above is not done
// here: reader.OpenCoreAudio applies it once at track-creation time.
type ALACPacketizer struct {
	Base
}

// NewALACPacketizer constructs a pass-through packetizer for an ALAC track.
func NewALACPacketizer(track *packet.Track) *ALACPacketizer {
	return &ALACPacketizer{Base: NewBase(track)}
}

// Process implements Packetizer.
func (a *ALACPacketizer) Process(f Frame) ([]*packet.Packet, error) {
	f.Keyframe = true // ALAC is lossless-predictive within a frame only
	pkt := a.simplePacket(f)
	pkt.ReferencesValid = false
	return []*packet.Packet{pkt}, nil
}

// Flush implements Packetizer; ALAC packetizing is not buffered.
func (a *ALACPacketizer) Flush() ([]*packet.Packet, error) { return nil, nil }
