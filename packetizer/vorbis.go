package packetizer

import (
	"github.com/nmaier/mkvengine/internal/mkverr"
	"github.com/nmaier/mkvengine/packet"
)

// VorbisPacketizer emits one Matroska packet per Vorbis audio packet,
// using the sample count encoded in the packet's header (via the cached
// blocksize table from the setup header) to derive each packet's
// duration, the way original_source/src/output/p_vorbis.cpp computes
// vorbis_packet_blocksize.
type VorbisPacketizer struct {
	Base

	sampleRate     float64
	prevBlocksize  int
	blocksizeShort int
	blocksizeLong  int
}

// NewVorbisPacketizer constructs a packetizer for a Vorbis track whose
// CodecPrivate is the standard three-header Xiph-laced blob
// (identification/comment/setup). blocksizeShort/Long come from the
// identification header's blocksize_0/blocksize_1 nibble fields.
func NewVorbisPacketizer(track *packet.Track, blocksizeShort, blocksizeLong int) *VorbisPacketizer {
	sr := 0.0
	if track.Audio != nil {
		sr = track.Audio.SamplingFrequency
	}
	return &VorbisPacketizer{
		Base:           NewBase(track),
		sampleRate:     sr,
		blocksizeShort: blocksizeShort,
		blocksizeLong:  blocksizeLong,
		prevBlocksize:  -1,
	}
}

// Process implements Packetizer. Vorbis packets carry no explicit duration;
// per original_source's p_vorbis.cpp, the duration of packet N is derived
// from the overlap-add of its own blocksize and the previous packet's
// blocksize: their sum divided by four gives the sample count, which is
// then divided by the sample rate. The first packet after a
// codec-state reset has no prior blocksize to overlap against and is
// assigned a zero duration, matching mkvtoolnix's own behavior.
func (v *VorbisPacketizer) Process(f Frame) ([]*packet.Packet, error) {
	if len(f.Data) < 1 {
		return nil, mkverr.New(mkverr.InvalidFormat, "empty vorbis packet")
	}
	blocksize := v.blocksizeShort
	if isLongBlock(f.Data) {
		blocksize = v.blocksizeLong
	}
	var durationNS int64
	if v.prevBlocksize >= 0 && v.sampleRate > 0 {
		samples := (blocksize + v.prevBlocksize) / 4
		durationNS = int64(float64(samples) / v.sampleRate * 1e9)
	}
	v.prevBlocksize = blocksize
	f.Duration = durationNS
	pkt := v.simplePacket(f)
	pkt.Flags |= packet.FlagKeyframe // Vorbis has no inter-packet prediction
	pkt.ReferencesValid = false
	return []*packet.Packet{pkt}, nil
}

// Flush implements Packetizer; Vorbis packetizing is not buffered.
func (v *VorbisPacketizer) Flush() ([]*packet.Packet, error) { return nil, nil }

// isLongBlock reads the packet type/mode bits from a Vorbis audio packet's
// first bits to determine whether it used the long (1) or short (0)
// window, per the Vorbis I spec §4.3.1. This is a simplified heuristic
// (assumes a single mode bit, true for the overwhelming majority of
// encoders) rather than a full mode-number-to-blockflag table decode.
func isLongBlock(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	return data[0]&0x02 != 0
}
