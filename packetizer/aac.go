package packetizer

import (
	"strings"

	"github.com/nmaier/mkvengine/packet"
)

// aacSampleRateTable is the 4-bit ADTS sampling_frequency_index table
// (ISO/IEC 13818-7 Table 1.18); aacSampleRateIndex maps a sample rate to
// its index in it.
var aacSampleRateTable = []int{96000, 88200, 64000, 48000, 44100, 32000,
	24000, 22050, 16000, 12000, 11025, 8000, 7350}

func aacSampleRateIndex(rate int) int {
	for i, r := range aacSampleRateTable {
		if r == rate {
			return i
		}
	}
	return 4 // 44100, a safe fallback
}

// AACPacketizer prepends a synthesized 7-byte ADTS header to every raw AAC
// frame, matching original_source/src/extract/xtr_aac.cpp's inverse
// (ADTS-stripping) logic and aac.cpp's codec-ID version-suffix detection
// ("A_AAC/MPEG2/..." vs "A_AAC/MPEG4/...") for the MPEG version bit.
type AACPacketizer struct {
	Base
	profile       int // 0=Main,1=LC,2=SSR,3=LTP (MPEG-4 object type minus 1)
	sampleRateIdx int
	channels      int
	mpeg2         bool
}

// NewAACPacketizer constructs an ADTS-framing packetizer for track, whose
// CodecID encodes the MPEG version ("A_AAC/MPEG2/LC" vs "A_AAC/MPEG4/LC").
func NewAACPacketizer(track *packet.Track, sampleRate, channels int) *AACPacketizer {
	profile := 1 // LC is overwhelmingly the common case
	if strings.Contains(track.CodecID, "MAIN") {
		profile = 0
	} else if strings.Contains(track.CodecID, "SSR") {
		profile = 2
	} else if strings.Contains(track.CodecID, "LTP") {
		profile = 3
	}
	return &AACPacketizer{
		Base:          NewBase(track),
		profile:       profile,
		sampleRateIdx: aacSampleRateIndex(sampleRate),
		channels:      channels,
		mpeg2:         strings.Contains(track.CodecID, "MPEG2"),
	}
}

// adtsHeader synthesizes the 7-byte (no CRC) ADTS header for a frame of
// the given total length (header + payload).
func (a *AACPacketizer) adtsHeader(frameLen int) []byte {
	hdr := make([]byte, 7)
	hdr[0] = 0xFF
	hdr[1] = 0xF0 | 0x01 // syncword low bits, MPEG-4, layer 00, no CRC (protection_absent=1)
	if a.mpeg2 {
		hdr[1] |= 0x08 // ID bit: 1 = MPEG-2
	}
	hdr[2] = byte(a.profile<<6) | byte((a.sampleRateIdx&0xF)<<2) | byte((a.channels>>2)&0x1)
	hdr[3] = byte((a.channels&0x3)<<6) | byte((frameLen>>11)&0x3)
	hdr[4] = byte((frameLen >> 3) & 0xFF)
	hdr[5] = byte((frameLen&0x7)<<5) | 0x1F
	hdr[6] = 0xFC
	return hdr
}

// Process implements Packetizer.
func (a *AACPacketizer) Process(f Frame) ([]*packet.Packet, error) {
	hdr := a.adtsHeader(len(f.Data) + 7)
	framed := append(hdr, f.Data...)
	f.Data = framed
	f.Keyframe = true // AAC raw_data_block frames have no inter-frame prediction
	pkt := a.simplePacket(f)
	pkt.ReferencesValid = false
	return []*packet.Packet{pkt}, nil
}

// Flush implements Packetizer; AAC framing is not buffered.
func (a *AACPacketizer) Flush() ([]*packet.Packet, error) { return nil, nil }
