package packetizer

import (
	"github.com/nmaier/mkvengine/internal/mkverr"
	"github.com/nmaier/mkvengine/packet"
)

// AVCConfig is a parsed AVCDecoderConfigurationRecord (ISO/IEC 14496-15),
// the format Matroska's V_MPEG4/ISO/AVC CodecPrivate carries.
type AVCConfig struct {
	NALSizeLength int // 1..4, from the record's length_size_minus_one field
	SPS           [][]byte
	PPS           [][]byte
}

// ParseAVCDecoderConfig parses an AVCC CodecPrivate blob, matching
// original_source's AVC config-record handling (xtr_avc.cpp's inverse).
func ParseAVCDecoderConfig(data []byte) (*AVCConfig, error) {
	if len(data) < 6 || data[0] != 1 {
		return nil, mkverr.New(mkverr.InvalidFormat, "invalid AVCDecoderConfigurationRecord")
	}
	cfg := &AVCConfig{NALSizeLength: int(data[4]&0x03) + 1}
	pos := 5
	numSPS := int(data[pos] & 0x1F)
	pos++
	for i := 0; i < numSPS; i++ {
		if pos+2 > len(data) {
			return nil, mkverr.New(mkverr.InvalidFormat, "truncated SPS in AVC config")
		}
		n := int(data[pos])<<8 | int(data[pos+1])
		pos += 2
		if pos+n > len(data) {
			return nil, mkverr.New(mkverr.InvalidFormat, "truncated SPS payload in AVC config")
		}
		cfg.SPS = append(cfg.SPS, data[pos:pos+n])
		pos += n
	}
	if pos >= len(data) {
		return cfg, nil
	}
	numPPS := int(data[pos])
	pos++
	for i := 0; i < numPPS; i++ {
		if pos+2 > len(data) {
			return nil, mkverr.New(mkverr.InvalidFormat, "truncated PPS in AVC config")
		}
		n := int(data[pos])<<8 | int(data[pos+1])
		pos += 2
		if pos+n > len(data) {
			return nil, mkverr.New(mkverr.InvalidFormat, "truncated PPS payload in AVC config")
		}
		cfg.PPS = append(cfg.PPS, data[pos:pos+n])
		pos += n
	}
	return cfg, nil
}

// HEVCConfig is a parsed HEVCDecoderConfigurationRecord subset: the VPS/
// SPS/PPS NAL arrays Matroska's V_MPEGH/ISO/HEVC CodecPrivate carries.
type HEVCConfig struct {
	NALSizeLength int
	VPS, SPS, PPS [][]byte
}

// hevcNALUnitType extracts a NAL unit's type field (bits 1-6 of the first
// header byte for HEVC, vs. bits 0-4 for AVC).
func hevcNALUnitType(b byte) int { return int(b>>1) & 0x3F }

// ParseHEVCDecoderConfig parses an HVCC CodecPrivate blob's NAL array
// section, matching original_source's xtr_hevc.cpp inverse.
func ParseHEVCDecoderConfig(data []byte) (*HEVCConfig, error) {
	if len(data) < 23 {
		return nil, mkverr.New(mkverr.InvalidFormat, "invalid HEVCDecoderConfigurationRecord")
	}
	cfg := &HEVCConfig{NALSizeLength: int(data[21]&0x03) + 1}
	numArrays := int(data[22])
	pos := 23
	for a := 0; a < numArrays; a++ {
		if pos+3 > len(data) {
			return nil, mkverr.New(mkverr.InvalidFormat, "truncated NAL array header in HEVC config")
		}
		nalType := int(data[pos] & 0x3F)
		numNALs := int(data[pos+1])<<8 | int(data[pos+2])
		pos += 3
		for n := 0; n < numNALs; n++ {
			if pos+2 > len(data) {
				return nil, mkverr.New(mkverr.InvalidFormat, "truncated NAL entry in HEVC config")
			}
			size := int(data[pos])<<8 | int(data[pos+1])
			pos += 2
			if pos+size > len(data) {
				return nil, mkverr.New(mkverr.InvalidFormat, "truncated NAL payload in HEVC config")
			}
			nal := data[pos : pos+size]
			pos += size
			switch nalType {
			case 32:
				cfg.VPS = append(cfg.VPS, nal)
			case 33:
				cfg.SPS = append(cfg.SPS, nal)
			case 34:
				cfg.PPS = append(cfg.PPS, nal)
			}
		}
	}
	return cfg, nil
}

// AVCPacketizer re-frames length-prefixed (AVCC/HVCC) NAL units as-is for
// Matroska Block payload (Matroska keeps the length-prefixed form inside
// Blocks; only extraction to Annex-B is a conversion, handled by
// extract.AVCSink), and classifies keyframes by scanning for an IDR/CRA
// NAL.
type AVCPacketizer struct {
	Base
	nalSizeLength int
	hevc          bool
}

// NewAVCPacketizer constructs a packetizer for an AVC or HEVC track.
func NewAVCPacketizer(track *packet.Track, nalSizeLength int, hevc bool) *AVCPacketizer {
	return &AVCPacketizer{Base: NewBase(track), nalSizeLength: nalSizeLength, hevc: hevc}
}

// Process implements Packetizer.
func (a *AVCPacketizer) Process(f Frame) ([]*packet.Packet, error) {
	f.Keyframe = a.containsKeyframeNAL(f.Data)
	pkt := a.simplePacket(f)
	return []*packet.Packet{pkt}, nil
}

// Flush implements Packetizer; AVC/HEVC framing is not buffered.
func (a *AVCPacketizer) Flush() ([]*packet.Packet, error) { return nil, nil }

func (a *AVCPacketizer) containsKeyframeNAL(data []byte) bool {
	pos := 0
	for pos+a.nalSizeLength <= len(data) {
		size := 0
		for i := 0; i < a.nalSizeLength; i++ {
			size = size<<8 | int(data[pos+i])
		}
		pos += a.nalSizeLength
		if pos+size > len(data) || size == 0 {
			return false
		}
		nalByte := data[pos]
		if a.hevc {
			t := hevcNALUnitType(nalByte)
			if t >= 16 && t <= 23 { // BLA/IDR/CRA range
				return true
			}
		} else {
			if nalByte&0x1F == 5 { // IDR slice
				return true
			}
		}
		pos += size
	}
	return false
}
