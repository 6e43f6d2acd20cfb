package extract

import (
	"io"

	"github.com/nmaier/mkvengine/packet"
	"github.com/nmaier/mkvengine/packetizer"
)

// avcStartCode is the 4-byte Annex B NAL unit start code this sink
// prepends before every NAL unit when unpacking length-prefixed
// (AVCC/HVCC) payloads, per spec.md §4.8's AVC/HEVC elementary writer.
var avcStartCode = []byte{0x00, 0x00, 0x00, 0x01}

// AVCSink unpacks length-prefixed AVC/HEVC NAL units (the form Matroska
// Blocks carry) into an Annex-B elementary stream, writing the
// VPS/SPS/PPS parameter sets from CodecPrivate once up front followed by
// each packet's NAL units in turn. Grounded on
// packetizer.ParseAVCDecoderConfig/ParseHEVCDecoderConfig (the config
// record this sink inverts) and original_source's xtr_avc.cpp/xtr_hevc.cpp.
type AVCSink struct {
	w             io.Writer
	nalSizeLength int
	hevc          bool
	wroteParams   bool
	avc           *packetizer.AVCConfig
	hevcCfg       *packetizer.HEVCConfig
}

// NewAVCSink constructs a sink for an AVC track whose CodecPrivate is an
// AVCDecoderConfigurationRecord.
func NewAVCSink(w io.Writer, codecPrivate []byte) (*AVCSink, error) {
	cfg, err := packetizer.ParseAVCDecoderConfig(codecPrivate)
	if err != nil {
		return nil, err
	}
	return &AVCSink{w: w, nalSizeLength: cfg.NALSizeLength, avc: cfg}, nil
}

// NewHEVCSink constructs a sink for an HEVC track whose CodecPrivate is an
// HEVCDecoderConfigurationRecord.
func NewHEVCSink(w io.Writer, codecPrivate []byte) (*AVCSink, error) {
	cfg, err := packetizer.ParseHEVCDecoderConfig(codecPrivate)
	if err != nil {
		return nil, err
	}
	return &AVCSink{w: w, nalSizeLength: cfg.NALSizeLength, hevc: true, hevcCfg: cfg}, nil
}

func (s *AVCSink) writeParamSets() error {
	var sets [][]byte
	if s.hevc {
		sets = append(sets, s.hevcCfg.VPS...)
		sets = append(sets, s.hevcCfg.SPS...)
		sets = append(sets, s.hevcCfg.PPS...)
	} else {
		sets = append(sets, s.avc.SPS...)
		sets = append(sets, s.avc.PPS...)
	}
	for _, nal := range sets {
		if err := s.writeNAL(nal); err != nil {
			return err
		}
	}
	return nil
}

func (s *AVCSink) writeNAL(nal []byte) error {
	if _, err := s.w.Write(avcStartCode); err != nil {
		return err
	}
	_, err := s.w.Write(nal)
	return err
}

// WritePacket implements Sink: splits the length-prefixed NAL run and
// re-emits each unit with a start code.
func (s *AVCSink) WritePacket(pkt *packet.Packet) error {
	if !s.wroteParams {
		if err := s.writeParamSets(); err != nil {
			return err
		}
		s.wroteParams = true
	}
	for _, frame := range pkt.Data {
		pos := 0
		for pos+s.nalSizeLength <= len(frame) {
			size := 0
			for i := 0; i < s.nalSizeLength; i++ {
				size = size<<8 | int(frame[pos+i])
			}
			pos += s.nalSizeLength
			if pos+size > len(frame) {
				break
			}
			if err := s.writeNAL(frame[pos : pos+size]); err != nil {
				return err
			}
			pos += size
		}
	}
	return nil
}

// Close implements Sink; Annex-B elementary streams have no footer.
func (s *AVCSink) Close() error { return nil }
