package packetizer

import (
	"fmt"

	"github.com/nmaier/mkvengine/packet"
)

// SSAPacketizer assigns each subtitle event an increasing ReadOrder,
// formats the payload as the comma-joined "ReadOrder,Layer,Style,Name,..."
// line Matroska's S_TEXT/SSA and S_TEXT/ASS codecs require, matching
// original_source's SSA/ASS handling (xtr_textsubs.cpp's inverse). Unlike
// video/audio, subtitle packets are not reordered by presentation time
// before clustering — their ReadOrder preserves original script order even
// when Duration overlaps with neighboring events.
type SSAPacketizer struct {
	Base
	nextReadOrder int
}

// NewSSAPacketizer constructs a packetizer for an SSA/ASS subtitle track.
func NewSSAPacketizer(track *packet.Track) *SSAPacketizer {
	return &SSAPacketizer{Base: NewBase(track)}
}

// Process implements Packetizer. f.Data is expected to already be the
// "Layer,Style,Name,MarginL,MarginR,MarginV,Effect,Text" tail of an SSA
// Dialogue line (i.e. with Start/End/Format stripped, since those are
// carried by the Block's own timecode/duration instead).
func (s *SSAPacketizer) Process(f Frame) ([]*packet.Packet, error) {
	line := fmt.Sprintf("%d,%s", s.nextReadOrder, f.Data)
	s.nextReadOrder++
	f.Data = []byte(line)
	f.Keyframe = true
	pkt := s.simplePacket(f)
	pkt.ReferencesValid = false
	return []*packet.Packet{pkt}, nil
}

// Flush implements Packetizer; SSA/ASS packetizing is not buffered.
func (s *SSAPacketizer) Flush() ([]*packet.Packet, error) { return nil, nil }
