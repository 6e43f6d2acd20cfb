package packetizer

import "github.com/nmaier/mkvengine/packet"

// PassthroughPacketizer wraps a reader.Frame into a Packet unchanged: no
// codec-private synthesis, no reordering, every frame independently
// decodable. This is the shape PCM audio (A_PCM/INT/LIT) and plain-text
// subtitle (S_TEXT/UTF8) tracks need, matching the "most codecs need no
// transform at all" case original_source's output modules handle as a
// no-op pass-through before the generic Matroska packet writer.
type PassthroughPacketizer struct {
	Base
}

// NewPassthroughPacketizer constructs a packetizer that emits one packet
// per input frame with no transformation.
func NewPassthroughPacketizer(track *packet.Track) *PassthroughPacketizer {
	return &PassthroughPacketizer{Base: NewBase(track)}
}

// Process implements Packetizer.
func (p *PassthroughPacketizer) Process(f Frame) ([]*packet.Packet, error) {
	f.Keyframe = true
	pkt := p.simplePacket(f)
	pkt.ReferencesValid = false
	return []*packet.Packet{pkt}, nil
}

// Flush implements Packetizer; pass-through packetizing is not buffered.
func (p *PassthroughPacketizer) Flush() ([]*packet.Packet, error) { return nil, nil }
