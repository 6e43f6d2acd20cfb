package packetizer

import "github.com/nmaier/mkvengine/packet"

// WavPack4 BlockAddID used for hybrid correction subblocks, matching
// original_source's p_wavpack.cpp / r_wavpack.cpp handling of the
// companion .wvc correction file.
const WavPackCorrectionBlockAddID = 1

// WavPackPacketizer splits a WavPack4 block stream into a primary packet
// plus, when a correction-file frame is supplied for the same block,
// a BlockAddition carrying the correction subblock — per
// SPEC_FULL.md's Supplemented Features (hybrid .wvc correction files).
type WavPackPacketizer struct {
	Base
	blockNumber uint32
}

// NewWavPackPacketizer constructs a packetizer for a WavPack4 track.
func NewWavPackPacketizer(track *packet.Track) *WavPackPacketizer {
	return &WavPackPacketizer{Base: NewBase(track)}
}

// Process implements Packetizer by calling ProcessWithCorrection with no
// correction subblock.
func (w *WavPackPacketizer) Process(f Frame) ([]*packet.Packet, error) {
	return w.ProcessWithCorrection(f, nil)
}

// ProcessWithCorrection is Process plus an optional correction subblock.
// correction, if non-nil, is the matching block read from the hybrid .wvc
// correction stream for this same block number; it is folded in as a
// BlockAddition rather than a separate track.
func (w *WavPackPacketizer) ProcessWithCorrection(f Frame, correction []byte) ([]*packet.Packet, error) {
	f.Keyframe = true // WavPack blocks decode independently
	pkt := w.simplePacket(f)
	pkt.ReferencesValid = false
	if correction != nil {
		pkt.BlockAdditions = map[uint64][]byte{WavPackCorrectionBlockAddID: correction}
	}
	w.blockNumber++
	return []*packet.Packet{pkt}, nil
}

// Flush implements Packetizer; WavPack packetizing is not buffered.
func (w *WavPackPacketizer) Flush() ([]*packet.Packet, error) { return nil, nil }
