package mux

import (
	"time"

	"github.com/nmaier/mkvengine/ebml"
	"github.com/nmaier/mkvengine/packet"
)

// writeBlockPayload appends the Matroska Block payload structure (track
// number VINT, signed 16-bit relative timecode, flags byte, lacing header
// if laced, then frame data) for pkt relative to clusterTimecode, matching
// the block-structure original_source/src/common/ebml.cpp writes and
// other_examples' WebM muxer's writeSimpleBlock layout.
func writeBlockPayload(pkt *packet.Packet, clusterTimecode time.Duration) ([]byte, error) {
	var buf []byte
	buf = appendTrackNumberVInt(buf, pkt.Track)

	rel := (pkt.Timecode - clusterTimecode).Milliseconds()
	buf = append(buf, byte(rel>>8), byte(rel))

	var flags byte
	if pkt.Keyframe() {
		flags |= 0x80
	}
	if pkt.Discardable() {
		flags |= 0x01
	}
	laceMode := byte(0)
	if len(pkt.Data) > 1 {
		laceMode = 0x02 // Xiph lacing; EBML/fixed-size lacing are not emitted by this engine
		flags |= laceMode << 1
	}
	buf = append(buf, flags)

	if len(pkt.Data) > 1 {
		buf = append(buf, byte(len(pkt.Data)-1))
		sizes := make([]int, len(pkt.Data)-1)
		for i := 0; i < len(pkt.Data)-1; i++ {
			sizes[i] = len(pkt.Data[i])
		}
		buf = append(buf, xiphLaceSizes(sizes)...)
	}
	for _, frame := range pkt.Data {
		buf = append(buf, frame...)
	}
	return buf, nil
}

// xiphLaceSizes duplicates packetizer.EncodeXiphLaceSizes's algorithm
// in-package.
func xiphLaceSizes(sizes []int) []byte {
	var out []byte
	for _, size := range sizes {
		for size >= 255 {
			out = append(out, 255)
			size -= 255
		}
		out = append(out, byte(size))
	}
	return out
}

// appendTrackNumberVInt appends a track number as an EBML VINT (Matroska
// encodes the Block's leading track number as a VINT, not a fixed-width
// integer, even though in practice track numbers rarely exceed 127).
func appendTrackNumberVInt(dst []byte, track uint64) []byte {
	width := 1
	for v := track; v >= (uint64(1)<<uint(7*width))-1 && width < 8; width++ {
	}
	buf := make([]byte, width)
	v := track
	for i := width - 1; i >= 0; i-- {
		buf[i] = byte(v)
		v >>= 8
	}
	marker := byte(0x80) >> uint(width-1)
	buf[0] |= marker
	return append(dst, buf...)
}

// writeSimpleBlock writes a SimpleBlock element for pkt, used when pkt
// needs no ReferenceBlock/BlockDuration/BlockAdditions/CodecState (the
// overwhelmingly common case: keyframes and non-laced, non-referencing
// frames).
func writeSimpleBlock(w *ebml.Writer, pkt *packet.Packet, clusterTimecode time.Duration) error {
	payload, err := writeBlockPayload(pkt, clusterTimecode)
	if err != nil {
		return err
	}
	return w.WriteBinary(ebml.IDSimpleBlock, payload)
}

// writeBlockGroup writes a BlockGroup element for pkt, used whenever extra
// metadata (reference timecodes, explicit duration, CodecState,
// BlockAdditions) must accompany the Block.
func writeBlockGroup(w *ebml.Writer, pkt *packet.Packet, clusterTimecode time.Duration, relativeRefs []time.Duration) error {
	sizeOffset, err := w.OpenMaster(ebml.IDBlockGroup, 4)
	if err != nil {
		return err
	}
	payload, err := writeBlockPayload(pkt, clusterTimecode)
	if err != nil {
		return err
	}
	if err := w.WriteBinary(ebml.IDBlock, payload); err != nil {
		return err
	}
	for _, ref := range relativeRefs {
		if err := w.WriteInt(ebml.IDReferenceBlock, ref.Milliseconds()); err != nil {
			return err
		}
	}
	if pkt.Duration > 0 {
		if err := w.WriteUInt(ebml.IDBlockDuration, uint64(pkt.Duration.Milliseconds())); err != nil {
			return err
		}
	}
	if len(pkt.CodecState) > 0 {
		if err := w.WriteBinary(ebml.IDCodecState, pkt.CodecState); err != nil {
			return err
		}
	}
	if len(pkt.BlockAdditions) > 0 {
		if err := writeBlockAdditions(w, pkt.BlockAdditions); err != nil {
			return err
		}
	}
	end := w.Position()
	return patchIfSeekable(w, sizeOffset, uint64(end-sizeOffset-4), 4)
}

func writeBlockAdditions(w *ebml.Writer, additions map[uint64][]byte) error {
	sizeOffset, err := w.OpenMaster(ebml.IDBlockAdditions, 2)
	if err != nil {
		return err
	}
	for id, data := range additions {
		moreOffset, err := w.OpenMaster(ebml.IDBlockMore, 2)
		if err != nil {
			return err
		}
		if err := w.WriteUInt(ebml.IDBlockAddID, id); err != nil {
			return err
		}
		if err := w.WriteBinary(ebml.IDBlockAdditional, data); err != nil {
			return err
		}
		end := w.Position()
		if err := patchIfSeekable(w, moreOffset, uint64(end-moreOffset-2), 2); err != nil {
			return err
		}
	}
	end := w.Position()
	return patchIfSeekable(w, sizeOffset, uint64(end-sizeOffset-2), 2)
}

// WriteBlockForPacket chooses SimpleBlock vs BlockGroup for pkt based on
// whether it needs any BlockGroup-only metadata, matching mkvmerge's own
// preference for the smaller SimpleBlock form whenever legal.
func WriteBlockForPacket(w *ebml.Writer, pkt *packet.Packet, clusterTimecode time.Duration, relativeRefs []time.Duration) error {
	needsGroup := len(relativeRefs) > 0 || pkt.Duration > 0 || len(pkt.CodecState) > 0 || len(pkt.BlockAdditions) > 0
	if needsGroup {
		return writeBlockGroup(w, pkt, clusterTimecode, relativeRefs)
	}
	return writeSimpleBlock(w, pkt, clusterTimecode)
}
