package demux

import (
	"io"
	"time"

	"github.com/nmaier/mkvengine/ebml"
	"github.com/nmaier/mkvengine/internal/mkverr"
	"github.com/nmaier/mkvengine/packet"
)

// parseCluster decodes one Cluster master's payload into its packets,
// the inverse of mux's renderCluster: a Timecode element establishes the
// cluster's base timecode, then every SimpleBlock/BlockGroup becomes one
// packet.Packet.
func parseCluster(clusterEl *ebml.Element) ([]*packet.Packet, error) {
	br := ebml.NewBytesReader(clusterEl.Data)
	var clusterTC time.Duration
	var pkts []*packet.Packet
	for {
		el, err := br.ReadElement()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, mkverr.Wrap(mkverr.InvalidFormat, err, "reading Cluster child")
		}
		switch el.ID {
		case ebml.IDTimecode:
			v, err := el.ReadUInt()
			if err != nil {
				return nil, err
			}
			clusterTC = time.Duration(v) * nsPerBlockUnit
		case ebml.IDSimpleBlock:
			pkt, err := blockToPacket(el.Data, clusterTC)
			if err != nil {
				return nil, err
			}
			pkts = append(pkts, pkt)
		case ebml.IDBlockGroup:
			pkt, err := parseBlockGroup(el.Data, clusterTC)
			if err != nil {
				return nil, err
			}
			pkts = append(pkts, pkt)
		}
	}
	return pkts, nil
}

func parseBlockGroup(data []byte, clusterTC time.Duration) (*packet.Packet, error) {
	br := ebml.NewBytesReader(data)
	var pkt *packet.Packet
	var refs []time.Duration
	var duration time.Duration
	var codecState []byte
	var additions map[uint64][]byte
	for {
		el, err := br.ReadElement()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, mkverr.Wrap(mkverr.InvalidFormat, err, "reading BlockGroup child")
		}
		switch el.ID {
		case ebml.IDBlock:
			p, err := blockToPacket(el.Data, clusterTC)
			if err != nil {
				return nil, err
			}
			pkt = p
		case ebml.IDReferenceBlock:
			v, err := el.ReadInt()
			if err != nil {
				return nil, err
			}
			refs = append(refs, time.Duration(v)*nsPerBlockUnit)
		case ebml.IDBlockDuration:
			v, err := el.ReadUInt()
			if err != nil {
				return nil, err
			}
			duration = time.Duration(v) * nsPerBlockUnit
		case ebml.IDCodecState:
			codecState = el.ReadBytes()
		case ebml.IDBlockAdditions:
			a, err := parseBlockAdditions(el.Data)
			if err != nil {
				return nil, err
			}
			additions = a
		}
	}
	if pkt == nil {
		return nil, mkverr.New(mkverr.InvalidFormat, "BlockGroup has no Block child")
	}
	pkt.Duration = duration
	pkt.CodecState = codecState
	pkt.BlockAdditions = additions
	pkt.ReferencesValid = true
	for _, r := range refs {
		target := pkt.Timecode + r
		if r < 0 {
			pkt.BRef = append(pkt.BRef, target)
		} else {
			pkt.FRef = append(pkt.FRef, target)
		}
	}
	if len(refs) == 0 {
		// No ReferenceBlock at all means this is itself a keyframe, the
		// same convention mux/block.go's WriteBlockForPacket relies on.
		pkt.Flags |= packet.FlagKeyframe
		pkt.ReferencesValid = false
	}
	return pkt, nil
}

func parseBlockAdditions(data []byte) (map[uint64][]byte, error) {
	out := make(map[uint64][]byte)
	br := ebml.NewBytesReader(data)
	for {
		el, err := br.ReadElement()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if el.ID != ebml.IDBlockMore {
			continue
		}
		var id uint64
		var payload []byte
		mbr := ebml.NewBytesReader(el.Data)
		for {
			mel, err := mbr.ReadElement()
			if err == io.EOF {
				break
			}
			if err != nil {
				return nil, err
			}
			switch mel.ID {
			case ebml.IDBlockAddID:
				id, _ = mel.ReadUInt()
			case ebml.IDBlockAdditional:
				payload = mel.ReadBytes()
			}
		}
		out[id] = payload
	}
	return out, nil
}

// blockToPacket decodes a Block/SimpleBlock payload (track number VINT,
// signed 16-bit relative timecode, flags byte, optional Xiph lacing header,
// frame data), the inverse of mux/block.go's writeBlockPayload.
func blockToPacket(data []byte, clusterTC time.Duration) (*packet.Packet, error) {
	track, n, err := decodeTrackNumberVInt(data)
	if err != nil {
		return nil, err
	}
	data = data[n:]
	if len(data) < 3 {
		return nil, mkverr.New(mkverr.InvalidFormat, "block payload too short")
	}
	rel := int16(uint16(data[0])<<8 | uint16(data[1]))
	flags := data[2]
	data = data[3:]

	discardable := flags&0x01 != 0
	laceMode := (flags >> 1) & 0x03

	var frames [][]byte
	switch laceMode {
	case 0:
		frames = [][]byte{data}
	case 2:
		frames, err = decodeXiphLacing(data)
		if err != nil {
			return nil, err
		}
	default:
		return nil, mkverr.New(mkverr.Unsupported, "lacing mode %d not supported (this engine only writes Xiph lacing)", laceMode)
	}

	var pktFlags uint32
	if flags&0x80 != 0 {
		pktFlags |= packet.FlagKeyframe
	}
	if discardable {
		pktFlags |= packet.FlagDiscardable
	}

	return &packet.Packet{
		Track:    track,
		Timecode: clusterTC + time.Duration(rel)*nsPerBlockUnit,
		Flags:    pktFlags,
		Data:     frames,
	}, nil
}

// decodeXiphLacing parses a Xiph-laced frame-size table plus the frames
// that follow, the inverse of mux/block.go's xiphLaceSizes.
func decodeXiphLacing(data []byte) ([][]byte, error) {
	if len(data) == 0 {
		return nil, mkverr.New(mkverr.InvalidFormat, "empty laced block payload")
	}
	count := int(data[0]) + 1
	data = data[1:]
	sizes := make([]int, count-1)
	for i := 0; i < count-1; i++ {
		size := 0
		for len(data) > 0 && data[0] == 255 {
			size += 255
			data = data[1:]
		}
		if len(data) == 0 {
			return nil, mkverr.New(mkverr.InvalidFormat, "truncated Xiph lace size table")
		}
		size += int(data[0])
		data = data[1:]
		sizes[i] = size
	}
	frames := make([][]byte, count)
	for i := 0; i < count-1; i++ {
		if len(data) < sizes[i] {
			return nil, mkverr.New(mkverr.InvalidFormat, "laced frame %d truncated", i)
		}
		frames[i] = data[:sizes[i]]
		data = data[sizes[i]:]
	}
	frames[count-1] = data
	return frames, nil
}

// decodeTrackNumberVInt decodes a Block payload's leading VINT-encoded
// track number. Duplicated in-package rather than exported from ebml,
// mirroring mux/block.go's appendTrackNumberVInt/xiphLaceSizes precedent
// for small, format-specific VINT helpers that don't belong on the
// general-purpose ebml.Reader.
func decodeTrackNumberVInt(data []byte) (value uint64, width int, err error) {
	if len(data) == 0 {
		return 0, 0, mkverr.New(mkverr.InvalidFormat, "empty block payload")
	}
	for i := 0; i < 8; i++ {
		if data[0]&(0x80>>uint(i)) != 0 {
			width = i + 1
			break
		}
	}
	if width == 0 || len(data) < width {
		return 0, 0, mkverr.New(mkverr.InvalidFormat, "invalid block track-number vint")
	}
	payloadMask := byte(0x7f >> uint(width-1))
	value = uint64(data[0] & payloadMask)
	for i := 1; i < width; i++ {
		value = value<<8 | uint64(data[i])
	}
	return value, width, nil
}
