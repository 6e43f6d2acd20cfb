// Package packetizer implements the packetizer component: per-codec
// transforms that turn a reader's raw frames into Matroska-ready packets
// (synthesizing codec-private data, deriving block-addition payloads,
// computing lacing, and the like), mirroring spec.md §4.4's
// Codec → private-data/bitstream-filter table.
//
// The overall Process/Flush shape is grounded on
// luispater-matroska-go/parser.go's packet-shaping helpers, generalized
// from the read (demux) direction to the write (mux) direction; concrete
// per-codec private-data formats are grounded on
// original_source/src/output/*.cpp, per SPEC_FULL.md's Supplemented
// Features section.
package packetizer

import "github.com/nmaier/mkvengine/packet"

// Packetizer transforms raw per-frame input into zero or more Matroska
// packets ready for cluster_helper. Implementations are per-codec; Process
// is called once per input frame, Flush once at end of stream to drain any
// buffered (laced or reordered) packets.
type Packetizer interface {
	// Track returns the TrackEntry this packetizer produces, including
	// any codec-private data it has synthesized.
	Track() *packet.Track

	// Process consumes one raw input frame (with its source timecode)
	// and returns zero or more ready-to-cluster packets.
	Process(in Frame) ([]*packet.Packet, error)

	// Flush drains any buffered packets once the source is exhausted.
	Flush() ([]*packet.Packet, error)
}

// Frame is one raw, not-yet-Matroska-shaped input frame from a reader.
type Frame struct {
	Data       []byte
	Timecode   int64 // nanoseconds
	Duration   int64 // nanoseconds, 0 if unknown
	Keyframe   bool
	CodecState []byte
}

// Base provides the bookkeeping (track, last timecode) most per-codec
// packetizers share, the way the teacher's small structs embed shared
// fields rather than reimplementing them per type.
type Base struct {
	track        *packet.Track
	lastTimecode int64
}

// NewBase constructs a Base bound to track.
func NewBase(track *packet.Track) Base {
	return Base{track: track}
}

// Track implements Packetizer.Track for embedders.
func (b *Base) Track() *packet.Track { return b.track }

// simplePacket builds a single-frame, unlaced packet at the given
// timecode, the common case for codecs without header lacing or
// reordering.
func (b *Base) simplePacket(f Frame) *packet.Packet {
	b.lastTimecode = f.Timecode
	flags := uint32(0)
	if f.Keyframe {
		flags |= packet.FlagKeyframe
	}
	return &packet.Packet{
		Track:           b.track.Number,
		Timecode:        nsToDuration(f.Timecode),
		Duration:        nsToDuration(f.Duration),
		Flags:           flags,
		Data:            [][]byte{f.Data},
		CodecState:      f.CodecState,
		ReferencesValid: !f.Keyframe,
	}
}
